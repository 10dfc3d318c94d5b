// Package natsplit decomposes bidirectional NAT rules into an explicit
// forward/reverse pair. The reverse rule is placed immediately after the
// original so the pair stays adjacent in the rulebase.
package natsplit

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"

	"github.com/panflow-net/panflow/pkg/panflow/object"
	"github.com/panflow-net/panflow/pkg/panflow/pan"
	"github.com/panflow-net/panflow/pkg/panflow/xmltree"
	"github.com/panflow-net/panflow/pkg/panflow/xpath"
	"github.com/panflow-net/panflow/pkg/util"
)

// DefaultSuffix names the reverse rule.
const DefaultSuffix = "-reverse"

// fallbackAddress substitutes for a translated address that cannot be
// derived from the original rule.
const fallbackAddress = "0.0.0.0"

// Options controls how the reverse rule is derived.
type Options struct {
	// Suffix is appended to the original rule name; empty means
	// DefaultSuffix.
	Suffix string
	// ZoneSwap swaps from and to zones on the reverse rule.
	ZoneSwap bool
	// AddressSwap swaps source and destination addresses.
	AddressSwap bool
	// ReturnRuleAnyAny forces source zone and source address to any
	// instead of swapping.
	ReturnRuleAnyAny bool
	// DisableOrigBidirectional clears bi-directional on the original.
	DisableOrigBidirectional bool
	// NameFilter restricts batch mode to rules whose name contains it.
	NameFilter string
}

// DefaultOptions is the standard swap-both behavior.
func DefaultOptions() Options {
	return Options{ZoneSwap: true, AddressSwap: true, DisableOrigBidirectional: true}
}

// Detail reports one rule's outcome in a batch.
type Detail struct {
	Rule    string
	Reverse string
	Status  string // "ok" or "failed"
	Message string
}

// BatchResult summarizes a batch split.
type BatchResult struct {
	Processed int
	Succeeded int
	Failed    int
	Details   []Detail
}

// Splitter splits rules over one tree.
type Splitter struct {
	tree     *xmltree.Tree
	resolver *xpath.Resolver
	dt       pan.DeviceType
	version  pan.Version
}

// New creates a Splitter.
func New(tree *xmltree.Tree, dt pan.DeviceType, version pan.Version) *Splitter {
	return &Splitter{
		tree:     tree,
		resolver: xpath.New(),
		dt:       dt,
		version:  pan.ResolveVersion(version),
	}
}

// SplitRule splits one named rule. Returns the warnings produced while
// deriving the reverse rule.
func (s *Splitter) SplitRule(name string, ctx pan.Context, rb pan.Rulebase, opts Options) ([]string, error) {
	path, err := s.resolver.PolicyXPath(pan.RuleNAT, rb, s.dt, ctx, s.version, name)
	if err != nil {
		return nil, err
	}
	el, err := s.tree.FindOne(path)
	if err != nil {
		return nil, err
	}
	if el == nil {
		return nil, util.NewNotFoundError("rule:nat", name, ctx.String())
	}
	return s.split(el, ctx, rb, opts)
}

// SplitAll splits every bidirectional rule in the context, optionally
// filtered by name substring. Per-rule failures never abort the batch.
func (s *Splitter) SplitAll(ctx pan.Context, rb pan.Rulebase, opts Options) (*BatchResult, error) {
	containerPath, err := s.resolver.PolicyContainerXPath(pan.RuleNAT, rb, s.dt, ctx, s.version)
	if err != nil {
		return nil, err
	}
	rules, err := s.tree.FindMany(containerPath + "/entry")
	if err != nil {
		return nil, err
	}

	res := &BatchResult{}
	// Snapshot upfront: splitting inserts siblings into the list being
	// walked.
	var targets []*etree.Element
	for _, rule := range rules {
		name := xmltree.EntryName(rule)
		if opts.NameFilter != "" && !strings.Contains(name, opts.NameFilter) {
			continue
		}
		if object.WrapNATRule(rule).BiDirectional() {
			targets = append(targets, rule)
		}
	}

	for _, rule := range targets {
		name := xmltree.EntryName(rule)
		res.Processed++
		warnings, err := s.split(rule, ctx, rb, opts)
		if err != nil {
			res.Failed++
			res.Details = append(res.Details, Detail{Rule: name, Status: "failed", Message: err.Error()})
			continue
		}
		res.Succeeded++
		res.Details = append(res.Details, Detail{
			Rule: name, Reverse: name + suffix(opts), Status: "ok",
			Message: strings.Join(warnings, "; "),
		})
	}
	return res, nil
}

func suffix(opts Options) string {
	if opts.Suffix == "" {
		return DefaultSuffix
	}
	return opts.Suffix
}

// split derives the reverse rule and inserts it after the original.
func (s *Splitter) split(el *etree.Element, ctx pan.Context, rb pan.Rulebase, opts Options) ([]string, error) {
	rule := object.WrapNATRule(el)
	if !rule.BiDirectional() {
		return nil, fmt.Errorf("%w: rule '%s' is not bidirectional", util.ErrInvalidArgument, rule.Name())
	}

	reverseName := rule.Name() + suffix(opts)
	reversePath, err := s.resolver.PolicyXPath(pan.RuleNAT, rb, s.dt, ctx, s.version, reverseName)
	if err != nil {
		return nil, err
	}
	if existing, _ := s.tree.FindOne(reversePath); existing != nil {
		return nil, &util.ConflictError{Kind: "rule:nat", Name: reverseName, Strategy: "skip"}
	}

	reverse := xmltree.CloneDeep(el)
	reverse.RemoveAttr("name")
	reverse.CreateAttr("name", reverseName)
	object.WrapNATRule(reverse).ClearBiDirectional()

	var warnings []string
	if opts.ReturnRuleAnyAny {
		xmltree.SetMembers(reverse, "from", []string{"any"})
		xmltree.SetMembers(reverse, "source", []string{"any"})
	} else {
		if opts.ZoneSwap {
			swapMembers(reverse, "from", "to")
		}
		if opts.AddressSwap {
			swapMembers(reverse, "source", "destination")
		}
	}
	warnings = append(warnings, s.swapTranslations(el, reverse)...)

	parent := el.Parent()
	if parent == nil {
		return warnings, fmt.Errorf("%w: rule '%s' has no parent", util.ErrInternal, rule.Name())
	}
	s.tree.AttachAt(parent, el.Index()+1, reverse)

	if opts.DisableOrigBidirectional {
		object.WrapNATRule(el).ClearBiDirectional()
		s.tree.Invalidate()
	}
	util.WithOperation("nat-split").Infof("split '%s' into '%s'", rule.Name(), reverseName)
	return warnings, nil
}

// swapMembers exchanges the member lists of two container tags.
func swapMembers(el *etree.Element, tagA, tagB string) {
	a := xmltree.Members(el, tagA)
	b := xmltree.Members(el, tagB)
	xmltree.SetMembers(el, tagA, b)
	xmltree.SetMembers(el, tagB, a)
}

// swapTranslations rebuilds the reverse rule's translation blocks from
// the original's. When both directions exist they swap structurally; when
// only one exists the opposite is synthesized by projecting the original
// addresses through the other form.
func (s *Splitter) swapTranslations(orig, reverse *etree.Element) []string {
	var warnings []string

	origRule := object.WrapNATRule(orig)
	st := origRule.SourceTranslation()
	dtEl := origRule.DestinationTranslation()
	if st == nil && dtEl == nil {
		return nil
	}

	stAddr := firstTranslatedAddress(st)
	dtAddr, dtPort := firstTranslatedAddress(dtEl), ""
	if dtEl != nil {
		dtPort = xmltree.ChildText(dtEl, "translated-port")
	}

	// Drop the cloned blocks; the reverse rule gets rebuilt ones.
	revRule := object.WrapNATRule(reverse)
	if el := revRule.SourceTranslation(); el != nil {
		reverse.RemoveChild(el)
	}
	if el := revRule.DestinationTranslation(); el != nil {
		reverse.RemoveChild(el)
	}

	if st != nil {
		// Original source translation becomes the reverse destination
		// translation.
		addr := stAddr
		if addr == "" {
			addr = fallbackAddress
			warnings = append(warnings,
				fmt.Sprintf("no translated address on source-translation, using %s", fallbackAddress))
		}
		newDT := reverse.CreateElement("destination-translation")
		newDT.CreateElement("translated-address").SetText(addr)
		if port := translatedPort(st); port != "" {
			newDT.CreateElement("translated-port").SetText(port)
		}
	}
	if dtEl != nil {
		// Original destination translation becomes the reverse source
		// translation, in static-ip form.
		addr := dtAddr
		if addr == "" {
			addr = fallbackAddress
			warnings = append(warnings,
				fmt.Sprintf("no translated address on destination-translation, using %s", fallbackAddress))
		}
		newST := reverse.CreateElement("source-translation")
		staticIP := newST.CreateElement("static-ip")
		staticIP.CreateElement("translated-address").SetText(addr)
		if dtPort != "" {
			warnings = append(warnings,
				fmt.Sprintf("translated-port %s has no equivalent on source-translation", dtPort))
		}
	}
	s.tree.Invalidate()
	return warnings
}

// firstTranslatedAddress finds the first translated address under a
// translation block, whether it is a text leaf or a member list.
func firstTranslatedAddress(block *etree.Element) string {
	if block == nil {
		return ""
	}
	for _, el := range block.FindElements(".//translated-address") {
		if text := strings.TrimSpace(el.Text()); text != "" {
			return text
		}
		for _, m := range el.SelectElements("member") {
			if text := strings.TrimSpace(m.Text()); text != "" {
				return text
			}
		}
	}
	return ""
}

// translatedPort finds a translated-port anywhere under a translation
// block.
func translatedPort(block *etree.Element) string {
	if block == nil {
		return ""
	}
	if el := block.FindElement(".//translated-port"); el != nil {
		return strings.TrimSpace(el.Text())
	}
	return ""
}
