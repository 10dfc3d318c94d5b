package engine

import (
	"fmt"
	"net/netip"
	"sort"
	"strings"

	"github.com/gaissmai/bart"

	"github.com/panflow-net/panflow/pkg/panflow/dedup"
	"github.com/panflow-net/panflow/pkg/panflow/object"
	"github.com/panflow-net/panflow/pkg/panflow/pan"
	"github.com/panflow-net/panflow/pkg/panflow/refgraph"
	"github.com/panflow-net/panflow/pkg/panflow/xmltree"
)

// UnusedObjects returns the names of objects of one kind that nothing in
// their reachability scope references.
func (e *Engine) UnusedObjects(kind pan.Kind, ctx pan.Context) ([]string, error) {
	entries, err := e.GetObjects(kind, ctx)
	if err != nil {
		return nil, err
	}
	var unused []string
	for _, el := range entries {
		name := xmltree.EntryName(el)
		if name == "" {
			continue
		}
		ok, err := e.graph.IsUnused(kind, name, ctx)
		if err != nil {
			return nil, err
		}
		if ok {
			unused = append(unused, name)
		}
	}
	return unused, nil
}

// DuplicateObjects returns the value-equivalence classes with more than
// one member, keyed by canonical value.
func (e *Engine) DuplicateObjects(kind pan.Kind, ctx pan.Context) (map[string][]string, error) {
	plan, err := dedup.New(e.tree, e.dt, e.version).Plan(kind, ctx, dedup.First)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]string, len(plan.Classes))
	for _, class := range plan.Classes {
		out[class.Key] = append([]string{class.Primary}, class.Duplicates...)
	}
	return out, nil
}

// CoverageEntry summarizes one rulebase slice in the coverage report.
type CoverageEntry struct {
	Context  string
	Rulebase string
	RuleKind string
	Total    int
	Disabled int
	// AnyAny counts security rules with any source, destination,
	// service, and application.
	AnyAny int
	// NoLog counts security rules without log-end or a log setting.
	NoLog int
}

// RuleCoverage walks every context and rulebase and summarizes rule
// counts, disabled rules, and risky security rules.
func (e *Engine) RuleCoverage() ([]CoverageEntry, error) {
	var out []CoverageEntry
	for _, ctx := range e.Contexts() {
		for _, rb := range pan.RulebasesFor(e.dt) {
			for _, rk := range pan.RuleKinds() {
				rules, err := e.GetPolicies(rk, rb, ctx)
				if err != nil || len(rules) == 0 {
					continue
				}
				entry := CoverageEntry{
					Context:  ctx.String(),
					Rulebase: string(rb),
					RuleKind: string(rk),
					Total:    len(rules),
				}
				for _, rule := range rules {
					if xmltree.ChildText(rule, "disabled") == "yes" {
						entry.Disabled++
					}
					if rk == pan.RuleSecurity {
						sec := object.WrapSecurityRule(rule)
						if isAnyOnly(sec.Sources()) && isAnyOnly(sec.Destinations()) &&
							isAnyOnly(sec.Services()) && isAnyOnly(sec.Applications()) {
							entry.AnyAny++
						}
						if sec.LogSetting() == "" && xmltree.ChildText(rule, "log-end") != "yes" {
							entry.NoLog++
						}
					}
				}
				out = append(out, entry)
			}
		}
	}
	return out, nil
}

func isAnyOnly(members []string) bool {
	if len(members) == 0 {
		return true
	}
	return len(members) == 1 && (members[0] == "any" || members[0] == "application-default")
}

// ReferenceReport is the two-directional reference picture of one object.
type ReferenceReport struct {
	DependsOn    []refgraph.Ref
	ReferencedBy []refgraph.RefBy
	// Dangling lists forward references that resolve nowhere.
	Dangling []refgraph.Ref
}

// ReferenceCheck reports what one object references and what references
// it, flagging dangling names.
func (e *Engine) ReferenceCheck(kind pan.Kind, name string, ctx pan.Context) (*ReferenceReport, error) {
	deps, err := e.graph.DependsOn(kind, name, ctx)
	if err != nil {
		return nil, err
	}
	refs, err := e.graph.ReferencedBy(kind, name, ctx)
	if err != nil {
		return nil, err
	}
	report := &ReferenceReport{DependsOn: deps, ReferencedBy: refs}
	for _, dep := range deps {
		if el, _ := e.graph.Lookup(dep.Kind, dep.Name, ctx); el == nil {
			report.Dangling = append(report.Dangling, dep)
		}
	}
	return report, nil
}

// HitCountReport classifies rules by observed hit counts.
type HitCountReport struct {
	Total   int
	Hit     int
	ZeroHit []string
	// Unknown lists rules absent from the input sample.
	Unknown []string
}

// HitCountAnalysis classifies the security rules of one context against
// an externally collected name-to-hits sample.
func (e *Engine) HitCountAnalysis(ctx pan.Context, rb pan.Rulebase, hits map[string]int) (*HitCountReport, error) {
	rules, err := e.GetPolicies(pan.RuleSecurity, rb, ctx)
	if err != nil {
		return nil, err
	}
	report := &HitCountReport{}
	for _, rule := range rules {
		name := xmltree.EntryName(rule)
		if name == "" {
			continue
		}
		report.Total++
		count, sampled := hits[name]
		switch {
		case !sampled:
			report.Unknown = append(report.Unknown, name)
		case count == 0:
			report.ZeroHit = append(report.ZeroHit, name)
		default:
			report.Hit++
		}
	}
	return report, nil
}

// Overlap is one pair of address objects whose prefixes nest or collide.
type Overlap struct {
	Name    string
	Prefix  string
	Covers  string // the name of the covering object
	Covered string // its prefix
}

// AddressOverlaps finds address objects whose ip-netmask prefixes are
// contained in another object's prefix. Range and FQDN addresses are not
// comparable and are skipped.
func (e *Engine) AddressOverlaps(ctx pan.Context) ([]Overlap, error) {
	entries, err := e.GetObjects(pan.KindAddress, ctx)
	if err != nil {
		return nil, err
	}

	table := &bart.Table[string]{}
	type prefixed struct {
		name   string
		prefix netip.Prefix
	}
	var candidates []prefixed
	for _, el := range entries {
		addr := object.WrapAddress(el)
		if addr.Type() != object.IPNetmask {
			continue
		}
		value := addr.Value()
		prefix, err := netip.ParsePrefix(value)
		if err != nil {
			if a, aerr := netip.ParseAddr(value); aerr == nil {
				prefix = netip.PrefixFrom(a, a.BitLen())
			} else {
				continue
			}
		}
		prefix = prefix.Masked()
		candidates = append(candidates, prefixed{name: addr.Name(), prefix: prefix})
		table.Insert(prefix, addr.Name())
	}

	var overlaps []Overlap
	for _, c := range candidates {
		table.Delete(c.prefix)
		if coverName, coverPrefix, ok := lookupCover(table, c.prefix); ok {
			overlaps = append(overlaps, Overlap{
				Name: c.name, Prefix: c.prefix.String(),
				Covers: coverName, Covered: coverPrefix,
			})
		}
		table.Insert(c.prefix, c.name)
	}
	sort.Slice(overlaps, func(i, j int) bool { return overlaps[i].Name < overlaps[j].Name })
	return overlaps, nil
}

// lookupCover finds the longest prefix in the table covering p.
func lookupCover(table *bart.Table[string], p netip.Prefix) (string, string, bool) {
	covering, name, ok := table.LookupPrefixLPM(p)
	if !ok {
		return "", "", false
	}
	return name, covering.String(), true
}

// FormatSummaryLine renders a one-line count summary for batch reports.
func FormatSummaryLine(merged, skipped int, warnings []string) string {
	line := fmt.Sprintf("merged=%d skipped=%d", merged, skipped)
	if len(warnings) > 0 {
		line += " warnings=" + strings.Join(warnings, "; ")
	}
	return line
}
