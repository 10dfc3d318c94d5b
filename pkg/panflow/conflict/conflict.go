// Package conflict decides what happens when a copy lands on an occupied
// target slot. Strategies are pluggable per call; the engine default is
// skip. The resolver never attaches or detaches elements itself; it
// mutates the target in place for the merge strategy and otherwise tells
// the caller how to proceed.
package conflict

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"

	"github.com/panflow-net/panflow/pkg/panflow/object"
	"github.com/panflow-net/panflow/pkg/panflow/pan"
	"github.com/panflow-net/panflow/pkg/panflow/xmltree"
	"github.com/panflow-net/panflow/pkg/util"
)

// Strategy names a conflict resolution behavior.
type Strategy string

const (
	Skip        Strategy = "skip"
	Overwrite   Strategy = "overwrite"
	KeepSource  Strategy = "keep_source" // alias for Overwrite
	KeepTarget  Strategy = "keep_target"
	Merge       Strategy = "merge"
	Rename      Strategy = "rename"
	KeepNewer   Strategy = "keep_newer"
	Interactive Strategy = "interactive"
)

// DefaultStrategy is the engine-wide default.
const DefaultStrategy = Skip

// DefaultRenameSuffix is appended to the source name under the rename
// strategy when no suffix is configured.
const DefaultRenameSuffix = "_imported"

// Valid reports whether s is a recognized strategy.
func (s Strategy) Valid() bool {
	switch s {
	case Skip, Overwrite, KeepSource, KeepTarget, Merge, Rename, KeepNewer, Interactive:
		return true
	}
	return false
}

// Strategies lists the recognized strategy names.
func Strategies() []Strategy {
	return []Strategy{Skip, Overwrite, KeepSource, KeepTarget, Merge, Rename, KeepNewer, Interactive}
}

// Outcome is what the caller should do after resolution.
type Outcome int

const (
	// OutcomeSkip leaves the target untouched; the copy does not happen.
	OutcomeSkip Outcome = iota
	// OutcomeReplace removes the target and attaches the source copy.
	OutcomeReplace
	// OutcomeMerged means the target was updated in place; the source
	// copy must not be attached.
	OutcomeMerged
	// OutcomeRename attaches the source copy under Decision.Name.
	OutcomeRename
)

// Decision is the result of resolving one conflict.
type Decision struct {
	Outcome Outcome
	// Name is the final entry name; differs from the original only for
	// OutcomeRename.
	Name    string
	Message string
}

// Proceed reports whether the caller still has an attach to perform.
func (d Decision) Proceed() bool {
	return d.Outcome == OutcomeReplace || d.Outcome == OutcomeRename
}

// PromptFunc answers an interactive conflict question with a strategy.
// The returned strategy must not be Interactive.
type PromptFunc func(kind, name string) (Strategy, error)

// Resolver applies a strategy to occupied target slots.
type Resolver struct {
	tree         *xmltree.Tree
	strategy     Strategy
	renameSuffix string

	// Prompt, when set, services the interactive strategy. When nil,
	// interactive logs a warning and falls back to the default strategy.
	Prompt PromptFunc
}

// New creates a Resolver over the tree holding the target elements. An
// empty strategy means the engine default; an empty suffix means the
// default rename suffix.
func New(tree *xmltree.Tree, strategy Strategy, renameSuffix string) (*Resolver, error) {
	if strategy == "" {
		strategy = DefaultStrategy
	}
	if !strategy.Valid() {
		return nil, fmt.Errorf("%w: unknown conflict strategy %q", util.ErrInvalidArgument, strategy)
	}
	if renameSuffix == "" {
		renameSuffix = DefaultRenameSuffix
	}
	return &Resolver{tree: tree, strategy: strategy, renameSuffix: renameSuffix}, nil
}

// Strategy returns the resolver's configured strategy.
func (r *Resolver) Strategy() Strategy { return r.strategy }

// Resolve decides what to do about source wanting the slot target holds.
// source is the detached copy the caller intends to attach; target is the
// live element already in the tree. kind labels the entity for messages
// and for the merge strategy's type-specific unions.
func (r *Resolver) Resolve(kind, name string, source, target *etree.Element) (Decision, error) {
	return r.resolveWith(r.strategy, kind, name, source, target)
}

func (r *Resolver) resolveWith(strategy Strategy, kind, name string, source, target *etree.Element) (Decision, error) {
	switch strategy {
	case Skip:
		return Decision{Outcome: OutcomeSkip, Name: name,
			Message: fmt.Sprintf("%s '%s' already exists in target", kind, name)}, nil

	case Overwrite, KeepSource:
		return Decision{Outcome: OutcomeReplace, Name: name}, nil

	case KeepTarget:
		return Decision{Outcome: OutcomeSkip, Name: name,
			Message: fmt.Sprintf("%s '%s' kept from target", kind, name)}, nil

	case Merge:
		if err := r.mergeInto(kind, target, source); err != nil {
			return Decision{}, err
		}
		return Decision{Outcome: OutcomeMerged, Name: name}, nil

	case Rename:
		return Decision{Outcome: OutcomeRename, Name: name + r.renameSuffix,
			Message: fmt.Sprintf("%s '%s' copied as '%s'", kind, name, name+r.renameSuffix)}, nil

	case KeepNewer:
		srcMod := xmltree.ChildText(source, "last-modified")
		dstMod := xmltree.ChildText(target, "last-modified")
		if srcMod == "" || dstMod == "" {
			return r.resolveWith(Overwrite, kind, name, source, target)
		}
		// Timestamps compare lexically (RFC 3339 or epoch seconds).
		if strings.Compare(srcMod, dstMod) > 0 {
			return Decision{Outcome: OutcomeReplace, Name: name}, nil
		}
		return Decision{Outcome: OutcomeSkip, Name: name,
			Message: fmt.Sprintf("%s '%s' target is newer", kind, name)}, nil

	case Interactive:
		if r.Prompt == nil {
			util.Warnf("no prompt available for interactive conflict on %s '%s', using %s", kind, name, DefaultStrategy)
			return r.resolveWith(DefaultStrategy, kind, name, source, target)
		}
		chosen, err := r.Prompt(kind, name)
		if err != nil {
			return Decision{}, err
		}
		if chosen == Interactive || !chosen.Valid() {
			return Decision{}, fmt.Errorf("%w: prompt returned strategy %q", util.ErrInvalidArgument, chosen)
		}
		return r.resolveWith(chosen, kind, name, source, target)
	}
	return Decision{}, fmt.Errorf("%w: unknown conflict strategy %q", util.ErrInvalidArgument, strategy)
}

// mergeInto unions source into target. Group membership and filters get
// type-specific treatment; everything else goes through the generic
// element merge with overwrite.
func (r *Resolver) mergeInto(kind string, target, source *etree.Element) error {
	switch pan.Kind(kind) {
	case pan.KindAddressGroup:
		src, dst := object.WrapAddressGroup(source), object.WrapAddressGroup(target)
		if src.IsStatic() && dst.IsStatic() {
			members := dst.StaticMembers()
			for _, m := range src.StaticMembers() {
				if !containsString(members, m) {
					members = append(members, m)
				}
			}
			dst.SetStaticMembers(members)
			mergeTagMembers(target, source)
			return nil
		}
		if src.IsDynamic() && dst.IsDynamic() {
			sf, df := src.DynamicFilter(), dst.DynamicFilter()
			if sf != "" && sf != df {
				dst.SetDynamicFilter(fmt.Sprintf("(%s) and (%s)", df, sf))
			}
			mergeTagMembers(target, source)
			return nil
		}
		// Static vs dynamic cannot union; the forms are exclusive.
		return fmt.Errorf("%w: cannot merge static and dynamic address groups", util.ErrConflict)

	case pan.KindServiceGroup:
		members := xmltree.Members(target, "members")
		for _, m := range xmltree.Members(source, "members") {
			if !containsString(members, m) {
				members = append(members, m)
			}
		}
		xmltree.SetMembers(target, "members", members)
		mergeTagMembers(target, source)
		return nil

	case pan.KindTag:
		src, dst := object.WrapTag(source), object.WrapTag(target)
		if dst.Color() == "" && src.Color() != "" {
			dst.SetColor(src.Color())
		}
		if dst.Comments() == "" && src.Comments() != "" {
			xmltree.SetChildText(target, "comments", src.Comments())
		}
		return nil
	}

	return r.tree.Merge(target, source, true)
}

// mergeTagMembers unions the tag member list of source into target.
func mergeTagMembers(target, source *etree.Element) {
	srcTags := xmltree.Members(source, "tag")
	if len(srcTags) == 0 {
		return
	}
	tags := xmltree.Members(target, "tag")
	for _, t := range srcTags {
		if !containsString(tags, t) {
			tags = append(tags, t)
		}
	}
	xmltree.SetMembers(target, "tag", tags)
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
