package merge

import (
	"fmt"

	"github.com/beevik/etree"

	"github.com/panflow-net/panflow/pkg/panflow/adapter"
	"github.com/panflow-net/panflow/pkg/panflow/conflict"
	"github.com/panflow-net/panflow/pkg/panflow/pan"
	"github.com/panflow-net/panflow/pkg/panflow/xmltree"
	"github.com/panflow-net/panflow/pkg/util"
)

// Position places a copied rule relative to its new siblings.
type Position string

const (
	PositionTop    Position = "top"
	PositionBottom Position = "bottom"
	PositionBefore Position = "before"
	PositionAfter  Position = "after"
)

// Valid reports whether p is a recognized position.
func (p Position) Valid() bool {
	switch p {
	case PositionTop, PositionBottom, PositionBefore, PositionAfter:
		return true
	}
	return false
}

// CopyPolicy copies one rule. Position before/after requires refName; a
// missing reference rule degrades to bottom with a warning.
func (m *Merger) CopyPolicy(rk pan.RuleKind, rb pan.Rulebase, name string, srcCtx, dstCtx pan.Context, position Position, refName string, opts Options) (bool, *Summary, error) {
	sum := &Summary{}
	if !position.Valid() {
		return false, sum, fmt.Errorf("%w: unknown position %q", util.ErrInvalidArgument, position)
	}
	resolver, err := m.conflictResolver(opts)
	if err != nil {
		return false, sum, err
	}
	visited := map[visitKey]bool{}
	ok := m.copyPolicy(rk, rb, name, srcCtx, dstCtx, position, refName, opts, resolver, visited, sum)
	return ok, sum, nil
}

// CopyPolicies copies a list of rules of one kind, in order.
func (m *Merger) CopyPolicies(rk pan.RuleKind, rb pan.Rulebase, names []string, srcCtx, dstCtx pan.Context, opts Options) (*Summary, error) {
	sum := &Summary{}
	resolver, err := m.conflictResolver(opts)
	if err != nil {
		return sum, err
	}
	visited := map[visitKey]bool{}
	for _, name := range names {
		m.copyPolicy(rk, rb, name, srcCtx, dstCtx, PositionBottom, "", opts, resolver, visited, sum)
	}
	return sum, nil
}

// MergeAllPolicies copies every rule of the given kinds from the source
// context. Nil kinds means every rule kind; on Panorama every kind spans
// both pre and post rulebases.
func (m *Merger) MergeAllPolicies(kinds []pan.RuleKind, srcCtx, dstCtx pan.Context, opts Options) (*Summary, error) {
	if kinds == nil {
		kinds = pan.RuleKinds()
	}
	sum := &Summary{}
	resolver, err := m.conflictResolver(opts)
	if err != nil {
		return sum, err
	}
	visited := map[visitKey]bool{}
	for _, rk := range kinds {
		for _, rb := range pan.RulebasesFor(m.src.DeviceType) {
			path, err := m.resolver.PolicyContainerXPath(rk, rb, m.src.DeviceType, srcCtx, m.src.Version)
			if err != nil {
				continue
			}
			rules, err := m.src.Tree.FindMany(path + "/entry")
			if err != nil {
				continue
			}
			for _, rule := range rules {
				name := xmltree.EntryName(rule)
				if name == "" {
					continue
				}
				m.copyPolicy(rk, rb, name, srcCtx, dstCtx, PositionBottom, "", opts, resolver, visited, sum)
			}
		}
	}
	return sum, nil
}

// rulebaseFor maps a requested rulebase onto what the side's device type
// actually has. Firewalls collapse pre/post to the single local rulebase;
// Panorama promotes local to pre.
func rulebaseFor(rb pan.Rulebase, dt pan.DeviceType) pan.Rulebase {
	if dt == pan.Firewall {
		return pan.RulebaseLocal
	}
	if rb == pan.RulebaseLocal || rb == "" {
		return pan.RulebasePre
	}
	return rb
}

// copyPolicy is the per-rule algorithm. The rule itself is placed first;
// its references are copied afterwards so a failed reference copy never
// blocks the rule.
func (m *Merger) copyPolicy(rk pan.RuleKind, rb pan.Rulebase, name string, srcCtx, dstCtx pan.Context, position Position, refName string, opts Options, resolver *conflict.Resolver, visited map[visitKey]bool, sum *Summary) bool {
	kindLabel := "rule:" + string(rk)
	key := visitKey{kind: kindLabel, name: name}
	if visited[key] {
		return true
	}
	visited[key] = true

	srcRB := rulebaseFor(rb, m.src.DeviceType)
	dstRB := rulebaseFor(rb, m.dst.DeviceType)

	srcPath, err := m.resolver.PolicyXPath(rk, srcRB, m.src.DeviceType, srcCtx, m.src.Version, name)
	if err != nil {
		sum.addSkipped(kindLabel, name, err.Error())
		return false
	}
	srcEl, err := m.src.Tree.FindOne(srcPath)
	if err != nil {
		sum.addSkipped(kindLabel, name, err.Error())
		return false
	}
	if srcEl == nil {
		sum.addSkipped(kindLabel, name, "Not found in source")
		return false
	}

	clone := xmltree.CloneDeep(srcEl)
	finalName := name

	dstPath, err := m.resolver.PolicyXPath(rk, dstRB, m.dst.DeviceType, dstCtx, m.dst.Version, name)
	if err != nil {
		sum.addSkipped(kindLabel, name, err.Error())
		return false
	}
	target, err := m.dst.Tree.FindOne(dstPath)
	if err != nil {
		sum.addSkipped(kindLabel, name, err.Error())
		return false
	}

	merged := false
	if target != nil {
		decision, err := resolver.Resolve(kindLabel, name, clone, target)
		if err != nil {
			sum.addSkipped(kindLabel, name, err.Error())
			return false
		}
		switch decision.Outcome {
		case conflict.OutcomeSkip:
			sum.addSkipped(kindLabel, name, decision.Message)
			return false
		case conflict.OutcomeMerged:
			merged = true
		case conflict.OutcomeReplace:
			m.dst.Tree.Detach(target)
		case conflict.OutcomeRename:
			finalName = decision.Name
			clone.RemoveAttr("name")
			clone.CreateAttr("name", finalName)
		}
	}

	if !merged {
		res, err := adapter.AdaptRule(clone, rk, m.dst.Version, adapter.Options{Tolerant: opts.TolerantVersion})
		if res != nil {
			sum.Warnings = append(sum.Warnings, res.Warnings...)
		}
		if err != nil {
			sum.addSkipped(kindLabel, name, err.Error())
			return false
		}
		containerPath, err := m.resolver.PolicyContainerXPath(rk, dstRB, m.dst.DeviceType, dstCtx, m.dst.Version)
		if err != nil {
			sum.addSkipped(kindLabel, name, err.Error())
			return false
		}
		parent, err := m.dst.Tree.EnsurePath(containerPath)
		if err != nil {
			sum.addSkipped(kindLabel, name, err.Error())
			return false
		}
		m.insertRule(parent, clone, position, refName, sum)
	}
	sum.addMerged(kindLabel, finalName)
	util.WithOperation("copy-policy").Debugf("copied %s '%s' %s -> %s", rk, finalName, srcCtx, dstCtx)

	if opts.CopyReferences {
		// Phase 2: copy everything the rule names. Group members extend
		// the set through the object cascade until it stops growing.
		refOpts := opts
		refOpts.CopyReferences = true
		for _, ref := range m.srcGraph.RuleRefs(srcEl, rk, srcCtx) {
			m.copyOne(ref.Kind, ref.Name, srcCtx, dstCtx, refOpts, resolver, visited, sum)
		}
	}
	return true
}

// insertRule places the rule at the requested position among the
// container's entries. Token indices come from live siblings, so the
// insert is safe regardless of interleaved whitespace.
func (m *Merger) insertRule(parent, rule *etree.Element, position Position, refName string, sum *Summary) {
	entries := parent.SelectElements("entry")

	switch position {
	case PositionTop:
		if len(entries) == 0 {
			m.dst.Tree.Attach(parent, rule)
			return
		}
		m.dst.Tree.AttachAt(parent, entries[0].Index(), rule)
		return

	case PositionBefore, PositionAfter:
		var ref *etree.Element
		for _, e := range entries {
			if xmltree.EntryName(e) == refName {
				ref = e
				break
			}
		}
		if ref == nil {
			sum.warnf("reference rule '%s' not found, appending at bottom", refName)
			m.dst.Tree.Attach(parent, rule)
			return
		}
		idx := ref.Index()
		if position == PositionAfter {
			idx++
		}
		m.dst.Tree.AttachAt(parent, idx, rule)
		return
	}

	m.dst.Tree.Attach(parent, rule)
}
