// Package engine is the public facade over the transformation core. One
// Engine owns one configuration tree; device type and version are either
// supplied or inferred from the tree itself.
//
// An Engine is single-threaded: callers run one goroutine per tree.
package engine

import (
	"fmt"

	"github.com/beevik/etree"

	"github.com/panflow-net/panflow/pkg/panflow/dedup"
	"github.com/panflow-net/panflow/pkg/panflow/merge"
	"github.com/panflow-net/panflow/pkg/panflow/natsplit"
	"github.com/panflow-net/panflow/pkg/panflow/pan"
	"github.com/panflow-net/panflow/pkg/panflow/refgraph"
	"github.com/panflow-net/panflow/pkg/panflow/validate"
	"github.com/panflow-net/panflow/pkg/panflow/xmltree"
	"github.com/panflow-net/panflow/pkg/panflow/xpath"
	"github.com/panflow-net/panflow/pkg/util"
)

// Engine exposes the full operation surface over one tree.
type Engine struct {
	tree     *xmltree.Tree
	resolver *xpath.Resolver
	graph    *refgraph.Graph
	dt       pan.DeviceType
	version  pan.Version
}

// Option configures engine construction.
type Option func(*Engine)

// WithDeviceType pins the device type instead of inferring it.
func WithDeviceType(dt pan.DeviceType) Option {
	return func(e *Engine) { e.dt = dt }
}

// WithVersion pins the PAN-OS version instead of inferring it.
func WithVersion(v pan.Version) Option {
	return func(e *Engine) { e.version = v }
}

// New creates an Engine over a parsed tree.
func New(tree *xmltree.Tree, opts ...Option) (*Engine, error) {
	if tree == nil {
		return nil, fmt.Errorf("%w: nil tree", util.ErrInvalidArgument)
	}
	e := &Engine{tree: tree, resolver: xpath.New()}
	for _, opt := range opts {
		opt(e)
	}
	if e.dt == "" {
		e.dt = InferDeviceType(tree)
	}
	if !e.dt.Valid() {
		return nil, fmt.Errorf("%w: unknown device type %q", util.ErrInvalidArgument, e.dt)
	}
	if e.version.IsZero() {
		e.version = InferVersion(tree)
	}
	e.version = pan.ResolveVersion(e.version)
	e.graph = refgraph.New(tree, e.resolver, e.dt, e.version)
	util.WithField("device-type", string(e.dt)).Debugf("engine ready, PAN-OS %s", e.version)
	return e, nil
}

// Tree returns the underlying tree.
func (e *Engine) Tree() *xmltree.Tree { return e.tree }

// DeviceType returns the effective device type.
func (e *Engine) DeviceType() pan.DeviceType { return e.dt }

// Version returns the effective PAN-OS version.
func (e *Engine) Version() pan.Version { return e.version }

// Graph returns the reference graph over this tree.
func (e *Engine) Graph() *refgraph.Graph { return e.graph }

// Contexts enumerates the object-bearing contexts present in the tree:
// shared plus every device group (Panorama) or every vsys (firewall).
func (e *Engine) Contexts() []pan.Context {
	return e.graph.ReferencingContexts(pan.Shared())
}

// side wraps the engine as one side of a merge.
func (e *Engine) side() merge.Side {
	return merge.Side{Tree: e.tree, DeviceType: e.dt, Version: e.version}
}

// ====================================================================
// objects
// ====================================================================

// GetObjects returns every entry of a kind in a context.
func (e *Engine) GetObjects(kind pan.Kind, ctx pan.Context) ([]*etree.Element, error) {
	if err := ctx.Validate(e.dt); err != nil {
		return nil, err
	}
	path, err := e.resolver.ObjectContainerXPath(kind, e.dt, ctx, e.version)
	if err != nil {
		return nil, err
	}
	return e.tree.FindMany(path + "/entry")
}

// GetObject returns one named entry, or a NotFound error.
func (e *Engine) GetObject(kind pan.Kind, name string, ctx pan.Context) (*etree.Element, error) {
	if err := ctx.Validate(e.dt); err != nil {
		return nil, err
	}
	path, err := e.resolver.ObjectXPath(kind, e.dt, ctx, e.version, name)
	if err != nil {
		return nil, err
	}
	el, err := e.tree.FindOne(path)
	if err != nil {
		return nil, err
	}
	if el == nil {
		return nil, util.NewNotFoundError(string(kind), name, ctx.String())
	}
	return el, nil
}

// AddObject installs a new entry. The entry element must carry a name
// attribute; an occupied slot is a Conflict error.
func (e *Engine) AddObject(kind pan.Kind, ctx pan.Context, entry *etree.Element) error {
	name := xmltree.EntryName(entry)
	if name == "" {
		return fmt.Errorf("%w: entry has no name", util.ErrInvalidArgument)
	}
	if ok, errs := validate.Object(kind, entry); !ok {
		b := &util.ValidationBuilder{}
		for _, msg := range errs {
			b.AddError(msg)
		}
		return b.Build()
	}
	if existing, err := e.GetObject(kind, name, ctx); err == nil && existing != nil {
		return &util.ConflictError{Kind: string(kind), Name: name, Strategy: "add"}
	}
	containerPath, err := e.resolver.ObjectContainerXPath(kind, e.dt, ctx, e.version)
	if err != nil {
		return err
	}
	parent, err := e.tree.EnsurePath(containerPath)
	if err != nil {
		return err
	}
	e.tree.Attach(parent, entry)
	util.WithKind(string(kind)).Infof("added '%s' in %s", name, ctx)
	return nil
}

// UpdateObject replaces an existing entry with the given one.
func (e *Engine) UpdateObject(kind pan.Kind, name string, ctx pan.Context, entry *etree.Element) error {
	existing, err := e.GetObject(kind, name, ctx)
	if err != nil {
		return err
	}
	if ok, errs := validate.Object(kind, entry); !ok {
		b := &util.ValidationBuilder{}
		for _, msg := range errs {
			b.AddError(msg)
		}
		return b.Build()
	}
	parent := existing.Parent()
	if parent == nil {
		return fmt.Errorf("%w: entry '%s' has no parent", util.ErrInternal, name)
	}
	idx := existing.Index()
	if err := e.tree.Delete(existing); err != nil {
		return err
	}
	if xmltree.EntryName(entry) != name {
		entry.RemoveAttr("name")
		entry.CreateAttr("name", name)
	}
	e.tree.AttachAt(parent, idx, entry)
	return nil
}

// DeleteObject removes one entry.
func (e *Engine) DeleteObject(kind pan.Kind, name string, ctx pan.Context) error {
	el, err := e.GetObject(kind, name, ctx)
	if err != nil {
		return err
	}
	if err := e.tree.Delete(el); err != nil {
		return err
	}
	util.WithKind(string(kind)).Infof("deleted '%s' from %s", name, ctx)
	return nil
}

// FilterObjects returns the entries matching every criterion.
func (e *Engine) FilterObjects(kind pan.Kind, ctx pan.Context, criteria Criteria) ([]*etree.Element, error) {
	entries, err := e.GetObjects(kind, ctx)
	if err != nil {
		return nil, err
	}
	var out []*etree.Element
	for _, el := range entries {
		ok, err := criteria.Match(kind, el)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, el)
		}
	}
	return out, nil
}

// ====================================================================
// policies
// ====================================================================

// GetPolicies returns every rule of a kind in a context and rulebase.
func (e *Engine) GetPolicies(rk pan.RuleKind, rb pan.Rulebase, ctx pan.Context) ([]*etree.Element, error) {
	path, err := e.resolver.PolicyContainerXPath(rk, rb, e.dt, ctx, e.version)
	if err != nil {
		return nil, err
	}
	return e.tree.FindMany(path + "/entry")
}

// GetPolicy returns one named rule, or a NotFound error.
func (e *Engine) GetPolicy(rk pan.RuleKind, rb pan.Rulebase, name string, ctx pan.Context) (*etree.Element, error) {
	path, err := e.resolver.PolicyXPath(rk, rb, e.dt, ctx, e.version, name)
	if err != nil {
		return nil, err
	}
	el, err := e.tree.FindOne(path)
	if err != nil {
		return nil, err
	}
	if el == nil {
		return nil, util.NewNotFoundError("rule:"+string(rk), name, ctx.String())
	}
	return el, nil
}

// AddPolicy installs a new rule at the given position.
func (e *Engine) AddPolicy(rk pan.RuleKind, rb pan.Rulebase, ctx pan.Context, entry *etree.Element, position merge.Position, refName string) error {
	name := xmltree.EntryName(entry)
	if name == "" {
		return fmt.Errorf("%w: rule has no name", util.ErrInvalidArgument)
	}
	if existing, err := e.GetPolicy(rk, rb, name, ctx); err == nil && existing != nil {
		return &util.ConflictError{Kind: "rule:" + string(rk), Name: name, Strategy: "add"}
	}
	containerPath, err := e.resolver.PolicyContainerXPath(rk, rb, e.dt, ctx, e.version)
	if err != nil {
		return err
	}
	parent, err := e.tree.EnsurePath(containerPath)
	if err != nil {
		return err
	}
	e.placeRule(parent, entry, position, refName)
	return nil
}

// UpdatePolicy replaces an existing rule in place.
func (e *Engine) UpdatePolicy(rk pan.RuleKind, rb pan.Rulebase, name string, ctx pan.Context, entry *etree.Element) error {
	existing, err := e.GetPolicy(rk, rb, name, ctx)
	if err != nil {
		return err
	}
	parent := existing.Parent()
	idx := existing.Index()
	if err := e.tree.Delete(existing); err != nil {
		return err
	}
	if xmltree.EntryName(entry) != name {
		entry.RemoveAttr("name")
		entry.CreateAttr("name", name)
	}
	e.tree.AttachAt(parent, idx, entry)
	return nil
}

// DeletePolicy removes one rule.
func (e *Engine) DeletePolicy(rk pan.RuleKind, rb pan.Rulebase, name string, ctx pan.Context) error {
	el, err := e.GetPolicy(rk, rb, name, ctx)
	if err != nil {
		return err
	}
	return e.tree.Delete(el)
}

// MovePolicy repositions an existing rule within its rulebase.
func (e *Engine) MovePolicy(rk pan.RuleKind, rb pan.Rulebase, name string, ctx pan.Context, position merge.Position, refName string) error {
	el, err := e.GetPolicy(rk, rb, name, ctx)
	if err != nil {
		return err
	}
	parent := el.Parent()
	if parent == nil {
		return fmt.Errorf("%w: rule '%s' has no parent", util.ErrInternal, name)
	}
	e.tree.Detach(el)
	e.placeRule(parent, el, position, refName)
	return nil
}

// ClonePolicy duplicates a rule under a new name, placed directly after
// the original.
func (e *Engine) ClonePolicy(rk pan.RuleKind, rb pan.Rulebase, name, newName string, ctx pan.Context) error {
	el, err := e.GetPolicy(rk, rb, name, ctx)
	if err != nil {
		return err
	}
	if existing, err := e.GetPolicy(rk, rb, newName, ctx); err == nil && existing != nil {
		return &util.ConflictError{Kind: "rule:" + string(rk), Name: newName, Strategy: "clone"}
	}
	clone := xmltree.CloneDeep(el)
	clone.RemoveAttr("name")
	clone.CreateAttr("name", newName)
	e.tree.AttachAt(el.Parent(), el.Index()+1, clone)
	return nil
}

// placeRule inserts a rule at the requested position among siblings.
func (e *Engine) placeRule(parent, rule *etree.Element, position merge.Position, refName string) {
	entries := parent.SelectElements("entry")
	switch position {
	case merge.PositionTop:
		if len(entries) > 0 {
			e.tree.AttachAt(parent, entries[0].Index(), rule)
			return
		}
	case merge.PositionBefore, merge.PositionAfter:
		for _, sibling := range entries {
			if xmltree.EntryName(sibling) == refName {
				idx := sibling.Index()
				if position == merge.PositionAfter {
					idx++
				}
				e.tree.AttachAt(parent, idx, rule)
				return
			}
		}
		util.Warnf("reference rule '%s' not found, appending at bottom", refName)
	}
	e.tree.Attach(parent, rule)
}

// ====================================================================
// merge, dedup, split
// ====================================================================

// MergeObject copies one object between contexts of this tree.
func (e *Engine) MergeObject(kind pan.Kind, name string, srcCtx, dstCtx pan.Context, opts merge.Options) (bool, *merge.Summary, error) {
	return merge.New(e.side(), e.side()).CopyObject(kind, name, srcCtx, dstCtx, opts)
}

// MergePolicy copies one rule between contexts of this tree.
func (e *Engine) MergePolicy(rk pan.RuleKind, rb pan.Rulebase, name string, srcCtx, dstCtx pan.Context, position merge.Position, refName string, opts merge.Options) (bool, *merge.Summary, error) {
	return merge.New(e.side(), e.side()).CopyPolicy(rk, rb, name, srcCtx, dstCtx, position, refName, opts)
}

// MergeAll copies every object kind and, when includePolicies, every
// rule kind from one context to another.
func (e *Engine) MergeAll(srcCtx, dstCtx pan.Context, includePolicies bool, opts merge.Options) (*merge.Summary, error) {
	m := merge.New(e.side(), e.side())
	sum, err := m.MergeAllObjects(nil, srcCtx, dstCtx, opts)
	if err != nil {
		return sum, err
	}
	if includePolicies {
		polSum, err := m.MergeAllPolicies(nil, srcCtx, dstCtx, opts)
		if polSum != nil {
			sum.Merged = append(sum.Merged, polSum.Merged...)
			sum.Skipped = append(sum.Skipped, polSum.Skipped...)
			sum.Warnings = append(sum.Warnings, polSum.Warnings...)
		}
		if err != nil {
			return sum, err
		}
	}
	return sum, nil
}

// MergeFrom copies from another engine's tree into this one.
func (e *Engine) MergeFrom(src *Engine) *merge.Merger {
	return merge.New(src.side(), e.side())
}

// Deduplicate collapses value-equivalent objects of one kind.
func (e *Engine) Deduplicate(kind pan.Kind, ctx pan.Context, strategy dedup.Strategy, dryRun, validateRefs bool) (*dedup.Result, error) {
	return dedup.New(e.tree, e.dt, e.version).Deduplicate(kind, ctx, strategy, dryRun, validateRefs)
}

// SplitBidirectionalNAT splits one named NAT rule.
func (e *Engine) SplitBidirectionalNAT(name string, ctx pan.Context, rb pan.Rulebase, opts natsplit.Options) ([]string, error) {
	return natsplit.New(e.tree, e.dt, e.version).SplitRule(name, ctx, rb, opts)
}

// SplitAllBidirectionalNAT splits every bidirectional NAT rule in the
// context.
func (e *Engine) SplitAllBidirectionalNAT(ctx pan.Context, rb pan.Rulebase, opts natsplit.Options) (*natsplit.BatchResult, error) {
	return natsplit.New(e.tree, e.dt, e.version).SplitAll(ctx, rb, opts)
}

// ValidateObject runs the structural checks on one existing object.
func (e *Engine) ValidateObject(kind pan.Kind, name string, ctx pan.Context) (bool, []string, error) {
	el, err := e.GetObject(kind, name, ctx)
	if err != nil {
		return false, nil, err
	}
	ok, errs := validate.Object(kind, el)
	return ok, errs, nil
}
