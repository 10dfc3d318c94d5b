package merge

import (
	"strings"

	"github.com/panflow-net/panflow/pkg/panflow/adapter"
	"github.com/panflow-net/panflow/pkg/panflow/conflict"
	"github.com/panflow-net/panflow/pkg/panflow/pan"
	"github.com/panflow-net/panflow/pkg/panflow/validate"
	"github.com/panflow-net/panflow/pkg/panflow/xmltree"
	"github.com/panflow-net/panflow/pkg/util"
)

// CopyObject copies one object from the source context to the destination
// context. Returns whether the object itself was copied (cascaded
// references count separately, in the summary).
func (m *Merger) CopyObject(kind pan.Kind, name string, srcCtx, dstCtx pan.Context, opts Options) (bool, *Summary, error) {
	sum := &Summary{}
	resolver, err := m.conflictResolver(opts)
	if err != nil {
		return false, sum, err
	}
	visited := map[visitKey]bool{}
	var ok bool
	if opts.CopyWithDependencies {
		ok = m.copyWithDependencies(kind, name, srcCtx, dstCtx, opts, resolver, visited, sum)
	} else {
		ok = m.copyOne(kind, name, srcCtx, dstCtx, opts, resolver, visited, sum)
	}
	return ok, sum, nil
}

// CopyObjects copies a list of names of one kind.
func (m *Merger) CopyObjects(kind pan.Kind, names []string, srcCtx, dstCtx pan.Context, opts Options) (*Summary, error) {
	sum := &Summary{}
	resolver, err := m.conflictResolver(opts)
	if err != nil {
		return sum, err
	}
	visited := map[visitKey]bool{}
	for _, name := range names {
		if opts.CopyWithDependencies {
			m.copyWithDependencies(kind, name, srcCtx, dstCtx, opts, resolver, visited, sum)
		} else {
			m.copyOne(kind, name, srcCtx, dstCtx, opts, resolver, visited, sum)
		}
	}
	return sum, nil
}

// CopyObjectWithDependencies copies the object's forward dependency
// closure first, then the object, then optionally its referrers.
func (m *Merger) CopyObjectWithDependencies(kind pan.Kind, name string, srcCtx, dstCtx pan.Context, opts Options) (bool, *Summary, error) {
	opts.CopyWithDependencies = true
	return m.CopyObject(kind, name, srcCtx, dstCtx, opts)
}

// MergeAllObjects copies every object of the given kinds found in the
// source context. Nil kinds means every known object kind.
func (m *Merger) MergeAllObjects(kinds []pan.Kind, srcCtx, dstCtx pan.Context, opts Options) (*Summary, error) {
	if kinds == nil {
		kinds = pan.ObjectKinds()
	}
	sum := &Summary{}
	resolver, err := m.conflictResolver(opts)
	if err != nil {
		return sum, err
	}
	visited := map[visitKey]bool{}
	for _, kind := range kinds {
		path, err := m.resolver.ObjectContainerXPath(kind, m.src.DeviceType, srcCtx, m.src.Version)
		if err != nil {
			continue
		}
		entries, err := m.src.Tree.FindMany(path + "/entry")
		if err != nil {
			continue
		}
		for _, entry := range entries {
			name := xmltree.EntryName(entry)
			if name == "" {
				continue
			}
			m.copyOne(kind, name, srcCtx, dstCtx, opts, resolver, visited, sum)
		}
	}
	return sum, nil
}

// copyOne is the single-object algorithm. Every outcome is recorded in
// the summary; the return value reports whether the named object landed
// in (or was merged into) the destination.
func (m *Merger) copyOne(kind pan.Kind, name string, srcCtx, dstCtx pan.Context, opts Options, resolver *conflict.Resolver, visited map[visitKey]bool, sum *Summary) bool {
	key := visitKey{kind: string(kind), name: name}
	if visited[key] {
		return true
	}
	visited[key] = true

	if name == "" || !kind.Valid() {
		sum.addSkipped(string(kind), name, "invalid kind or empty name")
		return false
	}
	if err := srcCtx.Validate(m.src.DeviceType); err != nil {
		sum.addSkipped(string(kind), name, "invalid source context: "+err.Error())
		return false
	}
	if err := dstCtx.Validate(m.dst.DeviceType); err != nil {
		sum.addSkipped(string(kind), name, "invalid destination context: "+err.Error())
		return false
	}

	srcPath, err := m.resolver.ObjectXPath(kind, m.src.DeviceType, srcCtx, m.src.Version, name)
	if err != nil {
		sum.addSkipped(string(kind), name, err.Error())
		return false
	}
	srcEl, err := m.src.Tree.FindOne(srcPath)
	if err != nil {
		sum.addSkipped(string(kind), name, err.Error())
		return false
	}
	if srcEl == nil {
		sum.addSkipped(string(kind), name, "Not found in source")
		return false
	}

	if opts.Validate {
		if ok, errs := validate.Object(kind, srcEl); !ok {
			sum.addSkipped(string(kind), name, "validation failed: "+strings.Join(errs, "; "))
			return false
		}
	}

	clone := xmltree.CloneDeep(srcEl)
	finalName := name

	dstPath, err := m.resolver.ObjectXPath(kind, m.dst.DeviceType, dstCtx, m.dst.Version, name)
	if err != nil {
		sum.addSkipped(string(kind), name, err.Error())
		return false
	}
	target, err := m.dst.Tree.FindOne(dstPath)
	if err != nil {
		sum.addSkipped(string(kind), name, err.Error())
		return false
	}

	merged := false
	if target != nil {
		decision, err := resolver.Resolve(string(kind), name, clone, target)
		if err != nil {
			sum.addSkipped(string(kind), name, err.Error())
			return false
		}
		switch decision.Outcome {
		case conflict.OutcomeSkip:
			sum.addSkipped(string(kind), name, decision.Message)
			return false
		case conflict.OutcomeMerged:
			merged = true
		case conflict.OutcomeReplace:
			m.dst.Tree.Detach(target)
		case conflict.OutcomeRename:
			finalName = decision.Name
			renamedPath, err := m.resolver.ObjectXPath(kind, m.dst.DeviceType, dstCtx, m.dst.Version, finalName)
			if err == nil {
				if existing, _ := m.dst.Tree.FindOne(renamedPath); existing != nil {
					sum.addSkipped(string(kind), name, "renamed target '"+finalName+"' also exists")
					return false
				}
			}
			clone.RemoveAttr("name")
			clone.CreateAttr("name", finalName)
			if decision.Message != "" {
				sum.warnf("%s", decision.Message)
			}
		}
	}

	if !merged {
		res, err := adapter.AdaptObject(clone, kind, m.dst.Version, adapter.Options{Tolerant: opts.TolerantVersion})
		if res != nil {
			sum.Warnings = append(sum.Warnings, res.Warnings...)
		}
		if err != nil {
			sum.addSkipped(string(kind), name, err.Error())
			return false
		}
		containerPath, err := m.resolver.ObjectContainerXPath(kind, m.dst.DeviceType, dstCtx, m.dst.Version)
		if err != nil {
			sum.addSkipped(string(kind), name, err.Error())
			return false
		}
		parent, err := m.dst.Tree.EnsurePath(containerPath)
		if err != nil {
			sum.addSkipped(string(kind), name, err.Error())
			return false
		}
		m.dst.Tree.Attach(parent, clone)
	}
	sum.addMerged(string(kind), finalName)
	util.WithKind(string(kind)).Debugf("copied '%s' %s -> %s", finalName, srcCtx, dstCtx)

	// Tag cascade runs unconditionally; a copied object must never carry
	// tags the destination cannot resolve.
	tagOpts := opts
	tagOpts.CopyReferences = false
	for _, tagName := range xmltree.Members(srcEl, "tag") {
		m.copyOne(pan.KindTag, tagName, srcCtx, dstCtx, tagOpts, resolver, visited, sum)
	}

	if opts.CopyReferences {
		m.cascadeReferences(kind, name, srcCtx, dstCtx, opts, resolver, visited, sum)
	}
	return true
}

// cascadeReferences copies the objects the source entity references,
// depth-first. The visited set shared across the call terminates cycles
// between groups.
func (m *Merger) cascadeReferences(kind pan.Kind, name string, srcCtx, dstCtx pan.Context, opts Options, resolver *conflict.Resolver, visited map[visitKey]bool, sum *Summary) {
	refs, err := m.srcGraph.DependsOn(kind, name, srcCtx)
	if err != nil {
		sum.warnf("reference scan for %s '%s' failed: %v", kind, name, err)
		return
	}
	for _, ref := range refs {
		if ref.Kind == pan.KindTag {
			// Already handled by the tag cascade.
			continue
		}
		m.copyOne(ref.Kind, ref.Name, srcCtx, dstCtx, opts, resolver, visited, sum)
	}
}

// copyWithDependencies copies the forward dependency closure first, then
// the entity, then the reverse references when requested.
func (m *Merger) copyWithDependencies(kind pan.Kind, name string, srcCtx, dstCtx pan.Context, opts Options, resolver *conflict.Resolver, visited map[visitKey]bool, sum *Summary) bool {
	depOpts := opts
	depOpts.CopyReferences = false
	depOpts.CopyWithDependencies = false
	m.copyDependencyClosure(kind, name, srcCtx, dstCtx, depOpts, resolver, visited, map[visitKey]bool{}, sum)

	selfOpts := opts
	selfOpts.CopyWithDependencies = false
	ok := m.copyOne(kind, name, srcCtx, dstCtx, selfOpts, resolver, visited, sum)

	if ok && opts.IncludeReferencedBy {
		refs, err := m.srcGraph.ReferencedBy(kind, name, srcCtx)
		if err != nil {
			sum.warnf("referrer scan for %s '%s' failed: %v", kind, name, err)
			return ok
		}
		for _, ref := range refs {
			if strings.HasPrefix(ref.RefKind, "rule:") {
				if !opts.IncludePolicies {
					continue
				}
				rk := pan.RuleKind(strings.TrimPrefix(ref.RefKind, "rule:"))
				m.copyPolicy(rk, ref.Rulebase, ref.Name, ref.Context, dstCtx, PositionBottom, "", depOpts, resolver, visited, sum)
				continue
			}
			m.copyOne(pan.Kind(ref.RefKind), ref.Name, ref.Context, dstCtx, depOpts, resolver, visited, sum)
		}
	}
	return ok
}

// copyDependencyClosure walks depends_on depth-first and copies leaves
// before the entities that need them. seen guards the walk itself; the
// shared visited set guards the copies.
func (m *Merger) copyDependencyClosure(kind pan.Kind, name string, srcCtx, dstCtx pan.Context, opts Options, resolver *conflict.Resolver, visited, seen map[visitKey]bool, sum *Summary) {
	key := visitKey{kind: string(kind), name: name}
	if seen[key] {
		return
	}
	seen[key] = true
	refs, err := m.srcGraph.DependsOn(kind, name, srcCtx)
	if err != nil {
		return
	}
	for _, ref := range refs {
		m.copyDependencyClosure(ref.Kind, ref.Name, srcCtx, dstCtx, opts, resolver, visited, seen, sum)
		m.copyOne(ref.Kind, ref.Name, srcCtx, dstCtx, opts, resolver, visited, sum)
	}
}
