// Package refgraph answers who-references-whom questions over a
// configuration tree. The graph is computed lazily per query; nothing is
// materialized up front. Panorama reachability is first-class: an object
// in shared is visible everywhere, an object in a device group is visible
// in that group and its descendants.
package refgraph

import (
	"github.com/beevik/etree"

	"github.com/panflow-net/panflow/pkg/panflow/pan"
	"github.com/panflow-net/panflow/pkg/panflow/xmltree"
	"github.com/panflow-net/panflow/pkg/panflow/xpath"
)

// Ref is a forward reference: the entity (kind, name) something depends
// on.
type Ref struct {
	Kind pan.Kind
	Name string
}

// RefBy is a reverse reference: the entity that refers to the queried
// name, where it lives, and through which field.
type RefBy struct {
	RefKind  string // object kind, or "rule:<rule-kind>"
	Name     string
	Context  pan.Context
	Rulebase pan.Rulebase // set for rule references
	Field    string
}

// Graph evaluates reference queries against one tree.
type Graph struct {
	tree     *xmltree.Tree
	resolver *xpath.Resolver
	dt       pan.DeviceType
	version  pan.Version
}

// New creates a Graph over the given tree.
func New(tree *xmltree.Tree, resolver *xpath.Resolver, dt pan.DeviceType, version pan.Version) *Graph {
	return &Graph{tree: tree, resolver: resolver, dt: dt, version: version}
}

const localhostEntry = "/config/devices/entry[@name='localhost.localdomain']"

// DeviceGroups returns the device-group names present in the tree.
func (g *Graph) DeviceGroups() []string {
	els, err := g.tree.FindMany(localhostEntry + "/device-group/entry")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(els))
	for _, el := range els {
		if name := xmltree.EntryName(el); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// parentOf returns the parent device group of dg, or "" when the parent
// is shared. The hierarchy is declared by the optional parent-dg element
// of the device-group entry.
func (g *Graph) parentOf(dg string) string {
	text, err := g.tree.TextOf(localhostEntry + "/device-group/entry[@name='" + dg + "']/parent-dg")
	if err != nil {
		return ""
	}
	return text
}

// isAncestor reports whether ancestor is on dg's parent chain (shared is
// everyone's ancestor and is handled by the callers).
func (g *Graph) isAncestor(ancestor, dg string) bool {
	seen := map[string]bool{}
	for cur := g.parentOf(dg); cur != "" && !seen[cur]; cur = g.parentOf(cur) {
		if cur == ancestor {
			return true
		}
		seen[cur] = true
	}
	return false
}

// VisibleFrom returns the contexts whose objects are visible from ctx:
// ctx itself, its ancestor device groups, and shared. This is the lookup
// chain for resolving a name referenced in ctx.
func (g *Graph) VisibleFrom(ctx pan.Context) []pan.Context {
	contexts := []pan.Context{ctx}
	if ctx.Type == pan.CtxDeviceGroup {
		seen := map[string]bool{ctx.Name: true}
		for cur := g.parentOf(ctx.Name); cur != "" && !seen[cur]; cur = g.parentOf(cur) {
			contexts = append(contexts, pan.DeviceGroup(cur))
			seen[cur] = true
		}
	}
	if ctx.Type != pan.CtxShared {
		contexts = append(contexts, pan.Shared())
	}
	return contexts
}

// ReferencingContexts returns the contexts from which references to an
// object in ctx are legal: ctx itself plus, for shared, every device
// group or vsys, and for a device group, its descendants.
func (g *Graph) ReferencingContexts(ctx pan.Context) []pan.Context {
	contexts := []pan.Context{ctx}
	switch {
	case ctx.Type == pan.CtxShared && g.dt == pan.Panorama:
		for _, dg := range g.DeviceGroups() {
			contexts = append(contexts, pan.DeviceGroup(dg))
		}
	case ctx.Type == pan.CtxShared && g.dt == pan.Firewall:
		for _, vsys := range g.vsysNames() {
			contexts = append(contexts, pan.Vsys(vsys))
		}
	case ctx.Type == pan.CtxDeviceGroup:
		for _, dg := range g.DeviceGroups() {
			if dg != ctx.Name && g.isAncestor(ctx.Name, dg) {
				contexts = append(contexts, pan.DeviceGroup(dg))
			}
		}
	}
	return contexts
}

func (g *Graph) vsysNames() []string {
	els, err := g.tree.FindMany(localhostEntry + "/vsys/entry")
	if err != nil {
		return nil
	}
	var names []string
	for _, el := range els {
		if name := xmltree.EntryName(el); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// Lookup finds the element for (kind, name) following the visibility
// chain from ctx. Returns the element and the context it was found in,
// or nil.
func (g *Graph) Lookup(kind pan.Kind, name string, ctx pan.Context) (*etree.Element, pan.Context) {
	for _, c := range g.VisibleFrom(ctx) {
		path, err := g.resolver.ObjectXPath(kind, g.dt, c, g.version, name)
		if err != nil {
			continue
		}
		el, err := g.tree.FindOne(path)
		if err == nil && el != nil {
			return el, c
		}
	}
	return nil, pan.Context{}
}

// classifyMember resolves a member name against an ordered list of
// candidate kinds and returns the first kind under which it exists,
// searching the visibility chain. Falls back to the first candidate when
// the name resolves nowhere (dangling references keep their most likely
// kind).
func (g *Graph) classifyMember(name string, ctx pan.Context, candidates ...pan.Kind) pan.Kind {
	for _, kind := range candidates {
		if el, _ := g.Lookup(kind, name, ctx); el != nil {
			return kind
		}
	}
	return candidates[0]
}

// resolveMember is classifyMember without the dangling fallback: it
// returns the kind under which the name actually exists, or false when it
// resolves nowhere. Used where unresolvable names must be dropped rather
// than kept, such as predefined applications that have no entry in the
// configuration.
func (g *Graph) resolveMember(name string, ctx pan.Context, candidates ...pan.Kind) (pan.Kind, bool) {
	if name == "" {
		return "", false
	}
	for _, kind := range candidates {
		if el, _ := g.Lookup(kind, name, ctx); el != nil {
			return kind, true
		}
	}
	return "", false
}

// IsUnused reports whether nothing in the object's reachability scope
// references it.
func (g *Graph) IsUnused(kind pan.Kind, name string, ctx pan.Context) (bool, error) {
	refs, err := g.ReferencedBy(kind, name, ctx)
	if err != nil {
		return false, err
	}
	return len(refs) == 0, nil
}
