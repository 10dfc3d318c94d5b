// Package dedup collapses value-equivalent objects within one context.
// Equivalence is decided by a canonical value key per kind; one member of
// each class survives as primary and every reference to the others is
// rewritten to it.
package dedup

import (
	"fmt"
	"net/netip"
	"sort"
	"strings"

	"github.com/beevik/etree"

	"github.com/panflow-net/panflow/pkg/panflow/object"
	"github.com/panflow-net/panflow/pkg/panflow/pan"
	"github.com/panflow-net/panflow/pkg/panflow/refgraph"
	"github.com/panflow-net/panflow/pkg/panflow/xmltree"
	"github.com/panflow-net/panflow/pkg/panflow/xpath"
	"github.com/panflow-net/panflow/pkg/util"
)

// Strategy picks the surviving primary of an equivalence class.
type Strategy string

const (
	// First keeps the first encountered name (document order).
	First Strategy = "first"
	// Shortest keeps the shortest name, ties broken alphabetically.
	Shortest Strategy = "shortest"
	// Longest keeps the longest name, ties broken alphabetically.
	Longest Strategy = "longest"
	// Alphabetical keeps the alphabetically first name.
	Alphabetical Strategy = "alphabetical"
)

// Valid reports whether s is a recognized strategy.
func (s Strategy) Valid() bool {
	switch s {
	case First, Shortest, Longest, Alphabetical:
		return true
	}
	return false
}

// dedupableKinds are the kinds with a defined value key.
var dedupableKinds = map[pan.Kind]bool{
	pan.KindAddress:      true,
	pan.KindService:      true,
	pan.KindTag:          true,
	pan.KindAddressGroup: true,
	pan.KindServiceGroup: true,
}

// Class is one set of value-equivalent objects.
type Class struct {
	Key        string
	Primary    string
	Duplicates []string // names merged into Primary
}

// Result reports what a deduplication did (or would do, for a dry run).
type Result struct {
	Classes []Class
	// Mapping is duplicate name -> primary name.
	Mapping map[string]string
	// Removed counts deleted entries; zero for a dry run.
	Removed int
	// RewrittenRefs counts reference rewrites; zero for a dry run.
	RewrittenRefs int
}

// Deduper finds and collapses duplicates over one tree.
type Deduper struct {
	tree     *xmltree.Tree
	resolver *xpath.Resolver
	graph    *refgraph.Graph
	dt       pan.DeviceType
	version  pan.Version
}

// New creates a Deduper.
func New(tree *xmltree.Tree, dt pan.DeviceType, version pan.Version) *Deduper {
	resolver := xpath.New()
	version = pan.ResolveVersion(version)
	return &Deduper{
		tree:     tree,
		resolver: resolver,
		graph:    refgraph.New(tree, resolver, dt, version),
		dt:       dt,
		version:  version,
	}
}

// Deduplicate finds duplicates of one kind in one context and, unless
// dryRun, collapses them. With validate set, the apply phase checks that
// no reference to a removed name survives.
func (d *Deduper) Deduplicate(kind pan.Kind, ctx pan.Context, strategy Strategy, dryRun, validate bool) (*Result, error) {
	res, err := d.Plan(kind, ctx, strategy)
	if err != nil {
		return nil, err
	}
	if dryRun {
		return res, nil
	}
	if err := d.apply(kind, ctx, res, validate); err != nil {
		return res, err
	}
	return res, nil
}

// Plan computes the equivalence classes and primary choices without
// mutating anything.
func (d *Deduper) Plan(kind pan.Kind, ctx pan.Context, strategy Strategy) (*Result, error) {
	if !dedupableKinds[kind] {
		return nil, fmt.Errorf("%w: no value key defined for kind %q", util.ErrInvalidArgument, kind)
	}
	if strategy == "" {
		strategy = First
	}
	if !strategy.Valid() {
		return nil, fmt.Errorf("%w: unknown dedup strategy %q", util.ErrInvalidArgument, strategy)
	}
	if err := ctx.Validate(d.dt); err != nil {
		return nil, err
	}

	containerPath, err := d.resolver.ObjectContainerXPath(kind, d.dt, ctx, d.version)
	if err != nil {
		return nil, err
	}
	entries, err := d.tree.FindMany(containerPath + "/entry")
	if err != nil {
		return nil, err
	}

	byKey := map[string][]string{}
	var keyOrder []string
	for _, el := range entries {
		name := xmltree.EntryName(el)
		if name == "" {
			continue
		}
		key, ok := valueKey(kind, el)
		if !ok {
			continue
		}
		if _, seen := byKey[key]; !seen {
			keyOrder = append(keyOrder, key)
		}
		byKey[key] = append(byKey[key], name)
	}

	res := &Result{Mapping: map[string]string{}}
	for _, key := range keyOrder {
		names := byKey[key]
		if len(names) < 2 {
			continue
		}
		primary := choosePrimary(names, strategy)
		class := Class{Key: key, Primary: primary}
		for _, n := range names {
			if n != primary {
				class.Duplicates = append(class.Duplicates, n)
				res.Mapping[n] = primary
			}
		}
		res.Classes = append(res.Classes, class)
	}
	return res, nil
}

// apply deletes the duplicates and rewrites every reference to them.
func (d *Deduper) apply(kind pan.Kind, ctx pan.Context, res *Result, validate bool) error {
	for _, class := range res.Classes {
		for _, dup := range class.Duplicates {
			res.RewrittenRefs += d.graph.RewriteReferences(kind, dup, class.Primary, ctx)
			path, err := d.resolver.ObjectXPath(kind, d.dt, ctx, d.version, dup)
			if err != nil {
				return err
			}
			el, err := d.tree.FindOne(path)
			if err != nil {
				return err
			}
			if el == nil {
				continue
			}
			if err := d.tree.Delete(el); err != nil {
				return err
			}
			res.Removed++
			util.WithKind(string(kind)).Debugf("removed duplicate '%s' (kept '%s')", dup, class.Primary)
		}
	}
	d.tree.Invalidate()

	if validate {
		for dup := range res.Mapping {
			refs, err := d.graph.ReferencedBy(kind, dup, ctx)
			if err != nil {
				return err
			}
			if len(refs) > 0 {
				return fmt.Errorf("%w: %d references still point at removed %s '%s'",
					util.ErrInternal, len(refs), kind, dup)
			}
		}
	}
	return nil
}

// choosePrimary applies the strategy; names arrive in document order.
func choosePrimary(names []string, strategy Strategy) string {
	switch strategy {
	case First:
		return names[0]
	case Alphabetical:
		sorted := append([]string(nil), names...)
		sort.Strings(sorted)
		return sorted[0]
	case Shortest, Longest:
		sorted := append([]string(nil), names...)
		sort.Slice(sorted, func(i, j int) bool {
			if len(sorted[i]) != len(sorted[j]) {
				if strategy == Shortest {
					return len(sorted[i]) < len(sorted[j])
				}
				return len(sorted[i]) > len(sorted[j])
			}
			return sorted[i] < sorted[j]
		})
		return sorted[0]
	}
	return names[0]
}

// ====================================================================
// value keys
// ====================================================================

// valueKey derives the canonical equivalence key for one entry. The
// second return is false when the entry has no comparable value (for
// example a dynamic address group).
func valueKey(kind pan.Kind, el *etree.Element) (string, bool) {
	switch kind {
	case pan.KindAddress:
		addr := object.WrapAddress(el)
		value := addr.Value()
		if value == "" {
			return "", false
		}
		return string(addr.Type()) + "|" + canonicalAddressValue(addr.Type(), value), true

	case pan.KindService:
		svc := object.WrapService(el)
		if svc.Protocol() == "" {
			return "", false
		}
		return svc.Protocol() + "|" + canonicalPorts(svc.Port()) + "|" + canonicalPorts(svc.SourcePort()), true

	case pan.KindTag:
		tag := object.WrapTag(el)
		return tag.Color() + "|" + tag.Comments(), true

	case pan.KindAddressGroup:
		group := object.WrapAddressGroup(el)
		if !group.IsStatic() {
			return "", false
		}
		return memberKey(group.StaticMembers()), true

	case pan.KindServiceGroup:
		return memberKey(object.WrapServiceGroup(el).Members()), true
	}
	return "", false
}

// canonicalAddressValue normalizes an address value so that equivalent
// spellings compare equal: netmasks to masked prefix form, range
// endpoints ordered, FQDNs lower-cased.
func canonicalAddressValue(t object.AddressType, value string) string {
	switch t {
	case object.IPNetmask:
		if p, err := netip.ParsePrefix(value); err == nil {
			return p.Masked().String()
		}
		if a, err := netip.ParseAddr(value); err == nil {
			return netip.PrefixFrom(a, a.BitLen()).String()
		}
		return value
	case object.IPRange:
		lo, hi, ok := strings.Cut(value, "-")
		if !ok {
			return value
		}
		a, err1 := netip.ParseAddr(strings.TrimSpace(lo))
		z, err2 := netip.ParseAddr(strings.TrimSpace(hi))
		if err1 != nil || err2 != nil {
			return value
		}
		if z.Compare(a) < 0 {
			a, z = z, a
		}
		return a.String() + "-" + z.String()
	case object.FQDN:
		return strings.ToLower(strings.TrimSpace(value))
	}
	return strings.TrimSpace(value)
}

// canonicalPorts normalizes a comma-separated port spec: parts trimmed,
// degenerate ranges collapsed, parts sorted.
func canonicalPorts(spec string) string {
	if spec == "" {
		return ""
	}
	parts := strings.Split(spec, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if lo, hi, ok := strings.Cut(p, "-"); ok {
			lo, hi = strings.TrimSpace(lo), strings.TrimSpace(hi)
			if lo == hi {
				p = lo
			} else {
				p = lo + "-" + hi
			}
		}
		if p != "" {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return strings.Join(out, ",")
}

// memberKey is the sorted member-name tuple of a static group.
func memberKey(members []string) string {
	sorted := append([]string(nil), members...)
	sort.Strings(sorted)
	return strings.Join(sorted, "|")
}
