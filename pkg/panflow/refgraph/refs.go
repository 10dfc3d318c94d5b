package refgraph

import (
	"strings"

	"github.com/beevik/etree"

	"github.com/panflow-net/panflow/pkg/panflow/object"
	"github.com/panflow-net/panflow/pkg/panflow/pan"
	"github.com/panflow-net/panflow/pkg/panflow/xmltree"
	"github.com/panflow-net/panflow/pkg/util"
)

// DependsOn returns the entities the named object references, per the
// kind's dependency shape. The element is located through the visibility
// chain from ctx.
func (g *Graph) DependsOn(kind pan.Kind, name string, ctx pan.Context) ([]Ref, error) {
	el, foundCtx := g.Lookup(kind, name, ctx)
	if el == nil {
		return nil, util.NewNotFoundError(string(kind), name, ctx.String())
	}
	return g.dependsOnElement(el, kind, foundCtx), nil
}

func (g *Graph) dependsOnElement(el *etree.Element, kind pan.Kind, ctx pan.Context) []Ref {
	var refs []Ref
	add := func(k pan.Kind, names ...string) {
		for _, n := range names {
			if n != "" && n != "any" {
				refs = append(refs, Ref{Kind: k, Name: n})
			}
		}
	}

	// Tag members are a dependency for every taggable kind.
	add(pan.KindTag, xmltree.Members(el, "tag")...)

	switch kind {
	case pan.KindAddressGroup:
		group := object.WrapAddressGroup(el)
		if group.IsStatic() {
			for _, member := range group.StaticMembers() {
				add(g.classifyMember(member, ctx, pan.KindAddress, pan.KindAddressGroup, pan.KindExternalList), member)
			}
		}
		if group.IsDynamic() {
			add(pan.KindTag, FilterTags(group.DynamicFilter())...)
		}
	case pan.KindServiceGroup:
		for _, member := range object.WrapServiceGroup(el).Members() {
			add(g.classifyMember(member, ctx, pan.KindService, pan.KindServiceGroup), member)
		}
	case pan.KindApplicationGroup:
		for _, member := range xmltree.Members(el, "members") {
			add(g.classifyMember(member, ctx, pan.KindApplication, pan.KindApplicationGroup), member)
		}
	case pan.KindProfileGroup:
		pg := object.WrapProfileGroup(el)
		for _, profKind := range pan.ProfileKinds() {
			add(profKind, pg.ProfileMembers(string(profKind))...)
		}
	case pan.KindURLCategory:
		cat := object.WrapURLCategory(el)
		if strings.EqualFold(cat.Type(), "URL List") {
			for _, member := range cat.ListMembers() {
				if found, _ := g.Lookup(pan.KindExternalList, member, ctx); found != nil {
					add(pan.KindExternalList, member)
				}
			}
		}
	case pan.KindURLFilteringProfile:
		for _, field := range []string{"block", "alert", "allow", "continue", "override"} {
			for _, member := range xmltree.Members(el, field) {
				if found, _ := g.Lookup(pan.KindURLCategory, member, ctx); found != nil {
					add(pan.KindURLCategory, member)
				}
			}
		}
	case pan.KindDynamicUserGroup:
		add(pan.KindTag, FilterTags(xmltree.ChildText(el, "filter"))...)
	}

	// Security-profile application exceptions reference custom apps.
	if kind.IsProfile() {
		for _, appEntry := range el.FindElements(".//application/entry") {
			appName := xmltree.EntryName(appEntry)
			if found, _ := g.Lookup(pan.KindApplication, appName, ctx); found != nil {
				add(pan.KindApplication, appName)
			}
		}
	}

	return dedupeRefs(refs)
}

// RuleDependsOn returns the objects a rule references, per the fixed
// per-kind projection list.
func (g *Graph) RuleDependsOn(rk pan.RuleKind, rb pan.Rulebase, name string, ctx pan.Context) ([]Ref, error) {
	path, err := g.resolver.PolicyXPath(rk, rb, g.dt, ctx, g.version, name)
	if err != nil {
		return nil, err
	}
	el, err := g.tree.FindOne(path)
	if err != nil {
		return nil, err
	}
	if el == nil {
		return nil, util.NewNotFoundError("rule:"+string(rk), name, ctx.String())
	}
	return g.ruleRefsElement(el, rk, ctx), nil
}

// RuleRefs collects the object references out of an already-located rule
// element. Callers that walk a rulebase themselves use this to avoid a
// second lookup per rule.
func (g *Graph) RuleRefs(el *etree.Element, rk pan.RuleKind, ctx pan.Context) []Ref {
	return g.ruleRefsElement(el, rk, ctx)
}

// ruleRefsElement collects every object reference out of a rule entry.
func (g *Graph) ruleRefsElement(el *etree.Element, rk pan.RuleKind, ctx pan.Context) []Ref {
	var refs []Ref
	add := func(k pan.Kind, names ...string) {
		for _, n := range names {
			if n != "" && n != "any" && n != "application-default" {
				refs = append(refs, Ref{Kind: k, Name: n})
			}
		}
	}

	classifyAddr := func(names []string) {
		for _, n := range names {
			if n == "" || n == "any" {
				continue
			}
			add(g.classifyMember(n, ctx, pan.KindAddress, pan.KindAddressGroup, pan.KindExternalList, pan.KindRegion), n)
		}
	}

	classifyAddr(xmltree.Members(el, "source"))
	classifyAddr(xmltree.Members(el, "destination"))

	for _, svc := range xmltree.Members(el, "service") {
		if svc == "" || svc == "any" || svc == "application-default" {
			continue
		}
		add(g.classifyMember(svc, ctx, pan.KindService, pan.KindServiceGroup), svc)
	}
	// NAT carries service as a single text child, not a member list.
	if rk == pan.RuleNAT {
		if svc := xmltree.ChildText(el, "service"); svc != "" && svc != "any" {
			add(g.classifyMember(svc, ctx, pan.KindService, pan.KindServiceGroup), svc)
		}
		for _, ta := range el.FindElements(".//translated-address") {
			classifyAddr([]string{strings.TrimSpace(ta.Text())})
			classifyAddr(xmltree.Members(ta.Parent(), "translated-address"))
		}
	}

	// Predefined applications (web-browsing, ssl, ...) live in content
	// updates, not in the configuration; only members that resolve to a
	// custom application or group are dependencies.
	for _, app := range xmltree.Members(el, "application") {
		if app == "any" || app == "application-default" {
			continue
		}
		if kind, ok := g.resolveMember(app, ctx, pan.KindApplication, pan.KindApplicationGroup); ok {
			add(kind, app)
		}
	}
	add(pan.KindTag, xmltree.Members(el, "tag")...)

	if rk == pan.RuleSecurity {
		rule := object.WrapSecurityRule(el)
		add(pan.KindSchedule, rule.Schedule())
		for _, cat := range rule.Categories() {
			if found, _ := g.Lookup(pan.KindURLCategory, cat, ctx); found != nil {
				add(pan.KindURLCategory, cat)
			}
		}
		add(pan.KindProfileGroup, rule.ProfileGroupNames()...)
		for profKind, names := range rule.IndividualProfiles() {
			add(profKind, names...)
		}
	}
	if rk == pan.RuleDecryption || rk == pan.RulePBF || rk == pan.RuleQoS {
		if sched := xmltree.ChildText(el, "schedule"); sched != "" {
			add(pan.KindSchedule, sched)
		}
	}

	return dedupeRefs(refs)
}

// ReferencedBy scans every context that may legally reference (kind,
// name, ctx) and returns the referring entities.
func (g *Graph) ReferencedBy(kind pan.Kind, name string, ctx pan.Context) ([]RefBy, error) {
	var out []RefBy
	for _, scanCtx := range g.ReferencingContexts(ctx) {
		out = append(out, g.scanObjects(kind, name, scanCtx)...)
		out = append(out, g.scanRules(kind, name, scanCtx)...)
	}
	return out, nil
}

// scanObjects finds object-to-object references to name in one context.
func (g *Graph) scanObjects(kind pan.Kind, name string, scanCtx pan.Context) []RefBy {
	var out []RefBy
	record := func(refKind pan.Kind, refName, field string) {
		out = append(out, RefBy{RefKind: string(refKind), Name: refName, Context: scanCtx, Field: field})
	}

	switch kind {
	case pan.KindAddress, pan.KindAddressGroup, pan.KindExternalList:
		for _, el := range g.entries(pan.KindAddressGroup, scanCtx) {
			if xmltree.ContainsMember(el, "static", name) {
				record(pan.KindAddressGroup, xmltree.EntryName(el), "static")
			}
		}
	case pan.KindService, pan.KindServiceGroup:
		for _, el := range g.entries(pan.KindServiceGroup, scanCtx) {
			if xmltree.ContainsMember(el, "members", name) {
				record(pan.KindServiceGroup, xmltree.EntryName(el), "members")
			}
		}
	case pan.KindApplication, pan.KindApplicationGroup:
		for _, el := range g.entries(pan.KindApplicationGroup, scanCtx) {
			if xmltree.ContainsMember(el, "members", name) {
				record(pan.KindApplicationGroup, xmltree.EntryName(el), "members")
			}
		}
	case pan.KindTag:
		for _, taggable := range []pan.Kind{pan.KindAddress, pan.KindAddressGroup, pan.KindService, pan.KindServiceGroup} {
			for _, el := range g.entries(taggable, scanCtx) {
				if xmltree.ContainsMember(el, "tag", name) {
					record(taggable, xmltree.EntryName(el), "tag")
				}
			}
		}
		for _, el := range g.entries(pan.KindAddressGroup, scanCtx) {
			group := object.WrapAddressGroup(el)
			if group.IsDynamic() && memberOf(name, FilterTags(group.DynamicFilter())) {
				record(pan.KindAddressGroup, group.Name(), "dynamic.filter")
			}
		}
	case pan.KindURLCategory:
		for _, el := range g.entries(pan.KindURLFilteringProfile, scanCtx) {
			for _, field := range []string{"block", "alert", "allow", "continue", "override"} {
				if xmltree.ContainsMember(el, field, name) {
					record(pan.KindURLFilteringProfile, xmltree.EntryName(el), field)
				}
			}
		}
	}

	if kind.IsProfile() {
		for _, el := range g.entries(pan.KindProfileGroup, scanCtx) {
			if xmltree.ContainsMember(el, string(kind), name) {
				record(pan.KindProfileGroup, xmltree.EntryName(el), string(kind))
			}
		}
	}
	return out
}

// scanRules finds rule references to name in one context, across every
// rulebase legal for the device type.
func (g *Graph) scanRules(kind pan.Kind, name string, scanCtx pan.Context) []RefBy {
	var out []RefBy
	for _, rb := range pan.RulebasesFor(g.dt) {
		for _, rk := range pan.RuleKinds() {
			path, err := g.resolver.PolicyContainerXPath(rk, rb, g.dt, scanCtx, g.version)
			if err != nil {
				continue
			}
			rules, err := g.tree.FindMany(path + "/entry")
			if err != nil {
				continue
			}
			for _, rule := range rules {
				for _, field := range ruleFieldsFor(kind, rk) {
					if ruleFieldContains(rule, field, name) {
						out = append(out, RefBy{
							RefKind: "rule:" + string(rk), Name: xmltree.EntryName(rule),
							Context: scanCtx, Rulebase: rb, Field: field,
						})
					}
				}
			}
		}
	}
	return out
}

// ruleFieldsFor returns the rule fields that may hold a reference to the
// given object kind. The predicate set per kind is fixed.
func ruleFieldsFor(kind pan.Kind, rk pan.RuleKind) []string {
	switch {
	case kind == pan.KindAddress || kind == pan.KindAddressGroup ||
		kind == pan.KindExternalList || kind == pan.KindRegion:
		if rk == pan.RuleNAT {
			return []string{"source", "destination", "translated-address"}
		}
		return []string{"source", "destination"}
	case kind == pan.KindService || kind == pan.KindServiceGroup:
		return []string{"service"}
	case kind == pan.KindApplication || kind == pan.KindApplicationGroup:
		return []string{"application"}
	case kind == pan.KindTag:
		return []string{"tag"}
	case kind == pan.KindSchedule:
		if rk == pan.RuleSecurity || rk == pan.RulePBF || rk == pan.RuleDecryption || rk == pan.RuleQoS {
			return []string{"schedule"}
		}
		return nil
	case kind == pan.KindURLCategory:
		if rk == pan.RuleSecurity || rk == pan.RuleDecryption {
			return []string{"category"}
		}
		return nil
	case kind == pan.KindProfileGroup:
		if rk == pan.RuleSecurity {
			return []string{"profile-setting/group"}
		}
		return nil
	case kind.IsProfile():
		if rk == pan.RuleSecurity {
			return []string{"profile-setting/profiles/" + string(kind)}
		}
		return nil
	}
	return nil
}

// ruleFieldContains checks one projection field of a rule for name.
// Member lists, nested member lists, and single-text fields are all
// handled.
func ruleFieldContains(rule *etree.Element, field, name string) bool {
	switch {
	case strings.Contains(field, "/"):
		parts := strings.Split(field, "/")
		cur := rule
		for _, p := range parts[:len(parts)-1] {
			if cur = cur.SelectElement(p); cur == nil {
				return false
			}
		}
		return xmltree.ContainsMember(cur, parts[len(parts)-1], name)
	case field == "schedule" || field == "translated-address":
		for _, el := range rule.FindElements(".//" + field) {
			if strings.TrimSpace(el.Text()) == name {
				return true
			}
			if memberOf(name, xmltree.Members(el.Parent(), field)) {
				return true
			}
		}
		return false
	default:
		return xmltree.ContainsMember(rule, field, name)
	}
}

// entries returns the entry elements of a kind's container in one
// context; resolver errors (kind not available there) yield nil.
func (g *Graph) entries(kind pan.Kind, ctx pan.Context) []*etree.Element {
	path, err := g.resolver.ObjectContainerXPath(kind, g.dt, ctx, g.version)
	if err != nil {
		return nil
	}
	els, err := g.tree.FindMany(path + "/entry")
	if err != nil {
		return nil
	}
	return els
}

// FilterTags extracts the tag names from a dynamic address-group filter
// expression such as `'web' and ('prod' or 'dmz')`. Quoted tokens are
// tags; bare tokens are tags unless they are boolean operators.
func FilterTags(filter string) []string {
	var tags []string
	var current strings.Builder
	var quote byte

	flushBare := func() {
		token := strings.TrimSpace(current.String())
		current.Reset()
		if token == "" {
			return
		}
		switch strings.ToLower(token) {
		case "and", "or", "not":
			return
		}
		tags = append(tags, token)
	}

	for i := 0; i < len(filter); i++ {
		c := filter[i]
		if quote != 0 {
			if c == quote {
				tags = append(tags, current.String())
				current.Reset()
				quote = 0
			} else {
				current.WriteByte(c)
			}
			continue
		}
		switch c {
		case '\'', '"':
			flushBare()
			quote = c
		case '(', ')', ' ', '\t', '\n':
			flushBare()
		default:
			current.WriteByte(c)
		}
	}
	flushBare()

	return uniqueStrings(tags)
}

func dedupeRefs(refs []Ref) []Ref {
	seen := make(map[Ref]bool, len(refs))
	out := refs[:0]
	for _, r := range refs {
		if !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
	}
	return out
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func memberOf(name string, list []string) bool {
	for _, s := range list {
		if s == name {
			return true
		}
	}
	return false
}
