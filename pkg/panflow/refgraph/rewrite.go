package refgraph

import (
	"strings"

	"github.com/beevik/etree"

	"github.com/panflow-net/panflow/pkg/panflow/pan"
	"github.com/panflow-net/panflow/pkg/panflow/xmltree"
)

// RewriteReferences renames every reference to (kind, oldName) reachable
// from ctx to newName, in both object member lists and rule fields. The
// projection lists mirror ReferencedBy exactly, so nothing ReferencedBy
// reports survives a rewrite. Returns the number of rewrites.
func (g *Graph) RewriteReferences(kind pan.Kind, oldName, newName string, ctx pan.Context) int {
	count := 0
	for _, scanCtx := range g.ReferencingContexts(ctx) {
		count += g.rewriteObjects(kind, oldName, newName, scanCtx)
		count += g.rewriteRules(kind, oldName, newName, scanCtx)
	}
	if count > 0 {
		g.tree.Invalidate()
	}
	return count
}

func (g *Graph) rewriteObjects(kind pan.Kind, oldName, newName string, scanCtx pan.Context) int {
	count := 0
	switch kind {
	case pan.KindAddress, pan.KindAddressGroup, pan.KindExternalList:
		for _, el := range g.entries(pan.KindAddressGroup, scanCtx) {
			count += xmltree.ReplaceMember(el, "static", oldName, newName)
		}
	case pan.KindService, pan.KindServiceGroup:
		for _, el := range g.entries(pan.KindServiceGroup, scanCtx) {
			count += xmltree.ReplaceMember(el, "members", oldName, newName)
		}
	case pan.KindApplication, pan.KindApplicationGroup:
		for _, el := range g.entries(pan.KindApplicationGroup, scanCtx) {
			count += xmltree.ReplaceMember(el, "members", oldName, newName)
		}
	case pan.KindTag:
		for _, taggable := range []pan.Kind{pan.KindAddress, pan.KindAddressGroup, pan.KindService, pan.KindServiceGroup} {
			for _, el := range g.entries(taggable, scanCtx) {
				count += xmltree.ReplaceMember(el, "tag", oldName, newName)
			}
		}
	case pan.KindURLCategory:
		for _, el := range g.entries(pan.KindURLFilteringProfile, scanCtx) {
			for _, field := range []string{"block", "alert", "allow", "continue", "override"} {
				count += xmltree.ReplaceMember(el, field, oldName, newName)
			}
		}
	}
	if kind.IsProfile() {
		for _, el := range g.entries(pan.KindProfileGroup, scanCtx) {
			count += xmltree.ReplaceMember(el, string(kind), oldName, newName)
		}
	}
	return count
}

func (g *Graph) rewriteRules(kind pan.Kind, oldName, newName string, scanCtx pan.Context) int {
	count := 0
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
					count += rewriteRuleField(rule, field, oldName, newName)
				}
			}
		}
	}
	return count
}

// rewriteRuleField rewrites one projection field, covering member lists,
// nested member containers, and single-text fields.
func rewriteRuleField(rule *etree.Element, field, oldName, newName string) int {
	switch {
	case strings.Contains(field, "/"):
		parts := strings.Split(field, "/")
		cur := rule
		for _, p := range parts[:len(parts)-1] {
			if cur = cur.SelectElement(p); cur == nil {
				return 0
			}
		}
		return xmltree.ReplaceMember(cur, parts[len(parts)-1], oldName, newName)
	case field == "schedule":
		if el := rule.SelectElement("schedule"); el != nil && strings.TrimSpace(el.Text()) == oldName {
			el.SetText(newName)
			return 1
		}
		return 0
	case field == "translated-address":
		count := 0
		for _, el := range rule.FindElements(".//translated-address") {
			if strings.TrimSpace(el.Text()) == oldName {
				el.SetText(newName)
				count++
			}
			for _, m := range el.SelectElements("member") {
				if strings.TrimSpace(m.Text()) == oldName {
					m.SetText(newName)
					count++
				}
			}
		}
		return count
	default:
		count := xmltree.ReplaceMember(rule, field, oldName, newName)
		// NAT service is a single text child rather than a member list.
		if field == "service" && count == 0 {
			if el := rule.SelectElement("service"); el != nil && len(el.ChildElements()) == 0 &&
				strings.TrimSpace(el.Text()) == oldName {
				el.SetText(newName)
				count = 1
			}
		}
		return count
	}
}
