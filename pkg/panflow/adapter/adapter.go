// Package adapter rewrites entry elements so they are legal for a target
// PAN-OS version. Removals, required-element checks, and default synthesis
// are driven entirely by the attribute catalog; the one conversion that is
// not element presence (tag color names) is hard-coded here.
package adapter

import (
	"fmt"
	"regexp"

	"github.com/beevik/etree"

	"github.com/panflow-net/panflow/pkg/panflow/object"
	"github.com/panflow-net/panflow/pkg/panflow/pan"
	"github.com/panflow-net/panflow/pkg/panflow/xmltree"
	"github.com/panflow-net/panflow/pkg/util"
)

// Result reports what an adaptation did: elements removed because the
// target does not support them, and elements synthesized from catalog
// defaults.
type Result struct {
	Removed     []string
	Synthesized []string
	Warnings    []string
}

// Options controls adaptation behavior.
type Options struct {
	// Tolerant downgrades missing-required-attribute failures to
	// warnings instead of failing the copy.
	Tolerant bool
}

// AdaptObject transforms an object entry in place for the target version.
func AdaptObject(el *etree.Element, kind pan.Kind, target pan.Version, opts Options) (*Result, error) {
	res := &Result{}
	target = pan.ResolveVersion(target)
	if err := applyCatalog(el, string(kind), object.ObjectAttrs(kind), target, opts, res); err != nil {
		return res, err
	}
	if kind == pan.KindTag {
		adaptTagColor(el, target, res)
	}
	return res, nil
}

// AdaptRule transforms a rule entry in place for the target version.
func AdaptRule(el *etree.Element, rk pan.RuleKind, target pan.Version, opts Options) (*Result, error) {
	res := &Result{}
	target = pan.ResolveVersion(target)
	if err := applyCatalog(el, string(rk), object.RuleAttrs(rk), target, opts, res); err != nil {
		return res, err
	}
	return res, nil
}

// applyCatalog removes unsupported elements and checks required ones.
// Elements are matched by tag at any depth under the entry; several
// version-sensitive elements are nested inside option or translation
// blocks.
func applyCatalog(el *etree.Element, kindLabel string, attrs map[string]object.AttrSpec, target pan.Version, opts Options, res *Result) error {
	name := xmltree.EntryName(el)
	for tag, spec := range attrs {
		// A scoped spec binds to a named ancestor block (NAT fallback
		// lives in dynamic-ip-and-port). Entries without the block are
		// out of the spec's reach entirely: nothing to remove, nothing
		// to require.
		scope := el
		if spec.Within != "" {
			scope = el.FindElement(".//" + spec.Within)
			if scope == nil {
				continue
			}
		}
		present := findByTag(scope, tag)
		switch {
		case len(present) > 0 && !spec.SupportedIn(target):
			for _, match := range present {
				if parent := match.Parent(); parent != nil {
					parent.RemoveChild(match)
				}
			}
			res.Removed = append(res.Removed, tag)
		case len(present) == 0 && spec.RequiredIn(target):
			if spec.Default != "" {
				scope.CreateElement(tag).SetText(spec.Default)
				res.Synthesized = append(res.Synthesized, tag)
				continue
			}
			if opts.Tolerant {
				res.Warnings = append(res.Warnings,
					fmt.Sprintf("missing required attribute '%s' for PAN-OS %s", tag, target))
				continue
			}
			return &util.VersionError{Kind: kindLabel, Name: name, Attribute: tag, Target: target.String()}
		}
	}
	return nil
}

// findByTag returns every descendant element with the given tag.
func findByTag(el *etree.Element, tag string) []*etree.Element {
	return el.FindElements(".//" + tag)
}

var numericColor = regexp.MustCompile(`^color([1-9]|[12][0-9]|3[0-2])$`)

// adaptTagColor converts named colors to numeric codes when the target
// predates named-color support. Unknown names get the default code.
func adaptTagColor(el *etree.Element, target pan.Version, res *Result) {
	if target.AtLeast(object.NamedColorsFrom) {
		return
	}
	colorEl := el.SelectElement("color")
	if colorEl == nil {
		return
	}
	color := colorEl.Text()
	if color == "" || numericColor.MatchString(color) {
		return
	}
	code, ok := object.TagColorNames[color]
	if !ok {
		code = object.DefaultColorCode
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("unknown color name %q mapped to %s", color, code))
	}
	colorEl.SetText(code)
}
