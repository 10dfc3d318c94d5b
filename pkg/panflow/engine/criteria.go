package engine

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"

	"github.com/panflow-net/panflow/pkg/panflow/object"
	"github.com/panflow-net/panflow/pkg/panflow/pan"
	"github.com/panflow-net/panflow/pkg/panflow/xmltree"
	"github.com/panflow-net/panflow/pkg/util"
)

// Criteria filters candidate entries. Each key is one of:
//
//   - a plain field name, matched by equality against the child's text
//     or by membership when the field is a member list;
//   - "has-tag", matched against the entry's tag members;
//   - "value", matched against the kind's primary value;
//   - "xpath:<path>", a raw path evaluated against the entry, satisfied
//     when it resolves.
//
// Values may be a single string or a list; a list matches when any
// element does. All criteria must hold for an entry to match.
type Criteria map[string]interface{}

// Match reports whether el satisfies every criterion.
func (c Criteria) Match(kind pan.Kind, el *etree.Element) (bool, error) {
	for key, raw := range c {
		wanted, err := criterionValues(raw)
		if err != nil {
			return false, fmt.Errorf("criterion %q: %w", key, err)
		}
		ok, err := matchOne(kind, el, key, wanted)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func criterionValues(raw interface{}) ([]string, error) {
	switch v := raw.(type) {
	case string:
		return []string{v}, nil
	case []string:
		return v, nil
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: list values must be strings", util.ErrInvalidArgument)
			}
			out = append(out, s)
		}
		return out, nil
	case nil:
		return nil, nil
	default:
		return []string{fmt.Sprintf("%v", v)}, nil
	}
}

func matchOne(kind pan.Kind, el *etree.Element, key string, wanted []string) (bool, error) {
	switch {
	case strings.HasPrefix(key, "xpath:"):
		path := strings.TrimPrefix(key, "xpath:")
		p, err := etree.CompilePath(path)
		if err != nil {
			return false, &util.XPathError{XPath: path, Reason: err.Error()}
		}
		return el.FindElementPath(p) != nil, nil

	case key == "has-tag":
		return anyIn(wanted, xmltree.Members(el, "tag")), nil

	case key == "value":
		return contains(wanted, primaryValue(kind, el)), nil

	case key == "name":
		return contains(wanted, xmltree.EntryName(el)), nil

	default:
		if members := xmltree.Members(el, key); members != nil {
			return anyIn(wanted, members), nil
		}
		return contains(wanted, xmltree.ChildText(el, key)), nil
	}
}

// primaryValue is what the "value" token compares against, per kind.
func primaryValue(kind pan.Kind, el *etree.Element) string {
	switch kind {
	case pan.KindAddress:
		return object.WrapAddress(el).Value()
	case pan.KindService:
		return object.WrapService(el).Port()
	case pan.KindTag:
		return object.WrapTag(el).Color()
	case pan.KindAddressGroup:
		group := object.WrapAddressGroup(el)
		if group.IsDynamic() {
			return group.DynamicFilter()
		}
		return strings.Join(group.StaticMembers(), ",")
	default:
		return xmltree.ChildText(el, "value")
	}
}

func contains(wanted []string, have string) bool {
	for _, w := range wanted {
		if w == have {
			return true
		}
	}
	return false
}

func anyIn(wanted, have []string) bool {
	for _, h := range have {
		if contains(wanted, h) {
			return true
		}
	}
	return false
}
