package xmltree

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"

	"github.com/panflow-net/panflow/pkg/util"
)

// Merge folds from into into, recursively. Both elements must share the
// same tag. Children are matched by (tag, @name) when the from child
// carries a name attribute, else by tag; matched pairs recurse, unmatched
// from children are appended as deep clones. Text and attributes of into
// are overwritten only when overwrite is true or the into side is empty.
func (t *Tree) Merge(into, from *etree.Element, overwrite bool) error {
	if into.Tag != from.Tag {
		return fmt.Errorf("%w: cannot merge <%s> into <%s>", util.ErrInvalidArgument, from.Tag, into.Tag)
	}
	mergeInto(into, from, overwrite)
	t.Invalidate()
	return nil
}

func mergeInto(into, from *etree.Element, overwrite bool) {
	// Text: overwrite when allowed or target empty.
	fromText := strings.TrimSpace(from.Text())
	if fromText != "" && (overwrite || strings.TrimSpace(into.Text()) == "") {
		into.SetText(fromText)
	}

	// Attributes: same rule per attribute.
	for _, a := range from.Attr {
		existing := into.SelectAttrValue(a.Key, "")
		if overwrite || existing == "" {
			into.CreateAttr(a.Key, a.Value)
		}
	}

	for _, fc := range from.ChildElements() {
		match := matchChild(into, fc)
		if match == nil {
			into.AddChild(fc.Copy())
			continue
		}
		mergeInto(match, fc, overwrite)
	}
}

// matchChild finds the into-side counterpart for a from child: same tag
// and same @name when present, else the first same-tag child.
func matchChild(into, fromChild *etree.Element) *etree.Element {
	name := fromChild.SelectAttrValue("name", "")
	for _, ic := range into.ChildElements() {
		if ic.Tag != fromChild.Tag {
			continue
		}
		if name != "" && ic.SelectAttrValue("name", "") != name {
			continue
		}
		return ic
	}
	return nil
}
