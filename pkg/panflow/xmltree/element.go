package xmltree

import (
	"sort"
	"strings"

	"github.com/beevik/etree"
)

// Element helpers that do not need a Tree (no cache interaction). These
// operate on elements the caller already holds; mutating helpers that
// change tree shape live on Tree.

// EntryName returns the @name attribute of an entry element.
func EntryName(el *etree.Element) string {
	return el.SelectAttrValue("name", "")
}

// ChildText returns the text of the first direct child with the given tag,
// or "" if absent.
func ChildText(el *etree.Element, tag string) string {
	if child := el.SelectElement(tag); child != nil {
		return strings.TrimSpace(child.Text())
	}
	return ""
}

// SetChildText sets the text of the direct child with the given tag,
// creating it when missing.
func SetChildText(el *etree.Element, tag, text string) *etree.Element {
	child := el.SelectElement(tag)
	if child == nil {
		child = el.CreateElement(tag)
	}
	child.SetText(text)
	return child
}

// RemoveChildTag deletes every direct child with the given tag. Returns
// the number removed.
func RemoveChildTag(el *etree.Element, tag string) int {
	removed := 0
	for {
		child := el.SelectElement(tag)
		if child == nil {
			return removed
		}
		el.RemoveChild(child)
		removed++
	}
}

// Members returns the member texts under el's child with the given tag,
// e.g. Members(rule, "source") for <source><member>…</member></source>.
func Members(el *etree.Element, tag string) []string {
	container := el.SelectElement(tag)
	if container == nil {
		return nil
	}
	var members []string
	for _, m := range container.SelectElements("member") {
		if text := strings.TrimSpace(m.Text()); text != "" {
			members = append(members, text)
		}
	}
	return members
}

// ContainsMember reports whether the member list under el's child with
// the given tag contains name.
func ContainsMember(el *etree.Element, tag, name string) bool {
	for _, m := range Members(el, tag) {
		if m == name {
			return true
		}
	}
	return false
}

// SetMembers replaces the member list under el's child with the given tag,
// creating the container when missing.
func SetMembers(el *etree.Element, tag string, members []string) {
	container := el.SelectElement(tag)
	if container == nil {
		container = el.CreateElement(tag)
	}
	for {
		m := container.SelectElement("member")
		if m == nil {
			break
		}
		container.RemoveChild(m)
	}
	for _, name := range members {
		container.CreateElement("member").SetText(name)
	}
}

// ReplaceMember rewrites every <member> equal to old under any child of el
// whose direct path matches one of the given container tags. Returns the
// number of rewrites.
func ReplaceMember(el *etree.Element, containerTag, oldName, newName string) int {
	container := el.SelectElement(containerTag)
	if container == nil {
		return 0
	}
	count := 0
	for _, m := range container.SelectElements("member") {
		if strings.TrimSpace(m.Text()) == oldName {
			m.SetText(newName)
			count++
		}
	}
	return count
}

// CloneDeep returns a deep copy of el with no parent.
func CloneDeep(el *etree.Element) *etree.Element {
	return el.Copy()
}

// ChildTags returns the sorted set of direct child tags of el.
func ChildTags(el *etree.Element) []string {
	seen := map[string]bool{}
	var tags []string
	for _, c := range el.ChildElements() {
		if !seen[c.Tag] {
			seen[c.Tag] = true
			tags = append(tags, c.Tag)
		}
	}
	sort.Strings(tags)
	return tags
}

// attrMap returns el's attributes as a map, excluding xmlns declarations.
func attrMap(el *etree.Element) map[string]string {
	m := make(map[string]string, len(el.Attr))
	for _, a := range el.Attr {
		if a.Space == "xmlns" || a.Key == "xmlns" {
			continue
		}
		key := a.Key
		if a.Space != "" {
			key = a.Space + ":" + a.Key
		}
		m[key] = a.Value
	}
	return m
}

// EqualElements reports deep equality of tag, attributes, text, and child
// elements (order-sensitive for children, order-insensitive for
// attributes). Whitespace-only text differences are ignored.
func EqualElements(a, b *etree.Element) bool {
	if a.Tag != b.Tag {
		return false
	}
	if strings.TrimSpace(a.Text()) != strings.TrimSpace(b.Text()) {
		return false
	}
	am, bm := attrMap(a), attrMap(b)
	if len(am) != len(bm) {
		return false
	}
	for k, v := range am {
		if bm[k] != v {
			return false
		}
	}
	ac, bc := a.ChildElements(), b.ChildElements()
	if len(ac) != len(bc) {
		return false
	}
	for i := range ac {
		if !EqualElements(ac[i], bc[i]) {
			return false
		}
	}
	return true
}
