package xmltree

import (
	"fmt"
	"sort"
	"strings"

	"github.com/beevik/etree"
)

// ElementToMap converts an element into a nested map. Attributes become
// "@key" entries, text becomes "#text" when the element also has children
// or attributes, repeated child tags collapse into slices. Leaf elements
// with only text convert to their string value at the parent level.
func ElementToMap(el *etree.Element) map[string]interface{} {
	m := make(map[string]interface{})
	for _, a := range el.Attr {
		m["@"+a.Key] = a.Value
	}
	if text := strings.TrimSpace(el.Text()); text != "" {
		m["#text"] = text
	}
	for _, child := range el.ChildElements() {
		var value interface{}
		if len(child.ChildElements()) == 0 && len(child.Attr) == 0 {
			value = strings.TrimSpace(child.Text())
		} else {
			value = ElementToMap(child)
		}
		if existing, ok := m[child.Tag]; ok {
			if list, isList := existing.([]interface{}); isList {
				m[child.Tag] = append(list, value)
			} else {
				m[child.Tag] = []interface{}{existing, value}
			}
		} else {
			m[child.Tag] = value
		}
	}
	return m
}

// MapToElement builds an element tree from a nested map produced by (or
// shaped like) ElementToMap output.
func MapToElement(tag string, m map[string]interface{}) *etree.Element {
	el := etree.NewElement(tag)
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := m[k]
		switch {
		case k == "#text":
			el.SetText(fmt.Sprintf("%v", v))
		case strings.HasPrefix(k, "@"):
			el.CreateAttr(k[1:], fmt.Sprintf("%v", v))
		default:
			appendMapValue(el, k, v)
		}
	}
	return el
}

func appendMapValue(parent *etree.Element, tag string, v interface{}) {
	switch value := v.(type) {
	case []interface{}:
		for _, item := range value {
			appendMapValue(parent, tag, item)
		}
	case map[string]interface{}:
		parent.AddChild(MapToElement(tag, value))
	default:
		parent.CreateElement(tag).SetText(fmt.Sprintf("%v", value))
	}
}

// PrettyPrint renders el as indented XML.
func PrettyPrint(el *etree.Element) string {
	doc := etree.NewDocument()
	doc.AddChild(el.Copy())
	doc.Indent(2)
	out, err := doc.WriteToString()
	if err != nil {
		return ""
	}
	return strings.TrimRight(out, "\n")
}
