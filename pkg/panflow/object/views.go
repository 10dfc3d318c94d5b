// Package object provides typed read/write views over the raw entry
// elements, plus the per-kind attribute catalog that drives version
// adaptation. Views do not own their element; they are cheap wrappers a
// caller constructs around an element it located through the resolver.
package object

import (
	"github.com/beevik/etree"

	"github.com/panflow-net/panflow/pkg/panflow/xmltree"
)

// AddressType enumerates the four value forms of an address object.
type AddressType string

const (
	IPNetmask  AddressType = "ip-netmask"
	IPRange    AddressType = "ip-range"
	FQDN       AddressType = "fqdn"
	IPWildcard AddressType = "ip-wildcard"
)

// AddressTypes lists the four value forms.
func AddressTypes() []AddressType {
	return []AddressType{IPNetmask, IPRange, FQDN, IPWildcard}
}

// Address wraps an address entry.
type Address struct {
	el *etree.Element
}

// WrapAddress wraps an existing <entry> element.
func WrapAddress(el *etree.Element) Address { return Address{el: el} }

// Element returns the underlying element.
func (a Address) Element() *etree.Element { return a.el }

// Name returns the entry name.
func (a Address) Name() string { return xmltree.EntryName(a.el) }

// Type returns which of the four value forms is present, or "" if none.
func (a Address) Type() AddressType {
	for _, t := range AddressTypes() {
		if a.el.SelectElement(string(t)) != nil {
			return t
		}
	}
	return ""
}

// Value returns the text of the present value form.
func (a Address) Value() string {
	t := a.Type()
	if t == "" {
		return ""
	}
	return xmltree.ChildText(a.el, string(t))
}

// SetValue replaces the value form: any existing form element is removed
// and the given one is set.
func (a Address) SetValue(t AddressType, value string) {
	for _, existing := range AddressTypes() {
		xmltree.RemoveChildTag(a.el, string(existing))
	}
	xmltree.SetChildText(a.el, string(t), value)
}

// Description returns the description text.
func (a Address) Description() string { return xmltree.ChildText(a.el, "description") }

// SetDescription sets the description.
func (a Address) SetDescription(d string) { xmltree.SetChildText(a.el, "description", d) }

// Tags returns the tag members.
func (a Address) Tags() []string { return xmltree.Members(a.el, "tag") }

// AddressGroup wraps an address-group entry. A group is static (member
// list) or dynamic (tag filter), never both.
type AddressGroup struct {
	el *etree.Element
}

// WrapAddressGroup wraps an existing <entry> element.
func WrapAddressGroup(el *etree.Element) AddressGroup { return AddressGroup{el: el} }

// Element returns the underlying element.
func (g AddressGroup) Element() *etree.Element { return g.el }

// Name returns the entry name.
func (g AddressGroup) Name() string { return xmltree.EntryName(g.el) }

// IsStatic reports whether the group carries a static member list.
func (g AddressGroup) IsStatic() bool { return g.el.SelectElement("static") != nil }

// IsDynamic reports whether the group carries a dynamic filter.
func (g AddressGroup) IsDynamic() bool { return g.el.SelectElement("dynamic") != nil }

// StaticMembers returns the static member names.
func (g AddressGroup) StaticMembers() []string { return xmltree.Members(g.el, "static") }

// SetStaticMembers replaces the static member list.
func (g AddressGroup) SetStaticMembers(members []string) {
	xmltree.SetMembers(g.el, "static", members)
}

// DynamicFilter returns the dynamic tag-filter expression.
func (g AddressGroup) DynamicFilter() string {
	if dyn := g.el.SelectElement("dynamic"); dyn != nil {
		return xmltree.ChildText(dyn, "filter")
	}
	return ""
}

// SetDynamicFilter replaces the dynamic filter expression.
func (g AddressGroup) SetDynamicFilter(filter string) {
	dyn := g.el.SelectElement("dynamic")
	if dyn == nil {
		dyn = g.el.CreateElement("dynamic")
	}
	xmltree.SetChildText(dyn, "filter", filter)
}

// Description returns the description text.
func (g AddressGroup) Description() string { return xmltree.ChildText(g.el, "description") }

// Tags returns the tag members.
func (g AddressGroup) Tags() []string { return xmltree.Members(g.el, "tag") }

// Service wraps a service entry.
type Service struct {
	el *etree.Element
}

// WrapService wraps an existing <entry> element.
func WrapService(el *etree.Element) Service { return Service{el: el} }

// Element returns the underlying element.
func (s Service) Element() *etree.Element { return s.el }

// Name returns the entry name.
func (s Service) Name() string { return xmltree.EntryName(s.el) }

// Protocol returns "tcp", "udp", or "sctp", whichever protocol element
// is present under <protocol>.
func (s Service) Protocol() string {
	proto := s.el.SelectElement("protocol")
	if proto == nil {
		return ""
	}
	for _, p := range []string{"tcp", "udp", "sctp"} {
		if proto.SelectElement(p) != nil {
			return p
		}
	}
	return ""
}

// protoEl returns the active protocol element.
func (s Service) protoEl() *etree.Element {
	proto := s.el.SelectElement("protocol")
	if proto == nil {
		return nil
	}
	return proto.SelectElement(s.Protocol())
}

// Port returns the destination port specification.
func (s Service) Port() string {
	if p := s.protoEl(); p != nil {
		return xmltree.ChildText(p, "port")
	}
	return ""
}

// SourcePort returns the source port specification, if any.
func (s Service) SourcePort() string {
	if p := s.protoEl(); p != nil {
		return xmltree.ChildText(p, "source-port")
	}
	return ""
}

// Tags returns the tag members.
func (s Service) Tags() []string { return xmltree.Members(s.el, "tag") }

// ServiceGroup wraps a service-group entry.
type ServiceGroup struct {
	el *etree.Element
}

// WrapServiceGroup wraps an existing <entry> element.
func WrapServiceGroup(el *etree.Element) ServiceGroup { return ServiceGroup{el: el} }

// Element returns the underlying element.
func (g ServiceGroup) Element() *etree.Element { return g.el }

// Name returns the entry name.
func (g ServiceGroup) Name() string { return xmltree.EntryName(g.el) }

// Members returns the member names.
func (g ServiceGroup) Members() []string { return xmltree.Members(g.el, "members") }

// SetMembers replaces the member list.
func (g ServiceGroup) SetMembers(members []string) { xmltree.SetMembers(g.el, "members", members) }

// Tags returns the tag members.
func (g ServiceGroup) Tags() []string { return xmltree.Members(g.el, "tag") }

// Tag wraps a tag entry.
type Tag struct {
	el *etree.Element
}

// WrapTag wraps an existing <entry> element.
func WrapTag(el *etree.Element) Tag { return Tag{el: el} }

// Element returns the underlying element.
func (t Tag) Element() *etree.Element { return t.el }

// Name returns the entry name.
func (t Tag) Name() string { return xmltree.EntryName(t.el) }

// Color returns the color value ("color7" or a named color).
func (t Tag) Color() string { return xmltree.ChildText(t.el, "color") }

// SetColor sets the color value.
func (t Tag) SetColor(c string) { xmltree.SetChildText(t.el, "color", c) }

// Comments returns the comments text.
func (t Tag) Comments() string { return xmltree.ChildText(t.el, "comments") }

// ProfileGroup wraps a security profile-group entry. Each member list
// holds profile names per profile kind element.
type ProfileGroup struct {
	el *etree.Element
}

// WrapProfileGroup wraps an existing <entry> element.
func WrapProfileGroup(el *etree.Element) ProfileGroup { return ProfileGroup{el: el} }

// Element returns the underlying element.
func (p ProfileGroup) Element() *etree.Element { return p.el }

// Name returns the entry name.
func (p ProfileGroup) Name() string { return xmltree.EntryName(p.el) }

// ProfileMembers returns the referenced profile names under the given
// profile kind tag (virus, spyware, …).
func (p ProfileGroup) ProfileMembers(kindTag string) []string {
	return xmltree.Members(p.el, kindTag)
}

// ExternalList wraps an external-list entry.
type ExternalList struct {
	el *etree.Element
}

// WrapExternalList wraps an existing <entry> element.
func WrapExternalList(el *etree.Element) ExternalList { return ExternalList{el: el} }

// Element returns the underlying element.
func (e ExternalList) Element() *etree.Element { return e.el }

// Name returns the entry name.
func (e ExternalList) Name() string { return xmltree.EntryName(e.el) }

// Type returns the list type tag under <type> (ip, domain, url,
// predefined-ip, predefined-url), or "".
func (e ExternalList) Type() string {
	typeEl := e.el.SelectElement("type")
	if typeEl == nil {
		return ""
	}
	kids := typeEl.ChildElements()
	if len(kids) == 0 {
		return ""
	}
	return kids[0].Tag
}

// URL returns the source url of the list.
func (e ExternalList) URL() string {
	typeEl := e.el.SelectElement("type")
	if typeEl == nil {
		return ""
	}
	kids := typeEl.ChildElements()
	if len(kids) == 0 {
		return ""
	}
	return xmltree.ChildText(kids[0], "url")
}

// URLCategory wraps a custom-url-category entry.
type URLCategory struct {
	el *etree.Element
}

// WrapURLCategory wraps an existing <entry> element.
func WrapURLCategory(el *etree.Element) URLCategory { return URLCategory{el: el} }

// Element returns the underlying element.
func (u URLCategory) Element() *etree.Element { return u.el }

// Name returns the entry name.
func (u URLCategory) Name() string { return xmltree.EntryName(u.el) }

// Type returns the category type text ("URL List" or "Category Match").
func (u URLCategory) Type() string { return xmltree.ChildText(u.el, "type") }

// ListMembers returns the URL (or EDL name) members.
func (u URLCategory) ListMembers() []string { return xmltree.Members(u.el, "list") }

// Schedule wraps a schedule entry.
type Schedule struct {
	el *etree.Element
}

// WrapSchedule wraps an existing <entry> element.
func WrapSchedule(el *etree.Element) Schedule { return Schedule{el: el} }

// Element returns the underlying element.
func (s Schedule) Element() *etree.Element { return s.el }

// Name returns the entry name.
func (s Schedule) Name() string { return xmltree.EntryName(s.el) }

// IsRecurring reports whether the schedule-type is recurring.
func (s Schedule) IsRecurring() bool {
	if st := s.el.SelectElement("schedule-type"); st != nil {
		return st.SelectElement("recurring") != nil
	}
	return false
}

// IsNonRecurring reports whether the schedule-type is non-recurring.
func (s Schedule) IsNonRecurring() bool {
	if st := s.el.SelectElement("schedule-type"); st != nil {
		return st.SelectElement("non-recurring") != nil
	}
	return false
}

// NonRecurringWindows returns the date-time window members of a
// non-recurring schedule.
func (s Schedule) NonRecurringWindows() []string {
	st := s.el.SelectElement("schedule-type")
	if st == nil {
		return nil
	}
	return xmltree.Members(st, "non-recurring")
}
