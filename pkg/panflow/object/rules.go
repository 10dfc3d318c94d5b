package object

import (
	"github.com/beevik/etree"

	"github.com/panflow-net/panflow/pkg/panflow/pan"
	"github.com/panflow-net/panflow/pkg/panflow/xmltree"
)

// SecurityRule wraps a security rule entry.
type SecurityRule struct {
	el *etree.Element
}

// WrapSecurityRule wraps an existing <entry> element.
func WrapSecurityRule(el *etree.Element) SecurityRule { return SecurityRule{el: el} }

// Element returns the underlying element.
func (r SecurityRule) Element() *etree.Element { return r.el }

// Name returns the rule name.
func (r SecurityRule) Name() string { return xmltree.EntryName(r.el) }

// Action returns the rule action (allow, deny, drop, …).
func (r SecurityRule) Action() string { return xmltree.ChildText(r.el, "action") }

// Disabled reports whether the rule is disabled.
func (r SecurityRule) Disabled() bool { return xmltree.ChildText(r.el, "disabled") == "yes" }

// FromZones returns the from-zone members.
func (r SecurityRule) FromZones() []string { return xmltree.Members(r.el, "from") }

// ToZones returns the to-zone members.
func (r SecurityRule) ToZones() []string { return xmltree.Members(r.el, "to") }

// Sources returns the source address members.
func (r SecurityRule) Sources() []string { return xmltree.Members(r.el, "source") }

// Destinations returns the destination address members.
func (r SecurityRule) Destinations() []string { return xmltree.Members(r.el, "destination") }

// Services returns the service members.
func (r SecurityRule) Services() []string { return xmltree.Members(r.el, "service") }

// Applications returns the application members.
func (r SecurityRule) Applications() []string { return xmltree.Members(r.el, "application") }

// Categories returns the URL category members.
func (r SecurityRule) Categories() []string { return xmltree.Members(r.el, "category") }

// SourceUsers returns the source-user members.
func (r SecurityRule) SourceUsers() []string { return xmltree.Members(r.el, "source-user") }

// Tags returns the tag members.
func (r SecurityRule) Tags() []string { return xmltree.Members(r.el, "tag") }

// Schedule returns the referenced schedule name, if any.
func (r SecurityRule) Schedule() string { return xmltree.ChildText(r.el, "schedule") }

// LogSetting returns the log forwarding profile name, if any.
func (r SecurityRule) LogSetting() string { return xmltree.ChildText(r.el, "log-setting") }

// ProfileGroupNames returns profile-setting/group members.
func (r SecurityRule) ProfileGroupNames() []string {
	if ps := r.el.SelectElement("profile-setting"); ps != nil {
		return xmltree.Members(ps, "group")
	}
	return nil
}

// IndividualProfiles returns profile-setting/profiles/<kind> member names
// keyed by the profile kind.
func (r SecurityRule) IndividualProfiles() map[pan.Kind][]string {
	ps := r.el.SelectElement("profile-setting")
	if ps == nil {
		return nil
	}
	profiles := ps.SelectElement("profiles")
	if profiles == nil {
		return nil
	}
	out := make(map[pan.Kind][]string)
	for _, kind := range pan.ProfileKinds() {
		if members := xmltree.Members(profiles, string(kind)); len(members) > 0 {
			out[kind] = members
		}
	}
	return out
}

// NATRule wraps a NAT rule entry.
type NATRule struct {
	el *etree.Element
}

// WrapNATRule wraps an existing <entry> element.
func WrapNATRule(el *etree.Element) NATRule { return NATRule{el: el} }

// Element returns the underlying element.
func (r NATRule) Element() *etree.Element { return r.el }

// Name returns the rule name.
func (r NATRule) Name() string { return xmltree.EntryName(r.el) }

// FromZones returns the from-zone members.
func (r NATRule) FromZones() []string { return xmltree.Members(r.el, "from") }

// ToZones returns the to-zone members.
func (r NATRule) ToZones() []string { return xmltree.Members(r.el, "to") }

// Sources returns the original source members.
func (r NATRule) Sources() []string { return xmltree.Members(r.el, "source") }

// Destinations returns the original destination members.
func (r NATRule) Destinations() []string { return xmltree.Members(r.el, "destination") }

// Service returns the service text, if any.
func (r NATRule) Service() string { return xmltree.ChildText(r.el, "service") }

// BiDirectional reports whether source translation is marked
// bi-directional. The element lives under source-translation/static-ip.
func (r NATRule) BiDirectional() bool {
	return r.biDirectionalElement() != nil
}

// biDirectionalElement returns the bi-directional element wherever it
// appears under the rule, or nil.
func (r NATRule) biDirectionalElement() *etree.Element {
	for _, el := range r.el.FindElements(".//bi-directional") {
		if el.Text() == "yes" {
			return el
		}
	}
	return nil
}

// ClearBiDirectional removes the bi-directional marker. Returns true if a
// marker was present.
func (r NATRule) ClearBiDirectional() bool {
	el := r.biDirectionalElement()
	if el == nil {
		return false
	}
	if parent := el.Parent(); parent != nil {
		parent.RemoveChild(el)
		return true
	}
	return false
}

// SourceTranslation returns the source-translation element, or nil.
func (r NATRule) SourceTranslation() *etree.Element {
	return r.el.SelectElement("source-translation")
}

// DestinationTranslation returns the destination-translation element
// (dynamic or static), or nil.
func (r NATRule) DestinationTranslation() *etree.Element {
	if el := r.el.SelectElement("destination-translation"); el != nil {
		return el
	}
	return r.el.SelectElement("dynamic-destination-translation")
}

// GenericRule wraps any rule entry for the projections shared by all rule
// kinds (reference collection, zone/address membership).
type GenericRule struct {
	el *etree.Element
}

// WrapRule wraps an existing <entry> element.
func WrapRule(el *etree.Element) GenericRule { return GenericRule{el: el} }

// Element returns the underlying element.
func (r GenericRule) Element() *etree.Element { return r.el }

// Name returns the rule name.
func (r GenericRule) Name() string { return xmltree.EntryName(r.el) }

// Disabled reports whether the rule is disabled.
func (r GenericRule) Disabled() bool { return xmltree.ChildText(r.el, "disabled") == "yes" }

// Members returns the member list under the given container tag.
func (r GenericRule) Members(tag string) []string { return xmltree.Members(r.el, tag) }
