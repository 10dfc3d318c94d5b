package object

import (
	"reflect"
	"testing"

	"github.com/beevik/etree"
)

func parseEntry(t *testing.T, xml string) *etree.Element {
	t.Helper()
	doc := etree.NewDocument()
	if err := doc.ReadFromString(xml); err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	return doc.Root()
}

func TestAddress(t *testing.T) {
	a := WrapAddress(parseEntry(t, `<entry name="web-server">
		<ip-netmask>10.1.1.10/32</ip-netmask>
		<description>frontend</description>
		<tag><member>prod</member></tag>
	</entry>`))

	if a.Name() != "web-server" {
		t.Errorf("Name = %q", a.Name())
	}
	if a.Type() != IPNetmask {
		t.Errorf("Type = %q", a.Type())
	}
	if a.Value() != "10.1.1.10/32" {
		t.Errorf("Value = %q", a.Value())
	}
	if a.Description() != "frontend" {
		t.Errorf("Description = %q", a.Description())
	}
	if got := a.Tags(); len(got) != 1 || got[0] != "prod" {
		t.Errorf("Tags = %v", got)
	}

	// Switching the value form removes the old one.
	a.SetValue(FQDN, "web.example.com")
	if a.Type() != FQDN || a.Value() != "web.example.com" {
		t.Errorf("after SetValue: type=%q value=%q", a.Type(), a.Value())
	}
	if a.Element().SelectElement("ip-netmask") != nil {
		t.Error("old value form should be removed")
	}
}

func TestAddress_Empty(t *testing.T) {
	a := WrapAddress(parseEntry(t, `<entry name="hollow"/>`))
	if a.Type() != "" || a.Value() != "" {
		t.Errorf("empty entry: type=%q value=%q", a.Type(), a.Value())
	}
}

func TestAddressGroup(t *testing.T) {
	static := WrapAddressGroup(parseEntry(t, `<entry name="servers">
		<static><member>web-server</member><member>db-server</member></static>
	</entry>`))
	if !static.IsStatic() || static.IsDynamic() {
		t.Error("static group misclassified")
	}
	if got := static.StaticMembers(); !reflect.DeepEqual(got, []string{"web-server", "db-server"}) {
		t.Errorf("StaticMembers = %v", got)
	}

	dynamic := WrapAddressGroup(parseEntry(t, `<entry name="tagged">
		<dynamic><filter>'prod' and 'web'</filter></dynamic>
	</entry>`))
	if !dynamic.IsDynamic() || dynamic.IsStatic() {
		t.Error("dynamic group misclassified")
	}
	if dynamic.DynamicFilter() != "'prod' and 'web'" {
		t.Errorf("DynamicFilter = %q", dynamic.DynamicFilter())
	}
}

func TestService(t *testing.T) {
	s := WrapService(parseEntry(t, `<entry name="tcp-8080">
		<protocol><tcp><port>8080</port><source-port>1024-65535</source-port></tcp></protocol>
	</entry>`))

	if s.Protocol() != "tcp" {
		t.Errorf("Protocol = %q", s.Protocol())
	}
	if s.Port() != "8080" {
		t.Errorf("Port = %q", s.Port())
	}
	if s.SourcePort() != "1024-65535" {
		t.Errorf("SourcePort = %q", s.SourcePort())
	}

	udp := WrapService(parseEntry(t, `<entry name="udp-53"><protocol><udp><port>53</port></udp></protocol></entry>`))
	if udp.Protocol() != "udp" || udp.Port() != "53" {
		t.Errorf("udp service: %q %q", udp.Protocol(), udp.Port())
	}
}

func TestServiceGroup(t *testing.T) {
	g := WrapServiceGroup(parseEntry(t, `<entry name="web-ports">
		<members><member>tcp-80</member><member>tcp-443</member></members>
	</entry>`))
	if got := g.Members(); len(got) != 2 || got[1] != "tcp-443" {
		t.Errorf("Members = %v", got)
	}
	g.SetMembers([]string{"tcp-8080"})
	if got := g.Members(); len(got) != 1 || got[0] != "tcp-8080" {
		t.Errorf("Members after set = %v", got)
	}
}

func TestTag(t *testing.T) {
	tag := WrapTag(parseEntry(t, `<entry name="prod"><color>color1</color><comments>production</comments></entry>`))
	if tag.Color() != "color1" || tag.Comments() != "production" {
		t.Errorf("tag fields: %q %q", tag.Color(), tag.Comments())
	}
}

func TestExternalList(t *testing.T) {
	e := WrapExternalList(parseEntry(t, `<entry name="threat-feed">
		<type><ip><url>https://feeds.example.com/bad-ips.txt</url></ip></type>
	</entry>`))
	if e.Type() != "ip" {
		t.Errorf("Type = %q", e.Type())
	}
	if e.URL() != "https://feeds.example.com/bad-ips.txt" {
		t.Errorf("URL = %q", e.URL())
	}
}

func TestURLCategory(t *testing.T) {
	u := WrapURLCategory(parseEntry(t, `<entry name="blocked-sites">
		<type>URL List</type>
		<list><member>bad.example.com</member></list>
	</entry>`))
	if u.Type() != "URL List" {
		t.Errorf("Type = %q", u.Type())
	}
	if got := u.ListMembers(); len(got) != 1 || got[0] != "bad.example.com" {
		t.Errorf("ListMembers = %v", got)
	}
}

func TestSchedule(t *testing.T) {
	s := WrapSchedule(parseEntry(t, `<entry name="maintenance">
		<schedule-type><non-recurring><member>2026/09/01@00:00-2026/09/01@04:00</member></non-recurring></schedule-type>
	</entry>`))
	if s.IsRecurring() || !s.IsNonRecurring() {
		t.Error("schedule type misclassified")
	}
	if got := s.NonRecurringWindows(); len(got) != 1 {
		t.Errorf("NonRecurringWindows = %v", got)
	}
}
