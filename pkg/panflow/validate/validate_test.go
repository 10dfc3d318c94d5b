package validate

import (
	"strings"
	"testing"

	"github.com/beevik/etree"

	"github.com/panflow-net/panflow/pkg/panflow/pan"
)

func parseEntry(t *testing.T, xml string) *etree.Element {
	t.Helper()
	doc := etree.NewDocument()
	if err := doc.ReadFromString(xml); err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	return doc.Root()
}

func TestObject_Address(t *testing.T) {
	tests := []struct {
		name string
		xml  string
		ok   bool
	}{
		{"valid netmask", `<entry name="a"><ip-netmask>10.0.0.0/24</ip-netmask></entry>`, true},
		{"bare host", `<entry name="a"><ip-netmask>10.0.0.1</ip-netmask></entry>`, true},
		{"valid range", `<entry name="a"><ip-range>10.0.0.1-10.0.0.9</ip-range></entry>`, true},
		{"valid fqdn", `<entry name="a"><fqdn>web.example.com</fqdn></entry>`, true},
		{"valid wildcard", `<entry name="a"><ip-wildcard>10.0.0.0/0.0.255.255</ip-wildcard></entry>`, true},
		{"bad netmask", `<entry name="a"><ip-netmask>not-an-ip</ip-netmask></entry>`, false},
		{"inverted range", `<entry name="a"><ip-range>10.0.0.9-10.0.0.1</ip-range></entry>`, false},
		{"bad fqdn", `<entry name="a"><fqdn>-leading.example</fqdn></entry>`, false},
		{"no value", `<entry name="a"/>`, false},
		{"two value forms", `<entry name="a"><ip-netmask>10.0.0.1</ip-netmask><fqdn>x.example</fqdn></entry>`, false},
		{"no name", `<entry><ip-netmask>10.0.0.1</ip-netmask></entry>`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, errs := Object(pan.KindAddress, parseEntry(t, tt.xml))
			if ok != tt.ok {
				t.Errorf("ok = %v, errs = %v", ok, errs)
			}
		})
	}
}

func TestObject_AddressGroup(t *testing.T) {
	tests := []struct {
		name string
		xml  string
		ok   bool
	}{
		{"static", `<entry name="g"><static><member>a</member></static></entry>`, true},
		{"dynamic", `<entry name="g"><dynamic><filter>'prod' and 'web'</filter></dynamic></entry>`, true},
		{"empty static", `<entry name="g"><static/></entry>`, false},
		{"empty filter", `<entry name="g"><dynamic><filter>  </filter></dynamic></entry>`, false},
		{"unquoted filter token", `<entry name="g"><dynamic><filter>'prod' and web</filter></dynamic></entry>`, false},
		{"unbalanced quotes", `<entry name="g"><dynamic><filter>'prod</filter></dynamic></entry>`, false},
		{"unbalanced parens", `<entry name="g"><dynamic><filter>('prod'</filter></dynamic></entry>`, false},
		{"neither form", `<entry name="g"/>`, false},
		{"both forms", `<entry name="g"><static><member>a</member></static><dynamic><filter>'x'</filter></dynamic></entry>`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, errs := Object(pan.KindAddressGroup, parseEntry(t, tt.xml))
			if ok != tt.ok {
				t.Errorf("ok = %v, errs = %v", ok, errs)
			}
		})
	}
}

func TestObject_Service(t *testing.T) {
	tests := []struct {
		name string
		xml  string
		ok   bool
	}{
		{"tcp", `<entry name="s"><protocol><tcp><port>8080</port></tcp></protocol></entry>`, true},
		{"port list", `<entry name="s"><protocol><udp><port>53,123,500-600</port></udp></protocol></entry>`, true},
		{"source port", `<entry name="s"><protocol><tcp><port>80</port><source-port>1024-65535</source-port></tcp></protocol></entry>`, true},
		{"no protocol", `<entry name="s"/>`, false},
		{"no port", `<entry name="s"><protocol><tcp/></protocol></entry>`, false},
		{"port too large", `<entry name="s"><protocol><tcp><port>70000</port></tcp></protocol></entry>`, false},
		{"inverted range", `<entry name="s"><protocol><tcp><port>600-500</port></tcp></protocol></entry>`, false},
		{"garbage port", `<entry name="s"><protocol><tcp><port>http</port></tcp></protocol></entry>`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, errs := Object(pan.KindService, parseEntry(t, tt.xml))
			if ok != tt.ok {
				t.Errorf("ok = %v, errs = %v", ok, errs)
			}
		})
	}
}

func TestObject_Tag(t *testing.T) {
	tests := []struct {
		name string
		xml  string
		ok   bool
	}{
		{"numeric color", `<entry name="t"><color>color7</color></entry>`, true},
		{"named color", `<entry name="t"><color>Red</color></entry>`, true},
		{"no color", `<entry name="t"/>`, true},
		{"out of range code", `<entry name="t"><color>color33</color></entry>`, false},
		{"unknown name", `<entry name="t"><color>Chartreuse</color></entry>`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, errs := Object(pan.KindTag, parseEntry(t, tt.xml))
			if ok != tt.ok {
				t.Errorf("ok = %v, errs = %v", ok, errs)
			}
		})
	}
}

func TestObject_ExternalList(t *testing.T) {
	tests := []struct {
		name string
		xml  string
		ok   bool
	}{
		{"ip list", `<entry name="e"><type><ip><url>https://feeds.example.com/a.txt</url></ip></type></entry>`, true},
		{"predefined", `<entry name="e"><type><predefined-ip><list><member>panw-bulletproof-ip-list</member></list></predefined-ip></type></entry>`, true},
		{"no type", `<entry name="e"/>`, false},
		{"no url", `<entry name="e"><type><domain/></type></entry>`, false},
		{"bad scheme", `<entry name="e"><type><url><url>ftp://feeds.example.com/a.txt</url></url></type></entry>`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, errs := Object(pan.KindExternalList, parseEntry(t, tt.xml))
			if ok != tt.ok {
				t.Errorf("ok = %v, errs = %v", ok, errs)
			}
		})
	}
}

func TestObject_Schedule(t *testing.T) {
	tests := []struct {
		name string
		xml  string
		ok   bool
	}{
		{"non-recurring", `<entry name="s"><schedule-type><non-recurring><member>2026/09/01@00:00-2026/09/01@04:00</member></non-recurring></schedule-type></entry>`, true},
		{"recurring daily", `<entry name="s"><schedule-type><recurring><daily><member>08:00-17:00</member></daily></recurring></schedule-type></entry>`, true},
		{"bad window", `<entry name="s"><schedule-type><non-recurring><member>tomorrow</member></non-recurring></schedule-type></entry>`, false},
		{"bad time range", `<entry name="s"><schedule-type><recurring><daily><member>8am-5pm</member></daily></recurring></schedule-type></entry>`, false},
		{"no schedule type", `<entry name="s"/>`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, errs := Object(pan.KindSchedule, parseEntry(t, tt.xml))
			if ok != tt.ok {
				t.Errorf("ok = %v, errs = %v", ok, errs)
			}
		})
	}
}

func TestObject_ProfileGroup(t *testing.T) {
	ok, _ := Object(pan.KindProfileGroup, parseEntry(t, `<entry name="pg"><virus><member>default-av</member></virus></entry>`))
	if !ok {
		t.Error("profile group with a member should validate")
	}
	ok, errs := Object(pan.KindProfileGroup, parseEntry(t, `<entry name="pg"/>`))
	if ok {
		t.Error("empty profile group should fail")
	}
	if len(errs) != 1 || !strings.Contains(errs[0], "no profiles") {
		t.Errorf("errs = %v", errs)
	}
}

func TestObject_UncheckedKind(t *testing.T) {
	ok, errs := Object(pan.KindApplication, parseEntry(t, `<entry name="custom-app"/>`))
	if !ok || errs != nil {
		t.Errorf("kinds without checks should validate trivially: %v %v", ok, errs)
	}
}

func TestObjects(t *testing.T) {
	good := parseEntry(t, `<entry name="good"><ip-netmask>10.0.0.1/32</ip-netmask></entry>`)
	bad := parseEntry(t, `<entry name="bad"><ip-netmask>bogus</ip-netmask></entry>`)

	ok, errs := Objects(pan.KindAddress, []*etree.Element{good, bad})
	if ok {
		t.Error("batch with a bad entry should fail")
	}
	if len(errs) != 1 || !strings.HasPrefix(errs[0], "bad: ") {
		t.Errorf("errs = %v", errs)
	}
}
