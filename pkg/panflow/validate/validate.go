// Package validate runs structural checks on object entries. Checks are
// confined to well-known constraints on the entry's own shape; reference
// resolution belongs to refgraph and is not repeated here. Validation
// never mutates the tree.
package validate

import (
	"fmt"
	"net/netip"
	"regexp"
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"github.com/panflow-net/panflow/pkg/panflow/object"
	"github.com/panflow-net/panflow/pkg/panflow/pan"
	"github.com/panflow-net/panflow/pkg/panflow/xmltree"
	"github.com/panflow-net/panflow/pkg/util"
)

// Object validates one entry element of the given kind. Returns ok plus
// the list of human-readable problems. Kinds without checks validate
// trivially.
func Object(kind pan.Kind, el *etree.Element) (bool, []string) {
	b := &util.ValidationBuilder{}
	name := xmltree.EntryName(el)
	if name == "" {
		b.AddError("entry has no name attribute")
	}

	switch kind {
	case pan.KindAddress:
		checkAddress(el, b)
	case pan.KindAddressGroup:
		checkAddressGroup(el, b)
	case pan.KindService:
		checkService(el, b)
	case pan.KindTag:
		checkTag(el, b)
	case pan.KindExternalList:
		checkExternalList(el, b)
	case pan.KindSchedule:
		checkSchedule(el, b)
	case pan.KindProfileGroup:
		checkProfileGroup(el, b)
	}

	return !b.HasErrors(), b.Messages()
}

// ====================================================================
// address
// ====================================================================

var fqdnPattern = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9._-]*[A-Za-z0-9])?$`)

func checkAddress(el *etree.Element, b *util.ValidationBuilder) {
	addr := object.WrapAddress(el)
	forms := 0
	for _, form := range []object.AddressType{
		object.IPNetmask, object.IPRange, object.FQDN, object.IPWildcard,
	} {
		if el.SelectElement(string(form)) != nil {
			forms++
		}
	}
	switch forms {
	case 0:
		b.AddError("address has no value element")
		return
	case 1:
	default:
		b.AddError("address carries more than one value form")
		return
	}

	value := addr.Value()
	switch addr.Type() {
	case object.IPNetmask:
		if !validNetmask(value) {
			b.AddErrorf("invalid ip-netmask %q", value)
		}
	case object.IPRange:
		if !validRange(value) {
			b.AddErrorf("invalid ip-range %q", value)
		}
	case object.FQDN:
		if !fqdnPattern.MatchString(value) {
			b.AddErrorf("invalid fqdn %q", value)
		}
	case object.IPWildcard:
		if !validWildcard(value) {
			b.AddErrorf("invalid ip-wildcard %q", value)
		}
	}
}

func validNetmask(value string) bool {
	if _, err := netip.ParsePrefix(value); err == nil {
		return true
	}
	_, err := netip.ParseAddr(value)
	return err == nil
}

func validRange(value string) bool {
	lo, hi, ok := strings.Cut(value, "-")
	if !ok {
		return false
	}
	a, err1 := netip.ParseAddr(strings.TrimSpace(lo))
	z, err2 := netip.ParseAddr(strings.TrimSpace(hi))
	return err1 == nil && err2 == nil && a.Compare(z) <= 0
}

func validWildcard(value string) bool {
	addr, mask, ok := strings.Cut(value, "/")
	if !ok {
		return false
	}
	a, err1 := netip.ParseAddr(addr)
	m, err2 := netip.ParseAddr(mask)
	return err1 == nil && err2 == nil && a.Is4() && m.Is4()
}

// ====================================================================
// address group
// ====================================================================

func checkAddressGroup(el *etree.Element, b *util.ValidationBuilder) {
	group := object.WrapAddressGroup(el)
	switch {
	case group.IsStatic() && group.IsDynamic():
		b.AddError("address group is both static and dynamic")
	case group.IsStatic():
		if len(group.StaticMembers()) == 0 {
			b.AddError("static address group has no members")
		}
	case group.IsDynamic():
		checkFilter(group.DynamicFilter(), b)
	default:
		b.AddError("address group is neither static nor dynamic")
	}
}

// checkFilter validates a dynamic-group filter: balanced quotes and
// parentheses, and only quoted tags joined by and/or/not.
func checkFilter(filter string, b *util.ValidationBuilder) {
	if strings.TrimSpace(filter) == "" {
		b.AddError("dynamic address group has an empty filter")
		return
	}
	depth := 0
	var quote byte
	var bare strings.Builder
	flush := func() {
		token := bare.String()
		bare.Reset()
		if token == "" {
			return
		}
		switch strings.ToLower(token) {
		case "and", "or", "not":
		default:
			b.AddErrorf("unquoted token %q in filter", token)
		}
	}
	for i := 0; i < len(filter); i++ {
		c := filter[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			flush()
			quote = c
		case '(':
			flush()
			depth++
		case ')':
			flush()
			depth--
			if depth < 0 {
				b.AddError("unbalanced parentheses in filter")
				return
			}
		case ' ', '\t', '\n':
			flush()
		default:
			bare.WriteByte(c)
		}
	}
	flush()
	if quote != 0 {
		b.AddError("unbalanced quotes in filter")
	}
	if depth != 0 {
		b.AddError("unbalanced parentheses in filter")
	}
}

// ====================================================================
// service
// ====================================================================

func checkService(el *etree.Element, b *util.ValidationBuilder) {
	svc := object.WrapService(el)
	proto := svc.Protocol()
	switch proto {
	case "tcp", "udp", "sctp":
	case "":
		b.AddError("service has no protocol")
		return
	default:
		b.AddErrorf("unknown protocol %q", proto)
		return
	}
	if svc.Port() == "" {
		b.AddError("service has no destination port")
	} else if !validPortSpec(svc.Port()) {
		b.AddErrorf("invalid port %q", svc.Port())
	}
	if sp := svc.SourcePort(); sp != "" && !validPortSpec(sp) {
		b.AddErrorf("invalid source-port %q", sp)
	}
}

// validPortSpec accepts comma-separated ports and low-high ranges.
func validPortSpec(spec string) bool {
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		lo, hi, isRange := strings.Cut(part, "-")
		if !isRange {
			if !validPort(part) {
				return false
			}
			continue
		}
		a, ok1 := parsePort(lo)
		z, ok2 := parsePort(hi)
		if !ok1 || !ok2 || a > z {
			return false
		}
	}
	return true
}

func validPort(s string) bool {
	_, ok := parsePort(s)
	return ok
}

func parsePort(s string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 || n > 65535 {
		return 0, false
	}
	return n, true
}

// ====================================================================
// tag
// ====================================================================

var numericColor = regexp.MustCompile(`^color([1-9]|[12][0-9]|3[0-2])$`)

func checkTag(el *etree.Element, b *util.ValidationBuilder) {
	color := object.WrapTag(el).Color()
	if color == "" || numericColor.MatchString(color) {
		return
	}
	if _, ok := object.TagColorNames[color]; !ok {
		b.AddErrorf("unknown tag color %q", color)
	}
}

// ====================================================================
// external list
// ====================================================================

func checkExternalList(el *etree.Element, b *util.ValidationBuilder) {
	edl := object.WrapExternalList(el)
	listType := edl.Type()
	if listType == "" {
		b.AddError("external list has no type")
		return
	}
	if listType == "predefined-ip" || listType == "predefined-url" {
		return
	}
	url := edl.URL()
	switch {
	case url == "":
		b.AddErrorf("external list of type %q has no url", listType)
	case !strings.HasPrefix(url, "http://") &&
		!strings.HasPrefix(url, "https://") &&
		!strings.HasPrefix(url, "s3://"):
		b.AddErrorf("external list url %q must start with http://, https://, or s3://", url)
	}
}

// ====================================================================
// schedule
// ====================================================================

var (
	// PAN-OS non-recurring windows look like 2026/01/31@08:00-2026/01/31@17:00.
	windowPattern = regexp.MustCompile(
		`^\d{4}/\d{2}/\d{2}@\d{2}:\d{2}-\d{4}/\d{2}/\d{2}@\d{2}:\d{2}$`)
	timeRangePattern = regexp.MustCompile(`^\d{2}:\d{2}-\d{2}:\d{2}$`)
)

func checkSchedule(el *etree.Element, b *util.ValidationBuilder) {
	sched := object.WrapSchedule(el)
	switch {
	case sched.IsRecurring() && sched.IsNonRecurring():
		b.AddError("schedule is both recurring and non-recurring")
	case sched.IsNonRecurring():
		windows := sched.NonRecurringWindows()
		if len(windows) == 0 {
			b.AddError("non-recurring schedule has no time windows")
		}
		for _, w := range windows {
			if !windowPattern.MatchString(w) {
				b.AddErrorf("invalid schedule window %q", w)
			}
		}
	case sched.IsRecurring():
		checkRecurring(el, b)
	default:
		b.AddError("schedule is neither recurring nor non-recurring")
	}
}

func checkRecurring(el *etree.Element, b *util.ValidationBuilder) {
	recurring := el.FindElement("schedule-type/recurring")
	if recurring == nil {
		return
	}
	for _, member := range recurring.FindElements(".//member") {
		text := strings.TrimSpace(member.Text())
		if !timeRangePattern.MatchString(text) {
			b.AddErrorf("invalid recurring time range %q", text)
		}
	}
}

// ====================================================================
// profile group
// ====================================================================

func checkProfileGroup(el *etree.Element, b *util.ValidationBuilder) {
	pg := object.WrapProfileGroup(el)
	for _, kind := range pan.ProfileKinds() {
		if len(pg.ProfileMembers(string(kind))) > 0 {
			return
		}
	}
	b.AddError("profile group references no profiles")
}

// Objects validates every entry in a container and returns problems
// prefixed with the entry name.
func Objects(kind pan.Kind, entries []*etree.Element) (bool, []string) {
	var all []string
	for _, el := range entries {
		if ok, errs := Object(kind, el); !ok {
			name := xmltree.EntryName(el)
			for _, e := range errs {
				all = append(all, fmt.Sprintf("%s: %s", name, e))
			}
		}
	}
	return len(all) == 0, all
}
