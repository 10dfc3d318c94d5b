package object

import (
	"github.com/panflow-net/panflow/pkg/panflow/pan"
)

// AttrSpec records the version envelope of one sub-element. A zero
// SupportedFrom means the element exists in every known version; a nil
// RequiredFrom means it is never mandatory. Elements are matched by tag
// anywhere under the entry (disable-server-response-inspection sits
// under option), unless Within narrows the spec to one ancestor block.
type AttrSpec struct {
	// SupportedFrom is the first version in which the element is legal.
	SupportedFrom pan.Version
	// SupportedUntil, when non-zero, is the last version in which the
	// element is legal.
	SupportedUntil pan.Version
	// RequiredFrom, when non-nil, is the first version that mandates the
	// element.
	RequiredFrom *pan.Version
	// Default, when non-empty, is the value the adapter may synthesize
	// for a required-but-absent element instead of failing the copy.
	Default string
	// Within, when non-empty, names the ancestor block the element lives
	// in. The spec only applies to entries that carry that block, and a
	// synthesized default is placed inside it. Entries without the block
	// are left alone.
	Within string
}

// SupportedIn reports whether the element is legal at the given version.
func (s AttrSpec) SupportedIn(v pan.Version) bool {
	if !s.SupportedFrom.IsZero() && v.Before(s.SupportedFrom) {
		return false
	}
	if !s.SupportedUntil.IsZero() && s.SupportedUntil.Before(v) {
		return false
	}
	return true
}

// RequiredIn reports whether the element is mandatory at the given
// version.
func (s AttrSpec) RequiredIn(v pan.Version) bool {
	return s.RequiredFrom != nil && v.AtLeast(*s.RequiredFrom)
}

func versionPtr(s string) *pan.Version {
	v := pan.MustVersion(s)
	return &v
}

// NamedColorsFrom is the first version that accepts color names instead
// of numeric color codes on tags. The adapter converts named colors to
// their numeric code when targeting anything older.
var NamedColorsFrom = pan.MustVersion("11.0")

// objectCatalog maps object kinds to their version-sensitive sub-elements.
// Kinds without version-sensitive elements are simply absent.
var objectCatalog = map[pan.Kind]map[string]AttrSpec{
	pan.KindAddress: {
		"ip-wildcard": {SupportedFrom: pan.MustVersion("10.2")},
	},
	pan.KindTag: {
		// Tag colors are always legal; named color values are converted
		// by the adapter below NamedColorsFrom (value conversion, not
		// element presence, so it is special-cased there).
	},
	pan.KindExternalList: {
		"expand-domain": {SupportedFrom: pan.MustVersion("10.2")},
	},
	pan.KindURLFilteringProfile: {
		"cloud-inline-cat":  {SupportedFrom: pan.MustVersion("10.2")},
		"local-inline-cat":  {SupportedFrom: pan.MustVersion("11.0")},
		"safe-search-block": {SupportedFrom: pan.MustVersion("11.1")},
	},
	pan.KindSpywareProfile: {
		"inline-exception-edl-url": {SupportedFrom: pan.MustVersion("11.0")},
		"mica-engine-spyware-enabled": {
			SupportedFrom: pan.MustVersion("10.2"),
		},
	},
	pan.KindVulnerabilityProfile: {
		"mica-engine-vulnerability-enabled": {SupportedFrom: pan.MustVersion("10.2")},
	},
}

// ruleCatalog maps rule kinds to their version-sensitive sub-elements.
// These pin the explicit transitions: security gained rule-type,
// ssl-decrypt-mirror, and url-category-match in 11.0 and
// disable-server-response-inspection in 10.2; NAT requires fallback from
// 10.2 (synthesized as "none" on upgrade); PBF gained
// symmetric-return-addresses in 10.2; decryption gained
// ssl-protocol-version-min in 10.2 and tls13-action in 11.0.
var ruleCatalog = map[pan.RuleKind]map[string]AttrSpec{
	pan.RuleSecurity: {
		"rule-type":          {SupportedFrom: pan.MustVersion("11.0")},
		"ssl-decrypt-mirror": {SupportedFrom: pan.MustVersion("11.0")},
		"url-category-match": {SupportedFrom: pan.MustVersion("11.0")},
		"disable-server-response-inspection": {
			SupportedFrom: pan.MustVersion("10.2"),
		},
	},
	pan.RuleNAT: {
		// fallback only exists on dynamic-ip-and-port source translation;
		// static-ip and no-translation rules never carry it.
		"fallback": {
			SupportedFrom: pan.MustVersion("10.2"),
			RequiredFrom:  versionPtr("10.2"),
			Default:       "none",
			Within:        "dynamic-ip-and-port",
		},
	},
	pan.RulePBF: {
		"symmetric-return-addresses": {SupportedFrom: pan.MustVersion("10.2")},
	},
	pan.RuleDecryption: {
		"ssl-protocol-version-min": {SupportedFrom: pan.MustVersion("10.2")},
		"tls13-action":             {SupportedFrom: pan.MustVersion("11.0")},
	},
}

// ObjectAttrs returns the attribute specs for an object kind. The map is
// shared static data; callers must not mutate it.
func ObjectAttrs(kind pan.Kind) map[string]AttrSpec {
	return objectCatalog[kind]
}

// RuleAttrs returns the attribute specs for a rule kind.
func RuleAttrs(rk pan.RuleKind) map[string]AttrSpec {
	return ruleCatalog[rk]
}

// TagColorNames maps PAN-OS color names to their numeric codes, as used
// in configurations older than NamedColorsFrom.
var TagColorNames = map[string]string{
	"Red":         "color1",
	"Green":       "color2",
	"Blue":        "color3",
	"Yellow":      "color4",
	"Copper":      "color5",
	"Orange":      "color6",
	"Purple":      "color7",
	"Gray":        "color8",
	"Light Green": "color9",
	"Cyan":        "color10",
	"Light Gray":  "color11",
	"Blue Gray":   "color12",
	"Lime":        "color13",
	"Black":       "color14",
	"Gold":        "color15",
	"Brown":       "color16",
}

// DefaultColorCode is the numeric code substituted when a named color has
// no table entry and the target predates named colors.
const DefaultColorCode = "color8"
