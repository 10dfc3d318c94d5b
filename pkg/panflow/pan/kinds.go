// Package pan defines the shared PAN-OS vocabulary used across the engine:
// device types, contexts, entity kinds, rule kinds, and version numbers.
// It is a leaf package with no dependencies so that every layer can speak
// the same types without import cycles.
package pan

// DeviceType identifies the two PAN-OS configuration shapes.
type DeviceType string

const (
	Firewall DeviceType = "firewall"
	Panorama DeviceType = "panorama"
)

// Valid reports whether dt is a recognized device type.
func (dt DeviceType) Valid() bool {
	return dt == Firewall || dt == Panorama
}

// Kind identifies an object kind. Values follow the PAN-OS element
// vocabulary (hyphenated) so they read the same in code and in xpaths.
type Kind string

const (
	KindAddress          Kind = "address"
	KindAddressGroup     Kind = "address-group"
	KindService          Kind = "service"
	KindServiceGroup     Kind = "service-group"
	KindApplication      Kind = "application"
	KindApplicationGroup Kind = "application-group"
	KindTag              Kind = "tag"
	KindSchedule         Kind = "schedule"
	KindURLCategory      Kind = "custom-url-category"
	KindExternalList     Kind = "external-list"
	KindRegion           Kind = "region"
	KindDynamicUserGroup Kind = "dynamic-user-group"

	// Security profile kinds.
	KindVirusProfile         Kind = "virus"
	KindSpywareProfile       Kind = "spyware"
	KindVulnerabilityProfile Kind = "vulnerability"
	KindURLFilteringProfile  Kind = "url-filtering"
	KindFileBlockingProfile  Kind = "file-blocking"
	KindWildfireProfile      Kind = "wildfire-analysis"
	KindDNSSecurityProfile   Kind = "dns-security"
	KindDataFilteringProfile Kind = "data-filtering"

	KindProfileGroup Kind = "profile-group"
)

// ObjectKinds lists every object kind the engine understands, in a stable
// order (plain objects, then profiles, then the profile group).
func ObjectKinds() []Kind {
	return []Kind{
		KindAddress, KindAddressGroup,
		KindService, KindServiceGroup,
		KindApplication, KindApplicationGroup,
		KindTag, KindSchedule, KindURLCategory,
		KindExternalList, KindRegion, KindDynamicUserGroup,
		KindVirusProfile, KindSpywareProfile, KindVulnerabilityProfile,
		KindURLFilteringProfile, KindFileBlockingProfile,
		KindWildfireProfile, KindDNSSecurityProfile,
		KindDataFilteringProfile,
		KindProfileGroup,
	}
}

// ProfileKinds lists the eight individual security-profile kinds.
func ProfileKinds() []Kind {
	return []Kind{
		KindVirusProfile, KindSpywareProfile, KindVulnerabilityProfile,
		KindURLFilteringProfile, KindFileBlockingProfile,
		KindWildfireProfile, KindDNSSecurityProfile,
		KindDataFilteringProfile,
	}
}

// IsProfile reports whether k is one of the security-profile kinds.
func (k Kind) IsProfile() bool {
	for _, p := range ProfileKinds() {
		if k == p {
			return true
		}
	}
	return false
}

// Valid reports whether k is a recognized object kind.
func (k Kind) Valid() bool {
	for _, known := range ObjectKinds() {
		if k == known {
			return true
		}
	}
	return false
}

// RuleKind identifies a rulebase kind.
type RuleKind string

const (
	RuleSecurity    RuleKind = "security"
	RuleNAT         RuleKind = "nat"
	RulePBF         RuleKind = "pbf"
	RuleDecryption  RuleKind = "decryption"
	RuleQoS         RuleKind = "qos"
	RuleAuth        RuleKind = "authentication"
	RuleAppOverride RuleKind = "application-override"
	RuleDoS         RuleKind = "dos"
)

// RuleKinds lists every rule kind in a stable order.
func RuleKinds() []RuleKind {
	return []RuleKind{
		RuleSecurity, RuleNAT, RulePBF, RuleDecryption,
		RuleQoS, RuleAuth, RuleAppOverride, RuleDoS,
	}
}

// Valid reports whether rk is a recognized rule kind.
func (rk RuleKind) Valid() bool {
	for _, known := range RuleKinds() {
		if rk == known {
			return true
		}
	}
	return false
}

// Rulebase selects the pre/post split on Panorama. Firewalls have a single
// local rulebase.
type Rulebase string

const (
	RulebaseLocal Rulebase = "rulebase"
	RulebasePre   Rulebase = "pre-rulebase"
	RulebasePost  Rulebase = "post-rulebase"
)

// RulebasesFor returns the rulebases that exist on the given device type.
func RulebasesFor(dt DeviceType) []Rulebase {
	if dt == Panorama {
		return []Rulebase{RulebasePre, RulebasePost}
	}
	return []Rulebase{RulebaseLocal}
}
