package xpath

import (
	"fmt"

	"github.com/panflow-net/panflow/pkg/panflow/pan"
	"github.com/panflow-net/panflow/pkg/util"
)

// Container fragments relative to a context base, keyed by schema version.
// The 10.1 table is the baseline; later tables list only the deltas and
// inherit the rest. Effective tables are materialized once at init.

var baseFragments = map[pan.Kind]string{
	pan.KindAddress:          "address",
	pan.KindAddressGroup:     "address-group",
	pan.KindService:          "service",
	pan.KindServiceGroup:     "service-group",
	pan.KindApplication:      "application",
	pan.KindApplicationGroup: "application-group",
	pan.KindTag:              "tag",
	pan.KindSchedule:         "schedule",
	pan.KindURLCategory:      "profiles/custom-url-category",
	pan.KindExternalList:     "external-list",
	pan.KindRegion:           "region",
	pan.KindDynamicUserGroup: "dynamic-user-group",

	pan.KindVirusProfile:         "profiles/virus",
	pan.KindSpywareProfile:       "profiles/spyware",
	pan.KindVulnerabilityProfile: "profiles/vulnerability",
	pan.KindURLFilteringProfile:  "profiles/url-filtering",
	pan.KindFileBlockingProfile:  "profiles/file-blocking",
	pan.KindWildfireProfile:      "profiles/wildfire-analysis",
	pan.KindDataFilteringProfile: "profiles/data-filtering",

	pan.KindProfileGroup: "profile-group",
}

// Deltas on top of the previous known version. A nil value removes the
// kind from that version onward.
var fragmentDeltas = map[pan.Version]map[pan.Kind]string{
	// DNS Security split out of anti-spyware as its own profile in 10.2.
	pan.MustVersion("10.2"): {
		pan.KindDNSSecurityProfile: "profiles/dns-security",
	},
}

// effectiveFragments holds the fully materialized per-version tables.
var effectiveFragments = buildEffectiveFragments()

func buildEffectiveFragments() map[pan.Version]map[pan.Kind]string {
	tables := make(map[pan.Version]map[pan.Kind]string, len(pan.KnownVersions))
	current := make(map[pan.Kind]string, len(baseFragments))
	for k, v := range baseFragments {
		current[k] = v
	}
	for _, ver := range pan.KnownVersions {
		if delta, ok := fragmentDeltas[ver]; ok {
			for k, v := range delta {
				if v == "" {
					delete(current, k)
				} else {
					current[k] = v
				}
			}
		}
		snapshot := make(map[pan.Kind]string, len(current))
		for k, v := range current {
			snapshot[k] = v
		}
		tables[ver] = snapshot
	}
	return tables
}

// objectFragment returns the container fragment for a kind at a version,
// applying the version fallback rule.
func objectFragment(kind pan.Kind, version pan.Version) (string, error) {
	if !kind.Valid() {
		return "", fmt.Errorf("%w: unknown object kind %q", util.ErrInvalidArgument, kind)
	}
	resolved := pan.ResolveVersion(version)
	table := effectiveFragments[resolved]
	fragment, ok := table[kind]
	if !ok {
		return "", fmt.Errorf("%w: kind %s is not available in PAN-OS %s", util.ErrInvalidArgument, kind, resolved)
	}
	return fragment, nil
}
