package pan

import (
	"fmt"
	"strconv"
	"strings"
)

// Version is a PAN-OS release in major.minor form. Patch levels do not
// affect the configuration schema and are ignored on parse.
type Version struct {
	Major int
	Minor int
}

// Known schema versions, oldest first. The resolver and the attribute
// catalog only distinguish these; anything else is mapped through
// ResolveVersion.
var KnownVersions = []Version{
	{10, 1}, {10, 2}, {11, 0}, {11, 1}, {11, 2},
}

// DefaultVersion is assumed when neither the tree nor the caller provides
// a version.
var DefaultVersion = Version{11, 2}

// ParseVersion parses "10.1", "10.2.3", or "11" into a Version.
func ParseVersion(s string) (Version, error) {
	parts := strings.Split(strings.TrimSpace(s), ".")
	if len(parts) == 0 || parts[0] == "" {
		return Version{}, fmt.Errorf("invalid version %q", s)
	}
	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return Version{}, fmt.Errorf("invalid version %q", s)
	}
	minor := 0
	if len(parts) > 1 {
		minor, err = strconv.Atoi(parts[1])
		if err != nil {
			return Version{}, fmt.Errorf("invalid version %q", s)
		}
	}
	return Version{Major: major, Minor: minor}, nil
}

// MustVersion is ParseVersion for static tables; it panics on bad input.
func MustVersion(s string) Version {
	v, err := ParseVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

// String renders the version as "major.minor".
func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// IsZero reports whether v is the zero value.
func (v Version) IsZero() bool { return v.Major == 0 && v.Minor == 0 }

// Compare returns -1, 0, or 1 as v is older than, equal to, or newer
// than other.
func (v Version) Compare(other Version) int {
	switch {
	case v.Major != other.Major:
		if v.Major < other.Major {
			return -1
		}
		return 1
	case v.Minor != other.Minor:
		if v.Minor < other.Minor {
			return -1
		}
		return 1
	}
	return 0
}

// Before reports whether v is strictly older than other.
func (v Version) Before(other Version) bool { return v.Compare(other) < 0 }

// AtLeast reports whether v is other or newer.
func (v Version) AtLeast(other Version) bool { return v.Compare(other) >= 0 }

// ResolveVersion maps an arbitrary requested version onto a known schema
// version: the newest known version that is not newer than the request,
// or the newest known version when the request predates all known ones.
func ResolveVersion(requested Version) Version {
	var best Version
	found := false
	for _, known := range KnownVersions {
		if known.Compare(requested) <= 0 && (!found || known.Compare(best) > 0) {
			best = known
			found = true
		}
	}
	if found {
		return best
	}
	return KnownVersions[len(KnownVersions)-1]
}
