package osgi

import (
	"fmt"
	"strconv"
	"strings"

	mm "github.com/Masterminds/semver/v3"
)

// Version is an OSGi version: major.minor.micro plus an optional qualifier.
//
// Missing trailing components default to zero, so "1.2" equals "1.2.0".
// The zero value is version 0.0.0.
type Version struct {
	Major     int
	Minor     int
	Micro     int
	Qualifier string
}

// ParseVersion parses s as an OSGi version. Leading and trailing whitespace
// and surrounding double quotes are ignored. The empty string parses to the
// zero version.
func ParseVersion(s string) (Version, error) {
	s = strings.Trim(strings.TrimSpace(s), `"`)
	if s == "" {
		return Version{}, nil
	}

	parts := strings.SplitN(s, ".", 4)
	var nums [3]int
	var qualifier string
	for i, p := range parts {
		if i == 3 {
			qualifier = p
			break
		}
		// Maven-style "1.0.0-SNAPSHOT" carries the qualifier after a dash.
		if idx := strings.IndexByte(p, '-'); idx > 0 && i == len(parts)-1 {
			qualifier = p[idx+1:]
			p = p[:idx]
		}
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return Version{}, fmt.Errorf("osgi: invalid version %q", s)
		}
		nums[i] = n
	}
	return Version{Major: nums[0], Minor: nums[1], Micro: nums[2], Qualifier: qualifier}, nil
}

// MustParseVersion is like [ParseVersion] but panics on error.
func MustParseVersion(s string) Version {
	v, err := ParseVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

// LenientVersion parses s, returning 0.0.0 when s is malformed.
func LenientVersion(s string) Version {
	v, _ := ParseVersion(s)
	return v
}

// Compare returns -1, 0 or 1 depending on whether v is lower than, equal to or
// greater than o. Qualifiers are not compared.
func (v Version) Compare(o Version) int {
	return v.core().Compare(o.core())
}

// Less reports whether v orders strictly before o.
func (v Version) Less(o Version) bool { return v.Compare(o) < 0 }

// IsZero reports whether v is 0.0.0 without a qualifier.
func (v Version) IsZero() bool { return v == Version{} }

func (v Version) String() string {
	s := fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Micro)
	if v.Qualifier != "" {
		s += "." + v.Qualifier
	}
	return s
}

// core drops the qualifier; semver ignores build metadata and we never set a
// prerelease, so ordering is purely numeric.
func (v Version) core() *mm.Version {
	return mm.New(uint64(v.Major), uint64(v.Minor), uint64(v.Micro), "", "")
}
