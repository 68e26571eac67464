package osgi

import (
	"fmt"
	"strings"
)

// VersionRange is an interval of versions. A nil bound is unbounded on that
// side; the zero value accepts every version.
type VersionRange struct {
	Lower          *Version
	Upper          *Version
	LowerInclusive bool
	UpperInclusive bool
}

// AnyVersion accepts every version.
var AnyVersion = VersionRange{}

// AtLeast returns the range [v, ∞).
func AtLeast(v Version) VersionRange {
	return VersionRange{Lower: &v, LowerInclusive: true}
}

// Exactly returns the range [v, v].
func Exactly(v Version) VersionRange {
	return VersionRange{Lower: &v, Upper: &v, LowerInclusive: true, UpperInclusive: true}
}

// ParseRange parses an OSGi version range.
//
// Accepted forms:
//   - "" or "0.0.0": any version
//   - "1.2.3": at least 1.2.3
//   - "[1.0,2.0)", "(1.0,2.0]", ...: explicit interval
//
// Surrounding whitespace and double quotes are ignored.
func ParseRange(s string) (VersionRange, error) {
	s = strings.Trim(strings.TrimSpace(s), `"`)
	if s == "" || s == "0.0.0" {
		return AnyVersion, nil
	}

	first, last := s[0], s[len(s)-1]
	if first != '[' && first != '(' {
		v, err := ParseVersion(s)
		if err != nil {
			return VersionRange{}, err
		}
		return AtLeast(v), nil
	}
	if last != ']' && last != ')' {
		return VersionRange{}, fmt.Errorf("osgi: invalid version range %q", s)
	}

	lo, hi, ok := strings.Cut(s[1:len(s)-1], ",")
	if !ok {
		return VersionRange{}, fmt.Errorf("osgi: invalid version range %q", s)
	}
	lower, err := ParseVersion(lo)
	if err != nil {
		return VersionRange{}, err
	}
	r := VersionRange{
		Lower:          &lower,
		LowerInclusive: first == '[',
		UpperInclusive: last == ']',
	}
	if strings.TrimSpace(hi) != "" {
		upper, err := ParseVersion(hi)
		if err != nil {
			return VersionRange{}, err
		}
		r.Upper = &upper
	}
	return r, nil
}

// MustParseRange is like [ParseRange] but panics on error.
func MustParseRange(s string) VersionRange {
	r, err := ParseRange(s)
	if err != nil {
		panic(err)
	}
	return r
}

// IsAny reports whether r places no constraint on versions.
func (r VersionRange) IsAny() bool {
	return r.Upper == nil && (r.Lower == nil || (r.Lower.IsZero() && r.LowerInclusive))
}

// Includes reports whether v lies within r.
func (r VersionRange) Includes(v Version) bool {
	if r.Lower != nil {
		c := v.Compare(*r.Lower)
		if c < 0 || (c == 0 && !r.LowerInclusive) {
			return false
		}
	}
	if r.Upper != nil {
		c := v.Compare(*r.Upper)
		if c > 0 || (c == 0 && !r.UpperInclusive) {
			return false
		}
	}
	return true
}

func (r VersionRange) String() string {
	if r.Lower == nil && r.Upper == nil {
		return "0.0.0"
	}
	if r.Upper == nil && r.LowerInclusive {
		return r.Lower.String()
	}
	var b strings.Builder
	if r.LowerInclusive {
		b.WriteByte('[')
	} else {
		b.WriteByte('(')
	}
	if r.Lower != nil {
		b.WriteString(r.Lower.String())
	} else {
		b.WriteString("0.0.0")
	}
	b.WriteByte(',')
	if r.Upper != nil {
		b.WriteString(r.Upper.String())
	}
	if r.UpperInclusive {
		b.WriteByte(']')
	} else {
		b.WriteByte(')')
	}
	return b.String()
}
