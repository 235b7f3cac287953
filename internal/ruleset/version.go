package ruleset

import (
	"fmt"
	"strconv"
	"strings"
)

// Version is a parsed dotted game version, e.g. "1.5.8" -> [1 5 8].
type Version []int

// ParseVersion splits a dotted version string into its numeric components.
func ParseVersion(s string) (Version, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty version string")
	}

	parts := strings.Split(s, ".")
	v := make(Version, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("malformed version %q: component %q is not a number", s, p)
		}
		v = append(v, n)
	}
	return v, nil
}

// Compare orders versions component by component. A version that is a
// strict prefix of another sorts first, so 1.5 < 1.5.0.
func (v Version) Compare(o Version) int {
	for i := 0; i < len(v) && i < len(o); i++ {
		switch {
		case v[i] < o[i]:
			return -1
		case v[i] > o[i]:
			return 1
		}
	}
	switch {
	case len(v) < len(o):
		return -1
	case len(v) > len(o):
		return 1
	}
	return 0
}

func (v Version) String() string {
	parts := make([]string, len(v))
	for i, n := range v {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ".")
}
