package version

import (
	"slices"
	"strings"

	"github.com/pkg/errors"
)

// ErrInvalidVersion is returned when a version string cannot be parsed.
var ErrInvalidVersion = errors.New("invalid version")

// Version is a parsed migration version such as "2013.01.15.11.35.56".
//
// Each component is stored in canonical decimal form (leading zeros removed) so
// that arbitrarily long components, like timestamps, compare numerically
// without overflowing a machine integer. The zero value is not a valid version.
type Version struct {
	raw        string
	components []string
}

// Parse parses a dotted version string made of one or more non-negative
// integer components.
//
// Example:
//
//	v, err := version.Parse("1.2.10")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	fmt.Println(v.Less(version.MustParse("1.10"))) // true
func Parse(raw string) (Version, error) {
	if raw == "" {
		return Version{}, errors.Wrap(ErrInvalidVersion, "empty version")
	}

	parts := strings.Split(raw, ".")
	components := make([]string, len(parts))

	for i, part := range parts {
		if part == "" {
			return Version{}, errors.Wrapf(ErrInvalidVersion, "empty component in %q", raw)
		}

		for _, r := range part {
			if r < '0' || r > '9' {
				return Version{}, errors.Wrapf(ErrInvalidVersion, "non-numeric component %q in %q", part, raw)
			}
		}

		components[i] = canonical(part)
	}

	return Version{raw: raw, components: components}, nil
}

// MustParse is like Parse but panics when raw is invalid. Intended for tests
// and constants.
func MustParse(raw string) Version {
	v, err := Parse(raw)
	if err != nil {
		panic(err)
	}

	return v
}

// String returns the version exactly as it was written.
func (v Version) String() string {
	return v.raw
}

// Key returns a canonical representation where numerically equal versions
// produce identical keys. "1", "1.0" and "01.00" all have the key "1".
func (v Version) Key() string {
	end := len(v.components)
	for end > 1 && v.components[end-1] == "0" {
		end--
	}

	return strings.Join(v.components[:end], ".")
}

// IsZero reports whether v is the zero value (never parsed).
func (v Version) IsZero() bool {
	return len(v.components) == 0
}

// Compare returns -1, 0 or 1 depending on whether v is less than, equal to or
// greater than other. The shorter version is padded with zero components.
func (v Version) Compare(other Version) int {
	n := max(len(v.components), len(other.components))
	for i := range n {
		if c := compareComponent(v.component(i), other.component(i)); c != 0 {
			return c
		}
	}

	return 0
}

// Equal reports whether both versions have the same numeric value.
func (v Version) Equal(other Version) bool {
	return v.Compare(other) == 0
}

// Less reports whether v sorts before other.
func (v Version) Less(other Version) bool {
	return v.Compare(other) < 0
}

// Compare is a convenience for slices.SortFunc and friends.
func Compare(a, b Version) int {
	return a.Compare(b)
}

// Sort orders versions ascending in place.
func Sort(versions []Version) {
	slices.SortStableFunc(versions, Compare)
}

func (v Version) component(i int) string {
	if i < len(v.components) {
		return v.components[i]
	}

	return "0"
}

// compareComponent compares two canonical decimal strings.
func compareComponent(a, b string) int {
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}

	return strings.Compare(a, b)
}

func canonical(digits string) string {
	trimmed := strings.TrimLeft(digits, "0")
	if trimmed == "" {
		return "0"
	}

	return trimmed
}
