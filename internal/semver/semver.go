// Package semver parses versions and evaluates requirement strings against
// them. Comparison itself is delegated to Masterminds/semver; this package
// adds the requirement grammar ("=", ">=", "~>") the module subsystem needs.
package semver

import (
	"fmt"
	"strconv"
	"strings"

	mmsemver "github.com/Masterminds/semver"
)

// Version wraps a parsed semantic version.
type Version struct {
	raw string
	v   *mmsemver.Version
}

// Parse parses a version string such as "1.2.3" or "1.0.0-beta".
func Parse(s string) (Version, error) {
	v, err := mmsemver.NewVersion(strings.TrimSpace(s))
	if err != nil {
		return Version{}, fmt.Errorf("semver: invalid version %q: %w", s, err)
	}
	return Version{raw: s, v: v}, nil
}

// String round-trips through Masterminds' canonical form; callers that need
// the identity parse ∘ to_string should use Original instead.
func (v Version) String() string {
	if v.v == nil {
		return ""
	}
	return v.v.String()
}

// Original returns the exact string Parse was given, so parse ∘ to_string is
// the identity even for inputs like "v1.2.3" or "1.2" that Masterminds
// normalizes internally.
func (v Version) Original() string {
	return v.raw
}

// Compare returns -1, 0, or 1 following normal semver ordering, with
// prereleases sorting below their release (1.0.0-beta < 1.0.0).
func (v Version) Compare(other Version) int {
	return v.v.Compare(other.v)
}

// Major/Minor/Patch expose the numeric components.
func (v Version) Major() int64 { return v.v.Major() }
func (v Version) Minor() int64 { return v.v.Minor() }
func (v Version) Patch() int64 { return v.v.Patch() }

// Satisfies evaluates a version requirement string against this version.
// Supported operators: "=" (default when absent), ">=", "~>".
//
// "~>1.0.0" pins major and minor, letting the patch vary: accepts 1.0.x,
// rejects 1.1.0.
// "~>1.0" pins major, letting minor and patch vary: accepts 1.x.y, rejects
// 2.0.0.
func (v Version) Satisfies(requirement string) (bool, error) {
	req := strings.TrimSpace(requirement)
	switch {
	case strings.HasPrefix(req, "~>"):
		return v.satisfiesTilde(strings.TrimSpace(req[2:]))
	case strings.HasPrefix(req, ">="):
		other, err := Parse(strings.TrimSpace(req[2:]))
		if err != nil {
			return false, err
		}
		return v.Compare(other) >= 0, nil
	case strings.HasPrefix(req, "="):
		other, err := Parse(strings.TrimSpace(req[1:]))
		if err != nil {
			return false, err
		}
		return v.Compare(other) == 0, nil
	default:
		other, err := Parse(req)
		if err != nil {
			return false, err
		}
		return v.Compare(other) == 0, nil
	}
}

func (v Version) satisfiesTilde(base string) (bool, error) {
	parts := strings.Split(base, ".")
	lower, err := Parse(base)
	if err != nil {
		return false, err
	}
	if v.Compare(lower) < 0 {
		return false, nil
	}

	var upper Version
	switch len(parts) {
	case 1: // "~>1" -- pin major
		major, err := strconv.ParseInt(parts[0], 10, 64)
		if err != nil {
			return false, fmt.Errorf("semver: invalid tilde requirement %q", base)
		}
		upper, err = Parse(fmt.Sprintf("%d.0.0", major+1))
		if err != nil {
			return false, err
		}
	case 2: // "~>1.0" -- pin major, allow minor and patch to vary
		major, err1 := strconv.ParseInt(parts[0], 10, 64)
		_, err2 := strconv.ParseInt(parts[1], 10, 64)
		if err1 != nil || err2 != nil {
			return false, fmt.Errorf("semver: invalid tilde requirement %q", base)
		}
		upper, err = Parse(fmt.Sprintf("%d.0.0", major+1))
		if err != nil {
			return false, err
		}
	default: // "~>1.0.0" -- pin minor, patch must vary within it
		major, err1 := strconv.ParseInt(parts[0], 10, 64)
		minor, err2 := strconv.ParseInt(parts[1], 10, 64)
		if err1 != nil || err2 != nil {
			return false, fmt.Errorf("semver: invalid tilde requirement %q", base)
		}
		upper, err = Parse(fmt.Sprintf("%d.%d.0", major, minor+1))
		if err != nil {
			return false, err
		}
	}
	return v.Compare(upper) < 0, nil
}

// Satisfies is a package-level convenience wrapping Parse+Version.Satisfies,
// matching the common call shape version_satisfies(version, requirement).
func Satisfies(version, requirement string) (bool, error) {
	v, err := Parse(version)
	if err != nil {
		return false, err
	}
	return v.Satisfies(requirement)
}
