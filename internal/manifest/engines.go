package manifest

import (
	"errors"
	"fmt"
	"sort"

	"github.com/Masterminds/semver/v3"
)

var (
	// ErrUnsupportedAlias indicates an engine value like "latest" that
	// names a moving target instead of a resolvable range
	ErrUnsupportedAlias = errors.New("unsupported version alias")

	// ErrBadRange indicates an engine value that is not a valid semver range
	ErrBadRange = errors.New("unparsable version range")

	// ErrNoMatch indicates no known release satisfies the range
	ErrNoMatch = errors.New("no release matches version range")
)

// Aliases that package.json authors reach for but that cannot be pinned
var unsupportedAliases = map[string]bool{
	"latest":  true,
	"current": true,
	"lts":     true,
	"lts/*":   true,
	"node":    true,
}

// ResolveVersion resolves a semver range against a list of known release
// versions, returning the highest release that satisfies it. An empty
// range resolves to the highest release.
func ResolveVersion(rangeStr string, available []string) (string, error) {
	if unsupportedAliases[rangeStr] {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedAlias, rangeStr)
	}

	var constraint *semver.Constraints
	if rangeStr != "" {
		c, err := semver.NewConstraint(rangeStr)
		if err != nil {
			return "", fmt.Errorf("%w: %q", ErrBadRange, rangeStr)
		}

		constraint = c
	}

	versions := make([]*semver.Version, 0, len(available))
	for _, a := range available {
		v, err := semver.NewVersion(a)
		if err != nil {
			continue // skip malformed entries in the release list
		}

		versions = append(versions, v)
	}

	sort.Sort(sort.Reverse(semver.Collection(versions)))

	for _, v := range versions {
		if constraint == nil || constraint.Check(v) {
			return v.String(), nil
		}
	}

	return "", fmt.Errorf("%w: %q", ErrNoMatch, rangeStr)
}

// Satisfies reports whether a concrete version satisfies a range.
// An empty range is satisfied by anything.
func Satisfies(version, rangeStr string) (bool, error) {
	if rangeStr == "" {
		return true, nil
	}

	c, err := semver.NewConstraint(rangeStr)
	if err != nil {
		return false, fmt.Errorf("%w: %q", ErrBadRange, rangeStr)
	}

	v, err := semver.NewVersion(version)
	if err != nil {
		return false, fmt.Errorf("invalid version %q: %w", version, err)
	}

	return c.Check(v), nil
}
