package version

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Latest is the constraint sentinel selecting the newest stable release.
const Latest = "latest"

// Constraint selects versions from the catalog. It is either an exact
// version or a range expression; "latest" is the range "*".
type Constraint struct {
	raw   string
	exact *semver.Version
	rng   *semver.Constraints
}

// ParseConstraint parses an exact version ("0.14.0", "v0.15.0-rc.1"), a
// range (">=0.13, <0.15", "~0.14", "0.14") or "latest". An empty string
// means latest.
func ParseConstraint(s string) (Constraint, error) {
	raw := strings.TrimSpace(s)
	if raw == "" || strings.EqualFold(raw, Latest) {
		rng, _ := semver.NewConstraint("*")
		return Constraint{raw: Latest, rng: rng}, nil
	}

	if v, err := semver.StrictNewVersion(strings.TrimPrefix(raw, "v")); err == nil {
		return Constraint{raw: raw, exact: v}, nil
	}

	rng, err := semver.NewConstraint(raw)
	if err != nil {
		return Constraint{}, &ResolverError{
			Type:    ErrTypeValidation,
			Source:  "catalog",
			Message: fmt.Sprintf("invalid version constraint %q", raw),
			Err:     err,
		}
	}
	return Constraint{raw: raw, rng: rng}, nil
}

// String returns the constraint as the user wrote it ("latest" for the
// empty constraint).
func (c Constraint) String() string {
	return c.raw
}

// Exact returns the pinned version when the constraint names one.
func (c Constraint) Exact() (*semver.Version, bool) {
	return c.exact, c.exact != nil
}

// Matches reports whether v satisfies the constraint. Pre-releases only
// match ranges that themselves mention a pre-release, or an exact pin.
func (c Constraint) Matches(v *semver.Version) bool {
	if v == nil {
		return false
	}
	if c.exact != nil {
		return c.exact.Equal(v)
	}
	if c.rng == nil {
		return false
	}
	return c.rng.Check(v)
}

// Resolve returns the highest tag satisfying c. Tags spelling the same
// version differently ("0.14.0" and "v0.14.0") resolve to the
// lexically smaller name.
func Resolve(c Constraint, tags []Tag) (Tag, error) {
	var best Tag
	found := false
	for _, t := range tags {
		if !c.Matches(t.Version) {
			continue
		}
		if !found {
			best, found = t, true
			continue
		}
		switch cmp := t.Version.Compare(best.Version); {
		case cmp > 0:
			best = t
		case cmp == 0 && t.Name < best.Name:
			best = t
		}
	}

	if !found {
		return Tag{}, &ResolverError{
			Type:    ErrTypeNoMatch,
			Source:  "catalog",
			Message: fmt.Sprintf("no version matches %q among %d releases", c.String(), len(tags)),
			Err:     ErrNoMatchingVersion,
		}
	}
	return best, nil
}
