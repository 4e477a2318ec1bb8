package version

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Tag is a catalog release reference paired with its parsed version.
type Tag struct {
	// Name is the tag as published (e.g. "0.14.0" or "v0.14.0").
	Name string

	Version *semver.Version
}

// String returns the canonical version (no "v" prefix). It names the
// installation directory.
func (t Tag) String() string {
	if t.Version == nil {
		return t.Name
	}
	return t.Version.String()
}

// ParseTag parses a tag name as a strict major.minor.patch[-pre] version
// with an optional leading "v".
func ParseTag(name string) (Tag, error) {
	v, err := semver.StrictNewVersion(strings.TrimPrefix(strings.TrimSpace(name), "v"))
	if err != nil {
		return Tag{}, err
	}
	return Tag{Name: name, Version: v}, nil
}

// ParseTags parses every name, returning valid tags and the names that
// were skipped.
func ParseTags(names []string) (tags []Tag, skipped []string) {
	for _, name := range names {
		tag, err := ParseTag(name)
		if err != nil {
			skipped = append(skipped, name)
			continue
		}
		tags = append(tags, tag)
	}
	return tags, skipped
}

// SortDescending orders tags newest first. Equal versions are ordered by
// tag name so the result is deterministic.
func SortDescending(tags []Tag) {
	sort.SliceStable(tags, func(i, j int) bool {
		if c := tags[i].Version.Compare(tags[j].Version); c != 0 {
			return c > 0
		}
		return tags[i].Name < tags[j].Name
	})
}

// ValidateVersionString checks that a version string is safe to use as a
// directory name. It rejects path separators and parent references.
func ValidateVersionString(v string) error {
	if v == "" {
		return &ResolverError{Type: ErrTypeValidation, Source: "catalog", Message: "empty version"}
	}
	if strings.Contains(v, "..") || strings.ContainsAny(v, `/\`) {
		return &ResolverError{
			Type:    ErrTypeValidation,
			Source:  "catalog",
			Message: fmt.Sprintf("version %q contains path characters", v),
		}
	}
	return nil
}
