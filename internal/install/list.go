package install

import (
	"context"
	"sort"

	"github.com/Masterminds/semver/v3"
	"github.com/tsukumogami/wasmedgeup/internal/version"
)

// InstalledVersion is a record paired with whether it is active.
type InstalledVersion struct {
	VersionRecord
	Active bool
}

// List returns installed versions, newest first.
func (m *Manager) List() ([]InstalledVersion, error) {
	st, err := m.state.Load()
	if err != nil {
		return nil, err
	}

	active, _ := st.ActiveRecord()
	out := make([]InstalledVersion, 0, len(st.Versions))
	for key, rec := range st.Versions {
		out = append(out, InstalledVersion{VersionRecord: rec, Active: key == active.Version && active.Version != ""})
	}
	sort.Slice(out, func(i, j int) bool {
		return versionLess(out[j].Version, out[i].Version)
	})
	return out, nil
}

// Active returns the active version's record.
func (m *Manager) Active() (*VersionRecord, error) {
	st, err := m.state.Load()
	if err != nil {
		return nil, err
	}
	rec, ok := st.ActiveRecord()
	if !ok {
		return nil, ErrNoActiveVersion
	}
	return &rec, nil
}

// RemoteVersions lists catalog tags, newest first. Pre-releases are
// included only when includePre is set.
func (m *Manager) RemoteVersions(ctx context.Context, includePre bool) ([]version.Tag, error) {
	if m.catalog == nil {
		return nil, &OpError{Op: "list", Stage: StageResolve, Err: errNoCatalog}
	}
	tags, err := m.catalog.ListTags(ctx)
	if err != nil {
		return nil, &OpError{Op: "list", Stage: StageResolve, Err: err}
	}
	out := make([]version.Tag, 0, len(tags))
	for _, t := range tags {
		if t.Version.Prerelease() != "" && !includePre {
			continue
		}
		out = append(out, t)
	}
	version.SortDescending(out)
	return out, nil
}

// versionLess orders semantic versions, falling back to string order for
// keys that do not parse.
func versionLess(a, b string) bool {
	va, errA := semver.NewVersion(a)
	vb, errB := semver.NewVersion(b)
	if errA != nil || errB != nil {
		return a < b
	}
	return va.LessThan(vb)
}
