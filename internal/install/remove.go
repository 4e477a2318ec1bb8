package install

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tsukumogami/wasmedgeup/internal/version"
)

// Use makes an installed version active and regenerates the env scripts.
func (m *Manager) Use(ctx context.Context, v string) (*VersionRecord, error) {
	rec, err := m.use(ctx, v)
	if err != nil {
		return nil, &OpError{Op: "use", Stage: StageCommit, Input: v, Err: err}
	}
	return rec, nil
}

func (m *Manager) use(ctx context.Context, v string) (*VersionRecord, error) {
	rec, err := m.activate(ctx, v)
	if err != nil {
		return nil, err
	}
	if err := m.writeEnvScripts(rec); err != nil {
		return rec, fmt.Errorf("failed to write shell environment: %w", err)
	}
	return rec, nil
}

// activate points the active version at v without touching env scripts.
func (m *Manager) activate(ctx context.Context, v string) (*VersionRecord, error) {
	if err := version.ValidateVersionString(v); err != nil {
		return nil, err
	}
	key := canonicalVersion(v)

	var rec VersionRecord
	err := m.state.Commit(ctx, func(st *State) (func(), error) {
		r, ok := st.Versions[key]
		if !ok || !dirExists(r.Dir) {
			return nil, fmt.Errorf("%w: %s", ErrVersionNotInstalled, key)
		}
		rec = r
		st.Active = key
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Remove deletes an installed version and the plugins attached to it. If it
// was active, no version is active afterwards.
func (m *Manager) Remove(ctx context.Context, v string) (*VersionRecord, error) {
	fail := func(err error) (*VersionRecord, error) {
		return nil, &OpError{Op: "remove", Stage: StageCommit, Input: v, Err: err}
	}
	if err := version.ValidateVersionString(v); err != nil {
		return fail(err)
	}
	key := canonicalVersion(v)

	if err := m.config.EnsureDirectories(); err != nil {
		return fail(err)
	}
	trash, err := os.MkdirTemp(m.config.StagingDir, "remove-"+key+"-")
	if err != nil {
		return fail(fmt.Errorf("failed to create staging directory: %w", err))
	}
	defer os.RemoveAll(trash)
	trashed := filepath.Join(trash, "tree")

	var rec VersionRecord
	var wasActive bool
	err = m.state.Commit(ctx, func(st *State) (func(), error) {
		r, ok := st.Versions[key]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrVersionNotInstalled, key)
		}
		rec = r

		moved := false
		if _, err := os.Lstat(r.Dir); err == nil {
			if err := os.Rename(r.Dir, trashed); err != nil {
				return nil, fmt.Errorf("failed to remove %s: %w", r.Dir, err)
			}
			moved = true
		}

		delete(st.Versions, key)
		for k, p := range st.Plugins {
			if p.Runtime == key {
				delete(st.Plugins, k)
			}
		}
		wasActive = st.Active == key
		if wasActive {
			st.Active = ""
		}

		return func() {
			if moved {
				_ = os.Rename(trashed, r.Dir)
			}
		}, nil
	})
	if err != nil {
		return fail(err)
	}
	m.logger.Info("removed", "version", key)

	if wasActive {
		m.refreshEnv()
	}
	return &rec, nil
}
