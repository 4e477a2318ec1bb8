package install

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tsukumogami/wasmedgeup/internal/archive"
	"github.com/tsukumogami/wasmedgeup/internal/version"
)

// InstallOptions controls Install.
type InstallOptions struct {
	// Activate makes the installed version active. A version is always
	// activated when nothing else is.
	Activate bool

	// Force reinstalls a version that is already present.
	Force bool

	// NoVerify skips checksum verification.
	NoVerify bool
}

// Install resolves constraint, installs the matching version and returns
// its record. Either the version is fully installed and recorded, or
// nothing changes on disk.
func (m *Manager) Install(ctx context.Context, constraint string, opts InstallOptions) (*VersionRecord, error) {
	fail := func(stage Stage, input string, err error) (*VersionRecord, error) {
		return nil, &OpError{Op: "install", Stage: stage, Input: input, Err: err}
	}

	c, err := version.ParseConstraint(constraint)
	if err != nil {
		return fail(StageResolve, constraint, err)
	}

	// An exact version that is already installed needs no catalog lookup.
	if v, ok := c.Exact(); ok && !opts.Force {
		if rec, done, err := m.alreadyInstalled(ctx, v.String(), opts.Activate); done || err != nil {
			if err != nil {
				return fail(StageCommit, v.String(), err)
			}
			return rec, nil
		}
	}

	desc, err := m.platform(ctx)
	if err != nil {
		return fail(StageResolve, constraint, err)
	}

	tag, err := m.resolve(ctx, c)
	if err != nil {
		return fail(StageResolve, constraint, err)
	}
	key := tag.String()
	m.logger.Debug("resolved version", "constraint", c.String(), "tag", tag.Name, "platform", desc.String())

	if !opts.Force {
		if rec, done, err := m.alreadyInstalled(ctx, key, opts.Activate); done || err != nil {
			if err != nil {
				return fail(StageCommit, key, err)
			}
			return rec, nil
		}
	}

	asset, err := m.dist.AssetFor(tag, desc)
	if err != nil {
		return fail(StageResolve, key, err)
	}

	if err := m.config.EnsureDirectories(); err != nil {
		return fail(StageFetch, key, err)
	}
	staging, err := os.MkdirTemp(m.config.StagingDir, "install-"+key+"-")
	if err != nil {
		return fail(StageFetch, key, fmt.Errorf("failed to create staging directory: %w", err))
	}
	defer os.RemoveAll(staging)

	archivePath, verified, stage, err := m.fetchArtifact(ctx, asset, staging, opts.NoVerify)
	if err != nil {
		return fail(stage, asset.URL, err)
	}

	tree := filepath.Join(staging, "tree")
	if err := archive.Extract(archivePath, tree, asset.Format); err != nil {
		return fail(StageExtract, asset.Filename, err)
	}
	if err := ctx.Err(); err != nil {
		return fail(StageExtract, key, err)
	}

	rec := VersionRecord{
		Version:     key,
		Tag:         tag.Name,
		Dir:         m.config.VersionDir(key),
		InstalledAt: m.now().UTC(),
		Constraint:  constraint,
		SourceURL:   asset.URL,
		Verified:    verified,
		Platform:    desc.String(),
	}

	var activeChanged bool
	err = m.state.Commit(ctx, func(st *State) (func(), error) {
		activeChanged = false
		undo, err := replaceDir(tree, rec.Dir, filepath.Join(staging, "previous"))
		if err != nil {
			return nil, err
		}

		if _, existed := st.Versions[key]; existed {
			// The old tree, including its plugin directory, is gone.
			for k, p := range st.Plugins {
				if p.Runtime == key {
					delete(st.Plugins, k)
				}
			}
		}
		st.Versions[key] = rec

		if _, ok := st.ActiveRecord(); opts.Activate || !ok {
			st.Active = key
			activeChanged = true
		}
		return undo, nil
	})
	if err != nil {
		return fail(StageCommit, key, err)
	}
	m.logger.Info("installed", "version", key, "dir", rec.Dir, "verified", verified)

	if activeChanged {
		m.refreshEnv()
	}
	return &rec, nil
}

// alreadyInstalled reports whether key has a record with its directory in
// place. When activate is set the version is made active.
func (m *Manager) alreadyInstalled(ctx context.Context, key string, activate bool) (*VersionRecord, bool, error) {
	st, err := m.state.Load()
	if err != nil {
		return nil, false, err
	}
	rec, ok := st.Versions[key]
	if !ok || !dirExists(rec.Dir) {
		return nil, false, nil
	}
	m.logger.Info("version already installed", "version", key)

	if _, hasActive := st.ActiveRecord(); st.Active == key || (hasActive && !activate) {
		return &rec, true, nil
	}
	if _, err := m.activate(ctx, key); err != nil {
		return nil, true, err
	}
	m.refreshEnv()
	return &rec, true, nil
}

// replaceDir moves src to dst. An existing dst, such as an orphaned tree
// left by a crash before its record was saved, is moved to trash first.
// The returned undo restores the previous layout.
func replaceDir(src, dst, trash string) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return nil, fmt.Errorf("failed to create versions directory: %w", err)
	}

	movedOld := false
	if _, err := os.Lstat(dst); err == nil {
		if err := os.Rename(dst, trash); err != nil {
			return nil, fmt.Errorf("failed to move aside %s: %w", dst, err)
		}
		movedOld = true
	}

	if err := os.Rename(src, dst); err != nil {
		if movedOld {
			_ = os.Rename(trash, dst)
		}
		return nil, fmt.Errorf("failed to move version into place: %w", err)
	}

	return func() {
		_ = os.Rename(dst, src)
		if movedOld {
			_ = os.Rename(trash, dst)
		}
	}, nil
}
