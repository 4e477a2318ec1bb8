package install

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tsukumogami/wasmedgeup/internal/archive"
	"github.com/tsukumogami/wasmedgeup/internal/download"
	"github.com/tsukumogami/wasmedgeup/internal/platform"
	"github.com/tsukumogami/wasmedgeup/internal/version"
)

// PluginOptions controls InstallPlugin.
type PluginOptions struct {
	// Runtime is the installed version to attach to. Empty means the
	// active version.
	Runtime string

	Force    bool
	NoVerify bool
}

// InstallPlugin installs plugin name into the plugin directory of a runtime
// version. An empty constraint selects the plugin release matching the
// runtime version.
func (m *Manager) InstallPlugin(ctx context.Context, name, constraint string, opts PluginOptions) (*PluginRecord, error) {
	fail := func(stage Stage, input string, err error) (*PluginRecord, error) {
		return nil, &OpError{Op: "plugin install", Stage: stage, Input: input, Err: err}
	}

	if err := version.ValidatePluginName(name); err != nil {
		return fail(StageResolve, name, err)
	}
	st, err := m.state.Load()
	if err != nil {
		return fail(StageResolve, name, err)
	}
	rt, err := runtimeRecord(st, opts.Runtime)
	if err != nil {
		return fail(StageResolve, name, err)
	}

	tag, err := m.pluginTag(ctx, rt, constraint)
	if err != nil {
		return fail(StageResolve, name+"@"+constraint, err)
	}
	key := pluginKey(rt.Version, name)

	if existing, ok := st.Plugins[key]; ok && !opts.Force && existing.Version == tag.String() && pluginFilesPresent(existing) {
		m.logger.Info("plugin already installed", "plugin", name, "version", existing.Version, "runtime", rt.Version)
		return &existing, nil
	}

	desc, err := m.platform(ctx)
	if err != nil {
		return fail(StageResolve, name, err)
	}
	token, err := m.dist.Scheme.Token(desc)
	if err != nil {
		return fail(StageResolve, name, err)
	}

	if err := m.config.EnsureDirectories(); err != nil {
		return fail(StageFetch, name, err)
	}
	staging, err := os.MkdirTemp(m.config.StagingDir, "plugin-"+name+"-")
	if err != nil {
		return fail(StageFetch, name, fmt.Errorf("failed to create staging directory: %w", err))
	}
	defer os.RemoveAll(staging)

	// Try the platform's own build, then its fallbacks, moving on only when
	// a build is not published at all.
	var (
		asset       version.Asset
		archivePath string
		verified    bool
	)
	candidates := version.PlatformFallbacks(token, tag)
	for i, candidate := range candidates {
		asset, err = m.dist.PluginAssetForToken(name, tag, candidate, desc)
		if err != nil {
			return fail(StageResolve, name, err)
		}
		var stage Stage
		archivePath, verified, stage, err = m.fetchArtifact(ctx, asset, staging, opts.NoVerify)
		if err == nil {
			break
		}
		if stage == StageFetch && errors.Is(err, download.ErrAssetNotFound) && i < len(candidates)-1 {
			m.logger.Debug("plugin build not published, trying fallback", "plugin", name, "token", candidate, "next", candidates[i+1])
			continue
		}
		return fail(stage, asset.URL, err)
	}

	tree := filepath.Join(staging, "tree")
	if err := archive.Extract(archivePath, tree, asset.Format); err != nil {
		return fail(StageExtract, asset.Filename, err)
	}
	libs, err := findPluginLibraries(tree, desc)
	if err != nil {
		return fail(StageExtract, asset.Filename, err)
	}
	if len(libs) == 0 {
		return fail(StageExtract, asset.Filename, &archive.ExtractionError{
			Archive: archivePath,
			Dest:    tree,
			Err:     errors.New("archive contains no plugin library"),
		})
	}

	pluginDir := m.config.PluginDir(rt.Version)
	rec := PluginRecord{
		Name:        name,
		Version:     tag.String(),
		Runtime:     rt.Version,
		Dir:         pluginDir,
		InstalledAt: m.now().UTC(),
		SourceURL:   asset.URL,
		Verified:    verified,
	}
	for _, lib := range libs {
		rec.Files = append(rec.Files, filepath.Base(lib))
	}

	trash := filepath.Join(staging, "previous")
	err = m.state.Commit(ctx, func(st *State) (func(), error) {
		if r, ok := st.Versions[rt.Version]; !ok || !dirExists(r.Dir) {
			return nil, fmt.Errorf("%w: %s", ErrVersionNotInstalled, rt.Version)
		}
		if err := os.MkdirAll(pluginDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create plugin directory: %w", err)
		}

		replaced := rec.Files
		if old, ok := st.Plugins[key]; ok {
			replaced = append(append([]string{}, old.Files...), rec.Files...)
		}
		undoOld, err := moveFiles(pluginDir, trash, replaced)
		if err != nil {
			return nil, err
		}
		undoNew, err := placeFiles(libs, pluginDir)
		if err != nil {
			undoOld()
			return nil, err
		}

		st.Plugins[key] = rec
		return func() {
			undoNew()
			undoOld()
		}, nil
	})
	if err != nil {
		return fail(StageCommit, name, err)
	}
	m.logger.Info("installed plugin", "plugin", name, "version", rec.Version, "runtime", rt.Version)
	return &rec, nil
}

// RemovePlugin deletes plugin name from a runtime version. An empty runtime
// means the active version.
func (m *Manager) RemovePlugin(ctx context.Context, name, runtime string) (*PluginRecord, error) {
	fail := func(err error) (*PluginRecord, error) {
		return nil, &OpError{Op: "plugin remove", Stage: StageCommit, Input: name, Err: err}
	}
	if err := version.ValidatePluginName(name); err != nil {
		return fail(err)
	}
	st, err := m.state.Load()
	if err != nil {
		return fail(err)
	}
	rt, err := runtimeRecord(st, runtime)
	if err != nil {
		return fail(err)
	}
	key := pluginKey(rt.Version, name)

	if err := m.config.EnsureDirectories(); err != nil {
		return fail(err)
	}
	trash, err := os.MkdirTemp(m.config.StagingDir, "plugin-remove-")
	if err != nil {
		return fail(err)
	}
	defer os.RemoveAll(trash)

	var rec PluginRecord
	err = m.state.Commit(ctx, func(st *State) (func(), error) {
		r, ok := st.Plugins[key]
		if !ok {
			return nil, fmt.Errorf("%w: %s for %s", ErrPluginNotInstalled, name, rt.Version)
		}
		rec = r
		undo, err := moveFiles(r.Dir, trash, r.Files)
		if err != nil {
			return nil, err
		}
		delete(st.Plugins, key)
		return undo, nil
	})
	if err != nil {
		return fail(err)
	}
	m.logger.Info("removed plugin", "plugin", name, "runtime", rt.Version)
	return &rec, nil
}

// ListPlugins returns plugin records ordered by runtime (newest first),
// then name.
func (m *Manager) ListPlugins() ([]PluginRecord, error) {
	st, err := m.state.Load()
	if err != nil {
		return nil, err
	}
	out := make([]PluginRecord, 0, len(st.Plugins))
	for _, p := range st.Plugins {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Runtime != out[j].Runtime {
			return versionLess(out[j].Runtime, out[i].Runtime)
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// AvailablePlugins lists the plugins published for a runtime version on
// the target platform. An empty runtime means the active version.
func (m *Manager) AvailablePlugins(ctx context.Context, runtime string) ([]string, error) {
	fail := func(err error) ([]string, error) {
		return nil, &OpError{Op: "plugin list", Stage: StageResolve, Input: runtime, Err: err}
	}
	st, err := m.state.Load()
	if err != nil {
		return fail(err)
	}
	rt, err := runtimeRecord(st, runtime)
	if err != nil {
		return fail(err)
	}
	lister, ok := m.catalog.(version.AssetLister)
	if !ok {
		return fail(errors.New("release catalog cannot list assets"))
	}
	desc, err := m.platform(ctx)
	if err != nil {
		return fail(err)
	}
	token, err := m.dist.Scheme.Token(desc)
	if err != nil {
		return fail(err)
	}
	tag, err := version.ParseTag(tagName(rt))
	if err != nil {
		return fail(err)
	}
	assets, err := lister.ReleaseAssets(ctx, tag.Name)
	if err != nil {
		return fail(err)
	}
	return m.dist.AvailablePlugins(assets, version.PlatformFallbacks(token, tag)...), nil
}

// runtimeRecord returns the record for v, or the active record when v is
// empty.
func runtimeRecord(st *State, v string) (VersionRecord, error) {
	if v == "" {
		rec, ok := st.ActiveRecord()
		if !ok {
			return VersionRecord{}, ErrNoActiveVersion
		}
		return rec, nil
	}
	key := canonicalVersion(v)
	rec, ok := st.Versions[key]
	if !ok || !dirExists(rec.Dir) {
		return VersionRecord{}, fmt.Errorf("%w: %s", ErrVersionNotInstalled, key)
	}
	return rec, nil
}

// pluginTag picks the plugin release. Without a constraint it is the
// runtime's own release; an exact version needs no catalog lookup.
func (m *Manager) pluginTag(ctx context.Context, rt VersionRecord, constraint string) (version.Tag, error) {
	constraint = strings.TrimSpace(constraint)
	if constraint == "" {
		return version.ParseTag(tagName(rt))
	}
	c, err := version.ParseConstraint(constraint)
	if err != nil {
		return version.Tag{}, err
	}
	if _, ok := c.Exact(); ok {
		return version.ParseTag(constraint)
	}
	return m.resolve(ctx, c)
}

func tagName(rec VersionRecord) string {
	if rec.Tag != "" {
		return rec.Tag
	}
	return rec.Version
}

func pluginFilesPresent(rec PluginRecord) bool {
	for _, f := range rec.Files {
		if _, err := os.Stat(filepath.Join(rec.Dir, f)); err != nil {
			return false
		}
	}
	return len(rec.Files) > 0
}

// findPluginLibraries returns the plugin shared libraries under root.
func findPluginLibraries(root string, desc platform.Descriptor) ([]string, error) {
	prefix, suffix := platform.PluginLibrary(desc)
	seen := make(map[string]bool)
	var libs []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		base := d.Name()
		if !strings.HasPrefix(base, prefix) || !strings.HasSuffix(base, suffix) || seen[base] {
			return nil
		}
		seen[base] = true
		libs = append(libs, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan plugin archive: %w", err)
	}
	sort.Strings(libs)
	return libs, nil
}

// moveFiles moves the named files that exist in dir into trash. The
// returned undo moves them back.
func moveFiles(dir, trash string, names []string) (func(), error) {
	var moved []string
	undo := func() {
		for _, n := range moved {
			_ = os.Rename(filepath.Join(trash, n), filepath.Join(dir, n))
		}
	}
	if err := os.MkdirAll(trash, 0755); err != nil {
		return nil, err
	}
	for _, n := range names {
		src := filepath.Join(dir, n)
		if _, err := os.Lstat(src); err != nil {
			continue
		}
		if err := os.Rename(src, filepath.Join(trash, n)); err != nil {
			undo()
			return nil, fmt.Errorf("failed to move %s: %w", src, err)
		}
		moved = append(moved, n)
	}
	return undo, nil
}

// placeFiles renames each file into dir. The returned undo removes them.
func placeFiles(files []string, dir string) (func(), error) {
	var placed []string
	undo := func() {
		for _, p := range placed {
			_ = os.Remove(p)
		}
	}
	for _, f := range files {
		dst := filepath.Join(dir, filepath.Base(f))
		if err := os.Rename(f, dst); err != nil {
			undo()
			return nil, fmt.Errorf("failed to move %s into place: %w", filepath.Base(f), err)
		}
		placed = append(placed, dst)
	}
	return undo, nil
}
