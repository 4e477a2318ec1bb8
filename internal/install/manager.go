// Package install manages installed WasmEdge versions, their plugins and
// the active-version pointer under the wasmedgeup home directory.
package install

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"time"

	"github.com/tsukumogami/wasmedgeup/internal/config"
	"github.com/tsukumogami/wasmedgeup/internal/download"
	"github.com/tsukumogami/wasmedgeup/internal/log"
	"github.com/tsukumogami/wasmedgeup/internal/platform"
	"github.com/tsukumogami/wasmedgeup/internal/userconfig"
	"github.com/tsukumogami/wasmedgeup/internal/version"
)

// Manager performs install, use and remove operations.
type Manager struct {
	config       *config.Config
	state        *StateManager
	catalog      version.Catalog
	dist         version.Distribution
	fetcher      *download.Fetcher
	platform     func(ctx context.Context) (platform.Descriptor, error)
	fetchRetries int
	retryBackoff time.Duration
	goos         string
	logger       log.Logger
	now          func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithCatalog sets the release catalog used to resolve constraints.
func WithCatalog(c version.Catalog) Option {
	return func(m *Manager) { m.catalog = c }
}

// WithDistribution sets the artifact naming and download location.
func WithDistribution(d version.Distribution) Option {
	return func(m *Manager) { m.dist = d }
}

// WithFetcher sets the artifact fetcher.
func WithFetcher(f *download.Fetcher) Option {
	return func(m *Manager) { m.fetcher = f }
}

// WithPlatform pins the target platform instead of detecting it.
func WithPlatform(d platform.Descriptor) Option {
	return func(m *Manager) {
		m.platform = func(context.Context) (platform.Descriptor, error) { return d, nil }
	}
}

// WithPlatformOverrides detects the host platform and applies o on top.
func WithPlatformOverrides(o platform.Overrides) Option {
	return func(m *Manager) {
		m.platform = func(ctx context.Context) (platform.Descriptor, error) {
			return platform.NewDetector().Resolve(ctx, o)
		}
	}
}

// WithFetchRetries sets how many extra attempts a retryable fetch gets.
func WithFetchRetries(n int) Option {
	return func(m *Manager) { m.fetchRetries = n }
}

// WithRetryBackoff sets the initial delay between fetch attempts.
func WithRetryBackoff(d time.Duration) Option {
	return func(m *Manager) { m.retryBackoff = d }
}

// WithLockRetries sets how many attempts are made to take the state lock.
func WithLockRetries(n int) Option {
	return func(m *Manager) { m.state.lockRetries = n }
}

// WithLockBackoff sets the initial delay between lock attempts.
func WithLockBackoff(d time.Duration) Option {
	return func(m *Manager) { m.state.lockBackoff = d }
}

// WithGOOS sets the operating system env scripts are rendered for.
func WithGOOS(goos string) Option {
	return func(m *Manager) { m.goos = goos }
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithClock sets the time source for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// New creates a Manager rooted at cfg.
func New(cfg *config.Config, opts ...Option) *Manager {
	owner, repo, _ := userconfig.DefaultConfig().CatalogOwnerRepo()
	m := &Manager{
		config:       cfg,
		state:        NewStateManager(cfg),
		dist:         version.NewDistribution(version.GitHubReleasesURL(owner, repo)),
		retryBackoff: time.Second,
		goos:         runtime.GOOS,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.fetcher == nil {
		m.fetcher = download.NewFetcher(download.WithLogger(m.logger))
	}
	if m.platform == nil {
		m.platform = platform.Detect
	}
	m.logger = log.OrDefault(m.logger)
	return m
}

// State returns the underlying state manager.
func (m *Manager) State() *StateManager {
	return m.state
}

// Platform returns the target platform descriptor.
func (m *Manager) Platform(ctx context.Context) (platform.Descriptor, error) {
	return m.platform(ctx)
}

var errNoCatalog = errors.New("no release catalog configured")

// refresher is implemented by catalogs that cache their tag list.
type refresher interface {
	Refresh(ctx context.Context) ([]version.Tag, error)
}

// resolve picks the tag satisfying c. Ranges and "latest" are resolved
// against a freshly fetched tag list so a cached list never hides a newer
// release; if the refresh fails the cached list is used instead. An exact
// pin reads the cache and refreshes only when the pin is missing from it.
func (m *Manager) resolve(ctx context.Context, c version.Constraint) (version.Tag, error) {
	if m.catalog == nil {
		return version.Tag{}, errNoCatalog
	}
	r, canRefresh := m.catalog.(refresher)
	_, exact := c.Exact()

	if canRefresh && !exact {
		tags, err := r.Refresh(ctx)
		if err == nil {
			return version.Resolve(c, tags)
		}
		m.logger.Warn("catalog refresh failed, using cached releases", "error", err)
	}

	tags, err := m.catalog.ListTags(ctx)
	if err != nil {
		return version.Tag{}, err
	}
	tag, err := version.Resolve(c, tags)
	if err == nil || !errors.Is(err, version.ErrNoMatchingVersion) || !canRefresh || !exact {
		return tag, err
	}

	m.logger.Debug("no cached match, refreshing catalog", "constraint", c.String())
	tags, refreshErr := r.Refresh(ctx)
	if refreshErr != nil {
		return version.Tag{}, err
	}
	return version.Resolve(c, tags)
}

// fetchArtifact downloads asset into dir, verifies it unless noVerify, and
// returns the archive path. Failures are tagged with the stage they hit.
func (m *Manager) fetchArtifact(ctx context.Context, asset version.Asset, dir string, noVerify bool) (string, bool, Stage, error) {
	archivePath := filepath.Join(dir, asset.Filename)

	var digest string
	err := download.Retry(ctx, m.fetchRetries+1, m.retryBackoff, func(attempt int) error {
		if attempt > 1 {
			m.logger.Info("retrying download", "url", asset.URL, "attempt", attempt)
		}
		var err error
		digest, err = m.fetcher.Download(ctx, asset.URL, archivePath)
		return err
	})
	if err != nil {
		return "", false, StageFetch, err
	}

	if noVerify {
		m.logger.Warn("checksum verification disabled", "url", asset.URL)
		return archivePath, false, "", nil
	}

	var expected string
	err = download.Retry(ctx, m.fetchRetries+1, m.retryBackoff, func(int) error {
		var err error
		expected, err = m.fetcher.FetchChecksum(ctx, asset.ChecksumURL, asset.Filename)
		return err
	})
	if err != nil {
		return "", false, StageVerify, fmt.Errorf("failed to fetch checksum: %w", err)
	}
	if err := download.VerifyDigest(digest, expected); err != nil {
		var mismatch *download.ChecksumMismatchError
		if errors.As(err, &mismatch) {
			mismatch.URL = asset.URL
		}
		return "", false, StageVerify, err
	}
	m.logger.Debug("checksum verified", "file", asset.Filename, "sha256", digest)
	return archivePath, true, "", nil
}

// canonicalVersion maps "v0.14.0" and "0.14.0" to the record key "0.14.0".
func canonicalVersion(s string) string {
	if tag, err := version.ParseTag(s); err == nil {
		return tag.String()
	}
	return s
}
