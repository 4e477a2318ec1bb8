package version

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultCacheTTL is how long a cached tag list is trusted.
const DefaultCacheTTL = time.Hour

// CachedCatalog wraps a Catalog with a file-based cache of its tag names.
// Entries live in <dir>/<hash of source>.json.
type CachedCatalog struct {
	underlying Catalog
	source     string
	cacheDir   string
	ttl        time.Duration
	now        func() time.Time
}

// cacheEntry is a cached tag list with metadata
type cacheEntry struct {
	Tags      []string  `json:"tags"`
	CachedAt  time.Time `json:"cached_at"`
	Source    string    `json:"source"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewCachedCatalog creates a caching wrapper. source must uniquely name
// the underlying catalog (e.g. GitHubCatalog.Source()).
func NewCachedCatalog(underlying Catalog, source, cacheDir string, ttl time.Duration) *CachedCatalog {
	return &CachedCatalog{
		underlying: underlying,
		source:     source,
		cacheDir:   cacheDir,
		ttl:        ttl,
		now:        time.Now,
	}
}

// ListTags returns cached tags if fresh, otherwise fetches and caches them.
func (c *CachedCatalog) ListTags(ctx context.Context) ([]Tag, error) {
	tags, _, err := c.ListTagsWithCacheInfo(ctx)
	return tags, err
}

// ListTagsWithCacheInfo returns (tags, fromCache, error).
func (c *CachedCatalog) ListTagsWithCacheInfo(ctx context.Context) ([]Tag, bool, error) {
	if entry, err := c.readCache(c.cacheFilePath()); err == nil && c.now().Before(entry.ExpiresAt) {
		tags, _ := ParseTags(entry.Tags)
		return tags, true, nil
	}

	tags, err := c.Refresh(ctx)
	return tags, false, err
}

// Refresh bypasses the cache, fetching fresh tags and rewriting the entry.
// A failed cache write is not an error.
func (c *CachedCatalog) Refresh(ctx context.Context) ([]Tag, error) {
	tags, err := c.underlying.ListTags(ctx)
	if err != nil {
		return nil, err
	}

	names := make([]string, len(tags))
	for i, t := range tags {
		names[i] = t.Name
	}
	_ = c.writeCache(c.cacheFilePath(), names)

	return tags, nil
}

// ReleaseAssets passes through to the underlying catalog when it can list
// release files. Asset lists are not cached.
func (c *CachedCatalog) ReleaseAssets(ctx context.Context, tag string) ([]string, error) {
	lister, ok := c.underlying.(AssetLister)
	if !ok {
		return nil, &ResolverError{Type: ErrTypeNotFound, Source: c.source, Message: "catalog cannot list release assets"}
	}
	return lister.ReleaseAssets(ctx, tag)
}

// cacheFilePath returns the path to the cache file for this source
func (c *CachedCatalog) cacheFilePath() string {
	hash := sha256.Sum256([]byte(c.source))
	return filepath.Join(c.cacheDir, hex.EncodeToString(hash[:8])+".json")
}

func (c *CachedCatalog) readCache(path string) (*cacheEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var entry cacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, err
	}
	if entry.Source != c.source {
		return nil, fmt.Errorf("cache entry belongs to %s", entry.Source)
	}
	return &entry, nil
}

// writeCache atomically writes a cache entry to disk
func (c *CachedCatalog) writeCache(path string, tags []string) error {
	if err := os.MkdirAll(c.cacheDir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	now := c.now()
	entry := cacheEntry{
		Tags:      tags,
		CachedAt:  now,
		Source:    c.source,
		ExpiresAt: now.Add(c.ttl),
	}

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}

	tempFile := path + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp cache file: %w", err)
	}
	if err := os.Rename(tempFile, path); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename cache file: %w", err)
	}
	return nil
}

// Clear removes the cache entry for this source.
func (c *CachedCatalog) Clear() error {
	if err := os.Remove(c.cacheFilePath()); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
