// Package userconfig provides user configuration management for wasmedgeup.
// Configuration is stored in $WASMEDGEUP_HOME/config.toml and can be modified
// via the `wasmedgeup config` command.
package userconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/tsukumogami/wasmedgeup/internal/config"
)

const (
	// DefaultCatalogRepo is the GitHub repository releases are published to.
	DefaultCatalogRepo = "WasmEdge/WasmEdge"

	// DefaultLockRetries is the number of attempts made to acquire the state lock.
	DefaultLockRetries = 5
)

// Config represents user-configurable settings.
type Config struct {
	// CatalogRepo is the "owner/name" repository whose tags form the release catalog.
	CatalogRepo string `toml:"catalog_repo"`

	// ReleaseBaseURL overrides the download base URL. Empty means the
	// catalog repository's GitHub releases download URL.
	ReleaseBaseURL string `toml:"release_base_url,omitempty"`

	// CatalogAPIURL overrides the GitHub API endpoint tags are read from,
	// e.g. a GitHub Enterprise server. Empty means api.github.com.
	CatalogAPIURL string `toml:"catalog_api_url,omitempty"`

	// FetchRetries is how many extra attempts a retryable download failure gets.
	FetchRetries int `toml:"fetch_retries"`

	// LockRetries bounds attempts to acquire the state directory lock.
	LockRetries int `toml:"lock_retries"`

	// Secrets holds API tokens by name, e.g. github_token. Environment
	// variables take precedence; see package secrets.
	Secrets map[string]string `toml:"secrets,omitempty"`
}

// SecretPrefix addresses entries of the [secrets] table in Get and Set.
const SecretPrefix = "secrets."

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		CatalogRepo: DefaultCatalogRepo,
		LockRetries: DefaultLockRetries,
	}
}

// Load reads the config file under the default home directory.
// Returns default values if the file doesn't exist.
func Load() (*Config, error) {
	cfg, err := config.DefaultConfig()
	if err != nil {
		return DefaultConfig(), nil
	}

	return LoadFile(cfg.ConfigFile)
}

// LoadFile reads config from a specific file path.
// Returns an error only for file parsing issues, not missing files.
func LoadFile(path string) (*Config, error) {
	userCfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return userCfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if _, err := toml.Decode(string(data), userCfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return userCfg, nil
}

// SaveFile writes the configuration to path, creating its directory. The
// file may hold secrets, so it is replaced atomically with mode 0600.
func (c *Config) SaveFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.CreateTemp(dir, ".config-*.toml")
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	tmpPath := f.Name()
	defer os.Remove(tmpPath)

	if err := f.Chmod(0600); err != nil {
		f.Close()
		return fmt.Errorf("failed to set config file permissions: %w", err)
	}

	encoder := toml.NewEncoder(f)
	if err := encoder.Encode(c); err != nil {
		f.Close()
		return fmt.Errorf("failed to write config file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to replace config file: %w", err)
	}
	return nil
}

// CatalogOwnerRepo splits CatalogRepo into owner and repository name.
func (c *Config) CatalogOwnerRepo() (string, string, error) {
	owner, repo, ok := strings.Cut(c.CatalogRepo, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return "", "", fmt.Errorf("invalid catalog_repo %q: expected owner/name", c.CatalogRepo)
	}
	return owner, repo, nil
}

// Get returns the value of a config key as a string.
// Returns empty string and false if the key doesn't exist.
func (c *Config) Get(key string) (string, bool) {
	if name, ok := secretName(key); ok {
		v, found := c.Secrets[name]
		return v, found
	}
	switch strings.ToLower(key) {
	case "catalog_repo":
		return c.CatalogRepo, true
	case "release_base_url":
		return c.ReleaseBaseURL, true
	case "catalog_api_url":
		return c.CatalogAPIURL, true
	case "fetch_retries":
		return strconv.Itoa(c.FetchRetries), true
	case "lock_retries":
		return strconv.Itoa(c.LockRetries), true
	default:
		return "", false
	}
}

// Set updates a config value from a string.
// Returns an error if the key doesn't exist or the value is invalid.
func (c *Config) Set(key, value string) error {
	if name, ok := secretName(key); ok {
		if name == "" {
			return fmt.Errorf("invalid secret key: %s", key)
		}
		if value == "" {
			delete(c.Secrets, name)
			return nil
		}
		if c.Secrets == nil {
			c.Secrets = make(map[string]string)
		}
		c.Secrets[name] = value
		return nil
	}
	switch strings.ToLower(key) {
	case "catalog_repo":
		prev := c.CatalogRepo
		c.CatalogRepo = value
		if _, _, err := c.CatalogOwnerRepo(); err != nil {
			c.CatalogRepo = prev
			return err
		}
		return nil
	case "release_base_url":
		if value != "" && !strings.HasPrefix(value, "https://") && !strings.HasPrefix(value, "http://") {
			return fmt.Errorf("invalid value for release_base_url: must be an http(s) URL")
		}
		c.ReleaseBaseURL = strings.TrimSuffix(value, "/")
		return nil
	case "catalog_api_url":
		if value != "" && !strings.HasPrefix(value, "https://") && !strings.HasPrefix(value, "http://") {
			return fmt.Errorf("invalid value for catalog_api_url: must be an http(s) URL")
		}
		c.CatalogAPIURL = strings.TrimSuffix(value, "/")
		return nil
	case "fetch_retries":
		n, err := parseCount(value, 10)
		if err != nil {
			return fmt.Errorf("invalid value for fetch_retries: %w", err)
		}
		c.FetchRetries = n
		return nil
	case "lock_retries":
		n, err := parseCount(value, 100)
		if err != nil {
			return fmt.Errorf("invalid value for lock_retries: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("invalid value for lock_retries: must be at least 1")
		}
		c.LockRetries = n
		return nil
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
}

func secretName(key string) (string, bool) {
	lower := strings.ToLower(key)
	if !strings.HasPrefix(lower, SecretPrefix) {
		return "", false
	}
	return strings.TrimPrefix(lower, SecretPrefix), true
}

func parseCount(value string, max int) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("must be a whole number")
	}
	if n < 0 || n > max {
		return 0, fmt.Errorf("must be between 0 and %d", max)
	}
	return n, nil
}

// AvailableKeys returns a list of all configurable keys with descriptions.
func AvailableKeys() map[string]string {
	return map[string]string{
		"catalog_repo":     "GitHub repository providing release tags (owner/name)",
		"catalog_api_url":  "Override for the GitHub API endpoint (e.g. GitHub Enterprise)",
		"release_base_url": "Override for the release download base URL",
		"fetch_retries":    "Extra attempts for transient download failures (0-10)",
		"lock_retries":     "Attempts to acquire the state lock before giving up (1-100)",
	}
}

// SortedKeys returns the configurable keys in alphabetical order.
func SortedKeys() []string {
	keys := make([]string, 0, len(AvailableKeys()))
	for k := range AvailableKeys() {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
