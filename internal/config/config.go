package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	// EnvHome overrides the default management directory (~/.wasmedge)
	EnvHome = "WASMEDGEUP_HOME"

	// EnvAPITimeout configures the release catalog request timeout
	EnvAPITimeout = "WASMEDGEUP_API_TIMEOUT"

	// EnvDownloadTimeout configures the archive download timeout
	EnvDownloadTimeout = "WASMEDGEUP_DOWNLOAD_TIMEOUT"

	// EnvGitHubToken authenticates catalog requests when set
	EnvGitHubToken = "GITHUB_TOKEN"

	// DefaultAPITimeout is the default timeout for catalog requests (30 seconds)
	DefaultAPITimeout = 30 * time.Second

	// DefaultDownloadTimeout is the default timeout for a single archive download (10 minutes)
	DefaultDownloadTimeout = 10 * time.Minute
)

// GetAPITimeout returns the configured catalog timeout from WASMEDGEUP_API_TIMEOUT.
// If not set or invalid, returns DefaultAPITimeout.
// Accepts duration strings like "30s", "1m", "2m30s".
func GetAPITimeout() time.Duration {
	return durationFromEnv(EnvAPITimeout, DefaultAPITimeout, 1*time.Second, 10*time.Minute)
}

// GetDownloadTimeout returns the configured download timeout from
// WASMEDGEUP_DOWNLOAD_TIMEOUT. If not set or invalid, returns DefaultDownloadTimeout.
func GetDownloadTimeout() time.Duration {
	return durationFromEnv(EnvDownloadTimeout, DefaultDownloadTimeout, 10*time.Second, 2*time.Hour)
}

// durationFromEnv parses a duration from the environment and clamps it to [min, max].
func durationFromEnv(name string, def, min, max time.Duration) time.Duration {
	envValue := os.Getenv(name)
	if envValue == "" {
		return def
	}

	duration, err := time.ParseDuration(envValue)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: invalid %s value %q, using default %v\n",
			name, envValue, def)
		return def
	}

	if duration < min {
		fmt.Fprintf(os.Stderr, "Warning: %s too low (%v), using minimum %v\n",
			name, duration, min)
		return min
	}
	if duration > max {
		fmt.Fprintf(os.Stderr, "Warning: %s too high (%v), using maximum %v\n",
			name, duration, max)
		return max
	}

	return duration
}

// Config holds the on-disk layout of a wasmedgeup installation.
type Config struct {
	HomeDir     string // $WASMEDGEUP_HOME
	VersionsDir string // $WASMEDGEUP_HOME/versions
	StagingDir  string // $WASMEDGEUP_HOME/staging (same filesystem as versions/, so renames are atomic)
	CacheDir    string // $WASMEDGEUP_HOME/cache/catalog
	StateFile   string // $WASMEDGEUP_HOME/state.json
	ConfigFile  string // $WASMEDGEUP_HOME/config.toml
}

// DefaultConfig returns the default configuration, honoring WASMEDGEUP_HOME.
func DefaultConfig() (*Config, error) {
	home := os.Getenv(EnvHome)
	if home == "" {
		userHome, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		home = filepath.Join(userHome, ".wasmedge")
	}
	return New(home), nil
}

// New returns a configuration rooted at home.
func New(home string) *Config {
	return &Config{
		HomeDir:     home,
		VersionsDir: filepath.Join(home, "versions"),
		StagingDir:  filepath.Join(home, "staging"),
		CacheDir:    filepath.Join(home, "cache", "catalog"),
		StateFile:   filepath.Join(home, "state.json"),
		ConfigFile:  filepath.Join(home, "config.toml"),
	}
}

// EnsureDirectories creates all necessary directories
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.HomeDir,
		c.VersionsDir,
		c.StagingDir,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// VersionDir returns the installation directory for a runtime version
func (c *Config) VersionDir(version string) string {
	return filepath.Join(c.VersionsDir, version)
}

// BinDir returns the bin directory of a runtime version
func (c *Config) BinDir(version string) string {
	return filepath.Join(c.VersionDir(version), "bin")
}

// LibDir returns the lib directory of a runtime version
func (c *Config) LibDir(version string) string {
	return filepath.Join(c.VersionDir(version), "lib")
}

// IncludeDir returns the include directory of a runtime version
func (c *Config) IncludeDir(version string) string {
	return filepath.Join(c.VersionDir(version), "include")
}

// PluginDir returns the plugin directory of a runtime version
func (c *Config) PluginDir(version string) string {
	return filepath.Join(c.VersionDir(version), "plugin")
}

// EnvScript returns the path of a rendered shell environment script
func (c *Config) EnvScript(name string) string {
	return filepath.Join(c.HomeDir, name)
}
