// Package secrets resolves API tokens.
//
// A secret is read from its environment variables first, then from the
// [secrets] table of $WASMEDGEUP_HOME/config.toml. Each known secret is
// listed in knownKeys (specs.go); requesting an unknown name is an error.
package secrets

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/tsukumogami/wasmedgeup/internal/userconfig"
)

// GitHubToken authenticates release catalog requests.
const GitHubToken = "github_token"

// ErrNotSet is returned by Get when no source has a value.
var ErrNotSet = errors.New("secret not configured")

// KeyInfo describes a registered secret for external consumers.
type KeyInfo struct {
	// Name is the canonical key name (e.g., "github_token").
	Name string

	// EnvVars lists environment variables checked, in priority order.
	EnvVars []string

	// Desc is a human-readable description.
	Desc string
}

// Get resolves a secret by name. cfg may be nil, in which case only the
// environment is consulted.
func Get(cfg *userconfig.Config, name string) (string, error) {
	spec, ok := knownKeys[name]
	if !ok {
		return "", fmt.Errorf("unknown secret key: %q", name)
	}

	for _, env := range spec.EnvVars {
		if val := os.Getenv(env); val != "" {
			return val, nil
		}
	}

	if cfg != nil {
		if val := cfg.Secrets[name]; val != "" {
			return val, nil
		}
	}

	return "", fmt.Errorf("%w: %s. Set the %s environment variable, or run 'wasmedgeup config set %s%s <value>'",
		ErrNotSet, name, strings.Join(spec.EnvVars, " or "), userconfig.SecretPrefix, name)
}

// IsSet checks whether a secret is available without returning its value.
// Returns false for unknown keys.
func IsSet(cfg *userconfig.Config, name string) bool {
	_, err := Get(cfg, name)
	return err == nil
}

// IsKnown reports whether name is a registered secret.
func IsKnown(name string) bool {
	_, ok := knownKeys[name]
	return ok
}

// KnownKeys returns metadata for all registered secrets, sorted by name.
func KnownKeys() []KeyInfo {
	keys := make([]KeyInfo, 0, len(knownKeys))
	for name, spec := range knownKeys {
		keys = append(keys, KeyInfo{
			Name:    name,
			EnvVars: spec.EnvVars,
			Desc:    spec.Desc,
		})
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].Name < keys[j].Name
	})
	return keys
}
