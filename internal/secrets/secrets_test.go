package secrets

import (
	"errors"
	"strings"
	"testing"

	"github.com/tsukumogami/wasmedgeup/internal/userconfig"
)

func TestGetResolvesFromEnvVar(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "ghp-env")
	t.Setenv("GH_TOKEN", "")

	val, err := Get(nil, GitHubToken)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != "ghp-env" {
		t.Errorf("expected 'ghp-env', got %q", val)
	}
}

func TestGetResolvesSecondAlias(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "")
	t.Setenv("GH_TOKEN", "gh-fallback")

	val, err := Get(nil, GitHubToken)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != "gh-fallback" {
		t.Errorf("expected 'gh-fallback', got %q", val)
	}
}

func TestGetEnvBeatsConfig(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "from-env")
	cfg := userconfig.DefaultConfig()
	cfg.Secrets = map[string]string{GitHubToken: "from-config"}

	val, err := Get(cfg, GitHubToken)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != "from-env" {
		t.Errorf("expected env value to win, got %q", val)
	}
}

func TestGetFallsBackToConfig(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "")
	t.Setenv("GH_TOKEN", "")
	cfg := userconfig.DefaultConfig()
	cfg.Secrets = map[string]string{GitHubToken: "from-config"}

	val, err := Get(cfg, GitHubToken)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != "from-config" {
		t.Errorf("expected 'from-config', got %q", val)
	}
	if !IsSet(cfg, GitHubToken) {
		t.Error("expected IsSet to report true")
	}
}

func TestGetNotSet(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "")
	t.Setenv("GH_TOKEN", "")

	_, err := Get(userconfig.DefaultConfig(), GitHubToken)
	if !errors.Is(err, ErrNotSet) {
		t.Fatalf("expected ErrNotSet, got %v", err)
	}
	for _, want := range []string{"GITHUB_TOKEN or GH_TOKEN", "config set secrets.github_token"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in error, got: %v", want, err)
		}
	}
	if IsSet(nil, GitHubToken) {
		t.Error("expected IsSet to report false")
	}
}

func TestGetRejectsUnknownKey(t *testing.T) {
	_, err := Get(nil, "nonexistent_key")
	if err == nil {
		t.Fatal("expected error for unknown key")
	}
	if !strings.Contains(err.Error(), "unknown secret key") {
		t.Errorf("expected 'unknown secret key' in error, got: %v", err)
	}
	if IsKnown("nonexistent_key") || !IsKnown(GitHubToken) {
		t.Error("IsKnown mismatch")
	}
}

func TestKnownKeys(t *testing.T) {
	keys := KnownKeys()
	if len(keys) != len(knownKeys) {
		t.Fatalf("KnownKeys() returned %d keys, want %d", len(keys), len(knownKeys))
	}
	if keys[0].Name != GitHubToken || keys[0].EnvVars[0] != "GITHUB_TOKEN" {
		t.Errorf("unexpected first key: %+v", keys[0])
	}
}
