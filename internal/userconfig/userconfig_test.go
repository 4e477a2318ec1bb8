package userconfig

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.CatalogRepo != "WasmEdge/WasmEdge" {
		t.Errorf("CatalogRepo = %q, want WasmEdge/WasmEdge", cfg.CatalogRepo)
	}
	if cfg.FetchRetries != 0 {
		t.Errorf("FetchRetries = %d, want 0", cfg.FetchRetries)
	}
	if cfg.LockRetries != DefaultLockRetries {
		t.Errorf("LockRetries = %d, want %d", cfg.LockRetries, DefaultLockRetries)
	}
}

func TestLoadMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.CatalogRepo != DefaultCatalogRepo {
		t.Error("expected defaults when file missing")
	}
}

func TestLoadExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	content := "catalog_repo = \"example/runtime\"\nfetch_retries = 3\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.CatalogRepo != "example/runtime" {
		t.Errorf("CatalogRepo = %q, want example/runtime", cfg.CatalogRepo)
	}
	if cfg.FetchRetries != 3 {
		t.Errorf("FetchRetries = %d, want 3", cfg.FetchRetries)
	}
	// Keys absent from the file keep their defaults
	if cfg.LockRetries != DefaultLockRetries {
		t.Errorf("LockRetries = %d, want %d", cfg.LockRetries, DefaultLockRetries)
	}
}

func TestLoadInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	if err := os.WriteFile(path, []byte("this is not valid toml [[["), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	if _, err := LoadFile(path); err == nil {
		t.Error("expected error for invalid TOML")
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subdir", "config.toml")

	cfg := DefaultConfig()
	cfg.ReleaseBaseURL = "https://mirror.example.com/releases"
	cfg.LockRetries = 9
	if err := cfg.SaveFile(path); err != nil {
		t.Fatalf("failed to save: %v", err)
	}

	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("failed to load: %v", err)
	}
	if loaded.ReleaseBaseURL != cfg.ReleaseBaseURL {
		t.Errorf("ReleaseBaseURL = %q, want %q", loaded.ReleaseBaseURL, cfg.ReleaseBaseURL)
	}
	if loaded.LockRetries != 9 {
		t.Errorf("LockRetries = %d, want 9", loaded.LockRetries)
	}
}

func TestGet(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FetchRetries = 2

	tests := []struct {
		key  string
		want string
	}{
		{"catalog_repo", "WasmEdge/WasmEdge"},
		{"release_base_url", ""},
		{"catalog_api_url", ""},
		{"fetch_retries", "2"},
		{"LOCK_RETRIES", "5"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, ok := cfg.Get(tt.key)
			if !ok {
				t.Fatalf("expected key %q to exist", tt.key)
			}
			if got != tt.want {
				t.Errorf("Get(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}

	if _, ok := cfg.Get("unknown"); ok {
		t.Error("expected unknown key to return false")
	}
}

func TestSet(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr bool
	}{
		{"valid repo", "catalog_repo", "owner/repo", false},
		{"repo without slash", "catalog_repo", "owner", true},
		{"repo with extra segment", "catalog_repo", "a/b/c", true},
		{"https base url", "release_base_url", "https://example.com/dl/", false},
		{"clear base url", "release_base_url", "", false},
		{"non-http base url", "release_base_url", "ftp://example.com", true},
		{"enterprise api url", "catalog_api_url", "https://ghe.example.com/api/v3", false},
		{"non-http api url", "catalog_api_url", "ghe.example.com", true},
		{"fetch retries", "fetch_retries", "3", false},
		{"fetch retries negative", "fetch_retries", "-1", true},
		{"fetch retries too high", "fetch_retries", "11", true},
		{"fetch retries not a number", "fetch_retries", "many", true},
		{"lock retries", "lock_retries", "8", false},
		{"lock retries zero", "lock_retries", "0", true},
		{"unknown key", "unknown", "value", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			err := cfg.Set(tt.key, tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Set(%q, %q) error = %v, wantErr %v", tt.key, tt.value, err, tt.wantErr)
			}
		})
	}
}

func TestSetKeepsPreviousRepoOnError(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Set("catalog_repo", "broken"); err == nil {
		t.Fatal("expected error")
	}
	if cfg.CatalogRepo != DefaultCatalogRepo {
		t.Errorf("CatalogRepo = %q, want unchanged %q", cfg.CatalogRepo, DefaultCatalogRepo)
	}
}

func TestSetTrimsBaseURL(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Set("release_base_url", "https://example.com/dl/"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ReleaseBaseURL != "https://example.com/dl" {
		t.Errorf("ReleaseBaseURL = %q, want trailing slash trimmed", cfg.ReleaseBaseURL)
	}
}

func TestCatalogOwnerRepo(t *testing.T) {
	cfg := DefaultConfig()
	owner, repo, err := cfg.CatalogOwnerRepo()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if owner != "WasmEdge" || repo != "WasmEdge" {
		t.Errorf("got %s/%s, want WasmEdge/WasmEdge", owner, repo)
	}
}

func TestAvailableKeys(t *testing.T) {
	keys := AvailableKeys()
	for _, k := range []string{"catalog_repo", "catalog_api_url", "release_base_url", "fetch_retries", "lock_retries"} {
		if _, ok := keys[k]; !ok {
			t.Errorf("expected %s in available keys", k)
		}
	}

	sorted := SortedKeys()
	if len(sorted) != len(keys) {
		t.Fatalf("SortedKeys() returned %d keys, want %d", len(sorted), len(keys))
	}
	if sorted[0] != "catalog_api_url" {
		t.Errorf("SortedKeys()[0] = %q, want catalog_api_url", sorted[0])
	}
}

func TestLoadWithHomeOverride(t *testing.T) {
	tmpDir := t.TempDir()

	configPath := filepath.Join(tmpDir, "config.toml")
	if err := os.WriteFile(configPath, []byte("lock_retries = 2\n"), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	t.Setenv("WASMEDGEUP_HOME", tmpDir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LockRetries != 2 {
		t.Errorf("LockRetries = %d, want 2 from WASMEDGEUP_HOME config", cfg.LockRetries)
	}
}

func TestSaveFileProduces0600Permissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := DefaultConfig()
	if err := cfg.SaveFile(path); err != nil {
		t.Fatalf("failed to save: %v", err)
	}
	if err := os.Chmod(path, 0644); err != nil {
		t.Fatalf("failed to chmod: %v", err)
	}
	if err := cfg.SaveFile(path); err != nil {
		t.Fatalf("failed to save (2nd): %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("failed to stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("expected permissions 0600 after overwrite, got %04o", perm)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("failed to read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only config.toml, found %d entries", len(entries))
	}
}

func TestSecrets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := DefaultConfig()
	if err := cfg.Set("secrets.github_token", "ghp_example"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := cfg.SaveFile(path); err != nil {
		t.Fatalf("failed to save: %v", err)
	}

	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("failed to load: %v", err)
	}
	got, ok := loaded.Get("secrets.GITHUB_TOKEN")
	if !ok || got != "ghp_example" {
		t.Errorf("Get(secrets.github_token) = %q, %v; want ghp_example, true", got, ok)
	}

	// An empty value deletes the entry
	if err := loaded.Set("secrets.github_token", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := loaded.Get("secrets.github_token"); ok {
		t.Error("expected secret to be removed")
	}

	if err := loaded.Set("secrets.", "x"); err == nil {
		t.Error("expected error for empty secret name")
	}
}
