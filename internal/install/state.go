package install

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tsukumogami/wasmedgeup/internal/config"
	"github.com/tsukumogami/wasmedgeup/internal/userconfig"
)

// VersionRecord describes an installed runtime version.
type VersionRecord struct {
	Version     string    `json:"version"`
	Tag         string    `json:"tag"`
	Dir         string    `json:"dir"`
	InstalledAt time.Time `json:"installed_at"`
	Constraint  string    `json:"constraint,omitempty"`
	SourceURL   string    `json:"source_url"`
	Verified    bool      `json:"verified"`
	Platform    string    `json:"platform,omitempty"`
}

// PluginRecord describes a plugin attached to an installed runtime.
type PluginRecord struct {
	Name        string    `json:"name"`
	Version     string    `json:"version"`
	Runtime     string    `json:"runtime"`
	Dir         string    `json:"dir"`
	Files       []string  `json:"files"`
	InstalledAt time.Time `json:"installed_at"`
	SourceURL   string    `json:"source_url"`
	Verified    bool      `json:"verified"`
}

// State is the persisted install state.
type State struct {
	// Active is empty or the key of a record in Versions.
	Active   string                   `json:"active,omitempty"`
	Versions map[string]VersionRecord `json:"versions"`

	// Plugins is keyed by pluginKey(runtime, name).
	Plugins map[string]PluginRecord `json:"plugins,omitempty"`
}

func pluginKey(runtime, name string) string {
	return runtime + "/" + name
}

func newState() *State {
	return &State{
		Versions: make(map[string]VersionRecord),
		Plugins:  make(map[string]PluginRecord),
	}
}

// ActiveRecord returns the active record if it exists and its directory is
// still present on disk.
func (s *State) ActiveRecord() (VersionRecord, bool) {
	if s.Active == "" {
		return VersionRecord{}, false
	}
	rec, ok := s.Versions[s.Active]
	if !ok || !dirExists(rec.Dir) {
		return VersionRecord{}, false
	}
	return rec, true
}

// StateManager handles reading and writing the state file
type StateManager struct {
	config      *config.Config
	mu          sync.Mutex // serializes commits within the process
	lockRetries int
	lockBackoff time.Duration
}

// NewStateManager creates a new state manager
func NewStateManager(cfg *config.Config) *StateManager {
	return &StateManager{
		config:      cfg,
		lockRetries: userconfig.DefaultLockRetries,
		lockBackoff: 50 * time.Millisecond,
	}
}

// statePath returns the path to the state file
func (sm *StateManager) statePath() string {
	return sm.config.StateFile
}

// lockPath returns the path to the lock file
func (sm *StateManager) lockPath() string {
	return sm.config.StateFile + ".lock"
}

// Load reads the state from disk. The state file is only ever replaced by
// rename, so reads need no lock.
func (sm *StateManager) Load() (*State, error) {
	data, err := os.ReadFile(sm.statePath())
	if os.IsNotExist(err) {
		return newState(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	state := newState()
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("failed to parse state file: %w", err)
	}
	if state.Versions == nil {
		state.Versions = make(map[string]VersionRecord)
	}
	if state.Plugins == nil {
		state.Plugins = make(map[string]PluginRecord)
	}
	if _, ok := state.Versions[state.Active]; !ok {
		state.Active = ""
	}
	return state, nil
}

// Commit runs fn with the exclusive state lock held and saves the state fn
// leaves behind. When fn fails nothing is saved. When saving fails, undo
// (if fn returned one) reverts fn's filesystem changes.
func (sm *StateManager) Commit(ctx context.Context, fn func(*State) (undo func(), err error)) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	lock, err := sm.acquire(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = lock.Unlock() }()

	state, err := sm.Load()
	if err != nil {
		return err
	}

	undo, err := fn(state)
	if err != nil {
		return err
	}

	if err := sm.save(state); err != nil {
		if undo != nil {
			undo()
		}
		return err
	}
	return nil
}

// acquire takes the lock file, retrying with exponential backoff.
func (sm *StateManager) acquire(ctx context.Context) (*FileLock, error) {
	if err := os.MkdirAll(filepath.Dir(sm.lockPath()), 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	lock := NewFileLock(sm.lockPath())
	backoff := sm.lockBackoff
	attempts := sm.lockRetries
	if attempts < 1 {
		attempts = 1
	}
	for attempt := 1; ; attempt++ {
		err := lock.TryLock()
		if err == nil {
			return lock, nil
		}
		if !errors.Is(err, errLockHeld) {
			return nil, fmt.Errorf("failed to acquire state lock: %w", err)
		}
		if attempt >= attempts {
			return nil, ErrLockContention
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		if backoff < 2*time.Second {
			backoff *= 2
		}
	}
}

// save writes the state atomically: write to temp file, then rename.
func (sm *StateManager) save(state *State) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	path := sm.statePath()
	tmpPath := path + ".tmp"

	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp state file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename state file: %w", err)
	}

	return nil
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
