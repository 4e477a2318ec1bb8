package install

import (
	"fmt"
	"os"

	"github.com/tsukumogami/wasmedgeup/internal/shellenv"
)

// writeEnvScripts renders the env scripts for rec, or removes them when rec
// is nil. Each script is replaced atomically.
func (m *Manager) writeEnvScripts(rec *VersionRecord) error {
	if rec == nil {
		for _, kind := range shellenv.Kinds {
			path := m.config.EnvScript(shellenv.ScriptName(kind))
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				return err
			}
		}
		return nil
	}

	paths := shellenv.Paths{
		BinDir:    m.config.BinDir(rec.Version),
		LibDir:    m.config.LibDir(rec.Version),
		PluginDir: m.config.PluginDir(rec.Version),
	}
	for _, kind := range shellenv.KindsFor(m.goos) {
		script, err := shellenv.Render(kind, m.goos, paths)
		if err != nil {
			return err
		}
		if err := writeFileAtomic(m.config.EnvScript(shellenv.ScriptName(kind)), []byte(script)); err != nil {
			return err
		}
	}
	return nil
}

// refreshEnv rewrites the env scripts for the current active version. A
// failure is logged; the install or remove it follows has already been
// committed.
func (m *Manager) refreshEnv() {
	st, err := m.state.Load()
	if err != nil {
		m.logger.Warn("could not update shell environment", "error", err)
		return
	}
	var rec *VersionRecord
	if r, ok := st.ActiveRecord(); ok {
		rec = &r
	}
	if err := m.writeEnvScripts(rec); err != nil {
		m.logger.Warn("could not update shell environment", "error", err)
	}
}

func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
