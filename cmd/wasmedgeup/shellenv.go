package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"github.com/tsukumogami/wasmedgeup/internal/install"
	"github.com/tsukumogami/wasmedgeup/internal/log"
	"github.com/tsukumogami/wasmedgeup/internal/shellenv"
)

var shellenvCmd = &cobra.Command{
	Use:   "shellenv [shell]",
	Short: "Print shell commands that configure the active WasmEdge version",
	Long: `Print shell commands that put the active version's bin directory on
PATH, its lib directory on the library search path, and set
WASMEDGE_PLUGIN_PATH. The shell is detected from $SHELL unless named
(sh, bash, zsh, fish, nu, pwsh).

The same script is kept up to date in $WASMEDGEUP_HOME/env (env.fish,
env.nu, env.ps1) whenever the active version changes.

Usage in shell profile:
  eval "$(wasmedgeup shellenv)"`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		kind := shellenv.DetectKind(shellPath())
		if len(args) == 1 {
			k, err := shellenv.ParseKind(args[0])
			if err != nil {
				printError(err, nil)
				exitWithCode(ExitUsage)
			}
			kind = k
		}

		script, err := renderShellenv(kind, runtime.GOOS)
		exitOnError(err, nil)
		fmt.Fprint(os.Stdout, script)
	},
}

func shellPath() string {
	return os.Getenv("SHELL")
}

// renderShellenv renders the env script of the active version.
func renderShellenv(kind shellenv.Kind, goos string) (string, error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return "", err
	}
	rec, err := install.New(cfg, install.WithLogger(log.Default())).Active()
	if err != nil {
		return "", err
	}
	return shellenv.Render(kind, goos, shellenv.Paths{
		BinDir:    cfg.BinDir(rec.Version),
		LibDir:    cfg.LibDir(rec.Version),
		PluginDir: cfg.PluginDir(rec.Version),
	})
}
