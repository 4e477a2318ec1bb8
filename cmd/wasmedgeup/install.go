package main

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/tsukumogami/wasmedgeup/internal/errmsg"
	"github.com/tsukumogami/wasmedgeup/internal/install"
	"github.com/tsukumogami/wasmedgeup/internal/shellenv"
)

var (
	installNoVerify bool
	installForce    bool
	installActivate bool
	installTimeout  time.Duration
	installPlatform platformFlags
)

var installCmd = &cobra.Command{
	Use:   "install [version|range|latest]",
	Short: "Install a WasmEdge runtime version",
	Long: `Install a WasmEdge runtime version. The argument is an exact version,
a semantic version range, or "latest" (the default). Ranges and "latest"
never select a pre-release; name one exactly to install it.

An exact version that is already installed is not downloaded again.

Examples:
  wasmedgeup install
  wasmedgeup install 0.14.1
  wasmedgeup install "~0.13"
  wasmedgeup install 0.14.0 --activate=false
  wasmedgeup install latest --os ubuntu --arch aarch64`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		constraint := "latest"
		if len(args) == 1 {
			constraint = args[0]
		}
		ectx := &errmsg.ErrorContext{Version: constraint}

		mgr, err := newManager(managerOptions{
			platform: installPlatform.overrides(),
			timeout:  installTimeout,
		})
		exitOnError(err, ectx)

		rec, err := mgr.Install(globalCtx, constraint, install.InstallOptions{
			Activate: installActivate,
			Force:    installForce,
			NoVerify: installNoVerify,
		})
		exitOnError(err, ectx)

		printInfof("Installed WasmEdge %s\n", rec.Version)
		if active, err := mgr.Active(); err == nil && active.Version == rec.Version {
			printInfof("WasmEdge %s is now active\n", rec.Version)
			printEnvHint()
		}
	},
}

func init() {
	installCmd.Flags().BoolVar(&installNoVerify, "no-verify", false, "Skip checksum verification")
	installCmd.Flags().BoolVar(&installForce, "force", false, "Reinstall even if the version is present")
	installCmd.Flags().BoolVar(&installActivate, "activate", true, "Make the installed version active")
	installCmd.Flags().DurationVar(&installTimeout, "timeout", 0, "Download timeout (default from WASMEDGEUP_DOWNLOAD_TIMEOUT)")
	installPlatform.register(installCmd)
}

// printEnvHint tells the user how to load the env script.
func printEnvHint() {
	cfg, _, err := loadConfig()
	if err != nil {
		return
	}
	kind := shellenv.DetectKind(shellPath())
	printInfof("To use it in this shell, run:\n  %s\n", shellenv.SourceLine(kind, cfg.EnvScript(shellenv.ScriptName(kind))))
}
