package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tsukumogami/wasmedgeup/internal/buildinfo"
	"github.com/tsukumogami/wasmedgeup/internal/log"
)

var (
	quietFlag   bool
	verboseFlag bool
	debugFlag   bool
	pathFlag    string
)

var rootCmd = &cobra.Command{
	Use:   "wasmedgeup",
	Short: "Install and manage WasmEdge runtime versions and plugins",
	Long: `wasmedgeup installs WasmEdge runtime versions side by side under
$WASMEDGEUP_HOME (default ~/.wasmedge), switches the active version, and
manages the plugins attached to each version.

Source the generated environment script from your shell profile:
  . ~/.wasmedge/env`,
	Version:       buildinfo.Version(),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		initLogger()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Only print errors")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Print progress details")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Print debug logs")
	rootCmd.PersistentFlags().StringVar(&pathFlag, "path", "", "wasmedgeup home directory (overrides WASMEDGEUP_HOME)")

	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(useCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(pluginCmd)
	rootCmd.AddCommand(shellenvCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// determineLogLevel picks the level from flags, then environment
// variables. Flags win; the most verbose flag wins among flags.
func determineLogLevel() slog.Level {
	switch {
	case debugFlag:
		return slog.LevelDebug
	case verboseFlag:
		return slog.LevelInfo
	case quietFlag:
		return slog.LevelError
	}

	switch {
	case isTruthy(os.Getenv("WASMEDGEUP_DEBUG")):
		return slog.LevelDebug
	case isTruthy(os.Getenv("WASMEDGEUP_VERBOSE")):
		return slog.LevelInfo
	case isTruthy(os.Getenv("WASMEDGEUP_QUIET")):
		return slog.LevelError
	}
	return slog.LevelWarn
}

func isTruthy(s string) bool {
	switch strings.ToLower(s) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func initLogger() {
	log.SetDefault(log.NewText(os.Stderr, determineLogLevel()))
}

// globalCtx is cancelled on interrupt so in-flight operations roll back.
var globalCtx = context.Background()

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	globalCtx = ctx

	err := rootCmd.Execute()
	stop()
	if err != nil {
		// Argument and flag errors from cobra itself
		printError(err, nil)
		exitWithCode(ExitUsage)
	}
}
