package main

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
	"github.com/tsukumogami/wasmedgeup/internal/errmsg"
	"github.com/tsukumogami/wasmedgeup/internal/install"
	"github.com/tsukumogami/wasmedgeup/internal/platform"
	"github.com/tsukumogami/wasmedgeup/internal/version"
)

var (
	pluginRuntime   string
	pluginNoVerify  bool
	pluginForce     bool
	pluginAvailable bool
	pluginPlatform  platformFlags
)

var pluginCmd = &cobra.Command{
	Use:   "plugin",
	Short: "Manage WasmEdge plugins",
	Long: `Install, list and remove plugins of an installed WasmEdge version.
Commands act on the active version unless --runtime names another.`,
}

var pluginInstallCmd = &cobra.Command{
	Use:   "install <name>[@version]...",
	Short: "Install plugins",
	Long: `Install plugins into the plugin directory of a runtime version. Without
@version, the plugin release matching the runtime version is installed.

Examples:
  wasmedgeup plugin install wasi_crypto
  wasmedgeup plugin install wasi_nn-ggml@0.14.1 --runtime 0.14.1`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		mgr, err := newManager(managerOptions{platform: pluginPlatform.overrides()})
		exitOnError(err, nil)

		for _, arg := range args {
			name, ver := splitVersionArg(arg)
			ectx := &errmsg.ErrorContext{Version: pluginRuntime, Plugin: name}

			rec, err := mgr.InstallPlugin(globalCtx, name, ver, install.PluginOptions{
				Runtime:  pluginRuntime,
				Force:    pluginForce,
				NoVerify: pluginNoVerify,
			})
			exitOnError(err, ectx)

			printInfof("Installed plugin %s %s for WasmEdge %s\n", rec.Name, rec.Version, rec.Runtime)
		}
	},
}

var pluginListCmd = &cobra.Command{
	Use:   "list",
	Short: "List installed plugins",
	Long: `List installed plugins for every runtime version. With --available,
list the plugins published for the selected runtime version on this
platform instead, with the builds suited to this machine (CUDA, no-AVX)
first and marked as recommended.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		mgr, err := newManager(managerOptions{platform: pluginPlatform.overrides()})
		exitOnError(err, nil)

		if pluginAvailable {
			names, err := mgr.AvailablePlugins(globalCtx, pluginRuntime)
			exitOnError(err, &errmsg.ErrorContext{Version: pluginRuntime})
			pref := pluginPreference(platform.DetectSpec(globalCtx))
			for _, line := range availableLines(names, pref) {
				fmt.Println(line)
			}
			return
		}

		plugins, err := mgr.ListPlugins()
		exitOnError(err, nil)
		if len(plugins) == 0 {
			printInfo("No plugins installed.")
			return
		}
		for _, p := range plugins {
			if pluginRuntime != "" && p.Runtime != canonical(pluginRuntime) {
				continue
			}
			fmt.Printf("%-24s %-12s (WasmEdge %s)\n", p.Name, p.Version, p.Runtime)
		}
	},
}

var pluginSpecsCmd = &cobra.Command{
	Use:   "specs",
	Short: "Print the host hardware report used to pick plugin builds",
	Long: `Print a JSON report of the operating system, CPU features, GPUs,
CUDA availability and GPU tools found on this machine. plugin list
--available uses the same report to recommend CUDA or no-AVX builds.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		printJSON(platform.DetectSpec(globalCtx))
	},
}

// pluginPreference derives the build variants to favor on the host.
func pluginPreference(spec platform.HostSpec) version.PluginPreference {
	return version.PluginPreference{CUDA: spec.PreferCUDA(), NoAVX: spec.PreferNoAVX()}
}

// availableLines orders published plugin names for display and marks the
// variants recommended for the host.
func availableLines(names []string, pref version.PluginPreference) []string {
	recommended := version.RecommendedPlugins(names, pref)
	var lines []string
	for _, n := range version.OrderPlugins(names, pref) {
		if slices.Contains(recommended, n) {
			n += " (recommended)"
		}
		lines = append(lines, n)
	}
	return lines
}

var pluginRemoveCmd = &cobra.Command{
	Use:   "remove <name>...",
	Short: "Remove plugins",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		mgr, err := newManager(managerOptions{})
		exitOnError(err, nil)

		for _, name := range args {
			rec, err := mgr.RemovePlugin(globalCtx, name, pluginRuntime)
			exitOnError(err, &errmsg.ErrorContext{Version: pluginRuntime, Plugin: name})
			printInfof("Removed plugin %s from WasmEdge %s\n", rec.Name, rec.Runtime)
		}
	},
}

func init() {
	pluginCmd.PersistentFlags().StringVar(&pluginRuntime, "runtime", "", "Runtime version to act on (default: active version)")

	pluginInstallCmd.Flags().BoolVar(&pluginNoVerify, "no-verify", false, "Skip checksum verification")
	pluginInstallCmd.Flags().BoolVar(&pluginForce, "force", false, "Reinstall even if the plugin is present")
	pluginPlatform.register(pluginInstallCmd)

	pluginListCmd.Flags().BoolVar(&pluginAvailable, "available", false, "List plugins published for the runtime version")

	pluginCmd.AddCommand(pluginInstallCmd)
	pluginCmd.AddCommand(pluginListCmd)
	pluginCmd.AddCommand(pluginRemoveCmd)
	pluginCmd.AddCommand(pluginSpecsCmd)
}
