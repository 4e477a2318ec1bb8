package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tsukumogami/wasmedgeup/internal/install"
	"github.com/tsukumogami/wasmedgeup/internal/version"
)

var (
	listRemote bool
	listAll    bool
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List installed or available WasmEdge versions",
	Long: `List installed versions, newest first. The active version is marked
with "*".

With --remote, list versions published in the release catalog instead.
Pre-releases are shown only with --all.

Examples:
  wasmedgeup list
  wasmedgeup list --remote
  wasmedgeup list --remote --all`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		mgr, err := newManager(managerOptions{})
		exitOnError(err, nil)

		installed, err := mgr.List()
		exitOnError(err, nil)

		if !listRemote {
			if len(installed) == 0 {
				printInfo("No versions installed. Run 'wasmedgeup install' to install the latest.")
				return
			}
			for _, line := range formatInstalled(installed) {
				fmt.Println(line)
			}
			return
		}

		tags, err := mgr.RemoteVersions(globalCtx, listAll)
		exitOnError(err, nil)
		for _, line := range formatRemote(tags, installed) {
			fmt.Println(line)
		}
	},
}

func init() {
	listCmd.Flags().BoolVar(&listRemote, "remote", false, "List versions available in the release catalog")
	listCmd.Flags().BoolVar(&listAll, "all", false, "Include pre-releases in the remote list")
}

func formatInstalled(versions []install.InstalledVersion) []string {
	lines := make([]string, 0, len(versions))
	for _, v := range versions {
		marker := " "
		if v.Active {
			marker = "*"
		}
		lines = append(lines, fmt.Sprintf("%s %s", marker, v.Version))
	}
	return lines
}

func formatRemote(tags []version.Tag, installed []install.InstalledVersion) []string {
	state := make(map[string]string, len(installed))
	for _, v := range installed {
		state[v.Version] = "installed"
		if v.Active {
			state[v.Version] = "active"
		}
	}

	lines := make([]string, 0, len(tags))
	for _, t := range tags {
		line := t.String()
		if s, ok := state[t.String()]; ok {
			line = fmt.Sprintf("%-20s (%s)", line, s)
		}
		lines = append(lines, line)
	}
	return lines
}
