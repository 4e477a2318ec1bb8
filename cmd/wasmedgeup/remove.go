package main

import (
	"github.com/spf13/cobra"
	"github.com/tsukumogami/wasmedgeup/internal/errmsg"
)

var removeCmd = &cobra.Command{
	Use:     "remove <version>...",
	Aliases: []string{"uninstall"},
	Short:   "Remove installed WasmEdge versions",
	Long: `Remove installed versions together with their plugins. Removing the
active version leaves no version active; run 'wasmedgeup use' to pick
another.

Examples:
  wasmedgeup remove 0.13.5`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		mgr, err := newManager(managerOptions{})
		exitOnError(err, nil)

		for _, v := range args {
			ectx := &errmsg.ErrorContext{Version: v}
			wasActive := false
			if active, err := mgr.Active(); err == nil && active.Version == canonical(v) {
				wasActive = true
			}

			rec, err := mgr.Remove(globalCtx, v)
			exitOnError(err, ectx)

			printInfof("Removed WasmEdge %s\n", rec.Version)
			if wasActive {
				printInfo("No version is active now. Run 'wasmedgeup use <version>' to activate one.")
			}
		}
	},
}
