package main

import (
	"github.com/spf13/cobra"
	"github.com/tsukumogami/wasmedgeup/internal/errmsg"
)

var useCmd = &cobra.Command{
	Use:   "use <version>",
	Short: "Switch the active WasmEdge version",
	Long: `Make an installed version active and regenerate the environment
scripts under $WASMEDGEUP_HOME.

Examples:
  wasmedgeup use 0.13.5`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ectx := &errmsg.ErrorContext{Version: args[0]}

		mgr, err := newManager(managerOptions{})
		exitOnError(err, ectx)

		rec, err := mgr.Use(globalCtx, args[0])
		exitOnError(err, ectx)

		printInfof("Now using WasmEdge %s\n", rec.Version)
	},
}
