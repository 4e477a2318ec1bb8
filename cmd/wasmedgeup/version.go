package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
	"github.com/tsukumogami/wasmedgeup/internal/buildinfo"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the wasmedgeup version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		info := buildinfo.Read()
		fmt.Printf("wasmedgeup %s (%s/%s)\n", info.Version, runtime.GOOS, runtime.GOARCH)
		if verboseFlag && info.Revision != "" {
			fmt.Printf("commit %s, built with %s\n", info.Revision, info.GoVersion)
		}
	},
}
