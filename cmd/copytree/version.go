package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// set at build time via -ldflags
var (
	version = "dev"
	commit  = "none"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "copytree %s (%s)\n", version, commit)
	},
}
