package cmd

import (
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Commands to inspect versions",
	Long: `Commands to inspect the versions of artifacts.

Versions are written with the commands of their artifact kind, e.g. "hera blob put".`,
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
