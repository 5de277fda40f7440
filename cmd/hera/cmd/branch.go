package cmd

import (
	"github.com/spf13/cobra"
)

var branchCmd = &cobra.Command{
	Use:   "branch",
	Short: "Commands to manage the branches of a ref",
	Long: `Commands to manage the branches of a ref artifact.

A branch is a named pointer to a committed version of a ref. Tracking-branch producers
move branches whenever the artifacts they track change.`,
}

func init() {
	rootCmd.AddCommand(branchCmd)
}
