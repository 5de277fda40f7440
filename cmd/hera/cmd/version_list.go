package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

var versionListCmd = &cobra.Command{
	Use:   "list <artifact>",
	Short: "List the versions of an artifact",
	Long:  "List the versions of an artifact, in creation order.",
	Example: `% hera version list output
2BkyQ7MvVJ0OZ8x3GA9nY3w8mNS , committed , state , 2020-01-01 00:00:01 UTC , negation of 2BkyQ7LJ2fMH4F2i1YyOEV7Qm0a`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		err := withSession(func(ctx context.Context, s *cliSession) error {
			artifact, err := s.artifactByName(args[0])
			if err != nil {
				return err
			}
			versions, err := s.ListVersions(ctx, artifact.ID)
			if err != nil {
				return err
			}
			t := outputTemplate("list line", `{{.ID}} , {{status .Status}} , {{.Representation}} , {{timestamp .}} , {{.Message}}`)
			for _, v := range versions {
				if err := render(cmd.OutOrStdout(), t, v); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			wrapFatalln("list versions", err)
		}
	},
}

func init() {
	addTemplateFlag(versionListCmd)
	versionCmd.AddCommand(versionListCmd)
}
