package cmd

import (
	"context"

	"github.com/fatih/color"
	"github.com/oneconcern/heraclitus/pkg/core"
	"github.com/oneconcern/heraclitus/pkg/model"
	"github.com/spf13/cobra"
)

var branchListCmd = &cobra.Command{
	Use:   "list <ref>",
	Short: "List the branches of a ref",
	Long:  "List the branches of a ref, by name. The branch designated by HEAD is marked with a star.",
	Example: `% hera branch list blobs
* main , 2BkyQAy6Fv0pfSkT6Q3XiDMRmNO , 2020-01-01 00:00:04 UTC
  release , 2BkyQ9NN8fPYvP3bBKJ2X4x2CbM , 2020-01-01 00:00:02 UTC`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		err := withSession(func(ctx context.Context, s *cliSession) error {
			ref, err := s.artifactByName(args[0])
			if err != nil {
				return err
			}
			branches, err := s.Branches(ctx, ref.ID)
			if err != nil {
				return err
			}
			head := ref.Param(core.HeadParam, model.DefaultBranch)
			t := outputTemplate("branch", `{{.Marker}} {{.Name}} , {{.VersionID}} , {{.UpdatedAt.Format "`+timeFormat+`"}}`)
			for _, b := range branches {
				marker := " "
				if b.Name == head {
					marker = color.YellowString("*")
				}
				if err := render(cmd.OutOrStdout(), t, struct {
					model.Branch
					Marker string
				}{Branch: b, Marker: marker}); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			wrapFatalln("list branches", err)
		}
	},
}

func init() {
	addTemplateFlag(branchListCmd)
	branchCmd.AddCommand(branchListCmd)
}
