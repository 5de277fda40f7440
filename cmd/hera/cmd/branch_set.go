package cmd

import (
	"context"

	"github.com/oneconcern/heraclitus/pkg/model"
	"github.com/spf13/cobra"
)

var branchCreateCmd = &cobra.Command{
	Use:     "create <ref> <branch> <specifier>",
	Short:   "Create a branch of a ref",
	Long:    "Create a branch pointing to a committed version of a ref. The branch must not exist yet.",
	Example: `% hera branch create blobs release blobs/main~2`,
	Args:    cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		runBranchUpdate(cmd, args, "create branch", func(ctx context.Context, s *cliSession, refID, name, versionID string) (*model.Branch, error) {
			return s.CreateBranch(ctx, refID, name, versionID)
		})
	},
}

var branchSetCmd = &cobra.Command{
	Use:   "set <ref> <branch> <specifier>",
	Short: "Point a branch of a ref to some version",
	Long: `Point a branch to a committed version of a ref, creating the branch if needed.

A tracking branch moved to a version it did not produce stops following the tracked artifacts.`,
	Example: `% hera branch set blobs main '#2BkyQ9NN'`,
	Args:    cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		runBranchUpdate(cmd, args, "set branch", func(ctx context.Context, s *cliSession, refID, name, versionID string) (*model.Branch, error) {
			return s.SetBranch(ctx, refID, name, versionID)
		})
	},
}

type branchUpdate func(ctx context.Context, s *cliSession, refID, name, versionID string) (*model.Branch, error)

func runBranchUpdate(cmd *cobra.Command, args []string, action string, update branchUpdate) {
	err := withSession(func(ctx context.Context, s *cliSession) error {
		ref, err := s.artifactByName(args[0])
		if err != nil {
			return err
		}
		versionID, err := s.Resolve(ctx, args[2])
		if err != nil {
			return err
		}
		b, err := update(ctx, s, ref.ID, args[1], versionID)
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), outputTemplate("branch", `{{.Name}} -> {{.VersionID}}`), b)
	})
	if err != nil {
		wrapFatalln(action, err)
	}
}

func init() {
	addTemplateFlag(branchCreateCmd)
	addTemplateFlag(branchSetCmd)
	branchCmd.AddCommand(branchCreateCmd, branchSetCmd)
}
