package cmd

import (
	"context"

	"github.com/oneconcern/heraclitus/pkg/core"
	"github.com/oneconcern/heraclitus/pkg/model"
	"github.com/spf13/cobra"
)

var mergeCmd = &cobra.Command{
	Use:   "merge <artifact> <specifier> <specifier>...",
	Short: "Merge versions of an artifact",
	Long: `Merge committed versions of an artifact into a new version.

Partitions changed by one input only are taken from this input. Partitions changed
by several inputs are conflicts: with --resolve, they are resolved by the artifact kind,
or else by the latest committed input.

The merge version is committed when no conflict is left pending. Otherwise it is left
staging, and the pending partitions are reported.`,
	Example: `% hera merge input '#2BkyQ7LJ' '#2BkyQ9Tz'
2BkyQAhRZkxN2v5ylWhM0jt3c1F , committed , resolved [0 1] , pending []`,
	Args: cobra.MinimumNArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		err := withSession(func(ctx context.Context, s *cliSession) error {
			artifact, err := s.artifactByName(args[0])
			if err != nil {
				return err
			}
			inputs, err := s.resolveAll(ctx, args[1:])
			if err != nil {
				return err
			}

			opts := []core.MergeOption{core.WithMergeMessage(heraFlags.merge.message)}
			if heraFlags.merge.resolve {
				opts = append(opts, core.WithConflictMode(core.ResolveConflicts))
			}
			res, err := s.Merge(ctx, artifact.ID, inputs, opts...)
			if err != nil {
				return err
			}

			v := res.Version
			if len(res.Pending) == 0 {
				if v, err = s.CommitVersion(ctx, v.ID); err != nil {
					return err
				}
			}
			return render(cmd.OutOrStdout(),
				outputTemplate("merge", `{{.Version.ID}} , {{status .Version.Status}} , resolved {{.Resolved}} , pending {{.Pending}}`),
				struct {
					Version  *model.Version
					Resolved []uint64
					Pending  []uint64
				}{Version: v, Resolved: res.Resolved, Pending: res.Pending},
			)
		})
		if err != nil {
			wrapFatalln("merge", err)
		}
	},
}

func init() {
	addResolveFlag(mergeCmd)
	addMergeMessageFlag(mergeCmd)
	addTemplateFlag(mergeCmd)
	rootCmd.AddCommand(mergeCmd)
}
