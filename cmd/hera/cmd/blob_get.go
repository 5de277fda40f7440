package cmd

import (
	"context"

	"github.com/oneconcern/heraclitus/pkg/datatype"
	"github.com/oneconcern/heraclitus/pkg/model"
	"github.com/spf13/cobra"
)

var blobGetCmd = &cobra.Command{
	Use:   "get <specifier> [partition]",
	Short: "Print the content of a blob version",
	Long: `Materialize the content of one partition of a blob version and print it as is.

The partition defaults to the unary partition.`,
	Example: `% hera blob get '#2BkyQ7LJ'
hello
% hera blob get blobs/main/output 3`,
	Args: cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		partition := model.UnaryPartition
		if len(args) > 1 {
			var err error
			if partition, err = parsePartition(args[1]); err != nil {
				wrapFatalln("get blob", err)
				return
			}
		}

		err := withSession(func(ctx context.Context, s *cliSession) error {
			id, err := s.Resolve(ctx, args[0])
			if err != nil {
				return err
			}
			content, err := datatype.ReadBlob(ctx, s, id, partition)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(content)
			return err
		})
		if err != nil {
			wrapFatalln("get blob", err)
		}
	},
}

func init() {
	blobCmd.AddCommand(blobGetCmd)
}
