package cmd

import (
	"context"
	"fmt"

	"github.com/oneconcern/heraclitus/pkg/core"
	"github.com/oneconcern/heraclitus/pkg/datatype"
	"github.com/oneconcern/heraclitus/pkg/model"
	"github.com/spf13/cobra"
)

var blobPutCmd = &cobra.Command{
	Use:   "put <artifact> <hex|@file>",
	Short: "Commit a new version of a blob",
	Long: `Create a version of a blob artifact holding some content in one partition, then commit it.

Committing the version triggers the producers depending on the artifact. The command
returns when all derived versions are committed.

With --delta, the content is stored as a delta relative to the single parent version.`,
	Example: `% hera blob put input 68656c6c6f
2BkyQ7LJ2fMH4F2i1YyOEV7Qm0a , committed , state , 5B
% hera blob put input @hello.txt --parent '#2BkyQ7LJ' --delta`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		content, err := blobContent(args[1])
		if err != nil {
			wrapFatalln("read content", err)
			return
		}

		err = withSession(func(ctx context.Context, s *cliSession) error {
			artifact, err := s.artifactByName(args[0])
			if err != nil {
				return err
			}
			v, size, err := putBlob(ctx, s, artifact, content)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(),
				outputTemplate("version", `{{.Version.ID}} , {{status .Version.Status}} , {{.Version.Representation}} , {{humanSize .Size}}`),
				struct {
					Version *model.Version
					Size    int64
				}{Version: v, Size: size},
			)
		})
		if err != nil {
			wrapFatalln("put blob", err)
		}
	},
}

func putBlob(ctx context.Context, s *cliSession, artifact *model.Artifact, content []byte) (*model.Version, int64, error) {
	parents, err := s.resolveAll(ctx, heraFlags.version.parents)
	if err != nil {
		return nil, 0, err
	}
	deps, err := s.resolveAll(ctx, heraFlags.version.dependencies)
	if err != nil {
		return nil, 0, err
	}
	representation := model.State
	if blobAsDelta {
		if len(parents) != 1 {
			return nil, 0, fmt.Errorf("a delta is relative to exactly one parent version")
		}
		representation = model.Delta
	}

	v, err := s.CreateStagingVersion(ctx, artifact.ID,
		core.WithParents(parents...),
		core.WithDependencies(deps...),
		core.WithRepresentation(representation),
		core.WithMessage(heraFlags.version.message),
	)
	if err != nil {
		return nil, 0, err
	}

	partition := heraFlags.version.partition
	var hunk *model.Hunk
	if blobAsDelta {
		previous, err := datatype.ReadBlob(ctx, s, parents[0], partition)
		if err != nil {
			return nil, 0, fmt.Errorf("reading parent content: %w", err)
		}
		d, err := datatype.Diff(previous, content)
		if err != nil {
			return nil, 0, err
		}
		hunk, err = datatype.WriteBlobDelta(ctx, s, v.ID, partition, d)
		if err != nil {
			return nil, 0, err
		}
	} else {
		hunk, err = datatype.WriteBlob(ctx, s, v.ID, partition, content)
		if err != nil {
			return nil, 0, err
		}
	}

	committed, err := s.CommitVersion(ctx, v.ID)
	if err != nil {
		return nil, 0, err
	}
	return committed, hunk.Size, nil
}

func init() {
	addParentsFlag(blobPutCmd)
	addDependenciesFlag(blobPutCmd)
	addMessageFlag(blobPutCmd)
	addPartitionFlag(blobPutCmd)
	addTemplateFlag(blobPutCmd)
	blobPutCmd.Flags().BoolVar(&blobAsDelta, "delta", false, "Store the content as a delta relative to the parent version")
	blobCmd.AddCommand(blobPutCmd)
}
