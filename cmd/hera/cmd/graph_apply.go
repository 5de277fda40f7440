package cmd

import (
	"context"
	"os"

	"github.com/oneconcern/heraclitus/pkg/model"
	"github.com/spf13/cobra"
)

var graphApplyCmd = &cobra.Command{
	Use:   "apply <file.yaml>",
	Short: "Write a new artifact graph",
	Long: `Write a new artifact graph from its yaml description.

Artifacts are designated by name in edges. Edges default to producer edges.`,
	Example: `% cat graph.yaml
artifacts:
  - name: input
    kind: blob
  - name: negate
    kind: negate-blob
    policies: [extant]
  - name: output
    kind: blob
edges:
  - {source: input, dependent: negate, name: input}
  - {source: negate, dependent: output, name: output}
% hera graph apply graph.yaml
graph 2BkyQ6GEc3tR5IyGMxw1mPKOgkn applied (hash 1f0e3c2a8b7d)`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		file, err := os.Open(args[0])
		if err != nil {
			wrapFatalln("open graph description", err)
			return
		}
		defer file.Close()

		desc, err := readGraphFile(file)
		if err != nil {
			wrapFatalln("read graph description", err)
			return
		}
		g, err := desc.build()
		if err != nil {
			wrapFatalln("build graph", err)
			return
		}

		err = withSession(func(ctx context.Context, s *cliSession) error {
			return s.WriteGraph(ctx, g)
		})
		if err != nil {
			wrapFatalln("write graph", err)
			return
		}
		_ = render(cmd.OutOrStdout(), outputTemplate("graph", `graph {{.ID}} applied (hash {{short .Hash}})`), struct {
			ID   string
			Hash model.Hash
		}{ID: g.ID(), Hash: g.Hash()})
	},
}

func init() {
	graphCmd.AddCommand(graphApplyCmd)
}
