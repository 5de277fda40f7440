package cmd

import (
	"context"
	"fmt"

	"github.com/oneconcern/heraclitus/pkg/model"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"
)

var graphShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the artifact graph",
	Long: `Show the artifacts of the current artifact graph, in topological order, then its edges.

With --yaml, the graph is printed as a description which "hera graph apply" accepts.`,
	Example: `% hera graph show
input , blob , 2BkyQ6J1bqJcV0N8AYAGEQd1sYq
negate , negate-blob , 2BkyQ6HR2dlMjUm3kZ8bIUe9mF1 , [extant]
output , blob , 2BkyQ6IfZbqq5a4B5OWUKBzgrY4
input -> negate , producer , input
negate -> output , producer , output`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		err := withSession(func(ctx context.Context, s *cliSession) error {
			g := s.Graph()
			if g == nil {
				return fmt.Errorf("no artifact graph: apply one with \"hera graph apply\"")
			}
			desc := describeGraph(g)
			out := cmd.OutOrStdout()

			if showAsYAML {
				b, err := yaml.Marshal(desc)
				if err != nil {
					return err
				}
				_, err = out.Write(b)
				return err
			}

			t := outputTemplate("artifact", `{{.Name}} , {{.Kind}} , {{.ID}}{{with .Policies}} , {{printf "%v" .}}{{end}}`)
			for _, id := range g.TopoSort() {
				a, _ := g.Artifact(id)
				if err := render(out, t, a); err != nil {
					return err
				}
			}
			edges := outputTemplate("edge", `{{.Source}} -> {{.Dependent}} , {{.Kind}} , {{.Name}}`)
			for _, e := range desc.Edges {
				if err := render(out, edges, e); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			wrapFatalln("show graph", err)
		}
	},
}

var showAsYAML bool

func init() {
	graphShowCmd.Flags().BoolVar(&showAsYAML, "yaml", false, "Print the graph as a yaml description")
	addTemplateFlag(graphShowCmd)
	graphCmd.AddCommand(graphShowCmd)
}

// describeGraph returns the description of a graph, with artifacts designated by name
func describeGraph(g *model.ArtifactGraph) graphFile {
	var f graphFile
	names := make(map[string]string)
	for _, a := range g.Artifacts() {
		names[a.ID] = a.Name
		f.Artifacts = append(f.Artifacts, artifactDecl{
			Name:     a.Name,
			Kind:     a.Kind,
			Policies: a.Policies,
			Params:   a.Params,
		})
	}
	for _, e := range g.Edges() {
		f.Edges = append(f.Edges, edgeDecl{
			Source:    names[e.Source],
			Dependent: names[e.Dependent],
			Kind:      e.Kind,
			Name:      e.Name,
		})
	}
	return f
}
