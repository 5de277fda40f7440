package cmd

import (
	"fmt"
	"io"
	"io/ioutil"

	"github.com/oneconcern/heraclitus/pkg/core"
	"github.com/oneconcern/heraclitus/pkg/model"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Commands to manage the artifact graph",
	Long: `Commands to manage the artifact graph.

The artifact graph declares artifacts and the dependencies between them. It is written
once: a new graph is applied to change the topology.`,
}

func init() {
	rootCmd.AddCommand(graphCmd)
}

// graphFile is the yaml description of an artifact graph, with artifacts designated by name
type graphFile struct {
	Artifacts []artifactDecl `yaml:"artifacts"`
	Edges     []edgeDecl     `yaml:"edges"`
}

type artifactDecl struct {
	Name     string             `yaml:"name"`
	Kind     model.Kind         `yaml:"kind"`
	Policies []model.PolicyKind `yaml:"policies,omitempty"`
	Params   map[string]string  `yaml:"params,omitempty"`
}

type edgeDecl struct {
	Source    string         `yaml:"source"`
	Dependent string         `yaml:"dependent"`
	Kind      model.EdgeKind `yaml:"kind"`
	Name      string         `yaml:"name"`
}

func readGraphFile(r io.Reader) (*graphFile, error) {
	b, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var f graphFile
	if err := yaml.UnmarshalStrict(b, &f); err != nil {
		return nil, fmt.Errorf("invalid graph description: %w", err)
	}
	return &f, nil
}

// build the artifact graph described by the file
func (f *graphFile) build() (*model.ArtifactGraph, error) {
	g := core.CreateGraph()
	ids := make(map[string]string, len(f.Artifacts))
	for _, decl := range f.Artifacts {
		opts := make([]model.ArtifactOption, 0, len(decl.Params))
		for k, v := range decl.Params {
			opts = append(opts, model.ArtifactParam(k, v))
		}

		var (
			a   *model.Artifact
			err error
		)
		if decl.Kind.Implements(model.CapProducer) {
			a, err = g.AddProducerArtifact(decl.Kind, decl.Name, decl.Policies, opts...)
		} else {
			if len(decl.Policies) > 0 {
				return nil, fmt.Errorf("artifact %q: only producers have production policies", decl.Name)
			}
			a, err = g.AddArtifact(decl.Kind, decl.Name, opts...)
		}
		if err != nil {
			return nil, fmt.Errorf("artifact %q: %w", decl.Name, err)
		}
		ids[decl.Name] = a.ID
	}

	for _, decl := range f.Edges {
		source, ok := ids[decl.Source]
		if !ok {
			return nil, fmt.Errorf("edge %q: unknown source %q", decl.Name, decl.Source)
		}
		dependent, ok := ids[decl.Dependent]
		if !ok {
			return nil, fmt.Errorf("edge %q: unknown dependent %q", decl.Name, decl.Dependent)
		}
		kind := decl.Kind
		if kind == "" {
			kind = model.ProducerDependency
		}
		if _, err := g.AddEdge(source, dependent, kind, decl.Name); err != nil {
			return nil, fmt.Errorf("edge %s -> %s: %w", decl.Source, decl.Dependent, err)
		}
	}
	return g, nil
}
