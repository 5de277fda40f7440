package cmd

import (
	"context"

	"github.com/oneconcern/heraclitus/pkg/model"
	"github.com/spf13/cobra"
)

const versionShowTemplate = `version:        {{highlight .Version.ID}}
artifact:       {{.Artifact.Name}} ({{.Artifact.Kind}})
status:         {{status .Version.Status}}
representation: {{.Version.Representation}}
hash:           {{.Version.Hash}}
created:        {{timestamp .Version}}
{{- with .Version.Parents}}
parents:        {{join . " "}}{{end}}
{{- with .Version.Dependencies}}
pins:           {{pins $.Version}}{{end}}
{{- with .Version.Message}}
message:        {{.}}{{end}}
{{- range .Hunks}}
  partition {{.Partition}} , {{.Representation}} , {{.Completion}} , {{humanSize .Size}} , {{short .PayloadKey}}{{end}}`

var versionShowCmd = &cobra.Command{
	Use:   "show <specifier>",
	Short: "Show a version and its hunks",
	Long: `Show a version and the hunks written for it.

A version is designated by "#<id prefix>" or "<ref>/<branch>[~n][/<artifact>]".`,
	Example: `% hera version show blobs/main~1/input`,
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		err := withSession(func(ctx context.Context, s *cliSession) error {
			id, err := s.Resolve(ctx, args[0])
			if err != nil {
				return err
			}
			v, err := s.GetVersion(ctx, id)
			if err != nil {
				return err
			}
			artifact, err := s.artifactByName(v.ArtifactID)
			if err != nil {
				return err
			}
			hunks, err := s.Hunks(ctx, v.ID)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), outputTemplate("version", versionShowTemplate), struct {
				Version  *model.Version
				Artifact *model.Artifact
				Hunks    model.Hunks
			}{Version: v, Artifact: artifact, Hunks: hunks})
		})
		if err != nil {
			wrapFatalln("show version", err)
		}
	},
}

func init() {
	addTemplateFlag(versionShowCmd)
	versionCmd.AddCommand(versionShowCmd)
}
