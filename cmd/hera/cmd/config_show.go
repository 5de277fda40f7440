package cmd

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"
)

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long:  "Show the configuration resulting from the config file, the environment and the flags, as a yaml document.",
	Example: `% hera config show --store sqlite --store-path hera.db
log:
  level: error
store:
  kind: sqlite
  path: hera.db
...`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		o, err := yaml.Marshal(config)
		if err != nil {
			wrapFatalln("serialize config to yaml", err)
			return
		}
		_, _ = cmd.OutOrStdout().Write(o)
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
}
