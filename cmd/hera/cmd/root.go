// Copyright © 2018 One Concern

package cmd

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envConfigLocation = "HERA_CONFIG"

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "hera",
	Short: "hera versions data artifacts and the artifacts derived from them",
	Long: `hera versions data artifacts and the artifacts derived from them.

Artifacts are declared once, as a graph. Versions of an artifact are written as hunks
of content, one per partition, then committed. Committing a version triggers the
producers depending on it, which derive new versions of their outputs.

Versions may be addressed by id ("#<id prefix>") or through the branches of a ref
("<ref>/<branch>[~n][/<artifact>]").
`,
	SilenceUsage: true,
}

var config *CLIConfig

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	log.SetFlags(0)
	cobra.OnInitialize(initConfig)

	addConfigFileFlag(rootCmd)
	addLogLevelFlag(rootCmd)
	addStoreFlags(rootCmd)
	addPayloadsFlags(rootCmd)
	addTraceFlag(rootCmd)
	addGraphFlag(rootCmd)
	bindConfigFlags(rootCmd)
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	setConfigDefaults()

	switch {
	case heraFlags.root.configFile != "":
		viper.SetConfigFile(heraFlags.root.configFile)
	case os.Getenv(envConfigLocation) != "":
		viper.SetConfigFile(os.Getenv(envConfigLocation))
	default:
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.hera")
		viper.AddConfigPath("/etc/hera")
		viper.SetConfigName("hera")
	}

	viper.SetEnvPrefix("hera")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		infoLogger.Println("Using config file:", viper.ConfigFileUsed())
	}

	var err error
	config, err = newConfig()
	if err != nil {
		wrapFatalln("invalid configuration", err)
	}
}
