package cmd

import (
	"path/filepath"

	"github.com/oneconcern/heraclitus/pkg/dlogger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	storeBadger = "badger"
	storeSQLite = "sqlite"
)

var (
	defaultStorePath    = filepath.Join(".hera", "meta")
	defaultPayloadsPath = filepath.Join(".hera", "payloads")
)

// CLIConfig describes the CLI configuration.
type CLIConfig struct {
	Log struct {
		Level string `json:"level" yaml:"level" mapstructure:"level"`
	} `json:"log" yaml:"log" mapstructure:"log"`
	Store struct {
		Kind string `json:"kind" yaml:"kind" mapstructure:"kind"` // badger or sqlite
		Path string `json:"path" yaml:"path" mapstructure:"path"`
	} `json:"store" yaml:"store" mapstructure:"store"`
	Payloads struct {
		Path     string `json:"path" yaml:"path" mapstructure:"path"`
		Compress bool   `json:"compress" yaml:"compress" mapstructure:"compress"`
	} `json:"payloads" yaml:"payloads" mapstructure:"payloads"`
	Trace bool   `json:"trace" yaml:"trace" mapstructure:"trace"`
	Graph string `json:"graph,omitempty" yaml:"graph,omitempty" mapstructure:"graph"` // artifact graph id, defaults to the latest graph
}

func setConfigDefaults() {
	viper.SetDefault(keyLogLevel, dlogger.LogLevelError)
	viper.SetDefault(keyStoreKind, storeBadger)
	viper.SetDefault(keyStorePath, defaultStorePath)
	viper.SetDefault(keyPayloadsPath, defaultPayloadsPath)
	viper.SetDefault(keyPayloadsCompress, false)
	viper.SetDefault(keyTrace, false)
	viper.SetDefault(keyGraph, "")
}

func newConfig() (*CLIConfig, error) {
	var config CLIConfig
	err := viper.Unmarshal(&config)
	if err != nil {
		return nil, err
	}
	return &config, nil
}

// configCmd represents the config related commands
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Commands to manage the CLI config",
	Long: `Commands to manage the hera CLI config.

Settings are read from a config file, then from HERA_* environment variables
(e.g. HERA_STORE_KIND), then from flags.`,
}

func init() {
	rootCmd.AddCommand(configCmd)
}
