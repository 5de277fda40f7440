// Copyright © 2018 One Concern

package cmd

import (
	"fmt"
	"text/template"

	"github.com/oneconcern/heraclitus/pkg/dlogger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type flagsT struct {
	root struct {
		configFile string
		logLevel   string
		store      string
		storePath  string
		payloads   string
		compress   bool
		trace      bool
		graph      string
	}
	core struct {
		Template string
	}
	version struct {
		parents        []string
		dependencies   []string
		message        string
		representation string
		partition      uint64
	}
	merge struct {
		resolve bool
		message string
	}
}

var heraFlags = flagsT{}

// viper keys of the settings which may be set by flags
const (
	keyLogLevel         = "log.level"
	keyStoreKind        = "store.kind"
	keyStorePath        = "store.path"
	keyPayloadsPath     = "payloads.path"
	keyPayloadsCompress = "payloads.compress"
	keyTrace            = "trace"
	keyGraph            = "graph"
)

func addConfigFileFlag(cmd *cobra.Command) string {
	c := "config"
	cmd.PersistentFlags().StringVar(&heraFlags.root.configFile, c, "",
		fmt.Sprintf("Config file (defaults to hera.yaml in ., $HOME/.hera or /etc/hera, or $%s)", envConfigLocation))
	return c
}

func addLogLevelFlag(cmd *cobra.Command) string {
	logLevel := "log-level"
	cmd.PersistentFlags().StringVar(&heraFlags.root.logLevel, logLevel, dlogger.LogLevelError,
		"The logging level. Levels by increasing order of verbosity: none, error, warn, info, debug")
	return logLevel
}

func addStoreFlags(cmd *cobra.Command) (string, string) {
	kind, path := "store", "store-path"
	cmd.PersistentFlags().StringVar(&heraFlags.root.store, kind, storeBadger, "The metadata store: badger or sqlite")
	cmd.PersistentFlags().StringVar(&heraFlags.root.storePath, path, defaultStorePath,
		"The location of the metadata store: a directory for badger, a database file for sqlite")
	return kind, path
}

func addPayloadsFlags(cmd *cobra.Command) (string, string) {
	payloads, compress := "payloads", "compress"
	cmd.PersistentFlags().StringVar(&heraFlags.root.payloads, payloads, defaultPayloadsPath, "The directory holding hunk payloads")
	cmd.PersistentFlags().BoolVar(&heraFlags.root.compress, compress, false, "Compress payloads at rest")
	return payloads, compress
}

func addTraceFlag(cmd *cobra.Command) string {
	trace := "trace"
	cmd.PersistentFlags().BoolVar(&heraFlags.root.trace, trace, false, "Trace store operations with the global opentracing tracer")
	return trace
}

func addGraphFlag(cmd *cobra.Command) string {
	graph := "graph"
	cmd.PersistentFlags().StringVar(&heraFlags.root.graph, graph, "", "The id of the artifact graph to operate. Defaults to the latest written graph")
	return graph
}

// bindConfigFlags lets persistent flags override the settings of the config file
func bindConfigFlags(cmd *cobra.Command) {
	for key, flag := range map[string]string{
		keyLogLevel:         "log-level",
		keyStoreKind:        "store",
		keyStorePath:        "store-path",
		keyPayloadsPath:     "payloads",
		keyPayloadsCompress: "compress",
		keyTrace:            "trace",
		keyGraph:            "graph",
	} {
		if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
			wrapFatalln(fmt.Sprintf("binding flag %q", flag), err)
			return
		}
	}
}

func addTemplateFlag(cmd *cobra.Command) string {
	t := "format"
	cmd.Flags().StringVar(&heraFlags.core.Template, t, "", "Pretty-print using a Go template")
	return t
}

func addParentsFlag(cmd *cobra.Command) string {
	parents := "parent"
	cmd.Flags().StringSliceVar(&heraFlags.version.parents, parents, nil, "The parent versions of the new version (repeatable)")
	return parents
}

func addDependenciesFlag(cmd *cobra.Command) string {
	with := "with"
	cmd.Flags().StringSliceVar(&heraFlags.version.dependencies, with, nil,
		"The versions of dependency artifacts pinned by the new version, e.g. its partitioning (repeatable)")
	return with
}

func addMessageFlag(cmd *cobra.Command) string {
	message := "message"
	cmd.Flags().StringVar(&heraFlags.version.message, message, "", "The message describing the new version")
	return message
}

func addPartitionFlag(cmd *cobra.Command) string {
	partition := "partition"
	cmd.Flags().Uint64Var(&heraFlags.version.partition, partition, 0, "The partition to write")
	return partition
}

func addResolveFlag(cmd *cobra.Command) string {
	resolve := "resolve"
	cmd.Flags().BoolVar(&heraFlags.merge.resolve, resolve, false,
		"Resolve conflicting partitions with the resolver of the artifact kind, or else with the latest committed version")
	return resolve
}

func addMergeMessageFlag(cmd *cobra.Command) string {
	message := "message"
	cmd.Flags().StringVar(&heraFlags.merge.message, message, "", "The message describing the merge version")
	return message
}

// outputTemplate returns the template given by the format flag, or else some default template
func outputTemplate(name, defaultTemplate string) *template.Template {
	if heraFlags.core.Template != "" {
		t, err := template.New(name).Funcs(templateFuncs).Parse(heraFlags.core.Template)
		if err != nil {
			wrapFatalln("invalid template", err)
			return nil
		}
		return t
	}
	return template.Must(template.New(name).Funcs(templateFuncs).Parse(defaultTemplate))
}
