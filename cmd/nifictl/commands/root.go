package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	verbose    bool
	output     string
	nifiURL    string
	rootGroup  string

	buildVersion = "dev"
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	buildVersion = version
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "nifictl",
		Short: "nifictl - provision NiFi flows from RDF descriptions",
		Long: `nifictl turns an RDF description of a dataflow into a running NiFi flow.

An ontology declares processor, controller service and channel types. An
instance graph declares what to build. nifictl derives a plan from both,
creates every processor and service through the NiFi REST API, instantiates
channel templates, wires connections and starts the result.

Features:
  - Turtle and N-Triples input, from files or stdin
  - CUE or YAML configuration
  - Rego policies gating every plan
  - Discovery of the types a NiFi instance offers, with ontology stubs`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path (.cue, .yaml or .yml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", outputTable, "output format: json, turtle or table")
	rootCmd.PersistentFlags().StringVar(&nifiURL, "nifi-url", "", "NiFi API base, overrides nifi.url")
	rootCmd.PersistentFlags().StringVar(&rootGroup, "root-group", "", "process group to provision into, overrides nifi.root_group")

	// Add subcommands
	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(newPlanCommand())
	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newInfoCommand())
	rootCmd.AddCommand(newListCommand())

	return rootCmd
}
