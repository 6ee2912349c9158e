// plgn extracts features from existing codebases into portable packs and
// integrates packs into other projects, using an agentic tool loop.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"plgn/internal/config"
	"plgn/internal/logging"
)

var (
	verbose    bool
	configPath string

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "plgn",
	Short: "plgn - agentic feature extraction and integration",
	Long: `plgn lifts a feature out of one codebase into a portable pack and
adapts it into another.

extract runs an agent over the feature's dependency closure and assembles
a pack; integrate proposes changes to a target project, shows you the
diffs, and applies them only on confirmation.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logging.Init(verbose); err != nil {
			return fmt.Errorf("initializing logger: %w", err)
		}

		if configPath == "" {
			configPath = config.DefaultPath()
		}
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if verbose {
			cfg.Logging.Verbose = true
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.plgn/config.yaml)")

	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(integrateCmd)
	rootCmd.AddCommand(applyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
