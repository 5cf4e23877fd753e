// faqforge generates, validates, and exports banking FAQ datasets through
// the Gemini API.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"faqforge/internal/config"
	"faqforge/internal/logging"
)

var (
	// Global flags
	configDir string
	envName   string
	verbose   bool

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "faqforge",
	Short: "faqforge - batched FAQ dataset generator",
	Long: `faqforge generates banking FAQ datasets in rate-limited batches
through the Gemini API, validates them against a configurable rule set, and
exports the accepted records for knowledge-base and vector search ingestion.

Configuration is resolved per environment from a directory of YAML files:
config.yaml as the base, config.<env>.yaml as the overlay, and a .env file
for secret bindings.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		logger, err = logging.New(verbose)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "config", "directory holding config.yaml and overlays")
	rootCmd.PersistentFlags().StringVarP(&envName, "env", "e", "development", "environment overlay to resolve")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(configCmd)
}

// resolveDocument loads the configuration for the selected environment.
func resolveDocument() (*config.Document, error) {
	return config.NewResolver(configDir, config.WithLogger(logger)).Resolve(envName)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
