// Package cli implements the vitrine-ingest command line interface.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vitrine-search/vitrine/internal/config"
	"github.com/vitrine-search/vitrine/internal/version"
)

var cfg config.Config

var rootCmd = &cobra.Command{
	Use:   "vitrine-ingest",
	Short: "Load a product catalog into the vitrine vector index",
	Long: `vitrine-ingest embeds product descriptions and images and loads
them into the vector index, then rebuilds the index so the API can serve
searches against the new data.

Example usage:
  vitrine-ingest run --catalog fashion.csv --images-dir ./images
  vitrine-ingest run --catalog fashion.csv --dry-run`,
	Version: version.Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(config.GetEnv())
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
