package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/citycache/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "citycache",
	Short: "Builds the offline city coordinate cache",
	Long: "Resolves city names to coordinates through Nominatim, one rate limited call at a time, " +
		"and keeps the result in a JSON cache that survives restarts. Also expands groups from " +
		"OpenStreetMap place data, copies the cache to app bundles and answers offline queries.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
