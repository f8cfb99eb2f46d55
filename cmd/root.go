package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/unitmap/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "unitmap",
	Short: "Map surveyed units to structures on a site drawing",
	Long:  "Joins surveyed unit locations to the closed boundaries of a DXF drawing, groups nearby units into structures, classifies each structure by occupancy and writes an annotated drawing with per-category statistics.",
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
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
