package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mega-minerals/oreflow/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "oreflow",
	Short: "Iron ore supply chain metrics pipeline",
	Long:  "Loads raw operational and commercial facts, recomputes derived views (inventory, vessel coverage, quality, pricing scenarios, asset risk), and publishes a consistent snapshot for querying and export.",
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
