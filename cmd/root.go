package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gedworks/archive-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "archive-cli",
	Short: "Document classification and archival pipeline",
	Long:  "Classifies documents with keyword rules and assisted analysis, files them into a category tree under normalized names, and deduplicates by content fingerprint.",
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
