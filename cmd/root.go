package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dcatlas/dcharvest/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "dcharvest",
	Short: "Facility catalog harvest pipeline",
	Long:  "Crawls a state/city facility catalog with durable resume, extracts embedded listing data, deduplicates across the corpus, and enriches records with HUC12 watershed lookups.",
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
