package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/elegant-foods/costing-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "costing-cli",
	Short: "Catering menu ingredient cost estimation pipeline",
	Long:  "Decomposes catering menu items into ingredients via Claude, resolves prices against a supplier catalog with fuzzy matching, and checkpoints progress durably so long runs survive restarts.",
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
