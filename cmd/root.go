package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xconmik/buildata-automation/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "buildata",
	Short: "Lead enrichment and form-fill automation",
	Long:  "Reads lead sheets, resolves each company against a reference directory, scrapes company facts from profile pages, and fills the lead form one lead at a time.",
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
