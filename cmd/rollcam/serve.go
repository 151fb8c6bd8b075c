package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rollcam/rollcam/common/version"
	"github.com/rollcam/rollcam/internal/rollcam/app"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Matrix bot and HTTP gateway",
	RunE: func(cmd *cobra.Command, _ []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), version.Info())

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("configuration: %w", err)
		}

		rollcam, err := app.New(cmd.Context(), cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize Rollcam: %w", err)
		}
		defer rollcam.Stop()

		if err := rollcam.Run(); err != nil {
			return fmt.Errorf("error running Rollcam: %w", err)
		}
		return nil
	},
}
