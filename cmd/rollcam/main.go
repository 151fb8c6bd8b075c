package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/rollcam/rollcam/common/version"
	"github.com/rollcam/rollcam/internal/rollcam/app"
	"github.com/rollcam/rollcam/internal/rollcam/observability"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:   "rollcam",
	Short: "Chat front-end for the rolling-mill image archive",
	Long: `rollcam answers chat commands with menus and images browsed from a
remote image archive. It listens on Matrix rooms and, optionally, on an HTTP
webhook for LINE-style callbacks.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if err := loadEnvFile(envFile); err != nil {
			return err
		}
		observability.Setup(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
		return nil
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	rootCmd.AddCommand(serveCmd, askCmd, machinesCmd, auditCmd, membersCmd, versionCmd)
}

// loadEnvFile overlays variables from path; a missing file is not an error.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Overload(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// loadConfig reads the environment into an app.Config.
func loadConfig() (*app.Config, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("configuration: %w", err)
	}
	return cfg, nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.Info())
	},
}
