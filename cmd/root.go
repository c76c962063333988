/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/worldview-app/apiserver/config"
	"github.com/worldview-app/apiserver/internal/logging"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "worldview",
	Short: "Backend for the worldview country explorer",
	Long: `worldview serves accounts, favorites and cached country data for the
country explorer frontend.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadRuntime reads the environment and builds the matching logger.
func loadRuntime() (config.Config, *slog.Logger) {
	cfg := config.LoadConfig()
	logger := logging.New(cfg, os.Stderr)
	slog.SetDefault(logger)
	return cfg, logger
}
