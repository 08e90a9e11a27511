// Package main implements the actiscore CLI for scoring actigraphy recordings.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/codeGROOVE-dev/actiscore/pkg/config"
)

const version = "v0.3.0"

var (
	configPath string
	envFile    string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "actiscore",
	Short: "Score sleep from wrist actigraphy",
	Long: `actiscore classifies epoch counts as sleep or wake, detects nonwear,
places sleep onset and offset markers and reports per-period sleep metrics.

Settings come from a YAML file (--config), then ACTISCORE_* environment
variables, then command-line flags.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "actiscore.yaml", "YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Environment file loaded before overrides")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(algorithmsCmd)
	rootCmd.AddCommand(agreeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelError
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath, envFile)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}
