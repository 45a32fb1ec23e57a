// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the paper-loupe CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is set at build time via ldflags.
var version = "dev"

// logger is the diagnostic logger shared by all commands. Progress
// output for the user goes to stdout, diagnostics to stderr.
var logger = zerolog.Nop()

// rootCmd is the base command for the paper-loupe CLI.
var rootCmd = &cobra.Command{
	Use:   "paper-loupe",
	Short: "Triage Google Scholar alert digests against your research questions",
	Long: `paper-loupe turns a backlog of Google Scholar alert emails into a ranked
reading list. It fetches digest emails from Gmail, parses the recommended
papers, resolves each against arXiv under a polite rate limit, and asks an
LLM judge how relevant each paper is to your research questions.

Resolved papers accumulate in a local record store across runs, so each
invocation only works on what is new. Run 'paper-loupe setup' once to
authorize Gmail access, then 'paper-loupe process' whenever the alerts
pile up.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env is optional; a missing file is the common case.
		_ = godotenv.Load()

		verbose, _ := cmd.Flags().GetBool("verbose")
		logger = newLogger(verbose)
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./paper-loupe.yaml or ~/.config/paper-loupe/config.yaml)")
	rootCmd.PersistentFlags().Bool("verbose", false, "enable debug logging")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("paper-loupe")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "paper-loupe"))
		}
	}

	viper.SetEnvPrefix("PAPER_LOUPE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func newLogger(verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	return zerolog.New(writer).Level(level).With().Timestamp().Logger()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
