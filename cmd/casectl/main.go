// File: cmd/casectl/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/victorniga-aphrc/early-cancer-diagnosis/internal/config"
	"github.com/victorniga-aphrc/early-cancer-diagnosis/internal/logging"
)

var (
	casesPath string
	verbose   bool
	timeout   time.Duration
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "casectl",
	Short: "Maintain the clinical case index",
	Long: `casectl prepares the case records used by the interview server.

It precomputes embeddings, pushes them to Pinecone and runs debug queries
against the same index the server uses. Settings come from the server's
environment variables (or .env).`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&casesPath, "cases", "c", "", "Case file (default: CASES_PATH)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Minute, "Operation timeout")

	rootCmd.AddCommand(embedCmd)
	rootCmd.AddCommand(upsertCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(statsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadEnv reads the server configuration and applies command-line overrides.
func loadEnv() (*config.Config, *logging.ZapLogger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if casesPath != "" {
		cfg.CasesPath = casesPath
	}
	level := "warn"
	if verbose {
		level = "debug"
	}
	logger, err := logging.New("casectl", cfg.Environment, level)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), timeout)
}
