package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/conduit-ai/conduit/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "conduit",
	Short: "Conduit routes tool calls to an external execution runtime",
	Long: `Conduit is a backend that routes natural-language requests to tool
executions on the OMC runtime, correlating asynchronous results back to
callers over a persistent event stream.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level, _ := cmd.Flags().GetString("log-level")
		slog.SetDefault(logging.New(logging.ParseLevel(level)))
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	// Local development convenience; in containers config comes from the
	// environment directly.
	if err := godotenv.Load(); err == nil {
		slog.Debug("Loaded environment from .env")
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "conduit.yaml", "Path to the configuration file")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn, error")
}
