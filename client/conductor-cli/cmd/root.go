package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	serverURL string
	token     string
	timeout   time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "conductor-cli",
	Short: "A CLI client for the Conductor orchestrator",
	Long:  `A command-line interface for sending questions to the orchestrator and inspecting past asks.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", envOr("CONDUCTOR_SERVER", "http://localhost:8000"), "orchestrator base URL")
	rootCmd.PersistentFlags().StringVar(&token, "token", os.Getenv("CONDUCTOR_TOKEN"), "bearer token, when the server requires one")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "request timeout")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
