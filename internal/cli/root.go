// Package cli provides the orgai console client.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/suPer8Hu/orgai/internal/client"
	"github.com/suPer8Hu/orgai/internal/config"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	serverURL string
	userID    string
	token     string

	cfg config.Config
)

var rootCmd = &cobra.Command{
	Use:   "orgai",
	Short: "Console client for the organization assistant",
	Long: `orgai asks questions about company policies, database schema and internal
documentation through a running orgai server.

Run "orgai ask" without a prompt for an interactive session.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", envOr("ORGAI_SERVER", "http://localhost:8080"), "server base URL")
	rootCmd.PersistentFlags().StringVarP(&userID, "user", "u", envOr("USER", "console"), "session user id")
	rootCmd.PersistentFlags().StringVar(&token, "token", os.Getenv("ORGAI_TOKEN"), "admin bearer token")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(tokenCmd)
}

func newClient() *client.Client {
	return client.New(serverURL, nil).WithToken(token)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
