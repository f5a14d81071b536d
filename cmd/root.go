// Package cmd implements the loaf command line interface.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/softbatch/loaf/internal/config"
	"github.com/softbatch/loaf/internal/log"
)

var rootCmd = &cobra.Command{
	Use:   "loaf",
	Short: "Loaf - the sourdough bakery knowledge bot",
	Long: `Loaf keeps a bakery's knowledge base in sync with its Notion
workspace and answers Mastodon mentions grounded in that knowledge.

Run "loaf listen" to start the polling loops, "loaf serve" to review
drafted replies, or "loaf ask" to query the knowledge base directly.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig loads configuration and builds the logger every command
// shares. Commands that need credentials validate them separately.
func loadConfig() (*config.Config, log.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	logger := log.New(log.Config{
		Level: log.ParseLevel(cfg.LogLevel),
		JSON:  cfg.LogJSON,
	})

	return cfg, logger, nil
}
