package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/softbatch/loaf/internal/app"
	"github.com/softbatch/loaf/internal/chunk"
	"github.com/softbatch/loaf/internal/knowledge"
	"github.com/softbatch/loaf/internal/listener"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Fetch the Notion pages and update the knowledge base once",
	RunE:  runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.RequireNotion(); err != nil {
		return err
	}

	ctx := cmd.Context()

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	source, err := a.NotionSource()
	if err != nil {
		return err
	}

	docs := listener.NewDocumentListener(source, a.Pipeline, a.Querier, nil, listener.DocumentConfig{
		SourceType: knowledge.SourceTypeNotion,
		Strategy:   chunk.Strategy(cfg.ChunkStrategy),
		ChunkSize:  cfg.ChunkSize,
	}, logger)

	stats, err := docs.Tick(ctx)
	if err != nil {
		return fmt.Errorf("syncing documents: %w", err)
	}

	fmt.Printf("fetched %d, synced %d, skipped %d, failed %d\n",
		stats.Fetched, stats.Synced, stats.Skipped, stats.Failed)
	return nil
}
