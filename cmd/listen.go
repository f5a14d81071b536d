package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/softbatch/loaf/internal/app"
	"github.com/softbatch/loaf/internal/chunk"
	"github.com/softbatch/loaf/internal/knowledge"
	"github.com/softbatch/loaf/internal/listener"
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Run the document and mention polling loops",
	Long: `Listen starts both polling loops: the document listener keeps the
knowledge base in sync with Notion, and the interaction listener answers
Mastodon mentions. Both run until interrupted.`,
	RunE: runListen,
}

func init() {
	rootCmd.AddCommand(listenCmd)
}

func runListen(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.RequireNotion(); err != nil {
		return err
	}
	if err := cfg.RequireMastodon(); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("starting listeners", "version", AppVersion,
		"reply_mode", cfg.ReplyMode,
		"document_interval", cfg.DocumentInterval,
		"mention_interval", cfg.MentionInterval,
	)

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
	feed, err := a.MastodonClient()
	if err != nil {
		return err
	}

	announcer := &listener.Announcer{
		Retriever: a.Store,
		Composer:  a.GenAI,
		Drafts:    a.Drafts,
	}

	docs := listener.NewDocumentListener(source, a.Pipeline, a.Querier, announcer, listener.DocumentConfig{
		SourceType: knowledge.SourceTypeNotion,
		Strategy:   chunk.Strategy(cfg.ChunkStrategy),
		ChunkSize:  cfg.ChunkSize,
		Interval:   cfg.DocumentInterval,
	}, logger.With("component", "document-listener"))

	mentions := listener.NewInteractionListener(
		feed,
		a.Interactions,
		a.Store,
		a.GenAI,
		a.Drafts,
		feed,
		listener.InteractionConfig{
			Mode:       listener.ReplyMode(cfg.ReplyMode),
			Interval:   cfg.MentionInterval,
			SelfAcct:   cfg.MastodonAcct,
			Disclosure: cfg.Disclosure,
		},
		logger.With("component", "interaction-listener"),
	)

	errCh := make(chan error, 2)
	go func() { errCh <- docs.Run(ctx) }()
	go func() { errCh <- mentions.Run(ctx) }()

	err = <-errCh
	cancel()
	if second := <-errCh; second != nil && err == nil {
		err = second
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("listener stopped: %w", err)
	}

	logger.Info("listeners stopped")
	return nil
}
