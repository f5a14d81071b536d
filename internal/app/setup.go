package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/softbatch/loaf/db"
	"github.com/softbatch/loaf/internal/config"
	"github.com/softbatch/loaf/internal/database"
	"github.com/softbatch/loaf/internal/draft"
	"github.com/softbatch/loaf/internal/genai"
	"github.com/softbatch/loaf/internal/knowledge"
	"github.com/softbatch/loaf/internal/listener"
	"github.com/softbatch/loaf/internal/log"
)

// Setup creates and initializes the application.
// Returns an App with embedded cleanup. Call Close() to release.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	a := &App{Config: cfg, Logger: logger}

	// On error, clean up everything already initialized
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	pool, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Pool = pool

	client, err := genai.New(ctx, genai.Config{
		ModelName:     cfg.ModelName,
		EmbedderModel: cfg.EmbedderModel,
	}, logger)
	if err != nil {
		return nil, err
	}
	a.GenAI = client

	a.Querier = knowledge.NewPGQuerier(pool)
	a.Store = knowledge.NewStore(a.Querier, client, logger)
	a.Pipeline = knowledge.NewPipeline(a.Querier, a.Store, client, logger)
	a.Drafts = draft.NewStore(pool, logger)
	a.Interactions = listener.NewPGInteractionStore(pool)

	return a, nil
}

// provideDBPool runs migrations and opens the connection pool.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	pool, err := database.NewPool(ctx, cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("opening database pool: %w", err)
	}

	return pool, nil
}
