// Package app wires the application together.
//
// App is the container the commands build on: it owns the database pool,
// the Genkit client, and the stores that every command shares. Optional
// integrations (Notion, Mastodon) are constructed on demand so commands
// that never touch them do not need their credentials.
package app

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/softbatch/loaf/internal/config"
	"github.com/softbatch/loaf/internal/draft"
	"github.com/softbatch/loaf/internal/genai"
	"github.com/softbatch/loaf/internal/knowledge"
	"github.com/softbatch/loaf/internal/listener"
	"github.com/softbatch/loaf/internal/log"
	"github.com/softbatch/loaf/internal/mastodon"
	"github.com/softbatch/loaf/internal/notion"
)

// App is the core application container.
type App struct {
	Config *config.Config
	Logger log.Logger

	Pool         *pgxpool.Pool
	GenAI        *genai.Client
	Querier      *knowledge.PGQuerier
	Store        *knowledge.Store
	Pipeline     *knowledge.Pipeline
	Drafts       *draft.Store
	Interactions *listener.PGInteractionStore
}

// Close releases all resources. Safe to call on a partially initialized App.
func (a *App) Close() error {
	if a.Pool != nil {
		a.Pool.Close()
		a.Logger.Debug("database pool closed")
	}
	return nil
}

// NotionSource builds the document source for the configured pages.
func (a *App) NotionSource() (*notion.Source, error) {
	if err := a.Config.RequireNotion(); err != nil {
		return nil, err
	}
	client, err := notion.NewClient(a.Config.NotionToken, a.Logger)
	if err != nil {
		return nil, err
	}
	return notion.NewSource(client, a.Config.NotionPageIDs, a.Logger), nil
}

// MastodonClient builds the Mastodon API client.
func (a *App) MastodonClient() (*mastodon.Client, error) {
	if err := a.Config.RequireMastodon(); err != nil {
		return nil, err
	}
	return mastodon.NewClient(a.Config.MastodonBaseURL, a.Config.MastodonToken, a.Logger)
}
