// Package api serves the review surface: store statistics, pending
// drafts, and publish/discard actions on them.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/softbatch/loaf/internal/draft"
	"github.com/softbatch/loaf/internal/log"
	"github.com/softbatch/loaf/internal/mastodon"
)

// DraftStore is the draft persistence the server depends on.
type DraftStore interface {
	Get(ctx context.Context, id uuid.UUID) (*draft.Draft, error)
	List(ctx context.Context, status draft.Status) ([]draft.Draft, error)
	MarkPosted(ctx context.Context, id uuid.UUID, externalPostID string) error
	Discard(ctx context.Context, id uuid.UUID) error
}

// Publisher posts approved drafts to the social feed.
type Publisher interface {
	PostStatus(ctx context.Context, text, inReplyToID string) (*mastodon.Status, error)
}

// StatsSource reports store counts for the stats endpoint.
type StatsSource interface {
	CountFragments(ctx context.Context, sourceType string) (int64, error)
	CountDocuments(ctx context.Context) (int64, error)
}

// InteractionCounter reports how many mentions still await a reply.
type InteractionCounter interface {
	CountUnresponded(ctx context.Context) (int64, error)
}

// ServerConfig contains the server's dependencies.
type ServerConfig struct {
	Logger       log.Logger
	Drafts       DraftStore          // Required
	Publisher    Publisher           // Required for publish; nil returns 503
	Stats        StatsSource         // Required
	Interactions InteractionCounter // Optional: nil omits the unresponded count
}

// Server is the JSON review API.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates the server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Drafts == nil {
		return nil, errors.New("draft store is required")
	}
	if cfg.Stats == nil {
		return nil, errors.New("stats source is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewNop()
	}

	dh := &draftHandler{
		drafts:    cfg.Drafts,
		publisher: cfg.Publisher,
		logger:    cfg.Logger,
	}
	sh := &statsHandler{
		stats:        cfg.Stats,
		interactions: cfg.Interactions,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", health)
	mux.HandleFunc("GET /api/v1/stats", sh.handleStats)
	mux.HandleFunc("GET /api/v1/drafts", dh.list)
	mux.HandleFunc("POST /api/v1/drafts/{id}/publish", dh.publish)
	mux.HandleFunc("POST /api/v1/drafts/{id}/discard", dh.discard)

	return &Server{mux: mux}, nil
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
