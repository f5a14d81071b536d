package knowledge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/softbatch/loaf/internal/chunk"
	"github.com/softbatch/loaf/internal/log"
)

// SyncRequest carries one document through the ingestion pipeline.
type SyncRequest struct {
	SourceID   string
	SourceType string
	Title      string
	Content    string
	Marker     string
	Strategy   chunk.Strategy
	Size       int
}

// SyncResult reports what a sync did to which document.
type SyncResult struct {
	SourceID  string
	Unchanged bool
	Fragments int
}

// Pipeline ingests source documents: chunk, embed, replace fragments,
// then record the sync. Byte-identical content with unchanged chunking
// parameters is skipped without touching the store.
type Pipeline struct {
	q        Querier
	store    *Store
	embedder Embedder
	logger   log.Logger
}

// NewPipeline creates a sync pipeline sharing the store's querier.
func NewPipeline(q Querier, store *Store, embedder Embedder, logger log.Logger) *Pipeline {
	return &Pipeline{
		q:        q,
		store:    store,
		embedder: embedder,
		logger:   logger,
	}
}

// Sync ingests one document. The fragment replacement is atomic; the
// sync record is written only after the fragments land, so a failure
// partway leaves the document eligible for retry on the next pass.
func (p *Pipeline) Sync(ctx context.Context, req SyncRequest) (SyncResult, error) {
	existing, err := p.q.GetDocument(ctx, req.SourceID)
	switch {
	case err == nil:
		if existing.Content == req.Content &&
			existing.ChunkStrategy == req.Strategy &&
			existing.ChunkSize == req.Size {
			p.logger.Debug("document unchanged, skipping sync", "source_id", req.SourceID)
			return SyncResult{SourceID: req.SourceID, Unchanged: true}, nil
		}
	case errors.Is(err, ErrDocumentNotFound):
		// First sync for this source.
	default:
		return SyncResult{}, fmt.Errorf("loading sync record for %s: %w", req.SourceID, err)
	}

	chunks, err := chunk.Split(req.Content, chunk.Options{
		Strategy: req.Strategy,
		Size:     req.Size,
	})
	if err != nil {
		return SyncResult{}, fmt.Errorf("chunking %s: %w", req.SourceID, err)
	}

	frags := make([]Fragment, 0, len(chunks))
	for i, c := range chunks {
		vec, err := p.embedder.Embed(ctx, c)
		if err != nil {
			return SyncResult{}, fmt.Errorf("embedding chunk %d of %s: %w", i, req.SourceID, err)
		}
		frags = append(frags, Fragment{
			SourceID:   req.SourceID,
			SourceType: req.SourceType,
			Ordinal:    i,
			Strategy:   req.Strategy,
			Content:    c,
			Embedding:  vec,
			Metadata: map[string]string{
				"title": req.Title,
			},
		})
	}

	if err := p.store.UpsertFragments(ctx, req.SourceID, req.SourceType, frags); err != nil {
		return SyncResult{}, err
	}

	doc := Document{
		SourceID:       req.SourceID,
		Title:          req.Title,
		Content:        req.Content,
		RevisionMarker: req.Marker,
		ChunkStrategy:  req.Strategy,
		ChunkSize:      req.Size,
		LastSyncedAt:   time.Now().UTC(),
	}
	if err := p.q.UpsertDocument(ctx, doc); err != nil {
		return SyncResult{}, fmt.Errorf("recording sync for %s: %w", req.SourceID, err)
	}

	p.logger.Info("document synced",
		"source_id", req.SourceID,
		"source_type", req.SourceType,
		"fragments", len(frags))

	return SyncResult{SourceID: req.SourceID, Fragments: len(frags)}, nil
}
