package knowledge

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/softbatch/loaf/internal/log"
)

const defaultTopK = 5

// Querier is the persistence interface the store depends on.
// The production implementation lives in queries.go on top of pgx.
type Querier interface {
	// ReplaceFragments atomically swaps the fragment set for one
	// (sourceID, sourceType) pair. Readers never observe a partial set.
	ReplaceFragments(ctx context.Context, sourceID, sourceType string, frags []Fragment) error

	// ListFragments returns all embedded fragments, oldest first.
	// An empty sourceType means no filter.
	ListFragments(ctx context.Context, sourceType string) ([]Fragment, error)

	// CountFragments returns the number of stored fragments, optionally
	// filtered by source type.
	CountFragments(ctx context.Context, sourceType string) (int64, error)

	// GetDocument returns the sync record for a source ID, or
	// ErrDocumentNotFound.
	GetDocument(ctx context.Context, sourceID string) (Document, error)

	// UpsertDocument inserts or updates a sync record.
	UpsertDocument(ctx context.Context, doc Document) error

	// CountDocuments returns the number of tracked source documents.
	CountDocuments(ctx context.Context) (int64, error)
}

// Store provides semantic retrieval over embedded fragments.
type Store struct {
	q        Querier
	embedder Embedder
	logger   log.Logger
}

// NewStore creates a retrieval store.
func NewStore(q Querier, embedder Embedder, logger log.Logger) *Store {
	return &Store{
		q:        q,
		embedder: embedder,
		logger:   logger,
	}
}

// UpsertFragments replaces the whole fragment set for one source.
// Passing an empty slice clears the set.
func (s *Store) UpsertFragments(ctx context.Context, sourceID, sourceType string, frags []Fragment) error {
	if err := s.q.ReplaceFragments(ctx, sourceID, sourceType, frags); err != nil {
		return fmt.Errorf("replacing fragments for %s/%s: %w", sourceType, sourceID, err)
	}

	s.logger.Debug("replaced fragment set",
		"source_id", sourceID,
		"source_type", sourceType,
		"fragments", len(frags))

	return nil
}

// Retrieve embeds the query and returns the top-k most similar
// fragments, ordered by cosine similarity descending. Ties break on
// lower ordinal, then earlier insertion. An empty store yields an
// empty result, not an error.
func (s *Store) Retrieve(ctx context.Context, query string, opts ...SearchOption) ([]Result, error) {
	options := searchOptions{topK: defaultTopK}
	for _, opt := range opts {
		opt(&options)
	}

	if options.topK <= 0 {
		return nil, fmt.Errorf("%w: top k must be positive, got %d", ErrInvalidConfig, options.topK)
	}

	queryVec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	frags, err := s.q.ListFragments(ctx, options.sourceType)
	if err != nil {
		return nil, fmt.Errorf("listing fragments: %w", err)
	}
	if len(frags) == 0 {
		return []Result{}, nil
	}

	results := make([]Result, 0, len(frags))
	for _, f := range frags {
		results = append(results, Result{
			Fragment:   f,
			Similarity: cosineSimilarity(queryVec, f.Embedding),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		if results[i].Ordinal != results[j].Ordinal {
			return results[i].Ordinal < results[j].Ordinal
		}
		return results[i].ID < results[j].ID
	})

	if len(results) > options.topK {
		results = results[:options.topK]
	}

	s.logger.Debug("retrieval complete",
		"candidates", len(frags),
		"returned", len(results))

	return results, nil
}

// Count returns the number of stored fragments, optionally filtered by
// source type.
func (s *Store) Count(ctx context.Context, sourceType string) (int64, error) {
	n, err := s.q.CountFragments(ctx, sourceType)
	if err != nil {
		return 0, fmt.Errorf("counting fragments: %w", err)
	}
	return n, nil
}

// cosineSimilarity computes the cosine of the angle between two
// vectors. Either vector having zero magnitude, or a dimension
// mismatch, yields 0 rather than an error.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
