// Package knowledge implements the retrieval store: embedded text
// fragments persisted in PostgreSQL and queried by cosine similarity.
package knowledge

import (
	"time"

	"github.com/softbatch/loaf/internal/chunk"
)

// Source types categorize where a fragment set came from. Fragments of
// different source types never collide even when they share a source ID.
const (
	SourceTypeNotion   = "notion"
	SourceTypeArticle  = "article"
	SourceTypeBrandDoc = "brand_doc"
)

// Fragment is one embedded chunk of a source document. Fragments with
// the same (SourceID, SourceType) form a set that is always replaced as
// a whole; Ordinal preserves the original chunk order within the set.
type Fragment struct {
	ID         int64
	SourceID   string
	SourceType string
	Ordinal    int
	Strategy   chunk.Strategy
	Content    string
	Embedding  []float32
	Metadata   map[string]string
	CreatedAt  time.Time
}

// Result is a fragment returned from Retrieve together with its cosine
// similarity to the query, in [-1, 1].
type Result struct {
	Fragment
	Similarity float64
}

// Document is the sync bookkeeping row for one source document. Content
// holds the full text as of the last successful sync so that unchanged
// documents can be skipped without re-embedding.
type Document struct {
	SourceID       string
	Title          string
	Content        string
	RevisionMarker string
	ChunkStrategy  chunk.Strategy
	ChunkSize      int
	LastSyncedAt   time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// SourceDocument is a document as fetched from an external source,
// before chunking. Marker is an opaque revision indicator used to
// detect edits between polls.
type SourceDocument struct {
	ID      string
	Title   string
	Content string
	Marker  string
}

// SearchOption configures a Retrieve call.
type SearchOption func(*searchOptions)

type searchOptions struct {
	topK       int
	sourceType string
}

// WithTopK sets the maximum number of results to return.
// Defaults to 5 when not provided.
func WithTopK(k int) SearchOption {
	return func(o *searchOptions) {
		o.topK = k
	}
}

// WithSourceType restricts retrieval to fragments of one source type.
func WithSourceType(st string) SearchOption {
	return func(o *searchOptions) {
		o.sourceType = st
	}
}
