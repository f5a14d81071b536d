package knowledge

import (
	"context"
	"errors"
	"testing"

	"github.com/softbatch/loaf/internal/chunk"
	"github.com/softbatch/loaf/internal/log"
)

func newTestPipeline(q *fakeQuerier, emb Embedder) *Pipeline {
	store := NewStore(q, emb, log.NewNop())
	return NewPipeline(q, store, emb, log.NewNop())
}

func TestSyncFirstIngestion(t *testing.T) {
	q := newFakeQuerier()
	emb := &stubEmbedder{fallback: []float32{0.1, 0.2}}
	p := newTestPipeline(q, emb)

	res, err := p.Sync(context.Background(), SyncRequest{
		SourceID:   "page-1",
		SourceType: SourceTypeNotion,
		Title:      "Sourdough Basics",
		Content:    "First paragraph.\n\nSecond paragraph.",
		Marker:     "2026-08-30T10:00:00Z",
		Strategy:   chunk.StrategyParagraphs,
		Size:       16,
	})
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if res.Unchanged {
		t.Error("Sync() reported unchanged on first ingestion")
	}
	if res.Fragments != 2 {
		t.Errorf("Sync() produced %d fragments, want 2", res.Fragments)
	}
	if res.SourceID != "page-1" {
		t.Errorf("res.SourceID = %q, want page-1", res.SourceID)
	}

	if len(q.frags) != 2 {
		t.Fatalf("store holds %d fragments, want 2", len(q.frags))
	}
	for i, f := range q.frags {
		if f.Ordinal != i {
			t.Errorf("fragment %d has ordinal %d", i, f.Ordinal)
		}
		if f.SourceID != "page-1" || f.SourceType != SourceTypeNotion {
			t.Errorf("fragment %d has keys %s/%s", i, f.SourceType, f.SourceID)
		}
		if f.Metadata["title"] != "Sourdough Basics" {
			t.Errorf("fragment %d metadata title = %q", i, f.Metadata["title"])
		}
	}

	doc, ok := q.docs["page-1"]
	if !ok {
		t.Fatal("sync record not written")
	}
	if doc.RevisionMarker != "2026-08-30T10:00:00Z" {
		t.Errorf("revision marker = %q", doc.RevisionMarker)
	}
	if doc.LastSyncedAt.IsZero() {
		t.Error("last synced timestamp not set")
	}
}

func TestSyncUnchangedContentSkips(t *testing.T) {
	q := newFakeQuerier()
	emb := &stubEmbedder{fallback: []float32{1}}
	p := newTestPipeline(q, emb)
	ctx := context.Background()

	req := SyncRequest{
		SourceID:   "page-1",
		SourceType: SourceTypeNotion,
		Title:      "Title",
		Content:    "Stable content.",
		Strategy:   chunk.StrategyFixedChars,
		Size:       100,
	}
	if _, err := p.Sync(ctx, req); err != nil {
		t.Fatalf("first Sync() error = %v", err)
	}

	replaces := q.replaceCalls
	upserts := q.upsertCalls
	embedCalls := emb.calls

	res, err := p.Sync(ctx, req)
	if err != nil {
		t.Fatalf("second Sync() error = %v", err)
	}
	if !res.Unchanged {
		t.Error("second Sync() did not report unchanged")
	}
	if res.SourceID != req.SourceID {
		t.Errorf("res.SourceID = %q, want %q", res.SourceID, req.SourceID)
	}
	if q.replaceCalls != replaces {
		t.Error("unchanged sync replaced fragments")
	}
	if q.upsertCalls != upserts {
		t.Error("unchanged sync rewrote the sync record")
	}
	if emb.calls != embedCalls {
		t.Error("unchanged sync called the embedder")
	}
}

func TestSyncChangedInputResyncs(t *testing.T) {
	base := SyncRequest{
		SourceID:   "page-1",
		SourceType: SourceTypeNotion,
		Title:      "Title",
		Content:    "Original content here.",
		Strategy:   chunk.StrategyFixedChars,
		Size:       100,
	}

	tests := []struct {
		name   string
		mutate func(*SyncRequest)
	}{
		{name: "content changed", mutate: func(r *SyncRequest) { r.Content = "Edited content here." }},
		{name: "strategy changed", mutate: func(r *SyncRequest) { r.Strategy = chunk.StrategySentences }},
		{name: "size changed", mutate: func(r *SyncRequest) { r.Size = 50 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := newFakeQuerier()
			p := newTestPipeline(q, &stubEmbedder{fallback: []float32{1}})
			ctx := context.Background()

			if _, err := p.Sync(ctx, base); err != nil {
				t.Fatalf("first Sync() error = %v", err)
			}

			req := base
			tt.mutate(&req)
			res, err := p.Sync(ctx, req)
			if err != nil {
				t.Fatalf("second Sync() error = %v", err)
			}
			if res.Unchanged {
				t.Error("changed input reported as unchanged")
			}
			if q.replaceCalls != 2 {
				t.Errorf("replaceCalls = %d, want 2", q.replaceCalls)
			}
		})
	}
}

func TestSyncEmbedderFailureAborts(t *testing.T) {
	q := newFakeQuerier()
	emb := &stubEmbedder{err: ErrEmbeddingUnavailable}
	p := newTestPipeline(q, emb)

	_, err := p.Sync(context.Background(), SyncRequest{
		SourceID:   "page-1",
		SourceType: SourceTypeNotion,
		Content:    "Some content.",
		Strategy:   chunk.StrategyFixedChars,
		Size:       100,
	})
	if !errors.Is(err, ErrEmbeddingUnavailable) {
		t.Fatalf("Sync() error = %v, want ErrEmbeddingUnavailable", err)
	}
	if q.replaceCalls != 0 {
		t.Error("fragments replaced despite embedding failure")
	}
	if len(q.docs) != 0 {
		t.Error("sync record written despite embedding failure")
	}
}

func TestSyncReplaceFailureSkipsRecord(t *testing.T) {
	q := newFakeQuerier()
	q.replaceErr = ErrDataIntegrity
	p := newTestPipeline(q, &stubEmbedder{fallback: []float32{1}})

	_, err := p.Sync(context.Background(), SyncRequest{
		SourceID:   "page-1",
		SourceType: SourceTypeNotion,
		Content:    "Some content.",
		Strategy:   chunk.StrategyFixedChars,
		Size:       100,
	})
	if !errors.Is(err, ErrDataIntegrity) {
		t.Fatalf("Sync() error = %v, want ErrDataIntegrity", err)
	}
	if len(q.docs) != 0 {
		t.Error("sync record written despite fragment replacement failure")
	}
}

func TestSyncInvalidChunkConfig(t *testing.T) {
	q := newFakeQuerier()
	p := newTestPipeline(q, &stubEmbedder{fallback: []float32{1}})

	_, err := p.Sync(context.Background(), SyncRequest{
		SourceID:   "page-1",
		SourceType: SourceTypeNotion,
		Content:    "Some content.",
		Strategy:   chunk.StrategyFixedChars,
		Size:       0,
	})
	if !errors.Is(err, chunk.ErrInvalidConfig) {
		t.Fatalf("Sync() error = %v, want chunk.ErrInvalidConfig", err)
	}
}

func TestSyncEmptyContentClearsFragments(t *testing.T) {
	q := newFakeQuerier()
	emb := &stubEmbedder{fallback: []float32{1}}
	p := newTestPipeline(q, emb)
	ctx := context.Background()

	req := SyncRequest{
		SourceID:   "page-1",
		SourceType: SourceTypeNotion,
		Content:    "Content to be removed.",
		Strategy:   chunk.StrategyFixedChars,
		Size:       100,
	}
	if _, err := p.Sync(ctx, req); err != nil {
		t.Fatalf("first Sync() error = %v", err)
	}
	if len(q.frags) == 0 {
		t.Fatal("no fragments after initial sync")
	}

	req.Content = ""
	res, err := p.Sync(ctx, req)
	if err != nil {
		t.Fatalf("empty content Sync() error = %v", err)
	}
	if res.Fragments != 0 {
		t.Errorf("Sync() of empty content produced %d fragments", res.Fragments)
	}
	if len(q.frags) != 0 {
		t.Errorf("store still holds %d fragments", len(q.frags))
	}
}
