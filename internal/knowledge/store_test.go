package knowledge

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/softbatch/loaf/internal/log"
)

// fakeQuerier is an in-memory Querier for unit tests.
type fakeQuerier struct {
	frags  []Fragment
	docs   map[string]Document
	nextID int64

	replaceCalls int
	upsertCalls  int

	replaceErr error
	listErr    error
	upsertErr  error
}

func newFakeQuerier() *fakeQuerier {
	return &fakeQuerier{docs: make(map[string]Document), nextID: 1}
}

func (f *fakeQuerier) ReplaceFragments(_ context.Context, sourceID, sourceType string, frags []Fragment) error {
	f.replaceCalls++
	if f.replaceErr != nil {
		return f.replaceErr
	}

	kept := f.frags[:0]
	for _, fr := range f.frags {
		if fr.SourceID != sourceID || fr.SourceType != sourceType {
			kept = append(kept, fr)
		}
	}
	f.frags = kept

	for _, fr := range frags {
		fr.ID = f.nextID
		f.nextID++
		f.frags = append(f.frags, fr)
	}
	return nil
}

func (f *fakeQuerier) ListFragments(_ context.Context, sourceType string) ([]Fragment, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []Fragment
	for _, fr := range f.frags {
		if sourceType == "" || fr.SourceType == sourceType {
			out = append(out, fr)
		}
	}
	return out, nil
}

func (f *fakeQuerier) CountFragments(_ context.Context, sourceType string) (int64, error) {
	var n int64
	for _, fr := range f.frags {
		if sourceType == "" || fr.SourceType == sourceType {
			n++
		}
	}
	return n, nil
}

func (f *fakeQuerier) GetDocument(_ context.Context, sourceID string) (Document, error) {
	doc, ok := f.docs[sourceID]
	if !ok {
		return Document{}, ErrDocumentNotFound
	}
	return doc, nil
}

func (f *fakeQuerier) UpsertDocument(_ context.Context, doc Document) error {
	f.upsertCalls++
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.docs[doc.SourceID] = doc
	return nil
}

func (f *fakeQuerier) CountDocuments(_ context.Context) (int64, error) {
	return int64(len(f.docs)), nil
}

// stubEmbedder returns canned vectors keyed by input text.
type stubEmbedder struct {
	vectors  map[string][]float32
	fallback []float32
	err      error
	calls    int
}

func (e *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	if v, ok := e.vectors[text]; ok {
		return v, nil
	}
	return e.fallback, nil
}

func addFragment(q *fakeQuerier, sourceID string, ordinal int, content string, vec []float32) {
	q.frags = append(q.frags, Fragment{
		ID:         q.nextID,
		SourceID:   sourceID,
		SourceType: SourceTypeNotion,
		Ordinal:    ordinal,
		Content:    content,
		Embedding:  vec,
	})
	q.nextID++
}

func TestRetrieveOrdersBySimilarity(t *testing.T) {
	q := newFakeQuerier()
	addFragment(q, "doc", 0, "orthogonal", []float32{0, 1, 0})
	addFragment(q, "doc", 1, "exact", []float32{1, 0, 0})
	addFragment(q, "doc", 2, "close", []float32{0.9, 0.1, 0})

	emb := &stubEmbedder{fallback: []float32{1, 0, 0}}
	store := NewStore(q, emb, log.NewNop())

	results, err := store.Retrieve(context.Background(), "query")
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("Retrieve() returned %d results, want 3", len(results))
	}

	wantOrder := []string{"exact", "close", "orthogonal"}
	for i, want := range wantOrder {
		if results[i].Content != want {
			t.Errorf("results[%d].Content = %q, want %q", i, results[i].Content, want)
		}
	}
	if math.Abs(results[0].Similarity-1.0) > 1e-9 {
		t.Errorf("exact match similarity = %v, want 1.0", results[0].Similarity)
	}
	if results[0].Similarity <= results[1].Similarity {
		t.Errorf("similarities not descending: %v then %v", results[0].Similarity, results[1].Similarity)
	}
}

func TestRetrieveTieBreaking(t *testing.T) {
	q := newFakeQuerier()
	same := []float32{1, 0}
	addFragment(q, "b", 3, "ordinal three", same)
	addFragment(q, "a", 1, "ordinal one", same)
	addFragment(q, "c", 1, "ordinal one later insert", same)

	emb := &stubEmbedder{fallback: same}
	store := NewStore(q, emb, log.NewNop())

	results, err := store.Retrieve(context.Background(), "query")
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}

	// Equal similarity: lower ordinal wins, then earlier insertion.
	wantOrder := []string{"ordinal one", "ordinal one later insert", "ordinal three"}
	for i, want := range wantOrder {
		if results[i].Content != want {
			t.Errorf("results[%d].Content = %q, want %q", i, results[i].Content, want)
		}
	}
}

func TestRetrieveTopK(t *testing.T) {
	q := newFakeQuerier()
	for i := range 10 {
		addFragment(q, "doc", i, fmt.Sprintf("chunk %d", i), []float32{1, float32(i) * 0.01})
	}
	emb := &stubEmbedder{fallback: []float32{1, 0}}
	store := NewStore(q, emb, log.NewNop())

	results, err := store.Retrieve(context.Background(), "query", WithTopK(3))
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(results) != 3 {
		t.Errorf("Retrieve(WithTopK(3)) returned %d results", len(results))
	}

	// Default cap is 5.
	results, err = store.Retrieve(context.Background(), "query")
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(results) != 5 {
		t.Errorf("Retrieve() with default top-k returned %d results, want 5", len(results))
	}
}

func TestRetrieveInvalidTopK(t *testing.T) {
	for _, k := range []int{0, -1} {
		store := NewStore(newFakeQuerier(), &stubEmbedder{fallback: []float32{1}}, log.NewNop())
		_, err := store.Retrieve(context.Background(), "query", WithTopK(k))
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("Retrieve(WithTopK(%d)) error = %v, want ErrInvalidConfig", k, err)
		}
	}
}

func TestRetrieveEmptyStore(t *testing.T) {
	store := NewStore(newFakeQuerier(), &stubEmbedder{fallback: []float32{1, 0}}, log.NewNop())

	results, err := store.Retrieve(context.Background(), "anything")
	if err != nil {
		t.Fatalf("Retrieve() on empty store error = %v", err)
	}
	if len(results) != 0 {
		t.Errorf("Retrieve() on empty store returned %d results, want 0", len(results))
	}
}

func TestRetrieveSourceTypeFilter(t *testing.T) {
	q := newFakeQuerier()
	same := []float32{1, 0}
	addFragment(q, "notes", 0, "from notion", same)
	q.frags = append(q.frags, Fragment{
		ID: q.nextID, SourceID: "post", SourceType: SourceTypeArticle,
		Ordinal: 0, Content: "from article", Embedding: same,
	})
	q.nextID++

	emb := &stubEmbedder{fallback: same}
	store := NewStore(q, emb, log.NewNop())

	results, err := store.Retrieve(context.Background(), "query", WithSourceType(SourceTypeArticle))
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(results) != 1 || results[0].Content != "from article" {
		t.Errorf("Retrieve(WithSourceType) = %+v, want only the article fragment", results)
	}
}

func TestRetrieveEmbedderFailure(t *testing.T) {
	q := newFakeQuerier()
	addFragment(q, "doc", 0, "chunk", []float32{1})

	emb := &stubEmbedder{err: fmt.Errorf("%w: connection refused", ErrEmbeddingUnavailable)}
	store := NewStore(q, emb, log.NewNop())

	_, err := store.Retrieve(context.Background(), "query")
	if !errors.Is(err, ErrEmbeddingUnavailable) {
		t.Errorf("Retrieve() error = %v, want ErrEmbeddingUnavailable", err)
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{name: "identical", a: []float32{1, 2, 3}, b: []float32{1, 2, 3}, want: 1},
		{name: "orthogonal", a: []float32{1, 0}, b: []float32{0, 1}, want: 0},
		{name: "opposite", a: []float32{1, 0}, b: []float32{-1, 0}, want: -1},
		{name: "zero query", a: []float32{0, 0}, b: []float32{1, 1}, want: 0},
		{name: "zero fragment", a: []float32{1, 1}, b: []float32{0, 0}, want: 0},
		{name: "dimension mismatch", a: []float32{1, 0}, b: []float32{1, 0, 0}, want: 0},
		{name: "both empty", a: nil, b: nil, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cosineSimilarity(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("cosineSimilarity() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUpsertFragmentsReplacesSet(t *testing.T) {
	q := newFakeQuerier()
	store := NewStore(q, &stubEmbedder{fallback: []float32{1}}, log.NewNop())
	ctx := context.Background()

	first := []Fragment{
		{SourceID: "doc", SourceType: SourceTypeNotion, Ordinal: 0, Content: "old a", Embedding: []float32{1}},
		{SourceID: "doc", SourceType: SourceTypeNotion, Ordinal: 1, Content: "old b", Embedding: []float32{1}},
		{SourceID: "doc", SourceType: SourceTypeNotion, Ordinal: 2, Content: "old c", Embedding: []float32{1}},
	}
	if err := store.UpsertFragments(ctx, "doc", SourceTypeNotion, first); err != nil {
		t.Fatalf("UpsertFragments() error = %v", err)
	}

	second := []Fragment{
		{SourceID: "doc", SourceType: SourceTypeNotion, Ordinal: 0, Content: "new a", Embedding: []float32{1}},
	}
	if err := store.UpsertFragments(ctx, "doc", SourceTypeNotion, second); err != nil {
		t.Fatalf("UpsertFragments() error = %v", err)
	}

	if len(q.frags) != 1 {
		t.Fatalf("store holds %d fragments after replacement, want 1", len(q.frags))
	}
	if q.frags[0].Content != "new a" {
		t.Errorf("surviving fragment = %q, want %q", q.frags[0].Content, "new a")
	}
}
