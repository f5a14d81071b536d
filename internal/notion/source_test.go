package notion

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/softbatch/loaf/internal/log"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient("ntn_test", log.NewNop(), WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return client
}

func TestNewClientRequiresToken(t *testing.T) {
	if _, err := NewClient("", log.NewNop()); err == nil {
		t.Error("NewClient(\"\") did not return an error")
	}
}

func TestListDocumentsAndFetchContent(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/pages/page-1", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Notion-Version"); got != apiVersion {
			t.Errorf("Notion-Version header = %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer ntn_test" {
			t.Errorf("Authorization header = %q", got)
		}
		fmt.Fprint(w, `{
			"object": "page",
			"id": "page-1",
			"last_edited_time": "2026-08-30T10:15:00.000Z",
			"properties": {
				"Name": {"type": "title", "title": [{"type": "text", "plain_text": "Starter Care"}]}
			}
		}`)
	})
	mux.HandleFunc("/v1/blocks/page-1/children", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"object": "list",
			"results": [
				{"object": "block", "id": "b1", "type": "heading_1",
				 "heading_1": {"rich_text": [{"type": "text", "plain_text": "Feeding"}]}},
				{"object": "block", "id": "b2", "type": "paragraph",
				 "paragraph": {"rich_text": [{"type": "text", "plain_text": "Feed twice daily."}]}}
			],
			"has_more": false
		}`)
	})

	source := NewSource(newTestClient(t, mux), []string{"page-1"}, log.NewNop())

	docs, err := source.ListDocuments(context.Background())
	if err != nil {
		t.Fatalf("ListDocuments() error = %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("ListDocuments() returned %d documents, want 1", len(docs))
	}

	doc := docs[0]
	if doc.ID != "page-1" {
		t.Errorf("doc.ID = %q", doc.ID)
	}
	if doc.Title != "Starter Care" {
		t.Errorf("doc.Title = %q", doc.Title)
	}
	if want := "2026-08-30T10:15:00Z"; doc.Marker != want {
		t.Errorf("doc.Marker = %q, want %q", doc.Marker, want)
	}

	content, err := source.FetchContent(context.Background(), "page-1")
	if err != nil {
		t.Fatalf("FetchContent() error = %v", err)
	}
	if want := "# Feeding\n\nFeed twice daily."; content != want {
		t.Errorf("FetchContent() = %q, want %q", content, want)
	}
}

func TestListDocumentsSourceDown(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message": "service unavailable"}`, http.StatusServiceUnavailable)
	})

	source := NewSource(newTestClient(t, mux), []string{"page-1"}, log.NewNop())

	_, err := source.ListDocuments(context.Background())
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Errorf("ListDocuments() error = %v, want ErrSourceUnavailable", err)
	}
}

func TestFetchContentBrokenPageDoesNotAffectOthers(t *testing.T) {
	page := func(id string) string {
		return fmt.Sprintf(`{
			"object": "page",
			"id": %q,
			"last_edited_time": "2026-08-30T10:15:00.000Z",
			"properties": {}
		}`, id)
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/pages/page-1", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page("page-1"))
	})
	mux.HandleFunc("/v1/pages/page-2", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page("page-2"))
	})
	mux.HandleFunc("/v1/blocks/page-1/children", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message": "boom"}`, http.StatusInternalServerError)
	})
	mux.HandleFunc("/v1/blocks/page-2/children", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"object": "list",
			"results": [{"object": "block", "id": "b1", "type": "paragraph",
				"paragraph": {"rich_text": [{"type": "text", "plain_text": "Healthy."}]}}],
			"has_more": false
		}`)
	})

	source := NewSource(newTestClient(t, mux), []string{"page-1", "page-2"}, log.NewNop())
	ctx := context.Background()

	docs, err := source.ListDocuments(ctx)
	if err != nil {
		t.Fatalf("ListDocuments() error = %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("ListDocuments() returned %d documents, want 2", len(docs))
	}

	if _, err := source.FetchContent(ctx, "page-1"); err == nil {
		t.Error("FetchContent(page-1) did not return an error")
	}
	content, err := source.FetchContent(ctx, "page-2")
	if err != nil {
		t.Fatalf("FetchContent(page-2) error = %v", err)
	}
	if content != "Healthy." {
		t.Errorf("FetchContent(page-2) = %q", content)
	}
}

func TestSearchPagination(t *testing.T) {
	calls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/search", func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			fmt.Fprint(w, `{
				"object": "list",
				"results": [
					{"object": "page", "id": "p1", "properties": {}},
					{"object": "database", "id": "d1"}
				],
				"has_more": true,
				"next_cursor": "cur-2"
			}`)
			return
		}
		fmt.Fprint(w, `{
			"object": "list",
			"results": [{"object": "page", "id": "p2", "properties": {}}],
			"has_more": false
		}`)
	})

	client := newTestClient(t, mux)

	pages, err := client.Search(context.Background(), "")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if calls != 2 {
		t.Errorf("Search() made %d requests, want 2", calls)
	}
	if len(pages) != 2 {
		t.Fatalf("Search() returned %d pages, want 2 (databases skipped)", len(pages))
	}
	if pages[0].ID != "p1" || pages[1].ID != "p2" {
		t.Errorf("Search() page IDs = %s, %s", pages[0].ID, pages[1].ID)
	}
}

func TestExtractText(t *testing.T) {
	rt := func(s string) []RichText {
		return []RichText{{Type: "text", PlainText: s}}
	}

	tests := []struct {
		name   string
		blocks []Block
		want   string
	}{
		{
			name: "mixed block types",
			blocks: []Block{
				{Type: "heading_2", Heading2: &TextBlock{RichText: rt("Recipe")}},
				{Type: "paragraph", Paragraph: &TextBlock{RichText: rt("Mix flour and water.")}},
				{Type: "bulleted_list_item", BulletedListItem: &TextBlock{RichText: rt("500g flour")}},
				{Type: "quote", Quote: &TextBlock{RichText: rt("Patience.")}},
			},
			want: "## Recipe\n\nMix flour and water.\n\n- 500g flour\n\n> Patience.",
		},
		{
			name: "to-do checked state",
			blocks: []Block{
				{Type: "to_do", ToDo: &ToDoBlock{RichText: rt("Feed starter"), Checked: true}},
				{Type: "to_do", ToDo: &ToDoBlock{RichText: rt("Shape loaves")}},
			},
			want: "[x] Feed starter\n\n[ ] Shape loaves",
		},
		{
			name: "unsupported types skipped",
			blocks: []Block{
				{Type: "paragraph", Paragraph: &TextBlock{RichText: rt("Kept.")}},
				{Type: "image"},
				{Type: "divider"},
			},
			want: "Kept.",
		},
		{
			name: "code block",
			blocks: []Block{
				{Type: "code", Code: &CodeBlock{RichText: rt("hydration = 0.75"), Language: "python"}},
			},
			want: "```python\nhydration = 0.75\n```",
		},
		{
			name:   "empty input",
			blocks: nil,
			want:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractText(tt.blocks); got != tt.want {
				t.Errorf("ExtractText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPageTitle(t *testing.T) {
	page := &Page{
		Properties: map[string]Property{
			"Status": {Type: "select"},
			"Name": {Type: "title", Title: []RichText{
				{PlainText: "Weekly "}, {PlainText: "Bake"},
			}},
		},
	}
	if got := PageTitle(page); got != "Weekly Bake" {
		t.Errorf("PageTitle() = %q", got)
	}

	if got := PageTitle(&Page{}); got != "Untitled" {
		t.Errorf("PageTitle(empty) = %q, want Untitled", got)
	}
}
