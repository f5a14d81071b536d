// Package listener runs the two polling loops: document changes from
// the knowledge source, and mentions from the social feed. Each loop
// is a Tick function wrapped in a ticker; one bad item never stops the
// rest of a tick.
package listener

import (
	"context"

	"github.com/softbatch/loaf/internal/knowledge"
	"github.com/softbatch/loaf/internal/mastodon"
)

// DocumentSource lists tracked documents with revision markers and
// fetches content per document. Listing is one cheap call; content
// fetches can fail individually without taking the whole poll down.
type DocumentSource interface {
	ListDocuments(ctx context.Context) ([]knowledge.SourceDocument, error)
	FetchContent(ctx context.Context, sourceID string) (string, error)
}

// Syncer ingests one document into the retrieval store.
type Syncer interface {
	Sync(ctx context.Context, req knowledge.SyncRequest) (knowledge.SyncResult, error)
}

// DocumentTracker reads sync records so polls can skip documents whose
// revision marker has not moved.
type DocumentTracker interface {
	GetDocument(ctx context.Context, sourceID string) (knowledge.Document, error)
}

// MentionsFeed reads mention notifications from the social feed.
type MentionsFeed interface {
	Mentions(ctx context.Context) ([]mastodon.Notification, error)
}

// Publisher posts statuses to the social feed.
type Publisher interface {
	PostStatus(ctx context.Context, text, inReplyToID string) (*mastodon.Status, error)
}

// Retriever finds relevant fragments for grounding a reply.
type Retriever interface {
	Retrieve(ctx context.Context, query string, opts ...knowledge.SearchOption) ([]knowledge.Result, error)
}

// ReplyComposer drafts a reply to a mention.
type ReplyComposer interface {
	ComposeReply(ctx context.Context, author, message string, contexts []string) (string, error)
}

// PostComposer drafts a standalone post about a topic.
type PostComposer interface {
	ComposePost(ctx context.Context, topic string, contexts []string) (string, error)
}
