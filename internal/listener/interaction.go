package listener

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/softbatch/loaf/internal/draft"
	"github.com/softbatch/loaf/internal/knowledge"
	"github.com/softbatch/loaf/internal/log"
	"github.com/softbatch/loaf/internal/mastodon"
)

// ReplyMode selects what happens with a composed reply.
type ReplyMode string

const (
	// ModeDraft stores replies for human review.
	ModeDraft ReplyMode = "draft"
	// ModeAuto publishes replies immediately.
	ModeAuto ReplyMode = "auto"
)

// Interaction is one handled inbound mention, keyed by the external
// status ID for deduplication. InReplyTo holds the parent status ID
// when the mention was itself a reply.
type Interaction struct {
	ExternalID      string
	Kind            string
	Author          string
	Content         string
	InReplyTo       string
	Responded       bool
	ResponseDraftID *uuid.UUID
	CreatedAt       time.Time
	RespondedAt     time.Time
}

// InteractionStore persists inbound mentions and their response state.
type InteractionStore interface {
	Seen(ctx context.Context, externalID string) (bool, error)
	Record(ctx context.Context, in Interaction) error
	ListUnresponded(ctx context.Context) ([]Interaction, error)
	MarkResponded(ctx context.Context, externalID string, draftID *uuid.UUID) error
}

// DraftSink stores composed replies for review.
type DraftSink interface {
	Save(ctx context.Context, d *draft.Draft) error
}

// InteractionConfig tunes the mention polling loop.
type InteractionConfig struct {
	Mode     ReplyMode
	Interval time.Duration

	// SelfAcct is the bot's own account; its statuses are ignored.
	SelfAcct string

	// Disclosure is appended to auto-published replies when set.
	Disclosure string

	// ContextTopK is how many fragments ground each reply.
	ContextTopK int

	// MaxIterations stops Run after N ticks. Zero means run until the
	// context is canceled.
	MaxIterations int
}

// InteractionStats summarizes one mention tick.
type InteractionStats struct {
	Fetched    int
	Stored     int
	Handled    int
	Duplicates int
	Skipped    int
	Failed     int
}

// InteractionListener polls mentions, grounds a reply in retrieved
// fragments, and either drafts or publishes it. Each tick first stores
// new mentions as unresponded, then answers everything unresponded,
// including leftovers a prior tick failed on.
type InteractionListener struct {
	feed      MentionsFeed
	store     InteractionStore
	retriever Retriever
	composer  ReplyComposer
	drafts    DraftSink
	publisher Publisher
	cfg       InteractionConfig
	logger    log.Logger
}

// NewInteractionListener wires a mention polling loop.
func NewInteractionListener(
	feed MentionsFeed,
	store InteractionStore,
	retriever Retriever,
	composer ReplyComposer,
	drafts DraftSink,
	publisher Publisher,
	cfg InteractionConfig,
	logger log.Logger,
) *InteractionListener {
	if cfg.ContextTopK <= 0 {
		cfg.ContextTopK = 3
	}
	return &InteractionListener{
		feed:      feed,
		store:     store,
		retriever: retriever,
		composer:  composer,
		drafts:    drafts,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
	}
}

// Tick fetches mentions once, stores the unseen ones as unresponded,
// then answers every unresponded interaction. Storing before responding
// means a failed reply is retried next tick even if the feed no longer
// returns the mention. Failures on individual items are counted and
// logged, never propagated.
func (l *InteractionListener) Tick(ctx context.Context) (InteractionStats, error) {
	mentions, err := l.feed.Mentions(ctx)
	if err != nil {
		return InteractionStats{}, fmt.Errorf("fetching mentions: %w", err)
	}

	stats := InteractionStats{Fetched: len(mentions)}

	for _, m := range mentions {
		switch l.ingest(ctx, m) {
		case outcomeStored:
			stats.Stored++
		case outcomeDuplicate:
			stats.Duplicates++
		case outcomeSkipped:
			stats.Skipped++
		case outcomeFailed:
			stats.Failed++
		}
	}

	pending, err := l.store.ListUnresponded(ctx)
	if err != nil {
		return stats, fmt.Errorf("listing unresponded interactions: %w", err)
	}

	for _, in := range pending {
		if err := l.respond(ctx, in); err != nil {
			l.logger.Warn("responding to mention failed",
				"external_id", in.ExternalID, "error", err)
			stats.Failed++
			continue
		}
		stats.Handled++
	}

	return stats, nil
}

type outcome int

const (
	outcomeStored outcome = iota
	outcomeDuplicate
	outcomeSkipped
	outcomeFailed
)

// ingest records a new mention as an unresponded interaction.
func (l *InteractionListener) ingest(ctx context.Context, m mastodon.Notification) outcome {
	if m.Status == nil || m.Account.Acct == l.cfg.SelfAcct {
		return outcomeSkipped
	}

	externalID := m.Status.ID
	seen, err := l.store.Seen(ctx, externalID)
	if err != nil {
		l.logger.Warn("dedupe check failed", "external_id", externalID, "error", err)
		return outcomeFailed
	}
	if seen {
		return outcomeDuplicate
	}

	text := mastodon.StripHTML(m.Status.Content)
	if text == "" {
		return outcomeSkipped
	}

	// A mention inside someone's thread is a reply, a fresh toot at
	// the bot is a plain mention.
	kind := "mention"
	if m.Status.InReplyToID != "" {
		kind = "reply"
	}

	record := Interaction{
		ExternalID: externalID,
		Kind:       kind,
		Author:     m.Account.Acct,
		Content:    text,
		InReplyTo:  m.Status.InReplyToID,
		CreatedAt:  m.CreatedAt,
	}
	if err := l.store.Record(ctx, record); err != nil {
		l.logger.Warn("recording interaction failed", "external_id", externalID, "error", err)
		return outcomeFailed
	}

	return outcomeStored
}

// respond composes a grounded reply for one stored interaction and, per
// the configured mode, drafts or publishes it. The interaction is marked
// responded only after the draft is saved or the publish succeeded.
func (l *InteractionListener) respond(ctx context.Context, in Interaction) error {
	contexts, err := l.retrieveContexts(ctx, in.Content)
	if err != nil {
		return fmt.Errorf("retrieving context: %w", err)
	}

	reply, err := l.composer.ComposeReply(ctx, in.Author, in.Content, contexts)
	if err != nil {
		return fmt.Errorf("composing reply: %w", err)
	}
	// Mentioning the author keeps the reply in their thread.
	reply = "@" + in.Author + " " + reply

	switch l.cfg.Mode {
	case ModeAuto:
		if l.cfg.Disclosure != "" {
			reply += "\n\n" + l.cfg.Disclosure
		}
		status, err := l.publisher.PostStatus(ctx, reply, in.ExternalID)
		if err != nil {
			return fmt.Errorf("publishing reply: %w", err)
		}

		// The published reply gets a posted draft record so the
		// interaction can reference the artifact it was answered with.
		d := &draft.Draft{
			Kind:           draft.KindReply,
			Content:        reply,
			InReplyToID:    in.ExternalID,
			Author:         in.Author,
			ExternalPostID: status.ID,
			Status:         draft.StatusPosted,
		}
		if err := l.drafts.Save(ctx, d); err != nil {
			// Reply is already out; surface loudly so a duplicate on the
			// next tick can be traced back here.
			l.logger.Error("recording published reply failed",
				"external_id", in.ExternalID, "error", err)
			return err
		}
		if err := l.store.MarkResponded(ctx, in.ExternalID, &d.ID); err != nil {
			l.logger.Error("marking interaction responded failed after publish",
				"external_id", in.ExternalID, "error", err)
			return err
		}

	default: // ModeDraft
		d := &draft.Draft{
			Kind:        draft.KindReply,
			Content:     reply,
			InReplyToID: in.ExternalID,
			Author:      in.Author,
		}
		if err := l.drafts.Save(ctx, d); err != nil {
			return fmt.Errorf("saving reply draft: %w", err)
		}
		if err := l.store.MarkResponded(ctx, in.ExternalID, &d.ID); err != nil {
			return fmt.Errorf("attaching draft %s: %w", d.ID, err)
		}
	}

	l.logger.Info("mention handled",
		"external_id", in.ExternalID,
		"author", in.Author,
		"mode", l.cfg.Mode)

	return nil
}

func (l *InteractionListener) retrieveContexts(ctx context.Context, query string) ([]string, error) {
	results, err := l.retriever.Retrieve(ctx, query, knowledge.WithTopK(l.cfg.ContextTopK))
	if err != nil {
		return nil, err
	}
	contexts := make([]string, 0, len(results))
	for _, r := range results {
		contexts = append(contexts, r.Content)
	}
	return contexts, nil
}

// Run polls on the configured interval until the context is canceled.
// The first tick fires immediately.
func (l *InteractionListener) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.cfg.Interval)
	defer ticker.Stop()

	iterations := 0
	for {
		stats, err := l.Tick(ctx)
		if err != nil {
			l.logger.Warn("mention tick failed", "error", err)
		} else {
			l.logger.Debug("mention tick complete",
				"fetched", stats.Fetched,
				"handled", stats.Handled,
				"duplicates", stats.Duplicates,
				"skipped", stats.Skipped,
				"failed", stats.Failed)
		}

		iterations++
		if l.cfg.MaxIterations > 0 && iterations >= l.cfg.MaxIterations {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
