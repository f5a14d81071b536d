package listener

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/softbatch/loaf/internal/chunk"
	"github.com/softbatch/loaf/internal/draft"
	"github.com/softbatch/loaf/internal/knowledge"
	"github.com/softbatch/loaf/internal/log"
)

// DocumentConfig tunes the document polling loop.
type DocumentConfig struct {
	SourceType string
	Strategy   chunk.Strategy
	ChunkSize  int
	Interval   time.Duration

	// MaxIterations stops Run after N ticks. Zero means run until the
	// context is canceled.
	MaxIterations int
}

// DocumentStats summarizes one document tick.
type DocumentStats struct {
	Fetched int
	Synced  int
	Skipped int
	Failed  int
	Drafted int
}

// Announcer drafts a post about a synced change. All three collaborators
// are required when announcements are enabled.
type Announcer struct {
	Retriever Retriever
	Composer  PostComposer
	Drafts    DraftSink
}

// DocumentListener polls the knowledge source and syncs documents
// whose revision marker moved since the last successful sync.
type DocumentListener struct {
	source    DocumentSource
	syncer    Syncer
	tracker   DocumentTracker
	announcer *Announcer
	cfg       DocumentConfig
	logger    log.Logger
}

// NewDocumentListener wires a document polling loop. A nil announcer
// disables change announcements.
func NewDocumentListener(source DocumentSource, syncer Syncer, tracker DocumentTracker, announcer *Announcer, cfg DocumentConfig, logger log.Logger) *DocumentListener {
	return &DocumentListener{
		source:    source,
		syncer:    syncer,
		tracker:   tracker,
		announcer: announcer,
		cfg:       cfg,
		logger:    logger,
	}
}

// Tick lists all tracked documents once and syncs the changed ones.
// Content is fetched per document, after the marker check, so a page
// whose content fetch keeps failing is counted and logged without
// blocking the rest.
func (l *DocumentListener) Tick(ctx context.Context) (DocumentStats, error) {
	docs, err := l.source.ListDocuments(ctx)
	if err != nil {
		return DocumentStats{}, fmt.Errorf("listing documents: %w", err)
	}

	stats := DocumentStats{Fetched: len(docs)}

	for _, doc := range docs {
		changed, err := l.changed(ctx, doc)
		if err != nil {
			l.logger.Warn("checking document state failed",
				"source_id", doc.ID, "error", err)
			stats.Failed++
			continue
		}
		if !changed {
			stats.Skipped++
			continue
		}

		content, err := l.source.FetchContent(ctx, doc.ID)
		if err != nil {
			l.logger.Warn("fetching document content failed",
				"source_id", doc.ID, "error", err)
			stats.Failed++
			continue
		}
		doc.Content = content

		res, err := l.syncer.Sync(ctx, knowledge.SyncRequest{
			SourceID:   doc.ID,
			SourceType: l.cfg.SourceType,
			Title:      doc.Title,
			Content:    doc.Content,
			Marker:     doc.Marker,
			Strategy:   l.cfg.Strategy,
			Size:       l.cfg.ChunkSize,
		})
		if err != nil {
			l.logger.Warn("syncing document failed",
				"source_id", doc.ID, "error", err)
			stats.Failed++
			continue
		}

		if res.Unchanged {
			stats.Skipped++
			continue
		}

		l.logger.Info("document change synced",
			"source_id", doc.ID,
			"fragments", res.Fragments)
		stats.Synced++

		if l.announcer != nil {
			if err := l.announce(ctx, doc); err != nil {
				l.logger.Warn("drafting change announcement failed",
					"source_id", doc.ID, "error", err)
			} else {
				stats.Drafted++
			}
		}
	}

	return stats, nil
}

// announceTopK is how many fragments ground a change announcement.
const announceTopK = 3

// announce drafts a post about the freshly synced document. The draft
// is never auto-published; a reviewer decides what goes out.
func (l *DocumentListener) announce(ctx context.Context, doc knowledge.SourceDocument) error {
	results, err := l.announcer.Retriever.Retrieve(ctx, doc.Title, knowledge.WithTopK(announceTopK))
	if err != nil {
		return fmt.Errorf("retrieving context: %w", err)
	}
	contexts := make([]string, 0, len(results))
	for _, r := range results {
		contexts = append(contexts, r.Content)
	}

	content, err := l.announcer.Composer.ComposePost(ctx, doc.Title, contexts)
	if err != nil {
		return fmt.Errorf("composing post: %w", err)
	}

	d := &draft.Draft{Kind: draft.KindPost, Content: content, Subject: doc.ID}
	if err := l.announcer.Drafts.Save(ctx, d); err != nil {
		return fmt.Errorf("saving draft: %w", err)
	}

	l.logger.Info("change announcement drafted", "source_id", doc.ID, "draft_id", d.ID)
	return nil
}

// changed reports whether the document's revision marker differs from
// the last synced one. Unknown documents always count as changed.
func (l *DocumentListener) changed(ctx context.Context, doc knowledge.SourceDocument) (bool, error) {
	existing, err := l.tracker.GetDocument(ctx, doc.ID)
	if errors.Is(err, knowledge.ErrDocumentNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return existing.RevisionMarker != doc.Marker, nil
}

// Run polls on the configured interval until the context is canceled.
// The first tick fires immediately. Fetch failures are logged and the
// loop keeps going; the next tick may find the source healthy again.
func (l *DocumentListener) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.cfg.Interval)
	defer ticker.Stop()

	iterations := 0
	for {
		stats, err := l.Tick(ctx)
		if err != nil {
			l.logger.Warn("document tick failed", "error", err)
		} else {
			l.logger.Debug("document tick complete",
				"fetched", stats.Fetched,
				"synced", stats.Synced,
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
