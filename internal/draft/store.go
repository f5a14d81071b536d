package draft

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/softbatch/loaf/internal/log"
)

// Store manages draft persistence in PostgreSQL.
type Store struct {
	pool   *pgxpool.Pool
	logger log.Logger
}

// NewStore creates a draft store.
func NewStore(pool *pgxpool.Pool, logger log.Logger) *Store {
	return &Store{pool: pool, logger: logger}
}

// Save inserts a new draft, assigning its ID when unset. Auto-published
// replies arrive already in posted state with their external post ID.
func (s *Store) Save(ctx context.Context, d *Draft) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.Status == "" {
		d.Status = StatusDraft
	}

	const query = `
		INSERT INTO drafts (id, kind, content, subject, in_reply_to_id, author, external_post_id, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`

	var createdAt, updatedAt pgtype.Timestamptz
	err := s.pool.QueryRow(ctx, query,
		pgtype.UUID{Bytes: d.ID, Valid: true},
		string(d.Kind), d.Content, d.Subject, d.InReplyToID, d.Author,
		d.ExternalPostID, string(d.Status),
	).Scan(&createdAt, &updatedAt)
	if err != nil {
		return fmt.Errorf("saving draft %s: %w", d.ID, err)
	}

	d.CreatedAt = createdAt.Time
	d.UpdatedAt = updatedAt.Time

	s.logger.Debug("saved draft", "draft_id", d.ID, "kind", d.Kind)
	return nil
}

// Get retrieves a draft by ID. Returns ErrNotFound if it does not exist.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Draft, error) {
	const query = `
		SELECT id, kind, content, subject, in_reply_to_id, author, external_post_id, status, created_at, updated_at
		FROM drafts
		WHERE id = $1`

	d, err := scanDraft(s.pool.QueryRow(ctx, query, pgtype.UUID{Bytes: id, Valid: true}))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting draft %s: %w", id, err)
	}
	return d, nil
}

// List returns drafts filtered by status, newest first. An empty
// status returns everything.
func (s *Store) List(ctx context.Context, status Status) ([]Draft, error) {
	const base = `
		SELECT id, kind, content, subject, in_reply_to_id, author, external_post_id, status, created_at, updated_at
		FROM drafts`

	var (
		rows pgx.Rows
		err  error
	)
	if status != "" {
		rows, err = s.pool.Query(ctx, base+` WHERE status = $1 ORDER BY created_at DESC`, string(status))
	} else {
		rows, err = s.pool.Query(ctx, base+` ORDER BY created_at DESC`)
	}
	if err != nil {
		return nil, fmt.Errorf("listing drafts: %w", err)
	}
	defer rows.Close()

	var drafts []Draft
	for rows.Next() {
		d, err := scanDraft(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning draft: %w", err)
		}
		drafts = append(drafts, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating drafts: %w", err)
	}

	return drafts, nil
}

// MarkPosted transitions a draft to posted and records the published
// status ID. Only pending drafts can be posted.
func (s *Store) MarkPosted(ctx context.Context, id uuid.UUID, externalPostID string) error {
	return s.resolve(ctx, id, StatusPosted, externalPostID)
}

// Discard transitions a pending draft to discarded.
func (s *Store) Discard(ctx context.Context, id uuid.UUID) error {
	return s.resolve(ctx, id, StatusDiscarded, "")
}

func (s *Store) resolve(ctx context.Context, id uuid.UUID, status Status, externalPostID string) error {
	const query = `
		UPDATE drafts
		SET status = $2, external_post_id = $3, updated_at = now()
		WHERE id = $1 AND status = 'draft'`

	tag, err := s.pool.Exec(ctx, query,
		pgtype.UUID{Bytes: id, Valid: true}, string(status), externalPostID)
	if err != nil {
		return fmt.Errorf("updating draft %s: %w", id, err)
	}

	if tag.RowsAffected() == 0 {
		if _, err := s.Get(ctx, id); err != nil {
			return err
		}
		return ErrAlreadyResolved
	}

	s.logger.Debug("resolved draft", "draft_id", id, "status", status)
	return nil
}

func scanDraft(row pgx.Row) (*Draft, error) {
	var (
		d         Draft
		id        pgtype.UUID
		kind      string
		status    string
		createdAt pgtype.Timestamptz
		updatedAt pgtype.Timestamptz
	)
	err := row.Scan(&id, &kind, &d.Content, &d.Subject, &d.InReplyToID, &d.Author,
		&d.ExternalPostID, &status, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	d.ID = id.Bytes
	d.Kind = Kind(kind)
	d.Status = Status(status)
	d.CreatedAt = createdAt.Time
	d.UpdatedAt = updatedAt.Time

	return &d, nil
}
