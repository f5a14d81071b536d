package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/softbatch/loaf/internal/chunk"
)

// PGQuerier implements Querier on a pgx connection pool.
type PGQuerier struct {
	pool *pgxpool.Pool
}

// NewPGQuerier creates a Querier backed by PostgreSQL.
func NewPGQuerier(pool *pgxpool.Pool) *PGQuerier {
	return &PGQuerier{pool: pool}
}

func (q *PGQuerier) ReplaceFragments(ctx context.Context, sourceID, sourceType string, frags []Fragment) error {
	tx, err := q.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`DELETE FROM fragments WHERE source_id = $1 AND source_type = $2`,
		sourceID, sourceType)
	if err != nil {
		return fmt.Errorf("deleting old fragments: %w", err)
	}

	const insert = `
		INSERT INTO fragments (source_id, source_type, ordinal, strategy, content, embedding, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	for _, f := range frags {
		metadataJSON, err := json.Marshal(f.Metadata)
		if err != nil {
			return fmt.Errorf("marshaling fragment metadata: %w", err)
		}

		_, err = tx.Exec(ctx, insert,
			f.SourceID,
			f.SourceType,
			f.Ordinal,
			string(f.Strategy),
			f.Content,
			pgvector.NewVector(f.Embedding),
			metadataJSON,
		)
		if err != nil {
			return fmt.Errorf("inserting fragment %d: %w", f.Ordinal, wrapIntegrity(err))
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing fragment replacement: %w", err)
	}

	return nil
}

func (q *PGQuerier) ListFragments(ctx context.Context, sourceType string) ([]Fragment, error) {
	const base = `
		SELECT id, source_id, source_type, ordinal, strategy, content, embedding, metadata, created_at
		FROM fragments
		WHERE embedding IS NOT NULL`

	var (
		rows pgx.Rows
		err  error
	)
	if sourceType != "" {
		rows, err = q.pool.Query(ctx, base+` AND source_type = $1 ORDER BY id`, sourceType)
	} else {
		rows, err = q.pool.Query(ctx, base+` ORDER BY id`)
	}
	if err != nil {
		return nil, fmt.Errorf("querying fragments: %w", err)
	}
	defer rows.Close()

	var frags []Fragment
	for rows.Next() {
		var (
			f            Fragment
			strategy     string
			embedding    pgvector.Vector
			metadataJSON []byte
			createdAt    pgtype.Timestamptz
		)
		if err := rows.Scan(&f.ID, &f.SourceID, &f.SourceType, &f.Ordinal,
			&strategy, &f.Content, &embedding, &metadataJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning fragment: %w", err)
		}

		f.Strategy = chunk.Strategy(strategy)
		f.Embedding = embedding.Slice()
		f.CreatedAt = createdAt.Time
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &f.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshaling fragment metadata: %w", err)
			}
		}

		frags = append(frags, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating fragments: %w", err)
	}

	return frags, nil
}

func (q *PGQuerier) CountFragments(ctx context.Context, sourceType string) (int64, error) {
	var n int64
	var err error
	if sourceType != "" {
		err = q.pool.QueryRow(ctx,
			`SELECT count(*) FROM fragments WHERE source_type = $1`, sourceType).Scan(&n)
	} else {
		err = q.pool.QueryRow(ctx, `SELECT count(*) FROM fragments`).Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("counting fragments: %w", err)
	}
	return n, nil
}

func (q *PGQuerier) GetDocument(ctx context.Context, sourceID string) (Document, error) {
	const query = `
		SELECT source_id, title, content, revision_marker, chunk_strategy, chunk_size,
		       last_synced_at, created_at, updated_at
		FROM documents
		WHERE source_id = $1`

	var (
		doc          Document
		strategy     string
		lastSyncedAt pgtype.Timestamptz
		createdAt    pgtype.Timestamptz
		updatedAt    pgtype.Timestamptz
	)
	err := q.pool.QueryRow(ctx, query, sourceID).Scan(
		&doc.SourceID, &doc.Title, &doc.Content, &doc.RevisionMarker,
		&strategy, &doc.ChunkSize, &lastSyncedAt, &createdAt, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Document{}, fmt.Errorf("document %q: %w", sourceID, ErrDocumentNotFound)
	}
	if err != nil {
		return Document{}, fmt.Errorf("querying document %q: %w", sourceID, err)
	}

	doc.ChunkStrategy = chunk.Strategy(strategy)
	doc.LastSyncedAt = lastSyncedAt.Time
	doc.CreatedAt = createdAt.Time
	doc.UpdatedAt = updatedAt.Time

	return doc, nil
}

func (q *PGQuerier) UpsertDocument(ctx context.Context, doc Document) error {
	const query = `
		INSERT INTO documents (source_id, title, content, revision_marker, chunk_strategy, chunk_size, last_synced_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (source_id) DO UPDATE SET
			title = EXCLUDED.title,
			content = EXCLUDED.content,
			revision_marker = EXCLUDED.revision_marker,
			chunk_strategy = EXCLUDED.chunk_strategy,
			chunk_size = EXCLUDED.chunk_size,
			last_synced_at = EXCLUDED.last_synced_at,
			updated_at = now()`

	lastSyncedAt := pgtype.Timestamptz{Time: doc.LastSyncedAt, Valid: !doc.LastSyncedAt.IsZero()}

	_, err := q.pool.Exec(ctx, query,
		doc.SourceID, doc.Title, doc.Content, doc.RevisionMarker,
		string(doc.ChunkStrategy), doc.ChunkSize, lastSyncedAt)
	if err != nil {
		return fmt.Errorf("upserting document %q: %w", doc.SourceID, wrapIntegrity(err))
	}

	return nil
}

func (q *PGQuerier) CountDocuments(ctx context.Context) (int64, error) {
	var n int64
	if err := q.pool.QueryRow(ctx, `SELECT count(*) FROM documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return n, nil
}

// wrapIntegrity maps PostgreSQL constraint violations onto
// ErrDataIntegrity so callers can test with errors.Is.
func wrapIntegrity(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgerrcode.IsIntegrityConstraintViolation(pgErr.Code) {
		return fmt.Errorf("%w: %s", ErrDataIntegrity, pgErr.Message)
	}
	return err
}
