package listener

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/softbatch/loaf/internal/knowledge"
)

// PGInteractionStore implements InteractionStore on PostgreSQL. The
// primary key on external_id makes recording a seen mention twice a
// constraint violation instead of a silent duplicate.
type PGInteractionStore struct {
	pool *pgxpool.Pool
}

// NewPGInteractionStore creates an interaction store backed by PostgreSQL.
func NewPGInteractionStore(pool *pgxpool.Pool) *PGInteractionStore {
	return &PGInteractionStore{pool: pool}
}

func (s *PGInteractionStore) Seen(ctx context.Context, externalID string) (bool, error) {
	var seen bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM interactions WHERE external_id = $1)`,
		externalID).Scan(&seen)
	if err != nil {
		return false, fmt.Errorf("checking interaction %s: %w", externalID, err)
	}
	return seen, nil
}

func (s *PGInteractionStore) Record(ctx context.Context, in Interaction) error {
	const query = `
		INSERT INTO interactions (external_id, kind, author, content, in_reply_to, responded, response_draft_id, created_at, responded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	var draftID pgtype.UUID
	if in.ResponseDraftID != nil {
		draftID = pgtype.UUID{Bytes: *in.ResponseDraftID, Valid: true}
	}

	createdAt := pgtype.Timestamptz{Time: in.CreatedAt, Valid: !in.CreatedAt.IsZero()}
	respondedAt := pgtype.Timestamptz{Time: in.RespondedAt, Valid: !in.RespondedAt.IsZero()}

	_, err := s.pool.Exec(ctx, query,
		in.ExternalID, in.Kind, in.Author, in.Content, in.InReplyTo,
		in.Responded, draftID, createdAt, respondedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("interaction %s already recorded: %w", in.ExternalID, knowledge.ErrDataIntegrity)
		}
		return fmt.Errorf("recording interaction %s: %w", in.ExternalID, err)
	}

	return nil
}

// CountUnresponded returns how many recorded interactions still await
// a published reply.
func (s *PGInteractionStore) CountUnresponded(ctx context.Context) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM interactions WHERE NOT responded`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting unresponded interactions: %w", err)
	}
	return n, nil
}

// ListUnresponded returns interactions still awaiting a reply, oldest
// first so leftovers from prior ticks are retried before new mentions.
func (s *PGInteractionStore) ListUnresponded(ctx context.Context) ([]Interaction, error) {
	const query = `
		SELECT external_id, kind, author, content, in_reply_to, responded, response_draft_id, created_at, responded_at
		FROM interactions
		WHERE NOT responded
		ORDER BY created_at`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing unresponded interactions: %w", err)
	}
	defer rows.Close()

	var interactions []Interaction
	for rows.Next() {
		var (
			in          Interaction
			draftID     pgtype.UUID
			createdAt   pgtype.Timestamptz
			respondedAt pgtype.Timestamptz
		)
		err := rows.Scan(&in.ExternalID, &in.Kind, &in.Author, &in.Content,
			&in.InReplyTo, &in.Responded, &draftID, &createdAt, &respondedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning interaction: %w", err)
		}
		if draftID.Valid {
			id := uuid.UUID(draftID.Bytes)
			in.ResponseDraftID = &id
		}
		in.CreatedAt = createdAt.Time
		in.RespondedAt = respondedAt.Time
		interactions = append(interactions, in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating interactions: %w", err)
	}

	return interactions, nil
}

// MarkResponded flips an interaction to responded, attaching the review
// draft when one was created.
func (s *PGInteractionStore) MarkResponded(ctx context.Context, externalID string, draftID *uuid.UUID) error {
	var id pgtype.UUID
	if draftID != nil {
		id = pgtype.UUID{Bytes: *draftID, Valid: true}
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE interactions
		 SET responded = true, responded_at = now(),
		     response_draft_id = COALESCE($2, response_draft_id)
		 WHERE external_id = $1`,
		externalID, id)
	if err != nil {
		return fmt.Errorf("marking interaction %s responded: %w", externalID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("interaction %s not found", externalID)
	}
	return nil
}
