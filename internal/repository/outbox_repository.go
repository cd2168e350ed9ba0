package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"storefront-core/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// outboxRepository implements the OutboxRepository interface using PostgreSQL.
type outboxRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewOutboxRepository creates a new PostgreSQL-backed outbox.
func NewOutboxRepository(pool *pgxpool.Pool, logger zerolog.Logger) OutboxRepository {
	return &outboxRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "outbox").Logger(),
	}
}

// Insert stores an event in the caller's transaction. The stored payload is
// the full encoded event, so the event id survives redelivery.
func (r *outboxRepository) Insert(ctx context.Context, tx pgx.Tx, ev model.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO outbox_events (id, kind, aggregate_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, ev.ID, ev.Kind(), ev.AggregateID, payload, ev.OccurredAt)
	if err != nil {
		r.logger.Error().
			Err(err).
			Str("event_id", ev.ID.String()).
			Str("kind", string(ev.Kind())).
			Msg("failed to insert outbox event")
		return fmt.Errorf("failed to insert outbox event: %w", err)
	}
	return nil
}

// FetchUnpublished claims up to limit unpublished rows in insertion order.
func (r *outboxRepository) FetchUnpublished(ctx context.Context, tx pgx.Tx, limit int) ([]OutboxRecord, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, seq, kind, aggregate_id, payload, attempts
		FROM outbox_events
		WHERE published_at IS NULL
		ORDER BY seq
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to fetch outbox events")
		return nil, fmt.Errorf("failed to fetch outbox events: %w", err)
	}
	defer rows.Close()

	var out []OutboxRecord
	for rows.Next() {
		var rec OutboxRecord
		if err := rows.Scan(&rec.ID, &rec.Seq, &rec.Kind, &rec.AggregateID, &rec.Payload, &rec.Attempts); err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating outbox events: %w", err)
	}
	return out, nil
}

// MarkPublished stamps rows as delivered.
func (r *outboxRepository) MarkPublished(ctx context.Context, tx pgx.Tx, ids []uuid.UUID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := tx.Exec(ctx, `
		UPDATE outbox_events SET published_at = $2, attempts = attempts + 1, last_error = NULL
		WHERE id = ANY($1)
	`, ids, at)
	if err != nil {
		r.logger.Error().Err(err).Int("count", len(ids)).Msg("failed to mark outbox events published")
		return fmt.Errorf("failed to mark outbox events published: %w", err)
	}
	return nil
}

// MarkFailed records a failed delivery attempt.
func (r *outboxRepository) MarkFailed(ctx context.Context, tx pgx.Tx, ids []uuid.UUID, reason string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := tx.Exec(ctx, `
		UPDATE outbox_events SET attempts = attempts + 1, last_error = $2
		WHERE id = ANY($1)
	`, ids, reason)
	if err != nil {
		r.logger.Error().Err(err).Int("count", len(ids)).Msg("failed to mark outbox events failed")
		return fmt.Errorf("failed to mark outbox events failed: %w", err)
	}
	return nil
}
