package events

import (
	"context"
	"time"

	"storefront-core/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// Relay drains the outbox into a Publisher. Rows are claimed with SKIP LOCKED,
// so any number of relays may run against the same database.
type Relay struct {
	db        repository.TxBeginner
	outbox    repository.OutboxRepository
	publisher Publisher
	batchSize int
	interval  time.Duration
	logger    zerolog.Logger
	now       func() time.Time
}

// NewRelay creates a relay polling every interval for up to batchSize rows.
func NewRelay(
	db repository.TxBeginner,
	outbox repository.OutboxRepository,
	publisher Publisher,
	batchSize int,
	interval time.Duration,
	logger zerolog.Logger,
) *Relay {
	if batchSize <= 0 {
		batchSize = 100
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &Relay{
		db:        db,
		outbox:    outbox,
		publisher: publisher,
		batchSize: batchSize,
		interval:  interval,
		logger:    logger.With().Str("worker", "outbox_relay").Logger(),
		now:       time.Now,
	}
}

// Run polls until ctx is cancelled. A full batch is followed immediately by
// another poll.
func (r *Relay) Run(ctx context.Context) error {
	r.logger.Info().Dur("interval", r.interval).Int("batch_size", r.batchSize).Msg("outbox relay started")

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		n, err := r.Flush(ctx)
		if err != nil && ctx.Err() == nil {
			r.logger.Error().Err(err).Msg("outbox flush failed")
		}
		if err == nil && n == r.batchSize {
			continue
		}

		select {
		case <-ctx.Done():
			r.logger.Info().Msg("outbox relay stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Flush publishes one batch and returns how many rows it claimed. A publish
// failure is recorded on the rows, which stay unpublished for the next poll,
// and is returned.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	claimed := 0
	var publishErr error
	err := repository.RunInTx(ctx, r.db, func(tx pgx.Tx) error {
		records, err := r.outbox.FetchUnpublished(ctx, tx, r.batchSize)
		if err != nil {
			return err
		}
		claimed = len(records)
		if claimed == 0 {
			return nil
		}

		ids := make([]uuid.UUID, len(records))
		for i, rec := range records {
			ids[i] = rec.ID
		}

		if publishErr = r.publisher.Publish(ctx, records); publishErr != nil {
			r.logger.Warn().Err(publishErr).Int("count", claimed).Msg("failed to publish outbox batch")
			return r.outbox.MarkFailed(ctx, tx, ids, publishErr.Error())
		}

		if err := r.outbox.MarkPublished(ctx, tx, ids, r.now()); err != nil {
			return err
		}
		r.logger.Debug().Int("count", claimed).Msg("outbox batch published")
		return nil
	})
	if err != nil {
		return claimed, err
	}
	return claimed, publishErr
}
