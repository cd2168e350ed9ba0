package events

import (
	"context"

	"storefront-core/internal/repository"

	"github.com/rs/zerolog"
)

// LocalBus hands outbox rows straight to an in-process handler. It is used
// when a single instance runs without Kafka.
type LocalBus struct {
	handler  Handler
	attempts int
	logger   zerolog.Logger
}

// NewLocalBus creates an in-process publisher.
func NewLocalBus(handler Handler, logger zerolog.Logger) *LocalBus {
	return &LocalBus{
		handler:  handler,
		attempts: maxHandleAttempts,
		logger:   logger.With().Str("publisher", "local").Logger(),
	}
}

// Publish decodes and handles each record in order. Undecodable records are
// skipped. A handler error fails the batch so the relay retries it, until the
// record has been tried attempts times; it is then logged and skipped so
// later rows are not held back.
func (b *LocalBus) Publish(ctx context.Context, records []repository.OutboxRecord) error {
	for _, rec := range records {
		ev, err := Decode(rec.Payload)
		if err != nil {
			b.logger.Warn().Err(err).Str("outbox_id", rec.ID.String()).Msg("skipping undecodable event")
			continue
		}
		if err := b.handler.Handle(ctx, ev); err != nil {
			if rec.Attempts+1 < b.attempts {
				return err
			}
			b.logger.Error().
				Err(err).
				Str("outbox_id", rec.ID.String()).
				Str("event_id", ev.ID.String()).
				Int("attempts", rec.Attempts+1).
				Msg("giving up on event")
		}
	}
	return nil
}

// Close is a no-op.
func (b *LocalBus) Close() error {
	return nil
}
