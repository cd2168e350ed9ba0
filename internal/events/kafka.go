package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront-core/internal/model"
	"storefront-core/internal/repository"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

const kindHeader = "event-kind"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes outbox rows to a topic keyed by aggregate id, so every
// event of one order lands on the same partition in commit order.
type KafkaPublisher struct {
	writer  messageWriter
	timeout time.Duration
	logger  zerolog.Logger
}

// NewKafkaPublisher creates a synchronous publisher for topic.
func NewKafkaPublisher(brokers []string, topic string, logger zerolog.Logger) *KafkaPublisher {
	return newKafkaPublisher(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}, logger)
}

func newKafkaPublisher(w messageWriter, logger zerolog.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer:  w,
		timeout: 10 * time.Second,
		logger:  logger.With().Str("publisher", "kafka").Logger(),
	}
}

// Publish writes records in one batch.
func (p *KafkaPublisher) Publish(ctx context.Context, records []repository.OutboxRecord) error {
	msgs := make([]kafka.Message, len(records))
	for i, rec := range records {
		msgs[i] = kafka.Message{
			Key:     []byte(rec.AggregateID.String()),
			Value:   rec.Payload,
			Headers: []kafka.Header{{Key: kindHeader, Value: []byte(rec.Kind)}},
		}
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		p.logger.Error().Err(err).Int("count", len(msgs)).Msg("failed to write events")
		return fmt.Errorf("failed to write events: %w", err)
	}
	return nil
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConsumer feeds a topic into a Handler. Every instance should use its
// own consumer group so each one sees every event.
type KafkaConsumer struct {
	reader   messageReader
	handler  Handler
	attempts int
	backoff  time.Duration
	logger   zerolog.Logger
}

// NewKafkaConsumer creates a consumer with manual offset commits.
func NewKafkaConsumer(brokers []string, group, topic string, handler Handler, logger zerolog.Logger) *KafkaConsumer {
	return newKafkaConsumer(kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0,
	}), handler, logger.With().Str("group", group).Logger())
}

func newKafkaConsumer(r messageReader, handler Handler, logger zerolog.Logger) *KafkaConsumer {
	return &KafkaConsumer{
		reader:   r,
		handler:  handler,
		attempts: maxHandleAttempts,
		backoff:  200 * time.Millisecond,
		logger:   logger.With().Str("worker", "kafka_consumer").Logger(),
	}
}

// Run consumes until ctx is cancelled. A message is committed once handled,
// or once its retries are exhausted, so a poison message cannot stall the
// partition.
func (c *KafkaConsumer) Run(ctx context.Context) error {
	defer c.reader.Close()

	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to fetch message: %w", err)
		}

		c.process(ctx, m)

		if err := c.reader.CommitMessages(ctx, m); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error().Err(err).Int64("offset", m.Offset).Msg("failed to commit offset")
		}
	}
}

func (c *KafkaConsumer) process(ctx context.Context, m kafka.Message) {
	ev, err := Decode(m.Value)
	if err != nil {
		level := c.logger.Error()
		if errors.Is(err, model.ErrUnknownEventKind) {
			level = c.logger.Warn()
		}
		level.Err(err).Int64("offset", m.Offset).Msg("skipping undecodable event")
		return
	}

	for attempt := 1; attempt <= c.attempts; attempt++ {
		err = c.handler.Handle(ctx, ev)
		if err == nil {
			return
		}
		c.logger.Warn().
			Err(err).
			Str("event_id", ev.ID.String()).
			Int("attempt", attempt).
			Msg("event handler failed")

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.backoff * time.Duration(attempt)):
		}
	}
	c.logger.Error().Err(err).Str("event_id", ev.ID.String()).Msg("giving up on event")
}
