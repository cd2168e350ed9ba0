// Package events moves committed events from the transactional outbox to the
// notification fan-out, either through Kafka or in-process.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"storefront-core/internal/model"
	"storefront-core/internal/repository"
)

// maxHandleAttempts is how often an event is offered to a failing handler
// before it is logged and skipped.
const maxHandleAttempts = 3

// Handler consumes committed events. Events may be delivered more than once,
// so implementations must be idempotent.
type Handler interface {
	Handle(ctx context.Context, ev model.Event) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, ev model.Event) error

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, ev model.Event) error {
	return f(ctx, ev)
}

// Publisher delivers outbox rows to consumers. A nil error means every record
// was accepted by the transport.
type Publisher interface {
	Publish(ctx context.Context, records []repository.OutboxRecord) error
	Close() error
}

// Decode turns a stored outbox payload back into an event.
func Decode(payload []byte) (model.Event, error) {
	var ev model.Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return model.Event{}, fmt.Errorf("failed to decode event: %w", err)
	}
	return ev, nil
}
