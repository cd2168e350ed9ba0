package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventKind names a committed state change.
type EventKind string

const (
	EventOrderCreated          EventKind = "order_created"
	EventOrderStatusChanged    EventKind = "order_status_changed"
	EventPaymentProofSubmitted EventKind = "payment_proof_submitted"
)

// ErrUnknownEventKind is returned when decoding an event of a kind this build
// does not know.
var ErrUnknownEventKind = errors.New("unknown event kind")

// EventPayload is implemented only by the payload types of this package.
type EventPayload interface {
	Kind() EventKind
	isEventPayload()
}

// OrderCreated is emitted once per order.
type OrderCreated struct {
	OrderID       uuid.UUID       `json:"orderId"`
	OrderNumber   string          `json:"orderNumber"`
	BuyerID       uuid.UUID       `json:"buyerId"`
	Status        OrderStatus     `json:"status"`
	PaymentMethod PaymentMethod   `json:"paymentMethod"`
	Total         decimal.Decimal `json:"total"`
}

func (OrderCreated) Kind() EventKind { return EventOrderCreated }
func (OrderCreated) isEventPayload() {}

// OrderStatusChanged is emitted for every committed transition, including
// courier assignment.
type OrderStatusChanged struct {
	OrderID      uuid.UUID   `json:"orderId"`
	OrderNumber  string      `json:"orderNumber"`
	BuyerID      uuid.UUID   `json:"buyerId"`
	OldStatus    OrderStatus `json:"oldStatus"`
	NewStatus    OrderStatus `json:"newStatus"`
	OldCourierID *uuid.UUID  `json:"oldCourierId,omitempty"`
	NewCourierID *uuid.UUID  `json:"newCourierId,omitempty"`
	ActorID      uuid.UUID   `json:"actorId"`
	ActorRole    Role        `json:"actorRole"`
}

func (OrderStatusChanged) Kind() EventKind { return EventOrderStatusChanged }
func (OrderStatusChanged) isEventPayload() {}

// CourierChanged reports whether the transition moved the order to a
// different courier.
func (p OrderStatusChanged) CourierChanged() bool {
	if p.NewCourierID == nil {
		return false
	}
	return p.OldCourierID == nil || *p.OldCourierID != *p.NewCourierID
}

// PaymentProofSubmitted is emitted when a buyer records a transfer proof.
type PaymentProofSubmitted struct {
	ConfirmationID uuid.UUID       `json:"confirmationId"`
	OrderID        uuid.UUID       `json:"orderId"`
	OrderNumber    string          `json:"orderNumber"`
	BuyerID        uuid.UUID       `json:"buyerId"`
	Amount         decimal.Decimal `json:"amount"`
}

func (PaymentProofSubmitted) Kind() EventKind { return EventPaymentProofSubmitted }
func (PaymentProofSubmitted) isEventPayload() {}

// Event is a committed state change carried from the outbox to the fan-out.
type Event struct {
	ID          uuid.UUID
	AggregateID uuid.UUID
	OccurredAt  time.Time
	Payload     EventPayload
}

// NewEvent wraps payload with a fresh id.
func NewEvent(aggregateID uuid.UUID, payload EventPayload, at time.Time) Event {
	return Event{
		ID:          uuid.New(),
		AggregateID: aggregateID,
		OccurredAt:  at.UTC(),
		Payload:     payload,
	}
}

// Kind returns the kind of the payload.
func (e Event) Kind() EventKind {
	if e.Payload == nil {
		return ""
	}
	return e.Payload.Kind()
}

type eventEnvelope struct {
	ID          uuid.UUID       `json:"id"`
	Kind        EventKind       `json:"kind"`
	AggregateID uuid.UUID       `json:"aggregateId"`
	OccurredAt  time.Time       `json:"occurredAt"`
	Payload     json.RawMessage `json:"payload"`
}

func (e Event) MarshalJSON() ([]byte, error) {
	if e.Payload == nil {
		return nil, errors.New("event has no payload")
	}
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", e.Kind(), err)
	}
	return json.Marshal(eventEnvelope{
		ID:          e.ID,
		Kind:        e.Kind(),
		AggregateID: e.AggregateID,
		OccurredAt:  e.OccurredAt,
		Payload:     payload,
	})
}

func (e *Event) UnmarshalJSON(data []byte) error {
	var env eventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}

	var payload EventPayload
	switch env.Kind {
	case EventOrderCreated:
		var p OrderCreated
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fmt.Errorf("failed to decode %s payload: %w", env.Kind, err)
		}
		payload = p
	case EventOrderStatusChanged:
		var p OrderStatusChanged
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fmt.Errorf("failed to decode %s payload: %w", env.Kind, err)
		}
		payload = p
	case EventPaymentProofSubmitted:
		var p PaymentProofSubmitted
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fmt.Errorf("failed to decode %s payload: %w", env.Kind, err)
		}
		payload = p
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEventKind, env.Kind)
	}

	*e = Event{
		ID:          env.ID,
		AggregateID: env.AggregateID,
		OccurredAt:  env.OccurredAt,
		Payload:     payload,
	}
	return nil
}
