package model

import (
	"time"

	"github.com/google/uuid"
)

// Subscriber identifies a role-scoped notification audience. Admins share one
// audience; couriers and buyers are scoped to their own id.
type Subscriber struct {
	Role    Role      `json:"role"`
	ScopeID uuid.UUID `json:"scopeId"`
}

// Key is the storage key of the subscriber's history.
func (s Subscriber) Key() string {
	if s.Role == RoleAdmin {
		return string(RoleAdmin)
	}
	return string(s.Role) + ":" + s.ScopeID.String()
}

// SubscriberFor returns the audience of an actor.
func SubscriberFor(a Actor) Subscriber {
	if a.Role == RoleAdmin {
		return Subscriber{Role: RoleAdmin}
	}
	return Subscriber{Role: a.Role, ScopeID: a.ID}
}

// Notification is a display-ready message derived from a committed event.
// Key is {entityType}-{entityId} and makes insertion idempotent.
type Notification struct {
	Key         string       `json:"key"`
	EntityType  string       `json:"entityType"`
	EntityID    string       `json:"entityId"`
	EventID     uuid.UUID    `json:"eventId"`
	Kind        EventKind    `json:"kind"`
	OrderID     uuid.UUID    `json:"orderId"`
	OrderNumber string       `json:"orderNumber"`
	OldStatus   *OrderStatus `json:"oldStatus,omitempty"`
	Status      *OrderStatus `json:"status,omitempty"`
	Title       string       `json:"title"`
	Message     string       `json:"message"`
	BuyerName   string       `json:"buyerName,omitempty"`
	ProductName string       `json:"productName,omitempty"`
	PhotoURL    *string      `json:"photoUrl,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
}

// DisplayInfo is auxiliary data used to render a notification.
type DisplayInfo struct {
	BuyerName   string
	ProductName string
	PhotoURL    *string
}
