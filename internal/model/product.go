package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product represents a catalogue entry. The catalogue itself is maintained
// elsewhere; this service reads prices and display data from it.
type Product struct {
	ID        uuid.UUID       `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	HPP       decimal.Decimal `json:"hpp"`
	PhotoURL  *string         `json:"photoUrl,omitempty"`
	IsActive  bool            `json:"isActive"`
	CreatedAt time.Time       `json:"createdAt"`
}
