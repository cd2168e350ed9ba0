package model

import (
	"time"

	"github.com/google/uuid"
)

// MovementType is the kind of an inventory movement.
type MovementType string

const (
	MovementIn         MovementType = "in"
	MovementOut        MovementType = "out"
	MovementAdjustment MovementType = "adjustment"
)

// ParseMovementType rejects values outside the closed set.
func ParseMovementType(s string) (MovementType, error) {
	switch t := MovementType(s); t {
	case MovementIn, MovementOut, MovementAdjustment:
		return t, nil
	}
	return "", NewValidationError(ErrCodeInvalidMovement, "jenis pergerakan stok tidak dikenal: "+s)
}

// Apply returns the on-hand quantity after a movement of qty from before.
func (t MovementType) Apply(before, qty int) int {
	switch t {
	case MovementIn:
		return before + qty
	case MovementOut:
		return before - qty
	default:
		return qty
	}
}

// Inventory is the stock row of one product.
type Inventory struct {
	ProductID        uuid.UUID `json:"productId"`
	ProductName      string    `json:"productName"`
	Quantity         int       `json:"quantity"`
	ReservedQuantity int       `json:"reservedQuantity"`
	MinStock         int       `json:"minStock"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// Available is the quantity that can still be sold.
func (i *Inventory) Available() int {
	return i.Quantity - i.ReservedQuantity
}

// IsLowStock reports whether available stock is at or below the minimum.
func (i *Inventory) IsLowStock() bool {
	return i.Available() <= i.MinStock
}

// StockView is the read model returned to admins.
type StockView struct {
	Inventory
	Available int  `json:"available"`
	LowStock  bool `json:"lowStock"`
}

// NewStockView derives the computed fields of inv.
func NewStockView(inv Inventory) StockView {
	return StockView{Inventory: inv, Available: inv.Available(), LowStock: inv.IsLowStock()}
}

// ChainBreak describes the first inconsistency found in a movement log.
type ChainBreak struct {
	MovementID uuid.UUID `json:"movementId,omitempty"`
	Expected   int       `json:"expected"`
	Actual     int       `json:"actual"`
	Detail     string    `json:"detail"`
}

// ChainReport is the result of checking a product's movement log.
type ChainReport struct {
	ProductID uuid.UUID   `json:"productId"`
	Intact    bool        `json:"intact"`
	Break     *ChainBreak `json:"break,omitempty"`
}

// InventoryMovement is one append-only entry of a product's stock log.
type InventoryMovement struct {
	ID               uuid.UUID    `json:"id"`
	ProductID        uuid.UUID    `json:"productId"`
	Type             MovementType `json:"type"`
	Quantity         int          `json:"quantity"`
	QuantityBefore   int          `json:"quantityBefore"`
	QuantityAfter    int          `json:"quantityAfter"`
	Reason           string       `json:"reason"`
	ReferenceOrderID *uuid.UUID   `json:"referenceOrderId,omitempty"`
	CreatedAt        time.Time    `json:"createdAt"`
}

// ReservationStatus tracks a per-order stock reservation.
type ReservationStatus string

const (
	ReservationReserved ReservationStatus = "reserved"
	ReservationReleased ReservationStatus = "released"
	ReservationDeducted ReservationStatus = "deducted"
)

// Reservation is the amount of one product earmarked for one order.
type Reservation struct {
	OrderID   uuid.UUID         `json:"orderId"`
	ProductID uuid.UUID         `json:"productId"`
	Quantity  int               `json:"quantity"`
	Status    ReservationStatus `json:"status"`
}

// MovementRequest is an admin-initiated stock change.
type MovementRequest struct {
	Type     string `json:"type"`
	Quantity int    `json:"quantity"`
	Reason   string `json:"reason"`
}
