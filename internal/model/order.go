package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentMethod is how the buyer settles an order.
type PaymentMethod string

const (
	PaymentCOD          PaymentMethod = "cod"
	PaymentBankTransfer PaymentMethod = "bank_transfer"
	PaymentEWallet      PaymentMethod = "e_wallet"
	PaymentQRIS         PaymentMethod = "qris"
)

// ParsePaymentMethod rejects values outside the closed set.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch m := PaymentMethod(s); m {
	case PaymentCOD, PaymentBankTransfer, PaymentEWallet, PaymentQRIS:
		return m, nil
	}
	return "", NewValidationError(ErrCodeInvalidPayment, "metode pembayaran tidak dikenal: "+s)
}

// InitialStatus is the status an order starts in for this payment method.
// QRIS settles instantly so those orders start paid.
func (m PaymentMethod) InitialStatus() OrderStatus {
	switch m {
	case PaymentBankTransfer, PaymentEWallet:
		return StatusWaitingPayment
	case PaymentQRIS:
		return StatusPaid
	default:
		return StatusNew
	}
}

// Order represents a customer order.
type Order struct {
	ID             uuid.UUID       `json:"id"`
	OrderNumber    string          `json:"orderNumber"`
	BuyerID        uuid.UUID       `json:"buyerId"`
	CourierID      *uuid.UUID      `json:"courierId,omitempty"`
	Status         OrderStatus     `json:"status"`
	PaymentMethod  PaymentMethod   `json:"paymentMethod"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	ShippingCost   decimal.Decimal `json:"shippingCost"`
	AdminFee       decimal.Decimal `json:"adminFee"`
	Total          decimal.Decimal `json:"total"`
	TotalHPP       decimal.Decimal `json:"totalHpp"`
	IdempotencyKey *string         `json:"-"`
	Notes          *string         `json:"notes,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
	AssignedAt     *time.Time      `json:"assignedAt,omitempty"`
	PickedUpAt     *time.Time      `json:"pickedUpAt,omitempty"`
	DeliveredAt    *time.Time      `json:"deliveredAt,omitempty"`
	CancelledAt    *time.Time      `json:"cancelledAt,omitempty"`
}

// HasCourier reports whether the order is assigned to the given courier.
func (o *Order) HasCourier(courierID uuid.UUID) bool {
	return o.CourierID != nil && *o.CourierID == courierID
}

// OrderItem represents a line item in an order. Price and HPP are frozen at
// order time.
type OrderItem struct {
	ID           uuid.UUID       `json:"id"`
	OrderID      uuid.UUID       `json:"-"`
	ProductID    uuid.UUID       `json:"productId"`
	ProductName  string          `json:"productName,omitempty"`
	Quantity     int             `json:"quantity"`
	PriceAtOrder decimal.Decimal `json:"priceAtOrder"`
	HPPAtOrder   decimal.Decimal `json:"hppAtOrder"`
	Subtotal     decimal.Decimal `json:"subtotal"`
}

// OrderAddress is the delivery address snapshot of an order.
type OrderAddress struct {
	OrderID       uuid.UUID `json:"-"`
	RecipientName string    `json:"recipientName"`
	Phone         string    `json:"phone"`
	AddressLine   string    `json:"addressLine"`
	City          string    `json:"city"`
	PostalCode    string    `json:"postalCode"`
	Notes         *string   `json:"notes,omitempty"`
}

// StatusHistory is one append-only entry of an order's status log.
type StatusHistory struct {
	ID        uuid.UUID   `json:"id"`
	OrderID   uuid.UUID   `json:"orderId"`
	Status    OrderStatus `json:"status"`
	ActorID   uuid.UUID   `json:"actorId"`
	ActorRole Role        `json:"actorRole"`
	Note      *string     `json:"note,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
}

// OrderRequest represents the request payload for creating an order.
type OrderRequest struct {
	Items          []OrderItemRequest `json:"items"`
	Address        AddressRequest     `json:"address"`
	PaymentMethod  string             `json:"paymentMethod"`
	Notes          *string            `json:"notes,omitempty"`
	IdempotencyKey *string            `json:"idempotencyKey,omitempty"`
}

// OrderItemRequest represents a single item in an order request.
type OrderItemRequest struct {
	ProductID uuid.UUID `json:"productId"`
	Quantity  int       `json:"quantity"`
}

// AddressRequest is the delivery address supplied at checkout.
type AddressRequest struct {
	RecipientName string  `json:"recipientName"`
	Phone         string  `json:"phone"`
	AddressLine   string  `json:"addressLine"`
	City          string  `json:"city"`
	PostalCode    string  `json:"postalCode"`
	Notes         *string `json:"notes,omitempty"`
}

// TransitionRequest asks for an order to move to a new status.
type TransitionRequest struct {
	Status    string     `json:"status"`
	CourierID *uuid.UUID `json:"courierId,omitempty"`
	Note      *string    `json:"note,omitempty"`
}

// ReassignRequest moves an assigned order from one courier to another.
type ReassignRequest struct {
	FromCourierID uuid.UUID `json:"fromCourierId"`
	ToCourierID   uuid.UUID `json:"toCourierId"`
}

// OrderResponse represents the response payload for an order.
type OrderResponse struct {
	Order   *Order          `json:"order"`
	Items   []OrderItem     `json:"items"`
	Address *OrderAddress   `json:"address,omitempty"`
	History []StatusHistory `json:"history"`
}
