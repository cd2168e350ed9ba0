package service

import (
	"context"
	"time"

	"storefront-core/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// OrderService is the order state machine.
type OrderService interface {
	// CreateOrder places a buyer's order. A repeated idempotency key returns
	// the order created the first time.
	CreateOrder(ctx context.Context, actor model.Actor, req *model.OrderRequest) (*model.OrderResponse, error)

	// ApplyTransition moves an order to a new status together with its stock
	// and commission side effects. Re-applying the current status is a no-op.
	ApplyTransition(ctx context.Context, actor model.Actor, orderID uuid.UUID, req *model.TransitionRequest) (*model.Order, error)

	// GetOrder returns an order with its items, address and history.
	GetOrder(ctx context.Context, actor model.Actor, orderID uuid.UUID) (*model.OrderResponse, error)
}

// CourierService hands paid orders to couriers.
type CourierService interface {
	// TakeOrder claims a paid, unassigned order for the calling courier.
	TakeOrder(ctx context.Context, actor model.Actor, orderID uuid.UUID) (*model.Order, error)

	// Reassign moves an order from one courier to another.
	Reassign(ctx context.Context, actor model.Actor, orderID uuid.UUID, req *model.ReassignRequest) (*model.Order, error)

	// AvailableOrders lists orders waiting for a courier, oldest first.
	AvailableOrders(ctx context.Context, actor model.Actor, limit int) ([]model.Order, error)
}

// PaymentProofService records buyer transfer proofs.
type PaymentProofService interface {
	// SubmitPaymentProof stores the optional image and records the
	// confirmation. The order status is not changed.
	SubmitPaymentProof(ctx context.Context, actor model.Actor, orderID uuid.UUID, req *model.PaymentProofRequest, image *model.ProofImage) (*model.PaymentConfirmation, error)

	// ListPaymentProofs returns the confirmations of an order.
	ListPaymentProofs(ctx context.Context, actor model.Actor, orderID uuid.UUID) ([]model.PaymentConfirmation, error)
}

// PayoutService exposes the commission ledger to buyers and admins.
type PayoutService interface {
	// Summary returns the caller's commission profile, entries and payouts.
	Summary(ctx context.Context, actor model.Actor) (*model.CommissionSummary, error)

	// RequestPayout withdraws part of the caller's balance.
	RequestPayout(ctx context.Context, actor model.Actor, req *model.PayoutCreateRequest) (*model.PayoutRequest, error)

	// ResolvePayout applies an admin decision to a payout.
	ResolvePayout(ctx context.Context, actor model.Actor, payoutID uuid.UUID, req *model.PayoutResolveRequest) (*model.PayoutRequest, error)

	// Reconcile compares a buyer's stored balances with the ledger.
	Reconcile(ctx context.Context, actor model.Actor, buyerID uuid.UUID) (*model.Reconciliation, error)
}

// CatalogService exposes stock to admins.
type CatalogService interface {
	// Stock returns the stock view of a product.
	Stock(ctx context.Context, actor model.Actor, productID uuid.UUID) (*model.StockView, error)

	// Move applies an admin stock movement.
	Move(ctx context.Context, actor model.Actor, productID uuid.UUID, req *model.MovementRequest) (*model.InventoryMovement, error)

	// Movements returns the latest movements of a product.
	Movements(ctx context.Context, actor model.Actor, productID uuid.UUID, limit int) ([]model.InventoryMovement, error)

	// LowStock lists products at or below their minimum stock.
	LowStock(ctx context.Context, actor model.Actor) ([]model.StockView, error)

	// VerifyChain checks that a product's movement log ends at its on-hand quantity.
	VerifyChain(ctx context.Context, actor model.Actor, productID uuid.UUID) (*model.ChainReport, error)
}

// StockLedger is the part of the inventory ledger driven by order transitions.
type StockLedger interface {
	Reserve(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) error
	Release(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) error
	Deduct(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, at time.Time) error
}

// CommissionBook is the part of the commission ledger driven by order transitions.
type CommissionBook interface {
	Accrue(ctx context.Context, tx pgx.Tx, order *model.Order, at time.Time) error
	Reverse(ctx context.Context, tx pgx.Tx, order *model.Order, at time.Time) error
	Promote(ctx context.Context, tx pgx.Tx, order *model.Order, at time.Time) error
}

// ProofStorage stores payment proof images and returns their public URL.
type ProofStorage interface {
	Store(ctx context.Context, key, contentType string, data []byte) (string, error)
}

// Fees are the charges added on top of an order's subtotal.
type Fees struct {
	ShippingCost decimal.Decimal
	AdminFee     decimal.Decimal
}
