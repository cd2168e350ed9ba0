package repository

import (
	"context"
	"time"

	"storefront-core/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// ProductRepository defines read access to the catalogue.
type ProductRepository interface {
	// GetByID retrieves a single product by its ID.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Product, error)

	// GetByIDs retrieves multiple products by their IDs.
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Product, error)
}

// StatusUpdate is a guarded status write: it only applies while the order is
// still in Expected.
type StatusUpdate struct {
	OrderID   uuid.UUID
	Expected  model.OrderStatus
	Next      model.OrderStatus
	CourierID *uuid.UUID
	At        time.Time
}

// OrderRepository defines the interface for order data access operations.
type OrderRepository interface {
	// BeginTx starts a new database transaction.
	BeginTx(ctx context.Context) (pgx.Tx, error)

	// NextOrderNumber allocates a human readable order number.
	NextOrderNumber(ctx context.Context, tx pgx.Tx, at time.Time) (string, error)

	// CreateOrder inserts a new order within the provided transaction.
	CreateOrder(ctx context.Context, tx pgx.Tx, order *model.Order) error

	// CreateOrderItems inserts multiple order items within the provided transaction.
	CreateOrderItems(ctx context.Context, tx pgx.Tx, items []model.OrderItem) error

	// CreateOrderAddress inserts the delivery address of an order.
	CreateOrderAddress(ctx context.Context, tx pgx.Tx, addr *model.OrderAddress) error

	// AppendHistory appends one status history row.
	AppendHistory(ctx context.Context, tx pgx.Tx, h *model.StatusHistory) error

	// LockByID reads an order under FOR UPDATE. Returns nil when absent.
	LockByID(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.Order, error)

	// UpdateStatus applies a guarded status write. Returns nil when the guard
	// did not match.
	UpdateStatus(ctx context.Context, tx pgx.Tx, upd StatusUpdate) (*model.Order, error)

	// ClaimForCourier assigns a paid, unassigned order. Returns nil when the
	// order is not claimable.
	ClaimForCourier(ctx context.Context, tx pgx.Tx, id, courierID uuid.UUID, at time.Time) (*model.Order, error)

	// ReassignCourier moves an order from one courier to another. Returns nil
	// when the order is no longer held by from.
	ReassignCourier(ctx context.Context, tx pgx.Tx, id, from, to uuid.UUID, at time.Time) (*model.Order, error)

	// GetByID retrieves an order by its ID along with its items.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Order, []model.OrderItem, error)

	// GetByIdempotencyKey finds an order previously created with the key.
	GetByIdempotencyKey(ctx context.Context, buyerID uuid.UUID, key string) (*model.Order, error)

	// GetAddress retrieves the delivery address of an order.
	GetAddress(ctx context.Context, orderID uuid.UUID) (*model.OrderAddress, error)

	// GetHistory retrieves the status log of an order, oldest first.
	GetHistory(ctx context.Context, orderID uuid.UUID) ([]model.StatusHistory, error)

	// ListAvailable lists paid orders no courier has taken yet, oldest first.
	ListAvailable(ctx context.Context, limit int) ([]model.Order, error)

	// GetDisplayInfo resolves buyer name and first product for notifications.
	GetDisplayInfo(ctx context.Context, orderID uuid.UUID) (*model.DisplayInfo, error)
}

// ProductQuantity is the total quantity of one product within an order.
type ProductQuantity struct {
	ProductID   uuid.UUID
	ProductName string
	Quantity    int
}

// InventoryRepository defines stock storage. Callers must go through the
// inventory ledger; nothing else writes these rows.
type InventoryRepository interface {
	// Get retrieves the stock row of a product. Returns nil when absent.
	Get(ctx context.Context, productID uuid.UUID) (*model.Inventory, error)

	// EnsureRow creates an empty stock row for a product if none exists.
	EnsureRow(ctx context.Context, tx pgx.Tx, productID uuid.UUID) error

	// LockRow reads a stock row under FOR UPDATE. Returns nil when absent.
	LockRow(ctx context.Context, tx pgx.Tx, productID uuid.UUID) (*model.Inventory, error)

	// OrderQuantities sums an order's items per product, ordered by product id.
	OrderQuantities(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) ([]ProductQuantity, error)

	// IncrementReserved reserves qty if it still fits under on-hand quantity.
	IncrementReserved(ctx context.Context, tx pgx.Tx, productID uuid.UUID, qty int) (bool, error)

	// DecrementReserved releases qty, never going below zero.
	DecrementReserved(ctx context.Context, tx pgx.Tx, productID uuid.UUID, qty int) error

	// ApplyDeduction removes qty from on-hand stock and reserved from the
	// reservation. ok is false when stock would go negative.
	ApplyDeduction(ctx context.Context, tx pgx.Tx, productID uuid.UUID, qty, reserved int) (before, after int, ok bool, err error)

	// SetQuantity overwrites on-hand quantity of a locked row.
	SetQuantity(ctx context.Context, tx pgx.Tx, productID uuid.UUID, quantity int) error

	// InsertMovement appends a movement row.
	InsertMovement(ctx context.Context, tx pgx.Tx, m *model.InventoryMovement) error

	// ListMovements returns the latest movements of a product, newest first.
	ListMovements(ctx context.Context, productID uuid.UUID, limit int) ([]model.InventoryMovement, error)

	// ChainMovements returns every movement of a product, oldest first.
	ChainMovements(ctx context.Context, productID uuid.UUID) ([]model.InventoryMovement, error)

	// ListLowStock returns rows whose available stock is at or below min_stock.
	ListLowStock(ctx context.Context) ([]model.Inventory, error)

	// InsertReservations records per-order reservations.
	InsertReservations(ctx context.Context, tx pgx.Tx, rs []model.Reservation) error

	// ListReservations returns every reservation of an order.
	ListReservations(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) ([]model.Reservation, error)

	// MarkReservations moves an order's reservations from one status to another.
	MarkReservations(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, from, to model.ReservationStatus) error
}

// LedgerTotals sums a referrer's ledger entries by type.
type LedgerTotals struct {
	Accrued  decimal.Decimal
	Reversed decimal.Decimal
	PaidOut  decimal.Decimal
}

// CommissionRepository defines storage for buyer profiles and the referral
// ledger. Balance columns are written only through the commission ledger.
type CommissionRepository interface {
	// GetProfile retrieves a buyer profile. Returns nil when absent.
	GetProfile(ctx context.Context, userID uuid.UUID) (*model.BuyerProfile, error)

	// LockProfile reads a buyer profile under FOR UPDATE. Returns nil when absent.
	LockProfile(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*model.BuyerProfile, error)

	// GetReferrerID returns the referrer of a buyer, if any.
	GetReferrerID(ctx context.Context, tx pgx.Tx, buyerID uuid.UUID) (*uuid.UUID, error)

	// InsertEntry appends a ledger entry. inserted is false when an entry of
	// the same type already exists for the order.
	InsertEntry(ctx context.Context, tx pgx.Tx, e *model.ReferralCommission) (inserted bool, err error)

	// FindEntry finds the entry of a type for an order. Returns nil when absent.
	FindEntry(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, typ model.CommissionType) (*model.ReferralCommission, error)

	// InsertPromotion marks an accrual as promoted. inserted is false when it
	// already was.
	InsertPromotion(ctx context.Context, tx pgx.Tx, accrualID uuid.UUID, at time.Time) (inserted bool, err error)

	// AdjustPending adds delta to commission_pending unless the result would be negative.
	AdjustPending(ctx context.Context, tx pgx.Tx, userID uuid.UUID, delta decimal.Decimal) (bool, error)

	// AdjustBalance adds delta to commission_balance unless the result would be negative.
	AdjustBalance(ctx context.Context, tx pgx.Tx, userID uuid.UUID, delta decimal.Decimal) (bool, error)

	// MovePendingToBalance shifts amount from pending to balance.
	MovePendingToBalance(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount decimal.Decimal) (bool, error)

	// ListEntries returns the ledger entries owned by a referrer, oldest first.
	ListEntries(ctx context.Context, referrerID uuid.UUID) ([]model.ReferralCommission, error)

	// Totals sums a referrer's ledger entries.
	Totals(ctx context.Context, referrerID uuid.UUID) (*LedgerTotals, error)
}

// PayoutRepository defines storage for payout requests.
type PayoutRepository interface {
	// Create inserts a payout request.
	Create(ctx context.Context, tx pgx.Tx, p *model.PayoutRequest) error

	// LockByID reads a payout under FOR UPDATE. Returns nil when absent.
	LockByID(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.PayoutRequest, error)

	// UpdateStatus applies a guarded status write. Returns nil when the payout
	// is no longer in from.
	UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to model.PayoutStatus, reason *string, at time.Time) (*model.PayoutRequest, error)

	// ListByBuyer returns a buyer's payouts, newest first.
	ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]model.PayoutRequest, error)

	// HeldTotal sums pending and approved payouts of a buyer.
	HeldTotal(ctx context.Context, buyerID uuid.UUID) (decimal.Decimal, error)
}

// PaymentRepository defines storage for payment confirmations.
type PaymentRepository interface {
	// Create inserts a payment confirmation.
	Create(ctx context.Context, tx pgx.Tx, c *model.PaymentConfirmation) error

	// ListByOrder returns the confirmations submitted for an order.
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]model.PaymentConfirmation, error)
}

// OutboxRecord is an event row waiting to be relayed.
type OutboxRecord struct {
	ID          uuid.UUID
	Seq         int64
	Kind        model.EventKind
	AggregateID uuid.UUID
	Payload     []byte
	Attempts    int
}

// OutboxRepository defines the transactional outbox.
type OutboxRepository interface {
	// Insert stores an event in the caller's transaction.
	Insert(ctx context.Context, tx pgx.Tx, ev model.Event) error

	// FetchUnpublished claims up to limit unpublished rows, skipping rows
	// claimed by other relays.
	FetchUnpublished(ctx context.Context, tx pgx.Tx, limit int) ([]OutboxRecord, error)

	// MarkPublished stamps rows as delivered.
	MarkPublished(ctx context.Context, tx pgx.Tx, ids []uuid.UUID, at time.Time) error

	// MarkFailed records a failed delivery attempt.
	MarkFailed(ctx context.Context, tx pgx.Tx, ids []uuid.UUID, reason string) error
}
