// Package ledger keeps the two balance-carrying records of the store: product
// stock and referral commission. Order-driven operations take the caller's
// transaction so they commit or roll back together with the status change.
package ledger

import (
	"context"
	"fmt"
	"time"

	"storefront-core/internal/model"
	"storefront-core/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// InventoryLedger owns reserved and on-hand stock and the movement log.
type InventoryLedger struct {
	db       repository.TxBeginner
	repo     repository.InventoryRepository
	products repository.ProductRepository
	logger   zerolog.Logger
}

// NewInventoryLedger creates an inventory ledger.
func NewInventoryLedger(
	db repository.TxBeginner,
	repo repository.InventoryRepository,
	products repository.ProductRepository,
	logger zerolog.Logger,
) *InventoryLedger {
	return &InventoryLedger{
		db:       db,
		repo:     repo,
		products: products,
		logger:   logger.With().Str("ledger", "inventory").Logger(),
	}
}

// Reserve earmarks every item of an order. Either all items are reserved or
// the call fails with an insufficient stock error. Reserving an order twice
// is a no-op.
func (l *InventoryLedger) Reserve(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) error {
	existing, err := l.repo.ListReservations(ctx, tx, orderID)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		l.logger.Debug().Str("order_id", orderID.String()).Msg("order already reserved")
		return nil
	}

	quantities, err := l.repo.OrderQuantities(ctx, tx, orderID)
	if err != nil {
		return err
	}

	reservations := make([]model.Reservation, 0, len(quantities))
	for _, pq := range quantities {
		ok, err := l.repo.IncrementReserved(ctx, tx, pq.ProductID, pq.Quantity)
		if err != nil {
			return err
		}
		if !ok {
			available, err := l.available(ctx, tx, pq.ProductID)
			if err != nil {
				return err
			}
			l.logger.Warn().
				Str("order_id", orderID.String()).
				Str("product_id", pq.ProductID.String()).
				Int("requested", pq.Quantity).
				Int("available", available).
				Msg("insufficient stock to reserve")
			return model.NewInsufficientStockError(pq.ProductName, pq.Quantity, available)
		}
		reservations = append(reservations, model.Reservation{
			OrderID:   orderID,
			ProductID: pq.ProductID,
			Quantity:  pq.Quantity,
			Status:    model.ReservationReserved,
		})
	}

	if err := l.repo.InsertReservations(ctx, tx, reservations); err != nil {
		return err
	}

	l.logger.Debug().
		Str("order_id", orderID.String()).
		Int("product_count", len(reservations)).
		Msg("stock reserved")
	return nil
}

// Release returns an order's outstanding reservations to available stock.
func (l *InventoryLedger) Release(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) error {
	reservations, err := l.repo.ListReservations(ctx, tx, orderID)
	if err != nil {
		return err
	}

	released := 0
	for _, res := range reservations {
		if res.Status != model.ReservationReserved {
			continue
		}
		if err := l.repo.DecrementReserved(ctx, tx, res.ProductID, res.Quantity); err != nil {
			return err
		}
		released++
	}
	if released == 0 {
		return nil
	}

	if err := l.repo.MarkReservations(ctx, tx, orderID, model.ReservationReserved, model.ReservationReleased); err != nil {
		return err
	}

	l.logger.Debug().
		Str("order_id", orderID.String()).
		Int("product_count", released).
		Msg("reservation released")
	return nil
}

// Deduct removes a delivered order's items from on-hand stock, consuming the
// reservation and writing one out movement per product.
func (l *InventoryLedger) Deduct(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, at time.Time) error {
	reservations, err := l.repo.ListReservations(ctx, tx, orderID)
	if err != nil {
		return err
	}

	reserved := make(map[uuid.UUID]int, len(reservations))
	for _, res := range reservations {
		switch res.Status {
		case model.ReservationDeducted:
			l.logger.Debug().Str("order_id", orderID.String()).Msg("order already deducted")
			return nil
		case model.ReservationReserved:
			reserved[res.ProductID] = res.Quantity
		}
	}

	quantities, err := l.repo.OrderQuantities(ctx, tx, orderID)
	if err != nil {
		return err
	}

	for _, pq := range quantities {
		before, after, ok, err := l.repo.ApplyDeduction(ctx, tx, pq.ProductID, pq.Quantity, reserved[pq.ProductID])
		if err != nil {
			return err
		}
		if !ok {
			onHand := 0
			inv, err := l.repo.LockRow(ctx, tx, pq.ProductID)
			if err != nil {
				return err
			}
			if inv != nil {
				onHand = inv.Quantity
			}
			return model.NewInsufficientStockError(pq.ProductName, pq.Quantity, onHand)
		}

		ref := orderID
		movement := &model.InventoryMovement{
			ID:               uuid.New(),
			ProductID:        pq.ProductID,
			Type:             model.MovementOut,
			Quantity:         pq.Quantity,
			QuantityBefore:   before,
			QuantityAfter:    after,
			Reason:           "pesanan terkirim",
			ReferenceOrderID: &ref,
			CreatedAt:        at,
		}
		if err := l.repo.InsertMovement(ctx, tx, movement); err != nil {
			return err
		}
	}

	if err := l.repo.MarkReservations(ctx, tx, orderID, model.ReservationReserved, model.ReservationDeducted); err != nil {
		return err
	}

	l.logger.Info().
		Str("order_id", orderID.String()).
		Int("product_count", len(quantities)).
		Msg("stock deducted")
	return nil
}

// Move applies an admin stock movement in its own transaction. in adds,
// out subtracts and adjustment sets the on-hand quantity.
func (l *InventoryLedger) Move(ctx context.Context, productID uuid.UUID, typ model.MovementType, qty int, reason string) (*model.InventoryMovement, error) {
	if qty < 0 || (qty == 0 && typ != model.MovementAdjustment) {
		return nil, model.ErrInvalidQuantity
	}

	product, err := l.products.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, model.NewNotFoundError(model.ErrCodeProductNotFound, "produk tidak ditemukan")
	}

	var movement *model.InventoryMovement
	err = repository.RunInTx(ctx, l.db, func(tx pgx.Tx) error {
		if err := l.repo.EnsureRow(ctx, tx, productID); err != nil {
			return err
		}
		inv, err := l.repo.LockRow(ctx, tx, productID)
		if err != nil {
			return err
		}
		if inv == nil {
			return model.NewNotFoundError(model.ErrCodeInventoryNotFound, "stok produk tidak ditemukan")
		}

		after := typ.Apply(inv.Quantity, qty)
		if after < 0 || after < inv.ReservedQuantity {
			l.logger.Warn().
				Str("product_id", productID.String()).
				Str("type", string(typ)).
				Int("quantity", qty).
				Int("on_hand", inv.Quantity).
				Int("reserved", inv.ReservedQuantity).
				Msg("movement would undercut stock")
			return model.NewInsufficientStockError(product.Name, qty, inv.Available())
		}

		movement = &model.InventoryMovement{
			ID:             uuid.New(),
			ProductID:      productID,
			Type:           typ,
			Quantity:       qty,
			QuantityBefore: inv.Quantity,
			QuantityAfter:  after,
			Reason:         reason,
			CreatedAt:      time.Now(),
		}
		if err := l.repo.InsertMovement(ctx, tx, movement); err != nil {
			return err
		}
		return l.repo.SetQuantity(ctx, tx, productID, after)
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info().
		Str("product_id", productID.String()).
		Str("type", string(typ)).
		Int("before", movement.QuantityBefore).
		Int("after", movement.QuantityAfter).
		Msg("stock movement recorded")
	return movement, nil
}

// Stock returns the stock view of a product.
func (l *InventoryLedger) Stock(ctx context.Context, productID uuid.UUID) (*model.StockView, error) {
	inv, err := l.repo.Get(ctx, productID)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, model.NewNotFoundError(model.ErrCodeInventoryNotFound, "stok produk tidak ditemukan")
	}
	view := model.NewStockView(*inv)
	return &view, nil
}

// Movements returns the latest movements of a product, newest first.
func (l *InventoryLedger) Movements(ctx context.Context, productID uuid.UUID, limit int) ([]model.InventoryMovement, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return l.repo.ListMovements(ctx, productID, limit)
}

// LowStock lists active products at or below their minimum stock.
func (l *InventoryLedger) LowStock(ctx context.Context) ([]model.StockView, error) {
	rows, err := l.repo.ListLowStock(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]model.StockView, len(rows))
	for i, inv := range rows {
		views[i] = model.NewStockView(inv)
	}
	return views, nil
}

// VerifyChain walks a product's movement log and checks that each entry
// starts where the previous one ended, that each entry's arithmetic holds and
// that the log ends at the current on-hand quantity. It returns nil when the
// chain is intact.
func (l *InventoryLedger) VerifyChain(ctx context.Context, productID uuid.UUID) (*model.ChainBreak, error) {
	movements, err := l.repo.ChainMovements(ctx, productID)
	if err != nil {
		return nil, err
	}
	inv, err := l.repo.Get(ctx, productID)
	if err != nil {
		return nil, err
	}

	prev := 0
	for _, m := range movements {
		if m.QuantityBefore != prev {
			return &model.ChainBreak{MovementID: m.ID, Expected: prev, Actual: m.QuantityBefore,
				Detail: "quantity_before does not match previous quantity_after"}, nil
		}
		if want := m.Type.Apply(m.QuantityBefore, m.Quantity); want != m.QuantityAfter {
			return &model.ChainBreak{MovementID: m.ID, Expected: want, Actual: m.QuantityAfter,
				Detail: fmt.Sprintf("%s movement arithmetic does not hold", m.Type)}, nil
		}
		prev = m.QuantityAfter
	}

	onHand := 0
	if inv != nil {
		onHand = inv.Quantity
	}
	if prev != onHand {
		return &model.ChainBreak{Expected: prev, Actual: onHand,
			Detail: "latest quantity_after does not match on-hand quantity"}, nil
	}
	return nil, nil
}

func (l *InventoryLedger) available(ctx context.Context, tx pgx.Tx, productID uuid.UUID) (int, error) {
	inv, err := l.repo.LockRow(ctx, tx, productID)
	if err != nil {
		return 0, err
	}
	if inv == nil {
		return 0, nil
	}
	return inv.Available(), nil
}
