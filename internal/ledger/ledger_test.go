package ledger

import (
	"context"
	"testing"
	"time"

	"storefront-core/internal/model"
	"storefront-core/internal/repository"
	"storefront-core/internal/testutil"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	pool       *pgxpool.Pool
	orders     repository.OrderRepository
	inventory  *InventoryLedger
	commission *CommissionLedger
}

func setupLedgers(t *testing.T) *fixture {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := testutil.SetupTestDB(t)
	logger := zerolog.Nop()

	products := repository.NewProductRepository(db.Pool, logger)
	return &fixture{
		pool:   db.Pool,
		orders: repository.NewOrderRepository(db.Pool, logger),
		inventory: NewInventoryLedger(db.Pool,
			repository.NewInventoryRepository(db.Pool, logger), products, logger),
		commission: NewCommissionLedger(db.Pool,
			repository.NewCommissionRepository(db.Pool, logger),
			repository.NewPayoutRepository(db.Pool, logger),
			decimal.NewFromInt(5), logger),
	}
}

// placeOrder inserts an order for buyerID with one line per product.
func (f *fixture) placeOrder(t *testing.T, buyerID uuid.UUID, unitPrice int64, lines map[uuid.UUID]int) *model.Order {
	t.Helper()

	ctx := context.Background()
	now := time.Now()
	order := &model.Order{
		ID:            uuid.New(),
		BuyerID:       buyerID,
		Status:        model.StatusWaitingPayment,
		PaymentMethod: model.PaymentBankTransfer,
		ShippingCost:  decimal.Zero,
		AdminFee:      decimal.Zero,
		TotalHPP:      decimal.Zero,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	price := decimal.NewFromInt(unitPrice)
	items := make([]model.OrderItem, 0, len(lines))
	subtotal := decimal.Zero
	for productID, qty := range lines {
		lineTotal := price.Mul(decimal.NewFromInt(int64(qty)))
		subtotal = subtotal.Add(lineTotal)
		items = append(items, model.OrderItem{
			ID:           uuid.New(),
			OrderID:      order.ID,
			ProductID:    productID,
			Quantity:     qty,
			PriceAtOrder: price,
			HPPAtOrder:   decimal.Zero,
			Subtotal:     lineTotal,
		})
	}
	order.Subtotal = subtotal
	order.Total = subtotal

	err := repository.RunInTx(ctx, f.pool, func(tx pgx.Tx) error {
		number, err := f.orders.NextOrderNumber(ctx, tx, now)
		if err != nil {
			return err
		}
		order.OrderNumber = number
		if err := f.orders.CreateOrder(ctx, tx, order); err != nil {
			return err
		}
		return f.orders.CreateOrderItems(ctx, tx, items)
	})
	require.NoError(t, err)
	return order
}

// inTx runs fn in a transaction and returns its error.
func (f *fixture) inTx(fn func(ctx context.Context, tx pgx.Tx) error) error {
	ctx := context.Background()
	return repository.RunInTx(ctx, f.pool, func(tx pgx.Tx) error {
		return fn(ctx, tx)
	})
}
