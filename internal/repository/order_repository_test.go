package repository

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"storefront-core/internal/model"
	"storefront-core/internal/testutil"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// insertTestOrder writes an order with one item directly, bypassing the state machine.
func insertTestOrder(t *testing.T, pool *pgxpool.Pool, repo OrderRepository, buyerID, productID uuid.UUID, qty int, status model.OrderStatus) *model.Order {
	t.Helper()

	ctx := context.Background()
	now := time.Now().UTC()
	price := decimal.NewFromInt(10000)
	subtotal := price.Mul(decimal.NewFromInt(int64(qty)))

	order := &model.Order{
		ID:            uuid.New(),
		BuyerID:       buyerID,
		Status:        status,
		PaymentMethod: model.PaymentBankTransfer,
		Subtotal:      subtotal,
		ShippingCost:  decimal.NewFromInt(5000),
		AdminFee:      decimal.NewFromInt(1000),
		Total:         subtotal.Add(decimal.NewFromInt(6000)),
		TotalHPP:      decimal.Zero,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err := RunInTx(ctx, pool, func(tx pgx.Tx) error {
		number, err := repo.NextOrderNumber(ctx, tx, now)
		if err != nil {
			return err
		}
		order.OrderNumber = number
		if err := repo.CreateOrder(ctx, tx, order); err != nil {
			return err
		}
		return repo.CreateOrderItems(ctx, tx, []model.OrderItem{{
			ID:           uuid.New(),
			OrderID:      order.ID,
			ProductID:    productID,
			Quantity:     qty,
			PriceAtOrder: price,
			HPPAtOrder:   decimal.Zero,
			Subtotal:     subtotal,
		}})
	})
	require.NoError(t, err)
	return order
}

func TestOrderRepository_CreateAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewOrderRepository(pool, zerolog.Nop())
	ctx := context.Background()

	productID := testutil.SeedProduct(t, pool, "Kopi Bubuk", 10000, 7000)
	buyerID := testutil.SeedProfile(t, pool, "Siti Aminah", nil)

	order := insertTestOrder(t, pool, repo, buyerID, productID, 3, model.StatusWaitingPayment)

	err := RunInTx(ctx, pool, func(tx pgx.Tx) error {
		if err := repo.CreateOrderAddress(ctx, tx, &model.OrderAddress{
			OrderID:       order.ID,
			RecipientName: "Siti Aminah",
			Phone:         "08123456789",
			AddressLine:   "Jl. Merdeka 1",
			City:          "Bandung",
			PostalCode:    "40111",
		}); err != nil {
			return err
		}
		return repo.AppendHistory(ctx, tx, &model.StatusHistory{
			ID:        uuid.New(),
			OrderID:   order.ID,
			Status:    model.StatusWaitingPayment,
			ActorID:   buyerID,
			ActorRole: model.RoleBuyer,
			CreatedAt: time.Now(),
		})
	})
	require.NoError(t, err)

	got, items, err := repo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, order.OrderNumber, got.OrderNumber)
	assert.Equal(t, model.StatusWaitingPayment, got.Status)
	assert.True(t, got.Total.Equal(got.Subtotal.Add(got.ShippingCost).Add(got.AdminFee)))
	require.Len(t, items, 1)
	assert.Equal(t, "Kopi Bubuk", items[0].ProductName)
	assert.Equal(t, 3, items[0].Quantity)

	addr, err := repo.GetAddress(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, addr)
	assert.Equal(t, "Bandung", addr.City)

	history, err := repo.GetHistory(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, model.RoleBuyer, history[0].ActorRole)

	info, err := repo.GetDisplayInfo(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "Siti Aminah", info.BuyerName)
	assert.Equal(t, "Kopi Bubuk", info.ProductName)
	assert.NotNil(t, info.PhotoURL)

	missing, _, err := repo.GetByID(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestOrderRepository_NextOrderNumber(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewOrderRepository(pool, zerolog.Nop())
	ctx := context.Background()
	at := time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC)

	var first, second string
	err := RunInTx(ctx, pool, func(tx pgx.Tx) error {
		var err error
		if first, err = repo.NextOrderNumber(ctx, tx, at); err != nil {
			return err
		}
		second, err = repo.NextOrderNumber(ctx, tx, at)
		return err
	})
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^ORD-20240309-\d{6}$`), first)
	assert.NotEqual(t, first, second)
}

func TestOrderRepository_UpdateStatusGuard(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewOrderRepository(pool, zerolog.Nop())
	ctx := context.Background()

	productID := testutil.SeedProduct(t, pool, "Teh Celup", 10000, 6000)
	order := insertTestOrder(t, pool, repo, uuid.New(), productID, 1, model.StatusPaid)

	tests := []struct {
		name     string
		expected model.OrderStatus
		next     model.OrderStatus
		wantNil  bool
	}{
		{name: "Stale expected status does not match", expected: model.StatusNew, next: model.StatusCancelled, wantNil: true},
		{name: "Matching expected status applies", expected: model.StatusPaid, next: model.StatusCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got *model.Order
			err := RunInTx(ctx, pool, func(tx pgx.Tx) error {
				var err error
				got, err = repo.UpdateStatus(ctx, tx, StatusUpdate{
					OrderID:  order.ID,
					Expected: tt.expected,
					Next:     tt.next,
					At:       time.Now(),
				})
				return err
			})
			require.NoError(t, err)

			if tt.wantNil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.next, got.Status)
			assert.NotNil(t, got.CancelledAt)
			assert.Nil(t, got.DeliveredAt)
		})
	}
}

func TestOrderRepository_ClaimForCourier_Exclusive(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewOrderRepository(pool, zerolog.Nop())
	ctx := context.Background()

	productID := testutil.SeedProduct(t, pool, "Sabun Mandi", 10000, 5000)
	order := insertTestOrder(t, pool, repo, uuid.New(), productID, 1, model.StatusPaid)

	available, err := repo.ListAvailable(ctx, 10)
	require.NoError(t, err)
	require.Len(t, available, 1)

	couriers := []uuid.UUID{uuid.New(), uuid.New(), uuid.New(), uuid.New()}
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []uuid.UUID
	)
	for _, c := range couriers {
		wg.Add(1)
		go func(courierID uuid.UUID) {
			defer wg.Done()
			_ = RunInTx(ctx, pool, func(tx pgx.Tx) error {
				got, err := repo.ClaimForCourier(ctx, tx, order.ID, courierID, time.Now())
				if err != nil {
					return err
				}
				if got != nil {
					mu.Lock()
					winners = append(winners, courierID)
					mu.Unlock()
				}
				return nil
			})
		}(c)
	}
	wg.Wait()

	require.Len(t, winners, 1)

	got, _, err := repo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusAssigned, got.Status)
	require.NotNil(t, got.CourierID)
	assert.Equal(t, winners[0], *got.CourierID)
	assert.NotNil(t, got.AssignedAt)

	available, err = repo.ListAvailable(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, available)
}

func TestOrderRepository_GetByIdempotencyKey(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewOrderRepository(pool, zerolog.Nop())
	ctx := context.Background()

	productID := testutil.SeedProduct(t, pool, "Susu UHT", 10000, 8000)
	buyerID := uuid.New()
	order := insertTestOrder(t, pool, repo, buyerID, productID, 1, model.StatusNew)

	_, err := pool.Exec(ctx, `UPDATE orders SET idempotency_key = 'checkout-1' WHERE id = $1`, order.ID)
	require.NoError(t, err)

	got, err := repo.GetByIdempotencyKey(ctx, buyerID, "checkout-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, order.ID, got.ID)

	other, err := repo.GetByIdempotencyKey(ctx, uuid.New(), "checkout-1")
	require.NoError(t, err)
	assert.Nil(t, other)
}
