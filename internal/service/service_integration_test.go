package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"storefront-core/internal/ledger"
	"storefront-core/internal/model"
	"storefront-core/internal/repository"
	"storefront-core/internal/testutil"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stack struct {
	pool        *pgxpool.Pool
	orders      OrderService
	couriers    CourierService
	payouts     PayoutService
	inventory   repository.InventoryRepository
	commissions repository.CommissionRepository
	orderRepo   repository.OrderRepository
}

func setupStack(t *testing.T) *stack {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := testutil.SetupTestDB(t)
	logger := zerolog.Nop()

	orderRepo := repository.NewOrderRepository(db.Pool, logger)
	productRepo := repository.NewProductRepository(db.Pool, logger)
	inventoryRepo := repository.NewInventoryRepository(db.Pool, logger)
	commissionRepo := repository.NewCommissionRepository(db.Pool, logger)
	outbox := repository.NewOutboxRepository(db.Pool, logger)

	stock := ledger.NewInventoryLedger(db.Pool, inventoryRepo, productRepo, logger)
	commission := ledger.NewCommissionLedger(db.Pool, commissionRepo,
		repository.NewPayoutRepository(db.Pool, logger), decimal.NewFromInt(5), logger)

	return &stack{
		pool:        db.Pool,
		orders:      NewOrderService(orderRepo, productRepo, outbox, stock, commission, Fees{}, logger),
		couriers:    NewCourierService(orderRepo, outbox, logger),
		payouts:     NewPayoutService(commission, logger),
		inventory:   inventoryRepo,
		commissions: commissionRepo,
		orderRepo:   orderRepo,
	}
}

func (s *stack) order(t *testing.T, buyerID, productID uuid.UUID, qty int) *model.Order {
	t.Helper()

	resp, err := s.orders.CreateOrder(context.Background(), model.Actor{ID: buyerID, Role: model.RoleBuyer}, &model.OrderRequest{
		Items: []model.OrderItemRequest{{ProductID: productID, Quantity: qty}},
		Address: model.AddressRequest{
			RecipientName: "Penerima",
			Phone:         "0811",
			AddressLine:   "Jl. Melati 1",
			City:          "Bandung",
			PostalCode:    "40111",
		},
		PaymentMethod: "bank_transfer",
	})
	require.NoError(t, err)
	return resp.Order
}

func (s *stack) move(t *testing.T, actor model.Actor, orderID uuid.UUID, status model.OrderStatus) error {
	t.Helper()
	_, err := s.orders.ApplyTransition(context.Background(), actor, orderID, &model.TransitionRequest{Status: string(status)})
	return err
}

func TestIntegration_StockReservationRejectsOversell(t *testing.T) {
	s := setupStack(t)
	ctx := context.Background()
	admin := model.Actor{ID: uuid.New(), Role: model.RoleAdmin}

	productID := testutil.SeedProduct(t, s.pool, "Gula Aren", 20000, 12000)
	testutil.SeedStock(t, s.pool, productID, 10, 0)
	buyer := testutil.SeedProfile(t, s.pool, "Rina", nil)

	o1 := s.order(t, buyer, productID, 4)
	o2 := s.order(t, buyer, productID, 8)

	require.NoError(t, s.move(t, admin, o1.ID, model.StatusPaid))

	err := s.move(t, admin, o2.ID, model.StatusPaid)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrInsufficientStock))

	inv, err := s.inventory.Get(ctx, productID)
	require.NoError(t, err)
	assert.Equal(t, 4, inv.ReservedQuantity)

	resp, err := s.orders.GetOrder(ctx, admin, o2.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusWaitingPayment, resp.Order.Status)
	assert.Len(t, resp.History, 1)
}

func TestIntegration_ConcurrentReservationsNeverOversell(t *testing.T) {
	s := setupStack(t)
	ctx := context.Background()
	admin := model.Actor{ID: uuid.New(), Role: model.RoleAdmin}

	productID := testutil.SeedProduct(t, s.pool, "Kopi Gayo", 60000, 40000)
	testutil.SeedStock(t, s.pool, productID, 10, 0)
	buyer := testutil.SeedProfile(t, s.pool, "Sari", nil)

	quantities := []int{4, 8}
	orders := make([]*model.Order, len(quantities))
	for i, qty := range quantities {
		orders[i] = s.order(t, buyer, productID, qty)
	}

	var wg sync.WaitGroup
	errs := make([]error, len(orders))
	start := make(chan struct{})
	for i, o := range orders {
		wg.Add(1)
		go func(i int, orderID uuid.UUID) {
			defer wg.Done()
			<-start
			_, errs[i] = s.orders.ApplyTransition(ctx, admin, orderID, &model.TransitionRequest{Status: string(model.StatusPaid)})
		}(i, o.ID)
	}
	close(start)
	wg.Wait()

	succeeded := -1
	for i, err := range errs {
		if err == nil {
			require.Equal(t, -1, succeeded, "both reservations succeeded")
			succeeded = i
			continue
		}
		assert.True(t, errors.Is(err, model.ErrInsufficientStock), "unexpected error: %v", err)
	}
	require.NotEqual(t, -1, succeeded, "no reservation succeeded")

	inv, err := s.inventory.Get(ctx, productID)
	require.NoError(t, err)
	assert.Equal(t, 10, inv.Quantity)
	assert.Equal(t, quantities[succeeded], inv.ReservedQuantity)
	assert.GreaterOrEqual(t, inv.ReservedQuantity, 0)
	assert.LessOrEqual(t, inv.ReservedQuantity, inv.Quantity)

	loser := orders[1-succeeded]
	resp, err := s.orders.GetOrder(ctx, admin, loser.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusWaitingPayment, resp.Order.Status)
}

func TestIntegration_CommissionFollowsOrder(t *testing.T) {
	s := setupStack(t)
	ctx := context.Background()
	admin := model.Actor{ID: uuid.New(), Role: model.RoleAdmin}

	productID := testutil.SeedProduct(t, s.pool, "Madu Hutan", 50000, 30000)
	testutil.SeedStock(t, s.pool, productID, 10, 0)
	referrer := testutil.SeedProfile(t, s.pool, "Rudi", nil)
	buyer := testutil.SeedProfile(t, s.pool, "Bayu", &referrer)

	t.Run("Delivered order promotes commission", func(t *testing.T) {
		o := s.order(t, buyer, productID, 2)
		courier := model.Actor{ID: uuid.New(), Role: model.RoleCourier}

		require.NoError(t, s.move(t, admin, o.ID, model.StatusPaid))
		profile, err := s.commissions.GetProfile(ctx, referrer)
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(5000).Equal(profile.CommissionPending))

		_, err = s.couriers.TakeOrder(ctx, courier, o.ID)
		require.NoError(t, err)
		for _, st := range []model.OrderStatus{model.StatusPickedUp, model.StatusOnDelivery, model.StatusDelivered} {
			require.NoError(t, s.move(t, courier, o.ID, st))
		}

		profile, err = s.commissions.GetProfile(ctx, referrer)
		require.NoError(t, err)
		assert.True(t, profile.CommissionPending.IsZero())
		assert.True(t, decimal.NewFromInt(5000).Equal(profile.CommissionBalance))

		inv, err := s.inventory.Get(ctx, productID)
		require.NoError(t, err)
		assert.Equal(t, 8, inv.Quantity)
		assert.Equal(t, 0, inv.ReservedQuantity)
	})

	t.Run("Cancelled order reverses pending commission", func(t *testing.T) {
		o := s.order(t, buyer, productID, 2)

		require.NoError(t, s.move(t, admin, o.ID, model.StatusPaid))
		require.NoError(t, s.move(t, admin, o.ID, model.StatusCancelled))

		profile, err := s.commissions.GetProfile(ctx, referrer)
		require.NoError(t, err)
		assert.True(t, profile.CommissionPending.IsZero())
		assert.True(t, decimal.NewFromInt(5000).Equal(profile.CommissionBalance))

		inv, err := s.inventory.Get(ctx, productID)
		require.NoError(t, err)
		assert.Equal(t, 0, inv.ReservedQuantity)

		rec, err := s.payouts.Reconcile(ctx, admin, referrer)
		require.NoError(t, err)
		assert.True(t, rec.Consistent)
		assert.True(t, decimal.NewFromInt(5000).Equal(rec.Reversed))
	})
}

func TestIntegration_TakeOrderIsExclusive(t *testing.T) {
	s := setupStack(t)
	ctx := context.Background()
	admin := model.Actor{ID: uuid.New(), Role: model.RoleAdmin}

	productID := testutil.SeedProduct(t, s.pool, "Beras Merah", 15000, 9000)
	testutil.SeedStock(t, s.pool, productID, 5, 0)
	buyer := testutil.SeedProfile(t, s.pool, "Dewi", nil)

	o := s.order(t, buyer, productID, 1)
	require.NoError(t, s.move(t, admin, o.ID, model.StatusPaid))

	couriers := []model.Actor{
		{ID: uuid.New(), Role: model.RoleCourier},
		{ID: uuid.New(), Role: model.RoleCourier},
	}

	var wg sync.WaitGroup
	errs := make([]error, len(couriers))
	start := make(chan struct{})
	for i, c := range couriers {
		wg.Add(1)
		go func(i int, c model.Actor) {
			defer wg.Done()
			<-start
			_, errs[i] = s.couriers.TakeOrder(ctx, c, o.ID)
		}(i, c)
	}
	close(start)
	wg.Wait()

	winners := 0
	var winner uuid.UUID
	for i, err := range errs {
		if err == nil {
			winners++
			winner = couriers[i].ID
			continue
		}
		assert.True(t, errors.Is(err, model.ErrOrderTaken))
	}
	require.Equal(t, 1, winners)

	resp, err := s.orders.GetOrder(ctx, admin, o.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusAssigned, resp.Order.Status)
	assert.True(t, resp.Order.HasCourier(winner))

	var assignedRows int
	for _, h := range resp.History {
		if h.Status == model.StatusAssigned {
			assignedRows++
		}
	}
	assert.Equal(t, 1, assignedRows)
}

func TestIntegration_PayoutBeyondBalance(t *testing.T) {
	s := setupStack(t)
	ctx := context.Background()

	referrer := testutil.SeedProfile(t, s.pool, "Tono", nil)
	buyer := testutil.SeedProfile(t, s.pool, "Sari", &referrer)
	testutil.SeedPromotedCommission(t, s.pool, referrer, buyer, 30000)

	_, err := s.payouts.RequestPayout(ctx, model.Actor{ID: referrer, Role: model.RoleBuyer}, &model.PayoutCreateRequest{
		Amount:        decimal.NewFromInt(50000),
		BankName:      "Mandiri",
		AccountNumber: "1400",
		AccountName:   "Tono",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrInsufficientBalance))

	profile, err := s.commissions.GetProfile(ctx, referrer)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(30000).Equal(profile.CommissionBalance))
}

func TestIntegration_RepeatedTransitionWritesOnce(t *testing.T) {
	s := setupStack(t)
	ctx := context.Background()
	admin := model.Actor{ID: uuid.New(), Role: model.RoleAdmin}

	productID := testutil.SeedProduct(t, s.pool, "Kopi Gayo", 60000, 35000)
	testutil.SeedStock(t, s.pool, productID, 10, 0)
	buyer := testutil.SeedProfile(t, s.pool, "Agus", nil)
	o := s.order(t, buyer, productID, 3)

	for i := 0; i < 3; i++ {
		require.NoError(t, s.move(t, admin, o.ID, model.StatusPaid))
	}

	history, err := s.orderRepo.GetHistory(ctx, o.ID)
	require.NoError(t, err)
	assert.Len(t, history, 2)

	inv, err := s.inventory.Get(ctx, productID)
	require.NoError(t, err)
	assert.Equal(t, 3, inv.ReservedQuantity)
}
