package service

import (
	"context"
	"time"

	"storefront-core/internal/model"
	"storefront-core/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/mock"
)

// MockOrderRepository is a mock implementation of OrderRepository.
type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	args := m.Called(ctx)
	// Return a MockTx interface value, not a pointer
	if tx, ok := args.Get(0).(pgx.Tx); ok {
		return tx, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockOrderRepository) NextOrderNumber(ctx context.Context, tx pgx.Tx, at time.Time) (string, error) {
	args := m.Called(ctx, tx, at)
	return args.String(0), args.Error(1)
}

func (m *MockOrderRepository) CreateOrder(ctx context.Context, tx pgx.Tx, order *model.Order) error {
	args := m.Called(ctx, tx, order)
	return args.Error(0)
}

func (m *MockOrderRepository) CreateOrderItems(ctx context.Context, tx pgx.Tx, items []model.OrderItem) error {
	args := m.Called(ctx, tx, items)
	return args.Error(0)
}

func (m *MockOrderRepository) CreateOrderAddress(ctx context.Context, tx pgx.Tx, addr *model.OrderAddress) error {
	args := m.Called(ctx, tx, addr)
	return args.Error(0)
}

func (m *MockOrderRepository) AppendHistory(ctx context.Context, tx pgx.Tx, h *model.StatusHistory) error {
	args := m.Called(ctx, tx, h)
	return args.Error(0)
}

func (m *MockOrderRepository) orderResult(args mock.Arguments) (*model.Order, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderRepository) LockByID(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.Order, error) {
	return m.orderResult(m.Called(ctx, tx, id))
}

func (m *MockOrderRepository) UpdateStatus(ctx context.Context, tx pgx.Tx, upd repository.StatusUpdate) (*model.Order, error) {
	return m.orderResult(m.Called(ctx, tx, upd))
}

func (m *MockOrderRepository) ClaimForCourier(ctx context.Context, tx pgx.Tx, id, courierID uuid.UUID, at time.Time) (*model.Order, error) {
	return m.orderResult(m.Called(ctx, tx, id, courierID, at))
}

func (m *MockOrderRepository) ReassignCourier(ctx context.Context, tx pgx.Tx, id, from, to uuid.UUID, at time.Time) (*model.Order, error) {
	return m.orderResult(m.Called(ctx, tx, id, from, to, at))
}

func (m *MockOrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, []model.OrderItem, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*model.Order), args.Get(1).([]model.OrderItem), args.Error(2)
}

func (m *MockOrderRepository) GetByIdempotencyKey(ctx context.Context, buyerID uuid.UUID, key string) (*model.Order, error) {
	return m.orderResult(m.Called(ctx, buyerID, key))
}

func (m *MockOrderRepository) GetAddress(ctx context.Context, orderID uuid.UUID) (*model.OrderAddress, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.OrderAddress), args.Error(1)
}

func (m *MockOrderRepository) GetHistory(ctx context.Context, orderID uuid.UUID) ([]model.StatusHistory, error) {
	args := m.Called(ctx, orderID)
	return args.Get(0).([]model.StatusHistory), args.Error(1)
}

func (m *MockOrderRepository) ListAvailable(ctx context.Context, limit int) ([]model.Order, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]model.Order), args.Error(1)
}

func (m *MockOrderRepository) GetDisplayInfo(ctx context.Context, orderID uuid.UUID) (*model.DisplayInfo, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.DisplayInfo), args.Error(1)
}

// MockProductRepository is a mock implementation of ProductRepository.
type MockProductRepository struct {
	mock.Mock
}

func (m *MockProductRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Product), args.Error(1)
}

func (m *MockProductRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Product, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Product), args.Error(1)
}

// MockOutboxRepository is a mock implementation of OutboxRepository.
type MockOutboxRepository struct {
	mock.Mock
}

func (m *MockOutboxRepository) Insert(ctx context.Context, tx pgx.Tx, ev model.Event) error {
	args := m.Called(ctx, tx, ev)
	return args.Error(0)
}

func (m *MockOutboxRepository) FetchUnpublished(ctx context.Context, tx pgx.Tx, limit int) ([]repository.OutboxRecord, error) {
	args := m.Called(ctx, tx, limit)
	return args.Get(0).([]repository.OutboxRecord), args.Error(1)
}

func (m *MockOutboxRepository) MarkPublished(ctx context.Context, tx pgx.Tx, ids []uuid.UUID, at time.Time) error {
	args := m.Called(ctx, tx, ids, at)
	return args.Error(0)
}

func (m *MockOutboxRepository) MarkFailed(ctx context.Context, tx pgx.Tx, ids []uuid.UUID, reason string) error {
	args := m.Called(ctx, tx, ids, reason)
	return args.Error(0)
}

// MockStockLedger is a mock implementation of StockLedger.
type MockStockLedger struct {
	mock.Mock
}

func (m *MockStockLedger) Reserve(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) error {
	return m.Called(ctx, tx, orderID).Error(0)
}

func (m *MockStockLedger) Release(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) error {
	return m.Called(ctx, tx, orderID).Error(0)
}

func (m *MockStockLedger) Deduct(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, at time.Time) error {
	return m.Called(ctx, tx, orderID, at).Error(0)
}

// MockCommissionBook is a mock implementation of CommissionBook.
type MockCommissionBook struct {
	mock.Mock
}

func (m *MockCommissionBook) Accrue(ctx context.Context, tx pgx.Tx, order *model.Order, at time.Time) error {
	return m.Called(ctx, tx, order, at).Error(0)
}

func (m *MockCommissionBook) Reverse(ctx context.Context, tx pgx.Tx, order *model.Order, at time.Time) error {
	return m.Called(ctx, tx, order, at).Error(0)
}

func (m *MockCommissionBook) Promote(ctx context.Context, tx pgx.Tx, order *model.Order, at time.Time) error {
	return m.Called(ctx, tx, order, at).Error(0)
}

// MockTx is a minimal mock implementation of pgx.Tx for testing.
type MockTx struct {
	mock.Mock
	committed  bool
	rolledBack bool
}

func (m *MockTx) Commit(ctx context.Context) error {
	args := m.Called(ctx)
	m.committed = true
	return args.Error(0)
}

func (m *MockTx) Rollback(ctx context.Context) error {
	args := m.Called(ctx)
	m.rolledBack = true
	return args.Error(0)
}

// Stub methods to satisfy pgx.Tx interface - these are not used in our tests
func (m *MockTx) Begin(ctx context.Context) (pgx.Tx, error) { return nil, nil }
func (m *MockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (m *MockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (m *MockTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (m *MockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (m *MockTx) Exec(ctx context.Context, sql string, arguments ...any) (commandTag pgconn.CommandTag, err error) {
	return
}
func (m *MockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (m *MockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return nil }
func (m *MockTx) Conn() *pgx.Conn                                               { return nil }
