package handler

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"storefront-core/internal/middleware"
	"storefront-core/internal/model"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockOrderService is a mock implementation of OrderService.
type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) CreateOrder(ctx context.Context, actor model.Actor, req *model.OrderRequest) (*model.OrderResponse, error) {
	args := m.Called(ctx, actor, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.OrderResponse), args.Error(1)
}

func (m *MockOrderService) ApplyTransition(ctx context.Context, actor model.Actor, orderID uuid.UUID, req *model.TransitionRequest) (*model.Order, error) {
	args := m.Called(ctx, actor, orderID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderService) GetOrder(ctx context.Context, actor model.Actor, orderID uuid.UUID) (*model.OrderResponse, error) {
	args := m.Called(ctx, actor, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.OrderResponse), args.Error(1)
}

// MockCourierService is a mock implementation of CourierService.
type MockCourierService struct {
	mock.Mock
}

func (m *MockCourierService) TakeOrder(ctx context.Context, actor model.Actor, orderID uuid.UUID) (*model.Order, error) {
	args := m.Called(ctx, actor, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockCourierService) Reassign(ctx context.Context, actor model.Actor, orderID uuid.UUID, req *model.ReassignRequest) (*model.Order, error) {
	args := m.Called(ctx, actor, orderID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockCourierService) AvailableOrders(ctx context.Context, actor model.Actor, limit int) ([]model.Order, error) {
	args := m.Called(ctx, actor, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Order), args.Error(1)
}

// MockPaymentProofService is a mock implementation of PaymentProofService.
type MockPaymentProofService struct {
	mock.Mock
}

func (m *MockPaymentProofService) SubmitPaymentProof(ctx context.Context, actor model.Actor, orderID uuid.UUID, req *model.PaymentProofRequest, image *model.ProofImage) (*model.PaymentConfirmation, error) {
	args := m.Called(ctx, actor, orderID, req, image)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PaymentConfirmation), args.Error(1)
}

func (m *MockPaymentProofService) ListPaymentProofs(ctx context.Context, actor model.Actor, orderID uuid.UUID) ([]model.PaymentConfirmation, error) {
	args := m.Called(ctx, actor, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.PaymentConfirmation), args.Error(1)
}

// MockPayoutService is a mock implementation of PayoutService.
type MockPayoutService struct {
	mock.Mock
}

func (m *MockPayoutService) Summary(ctx context.Context, actor model.Actor) (*model.CommissionSummary, error) {
	args := m.Called(ctx, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CommissionSummary), args.Error(1)
}

func (m *MockPayoutService) RequestPayout(ctx context.Context, actor model.Actor, req *model.PayoutCreateRequest) (*model.PayoutRequest, error) {
	args := m.Called(ctx, actor, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PayoutRequest), args.Error(1)
}

func (m *MockPayoutService) ResolvePayout(ctx context.Context, actor model.Actor, payoutID uuid.UUID, req *model.PayoutResolveRequest) (*model.PayoutRequest, error) {
	args := m.Called(ctx, actor, payoutID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PayoutRequest), args.Error(1)
}

func (m *MockPayoutService) Reconcile(ctx context.Context, actor model.Actor, buyerID uuid.UUID) (*model.Reconciliation, error) {
	args := m.Called(ctx, actor, buyerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Reconciliation), args.Error(1)
}

// MockCatalogService is a mock implementation of CatalogService.
type MockCatalogService struct {
	mock.Mock
}

func (m *MockCatalogService) Stock(ctx context.Context, actor model.Actor, productID uuid.UUID) (*model.StockView, error) {
	args := m.Called(ctx, actor, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.StockView), args.Error(1)
}

func (m *MockCatalogService) Move(ctx context.Context, actor model.Actor, productID uuid.UUID, req *model.MovementRequest) (*model.InventoryMovement, error) {
	args := m.Called(ctx, actor, productID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.InventoryMovement), args.Error(1)
}

func (m *MockCatalogService) Movements(ctx context.Context, actor model.Actor, productID uuid.UUID, limit int) ([]model.InventoryMovement, error) {
	args := m.Called(ctx, actor, productID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.InventoryMovement), args.Error(1)
}

func (m *MockCatalogService) LowStock(ctx context.Context, actor model.Actor) ([]model.StockView, error) {
	args := m.Called(ctx, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.StockView), args.Error(1)
}

func (m *MockCatalogService) VerifyChain(ctx context.Context, actor model.Actor, productID uuid.UUID) (*model.ChainReport, error) {
	args := m.Called(ctx, actor, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ChainReport), args.Error(1)
}

var (
	testBuyer   = model.Actor{ID: uuid.New(), Role: model.RoleBuyer}
	testCourier = model.Actor{ID: uuid.New(), Role: model.RoleCourier}
	testAdmin   = model.Actor{ID: uuid.New(), Role: model.RoleAdmin}
)

// serve routes one request through pattern the way the router mounts h. A nil
// actor leaves the request unauthenticated.
func serve(t *testing.T, method, pattern, path string, h http.HandlerFunc, actor *model.Actor, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()

	r := chi.NewRouter()
	r.Method(method, pattern, h)

	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if actor != nil {
		req = req.WithContext(middleware.WithActor(req.Context(), *actor))
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}
