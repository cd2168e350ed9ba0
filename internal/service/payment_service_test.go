package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"storefront-core/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockPaymentRepository is a mock implementation of PaymentRepository.
type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) Create(ctx context.Context, tx pgx.Tx, c *model.PaymentConfirmation) error {
	args := m.Called(ctx, tx, c)
	return args.Error(0)
}

func (m *MockPaymentRepository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]model.PaymentConfirmation, error) {
	args := m.Called(ctx, orderID)
	return args.Get(0).([]model.PaymentConfirmation), args.Error(1)
}

// MockProofStorage is a mock implementation of ProofStorage.
type MockProofStorage struct {
	mock.Mock
}

func (m *MockProofStorage) Store(ctx context.Context, key, contentType string, data []byte) (string, error) {
	args := m.Called(ctx, key, contentType, data)
	return args.String(0), args.Error(1)
}

func validProofRequest() *model.PaymentProofRequest {
	return &model.PaymentProofRequest{
		Amount:       decimal.NewFromInt(112000),
		BankName:     "BCA",
		AccountName:  "Siti Aminah",
		TransferDate: time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC),
	}
}

func TestPaymentProofService_Submit_WithImage(t *testing.T) {
	ctx := context.Background()
	buyer := model.Actor{ID: uuid.New(), Role: model.RoleBuyer}
	order := &model.Order{ID: uuid.New(), OrderNumber: "ORD-20240309-000007", BuyerID: buyer.ID, Status: model.StatusWaitingPayment}

	orders := new(MockOrderRepository)
	payments := new(MockPaymentRepository)
	outbox := new(MockOutboxRepository)
	storage := new(MockProofStorage)
	tx := new(MockTx)
	svc := NewPaymentProofService(orders, payments, outbox, storage, zerolog.Nop())

	image := &model.ProofImage{Filename: "bukti.jpg", ContentType: "image/jpeg", Data: []byte{0xff, 0xd8}}

	orders.On("GetByID", ctx, order.ID).Return(order, []model.OrderItem{}, nil)
	storage.On("Store", ctx, mock.MatchedBy(func(key string) bool {
		return strings.HasPrefix(key, order.ID.String()+"/") && strings.HasSuffix(key, ".jpg")
	}), "image/jpeg", image.Data).Return("https://cdn.example.com/proofs/bukti.jpg", nil)
	orders.On("BeginTx", ctx).Return(tx, nil)
	orders.On("LockByID", ctx, tx, order.ID).Return(order, nil)
	payments.On("Create", ctx, tx, mock.AnythingOfType("*model.PaymentConfirmation")).Return(nil)
	outbox.On("Insert", ctx, tx, mock.MatchedBy(func(ev model.Event) bool {
		p, ok := ev.Payload.(model.PaymentProofSubmitted)
		return ok && p.OrderNumber == order.OrderNumber
	})).Return(nil)
	tx.On("Commit", ctx).Return(nil)

	conf, err := svc.SubmitPaymentProof(ctx, buyer, order.ID, validProofRequest(), image)

	require.NoError(t, err)
	require.NotNil(t, conf.ProofURL)
	assert.Equal(t, "https://cdn.example.com/proofs/bukti.jpg", *conf.ProofURL)
	assert.Equal(t, "BCA", conf.BankName)
	orders.AssertExpectations(t)
	payments.AssertExpectations(t)
	outbox.AssertExpectations(t)
	storage.AssertExpectations(t)
	orders.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestPaymentProofService_Submit_Refusals(t *testing.T) {
	ctx := context.Background()
	buyerID := uuid.New()

	tests := []struct {
		name     string
		actor    model.Actor
		order    *model.Order
		mutate   func(r *model.PaymentProofRequest)
		wantKind model.ErrorKind
	}{
		{
			name:     "Zero amount",
			actor:    model.Actor{ID: buyerID, Role: model.RoleBuyer},
			mutate:   func(r *model.PaymentProofRequest) { r.Amount = decimal.Zero },
			wantKind: model.KindValidation,
		},
		{
			name:     "Missing bank",
			actor:    model.Actor{ID: buyerID, Role: model.RoleBuyer},
			mutate:   func(r *model.PaymentProofRequest) { r.BankName = " " },
			wantKind: model.KindValidation,
		},
		{
			name:     "Admin cannot submit",
			actor:    model.Actor{ID: uuid.New(), Role: model.RoleAdmin},
			mutate:   func(r *model.PaymentProofRequest) {},
			wantKind: model.KindPermission,
		},
		{
			name:     "Someone else's order",
			actor:    model.Actor{ID: uuid.New(), Role: model.RoleBuyer},
			order:    &model.Order{BuyerID: buyerID, Status: model.StatusWaitingPayment},
			mutate:   func(r *model.PaymentProofRequest) {},
			wantKind: model.KindPermission,
		},
		{
			name:     "Already paid",
			actor:    model.Actor{ID: buyerID, Role: model.RoleBuyer},
			order:    &model.Order{BuyerID: buyerID, Status: model.StatusPaid},
			mutate:   func(r *model.PaymentProofRequest) {},
			wantKind: model.KindConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orders := new(MockOrderRepository)
			payments := new(MockPaymentRepository)
			svc := NewPaymentProofService(orders, payments, new(MockOutboxRepository), nil, zerolog.Nop())

			orderID := uuid.New()
			if tt.order != nil {
				tt.order.ID = orderID
				orders.On("GetByID", ctx, orderID).Return(tt.order, []model.OrderItem{}, nil)
			}
			req := validProofRequest()
			tt.mutate(req)

			_, err := svc.SubmitPaymentProof(ctx, tt.actor, orderID, req, nil)

			require.Error(t, err)
			assert.Equal(t, tt.wantKind, model.KindOf(err))
			orders.AssertNotCalled(t, "BeginTx", mock.Anything)
			payments.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestPaymentProofService_Submit_StorageFailure(t *testing.T) {
	ctx := context.Background()
	buyer := model.Actor{ID: uuid.New(), Role: model.RoleBuyer}
	order := &model.Order{ID: uuid.New(), BuyerID: buyer.ID, Status: model.StatusNew}

	orders := new(MockOrderRepository)
	storage := new(MockProofStorage)
	svc := NewPaymentProofService(orders, new(MockPaymentRepository), new(MockOutboxRepository), storage, zerolog.Nop())

	orders.On("GetByID", ctx, order.ID).Return(order, []model.OrderItem{}, nil)
	storage.On("Store", ctx, mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("bucket unavailable"))

	_, err := svc.SubmitPaymentProof(ctx, buyer, order.ID, validProofRequest(),
		&model.ProofImage{Filename: "a.png", ContentType: "image/png", Data: []byte{1}})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to store payment proof")
	orders.AssertNotCalled(t, "BeginTx", mock.Anything)
}

func TestPaymentProofService_Submit_StatusChangedAfterUpload(t *testing.T) {
	ctx := context.Background()
	buyer := model.Actor{ID: uuid.New(), Role: model.RoleBuyer}
	order := &model.Order{ID: uuid.New(), BuyerID: buyer.ID, Status: model.StatusWaitingPayment}
	paid := *order
	paid.Status = model.StatusPaid

	var logs bytes.Buffer
	orders := new(MockOrderRepository)
	payments := new(MockPaymentRepository)
	storage := new(MockProofStorage)
	tx := new(MockTx)
	svc := NewPaymentProofService(orders, payments, new(MockOutboxRepository), storage, zerolog.New(&logs))

	var storedKey string
	orders.On("GetByID", ctx, order.ID).Return(order, []model.OrderItem{}, nil)
	storage.On("Store", ctx, mock.Anything, "image/png", mock.Anything).
		Run(func(args mock.Arguments) { storedKey = args.String(1) }).
		Return("https://cdn.example.com/proofs/late.png", nil)
	orders.On("BeginTx", ctx).Return(tx, nil)
	orders.On("LockByID", ctx, tx, order.ID).Return(&paid, nil)
	tx.On("Rollback", ctx).Return(nil)

	_, err := svc.SubmitPaymentProof(ctx, buyer, order.ID, validProofRequest(),
		&model.ProofImage{Filename: "late.png", ContentType: "image/png", Data: []byte{1}})

	require.Error(t, err)
	assert.Equal(t, model.KindConflict, model.KindOf(err))
	payments.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
	require.NotEmpty(t, storedKey)
	assert.Contains(t, logs.String(), "orphaned payment proof image")
	assert.Contains(t, logs.String(), storedKey)
}

func TestPaymentProofService_List(t *testing.T) {
	ctx := context.Background()
	buyerID := uuid.New()
	order := &model.Order{ID: uuid.New(), BuyerID: buyerID, Status: model.StatusWaitingPayment}

	orders := new(MockOrderRepository)
	payments := new(MockPaymentRepository)
	svc := NewPaymentProofService(orders, payments, new(MockOutboxRepository), nil, zerolog.Nop())

	orders.On("GetByID", ctx, order.ID).Return(order, []model.OrderItem{}, nil)
	payments.On("ListByOrder", ctx, order.ID).Return([]model.PaymentConfirmation{{ID: uuid.New()}}, nil)

	got, err := svc.ListPaymentProofs(ctx, model.Actor{ID: buyerID, Role: model.RoleBuyer}, order.ID)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	_, err = svc.ListPaymentProofs(ctx, model.Actor{ID: uuid.New(), Role: model.RoleCourier}, order.ID)
	assert.Equal(t, model.KindPermission, model.KindOf(err))
}
