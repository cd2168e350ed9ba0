package service

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"storefront-core/internal/model"
	"storefront-core/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// paymentProofService implements PaymentProofService.
type paymentProofService struct {
	orderRepo   repository.OrderRepository
	paymentRepo repository.PaymentRepository
	outbox      repository.OutboxRepository
	storage     ProofStorage
	logger      zerolog.Logger
	now         func() time.Time
}

// NewPaymentProofService creates a new payment proof service. storage may be
// nil when proofs are submitted as URLs only.
func NewPaymentProofService(
	orderRepo repository.OrderRepository,
	paymentRepo repository.PaymentRepository,
	outbox repository.OutboxRepository,
	storage ProofStorage,
	logger zerolog.Logger,
) PaymentProofService {
	return &paymentProofService{
		orderRepo:   orderRepo,
		paymentRepo: paymentRepo,
		outbox:      outbox,
		storage:     storage,
		logger:      logger.With().Str("service", "payment_proof").Logger(),
		now:         time.Now,
	}
}

// SubmitPaymentProof records a buyer's transfer proof for an order that is
// still awaiting payment.
func (s *paymentProofService) SubmitPaymentProof(
	ctx context.Context,
	actor model.Actor,
	orderID uuid.UUID,
	req *model.PaymentProofRequest,
	image *model.ProofImage,
) (*model.PaymentConfirmation, error) {
	if !actor.IsBuyer() {
		return nil, model.NewPermissionError("hanya pembeli yang dapat mengirim bukti pembayaran")
	}
	if err := validateProofRequest(req); err != nil {
		return nil, err
	}

	order, _, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if order == nil {
		return nil, model.ErrOrderNotFound
	}
	if order.BuyerID != actor.ID {
		return nil, model.NewPermissionError("pesanan ini bukan milik Anda")
	}
	if !awaitsPayment(order.Status) {
		return nil, model.NewConflictError(model.ErrCodeInvalidStatus, "pesanan tidak sedang menunggu pembayaran")
	}

	now := s.now()
	confirmation := &model.PaymentConfirmation{
		ID:           uuid.New(),
		OrderID:      orderID,
		BuyerID:      actor.ID,
		Amount:       req.Amount.Round(2),
		BankName:     strings.TrimSpace(req.BankName),
		AccountName:  strings.TrimSpace(req.AccountName),
		TransferDate: req.TransferDate,
		ProofURL:     trimmedOrNil(req.ProofURL),
		Notes:        trimmedOrNil(req.Notes),
		CreatedAt:    now,
	}

	var storedKey string
	if image != nil && len(image.Data) > 0 {
		if s.storage == nil {
			return nil, model.NewValidationError(model.ErrCodeMissingField, "unggah gambar tidak didukung, kirim URL bukti")
		}
		key := fmt.Sprintf("%s/%s%s", orderID, confirmation.ID, path.Ext(image.Filename))
		url, err := s.storage.Store(ctx, key, image.ContentType, image.Data)
		if err != nil {
			s.logger.Error().Err(err).Str("order_id", orderID.String()).Msg("failed to store payment proof")
			return nil, fmt.Errorf("failed to store payment proof: %w", err)
		}
		confirmation.ProofURL = &url
		storedKey = key
	}

	err = repository.RunInTx(ctx, repository.BeginFunc(s.orderRepo.BeginTx), func(tx pgx.Tx) error {
		locked, err := s.orderRepo.LockByID(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if locked == nil {
			return model.ErrOrderNotFound
		}
		if !awaitsPayment(locked.Status) {
			return model.NewConflictError(model.ErrCodeInvalidStatus, "pesanan tidak sedang menunggu pembayaran")
		}

		if err := s.paymentRepo.Create(ctx, tx, confirmation); err != nil {
			return err
		}
		return s.outbox.Insert(ctx, tx, model.NewEvent(orderID, model.PaymentProofSubmitted{
			ConfirmationID: confirmation.ID,
			OrderID:        orderID,
			OrderNumber:    locked.OrderNumber,
			BuyerID:        actor.ID,
			Amount:         confirmation.Amount,
		}, now))
	})
	if err != nil {
		if storedKey != "" {
			s.logger.Warn().
				Err(err).
				Str("order_id", orderID.String()).
				Str("proof_key", storedKey).
				Str("proof_url", *confirmation.ProofURL).
				Msg("orphaned payment proof image")
		}
		if model.KindOf(err) == "" {
			s.logger.Error().Err(err).Str("order_id", orderID.String()).Msg("failed to record payment proof")
			return nil, fmt.Errorf("failed to record payment proof: %w", err)
		}
		return nil, err
	}

	s.logger.Info().
		Str("order_id", orderID.String()).
		Str("confirmation_id", confirmation.ID.String()).
		Bool("has_image", confirmation.ProofURL != nil).
		Msg("payment proof submitted")
	return confirmation, nil
}

// ListPaymentProofs returns the confirmations of an order to its buyer or an admin.
func (s *paymentProofService) ListPaymentProofs(ctx context.Context, actor model.Actor, orderID uuid.UUID) ([]model.PaymentConfirmation, error) {
	order, _, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if order == nil {
		return nil, model.ErrOrderNotFound
	}
	if !actor.IsAdmin() && !(actor.IsBuyer() && order.BuyerID == actor.ID) {
		return nil, model.NewPermissionError("tidak berhak melihat bukti pembayaran ini")
	}
	return s.paymentRepo.ListByOrder(ctx, orderID)
}

func awaitsPayment(status model.OrderStatus) bool {
	return status == model.StatusNew || status == model.StatusWaitingPayment
}

func validateProofRequest(req *model.PaymentProofRequest) error {
	if req == nil {
		return model.NewValidationError(model.ErrCodeInvalidJSON, "permintaan tidak boleh kosong")
	}
	if !req.Amount.IsPositive() {
		return model.NewValidationError(model.ErrCodeInvalidAmount, "jumlah transfer harus lebih dari nol")
	}
	if strings.TrimSpace(req.BankName) == "" || strings.TrimSpace(req.AccountName) == "" {
		return model.NewValidationError(model.ErrCodeMissingField, "nama bank dan nama rekening wajib diisi")
	}
	if req.TransferDate.IsZero() {
		return model.NewValidationError(model.ErrCodeMissingField, "tanggal transfer wajib diisi")
	}
	return nil
}
