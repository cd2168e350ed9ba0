package service

import (
	"context"

	"storefront-core/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// PayoutLedger is the commission ledger's payout surface.
type PayoutLedger interface {
	Summary(ctx context.Context, buyerID uuid.UUID) (*model.CommissionSummary, error)
	RequestPayout(ctx context.Context, buyerID uuid.UUID, req *model.PayoutCreateRequest) (*model.PayoutRequest, error)
	ResolvePayout(ctx context.Context, payoutID uuid.UUID, to model.PayoutStatus, reason *string) (*model.PayoutRequest, error)
	Reconcile(ctx context.Context, buyerID uuid.UUID) (*model.Reconciliation, error)
}

// payoutService implements PayoutService.
type payoutService struct {
	ledger PayoutLedger
	logger zerolog.Logger
}

// NewPayoutService creates a new payout service.
func NewPayoutService(ledger PayoutLedger, logger zerolog.Logger) PayoutService {
	return &payoutService{
		ledger: ledger,
		logger: logger.With().Str("service", "payout").Logger(),
	}
}

func (s *payoutService) Summary(ctx context.Context, actor model.Actor) (*model.CommissionSummary, error) {
	if !actor.IsBuyer() {
		return nil, model.NewPermissionError("hanya pembeli yang memiliki komisi")
	}
	return s.ledger.Summary(ctx, actor.ID)
}

func (s *payoutService) RequestPayout(ctx context.Context, actor model.Actor, req *model.PayoutCreateRequest) (*model.PayoutRequest, error) {
	if !actor.IsBuyer() {
		return nil, model.NewPermissionError("hanya pembeli yang dapat mencairkan komisi")
	}
	return s.ledger.RequestPayout(ctx, actor.ID, req)
}

func (s *payoutService) ResolvePayout(ctx context.Context, actor model.Actor, payoutID uuid.UUID, req *model.PayoutResolveRequest) (*model.PayoutRequest, error) {
	if !actor.IsAdmin() {
		return nil, model.NewPermissionError("hanya admin yang dapat memproses pencairan")
	}
	if req == nil {
		return nil, model.NewValidationError(model.ErrCodeInvalidJSON, "permintaan tidak boleh kosong")
	}
	to, err := model.ParsePayoutStatus(req.Status)
	if err != nil {
		return nil, err
	}
	if to == model.PayoutPending {
		return nil, model.NewValidationError(model.ErrCodeInvalidStatus, "keputusan harus approved, rejected, atau completed")
	}

	payout, err := s.ledger.ResolvePayout(ctx, payoutID, to, req.Reason)
	if err != nil {
		s.logger.Warn().Err(err).Str("payout_id", payoutID.String()).Str("status", req.Status).Msg("payout decision refused")
		return nil, err
	}
	return payout, nil
}

func (s *payoutService) Reconcile(ctx context.Context, actor model.Actor, buyerID uuid.UUID) (*model.Reconciliation, error) {
	if !actor.IsAdmin() {
		return nil, model.NewPermissionError("hanya admin yang dapat merekonsiliasi komisi")
	}
	return s.ledger.Reconcile(ctx, buyerID)
}
