package service

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

// courierService implements CourierService.
type courierService struct {
	orderRepo repository.OrderRepository
	outbox    repository.OutboxRepository
	logger    zerolog.Logger
	now       func() time.Time
}

// NewCourierService creates a new courier assignment service.
func NewCourierService(orderRepo repository.OrderRepository, outbox repository.OutboxRepository, logger zerolog.Logger) CourierService {
	return &courierService{
		orderRepo: orderRepo,
		outbox:    outbox,
		logger:    logger.With().Str("service", "courier").Logger(),
		now:       time.Now,
	}
}

func (s *courierService) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return repository.RunInTx(ctx, repository.BeginFunc(s.orderRepo.BeginTx), fn)
}

// TakeOrder claims a paid order that no courier holds yet. Exactly one of
// many concurrent callers wins; the rest get ErrOrderTaken. Claiming an order
// the courier already holds returns it unchanged.
func (s *courierService) TakeOrder(ctx context.Context, actor model.Actor, orderID uuid.UUID) (*model.Order, error) {
	if !actor.IsCourier() {
		return nil, model.NewPermissionError("hanya kurir yang dapat mengambil pesanan")
	}

	var result *model.Order
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		now := s.now()
		claimed, err := s.orderRepo.ClaimForCourier(ctx, tx, orderID, actor.ID, now)
		if err != nil {
			return err
		}

		if claimed == nil {
			current, err := s.orderRepo.LockByID(ctx, tx, orderID)
			if err != nil {
				return err
			}
			switch {
			case current == nil:
				return model.ErrOrderNotFound
			case current.HasCourier(actor.ID):
				result = current
				return nil
			default:
				return model.ErrOrderTaken
			}
		}

		before := *claimed
		before.Status = model.StatusPaid
		before.CourierID = nil
		if err := appendTransition(ctx, tx, s.orderRepo, s.outbox, actor, &before, claimed, nil, now); err != nil {
			return err
		}
		result = claimed
		return nil
	})
	if err != nil {
		if model.KindOf(err) == "" {
			s.logger.Error().Err(err).Str("order_id", orderID.String()).Msg("failed to take order")
			return nil, fmt.Errorf("failed to take order: %w", err)
		}
		s.logger.Info().
			Err(err).
			Str("order_id", orderID.String()).
			Str("courier_id", actor.ID.String()).
			Msg("take order refused")
		return nil, err
	}

	s.logger.Info().
		Str("order_id", orderID.String()).
		Str("courier_id", actor.ID.String()).
		Msg("order taken")
	return result, nil
}

// Reassign moves an order between couriers, guarded on the current courier.
func (s *courierService) Reassign(ctx context.Context, actor model.Actor, orderID uuid.UUID, req *model.ReassignRequest) (*model.Order, error) {
	if !actor.IsAdmin() {
		return nil, model.NewPermissionError("hanya admin yang dapat mengalihkan kurir")
	}
	if req == nil || req.FromCourierID == uuid.Nil || req.ToCourierID == uuid.Nil {
		return nil, model.NewValidationError(model.ErrCodeMissingField, "kurir asal dan tujuan wajib diisi")
	}
	if req.FromCourierID == req.ToCourierID {
		return nil, model.NewValidationError(model.ErrCodeMissingField, "kurir tujuan harus berbeda")
	}

	var result *model.Order
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		now := s.now()
		moved, err := s.orderRepo.ReassignCourier(ctx, tx, orderID, req.FromCourierID, req.ToCourierID, now)
		if err != nil {
			return err
		}

		if moved == nil {
			current, err := s.orderRepo.LockByID(ctx, tx, orderID)
			if err != nil {
				return err
			}
			switch {
			case current == nil:
				return model.ErrOrderNotFound
			case current.HasCourier(req.ToCourierID):
				result = current
				return nil
			default:
				return model.ErrCourierMismatch
			}
		}

		before := *moved
		from := req.FromCourierID
		before.CourierID = &from
		note := "kurir dialihkan"
		if err := appendTransition(ctx, tx, s.orderRepo, s.outbox, actor, &before, moved, &note, now); err != nil {
			return err
		}
		result = moved
		return nil
	})
	if err != nil {
		if model.KindOf(err) == "" {
			s.logger.Error().Err(err).Str("order_id", orderID.String()).Msg("failed to reassign order")
			return nil, fmt.Errorf("failed to reassign order: %w", err)
		}
		return nil, err
	}

	s.logger.Info().
		Str("order_id", orderID.String()).
		Str("from_courier_id", req.FromCourierID.String()).
		Str("to_courier_id", req.ToCourierID.String()).
		Msg("order reassigned")
	return result, nil
}

// AvailableOrders lists paid orders without a courier.
func (s *courierService) AvailableOrders(ctx context.Context, actor model.Actor, limit int) ([]model.Order, error) {
	if !actor.IsCourier() && !actor.IsAdmin() {
		return nil, model.NewPermissionError("hanya kurir yang dapat melihat pesanan tersedia")
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	orders, err := s.orderRepo.ListAvailable(ctx, limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list available orders")
		return nil, fmt.Errorf("failed to list available orders: %w", err)
	}
	return orders, nil
}
