package service

import (
	"context"
	"strings"

	"storefront-core/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// InventoryBook is the admin surface of the inventory ledger.
type InventoryBook interface {
	Stock(ctx context.Context, productID uuid.UUID) (*model.StockView, error)
	Move(ctx context.Context, productID uuid.UUID, typ model.MovementType, qty int, reason string) (*model.InventoryMovement, error)
	Movements(ctx context.Context, productID uuid.UUID, limit int) ([]model.InventoryMovement, error)
	LowStock(ctx context.Context) ([]model.StockView, error)
	VerifyChain(ctx context.Context, productID uuid.UUID) (*model.ChainBreak, error)
}

// catalogService implements CatalogService.
type catalogService struct {
	inventory InventoryBook
	logger    zerolog.Logger
}

// NewCatalogService creates a new catalog service.
func NewCatalogService(inventory InventoryBook, logger zerolog.Logger) CatalogService {
	return &catalogService{
		inventory: inventory,
		logger:    logger.With().Str("service", "catalog").Logger(),
	}
}

func requireAdmin(actor model.Actor) error {
	if !actor.IsAdmin() {
		return model.NewPermissionError("hanya admin yang dapat mengelola stok")
	}
	return nil
}

func (s *catalogService) Stock(ctx context.Context, actor model.Actor, productID uuid.UUID) (*model.StockView, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.inventory.Stock(ctx, productID)
}

func (s *catalogService) Move(ctx context.Context, actor model.Actor, productID uuid.UUID, req *model.MovementRequest) (*model.InventoryMovement, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if req == nil {
		return nil, model.NewValidationError(model.ErrCodeInvalidJSON, "permintaan tidak boleh kosong")
	}
	typ, err := model.ParseMovementType(req.Type)
	if err != nil {
		return nil, err
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, model.NewValidationError(model.ErrCodeMissingField, "alasan pergerakan stok wajib diisi")
	}

	movement, err := s.inventory.Move(ctx, productID, typ, req.Quantity, reason)
	if err != nil {
		s.logger.Warn().Err(err).Str("product_id", productID.String()).Str("type", req.Type).Msg("stock movement refused")
		return nil, err
	}
	return movement, nil
}

func (s *catalogService) Movements(ctx context.Context, actor model.Actor, productID uuid.UUID, limit int) ([]model.InventoryMovement, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.inventory.Movements(ctx, productID, limit)
}

func (s *catalogService) LowStock(ctx context.Context, actor model.Actor) ([]model.StockView, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.inventory.LowStock(ctx)
}

func (s *catalogService) VerifyChain(ctx context.Context, actor model.Actor, productID uuid.UUID) (*model.ChainReport, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	brk, err := s.inventory.VerifyChain(ctx, productID)
	if err != nil {
		return nil, err
	}
	if brk != nil {
		s.logger.Error().
			Str("product_id", productID.String()).
			Int("expected", brk.Expected).
			Int("actual", brk.Actual).
			Msg(brk.Detail)
	}
	return &model.ChainReport{ProductID: productID, Intact: brk == nil, Break: brk}, nil
}
