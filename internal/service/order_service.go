package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront-core/internal/model"
	"storefront-core/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const idempotencyConstraint = "orders_idempotency_key_unique"

// orderService implements OrderService.
type orderService struct {
	orderRepo   repository.OrderRepository
	productRepo repository.ProductRepository
	outbox      repository.OutboxRepository
	stock       StockLedger
	commission  CommissionBook
	fees        Fees
	logger      zerolog.Logger
	now         func() time.Time
}

// NewOrderService creates a new order service.
func NewOrderService(
	orderRepo repository.OrderRepository,
	productRepo repository.ProductRepository,
	outbox repository.OutboxRepository,
	stock StockLedger,
	commission CommissionBook,
	fees Fees,
	logger zerolog.Logger,
) OrderService {
	return &orderService{
		orderRepo:   orderRepo,
		productRepo: productRepo,
		outbox:      outbox,
		stock:       stock,
		commission:  commission,
		fees:        fees,
		logger:      logger.With().Str("service", "order").Logger(),
		now:         time.Now,
	}
}

func (s *orderService) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return repository.RunInTx(ctx, repository.BeginFunc(s.orderRepo.BeginTx), fn)
}

// CreateOrder places a buyer's order, freezing current prices into its items.
func (s *orderService) CreateOrder(ctx context.Context, actor model.Actor, req *model.OrderRequest) (*model.OrderResponse, error) {
	if !actor.IsBuyer() {
		return nil, model.NewPermissionError("hanya pembeli yang dapat membuat pesanan")
	}

	method, err := s.validateOrderRequest(req)
	if err != nil {
		return nil, err
	}

	key := idempotencyKey(req)
	if key != nil {
		existing, err := s.orderRepo.GetByIdempotencyKey(ctx, actor.ID, *key)
		if err != nil {
			return nil, fmt.Errorf("failed to create order: %w", err)
		}
		if existing != nil {
			s.logger.Info().
				Str("order_id", existing.ID.String()).
				Str("idempotency_key", *key).
				Msg("returning order for repeated idempotency key")
			return s.loadOrder(ctx, existing.ID)
		}
	}

	products, err := s.loadProducts(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	now := s.now()
	order := &model.Order{
		ID:             uuid.New(),
		BuyerID:        actor.ID,
		Status:         method.InitialStatus(),
		PaymentMethod:  method,
		ShippingCost:   s.fees.ShippingCost,
		AdminFee:       s.fees.AdminFee,
		IdempotencyKey: key,
		Notes:          trimmedOrNil(req.Notes),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	subtotal, totalHPP := decimal.Zero, decimal.Zero
	items := make([]model.OrderItem, len(req.Items))
	for i, line := range req.Items {
		p := products[line.ProductID]
		qty := decimal.NewFromInt(int64(line.Quantity))
		items[i] = model.OrderItem{
			ID:           uuid.New(),
			OrderID:      order.ID,
			ProductID:    p.ID,
			ProductName:  p.Name,
			Quantity:     line.Quantity,
			PriceAtOrder: p.Price,
			HPPAtOrder:   p.HPP,
			Subtotal:     p.Price.Mul(qty),
		}
		subtotal = subtotal.Add(items[i].Subtotal)
		totalHPP = totalHPP.Add(p.HPP.Mul(qty))
	}
	order.Subtotal = subtotal
	order.TotalHPP = totalHPP
	order.Total = subtotal.Add(order.ShippingCost).Add(order.AdminFee)

	addr := &model.OrderAddress{
		OrderID:       order.ID,
		RecipientName: strings.TrimSpace(req.Address.RecipientName),
		Phone:         strings.TrimSpace(req.Address.Phone),
		AddressLine:   strings.TrimSpace(req.Address.AddressLine),
		City:          strings.TrimSpace(req.Address.City),
		PostalCode:    strings.TrimSpace(req.Address.PostalCode),
		Notes:         trimmedOrNil(req.Address.Notes),
	}
	history := model.StatusHistory{
		ID:        uuid.New(),
		OrderID:   order.ID,
		Status:    order.Status,
		ActorID:   actor.ID,
		ActorRole: actor.Role,
		CreatedAt: now,
	}

	err = s.inTx(ctx, func(tx pgx.Tx) error {
		number, err := s.orderRepo.NextOrderNumber(ctx, tx, now)
		if err != nil {
			return err
		}
		order.OrderNumber = number

		if err := s.orderRepo.CreateOrder(ctx, tx, order); err != nil {
			return err
		}
		if err := s.orderRepo.CreateOrderItems(ctx, tx, items); err != nil {
			return err
		}
		if err := s.orderRepo.CreateOrderAddress(ctx, tx, addr); err != nil {
			return err
		}

		// instant-settlement orders start paid and take the paid side effects now
		if order.Status == model.StatusPaid {
			if err := s.applySideEffects(ctx, tx, model.StatusNew, order, now); err != nil {
				return err
			}
		}

		if err := s.orderRepo.AppendHistory(ctx, tx, &history); err != nil {
			return err
		}

		return s.outbox.Insert(ctx, tx, model.NewEvent(order.ID, model.OrderCreated{
			OrderID:       order.ID,
			OrderNumber:   order.OrderNumber,
			BuyerID:       order.BuyerID,
			Status:        order.Status,
			PaymentMethod: order.PaymentMethod,
			Total:         order.Total,
		}, now))
	})
	if err != nil {
		if key != nil && isIdempotencyConflict(err) {
			existing, lookupErr := s.orderRepo.GetByIdempotencyKey(ctx, actor.ID, *key)
			if lookupErr == nil && existing != nil {
				return s.loadOrder(ctx, existing.ID)
			}
		}
		if model.KindOf(err) == "" {
			s.logger.Error().Err(err).Str("order_id", order.ID.String()).Msg("failed to create order")
			return nil, fmt.Errorf("failed to create order: %w", err)
		}
		s.logger.Warn().Err(err).Str("buyer_id", actor.ID.String()).Msg("order rejected")
		return nil, err
	}

	s.logger.Info().
		Str("order_id", order.ID.String()).
		Str("order_number", order.OrderNumber).
		Str("status", string(order.Status)).
		Int("item_count", len(items)).
		Msg("order created successfully")

	return &model.OrderResponse{
		Order:   order,
		Items:   items,
		Address: addr,
		History: []model.StatusHistory{history},
	}, nil
}

// ApplyTransition moves an order to req.Status. The current status is read
// under a row lock and the write is guarded on it, so concurrent callers are
// linearised per order.
func (s *orderService) ApplyTransition(ctx context.Context, actor model.Actor, orderID uuid.UUID, req *model.TransitionRequest) (*model.Order, error) {
	if req == nil {
		return nil, model.NewValidationError(model.ErrCodeInvalidJSON, "permintaan tidak boleh kosong")
	}
	target, err := model.ParseOrderStatus(req.Status)
	if err != nil {
		return nil, err
	}

	var result *model.Order
	err = s.inTx(ctx, func(tx pgx.Tx) error {
		current, err := s.orderRepo.LockByID(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if current == nil {
			return model.ErrOrderNotFound
		}
		if err := authorizeTransition(actor, current, target); err != nil {
			return err
		}

		if current.Status == target {
			if target == model.StatusAssigned && req.CourierID != nil && !current.HasCourier(*req.CourierID) {
				return model.ErrOrderTaken
			}
			result = current
			return nil
		}
		if !model.CanTransition(current.Status, target) {
			return model.NewInvalidTransitionError(current.Status, target)
		}

		now := s.now()
		var updated *model.Order
		if target == model.StatusAssigned {
			if req.CourierID == nil || *req.CourierID == uuid.Nil {
				return model.NewValidationError(model.ErrCodeMissingField, "kurir wajib dipilih")
			}
			updated, err = s.orderRepo.ClaimForCourier(ctx, tx, orderID, *req.CourierID, now)
			if err != nil {
				return err
			}
			if updated == nil {
				return model.ErrOrderTaken
			}
		} else {
			updated, err = s.orderRepo.UpdateStatus(ctx, tx, repository.StatusUpdate{
				OrderID:  orderID,
				Expected: current.Status,
				Next:     target,
				At:       now,
			})
			if err != nil {
				return err
			}
			if updated == nil {
				return model.NewConflictError(model.ErrCodeInvalidTransition, "status pesanan sudah berubah, silakan muat ulang")
			}
		}

		if err := s.applySideEffects(ctx, tx, current.Status, updated, now); err != nil {
			return err
		}

		if err := appendTransition(ctx, tx, s.orderRepo, s.outbox, actor, current, updated, req.Note, now); err != nil {
			return err
		}
		result = updated
		return nil
	})
	if err != nil {
		if model.KindOf(err) == "" {
			s.logger.Error().
				Err(err).
				Str("order_id", orderID.String()).
				Str("target", string(target)).
				Msg("failed to apply transition")
			return nil, fmt.Errorf("failed to apply transition: %w", err)
		}
		s.logger.Warn().
			Err(err).
			Str("order_id", orderID.String()).
			Str("target", string(target)).
			Str("actor_role", string(actor.Role)).
			Msg("transition rejected")
		return nil, err
	}

	s.logger.Info().
		Str("order_id", orderID.String()).
		Str("status", string(result.Status)).
		Str("actor_id", actor.ID.String()).
		Msg("order transition applied")
	return result, nil
}

// applySideEffects runs the ledger operations keyed by the status order has
// just entered. Ending an order that never held stock touches neither ledger,
// since reservation and accrual both happen on entering paid.
func (s *orderService) applySideEffects(ctx context.Context, tx pgx.Tx, from model.OrderStatus, order *model.Order, at time.Time) error {
	switch {
	case order.Status == model.StatusPaid:
		if err := s.stock.Reserve(ctx, tx, order.ID); err != nil {
			return err
		}
		return s.commission.Accrue(ctx, tx, order, at)
	case order.Status == model.StatusDelivered:
		if err := s.stock.Deduct(ctx, tx, order.ID, at); err != nil {
			return err
		}
		return s.commission.Promote(ctx, tx, order, at)
	case order.Status.EndsDelivery() && from.ReservesStock():
		if err := s.stock.Release(ctx, tx, order.ID); err != nil {
			return err
		}
		return s.commission.Reverse(ctx, tx, order, at)
	}
	return nil
}

// GetOrder returns an order visible to the actor.
func (s *orderService) GetOrder(ctx context.Context, actor model.Actor, orderID uuid.UUID) (*model.OrderResponse, error) {
	resp, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	order := resp.Order
	switch {
	case actor.IsAdmin():
	case actor.IsBuyer() && order.BuyerID == actor.ID:
	case actor.IsCourier() && (order.HasCourier(actor.ID) || (order.Status == model.StatusPaid && order.CourierID == nil)):
	default:
		return nil, model.NewPermissionError("tidak berhak melihat pesanan ini")
	}
	return resp, nil
}

func (s *orderService) loadOrder(ctx context.Context, orderID uuid.UUID) (*model.OrderResponse, error) {
	order, items, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		s.logger.Error().Err(err).Str("order_id", orderID.String()).Msg("failed to get order")
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if order == nil {
		return nil, model.ErrOrderNotFound
	}

	addr, err := s.orderRepo.GetAddress(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order address: %w", err)
	}
	history, err := s.orderRepo.GetHistory(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order history: %w", err)
	}

	return &model.OrderResponse{
		Order:   order,
		Items:   items,
		Address: addr,
		History: history,
	}, nil
}

// loadProducts fetches every product referenced by items and checks that it
// can be sold.
func (s *orderService) loadProducts(ctx context.Context, items []model.OrderItemRequest) (map[uuid.UUID]*model.Product, error) {
	ids := make([]uuid.UUID, 0, len(items))
	seen := make(map[uuid.UUID]bool, len(items))
	for _, item := range items {
		if !seen[item.ProductID] {
			seen[item.ProductID] = true
			ids = append(ids, item.ProductID)
		}
	}

	products, err := s.productRepo.GetByIDs(ctx, ids)
	if err != nil {
		s.logger.Error().Err(err).Int("product_count", len(ids)).Msg("failed to retrieve products")
		return nil, fmt.Errorf("failed to retrieve products: %w", err)
	}

	byID := make(map[uuid.UUID]*model.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}
	for _, id := range ids {
		p, ok := byID[id]
		if !ok {
			return nil, model.NewNotFoundError(model.ErrCodeProductNotFound, "produk tidak ditemukan: "+id.String())
		}
		if !p.IsActive {
			return nil, model.NewValidationError(model.ErrCodeProductInactive, "produk tidak tersedia: "+p.Name)
		}
	}
	return byID, nil
}

// validateOrderRequest checks the request shape before any read or write.
func (s *orderService) validateOrderRequest(req *model.OrderRequest) (model.PaymentMethod, error) {
	if req == nil {
		return "", model.NewValidationError(model.ErrCodeInvalidJSON, "permintaan tidak boleh kosong")
	}

	if len(req.Items) == 0 {
		return "", model.NewValidationError(model.ErrCodeMissingField, "pesanan harus berisi minimal satu produk")
	}

	for i, item := range req.Items {
		if item.ProductID == uuid.Nil {
			return "", model.NewValidationError(model.ErrCodeMissingField, fmt.Sprintf("item %d: produk wajib diisi", i))
		}
		if item.Quantity <= 0 {
			s.logger.Warn().
				Int("item_index", i).
				Str("product_id", item.ProductID.String()).
				Int("quantity", item.Quantity).
				Msg("invalid quantity")
			return "", model.ErrInvalidQuantity
		}
	}

	a := req.Address
	for _, field := range []struct{ name, value string }{
		{"nama penerima", a.RecipientName},
		{"telepon", a.Phone},
		{"alamat", a.AddressLine},
		{"kota", a.City},
		{"kode pos", a.PostalCode},
	} {
		if strings.TrimSpace(field.value) == "" {
			return "", model.NewValidationError(model.ErrCodeMissingField, field.name+" wajib diisi")
		}
	}

	return model.ParsePaymentMethod(req.PaymentMethod)
}

// authorizeTransition enforces who may move an order where. Admins may apply
// any allowed transition.
func authorizeTransition(actor model.Actor, order *model.Order, target model.OrderStatus) error {
	switch actor.Role {
	case model.RoleAdmin:
		return nil
	case model.RoleCourier:
		switch target {
		case model.StatusPickedUp, model.StatusOnDelivery, model.StatusDelivered,
			model.StatusFailed, model.StatusReturned:
			if order.HasCourier(actor.ID) {
				return nil
			}
			return model.NewPermissionError("pesanan ini bukan tugas Anda")
		}
		return model.NewPermissionError("kurir tidak dapat mengubah pesanan ke status " + string(target))
	case model.RoleBuyer:
		if order.BuyerID != actor.ID {
			return model.NewPermissionError("pesanan ini bukan milik Anda")
		}
		if target != model.StatusCancelled {
			return model.NewPermissionError("pembeli hanya dapat membatalkan pesanan")
		}
		switch order.Status {
		case model.StatusNew, model.StatusWaitingPayment, model.StatusCancelled:
			return nil
		}
		return model.NewPermissionError("pesanan yang sudah dibayar tidak dapat dibatalkan pembeli")
	}
	return model.NewPermissionError("peran tidak dikenal")
}

func idempotencyKey(req *model.OrderRequest) *string {
	return trimmedOrNil(req.IdempotencyKey)
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func isIdempotencyConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == idempotencyConstraint
}
