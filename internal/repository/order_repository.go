package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront-core/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// orderRepository implements the OrderRepository interface using PostgreSQL.
type orderRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewOrderRepository creates a new PostgreSQL-backed order repository.
func NewOrderRepository(pool *pgxpool.Pool, logger zerolog.Logger) OrderRepository {
	return &orderRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "order").Logger(),
	}
}

const orderColumns = `id, order_number, buyer_id, courier_id, status, payment_method,
	subtotal, shipping_cost, admin_fee, total, total_hpp, idempotency_key, notes,
	created_at, updated_at, assigned_at, picked_up_at, delivered_at, cancelled_at`

func scanOrder(row pgx.Row) (*model.Order, error) {
	var o model.Order
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.BuyerID, &o.CourierID, &o.Status, &o.PaymentMethod,
		&o.Subtotal, &o.ShippingCost, &o.AdminFee, &o.Total, &o.TotalHPP, &o.IdempotencyKey, &o.Notes,
		&o.CreatedAt, &o.UpdatedAt, &o.AssignedAt, &o.PickedUpAt, &o.DeliveredAt, &o.CancelledAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// queryOneOrder runs a single-row order query, mapping no rows to nil.
func (r *orderRepository) queryOneOrder(ctx context.Context, q pgx.Row, op string, id uuid.UUID) (*model.Order, error) {
	o, err := scanOrder(q)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error().Err(err).Str("order_id", id.String()).Msgf("failed to %s", op)
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}
	return o, nil
}

// BeginTx starts a new database transaction.
func (r *orderRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to begin transaction")
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return tx, nil
}

// NextOrderNumber renders ORD-YYYYMMDD-NNNNNN from a global sequence.
func (r *orderRepository) NextOrderNumber(ctx context.Context, tx pgx.Tx, at time.Time) (string, error) {
	var seq int64
	if err := tx.QueryRow(ctx, `SELECT nextval('order_number_seq')`).Scan(&seq); err != nil {
		r.logger.Error().Err(err).Msg("failed to allocate order number")
		return "", fmt.Errorf("failed to allocate order number: %w", err)
	}
	return fmt.Sprintf("ORD-%s-%06d", at.UTC().Format("20060102"), seq%1_000_000), nil
}

// CreateOrder inserts a new order within the provided transaction.
func (r *orderRepository) CreateOrder(ctx context.Context, tx pgx.Tx, order *model.Order) error {
	query := `
		INSERT INTO orders (id, order_number, buyer_id, courier_id, status, payment_method,
			subtotal, shipping_cost, admin_fee, total, total_hpp, idempotency_key, notes,
			created_at, updated_at, assigned_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	_, err := tx.Exec(ctx, query,
		order.ID, order.OrderNumber, order.BuyerID, order.CourierID, order.Status, order.PaymentMethod,
		order.Subtotal, order.ShippingCost, order.AdminFee, order.Total, order.TotalHPP,
		order.IdempotencyKey, order.Notes, order.CreatedAt, order.UpdatedAt, order.AssignedAt,
	)
	if err != nil {
		r.logger.Error().
			Err(err).
			Str("order_id", order.ID.String()).
			Msg("failed to create order")
		return fmt.Errorf("failed to create order: %w", err)
	}

	r.logger.Debug().
		Str("order_id", order.ID.String()).
		Str("order_number", order.OrderNumber).
		Msg("order created successfully")

	return nil
}

// CreateOrderItems inserts multiple order items within the provided transaction.
func (r *orderRepository) CreateOrderItems(ctx context.Context, tx pgx.Tx, items []model.OrderItem) error {
	if len(items) == 0 {
		return nil
	}

	query := `
		INSERT INTO order_items (id, order_id, product_id, quantity, price_at_order, hpp_at_order, subtotal)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	batch := &pgx.Batch{}
	for _, item := range items {
		batch.Queue(query, item.ID, item.OrderID, item.ProductID, item.Quantity,
			item.PriceAtOrder, item.HPPAtOrder, item.Subtotal)
	}

	results := tx.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < len(items); i++ {
		_, err := results.Exec()
		if err != nil {
			r.logger.Error().
				Err(err).
				Str("order_id", items[i].OrderID.String()).
				Str("product_id", items[i].ProductID.String()).
				Msg("failed to create order item")
			return fmt.Errorf("failed to create order item: %w", err)
		}
	}

	r.logger.Debug().
		Int("count", len(items)).
		Msg("order items created successfully")

	return nil
}

// CreateOrderAddress inserts the delivery address of an order.
func (r *orderRepository) CreateOrderAddress(ctx context.Context, tx pgx.Tx, addr *model.OrderAddress) error {
	query := `
		INSERT INTO order_addresses (order_id, recipient_name, phone, address_line, city, postal_code, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := tx.Exec(ctx, query, addr.OrderID, addr.RecipientName, addr.Phone, addr.AddressLine,
		addr.City, addr.PostalCode, addr.Notes)
	if err != nil {
		r.logger.Error().Err(err).Str("order_id", addr.OrderID.String()).Msg("failed to create order address")
		return fmt.Errorf("failed to create order address: %w", err)
	}
	return nil
}

// AppendHistory appends one status history row.
func (r *orderRepository) AppendHistory(ctx context.Context, tx pgx.Tx, h *model.StatusHistory) error {
	query := `
		INSERT INTO order_status_history (id, order_id, status, actor_id, actor_role, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := tx.Exec(ctx, query, h.ID, h.OrderID, h.Status, h.ActorID, h.ActorRole, h.Note, h.CreatedAt)
	if err != nil {
		r.logger.Error().
			Err(err).
			Str("order_id", h.OrderID.String()).
			Str("status", string(h.Status)).
			Msg("failed to append status history")
		return fmt.Errorf("failed to append status history: %w", err)
	}
	return nil
}

// LockByID reads an order under FOR UPDATE.
func (r *orderRepository) LockByID(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE`
	return r.queryOneOrder(ctx, tx.QueryRow(ctx, query, id), "lock order", id)
}

// UpdateStatus writes the next status and its timestamp only while the order
// is still in the expected status.
func (r *orderRepository) UpdateStatus(ctx context.Context, tx pgx.Tx, upd StatusUpdate) (*model.Order, error) {
	query := `
		UPDATE orders SET
			status       = $3,
			updated_at   = $4,
			courier_id   = COALESCE($5, courier_id),
			assigned_at  = CASE WHEN $3 = 'assigned' THEN $4 ELSE assigned_at END,
			picked_up_at = CASE WHEN $3 = 'picked_up' THEN $4 ELSE picked_up_at END,
			delivered_at = CASE WHEN $3 = 'delivered' THEN $4 ELSE delivered_at END,
			cancelled_at = CASE WHEN $3 IN ('cancelled', 'refunded', 'failed', 'returned') THEN $4 ELSE cancelled_at END
		WHERE id = $1 AND status = $2
		RETURNING ` + orderColumns

	row := tx.QueryRow(ctx, query, upd.OrderID, upd.Expected, upd.Next, upd.At, upd.CourierID)
	o, err := r.queryOneOrder(ctx, row, "update order status", upd.OrderID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		r.logger.Debug().
			Str("order_id", upd.OrderID.String()).
			Str("expected", string(upd.Expected)).
			Msg("status guard did not match")
	}
	return o, nil
}

// ClaimForCourier assigns a paid order that has no courier yet.
func (r *orderRepository) ClaimForCourier(ctx context.Context, tx pgx.Tx, id, courierID uuid.UUID, at time.Time) (*model.Order, error) {
	query := `
		UPDATE orders SET courier_id = $2, status = 'assigned', assigned_at = $3, updated_at = $3
		WHERE id = $1 AND status = 'paid' AND courier_id IS NULL
		RETURNING ` + orderColumns

	return r.queryOneOrder(ctx, tx.QueryRow(ctx, query, id, courierID, at), "claim order", id)
}

// ReassignCourier swaps the courier of an order still held by from.
func (r *orderRepository) ReassignCourier(ctx context.Context, tx pgx.Tx, id, from, to uuid.UUID, at time.Time) (*model.Order, error) {
	query := `
		UPDATE orders SET courier_id = $3, assigned_at = $4, updated_at = $4
		WHERE id = $1 AND courier_id = $2 AND status IN ('assigned', 'picked_up', 'on_delivery')
		RETURNING ` + orderColumns

	return r.queryOneOrder(ctx, tx.QueryRow(ctx, query, id, from, to, at), "reassign order", id)
}

// GetByID retrieves an order by its ID along with its items.
func (r *orderRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, []model.OrderItem, error) {
	orderQuery := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	order, err := r.queryOneOrder(ctx, r.pool.QueryRow(ctx, orderQuery, id), "query order", id)
	if err != nil {
		return nil, nil, err
	}
	if order == nil {
		r.logger.Debug().Str("order_id", id.String()).Msg("order not found")
		return nil, nil, nil
	}

	itemsQuery := `
		SELECT oi.id, oi.order_id, oi.product_id, p.name, oi.quantity, oi.price_at_order, oi.hpp_at_order, oi.subtotal
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = $1
		ORDER BY oi.id
	`

	rows, err := r.pool.Query(ctx, itemsQuery, id)
	if err != nil {
		r.logger.Error().
			Err(err).
			Str("order_id", id.String()).
			Msg("failed to query order items")
		return nil, nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	var items []model.OrderItem
	for rows.Next() {
		var item model.OrderItem
		err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.ProductName, &item.Quantity,
			&item.PriceAtOrder, &item.HPPAtOrder, &item.Subtotal)
		if err != nil {
			r.logger.Error().Err(err).Msg("failed to scan order item row")
			return nil, nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating order item rows")
		return nil, nil, fmt.Errorf("error iterating order items: %w", err)
	}

	return order, items, nil
}

// GetByIdempotencyKey finds an order previously created by the buyer with key.
func (r *orderRepository) GetByIdempotencyKey(ctx context.Context, buyerID uuid.UUID, key string) (*model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE buyer_id = $1 AND idempotency_key = $2`
	return r.queryOneOrder(ctx, r.pool.QueryRow(ctx, query, buyerID, key), "query order by idempotency key", buyerID)
}

// GetAddress retrieves the delivery address of an order.
func (r *orderRepository) GetAddress(ctx context.Context, orderID uuid.UUID) (*model.OrderAddress, error) {
	query := `
		SELECT order_id, recipient_name, phone, address_line, city, postal_code, notes
		FROM order_addresses WHERE order_id = $1
	`

	var a model.OrderAddress
	err := r.pool.QueryRow(ctx, query, orderID).Scan(
		&a.OrderID, &a.RecipientName, &a.Phone, &a.AddressLine, &a.City, &a.PostalCode, &a.Notes,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error().Err(err).Str("order_id", orderID.String()).Msg("failed to query order address")
		return nil, fmt.Errorf("failed to query order address: %w", err)
	}
	return &a, nil
}

// GetHistory retrieves the status log of an order, oldest first.
func (r *orderRepository) GetHistory(ctx context.Context, orderID uuid.UUID) ([]model.StatusHistory, error) {
	query := `
		SELECT id, order_id, status, actor_id, actor_role, note, created_at
		FROM order_status_history
		WHERE order_id = $1
		ORDER BY seq
	`

	rows, err := r.pool.Query(ctx, query, orderID)
	if err != nil {
		r.logger.Error().Err(err).Str("order_id", orderID.String()).Msg("failed to query status history")
		return nil, fmt.Errorf("failed to query status history: %w", err)
	}
	defer rows.Close()

	history := []model.StatusHistory{}
	for rows.Next() {
		var h model.StatusHistory
		if err := rows.Scan(&h.ID, &h.OrderID, &h.Status, &h.ActorID, &h.ActorRole, &h.Note, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan status history: %w", err)
		}
		history = append(history, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating status history: %w", err)
	}
	return history, nil
}

// ListAvailable lists paid orders no courier has taken yet, oldest first.
func (r *orderRepository) ListAvailable(ctx context.Context, limit int) ([]model.Order, error) {
	query := `
		SELECT ` + orderColumns + ` FROM orders
		WHERE status = 'paid' AND courier_id IS NULL
		ORDER BY created_at
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to query available orders")
		return nil, fmt.Errorf("failed to query available orders: %w", err)
	}
	defer rows.Close()

	orders := []model.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}
	return orders, nil
}

// GetDisplayInfo resolves the buyer name and the first product of an order.
func (r *orderRepository) GetDisplayInfo(ctx context.Context, orderID uuid.UUID) (*model.DisplayInfo, error) {
	query := `
		SELECT COALESCE(bp.full_name, ''), COALESCE(p.name, ''), p.photo_url
		FROM orders o
		LEFT JOIN buyer_profiles bp ON bp.user_id = o.buyer_id
		LEFT JOIN LATERAL (
			SELECT pr.name, pr.photo_url
			FROM order_items oi JOIN products pr ON pr.id = oi.product_id
			WHERE oi.order_id = o.id
			ORDER BY oi.id
			LIMIT 1
		) p ON TRUE
		WHERE o.id = $1
	`

	var info model.DisplayInfo
	err := r.pool.QueryRow(ctx, query, orderID).Scan(&info.BuyerName, &info.ProductName, &info.PhotoURL)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error().Err(err).Str("order_id", orderID.String()).Msg("failed to resolve display info")
		return nil, fmt.Errorf("failed to resolve display info: %w", err)
	}
	return &info, nil
}
