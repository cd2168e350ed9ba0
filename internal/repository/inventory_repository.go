package repository

import (
	"context"
	"errors"
	"fmt"

	"storefront-core/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// inventoryRepository implements the InventoryRepository interface using PostgreSQL.
type inventoryRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewInventoryRepository creates a new PostgreSQL-backed inventory repository.
func NewInventoryRepository(pool *pgxpool.Pool, logger zerolog.Logger) InventoryRepository {
	return &inventoryRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "inventory").Logger(),
	}
}

const inventoryColumns = `i.product_id, p.name, i.quantity, i.reserved_quantity, i.min_stock, i.updated_at`

func scanInventory(row pgx.Row) (*model.Inventory, error) {
	var inv model.Inventory
	if err := row.Scan(&inv.ProductID, &inv.ProductName, &inv.Quantity, &inv.ReservedQuantity,
		&inv.MinStock, &inv.UpdatedAt); err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *inventoryRepository) queryOne(row pgx.Row, productID uuid.UUID, op string) (*model.Inventory, error) {
	inv, err := scanInventory(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error().Err(err).Str("product_id", productID.String()).Msgf("failed to %s", op)
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}
	return inv, nil
}

// Get retrieves the stock row of a product.
func (r *inventoryRepository) Get(ctx context.Context, productID uuid.UUID) (*model.Inventory, error) {
	query := `SELECT ` + inventoryColumns + `
		FROM inventory i JOIN products p ON p.id = i.product_id
		WHERE i.product_id = $1`
	return r.queryOne(r.pool.QueryRow(ctx, query, productID), productID, "query inventory")
}

// EnsureRow creates an empty stock row for a product if none exists.
func (r *inventoryRepository) EnsureRow(ctx context.Context, tx pgx.Tx, productID uuid.UUID) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO inventory (product_id) VALUES ($1) ON CONFLICT (product_id) DO NOTHING`, productID)
	if err != nil {
		r.logger.Error().Err(err).Str("product_id", productID.String()).Msg("failed to ensure inventory row")
		return fmt.Errorf("failed to ensure inventory row: %w", err)
	}
	return nil
}

// LockRow reads a stock row under FOR UPDATE.
func (r *inventoryRepository) LockRow(ctx context.Context, tx pgx.Tx, productID uuid.UUID) (*model.Inventory, error) {
	query := `SELECT ` + inventoryColumns + `
		FROM inventory i JOIN products p ON p.id = i.product_id
		WHERE i.product_id = $1
		FOR UPDATE OF i`
	return r.queryOne(tx.QueryRow(ctx, query, productID), productID, "lock inventory")
}

// OrderQuantities sums an order's items per product, ordered by product id so
// concurrent orders lock inventory rows in the same order.
func (r *inventoryRepository) OrderQuantities(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) ([]ProductQuantity, error) {
	query := `
		SELECT oi.product_id, p.name, SUM(oi.quantity)::int
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = $1
		GROUP BY oi.product_id, p.name
		ORDER BY oi.product_id
	`

	rows, err := tx.Query(ctx, query, orderID)
	if err != nil {
		r.logger.Error().Err(err).Str("order_id", orderID.String()).Msg("failed to query order quantities")
		return nil, fmt.Errorf("failed to query order quantities: %w", err)
	}
	defer rows.Close()

	var out []ProductQuantity
	for rows.Next() {
		var pq ProductQuantity
		if err := rows.Scan(&pq.ProductID, &pq.ProductName, &pq.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan order quantity: %w", err)
		}
		out = append(out, pq)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order quantities: %w", err)
	}
	return out, nil
}

// IncrementReserved reserves qty if it still fits under on-hand quantity.
func (r *inventoryRepository) IncrementReserved(ctx context.Context, tx pgx.Tx, productID uuid.UUID, qty int) (bool, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE inventory
		SET reserved_quantity = reserved_quantity + $2, updated_at = NOW()
		WHERE product_id = $1 AND reserved_quantity + $2 <= quantity
	`, productID, qty)
	if err != nil {
		r.logger.Error().Err(err).Str("product_id", productID.String()).Msg("failed to reserve stock")
		return false, fmt.Errorf("failed to reserve stock: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// DecrementReserved releases qty, never going below zero.
func (r *inventoryRepository) DecrementReserved(ctx context.Context, tx pgx.Tx, productID uuid.UUID, qty int) error {
	_, err := tx.Exec(ctx, `
		UPDATE inventory
		SET reserved_quantity = GREATEST(reserved_quantity - $2, 0), updated_at = NOW()
		WHERE product_id = $1
	`, productID, qty)
	if err != nil {
		r.logger.Error().Err(err).Str("product_id", productID.String()).Msg("failed to release stock")
		return fmt.Errorf("failed to release stock: %w", err)
	}
	return nil
}

// ApplyDeduction removes qty from on-hand stock and reserved from the
// reservation, returning the quantity before and after.
func (r *inventoryRepository) ApplyDeduction(ctx context.Context, tx pgx.Tx, productID uuid.UUID, qty, reserved int) (int, int, bool, error) {
	var before, after int
	err := tx.QueryRow(ctx, `
		UPDATE inventory
		SET quantity = quantity - $2,
			reserved_quantity = GREATEST(reserved_quantity - $3, 0),
			updated_at = NOW()
		WHERE product_id = $1
			AND quantity - $2 >= GREATEST(reserved_quantity - $3, 0)
		RETURNING quantity + $2, quantity
	`, productID, qty, reserved).Scan(&before, &after)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, 0, false, nil
		}
		r.logger.Error().Err(err).Str("product_id", productID.String()).Msg("failed to deduct stock")
		return 0, 0, false, fmt.Errorf("failed to deduct stock: %w", err)
	}
	return before, after, true, nil
}

// SetQuantity overwrites on-hand quantity of a locked row.
func (r *inventoryRepository) SetQuantity(ctx context.Context, tx pgx.Tx, productID uuid.UUID, quantity int) error {
	_, err := tx.Exec(ctx,
		`UPDATE inventory SET quantity = $2, updated_at = NOW() WHERE product_id = $1`, productID, quantity)
	if err != nil {
		r.logger.Error().Err(err).Str("product_id", productID.String()).Msg("failed to set stock quantity")
		return fmt.Errorf("failed to set stock quantity: %w", err)
	}
	return nil
}

// InsertMovement appends a movement row.
func (r *inventoryRepository) InsertMovement(ctx context.Context, tx pgx.Tx, m *model.InventoryMovement) error {
	query := `
		INSERT INTO inventory_movements (id, product_id, type, quantity, quantity_before, quantity_after,
			reason, reference_order_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := tx.Exec(ctx, query, m.ID, m.ProductID, m.Type, m.Quantity, m.QuantityBefore, m.QuantityAfter,
		m.Reason, m.ReferenceOrderID, m.CreatedAt)
	if err != nil {
		r.logger.Error().Err(err).Str("product_id", m.ProductID.String()).Msg("failed to insert movement")
		return fmt.Errorf("failed to insert movement: %w", err)
	}
	return nil
}

const movementColumns = `id, product_id, type, quantity, quantity_before, quantity_after, reason, reference_order_id, created_at`

func (r *inventoryRepository) queryMovements(ctx context.Context, query string, args ...any) ([]model.InventoryMovement, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to query movements")
		return nil, fmt.Errorf("failed to query movements: %w", err)
	}
	defer rows.Close()

	movements := []model.InventoryMovement{}
	for rows.Next() {
		var m model.InventoryMovement
		if err := rows.Scan(&m.ID, &m.ProductID, &m.Type, &m.Quantity, &m.QuantityBefore, &m.QuantityAfter,
			&m.Reason, &m.ReferenceOrderID, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan movement: %w", err)
		}
		movements = append(movements, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating movements: %w", err)
	}
	return movements, nil
}

// ListMovements returns the latest movements of a product, newest first.
func (r *inventoryRepository) ListMovements(ctx context.Context, productID uuid.UUID, limit int) ([]model.InventoryMovement, error) {
	return r.queryMovements(ctx,
		`SELECT `+movementColumns+` FROM inventory_movements WHERE product_id = $1 ORDER BY seq DESC LIMIT $2`,
		productID, limit)
}

// ChainMovements returns every movement of a product, oldest first.
func (r *inventoryRepository) ChainMovements(ctx context.Context, productID uuid.UUID) ([]model.InventoryMovement, error) {
	return r.queryMovements(ctx,
		`SELECT `+movementColumns+` FROM inventory_movements WHERE product_id = $1 ORDER BY seq`,
		productID)
}

// ListLowStock returns rows whose available stock is at or below min_stock.
func (r *inventoryRepository) ListLowStock(ctx context.Context) ([]model.Inventory, error) {
	query := `SELECT ` + inventoryColumns + `
		FROM inventory i JOIN products p ON p.id = i.product_id
		WHERE p.is_active AND i.quantity - i.reserved_quantity <= i.min_stock
		ORDER BY i.quantity - i.reserved_quantity, p.name`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to query low stock")
		return nil, fmt.Errorf("failed to query low stock: %w", err)
	}
	defer rows.Close()

	out := []model.Inventory{}
	for rows.Next() {
		inv, err := scanInventory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan inventory: %w", err)
		}
		out = append(out, *inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating inventory: %w", err)
	}
	return out, nil
}

// InsertReservations records per-order reservations.
func (r *inventoryRepository) InsertReservations(ctx context.Context, tx pgx.Tx, rs []model.Reservation) error {
	if len(rs) == 0 {
		return nil
	}

	query := `
		INSERT INTO inventory_reservations (order_id, product_id, quantity, status)
		VALUES ($1, $2, $3, $4)
	`

	batch := &pgx.Batch{}
	for _, res := range rs {
		batch.Queue(query, res.OrderID, res.ProductID, res.Quantity, res.Status)
	}

	results := tx.SendBatch(ctx, batch)
	defer results.Close()

	for i := range rs {
		if _, err := results.Exec(); err != nil {
			r.logger.Error().
				Err(err).
				Str("order_id", rs[i].OrderID.String()).
				Str("product_id", rs[i].ProductID.String()).
				Msg("failed to record reservation")
			return fmt.Errorf("failed to record reservation: %w", err)
		}
	}
	return nil
}

// ListReservations returns every reservation of an order, ordered by product id.
func (r *inventoryRepository) ListReservations(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) ([]model.Reservation, error) {
	rows, err := tx.Query(ctx, `
		SELECT order_id, product_id, quantity, status
		FROM inventory_reservations
		WHERE order_id = $1
		ORDER BY product_id
	`, orderID)
	if err != nil {
		r.logger.Error().Err(err).Str("order_id", orderID.String()).Msg("failed to query reservations")
		return nil, fmt.Errorf("failed to query reservations: %w", err)
	}
	defer rows.Close()

	var out []model.Reservation
	for rows.Next() {
		var res model.Reservation
		if err := rows.Scan(&res.OrderID, &res.ProductID, &res.Quantity, &res.Status); err != nil {
			return nil, fmt.Errorf("failed to scan reservation: %w", err)
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reservations: %w", err)
	}
	return out, nil
}

// MarkReservations moves an order's reservations from one status to another.
func (r *inventoryRepository) MarkReservations(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, from, to model.ReservationStatus) error {
	_, err := tx.Exec(ctx, `
		UPDATE inventory_reservations SET status = $3, updated_at = NOW()
		WHERE order_id = $1 AND status = $2
	`, orderID, from, to)
	if err != nil {
		r.logger.Error().Err(err).Str("order_id", orderID.String()).Msg("failed to update reservations")
		return fmt.Errorf("failed to update reservations: %w", err)
	}
	return nil
}
