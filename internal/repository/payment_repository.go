package repository

import (
	"context"
	"fmt"

	"storefront-core/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// paymentRepository implements the PaymentRepository interface using PostgreSQL.
type paymentRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewPaymentRepository creates a new PostgreSQL-backed payment confirmation repository.
func NewPaymentRepository(pool *pgxpool.Pool, logger zerolog.Logger) PaymentRepository {
	return &paymentRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "payment").Logger(),
	}
}

// Create inserts a payment confirmation.
func (r *paymentRepository) Create(ctx context.Context, tx pgx.Tx, c *model.PaymentConfirmation) error {
	query := `
		INSERT INTO payment_confirmations (id, order_id, buyer_id, amount, bank_name, account_name,
			transfer_date, proof_url, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := tx.Exec(ctx, query, c.ID, c.OrderID, c.BuyerID, c.Amount, c.BankName, c.AccountName,
		c.TransferDate, c.ProofURL, c.Notes, c.CreatedAt)
	if err != nil {
		r.logger.Error().Err(err).Str("order_id", c.OrderID.String()).Msg("failed to create payment confirmation")
		return fmt.Errorf("failed to create payment confirmation: %w", err)
	}
	return nil
}

// ListByOrder returns the confirmations submitted for an order, oldest first.
func (r *paymentRepository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]model.PaymentConfirmation, error) {
	query := `
		SELECT id, order_id, buyer_id, amount, bank_name, account_name, transfer_date, proof_url, notes, created_at
		FROM payment_confirmations
		WHERE order_id = $1
		ORDER BY created_at
	`

	rows, err := r.pool.Query(ctx, query, orderID)
	if err != nil {
		r.logger.Error().Err(err).Str("order_id", orderID.String()).Msg("failed to query payment confirmations")
		return nil, fmt.Errorf("failed to query payment confirmations: %w", err)
	}
	defer rows.Close()

	out := []model.PaymentConfirmation{}
	for rows.Next() {
		var c model.PaymentConfirmation
		if err := rows.Scan(&c.ID, &c.OrderID, &c.BuyerID, &c.Amount, &c.BankName, &c.AccountName,
			&c.TransferDate, &c.ProofURL, &c.Notes, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment confirmation: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payment confirmations: %w", err)
	}
	return out, nil
}
