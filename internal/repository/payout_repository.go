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
	"github.com/shopspring/decimal"
)

// payoutRepository implements the PayoutRepository interface using PostgreSQL.
type payoutRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewPayoutRepository creates a new PostgreSQL-backed payout repository.
func NewPayoutRepository(pool *pgxpool.Pool, logger zerolog.Logger) PayoutRepository {
	return &payoutRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "payout").Logger(),
	}
}

const payoutColumns = `id, buyer_id, amount, status, bank_name, account_number, account_name,
	rejection_reason, created_at, approved_at, rejected_at, completed_at`

func scanPayout(row pgx.Row) (*model.PayoutRequest, error) {
	var p model.PayoutRequest
	err := row.Scan(&p.ID, &p.BuyerID, &p.Amount, &p.Status, &p.BankName, &p.AccountNumber, &p.AccountName,
		&p.RejectionReason, &p.CreatedAt, &p.ApprovedAt, &p.RejectedAt, &p.CompletedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *payoutRepository) queryOne(row pgx.Row, id uuid.UUID, op string) (*model.PayoutRequest, error) {
	p, err := scanPayout(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error().Err(err).Str("payout_id", id.String()).Msgf("failed to %s", op)
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}
	return p, nil
}

// Create inserts a payout request.
func (r *payoutRepository) Create(ctx context.Context, tx pgx.Tx, p *model.PayoutRequest) error {
	query := `
		INSERT INTO payout_requests (id, buyer_id, amount, status, bank_name, account_number, account_name, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := tx.Exec(ctx, query, p.ID, p.BuyerID, p.Amount, p.Status, p.BankName, p.AccountNumber,
		p.AccountName, p.CreatedAt)
	if err != nil {
		r.logger.Error().Err(err).Str("buyer_id", p.BuyerID.String()).Msg("failed to create payout request")
		return fmt.Errorf("failed to create payout request: %w", err)
	}
	return nil
}

// LockByID reads a payout under FOR UPDATE.
func (r *payoutRepository) LockByID(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.PayoutRequest, error) {
	query := `SELECT ` + payoutColumns + ` FROM payout_requests WHERE id = $1 FOR UPDATE`
	return r.queryOne(tx.QueryRow(ctx, query, id), id, "lock payout request")
}

// UpdateStatus moves a payout from one status to another and stamps the
// matching timestamp.
func (r *payoutRepository) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to model.PayoutStatus, reason *string, at time.Time) (*model.PayoutRequest, error) {
	query := `
		UPDATE payout_requests SET
			status           = $3,
			rejection_reason = COALESCE($4, rejection_reason),
			approved_at      = CASE WHEN $3 = 'approved' THEN $5 ELSE approved_at END,
			rejected_at      = CASE WHEN $3 = 'rejected' THEN $5 ELSE rejected_at END,
			completed_at     = CASE WHEN $3 = 'completed' THEN $5 ELSE completed_at END
		WHERE id = $1 AND status = $2
		RETURNING ` + payoutColumns

	return r.queryOne(tx.QueryRow(ctx, query, id, from, to, reason, at), id, "update payout status")
}

// ListByBuyer returns a buyer's payouts, newest first.
func (r *payoutRepository) ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]model.PayoutRequest, error) {
	query := `SELECT ` + payoutColumns + ` FROM payout_requests WHERE buyer_id = $1 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, buyerID)
	if err != nil {
		r.logger.Error().Err(err).Str("buyer_id", buyerID.String()).Msg("failed to query payout requests")
		return nil, fmt.Errorf("failed to query payout requests: %w", err)
	}
	defer rows.Close()

	payouts := []model.PayoutRequest{}
	for rows.Next() {
		p, err := scanPayout(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payout request: %w", err)
		}
		payouts = append(payouts, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payout requests: %w", err)
	}
	return payouts, nil
}

// HeldTotal sums pending and approved payouts of a buyer.
func (r *payoutRepository) HeldTotal(ctx context.Context, buyerID uuid.UUID) (decimal.Decimal, error) {
	var held decimal.Decimal
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM payout_requests
		WHERE buyer_id = $1 AND status IN ('pending', 'approved')
	`, buyerID).Scan(&held)
	if err != nil {
		r.logger.Error().Err(err).Str("buyer_id", buyerID.String()).Msg("failed to sum held payouts")
		return decimal.Zero, fmt.Errorf("failed to sum held payouts: %w", err)
	}
	return held, nil
}
