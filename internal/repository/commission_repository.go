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

// commissionRepository implements the CommissionRepository interface using PostgreSQL.
type commissionRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewCommissionRepository creates a new PostgreSQL-backed commission repository.
func NewCommissionRepository(pool *pgxpool.Pool, logger zerolog.Logger) CommissionRepository {
	return &commissionRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "commission").Logger(),
	}
}

const profileColumns = `user_id, full_name, phone, referral_code, referrer_id,
	commission_balance, commission_pending, created_at, updated_at`

func (r *commissionRepository) scanProfile(row pgx.Row, userID uuid.UUID) (*model.BuyerProfile, error) {
	var p model.BuyerProfile
	err := row.Scan(&p.UserID, &p.FullName, &p.Phone, &p.ReferralCode, &p.ReferrerID,
		&p.CommissionBalance, &p.CommissionPending, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error().Err(err).Str("user_id", userID.String()).Msg("failed to query buyer profile")
		return nil, fmt.Errorf("failed to query buyer profile: %w", err)
	}
	return &p, nil
}

// GetProfile retrieves a buyer profile.
func (r *commissionRepository) GetProfile(ctx context.Context, userID uuid.UUID) (*model.BuyerProfile, error) {
	query := `SELECT ` + profileColumns + ` FROM buyer_profiles WHERE user_id = $1`
	return r.scanProfile(r.pool.QueryRow(ctx, query, userID), userID)
}

// LockProfile reads a buyer profile under FOR UPDATE.
func (r *commissionRepository) LockProfile(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*model.BuyerProfile, error) {
	query := `SELECT ` + profileColumns + ` FROM buyer_profiles WHERE user_id = $1 FOR UPDATE`
	return r.scanProfile(tx.QueryRow(ctx, query, userID), userID)
}

// GetReferrerID returns the referrer of a buyer, if any.
func (r *commissionRepository) GetReferrerID(ctx context.Context, tx pgx.Tx, buyerID uuid.UUID) (*uuid.UUID, error) {
	var referrer *uuid.UUID
	err := tx.QueryRow(ctx, `SELECT referrer_id FROM buyer_profiles WHERE user_id = $1`, buyerID).Scan(&referrer)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error().Err(err).Str("buyer_id", buyerID.String()).Msg("failed to query referrer")
		return nil, fmt.Errorf("failed to query referrer: %w", err)
	}
	return referrer, nil
}

// InsertEntry appends a ledger entry, ignoring a duplicate accrual or
// reversal for the same order.
func (r *commissionRepository) InsertEntry(ctx context.Context, tx pgx.Tx, e *model.ReferralCommission) (bool, error) {
	query := `
		INSERT INTO referral_commissions (id, referrer_id, buyer_id, order_id, payout_id, commission_type,
			amount, percentage, order_subtotal, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT DO NOTHING
	`

	tag, err := tx.Exec(ctx, query, e.ID, e.ReferrerID, e.BuyerID, e.OrderID, e.PayoutID, e.Type,
		e.Amount, e.Percentage, e.OrderSubtotal, e.CreatedAt)
	if err != nil {
		r.logger.Error().
			Err(err).
			Str("referrer_id", e.ReferrerID.String()).
			Str("type", string(e.Type)).
			Msg("failed to insert commission entry")
		return false, fmt.Errorf("failed to insert commission entry: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

const entryColumns = `rc.id, rc.referrer_id, rc.buyer_id, rc.order_id, rc.payout_id, rc.commission_type,
	rc.amount, rc.percentage, rc.order_subtotal, cp.accrual_id IS NOT NULL, rc.created_at`

func scanEntry(row pgx.Row) (*model.ReferralCommission, error) {
	var e model.ReferralCommission
	err := row.Scan(&e.ID, &e.ReferrerID, &e.BuyerID, &e.OrderID, &e.PayoutID, &e.Type,
		&e.Amount, &e.Percentage, &e.OrderSubtotal, &e.Promoted, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// FindEntry finds the entry of a type for an order.
func (r *commissionRepository) FindEntry(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, typ model.CommissionType) (*model.ReferralCommission, error) {
	query := `SELECT ` + entryColumns + `
		FROM referral_commissions rc
		LEFT JOIN commission_promotions cp ON cp.accrual_id = rc.id
		WHERE rc.order_id = $1 AND rc.commission_type = $2`

	e, err := scanEntry(tx.QueryRow(ctx, query, orderID, typ))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error().Err(err).Str("order_id", orderID.String()).Msg("failed to query commission entry")
		return nil, fmt.Errorf("failed to query commission entry: %w", err)
	}
	return e, nil
}

// InsertPromotion marks an accrual as promoted.
func (r *commissionRepository) InsertPromotion(ctx context.Context, tx pgx.Tx, accrualID uuid.UUID, at time.Time) (bool, error) {
	tag, err := tx.Exec(ctx, `
		INSERT INTO commission_promotions (accrual_id, promoted_at) VALUES ($1, $2)
		ON CONFLICT (accrual_id) DO NOTHING
	`, accrualID, at)
	if err != nil {
		r.logger.Error().Err(err).Str("accrual_id", accrualID.String()).Msg("failed to record promotion")
		return false, fmt.Errorf("failed to record promotion: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *commissionRepository) adjust(ctx context.Context, tx pgx.Tx, query, op string, userID uuid.UUID, amount decimal.Decimal) (bool, error) {
	tag, err := tx.Exec(ctx, query, userID, amount)
	if err != nil {
		r.logger.Error().Err(err).Str("user_id", userID.String()).Msgf("failed to %s", op)
		return false, fmt.Errorf("failed to %s: %w", op, err)
	}
	return tag.RowsAffected() == 1, nil
}

// AdjustPending adds delta to commission_pending unless the result would be negative.
func (r *commissionRepository) AdjustPending(ctx context.Context, tx pgx.Tx, userID uuid.UUID, delta decimal.Decimal) (bool, error) {
	return r.adjust(ctx, tx, `
		UPDATE buyer_profiles
		SET commission_pending = commission_pending + $2, updated_at = NOW()
		WHERE user_id = $1 AND commission_pending + $2 >= 0
	`, "adjust pending commission", userID, delta)
}

// AdjustBalance adds delta to commission_balance unless the result would be negative.
func (r *commissionRepository) AdjustBalance(ctx context.Context, tx pgx.Tx, userID uuid.UUID, delta decimal.Decimal) (bool, error) {
	return r.adjust(ctx, tx, `
		UPDATE buyer_profiles
		SET commission_balance = commission_balance + $2, updated_at = NOW()
		WHERE user_id = $1 AND commission_balance + $2 >= 0
	`, "adjust commission balance", userID, delta)
}

// MovePendingToBalance shifts amount from pending to balance.
func (r *commissionRepository) MovePendingToBalance(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount decimal.Decimal) (bool, error) {
	return r.adjust(ctx, tx, `
		UPDATE buyer_profiles
		SET commission_pending = commission_pending - $2,
			commission_balance = commission_balance + $2,
			updated_at = NOW()
		WHERE user_id = $1 AND commission_pending >= $2
	`, "promote commission", userID, amount)
}

// ListEntries returns the ledger entries owned by a referrer, oldest first.
func (r *commissionRepository) ListEntries(ctx context.Context, referrerID uuid.UUID) ([]model.ReferralCommission, error) {
	query := `SELECT ` + entryColumns + `
		FROM referral_commissions rc
		LEFT JOIN commission_promotions cp ON cp.accrual_id = rc.id
		WHERE rc.referrer_id = $1
		ORDER BY rc.created_at, rc.id`

	rows, err := r.pool.Query(ctx, query, referrerID)
	if err != nil {
		r.logger.Error().Err(err).Str("referrer_id", referrerID.String()).Msg("failed to query commission entries")
		return nil, fmt.Errorf("failed to query commission entries: %w", err)
	}
	defer rows.Close()

	entries := []model.ReferralCommission{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan commission entry: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating commission entries: %w", err)
	}
	return entries, nil
}

// Totals sums a referrer's ledger entries by type.
func (r *commissionRepository) Totals(ctx context.Context, referrerID uuid.UUID) (*LedgerTotals, error) {
	query := `
		SELECT
			COALESCE(SUM(amount) FILTER (WHERE commission_type = 'accrual'), 0),
			COALESCE(SUM(amount) FILTER (WHERE commission_type = 'reversal'), 0),
			COALESCE(SUM(amount) FILTER (WHERE commission_type = 'payout'), 0)
		FROM referral_commissions
		WHERE referrer_id = $1
	`

	var t LedgerTotals
	if err := r.pool.QueryRow(ctx, query, referrerID).Scan(&t.Accrued, &t.Reversed, &t.PaidOut); err != nil {
		r.logger.Error().Err(err).Str("referrer_id", referrerID.String()).Msg("failed to sum commission entries")
		return nil, fmt.Errorf("failed to sum commission entries: %w", err)
	}
	return &t, nil
}
