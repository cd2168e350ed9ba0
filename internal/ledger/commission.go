package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"storefront-core/internal/model"
	"storefront-core/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// CommissionLedger owns referral commission balances. Every balance change is
// paired with an append-only ledger entry or promotion record.
type CommissionLedger struct {
	db         repository.TxBeginner
	repo       repository.CommissionRepository
	payouts    repository.PayoutRepository
	percentage decimal.Decimal
	logger     zerolog.Logger
}

// NewCommissionLedger creates a commission ledger paying percentage percent
// of an order's subtotal to the buyer's referrer.
func NewCommissionLedger(
	db repository.TxBeginner,
	repo repository.CommissionRepository,
	payouts repository.PayoutRepository,
	percentage decimal.Decimal,
	logger zerolog.Logger,
) *CommissionLedger {
	return &CommissionLedger{
		db:         db,
		repo:       repo,
		payouts:    payouts,
		percentage: percentage,
		logger:     logger.With().Str("ledger", "commission").Logger(),
	}
}

// CommissionFor returns the commission owed on subtotal, rounded to cents.
func (l *CommissionLedger) CommissionFor(subtotal decimal.Decimal) decimal.Decimal {
	return l.percentage.Div(hundred).Mul(subtotal).Round(2)
}

// Accrue records a pending commission for the referrer of the order's buyer.
// Buyers without a referrer accrue nothing. Accruing an order twice is a
// no-op.
func (l *CommissionLedger) Accrue(ctx context.Context, tx pgx.Tx, order *model.Order, at time.Time) error {
	referrerID, err := l.repo.GetReferrerID(ctx, tx, order.BuyerID)
	if err != nil {
		return err
	}
	if referrerID == nil {
		return nil
	}

	orderID := order.ID
	entry := &model.ReferralCommission{
		ID:            uuid.New(),
		ReferrerID:    *referrerID,
		BuyerID:       order.BuyerID,
		OrderID:       &orderID,
		Type:          model.CommissionAccrual,
		Amount:        l.CommissionFor(order.Subtotal),
		Percentage:    l.percentage,
		OrderSubtotal: order.Subtotal,
		CreatedAt:     at,
	}

	inserted, err := l.repo.InsertEntry(ctx, tx, entry)
	if err != nil {
		return err
	}
	if !inserted {
		l.logger.Debug().Str("order_id", order.ID.String()).Msg("commission already accrued")
		return nil
	}

	ok, err := l.repo.AdjustPending(ctx, tx, entry.ReferrerID, entry.Amount)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("failed to accrue commission: profile %s not found", entry.ReferrerID)
	}

	l.logger.Info().
		Str("order_id", order.ID.String()).
		Str("referrer_id", entry.ReferrerID.String()).
		Str("amount", entry.Amount.StringFixed(2)).
		Msg("commission accrued")
	return nil
}

// Reverse cancels an order's accrual. A promoted accrual is taken back from
// the withdrawable balance, which may not go below zero. Reversing twice, or
// reversing an order that never accrued, is a no-op.
func (l *CommissionLedger) Reverse(ctx context.Context, tx pgx.Tx, order *model.Order, at time.Time) error {
	accrual, err := l.repo.FindEntry(ctx, tx, order.ID, model.CommissionAccrual)
	if err != nil {
		return err
	}
	if accrual == nil {
		return nil
	}

	orderID := order.ID
	reversal := &model.ReferralCommission{
		ID:            uuid.New(),
		ReferrerID:    accrual.ReferrerID,
		BuyerID:       accrual.BuyerID,
		OrderID:       &orderID,
		Type:          model.CommissionReversal,
		Amount:        accrual.Amount,
		Percentage:    accrual.Percentage,
		OrderSubtotal: accrual.OrderSubtotal,
		CreatedAt:     at,
	}

	inserted, err := l.repo.InsertEntry(ctx, tx, reversal)
	if err != nil {
		return err
	}
	if !inserted {
		l.logger.Debug().Str("order_id", order.ID.String()).Msg("commission already reversed")
		return nil
	}

	if accrual.Promoted {
		ok, err := l.repo.AdjustBalance(ctx, tx, accrual.ReferrerID, accrual.Amount.Neg())
		if err != nil {
			return err
		}
		if !ok {
			available := decimal.Zero
			profile, err := l.repo.LockProfile(ctx, tx, accrual.ReferrerID)
			if err != nil {
				return err
			}
			if profile != nil {
				available = profile.CommissionBalance
			}
			l.logger.Warn().
				Str("order_id", order.ID.String()).
				Str("referrer_id", accrual.ReferrerID.String()).
				Str("amount", accrual.Amount.StringFixed(2)).
				Msg("balance too low to reverse promoted commission")
			return model.NewInsufficientBalanceError(accrual.Amount, available)
		}
	} else {
		ok, err := l.repo.AdjustPending(ctx, tx, accrual.ReferrerID, accrual.Amount.Neg())
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("failed to reverse commission: pending balance of %s is out of sync", accrual.ReferrerID)
		}
	}

	l.logger.Info().
		Str("order_id", order.ID.String()).
		Str("referrer_id", accrual.ReferrerID.String()).
		Bool("promoted", accrual.Promoted).
		Msg("commission reversed")
	return nil
}

// Promote makes a delivered order's accrual withdrawable. An order that never
// accrued is accrued first; promoting twice is a no-op.
func (l *CommissionLedger) Promote(ctx context.Context, tx pgx.Tx, order *model.Order, at time.Time) error {
	accrual, err := l.repo.FindEntry(ctx, tx, order.ID, model.CommissionAccrual)
	if err != nil {
		return err
	}
	if accrual == nil {
		if err := l.Accrue(ctx, tx, order, at); err != nil {
			return err
		}
		if accrual, err = l.repo.FindEntry(ctx, tx, order.ID, model.CommissionAccrual); err != nil {
			return err
		}
		if accrual == nil {
			return nil
		}
	}

	inserted, err := l.repo.InsertPromotion(ctx, tx, accrual.ID, at)
	if err != nil {
		return err
	}
	if !inserted {
		return nil
	}

	ok, err := l.repo.MovePendingToBalance(ctx, tx, accrual.ReferrerID, accrual.Amount)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("failed to promote commission: pending balance of %s is out of sync", accrual.ReferrerID)
	}

	l.logger.Info().
		Str("order_id", order.ID.String()).
		Str("referrer_id", accrual.ReferrerID.String()).
		Str("amount", accrual.Amount.StringFixed(2)).
		Msg("commission promoted")
	return nil
}

// RequestPayout moves amount from the buyer's balance into a pending payout.
func (l *CommissionLedger) RequestPayout(ctx context.Context, buyerID uuid.UUID, req *model.PayoutCreateRequest) (*model.PayoutRequest, error) {
	if req == nil {
		return nil, model.NewValidationError(model.ErrCodeInvalidJSON, "permintaan tidak boleh kosong")
	}
	amount := req.Amount.Round(2)
	if !amount.IsPositive() {
		return nil, model.NewValidationError(model.ErrCodeInvalidAmount, "jumlah pencairan harus lebih dari nol")
	}
	if strings.TrimSpace(req.BankName) == "" || strings.TrimSpace(req.AccountNumber) == "" || strings.TrimSpace(req.AccountName) == "" {
		return nil, model.NewValidationError(model.ErrCodeMissingField, "data rekening wajib diisi")
	}

	payout := &model.PayoutRequest{
		ID:            uuid.New(),
		BuyerID:       buyerID,
		Amount:        amount,
		Status:        model.PayoutPending,
		BankName:      strings.TrimSpace(req.BankName),
		AccountNumber: strings.TrimSpace(req.AccountNumber),
		AccountName:   strings.TrimSpace(req.AccountName),
		CreatedAt:     time.Now(),
	}

	err := repository.RunInTx(ctx, l.db, func(tx pgx.Tx) error {
		profile, err := l.repo.LockProfile(ctx, tx, buyerID)
		if err != nil {
			return err
		}
		if profile == nil {
			return model.ErrProfileNotFound
		}

		ok, err := l.repo.AdjustBalance(ctx, tx, buyerID, amount.Neg())
		if err != nil {
			return err
		}
		if !ok {
			return model.NewInsufficientBalanceError(amount, profile.CommissionBalance)
		}
		return l.payouts.Create(ctx, tx, payout)
	})
	if err != nil {
		l.logger.Warn().Err(err).Str("buyer_id", buyerID.String()).Msg("payout request refused")
		return nil, err
	}

	l.logger.Info().
		Str("payout_id", payout.ID.String()).
		Str("buyer_id", buyerID.String()).
		Str("amount", amount.StringFixed(2)).
		Msg("payout requested")
	return payout, nil
}

// ResolvePayout applies an admin decision. Completing writes a payout ledger
// entry; rejecting returns the held amount to the balance. Resubmitting the
// current status returns the payout unchanged.
func (l *CommissionLedger) ResolvePayout(ctx context.Context, payoutID uuid.UUID, to model.PayoutStatus, reason *string) (*model.PayoutRequest, error) {
	if to == model.PayoutRejected && (reason == nil || strings.TrimSpace(*reason) == "") {
		return nil, model.NewValidationError(model.ErrCodeMissingField, "alasan penolakan wajib diisi")
	}

	var result *model.PayoutRequest
	err := repository.RunInTx(ctx, l.db, func(tx pgx.Tx) error {
		current, err := l.payouts.LockByID(ctx, tx, payoutID)
		if err != nil {
			return err
		}
		if current == nil {
			return model.ErrPayoutNotFound
		}
		if current.Status == to {
			result = current
			return nil
		}
		if !current.Status.CanTransition(to) {
			return model.NewInvalidTransitionError(current.Status, to)
		}

		var stored *string
		if to == model.PayoutRejected {
			trimmed := strings.TrimSpace(*reason)
			stored = &trimmed
		}
		now := time.Now()
		updated, err := l.payouts.UpdateStatus(ctx, tx, payoutID, current.Status, to, stored, now)
		if err != nil {
			return err
		}
		if updated == nil {
			return model.NewConflictError(model.ErrCodeInvalidTransition, "status pencairan berubah, silakan muat ulang")
		}

		switch to {
		case model.PayoutRejected:
			ok, err := l.repo.AdjustBalance(ctx, tx, updated.BuyerID, updated.Amount)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("failed to restore payout %s: profile not found", payoutID)
			}
		case model.PayoutCompleted:
			pid := updated.ID
			entry := &model.ReferralCommission{
				ID:            uuid.New(),
				ReferrerID:    updated.BuyerID,
				BuyerID:       updated.BuyerID,
				PayoutID:      &pid,
				Type:          model.CommissionPayout,
				Amount:        updated.Amount,
				Percentage:    decimal.Zero,
				OrderSubtotal: decimal.Zero,
				CreatedAt:     now,
			}
			if _, err := l.repo.InsertEntry(ctx, tx, entry); err != nil {
				return err
			}
		}

		result = updated
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info().
		Str("payout_id", payoutID.String()).
		Str("status", string(result.Status)).
		Msg("payout resolved")
	return result, nil
}

// Reconcile recomputes a buyer's commission position from the ledger and
// compares it with the stored balances plus amounts held by open payouts.
func (l *CommissionLedger) Reconcile(ctx context.Context, buyerID uuid.UUID) (*model.Reconciliation, error) {
	profile, err := l.repo.GetProfile(ctx, buyerID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, model.ErrProfileNotFound
	}

	totals, err := l.repo.Totals(ctx, buyerID)
	if err != nil {
		return nil, err
	}
	held, err := l.payouts.HeldTotal(ctx, buyerID)
	if err != nil {
		return nil, err
	}

	ledgerTotal := totals.Accrued.Sub(totals.Reversed).Sub(totals.PaidOut)
	storedTotal := profile.CommissionBalance.Add(profile.CommissionPending).Add(held)

	rec := &model.Reconciliation{
		BuyerID:     buyerID,
		Balance:     profile.CommissionBalance,
		Pending:     profile.CommissionPending,
		Held:        held,
		Accrued:     totals.Accrued,
		Reversed:    totals.Reversed,
		PaidOut:     totals.PaidOut,
		LedgerTotal: ledgerTotal,
		StoredTotal: storedTotal,
		Consistent:  ledgerTotal.Equal(storedTotal),
	}
	if !rec.Consistent {
		l.logger.Error().
			Str("buyer_id", buyerID.String()).
			Str("ledger_total", ledgerTotal.StringFixed(2)).
			Str("stored_total", storedTotal.StringFixed(2)).
			Msg("commission ledger out of balance")
	}
	return rec, nil
}

// Summary returns a buyer's profile, ledger entries and payouts.
func (l *CommissionLedger) Summary(ctx context.Context, buyerID uuid.UUID) (*model.CommissionSummary, error) {
	profile, err := l.repo.GetProfile(ctx, buyerID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, model.ErrProfileNotFound
	}

	entries, err := l.repo.ListEntries(ctx, buyerID)
	if err != nil {
		return nil, err
	}
	payouts, err := l.payouts.ListByBuyer(ctx, buyerID)
	if err != nil {
		return nil, err
	}

	return &model.CommissionSummary{Profile: profile, Entries: entries, Payouts: payouts}, nil
}
