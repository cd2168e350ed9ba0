package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"storefront-core/internal/model"
	"storefront-core/internal/testutil"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireReconciled(t *testing.T, f *fixture, buyerID uuid.UUID) *model.Reconciliation {
	t.Helper()
	rec, err := f.commission.Reconcile(context.Background(), buyerID)
	require.NoError(t, err)
	require.True(t, rec.Consistent, "ledger %s != stored %s", rec.LedgerTotal, rec.StoredTotal)
	return rec
}

func dec(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func TestCommissionLedger_CommissionFor(t *testing.T) {
	l := &CommissionLedger{percentage: decimal.RequireFromString("2.5")}

	tests := []struct {
		subtotal string
		want     string
	}{
		{subtotal: "100000", want: "2500"},
		{subtotal: "12345", want: "308.63"},
		{subtotal: "0", want: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.subtotal, func(t *testing.T) {
			got := l.CommissionFor(decimal.RequireFromString(tt.subtotal))
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "got %s", got)
		})
	}
}

func TestCommissionLedger_AccrueAndPromote(t *testing.T) {
	f := setupLedgers(t)
	ctx := context.Background()

	referrerID := testutil.SeedProfile(t, f.pool, "Rudi Hartono", nil)
	buyerID := testutil.SeedProfile(t, f.pool, "Ani Yudhoyono", &referrerID)
	productID := testutil.SeedProduct(t, f.pool, "Paket Sembako", 100000, 80000)
	order := f.placeOrder(t, buyerID, 100000, map[uuid.UUID]int{productID: 1})

	require.NoError(t, f.inTx(func(ctx context.Context, tx pgx.Tx) error {
		if err := f.commission.Accrue(ctx, tx, order, time.Now()); err != nil {
			return err
		}
		return f.commission.Accrue(ctx, tx, order, time.Now())
	}))

	summary, err := f.commission.Summary(ctx, referrerID)
	require.NoError(t, err)
	assert.True(t, dec(5000).Equal(summary.Profile.CommissionPending))
	assert.True(t, summary.Profile.CommissionBalance.IsZero())
	require.Len(t, summary.Entries, 1)
	assert.Equal(t, model.CommissionAccrual, summary.Entries[0].Type)
	assert.True(t, dec(5).Equal(summary.Entries[0].Percentage))
	requireReconciled(t, f, referrerID)

	require.NoError(t, f.inTx(func(ctx context.Context, tx pgx.Tx) error {
		if err := f.commission.Promote(ctx, tx, order, time.Now()); err != nil {
			return err
		}
		return f.commission.Promote(ctx, tx, order, time.Now())
	}))

	summary, err = f.commission.Summary(ctx, referrerID)
	require.NoError(t, err)
	assert.True(t, summary.Profile.CommissionPending.IsZero())
	assert.True(t, dec(5000).Equal(summary.Profile.CommissionBalance))
	require.Len(t, summary.Entries, 1)
	assert.True(t, summary.Entries[0].Promoted)
	requireReconciled(t, f, referrerID)
}

func TestCommissionLedger_ReverseBeforeDelivery(t *testing.T) {
	f := setupLedgers(t)
	ctx := context.Background()

	referrerID := testutil.SeedProfile(t, f.pool, "Rudi Hartono", nil)
	buyerID := testutil.SeedProfile(t, f.pool, "Ani Yudhoyono", &referrerID)
	productID := testutil.SeedProduct(t, f.pool, "Paket Sembako", 100000, 80000)
	order := f.placeOrder(t, buyerID, 100000, map[uuid.UUID]int{productID: 1})

	require.NoError(t, f.inTx(func(ctx context.Context, tx pgx.Tx) error {
		return f.commission.Accrue(ctx, tx, order, time.Now())
	}))
	require.NoError(t, f.inTx(func(ctx context.Context, tx pgx.Tx) error {
		if err := f.commission.Reverse(ctx, tx, order, time.Now()); err != nil {
			return err
		}
		return f.commission.Reverse(ctx, tx, order, time.Now())
	}))

	summary, err := f.commission.Summary(ctx, referrerID)
	require.NoError(t, err)
	assert.True(t, summary.Profile.CommissionPending.IsZero())
	assert.True(t, summary.Profile.CommissionBalance.IsZero())
	require.Len(t, summary.Entries, 2)
	assert.Equal(t, model.CommissionReversal, summary.Entries[1].Type)
	assert.True(t, dec(5000).Equal(summary.Entries[1].Amount))
	requireReconciled(t, f, referrerID)
}

func TestCommissionLedger_ReversePromotedNeedsBalance(t *testing.T) {
	f := setupLedgers(t)
	ctx := context.Background()

	referrerID := testutil.SeedProfile(t, f.pool, "Rudi Hartono", nil)
	buyerID := testutil.SeedProfile(t, f.pool, "Ani Yudhoyono", &referrerID)
	productID := testutil.SeedProduct(t, f.pool, "Paket Sembako", 100000, 80000)
	order := f.placeOrder(t, buyerID, 100000, map[uuid.UUID]int{productID: 1})

	require.NoError(t, f.inTx(func(ctx context.Context, tx pgx.Tx) error {
		return f.commission.Promote(ctx, tx, order, time.Now())
	}))

	_, err := f.commission.RequestPayout(ctx, referrerID, &model.PayoutCreateRequest{
		Amount: dec(4000), BankName: "BRI", AccountNumber: "0011", AccountName: "Rudi",
	})
	require.NoError(t, err)

	err = f.inTx(func(ctx context.Context, tx pgx.Tx) error {
		return f.commission.Reverse(ctx, tx, order, time.Now())
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrInsufficientBalance))

	summary, err := f.commission.Summary(ctx, referrerID)
	require.NoError(t, err)
	assert.True(t, dec(1000).Equal(summary.Profile.CommissionBalance))
	assert.Len(t, summary.Entries, 1)
	requireReconciled(t, f, referrerID)
}

func TestCommissionLedger_NoReferrer(t *testing.T) {
	f := setupLedgers(t)
	ctx := context.Background()

	buyerID := testutil.SeedProfile(t, f.pool, "Tanpa Referensi", nil)
	productID := testutil.SeedProduct(t, f.pool, "Sabun", 5000, 3000)
	order := f.placeOrder(t, buyerID, 5000, map[uuid.UUID]int{productID: 2})

	require.NoError(t, f.inTx(func(ctx context.Context, tx pgx.Tx) error {
		if err := f.commission.Accrue(ctx, tx, order, time.Now()); err != nil {
			return err
		}
		if err := f.commission.Promote(ctx, tx, order, time.Now()); err != nil {
			return err
		}
		return f.commission.Reverse(ctx, tx, order, time.Now())
	}))

	summary, err := f.commission.Summary(ctx, buyerID)
	require.NoError(t, err)
	assert.Empty(t, summary.Entries)
}

func TestCommissionLedger_RequestPayout(t *testing.T) {
	f := setupLedgers(t)
	ctx := context.Background()

	referrerID := testutil.SeedProfile(t, f.pool, "Rudi Hartono", nil)
	buyerID := testutil.SeedProfile(t, f.pool, "Ani Yudhoyono", &referrerID)
	testutil.SeedPromotedCommission(t, f.pool, referrerID, buyerID, 30000)

	tests := []struct {
		name     string
		req      *model.PayoutCreateRequest
		wantKind model.ErrorKind
	}{
		{
			name:     "More than balance is refused",
			req:      &model.PayoutCreateRequest{Amount: dec(50000), BankName: "BCA", AccountNumber: "123", AccountName: "Rudi"},
			wantKind: model.KindInsufficientBalance,
		},
		{
			name:     "Zero amount is invalid",
			req:      &model.PayoutCreateRequest{Amount: dec(0), BankName: "BCA", AccountNumber: "123", AccountName: "Rudi"},
			wantKind: model.KindValidation,
		},
		{
			name:     "Missing bank account is invalid",
			req:      &model.PayoutCreateRequest{Amount: dec(1000), BankName: "BCA"},
			wantKind: model.KindValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.commission.RequestPayout(ctx, referrerID, tt.req)
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, model.KindOf(err))

			summary, err := f.commission.Summary(ctx, referrerID)
			require.NoError(t, err)
			assert.True(t, dec(30000).Equal(summary.Profile.CommissionBalance))
			assert.Empty(t, summary.Payouts)
		})
	}

	_, err := f.commission.RequestPayout(ctx, uuid.New(), &model.PayoutCreateRequest{
		Amount: dec(1000), BankName: "BCA", AccountNumber: "123", AccountName: "X",
	})
	assert.Equal(t, model.KindNotFound, model.KindOf(err))

	payout, err := f.commission.RequestPayout(ctx, referrerID, &model.PayoutCreateRequest{
		Amount: dec(30000), BankName: "BCA", AccountNumber: "123", AccountName: "Rudi",
	})
	require.NoError(t, err)
	assert.Equal(t, model.PayoutPending, payout.Status)

	rec := requireReconciled(t, f, referrerID)
	assert.True(t, rec.Balance.IsZero())
	assert.True(t, dec(30000).Equal(rec.Held))
}

func TestCommissionLedger_ResolvePayout(t *testing.T) {
	f := setupLedgers(t)
	ctx := context.Background()

	referrerID := testutil.SeedProfile(t, f.pool, "Rudi Hartono", nil)
	buyerID := testutil.SeedProfile(t, f.pool, "Ani Yudhoyono", &referrerID)
	testutil.SeedPromotedCommission(t, f.pool, referrerID, buyerID, 30000)

	request := func(amount int64) *model.PayoutRequest {
		p, err := f.commission.RequestPayout(ctx, referrerID, &model.PayoutCreateRequest{
			Amount: dec(amount), BankName: "Mandiri", AccountNumber: "987", AccountName: "Rudi",
		})
		require.NoError(t, err)
		return p
	}
	reason := "nama rekening tidak sesuai"

	t.Run("Reject without reason is invalid", func(t *testing.T) {
		p := request(1000)
		_, err := f.commission.ResolvePayout(ctx, p.ID, model.PayoutRejected, nil)
		assert.Equal(t, model.KindValidation, model.KindOf(err))
		_, err = f.commission.ResolvePayout(ctx, p.ID, model.PayoutRejected, &reason)
		require.NoError(t, err)
	})

	t.Run("Rejected payout restores the balance", func(t *testing.T) {
		p := request(10000)
		got, err := f.commission.ResolvePayout(ctx, p.ID, model.PayoutRejected, &reason)
		require.NoError(t, err)
		assert.Equal(t, model.PayoutRejected, got.Status)
		require.NotNil(t, got.RejectionReason)

		rec := requireReconciled(t, f, referrerID)
		assert.True(t, dec(30000).Equal(rec.Balance))
	})

	t.Run("Approve then complete writes a payout entry", func(t *testing.T) {
		p := request(12000)
		got, err := f.commission.ResolvePayout(ctx, p.ID, model.PayoutApproved, nil)
		require.NoError(t, err)
		assert.Equal(t, model.PayoutApproved, got.Status)

		again, err := f.commission.ResolvePayout(ctx, p.ID, model.PayoutApproved, nil)
		require.NoError(t, err)
		assert.Equal(t, model.PayoutApproved, again.Status)

		got, err = f.commission.ResolvePayout(ctx, p.ID, model.PayoutCompleted, nil)
		require.NoError(t, err)
		assert.NotNil(t, got.CompletedAt)

		rec := requireReconciled(t, f, referrerID)
		assert.True(t, dec(18000).Equal(rec.Balance))
		assert.True(t, dec(12000).Equal(rec.PaidOut))
		assert.True(t, rec.Held.IsZero())
	})

	t.Run("Completed payout cannot be rejected", func(t *testing.T) {
		p := request(1000)
		_, err := f.commission.ResolvePayout(ctx, p.ID, model.PayoutCompleted, nil)
		assert.Equal(t, model.KindInvalidTransition, model.KindOf(err))

		_, err = f.commission.ResolvePayout(ctx, p.ID, model.PayoutApproved, nil)
		require.NoError(t, err)
		_, err = f.commission.ResolvePayout(ctx, p.ID, model.PayoutCompleted, nil)
		require.NoError(t, err)
		_, err = f.commission.ResolvePayout(ctx, p.ID, model.PayoutRejected, &reason)
		assert.Equal(t, model.KindInvalidTransition, model.KindOf(err))
	})

	t.Run("Unknown payout", func(t *testing.T) {
		_, err := f.commission.ResolvePayout(ctx, uuid.New(), model.PayoutApproved, nil)
		assert.Equal(t, model.KindNotFound, model.KindOf(err))
	})

	requireReconciled(t, f, referrerID)
}
