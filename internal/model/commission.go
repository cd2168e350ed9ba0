package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CommissionType is the kind of a referral ledger entry.
type CommissionType string

const (
	CommissionAccrual  CommissionType = "accrual"
	CommissionReversal CommissionType = "reversal"
	CommissionPayout   CommissionType = "payout"
)

// BuyerProfile holds a buyer's referral link and commission balances.
type BuyerProfile struct {
	UserID            uuid.UUID       `json:"userId"`
	FullName          string          `json:"fullName"`
	Phone             *string         `json:"phone,omitempty"`
	ReferralCode      string          `json:"referralCode"`
	ReferrerID        *uuid.UUID      `json:"referrerId,omitempty"`
	CommissionBalance decimal.Decimal `json:"commissionBalance"`
	CommissionPending decimal.Decimal `json:"commissionPending"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

// ReferralCommission is one append-only commission ledger entry, owned by the
// referrer.
type ReferralCommission struct {
	ID            uuid.UUID       `json:"id"`
	ReferrerID    uuid.UUID       `json:"referrerId"`
	BuyerID       uuid.UUID       `json:"buyerId"`
	OrderID       *uuid.UUID      `json:"orderId,omitempty"`
	PayoutID      *uuid.UUID      `json:"payoutId,omitempty"`
	Type          CommissionType  `json:"commissionType"`
	Amount        decimal.Decimal `json:"amount"`
	Percentage    decimal.Decimal `json:"percentage"`
	OrderSubtotal decimal.Decimal `json:"orderSubtotal"`
	Promoted      bool            `json:"promoted"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// PayoutStatus is a step of the payout approval flow.
type PayoutStatus string

const (
	PayoutPending   PayoutStatus = "pending"
	PayoutApproved  PayoutStatus = "approved"
	PayoutRejected  PayoutStatus = "rejected"
	PayoutCompleted PayoutStatus = "completed"
)

var validPayoutNext = map[PayoutStatus]map[PayoutStatus]bool{
	PayoutPending:   {PayoutApproved: true, PayoutRejected: true},
	PayoutApproved:  {PayoutCompleted: true, PayoutRejected: true},
	PayoutRejected:  {},
	PayoutCompleted: {},
}

// CanTransition reports whether to is an allowed successor of s.
func (s PayoutStatus) CanTransition(to PayoutStatus) bool {
	return validPayoutNext[s][to]
}

// Holds reports whether a payout in this status keeps its amount out of the
// withdrawable balance.
func (s PayoutStatus) Holds() bool {
	return s == PayoutPending || s == PayoutApproved
}

func (s PayoutStatus) String() string {
	return string(s)
}

// ParsePayoutStatus rejects values outside the closed set.
func ParsePayoutStatus(s string) (PayoutStatus, error) {
	st := PayoutStatus(s)
	if _, ok := validPayoutNext[st]; !ok {
		return "", NewValidationError(ErrCodeInvalidStatus, "status pencairan tidak dikenal: "+s)
	}
	return st, nil
}

// PayoutRequest is a buyer's withdrawal of commission balance.
type PayoutRequest struct {
	ID              uuid.UUID       `json:"id"`
	BuyerID         uuid.UUID       `json:"buyerId"`
	Amount          decimal.Decimal `json:"amount"`
	Status          PayoutStatus    `json:"status"`
	BankName        string          `json:"bankName"`
	AccountNumber   string          `json:"accountNumber"`
	AccountName     string          `json:"accountName"`
	RejectionReason *string         `json:"rejectionReason,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	ApprovedAt      *time.Time      `json:"approvedAt,omitempty"`
	RejectedAt      *time.Time      `json:"rejectedAt,omitempty"`
	CompletedAt     *time.Time      `json:"completedAt,omitempty"`
}

// PayoutCreateRequest is the payload of a payout request.
type PayoutCreateRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	BankName      string          `json:"bankName"`
	AccountNumber string          `json:"accountNumber"`
	AccountName   string          `json:"accountName"`
}

// PayoutResolveRequest is the payload of an admin payout decision.
type PayoutResolveRequest struct {
	Status string  `json:"status"`
	Reason *string `json:"reason,omitempty"`
}

// CommissionSummary is a buyer's profile together with its ledger entries.
type CommissionSummary struct {
	Profile *BuyerProfile        `json:"profile"`
	Entries []ReferralCommission `json:"entries"`
	Payouts []PayoutRequest      `json:"payouts"`
}

// Reconciliation compares stored balances against the ledger.
type Reconciliation struct {
	BuyerID     uuid.UUID       `json:"buyerId"`
	Balance     decimal.Decimal `json:"balance"`
	Pending     decimal.Decimal `json:"pending"`
	Held        decimal.Decimal `json:"held"`
	Accrued     decimal.Decimal `json:"accrued"`
	Reversed    decimal.Decimal `json:"reversed"`
	PaidOut     decimal.Decimal `json:"paidOut"`
	LedgerTotal decimal.Decimal `json:"ledgerTotal"`
	StoredTotal decimal.Decimal `json:"storedTotal"`
	Consistent  bool            `json:"consistent"`
}
