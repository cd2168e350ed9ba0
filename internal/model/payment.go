package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentConfirmation records a buyer-submitted transfer proof. It does not
// change the order status; an admin confirms payment by a transition.
type PaymentConfirmation struct {
	ID           uuid.UUID       `json:"id"`
	OrderID      uuid.UUID       `json:"orderId"`
	BuyerID      uuid.UUID       `json:"buyerId"`
	Amount       decimal.Decimal `json:"amount"`
	BankName     string          `json:"bankName"`
	AccountName  string          `json:"accountName"`
	TransferDate time.Time       `json:"transferDate"`
	ProofURL     *string         `json:"proofUrl,omitempty"`
	Notes        *string         `json:"notes,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// PaymentProofRequest is the metadata of a payment proof submission.
type PaymentProofRequest struct {
	Amount       decimal.Decimal `json:"amount"`
	BankName     string          `json:"bankName"`
	AccountName  string          `json:"accountName"`
	TransferDate time.Time       `json:"transferDate"`
	ProofURL     *string         `json:"proofUrl,omitempty"`
	Notes        *string         `json:"notes,omitempty"`
}

// ProofImage is an uploaded proof image to be stored before the confirmation
// is recorded.
type ProofImage struct {
	Filename    string
	ContentType string
	Data        []byte
}
