package model

import (
	"errors"
	"fmt"
)

// ErrorResponse represents a standardised error response.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	CorrelationID string `json:"correlationId,omitempty"`
}

// ErrorKind classifies domain errors. Handlers map kinds to HTTP status codes.
type ErrorKind string

const (
	KindValidation          ErrorKind = "VALIDATION"
	KindInvalidTransition   ErrorKind = "INVALID_TRANSITION"
	KindConflict            ErrorKind = "CONFLICT"
	KindInsufficientStock   ErrorKind = "INSUFFICIENT_STOCK"
	KindInsufficientBalance ErrorKind = "INSUFFICIENT_BALANCE"
	KindNotFound            ErrorKind = "NOT_FOUND"
	KindPermission          ErrorKind = "PERMISSION_DENIED"
)

// Standard error codes for API responses
const (
	ErrCodeInvalidJSON         = "INVALID_JSON"
	ErrCodeMissingField        = "MISSING_FIELD"
	ErrCodeInvalidQuantity     = "INVALID_QUANTITY"
	ErrCodeInvalidStatus       = "INVALID_STATUS"
	ErrCodeInvalidRole         = "INVALID_ROLE"
	ErrCodeInvalidPayment      = "INVALID_PAYMENT_METHOD"
	ErrCodeInvalidAmount       = "INVALID_AMOUNT"
	ErrCodeInvalidMovement     = "INVALID_MOVEMENT"
	ErrCodeProductNotFound     = "PRODUCT_NOT_FOUND"
	ErrCodeProductInactive     = "PRODUCT_INACTIVE"
	ErrCodeOrderNotFound       = "ORDER_NOT_FOUND"
	ErrCodePayoutNotFound      = "PAYOUT_NOT_FOUND"
	ErrCodeProfileNotFound     = "PROFILE_NOT_FOUND"
	ErrCodeInventoryNotFound   = "INVENTORY_NOT_FOUND"
	ErrCodeInvalidTransition   = "INVALID_TRANSITION"
	ErrCodeOrderTaken          = "ORDER_ALREADY_TAKEN"
	ErrCodeCourierMismatch     = "COURIER_MISMATCH"
	ErrCodeDuplicate           = "DUPLICATE"
	ErrCodeInsufficientStock   = "INSUFFICIENT_STOCK"
	ErrCodeInsufficientBalance = "INSUFFICIENT_BALANCE"
	ErrCodeUnauthorised        = "UNAUTHORIZED"
	ErrCodeForbidden           = "FORBIDDEN"
	ErrCodeInternalError       = "INTERNAL_ERROR"
)

// DomainError is the error type returned by ledgers and services for business rule
// violations. Infrastructure failures are plain wrapped errors.
type DomainError struct {
	Kind    ErrorKind
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

// Is matches on Code when the target carries one, otherwise on Kind, so both
// errors.Is(err, ErrOrderTaken) and errors.Is(err, ErrConflict) work.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	if t.Code != "" {
		return t.Code == e.Code
	}
	return t.Kind == e.Kind
}

// NewDomainError creates a new domain error
func NewDomainError(kind ErrorKind, code, message string) *DomainError {
	return &DomainError{
		Kind:    kind,
		Code:    code,
		Message: message,
	}
}

// Kind sentinels, matched by kind only.
var (
	ErrValidation          = &DomainError{Kind: KindValidation}
	ErrInvalidTransition   = &DomainError{Kind: KindInvalidTransition}
	ErrConflict            = &DomainError{Kind: KindConflict}
	ErrInsufficientStock   = &DomainError{Kind: KindInsufficientStock}
	ErrInsufficientBalance = &DomainError{Kind: KindInsufficientBalance}
	ErrNotFound            = &DomainError{Kind: KindNotFound}
	ErrPermission          = &DomainError{Kind: KindPermission}
)

// Common domain errors
var (
	ErrInvalidQuantity = NewDomainError(KindValidation, ErrCodeInvalidQuantity, "jumlah harus lebih dari nol")
	ErrOrderNotFound   = NewDomainError(KindNotFound, ErrCodeOrderNotFound, "pesanan tidak ditemukan")
	ErrPayoutNotFound  = NewDomainError(KindNotFound, ErrCodePayoutNotFound, "permintaan pencairan tidak ditemukan")
	ErrProfileNotFound = NewDomainError(KindNotFound, ErrCodeProfileNotFound, "profil pembeli tidak ditemukan")
	ErrOrderTaken      = NewDomainError(KindConflict, ErrCodeOrderTaken, "sudah diambil kurir lain")
	ErrCourierMismatch = NewDomainError(KindConflict, ErrCodeCourierMismatch, "kurir pesanan sudah berubah")
)

// NewValidationError reports malformed or out-of-range input.
func NewValidationError(code, message string) *DomainError {
	return NewDomainError(KindValidation, code, message)
}

// NewNotFoundError reports a missing entity.
func NewNotFoundError(code, message string) *DomainError {
	return NewDomainError(KindNotFound, code, message)
}

// NewPermissionError reports an actor acting outside its role or ownership.
func NewPermissionError(message string) *DomainError {
	return NewDomainError(KindPermission, ErrCodeForbidden, message)
}

// NewConflictError reports a lost race or a uniqueness violation.
func NewConflictError(code, message string) *DomainError {
	return NewDomainError(KindConflict, code, message)
}

// NewInvalidTransitionError reports a status change outside the allowed successors.
func NewInvalidTransitionError(from, to fmt.Stringer) *DomainError {
	return NewDomainError(KindInvalidTransition, ErrCodeInvalidTransition,
		fmt.Sprintf("transisi status tidak valid: %s -> %s", from, to))
}

// NewInsufficientStockError reports that a product cannot cover the requested quantity.
func NewInsufficientStockError(productName string, requested, available int) *DomainError {
	return NewDomainError(KindInsufficientStock, ErrCodeInsufficientStock,
		fmt.Sprintf("stok tidak cukup untuk %s: diminta %d, tersedia %d", productName, requested, available))
}

// NewInsufficientBalanceError reports a commission balance that cannot cover an amount.
func NewInsufficientBalanceError(requested, available fmt.Stringer) *DomainError {
	return NewDomainError(KindInsufficientBalance, ErrCodeInsufficientBalance,
		fmt.Sprintf("saldo komisi tidak cukup: diminta %s, tersedia %s", requested, available))
}

// KindOf returns the kind of the first DomainError in err's chain, or "" when
// err is not a domain error.
func KindOf(err error) ErrorKind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}
