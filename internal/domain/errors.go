package domain

import (
	"errors"
	"fmt"
)

var (
	// Payee errors
	ErrPayeeNotFound           = errors.New("payee not found")
	ErrMerchantAccountNotFound = errors.New("merchant account not found")

	// Balance errors
	ErrBalanceNotFound     = errors.New("balance not found")
	ErrBalanceNotUnpaid    = errors.New("balance is not in unpaid state")
	ErrBalanceNotLocked    = errors.New("balance is not in processing state")
	ErrBalanceAlreadyOwned = errors.New("balance is already owned by another payment")

	// Payment errors
	ErrPaymentNotFound     = errors.New("payment not found")
	ErrInvalidTransition   = errors.New("invalid payment state transition")
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrNoPayableBalances   = errors.New("no payable balances for payee")
	ErrPaymentInFlight     = errors.New("another payment is already processing for payee")
	ErrUnknownProcessor    = errors.New("unknown payout processor")
	ErrMissingDestination  = errors.New("payee has no payout destination for processor")
	ErrCurrencyMismatch    = errors.New("balance currency does not match merchant account currency")
	ErrInstantNotSupported = errors.New("processor does not support instant payouts")
)

// ReconciliationError indicates a webhook event that could not be safely
// correlated with local payment state. It is fatal: the handler must surface
// it rather than leave a payment stale, and an operator reconciles manually.
type ReconciliationError struct {
	EventID    string
	TransferID string
	Reason     string
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("reconciliation error for event %s (transfer %s): %s", e.EventID, e.TransferID, e.Reason)
}

// NewReconciliationError builds a ReconciliationError for the given event.
func NewReconciliationError(eventID, transferID, format string, args ...any) *ReconciliationError {
	return &ReconciliationError{
		EventID:    eventID,
		TransferID: transferID,
		Reason:     fmt.Sprintf(format, args...),
	}
}

// IsReconciliationError reports whether err is a ReconciliationError.
func IsReconciliationError(err error) bool {
	var re *ReconciliationError
	return errors.As(err, &re)
}
