// Package processor implements the payout processors the platform disburses
// through. Each processor wraps an opaque gateway client and exposes the
// same capability surface: payee/balance payability checks, payment amount
// preparation, the two-phase disbursement protocol, internal-transfer
// reversal, and webhook payload parsing.
package processor

import (
	"context"
	"time"

	"github.com/vendora/payouts/internal/domain"
)

// EligibilityContext carries the payee-level inputs a processor needs for
// its payability check.
type EligibilityContext struct {
	Payee    *domain.Payee
	Accounts []*domain.MerchantAccount
	// PayableCents is the payee's total payable amount up to the cutoff.
	PayableCents int64
	// HasProcessingPayment is true when another payment for this payee is
	// currently in flight.
	HasProcessingPayment bool
}

// PayoutProcessor is the closed set of payment processors. Implementations
// are selected through a constructed Registry, never by open string
// dispatch.
type PayoutProcessor interface {
	ID() domain.ProcessorID

	// IsUserPayable reports whether the payee has a valid, non-deleted payout
	// destination correctly linked to this processor and no other payment in
	// flight. The returned reason is a literal, user-facing message when not
	// payable.
	IsUserPayable(ctx context.Context, ec EligibilityContext) (bool, string)

	// SettlementAccount picks the merchant account the payment settles
	// through: the payee-held connected account for Stripe, the
	// platform-held account for PayPal. Nil when the payee has none.
	SettlementAccount(accounts []*domain.MerchantAccount) *domain.MerchantAccount

	// IsBalancePayable reports whether this processor can pay out the given
	// balance: the merchant account's holder of funds must be compatible with
	// the processor and the balance's holding currency must match the
	// account's settlement currency. Mismatches are rejected, not coerced.
	IsBalancePayable(balance *domain.Balance, account *domain.MerchantAccount) bool

	// PreparePayment sets the payment's currency, amount and destination,
	// converting from the payout currency to the destination account's
	// settlement currency, and computes the platform-held sub-amount routed
	// through the internal transfer leg.
	PreparePayment(ctx context.Context, payment *domain.Payment, payee *domain.Payee, account *domain.MerchantAccount, balances []*domain.Balance, accounts map[string]*domain.MerchantAccount) error

	// PerformPayment executes the disbursement: optional internal transfer,
	// then the external transfer. Failures are converted to an error list at
	// this boundary so batch runs can continue with other payees.
	PerformPayment(ctx context.Context, payment *domain.Payment, account *domain.MerchantAccount) []error

	// ReverseInternalTransfer undoes a payment's internal transfer leg and
	// reports the amount actually returned, derived from processor-side data
	// on the destination account rather than assumed equal to the amount
	// sent.
	ReverseInternalTransfer(ctx context.Context, payment *domain.Payment) (returnedCents int64, holdingCurrency string, err error)

	// ParseWebhook normalizes a raw webhook payload delivered for the given
	// connected-account context.
	ParseWebhook(payload []byte, accountContext string) (*domain.PayoutEvent, error)
}

// InternalTransferRequest moves platform-held funds from the platform's
// processor account to the payee's connected account.
type InternalTransferRequest struct {
	PaymentID          string
	DestinationAccount string
	AmountUnits        int64
	Currency           string
}

// PayoutRequest moves the full payment amount from the connected account to
// the payee's bank account or PayPal account.
type PayoutRequest struct {
	PaymentID           string
	SourceAccount       string
	Destination         string // bank account id or PayPal payout email
	AmountUnits         int64
	Currency            string
	Instant             bool
	StatementDescriptor string // shown on the payee's bank statement; Stripe only
}

// TransferResult is the processor's response to a transfer or payout.
type TransferResult struct {
	TransferID  string
	ArrivalDate *time.Time
}

// ReversalResult reports what a reversed internal transfer actually
// returned on the destination account's side.
type ReversalResult struct {
	ReversalID          string
	AmountReturnedUnits int64
	Currency            string
}

// Gateway is the opaque processor client capability. Real implementations
// call the processor's REST API; tests substitute a fake.
type Gateway interface {
	CreateInternalTransfer(ctx context.Context, req InternalTransferRequest) (*TransferResult, error)
	CreatePayout(ctx context.Context, req PayoutRequest) (*TransferResult, error)
	ReverseInternalTransfer(ctx context.Context, transferID string) (*ReversalResult, error)
}

// PaymentUpdater persists payment mutations between disbursement phases so
// processor-assigned identifiers survive a crash mid-protocol.
type PaymentUpdater interface {
	Update(ctx context.Context, payment *domain.Payment) error
}

// CreditWriter records compensating credits created during phase-1
// reversals.
type CreditWriter interface {
	Create(ctx context.Context, credit *domain.Credit) error
}

// Alerter is the operator-facing error channel.
type Alerter interface {
	Alert(ctx context.Context, subject string, fields map[string]any)
}
