package domain

import "time"

// PaymentState is the lifecycle state of a payment.
type PaymentState string

const (
	PaymentCreating   PaymentState = "creating"
	PaymentProcessing PaymentState = "processing"
	PaymentCompleted  PaymentState = "completed"
	PaymentFailed     PaymentState = "failed"
	PaymentCancelled  PaymentState = "cancelled"
	PaymentReturned   PaymentState = "returned"
)

// Terminal reports whether no further processor-driven transition applies.
// Returned payments are terminal but reached only from completed.
func (s PaymentState) Terminal() bool {
	switch s {
	case PaymentFailed, PaymentCancelled, PaymentReturned:
		return true
	}
	return false
}

// FailureReason enumerates why a payment failed.
type FailureReason string

const (
	FailureNone FailureReason = ""
	// FailureCannotPay: the destination account is not fully onboarded and
	// cannot receive funds. Downstream messaging keys off this code.
	FailureCannotPay         FailureReason = "cannot_pay"
	FailureInsufficientFunds FailureReason = "insufficient_funds"
	FailureAccountClosed     FailureReason = "account_closed"
	FailureProcessorError    FailureReason = "processor_error"
	FailureReversed          FailureReason = "reversed"
)

// PayoutType selects standard or instant processor latency.
type PayoutType string

const (
	PayoutStandard PayoutType = "standard"
	PayoutInstant  PayoutType = "instant"
)

// Payment is one disbursement attempt aggregating one or more balances for
// one payee, one cutoff date and one processor. Its amount always equals the
// sum of its constituent balances' payout-currency amounts.
type Payment struct {
	ID                string
	PayeeID           string
	MerchantAccountID string
	Processor         ProcessorID
	AmountCents       int64
	Currency          string
	// Destination is processor-specific: the linked bank account id for
	// Stripe, the payout email for PayPal.
	Destination        string
	State              PaymentState
	PayoutType         PayoutType
	CutoffDate         time.Time
	ExternalTransferID string
	InternalTransferID string
	// InternalAmountCents is the platform-held sub-amount staged through the
	// internal transfer leg. Zero when no internal leg was required.
	InternalAmountCents int64
	FailureReason       FailureReason
	ArrivalDate         *time.Time
	// ReversalPending marks a payment whose payout is being reversed by the
	// processor. A reversal that itself fails after this is set is a
	// reconciliation error requiring manual review.
	ReversalPending bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// HasInternalTransfer reports whether an internal platform->connected leg
// was performed.
func (p *Payment) HasInternalTransfer() bool {
	return p.InternalTransferID != ""
}

// MarkProcessing transitions creating -> processing once the external
// transfer has been submitted.
func (p *Payment) MarkProcessing(externalTransferID string) error {
	if p.State != PaymentCreating {
		return ErrInvalidTransition
	}
	p.State = PaymentProcessing
	p.ExternalTransferID = externalTransferID
	return nil
}

// MarkCompleted transitions processing -> completed on a paid event.
func (p *Payment) MarkCompleted() error {
	if p.State != PaymentProcessing {
		return ErrInvalidTransition
	}
	p.State = PaymentCompleted
	return nil
}

// MarkFailed transitions creating or processing -> failed with a reason.
func (p *Payment) MarkFailed(reason FailureReason) error {
	if p.State != PaymentCreating && p.State != PaymentProcessing {
		return ErrInvalidTransition
	}
	p.State = PaymentFailed
	p.FailureReason = reason
	return nil
}

// MarkCancelled transitions processing -> cancelled on a processor-side
// cancellation of an already-submitted payout instruction.
func (p *Payment) MarkCancelled() error {
	if p.State != PaymentProcessing {
		return ErrInvalidTransition
	}
	p.State = PaymentCancelled
	return nil
}

// MarkReturned transitions completed -> returned when money is clawed back
// after the payout was recorded as paid.
func (p *Payment) MarkReturned() error {
	if p.State != PaymentCompleted {
		return ErrInvalidTransition
	}
	p.State = PaymentReturned
	return nil
}
