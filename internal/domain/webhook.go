package domain

// PayoutEventKind is the normalized event type extracted from a processor
// webhook payload.
type PayoutEventKind string

const (
	PayoutEventPaid     PayoutEventKind = "paid"
	PayoutEventFailed   PayoutEventKind = "failed"
	PayoutEventCanceled PayoutEventKind = "canceled"
)

// PayoutEvent is the processor-neutral shape of an inbound payout webhook.
// Processor adapters parse raw payloads into this form before it is applied
// to local payment state.
type PayoutEvent struct {
	EventID   string
	Processor ProcessorID
	Kind      PayoutEventKind

	// TransferID is the processor-assigned id of the payout object the event
	// describes.
	TransferID string
	// PaymentExternalID is the platform's own payment id carried in the
	// payout's metadata. Empty for events the platform did not originate.
	PaymentExternalID string
	// OriginalPayoutID is set on reversal events: the reversal is a distinct
	// payout object pointing back at the payout it reverses. Correlation for
	// reversals goes through the original payout, not the reversal's own
	// metadata.
	OriginalPayoutID string

	AmountCents int64
	Currency    string
	// FailureReason is the processor-supplied failure code, if any.
	FailureReason string
	ArrivalDate   string

	// MerchantAccountID is the connected-account context the event was
	// delivered for.
	MerchantAccountID string
}

// IsReversal reports whether the event describes a reversal of a previously
// submitted payout.
func (e *PayoutEvent) IsReversal() bool {
	return e.OriginalPayoutID != ""
}

// IsBankDebit recognizes an automatic bank debit by event shape: the
// processor debiting the platform directly, with a negative amount and no
// associated payment metadata. These are not payment-linked events.
func (e *PayoutEvent) IsBankDebit() bool {
	return e.AmountCents < 0 && e.PaymentExternalID == "" && e.OriginalPayoutID == ""
}
