package domain

import "time"

// Event types published through the outbox.
const (
	EventTypePayoutInitiated = "payout.initiated"
	EventTypePayoutCompleted = "payout.completed"
	EventTypePayoutFailed    = "payout.failed"
	EventTypePayoutCancelled = "payout.cancelled"
	EventTypePayoutReturned  = "payout.returned"
	EventTypeCreditCreated   = "credit.created"
	// EventTypeOperatorAlert lands on the operator-facing channel: cannot-pay
	// failures, processor errors, reconciliation anomalies.
	EventTypeOperatorAlert = "payout.alert"
)

// Aggregate types
const (
	AggregateTypePayment = "payment"
	AggregateTypeCredit  = "credit"
	AggregateTypePayee   = "payee"
)

// OutboxEvent represents an event to be published.
type OutboxEvent struct {
	ID            string
	AggregateID   string
	AggregateType string
	EventType     string
	Payload       map[string]any
	CreatedAt     time.Time
	PublishedAt   *time.Time
	Published     bool
}

// PayoutFailedEvent is the payload delivered to the payee notification
// channel when a payout fails. Reason is the human-readable failure reason.
type PayoutFailedEvent struct {
	PaymentID string `json:"payment_id"`
	PayeeID   string `json:"payee_id"`
	Amount    int64  `json:"amount_cents"`
	Currency  string `json:"currency"`
	Reason    string `json:"reason"`
}

// PayoutCompletedEvent payload.
type PayoutCompletedEvent struct {
	PaymentID   string `json:"payment_id"`
	PayeeID     string `json:"payee_id"`
	Amount      int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
	ArrivalDate string `json:"arrival_date,omitempty"`
}

// CreditCreatedEvent payload.
type CreditCreatedEvent struct {
	CreditID  string `json:"credit_id"`
	PayeeID   string `json:"payee_id"`
	PaymentID string `json:"payment_id,omitempty"`
	Amount    int64  `json:"amount_cents"`
	Currency  string `json:"currency"`
}
