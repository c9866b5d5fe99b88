package domain

import "time"

// ProcessorID identifies a payout processor. The set is closed: string
// dispatch from config or webhooks must go through ParseProcessorID so a
// typo cannot silently resolve to "no processor".
type ProcessorID string

const (
	ProcessorStripe ProcessorID = "stripe"
	ProcessorPayPal ProcessorID = "paypal"
)

// AllProcessors lists every configured processor, in evaluation order for
// the multi-processor payability check.
var AllProcessors = []ProcessorID{ProcessorStripe, ProcessorPayPal}

// ParseProcessorID validates a processor identifier.
func ParseProcessorID(s string) (ProcessorID, error) {
	switch ProcessorID(s) {
	case ProcessorStripe, ProcessorPayPal:
		return ProcessorID(s), nil
	default:
		return "", ErrUnknownProcessor
	}
}

// PausedBy records who paused a payee's payouts, if anyone.
type PausedBy string

const (
	PausedByNone     PausedBy = ""
	PausedBySelf     PausedBy = "self"
	PausedByOperator PausedBy = "operator"
)

// Payee is a seller who accumulates balances and receives payouts.
type Payee struct {
	ID                 string
	Name               string
	Email              string
	Currency           string // payout currency, ISO 4217
	MinimumPayoutCents int64
	Suspended          bool
	PayoutsPausedBy    PausedBy
	PaypalPayoutEmail  string // empty when no PayPal destination
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// PayoutsPaused reports whether payouts are paused by anyone.
func (p *Payee) PayoutsPaused() bool {
	return p.PayoutsPausedBy != PausedByNone
}

// PayeeNote is an append-only, human-readable record of why a payout run
// skipped or acted on a payee. Payees never see these directly.
type PayeeNote struct {
	ID        string
	PayeeID   string
	Author    string // "system" for scheduled runs, admin user id otherwise
	Content   string
	CreatedAt time.Time
}
