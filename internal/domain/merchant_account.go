package domain

import "time"

// HolderOfFunds is the legal entity holding a balance's money: the platform
// itself, or the payee's own connected account at the processor.
type HolderOfFunds string

const (
	HolderPlatform HolderOfFunds = "platform"
	HolderPayee    HolderOfFunds = "payee"
)

// MerchantAccount links a payee to a processor-side account and determines
// who legally holds the funds settled through it.
type MerchantAccount struct {
	ID            string
	PayeeID       string
	Processor     ProcessorID
	HolderOfFunds HolderOfFunds
	Currency      string // settlement currency of the account
	// ProcessorAccountID is the account's id at the processor, e.g. the
	// Stripe connected-account id webhook events are delivered for.
	ProcessorAccountID string
	BankAccountID      string // Stripe external account id, empty for PayPal
	BillingAgreementID string // PayPal billing agreement, empty for Stripe
	Deleted            bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Active reports whether the account can receive transfers.
func (m *MerchantAccount) Active() bool {
	return !m.Deleted
}

// HeldByPlatform reports whether funds settled through this account are
// legally held by the platform rather than the payee.
func (m *MerchantAccount) HeldByPlatform() bool {
	return m.HolderOfFunds == HolderPlatform
}
