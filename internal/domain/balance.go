package domain

import "time"

// BalanceState is the lifecycle state of a balance.
type BalanceState string

const (
	BalanceUnpaid     BalanceState = "unpaid"
	BalanceProcessing BalanceState = "processing"
	BalancePaid       BalanceState = "paid"
)

// Balance is a payee's earned-but-unpaid funds for one settlement date.
// AmountCents is denominated in the payee's payout currency;
// HoldingAmountCents/HoldingCurrency describe the money as the platform
// actually holds it, which may differ.
type Balance struct {
	ID                 string
	PayeeID            string
	MerchantAccountID  string
	SettlementDate     time.Time
	AmountCents        int64
	HoldingAmountCents int64
	HoldingCurrency    string
	State              BalanceState
	PaymentID          string // set while owned by an in-flight payment
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// MarkProcessing transitions unpaid -> processing and records the owning
// payment. A balance may be owned by at most one in-flight payment; the
// repository performs this under a row lock with a conditional update, and
// this method enforces the same invariant in memory.
func (b *Balance) MarkProcessing(paymentID string) error {
	if b.State != BalanceUnpaid {
		return ErrBalanceNotUnpaid
	}
	if b.PaymentID != "" && b.PaymentID != paymentID {
		return ErrBalanceAlreadyOwned
	}
	b.State = BalanceProcessing
	b.PaymentID = paymentID
	return nil
}

// MarkPaid transitions processing -> paid.
func (b *Balance) MarkPaid() error {
	if b.State != BalanceProcessing {
		return ErrBalanceNotLocked
	}
	b.State = BalancePaid
	return nil
}

// MarkUnpaid releases a balance back to unpaid after a failed, cancelled or
// reversed payment, clearing payment ownership so a future run can retry it.
func (b *Balance) MarkUnpaid() error {
	if b.State == BalanceUnpaid {
		return ErrBalanceNotLocked
	}
	b.State = BalanceUnpaid
	b.PaymentID = ""
	return nil
}
