package domain

import "time"

// BalanceTransaction is the holding-currency breakdown attached to a credit.
type BalanceTransaction struct {
	HoldingAmountGrossCents int64
	HoldingAmountNetCents   int64
	HoldingAmountFeeCents   int64
	HoldingCurrency         string
}

// Credit is a compensating ledger entry, immutable once written. It is
// created only by webhook reconciliation: either for the difference
// between what an internal transfer sent and what its reversal actually
// returned, or for an automatic bank debit taken by the processor.
type Credit struct {
	ID                 string
	PayeeID            string
	MerchantAccountID  string
	PaymentID          string // empty for automatic bank debits
	AmountCents        int64
	BalanceTransaction BalanceTransaction
	CreatedAt          time.Time
}

// CreditForReversalDifference builds the compensating credit for a reversed
// internal transfer. Returns nil when the reversal returned exactly the
// amount originally sent: a zero-difference reversal creates no credit.
//
// The net holding amount is returned - sent: if less came back than was
// sent the payee's balance is debited by the shortfall, if more came back
// the payee is credited the surplus.
func CreditForReversalDifference(payment *Payment, account *MerchantAccount, sentCents, returnedCents int64, holdingCurrency string) *Credit {
	diff := returnedCents - sentCents
	if diff == 0 {
		return nil
	}

	return &Credit{
		PayeeID:           payment.PayeeID,
		MerchantAccountID: account.ID,
		PaymentID:         payment.ID,
		AmountCents:       diff,
		BalanceTransaction: BalanceTransaction{
			HoldingAmountGrossCents: diff,
			HoldingAmountNetCents:   diff,
			HoldingCurrency:         holdingCurrency,
		},
	}
}

// CreditForBankDebit builds the credit recorded when the processor debits
// the platform's bank account directly. The debited amount is credited back
// to the payee's merchant-account balance; no payment is involved.
func CreditForBankDebit(account *MerchantAccount, amountCents int64, currency string) *Credit {
	return &Credit{
		PayeeID:           account.PayeeID,
		MerchantAccountID: account.ID,
		AmountCents:       amountCents,
		BalanceTransaction: BalanceTransaction{
			HoldingAmountGrossCents: amountCents,
			HoldingAmountNetCents:   amountCents,
			HoldingCurrency:         currency,
		},
	}
}
