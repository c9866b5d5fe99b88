package domain

import "testing"

func TestCreditForReversalDifference(t *testing.T) {
	payment := &Payment{ID: "pay_1", PayeeID: "payee_1"}
	account := &MerchantAccount{ID: "acct_1", PayeeID: "payee_1"}

	tests := []struct {
		name          string
		sentCents     int64
		returnedCents int64
		wantNil       bool
		wantAmount    int64
	}{
		{name: "exact reversal creates no credit", sentCents: 100_00, returnedCents: 100_00, wantNil: true},
		{name: "shortfall debits payee", sentCents: 100_00, returnedCents: 95_00, wantAmount: -5_00},
		{name: "surplus credits payee", sentCents: 100_00, returnedCents: 105_00, wantAmount: 5_00},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			credit := CreditForReversalDifference(payment, account, tt.sentCents, tt.returnedCents, "usd")

			if tt.wantNil {
				if credit != nil {
					t.Fatalf("expected no credit, got %+v", credit)
				}
				return
			}

			if credit == nil {
				t.Fatal("expected credit, got nil")
			}
			if credit.AmountCents != tt.wantAmount {
				t.Errorf("expected amount %d, got %d", tt.wantAmount, credit.AmountCents)
			}
			if credit.BalanceTransaction.HoldingAmountNetCents != tt.returnedCents-tt.sentCents {
				t.Errorf("expected net holding %d, got %d",
					tt.returnedCents-tt.sentCents, credit.BalanceTransaction.HoldingAmountNetCents)
			}
			if credit.PaymentID != "pay_1" || credit.PayeeID != "payee_1" {
				t.Errorf("credit not linked to payment/payee: %+v", credit)
			}
		})
	}
}

func TestCreditForBankDebit(t *testing.T) {
	account := &MerchantAccount{ID: "acct_1", PayeeID: "payee_1"}

	credit := CreditForBankDebit(account, 42_50, "usd")

	if credit.PaymentID != "" {
		t.Errorf("bank debit credit must not link to a payment, got %q", credit.PaymentID)
	}
	if credit.AmountCents != 42_50 {
		t.Errorf("expected 4250, got %d", credit.AmountCents)
	}
	if credit.PayeeID != "payee_1" {
		t.Errorf("expected payee_1, got %s", credit.PayeeID)
	}
}
