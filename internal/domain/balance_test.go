package domain

import (
	"errors"
	"testing"
)

func TestBalance_MarkProcessing(t *testing.T) {
	tests := []struct {
		name      string
		state     BalanceState
		paymentID string
		errWant   error
	}{
		{name: "unpaid and unowned", state: BalanceUnpaid},
		{name: "already processing", state: BalanceProcessing, errWant: ErrBalanceNotUnpaid},
		{name: "already paid", state: BalancePaid, errWant: ErrBalanceNotUnpaid},
		{name: "owned by another payment", state: BalanceUnpaid, paymentID: "pay_other", errWant: ErrBalanceAlreadyOwned},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &Balance{State: tt.state, PaymentID: tt.paymentID}

			err := b.MarkProcessing("pay_1")

			if tt.errWant != nil {
				if !errors.Is(err, tt.errWant) {
					t.Errorf("expected %v, got %v", tt.errWant, err)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if b.State != BalanceProcessing || b.PaymentID != "pay_1" {
				t.Errorf("expected processing owned by pay_1, got %s/%s", b.State, b.PaymentID)
			}
		})
	}
}

func TestBalance_MarkUnpaid(t *testing.T) {
	b := &Balance{State: BalanceProcessing, PaymentID: "pay_1"}
	if err := b.MarkUnpaid(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.State != BalanceUnpaid {
		t.Errorf("expected unpaid, got %s", b.State)
	}
	if b.PaymentID != "" {
		t.Errorf("expected payment ownership cleared, got %q", b.PaymentID)
	}

	// reversal of a paid-out balance is also allowed
	b = &Balance{State: BalancePaid, PaymentID: "pay_1"}
	if err := b.MarkUnpaid(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	b = &Balance{State: BalanceUnpaid}
	if err := b.MarkUnpaid(); !errors.Is(err, ErrBalanceNotLocked) {
		t.Errorf("expected ErrBalanceNotLocked, got %v", err)
	}
}

func TestBalance_MarkPaid(t *testing.T) {
	b := &Balance{State: BalanceProcessing}
	if err := b.MarkPaid(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.State != BalancePaid {
		t.Errorf("expected paid, got %s", b.State)
	}

	b = &Balance{State: BalanceUnpaid}
	if err := b.MarkPaid(); !errors.Is(err, ErrBalanceNotLocked) {
		t.Errorf("expected ErrBalanceNotLocked, got %v", err)
	}
}
