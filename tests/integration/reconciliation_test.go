package integration

import (
	"context"
	"testing"

	"github.com/vendora/payouts/internal/domain"
	"github.com/vendora/payouts/internal/usecase"
	"github.com/vendora/payouts/tests/testutil"
)

func disburse(t *testing.T, ctx context.Context, testDB *testutil.TestDB, s *stack, amountCents int64) *domain.Payment {
	t.Helper()

	payee := testDB.CreatePayee(ctx, "eve", "USD", 10_00)
	account := testDB.CreateMerchantAccount(ctx, payee.ID, domain.ProcessorStripe, domain.HolderPayee, "USD")
	testDB.CreateBalance(ctx, payee.ID, account.ID, cutoffDate().AddDate(0, 0, -1), amountCents, "USD")

	result, err := s.payoutUC.ProcessPayout(ctx, usecase.ProcessPayoutInput{
		PayeeID:    payee.ID,
		CutoffDate: cutoffDate(),
	})
	if err != nil {
		t.Fatalf("payout failed: %v", err)
	}
	if result.Skipped {
		t.Fatalf("expected payout, got skip: %s", result.Reason)
	}
	return result.Payment
}

func TestPaidWebhookCompletesPayment(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx := context.Background()
	testDB := testutil.NewTestDB(t)
	defer testDB.Cleanup()
	testDB.TruncateAll(ctx)

	s := newStack(t, testDB)
	payment := disburse(t, ctx, testDB, s, 50_00)

	evt := &domain.PayoutEvent{
		EventID:           "evt_paid_1",
		Processor:         domain.ProcessorStripe,
		Kind:              domain.PayoutEventPaid,
		TransferID:        payment.ExternalTransferID,
		PaymentExternalID: payment.ID,
		AmountCents:       payment.AmountCents,
		Currency:          payment.Currency,
		ArrivalDate:       "2026-09-02",
	}
	if err := s.reconUC.HandleEvent(ctx, evt); err != nil {
		t.Fatalf("paid event failed: %v", err)
	}

	stored, err := s.payments.GetByID(ctx, payment.ID)
	if err != nil {
		t.Fatalf("failed to load payment: %v", err)
	}
	if stored.State != domain.PaymentCompleted {
		t.Errorf("expected completed payment, got %s", stored.State)
	}
	if stored.ArrivalDate == nil || stored.ArrivalDate.Format("2006-01-02") != "2026-09-02" {
		t.Errorf("expected arrival date recorded, got %v", stored.ArrivalDate)
	}

	for id, state := range testDB.BalanceStates(ctx, payment.PayeeID) {
		if state != string(domain.BalancePaid) {
			t.Errorf("expected balance %s paid, got %s", id, state)
		}
	}

	// Redelivery of the same event id is dropped without side effects
	if err := s.reconUC.HandleEvent(ctx, evt); err != nil {
		t.Fatalf("duplicate event errored: %v", err)
	}

	events, err := s.outbox.GetUnpublished(ctx, 50)
	if err != nil {
		t.Fatalf("failed to read outbox: %v", err)
	}
	completed := 0
	for _, e := range events {
		if e.EventType == domain.EventTypePayoutCompleted && e.AggregateID == payment.ID {
			completed++
		}
	}
	if completed != 1 {
		t.Errorf("expected exactly one payout.completed event, got %d", completed)
	}
}

func TestFailedWebhookReleasesBalances(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx := context.Background()
	testDB := testutil.NewTestDB(t)
	defer testDB.Cleanup()
	testDB.TruncateAll(ctx)

	s := newStack(t, testDB)
	payment := disburse(t, ctx, testDB, s, 40_00)

	evt := &domain.PayoutEvent{
		EventID:       "evt_failed_1",
		Processor:     domain.ProcessorStripe,
		Kind:          domain.PayoutEventFailed,
		TransferID:    payment.ExternalTransferID,
		AmountCents:   payment.AmountCents,
		Currency:      payment.Currency,
		FailureReason: "account_closed",
	}
	if err := s.reconUC.HandleEvent(ctx, evt); err != nil {
		t.Fatalf("failed event errored: %v", err)
	}

	stored, err := s.payments.GetByID(ctx, payment.ID)
	if err != nil {
		t.Fatalf("failed to load payment: %v", err)
	}
	if stored.State != domain.PaymentFailed {
		t.Errorf("expected failed payment, got %s", stored.State)
	}

	for id, state := range testDB.BalanceStates(ctx, payment.PayeeID) {
		if state != string(domain.BalanceUnpaid) {
			t.Errorf("expected balance %s released, got %s", id, state)
		}
	}
}

func TestMismatchedMetadataRejected(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx := context.Background()
	testDB := testutil.NewTestDB(t)
	defer testDB.Cleanup()
	testDB.TruncateAll(ctx)

	s := newStack(t, testDB)
	payment := disburse(t, ctx, testDB, s, 40_00)

	evt := &domain.PayoutEvent{
		EventID:           "evt_mismatch_1",
		Processor:         domain.ProcessorStripe,
		Kind:              domain.PayoutEventPaid,
		TransferID:        payment.ExternalTransferID,
		PaymentExternalID: "pay_someone_else",
		AmountCents:       payment.AmountCents,
		Currency:          payment.Currency,
	}

	err := s.reconUC.HandleEvent(ctx, evt)
	if err == nil {
		t.Fatal("expected reconciliation error for mismatched metadata")
	}
	if !domain.IsReconciliationError(err) {
		t.Fatalf("expected a reconciliation error, got %v", err)
	}

	stored, err := s.payments.GetByID(ctx, payment.ID)
	if err != nil {
		t.Fatalf("failed to load payment: %v", err)
	}
	if stored.State != domain.PaymentProcessing {
		t.Errorf("expected payment left processing, got %s", stored.State)
	}
}
