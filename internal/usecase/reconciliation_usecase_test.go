package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vendora/payouts/internal/currency"
	"github.com/vendora/payouts/internal/domain"
	"github.com/vendora/payouts/internal/processor"
	"github.com/vendora/payouts/internal/usecase"
	"github.com/vendora/payouts/internal/usecase/mocks"
)

type reconciliationFixture struct {
	uc       *usecase.ReconciliationUseCase
	accounts *mocks.MockMerchantAccountRepository
	balances *mocks.MockBalanceRepository
	payments *mocks.MockPaymentRepository
	credits  *mocks.MockCreditRepository
	outbox   *mocks.MockOutboxRepository
	events   *mocks.MockWebhookEventRepository
	gateway  *processor.FakeGateway
}

func newReconciliationFixture(t *testing.T) *reconciliationFixture {
	t.Helper()

	conv, err := currency.NewTableConverter(nil)
	require.NoError(t, err)

	accounts := mocks.NewMockMerchantAccountRepository()
	balances := mocks.NewMockBalanceRepository()
	payments := mocks.NewMockPaymentRepository()
	credits := mocks.NewMockCreditRepository()
	outbox := mocks.NewMockOutboxRepository()
	gateway := processor.NewFakeGateway()
	txManager := mocks.NewMockTransactionManager()

	stripe := processor.NewStripe(processor.StripeConfig{
		Gateway:   gateway,
		Converter: conv,
		Payments:  payments,
		Credits:   credits,
		Alerts:    &testAlerter{},
		Logger:    zerolog.Nop(),
	})
	paypal := processor.NewPayPal(processor.PayPalConfig{
		Gateway:   gateway,
		Converter: conv,
		Payments:  payments,
		Alerts:    &testAlerter{},
		Logger:    zerolog.Nop(),
	})

	registry := processor.NewRegistry(stripe, paypal)
	balanceUC := usecase.NewBalanceUseCase(txManager, balances, accounts, registry, mocks.NewMockCache())
	events := mocks.NewMockWebhookEventRepository()

	uc := usecase.NewReconciliationUseCase(
		payments, accounts, credits, outbox,
		events,
		txManager, balanceUC,
		registry,
		mocks.NewMockIDGenerator(),
		zerolog.Nop(),
	)

	return &reconciliationFixture{
		uc:       uc,
		accounts: accounts,
		balances: balances,
		payments: payments,
		credits:  credits,
		outbox:   outbox,
		events:   events,
		gateway:  gateway,
	}
}

// seedProcessingPayment installs a processing payment with one owned balance.
func (f *reconciliationFixture) seedProcessingPayment(internalTransferID string) (*domain.Payment, *domain.Balance) {
	payment := &domain.Payment{
		ID:                 "pay_1",
		PayeeID:            "payee_1",
		MerchantAccountID:  "acct_stripe",
		Processor:          domain.ProcessorStripe,
		AmountCents:        50_00,
		Currency:           "USD",
		State:              domain.PaymentProcessing,
		ExternalTransferID: "po_1",
		InternalTransferID: internalTransferID,
	}
	if internalTransferID != "" {
		payment.InternalAmountCents = 20_00
	}
	f.payments.Add(payment)

	balance := &domain.Balance{
		ID:                 "bal_1",
		PayeeID:            "payee_1",
		MerchantAccountID:  "acct_stripe",
		AmountCents:        50_00,
		HoldingAmountCents: 50_00,
		HoldingCurrency:    "USD",
		State:              domain.BalanceProcessing,
		PaymentID:          payment.ID,
	}
	f.balances.Add(balance)

	f.accounts.Add(stripePayeeAccount())

	return payment, balance
}

func paidEvent(eventID, transferID, paymentID string) *domain.PayoutEvent {
	return &domain.PayoutEvent{
		EventID:           eventID,
		Processor:         domain.ProcessorStripe,
		Kind:              domain.PayoutEventPaid,
		TransferID:        transferID,
		PaymentExternalID: paymentID,
		AmountCents:       50_00,
		Currency:          "USD",
		ArrivalDate:       "2024-03-04",
	}
}

func TestHandleEvent_Paid(t *testing.T) {
	f := newReconciliationFixture(t)
	payment, balance := f.seedProcessingPayment("")

	err := f.uc.HandleEvent(context.Background(), paidEvent("evt_1", "po_1", payment.ID))
	require.NoError(t, err)

	assert.Equal(t, domain.PaymentCompleted, payment.State)
	require.NotNil(t, payment.ArrivalDate)
	assert.Equal(t, "2024-03-04", payment.ArrivalDate.Format("2006-01-02"))
	assert.Equal(t, domain.BalancePaid, balance.State)
	assert.Equal(t, payment.ID, balance.PaymentID)

	completed := f.outbox.EventsOfType(domain.EventTypePayoutCompleted)
	require.Len(t, completed, 1)
}

func TestHandleEvent_DuplicateEventDropped(t *testing.T) {
	f := newReconciliationFixture(t)
	payment, _ := f.seedProcessingPayment("")

	require.NoError(t, f.uc.HandleEvent(context.Background(), paidEvent("evt_1", "po_1", payment.ID)))

	// Same event id redelivered: no second transition, no error.
	require.NoError(t, f.uc.HandleEvent(context.Background(), paidEvent("evt_1", "po_1", payment.ID)))

	assert.Len(t, f.outbox.EventsOfType(domain.EventTypePayoutCompleted), 1)
}

func TestHandleEvent_TransientFailureRetriedOnRedelivery(t *testing.T) {
	f := newReconciliationFixture(t)
	payment, balance := f.seedProcessingPayment("")

	calls := 0
	f.payments.UpdateFunc = func(_ context.Context, _ *domain.Payment) error {
		calls++
		if calls == 1 {
			return errors.New("connection reset by peer")
		}
		return nil
	}

	// The first delivery dies on the payment write: the event must not be
	// recorded as handled.
	err := f.uc.HandleEvent(context.Background(), paidEvent("evt_1", "po_1", payment.ID))
	require.Error(t, err)
	assert.False(t, domain.IsReconciliationError(err))

	// The same event id redelivered is retried, not dropped as a duplicate,
	// and the payment settles.
	require.NoError(t, f.uc.HandleEvent(context.Background(), paidEvent("evt_1", "po_1", payment.ID)))

	assert.Equal(t, domain.PaymentCompleted, payment.State)
	assert.Equal(t, domain.BalancePaid, balance.State)
}

func TestHandleEvent_PaidTwiceIsIdempotent(t *testing.T) {
	f := newReconciliationFixture(t)
	payment, _ := f.seedProcessingPayment("")

	require.NoError(t, f.uc.HandleEvent(context.Background(), paidEvent("evt_1", "po_1", payment.ID)))

	// A distinct paid event for an already-completed payment is a no-op.
	require.NoError(t, f.uc.HandleEvent(context.Background(), paidEvent("evt_2", "po_1", payment.ID)))

	assert.Equal(t, domain.PaymentCompleted, payment.State)
	assert.Len(t, f.outbox.EventsOfType(domain.EventTypePayoutCompleted), 1)
}

func TestHandleEvent_UnknownTransfer(t *testing.T) {
	f := newReconciliationFixture(t)

	err := f.uc.HandleEvent(context.Background(), paidEvent("evt_1", "po_missing", ""))
	require.Error(t, err)
	assert.True(t, domain.IsReconciliationError(err))

	alerts := f.outbox.EventsOfType(domain.EventTypeOperatorAlert)
	require.Len(t, alerts, 1)
}

func TestHandleEvent_MetadataMismatch(t *testing.T) {
	f := newReconciliationFixture(t)
	f.seedProcessingPayment("")

	err := f.uc.HandleEvent(context.Background(), paidEvent("evt_1", "po_1", "pay_other"))
	require.Error(t, err)
	assert.True(t, domain.IsReconciliationError(err))
}

func TestHandleEvent_Failed(t *testing.T) {
	f := newReconciliationFixture(t)
	payment, balance := f.seedProcessingPayment("")

	err := f.uc.HandleEvent(context.Background(), &domain.PayoutEvent{
		EventID:           "evt_1",
		Processor:         domain.ProcessorStripe,
		Kind:              domain.PayoutEventFailed,
		TransferID:        "po_1",
		PaymentExternalID: payment.ID,
		FailureReason:     "account_closed",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.PaymentFailed, payment.State)
	assert.Equal(t, domain.FailureAccountClosed, payment.FailureReason)

	// The balance is released for a future run.
	assert.Equal(t, domain.BalanceUnpaid, balance.State)
	assert.Empty(t, balance.PaymentID)

	failed := f.outbox.EventsOfType(domain.EventTypePayoutFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, "account_closed", failed[0].Payload["reason"])
}

func TestHandleEvent_FailedAfterCompleted_ReturnsPayment(t *testing.T) {
	f := newReconciliationFixture(t)
	payment, balance := f.seedProcessingPayment("tr_1")

	require.NoError(t, f.uc.HandleEvent(context.Background(), paidEvent("evt_1", "po_1", payment.ID)))
	require.Equal(t, domain.PaymentCompleted, payment.State)

	// The reversal returns less than was sent: 20.00 out, 15.00 back.
	f.gateway.ReversalReturnedUnits = 15_00

	err := f.uc.HandleEvent(context.Background(), &domain.PayoutEvent{
		EventID:           "evt_2",
		Processor:         domain.ProcessorStripe,
		Kind:              domain.PayoutEventFailed,
		TransferID:        "po_1",
		PaymentExternalID: payment.ID,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.PaymentReturned, payment.State)
	assert.Equal(t, domain.FailureReversed, payment.FailureReason)
	assert.False(t, payment.ReversalPending)
	assert.Equal(t, domain.BalanceUnpaid, balance.State)

	require.Len(t, f.gateway.Reversals, 1)

	// The 5.00 shortfall is recorded as a compensating credit.
	credits := f.credits.Credits()
	require.Len(t, credits, 1)
	assert.Equal(t, int64(-5_00), credits[0].AmountCents)
	assert.Equal(t, payment.ID, credits[0].PaymentID)

	returned := f.outbox.EventsOfType(domain.EventTypePayoutReturned)
	require.Len(t, returned, 1)
}

func TestHandleEvent_FailedAfterCompleted_ExactReversalNoCredit(t *testing.T) {
	f := newReconciliationFixture(t)
	payment, _ := f.seedProcessingPayment("tr_1")

	require.NoError(t, f.uc.HandleEvent(context.Background(), paidEvent("evt_1", "po_1", payment.ID)))

	// The reversal returns exactly the 20.00 that was sent.
	f.gateway.ReversalReturnedUnits = 20_00

	err := f.uc.HandleEvent(context.Background(), &domain.PayoutEvent{
		EventID:           "evt_2",
		Processor:         domain.ProcessorStripe,
		Kind:              domain.PayoutEventFailed,
		TransferID:        "po_1",
		PaymentExternalID: payment.ID,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.PaymentReturned, payment.State)
	assert.Empty(t, f.credits.Credits())
}

func TestHandleEvent_Canceled(t *testing.T) {
	f := newReconciliationFixture(t)
	payment, balance := f.seedProcessingPayment("")

	err := f.uc.HandleEvent(context.Background(), &domain.PayoutEvent{
		EventID:           "evt_1",
		Processor:         domain.ProcessorStripe,
		Kind:              domain.PayoutEventCanceled,
		TransferID:        "po_1",
		PaymentExternalID: payment.ID,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.PaymentCancelled, payment.State)
	assert.Equal(t, domain.BalanceUnpaid, balance.State)
	require.Len(t, f.outbox.EventsOfType(domain.EventTypePayoutCancelled), 1)
}

func TestHandleEvent_ReversalPaid_FailsProcessingPayment(t *testing.T) {
	f := newReconciliationFixture(t)
	payment, balance := f.seedProcessingPayment("")

	// The reversal is a distinct payout object: it carries no payment
	// metadata, only the original payout back-reference.
	err := f.uc.HandleEvent(context.Background(), &domain.PayoutEvent{
		EventID:          "evt_1",
		Processor:        domain.ProcessorStripe,
		Kind:             domain.PayoutEventPaid,
		TransferID:       "po_rev_1",
		OriginalPayoutID: "po_1",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.PaymentFailed, payment.State)
	assert.Equal(t, domain.FailureReversed, payment.FailureReason)
	assert.Equal(t, domain.BalanceUnpaid, balance.State)
}

func TestHandleEvent_ReversalFailedWhilePending(t *testing.T) {
	f := newReconciliationFixture(t)
	payment, _ := f.seedProcessingPayment("tr_1")
	payment.State = domain.PaymentReturned
	payment.ReversalPending = true

	err := f.uc.HandleEvent(context.Background(), &domain.PayoutEvent{
		EventID:          "evt_1",
		Processor:        domain.ProcessorStripe,
		Kind:             domain.PayoutEventFailed,
		TransferID:       "po_rev_1",
		OriginalPayoutID: "po_1",
	})
	require.Error(t, err)
	assert.True(t, domain.IsReconciliationError(err))
}

func TestHandleEvent_ReversalForUnknownPayout(t *testing.T) {
	f := newReconciliationFixture(t)

	err := f.uc.HandleEvent(context.Background(), &domain.PayoutEvent{
		EventID:          "evt_1",
		Processor:        domain.ProcessorStripe,
		Kind:             domain.PayoutEventPaid,
		TransferID:       "po_rev_1",
		OriginalPayoutID: "po_missing",
	})
	require.Error(t, err)
	assert.True(t, domain.IsReconciliationError(err))
}

func TestHandleEvent_BankDebit(t *testing.T) {
	f := newReconciliationFixture(t)

	account := stripePayeeAccount()
	f.accounts.Add(account)

	// Negative amount, no payment metadata, no original payout: recognized
	// as the processor debiting the platform's bank account.
	err := f.uc.HandleEvent(context.Background(), &domain.PayoutEvent{
		EventID:           "evt_1",
		Processor:         domain.ProcessorStripe,
		Kind:              domain.PayoutEventPaid,
		TransferID:        "po_debit_1",
		AmountCents:       -12_00,
		Currency:          "USD",
		MerchantAccountID: account.ProcessorAccountID,
	})
	require.NoError(t, err)

	credits := f.credits.Credits()
	require.Len(t, credits, 1)
	assert.Equal(t, int64(-12_00), credits[0].AmountCents)
	assert.Empty(t, credits[0].PaymentID)
	assert.Equal(t, account.ID, credits[0].MerchantAccountID)

	require.Len(t, f.outbox.EventsOfType(domain.EventTypeCreditCreated), 1)
}
