package processor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vendora/payouts/internal/currency"
	"github.com/vendora/payouts/internal/domain"
)

type paymentStore struct {
	mu      sync.Mutex
	updates []domain.Payment
}

func (s *paymentStore) Update(_ context.Context, p *domain.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, *p)
	return nil
}

type creditStore struct {
	mu      sync.Mutex
	credits []*domain.Credit
}

func (s *creditStore) Create(_ context.Context, c *domain.Credit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credits = append(s.credits, c)
	return nil
}

type alertSink struct {
	mu       sync.Mutex
	subjects []string
}

func (s *alertSink) Alert(_ context.Context, subject string, _ map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subjects = append(s.subjects, subject)
}

func newTestStripe(t *testing.T, gateway *FakeGateway) (*Stripe, *paymentStore, *creditStore, *alertSink) {
	t.Helper()

	conv, err := currency.NewTableConverter(map[string]string{"EUR:USD": "1.08"})
	require.NoError(t, err)

	payments := &paymentStore{}
	credits := &creditStore{}
	alerts := &alertSink{}

	s := NewStripe(StripeConfig{
		Gateway:           gateway,
		Converter:         conv,
		Payments:          payments,
		Credits:           credits,
		Alerts:            alerts,
		InstantFeePercent: 3,
		Logger:            zerolog.Nop(),
	})

	return s, payments, credits, alerts
}

func stripeAccount() *domain.MerchantAccount {
	return &domain.MerchantAccount{
		ID:                 "acct_1",
		PayeeID:            "payee_1",
		Processor:          domain.ProcessorStripe,
		HolderOfFunds:      domain.HolderPayee,
		Currency:           "USD",
		ProcessorAccountID: "acct_stripe_1",
		BankAccountID:      "ba_1",
	}
}

func testPayment(internalCents int64) *domain.Payment {
	return &domain.Payment{
		ID:                  "pay_1",
		PayeeID:             "payee_1",
		MerchantAccountID:   "acct_1",
		Processor:           domain.ProcessorStripe,
		AmountCents:         1000_00,
		Currency:            "USD",
		Destination:         "ba_1",
		State:               domain.PaymentCreating,
		PayoutType:          domain.PayoutStandard,
		CutoffDate:          time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		InternalAmountCents: internalCents,
	}
}

func TestStripe_PerformPayment_TwoPhase(t *testing.T) {
	gateway := NewFakeGateway()
	s, _, credits, _ := newTestStripe(t, gateway)

	payment := testPayment(100_00)

	errs := s.PerformPayment(context.Background(), payment, stripeAccount())
	require.Empty(t, errs)

	require.Len(t, gateway.InternalTransfers, 1)
	assert.Equal(t, int64(100_00), gateway.InternalTransfers[0].AmountUnits)
	assert.Equal(t, "acct_stripe_1", gateway.InternalTransfers[0].DestinationAccount)

	require.Len(t, gateway.Payouts, 1)
	assert.Equal(t, int64(1000_00), gateway.Payouts[0].AmountUnits)
	assert.Equal(t, "ba_1", gateway.Payouts[0].Destination)
	assert.Equal(t, stripeStatementDescriptor, gateway.Payouts[0].StatementDescriptor)

	assert.Equal(t, domain.PaymentProcessing, payment.State)
	assert.NotEmpty(t, payment.InternalTransferID)
	assert.NotEmpty(t, payment.ExternalTransferID)
	assert.Empty(t, credits.credits)
}

func TestStripe_PerformPayment_NoInternalLeg(t *testing.T) {
	gateway := NewFakeGateway()
	s, _, _, _ := newTestStripe(t, gateway)

	payment := testPayment(0)

	errs := s.PerformPayment(context.Background(), payment, stripeAccount())
	require.Empty(t, errs)

	assert.Empty(t, gateway.InternalTransfers)
	require.Len(t, gateway.Payouts, 1)
	assert.False(t, payment.HasInternalTransfer())
}

func TestStripe_PerformPayment_Phase1FailureAborts(t *testing.T) {
	gateway := NewFakeGateway()
	gateway.InternalTransferErr = &GatewayError{Code: "balance_insufficient", Message: "insufficient funds"}
	s, _, _, alerts := newTestStripe(t, gateway)

	payment := testPayment(100_00)

	errs := s.PerformPayment(context.Background(), payment, stripeAccount())
	require.NotEmpty(t, errs)

	// No external transfer may be attempted after a phase-1 failure.
	assert.Empty(t, gateway.Payouts)
	assert.Equal(t, domain.PaymentFailed, payment.State)
	assert.Equal(t, domain.FailureInsufficientFunds, payment.FailureReason)
	assert.NotEmpty(t, alerts.subjects)
}

func TestStripe_PerformPayment_CannotPay(t *testing.T) {
	gateway := NewFakeGateway()
	gateway.PayoutErr = &GatewayError{Code: "payouts_not_allowed", Message: "onboarding incomplete", CannotPay: true}
	s, _, credits, alerts := newTestStripe(t, gateway)

	payment := testPayment(100_00)

	errs := s.PerformPayment(context.Background(), payment, stripeAccount())
	require.NotEmpty(t, errs)

	assert.Equal(t, domain.PaymentFailed, payment.State)
	assert.Equal(t, domain.FailureCannotPay, payment.FailureReason)
	// Cannot-pay does not reverse phase 1 synchronously.
	assert.Empty(t, gateway.Reversals)
	assert.Empty(t, credits.credits)
	assert.Contains(t, alerts.subjects, "stripe account cannot be paid")
}

func TestStripe_PerformPayment_GenericFailureReversesExactly(t *testing.T) {
	gateway := NewFakeGateway()
	gateway.PayoutErr = &GatewayError{Code: "insufficient_funds", Message: "balance too low"}
	s, _, credits, _ := newTestStripe(t, gateway)

	payment := testPayment(100_00)

	errs := s.PerformPayment(context.Background(), payment, stripeAccount())
	require.NotEmpty(t, errs)

	require.Len(t, gateway.Reversals, 1)
	assert.Equal(t, payment.InternalTransferID, gateway.Reversals[0])
	assert.Equal(t, domain.PaymentFailed, payment.State)

	// Reversal returned exactly what was sent: no compensating credit.
	assert.Empty(t, credits.credits)
}

func TestStripe_PerformPayment_ReversalMismatchCreatesCredit(t *testing.T) {
	gateway := NewFakeGateway()
	gateway.PayoutErr = &GatewayError{Code: "insufficient_funds", Message: "balance too low"}
	gateway.ReversalReturnedUnits = 105_00
	s, _, credits, _ := newTestStripe(t, gateway)

	payment := testPayment(100_00)

	errs := s.PerformPayment(context.Background(), payment, stripeAccount())
	require.NotEmpty(t, errs)

	require.Len(t, credits.credits, 1)
	credit := credits.credits[0]
	assert.Equal(t, int64(5_00), credit.AmountCents)
	assert.Equal(t, int64(5_00), credit.BalanceTransaction.HoldingAmountNetCents)
	assert.Equal(t, "pay_1", credit.PaymentID)
}

func TestStripe_InstantPayoutFee(t *testing.T) {
	gateway := NewFakeGateway()
	s, _, _, _ := newTestStripe(t, gateway)

	payment := testPayment(0)
	payment.PayoutType = domain.PayoutInstant
	payment.AmountCents = 999 // 3% fee = 29.97, floored to 29

	errs := s.PerformPayment(context.Background(), payment, stripeAccount())
	require.Empty(t, errs)

	require.Len(t, gateway.Payouts, 1)
	assert.Equal(t, int64(970), gateway.Payouts[0].AmountUnits)
	assert.True(t, gateway.Payouts[0].Instant)
}

func TestStripe_IsBalancePayable(t *testing.T) {
	s, _, _, _ := newTestStripe(t, NewFakeGateway())

	account := stripeAccount()

	assert.True(t, s.IsBalancePayable(&domain.Balance{HoldingCurrency: "USD"}, account))
	assert.True(t, s.IsBalancePayable(&domain.Balance{HoldingCurrency: "usd"}, account))
	assert.False(t, s.IsBalancePayable(&domain.Balance{HoldingCurrency: "EUR"}, account))

	deleted := stripeAccount()
	deleted.Deleted = true
	assert.False(t, s.IsBalancePayable(&domain.Balance{HoldingCurrency: "USD"}, deleted))

	paypal := stripeAccount()
	paypal.Processor = domain.ProcessorPayPal
	assert.False(t, s.IsBalancePayable(&domain.Balance{HoldingCurrency: "USD"}, paypal))
}

func TestStripe_PreparePayment(t *testing.T) {
	s, _, _, _ := newTestStripe(t, NewFakeGateway())

	payee := &domain.Payee{ID: "payee_1", Currency: "EUR"}
	account := stripeAccount()
	platform := &domain.MerchantAccount{
		ID:            "acct_platform",
		Processor:     domain.ProcessorStripe,
		HolderOfFunds: domain.HolderPlatform,
		Currency:      "USD",
	}

	balances := []*domain.Balance{
		{MerchantAccountID: "acct_1", AmountCents: 500_00, HoldingAmountCents: 540_00, HoldingCurrency: "USD"},
		{MerchantAccountID: "acct_platform", AmountCents: 100_00, HoldingAmountCents: 108_00, HoldingCurrency: "USD"},
	}
	accounts := map[string]*domain.MerchantAccount{"acct_1": account, "acct_platform": platform}

	payment := &domain.Payment{ID: "pay_1", CutoffDate: time.Now()}
	err := s.PreparePayment(context.Background(), payment, payee, account, balances, accounts)
	require.NoError(t, err)

	// 600_00 EUR * 1.08 = 648_00 USD
	assert.Equal(t, int64(648_00), payment.AmountCents)
	assert.Equal(t, "USD", payment.Currency)
	assert.Equal(t, "ba_1", payment.Destination)
	// Only the platform-held balance feeds the internal leg.
	assert.Equal(t, int64(108_00), payment.InternalAmountCents)
}

func TestStripe_ParseWebhook(t *testing.T) {
	s, _, _, _ := newTestStripe(t, NewFakeGateway())

	payload := []byte(`{
		"id": "evt_1",
		"type": "payout.paid",
		"account": "acct_stripe_1",
		"data": {"object": {
			"id": "po_1",
			"amount": 64800,
			"currency": "usd",
			"arrival_date": 1714521600,
			"metadata": {"payment_id": "pay_1"}
		}}
	}`)

	evt, err := s.ParseWebhook(payload, "")
	require.NoError(t, err)

	assert.Equal(t, domain.PayoutEventPaid, evt.Kind)
	assert.Equal(t, "po_1", evt.TransferID)
	assert.Equal(t, "pay_1", evt.PaymentExternalID)
	assert.Equal(t, int64(64800), evt.AmountCents)
	assert.Equal(t, "USD", evt.Currency)
	assert.Equal(t, "acct_stripe_1", evt.MerchantAccountID)
	assert.False(t, evt.IsReversal())
	assert.False(t, evt.IsBankDebit())
}

func TestStripe_ParseWebhook_Reversal(t *testing.T) {
	s, _, _, _ := newTestStripe(t, NewFakeGateway())

	payload := []byte(`{
		"id": "evt_2",
		"type": "payout.paid",
		"data": {"object": {
			"id": "po_rev_1",
			"amount": 64800,
			"currency": "usd",
			"original_payout": "po_1"
		}}
	}`)

	evt, err := s.ParseWebhook(payload, "acct_stripe_1")
	require.NoError(t, err)

	assert.True(t, evt.IsReversal())
	assert.Equal(t, "po_1", evt.OriginalPayoutID)
	assert.Equal(t, "acct_stripe_1", evt.MerchantAccountID)
}

func TestStripe_ParseWebhook_Unsupported(t *testing.T) {
	s, _, _, _ := newTestStripe(t, NewFakeGateway())

	_, err := s.ParseWebhook([]byte(`{"id": "evt_3", "type": "charge.succeeded"}`), "")
	assert.ErrorIs(t, err, ErrUnsupportedEvent)
}

func TestRegistry(t *testing.T) {
	s, _, _, _ := newTestStripe(t, NewFakeGateway())
	p := NewPayPal(PayPalConfig{Gateway: NewFakeGateway(), Logger: zerolog.Nop()})

	registry := NewRegistry(s, p)

	got, err := registry.Get(domain.ProcessorStripe)
	require.NoError(t, err)
	assert.Equal(t, domain.ProcessorStripe, got.ID())

	_, err = registry.Get(domain.ProcessorID("venmo"))
	assert.ErrorIs(t, err, domain.ErrUnknownProcessor)

	all := registry.All()
	require.Len(t, all, 2)
	assert.Equal(t, domain.ProcessorStripe, all[0].ID())
	assert.Equal(t, domain.ProcessorPayPal, all[1].ID())
}
