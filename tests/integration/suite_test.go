package integration

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vendora/payouts/internal/adapter/repository/postgres"
	"github.com/vendora/payouts/internal/currency"
	"github.com/vendora/payouts/internal/processor"
	"github.com/vendora/payouts/internal/usecase"
	"github.com/vendora/payouts/tests/testutil"
)

// stack wires the full payout pipeline against a real database, with the
// fake gateway standing in for the processors.
type stack struct {
	db      *testutil.TestDB
	gateway *processor.FakeGateway

	payments *postgres.PaymentRepository
	credits  *postgres.CreditRepository
	outbox   *postgres.OutboxRepository

	payoutUC *usecase.PayoutUseCase
	reconUC  *usecase.ReconciliationUseCase
}

type nopCache struct{}

func (nopCache) Get(context.Context, string) ([]byte, error)              { return nil, nil }
func (nopCache) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (nopCache) Delete(context.Context, string) error                     { return nil }

type nopAlerter struct{}

func (nopAlerter) Alert(context.Context, string, map[string]any) {}

func newStack(t *testing.T, db *testutil.TestDB) *stack {
	t.Helper()

	conv, err := currency.NewTableConverter(nil)
	if err != nil {
		t.Fatalf("failed to build converter: %v", err)
	}

	pool := db.Pool
	txManager := postgres.NewTxManager(pool)
	payeeRepo := postgres.NewPayeeRepository(pool)
	accountRepo := postgres.NewMerchantAccountRepository(pool)
	balanceRepo := postgres.NewBalanceRepository(pool)
	paymentRepo := postgres.NewPaymentRepository(pool)
	creditRepo := postgres.NewCreditRepository(pool)
	outboxRepo := postgres.NewOutboxRepository(pool)
	webhookEventRepo := postgres.NewWebhookEventRepository(pool)
	idGen := postgres.NewULIDGenerator()
	gateway := processor.NewFakeGateway()

	stripe := processor.NewStripe(processor.StripeConfig{
		Gateway:   gateway,
		Converter: conv,
		Payments:  paymentRepo,
		Credits:   creditRepo,
		Alerts:    nopAlerter{},
		Logger:    zerolog.Nop(),
	})
	paypal := processor.NewPayPal(processor.PayPalConfig{
		Gateway:   gateway,
		Converter: conv,
		Payments:  paymentRepo,
		Alerts:    nopAlerter{},
		Logger:    zerolog.Nop(),
	})
	registry := processor.NewRegistry(stripe, paypal)

	balanceUC := usecase.NewBalanceUseCase(txManager, balanceRepo, accountRepo, registry, nopCache{})
	eligibilityUC := usecase.NewEligibilityUseCase(payeeRepo, accountRepo, balanceRepo, paymentRepo, registry, idGen)
	payoutUC := usecase.NewPayoutUseCase(txManager, payeeRepo, paymentRepo, outboxRepo, balanceUC, eligibilityUC, registry, idGen, zerolog.Nop())
	reconUC := usecase.NewReconciliationUseCase(paymentRepo, accountRepo, creditRepo, outboxRepo, webhookEventRepo, txManager, balanceUC, registry, idGen, zerolog.Nop())

	return &stack{
		db:       db,
		gateway:  gateway,
		payments: paymentRepo,
		credits:  creditRepo,
		outbox:   outboxRepo,
		payoutUC: payoutUC,
		reconUC:  reconUC,
	}
}

func cutoffDate() time.Time {
	return time.Now().UTC().Truncate(24 * time.Hour)
}
