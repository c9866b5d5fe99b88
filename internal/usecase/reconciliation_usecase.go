package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/vendora/payouts/internal/domain"
	"github.com/vendora/payouts/internal/processor"
)

// ReconciliationUseCase applies processor webhook events to local payment
// state. Every transition is guarded: an event that cannot be safely
// correlated with a payment surfaces as a domain.ReconciliationError instead
// of being dropped, so no payment is left silently stale.
type ReconciliationUseCase struct {
	paymentRepo   PaymentRepository
	accountRepo   MerchantAccountRepository
	creditRepo    CreditRepository
	outboxRepo    OutboxRepository
	webhookEvents WebhookEventRepository
	txManager     TransactionManager
	balances      *BalanceUseCase
	registry      *processor.Registry
	idGen         IDGenerator
	logger        zerolog.Logger
}

// NewReconciliationUseCase creates a new ReconciliationUseCase.
func NewReconciliationUseCase(
	paymentRepo PaymentRepository,
	accountRepo MerchantAccountRepository,
	creditRepo CreditRepository,
	outboxRepo OutboxRepository,
	webhookEvents WebhookEventRepository,
	txManager TransactionManager,
	balances *BalanceUseCase,
	registry *processor.Registry,
	idGen IDGenerator,
	logger zerolog.Logger,
) *ReconciliationUseCase {
	return &ReconciliationUseCase{
		paymentRepo:   paymentRepo,
		accountRepo:   accountRepo,
		creditRepo:    creditRepo,
		outboxRepo:    outboxRepo,
		webhookEvents: webhookEvents,
		txManager:     txManager,
		balances:      balances,
		registry:      registry,
		idGen:         idGen,
		logger:        logger,
	}
}

// HandleEvent applies one normalized webhook event. Redelivered events are
// recognized by id and dropped. The event id is recorded only once handling
// reached a settled outcome: a transient failure leaves it unrecorded so the
// processor's redelivery runs the event again, and every transition is
// guarded on current state so a replay after partial progress is safe.
// Bank debits and reversals are routed to their own flows; everything else
// must correlate to a payment through its external transfer id and matching
// payment metadata.
func (uc *ReconciliationUseCase) HandleEvent(ctx context.Context, evt *domain.PayoutEvent) error {
	seen, err := uc.webhookEvents.Seen(ctx, evt.Processor, evt.EventID)
	if err != nil {
		return err
	}
	if seen {
		uc.logger.Info().
			Str("event_id", evt.EventID).
			Str("processor", string(evt.Processor)).
			Msg("duplicate webhook event dropped")
		return nil
	}

	handleErr := uc.apply(ctx, evt)
	if handleErr != nil && !domain.IsReconciliationError(handleErr) {
		return handleErr
	}

	// Correlation failures are deterministic and already alerted, so they
	// are recorded too: a redelivery must not raise the same alert again.
	if _, err := uc.webhookEvents.MarkProcessed(ctx, evt.Processor, evt.EventID, time.Now().UTC()); err != nil {
		return errors.Join(handleErr, err)
	}

	return handleErr
}

func (uc *ReconciliationUseCase) apply(ctx context.Context, evt *domain.PayoutEvent) error {
	if evt.IsBankDebit() {
		return uc.handleBankDebit(ctx, evt)
	}

	if evt.IsReversal() {
		return uc.handleReversal(ctx, evt)
	}

	payment, err := uc.paymentRepo.GetByExternalTransferID(ctx, evt.Processor, evt.TransferID)
	if err != nil {
		if errors.Is(err, domain.ErrPaymentNotFound) {
			return uc.fail(ctx, evt, "no payment found for transfer")
		}
		return err
	}

	// The payment id embedded in the payout metadata must agree with the
	// payment the transfer id resolved to.
	if evt.PaymentExternalID != "" && evt.PaymentExternalID != payment.ID {
		return uc.fail(ctx, evt, "payment metadata does not match payment %s", payment.ID)
	}

	switch evt.Kind {
	case domain.PayoutEventPaid:
		return uc.handlePaid(ctx, evt, payment)
	case domain.PayoutEventFailed:
		return uc.handleFailed(ctx, evt, payment)
	case domain.PayoutEventCanceled:
		return uc.handleCanceled(ctx, evt, payment)
	default:
		return uc.fail(ctx, evt, "unknown event kind %q", evt.Kind)
	}
}

func (uc *ReconciliationUseCase) handlePaid(ctx context.Context, evt *domain.PayoutEvent, payment *domain.Payment) error {
	// Paid events for an already-completed payment only settle whatever
	// balances an earlier partial failure left in processing.
	if payment.State == domain.PaymentCompleted {
		return uc.balances.MarkPaid(ctx, payment.ID)
	}
	if payment.State.Terminal() {
		return uc.fail(ctx, evt, "paid event for payment %s in state %s", payment.ID, payment.State)
	}

	if err := payment.MarkCompleted(); err != nil {
		return uc.fail(ctx, evt, "payment %s: %v", payment.ID, err)
	}
	if evt.ArrivalDate != "" {
		if at, err := time.Parse("2006-01-02", evt.ArrivalDate); err == nil {
			payment.ArrivalDate = &at
		}
	}
	payment.UpdatedAt = time.Now().UTC()

	if err := uc.paymentRepo.Update(ctx, payment); err != nil {
		return err
	}

	if err := uc.balances.MarkPaid(ctx, payment.ID); err != nil {
		return err
	}

	uc.logger.Info().
		Str("payment_id", payment.ID).
		Str("event_id", evt.EventID).
		Msg("payment completed")

	return uc.emit(ctx, payment, domain.EventTypePayoutCompleted, map[string]any{
		"payment_id":   payment.ID,
		"payee_id":     payment.PayeeID,
		"amount_cents": payment.AmountCents,
		"currency":     payment.Currency,
		"arrival_date": evt.ArrivalDate,
	})
}

func (uc *ReconciliationUseCase) handleFailed(ctx context.Context, evt *domain.PayoutEvent, payment *domain.Payment) error {
	switch payment.State {
	case domain.PaymentFailed:
		// Already failed: only release whatever balances an earlier partial
		// failure left locked.
		return uc.balances.Release(ctx, payment.ID)

	case domain.PaymentCreating, domain.PaymentProcessing:
		if err := payment.MarkFailed(failureReasonFromEvent(evt)); err != nil {
			return uc.fail(ctx, evt, "payment %s: %v", payment.ID, err)
		}
		payment.UpdatedAt = time.Now().UTC()

		if err := uc.paymentRepo.Update(ctx, payment); err != nil {
			return err
		}
		if err := uc.balances.Release(ctx, payment.ID); err != nil {
			return err
		}

		uc.logger.Info().
			Str("payment_id", payment.ID).
			Str("reason", string(payment.FailureReason)).
			Msg("payment failed")

		return uc.emit(ctx, payment, domain.EventTypePayoutFailed, map[string]any{
			"payment_id":   payment.ID,
			"payee_id":     payment.PayeeID,
			"amount_cents": payment.AmountCents,
			"currency":     payment.Currency,
			"reason":       string(payment.FailureReason),
		})

	case domain.PaymentCompleted:
		// Funds were clawed back after the payout settled. The payment is
		// returned and the internal transfer leg, if any, is unwound.
		return uc.returnPayment(ctx, evt, payment)

	default:
		return uc.fail(ctx, evt, "failed event for payment %s in state %s", payment.ID, payment.State)
	}
}

func (uc *ReconciliationUseCase) handleCanceled(ctx context.Context, evt *domain.PayoutEvent, payment *domain.Payment) error {
	if payment.State == domain.PaymentCancelled {
		return uc.balances.Release(ctx, payment.ID)
	}
	if payment.State.Terminal() {
		return nil
	}

	if err := payment.MarkCancelled(); err != nil {
		return uc.fail(ctx, evt, "payment %s: %v", payment.ID, err)
	}
	payment.UpdatedAt = time.Now().UTC()

	if err := uc.paymentRepo.Update(ctx, payment); err != nil {
		return err
	}
	if err := uc.balances.Release(ctx, payment.ID); err != nil {
		return err
	}

	uc.logger.Info().Str("payment_id", payment.ID).Msg("payment cancelled")

	return uc.emit(ctx, payment, domain.EventTypePayoutCancelled, map[string]any{
		"payment_id": payment.ID,
		"payee_id":   payment.PayeeID,
	})
}

// returnPayment unwinds a completed payment: the payment moves to returned,
// its balances go back to unpaid, and the internal transfer is reversed with
// any difference between sent and returned amounts recorded as a credit.
func (uc *ReconciliationUseCase) returnPayment(ctx context.Context, evt *domain.PayoutEvent, payment *domain.Payment) error {
	if err := payment.MarkReturned(); err != nil {
		return uc.fail(ctx, evt, "payment %s: %v", payment.ID, err)
	}
	payment.FailureReason = domain.FailureReversed

	if payment.HasInternalTransfer() {
		payment.ReversalPending = true
	}
	payment.UpdatedAt = time.Now().UTC()

	if err := uc.paymentRepo.Update(ctx, payment); err != nil {
		return err
	}

	if payment.HasInternalTransfer() {
		proc, err := uc.registry.Get(payment.Processor)
		if err != nil {
			return err
		}

		returnedCents, holdingCurrency, err := proc.ReverseInternalTransfer(ctx, payment)
		if err != nil {
			// The reversal itself failed with money already clawed back.
			// Only an operator can untangle this.
			return uc.fail(ctx, evt, "reversal of internal transfer %s failed: %v", payment.InternalTransferID, err)
		}

		account, err := uc.accountRepo.GetByID(ctx, payment.MerchantAccountID)
		if err != nil {
			return err
		}

		if credit := domain.CreditForReversalDifference(payment, account, payment.InternalAmountCents, returnedCents, holdingCurrency); credit != nil {
			if err := uc.createCredit(ctx, credit); err != nil {
				return err
			}
		}

		payment.ReversalPending = false
		payment.UpdatedAt = time.Now().UTC()
		if err := uc.paymentRepo.Update(ctx, payment); err != nil {
			return err
		}
	}

	if err := uc.balances.Release(ctx, payment.ID); err != nil {
		return err
	}

	uc.logger.Info().
		Str("payment_id", payment.ID).
		Str("event_id", evt.EventID).
		Msg("payment returned")

	return uc.emit(ctx, payment, domain.EventTypePayoutReturned, map[string]any{
		"payment_id":   payment.ID,
		"payee_id":     payment.PayeeID,
		"amount_cents": payment.AmountCents,
		"currency":     payment.Currency,
	})
}

// handleReversal applies events describing a reversal payout object. The
// reversal carries no payment metadata of its own: correlation goes through
// the original payout it points back at.
func (uc *ReconciliationUseCase) handleReversal(ctx context.Context, evt *domain.PayoutEvent) error {
	payment, err := uc.paymentRepo.GetByExternalTransferID(ctx, evt.Processor, evt.OriginalPayoutID)
	if err != nil {
		if errors.Is(err, domain.ErrPaymentNotFound) {
			return uc.fail(ctx, evt, "no payment found for reversed payout %s", evt.OriginalPayoutID)
		}
		return err
	}

	switch evt.Kind {
	case domain.PayoutEventPaid:
		// The reversal settled: the original payout definitively did not
		// reach the payee.
		switch payment.State {
		case domain.PaymentProcessing:
			if err := payment.MarkFailed(domain.FailureReversed); err != nil {
				return uc.fail(ctx, evt, "payment %s: %v", payment.ID, err)
			}
		case domain.PaymentCompleted:
			if err := payment.MarkReturned(); err != nil {
				return uc.fail(ctx, evt, "payment %s: %v", payment.ID, err)
			}
			payment.FailureReason = domain.FailureReversed
		default:
			// Already reconciled through another path.
			return nil
		}

		payment.ReversalPending = false
		payment.UpdatedAt = time.Now().UTC()

		if err := uc.paymentRepo.Update(ctx, payment); err != nil {
			return err
		}
		if err := uc.balances.Release(ctx, payment.ID); err != nil {
			return err
		}

		uc.logger.Info().
			Str("payment_id", payment.ID).
			Str("event_id", evt.EventID).
			Msg("payout reversal settled")

		return uc.emit(ctx, payment, domain.EventTypePayoutFailed, map[string]any{
			"payment_id":   payment.ID,
			"payee_id":     payment.PayeeID,
			"amount_cents": payment.AmountCents,
			"currency":     payment.Currency,
			"reason":       string(domain.FailureReversed),
		})

	case domain.PayoutEventFailed:
		if payment.ReversalPending {
			// A reversal the platform initiated failed to settle: funds are
			// in limbo between the platform and the connected account.
			return uc.fail(ctx, evt, "pending reversal of payout %s failed", evt.OriginalPayoutID)
		}

		uc.logger.Warn().
			Str("payment_id", payment.ID).
			Str("event_id", evt.EventID).
			Msg("reversal failed for payment with no pending reversal")
		return nil

	default:
		return nil
	}
}

// handleBankDebit records the credit for a processor-initiated debit of the
// platform's bank account. These events carry no payment linkage at all.
func (uc *ReconciliationUseCase) handleBankDebit(ctx context.Context, evt *domain.PayoutEvent) error {
	account, err := uc.accountRepo.GetByProcessorAccountID(ctx, evt.Processor, evt.MerchantAccountID)
	if err != nil {
		if errors.Is(err, domain.ErrMerchantAccountNotFound) {
			return uc.fail(ctx, evt, "no merchant account for processor account %s", evt.MerchantAccountID)
		}
		return err
	}

	credit := domain.CreditForBankDebit(account, evt.AmountCents, evt.Currency)
	if err := uc.createCredit(ctx, credit); err != nil {
		return err
	}

	uc.logger.Info().
		Str("credit_id", credit.ID).
		Str("merchant_account_id", account.ID).
		Int64("amount_cents", credit.AmountCents).
		Msg("bank debit credited")

	return nil
}

func (uc *ReconciliationUseCase) createCredit(ctx context.Context, credit *domain.Credit) error {
	credit.ID = uc.idGen.Generate()
	credit.CreatedAt = time.Now().UTC()

	if err := uc.creditRepo.Create(ctx, credit); err != nil {
		return err
	}

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	event := &domain.OutboxEvent{
		ID:            uc.idGen.Generate(),
		AggregateID:   credit.ID,
		AggregateType: domain.AggregateTypeCredit,
		EventType:     domain.EventTypeCreditCreated,
		Payload: map[string]any{
			"credit_id":    credit.ID,
			"payee_id":     credit.PayeeID,
			"payment_id":   credit.PaymentID,
			"amount_cents": credit.AmountCents,
			"currency":     credit.BalanceTransaction.HoldingCurrency,
		},
		CreatedAt: time.Now().UTC(),
	}
	if err := uc.outboxRepo.Create(ctx, tx, event); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (uc *ReconciliationUseCase) emit(ctx context.Context, payment *domain.Payment, eventType string, payload map[string]any) error {
	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	event := &domain.OutboxEvent{
		ID:            uc.idGen.Generate(),
		AggregateID:   payment.ID,
		AggregateType: domain.AggregateTypePayment,
		EventType:     eventType,
		Payload:       payload,
		CreatedAt:     time.Now().UTC(),
	}
	if err := uc.outboxRepo.Create(ctx, tx, event); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// fail records an operator alert and returns the reconciliation error.
func (uc *ReconciliationUseCase) fail(ctx context.Context, evt *domain.PayoutEvent, format string, args ...any) error {
	recErr := domain.NewReconciliationError(evt.EventID, evt.TransferID, format, args...)

	uc.logger.Error().
		Str("event_id", evt.EventID).
		Str("transfer_id", evt.TransferID).
		Str("processor", string(evt.Processor)).
		Msg(recErr.Reason)

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return errors.Join(recErr, err)
	}
	defer tx.Rollback(ctx)

	event := &domain.OutboxEvent{
		ID:            uc.idGen.Generate(),
		AggregateID:   evt.EventID,
		AggregateType: domain.AggregateTypePayment,
		EventType:     domain.EventTypeOperatorAlert,
		Payload: map[string]any{
			"event_id":    evt.EventID,
			"transfer_id": evt.TransferID,
			"processor":   string(evt.Processor),
			"reason":      recErr.Reason,
		},
		CreatedAt: time.Now().UTC(),
	}
	if err := uc.outboxRepo.Create(ctx, tx, event); err != nil {
		return errors.Join(recErr, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return errors.Join(recErr, err)
	}

	return recErr
}

// failureReasonFromEvent maps processor failure codes onto the closed local
// set.
func failureReasonFromEvent(evt *domain.PayoutEvent) domain.FailureReason {
	switch evt.FailureReason {
	case "insufficient_funds":
		return domain.FailureInsufficientFunds
	case "account_closed", "no_account", "RECEIVER_UNREGISTERED":
		return domain.FailureAccountClosed
	case "could_not_process", "canceled", "RISK_DECLINE":
		return domain.FailureProcessorError
	default:
		return domain.FailureProcessorError
	}
}

// ListCreditsByPayee lists a payee's compensating credits, newest first.
func (uc *ReconciliationUseCase) ListCreditsByPayee(ctx context.Context, payeeID string, limit, offset int) ([]*domain.Credit, error) {
	limit, offset, err := domain.ValidatePagination(limit, offset)
	if err != nil {
		return nil, err
	}

	return uc.creditRepo.ListByPayee(ctx, payeeID, limit, offset)
}
