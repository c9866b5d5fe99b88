package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/vendora/payouts/internal/domain"
	"github.com/vendora/payouts/internal/processor"
)

// PayoutUseCase builds payments from locked balances and drives the
// processor disbursement protocol for one payee at a time.
type PayoutUseCase struct {
	txManager   TransactionManager
	payeeRepo   PayeeRepository
	paymentRepo PaymentRepository
	outboxRepo  OutboxRepository
	balances    *BalanceUseCase
	eligibility *EligibilityUseCase
	registry    *processor.Registry
	idGen       IDGenerator
	logger      zerolog.Logger
}

// NewPayoutUseCase creates a new PayoutUseCase.
func NewPayoutUseCase(
	txManager TransactionManager,
	payeeRepo PayeeRepository,
	paymentRepo PaymentRepository,
	outboxRepo OutboxRepository,
	balances *BalanceUseCase,
	eligibility *EligibilityUseCase,
	registry *processor.Registry,
	idGen IDGenerator,
	logger zerolog.Logger,
) *PayoutUseCase {
	return &PayoutUseCase{
		txManager:   txManager,
		payeeRepo:   payeeRepo,
		paymentRepo: paymentRepo,
		outboxRepo:  outboxRepo,
		balances:    balances,
		eligibility: eligibility,
		registry:    registry,
		idGen:       idGen,
		logger:      logger,
	}
}

// ProcessPayoutInput represents input for a single-payee payout run.
type ProcessPayoutInput struct {
	PayeeID    string
	CutoffDate time.Time
	// Processor restricts the run to one processor. Empty tries all in
	// registration order.
	Processor  domain.ProcessorID
	PayoutType domain.PayoutType
	// AdminInitiated runs may waive the minimum threshold for fully
	// platform-held amounts.
	AdminInitiated bool
	// BypassSuspension pays out a suspended payee anyway. Operator-only.
	BypassSuspension bool
	// Author is recorded on skip notes, defaulting to NoteAuthorSystem.
	Author string
}

// PayoutResult reports what a run did for one payee. Skipped runs carry the
// literal skip reason and no payment.
type PayoutResult struct {
	Payment *domain.Payment
	Skipped bool
	Reason  string
}

// ProcessPayout runs the full pipeline for one payee: eligibility, balance
// locking, payment building, then disbursement. A payee that is not payable
// is skipped, never failed: skipping leaves balances untouched for the next
// run. Disbursement failures release the locked balances back to unpaid.
func (uc *PayoutUseCase) ProcessPayout(ctx context.Context, input ProcessPayoutInput) (*PayoutResult, error) {
	if input.PayoutType == "" {
		input.PayoutType = domain.PayoutStandard
	}

	payee, err := uc.payeeRepo.GetByID(ctx, input.PayeeID)
	if err != nil {
		return nil, err
	}

	check, err := uc.eligibility.Check(ctx, payee, input.CutoffDate, input.Processor, EligibilityOptions{
		AdminInitiated:   input.AdminInitiated,
		BypassSuspension: input.BypassSuspension,
		AddComment:       true,
		Author:           input.Author,
	})
	if err != nil {
		return nil, err
	}
	if !check.Payable {
		uc.logger.Info().
			Str("payee_id", payee.ID).
			Str("reason", check.Reason).
			Msg("payout skipped")

		return &PayoutResult{Skipped: true, Reason: check.Reason}, nil
	}

	proc, err := uc.registry.Get(check.Processor)
	if err != nil {
		return nil, err
	}

	if input.PayoutType == domain.PayoutInstant && proc.ID() != domain.ProcessorStripe {
		return nil, domain.ErrInstantNotSupported
	}

	// The payment id is generated before locking so balances record their
	// owner atomically with the state change.
	paymentID := uc.idGen.Generate()

	locked, accountMap, err := uc.balances.LockForProcessing(ctx, payee, input.CutoffDate, proc, paymentID)
	if err != nil {
		return nil, err
	}
	if len(locked) == 0 {
		return &PayoutResult{Skipped: true, Reason: domain.ErrNoPayableBalances.Error()}, nil
	}

	accounts := make([]*domain.MerchantAccount, 0, len(accountMap))
	for _, a := range accountMap {
		accounts = append(accounts, a)
	}

	account := proc.SettlementAccount(accounts)
	if account == nil {
		if relErr := uc.balances.Release(ctx, paymentID); relErr != nil {
			return nil, relErr
		}
		return nil, domain.ErrMissingDestination
	}

	now := time.Now().UTC()
	payment := &domain.Payment{
		ID:         paymentID,
		PayeeID:    payee.ID,
		State:      domain.PaymentCreating,
		PayoutType: input.PayoutType,
		CutoffDate: input.CutoffDate,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := proc.PreparePayment(ctx, payment, payee, account, locked, accountMap); err != nil {
		if relErr := uc.balances.Release(ctx, paymentID); relErr != nil {
			return nil, errors.Join(err, relErr)
		}
		return nil, err
	}

	// Negative balances can net a payee to zero or below. Nothing to send:
	// release and wait for the balance to recover.
	if payment.AmountCents <= 0 {
		if err := uc.balances.Release(ctx, paymentID); err != nil {
			return nil, err
		}
		return &PayoutResult{Skipped: true, Reason: domain.ErrNoPayableBalances.Error()}, nil
	}

	if err := uc.createPayment(ctx, payment); err != nil {
		if relErr := uc.balances.Release(ctx, paymentID); relErr != nil {
			return nil, errors.Join(err, relErr)
		}
		return nil, err
	}

	uc.logger.Info().
		Str("payment_id", payment.ID).
		Str("payee_id", payee.ID).
		Str("processor", string(payment.Processor)).
		Int64("amount_cents", payment.AmountCents).
		Str("currency", payment.Currency).
		Msg("payment built")

	if errs := proc.PerformPayment(ctx, payment, account); len(errs) > 0 {
		err := errors.Join(errs...)

		if relErr := uc.balances.Release(ctx, paymentID); relErr != nil {
			return nil, errors.Join(err, relErr)
		}

		if obErr := uc.emitPayoutFailed(ctx, payment, payee); obErr != nil {
			uc.logger.Error().Err(obErr).Str("payment_id", payment.ID).Msg("failed to enqueue payout.failed event")
		}

		return &PayoutResult{Payment: payment}, err
	}

	return &PayoutResult{Payment: payment}, nil
}

// createPayment persists the payment and its initiated event atomically.
func (uc *PayoutUseCase) createPayment(ctx context.Context, payment *domain.Payment) error {
	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := uc.paymentRepo.Create(ctx, tx, payment); err != nil {
		return err
	}

	event := &domain.OutboxEvent{
		ID:            uc.idGen.Generate(),
		AggregateID:   payment.ID,
		AggregateType: domain.AggregateTypePayment,
		EventType:     domain.EventTypePayoutInitiated,
		Payload: map[string]any{
			"payment_id":   payment.ID,
			"payee_id":     payment.PayeeID,
			"processor":    string(payment.Processor),
			"amount_cents": payment.AmountCents,
			"currency":     payment.Currency,
			"payout_type":  string(payment.PayoutType),
		},
		CreatedAt: time.Now().UTC(),
	}
	if err := uc.outboxRepo.Create(ctx, tx, event); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (uc *PayoutUseCase) emitPayoutFailed(ctx context.Context, payment *domain.Payment, payee *domain.Payee) error {
	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	event := &domain.OutboxEvent{
		ID:            uc.idGen.Generate(),
		AggregateID:   payment.ID,
		AggregateType: domain.AggregateTypePayment,
		EventType:     domain.EventTypePayoutFailed,
		Payload: map[string]any{
			"payment_id":   payment.ID,
			"payee_id":     payee.ID,
			"amount_cents": payment.AmountCents,
			"currency":     payment.Currency,
			"reason":       string(payment.FailureReason),
		},
		CreatedAt: time.Now().UTC(),
	}
	if err := uc.outboxRepo.Create(ctx, tx, event); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// GetPayee retrieves a payee by ID.
func (uc *PayoutUseCase) GetPayee(ctx context.Context, id string) (*domain.Payee, error) {
	return uc.payeeRepo.GetByID(ctx, id)
}

// AddNote records an operator note on a payee.
func (uc *PayoutUseCase) AddNote(ctx context.Context, payeeID, content, author string) error {
	return uc.addNote(ctx, payeeID, content, author)
}

// ListNotesByPayee lists a payee's notes, newest first.
func (uc *PayoutUseCase) ListNotesByPayee(ctx context.Context, payeeID string, limit, offset int) ([]*domain.PayeeNote, error) {
	limit, offset, err := domain.ValidatePagination(limit, offset)
	if err != nil {
		return nil, err
	}

	return uc.payeeRepo.ListNotes(ctx, payeeID, limit, offset)
}

// GetPayment retrieves a payment by ID.
func (uc *PayoutUseCase) GetPayment(ctx context.Context, id string) (*domain.Payment, error) {
	return uc.paymentRepo.GetByID(ctx, id)
}

// ListPaymentsByPayeeInput represents input for listing payments.
type ListPaymentsByPayeeInput struct {
	PayeeID string
	Limit   int
	Offset  int
}

// ListPaymentsByPayee lists payments for a payee, newest first.
func (uc *PayoutUseCase) ListPaymentsByPayee(ctx context.Context, input ListPaymentsByPayeeInput) ([]*domain.Payment, error) {
	limit, offset, err := domain.ValidatePagination(input.Limit, input.Offset)
	if err != nil {
		return nil, err
	}

	return uc.paymentRepo.ListByPayee(ctx, input.PayeeID, limit, offset)
}

// PausePayouts pauses a payee's payouts on behalf of the given actor.
func (uc *PayoutUseCase) PausePayouts(ctx context.Context, payeeID string, pausedBy domain.PausedBy, author string) error {
	if err := uc.payeeRepo.SetPayoutsPausedBy(ctx, payeeID, pausedBy, time.Now().UTC()); err != nil {
		return err
	}

	return uc.addNote(ctx, payeeID, "Payouts paused.", author)
}

// ResumePayouts clears a payee's payout pause.
func (uc *PayoutUseCase) ResumePayouts(ctx context.Context, payeeID string, author string) error {
	if err := uc.payeeRepo.SetPayoutsPausedBy(ctx, payeeID, domain.PausedByNone, time.Now().UTC()); err != nil {
		return err
	}

	return uc.addNote(ctx, payeeID, "Payouts resumed.", author)
}

func (uc *PayoutUseCase) addNote(ctx context.Context, payeeID, content, author string) error {
	if author == "" {
		author = NoteAuthorSystem
	}

	return uc.payeeRepo.AddNote(ctx, &domain.PayeeNote{
		ID:        uc.idGen.Generate(),
		PayeeID:   payeeID,
		Author:    author,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	})
}
