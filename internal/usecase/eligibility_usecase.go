package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/vendora/payouts/internal/currency"
	"github.com/vendora/payouts/internal/domain"
	"github.com/vendora/payouts/internal/processor"
)

// Skip reasons recorded when a payee is not payable. These are literal,
// user-facing strings: handlers and notes carry them verbatim.
const (
	MsgSuspended        = "Payout skipped: the account is suspended."
	MsgPausedBySelf     = "Payout skipped: payouts were paused by the payee."
	MsgPausedByOperator = "Payout skipped: payouts were paused by an operator."
	MsgNoDestination    = "Payout skipped: no payout destination is configured."

	// msgBelowMinimumFmt is formatted with the payable amount and the
	// payee's minimum, both in the payout currency.
	msgBelowMinimumFmt = "Payout skipped: balance of %s %s is below the minimum of %s %s."
)

// EligibilityUseCase decides whether a payee can be paid for a cutoff date.
// Rules run in a fixed order so the recorded skip reason is deterministic:
// suspension, pause, minimum threshold, then the processor's own check.
type EligibilityUseCase struct {
	payeeRepo   PayeeRepository
	accountRepo MerchantAccountRepository
	balanceRepo BalanceRepository
	paymentRepo PaymentRepository
	registry    *processor.Registry
	idGen       IDGenerator
}

// NewEligibilityUseCase creates a new EligibilityUseCase.
func NewEligibilityUseCase(
	payeeRepo PayeeRepository,
	accountRepo MerchantAccountRepository,
	balanceRepo BalanceRepository,
	paymentRepo PaymentRepository,
	registry *processor.Registry,
	idGen IDGenerator,
) *EligibilityUseCase {
	return &EligibilityUseCase{
		payeeRepo:   payeeRepo,
		accountRepo: accountRepo,
		balanceRepo: balanceRepo,
		paymentRepo: paymentRepo,
		registry:    registry,
		idGen:       idGen,
	}
}

// EligibilityOptions tune a single eligibility check.
type EligibilityOptions struct {
	// AdminInitiated marks a check triggered by an operator rather than the
	// scheduler. Admin-initiated runs may pay below the minimum threshold
	// when the entire payable amount is held by the platform.
	AdminInitiated bool
	// BypassSuspension lets an operator pay out a suspended payee, e.g. to
	// drain a closing account. Every other rule still applies.
	BypassSuspension bool
	// AddComment records a payee note when the check fails.
	AddComment bool
	// Author is the note author, defaulting to NoteAuthorSystem.
	Author string
}

// EligibilitySnapshot is the point-in-time view the rules evaluate. It is
// never persisted: the same inputs re-derive it on every check.
type EligibilitySnapshot struct {
	PayableCents         int64
	Currency             string
	MinimumPayoutCents   int64
	HasProcessingPayment bool
	// AllHeldByPlatform is true when every unpaid balance sits in a
	// platform-held merchant account.
	AllHeldByPlatform bool
	UnpaidBalances    int
}

// EligibilityResult is the outcome of a check.
type EligibilityResult struct {
	Payable bool
	// Reason is the literal skip message when not payable.
	Reason string
	// Processor is the processor that accepted the payee, when payable.
	Processor domain.ProcessorID
	Snapshot  *EligibilitySnapshot
}

// Snapshot computes the payable amount and holding shape for a payee up to
// the cutoff. Payments already built for this exact cutoff count toward the
// payable amount so re-running a day never halves the threshold comparison.
func (uc *EligibilityUseCase) Snapshot(ctx context.Context, payee *domain.Payee, cutoff time.Time) (*EligibilitySnapshot, error) {
	balances, err := uc.balanceRepo.ListUnpaid(ctx, payee.ID, cutoff)
	if err != nil {
		return nil, err
	}

	accounts, err := uc.accountRepo.ListByPayee(ctx, payee.ID)
	if err != nil {
		return nil, err
	}

	accountMap := make(map[string]*domain.MerchantAccount, len(accounts))
	for _, a := range accounts {
		accountMap[a.ID] = a
	}

	var payableCents int64
	allPlatform := len(balances) > 0
	for _, b := range balances {
		payableCents += b.AmountCents

		if b.AmountCents == 0 {
			continue
		}
		account := accountMap[b.MerchantAccountID]
		if account == nil || !account.HeldByPlatform() {
			allPlatform = false
		}
	}

	alreadyBuilt, err := uc.paymentRepo.SumForCutoff(ctx, payee.ID, cutoff)
	if err != nil {
		return nil, err
	}
	payableCents += alreadyBuilt

	hasProcessing, err := uc.paymentRepo.HasProcessing(ctx, payee.ID)
	if err != nil {
		return nil, err
	}

	return &EligibilitySnapshot{
		PayableCents:         payableCents,
		Currency:             payee.Currency,
		MinimumPayoutCents:   payee.MinimumPayoutCents,
		HasProcessingPayment: hasProcessing,
		AllHeldByPlatform:    allPlatform,
		UnpaidBalances:       len(balances),
	}, nil
}

// Check evaluates the full rule chain for one payee. When procID is empty
// every registered processor is tried in registration order and the first
// acceptance wins. A failed check with AddComment set records a payee note
// with the skip reason.
func (uc *EligibilityUseCase) Check(ctx context.Context, payee *domain.Payee, cutoff time.Time, procID domain.ProcessorID, opts EligibilityOptions) (*EligibilityResult, error) {
	result, err := uc.check(ctx, payee, cutoff, procID, opts)
	if err != nil {
		return nil, err
	}

	if !result.Payable && opts.AddComment {
		if err := uc.addNote(ctx, payee.ID, result.Reason, opts.Author); err != nil {
			return nil, err
		}
	}

	return result, nil
}

func (uc *EligibilityUseCase) check(ctx context.Context, payee *domain.Payee, cutoff time.Time, procID domain.ProcessorID, opts EligibilityOptions) (*EligibilityResult, error) {
	if payee.Suspended && !opts.BypassSuspension {
		return &EligibilityResult{Reason: MsgSuspended}, nil
	}

	switch payee.PayoutsPausedBy {
	case domain.PausedBySelf:
		return &EligibilityResult{Reason: MsgPausedBySelf}, nil
	case domain.PausedByOperator:
		return &EligibilityResult{Reason: MsgPausedByOperator}, nil
	}

	snapshot, err := uc.Snapshot(ctx, payee, cutoff)
	if err != nil {
		return nil, err
	}

	if snapshot.PayableCents < payee.MinimumPayoutCents {
		// Operators may push out small platform-held balances, e.g. when
		// winding an account down.
		waived := opts.AdminInitiated && snapshot.AllHeldByPlatform && snapshot.PayableCents > 0
		if !waived {
			return &EligibilityResult{
				Reason:   belowMinimumMessage(snapshot.PayableCents, payee.MinimumPayoutCents, payee.Currency),
				Snapshot: snapshot,
			}, nil
		}
	}

	accounts, err := uc.accountRepo.ListByPayee(ctx, payee.ID)
	if err != nil {
		return nil, err
	}

	ec := processor.EligibilityContext{
		Payee:                payee,
		Accounts:             accounts,
		PayableCents:         snapshot.PayableCents,
		HasProcessingPayment: snapshot.HasProcessingPayment,
	}

	procs, err := uc.candidates(procID)
	if err != nil {
		return nil, err
	}

	reason := MsgNoDestination
	for _, proc := range procs {
		ok, procReason := proc.IsUserPayable(ctx, ec)
		if ok {
			return &EligibilityResult{
				Payable:   true,
				Processor: proc.ID(),
				Snapshot:  snapshot,
			}, nil
		}
		if procReason != "" {
			reason = procReason
		}
	}

	return &EligibilityResult{Reason: reason, Snapshot: snapshot}, nil
}

func (uc *EligibilityUseCase) candidates(procID domain.ProcessorID) ([]processor.PayoutProcessor, error) {
	if procID == "" {
		return uc.registry.All(), nil
	}

	proc, err := uc.registry.Get(procID)
	if err != nil {
		return nil, err
	}

	return []processor.PayoutProcessor{proc}, nil
}

func (uc *EligibilityUseCase) addNote(ctx context.Context, payeeID, content, author string) error {
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

func belowMinimumMessage(payableCents, minimumCents int64, code string) string {
	return fmt.Sprintf(msgBelowMinimumFmt,
		currency.FormatDecimal(payableCents, code), code,
		currency.FormatDecimal(minimumCents, code), code,
	)
}
