package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vendora/payouts/internal/domain"
	"github.com/vendora/payouts/internal/processor"
)

// BalanceUseCase handles balance selection, locking and state transitions.
type BalanceUseCase struct {
	txManager   TransactionManager
	balanceRepo BalanceRepository
	accountRepo MerchantAccountRepository
	registry    *processor.Registry
	cache       Cache
}

// NewBalanceUseCase creates a new BalanceUseCase.
func NewBalanceUseCase(
	txManager TransactionManager,
	balanceRepo BalanceRepository,
	accountRepo MerchantAccountRepository,
	registry *processor.Registry,
	cache Cache,
) *BalanceUseCase {
	return &BalanceUseCase{
		txManager:   txManager,
		balanceRepo: balanceRepo,
		accountRepo: accountRepo,
		registry:    registry,
		cache:       cache,
	}
}

// PayableBalances returns the payee's unpaid balances up to the cutoff that
// the given processor can disburse, plus the merchant accounts they sit in.
// Balances the processor rejects (wrong holder, currency mismatch, deleted
// account) are left untouched for a later run.
func (uc *BalanceUseCase) PayableBalances(ctx context.Context, payee *domain.Payee, cutoff time.Time, proc processor.PayoutProcessor) ([]*domain.Balance, map[string]*domain.MerchantAccount, error) {
	balances, err := uc.balanceRepo.ListUnpaid(ctx, payee.ID, cutoff)
	if err != nil {
		return nil, nil, err
	}

	accounts, err := uc.accountRepo.ListByPayee(ctx, payee.ID)
	if err != nil {
		return nil, nil, err
	}

	accountMap := make(map[string]*domain.MerchantAccount, len(accounts))
	for _, a := range accounts {
		accountMap[a.ID] = a
	}

	var payable []*domain.Balance
	for _, b := range balances {
		if proc.IsBalancePayable(b, accountMap[b.MerchantAccountID]) {
			payable = append(payable, b)
		}
	}

	return payable, accountMap, nil
}

// LockForProcessing row-locks the payee's payable balances and moves them
// into processing owned by paymentID, in one transaction. Balances another
// run claimed since the read are skipped: the returned slice holds only the
// balances this payment now owns.
func (uc *BalanceUseCase) LockForProcessing(ctx context.Context, payee *domain.Payee, cutoff time.Time, proc processor.PayoutProcessor, paymentID string) ([]*domain.Balance, map[string]*domain.MerchantAccount, error) {
	payable, accountMap, err := uc.PayableBalances(ctx, payee, cutoff, proc)
	if err != nil {
		return nil, nil, err
	}
	if len(payable) == 0 {
		return nil, accountMap, nil
	}

	ids := make([]string, 0, len(payable))
	for _, b := range payable {
		ids = append(ids, b.ID)
	}

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback(ctx)

	locked, err := uc.balanceRepo.LockForProcessing(ctx, tx, ids, paymentID, time.Now().UTC())
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, err
	}

	return locked, accountMap, nil
}

// Release returns a payment's balances to unpaid and clears their owner, so
// they are picked up again by the next run. Balances already unpaid are
// skipped, so a replayed release is a no-op.
func (uc *BalanceUseCase) Release(ctx context.Context, paymentID string) error {
	return uc.transition(ctx, paymentID, func(b *domain.Balance) error {
		if b.State == domain.BalanceUnpaid {
			return nil
		}
		return b.MarkUnpaid()
	})
}

// MarkPaid settles a payment's balances after the processor confirms the
// external transfer arrived. Balances already paid are skipped, so a
// replayed settle is a no-op.
func (uc *BalanceUseCase) MarkPaid(ctx context.Context, paymentID string) error {
	return uc.transition(ctx, paymentID, func(b *domain.Balance) error {
		if b.State == domain.BalancePaid {
			return nil
		}
		return b.MarkPaid()
	})
}

func (uc *BalanceUseCase) transition(ctx context.Context, paymentID string, apply func(*domain.Balance) error) error {
	balances, err := uc.balanceRepo.ListByPayment(ctx, paymentID)
	if err != nil {
		return err
	}
	if len(balances) == 0 {
		return nil
	}

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	for _, b := range balances {
		if err := apply(b); err != nil {
			return fmt.Errorf("balance %s: %w", b.ID, err)
		}

		if err := uc.balanceRepo.UpdateState(ctx, tx, b.ID, b.State, b.PaymentID, now); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// PayoutEstimate is the cached preview of what a payout run would disburse
// for a payee, bucketed by who holds the funds.
type PayoutEstimate struct {
	PayeeID           string    `json:"payee_id"`
	Currency          string    `json:"currency"`
	TotalCents        int64     `json:"total_cents"`
	PlatformHeldCents int64     `json:"platform_held_cents"`
	PayeeHeldCents    int64     `json:"payee_held_cents"`
	BalanceCount      int       `json:"balance_count"`
	CutoffDate        time.Time `json:"cutoff_date"`
	ComputedAt        time.Time `json:"computed_at"`
}

// Estimate computes the payee's payable totals up to the cutoff, applying
// the same per-balance filter as PayableBalances: the totals equal what a
// run against the same processor would disburse. An empty processor id
// counts balances any configured processor could pay. Results are cached
// briefly per payee, cutoff and processor; estimates are advisory, the
// authoritative numbers come from payment building.
func (uc *BalanceUseCase) Estimate(ctx context.Context, payee *domain.Payee, cutoff time.Time, procID domain.ProcessorID) (*PayoutEstimate, error) {
	key := estimateCacheKey(payee.ID, cutoff, procID)

	if cached, err := uc.cache.Get(ctx, key); err == nil && cached != nil {
		var estimate PayoutEstimate
		if err := json.Unmarshal(cached, &estimate); err == nil {
			return &estimate, nil
		}
	}

	procs, err := uc.estimateCandidates(procID)
	if err != nil {
		return nil, err
	}

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

	estimate := &PayoutEstimate{
		PayeeID:    payee.ID,
		Currency:   payee.Currency,
		CutoffDate: cutoff,
		ComputedAt: time.Now().UTC(),
	}

	for _, b := range balances {
		account := accountMap[b.MerchantAccountID]
		if !payableByAny(procs, b, account) {
			continue
		}

		estimate.TotalCents += b.AmountCents
		estimate.BalanceCount++

		if account != nil && account.HeldByPlatform() {
			estimate.PlatformHeldCents += b.AmountCents
		} else {
			estimate.PayeeHeldCents += b.AmountCents
		}
	}

	if data, err := json.Marshal(estimate); err == nil {
		_ = uc.cache.Set(ctx, key, data, EstimateCacheTTL)
	}

	return estimate, nil
}

// InvalidateEstimate drops the cached estimate after balances change state.
func (uc *BalanceUseCase) InvalidateEstimate(ctx context.Context, payeeID string, cutoff time.Time, procID domain.ProcessorID) error {
	return uc.cache.Delete(ctx, estimateCacheKey(payeeID, cutoff, procID))
}

func (uc *BalanceUseCase) estimateCandidates(procID domain.ProcessorID) ([]processor.PayoutProcessor, error) {
	if procID == "" {
		return uc.registry.All(), nil
	}

	proc, err := uc.registry.Get(procID)
	if err != nil {
		return nil, err
	}
	return []processor.PayoutProcessor{proc}, nil
}

func payableByAny(procs []processor.PayoutProcessor, balance *domain.Balance, account *domain.MerchantAccount) bool {
	for _, proc := range procs {
		if proc.IsBalancePayable(balance, account) {
			return true
		}
	}
	return false
}

func estimateCacheKey(payeeID string, cutoff time.Time, procID domain.ProcessorID) string {
	proc := string(procID)
	if proc == "" {
		proc = "any"
	}
	return fmt.Sprintf("estimate:%s:%s:%s", payeeID, cutoff.UTC().Format("2006-01-02"), proc)
}
