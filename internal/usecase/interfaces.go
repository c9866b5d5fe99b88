package usecase

import (
	"context"
	"time"

	"github.com/vendora/payouts/internal/domain"
)

// PayeeRepository defines data access for payees.
type PayeeRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Payee, error)
	List(ctx context.Context, limit, offset int) ([]*domain.Payee, error)
	// ListPayoutCandidateIDs returns ids of payees holding at least one
	// unpaid balance dated on or before the cutoff.
	ListPayoutCandidateIDs(ctx context.Context, cutoff time.Time) ([]string, error)
	AddNote(ctx context.Context, note *domain.PayeeNote) error
	ListNotes(ctx context.Context, payeeID string, limit, offset int) ([]*domain.PayeeNote, error)
	SetPayoutsPausedBy(ctx context.Context, id string, pausedBy domain.PausedBy, updatedAt time.Time) error
}

// MerchantAccountRepository defines data access for merchant accounts.
type MerchantAccountRepository interface {
	GetByID(ctx context.Context, id string) (*domain.MerchantAccount, error)
	GetByProcessorAccountID(ctx context.Context, processor domain.ProcessorID, processorAccountID string) (*domain.MerchantAccount, error)
	ListByPayee(ctx context.Context, payeeID string) ([]*domain.MerchantAccount, error)
}

// BalanceRepository defines data access for balances.
type BalanceRepository interface {
	Create(ctx context.Context, balance *domain.Balance) error
	GetByID(ctx context.Context, id string) (*domain.Balance, error)
	// ListUnpaid returns unpaid balances for the payee dated on or before
	// the cutoff, oldest first.
	ListUnpaid(ctx context.Context, payeeID string, cutoff time.Time) ([]*domain.Balance, error)
	ListByPayment(ctx context.Context, paymentID string) ([]*domain.Balance, error)
	// LockForProcessing row-locks the given balances and moves the ones
	// still unpaid into processing, owned by paymentID. Balances that
	// changed state since they were read are skipped, not failed.
	LockForProcessing(ctx context.Context, tx Transaction, ids []string, paymentID string, updatedAt time.Time) ([]*domain.Balance, error)
	UpdateState(ctx context.Context, tx Transaction, id string, state domain.BalanceState, paymentID string, updatedAt time.Time) error
}

// PaymentRepository defines data access for payments.
type PaymentRepository interface {
	Create(ctx context.Context, tx Transaction, payment *domain.Payment) error
	GetByID(ctx context.Context, id string) (*domain.Payment, error)
	// GetByExternalTransferID resolves the payment a processor webhook
	// refers to. Returns domain.ErrPaymentNotFound when no payment carries
	// the transfer id.
	GetByExternalTransferID(ctx context.Context, processor domain.ProcessorID, transferID string) (*domain.Payment, error)
	HasProcessing(ctx context.Context, payeeID string) (bool, error)
	// SumForCutoff sums non-failed payment amounts already built for the
	// payee at this exact cutoff date.
	SumForCutoff(ctx context.Context, payeeID string, cutoff time.Time) (int64, error)
	Update(ctx context.Context, payment *domain.Payment) error
	ListByPayee(ctx context.Context, payeeID string, limit, offset int) ([]*domain.Payment, error)
}

// CreditRepository defines data access for compensating credits.
type CreditRepository interface {
	Create(ctx context.Context, credit *domain.Credit) error
	ListByPayee(ctx context.Context, payeeID string, limit, offset int) ([]*domain.Credit, error)
}

// OutboxRepository defines data access for outbox events.
type OutboxRepository interface {
	Create(ctx context.Context, tx Transaction, event *domain.OutboxEvent) error
	GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkPublished(ctx context.Context, id string, publishedAt time.Time) error
	DeletePublished(ctx context.Context, before time.Time) error
}

// WebhookEventRepository records handled webhook event ids so redelivered
// events can be recognized and dropped. An event is recorded only after its
// handling reached a settled outcome: a transiently failed event stays
// unrecorded so the processor's redelivery runs it again.
type WebhookEventRepository interface {
	// Seen reports whether the event id was already recorded.
	Seen(ctx context.Context, processor domain.ProcessorID, eventID string) (bool, error)
	// MarkProcessed returns false when the event id was already recorded.
	MarkProcessed(ctx context.Context, processor domain.ProcessorID, eventID string, processedAt time.Time) (bool, error)
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionManager handles transaction lifecycle.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
}

// Retrier retries an operation on transient database errors such as
// deadlocks and serialization failures.
type Retrier interface {
	Retry(ctx context.Context, operation func() error) error
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// Cache defines caching operations.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// IdempotencyStore handles idempotency key storage.
type IdempotencyStore interface {
	// CheckAndSet atomically checks if key exists, sets if not.
	// Returns (exists, existingValue, error).
	CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	// Update updates an existing key with the final response.
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
}
