package usecase

import "time"

const (
	// DefaultTransactionTimeout is the maximum duration for a database transaction
	// This prevents long-running transactions from blocking tables
	DefaultTransactionTimeout = 10 * time.Second

	// IdempotencyKeyTTL is how long idempotency keys are cached
	IdempotencyKeyTTL = 24 * time.Hour

	// EstimateCacheTTL is how long payout estimates are cached per payee
	EstimateCacheTTL = 5 * time.Minute

	// NoteAuthorSystem is the author recorded on notes added by automated
	// payout runs
	NoteAuthorSystem = "system"

	// IdempotencyPending marks an idempotency key claimed by an in-flight
	// request that has not stored its response yet
	IdempotencyPending = "pending"
)
