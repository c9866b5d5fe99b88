package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vendora/payouts/internal/domain"
)

// MerchantAccountRepository implements usecase.MerchantAccountRepository.
type MerchantAccountRepository struct {
	pool *pgxpool.Pool
}

// NewMerchantAccountRepository creates a new MerchantAccountRepository.
func NewMerchantAccountRepository(pool *pgxpool.Pool) *MerchantAccountRepository {
	return &MerchantAccountRepository{pool: pool}
}

const merchantAccountColumns = `id, payee_id, processor, holder_of_funds, currency, processor_account_id, bank_account_id, billing_agreement_id, deleted, created_at, updated_at`

// GetByID retrieves a merchant account by ID.
func (r *MerchantAccountRepository) GetByID(ctx context.Context, id string) (*domain.MerchantAccount, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+merchantAccountColumns+` FROM merchant_accounts WHERE id = $1`, id)

	account, err := scanMerchantAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrMerchantAccountNotFound
		}

		return nil, err
	}

	return account, nil
}

// GetByProcessorAccountID resolves the merchant account a processor webhook
// was delivered for.
func (r *MerchantAccountRepository) GetByProcessorAccountID(ctx context.Context, processor domain.ProcessorID, processorAccountID string) (*domain.MerchantAccount, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+merchantAccountColumns+` FROM merchant_accounts
		 WHERE processor = $1 AND processor_account_id = $2 AND NOT deleted`,
		string(processor), processorAccountID)

	account, err := scanMerchantAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrMerchantAccountNotFound
		}

		return nil, err
	}

	return account, nil
}

// ListByPayee lists a payee's merchant accounts, including deleted ones:
// payability checks decide what deletion means per processor.
func (r *MerchantAccountRepository) ListByPayee(ctx context.Context, payeeID string) ([]*domain.MerchantAccount, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+merchantAccountColumns+` FROM merchant_accounts
		 WHERE payee_id = $1 ORDER BY created_at`,
		payeeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []*domain.MerchantAccount
	for rows.Next() {
		account, err := scanMerchantAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}

	return accounts, rows.Err()
}

func scanMerchantAccount(row pgx.Row) (*domain.MerchantAccount, error) {
	account := &domain.MerchantAccount{}
	var processor, holder string

	err := row.Scan(
		&account.ID,
		&account.PayeeID,
		&processor,
		&holder,
		&account.Currency,
		&account.ProcessorAccountID,
		&account.BankAccountID,
		&account.BillingAgreementID,
		&account.Deleted,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	account.Processor = domain.ProcessorID(processor)
	account.HolderOfFunds = domain.HolderOfFunds(holder)

	return account, nil
}
