package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vendora/payouts/internal/domain"
	"github.com/vendora/payouts/internal/usecase"
)

// BalanceRepository implements usecase.BalanceRepository.
type BalanceRepository struct {
	pool *pgxpool.Pool
}

// NewBalanceRepository creates a new BalanceRepository.
func NewBalanceRepository(pool *pgxpool.Pool) *BalanceRepository {
	return &BalanceRepository{pool: pool}
}

const balanceColumns = `id, payee_id, merchant_account_id, settlement_date, amount_cents, holding_amount_cents, holding_currency, state, payment_id, created_at, updated_at`

// Create creates a new balance.
func (r *BalanceRepository) Create(ctx context.Context, balance *domain.Balance) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO balances (`+balanceColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		balance.ID,
		balance.PayeeID,
		balance.MerchantAccountID,
		timeToPgDate(balance.SettlementDate),
		balance.AmountCents,
		balance.HoldingAmountCents,
		balance.HoldingCurrency,
		string(balance.State),
		textOrNull(balance.PaymentID),
		timeToPgTimestamptz(balance.CreatedAt),
		timeToPgTimestamptz(balance.UpdatedAt),
	)

	return err
}

// GetByID retrieves a balance by ID.
func (r *BalanceRepository) GetByID(ctx context.Context, id string) (*domain.Balance, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+balanceColumns+` FROM balances WHERE id = $1`, id)

	balance, err := scanBalance(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrBalanceNotFound
		}

		return nil, err
	}

	return balance, nil
}

// ListUnpaid lists a payee's unpaid balances up to the cutoff, oldest first.
func (r *BalanceRepository) ListUnpaid(ctx context.Context, payeeID string, cutoff time.Time) ([]*domain.Balance, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+balanceColumns+` FROM balances
		 WHERE payee_id = $1 AND state = 'unpaid' AND settlement_date <= $2
		 ORDER BY settlement_date, id`,
		payeeID, timeToPgDate(cutoff))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectBalances(rows)
}

// ListByPayment lists the balances owned by a payment.
func (r *BalanceRepository) ListByPayment(ctx context.Context, paymentID string) ([]*domain.Balance, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+balanceColumns+` FROM balances
		 WHERE payment_id = $1 ORDER BY settlement_date, id`,
		paymentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectBalances(rows)
}

// LockForProcessing claims the given balances for a payment. The conditional
// update takes the row locks and skips balances another run moved out of
// unpaid since they were read; only the rows actually transitioned are
// returned.
func (r *BalanceRepository) LockForProcessing(ctx context.Context, tx usecase.Transaction, ids []string, paymentID string, updatedAt time.Time) ([]*domain.Balance, error) {
	pgxTx := tx.(*Tx).PgxTx()

	rows, err := pgxTx.Query(ctx,
		`UPDATE balances
		 SET state = 'processing', payment_id = $2, updated_at = $3
		 WHERE id = ANY($1) AND state = 'unpaid'
		 RETURNING `+balanceColumns,
		ids, paymentID, timeToPgTimestamptz(updatedAt))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectBalances(rows)
}

// UpdateState updates a balance's state and owning payment.
func (r *BalanceRepository) UpdateState(ctx context.Context, tx usecase.Transaction, id string, state domain.BalanceState, paymentID string, updatedAt time.Time) error {
	pgxTx := tx.(*Tx).PgxTx()

	tag, err := pgxTx.Exec(ctx,
		`UPDATE balances SET state = $2, payment_id = $3, updated_at = $4 WHERE id = $1`,
		id, string(state), textOrNull(paymentID), timeToPgTimestamptz(updatedAt))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrBalanceNotFound
	}

	return nil
}

func collectBalances(rows pgx.Rows) ([]*domain.Balance, error) {
	var balances []*domain.Balance
	for rows.Next() {
		balance, err := scanBalance(rows)
		if err != nil {
			return nil, err
		}
		balances = append(balances, balance)
	}

	return balances, rows.Err()
}

func scanBalance(row pgx.Row) (*domain.Balance, error) {
	balance := &domain.Balance{}
	var state string
	var paymentID pgtype.Text

	err := row.Scan(
		&balance.ID,
		&balance.PayeeID,
		&balance.MerchantAccountID,
		&balance.SettlementDate,
		&balance.AmountCents,
		&balance.HoldingAmountCents,
		&balance.HoldingCurrency,
		&state,
		&paymentID,
		&balance.CreatedAt,
		&balance.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	balance.State = domain.BalanceState(state)
	balance.PaymentID = textValue(paymentID)

	return balance, nil
}
