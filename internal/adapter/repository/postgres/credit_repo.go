package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vendora/payouts/internal/domain"
)

// CreditRepository implements usecase.CreditRepository. Credits are
// append-only; there is no update path.
type CreditRepository struct {
	pool *pgxpool.Pool
}

// NewCreditRepository creates a new CreditRepository.
func NewCreditRepository(pool *pgxpool.Pool) *CreditRepository {
	return &CreditRepository{pool: pool}
}

const creditColumns = `id, payee_id, merchant_account_id, payment_id, amount_cents, holding_amount_gross_cents, holding_amount_net_cents, holding_amount_fee_cents, holding_currency, created_at`

// Create creates a new credit.
func (r *CreditRepository) Create(ctx context.Context, credit *domain.Credit) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO credits (`+creditColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		credit.ID,
		credit.PayeeID,
		credit.MerchantAccountID,
		textOrNull(credit.PaymentID),
		credit.AmountCents,
		credit.BalanceTransaction.HoldingAmountGrossCents,
		credit.BalanceTransaction.HoldingAmountNetCents,
		credit.BalanceTransaction.HoldingAmountFeeCents,
		credit.BalanceTransaction.HoldingCurrency,
		timeToPgTimestamptz(credit.CreatedAt),
	)

	return err
}

// ListByPayee lists a payee's credits, newest first.
func (r *CreditRepository) ListByPayee(ctx context.Context, payeeID string, limit, offset int) ([]*domain.Credit, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+creditColumns+` FROM credits
		 WHERE payee_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		payeeID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var credits []*domain.Credit
	for rows.Next() {
		credit, err := scanCredit(rows)
		if err != nil {
			return nil, err
		}
		credits = append(credits, credit)
	}

	return credits, rows.Err()
}

func scanCredit(row pgx.Row) (*domain.Credit, error) {
	credit := &domain.Credit{}
	var paymentID pgtype.Text

	err := row.Scan(
		&credit.ID,
		&credit.PayeeID,
		&credit.MerchantAccountID,
		&paymentID,
		&credit.AmountCents,
		&credit.BalanceTransaction.HoldingAmountGrossCents,
		&credit.BalanceTransaction.HoldingAmountNetCents,
		&credit.BalanceTransaction.HoldingAmountFeeCents,
		&credit.BalanceTransaction.HoldingCurrency,
		&credit.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	credit.PaymentID = textValue(paymentID)

	return credit, nil
}
