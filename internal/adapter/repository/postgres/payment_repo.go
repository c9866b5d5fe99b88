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

// PaymentRepository implements usecase.PaymentRepository.
type PaymentRepository struct {
	pool *pgxpool.Pool
}

// NewPaymentRepository creates a new PaymentRepository.
func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

const paymentColumns = `id, payee_id, merchant_account_id, processor, amount_cents, currency, destination, state, payout_type, cutoff_date, external_transfer_id, internal_transfer_id, internal_amount_cents, failure_reason, arrival_date, reversal_pending, created_at, updated_at`

// Create creates a new payment within a transaction.
func (r *PaymentRepository) Create(ctx context.Context, tx usecase.Transaction, payment *domain.Payment) error {
	pgxTx := tx.(*Tx).PgxTx()

	var arrival pgtype.Date
	if payment.ArrivalDate != nil {
		arrival = timeToPgDate(*payment.ArrivalDate)
	}

	_, err := pgxTx.Exec(ctx,
		`INSERT INTO payments (`+paymentColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		payment.ID,
		payment.PayeeID,
		payment.MerchantAccountID,
		string(payment.Processor),
		payment.AmountCents,
		payment.Currency,
		payment.Destination,
		string(payment.State),
		string(payment.PayoutType),
		timeToPgDate(payment.CutoffDate),
		textOrNull(payment.ExternalTransferID),
		textOrNull(payment.InternalTransferID),
		payment.InternalAmountCents,
		string(payment.FailureReason),
		arrival,
		payment.ReversalPending,
		timeToPgTimestamptz(payment.CreatedAt),
		timeToPgTimestamptz(payment.UpdatedAt),
	)

	return err
}

// GetByID retrieves a payment by ID.
func (r *PaymentRepository) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id)

	payment, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPaymentNotFound
		}

		return nil, err
	}

	return payment, nil
}

// GetByExternalTransferID resolves the payment a processor webhook refers to.
func (r *PaymentRepository) GetByExternalTransferID(ctx context.Context, processor domain.ProcessorID, transferID string) (*domain.Payment, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments
		 WHERE processor = $1 AND external_transfer_id = $2`,
		string(processor), transferID)

	payment, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPaymentNotFound
		}

		return nil, err
	}

	return payment, nil
}

// HasProcessing reports whether a payee has a payment in flight.
func (r *PaymentRepository) HasProcessing(ctx context.Context, payeeID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM payments
		   WHERE payee_id = $1 AND state IN ('creating', 'processing')
		 )`,
		payeeID).Scan(&exists)

	return exists, err
}

// SumForCutoff sums non-failed payment amounts built for the payee at this
// exact cutoff date.
func (r *PaymentRepository) SumForCutoff(ctx context.Context, payeeID string, cutoff time.Time) (int64, error) {
	var sum int64
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount_cents), 0) FROM payments
		 WHERE payee_id = $1 AND cutoff_date = $2 AND state NOT IN ('failed', 'cancelled')`,
		payeeID, timeToPgDate(cutoff)).Scan(&sum)

	return sum, err
}

// Update persists all mutable payment fields.
func (r *PaymentRepository) Update(ctx context.Context, payment *domain.Payment) error {
	var arrival pgtype.Date
	if payment.ArrivalDate != nil {
		arrival = timeToPgDate(*payment.ArrivalDate)
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE payments SET
		   merchant_account_id = $2,
		   processor = $3,
		   amount_cents = $4,
		   currency = $5,
		   destination = $6,
		   state = $7,
		   external_transfer_id = $8,
		   internal_transfer_id = $9,
		   internal_amount_cents = $10,
		   failure_reason = $11,
		   arrival_date = $12,
		   reversal_pending = $13,
		   updated_at = $14
		 WHERE id = $1`,
		payment.ID,
		payment.MerchantAccountID,
		string(payment.Processor),
		payment.AmountCents,
		payment.Currency,
		payment.Destination,
		string(payment.State),
		textOrNull(payment.ExternalTransferID),
		textOrNull(payment.InternalTransferID),
		payment.InternalAmountCents,
		string(payment.FailureReason),
		arrival,
		payment.ReversalPending,
		timeToPgTimestamptz(time.Now().UTC()),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPaymentNotFound
	}

	return nil
}

// ListByPayee lists a payee's payments, newest first.
func (r *PaymentRepository) ListByPayee(ctx context.Context, payeeID string, limit, offset int) ([]*domain.Payment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+paymentColumns+` FROM payments
		 WHERE payee_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		payeeID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []*domain.Payment
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, payment)
	}

	return payments, rows.Err()
}

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	payment := &domain.Payment{}
	var processor, state, payoutType, failureReason string
	var externalID, internalID pgtype.Text
	var arrival pgtype.Date

	err := row.Scan(
		&payment.ID,
		&payment.PayeeID,
		&payment.MerchantAccountID,
		&processor,
		&payment.AmountCents,
		&payment.Currency,
		&payment.Destination,
		&state,
		&payoutType,
		&payment.CutoffDate,
		&externalID,
		&internalID,
		&payment.InternalAmountCents,
		&failureReason,
		&arrival,
		&payment.ReversalPending,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	payment.Processor = domain.ProcessorID(processor)
	payment.State = domain.PaymentState(state)
	payment.PayoutType = domain.PayoutType(payoutType)
	payment.FailureReason = domain.FailureReason(failureReason)
	payment.ExternalTransferID = textValue(externalID)
	payment.InternalTransferID = textValue(internalID)
	if arrival.Valid {
		t := arrival.Time
		payment.ArrivalDate = &t
	}

	return payment, nil
}
