package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vendora/payouts/internal/domain"
)

// PayeeRepository implements usecase.PayeeRepository.
type PayeeRepository struct {
	pool *pgxpool.Pool
}

// NewPayeeRepository creates a new PayeeRepository.
func NewPayeeRepository(pool *pgxpool.Pool) *PayeeRepository {
	return &PayeeRepository{pool: pool}
}

const payeeColumns = `id, name, email, currency, minimum_payout_cents, suspended, payouts_paused_by, paypal_payout_email, created_at, updated_at`

// GetByID retrieves a payee by ID.
func (r *PayeeRepository) GetByID(ctx context.Context, id string) (*domain.Payee, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+payeeColumns+` FROM payees WHERE id = $1`, id)

	payee, err := scanPayee(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPayeeNotFound
		}

		return nil, err
	}

	return payee, nil
}

// List lists payees with pagination.
func (r *PayeeRepository) List(ctx context.Context, limit, offset int) ([]*domain.Payee, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+payeeColumns+` FROM payees ORDER BY id LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payees []*domain.Payee
	for rows.Next() {
		payee, err := scanPayee(rows)
		if err != nil {
			return nil, err
		}
		payees = append(payees, payee)
	}

	return payees, rows.Err()
}

// ListPayoutCandidateIDs returns ids of payees holding at least one unpaid
// balance dated on or before the cutoff.
func (r *PayeeRepository) ListPayoutCandidateIDs(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT DISTINCT payee_id FROM balances
		 WHERE state = 'unpaid' AND settlement_date <= $1
		 ORDER BY payee_id`,
		timeToPgDate(cutoff))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// AddNote appends a payee note.
func (r *PayeeRepository) AddNote(ctx context.Context, note *domain.PayeeNote) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO payee_notes (id, payee_id, author, content, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		note.ID, note.PayeeID, note.Author, note.Content, timeToPgTimestamptz(note.CreatedAt))

	return err
}

// ListNotes lists a payee's notes, newest first.
func (r *PayeeRepository) ListNotes(ctx context.Context, payeeID string, limit, offset int) ([]*domain.PayeeNote, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, payee_id, author, content, created_at FROM payee_notes
		 WHERE payee_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		payeeID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notes []*domain.PayeeNote
	for rows.Next() {
		note := &domain.PayeeNote{}
		if err := rows.Scan(&note.ID, &note.PayeeID, &note.Author, &note.Content, &note.CreatedAt); err != nil {
			return nil, err
		}
		notes = append(notes, note)
	}

	return notes, rows.Err()
}

// SetPayoutsPausedBy updates who paused a payee's payouts.
func (r *PayeeRepository) SetPayoutsPausedBy(ctx context.Context, id string, pausedBy domain.PausedBy, updatedAt time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE payees SET payouts_paused_by = $2, updated_at = $3 WHERE id = $1`,
		id, string(pausedBy), timeToPgTimestamptz(updatedAt))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPayeeNotFound
	}

	return nil
}

func scanPayee(row pgx.Row) (*domain.Payee, error) {
	payee := &domain.Payee{}
	var pausedBy, paypalEmail string

	err := row.Scan(
		&payee.ID,
		&payee.Name,
		&payee.Email,
		&payee.Currency,
		&payee.MinimumPayoutCents,
		&payee.Suspended,
		&pausedBy,
		&paypalEmail,
		&payee.CreatedAt,
		&payee.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	payee.PayoutsPausedBy = domain.PausedBy(pausedBy)
	payee.PaypalPayoutEmail = paypalEmail

	return payee, nil
}
