package registrations

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/emberfest/backend/internal/models"
)

const pgUniqueViolation = "23505"

const registrationColumns = `id, full_name, contact_name, email, tier, amount_paid, currency, payment_status, checked_in, checked_in_at, created_at, updated_at`

// Repository implements Store on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a registrations repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ Store = (*Repository)(nil)

// ConfirmPaid performs the insert-or-mark-paid transition as a single
// statement, so concurrent confirmations of the same id race inside the
// database and exactly one observes the first confirmation.
func (r *Repository) ConfirmPaid(ctx context.Context, reg *models.Registration) (bool, error) {
	const q = `INSERT INTO registrations (id, full_name, contact_name, email, tier, amount_paid, currency, payment_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'paid')
		ON CONFLICT (id) DO UPDATE SET payment_status = 'paid', updated_at = NOW()
		WHERE registrations.payment_status <> 'paid'
		RETURNING created_at, updated_at`
	err := r.pool.QueryRow(ctx, q,
		reg.ID, reg.FullName, reg.ContactName, reg.Email, reg.Tier, reg.AmountPaid, reg.Currency,
	).Scan(&reg.CreatedAt, &reg.UpdatedAt)
	if err == nil {
		reg.PaymentStatus = models.PaymentStatusPaid
		return true, nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		// Row exists and is already paid; the conditional update matched nothing.
		return false, nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation && pgErr.ConstraintName == "registrations_email_key" {
		return false, ErrDuplicateEmail
	}
	return false, err
}

// CheckIn sets checked_in exactly once via a conditional update; the
// read-check-write is a single statement so simultaneous scans of the same
// ticket can never both succeed.
func (r *Repository) CheckIn(ctx context.Context, id uuid.UUID, at time.Time) (*models.Registration, bool, error) {
	const q = `UPDATE registrations
		SET checked_in = TRUE, checked_in_at = $2, updated_at = NOW()
		WHERE id = $1 AND checked_in = FALSE
		RETURNING ` + registrationColumns
	reg, err := r.scanOne(r.pool.QueryRow(ctx, q, id, at))
	if err == nil {
		return reg, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, err
	}
	// Either unknown id or already checked in; a follow-up read distinguishes.
	existing, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return existing, true, nil
}

// GetByID returns a registration by id, or ErrNotFound.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Registration, error) {
	const q = `SELECT ` + registrationColumns + ` FROM registrations WHERE id = $1`
	reg, err := r.scanOne(r.pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return reg, nil
}

// List returns all registrations, newest first.
func (r *Repository) List(ctx context.Context) ([]models.Registration, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+registrationColumns+` FROM registrations ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Registration
	for rows.Next() {
		var reg models.Registration
		if err := rows.Scan(
			&reg.ID, &reg.FullName, &reg.ContactName, &reg.Email, &reg.Tier, &reg.AmountPaid, &reg.Currency,
			&reg.PaymentStatus, &reg.CheckedIn, &reg.CheckedInAt, &reg.CreatedAt, &reg.UpdatedAt,
		); err != nil {
			return nil, err
		}
		list = append(list, reg)
	}
	return list, rows.Err()
}

func (r *Repository) scanOne(row pgx.Row) (*models.Registration, error) {
	var reg models.Registration
	err := row.Scan(
		&reg.ID, &reg.FullName, &reg.ContactName, &reg.Email, &reg.Tier, &reg.AmountPaid, &reg.Currency,
		&reg.PaymentStatus, &reg.CheckedIn, &reg.CheckedInAt, &reg.CreatedAt, &reg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &reg, nil
}
