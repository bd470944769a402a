// Package notifications persists and exposes the ticket email delivery log.
// A failed entry means the registration is valid but the ticket was not
// delivered; operators watch this log and resend manually or let the worker
// retry.
package notifications

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/emberfest/backend/internal/models"
)

// Repository handles notification_log persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a notification log repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Record inserts one delivery attempt.
func (r *Repository) Record(ctx context.Context, entry *models.NotificationLog) error {
	const q = `INSERT INTO notification_log (registration_id, recipient, kind, status, error_message)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''))
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q,
		entry.RegistrationID, entry.Recipient, entry.Kind, entry.Status, entry.ErrorMessage,
	).Scan(&entry.ID, &entry.CreatedAt)
}

// List returns delivery attempts, newest first.
func (r *Repository) List(ctx context.Context) ([]models.NotificationLog, error) {
	const q = `SELECT id, registration_id, recipient, kind, status, COALESCE(error_message, ''), created_at
		FROM notification_log
		ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.NotificationLog
	for rows.Next() {
		var entry models.NotificationLog
		if err := rows.Scan(&entry.ID, &entry.RegistrationID, &entry.Recipient, &entry.Kind, &entry.Status, &entry.ErrorMessage, &entry.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, entry)
	}
	return list, rows.Err()
}
