package registrations

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/emberfest/backend/internal/models"
)

// Store is durable keyed storage for registration records. Both write
// operations must be atomic per identifier: two concurrent ConfirmPaid calls
// for the same id yield exactly one first confirmation, and two concurrent
// CheckIn calls yield exactly one transition to checked-in.
type Store interface {
	// ConfirmPaid inserts reg as paid, or transitions an existing unpaid row
	// to paid. Returns true when this call performed the transition (first
	// confirmation) and false when the row was already paid.
	// Returns ErrDuplicateEmail when reg.Email belongs to a different id.
	ConfirmPaid(ctx context.Context, reg *models.Registration) (bool, error)

	// CheckIn marks the registration checked-in at the given time, exactly
	// once. Returns the resulting record and already=true when the row was
	// checked in before this call (state untouched). Returns ErrNotFound
	// for an unknown id.
	CheckIn(ctx context.Context, id uuid.UUID, at time.Time) (reg *models.Registration, already bool, err error)

	// GetByID returns the registration or ErrNotFound.
	GetByID(ctx context.Context, id uuid.UUID) (*models.Registration, error)

	// List returns all registrations, newest first by creation time.
	List(ctx context.Context) ([]models.Registration, error)
}
