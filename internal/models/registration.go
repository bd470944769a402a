package models

import (
	"time"

	"github.com/google/uuid"
)

// PaymentStatus values. A registration row is only written once its payment
// is confirmed, so the absence of a row is the "unpaid" state.
const (
	PaymentStatusPaid = "paid"
)

// Registration is one attendee's registration with its payment and check-in
// state. The ID is minted before any payment step, travels through the
// checkout session as metadata, and is the payload encoded in the ticket QR.
type Registration struct {
	ID            uuid.UUID  `json:"id"`
	FullName      string     `json:"full_name"`
	ContactName   string     `json:"contact_name"`
	Email         string     `json:"email"`
	Tier          string     `json:"tier,omitempty"`
	AmountPaid    int64      `json:"amount_paid"`
	Currency      string     `json:"currency,omitempty"`
	PaymentStatus string     `json:"payment_status"`
	CheckedIn     bool       `json:"checked_in"`
	CheckedInAt   *time.Time `json:"checked_in_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}
