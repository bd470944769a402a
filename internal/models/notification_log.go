package models

import (
	"time"

	"github.com/google/uuid"
)

// Notification kinds.
const (
	NotificationKindTicket       = "ticket"
	NotificationKindTicketResend = "ticket_resend"
	NotificationKindTicketRetry  = "ticket_retry"
)

// Notification delivery status.
const (
	NotificationStatusSent   = "sent"
	NotificationStatusFailed = "failed"
)

// NotificationLog records one ticket email delivery attempt. Failed entries
// are what operators watch: the registration they point at is valid even
// though the ticket was not delivered.
type NotificationLog struct {
	ID             uuid.UUID `json:"id"`
	RegistrationID uuid.UUID `json:"registration_id"`
	Recipient      string    `json:"recipient"`
	Kind           string    `json:"kind"`
	Status         string    `json:"status"`
	ErrorMessage   string    `json:"error_message,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
