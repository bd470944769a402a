// Package notify is the outbound email boundary: it delivers a registrant's
// ticket image and reports success or failure. Retry policy lives with the
// caller, never here.
package notify

import "context"

// TicketEmail is one ticket delivery request.
type TicketEmail struct {
	To             string
	FullName       string
	EventName      string
	RegistrationID string
	TicketPNG      []byte
}

// Notifier delivers ticket emails. Implementations must be safe for
// concurrent use and must not retry internally.
type Notifier interface {
	SendTicket(ctx context.Context, msg TicketEmail) error
}
