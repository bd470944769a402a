// Package payments defines the hosted-checkout gateway boundary and the
// server-held price table. Registrant details ride inside the checkout
// session as metadata until payment is confirmed, so Session must round-trip
// metadata exactly as it was written.
package payments

import "context"

// CreateSessionInput describes one checkout session to create.
type CreateSessionInput struct {
	AmountMinorUnits int64
	Currency         string
	Description      string
	CustomerEmail    string
	SuccessURL       string
	CancelURL        string
	Metadata         map[string]string
}

// Session is the gateway's view of a checkout session.
type Session struct {
	ID          string
	URL         string
	Paid        bool
	AmountTotal int64
	Currency    string
	Metadata    map[string]string
}

// Gateway creates hosted checkout sessions and reports their payment state.
// Implementations must be safe for concurrent use.
type Gateway interface {
	CreateSession(ctx context.Context, in CreateSessionInput) (*Session, error)
	GetSession(ctx context.Context, sessionID string) (*Session, error)
}
