package registrations

import "errors"

// Domain errors surfaced by the lifecycle service. Handlers map these to
// HTTP statuses; anything else is a dependency failure and is reported to
// callers as a generic server error.
var (
	// ErrValidation covers missing or empty registrant fields and unknown
	// tier keys. No side effects occur once it is returned.
	ErrValidation = errors.New("validation failed")

	// ErrPaymentNotCompleted means the checkout session exists but is not in
	// a paid state yet. Safe to retry once payment completes.
	ErrPaymentNotCompleted = errors.New("payment not completed")

	// ErrUnauthorized is a credential mismatch on a privileged operation. It
	// leaks nothing about record existence.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound means no registration matches the identifier.
	ErrNotFound = errors.New("registration not found")

	// ErrDuplicateEmail is the store rejecting a second registration for an
	// email that already has one.
	ErrDuplicateEmail = errors.New("email already registered")

	// ErrNotificationFailed means the registration was confirmed and
	// persisted but the ticket email could not be delivered. The paid state
	// is never rolled back for this.
	ErrNotificationFailed = errors.New("ticket notification failed")
)
