package registrations

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/emberfest/backend/internal/models"
	"github.com/emberfest/backend/internal/notify"
	"github.com/emberfest/backend/internal/payments"
	"github.com/emberfest/backend/internal/tickets"
	"github.com/emberfest/backend/pkg/queue"
	"github.com/emberfest/backend/pkg/utils"
)

// Checkout session metadata keys. The metadata is the only copy of the
// registrant's details until payment is confirmed, so ConfirmPayment must be
// able to rebuild the full record from these alone.
const (
	metaRegistrationID = "registration_id"
	metaFullName       = "full_name"
	metaContactName    = "contact_name"
	metaEmail          = "email"
	metaTier           = "tier"
)

// Check-in outcome statuses.
const (
	CheckInStatusSuccess          = "success"
	CheckInStatusAlreadyCheckedIn = "already_checked_in"
)

// TicketArchive stores ticket images out of band (e.g. S3) so operators can
// re-download them. Optional.
type TicketArchive interface {
	ArchiveTicket(ctx context.Context, registrationID string, png []byte) (string, error)
}

// RetryEnqueuer hands failed ticket emails to the out-of-band worker. Optional.
type RetryEnqueuer interface {
	EnqueueTicketEmail(ctx context.Context, payload queue.TicketEmailPayload) error
}

// NotificationRecorder persists one row per delivery attempt so failed
// notifications are visible to operators. Optional.
type NotificationRecorder interface {
	Record(ctx context.Context, entry *models.NotificationLog) error
}

// Config holds the service's event, pricing and credential settings.
type Config struct {
	Prices            payments.PriceTable
	PublicBaseURL     string
	EventName         string
	AdminPassword     string
	AdminPasswordHash string
}

// Service is the registration lifecycle controller: it mints identifiers,
// drives the hosted checkout, confirms payments idempotently, delivers
// tickets and enforces single-use check-in.
type Service struct {
	store    Store
	gateway  payments.Gateway
	notifier notify.Notifier
	cfg      Config
	logger   *zap.Logger

	archive  TicketArchive
	retries  RetryEnqueuer
	notifLog NotificationRecorder
}

// NewService creates the lifecycle service.
func NewService(store Store, gateway payments.Gateway, notifier notify.Notifier, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, gateway: gateway, notifier: notifier, cfg: cfg, logger: logger}
}

// SetTicketArchive wires the optional ticket image archive.
func (s *Service) SetTicketArchive(a TicketArchive) { s.archive = a }

// SetRetryQueue wires the optional out-of-band retry queue for failed ticket emails.
func (s *Service) SetRetryQueue(q RetryEnqueuer) { s.retries = q }

// SetNotificationRecorder wires the optional notification attempt log.
func (s *Service) SetNotificationRecorder(r NotificationRecorder) { s.notifLog = r }

// CheckoutInput carries registrant-supplied fields for a new checkout.
type CheckoutInput struct {
	FullName    string
	ContactName string
	Email       string
	Tier        string
}

// ConfirmResult is the outcome of a payment confirmation.
type ConfirmResult struct {
	FullName         string
	Email            string
	AlreadyConfirmed bool
}

// CheckInResult is the outcome of a door scan.
type CheckInResult struct {
	Status       string
	Registration *models.Registration
}

// CreateCheckout validates the registrant, resolves the authoritative price,
// mints a fresh registration id and opens a checkout session carrying the
// full registrant record as metadata. Nothing is persisted; abandoning or
// retrying this call has no side effects.
func (s *Service) CreateCheckout(ctx context.Context, in CheckoutInput) (string, error) {
	in.FullName = strings.TrimSpace(in.FullName)
	in.ContactName = strings.TrimSpace(in.ContactName)
	in.Email = strings.TrimSpace(in.Email)
	in.Tier = strings.TrimSpace(in.Tier)

	switch {
	case in.FullName == "":
		return "", fmt.Errorf("%w: full name is required", ErrValidation)
	case in.ContactName == "":
		return "", fmt.Errorf("%w: contact name is required", ErrValidation)
	case in.Email == "":
		return "", fmt.Errorf("%w: email is required", ErrValidation)
	}

	amount, err := s.cfg.Prices.Amount(in.Tier)
	if errors.Is(err, payments.ErrUnknownTier) {
		return "", fmt.Errorf("%w: unknown tier %q", ErrValidation, in.Tier)
	}
	if err != nil {
		return "", fmt.Errorf("resolve price: %w", err)
	}

	id := uuid.New()
	sess, err := s.gateway.CreateSession(ctx, payments.CreateSessionInput{
		AmountMinorUnits: amount,
		Currency:         s.cfg.Prices.Currency,
		Description:      fmt.Sprintf("%s registration", s.cfg.EventName),
		CustomerEmail:    in.Email,
		SuccessURL:       s.cfg.PublicBaseURL + "/payment-success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:        s.cfg.PublicBaseURL + "/payment-cancelled",
		Metadata: map[string]string{
			metaRegistrationID: id.String(),
			metaFullName:       in.FullName,
			metaContactName:    in.ContactName,
			metaEmail:          in.Email,
			metaTier:           in.Tier,
		},
	})
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}

	s.logger.Info("checkout session created",
		zap.String("registration_id", id.String()),
		zap.String("session_id", sess.ID),
		zap.Int64("amount", amount),
	)
	return sess.URL, nil
}

// ConfirmPayment verifies the session with the gateway, persists the
// registration idempotently and, on the first confirmation only, delivers
// the ticket. Repeats of the same paid session return AlreadyConfirmed with
// zero further writes and zero further emails.
func (s *Service) ConfirmPayment(ctx context.Context, sessionID string) (*ConfirmResult, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, fmt.Errorf("%w: session id is required", ErrValidation)
	}

	sess, err := s.gateway.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if !sess.Paid {
		return nil, ErrPaymentNotCompleted
	}

	reg, err := registrationFromMetadata(sess)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", sessionID, err)
	}

	first, err := s.store.ConfirmPaid(ctx, reg)
	if err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return nil, err
		}
		return nil, fmt.Errorf("confirm paid: %w", err)
	}

	result := &ConfirmResult{FullName: reg.FullName, Email: reg.Email, AlreadyConfirmed: !first}
	if !first {
		s.logger.Info("payment already confirmed", zap.String("registration_id", reg.ID.String()))
		return result, nil
	}

	s.logger.Info("payment confirmed",
		zap.String("registration_id", reg.ID.String()),
		zap.String("session_id", sessionID),
	)

	if err := s.deliverTicket(ctx, reg, models.NotificationKindTicket); err != nil {
		// The registration stays valid; delivery is retried out of band.
		s.queueRetry(ctx, reg)
		return result, fmt.Errorf("%w: %s", ErrNotificationFailed, err)
	}
	return result, nil
}

// VerifyCheckIn enforces single-use check-in for a scanned ticket. A repeat
// scan is the expected case at the door and comes back as a status, not an
// error.
func (s *Service) VerifyCheckIn(ctx context.Context, rawID, credential string) (*CheckInResult, error) {
	if !s.checkCredential(credential) {
		return nil, ErrUnauthorized
	}
	id, err := uuid.Parse(strings.TrimSpace(rawID))
	if err != nil {
		return nil, ErrNotFound
	}

	reg, already, err := s.store.CheckIn(ctx, id, time.Now().UTC())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("check in: %w", err)
	}
	if already {
		return &CheckInResult{Status: CheckInStatusAlreadyCheckedIn, Registration: reg}, nil
	}
	s.logger.Info("checked in", zap.String("registration_id", id.String()))
	return &CheckInResult{Status: CheckInStatusSuccess, Registration: reg}, nil
}

// ListRegistrations returns all registrations, newest first.
func (s *Service) ListRegistrations(ctx context.Context, credential string) ([]models.Registration, error) {
	if !s.checkCredential(credential) {
		return nil, ErrUnauthorized
	}
	list, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	return list, nil
}

// ResendTicket re-encodes and re-delivers the ticket for an existing
// registration. Manual operator path for failed notifications.
func (s *Service) ResendTicket(ctx context.Context, rawID, credential string) error {
	if !s.checkCredential(credential) {
		return ErrUnauthorized
	}
	id, err := uuid.Parse(strings.TrimSpace(rawID))
	if err != nil {
		return ErrNotFound
	}
	reg, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("get registration: %w", err)
	}
	if err := s.deliverTicket(ctx, reg, models.NotificationKindTicketResend); err != nil {
		return fmt.Errorf("%w: %s", ErrNotificationFailed, err)
	}
	return nil
}

// deliverTicket encodes the QR, archives it when an archive is wired, sends
// the email and records the attempt.
func (s *Service) deliverTicket(ctx context.Context, reg *models.Registration, kind string) error {
	png, err := tickets.Encode(reg.ID.String())
	if err != nil {
		s.recordNotification(ctx, reg, kind, models.NotificationStatusFailed, err)
		return err
	}

	if s.archive != nil {
		if _, err := s.archive.ArchiveTicket(ctx, reg.ID.String(), png); err != nil {
			s.logger.Warn("ticket archive failed", zap.Error(err), zap.String("registration_id", reg.ID.String()))
		}
	}

	err = s.notifier.SendTicket(ctx, notify.TicketEmail{
		To:             reg.Email,
		FullName:       reg.FullName,
		EventName:      s.cfg.EventName,
		RegistrationID: reg.ID.String(),
		TicketPNG:      png,
	})
	if err != nil {
		s.logger.Error("ticket email failed", zap.Error(err), zap.String("registration_id", reg.ID.String()))
		s.recordNotification(ctx, reg, kind, models.NotificationStatusFailed, err)
		return err
	}
	s.recordNotification(ctx, reg, kind, models.NotificationStatusSent, nil)
	return nil
}

func (s *Service) queueRetry(ctx context.Context, reg *models.Registration) {
	if s.retries == nil {
		return
	}
	err := s.retries.EnqueueTicketEmail(ctx, queue.TicketEmailPayload{
		RegistrationID: reg.ID,
		Recipient:      reg.Email,
		FullName:       reg.FullName,
	})
	if err != nil {
		s.logger.Error("enqueue ticket retry failed", zap.Error(err), zap.String("registration_id", reg.ID.String()))
	}
}

func (s *Service) recordNotification(ctx context.Context, reg *models.Registration, kind, status string, cause error) {
	if s.notifLog == nil {
		return
	}
	entry := &models.NotificationLog{
		RegistrationID: reg.ID,
		Recipient:      reg.Email,
		Kind:           kind,
		Status:         status,
	}
	if cause != nil {
		entry.ErrorMessage = cause.Error()
	}
	if err := s.notifLog.Record(ctx, entry); err != nil {
		s.logger.Error("record notification failed", zap.Error(err), zap.String("registration_id", reg.ID.String()))
	}
}

func (s *Service) checkCredential(credential string) bool {
	return utils.CheckCredential(credential, s.cfg.AdminPassword, s.cfg.AdminPasswordHash)
}

// registrationFromMetadata rebuilds the full record from session metadata;
// at confirmation time the store may not have a row yet, so the metadata is
// the single source of truth.
func registrationFromMetadata(sess *payments.Session) (*models.Registration, error) {
	rawID := sess.Metadata[metaRegistrationID]
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("invalid registration id in session metadata: %q", rawID)
	}
	fullName := sess.Metadata[metaFullName]
	email := sess.Metadata[metaEmail]
	if fullName == "" || email == "" {
		return nil, fmt.Errorf("incomplete registrant metadata in session")
	}
	return &models.Registration{
		ID:            id,
		FullName:      fullName,
		ContactName:   sess.Metadata[metaContactName],
		Email:         email,
		Tier:          sess.Metadata[metaTier],
		AmountPaid:    sess.AmountTotal,
		Currency:      sess.Currency,
		PaymentStatus: models.PaymentStatusPaid,
	}, nil
}
