package registrations

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/emberfest/backend/internal/models"
	"github.com/emberfest/backend/pkg/response"
)

// Handler exposes the registration lifecycle over HTTP.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a registrations handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// CheckoutRequest is the body for POST /create-checkout.
type CheckoutRequest struct {
	FullName    string `json:"full_name" binding:"required"`
	ContactName string `json:"contact_name" binding:"required"`
	Email       string `json:"email" binding:"required,email"`
	Tier        string `json:"tier"`
}

// CreateCheckout handles POST /create-checkout. Returns the gateway redirect
// URL; nothing is persisted yet.
func (h *Handler) CreateCheckout(c *gin.Context) {
	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "full_name, contact_name and a valid email are required")
		return
	}

	url, err := h.svc.CreateCheckout(c.Request.Context(), CheckoutInput{
		FullName:    req.FullName,
		ContactName: req.ContactName,
		Email:       req.Email,
		Tier:        req.Tier,
	})
	if err != nil {
		if errors.Is(err, ErrValidation) {
			response.BadRequest(c, err.Error())
			return
		}
		h.logger.Error("create checkout failed", zap.Error(err))
		response.Internal(c, "could not start checkout, please try again")
		return
	}
	response.OK(c, gin.H{"url": url})
}

// ConfirmRequest is the body for POST /confirm-payment.
type ConfirmRequest struct {
	SessionID string `json:"session_id" binding:"required"`
}

// ConfirmPayment handles POST /confirm-payment. Safe to call repeatedly for
// the same session: only the first call writes and emails.
func (h *Handler) ConfirmPayment(c *gin.Context) {
	var req ConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "session_id is required")
		return
	}

	result, err := h.svc.ConfirmPayment(c.Request.Context(), req.SessionID)
	switch {
	case err == nil:
		response.OK(c, gin.H{
			"name":              result.FullName,
			"email":             result.Email,
			"already_confirmed": result.AlreadyConfirmed,
		})
	case errors.Is(err, ErrPaymentNotCompleted):
		response.BadRequest(c, "payment has not been completed for this session")
	case errors.Is(err, ErrValidation):
		response.BadRequest(c, err.Error())
	case errors.Is(err, ErrDuplicateEmail):
		response.Conflict(c, "a registration already exists for this email")
	case errors.Is(err, ErrNotificationFailed):
		// The registration is confirmed and valid; only delivery failed.
		h.logger.Error("ticket delivery failed after confirmation", zap.Error(err), zap.String("session_id", req.SessionID))
		response.ServiceUnavailable(c, "registration confirmed, but the ticket email could not be sent; it will be retried")
	default:
		h.logger.Error("confirm payment failed", zap.Error(err), zap.String("session_id", req.SessionID))
		response.Internal(c, "could not confirm payment, please try again")
	}
}

// VerifyRequest is the body for POST /verify.
type VerifyRequest struct {
	ID       string `json:"id" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Verify handles POST /verify: the door scan. Repeat scans return
// already_checked_in with the existing record and are not errors.
func (h *Handler) Verify(c *gin.Context) {
	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "id and password are required")
		return
	}

	result, err := h.svc.VerifyCheckIn(c.Request.Context(), req.ID, req.Password)
	switch {
	case err == nil:
		message := "checked in"
		if result.Status == CheckInStatusAlreadyCheckedIn {
			message = "ticket was already used"
		}
		response.OK(c, gin.H{
			"status":       result.Status,
			"message":      message,
			"registration": result.Registration,
		})
	case errors.Is(err, ErrUnauthorized):
		response.Unauthorized(c, "invalid credential")
	case errors.Is(err, ErrNotFound):
		response.NotFound(c, "no registration matches this ticket")
	default:
		h.logger.Error("verify failed", zap.Error(err))
		response.Internal(c, "could not verify ticket, please try again")
	}
}

// List handles GET /admin/registrations?password=... Newest first, never cached.
func (h *Handler) List(c *gin.Context) {
	c.Header("Cache-Control", "no-store")

	list, err := h.svc.ListRegistrations(c.Request.Context(), c.Query("password"))
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			response.Unauthorized(c, "invalid credential")
			return
		}
		h.logger.Error("list registrations failed", zap.Error(err))
		response.Internal(c, "could not load registrations")
		return
	}
	if list == nil {
		list = []models.Registration{}
	}
	response.OK(c, list)
}

// ResendRequest is the body for POST /admin/registrations/:id/resend-ticket.
type ResendRequest struct {
	Password string `json:"password" binding:"required"`
}

// ResendTicket handles POST /admin/registrations/:id/resend-ticket: manual
// re-delivery for registrations whose ticket email failed.
func (h *Handler) ResendTicket(c *gin.Context) {
	var req ResendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "password is required")
		return
	}

	err := h.svc.ResendTicket(c.Request.Context(), c.Param("id"), req.Password)
	switch {
	case err == nil:
		response.OK(c, gin.H{"message": "ticket resent"})
	case errors.Is(err, ErrUnauthorized):
		response.Unauthorized(c, "invalid credential")
	case errors.Is(err, ErrNotFound):
		response.NotFound(c, "registration not found")
	case errors.Is(err, ErrNotificationFailed):
		h.logger.Error("ticket resend failed", zap.Error(err), zap.String("registration_id", c.Param("id")))
		response.ServiceUnavailable(c, "the ticket email could not be sent")
	default:
		h.logger.Error("resend ticket failed", zap.Error(err))
		response.Internal(c, "could not resend ticket")
	}
}
