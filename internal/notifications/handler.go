package notifications

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/emberfest/backend/internal/models"
	"github.com/emberfest/backend/pkg/response"
	"github.com/emberfest/backend/pkg/utils"
)

// Handler exposes the notification log to operators.
type Handler struct {
	repo              *Repository
	adminPassword     string
	adminPasswordHash string
	logger            *zap.Logger
}

// NewHandler creates a notification log handler guarded by the shared admin credential.
func NewHandler(repo *Repository, adminPassword, adminPasswordHash string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, adminPassword: adminPassword, adminPasswordHash: adminPasswordHash, logger: logger}
}

// List handles GET /admin/notifications?password=... Newest first, never cached.
func (h *Handler) List(c *gin.Context) {
	c.Header("Cache-Control", "no-store")

	if !utils.CheckCredential(c.Query("password"), h.adminPassword, h.adminPasswordHash) {
		response.Unauthorized(c, "invalid credential")
		return
	}
	list, err := h.repo.List(c.Request.Context())
	if err != nil {
		h.logger.Error("list notifications failed", zap.Error(err))
		response.Internal(c, "could not load notification log")
		return
	}
	if list == nil {
		list = []models.NotificationLog{}
	}
	response.OK(c, list)
}
