package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Body is the JSON envelope every endpoint responds with. Error is set only
// on failures and holds a message safe to show to the caller.
type Body struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// OK sends a 200 with data.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Body{Success: true, Data: data})
}

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, Body{Success: false, Error: msg})
}

// BadRequest sends 400.
func BadRequest(c *gin.Context, msg string) { fail(c, http.StatusBadRequest, msg) }

// Unauthorized sends 401.
func Unauthorized(c *gin.Context, msg string) { fail(c, http.StatusUnauthorized, msg) }

// NotFound sends 404.
func NotFound(c *gin.Context, msg string) { fail(c, http.StatusNotFound, msg) }

// Conflict sends 409.
func Conflict(c *gin.Context, msg string) { fail(c, http.StatusConflict, msg) }

// ServiceUnavailable sends 503. Used when the registration itself succeeded
// but a downstream provider (email) did not.
func ServiceUnavailable(c *gin.Context, msg string) { fail(c, http.StatusServiceUnavailable, msg) }

// Internal sends 500.
func Internal(c *gin.Context, msg string) { fail(c, http.StatusInternalServerError, msg) }
