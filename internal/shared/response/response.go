// Package response writes the JSON envelopes returned by the HTTP API.
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/projecthub/server/internal/shared/errors"
)

// Envelope is the body of every API response.
type Envelope struct {
	Success bool                   `json:"success"`
	Count   *int                   `json:"count,omitempty"`
	Data    any                    `json:"data,omitempty"`
	Error   *apperrors.ErrorDetail `json:"error,omitempty"`
}

// OK sends data with the given status.
func OK(c *gin.Context, status int, data any) {
	c.JSON(status, Envelope{Success: true, Data: data})
}

// List sends a slice together with its length.
func List[T any](c *gin.Context, items []T) {
	if items == nil {
		items = []T{}
	}
	n := len(items)
	c.JSON(http.StatusOK, Envelope{Success: true, Count: &n, Data: items})
}

// Error maps err onto its status code and error body. Unknown errors become 500s.
func Error(c *gin.Context, err error) {
	appErr := apperrors.ToAppError(err)
	if appErr.StatusCode >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	abort(c, appErr)
}

// BadRequest sends a 400 for a request that failed binding.
func BadRequest(c *gin.Context, message string) {
	abort(c, &apperrors.AppError{
		Code:       "INVALID_REQUEST",
		Message:    message,
		StatusCode: http.StatusBadRequest,
	})
}

func abort(c *gin.Context, appErr *apperrors.AppError) {
	detail := appErr.ToResponse().Error
	c.AbortWithStatusJSON(appErr.StatusCode, Envelope{Success: false, Error: &detail})
}
