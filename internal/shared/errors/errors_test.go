package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	t.Run("without wrapped error", func(t *testing.T) {
		err := &AppError{Message: "boom"}
		assert.Equal(t, "boom", err.Error())
	})

	t.Run("with wrapped error", func(t *testing.T) {
		err := Internal("boom", errors.New("cause"))
		assert.Equal(t, "boom: cause", err.Error())
	})
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		code     string
		status   int
		sentinel error
	}{
		{"not found", NotFound("project"), "NOT_FOUND", http.StatusNotFound, ErrNotFound},
		{"unauthorized", Unauthorized(""), "UNAUTHORIZED", http.StatusUnauthorized, ErrUnauthorized},
		{"forbidden", Forbidden(""), "FORBIDDEN", http.StatusForbidden, ErrForbidden},
		{"validation", Validation("bad"), "VALIDATION_FAILED", http.StatusUnprocessableEntity, ErrValidation},
		{"conflict", Conflict("race"), "CONFLICT", http.StatusConflict, ErrConflict},
		{"transport", TransportUnavailable("s1"), "TRANSPORT_UNAVAILABLE", http.StatusServiceUnavailable, ErrTransportUnavailable},
		{"rate limited", RateLimited(""), "RATE_LIMITED", http.StatusTooManyRequests, ErrRateLimited},
		{"store unavailable", StoreUnavailable(errors.New("circuit open")), "STORE_UNAVAILABLE", http.StatusServiceUnavailable, ErrStoreUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.status, tt.err.StatusCode)
			assert.True(t, errors.Is(tt.err, tt.sentinel))
		})
	}
}

func TestNotFound_Message(t *testing.T) {
	assert.Equal(t, "task not found", NotFound("task").Message)
}

func TestGetStatusCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"app error", Forbidden("no"), http.StatusForbidden},
		{"wrapped sentinel", fmt.Errorf("load: %w", ErrNotFound), http.StatusNotFound},
		{"validation sentinel", ErrValidation, http.StatusUnprocessableEntity},
		{"conflict sentinel", ErrConflict, http.StatusConflict},
		{"unknown", errors.New("x"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetStatusCode(tt.err))
		})
	}
}

func TestToAppError(t *testing.T) {
	t.Run("keeps app errors", func(t *testing.T) {
		orig := Conflict("x")
		assert.Same(t, orig, ToAppError(orig))
	})

	t.Run("maps wrapped sentinels", func(t *testing.T) {
		appErr := ToAppError(fmt.Errorf("update: %w", ErrConflict))
		assert.Equal(t, "CONFLICT", appErr.Code)
		assert.Equal(t, http.StatusConflict, appErr.StatusCode)
	})

	t.Run("falls back to internal", func(t *testing.T) {
		appErr := ToAppError(errors.New("disk on fire"))
		assert.Equal(t, "INTERNAL_ERROR", appErr.Code)
	})
}

func TestRetryOnConflict(t *testing.T) {
	t.Run("success runs once", func(t *testing.T) {
		calls := 0
		err := RetryOnConflict(func() error {
			calls++
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("non-conflict error is not retried", func(t *testing.T) {
		calls := 0
		err := RetryOnConflict(func() error {
			calls++
			return ErrForbidden
		})
		assert.ErrorIs(t, err, ErrForbidden)
		assert.Equal(t, 1, calls)
	})

	t.Run("conflict is retried once and succeeds", func(t *testing.T) {
		calls := 0
		err := RetryOnConflict(func() error {
			calls++
			if calls == 1 {
				return Conflict("lost race")
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 2, calls)
	})

	t.Run("second conflict surfaces", func(t *testing.T) {
		calls := 0
		err := RetryOnConflict(func() error {
			calls++
			return Conflict("lost race")
		})
		assert.ErrorIs(t, err, ErrConflict)
		assert.Equal(t, 2, calls)
	})
}
