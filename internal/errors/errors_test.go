package errors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructorsSetCategoryAndStatus(t *testing.T) {
	cases := []struct {
		name     string
		err      *AppError
		category ErrorCategory
		status   int
	}{
		{"validation", NewValidationError("bad payload"), CategoryValidation, http.StatusBadRequest},
		{"timeout", NewTimeoutError("too slow", nil), CategoryTimeout, http.StatusGatewayTimeout},
		{"rate limit", NewRateLimitError("60"), CategoryRateLimit, http.StatusTooManyRequests},
		{"internal", NewInternalError("boom", nil), CategoryInternal, http.StatusInternalServerError},
		{"configuration", NewConfigurationError("bad thresholds", nil), CategoryConfiguration, http.StatusInternalServerError},
		{"not found", NewNotFoundError("no such run"), CategoryNotFound, http.StatusNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.category, tc.err.Category)
			assert.Equal(t, tc.status, tc.err.HTTPStatus)
			assert.False(t, tc.err.Timestamp.IsZero())
		})
	}
}

func TestMarshalJSONWithoutCause(t *testing.T) {
	// Validation and not-found errors carry no Cause; marshaling must not
	// reach the embedded builder's Cause dereference.
	cases := []struct {
		name string
		err  *AppError
		code string
	}{
		{"validation", NewValidationError("bad payload", "records missing"), "invalid_argument"},
		{"not found", NewNotFoundError("no such run"), "not_found"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := json.Marshal(tc.err)
			require.NoError(t, err)

			var payload map[string]interface{}
			require.NoError(t, json.Unmarshal(data, &payload))
			assert.Equal(t, string(tc.err.Category), payload["category"])
			assert.Equal(t, tc.code, payload["code"])
			assert.Equal(t, tc.err.ErrBuilder.Msg, payload["message"])
			assert.Equal(t, float64(tc.err.HTTPStatus), payload["http_status"])
			assert.NotContains(t, payload, "cause")
		})
	}
}

func TestMarshalJSONIncludesCauseAndDetails(t *testing.T) {
	appErr := NewInternalError("boom", fmt.Errorf("disk on fire"))

	data, err := json.Marshal(appErr)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"cause":"disk on fire"`)

	withDetails := NewValidationError("bad payload", "first", "second")
	data, err = json.Marshal(withDetails)
	require.NoError(t, err)

	var payload struct {
		Details map[string]string `json:"details"`
	}
	require.NoError(t, json.Unmarshal(data, &payload))
	assert.Equal(t, "first", payload.Details["detail_0"])
	assert.Equal(t, "second", payload.Details["detail_1"])
}

func TestErrorHandlerWritesStatusAndCategory(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(RecoveryHandler())
	router.Use(ErrorHandler())
	router.GET("/missing", func(c *gin.Context) {
		c.Error(NewNotFoundError("no such run"))
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `"category":"not_found"`)
	assert.Contains(t, w.Body.String(), "no such run")
	assert.NotContains(t, w.Body.String(), "Panic recovered")
}

func TestToAppError(t *testing.T) {
	t.Run("nil passes through", func(t *testing.T) {
		assert.Nil(t, ToAppError(nil))
	})

	t.Run("existing AppError is returned unchanged", func(t *testing.T) {
		orig := NewValidationError("bad")
		assert.Same(t, orig, ToAppError(orig))
	})

	t.Run("context cancellation maps to timeout", func(t *testing.T) {
		appErr := ToAppError(context.Canceled)
		assert.Equal(t, CategoryTimeout, appErr.Category)
	})

	t.Run("deadline exceeded maps to timeout", func(t *testing.T) {
		appErr := ToAppError(context.DeadlineExceeded)
		assert.Equal(t, CategoryTimeout, appErr.Category)
	})

	t.Run("unknown errors default to internal", func(t *testing.T) {
		appErr := ToAppError(fmt.Errorf("mystery"))
		assert.Equal(t, CategoryInternal, appErr.Category)
		assert.Equal(t, http.StatusInternalServerError, appErr.HTTPStatus)
	})
}

func TestWrapError(t *testing.T) {
	assert.Nil(t, WrapError(nil, "ignored"))

	base := fmt.Errorf("root cause")
	wrapped := WrapError(base, "loading run %d", 7)
	require.Error(t, wrapped)
	assert.ErrorIs(t, wrapped, base)
	assert.Contains(t, wrapped.Error(), "loading run 7")
}
