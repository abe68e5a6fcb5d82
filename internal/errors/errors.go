// Package errors provides structured application errors on top of
// errbuilder, plus the gin middleware that turns them into JSON responses.
package errors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/gin-gonic/gin"
)

// ErrorCategory drives both the HTTP status and the log level.
type ErrorCategory string

const (
	CategoryValidation    ErrorCategory = "validation"
	CategoryTimeout       ErrorCategory = "timeout"
	CategoryRateLimit     ErrorCategory = "rate_limit"
	CategoryInternal      ErrorCategory = "internal"
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryNotFound      ErrorCategory = "not_found"
)

// AppError wraps an errbuilder error with transport-level context.
type AppError struct {
	*errbuilder.ErrBuilder
	Category   ErrorCategory `json:"category"`
	HTTPStatus int           `json:"http_status"`
	Timestamp  time.Time     `json:"timestamp"`
}

func (e *AppError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Category, e.ErrBuilder.Msg)
}

func (e *AppError) Unwrap() error {
	return e.ErrBuilder.Unwrap()
}

// MarshalJSON assembles the response payload explicitly. The embedded
// builder's marshaler requires a non-nil Cause, but validation and
// not-found errors are built without one, and the promoted method would
// also hide Category, HTTPStatus and Timestamp.
func (e *AppError) MarshalJSON() ([]byte, error) {
	payload := struct {
		Category   ErrorCategory     `json:"category"`
		Code       string            `json:"code"`
		Message    string            `json:"message"`
		Details    map[string]string `json:"details,omitempty"`
		Cause      string            `json:"cause,omitempty"`
		HTTPStatus int               `json:"http_status"`
		Timestamp  time.Time         `json:"timestamp"`
	}{
		Category:   e.Category,
		Code:       e.ErrBuilder.ErrCode().String(),
		Message:    e.ErrBuilder.Msg,
		HTTPStatus: e.HTTPStatus,
		Timestamp:  e.Timestamp,
	}

	if cause := e.ErrBuilder.Unwrap(); cause != nil {
		payload.Cause = cause.Error()
	}
	if errs := e.ErrBuilder.Details.Errors; len(errs) > 0 {
		payload.Details = make(map[string]string, len(errs))
		for key := range errs {
			payload.Details[key] = errs.Get(key)
		}
	}

	return json.Marshal(payload)
}

func newAppError(builder *errbuilder.ErrBuilder, category ErrorCategory, status int) *AppError {
	return &AppError{
		ErrBuilder: builder,
		Category:   category,
		HTTPStatus: status,
		Timestamp:  time.Now(),
	}
}

// NewValidationError reports a malformed or rejected request payload.
func NewValidationError(message string, details ...string) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(message)

	if len(details) > 0 {
		errorMap := errbuilder.ErrorMap{}
		for i, d := range details {
			errorMap.Set(fmt.Sprintf("detail_%d", i), errors.New(d))
		}
		builder = builder.WithDetails(errbuilder.NewErrDetails(errorMap))
	}

	return newAppError(builder, CategoryValidation, http.StatusBadRequest)
}

// NewTimeoutError reports an analysis run that exceeded its deadline.
func NewTimeoutError(message string, cause error) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeDeadlineExceeded).
		WithMsg(message)
	if cause != nil {
		builder = builder.WithCause(cause)
	}
	return newAppError(builder, CategoryTimeout, http.StatusGatewayTimeout)
}

// NewRateLimitError reports a throttled client.
func NewRateLimitError(retryAfter string) *AppError {
	errorMap := errbuilder.ErrorMap{}
	errorMap.Set("retry_after", errors.New(retryAfter))

	builder := errbuilder.New().
		WithCode(errbuilder.CodeResourceExhausted).
		WithMsg("Rate limit exceeded").
		WithDetails(errbuilder.NewErrDetails(errorMap))

	return newAppError(builder, CategoryRateLimit, http.StatusTooManyRequests)
}

// NewInternalError reports an unexpected server-side failure.
func NewInternalError(message string, cause error) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeInternal).
		WithMsg(message)
	if cause != nil {
		builder = builder.WithCause(cause)
	}
	return newAppError(builder, CategoryInternal, http.StatusInternalServerError)
}

// NewConfigurationError reports invalid thresholds or engine settings.
func NewConfigurationError(message string, cause error) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeFailedPrecondition).
		WithMsg(message)
	if cause != nil {
		builder = builder.WithCause(cause)
	}
	return newAppError(builder, CategoryConfiguration, http.StatusInternalServerError)
}

// NewNotFoundError reports a missing resource such as an unknown run id.
func NewNotFoundError(message string) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeNotFound).
		WithMsg(message)
	return newAppError(builder, CategoryNotFound, http.StatusNotFound)
}

// ToAppError coerces any error into an AppError so the transport layer has
// a single response shape.
func ToAppError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	if ebErr, ok := err.(*errbuilder.ErrBuilder); ok {
		return newAppError(ebErr, CategoryInternal, http.StatusInternalServerError)
	}

	if errors.Is(err, context.Canceled) {
		return NewTimeoutError("Request cancelled", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewTimeoutError("Request deadline exceeded", err)
	}

	return NewInternalError("An unexpected error occurred", err)
}

// ErrorHandler converts errors attached to the gin context into structured
// JSON responses.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		appErr := ToAppError(c.Errors.Last().Err)
		LogError(c, appErr)
		c.JSON(appErr.HTTPStatus, appErr)
	}
}

// RecoveryHandler turns panics into internal-error responses instead of
// dropped connections.
func RecoveryHandler() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		appErr := NewInternalError("Panic recovered", fmt.Errorf("%v", recovered))
		LogError(c, appErr)
		c.AbortWithStatusJSON(appErr.HTTPStatus, appErr)
	})
}

// LogError logs an error at a level matching its category. Client mistakes
// are warnings; server faults are errors.
func LogError(c *gin.Context, err *AppError) {
	logEntry := slog.With(
		"error_category", err.Category,
		"error_code", err.ErrBuilder.ErrCode(),
		"http_status", err.HTTPStatus,
		"ip", c.ClientIP(),
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
	)

	msg := err.ErrBuilder.Msg
	cause := err.ErrBuilder.Unwrap()

	switch err.Category {
	case CategoryValidation, CategoryRateLimit, CategoryNotFound:
		logEntry.Warn(msg)
	case CategoryTimeout:
		logEntry.Info(msg, "cause", cause)
	default:
		logEntry.Error(msg, "cause", cause)
	}
}

// WrapError adds formatted context while keeping the original error in the
// chain.
func WrapError(err error, message string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(message, args...), err)
}

// SafeClose closes a resource and logs instead of propagating the error.
// Intended for defers on shutdown paths.
func SafeClose(closer interface{ Close() error }, resourceName string) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		slog.Warn("Failed to close resource", "resource", resourceName, "error", err)
	}
}
