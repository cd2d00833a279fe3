package tracelens

import (
	"errors"
	"fmt"
)

// ErrorCode represents a category of error for metrics and logging.
type ErrorCode string

// Error codes for categorization.
const (
	ErrCodeConfig       ErrorCode = "CONFIG"        // Configuration errors
	ErrCodeValidation   ErrorCode = "VALIDATION"    // Input validation errors
	ErrCodeInvalidState ErrorCode = "INVALID_STATE" // Operations against a finalized trace
	ErrCodeUpstream     ErrorCode = "UPSTREAM"      // Completion provider failures
	ErrCodeAPI          ErrorCode = "API"           // Sink API response errors
	ErrCodeNetwork      ErrorCode = "NETWORK"       // Network/connection errors
	ErrCodeShutdown     ErrorCode = "SHUTDOWN"      // Shutdown-related errors
)

// CodedError is the common interface for typed errors in this package.
type CodedError interface {
	error

	// Code returns a machine-readable error code for categorization.
	Code() ErrorCode

	// IsRetryable returns true if the operation can be retried.
	IsRetryable() bool
}

// Sentinel errors.
var (
	ErrMissingPublicKey = errors.New("tracelens: public key is required")
	ErrMissingSecretKey = errors.New("tracelens: secret key is required")
	ErrMissingBaseURL   = errors.New("tracelens: base URL is required")
	ErrInvalidConfig    = errors.New("tracelens: invalid configuration")
	ErrClientClosed     = errors.New("tracelens: client is closed")
	ErrSinkUnavailable  = errors.New("tracelens: sink unavailable")
)

// IsRetryable returns true if the error represents a retryable condition:
// rate limiting (429), server errors (5xx), network failures, or an open
// circuit breaker (which may close soon).
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var coded CodedError
	if errors.As(err, &coded) {
		return coded.IsRetryable()
	}
	return errors.Is(err, ErrSinkUnavailable)
}

// ValidationError reports malformed input: a score value outside [0,1], a
// missing required field, an unknown template placeholder. Validation
// errors are rejected immediately and never retried.
type ValidationError struct {
	Field   string
	Message string
	Err     error // Underlying error for wrapping
}

// NewValidationError creates a new validation error for a field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("tracelens: validation error for field %q: %s", e.Field, e.Message)
}

// Unwrap returns the underlying error for error chain support.
func (e *ValidationError) Unwrap() error { return e.Err }

// Code implements CodedError.
func (e *ValidationError) Code() ErrorCode { return ErrCodeValidation }

// IsRetryable implements CodedError. Validation errors should be fixed,
// not retried.
func (e *ValidationError) IsRetryable() bool { return false }

var _ CodedError = (*ValidationError)(nil)

// InvalidStateError reports an operation against a trace that has already
// been finalized. The caller must start a new trace; the finalized one is
// append-only except for scores.
type InvalidStateError struct {
	TraceID string
	State   TraceState
	Op      string
}

// Error implements the error interface.
func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("tracelens: %s rejected: trace %s is %s", e.Op, e.TraceID, e.State)
}

// Code implements CodedError.
func (e *InvalidStateError) Code() ErrorCode { return ErrCodeInvalidState }

// IsRetryable implements CodedError.
func (e *InvalidStateError) IsRetryable() bool { return false }

var _ CodedError = (*InvalidStateError)(nil)

// UpstreamError reports a completion provider or sink that is unreachable
// or erroring. It is surfaced to the caller as a generic failure after the
// guarded observation records it as output; retry policy belongs to the
// caller, not to this package.
type UpstreamError struct {
	Provider string
	Message  string
	Err      error
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("tracelens: upstream %s failed: %s", e.Provider, e.Message)
	}
	return fmt.Sprintf("tracelens: upstream %s failed", e.Provider)
}

// Unwrap returns the underlying error for error chain support.
func (e *UpstreamError) Unwrap() error { return e.Err }

// Code implements CodedError.
func (e *UpstreamError) Code() ErrorCode { return ErrCodeUpstream }

// IsRetryable implements CodedError.
func (e *UpstreamError) IsRetryable() bool { return true }

var _ CodedError = (*UpstreamError)(nil)

// APIError represents an error response from the sink API. It supports
// error wrapping via Unwrap() and comparison via Is().
type APIError struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Err        error  `json:"-"`
}

// Sentinel APIError values for use with errors.Is(). These match on
// status code only.
var (
	ErrUnauthorized = &APIError{StatusCode: 401}
	ErrNotFound     = &APIError{StatusCode: 404}
	ErrRateLimited  = &APIError{StatusCode: 429}
)

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("tracelens: sink API error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("tracelens: sink API error (status %d)", e.StatusCode)
}

// Unwrap returns the underlying error for error chain support.
func (e *APIError) Unwrap() error { return e.Err }

// Is implements error comparison for errors.Is(), matching on status code.
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	if !ok {
		return false
	}
	return e.StatusCode == t.StatusCode
}

// IsRateLimited returns true for 429 responses.
func (e *APIError) IsRateLimited() bool { return e.StatusCode == 429 }

// IsServerError returns true for 5xx responses.
func (e *APIError) IsServerError() bool { return e.StatusCode >= 500 && e.StatusCode < 600 }

// IsRetryable implements CodedError.
func (e *APIError) IsRetryable() bool { return e.IsRateLimited() || e.IsServerError() }

// Code implements CodedError.
func (e *APIError) Code() ErrorCode { return ErrCodeAPI }

var _ CodedError = (*APIError)(nil)

// AsValidationError extracts a ValidationError from the error chain.
func AsValidationError(err error) (*ValidationError, bool) {
	var valErr *ValidationError
	if errors.As(err, &valErr) {
		return valErr, true
	}
	return nil, false
}

// AsInvalidStateError extracts an InvalidStateError from the error chain.
func AsInvalidStateError(err error) (*InvalidStateError, bool) {
	var stateErr *InvalidStateError
	if errors.As(err, &stateErr) {
		return stateErr, true
	}
	return nil, false
}

// AsUpstreamError extracts an UpstreamError from the error chain.
func AsUpstreamError(err error) (*UpstreamError, bool) {
	var upErr *UpstreamError
	if errors.As(err, &upErr) {
		return upErr, true
	}
	return nil, false
}

// AsAPIError extracts an APIError from the error chain.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
