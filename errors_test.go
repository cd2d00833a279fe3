package tracelens

import (
	"errors"
	"fmt"
	"testing"
)

func TestValidationErrorCode(t *testing.T) {
	err := NewValidationError("value", "must be between 0.0 and 1.0")
	if err.Code() != ErrCodeValidation {
		t.Errorf("Code = %v, want %v", err.Code(), ErrCodeValidation)
	}
	if err.IsRetryable() {
		t.Error("validation errors must not be retryable")
	}
}

func TestInvalidStateErrorMessage(t *testing.T) {
	err := &InvalidStateError{TraceID: "trace-1", State: TraceStateFinalized, Op: "StartObservation"}
	want := "tracelens: StartObservation rejected: trace trace-1 is finalized"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if err.Code() != ErrCodeInvalidState {
		t.Errorf("Code = %v", err.Code())
	}
}

func TestAPIErrorSentinels(t *testing.T) {
	err := &APIError{StatusCode: 401, Message: "bad credentials"}
	if !errors.Is(err, ErrUnauthorized) {
		t.Error("401 should match ErrUnauthorized")
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("401 should not match ErrNotFound")
	}

	wrapped := fmt.Errorf("send failed: %w", &APIError{StatusCode: 429})
	if !errors.Is(wrapped, ErrRateLimited) {
		t.Error("wrapped 429 should match ErrRateLimited")
	}
}

func TestAPIErrorRetryability(t *testing.T) {
	tests := []struct {
		status    int
		retryable bool
	}{
		{400, false},
		{401, false},
		{404, false},
		{429, true},
		{500, true},
		{503, true},
	}
	for _, tt := range tests {
		err := &APIError{StatusCode: tt.status}
		if err.IsRetryable() != tt.retryable {
			t.Errorf("status %d: IsRetryable = %v, want %v", tt.status, err.IsRetryable(), tt.retryable)
		}
	}
}

func TestIsRetryable(t *testing.T) {
	if IsRetryable(nil) {
		t.Error("nil is not retryable")
	}
	if !IsRetryable(&UpstreamError{Provider: "openai"}) {
		t.Error("upstream errors are retryable")
	}
	if IsRetryable(NewValidationError("f", "m")) {
		t.Error("validation errors are not retryable")
	}
	if !IsRetryable(fmt.Errorf("wrapped: %w", ErrSinkUnavailable)) {
		t.Error("sink-unavailable is retryable")
	}
}

func TestAsExtractors(t *testing.T) {
	verr := NewValidationError("name", "is required")
	wrapped := fmt.Errorf("op failed: %w", verr)
	if got, ok := AsValidationError(wrapped); !ok || got != verr {
		t.Errorf("AsValidationError = %v, %v", got, ok)
	}
	if _, ok := AsValidationError(errors.New("plain")); ok {
		t.Error("AsValidationError matched a plain error")
	}

	aerr := &APIError{StatusCode: 500}
	if got, ok := AsAPIError(fmt.Errorf("x: %w", aerr)); !ok || got != aerr {
		t.Errorf("AsAPIError = %v, %v", got, ok)
	}
}
