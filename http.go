package tracelens

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
)

// ingestionPath is the sink's batch ingestion endpoint, relative to the
// configured base URL.
const ingestionPath = "/api/public/ingestion"

// sinkTransport handles HTTP requests to the sink. Requests are retried
// with exponential backoff for retryable failures and guarded by a
// circuit breaker so a sink outage stops costing latency quickly.
type sinkTransport struct {
	client     *http.Client
	baseURL    string
	authHeader string
	maxRetries int
	retryDelay time.Duration
	breaker    *gobreaker.CircuitBreaker
	logger     StructuredLogger
}

func newSinkTransport(cfg *Config) *sinkTransport {
	auth := base64.StdEncoding.EncodeToString([]byte(cfg.PublicKey + ":" + cfg.SecretKey))
	t := &sinkTransport{
		client:     cfg.HTTPClient,
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		authHeader: "Basic " + auth,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		logger:     cfg.Logger,
	}
	if !cfg.DisableBreaker {
		t.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "tracelens-sink",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			IsSuccessful: func(err error) bool {
				if err == nil {
					return true
				}
				// Client-side rejections (4xx other than 429) say nothing
				// about sink availability.
				var apiErr *APIError
				return errors.As(err, &apiErr) && !apiErr.IsRetryable()
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				cfg.Logger.Warn("sink circuit breaker state change",
					"from", from.String(), "to", to.String())
			},
		})
	}
	return t
}

// post sends a JSON POST to the sink with retries and breaker protection.
func (t *sinkTransport) post(ctx context.Context, path string, body, result any) error {
	var lastErr error

	for attempt := 0; attempt <= t.maxRetries; attempt++ {
		if attempt > 0 {
			delay := t.retryDelay * time.Duration(1<<uint(attempt-1))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		err := t.postOnce(ctx, path, body, result)
		if err == nil {
			return nil
		}
		lastErr = err

		if errors.Is(err, ErrSinkUnavailable) {
			// Breaker is open; retrying immediately cannot help.
			return err
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) && !apiErr.IsRetryable() {
			return err
		}
		// Network errors and retryable statuses fall through to retry.
	}

	return lastErr
}

func (t *sinkTransport) postOnce(ctx context.Context, path string, body, result any) error {
	if t.breaker == nil {
		return t.roundTrip(ctx, path, body, result)
	}
	_, err := t.breaker.Execute(func() (any, error) {
		return nil, t.roundTrip(ctx, path, body, result)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %w", ErrSinkUnavailable, err)
	}
	return err
}

func (t *sinkTransport) roundTrip(ctx context.Context, path string, body, result any) error {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("tracelens: failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+path, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("tracelens: failed to create request: %w", err)
	}
	req.Header.Set("Authorization", t.authHeader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "tracelens-go/1.0")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("tracelens: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("tracelens: failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if len(respBody) > 0 {
			json.Unmarshal(respBody, apiErr)
		}
		return apiErr
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("tracelens: failed to unmarshal response: %w", err)
		}
	}
	return nil
}
