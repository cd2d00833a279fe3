package tracelens

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func testTransport(t *testing.T, serverURL string, mutate func(*Config)) *sinkTransport {
	t.Helper()
	cfg := &Config{
		PublicKey:  "pk-test",
		SecretKey:  "sk-test",
		BaseURL:    serverURL,
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
	}
	cfg.applyDefaults()
	if mutate != nil {
		mutate(cfg)
	}
	return newSinkTransport(cfg)
}

func TestTransportSetsAuthHeaders(t *testing.T) {
	var gotAuth, gotContentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	tr := testTransport(t, server.URL, func(c *Config) { c.DisableBreaker = true })
	if err := tr.post(context.Background(), "/api/public/ingestion", map[string]any{}, nil); err != nil {
		t.Fatalf("post failed: %v", err)
	}

	// base64("pk-test:sk-test")
	if gotAuth != "Basic cGstdGVzdDpzay10ZXN0" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotContentType != "application/json" {
		t.Errorf("Content-Type = %q", gotContentType)
	}
}

func TestTransportRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, `{"message":"overloaded"}`, http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	tr := testTransport(t, server.URL, func(c *Config) { c.DisableBreaker = true })
	if err := tr.post(context.Background(), "/", nil, nil); err != nil {
		t.Fatalf("post failed after retries: %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
}

func TestTransportDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"message":"bad request"}`, http.StatusBadRequest)
	}))
	defer server.Close()

	tr := testTransport(t, server.URL, func(c *Config) { c.DisableBreaker = true })
	err := tr.post(context.Background(), "/", nil, nil)

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != 400 {
		t.Fatalf("err = %v, want 400 APIError", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1 (4xx must not retry)", got)
	}
}

func TestTransportBreakerOpens(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"down"}`, http.StatusInternalServerError)
	}))
	defer server.Close()

	tr := testTransport(t, server.URL, func(c *Config) {
		c.MaxRetries = 0
	})

	// Trip the breaker with consecutive failures.
	for i := 0; i < 6; i++ {
		tr.post(context.Background(), "/", nil, nil)
	}

	err := tr.post(context.Background(), "/", nil, nil)
	if !errors.Is(err, ErrSinkUnavailable) {
		t.Errorf("err = %v, want ErrSinkUnavailable once breaker is open", err)
	}
}

func TestTransportContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"overloaded"}`, http.StatusServiceUnavailable)
	}))
	defer server.Close()

	tr := testTransport(t, server.URL, func(c *Config) {
		c.DisableBreaker = true
		c.RetryDelay = time.Hour
		c.MaxRetries = 3
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := tr.post(ctx, "/", nil, nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want context.DeadlineExceeded", err)
	}
}
