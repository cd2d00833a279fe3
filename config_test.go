package tracelens

import (
	"errors"
	"testing"
	"time"
)

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{PublicKey: "pk", SecretKey: "sk"}
	cfg.applyDefaults()

	if cfg.BaseURL != DefaultBaseURL {
		t.Errorf("BaseURL = %q, want %q", cfg.BaseURL, DefaultBaseURL)
	}
	if cfg.BatchSize != DefaultBatchSize {
		t.Errorf("BatchSize = %d, want %d", cfg.BatchSize, DefaultBatchSize)
	}
	if cfg.FlushInterval != DefaultFlushInterval {
		t.Errorf("FlushInterval = %v, want %v", cfg.FlushInterval, DefaultFlushInterval)
	}
	if cfg.MaxRetries != DefaultMaxRetries {
		t.Errorf("MaxRetries = %d, want %d", cfg.MaxRetries, DefaultMaxRetries)
	}
	if cfg.HTTPClient == nil {
		t.Error("HTTPClient not defaulted")
	}
	if cfg.Logger == nil {
		t.Error("Logger not defaulted")
	}
}

func TestApplyDefaultsCapsBatchSize(t *testing.T) {
	cfg := &Config{PublicKey: "pk", SecretKey: "sk", BatchSize: MaxBatchSize * 2}
	cfg.applyDefaults()
	if cfg.BatchSize != MaxBatchSize {
		t.Errorf("BatchSize = %d, want cap %d", cfg.BatchSize, MaxBatchSize)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"missing public key", func(c *Config) { c.PublicKey = "" }, ErrMissingPublicKey},
		{"missing secret key", func(c *Config) { c.SecretKey = "" }, ErrMissingSecretKey},
		{"relative base URL", func(c *Config) { c.BaseURL = "not-a-url" }, ErrInvalidConfig},
		{"shutdown shorter than timeout", func(c *Config) {
			c.Timeout = 10 * time.Second
			c.ShutdownTimeout = time.Second
		}, ErrInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{PublicKey: "pk", SecretKey: "sk"}
			cfg.applyDefaults()
			tt.mutate(cfg)
			if err := cfg.validate(); !errors.Is(err, tt.wantErr) {
				t.Errorf("validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("TRACELENS_PUBLIC_KEY", "pk-env")
	t.Setenv("TRACELENS_SECRET_KEY", "sk-env")
	t.Setenv("TRACELENS_BASE_URL", "https://sink.example.com")
	t.Setenv("TRACELENS_BATCH_SIZE", "42")
	t.Setenv("TRACELENS_FLUSH_INTERVAL", "2s")

	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv failed: %v", err)
	}
	if cfg.PublicKey != "pk-env" || cfg.SecretKey != "sk-env" {
		t.Errorf("keys = %q/%q", cfg.PublicKey, cfg.SecretKey)
	}
	if cfg.BaseURL != "https://sink.example.com" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.BatchSize != 42 {
		t.Errorf("BatchSize = %d, want 42", cfg.BatchSize)
	}
	if cfg.FlushInterval != 2*time.Second {
		t.Errorf("FlushInterval = %v, want 2s", cfg.FlushInterval)
	}
}
