package tracelens

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Default configuration values.
const (
	// DefaultBaseURL is the default sink endpoint.
	DefaultBaseURL = "https://cloud.tracelens.dev"

	// DefaultTimeout is the default per-request timeout for sink calls.
	DefaultTimeout = 10 * time.Second

	// DefaultFlushTimeout bounds a blocking Flush call.
	DefaultFlushTimeout = 10 * time.Second

	// DefaultFlushInterval is the interval of the background flush loop.
	DefaultFlushInterval = 5 * time.Second

	// DefaultBatchSize is the number of buffered events that triggers an
	// early flush.
	DefaultBatchSize = 100

	// MaxBatchSize caps the batch size; the sink rejects larger batches.
	MaxBatchSize = 1000

	// DefaultMaxRetries is the default number of retry attempts for
	// retryable sink responses.
	DefaultMaxRetries = 3

	// DefaultRetryDelay is the initial backoff delay between retries.
	DefaultRetryDelay = 500 * time.Millisecond

	// DefaultShutdownTimeout bounds the final drain during Shutdown. Must
	// be at least DefaultTimeout so an in-flight send can complete.
	DefaultShutdownTimeout = 30 * time.Second
)

// Config configures the sink client. The zero value is not usable; keys
// are required. All fields are read once at client construction and
// treated as immutable for the process lifetime.
type Config struct {
	// PublicKey and SecretKey form the basic-auth credential pair for the
	// sink's ingestion API.
	PublicKey string `envconfig:"PUBLIC_KEY"`
	SecretKey string `envconfig:"SECRET_KEY"`

	// BaseURL is the sink endpoint, without the /api/public suffix.
	BaseURL string `envconfig:"BASE_URL"`

	// Environment and Release are stamped onto every trace.
	Environment string `envconfig:"ENVIRONMENT"`
	Release     string `envconfig:"RELEASE"`

	// Timeout bounds each HTTP request to the sink.
	Timeout time.Duration `envconfig:"TIMEOUT"`

	// FlushInterval is how often the background loop flushes buffered
	// events. FlushTimeout bounds a single blocking Flush.
	FlushInterval time.Duration `envconfig:"FLUSH_INTERVAL"`
	FlushTimeout  time.Duration `envconfig:"FLUSH_TIMEOUT"`

	// BatchSize is the buffered-event count that triggers an early flush.
	BatchSize int `envconfig:"BATCH_SIZE"`

	// MaxRetries and RetryDelay control transport-level retries.
	MaxRetries int           `envconfig:"MAX_RETRIES"`
	RetryDelay time.Duration `envconfig:"RETRY_DELAY"`

	// ShutdownTimeout bounds the final drain during Shutdown.
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT"`

	// DisableBreaker turns off the transport circuit breaker. Intended
	// for tests.
	DisableBreaker bool `envconfig:"DISABLE_BREAKER"`

	// HTTPClient overrides the underlying HTTP client.
	HTTPClient *http.Client `ignored:"true"`

	// Logger receives SDK diagnostics. Defaults to a no-op logger.
	Logger StructuredLogger `ignored:"true"`

	// Metrics receives SDK telemetry. Optional.
	Metrics Metrics `ignored:"true"`
}

// ConfigFromEnv loads configuration from TRACELENS_-prefixed environment
// variables (TRACELENS_PUBLIC_KEY, TRACELENS_SECRET_KEY,
// TRACELENS_BASE_URL, ...).
func ConfigFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("tracelens", &cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return &cfg, nil
}

// applyDefaults fills in zero-valued fields.
func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = DefaultFlushInterval
	}
	if c.FlushTimeout <= 0 {
		c.FlushTimeout = DefaultFlushTimeout
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.BatchSize > MaxBatchSize {
		c.BatchSize = MaxBatchSize
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	if c.Logger == nil {
		c.Logger = nopLogger{}
	}
}

// validate checks the configuration for usability.
func (c *Config) validate() error {
	if c.PublicKey == "" {
		return ErrMissingPublicKey
	}
	if c.SecretKey == "" {
		return ErrMissingSecretKey
	}
	if c.BaseURL == "" {
		return ErrMissingBaseURL
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: base URL %q is not an absolute URL", ErrInvalidConfig, c.BaseURL)
	}
	if c.ShutdownTimeout < c.Timeout {
		return fmt.Errorf("%w: shutdown timeout %v is shorter than request timeout %v",
			ErrInvalidConfig, c.ShutdownTimeout, c.Timeout)
	}
	return nil
}
