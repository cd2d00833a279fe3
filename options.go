package tracelens

import (
	"net/http"
	"time"
)

// ConfigOption configures the client at construction time.
type ConfigOption func(*Config)

// WithBaseURL sets the sink endpoint.
func WithBaseURL(baseURL string) ConfigOption {
	return func(c *Config) { c.BaseURL = baseURL }
}

// WithEnvironment stamps an environment name onto every trace.
func WithEnvironment(env string) ConfigOption {
	return func(c *Config) { c.Environment = env }
}

// WithRelease stamps a release identifier onto every trace.
func WithRelease(release string) ConfigOption {
	return func(c *Config) { c.Release = release }
}

// WithTimeout sets the per-request timeout for sink calls.
func WithTimeout(d time.Duration) ConfigOption {
	return func(c *Config) { c.Timeout = d }
}

// WithFlushInterval sets the background flush interval.
func WithFlushInterval(d time.Duration) ConfigOption {
	return func(c *Config) { c.FlushInterval = d }
}

// WithFlushTimeout bounds a single blocking Flush call.
func WithFlushTimeout(d time.Duration) ConfigOption {
	return func(c *Config) { c.FlushTimeout = d }
}

// WithBatchSize sets the buffered-event count that triggers an early flush.
func WithBatchSize(n int) ConfigOption {
	return func(c *Config) { c.BatchSize = n }
}

// WithMaxRetries sets the transport retry budget.
func WithMaxRetries(n int) ConfigOption {
	return func(c *Config) { c.MaxRetries = n }
}

// WithRetryDelay sets the initial transport backoff delay.
func WithRetryDelay(d time.Duration) ConfigOption {
	return func(c *Config) { c.RetryDelay = d }
}

// WithShutdownTimeout bounds the final drain during Shutdown.
func WithShutdownTimeout(d time.Duration) ConfigOption {
	return func(c *Config) { c.ShutdownTimeout = d }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ConfigOption {
	return func(c *Config) { c.HTTPClient = hc }
}

// WithLogger sets the structured logger for SDK diagnostics.
func WithLogger(logger StructuredLogger) ConfigOption {
	return func(c *Config) { c.Logger = logger }
}

// WithMetrics sets the telemetry sink for SDK metrics.
func WithMetrics(m Metrics) ConfigOption {
	return func(c *Config) { c.Metrics = m }
}

// WithoutBreaker disables the transport circuit breaker. Intended for
// tests against local fakes.
func WithoutBreaker() ConfigOption {
	return func(c *Config) { c.DisableBreaker = true }
}

// TraceOption configures StartTrace.
type TraceOption func(*traceOptions)

type traceOptions struct {
	traceID   string
	name      string
	sessionID string
	userID    string
	tags      []string
	metadata  Metadata
	input     any
}

// WithTraceID binds the trace to an externally supplied identifier.
// Starting the same session again with the same identifier merges tags
// and metadata instead of overwriting.
func WithTraceID(id string) TraceOption {
	return func(o *traceOptions) { o.traceID = id }
}

// WithTraceName labels the trace.
func WithTraceName(name string) TraceOption {
	return func(o *traceOptions) { o.name = name }
}

// WithSessionID groups this trace with others sharing the same session
// identifier, e.g. the turns of one conversation.
func WithSessionID(id string) TraceOption {
	return func(o *traceOptions) { o.sessionID = id }
}

// WithUserID attributes the trace to a user.
func WithUserID(id string) TraceOption {
	return func(o *traceOptions) { o.userID = id }
}

// WithTags adds free-form classification tags. Tags merge as a set across
// updates; insertion order is irrelevant.
func WithTags(tags ...string) TraceOption {
	return func(o *traceOptions) { o.tags = append(o.tags, tags...) }
}

// WithTraceMetadata attaches caller-supplied metadata. Metadata merges
// shallowly across updates rather than overwriting.
func WithTraceMetadata(md Metadata) TraceOption {
	return func(o *traceOptions) { o.metadata = md }
}

// WithTraceInput records the trace-level input payload.
func WithTraceInput(input any) TraceOption {
	return func(o *traceOptions) { o.input = input }
}

// ObservationOption configures StartObservation.
type ObservationOption func(*observationOptions)

type observationOptions struct {
	input           any
	metadata        Metadata
	level           ObservationLevel
	model           string
	modelParameters Metadata
}

// WithInput records the observation input payload.
func WithInput(input any) ObservationOption {
	return func(o *observationOptions) { o.input = input }
}

// WithObservationMetadata attaches metadata to the observation.
func WithObservationMetadata(md Metadata) ObservationOption {
	return func(o *observationOptions) { o.metadata = md }
}

// WithLevel sets the observation severity level.
func WithLevel(level ObservationLevel) ObservationOption {
	return func(o *observationOptions) { o.level = level }
}

// WithModel sets the model name. Only meaningful for generations.
func WithModel(model string) ObservationOption {
	return func(o *observationOptions) { o.model = model }
}

// WithModelParameters sets generation parameters such as temperature and
// max_tokens. Only meaningful for generations.
func WithModelParameters(params Metadata) ObservationOption {
	return func(o *observationOptions) { o.modelParameters = params }
}

// EndOption configures ObservationHandle.End and TraceSession.End.
type EndOption func(*endOptions)

type endOptions struct {
	output   any
	usage    *Usage
	err      error
	endTime  time.Time
	hasError bool
}

// WithOutput records the output payload on completion.
func WithOutput(output any) EndOption {
	return func(o *endOptions) { o.output = output }
}

// WithUsage records token usage. Only meaningful for generations. When
// TotalTokens is zero it is computed as InputTokens + OutputTokens.
func WithUsage(u Usage) EndOption {
	return func(o *endOptions) { o.usage = &u }
}

// WithError marks the observation as errored and records the error text
// as its status message. The output, if not set separately, becomes the
// error text.
func WithError(err error) EndOption {
	return func(o *endOptions) {
		o.err = err
		o.hasError = err != nil
	}
}

// WithEndTime overrides the end timestamp. Defaults to time.Now().
func WithEndTime(t time.Time) EndOption {
	return func(o *endOptions) { o.endTime = t }
}
