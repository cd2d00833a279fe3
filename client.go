package tracelens

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Client is the buffered sink client shared by all TraceSessions in a
// process. It accumulates trace, observation, and score events and sends
// them in batches: on a timer, when the buffer reaches the configured
// batch size, on an explicit Flush, and once more during Shutdown.
//
// Client is safe for concurrent use. It is the only shared mutable
// resource between sessions; sessions themselves take no locks.
type Client struct {
	config    *Config
	transport *sinkTransport

	mu      sync.Mutex
	pending []ingestionEvent
	closed  bool

	flushCh chan struct{}
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// New creates a new sink client with the given credential pair.
func New(publicKey, secretKey string, opts ...ConfigOption) (*Client, error) {
	cfg := &Config{
		PublicKey: publicKey,
		SecretKey: secretKey,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return NewWithConfig(cfg)
}

// NewWithConfig creates a new sink client from a Config struct. Useful
// together with ConfigFromEnv:
//
//	cfg, _ := tracelens.ConfigFromEnv()
//	client, err := tracelens.NewWithConfig(cfg)
func NewWithConfig(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, ErrInvalidConfig
	}

	// Copy so defaults never mutate the caller's struct.
	cfgCopy := *cfg
	cfgCopy.applyDefaults()
	if err := cfgCopy.validate(); err != nil {
		return nil, err
	}

	c := &Client{
		config:    &cfgCopy,
		transport: newSinkTransport(&cfgCopy),
		pending:   make([]ingestionEvent, 0, cfgCopy.BatchSize),
		flushCh:   make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
	}

	c.wg.Add(1)
	go c.flushLoop()

	return c, nil
}

// NewSession creates a TraceSession bound to this client. One session
// tracks exactly one trace and must be owned by a single goroutine.
func (c *Client) NewSession() *TraceSession {
	return &TraceSession{
		client: c,
		logger: c.config.Logger,
	}
}

// BaseURL returns the configured sink endpoint.
func (c *Client) BaseURL() string { return c.config.BaseURL }

// queueEvent buffers an event for the next batch send. When the buffer
// reaches the batch size, the background loop is nudged to flush early.
func (c *Client) queueEvent(event ingestionEvent) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClientClosed
	}
	c.pending = append(c.pending, event)
	full := len(c.pending) >= c.config.BatchSize
	pendingCount := len(c.pending)
	c.mu.Unlock()

	if c.config.Metrics != nil {
		c.config.Metrics.SetGauge("tracelens.pending_events", float64(pendingCount))
	}

	if full {
		select {
		case c.flushCh <- struct{}{}:
		default:
			// A flush nudge is already queued.
		}
	}
	return nil
}

// flushLoop periodically flushes buffered events, and immediately when
// the buffer fills.
func (c *Client) flushLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
		case <-c.flushCh:
		}

		ctx, cancel := context.WithTimeout(context.Background(), c.config.FlushTimeout)
		res := c.Flush(ctx)
		cancel()
		if !res.OK() && !errors.Is(res.Err, ErrClientClosed) {
			c.config.Logger.Error("background flush failed",
				"failed_events", len(res.Failures), "error", res.Err)
		}
	}
}

// FlushResult enumerates the outcome of one flush. It is returned, never
// raised: partial failure is data for the caller to act on, not an error
// condition of the client.
type FlushResult struct {
	// Flushed is the number of events the sink accepted.
	Flushed int

	// Failures lists events the sink rejected. Rejected events are not
	// retried; their records are malformed from the sink's perspective.
	Failures []FlushFailure

	// Err is set when the batch could not be delivered at all (network
	// failure, open breaker, closed client). Undelivered events are
	// returned to the buffer so a later flush can retry them.
	Err error
}

// FlushFailure identifies one rejected event.
type FlushFailure struct {
	EventID string
	Type    string
	Status  int
	Message string
}

// OK reports whether every buffered event was delivered and accepted.
// A flush with zero pending events is OK.
func (r FlushResult) OK() bool {
	return r.Err == nil && len(r.Failures) == 0
}

// Flush sends all buffered events to the sink and blocks until the sink
// responds or ctx expires. It is safe to call any number of times;
// flushing an empty buffer returns success with an empty failure list.
func (c *Client) Flush(ctx context.Context) FlushResult {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return FlushResult{Err: ErrClientClosed}
	}
	events := c.pending
	c.pending = make([]ingestionEvent, 0, c.config.BatchSize)
	c.mu.Unlock()

	return c.sendBatch(ctx, events)
}

// sendBatch delivers one batch and maps the sink's per-event response
// onto a FlushResult. On transport failure the events are requeued:
// record data is idempotent on the sink side, so a later retry cannot
// corrupt its view.
func (c *Client) sendBatch(ctx context.Context, events []ingestionEvent) FlushResult {
	if len(events) == 0 {
		return FlushResult{}
	}

	start := time.Now()
	var result IngestionResult
	err := c.transport.post(ctx, ingestionPath, &ingestionRequest{Batch: events}, &result)

	if c.config.Metrics != nil {
		c.config.Metrics.RecordDuration("tracelens.flush.duration", time.Since(start))
	}

	if err != nil {
		c.requeue(events)
		if c.config.Metrics != nil {
			c.config.Metrics.IncrementCounter("tracelens.flush.errors", 1)
		}
		return FlushResult{Err: err}
	}

	res := FlushResult{Flushed: len(events) - len(result.Errors)}
	if result.HasErrors() {
		byID := make(map[string]string, len(events))
		for _, ev := range events {
			byID[ev.ID] = ev.Type
		}
		for _, ingErr := range result.Errors {
			c.config.Logger.Warn("sink rejected event",
				"event_id", ingErr.ID, "status", ingErr.Status, "message", ingErr.Message)
			res.Failures = append(res.Failures, FlushFailure{
				EventID: ingErr.ID,
				Type:    byID[ingErr.ID],
				Status:  ingErr.Status,
				Message: ingErr.Message,
			})
		}
	}

	if c.config.Metrics != nil {
		c.config.Metrics.IncrementCounter("tracelens.events.sent", int64(res.Flushed))
		c.config.Metrics.IncrementCounter("tracelens.events.rejected", int64(len(res.Failures)))
	}
	return res
}

// requeue returns undelivered events to the front of the buffer, unless
// the client closed in the meantime.
func (c *Client) requeue(events []ingestionEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.pending = append(events, c.pending...)
}

// RecordScore appends an immutable score record for a trace. The trace
// need not be open or resident in memory; it may have been flushed by a
// previous process run. The sink is eventually consistent, so no
// existence check is performed.
func (c *Client) RecordScore(traceID, name string, value float64, comment string) error {
	if err := ValidateRequired("traceId", traceID); err != nil {
		return err
	}
	if err := ValidateRequired("name", name); err != nil {
		return err
	}
	if err := ValidateScoreValue("value", value); err != nil {
		return err
	}

	return c.queueEvent(ingestionEvent{
		ID:        newID(),
		Type:      eventTypeScoreCreate,
		Timestamp: Now(),
		Body: &Score{
			ID:      newID(),
			TraceID: traceID,
			Name:    name,
			Value:   value,
			Comment: comment,
		},
	})
}

// Shutdown drains buffered events and stops the background loop. It must
// be called once at process shutdown to avoid losing buffered-but-unsent
// records, and is idempotent: a second call returns ErrClientClosed
// without side effects.
func (c *Client) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClientClosed
	}
	c.closed = true
	events := c.pending
	c.pending = nil
	c.mu.Unlock()

	close(c.stopCh)
	c.wg.Wait()

	if len(events) == 0 {
		return nil
	}

	drainCtx, cancel := context.WithTimeout(ctx, c.config.ShutdownTimeout)
	defer cancel()

	res := c.sendBatch(drainCtx, events)
	if res.Err != nil {
		c.config.Logger.Error("shutdown drain failed, events lost",
			"events", len(events), "error", res.Err)
		return res.Err
	}
	return nil
}
