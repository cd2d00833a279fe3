package tracelens

import (
	"github.com/google/uuid"
)

// Event types for the sink's batch ingestion API.
const (
	eventTypeTraceCreate      = "trace-create"
	eventTypeTraceUpdate      = "trace-update"
	eventTypeSpanCreate       = "span-create"
	eventTypeSpanUpdate       = "span-update"
	eventTypeGenerationCreate = "generation-create"
	eventTypeGenerationUpdate = "generation-update"
	eventTypeScoreCreate      = "score-create"
)

// ingestionEvent is a single event envelope in a batch. The envelope ID
// identifies the delivery attempt, not the record: re-sending unchanged
// record data under a fresh envelope is idempotent on the sink side.
type ingestionEvent struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Timestamp Time   `json:"timestamp"`
	Body      any    `json:"body"`
}

// ingestionRequest is a batch ingestion request.
type ingestionRequest struct {
	Batch []ingestionEvent `json:"batch"`
}

// IngestionResult is the sink's 207-style response to a batch: every event
// lands in exactly one of the two lists.
type IngestionResult struct {
	Successes []IngestionSuccess `json:"successes"`
	Errors    []IngestionError   `json:"errors"`
}

// IngestionSuccess identifies an accepted event.
type IngestionSuccess struct {
	ID     string `json:"id"`
	Status int    `json:"status"`
}

// IngestionError identifies a rejected event.
type IngestionError struct {
	ID      string `json:"id"`
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *IngestionError) Error() string {
	if e.Message != "" {
		return "tracelens: ingestion error for " + e.ID + ": " + e.Message
	}
	return "tracelens: ingestion error for " + e.ID
}

// HasErrors returns true if the result contains any rejected events.
func (r *IngestionResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// newID generates a random UUID v4. Trace and observation identifiers are
// always generated locally; the sink echoes them back unchanged.
func newID() string {
	return uuid.NewString()
}
