package tracelens

import (
	"encoding/json"
	"time"
)

// Metadata is a mapping of string keys to arbitrary JSON-serializable
// values. Metadata supplied across multiple trace updates is merged
// (shallow, last writer wins per key), never overwritten wholesale.
type Metadata = map[string]any

// Time is a timestamp that marshals to RFC 3339 with nanoseconds and to
// JSON null when zero. An open observation has a zero EndTime, which the
// sink receives as null.
type Time struct {
	time.Time
}

// Now returns the current time as a Time.
func Now() Time {
	return Time{Time: time.Now()}
}

// IsZero reports whether the time is the zero value. encoding/json uses
// this for omitempty checks.
func (t Time) IsZero() bool {
	return t.Time.IsZero()
}

// MarshalJSON implements json.Marshaler. Zero times marshal as null.
func (t Time) MarshalJSON() ([]byte, error) {
	if t.Time.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}

// UnmarshalJSON implements json.Unmarshaler. It accepts RFC 3339 strings
// (with or without sub-second precision) and null.
func (t *Time) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		parsed, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return err
		}
	}
	t.Time = parsed
	return nil
}

// ObservationKind distinguishes the observation variants. A Span is a
// generic timed unit of work; a Generation is an LLM call that also
// carries a model name, model parameters, and token usage.
type ObservationKind string

const (
	KindSpan       ObservationKind = "SPAN"
	KindGeneration ObservationKind = "GENERATION"
)

// String returns the string representation of the observation kind.
func (k ObservationKind) String() string { return string(k) }

// ObservationLevel represents the severity level of an observation.
// Observations whose guarded body fails are recorded at LevelError.
type ObservationLevel string

const (
	LevelDebug   ObservationLevel = "DEBUG"
	LevelDefault ObservationLevel = "DEFAULT"
	LevelWarning ObservationLevel = "WARNING"
	LevelError   ObservationLevel = "ERROR"
)

// String returns the string representation of the observation level.
func (l ObservationLevel) String() string { return string(l) }

// TraceState is the lifecycle state of a trace within a TraceSession.
// A trace is Open from its first observation until it is explicitly
// ended; no transition leaves Finalized.
type TraceState int32

const (
	// TraceStateOpen indicates the trace accepts new observations and
	// metadata updates.
	TraceStateOpen TraceState = iota

	// TraceStateFinalized indicates the trace has been ended. Appending
	// observations is rejected; scores remain legal because scoring
	// happens after completion.
	TraceStateFinalized
)

// String returns a string representation of the trace state.
func (s TraceState) String() string {
	switch s {
	case TraceStateOpen:
		return "open"
	case TraceStateFinalized:
		return "finalized"
	default:
		return "unknown"
	}
}

// Usage represents token usage for a generation.
//
// The aggregation contract downstream cost computation depends on: when
// TotalTokens is zero and both input and output counts are present, the
// stored total is their sum. When the provider reports an explicit total
// that disagrees with input+output, the provider's total is kept and a
// warning is logged; silently recomputing would disagree with the
// provider's own accounting.
type Usage struct {
	InputTokens  int    `json:"input,omitempty"`
	OutputTokens int    `json:"output,omitempty"`
	TotalTokens  int    `json:"total,omitempty"`
	Unit         string `json:"unit,omitempty"`
}

// IsZero reports whether the usage carries no counts.
func (u Usage) IsZero() bool {
	return u.InputTokens == 0 && u.OutputTokens == 0 && u.TotalTokens == 0
}

// Trace is the sink's view of one end-to-end operation.
type Trace struct {
	ID          string   `json:"id"`
	Timestamp   Time     `json:"timestamp,omitempty"`
	Name        string   `json:"name,omitempty"`
	UserID      string   `json:"userId,omitempty"`
	SessionID   string   `json:"sessionId,omitempty"`
	Input       any      `json:"input,omitempty"`
	Output      any      `json:"output,omitempty"`
	Metadata    Metadata `json:"metadata,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Release     string   `json:"release,omitempty"`
	Environment string   `json:"environment,omitempty"`
}

// Observation is the sink's view of a timed unit of work nested inside a
// trace. The parent reference is weak: an observation records its parent's
// identifier but does not own its lifetime.
type Observation struct {
	ID                  string           `json:"id"`
	TraceID             string           `json:"traceId,omitempty"`
	Type                ObservationKind  `json:"type"`
	Name                string           `json:"name,omitempty"`
	StartTime           Time             `json:"startTime,omitempty"`
	EndTime             Time             `json:"endTime,omitempty"`
	ParentObservationID string           `json:"parentObservationId,omitempty"`
	Input               any              `json:"input,omitempty"`
	Output              any              `json:"output,omitempty"`
	Metadata            Metadata         `json:"metadata,omitempty"`
	Level               ObservationLevel `json:"level,omitempty"`
	StatusMessage       string           `json:"statusMessage,omitempty"`
	Environment         string           `json:"environment,omitempty"`

	// Generation-only fields.
	Model           string   `json:"model,omitempty"`
	ModelParameters Metadata `json:"modelParameters,omitempty"`
	Usage           *Usage   `json:"usage,omitempty"`
}

// Score is post-hoc feedback attached to a trace by identifier. Scores are
// write-once: never mutated or deleted by this system. Names are not
// unique; a trace may carry several scores with the same name.
type Score struct {
	ID      string  `json:"id,omitempty"`
	TraceID string  `json:"traceId"`
	Name    string  `json:"name"`
	Value   float64 `json:"value"`
	Comment string  `json:"comment,omitempty"`
}
