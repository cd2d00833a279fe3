package tracelens

import (
	"time"
)

// ObservationHandle represents scoped ownership of one open observation.
// The holder must End it exactly once; closing twice is a no-op rather
// than an error, so failure-path double-release is harmless.
//
// The handle keeps a weak back-reference to its parent (by identifier);
// it does not own the parent's lifetime.
type ObservationHandle struct {
	session *TraceSession

	id       string
	traceID  string
	kind     ObservationKind
	name     string
	parentID string

	startedAt Time
	endedAt   Time
	closed    bool
	errored   bool
}

// ID returns the observation identifier.
func (h *ObservationHandle) ID() string { return h.id }

// TraceID returns the identifier of the owning trace.
func (h *ObservationHandle) TraceID() string { return h.traceID }

// Kind returns the observation kind.
func (h *ObservationHandle) Kind() ObservationKind { return h.kind }

// Name returns the caller-supplied label.
func (h *ObservationHandle) Name() string { return h.name }

// ParentID returns the identifier of the enclosing observation, or the
// empty string when parented directly to the trace root.
func (h *ObservationHandle) ParentID() string { return h.parentID }

// Closed reports whether the observation has been ended.
func (h *ObservationHandle) Closed() bool { return h.closed }

// Errored reports whether the observation was closed with an error.
func (h *ObservationHandle) Errored() bool { return h.errored }

// EndedAt returns the end time, zero while the observation is open.
func (h *ObservationHandle) EndedAt() time.Time { return h.endedAt.Time }

// End closes the observation: records the end time, output, and (for
// generations) token usage, and pops the nesting stack back to this
// handle's parent. Descendants left open underneath are closed first,
// innermost out. Ending an already-closed handle is a no-op.
func (h *ObservationHandle) End(opts ...EndOption) error {
	if h.closed {
		return nil
	}

	var o endOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.usage != nil {
		if err := ValidateUsage("usage", *o.usage); err != nil {
			return err
		}
	}

	// Close any observations opened inside this one that the caller
	// forgot (or failed) to close. Innermost first.
	s := h.session
	for len(s.stack) > 0 && s.stack[len(s.stack)-1] != h {
		top := s.stack[len(s.stack)-1]
		if err := top.End(); err != nil {
			return err
		}
	}
	if len(s.stack) > 0 && s.stack[len(s.stack)-1] == h {
		s.stack = s.stack[:len(s.stack)-1]
	}

	h.closed = true
	if o.endTime.IsZero() {
		h.endedAt = Now()
	} else {
		h.endedAt = Time{Time: o.endTime}
	}

	level := LevelDefault
	statusMessage := ""
	output := o.output
	if o.hasError {
		h.errored = true
		level = LevelError
		statusMessage = o.err.Error()
		if output == nil {
			output = Metadata{"error": o.err.Error()}
		}
	}

	var usage *Usage
	if h.kind == KindGeneration && o.usage != nil {
		u := normalizeUsage(*o.usage, s.logger)
		usage = &u
	}

	eventType := eventTypeSpanUpdate
	if h.kind == KindGeneration {
		eventType = eventTypeGenerationUpdate
	}

	return s.client.queueEvent(ingestionEvent{
		ID:        newID(),
		Type:      eventType,
		Timestamp: h.endedAt,
		Body: &Observation{
			ID:            h.id,
			TraceID:       h.traceID,
			Type:          h.kind,
			EndTime:       h.endedAt,
			Output:        output,
			Level:         level,
			StatusMessage: statusMessage,
			Usage:         usage,
		},
	})
}

// normalizeUsage applies the usage-aggregation contract that downstream
// cost computation depends on. When the total is absent it becomes
// input + output. When the provider reported an explicit total that
// disagrees with input + output, the provider's total is kept and a
// warning is logged.
func normalizeUsage(u Usage, logger StructuredLogger) Usage {
	derived := u.InputTokens + u.OutputTokens
	if u.TotalTokens == 0 {
		u.TotalTokens = derived
		return u
	}
	if derived != 0 && u.TotalTokens != derived {
		logger.Warn("usage total disagrees with input+output, keeping provider total",
			"input_tokens", u.InputTokens,
			"output_tokens", u.OutputTokens,
			"total_tokens", u.TotalTokens,
			"derived_total", derived)
	}
	return u
}
