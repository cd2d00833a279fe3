package tracelens

import (
	"context"
	"fmt"
)

// TraceSession tracks exactly one trace: its identity and metadata, the
// strictly nested stack of observations opened within it, and the scores
// attached to it afterwards. Every opened observation is guaranteed to
// close exactly once, even when the wrapped work fails.
//
// A TraceSession is owned by a single logical task and is NOT safe for
// concurrent use. Concurrent requests each get their own session; the
// buffered Client is the only resource they share.
type TraceSession struct {
	client *Client
	logger StructuredLogger

	started bool
	state   TraceState
	traceID string
	name    string

	sessionID string
	userID    string
	tags      []string
	tagSet    map[string]struct{}
	metadata  Metadata

	stack []*ObservationHandle
}

// TraceID returns the trace identifier, or the empty string before the
// trace has started.
func (s *TraceSession) TraceID() string { return s.traceID }

// State returns the trace lifecycle state.
func (s *TraceSession) State() TraceState { return s.state }

// Depth returns the current observation nesting depth.
func (s *TraceSession) Depth() int { return len(s.stack) }

// StartTrace starts the session's trace, generating a trace identifier if
// the caller supplies none. Starting an already-started session again is
// an idempotent merge: tags union as a set, metadata maps merge
// shallowly, and identity fields update when supplied. Binding a second,
// different external trace identifier is a validation error.
func (s *TraceSession) StartTrace(opts ...TraceOption) (string, error) {
	var o traceOptions
	for _, opt := range opts {
		opt(&o)
	}

	if s.state == TraceStateFinalized {
		return "", &InvalidStateError{TraceID: s.traceID, State: s.state, Op: "StartTrace"}
	}
	if err := ValidateTags("tags", o.tags); err != nil {
		return "", err
	}
	if err := ValidateMetadata("metadata", o.metadata); err != nil {
		return "", err
	}
	if s.started && o.traceID != "" && o.traceID != s.traceID {
		return "", NewValidationError("traceId",
			fmt.Sprintf("session already bound to trace %s", s.traceID))
	}

	creating := !s.started
	if creating {
		s.traceID = o.traceID
		if s.traceID == "" {
			s.traceID = newID()
		}
		s.started = true
		s.state = TraceStateOpen
		s.tagSet = make(map[string]struct{})
	}

	s.mergeIdentity(&o)
	s.mergeTags(o.tags)
	s.mergeMetadata(o.metadata)

	eventType := eventTypeTraceUpdate
	if creating {
		eventType = eventTypeTraceCreate
	}

	if err := s.client.queueEvent(ingestionEvent{
		ID:        newID(),
		Type:      eventType,
		Timestamp: Now(),
		Body:      s.traceBody(o.input, nil),
	}); err != nil {
		return "", err
	}
	return s.traceID, nil
}

// mergeIdentity updates identity fields from supplied options.
func (s *TraceSession) mergeIdentity(o *traceOptions) {
	if o.name != "" {
		s.name = o.name
	}
	if o.sessionID != "" {
		s.sessionID = o.sessionID
	}
	if o.userID != "" {
		s.userID = o.userID
	}
}

// mergeTags unions new tags into the set, keeping first-seen order.
func (s *TraceSession) mergeTags(tags []string) {
	for _, tag := range tags {
		if _, seen := s.tagSet[tag]; seen {
			continue
		}
		s.tagSet[tag] = struct{}{}
		s.tags = append(s.tags, tag)
	}
}

// mergeMetadata shallow-merges new metadata, last writer wins per key.
func (s *TraceSession) mergeMetadata(md Metadata) {
	if len(md) == 0 {
		return
	}
	if s.metadata == nil {
		s.metadata = make(Metadata, len(md))
	}
	for k, v := range md {
		s.metadata[k] = v
	}
}

// traceBody builds the wire record reflecting the session's merged view.
func (s *TraceSession) traceBody(input, output any) *Trace {
	return &Trace{
		ID:          s.traceID,
		Timestamp:   Now(),
		Name:        s.name,
		SessionID:   s.sessionID,
		UserID:      s.userID,
		Tags:        s.tags,
		Metadata:    s.metadata,
		Input:       input,
		Output:      output,
		Release:     s.client.config.Release,
		Environment: s.client.config.Environment,
	}
}

// StartObservation opens a new observation nested under whatever
// observation is currently innermost, or under the trace root. The trace
// is started implicitly on the first observation. The returned handle
// represents scoped ownership: the caller must End it exactly once
// (further Ends are no-ops).
func (s *TraceSession) StartObservation(kind ObservationKind, name string, opts ...ObservationOption) (*ObservationHandle, error) {
	if err := ValidateKind("kind", kind); err != nil {
		return nil, err
	}
	if err := ValidateRequired("name", name); err != nil {
		return nil, err
	}
	if err := ValidateName("name", name); err != nil {
		return nil, err
	}
	if s.state == TraceStateFinalized {
		return nil, &InvalidStateError{TraceID: s.traceID, State: s.state, Op: "StartObservation"}
	}
	if !s.started {
		if _, err := s.StartTrace(); err != nil {
			return nil, err
		}
	}

	var o observationOptions
	for _, opt := range opts {
		opt(&o)
	}

	parentID := ""
	if len(s.stack) > 0 {
		parentID = s.stack[len(s.stack)-1].id
	}

	h := &ObservationHandle{
		session:   s,
		id:        newID(),
		traceID:   s.traceID,
		kind:      kind,
		name:      name,
		parentID:  parentID,
		startedAt: Now(),
	}

	eventType := eventTypeSpanCreate
	if kind == KindGeneration {
		eventType = eventTypeGenerationCreate
	}
	level := o.level
	if level == "" {
		level = LevelDefault
	}

	if err := s.client.queueEvent(ingestionEvent{
		ID:        newID(),
		Type:      eventType,
		Timestamp: h.startedAt,
		Body: &Observation{
			ID:                  h.id,
			TraceID:             s.traceID,
			Type:                kind,
			Name:                name,
			StartTime:           h.startedAt,
			ParentObservationID: parentID,
			Input:               o.input,
			Metadata:            o.metadata,
			Level:               level,
			Model:               o.model,
			ModelParameters:     o.modelParameters,
			Environment:         s.client.config.Environment,
		},
	}); err != nil {
		return nil, err
	}

	s.stack = append(s.stack, h)
	return h, nil
}

// Observe runs fn inside an observation with scoped acquisition: the
// observation is opened before fn and closed on every exit path. A
// returned error or a panic is recorded as the observation's output and
// marks it errored before being surfaced back to the caller unchanged.
func (s *TraceSession) Observe(ctx context.Context, kind ObservationKind, name string, input any, fn func(context.Context) (any, error)) (out any, err error) {
	h, err := s.StartObservation(kind, name, WithInput(input))
	if err != nil {
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			h.End(WithError(fmt.Errorf("panic: %v", r)))
			panic(r)
		}
	}()

	out, err = fn(ctx)
	if err != nil {
		h.End(WithError(err))
		return nil, err
	}
	h.End(WithOutput(out))
	return out, nil
}

// RecordScore appends an immutable score record for a trace. Scoring is
// always legal, even after the trace has been finalized or flushed by a
// previous process run; the operation is fire-and-forget against the
// eventually consistent sink.
func (s *TraceSession) RecordScore(traceID, name string, value float64, comment string) error {
	return s.client.RecordScore(traceID, name, value, comment)
}

// End finalizes the trace. Observations still open are closed first,
// innermost out, preserving the invariant that every opened observation
// closes exactly once. After End, StartTrace and StartObservation are
// rejected with InvalidStateError; RecordScore remains legal. Ending an
// already-finalized or never-started session is a no-op.
func (s *TraceSession) End(opts ...EndOption) error {
	if !s.started || s.state == TraceStateFinalized {
		return nil
	}

	var o endOptions
	for _, opt := range opts {
		opt(&o)
	}

	// Close innermost-out; each End pops the stack.
	for len(s.stack) > 0 {
		if err := s.stack[len(s.stack)-1].End(); err != nil {
			return err
		}
	}

	s.state = TraceStateFinalized

	if o.output == nil {
		return nil
	}
	return s.client.queueEvent(ingestionEvent{
		ID:        newID(),
		Type:      eventTypeTraceUpdate,
		Timestamp: Now(),
		Body:      s.traceBody(nil, o.output),
	})
}

// Flush forces buffered records out to the sink. Delegates to the shared
// client; see Client.Flush.
func (s *TraceSession) Flush(ctx context.Context) FlushResult {
	return s.client.Flush(ctx)
}
