package tracelenstest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"

	tracelens "github.com/tracelens/tracelens-go"
)

// Event is one recorded ingestion event, with its body kept as raw JSON
// for assertion-time decoding.
type Event struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Timestamp tracelens.Time  `json:"timestamp"`
	Body      json.RawMessage `json:"body"`
}

// DecodeBody unmarshals the event body into v.
func (e Event) DecodeBody(v any) error {
	return json.Unmarshal(e.Body, v)
}

// SinkServer is an in-memory ingestion endpoint that records every event
// it receives. It answers with the sink's 207-style result: every event
// in the batch is either accepted or, when a RejectFunc matches, listed
// under errors.
type SinkServer struct {
	*httptest.Server

	mu     sync.Mutex
	events []Event
	fail   int

	// RejectFunc, when set, is consulted per event; returning a non-zero
	// status rejects the event with that status and message.
	RejectFunc func(e Event) (int, string)
}

// NewSinkServer creates and starts a new sink server.
func NewSinkServer() *SinkServer {
	s := &SinkServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

func (s *SinkServer) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	failing := s.fail > 0
	if failing {
		s.fail--
	}
	s.mu.Unlock()

	if failing {
		http.Error(w, `{"message":"sink unavailable"}`, http.StatusServiceUnavailable)
		return
	}

	var req struct {
		Batch []Event `json:"batch"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"message":"malformed batch"}`, http.StatusBadRequest)
		return
	}

	var result tracelens.IngestionResult
	s.mu.Lock()
	for _, e := range req.Batch {
		if s.RejectFunc != nil {
			if status, msg := s.RejectFunc(e); status != 0 {
				result.Errors = append(result.Errors, tracelens.IngestionError{
					ID: e.ID, Status: status, Message: msg,
				})
				continue
			}
		}
		s.events = append(s.events, e)
		result.Successes = append(result.Successes, tracelens.IngestionSuccess{ID: e.ID, Status: 201})
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusMultiStatus)
	json.NewEncoder(w).Encode(result)
}

// FailNext makes the next n batch requests fail with 503 before any
// events are recorded.
func (s *SinkServer) FailNext(n int) {
	s.mu.Lock()
	s.fail = n
	s.mu.Unlock()
}

// Events returns all recorded events in arrival order.
func (s *SinkServer) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event{}, s.events...)
}

// EventsOfType returns the recorded events with the given envelope type,
// e.g. "trace-create" or "score-create".
func (s *SinkServer) EventsOfType(eventType string) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Event
	for _, e := range s.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

// EventCount returns the number of recorded events.
func (s *SinkServer) EventCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

// Reset clears all recorded events.
func (s *SinkServer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
}
