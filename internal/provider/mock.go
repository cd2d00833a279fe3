package provider

import (
	"context"
	"strings"
	"sync"

	tracelens "github.com/tracelens/tracelens-go"
)

// Mock is an in-process provider for tests and keyless local runs. It
// echoes a canned reply and derives token counts from rough word counts,
// so traced usage numbers stay plausible.
type Mock struct {
	mu       sync.Mutex
	requests []*Request

	// Reply overrides the canned response content.
	Reply string

	// Err, when set, is returned from Complete instead of a response.
	Err error
}

// NewMock creates a new mock provider.
func NewMock() *Mock {
	return &Mock{}
}

// Name implements Provider.
func (m *Mock) Name() string { return "mock" }

// Complete implements Provider.
func (m *Mock) Complete(_ context.Context, req *Request) (*Response, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	reply := m.Reply
	err := m.Err
	m.mu.Unlock()

	if err != nil {
		return nil, &tracelens.UpstreamError{Provider: m.Name(), Message: "mock failure", Err: err}
	}

	if reply == "" {
		reply = "This is a mock completion."
	}

	promptTokens := 0
	for _, msg := range req.Messages {
		promptTokens += len(strings.Fields(msg.Content))
	}
	completionTokens := len(strings.Fields(reply))

	return &Response{
		Content: reply,
		Model:   req.Model,
		Usage: Usage{
			PromptTokens:     promptTokens,
			CompletionTokens: completionTokens,
			TotalTokens:      promptTokens + completionTokens,
		},
	}, nil
}

// Requests returns every request the mock has received.
func (m *Mock) Requests() []*Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*Request{}, m.requests...)
}

var _ Provider = (*Mock)(nil)
