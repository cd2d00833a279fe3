// Package provider defines the chat completion provider interface and its
// implementations. Providers are external generators: given a role/content
// message list and generation parameters they return text plus token
// counts. Provider latency is measured by the observation wrapping the
// call; retry policy beyond transport-level retries belongs to the caller.
package provider

import (
	"context"
)

// Message is one chat message in a completion request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a chat completion request.
type Request struct {
	Messages    []Message
	Model       string
	Temperature float64
	MaxTokens   int
}

// Usage is the provider's own token accounting for one completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a chat completion response.
type Response struct {
	Content string
	Model   string
	Usage   Usage
}

// Provider is the interface completion backends implement.
type Provider interface {
	// Complete sends a completion request and returns the response. Any
	// provider error (rate limit, invalid model, timeout) surfaces as a
	// tracelens.UpstreamError.
	Complete(ctx context.Context, req *Request) (*Response, error)

	// Name returns the provider name.
	Name() string
}
