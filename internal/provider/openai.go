package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	tracelens "github.com/tracelens/tracelens-go"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAI implements Provider against an OpenAI-compatible chat completions
// endpoint. Transient transport failures are retried by the underlying
// retryable HTTP client; API-level errors are not retried here.
type OpenAI struct {
	apiKey  string
	baseURL string
	client  *retryablehttp.Client
}

// OpenAIOption configures the OpenAI provider.
type OpenAIOption func(*OpenAI)

// WithBaseURL points the provider at a different OpenAI-compatible
// endpoint, e.g. a local proxy or a test server.
func WithBaseURL(baseURL string) OpenAIOption {
	return func(o *OpenAI) { o.baseURL = baseURL }
}

// NewOpenAI creates a new OpenAI provider.
func NewOpenAI(apiKey string, opts ...OpenAIOption) *OpenAI {
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.RetryWaitMin = 500 * time.Millisecond
	client.RetryWaitMax = 5 * time.Second
	client.HTTPClient.Timeout = 60 * time.Second
	client.Logger = nil

	o := &OpenAI{
		apiKey:  apiKey,
		baseURL: defaultOpenAIBaseURL,
		client:  client,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Name implements Provider.
func (o *OpenAI) Name() string { return "openai" }

type chatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type chatCompletionResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Complete implements Provider.
func (o *OpenAI) Complete(ctx context.Context, req *Request) (*Response, error) {
	body, err := json.Marshal(chatCompletionRequest{
		Model:       req.Model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("provider: failed to marshal request: %w", err)
	}

	httpReq, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost,
		o.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("provider: failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return nil, &tracelens.UpstreamError{Provider: o.Name(), Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &tracelens.UpstreamError{Provider: o.Name(), Message: "failed to read response", Err: err}
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, &tracelens.UpstreamError{
			Provider: o.Name(),
			Message:  fmt.Sprintf("malformed response (status %d)", resp.StatusCode),
			Err:      err,
		}
	}

	if resp.StatusCode >= 400 || parsed.Error != nil {
		msg := fmt.Sprintf("status %d", resp.StatusCode)
		if parsed.Error != nil {
			msg = parsed.Error.Message
		}
		return nil, &tracelens.UpstreamError{Provider: o.Name(), Message: msg}
	}
	if len(parsed.Choices) == 0 {
		return nil, &tracelens.UpstreamError{Provider: o.Name(), Message: "response contains no choices"}
	}

	model := parsed.Model
	if model == "" {
		model = req.Model
	}
	return &Response{
		Content: parsed.Choices[0].Message.Content,
		Model:   model,
		Usage:   parsed.Usage,
	}, nil
}

var _ Provider = (*OpenAI)(nil)
