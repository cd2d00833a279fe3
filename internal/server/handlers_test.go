package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	tracelens "github.com/tracelens/tracelens-go"
	"github.com/tracelens/tracelens-go/internal/provider"
	"github.com/tracelens/tracelens-go/tracelenstest"
)

type testEnv struct {
	server *Server
	client *tracelens.Client
	sink   *tracelenstest.SinkServer
	mock   *provider.Mock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	client, sink := tracelenstest.NewTestClient(t)
	mock := provider.NewMock()
	cfg := &Config{Addr: ":0", UseMockProvider: true, DefaultModel: "gpt-3.5-turbo"}
	srv := New(cfg, zap.NewNop(), client, mock, tracelens.NewPromptRegistry(), nil)
	return &testEnv{server: srv, client: client, sink: sink, mock: mock}
}

func (e *testEnv) post(t *testing.T, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)
	rec := env.get(t, "/")
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	decodeJSON(t, rec, &body)
	assert.Equal(t, "healthy", body["status"])
}

func TestChatEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.post(t, "/api/v1/chat", map[string]any{
		"messages": []map[string]string{{"role": "user", "content": "Hello there friend"}},
		"user_id":  "user-42",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp ChatResponse
	decodeJSON(t, rec, &resp)
	assert.NotEmpty(t, resp.Response)
	assert.NotEmpty(t, resp.SessionID)
	assert.NotEmpty(t, resp.TraceID)
	assert.Equal(t, "gpt-3.5-turbo", resp.Model)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, resp.Usage.PromptTokens+resp.Usage.CompletionTokens, resp.Usage.TotalTokens)

	// The completion is traced as a span wrapping a generation.
	res := env.client.Flush(context.Background())
	require.True(t, res.OK(), "flush failed: %v", res.Err)

	require.Len(t, env.sink.EventsOfType("trace-create"), 1)
	spans := env.sink.EventsOfType("span-create")
	gens := env.sink.EventsOfType("generation-create")
	require.Len(t, spans, 1)
	require.Len(t, gens, 1)

	var span, gen tracelens.Observation
	require.NoError(t, spans[0].DecodeBody(&span))
	require.NoError(t, gens[0].DecodeBody(&gen))
	assert.Equal(t, "chat_completion", span.Name)
	assert.Equal(t, "openai_completion", gen.Name)
	assert.Equal(t, span.ID, gen.ParentObservationID)
	assert.Equal(t, resp.TraceID, gen.TraceID)

	var genUpdate tracelens.Observation
	updates := env.sink.EventsOfType("generation-update")
	require.Len(t, updates, 1)
	require.NoError(t, updates[0].DecodeBody(&genUpdate))
	require.NotNil(t, genUpdate.Usage)
	assert.Equal(t, resp.Usage.TotalTokens, genUpdate.Usage.TotalTokens)
}

func TestChatEndpointReusesSessionID(t *testing.T) {
	env := newTestEnv(t)

	rec := env.post(t, "/api/v1/chat", map[string]any{
		"messages":   []map[string]string{{"role": "user", "content": "Hi"}},
		"session_id": "session-abc",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ChatResponse
	decodeJSON(t, rec, &resp)
	assert.Equal(t, "session-abc", resp.SessionID)
}

func TestChatEndpointValidation(t *testing.T) {
	env := newTestEnv(t)

	rec := env.post(t, "/api/v1/chat", map[string]any{"messages": []any{}})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = env.post(t, "/api/v1/chat", map[string]any{
		"messages": []map[string]string{{"role": "robot", "content": "Hi"}},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestChatEndpointProviderFailure(t *testing.T) {
	env := newTestEnv(t)
	env.mock.Err = errors.New("provider down")

	rec := env.post(t, "/api/v1/chat", map[string]any{
		"messages": []map[string]string{{"role": "user", "content": "Hi"}},
	})
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	// The failed completion is still traced, with the generation errored.
	res := env.client.Flush(context.Background())
	require.True(t, res.OK())

	updates := env.sink.EventsOfType("generation-update")
	require.Len(t, updates, 1)
	var gen tracelens.Observation
	require.NoError(t, updates[0].DecodeBody(&gen))
	assert.Equal(t, tracelens.LevelError, gen.Level)
}

func TestFeedbackEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.post(t, "/api/v1/feedback", map[string]any{
		"trace_id": "trace-123",
		"score":    0.9,
		"comment":  "helpful",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body map[string]any
	decodeJSON(t, rec, &body)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "user-feedback", body["name"])

	res := env.client.Flush(context.Background())
	require.True(t, res.OK())

	scores := env.sink.EventsOfType("score-create")
	require.Len(t, scores, 1)
	var score tracelens.Score
	require.NoError(t, scores[0].DecodeBody(&score))
	assert.Equal(t, "trace-123", score.TraceID)
	assert.Equal(t, 0.9, score.Value)
	assert.Equal(t, "helpful", score.Comment)
}

func TestFeedbackEndpointValidation(t *testing.T) {
	env := newTestEnv(t)

	// Missing score.
	rec := env.post(t, "/api/v1/feedback", map[string]any{"trace_id": "trace-123"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	// Out-of-range score is rejected by the SDK.
	rec = env.post(t, "/api/v1/feedback", map[string]any{"trace_id": "trace-123", "score": 1.5})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPromptCompletionEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.post(t, "/api/v1/prompt-completion", map[string]any{
		"prompt_name": "summarize",
		"variables":   map[string]string{"text": "a very long document"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body map[string]any
	decodeJSON(t, rec, &body)
	assert.Equal(t, "summarize", body["prompt_name"])
	assert.NotEmpty(t, body["trace_id"])

	// The rendered prompt reaches the provider.
	reqs := env.mock.Requests()
	require.Len(t, reqs, 1)
	require.Len(t, reqs[0].Messages, 1)
	assert.Contains(t, reqs[0].Messages[0].Content, "a very long document")
}

func TestPromptCompletionUnknownPrompt(t *testing.T) {
	env := newTestEnv(t)

	rec := env.post(t, "/api/v1/prompt-completion", map[string]any{
		"prompt_name": "nonexistent",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPromptCompletionBadVariables(t *testing.T) {
	env := newTestEnv(t)

	rec := env.post(t, "/api/v1/prompt-completion", map[string]any{
		"prompt_name": "summarize",
		"variables":   map[string]string{"wrong": "x"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessionEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get(t, "/api/v1/sessions/session-xyz")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	decodeJSON(t, rec, &body)
	assert.Equal(t, "session-xyz", body["session_id"])
	assert.Contains(t, body["dashboard_url"], "session-xyz")
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)

	env.post(t, "/api/v1/chat", map[string]any{
		"messages": []map[string]string{{"role": "user", "content": "Hi"}},
	})

	rec := env.get(t, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}
