package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	tracelens "github.com/tracelens/tracelens-go"
	"github.com/tracelens/tracelens-go/internal/provider"
)

// ChatMessage is a single message in a chat conversation.
type ChatMessage struct {
	Role    string `json:"role" validate:"required,oneof=system user assistant"`
	Content string `json:"content" validate:"required"`
}

// ChatRequest is the body of POST /api/v1/chat.
type ChatRequest struct {
	Messages    []ChatMessage      `json:"messages" validate:"required,min=1,dive"`
	Model       string             `json:"model"`
	Temperature *float64           `json:"temperature"`
	MaxTokens   *int               `json:"max_tokens"`
	SessionID   string             `json:"session_id"`
	UserID      string             `json:"user_id"`
	Metadata    tracelens.Metadata `json:"metadata"`
}

// ChatResponse is the body returned by POST /api/v1/chat.
type ChatResponse struct {
	Response  string     `json:"response"`
	SessionID string     `json:"session_id"`
	TraceID   string     `json:"trace_id"`
	Usage     *UsageInfo `json:"usage,omitempty"`
	Model     string     `json:"model"`
}

// UsageInfo mirrors the provider's token accounting in API responses.
type UsageInfo struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// FeedbackRequest is the body of POST /api/v1/feedback.
type FeedbackRequest struct {
	TraceID string   `json:"trace_id" validate:"required"`
	Score   *float64 `json:"score" validate:"required"`
	Comment string   `json:"comment"`
	Name    string   `json:"name"`
}

// PromptRequest is the body of POST /api/v1/prompt-completion.
type PromptRequest struct {
	PromptName  string            `json:"prompt_name" validate:"required"`
	Variables   map[string]string `json:"variables"`
	Model       string            `json:"model"`
	Temperature *float64          `json:"temperature"`
	SessionID   string            `json:"session_id"`
	UserID      string            `json:"user_id"`
}

const (
	defaultTemperature = 0.7
	defaultMaxTokens   = 500
)

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return false
	}
	return true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":  "healthy",
		"app":     "tracelens-demo",
		"version": "v1",
	})
}

// handleChat runs a chat completion traced as a span wrapping a
// generation. Tracing failures are logged but never fail the request;
// the completion itself is the only hard dependency.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Model == "" {
		req.Model = s.cfg.DefaultModel
	}
	temperature := defaultTemperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	maxTokens := defaultMaxTokens
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	session := s.client.NewSession()
	traceID, err := session.StartTrace(
		tracelens.WithTraceName("chat_completion"),
		tracelens.WithSessionID(sessionID),
		tracelens.WithUserID(req.UserID),
		tracelens.WithTags("api", "chat"),
		tracelens.WithTraceMetadata(req.Metadata),
	)
	if err != nil {
		s.log.Warn("failed to start trace", zap.Error(err))
	}

	messages := make([]provider.Message, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = provider.Message{Role: m.Role, Content: m.Content}
	}

	span, err := session.StartObservation(tracelens.KindSpan, "chat_completion",
		tracelens.WithInput(tracelens.Metadata{
			"messages":    messages,
			"model":       req.Model,
			"temperature": temperature,
			"max_tokens":  maxTokens,
		}),
	)
	if err != nil {
		s.log.Warn("failed to start span", zap.Error(err))
	}
	gen, err := session.StartObservation(tracelens.KindGeneration, "openai_completion",
		tracelens.WithInput(messages),
		tracelens.WithModel(req.Model),
		tracelens.WithModelParameters(tracelens.Metadata{
			"temperature": temperature,
			"max_tokens":  maxTokens,
		}),
	)
	if err != nil {
		s.log.Warn("failed to start generation", zap.Error(err))
	}

	resp, provErr := s.provider.Complete(r.Context(), &provider.Request{
		Messages:    messages,
		Model:       req.Model,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if provErr != nil {
		s.endQuietly(gen, tracelens.WithError(provErr))
		s.endQuietly(span, tracelens.WithError(provErr))
		if err := session.End(); err != nil {
			s.log.Warn("failed to end trace", zap.Error(err))
		}
		s.log.Error("completion failed", zap.Error(provErr), zap.String("model", req.Model))
		s.writeError(w, http.StatusBadGateway, "completion provider unavailable")
		return
	}

	s.endQuietly(gen,
		tracelens.WithOutput(resp.Content),
		tracelens.WithUsage(tracelens.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		}),
	)
	s.endQuietly(span, tracelens.WithOutput(tracelens.Metadata{
		"response": resp.Content,
		"model":    resp.Model,
	}))
	if err := session.End(); err != nil {
		s.log.Warn("failed to end trace", zap.Error(err))
	}

	s.metrics.IncrementCounter("tracelens.server.chat_completions", 1)

	s.writeJSON(w, http.StatusOK, ChatResponse{
		Response:  resp.Content,
		SessionID: sessionID,
		TraceID:   traceID,
		Usage: &UsageInfo{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
		Model: resp.Model,
	})
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req FeedbackRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Name == "" {
		req.Name = "user-feedback"
	}

	if err := s.client.RecordScore(req.TraceID, req.Name, *req.Score, req.Comment); err != nil {
		var verr *tracelens.ValidationError
		if errors.As(err, &verr) {
			s.writeError(w, http.StatusBadRequest, verr.Error())
			return
		}
		s.log.Error("failed to record score", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to record feedback")
		return
	}

	s.metrics.IncrementCounter("tracelens.server.feedback_recorded", 1)

	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"message": fmt.Sprintf("Feedback recorded for trace %s", req.TraceID),
		"score":   *req.Score,
		"name":    req.Name,
	})
}

func (s *Server) handlePromptCompletion(w http.ResponseWriter, r *http.Request) {
	var req PromptRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Model == "" {
		req.Model = s.cfg.DefaultModel
	}
	temperature := defaultTemperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	if _, ok := s.prompts.Get(req.PromptName); !ok {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("prompt %q not found", req.PromptName))
		return
	}
	prompt, err := s.prompts.Render(req.PromptName, req.Variables)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	session := s.client.NewSession()
	traceID, err := session.StartTrace(
		tracelens.WithTraceName("prompt_completion"),
		tracelens.WithSessionID(sessionID),
		tracelens.WithUserID(req.UserID),
	)
	if err != nil {
		s.log.Warn("failed to start trace", zap.Error(err))
	}

	span, err := session.StartObservation(tracelens.KindSpan, "prompt_completion",
		tracelens.WithInput(tracelens.Metadata{
			"prompt_name": req.PromptName,
			"variables":   req.Variables,
			"prompt":      prompt,
		}),
	)
	if err != nil {
		s.log.Warn("failed to start span", zap.Error(err))
	}
	gen, err := session.StartObservation(tracelens.KindGeneration, "openai_completion",
		tracelens.WithInput(prompt),
		tracelens.WithModel(req.Model),
		tracelens.WithModelParameters(tracelens.Metadata{"temperature": temperature}),
	)
	if err != nil {
		s.log.Warn("failed to start generation", zap.Error(err))
	}

	resp, provErr := s.provider.Complete(r.Context(), &provider.Request{
		Messages:    []provider.Message{{Role: "user", Content: prompt}},
		Model:       req.Model,
		Temperature: temperature,
	})
	if provErr != nil {
		s.endQuietly(gen, tracelens.WithError(provErr))
		s.endQuietly(span, tracelens.WithError(provErr))
		if err := session.End(); err != nil {
			s.log.Warn("failed to end trace", zap.Error(err))
		}
		s.log.Error("completion failed", zap.Error(provErr), zap.String("prompt", req.PromptName))
		s.writeError(w, http.StatusBadGateway, "completion provider unavailable")
		return
	}

	s.endQuietly(gen,
		tracelens.WithOutput(resp.Content),
		tracelens.WithUsage(tracelens.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		}),
	)
	s.endQuietly(span, tracelens.WithOutput(tracelens.Metadata{"response": resp.Content}))
	if err := session.End(); err != nil {
		s.log.Warn("failed to end trace", zap.Error(err))
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"response":    resp.Content,
		"prompt_name": req.PromptName,
		"session_id":  sessionID,
		"trace_id":    traceID,
		"usage": UsageInfo{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	s.writeJSON(w, http.StatusOK, map[string]any{
		"session_id":    sessionID,
		"message":       "Session tracking is active. View details in the dashboard.",
		"dashboard_url": fmt.Sprintf("%s/sessions/%s", s.client.BaseURL(), sessionID),
	})
}

// endQuietly closes an observation, logging rather than propagating
// failures. Handles may be nil when the preceding start was rejected.
func (s *Server) endQuietly(h *tracelens.ObservationHandle, opts ...tracelens.EndOption) {
	if h == nil {
		return
	}
	if err := h.End(opts...); err != nil {
		s.log.Warn("failed to end observation", zap.Error(err), zap.String("observation", h.Name()))
	}
}
