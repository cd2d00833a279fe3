// Package server implements the demo HTTP API that exercises the
// tracelens SDK end to end: chat completions traced as a span wrapping
// a generation, user feedback recorded as scores, and prompt-template
// completions.
package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	tracelens "github.com/tracelens/tracelens-go"
	"github.com/tracelens/tracelens-go/internal/provider"
)

// Server wires the SDK client, the completion provider and the prompt
// registry behind a chi router.
type Server struct {
	cfg      *Config
	log      *zap.Logger
	client   *tracelens.Client
	provider provider.Provider
	prompts  *tracelens.PromptRegistry
	metrics  *PromMetrics
	validate *validator.Validate
	router   chi.Router
}

// New assembles a Server. All dependencies are required except metrics,
// which defaults to a fresh registry.
func New(cfg *Config, log *zap.Logger, client *tracelens.Client, prov provider.Provider, prompts *tracelens.PromptRegistry, metrics *PromMetrics) *Server {
	if metrics == nil {
		metrics = NewPromMetrics(nil)
	}
	s := &Server{
		cfg:      cfg,
		log:      log,
		client:   client,
		provider: prov,
		prompts:  prompts,
		metrics:  metrics,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
	s.router = s.routes()
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/chat", s.handleChat)
		r.Post("/feedback", s.handleFeedback)
		r.Post("/prompt-completion", s.handlePromptCompletion)
		r.Get("/sessions/{sessionID}", s.handleSession)
	})
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		elapsed := time.Since(start)
		s.log.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", elapsed),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
		s.metrics.ObserveRequest(r.Method, r.URL.Path, strconv.Itoa(ww.Status()), elapsed)
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Error("failed to write response", zap.Error(err))
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}
