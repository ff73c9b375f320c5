// Package api exposes the chat, formatting and ingestion HTTP endpoints.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dgallion1/docchat/internal/chat"
	"github.com/dgallion1/docchat/internal/config"
	"github.com/dgallion1/docchat/internal/ingest"
	"github.com/dgallion1/docchat/internal/llm"
	"github.com/dgallion1/docchat/internal/source"
	"github.com/dgallion1/docchat/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server is the HTTP API server for docchat.
type Server struct {
	router chi.Router
	store  *store.Store
	chat   *chat.Service
	ingest *ingest.Orchestrator
	llm    *llm.Client
	log    *slog.Logger
	cfg    config.Config
	policy source.Policy
}

// NewServer creates and configures the HTTP server. llmClient may be nil,
// in which case the stats endpoint reports unavailable.
func NewServer(st *store.Store, chatSvc *chat.Service, orch *ingest.Orchestrator, llmClient *llm.Client, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		store:  st,
		chat:   chatSvc,
		ingest: orch,
		llm:    llmClient,
		log:    log,
		cfg:    cfg,
		policy: source.ParsePolicy(cfg.CitationPolicy),
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Post("/api/format", s.handleFormat)
		r.Post("/api/chat", s.handleChat)
		r.Get("/api/sessions", s.handleListSessions)
		r.Get("/api/sessions/{sessionID}/messages", s.handleSessionMessages)
		r.Delete("/api/sessions/{sessionID}", s.handleDeleteSession)

		r.Post("/api/ingest", s.handleIngest)
		r.Get("/api/ingest/{jobID}/status", s.handleIngestStatus)
		r.Post("/api/ingest/batch", s.handleBatchIngest)

		r.Get("/api/documents", s.handleListDocuments)
		r.Delete("/api/documents/{docID}", s.handleDeleteDocument)

		r.Get("/api/stats/llm", s.handleLLMStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		s.log.Error("health check failed", "error", err)
		jsonError(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}
