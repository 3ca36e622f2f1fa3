// Package httpapi exposes question answering and scraped fund data over
// HTTP. The surface is deliberately small: ask a question, check health,
// read stored records.
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/fundveille/fundveille/oracle"
	"github.com/fundveille/fundveille/query"
	"github.com/fundveille/fundveille/scrape"
)

// Server holds the services the HTTP handlers delegate to.
type Server struct {
	query   *query.Service
	scraper *scrape.Service
	oracle  *oracle.Client
	logger  *slog.Logger
}

// New builds a Server. logger defaults to slog.Default().
func New(q *query.Service, scraper *scrape.Service, orc *oracle.Client, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{query: q, scraper: scraper, oracle: orc, logger: logger}
}

// Router assembles the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Post("/ask", s.handleAsk)
	r.Get("/stats", s.handleStats)
	r.Get("/schemes/{code}", s.handleScheme)
	return r
}

type askRequest struct {
	Query string `json:"query"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if query.TooShort(req.Query) {
		s.writeError(w, http.StatusBadRequest, "query must be at least 3 characters")
		return
	}

	ans := s.query.Answer(r.Context(), req.Query)
	s.writeJSON(w, http.StatusOK, ans)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	if !s.oracle.Configured() {
		// Extractive fallback still answers, so degraded rather than down.
		status = "degraded"
	}

	resp := map[string]any{
		"status":            status,
		"oracle_configured": s.oracle.Configured(),
	}
	if stats, err := s.scraper.Stats(); err == nil {
		resp["schemes"] = stats.TotalSchemes
		resp["chunks"] = stats.TotalChunks
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"service": "fundveille",
		"ask":     "POST /ask {\"query\": \"...\"}",
		"health":  "GET /health",
	})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	stats, err := s.scraper.Stats()
	if err != nil {
		s.logger.Error("stats read failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleScheme(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	rec, err := s.scraper.Scheme(code)
	if err != nil {
		s.logger.Error("scheme read failed", "code", code, "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if rec == nil {
		s.writeError(w, http.StatusNotFound, "unknown scheme code")
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
