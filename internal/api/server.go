// Package api exposes the REST surface: loads and their nested legs,
// stops and assignments, the carrier and customer directory, document
// sessions, billing, full text search, and the agent chat endpoints.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"machtms/internal/agent"
	"machtms/internal/auth"
	"machtms/internal/billing"
	"machtms/internal/cache"
	"machtms/internal/documents"
	"machtms/internal/observability/metrics"
	"machtms/internal/search"
	"machtms/internal/task"
	"machtms/internal/tms"
	"machtms/pkg/logger"
)

// ResponseCache is what the list routes need from the response cache.
type ResponseCache interface {
	Get(ctx context.Context, orgID, route, query string) (*cache.Entry, error)
	Save(ctx context.Context, orgID, route, query string, data []byte, idList []string) (bool, error)
	Invalidate(ctx context.Context, orgID, route, id string) (int, error)
}

// Deps collects everything the HTTP layer serves. Auth is required;
// the rest may be nil, disabling the routes they back.
type Deps struct {
	Auth      *auth.Service
	TMS       *tms.Service
	Documents *documents.Service
	Billing   *billing.Service
	Gmail     *billing.GmailSender
	Search    *search.Service
	Agent     agent.Runner
	Cache     ResponseCache
	Tasks     *task.Service
}

// Server is the REST API.
type Server struct {
	deps Deps
	log  *slog.Logger
}

// NewServer builds the API on the given services.
func NewServer(deps Deps) *Server {
	return &Server{deps: deps, log: logger.Named("api")}
}

// Handler assembles the routing table. Everything under /api/v1 except
// the token endpoints requires authentication.
func (s *Server) Handler() http.Handler {
	protected := http.NewServeMux()

	s.registerLoadRoutes(protected)
	s.registerAssignmentRoutes(protected)
	s.registerDirectoryRoutes(protected)
	s.registerDocumentRoutes(protected)
	s.registerBillingRoutes(protected)
	s.registerSearchRoutes(protected)
	s.registerAgentRoutes(protected)

	protected.Handle("GET /api/v1/tasks/{id}", s.handle("tasks.get", s.getTask))

	root := http.NewServeMux()
	root.Handle("POST /api/v1/auth/token", s.handle("auth.token", s.issueToken))
	root.Handle("POST /api/v1/auth/refresh", s.handle("auth.refresh", s.refreshToken))
	root.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	guard := s.deps.Auth.Middleware(auth.MiddlewareConfig{})
	root.Handle("/api/v1/", guard(protected))
	return root
}

// handle wraps a handler func with per-route metrics.
func (s *Server) handle(name string, fn http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		mw := &metricsWriter{ResponseWriter: w, status: http.StatusOK}
		fn(mw, r)
		metrics.ObserveHTTPRequest(name, r.Method, mw.status, time.Since(start))
	})
}

type metricsWriter struct {
	http.ResponseWriter
	status int
}

func (w *metricsWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *metricsWriter) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (s *Server) issueToken(w http.ResponseWriter, r *http.Request) {
	var req auth.TokenRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	pair, err := s.deps.Auth.Authenticate(r.Context(), req)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

func (s *Server) refreshToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	pair, err := s.deps.Auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid refresh token"})
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	if s.deps.Tasks == nil {
		writeJSON(w, http.StatusNotFound, nil)
		return
	}
	t, err := s.deps.Tasks.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if t.OrgID != auth.OrgFromContext(r.Context()) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "task not found"})
		return
	}
	writeJSON(w, http.StatusOK, t)
}
