// Package api provides the HTTP server and handlers.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/filedepot/filedepot/internal/cache"
	"github.com/filedepot/filedepot/internal/domain"
	"github.com/filedepot/filedepot/internal/hierarchy"
	"github.com/filedepot/filedepot/internal/logging"
	"github.com/filedepot/filedepot/internal/metadata"
	"github.com/filedepot/filedepot/internal/metrics"
	"github.com/filedepot/filedepot/internal/retrieve"
	"github.com/filedepot/filedepot/internal/session"
	"github.com/filedepot/filedepot/internal/upload"
	"github.com/filedepot/filedepot/internal/users"
)

// tokenHeader carries the session token on authenticated calls.
const tokenHeader = "X-Token"

// Server is the HTTP server.
type Server struct {
	store     metadata.Store
	cache     cache.Cache
	sessions  *session.Manager
	users     *users.Service
	hierarchy *hierarchy.Manager
	pipeline  *upload.Pipeline
	resolver  *retrieve.Resolver
}

// NewServer wires the HTTP surface over the service layer.
func NewServer(
	store metadata.Store,
	c cache.Cache,
	sessions *session.Manager,
	userSvc *users.Service,
	h *hierarchy.Manager,
	pipeline *upload.Pipeline,
	resolver *retrieve.Resolver,
) *Server {
	return &Server{
		store:     store,
		cache:     c,
		sessions:  sessions,
		users:     userSvc,
		hierarchy: h,
		pipeline:  pipeline,
		resolver:  resolver,
	}
}

// Handler returns the fully wired HTTP handler, middleware included.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /stats", s.handleStats)

	mux.HandleFunc("POST /users", s.handleRegister)
	mux.HandleFunc("GET /users/me", s.handleMe)
	mux.HandleFunc("GET /connect", s.handleConnect)
	mux.HandleFunc("GET /disconnect", s.handleDisconnect)

	mux.HandleFunc("POST /files", s.handleCreateFile)
	mux.HandleFunc("GET /files", s.handleListFiles)
	mux.HandleFunc("GET /files/{id}", s.handleGetFile)
	mux.HandleFunc("PUT /files/{id}/publish", s.handlePublish)
	mux.HandleFunc("PUT /files/{id}/unpublish", s.handleUnpublish)
	mux.HandleFunc("GET /files/{id}/data", s.handleGetFileData)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut},
		AllowedHeaders: []string{"Authorization", "Content-Type", tokenHeader},
	})

	return metrics.Middleware(requestLog(c.Handler(mux)))
}

// requestLog logs each request at debug level.
func requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logging.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path))
		next.ServeHTTP(w, r)
	})
}

// writeJSON sends v as a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("encode response", zap.Error(err))
	}
}

// writeError maps a service error to its status code and stable body.
// Messages for unauthorized and not-found outcomes are fixed so nothing
// about the cause (bad password vs expired token, absent vs private)
// leaks to the caller.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	case errors.Is(err, domain.ErrValidation):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": domain.Message(err, "Bad request")})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Not found"})
	case errors.Is(err, domain.ErrConflict):
		writeJSON(w, http.StatusConflict, map[string]string{"error": domain.Message(err, "Conflict")})
	default:
		logging.Error("request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}
}

// requester resolves the session token on r, if any.
func (s *Server) requester(r *http.Request) (string, error) {
	return s.sessions.Resolve(r.Context(), r.Header.Get(tokenHeader))
}
