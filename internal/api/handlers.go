package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/filedepot/filedepot/internal/domain"
	"github.com/filedepot/filedepot/internal/hierarchy"
	"github.com/filedepot/filedepot/internal/logging"
	"github.com/filedepot/filedepot/internal/metrics"
)

// handleStatus reports reachability of the cache and the metadata store.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	writeJSON(w, http.StatusOK, map[string]bool{
		"redis": s.cache.Ping(ctx) == nil,
		"db":    s.store.Ping(ctx) == nil,
	})
}

// handleStats reports total user and file counts.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	nUsers, err := s.store.CountUsers(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	nFiles, err := s.store.CountFiles(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"users": nUsers, "files": nFiles})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, domain.Validation("Bad request"))
		return
	}
	user, err := s.users.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": user.ID, "email": user.Email})
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	token, err := s.sessions.Authenticate(r.Context(), r.Header.Get("Authorization"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Revoke(r.Context(), r.Header.Get(tokenHeader)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := s.sessions.UserFromToken(r.Context(), r.Header.Get(tokenHeader))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": user.ID, "email": user.Email})
}

func (s *Server) handleCreateFile(w http.ResponseWriter, r *http.Request) {
	ownerID, err := s.requester(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req hierarchy.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, domain.Validation("Bad request"))
		return
	}
	entry, err := s.pipeline.Create(r.Context(), ownerID, &req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	ownerID, err := s.requester(r)
	if err != nil {
		writeError(w, err)
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	entries, err := s.hierarchy.List(r.Context(), ownerID, r.URL.Query().Get("parentId"), page)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	ownerID, err := s.requester(r)
	if err != nil {
		writeError(w, err)
		return
	}
	entry, err := s.hierarchy.Get(r.Context(), r.PathValue("id"), ownerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	s.setVisibility(w, r, true)
}

func (s *Server) handleUnpublish(w http.ResponseWriter, r *http.Request) {
	s.setVisibility(w, r, false)
}

func (s *Server) setVisibility(w http.ResponseWriter, r *http.Request, public bool) {
	ownerID, err := s.requester(r)
	if err != nil {
		writeError(w, err)
		return
	}
	entry, err := s.hierarchy.SetVisibility(r.Context(), r.PathValue("id"), ownerID, public)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// handleGetFileData streams an entry's content or a thumbnail variant.
// The token is optional here: an invalid or absent one just means an
// anonymous requester, which the resolver treats like any non-owner.
func (s *Server) handleGetFileData(w http.ResponseWriter, r *http.Request) {
	requesterID, err := s.requester(r)
	if err != nil {
		requesterID = ""
	}
	result, err := s.resolver.Resolve(r.Context(), r.PathValue("id"), requesterID, r.URL.Query().Get("size"))
	if err != nil {
		writeError(w, err)
		return
	}
	defer result.Body.Close()

	w.Header().Set("Content-Type", result.ContentType)
	if result.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(result.Size, 10))
	}
	n, err := io.Copy(w, result.Body)
	if err != nil {
		logging.Warn("content stream interrupted", zap.Error(err), zap.Int64("written", n))
		metrics.RecordContentDownload(n, false)
		return
	}
	metrics.RecordContentDownload(n, true)
}
