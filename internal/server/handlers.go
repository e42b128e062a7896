package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Barresider/FlareSolverr/internal/model"
	"github.com/Barresider/FlareSolverr/internal/port"
	"github.com/Barresider/FlareSolverr/internal/session"
)

// createSessionRequest is the body of POST /v1/sessions. All fields are
// optional: an empty session ID gets a generated one.
type createSessionRequest struct {
	Session        string `json:"session,omitempty"`
	IdleTTLMinutes int    `json:"idleTtlMinutes,omitempty"`
}

// sessionResponse is the wire form of one session.
type sessionResponse struct {
	Session      string    `json:"session"`
	DebugPort    int       `json:"debugPort"`
	DevtoolsURL  string    `json:"devtoolsUrl"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActivity time.Time `json:"lastActivity"`
	Unhealthy    bool      `json:"unhealthy,omitempty"`
}

// errorResponse is the wire form of every non-2xx answer.
type errorResponse struct {
	Error string `json:"error"`
}

// healthResponse reports service liveness and port-pool pressure.
type healthResponse struct {
	Status    string `json:"status"`
	Sessions  int    `json:"sessions"`
	PortRange string `json:"portRange"`
	Allocated int    `json:"allocated"`
	Capacity  int    `json:"capacity"`
}

func toSessionResponse(s model.Session) sessionResponse {
	return sessionResponse{
		Session:      s.ID,
		DebugPort:    s.DebugPort,
		DevtoolsURL:  s.DevtoolsURL,
		CreatedAt:    s.CreatedAt,
		LastActivity: s.LastActivity,
		Unhealthy:    s.Unhealthy,
	}
}

// handleCreateSession creates a session, or returns the existing one for a
// known ID. 201 signals a fresh session, 200 an existing one.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	}
	if req.IdleTTLMinutes < 0 {
		s.writeError(w, http.StatusBadRequest, "idleTtlMinutes must not be negative")
		return
	}

	opts := session.CreateOptions{
		IdleTimeout: time.Duration(req.IdleTTLMinutes) * time.Minute,
	}

	sess, created, err := s.storage.Create(r.Context(), req.Session, opts)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	s.writeJSON(w, status, toSessionResponse(sess))
}

// handleListSessions returns every live session.
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := s.storage.List()

	out := make([]sessionResponse, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, toSessionResponse(sess))
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": out,
		"count":    len(out),
	})
}

// handleGetSession describes one session, recreating it first when it has
// gone unhealthy or outlived the configured TTL.
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if !s.storage.Exists(id) {
		s.writeError(w, http.StatusNotFound, "session not found: "+id)
		return
	}

	sess, _, err := s.storage.Get(r.Context(), id, s.sessionTTL)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toSessionResponse(sess))
}

// handleDestroySession tears a session down. Unknown IDs are 404; the
// destroy itself never fails.
func (s *Server) handleDestroySession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if !s.storage.Destroy(r.Context(), id) {
		s.writeError(w, http.StatusNotFound, "session not found: "+id)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleHealth reports liveness plus port-pool pressure, so operators can
// see exhaustion coming before session creation starts failing.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	alloc := s.storage.Allocator()
	rng := alloc.Range()

	s.writeJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Sessions:  s.storage.Count(),
		PortRange: rng.String(),
		Allocated: alloc.Count(),
		Capacity:  rng.Size(),
	})
}

// writeDomainError maps session and allocator errors onto HTTP status
// codes.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, port.ErrNoPortsAvailable):
		// Every port in the range is held; the client can retry after a
		// session is destroyed, so 503 rather than a hard failure.
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, port.ErrDuplicateSession):
		s.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, model.ErrInvalidSessionID):
		s.writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.log.Error().Err(err).Msg("session operation failed")
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn().Err(err).Msg("failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}
