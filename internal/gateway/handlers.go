package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/FabG/chainlit-ui/internal/runtime"
	"github.com/FabG/chainlit-ui/pkg/types"
)

// CreateSessionRequest represents the request body for creating a session.
// All fields are optional; an omitted ID is generated server side.
type CreateSessionRequest struct {
	ID      string      `json:"id,omitempty"`
	Profile *string     `json:"profile,omitempty"`
	User    *types.User `json:"user,omitempty"`
}

// listSessions handles GET /session
func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	sessions := s.registry.List()

	// Ensure we return an empty array [] instead of null
	if sessions == nil {
		sessions = []*types.SessionInfo{}
	}

	writeJSON(w, http.StatusOK, sessions)
}

// createSession handles POST /session
func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid JSON body")
			return
		}
	}

	sess, err := s.registry.Create(r.Context(), runtime.CreateOptions{
		ID:      req.ID,
		Profile: req.Profile,
		User:    req.User,
	})
	if err != nil {
		writeRuntimeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sess.Info())
}

// getSession handles GET /session/{sessionID}
func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.registry.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeRuntimeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sess.Info())
}

// deleteSession handles DELETE /session/{sessionID}
func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.Destroy(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		writeRuntimeError(w, err)
		return
	}

	writeSuccess(w)
}

// SendMessageRequest represents the request body for sending a user message.
type SendMessageRequest struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// sendMessage handles POST /session/{sessionID}/message
func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	sess, err := s.registry.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeRuntimeError(w, err)
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid JSON body")
		return
	}
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "content is required")
		return
	}

	msg, err := sess.HandleMessage(r.Context(), req.Content, req.Metadata)
	if err != nil {
		writeRuntimeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, msg)
}

// getMessages handles GET /session/{sessionID}/message
func (s *Server) getMessages(w http.ResponseWriter, r *http.Request) {
	sess, err := s.registry.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeRuntimeError(w, err)
		return
	}

	msgs := sess.Chat().Messages()
	if msgs == nil {
		msgs = []*types.Message{}
	}

	writeJSON(w, http.StatusOK, msgs)
}

// getSteps handles GET /session/{sessionID}/steps
func (s *Server) getSteps(w http.ResponseWriter, r *http.Request) {
	sess, err := s.registry.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeRuntimeError(w, err)
		return
	}

	steps := sess.Steps()
	if steps == nil {
		steps = []*types.Step{}
	}

	writeJSON(w, http.StatusOK, steps)
}

// stopSession handles POST /session/{sessionID}/stop
func (s *Server) stopSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.registry.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeRuntimeError(w, err)
		return
	}

	if err := sess.Stop(r.Context()); err != nil {
		writeRuntimeError(w, err)
		return
	}

	writeSuccess(w)
}

// invokeAction handles POST /session/{sessionID}/action/{name}. The request
// body, if any, is the action payload as raw JSON.
func (s *Server) invokeAction(w http.ResponseWriter, r *http.Request) {
	sess, err := s.registry.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeRuntimeError(w, err)
		return
	}

	var payload types.Value
	if r.ContentLength > 0 {
		var raw json.RawMessage
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid JSON body")
			return
		}
		payload = types.RawValue(raw)
	}

	if err := sess.HandleAction(r.Context(), chi.URLParam(r, "name"), payload); err != nil {
		writeRuntimeError(w, err)
		return
	}

	writeSuccess(w)
}

// ResumeSessionRequest represents the request body for resuming a session.
type ResumeSessionRequest struct {
	Profile *string     `json:"profile,omitempty"`
	User    *types.User `json:"user,omitempty"`
}

// resumeSession handles POST /session/{sessionID}/resume. The transcript is
// loaded from the history backend.
func (s *Server) resumeSession(w http.ResponseWriter, r *http.Request) {
	var req ResumeSessionRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid JSON body")
			return
		}
	}

	sess, err := s.registry.Resume(r.Context(), runtime.CreateOptions{
		ID:      chi.URLParam(r, "sessionID"),
		Profile: req.Profile,
		User:    req.User,
	}, nil)
	if err != nil {
		writeRuntimeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sess.Info())
}

// getStarters handles GET /starters
func (s *Server) getStarters(w http.ResponseWriter, r *http.Request) {
	starters := s.registry.Hooks().StartersFor(r.Context())
	if starters == nil {
		starters = []types.Starter{}
	}

	writeJSON(w, http.StatusOK, starters)
}

// getProfiles handles GET /profiles
func (s *Server) getProfiles(w http.ResponseWriter, r *http.Request) {
	profiles := s.registry.Hooks().ProfilesFor(r.Context(), nil)
	if profiles == nil {
		profiles = []types.ChatProfile{}
	}

	writeJSON(w, http.StatusOK, profiles)
}

// LoginRequest represents the request body for logging in.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// login handles POST /auth/login
func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid JSON body")
		return
	}

	user, err := s.registry.Hooks().Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, runtime.ErrAuthNotConfigured) {
			writeError(w, http.StatusNotImplemented, ErrCodeNotConfigured, "authentication is not configured")
			return
		}
		writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid credentials")
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// health handles GET /health
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": len(s.registry.List()),
	})
}
