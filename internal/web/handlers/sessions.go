package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dkadlec/presence/internal/camera"
	"github.com/dkadlec/presence/internal/session"
	"github.com/dkadlec/presence/internal/vision"
)

// SessionState is the lifecycle state of an attendance session.
type SessionState string

// SessionState constants define the lifecycle of a session.
const (
	SessionPending   SessionState = "pending"
	SessionStreaming SessionState = "streaming"
	SessionDone      SessionState = "done"
	SessionCancelled SessionState = "cancelled"
)

// Session is one attendance-taking session. Created via the API, it stays
// pending until a client attaches to its stream; exactly one stream may
// attach.
type Session struct {
	ID        string    `json:"id"`
	Recorder  string    `json:"recorder"`
	Subject   string    `json:"subject"`
	StartedAt time.Time `json:"started_at"`

	eligible []string

	mu     sync.Mutex
	state  SessionState
	phase  session.Phase
	cancel context.CancelFunc
}

// State returns the current lifecycle state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Phase returns the last observed controller phase.
func (s *Session) Phase() session.Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func (s *Session) setPhase(p session.Phase) {
	s.mu.Lock()
	s.phase = p
	s.mu.Unlock()
}

// beginStream claims the session for one stream client.
func (s *Session) beginStream(cancel context.CancelFunc) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != SessionPending {
		return false
	}
	s.state = SessionStreaming
	s.cancel = cancel
	return true
}

func (s *Session) finishStream() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == SessionStreaming {
		s.state = SessionDone
	}
	s.cancel = nil
}

// Cancel ends the session; a running stream is torn down.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	s.state = SessionCancelled
}

// SessionManager tracks the sessions by ID.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionManager creates a new session manager.
func NewSessionManager() *SessionManager {
	return &SessionManager{sessions: make(map[string]*Session)}
}

// Create registers a new pending session.
func (m *SessionManager) Create(recorder, subject string, eligible []string) *Session {
	s := &Session{
		ID:        uuid.New().String(),
		Recorder:  recorder,
		Subject:   subject,
		StartedAt: time.Now(),
		eligible:  eligible,
		state:     SessionPending,
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s
}

// Get retrieves a session by ID.
func (m *SessionManager) Get(id string) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[id]
}

// Delete removes a session.
func (m *SessionManager) Delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// List returns all sessions.
func (m *SessionManager) List() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	return sessions
}

// CancelAll ends every session, for server shutdown.
func (m *SessionManager) CancelAll() {
	for _, s := range m.List() {
		s.Cancel()
	}
}

// SessionsHandler handles the session endpoints.
type SessionsHandler struct {
	deps    Deps
	manager *SessionManager
}

// NewSessionsHandler creates a new sessions handler.
func NewSessionsHandler(deps Deps, manager *SessionManager) *SessionsHandler {
	return &SessionsHandler{deps: deps, manager: manager}
}

type startSessionRequest struct {
	Recorder string   `json:"recorder"`
	Subject  string   `json:"subject"`
	Section  string   `json:"section"`
	Semester int      `json:"semester"`
	Eligible []string `json:"eligible"`
}

type sessionResponse struct {
	ID        string    `json:"id"`
	Recorder  string    `json:"recorder"`
	Subject   string    `json:"subject"`
	State     string    `json:"state"`
	Phase     string    `json:"phase"`
	StartedAt time.Time `json:"started_at"`
	StreamURL string    `json:"stream_url"`
}

func sessionToResponse(s *Session) sessionResponse {
	return sessionResponse{
		ID:        s.ID,
		Recorder:  s.Recorder,
		Subject:   s.Subject,
		State:     string(s.State()),
		Phase:     s.Phase().String(),
		StartedAt: s.StartedAt,
		StreamURL: "/api/v1/sessions/" + s.ID + "/stream",
	}
}

// Start creates a new pending session.
func (h *SessionsHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.Recorder == "" {
		respondError(w, http.StatusBadRequest, "recorder is required")
		return
	}
	if req.Subject == "" {
		respondError(w, http.StatusBadRequest, "subject is required")
		return
	}

	// An explicit name list scopes the session directly; with a roster
	// and a section, that section's students become the scope instead.
	// Neither means every enrolled identity is eligible.
	eligible := req.Eligible
	if eligible == nil && h.deps.Roster != nil && req.Section != "" {
		names, err := h.deps.Roster.EligibleNames(r.Context(), req.Section, req.Semester)
		if err != nil {
			log.Printf("session start: roster lookup failed: %v", err)
			respondError(w, http.StatusInternalServerError, "failed to load roster")
			return
		}
		eligible = names
	}

	s := h.manager.Create(req.Recorder, req.Subject, eligible)
	log.Printf("Session %s created by %s for %s", s.ID, sanitizeForLog(req.Recorder), sanitizeForLog(req.Subject))
	respondJSON(w, http.StatusCreated, sessionToResponse(s))
}

// List returns all sessions.
func (h *SessionsHandler) List(w http.ResponseWriter, r *http.Request) {
	sessions := h.manager.List()
	out := make([]sessionResponse, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, sessionToResponse(s))
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"sessions": out,
		"count":    len(out),
	})
}

// Status returns one session.
func (h *SessionsHandler) Status(w http.ResponseWriter, r *http.Request) {
	s := h.manager.Get(chi.URLParam(r, "id"))
	if s == nil {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}
	respondJSON(w, http.StatusOK, sessionToResponse(s))
}

// Stream attaches the client to the session's MJPEG stream and drives the
// session until it ends or the client disconnects.
func (h *SessionsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	s := h.manager.Get(chi.URLParam(r, "id"))
	if s == nil {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if !s.beginStream(cancel) {
		respondError(w, http.StatusConflict, "session already streamed")
		return
	}
	defer s.finishStream()

	source, err := h.deps.NewSource()
	if err != nil {
		if !errors.Is(err, camera.ErrDeviceUnavailable) {
			log.Printf("session %s: camera open failed: %v", s.ID, err)
			respondError(w, http.StatusServiceUnavailable, "camera unavailable")
			return
		}
		// An absent camera still gets a live stream: the controller
		// degrades to its persistent error frame.
		log.Printf("session %s: camera unavailable: %v", s.ID, err)
		source = unavailableSource{}
	}

	opts := h.deps.SessionOpts
	opts.Recorder = s.Recorder
	opts.Subject = s.Subject
	opts.Eligible = s.eligible

	controller := session.New(source, h.deps.Extractor, h.deps.Gallery, h.deps.Ledger, h.deps.Matcher, opts)

	w.Header().Set("Content-Type", session.StreamContentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	stream := session.NewMJPEGStream(w)
	err = controller.Run(ctx, func(jpeg []byte) error {
		s.setPhase(controller.Phase())
		return stream.Emit(jpeg)
	})
	if err != nil {
		log.Printf("session %s: stream ended with error: %v", s.ID, err)
		return
	}
	s.setPhase(controller.Phase())
	log.Printf("Session %s finished in phase %s", s.ID, controller.Phase())
}

// unavailableSource stands in for a camera that failed to open: every read
// reports the device unavailable, keeping the stream on the error frame.
type unavailableSource struct{}

func (unavailableSource) ReadFrame() (*vision.Frame, error) {
	return nil, camera.ErrDeviceUnavailable
}

func (unavailableSource) Close() error { return nil }

// Cancel ends and removes a session.
func (h *SessionsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s := h.manager.Get(id)
	if s == nil {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}

	s.Cancel()
	h.manager.Delete(id)
	respondJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}
