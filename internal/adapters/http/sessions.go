package httpadapter

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/PabloGalante/farum-studio/internal/domain"
)

type sessionResponse struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	CreatedAt    int64  `json:"created_at"`
	MessageCount int    `json:"message_count"`
	Active       bool   `json:"active"`
	InContext    bool   `json:"in_context"`
}

type listSessionsResponse struct {
	ActiveID  string            `json:"active_id"`
	WebSearch bool              `json:"web_search"`
	CanSend   bool              `json:"can_send"`
	Sessions  []sessionResponse `json:"sessions"`
}

type createSessionRequest struct {
	// Activate defaults to true when omitted.
	Activate *bool `json:"activate,omitempty"`
}

type createSessionResponse struct {
	ID string `json:"id"`
}

type renameSessionRequest struct {
	Title string `json:"title"`
}

type toggleContextResponse struct {
	Selected bool     `json:"selected"`
	Context  []string `json:"context"`
}

type searchRequest struct {
	Enabled bool `json:"enabled"`
}

func sessionID(r *http.Request) domain.SessionID {
	return domain.SessionID(mux.Vars(r)["id"])
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}

	snap := ws.Sessions.Snapshot()
	inContext := make(map[domain.SessionID]bool, len(snap.Context))
	for _, id := range snap.Context {
		inContext[id] = true
	}

	resp := listSessionsResponse{
		ActiveID:  string(snap.ActiveID),
		WebSearch: ws.Binder.WebSearch(),
		CanSend:   ws.Conversation.CanSend(r.Context()),
		Sessions:  make([]sessionResponse, 0, len(snap.Sessions)),
	}
	for _, sess := range snap.Sessions {
		resp.Sessions = append(resp.Sessions, sessionResponse{
			ID:           string(sess.ID),
			Title:        sess.Title,
			CreatedAt:    sess.CreatedAt,
			MessageCount: len(sess.Messages),
			Active:       sess.ID == snap.ActiveID,
			InContext:    inContext[sess.ID],
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}

	var req createSessionRequest
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}
	activate := req.Activate == nil || *req.Activate

	id := ws.Sessions.CreateSession(r.Context(), activate)
	writeJSON(w, http.StatusCreated, createSessionResponse{ID: string(id)})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	if err := ws.Sessions.DeleteSession(r.Context(), sessionID(r)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRenameSession(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}

	var req renameSessionRequest
	if !decode(w, r, &req) {
		return
	}
	if err := ws.Sessions.RenameSession(r.Context(), sessionID(r), req.Title); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleActivateSession(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	if err := ws.Sessions.SwitchSession(sessionID(r)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleToggleContext refuses the active session; it is always part of the
// history anyway.
func (s *Server) handleToggleContext(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}

	id := sessionID(r)
	if _, found := ws.Sessions.Session(id); !found {
		writeError(w, r, fmt.Errorf("session %s: %w", id, domain.ErrNotFound))
		return
	}
	if id == ws.Sessions.ActiveID() {
		writeJSON(w, http.StatusConflict, errorResponse{Error: "the active session cannot be added to the context"})
		return
	}

	selected := ws.Sessions.ToggleContext(id)
	ids := ws.Sessions.ContextIDs()
	resp := toggleContextResponse{Selected: selected, Context: make([]string, 0, len(ids))}
	for _, c := range ids {
		resp.Context = append(resp.Context, string(c))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSetSearch(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}

	var req searchRequest
	if !decode(w, r, &req) {
		return
	}
	ws.Binder.SetWebSearch(req.Enabled)
	w.WriteHeader(http.StatusNoContent)
}
