package httpadapter

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/PabloGalante/farum-studio/internal/app/account"
	"github.com/PabloGalante/farum-studio/internal/app/workspace"
	"github.com/PabloGalante/farum-studio/internal/domain"
	"github.com/PabloGalante/farum-studio/internal/observability"
)

// UserHeader carries the signed-in user on every workspace route.
const UserHeader = "X-User-ID"

type Server struct {
	workspaces *workspace.Registry
	users      *account.Users
	creds      *account.Credentials
}

func NewServer(workspaces *workspace.Registry, users *account.Users, creds *account.Credentials) http.Handler {
	s := &Server{workspaces: workspaces, users: users, creds: creds}
	r := mux.NewRouter()

	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	// Auth
	r.HandleFunc("/auth/signup", s.handleSignUp).Methods(http.MethodPost)
	r.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/auth/federated", s.handleLoginFederated).Methods(http.MethodPost)
	r.HandleFunc("/auth/logout", s.handleLogout).Methods(http.MethodPost)
	r.HandleFunc("/auth/me", s.handleMe).Methods(http.MethodGet)
	r.HandleFunc("/credentials", s.handleSetCredentials).Methods(http.MethodPut)

	// Sessions and context
	r.HandleFunc("/sessions", s.handleListSessions).Methods(http.MethodGet)
	r.HandleFunc("/sessions", s.handleCreateSession).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{id}", s.handleDeleteSession).Methods(http.MethodDelete)
	r.HandleFunc("/sessions/{id}", s.handleRenameSession).Methods(http.MethodPatch)
	r.HandleFunc("/sessions/{id}/activate", s.handleActivateSession).Methods(http.MethodPost)
	r.HandleFunc("/context/{id}/toggle", s.handleToggleContext).Methods(http.MethodPost)
	r.HandleFunc("/settings/search", s.handleSetSearch).Methods(http.MethodPut)

	// Generation
	r.HandleFunc("/messages", s.handleListMessages).Methods(http.MethodGet)
	r.HandleFunc("/messages", s.handleSendMessage).Methods(http.MethodPost)
	r.HandleFunc("/images", s.handleGenerateImage).Methods(http.MethodPost)
	r.HandleFunc("/videos", s.handleGenerateVideo).Methods(http.MethodPost)
	r.HandleFunc("/speech", s.handleSpeak).Methods(http.MethodPost)

	r.Use(withRequestID, withUser, withLogging)

	return withCORS(r)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// workspace resolves the caller's workspace from UserHeader.
func (s *Server) workspace(w http.ResponseWriter, r *http.Request) (*workspace.Workspace, bool) {
	ws, err := s.workspaces.Get(r.Context(), domain.UserID(r.Header.Get(UserHeader)))
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}
	return ws, true
}

// ─────────────────────────────────────────────
// HTTP Helpers
// ─────────────────────────────────────────────

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// writeError maps domain errors onto status codes. Unknown errors are
// logged and reported as 500 without detail.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	resp := errorResponse{Error: err.Error()}
	var appErr *domain.AppError
	if errors.As(err, &appErr) {
		resp.Code = appErr.Code
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrChatUnavailable):
		status = http.StatusPreconditionFailed
	case appErr != nil && appErr.Code == domain.ErrCodeCredit:
		status = http.StatusTooManyRequests
	case appErr != nil && appErr.Code == domain.ErrCodeUpstream:
		status = http.StatusBadGateway
	}

	if status == http.StatusInternalServerError {
		observability.LoggerFromContext(r.Context()).Error("request failed", "path", r.URL.Path, "err", err)
		resp.Error = "internal server error"
	}
	writeJSON(w, status, resp)
}
