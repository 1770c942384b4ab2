package httpadapter

import (
	"net/http"

	"github.com/PabloGalante/farum-studio/internal/app/account"
	"github.com/PabloGalante/farum-studio/internal/domain"
)

type signUpRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type federatedRequest struct {
	Provider string `json:"provider"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
}

type userResponse struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Provider string `json:"provider"`
	Avatar   string `json:"avatar,omitempty"`
}

type credentialsRequest struct {
	ChatKey  *string `json:"chat_key,omitempty"`
	VideoKey *string `json:"video_key,omitempty"`
}

func toUserResponse(u *domain.User) userResponse {
	return userResponse{
		ID:       string(u.ID),
		Email:    u.Email,
		Username: u.Username,
		Provider: u.Provider,
		Avatar:   u.Avatar,
	}
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if !decode(w, r, &req) {
		return
	}

	user, err := s.users.SignUp(r.Context(), account.SignUpInput{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserResponse(user))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}

	user, err := s.users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

func (s *Server) handleLoginFederated(w http.ResponseWriter, r *http.Request) {
	var req federatedRequest
	if !decode(w, r, &req) {
		return
	}

	user, err := s.users.LoginFederated(r.Context(), account.FederatedIdentity{
		Provider: req.Provider,
		Email:    req.Email,
		Username: req.Username,
		Avatar:   req.Avatar,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// handleLogout signs out the caller named by UserHeader only.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	id := domain.UserID(r.Header.Get(UserHeader))
	if id == "" {
		writeError(w, r, domain.ErrUnauthorized)
		return
	}
	if err := s.users.Logout(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	s.workspaces.Forget(id)
	w.WriteHeader(http.StatusNoContent)
}

// handleMe resolves the caller from UserHeader, not from the last sign-in.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := s.users.ByID(r.Context(), domain.UserID(r.Header.Get(UserHeader)))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

func (s *Server) handleSetCredentials(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decode(w, r, &req) {
		return
	}

	if req.ChatKey != nil {
		if err := s.creds.SetChatKey(r.Context(), *req.ChatKey); err != nil {
			writeError(w, r, err)
			return
		}
	}
	if req.VideoKey != nil {
		if err := s.creds.SetVideoKey(r.Context(), *req.VideoKey); err != nil {
			writeError(w, r, err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}
