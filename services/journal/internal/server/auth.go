package server

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"dropjournal/services/journal/internal/app"
)

type authRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type preferencesRequest struct {
	PreferredTheme          *string         `json:"preferredTheme"`
	NotificationPreferences map[string]bool `json:"notificationPreferences"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if !s.allowRate(w, r, s.signupLimiter, "too many signup attempts") {
		s.audit(r, "journal.register", "rate_limited")
		return
	}
	var req authRequest
	if err := decodeJSON(r, &req); err != nil {
		s.audit(r, "journal.register", "fail", "reason", "invalid_json")
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	res, err := s.app.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		s.audit(r, "journal.register", "fail", "reason", err.Error())
		s.writeAppError(w, r, err)
		return
	}
	s.audit(r, "journal.register", "success", "user_id", res.User.ID)
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.allowRate(w, r, s.loginLimiter, "too many login attempts") {
		s.audit(r, "journal.login", "rate_limited")
		return
	}
	var req authRequest
	if err := decodeJSON(r, &req); err != nil {
		s.audit(r, "journal.login", "fail", "reason", "invalid_json")
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	res, err := s.app.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.audit(r, "journal.login", "fail", "reason", err.Error())
		s.writeAppError(w, r, err)
		return
	}
	s.audit(r, "journal.login", "success", "user_id", res.User.ID)
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if !s.allowRate(w, r, s.refreshLimiter, "too many refresh attempts") {
		s.audit(r, "journal.refresh", "rate_limited")
		return
	}
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		s.audit(r, "journal.refresh", "fail", "reason", "invalid_json")
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.RefreshToken) == "" {
		s.audit(r, "journal.refresh", "fail", "reason", "missing_refresh_token")
		writeError(w, http.StatusBadRequest, "refreshToken is required")
		return
	}
	res, err := s.app.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		s.audit(r, "journal.refresh", "fail", "reason", err.Error())
		s.writeAppError(w, r, err)
		return
	}
	s.audit(r, "journal.refresh", "success", "user_id", res.User.ID)
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		s.audit(r, "journal.logout", "fail", "reason", "invalid_json")
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	token, ok := bearerToken(r)
	if !ok {
		s.audit(r, "journal.logout", "fail", "reason", "missing_token")
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := s.app.Logout(r.Context(), token, req.RefreshToken); err != nil {
		s.audit(r, "journal.logout", "fail", "reason", err.Error())
		s.writeAppError(w, r, err)
		return
	}
	s.audit(r, "journal.logout", "success")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleJWKS(w http.ResponseWriter, _ *http.Request) {
	keys := s.app.JWKS()
	if keys == nil {
		writeError(w, http.StatusNotFound, "no public signing keys")
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=300")
	writeJSON(w, http.StatusOK, map[string]any{"keys": keys})
}

func (s *Server) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleUpdatePreferences(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())
	var req preferencesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	updated, err := s.app.UpdatePreferences(r.Context(), user, app.PreferencesPatch{
		PreferredTheme:          req.PreferredTheme,
		NotificationPreferences: req.NotificationPreferences,
	})
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}
