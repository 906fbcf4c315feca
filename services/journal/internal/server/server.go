package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"dropjournal/internal/util"
	"dropjournal/pkg/domain"
	"dropjournal/services/journal/internal/app"
)

const maxBodyBytes = 1 << 20

// RateLimiter decides whether a caller key may proceed.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, time.Duration)
}

// Config wires required dependencies for the HTTP server.
type Config struct {
	App *app.App
	// Limiters are optional; a nil limiter disables limiting for that route.
	SignupLimiter  RateLimiter
	LoginLimiter   RateLimiter
	RefreshLimiter RateLimiter
	AllowedOrigins []string
	TrustedProxies *util.TrustedProxies
}

// Server exposes the journal HTTP API.
type Server struct {
	app            *app.App
	mux            *http.ServeMux
	signupLimiter  RateLimiter
	loginLimiter   RateLimiter
	refreshLimiter RateLimiter
	allowedOrigins []string
	trustedProxies *util.TrustedProxies
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("app required")
	}
	s := &Server{
		app:            cfg.App,
		mux:            http.NewServeMux(),
		signupLimiter:  cfg.SignupLimiter,
		loginLimiter:   cfg.LoginLimiter,
		refreshLimiter: cfg.RefreshLimiter,
		allowedOrigins: cfg.AllowedOrigins,
		trustedProxies: cfg.TrustedProxies,
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithSecurityHeaders(
		util.WithCORS(s.allowedOrigins,
			util.WithRequestID(
				util.WithRequestLog(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	// auth
	s.mux.HandleFunc("POST /api/auth/register", s.handleRegister)
	s.mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	s.mux.HandleFunc("POST /api/auth/refresh", s.handleRefresh)
	s.mux.HandleFunc("POST /api/auth/logout", s.handleLogout)
	s.mux.HandleFunc("GET /api/auth/jwks", s.handleJWKS)
	s.mux.HandleFunc("GET /.well-known/jwks.json", s.handleJWKS)
	s.mux.Handle("GET /api/auth/user", s.authenticated(s.handleCurrentUser))
	s.mux.Handle("GET /api/user", s.authenticated(s.handleCurrentUser))
	s.mux.Handle("PATCH /api/users/me", s.authenticated(s.handleUpdatePreferences))

	// prompts
	s.mux.Handle("GET /api/prompts/today", s.authenticated(s.handleTodayPrompt))

	// journal
	s.mux.Handle("POST /api/journal/entries", s.authenticated(s.handleCreateEntry))
	s.mux.Handle("GET /api/journal/entries", s.authenticated(s.handleListEntries))
	s.mux.Handle("GET /api/journal/entries/{id}", s.authenticated(s.handleGetEntry))
	s.mux.Handle("PATCH /api/journal/entries/{id}", s.authenticated(s.handleUpdateEntry))
	s.mux.Handle("POST /api/journal/entries/{id}/conversations", s.authenticated(s.handleStartConversation))
	s.mux.Handle("GET /api/journal/entries/{id}/conversations", s.authenticated(s.handleGetConversation))
	s.mux.Handle("POST /api/journal/entries/{id}/conversations/messages", s.authenticated(s.handleSendMessage))
	s.mux.Handle("GET /api/journal/entries/{id}/tags", s.authenticated(s.handleListEntryTags))
	s.mux.Handle("POST /api/journal/entries/{id}/tags", s.authenticated(s.handleAddEntryTag))
	s.mux.Handle("DELETE /api/journal/entries/{id}/tags/{tagId}", s.authenticated(s.handleRemoveEntryTag))
	s.mux.Handle("POST /api/journal/export", s.authenticated(s.handleExport))

	// tags
	s.mux.Handle("GET /api/tags", s.authenticated(s.handleListTags))
	s.mux.Handle("GET /api/tags/{id}/entries", s.authenticated(s.handleEntriesByTag))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type userContextKey struct{}

func userFromContext(ctx context.Context) (domain.User, bool) {
	user, ok := ctx.Value(userContextKey{}).(domain.User)
	return user, ok
}

// authenticated resolves the bearer token and hands the user to next through
// the request context.
func (s *Server) authenticated(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			s.audit(r, "journal.authorize", "fail", "reason", "missing_token")
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		user, err := s.app.Authenticate(r.Context(), token)
		if err != nil {
			s.audit(r, "journal.authorize", "fail", "reason", "invalid_token")
			s.writeAppError(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), userContextKey{}, user)
		ctx = util.ContextWithLogger(ctx, util.LoggerFromContext(ctx).With("user_id", user.ID))
		next(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) < len("Bearer ") || !strings.EqualFold(header[:len("Bearer ")], "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(header[len("Bearer "):])
	return token, token != ""
}

func decodeJSON(r *http.Request, dst any) error {
	return json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeAppError maps application errors to HTTP statuses. Unknown errors are
// logged with the request id and reported generically.
func (s *Server) writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		util.LoggerFromContext(r.Context()).Error("request failed", "path", r.URL.Path, "err", err)
		writeError(w, status, "internal server error")
		return
	}
	if status == http.StatusBadGateway {
		util.LoggerFromContext(r.Context()).Warn("upstream failed", "path", r.URL.Path, "err", err)
		writeError(w, status, app.ErrUpstream.Error())
		return
	}
	writeError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, app.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, app.ErrUnauthorized), errors.Is(err, app.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, app.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, app.ErrEntryNotFound),
		errors.Is(err, app.ErrConversationNotFound),
		errors.Is(err, app.ErrTagNotFound),
		errors.Is(err, app.ErrPromptNotFound):
		return http.StatusNotFound
	case errors.Is(err, app.ErrEntryExists),
		errors.Is(err, app.ErrConversationExists),
		errors.Is(err, app.ErrEmailAlreadyExists),
		errors.Is(err, app.ErrMessageLimit):
		return http.StatusConflict
	case errors.Is(err, app.ErrUpstream):
		return http.StatusBadGateway
	case errors.Is(err, app.ErrExportDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", util.ClientIP(r, s.trustedProxies),
	}
	logAttrs = append(logAttrs, attrs...)
	logger := util.LoggerFromContext(r.Context())
	if outcome == "success" {
		logger.Info("security_event", logAttrs...)
		return
	}
	logger.Warn("security_event", logAttrs...)
}

func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter RateLimiter, msg string) bool {
	if limiter == nil {
		return true
	}
	key := r.URL.Path + "|" + util.ClientIP(r, s.trustedProxies)
	ok, retryAfter := limiter.Allow(r.Context(), key)
	if ok {
		return true
	}
	seconds := int((retryAfter + time.Second - 1) / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
	writeError(w, http.StatusTooManyRequests, msg)
	return false
}
