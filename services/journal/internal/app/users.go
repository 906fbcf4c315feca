package app

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"dropjournal/internal/util"
	"dropjournal/pkg/auth"
	"dropjournal/pkg/domain"
	"dropjournal/pkg/session"
	"dropjournal/pkg/store"
)

// AuthResult is returned by every operation that starts or renews a session.
type AuthResult struct {
	User         domain.User `json:"user"`
	Token        string      `json:"token"`
	ExpiresAt    time.Time   `json:"expiresAt"`
	RefreshToken string      `json:"refreshToken"`
}

// PreferencesPatch holds optional profile changes; nil fields are left alone.
type PreferencesPatch struct {
	PreferredTheme          *string
	NotificationPreferences map[string]bool
}

// Register creates an account and signs the user in.
func (a *App) Register(ctx context.Context, email, password string) (AuthResult, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return AuthResult{}, err
	}
	if err := auth.ValidatePassword(password); err != nil {
		return AuthResult{}, fmt.Errorf("%w: %s", ErrInvalidInput, err.Error())
	}
	if _, ok, err := a.store.GetUserByEmail(ctx, email); err != nil {
		return AuthResult{}, fmt.Errorf("check email: %w", err)
	} else if ok {
		return AuthResult{}, ErrEmailAlreadyExists
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return AuthResult{}, err
	}
	now := a.now().UTC()
	user := domain.User{
		ID:                      util.NewID(),
		Email:                   email,
		PasswordHash:            hash,
		PreferredTheme:          domain.ThemeCozy,
		NotificationPreferences: map[string]bool{},
		LastLoginAt:             &now,
		CreatedAt:               now,
		UpdatedAt:               now,
	}
	if err := a.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return AuthResult{}, ErrEmailAlreadyExists
		}
		return AuthResult{}, fmt.Errorf("create user: %w", err)
	}
	return a.issueTokens(ctx, user)
}

// Login validates credentials, records the login time and issues tokens.
func (a *App) Login(ctx context.Context, email, password string) (AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return AuthResult{}, ErrInvalidCredentials
	}
	user, ok, err := a.store.GetUserByEmail(ctx, email)
	if err != nil {
		return AuthResult{}, fmt.Errorf("fetch user: %w", err)
	}
	if !ok || !auth.CheckPassword(password, user.PasswordHash) {
		return AuthResult{}, ErrInvalidCredentials
	}
	now := a.now().UTC()
	user.LastLoginAt = &now
	user.UpdatedAt = now
	if err := a.store.UpdateUser(ctx, user); err != nil {
		return AuthResult{}, fmt.Errorf("record login: %w", err)
	}
	return a.issueTokens(ctx, user)
}

// Refresh rotates a refresh token and issues a new access token.
func (a *App) Refresh(ctx context.Context, refreshToken string) (AuthResult, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return AuthResult{}, invalid("refreshToken is required")
	}
	userID, next, err := a.refreshTokens.Rotate(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, session.ErrInvalidRefreshToken) || errors.Is(err, session.ErrRefreshTokenReplay) {
			return AuthResult{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
		}
		return AuthResult{}, fmt.Errorf("rotate refresh token: %w", err)
	}
	user, ok, err := a.store.GetUserByID(ctx, userID)
	if err != nil {
		return AuthResult{}, fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		_ = a.refreshTokens.Revoke(ctx, next)
		return AuthResult{}, ErrUnauthorized
	}
	token, expires, err := a.sessions.Issue(user.ID)
	if err != nil {
		return AuthResult{}, err
	}
	return AuthResult{User: user, Token: token, ExpiresAt: expires, RefreshToken: next}, nil
}

// Logout revokes the access token and, when given, the refresh token family.
func (a *App) Logout(ctx context.Context, accessToken, refreshToken string) error {
	if err := a.sessions.Revoke(ctx, accessToken); err != nil {
		if errors.Is(err, session.ErrInvalidToken) || errors.Is(err, session.ErrRevokedToken) {
			return ErrUnauthorized
		}
		return fmt.Errorf("revoke access token: %w", err)
	}
	if strings.TrimSpace(refreshToken) != "" {
		if err := a.refreshTokens.Revoke(ctx, refreshToken); err != nil {
			return fmt.Errorf("revoke refresh token: %w", err)
		}
	}
	return nil
}

// Authenticate resolves a bearer token to its user.
func (a *App) Authenticate(ctx context.Context, token string) (domain.User, error) {
	claims, err := a.sessions.Verify(ctx, token)
	if err != nil {
		if errors.Is(err, session.ErrInvalidToken) || errors.Is(err, session.ErrRevokedToken) {
			return domain.User{}, ErrUnauthorized
		}
		return domain.User{}, fmt.Errorf("verify token: %w", err)
	}
	user, ok, err := a.store.GetUserByID(ctx, claims.UserID)
	if err != nil {
		return domain.User{}, fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return domain.User{}, ErrUnauthorized
	}
	return user, nil
}

// UpdatePreferences changes the user's theme and notification settings.
func (a *App) UpdatePreferences(ctx context.Context, user domain.User, patch PreferencesPatch) (domain.User, error) {
	if patch.PreferredTheme == nil && patch.NotificationPreferences == nil {
		return domain.User{}, invalid("preferredTheme or notificationPreferences is required")
	}
	if patch.PreferredTheme != nil {
		theme := domain.Theme(strings.ToLower(strings.TrimSpace(*patch.PreferredTheme)))
		if !theme.Valid() {
			return domain.User{}, invalid("preferredTheme must be one of cozy, midnight, sunset")
		}
		user.PreferredTheme = theme
	}
	if patch.NotificationPreferences != nil {
		prefs := make(map[string]bool, len(patch.NotificationPreferences))
		for k, v := range patch.NotificationPreferences {
			if k = strings.TrimSpace(k); k != "" {
				prefs[k] = v
			}
		}
		user.NotificationPreferences = prefs
	}
	user.UpdatedAt = a.now().UTC()
	if err := a.store.UpdateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrUnauthorized
		}
		return domain.User{}, fmt.Errorf("update user: %w", err)
	}
	return user, nil
}

func (a *App) issueTokens(ctx context.Context, user domain.User) (AuthResult, error) {
	token, expires, err := a.sessions.Issue(user.ID)
	if err != nil {
		return AuthResult{}, err
	}
	refresh, err := a.refreshTokens.Issue(ctx, user.ID)
	if err != nil {
		return AuthResult{}, fmt.Errorf("issue refresh token: %w", err)
	}
	return AuthResult{User: user, Token: token, ExpiresAt: expires, RefreshToken: refresh}, nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", invalid("email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", invalid("email is not a valid address")
	}
	return email, nil
}

// JWKS returns the public signing keys; nil for HS256.
func (a *App) JWKS() []session.JWK {
	return a.sessions.JWKS()
}
