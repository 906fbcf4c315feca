package app

import (
	"context"
	"errors"
	"testing"
)

func TestRegisterLoginRefreshLogout(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	reg, err := env.app.Register(ctx, "  Writer@Example.com ", "journal123")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if reg.User.Email != "writer@example.com" || reg.Token == "" || reg.RefreshToken == "" {
		t.Fatalf("unexpected register result: %+v", reg)
	}
	if reg.User.PreferredTheme != "cozy" {
		t.Fatalf("default theme = %q", reg.User.PreferredTheme)
	}

	login, err := env.app.Login(ctx, "writer@example.com", "journal123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if login.User.LastLoginAt == nil || !login.User.LastLoginAt.Equal(testNow) {
		t.Fatalf("lastLoginAt not recorded: %+v", login.User.LastLoginAt)
	}

	user, err := env.app.Authenticate(ctx, login.Token)
	if err != nil || user.ID != reg.User.ID {
		t.Fatalf("authenticate: %v %+v", err, user)
	}

	refreshed, err := env.app.Refresh(ctx, login.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if refreshed.RefreshToken == login.RefreshToken {
		t.Fatalf("refresh token must rotate")
	}
	if _, err := env.app.Refresh(ctx, login.RefreshToken); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("replayed refresh token: %v", err)
	}

	if err := env.app.Logout(ctx, login.Token, refreshed.RefreshToken); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := env.app.Authenticate(ctx, login.Token); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("revoked token still valid: %v", err)
	}
}

func TestRegisterRejectsDuplicatesAndBadInput(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.newUser(t, "dup@example.com")

	if _, err := env.app.Register(ctx, "DUP@example.com", "journal123"); !errors.Is(err, ErrEmailAlreadyExists) {
		t.Fatalf("duplicate email: %v", err)
	}
	for _, tc := range []struct{ email, password string }{
		{"", "journal123"},
		{"not-an-email", "journal123"},
		{"ok@example.com", "short1"},
		{"ok@example.com", "lettersonly"},
	} {
		if _, err := env.app.Register(ctx, tc.email, tc.password); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("register(%q, %q) = %v, want ErrInvalidInput", tc.email, tc.password, err)
		}
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	env := newTestEnv(t)
	env.newUser(t, "a@example.com")
	ctx := context.Background()
	if _, err := env.app.Login(ctx, "a@example.com", "wrong-pass1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password: %v", err)
	}
	if _, err := env.app.Login(ctx, "nobody@example.com", "journal123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown user: %v", err)
	}
}

func TestAuthenticateRejectsGarbage(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.app.Authenticate(context.Background(), "not.a.token"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("garbage token: %v", err)
	}
}

func TestUpdatePreferences(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.newUser(t, "prefs@example.com")

	theme := "Midnight"
	updated, err := env.app.UpdatePreferences(ctx, user, PreferencesPatch{
		PreferredTheme:          &theme,
		NotificationPreferences: map[string]bool{"dailyReminder": true, " ": true},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.PreferredTheme != "midnight" || len(updated.NotificationPreferences) != 1 || !updated.NotificationPreferences["dailyReminder"] {
		t.Fatalf("unexpected user: %+v", updated)
	}
	stored, _, _ := env.store.GetUserByID(ctx, user.ID)
	if stored.PreferredTheme != "midnight" {
		t.Fatalf("theme not persisted: %q", stored.PreferredTheme)
	}

	bad := "neon"
	if _, err := env.app.UpdatePreferences(ctx, user, PreferencesPatch{PreferredTheme: &bad}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("invalid theme: %v", err)
	}
	if _, err := env.app.UpdatePreferences(ctx, user, PreferencesPatch{}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("empty patch: %v", err)
	}
}
