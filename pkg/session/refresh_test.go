package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestMemoryRefreshStore(t *testing.T) {
	runRefreshStoreTests(t, func(t *testing.T) RefreshStore {
		return NewMemoryRefreshStore(time.Minute)
	})
}

func TestRedisRefreshStore(t *testing.T) {
	runRefreshStoreTests(t, func(t *testing.T) RefreshStore {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		return NewRedisRefreshStore(client, "test", time.Minute)
	})
}

func runRefreshStoreTests(t *testing.T, newStore func(t *testing.T) RefreshStore) {
	t.Run("rotate issues a new token", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		token, err := s.Issue(ctx, "user-1")
		if err != nil || token == "" {
			t.Fatalf("issue: %q %v", token, err)
		}
		userID, next, err := s.Rotate(ctx, token)
		if err != nil {
			t.Fatalf("rotate: %v", err)
		}
		if userID != "user-1" || next == "" || next == token {
			t.Fatalf("unexpected rotation: user=%q next=%q", userID, next)
		}
	})

	t.Run("replay revokes the family", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		token, _ := s.Issue(ctx, "user-2")
		_, next, err := s.Rotate(ctx, token)
		if err != nil {
			t.Fatalf("rotate: %v", err)
		}
		if _, _, err := s.Rotate(ctx, token); !errors.Is(err, ErrRefreshTokenReplay) {
			t.Fatalf("expected replay error, got %v", err)
		}
		if _, _, err := s.Rotate(ctx, next); !errors.Is(err, ErrInvalidRefreshToken) {
			t.Fatalf("expected family revoked after replay, got %v", err)
		}
	})

	t.Run("revoke invalidates token", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		token, _ := s.Issue(ctx, "user-3")
		if err := s.Revoke(ctx, token); err != nil {
			t.Fatalf("revoke: %v", err)
		}
		if _, _, err := s.Rotate(ctx, token); !errors.Is(err, ErrInvalidRefreshToken) {
			t.Fatalf("expected invalid after revoke, got %v", err)
		}
		if err := s.Revoke(ctx, "unknown"); err != nil {
			t.Fatalf("revoke unknown: %v", err)
		}
	})
}

func TestRedisRevokerExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	r := NewRedisRevoker(client, "test")
	ctx := context.Background()

	if err := r.Revoke(ctx, "jti-1", time.Minute); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	revoked, err := r.IsRevoked(ctx, "jti-1")
	if err != nil || !revoked {
		t.Fatalf("expected revoked, got %v %v", revoked, err)
	}
	mr.FastForward(2 * time.Minute)
	revoked, err = r.IsRevoked(ctx, "jti-1")
	if err != nil || revoked {
		t.Fatalf("expected expiry, got %v %v", revoked, err)
	}
	if err := r.Revoke(ctx, "jti-2", 0); err != nil {
		t.Fatalf("zero ttl revoke: %v", err)
	}
	if revoked, _ := r.IsRevoked(ctx, "jti-2"); revoked {
		t.Fatal("zero ttl must not revoke")
	}
}

func TestMemoryRevoker(t *testing.T) {
	r := NewMemoryRevoker()
	ctx := context.Background()
	if err := r.Revoke(ctx, "jti", 20*time.Millisecond); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if revoked, _ := r.IsRevoked(ctx, "jti"); !revoked {
		t.Fatal("expected revoked")
	}
	time.Sleep(30 * time.Millisecond)
	if revoked, _ := r.IsRevoked(ctx, "jti"); revoked {
		t.Fatal("expected expiry")
	}
}
