package session

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestHS256IssueVerify(t *testing.T) {
	m, err := NewHS256Manager(testSecret, NewMemoryRevoker(), Options{TTL: time.Minute})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	token, expires, err := m.Issue("user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if time.Until(expires) <= 0 {
		t.Fatalf("expiry in the past: %v", expires)
	}
	claims, err := m.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.UserID != "user-1" || claims.TokenID == "" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestHS256RejectsShortSecret(t *testing.T) {
	if _, err := NewHS256Manager("short", nil, Options{}); err == nil {
		t.Fatal("expected error for short secret")
	}
}

func TestRevokeBlocksToken(t *testing.T) {
	ctx := context.Background()
	m, err := NewHS256Manager(testSecret, NewMemoryRevoker(), Options{})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	token, _, err := m.Issue("user-revoke")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if err := m.Revoke(ctx, token); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := m.Verify(ctx, token); !errors.Is(err, ErrRevokedToken) {
		t.Fatalf("expected ErrRevokedToken, got %v", err)
	}
	if err := m.Revoke(ctx, "garbage"); err != nil {
		t.Fatalf("revoking an invalid token should be a no-op: %v", err)
	}
}

func TestVerifyEnforcesAudience(t *testing.T) {
	signing, _ := NewHS256Manager(testSecret, nil, Options{Audience: "aud-a"})
	verify, _ := NewHS256Manager(testSecret, nil, Options{Audience: "aud-b"})
	token, _, err := signing.Issue("user-aud")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := verify.Verify(context.Background(), token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected audience mismatch to fail, got %v", err)
	}
}

func TestVerifyRejectsExpiredAndTampered(t *testing.T) {
	m, _ := NewHS256Manager(testSecret, nil, Options{Leeway: time.Millisecond})
	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "user-exp",
		Issuer:    defaultIssuer,
		Audience:  jwt.ClaimStrings{defaultAudience},
		IssuedAt:  jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		ID:        "jti-exp",
	})
	signed, err := expired.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := m.Verify(context.Background(), signed); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired token to fail, got %v", err)
	}

	token, _, _ := m.Issue("user-x")
	if _, err := m.Verify(context.Background(), token+"x"); err == nil {
		t.Fatal("expected tampered token to fail")
	}
}

func TestVerifyRejectsAlgorithmSwitch(t *testing.T) {
	privatePath, publicPath := writeRSAKeyPairFiles(t, "alg")
	rs, err := NewRS256ManagerFromPEM(privatePath, publicPath, "kid-1", nil, nil, Options{})
	if err != nil {
		t.Fatalf("rs manager: %v", err)
	}
	hs, _ := NewHS256Manager(testSecret, nil, Options{})
	token, _, err := rs.Issue("user-alg")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := hs.Verify(context.Background(), token); err == nil {
		t.Fatal("hs256 manager must reject rs256 tokens")
	}
}

func TestRS256IssueVerifyAndJWKS(t *testing.T) {
	privatePath, publicPath := writeRSAKeyPairFiles(t, "active")
	m, err := NewRS256ManagerFromPEM(privatePath, publicPath, "kid-active", nil, NewMemoryRevoker(), Options{})
	if err != nil {
		t.Fatalf("new rs256 manager: %v", err)
	}
	token, _, err := m.Issue("user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := m.Verify(context.Background(), token)
	if err != nil || claims.UserID != "user-1" {
		t.Fatalf("verify: %+v %v", claims, err)
	}
	keys := m.JWKS()
	if len(keys) != 1 || keys[0].Kid != "kid-active" || keys[0].Alg != "RS256" {
		t.Fatalf("unexpected jwks: %+v", keys)
	}
	if keys[0].N == "" || keys[0].E == "" {
		t.Fatal("expected RSA modulus/exponent in jwks")
	}
}

func TestRS256AcceptsPreviousKeyDuringRotation(t *testing.T) {
	oldPrivate, oldPublic := writeRSAKeyPairFiles(t, "old")
	newPrivate, newPublic := writeRSAKeyPairFiles(t, "new")

	oldManager, err := NewRS256ManagerFromPEM(oldPrivate, oldPublic, "kid-old", nil, nil, Options{})
	if err != nil {
		t.Fatalf("old manager: %v", err)
	}
	oldToken, _, err := oldManager.Issue("user-2")
	if err != nil {
		t.Fatalf("old token: %v", err)
	}

	rotated, err := NewRS256ManagerFromPEM(newPrivate, newPublic, "kid-new", map[string]string{"kid-old": oldPublic}, nil, Options{})
	if err != nil {
		t.Fatalf("rotated manager: %v", err)
	}
	if claims, err := rotated.Verify(context.Background(), oldToken); err != nil || claims.UserID != "user-2" {
		t.Fatalf("verify old token: %+v %v", claims, err)
	}
	if len(rotated.JWKS()) != 2 {
		t.Fatalf("expected 2 jwks entries")
	}

	strict, err := NewRS256ManagerFromPEM(newPrivate, newPublic, "kid-new", nil, nil, Options{})
	if err != nil {
		t.Fatalf("strict manager: %v", err)
	}
	if _, err := strict.Verify(context.Background(), oldToken); err == nil {
		t.Fatal("expected unknown kid to fail")
	}
}

func writeRSAKeyPairFiles(t *testing.T, prefix string) (string, string) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate rsa key: %v", err)
	}
	dir := t.TempDir()
	privatePath := filepath.Join(dir, prefix+"-private.pem")
	publicPath := filepath.Join(dir, prefix+"-public.pem")

	privatePEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	if err := os.WriteFile(privatePath, privatePEM, 0o600); err != nil {
		t.Fatalf("write private key: %v", err)
	}
	publicDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("marshal public key: %v", err)
	}
	publicPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: publicDER})
	if err := os.WriteFile(publicPath, publicPEM, 0o644); err != nil {
		t.Fatalf("write public key: %v", err)
	}
	return privatePath, publicPath
}
