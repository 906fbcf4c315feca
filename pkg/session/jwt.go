package session

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"os"
	"sort"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

const (
	defaultIssuer   = "dropjournal"
	defaultAudience = "dropjournal-api"
	defaultKeyID    = "jwt-active"
)

var (
	defaultLeeway = 30 * time.Second

	// ErrInvalidToken covers malformed, expired, or badly signed tokens.
	ErrInvalidToken = errors.New("invalid token")
	// ErrRevokedToken is returned for tokens revoked at logout.
	ErrRevokedToken = errors.New("token revoked")
)

// Options configures claim validation.
type Options struct {
	Issuer   string
	Audience string
	Leeway   time.Duration
	TTL      time.Duration
}

// JWK represents a JSON Web Key entry used by JWKS endpoints.
type JWK struct {
	Kty string `json:"kty"`
	Use string `json:"use"`
	Kid string `json:"kid"`
	Alg string `json:"alg"`
	N   string `json:"n,omitempty"`
	E   string `json:"e,omitempty"`
}

// Claims is the verified content of an access token.
type Claims struct {
	UserID    string
	TokenID   string
	ExpiresAt time.Time
}

// Manager issues and verifies access tokens, signed with HS256 (shared
// secret) or RS256 (PEM keys with kid rotation).
type Manager struct {
	method  jwt.SigningMethod
	revoker Revoker

	hmacKey []byte

	rsaSigner    *rsa.PrivateKey
	rsaSignerKid string
	rsaVerifiers map[string]*rsa.PublicKey

	opts Options
}

// NewHS256Manager builds a manager signing with a shared secret.
func NewHS256Manager(secret string, revoker Revoker, opts Options) (*Manager, error) {
	if len(secret) < 32 {
		return nil, errors.New("jwt secret must be at least 32 bytes")
	}
	return &Manager{
		method:  jwt.SigningMethodHS256,
		revoker: revoker,
		hmacKey: []byte(secret),
		opts:    normalizeOptions(opts),
	}, nil
}

// NewRS256ManagerFromPEM builds a manager from PEM files.
// verifyKeyFiles maps kid -> public key path for keys still accepted
// during rotation.
func NewRS256ManagerFromPEM(
	privateKeyPath string,
	publicKeyPath string,
	keyID string,
	verifyKeyFiles map[string]string,
	revoker Revoker,
	opts Options,
) (*Manager, error) {
	privateKey, err := loadRSAPrivateKeyFromPEMFile(privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("load jwt private key: %w", err)
	}
	if strings.TrimSpace(keyID) == "" {
		keyID = defaultKeyID
	}

	verifiers := make(map[string]*rsa.PublicKey)
	activePub := &privateKey.PublicKey
	if strings.TrimSpace(publicKeyPath) != "" {
		activePub, err = loadRSAPublicKeyFromPEMFile(publicKeyPath)
		if err != nil {
			return nil, fmt.Errorf("load jwt public key: %w", err)
		}
	}
	verifiers[keyID] = activePub

	for kid, path := range verifyKeyFiles {
		kid = strings.TrimSpace(kid)
		path = strings.TrimSpace(path)
		if kid == "" || path == "" {
			continue
		}
		pub, err := loadRSAPublicKeyFromPEMFile(path)
		if err != nil {
			return nil, fmt.Errorf("load verify key %q: %w", kid, err)
		}
		verifiers[kid] = pub
	}

	return &Manager{
		method:       jwt.SigningMethodRS256,
		revoker:      revoker,
		rsaSigner:    privateKey,
		rsaSignerKid: keyID,
		rsaVerifiers: verifiers,
		opts:         normalizeOptions(opts),
	}, nil
}

// TTL returns the access token lifetime.
func (m *Manager) TTL() time.Duration {
	return m.opts.TTL
}

// Issue signs a new access token for the user.
func (m *Manager) Issue(userID string) (string, time.Time, error) {
	now := time.Now().UTC()
	expires := now.Add(m.opts.TTL)
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    m.opts.Issuer,
		Audience:  jwt.ClaimStrings{m.opts.Audience},
		ExpiresAt: jwt.NewNumericDate(expires),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ID:        randomHexID(12),
	}
	token := jwt.NewWithClaims(m.method, claims)
	var (
		signed string
		err    error
	)
	switch m.method {
	case jwt.SigningMethodRS256:
		token.Header["kid"] = m.rsaSignerKid
		signed, err = token.SignedString(m.rsaSigner)
	default:
		signed, err = token.SignedString(m.hmacKey)
	}
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expires, nil
}

// Verify validates a token and checks the revocation list.
func (m *Manager) Verify(ctx context.Context, token string) (Claims, error) {
	claims, err := m.parse(token)
	if err != nil {
		return Claims{}, err
	}
	if m.revoker != nil {
		revoked, err := m.revoker.IsRevoked(ctx, claims.ID)
		if err != nil {
			return Claims{}, fmt.Errorf("check revocation: %w", err)
		}
		if revoked {
			return Claims{}, ErrRevokedToken
		}
	}
	return Claims{
		UserID:    claims.Subject,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Revoke blocks the token until it would have expired.
// Invalid tokens are ignored; there is nothing to revoke.
func (m *Manager) Revoke(ctx context.Context, token string) error {
	if m.revoker == nil {
		return nil
	}
	claims, err := m.parse(token)
	if err != nil {
		return nil
	}
	return m.revoker.Revoke(ctx, claims.ID, time.Until(claims.ExpiresAt.Time))
}

// JWKS returns the public keys in RS256 mode, nil otherwise.
func (m *Manager) JWKS() []JWK {
	if len(m.rsaVerifiers) == 0 {
		return nil
	}
	kids := make([]string, 0, len(m.rsaVerifiers))
	for kid := range m.rsaVerifiers {
		kids = append(kids, kid)
	}
	sort.Strings(kids)
	out := make([]JWK, 0, len(kids))
	for _, kid := range kids {
		pub := m.rsaVerifiers[kid]
		out = append(out, JWK{
			Kty: "RSA",
			Use: "sig",
			Kid: kid,
			Alg: "RS256",
			N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		})
	}
	return out
}

func (m *Manager) parse(token string) (jwt.RegisteredClaims, error) {
	claims := jwt.RegisteredClaims{}
	token = strings.TrimSpace(token)
	if token == "" {
		return claims, ErrInvalidToken
	}
	parserOptions := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.method.Alg()}),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(m.opts.Leeway),
		jwt.WithIssuer(m.opts.Issuer),
		jwt.WithAudience(m.opts.Audience),
	}
	parsed, err := jwt.ParseWithClaims(token, &claims, m.keyFunc, parserOptions...)
	if err != nil || !parsed.Valid {
		return claims, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if strings.TrimSpace(claims.ID) == "" {
		return claims, fmt.Errorf("%w: jti missing", ErrInvalidToken)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return claims, fmt.Errorf("%w: subject missing", ErrInvalidToken)
	}
	return claims, nil
}

func (m *Manager) keyFunc(t *jwt.Token) (any, error) {
	if m.method != jwt.SigningMethodRS256 {
		return m.hmacKey, nil
	}
	kid, _ := t.Header["kid"].(string)
	kid = strings.TrimSpace(kid)
	if kid == "" {
		return nil, errors.New("token key id required")
	}
	pub, ok := m.rsaVerifiers[kid]
	if !ok {
		return nil, errors.New("unknown token key")
	}
	return pub, nil
}

func loadRSAPrivateKeyFromPEMFile(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("invalid pem")
	}
	if pkcs1, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return pkcs1, nil
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	privateKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("private key is not rsa")
	}
	return privateKey, nil
}

func loadRSAPublicKeyFromPEMFile(path string) (*rsa.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("invalid pem")
	}
	if pubAny, err := x509.ParsePKIXPublicKey(block.Bytes); err == nil {
		pub, ok := pubAny.(*rsa.PublicKey)
		if !ok {
			return nil, errors.New("public key is not rsa")
		}
		return pub, nil
	}
	if cert, err := x509.ParseCertificate(block.Bytes); err == nil {
		pub, ok := cert.PublicKey.(*rsa.PublicKey)
		if !ok {
			return nil, errors.New("certificate public key is not rsa")
		}
		return pub, nil
	}
	return nil, errors.New("failed to parse rsa public key")
}

func randomHexID(nBytes int) string {
	buf := make([]byte, nBytes)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return fmt.Sprintf("%x", buf)
}

func normalizeOptions(opts Options) Options {
	opts.Issuer = strings.TrimSpace(opts.Issuer)
	opts.Audience = strings.TrimSpace(opts.Audience)
	if opts.Issuer == "" {
		opts.Issuer = defaultIssuer
	}
	if opts.Audience == "" {
		opts.Audience = defaultAudience
	}
	if opts.Leeway <= 0 {
		opts.Leeway = defaultLeeway
	}
	if opts.TTL <= 0 {
		opts.TTL = 15 * time.Minute
	}
	return opts
}
