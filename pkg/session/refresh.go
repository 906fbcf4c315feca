package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrInvalidRefreshToken indicates token not found or expired.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	// ErrRefreshTokenReplay indicates a rotated token was presented again.
	ErrRefreshTokenReplay = errors.New("refresh token replay detected")
)

// RefreshStore persists refresh token families for rotation and replay
// detection. Presenting a superseded token revokes its whole family.
type RefreshStore interface {
	Issue(ctx context.Context, userID string) (string, error)
	Rotate(ctx context.Context, token string) (userID, newToken string, err error)
	Revoke(ctx context.Context, token string) error
}

type refreshFamily struct {
	userID      string
	currentHash string
	expiry      time.Time
}

// MemoryRefreshStore keeps refresh token families in memory.
type MemoryRefreshStore struct {
	ttl time.Duration

	mu           sync.Mutex
	families     map[string]refreshFamily       // familyID -> family
	tokenFamily  map[string]string              // tokenHash -> familyID
	familyTokens map[string]map[string]struct{} // familyID -> token hashes
}

// NewMemoryRefreshStore constructs an in-memory refresh token store.
func NewMemoryRefreshStore(ttl time.Duration) *MemoryRefreshStore {
	return &MemoryRefreshStore{
		ttl:          ttl,
		families:     make(map[string]refreshFamily),
		tokenFamily:  make(map[string]string),
		familyTokens: make(map[string]map[string]struct{}),
	}
}

func (s *MemoryRefreshStore) Issue(_ context.Context, userID string) (string, error) {
	token, err := randomToken(32)
	if err != nil {
		return "", err
	}
	familyID, err := randomToken(16)
	if err != nil {
		return "", err
	}
	tokenHash := refreshTokenHash(token)

	s.mu.Lock()
	s.families[familyID] = refreshFamily{
		userID:      userID,
		currentHash: tokenHash,
		expiry:      time.Now().UTC().Add(s.ttl),
	}
	s.tokenFamily[tokenHash] = familyID
	s.familyTokens[familyID] = map[string]struct{}{tokenHash: {}}
	s.mu.Unlock()
	return token, nil
}

func (s *MemoryRefreshStore) Rotate(_ context.Context, token string) (string, string, error) {
	tokenHash := refreshTokenHash(token)
	now := time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	familyID, ok := s.tokenFamily[tokenHash]
	if !ok {
		return "", "", ErrInvalidRefreshToken
	}
	family, ok := s.families[familyID]
	if !ok || now.After(family.expiry) {
		s.revokeFamilyLocked(familyID)
		return "", "", ErrInvalidRefreshToken
	}
	if family.currentHash != tokenHash {
		s.revokeFamilyLocked(familyID)
		return "", "", ErrRefreshTokenReplay
	}

	newToken, err := randomToken(32)
	if err != nil {
		return "", "", err
	}
	newHash := refreshTokenHash(newToken)
	family.currentHash = newHash
	family.expiry = now.Add(s.ttl)
	s.families[familyID] = family
	s.tokenFamily[newHash] = familyID
	s.familyTokens[familyID][newHash] = struct{}{}
	return family.userID, newToken, nil
}

func (s *MemoryRefreshStore) Revoke(_ context.Context, token string) error {
	s.mu.Lock()
	if familyID, ok := s.tokenFamily[refreshTokenHash(token)]; ok {
		s.revokeFamilyLocked(familyID)
	}
	s.mu.Unlock()
	return nil
}

func (s *MemoryRefreshStore) revokeFamilyLocked(familyID string) {
	for h := range s.familyTokens[familyID] {
		delete(s.tokenFamily, h)
	}
	delete(s.familyTokens, familyID)
	delete(s.families, familyID)
}

// RedisRefreshStore stores refresh token families in Redis.
type RedisRefreshStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisRefreshStore builds a Redis-backed refresh token store.
func NewRedisRefreshStore(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisRefreshStore {
	if prefix == "" {
		prefix = "dropjournal"
	}
	return &RedisRefreshStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisRefreshStore) Issue(ctx context.Context, userID string) (string, error) {
	token, err := randomToken(32)
	if err != nil {
		return "", err
	}
	familyID, err := randomToken(16)
	if err != nil {
		return "", err
	}
	tokenHash := refreshTokenHash(token)

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.tokenKey(tokenHash), familyID, s.ttl)
	pipe.HSet(ctx, s.familyKey(familyID), map[string]any{
		"userId":      userID,
		"currentHash": tokenHash,
	})
	pipe.Expire(ctx, s.familyKey(familyID), s.ttl)
	pipe.SAdd(ctx, s.familyTokensKey(familyID), tokenHash)
	pipe.Expire(ctx, s.familyTokensKey(familyID), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", err
	}
	return token, nil
}

func (s *RedisRefreshStore) Rotate(ctx context.Context, token string) (string, string, error) {
	tokenHash := refreshTokenHash(token)
	for {
		if err := ctx.Err(); err != nil {
			return "", "", err
		}
		familyID, err := s.client.Get(ctx, s.tokenKey(tokenHash)).Result()
		if errors.Is(err, redis.Nil) {
			return "", "", ErrInvalidRefreshToken
		}
		if err != nil {
			return "", "", err
		}

		familyKey := s.familyKey(familyID)
		var (
			userID       string
			newToken     string
			shouldRevoke bool
		)
		err = s.client.Watch(ctx, func(tx *redis.Tx) error {
			familyData, err := tx.HGetAll(ctx, familyKey).Result()
			if err != nil {
				return err
			}
			currentHash := familyData["currentHash"]
			userID = familyData["userId"]
			if currentHash == "" || userID == "" {
				shouldRevoke = true
				return ErrInvalidRefreshToken
			}
			if currentHash != tokenHash {
				shouldRevoke = true
				return ErrRefreshTokenReplay
			}
			newToken, err = randomToken(32)
			if err != nil {
				return err
			}
			newHash := refreshTokenHash(newToken)
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, s.tokenKey(newHash), familyID, s.ttl)
				pipe.HSet(ctx, familyKey, "currentHash", newHash)
				pipe.Expire(ctx, familyKey, s.ttl)
				pipe.SAdd(ctx, s.familyTokensKey(familyID), newHash)
				pipe.Expire(ctx, s.familyTokensKey(familyID), s.ttl)
				return nil
			})
			return err
		}, familyKey)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			if shouldRevoke {
				_ = s.revokeFamily(ctx, familyID)
			}
			return "", "", err
		}
		return userID, newToken, nil
	}
}

func (s *RedisRefreshStore) Revoke(ctx context.Context, token string) error {
	familyID, err := s.client.Get(ctx, s.tokenKey(refreshTokenHash(token))).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.revokeFamily(ctx, familyID)
}

func (s *RedisRefreshStore) revokeFamily(ctx context.Context, familyID string) error {
	hashes, err := s.client.SMembers(ctx, s.familyTokensKey(familyID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	pipe := s.client.TxPipeline()
	for _, h := range hashes {
		pipe.Del(ctx, s.tokenKey(h))
	}
	pipe.Del(ctx, s.familyTokensKey(familyID), s.familyKey(familyID))
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisRefreshStore) tokenKey(tokenHash string) string {
	return s.prefix + ":refresh:token:" + tokenHash
}

func (s *RedisRefreshStore) familyKey(familyID string) string {
	return s.prefix + ":refresh:family:" + familyID
}

func (s *RedisRefreshStore) familyTokensKey(familyID string) string {
	return s.prefix + ":refresh:family_tokens:" + familyID
}

func randomToken(nBytes int) (string, error) {
	buf := make([]byte, nBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func refreshTokenHash(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
