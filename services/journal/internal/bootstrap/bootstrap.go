// Package bootstrap builds the journal service's runtime dependencies from
// configuration. It is shared by the server and the operator CLI.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"dropjournal/pkg/ai"
	"dropjournal/pkg/queue"
	"dropjournal/pkg/session"
	"dropjournal/pkg/storage"
	"dropjournal/pkg/store"
	"dropjournal/services/journal/internal/app"
	"dropjournal/services/journal/internal/config"
)

const redisPrefix = "dropjournal"

// Deps are the long-lived resources behind an App. Close releases them.
type Deps struct {
	Store store.Store
	Redis redis.UniversalClient
	Queue queue.Queue

	closers []func() error
}

// Close releases every resource in reverse order of acquisition.
func (d *Deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			slog.Warn("close dependency", "err", err)
		}
	}
	d.closers = nil
}

// OpenStore opens the configured store. Postgres schemas are migrated on open
// unless migrate is false.
func OpenStore(cfg config.FileConfig, migrate bool) (store.Store, func() error, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		slog.Warn("using in-memory store; data is lost on restart")
		return store.NewMemoryStore(), func() error { return nil }, nil
	default:
		var opts []store.GormStoreOption
		if !migrate {
			opts = append(opts, store.WithoutMigrate())
		}
		s, err := store.NewGormStore(cfg.DatabaseURL, opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres store: %w", err)
		}
		return s, s.Close, nil
	}
}

// NewRedis returns a connected client, or nil when Redis is not configured.
func NewRedis(ctx context.Context, cfg config.FileConfig) (redis.UniversalClient, error) {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{Addr: addr, Password: cfg.RedisPassword})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return client, nil
}

// NewSessions builds the access token manager and refresh token store. Both
// are Redis-backed when rdb is set so logout is seen by every replica.
func NewSessions(cfg config.FileConfig, rdb redis.UniversalClient) (*session.Manager, session.RefreshStore, error) {
	var revoker session.Revoker = session.NewMemoryRevoker()
	if rdb != nil {
		revoker = session.NewRedisRevoker(rdb, redisPrefix)
	}
	opts := session.Options{
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		Leeway:   config.MustDuration(cfg.JWTLeeway),
		TTL:      config.MustDuration(cfg.SessionTTL),
	}
	var (
		manager *session.Manager
		err     error
	)
	if strings.TrimSpace(cfg.JWTPrivateKeyPath) != "" {
		verifyKeys, perr := config.ParseVerifyPublicKeys(cfg.JWTVerifyPublicKeys)
		if perr != nil {
			return nil, nil, perr
		}
		manager, err = session.NewRS256ManagerFromPEM(cfg.JWTPrivateKeyPath, cfg.JWTPublicKeyPath, cfg.JWTKeyID, verifyKeys, revoker, opts)
	} else {
		manager, err = session.NewHS256Manager(cfg.JWTSecret, revoker, opts)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("init sessions: %w", err)
	}

	refreshTTL := config.MustDuration(cfg.RefreshTTL)
	if refreshTTL <= 0 {
		refreshTTL = 30 * 24 * time.Hour
	}
	var refresh session.RefreshStore = session.NewMemoryRefreshStore(refreshTTL)
	if rdb != nil {
		refresh = session.NewRedisRefreshStore(rdb, redisPrefix, refreshTTL)
	}
	return manager, refresh, nil
}

// NewCoach builds the AI coach for the configured provider.
func NewCoach(cfg config.FileConfig) (*ai.Coach, error) {
	gen, err := ai.NewGenerator(ai.ProviderConfig{
		Provider:  cfg.AI.Provider,
		BaseURL:   cfg.AI.BaseURL,
		APIKey:    cfg.AI.APIKey,
		Model:     cfg.AI.Model,
		MaxTokens: cfg.AI.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("init ai provider: %w", err)
	}
	return ai.NewCoach(gen), nil
}

// NewQueue builds the configured job queue backend.
func NewQueue(cfg config.FileConfig, rdb redis.UniversalClient) (queue.Queue, error) {
	qc := cfg.Queue
	switch qc.Backend {
	case config.QueueBackendRedis:
		if rdb == nil {
			return nil, fmt.Errorf("redis queue backend requires redisAddr")
		}
		return queue.NewRedisJobQueue(queue.RedisQueueConfig{
			Client:     rdb,
			Stream:     qc.Stream,
			Group:      qc.Group,
			MaxRetries: qc.MaxRetries,
		})
	case config.QueueBackendAMQP:
		return queue.NewAMQPQueue(queue.AMQPQueueConfig{
			URL:        qc.AMQPURL,
			Queue:      qc.AMQPQueue,
			MaxRetries: qc.MaxRetries,
		})
	default:
		return queue.NewLocalQueue(queue.LocalQueueConfig{MaxRetries: qc.MaxRetries}), nil
	}
}

// NewExports returns the export object store, or nil when export is disabled.
func NewExports(ctx context.Context, cfg config.FileConfig) (storage.ObjectStore, error) {
	ec := cfg.Export
	if !ec.Enabled {
		return nil, nil
	}
	ms, err := storage.NewMinioStore(ctx, storage.MinioConfig{
		Endpoint:  ec.MinioEndpoint,
		AccessKey: ec.MinioAccessKey,
		SecretKey: ec.MinioSecretKey,
		Bucket:    ec.MinioBucket,
		UseSSL:    ec.MinioUseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init export storage: %w", err)
	}
	return ms, nil
}

// Build wires the full application. The caller must Close the returned Deps.
func Build(ctx context.Context, cfg config.FileConfig) (*app.App, *Deps, error) {
	deps := &Deps{}
	fail := func(err error) (*app.App, *Deps, error) {
		deps.Close()
		return nil, nil, err
	}

	st, closeStore, err := OpenStore(cfg, true)
	if err != nil {
		return fail(err)
	}
	deps.Store = st
	deps.closers = append(deps.closers, closeStore)

	rdb, err := NewRedis(ctx, cfg)
	if err != nil {
		return fail(err)
	}
	if rdb != nil {
		deps.Redis = rdb
		deps.closers = append(deps.closers, rdb.Close)
	}

	sessions, refresh, err := NewSessions(cfg, rdb)
	if err != nil {
		return fail(err)
	}
	coach, err := NewCoach(cfg)
	if err != nil {
		return fail(err)
	}
	q, err := NewQueue(cfg, rdb)
	if err != nil {
		return fail(err)
	}
	deps.Queue = q
	deps.closers = append(deps.closers, q.Close)

	exports, err := NewExports(ctx, cfg)
	if err != nil {
		return fail(err)
	}
	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		return fail(fmt.Errorf("load time zone: %w", err))
	}

	a, err := app.New(app.Config{
		Store:            st,
		Sessions:         sessions,
		RefreshTokens:    refresh,
		Coach:            coach,
		Jobs:             q,
		Exports:          exports,
		Location:         loc,
		AITimeout:        config.MustDuration(cfg.AI.Timeout),
		MaxMessages:      cfg.Conversation.MaxMessages,
		SummaryThreshold: cfg.Conversation.SummaryThreshold,
		ExportURLTTL:     config.MustDuration(cfg.Export.URLTTL),
	})
	if err != nil {
		return fail(err)
	}
	return a, deps, nil
}
