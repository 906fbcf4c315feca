package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"dropjournal/internal/ratelimit"
	"dropjournal/internal/util"
	"dropjournal/pkg/queue"
	"dropjournal/services/journal/internal/app"
	"dropjournal/services/journal/internal/bootstrap"
	"dropjournal/services/journal/internal/config"
	"dropjournal/services/journal/internal/server"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load("")
	if err != nil {
		util.Fatal("failed to load config", "err", err)
	}
	util.InitLogger("journal", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	appCore, deps, err := bootstrap.Build(ctx, cfg)
	if err != nil {
		util.Fatal("failed to init app", "err", err)
	}
	defer deps.Close()

	trusted, err := util.NewTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		util.Fatal("invalid trusted proxies", "err", err)
	}
	serverCfg := server.Config{
		App:            appCore,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		TrustedProxies: trusted,
	}
	if deps.Redis != nil {
		newLimiter := func(name string, limit, fallback int) *ratelimit.FixedWindowLimiter {
			if limit <= 0 {
				limit = fallback
			}
			limiter, err := ratelimit.NewFixedWindowLimiter(deps.Redis, "dropjournal:ratelimit:"+name, limit, time.Minute)
			if err != nil {
				util.Fatal("failed to init rate limiter", "name", name, "err", err)
			}
			return limiter
		}
		serverCfg.SignupLimiter = newLimiter("signup", cfg.SignupRateLimitPerMinute, 5)
		serverCfg.LoginLimiter = newLimiter("login", cfg.LoginRateLimitPerMinute, 10)
		serverCfg.RefreshLimiter = newLimiter("refresh", cfg.RefreshRateLimitPerMinute, 20)
	} else {
		slog.Warn("redis not configured; auth rate limiting disabled")
	}
	httpServer, err := server.New(serverCfg)
	if err != nil {
		util.Fatal("failed to init server", "err", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           httpServer.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Conversation turns wait on the AI provider.
		WriteTimeout: config.MustDuration(cfg.AI.Timeout) + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		slog.Info("job workers started", "backend", cfg.Queue.Backend, "concurrency", cfg.Queue.Concurrency)
		return deps.Queue.Run(gctx, cfg.Queue.Concurrency, jobHandler(appCore, config.MustDuration(cfg.Queue.JobTimeout)))
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("journal stopped with error", "err", err)
		deps.Close()
		util.Fatal("exit", "err", err)
	}
	slog.Info("journal stopped")
}

// jobHandler bounds each job attempt with timeout.
func jobHandler(a *app.App, timeout time.Duration) queue.Handler {
	return func(ctx context.Context, job queue.Job) error {
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		return a.HandleJob(ctx, job)
	}
}
