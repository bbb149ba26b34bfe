package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"autodiag/internal/app"
	"autodiag/internal/config"
	"autodiag/internal/identity"
	"autodiag/internal/ratelimit"
	"autodiag/internal/server"
	"autodiag/internal/store"
	"autodiag/internal/util"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := util.InitLogger(cfg.LogLevel, "autodiag")

	var sessionStore store.Store
	if cfg.DatabaseURL != "" {
		gormStore, err := store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to init postgres store", "err", err)
			os.Exit(1)
		}
		sessionStore = gormStore
		logger.Info("using postgres session store")
	} else {
		sessionStore = store.NewMemoryStore()
		logger.Info("using in-memory session store, sessions are lost on restart")
	}

	appCore, err := app.New(app.Config{Store: sessionStore})
	if err != nil {
		logger.Error("failed to init app", "err", err)
		os.Exit(1)
	}

	identityManager, err := identity.NewManager(cfg.IdentitySecret, 0)
	if err != nil {
		logger.Error("failed to init identity manager", "err", err)
		os.Exit(1)
	}

	var limiter *ratelimit.FixedWindowLimiter
	if cfg.ChatRateLimitPerMinute > 0 {
		limiter, err = ratelimit.NewFixedWindowLimiter(
			cfg.RedisAddr, cfg.RedisPassword, "autodiag:ratelimit:chat",
			cfg.ChatRateLimitPerMinute, time.Minute)
		if err != nil {
			logger.Error("failed to init rate limiter", "err", err)
			os.Exit(1)
		}
	}

	httpServer, err := server.New(server.Config{
		App:      appCore,
		Identity: identityManager,
		Limiter:  limiter,
	})
	if err != nil {
		logger.Error("failed to init server", "err", err)
		os.Exit(1)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server error", "err", err)
		os.Exit(1)
	}
	slog.Info("server exited")
}
