package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/geocoder89/postsapi/internal/auth"
	"github.com/geocoder89/postsapi/internal/config"
	"github.com/geocoder89/postsapi/internal/db"
	httpx "github.com/geocoder89/postsapi/internal/http"
	"github.com/geocoder89/postsapi/internal/observability"
	"github.com/geocoder89/postsapi/internal/redisclient"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", "err", err)
		os.Exit(1)
	}
}

func run() error {
	// Load the config set up
	cfg := config.Load()

	log := observability.NewLogger(cfg.Env)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.OTelEnabled {
		shutdownTracer, err := observability.InitTracer(ctx, observability.TracerConfig{
			ServiceName: "postsapi",
			Environment: cfg.Env,
			Endpoint:    cfg.OTelEndpoint,
		})
		if err != nil {
			return fmt.Errorf("init tracer: %w", err)
		}
		defer func() {
			sctx, cancel := config.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdownTracer(sctx)
		}()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := observability.NewProm(reg)

	jwt := auth.NewManager(cfg.JWTSecret, cfg.AccessTTL(), cfg.RefreshTTL())

	var deps httpx.Deps

	switch cfg.Storage {
	case config.StorageMemory:
		log.Warn("using in-memory storage, data is lost on restart")
		deps = httpx.MemoryDeps(jwt)
		deps.Prom = prom

	case config.StoragePostgres:
		pool, err := db.NewPool(ctx, cfg.DBURL, 10)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pool.Close()

		var rdb *redisclient.Client
		if cfg.RedisAddr != "" {
			rdb = redisclient.New(redisclient.Config{
				Addr:     cfg.RedisAddr,
				Password: cfg.RedisPassword,
				DB:       cfg.RedisDB,
			})
			defer rdb.Close()

			pctx, cancel := config.WithTimeout(ctx, 2*time.Second)
			err := rdb.Ping(pctx)
			cancel()
			if err != nil {
				// readyz reports it, logout falls back to best effort
				log.Warn("redis not reachable at startup", "addr", cfg.RedisAddr, "err", err)
			}
		} else {
			log.Warn("REDIS_ADDR not set, access token denylist is per process")
		}

		deps = httpx.PostgresDeps(pool, rdb, jwt, prom)

	default:
		return fmt.Errorf("unknown STORAGE %q", cfg.Storage)
	}

	sctx, cancel := config.WithTimeout(ctx, 5*time.Second)
	err := db.EnsureAdminUser(sctx, deps.Users, cfg)
	cancel()
	if err != nil {
		return fmt.Errorf("seed admin user: %w", err)
	}

	var shuttingDown atomic.Bool
	deps.ShuttingDown = shuttingDown.Load
	deps.Gatherer = reg

	router := httpx.NewRouter(log, cfg, deps)

	// server set up
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		log.Info("Server starting", "port", cfg.Port, "env", cfg.Env, "storage", cfg.Storage)
		err := srv.ListenAndServe()

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	// Graceful shutdown
	log.Info("server shutting down")
	shuttingDown.Store(true)

	shutdownCtx, cancelShutdown := config.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "err", err)
		return err
	}

	log.Info("shutdown complete")
	return nil
}
