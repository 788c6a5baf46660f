// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/gatekeep/gatekeep/internal/auth"
	"github.com/gatekeep/gatekeep/internal/auth/postgres"
	"github.com/gatekeep/gatekeep/internal/cache"
	"github.com/gatekeep/gatekeep/internal/config"
	"github.com/gatekeep/gatekeep/internal/observability"
	"github.com/gatekeep/gatekeep/internal/store"
	"github.com/gatekeep/gatekeep/internal/web"
)

// shutdownTimeout bounds graceful shutdown of the HTTP servers.
const shutdownTimeout = 10 * time.Second

// Pool is the database handle used by serve.
type Pool interface {
	postgres.DB
	Ping(ctx context.Context) error
	Close()
}

// CacheStore is the cache handle used by serve.
type CacheStore interface {
	cache.Store
	Ping(ctx context.Context) error
	Close() error
}

// ServeDeps contains injectable dependencies for the serve command.
// Nil fields use their default implementations.
type ServeDeps struct {
	// PoolOpener connects to PostgreSQL.
	// Default: store.Open
	PoolOpener func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Pool, error)

	// CacheOpener connects to Redis.
	// Default: cache.NewRedisStoreFromURL
	CacheOpener func(cfg *config.Config, logger *slog.Logger) (CacheStore, error)

	// Hasher hashes passwords.
	// Default: auth.NewArgon2idHasher
	Hasher auth.PasswordHasher

	// Listen binds the API listener.
	// Default: net.Listen
	Listen func(network, address string) (net.Listener, error)
}

func (d *ServeDeps) withDefaults() *ServeDeps {
	out := ServeDeps{}
	if d != nil {
		out = *d
	}
	if out.PoolOpener == nil {
		out.PoolOpener = func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Pool, error) {
			return store.Open(ctx, cfg.DatabaseURL, cfg.DBConnectRetries, logger) //nolint:wrapcheck // store errors carry codes
		}
	}
	if out.CacheOpener == nil {
		out.CacheOpener = func(cfg *config.Config, logger *slog.Logger) (CacheStore, error) {
			return cache.NewRedisStoreFromURL(cfg.RedisURL, cfg.CacheTimeout, logger) //nolint:wrapcheck // cache errors carry codes
		}
	}
	if out.Hasher == nil {
		out.Hasher = auth.NewArgon2idHasher()
	}
	if out.Listen == nil {
		out.Listen = net.Listen
	}
	return &out
}

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the auth API server",
		Long: `Start the HTTP API for registration, login, token refresh, logout,
password reset and profile access, plus the metrics and health server.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, logger, nil)
		},
	}
}

// buildService assembles the auth core over db and the cache.
func buildService(db postgres.DB, kv cache.Store, hasher auth.PasswordHasher, cfg *config.Config, logger *slog.Logger) (*auth.Service, error) {
	repo := postgres.NewIdentityRepository(db, postgres.WithQueryTimeout(cfg.DBTimeout))
	creds, err := auth.NewCredentialStore(repo, kv, cfg.ProfileCacheTTL)
	if err != nil {
		return nil, err //nolint:wrapcheck // constructor errors carry codes
	}
	tokens, err := auth.NewTokenService(cfg.TokenConfig(), kv, creds)
	if err != nil {
		return nil, err //nolint:wrapcheck // constructor errors carry codes
	}
	resets, err := auth.NewResetServiceWithLogger(creds, hasher, auth.NewLogNotifier(logger), logger)
	if err != nil {
		return nil, err //nolint:wrapcheck // constructor errors carry codes
	}
	return auth.NewAuthServiceWithLogger(creds, hasher, tokens, resets, logger) //nolint:wrapcheck // constructor errors carry codes
}

// runServe runs the API until ctx is cancelled or a server fails.
func runServe(ctx context.Context, cfg *config.Config, logger *slog.Logger, deps *ServeDeps) error {
	deps = deps.withDefaults()

	if err := cfg.Validate(); err != nil {
		return oops.With("operation", "validate configuration").Wrap(err)
	}

	pool, err := deps.PoolOpener(ctx, cfg, logger)
	if err != nil {
		return oops.Code("SERVE_FAILED").With("operation", "connect to database").Wrap(err)
	}
	defer pool.Close()

	kv, err := deps.CacheOpener(cfg, logger)
	if err != nil {
		return oops.Code("SERVE_FAILED").With("operation", "connect to cache").Wrap(err)
	}
	defer func() {
		if closeErr := kv.Close(); closeErr != nil {
			logger.Warn("error closing cache", "error", closeErr)
		}
	}()

	svc, err := buildService(pool, kv, deps.Hasher, cfg, logger)
	if err != nil {
		return oops.Code("SERVE_FAILED").With("operation", "build auth service").Wrap(err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var metrics *observability.Metrics
	var obsServer *observability.Server
	if cfg.MetricsAddr != "" {
		obsServer = observability.NewServer(cfg.MetricsAddr, logger, map[string]observability.ReadinessChecker{
			"postgres": pool.Ping,
			"redis":    kv.Ping,
		})
		metrics = obsServer.Metrics()
		obsErrCh, startErr := obsServer.Start()
		if startErr != nil {
			return oops.Code("SERVE_FAILED").With("operation", "start observability server").Wrap(startErr)
		}
		go monitorServerErrors(ctx, cancel, obsErrCh, "observability", logger)
	}

	handler, err := web.NewHandler(svc, metrics, logger)
	if err != nil {
		return oops.Code("SERVE_FAILED").With("operation", "build http handler").Wrap(err)
	}

	listener, err := deps.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		stopObservability(obsServer, logger)
		return oops.Code("SERVE_FAILED").With("operation", "listen").With("addr", cfg.HTTPAddr).Wrap(err)
	}

	httpSrv := &http.Server{
		Handler:           web.NewRouter(handler, metrics, logger),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	apiErrCh := make(chan error, 1)
	go func() {
		defer close(apiErrCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			apiErrCh <- serveErr
		}
	}()

	logger.Info("gatekeep ready", "http_addr", listener.Addr().String(), "metrics_addr", cfg.MetricsAddr)

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case serveErr := <-apiErrCh:
		runErr = oops.Code("SERVE_FAILED").With("operation", "serve http").Wrap(serveErr)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("error stopping api server", "error", err)
	}
	stopObservability(obsServer, logger)

	logger.Info("shutdown complete")
	return runErr
}

func stopObservability(srv *observability.Server, logger *slog.Logger) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		logger.Warn("error stopping observability server", "error", err)
	}
}

// monitorServerErrors cancels ctx when a background server fails.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string, logger *slog.Logger) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			logger.Error("server error, triggering shutdown", "server", serverName, "error", err)
			cancel()
		}
	case <-ctx.Done():
	}
}
