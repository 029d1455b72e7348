package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/pscheid92/streamroom/internal/adapter/httpserver"
	"github.com/pscheid92/streamroom/internal/adapter/memory"
	"github.com/pscheid92/streamroom/internal/adapter/metrics"
	"github.com/pscheid92/streamroom/internal/adapter/postgres"
	redisstore "github.com/pscheid92/streamroom/internal/adapter/redis"
	"github.com/pscheid92/streamroom/internal/adapter/sqlite"
	"github.com/pscheid92/streamroom/internal/adapter/websocket"
	"github.com/pscheid92/streamroom/internal/app"
	"github.com/pscheid92/streamroom/internal/broadcast"
	"github.com/pscheid92/streamroom/internal/domain"
	"github.com/pscheid92/streamroom/internal/platform/config"
	"github.com/pscheid92/streamroom/internal/platform/logging"
	"github.com/pscheid92/streamroom/internal/platform/retry"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const (
	setupTimeout    = 60 * time.Second
	shutdownTimeout = 10 * time.Second
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func connectPolicy(cfg *config.Config, clock clockwork.Clock) retry.Policy {
	return retry.Policy{
		MaxAttempts:    cfg.StoreConnectAttempts,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		Clock:          clock,
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			slog.Warn("Store connection failed, retrying", "backend", cfg.StoreBackend, "attempt", attempt, "backoff", backoff, "error", err)
		},
	}
}

// setupStore opens the configured backend. Durable backends are retried while
// their server comes up.
func setupStore(ctx context.Context, cfg *config.Config, reg prometheus.Registerer, clock clockwork.Clock) (domain.StateStore, error) {
	switch cfg.StoreBackend {
	case config.BackendMemory:
		return memory.NewStore(), nil

	case config.BackendSQLite:
		store, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return store, nil

	case config.BackendRedis:
		redisMetrics := metrics.NewRedisMetrics(reg)
		client, err := retry.Do(ctx, connectPolicy(cfg, clock), retry.Always, func(ctx context.Context) (*goredis.Client, error) {
			return redisstore.NewClient(ctx, cfg.RedisURL, redisMetrics)
		})
		if err != nil {
			return nil, err
		}
		return redisstore.NewStore(client, redisstore.DefaultKeyPrefix), nil

	case config.BackendPostgres:
		tracer := postgres.NewMetricsTracer(metrics.NewPostgresMetrics(reg))
		pool, err := retry.Do(ctx, connectPolicy(cfg, clock), retry.Always, func(ctx context.Context) (*pgxpool.Pool, error) {
			return postgres.Connect(ctx, cfg.DatabaseURL, tracer)
		})
		if err != nil {
			return nil, err
		}
		if err := postgres.RunMigrationsWithLock(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		return postgres.NewStore(pool), nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "store", cfg.StoreBackend)

	if err := run(cfg, clock); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Application stopped")
}

func run(cfg *config.Config, clock clockwork.Clock) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := metrics.NewRegistry()

	setupCtx, cancelSetup := context.WithTimeout(ctx, setupTimeout)
	defer cancelSetup()

	store, err := setupStore(setupCtx, cfg, reg, clock)
	if err != nil {
		return fmt.Errorf("failed to set up %s store: %w", cfg.StoreBackend, err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Error("Failed to close store", "error", err)
		}
	}()

	// The room starts from the seed on every boot, before any client can connect.
	if err := store.Initialize(setupCtx, cfg.PollOptions, cfg.HostUsername); err != nil {
		return fmt.Errorf("failed to initialize room state: %w", err)
	}
	slog.Info("Room state initialized", "poll_options", cfg.PollOptions, "host", cfg.HostUsername)

	hub := broadcast.NewHub(cfg.HubBufferSize, clock, metrics.NewHubMetrics(reg))
	appSvc := app.NewService(store, hub, clock, metrics.NewVoteMetrics(reg))

	gateway := websocket.NewGateway(appSvc, hub, websocket.GatewayConfig{
		AllowedOrigins:      cfg.AllowedOrigins,
		IsDevelopment:       cfg.AppEnv == "development",
		MaxConnections:      cfg.MaxWebSocketConnections,
		MaxConnectionsPerIP: cfg.MaxWebSocketConnectionsPerIP,
	}, clock, metrics.NewWebSocketMetrics(reg))

	srv := httpserver.NewServer(cfg, httpserver.Dependencies{
		App:              appSvc,
		WebSocketHandler: gateway.Handle,
		MetricsHandler:   metrics.Handler(reg),
		HTTPMetrics:      metrics.NewHTTPMetrics(reg),
		HealthChecks:     []httpserver.HealthCheck{{Name: "store", Check: store.Ping}},
		Clock:            clock,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)

		// Shutdown does not track upgraded connections; stopping the hub closes them.
		hub.Stop()
		return err
	})

	return g.Wait()
}
