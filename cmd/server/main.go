package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rezkam/torque/internal/application/auth"
	"github.com/rezkam/torque/internal/broker"
	"github.com/rezkam/torque/internal/config"
	"github.com/rezkam/torque/internal/httpapi"
	"github.com/rezkam/torque/internal/store"
	"github.com/rezkam/torque/internal/store/postgres"
	"github.com/rezkam/torque/internal/store/sqlite"
	"github.com/rezkam/torque/pkg/observability"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	lp, logger, err := observability.InitLogger(ctx, "torque-server", cfg.OTelEnabled)
	if err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	defer shutdownWithTimeout(lp.Shutdown, 5*time.Second, "logger provider")
	slog.SetDefault(logger)

	tp, err := observability.InitTracerProvider(ctx, "torque-server", cfg.OTelEnabled)
	if err != nil {
		return fmt.Errorf("failed to init tracer provider: %w", err)
	}
	defer shutdownWithTimeout(tp.Shutdown, 5*time.Second, "tracer provider")

	mp, err := observability.InitMeterProvider(ctx, "torque-server", cfg.OTelEnabled)
	if err != nil {
		return fmt.Errorf("failed to init meter provider: %w", err)
	}
	defer shutdownWithTimeout(mp.Shutdown, 5*time.Second, "meter provider")

	slog.InfoContext(ctx, "starting torque server", "store_backend", cfg.Store.Backend, "broker_backend", cfg.Broker.Backend)

	taskStore, closeStore, err := newStore(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer closeStore()

	instructionBroker, closeBroker, err := newBroker(ctx, cfg.Broker, taskStore)
	if err != nil {
		return fmt.Errorf("failed to open broker: %w", err)
	}
	defer closeBroker()

	repo, ok := taskStore.(auth.Repository)
	if !ok {
		return fmt.Errorf("store backend %q does not implement auth.Repository", cfg.Store.Backend)
	}
	authenticator := auth.NewAuthenticator(repo, auth.Config{
		UpdateQueueSize:  cfg.Auth.UpdateQueueSize,
		OperationTimeout: cfg.Auth.OperationTimeout,
	})

	server := httpapi.NewServer(taskStore, instructionBroker, httpapi.Config{
		DefaultTimeout:    cfg.DefaultTimeout,
		ProxyHeaderPrefix: cfg.ProxyHeaderPrefix,
	})
	router := httpapi.NewRouter(server, authenticator, httpapi.RouterConfig{
		MaxBodyBytes: cfg.MaxBodyBytes,
	})

	httpServer := NewHTTPServer(router, cfg)

	errResult := make(chan error, 1)
	go func() {
		if err := httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errResult <- fmt.Errorf("failed to serve HTTP: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		slog.InfoContext(ctx, "shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.WarnContext(shutdownCtx, "HTTP server shutdown error", "error", err)
		}

		if err := authenticator.Shutdown(shutdownCtx); err != nil {
			slog.WarnContext(shutdownCtx, "authenticator shutdown timeout", "error", err)
		} else {
			slog.InfoContext(shutdownCtx, "authenticator shutdown complete")
		}

		return nil
	case err := <-errResult:
		return err
	}
}

func newStore(ctx context.Context, cfg config.StoreConfig) (store.Store, func(), error) {
	switch cfg.Backend {
	case "postgres":
		s, err := postgres.NewStore(ctx, postgres.Config{
			DSN:             cfg.DSN,
			MaxConns:        int32(cfg.MaxConns),
			MinConns:        int32(cfg.MinConns),
			ConnMaxLifetime: time.Duration(cfg.ConnMaxLifetime) * time.Second,
			ConnMaxIdleTime: time.Duration(cfg.ConnMaxIdleTime) * time.Second,
		})
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		s, err := sqlite.NewStore(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	}
}

func newBroker(ctx context.Context, cfg config.BrokerConfig, s store.Store) (broker.Broker, func(), error) {
	switch cfg.Backend {
	case "postgres":
		pgStore, ok := s.(*postgres.Store)
		if !ok {
			return nil, nil, fmt.Errorf("postgres broker requires postgres store backend")
		}
		b, err := broker.NewPostgres(ctx, pgStore.Pool())
		if err != nil {
			return nil, nil, err
		}
		return b, b.Close, nil
	default:
		return broker.NewMemory(cfg.MemoryCapacity), func() {}, nil
	}
}

func shutdownWithTimeout(shutdown func(context.Context) error, timeout time.Duration, what string) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "failed to shutdown "+what, "error", err)
	}
}
