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

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/rezkam/torque/internal/broker"
	"github.com/rezkam/torque/internal/clock"
	"github.com/rezkam/torque/internal/config"
	"github.com/rezkam/torque/internal/duescanner"
	"github.com/rezkam/torque/internal/lifecycle"
	"github.com/rezkam/torque/internal/performer"
	"github.com/rezkam/torque/internal/store"
	"github.com/rezkam/torque/internal/store/postgres"
	"github.com/rezkam/torque/internal/store/sqlite"
	"github.com/rezkam/torque/internal/workerpool"
	"github.com/rezkam/torque/pkg/observability"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadWorkerConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	lp, logger, err := observability.InitLogger(ctx, "torque-worker", cfg.OTelEnabled)
	if err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	defer shutdownWithTimeout(lp.Shutdown, 5*time.Second, "logger provider")
	slog.SetDefault(logger)

	tp, err := observability.InitTracerProvider(ctx, "torque-worker", cfg.OTelEnabled)
	if err != nil {
		return fmt.Errorf("failed to init tracer provider: %w", err)
	}
	defer shutdownWithTimeout(tp.Shutdown, 5*time.Second, "tracer provider")

	mp, err := observability.InitMeterProvider(ctx, "torque-worker", cfg.OTelEnabled)
	if err != nil {
		return fmt.Errorf("failed to init meter provider: %w", err)
	}
	defer shutdownWithTimeout(mp.Shutdown, 5*time.Second, "meter provider")

	slog.InfoContext(ctx, "starting torque worker", "store_backend", cfg.Store.Backend, "broker_backend", cfg.Broker.Backend)

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

	manager := lifecycle.New(taskStore, clock.Real{}, lifecycle.Config{
		MaxTaskErrors: cfg.Lifecycle.MaxTaskErrors,
		MaxTaskDelay:  cfg.Lifecycle.MaxTaskDelay,
	})

	httpClient := &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	perform := performer.New(manager, httpClient)

	pool := workerpool.New(instructionBroker, perform, taskStore, workerpool.Config{
		MaxTasks:        cfg.Pool.MaxTasks,
		MinDelay:        cfg.Pool.MinDelay,
		MaxEmptyDelay:   cfg.Pool.MaxEmptyDelay,
		MaxErrorDelay:   cfg.Pool.MaxErrorDelay,
		EmptyMultiplier: cfg.Pool.EmptyMultiplier,
		ErrorMultiplier: cfg.Pool.ErrorMultiplier,
		FinishOnEmpty:   cfg.Pool.FinishOnEmpty,
	})

	scanner := duescanner.New(taskStore, instructionBroker, duescanner.Config{
		Interval:  cfg.DueScanner.Interval,
		BatchSize: cfg.DueScanner.BatchSize,
	})
	scanner.Start(ctx)
	defer scanner.Stop()

	slog.InfoContext(ctx, "worker pool running", "max_tasks", cfg.Pool.MaxTasks)
	drained, err := pool.Run(ctx)
	if err != nil {
		return fmt.Errorf("worker pool stopped with error: %w", err)
	}
	if drained {
		slog.InfoContext(ctx, "worker pool drained, nothing left pending")
	} else {
		slog.InfoContext(ctx, "worker pool stopped")
	}

	return nil
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
