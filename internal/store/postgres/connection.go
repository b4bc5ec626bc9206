// Package postgres implements store.Store and store.ApplicationStore on
// top of PostgreSQL via pgx, with schema migrations embedded and applied at
// startup.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"runtime"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver for database/sql, used only to run migrations
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// Config configures the connection pool. DSN is required; the rest have
// sane defaults applied by NewStore when left zero.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// Store is a pgx-backed implementation of store.Store and
// store.ApplicationStore.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore runs pending migrations then opens a connection pool against
// cfg.DSN.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	if err := runMigrations(cfg.DSN); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}

	maxConns := cfg.MaxConns
	if maxConns == 0 {
		maxConns = int32(max(4, runtime.GOMAXPROCS(0)*2))
	}
	minConns := cfg.MinConns
	if minConns == 0 {
		minConns = int32(min(2, int(maxConns)))
	}
	poolConfig.MaxConns = maxConns
	poolConfig.MinConns = minConns

	if cfg.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	}
	if cfg.ConnMaxIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.ConnMaxIdleTime
	}

	poolConfig.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, "SET TIMEZONE='UTC'")
		return err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("opening connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &Store{pool: pool}, nil
}

// NewStoreWithPool wraps an already-open pool without re-running
// migrations. Nothing in torque calls it: the Postgres broker is built from
// an existing Store's Pool() instead.
func NewStoreWithPool(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Pool exposes the underlying pgxpool, so the Postgres broker (which needs
// a dedicated connection to hold open for LISTEN) can be built against the
// same database without duplicating connection setup.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

func runMigrations(dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("opening migration connection: %w", err)
	}
	defer db.Close()

	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}
	return nil
}
