// Package postgres implements every domain/ports repository by hand
// over raw pgx SQL. Grounded on the teacher's
// internal/adapters/postgres/db.go (pgxpool.Pool wrapper,
// WithTransaction/WithReadOnlyTransaction) and
// internal/adapters/database/postgres.go (pool sizing, health check,
// pool-utilization monitoring); the sqlc-generated Queries type the
// teacher builds its repositories on top of is not available in this
// retrieval pack, so queries here are written directly against
// *pgxpool.Pool / pgx.Tx through the narrow ports.DBTX interface.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ledgerflow/subscriptions/internal/domain/ports"
	"go.uber.org/zap"
)

// Config mirrors the teacher's PostgreSQLConfig/DefaultPostgreSQLConfig
// pool-sizing knobs, mapped onto spec.md §6's DB_POOL_SIZE/DB_MAX_OVERFLOW.
type Config struct {
	DatabaseURL     string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

func DefaultConfig(databaseURL string) *Config {
	return &Config{
		DatabaseURL:     databaseURL,
		MaxConns:        50,
		MinConns:        10,
		MaxConnLifetime: 30 * time.Minute,
		MaxConnIdleTime: 15 * time.Minute,
	}
}

// pgxConn is satisfied by both *pgxpool.Pool and pgx.Tx, letting
// execAdapter wrap either one uniformly.
type pgxConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// execAdapter narrows a pgxConn down to ports.DBTX.
type execAdapter struct{ conn pgxConn }

func (e execAdapter) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	tag, err := e.conn.Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (e execAdapter) Query(ctx context.Context, sql string, args ...any) (ports.Rows, error) {
	rows, err := e.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (e execAdapter) QueryRow(ctx context.Context, sql string, args ...any) ports.Row {
	return e.conn.QueryRow(ctx, sql, args...)
}

// DB wraps a pgxpool.Pool as both a default ports.DBTX (outside any
// transaction) and a ports.TransactionManager.
type DB struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func Connect(ctx context.Context, cfg *Config, logger *zap.Logger) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		// SECURITY: do not wrap — the parse error may echo the DSN
		// (including the password) back into logs.
		return nil, fmt.Errorf("failed to parse database configuration: invalid connection parameters")
	}
	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MinConns = cfg.MinConns
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to establish database connection pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database connection test failed: %w", err)
	}

	logger.Info("postgres pool initialized",
		zap.Int32("max_conns", poolConfig.MaxConns),
		zap.Int32("min_conns", poolConfig.MinConns),
	)

	return &DB{pool: pool, logger: logger}, nil
}

func (db *DB) Close() {
	db.pool.Close()
}

func (db *DB) HealthCheck(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// Pool exposes the underlying connection pool for components (the
// metrics server's health checker) that need to observe it directly.
func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

// Default returns a ports.DBTX that runs directly against the pool,
// outside any transaction, for read paths that don't need one.
func (db *DB) Default() ports.DBTX {
	return execAdapter{conn: db.pool}
}

// WithTx implements ports.TransactionManager: begins a transaction, runs
// fn against it, and commits on nil error or rolls back otherwise.
// Grounded on the teacher's PostgreSQLAdapter.WithTx.
func (db *DB) WithTx(ctx context.Context, fn func(tx ports.DBTX) error) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(execAdapter{conn: tx}); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			db.logger.Error("failed to rollback transaction", zap.Error(rbErr), zap.NamedError("original_error", err))
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// StartPoolMonitoring periodically logs connection pool utilization,
// warning at 80% and erroring at 95%, mirroring the teacher's
// PostgreSQLAdapter.StartPoolMonitoring.
func (db *DB) StartPoolMonitoring(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				stat := db.pool.Stat()
				total := stat.MaxConns()
				acquired := stat.AcquiredConns()
				if total == 0 {
					continue
				}
				utilization := float64(acquired) / float64(total) * 100
				if utilization > 95 {
					db.logger.Error("database connection pool near exhaustion", zap.Float64("utilization_percent", utilization))
				} else if utilization > 80 {
					db.logger.Warn("database connection pool highly utilized", zap.Float64("utilization_percent", utilization))
				}
			}
		}
	}()
}
