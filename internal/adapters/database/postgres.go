package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// PostgreSQLConfig contains connection pool configuration
type PostgreSQLConfig struct {
	// DatabaseURL accepts either URL or key=value DSN form
	DatabaseURL string

	MaxConns int32
	MinConns int32
}

// PostgreSQLAdapter implements ports.DBPort over a pgx connection pool
type PostgreSQLAdapter struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgreSQLAdapter opens the pool and verifies connectivity
func NewPostgreSQLAdapter(ctx context.Context, cfg *PostgreSQLConfig, logger *zap.Logger) (*PostgreSQLAdapter, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MinConns = cfg.MinConns
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logger.Info("Connected to PostgreSQL",
		zap.String("database", poolConfig.ConnConfig.Database),
		zap.String("host", poolConfig.ConnConfig.Host),
		zap.Int32("max_conns", cfg.MaxConns),
	)

	return &PostgreSQLAdapter{pool: pool, logger: logger}, nil
}

// GetDB returns the underlying connection pool
func (a *PostgreSQLAdapter) GetDB() *pgxpool.Pool {
	return a.pool
}

// Close closes the connection pool
func (a *PostgreSQLAdapter) Close() {
	a.logger.Info("Closing PostgreSQL connection pool")
	a.pool.Close()
}

// WithTransaction runs fn inside a transaction, committing when fn returns
// nil and rolling back otherwise. A panic in fn rolls back before
// propagating.
func (a *PostgreSQLAdapter) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && rbErr != pgx.ErrTxClosed {
			a.logger.Error("Transaction rollback failed",
				zap.Error(rbErr),
				zap.NamedError("cause", err),
			)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// HealthCheck pings the database
func (a *PostgreSQLAdapter) HealthCheck(ctx context.Context) error {
	return a.pool.Ping(ctx)
}
