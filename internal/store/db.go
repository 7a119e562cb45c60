package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/samims/notify/internal/config"
)

// ConnectPostgres creates the shared pgx pool and pings it
func ConnectPostgres(ctx context.Context, dbCfg config.DBConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(dbCfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres url: %w", err)
	}
	if dbCfg.MaxOpenConn > 0 {
		poolCfg.MaxConns = dbCfg.MaxOpenConn
	}
	if dbCfg.MinConn > 0 {
		poolCfg.MinConns = dbCfg.MinConn
	}
	if dbCfg.ConnMaxIdle > 0 {
		poolCfg.MaxConnIdleTime = dbCfg.ConnMaxIdle
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	// ping to ensure connection is valid
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return pool, nil
}

// NewSQLX exposes the pgx pool through database/sql for sqlx and goose.
// Closing the returned handle does not close the pool.
func NewSQLX(pool *pgxpool.Pool) *sqlx.DB {
	return sqlx.NewDb(stdlib.OpenDBFromPool(pool), "pgx")
}
