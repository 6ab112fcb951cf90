package db

import (
	"context"
	"fmt"
	"time"

	"orderhub/internal/xpkg/config"
	"orderhub/internal/xpkg/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

type DB struct {
	pool  *pgxpool.Pool
	mylog logger.Logger
}

// Start opens a connection pool and verifies it with a ping.
func Start(ctx context.Context, dbCfg *config.Postgres, mylog logger.Logger) (*DB, error) {
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		dbCfg.User,
		dbCfg.Password,
		dbCfg.Host,
		dbCfg.Port,
		dbCfg.Database,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	poolConfig.MaxConns = dbCfg.MaxConns

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool, mylog: mylog}, nil
}

func (d *DB) Pool() *pgxpool.Pool {
	return d.pool
}

// IsAlive pings the pool.
func (d *DB) IsAlive(ctx context.Context) error {
	if d.pool == nil {
		return fmt.Errorf("DB is not initialized")
	}
	return d.pool.Ping(ctx)
}

func (d *DB) Close() error {
	if d.pool != nil {
		d.pool.Close()
	}
	return nil
}
