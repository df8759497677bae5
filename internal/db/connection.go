package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Tuning defaults applied when Config leaves a field zero.
const (
	defaultMaxConns    = 10
	defaultPingTimeout = 5 * time.Second
)

// Config holds connection settings for the conversation store.
type Config struct {
	// ConnString is the Postgres connection string.
	ConnString string

	// MaxConns caps the pool size. The pool is shared with the pgvector
	// index backend, so it must cover both transcript and segment traffic.
	MaxConns int32

	// PingTimeout bounds the startup connectivity check.
	PingTimeout time.Duration
}

// DB is the Postgres store for conversations, transcripts and source
// records. Its pool also backs the pgvector index.
type DB struct {
	pool *pgxpool.Pool
}

// New opens a connection pool and verifies connectivity with a bounded ping.
func New(cfg Config) (*DB, error) {
	poolCfg, err := cfg.poolConfig()
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	timeout := cfg.PingTimeout
	if timeout <= 0 {
		timeout = defaultPingTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// poolConfig translates Config into pgxpool settings.
func (c Config) poolConfig() (*pgxpool.Config, error) {
	poolCfg, err := pgxpool.ParseConfig(c.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	poolCfg.MaxConns = c.MaxConns
	if poolCfg.MaxConns <= 0 {
		poolCfg.MaxConns = defaultMaxConns
	}
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute
	return poolCfg, nil
}

// Pool exposes the underlying pool for the pgvector index backend.
func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

// Close closes the connection pool.
func (db *DB) Close() {
	db.pool.Close()
}
