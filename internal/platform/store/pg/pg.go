// Package pg opens the pgx pool and traces statements through zerolog
package pg

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Config configures the pool. AppName shows up in pg_stat_activity.
type Config struct {
	URL      string
	MaxConns int32
	AppName  string
}

// PG owns the pool
type PG struct {
	Pool *pgxpool.Pool
}

// PoolConfig parses cfg into a pgxpool config without connecting
func PoolConfig(cfg Config) (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("pg: parse url: %w", err)
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.AppName != "" {
		pc.ConnConfig.RuntimeParams["application_name"] = cfg.AppName
	}
	return pc, nil
}

// Open builds the pool. pgxpool connects lazily, so callers ping to wait
// for the server.
func Open(ctx context.Context, cfg Config) (*PG, error) {
	pc, err := PoolConfig(cfg)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("pg: pool: %w", err)
	}
	return &PG{Pool: pool}, nil
}

// Close closes the pool; a nil PG is fine
func (p *PG) Close() {
	if p != nil && p.Pool != nil {
		p.Pool.Close()
	}
}
