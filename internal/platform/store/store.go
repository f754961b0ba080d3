// Package store opens the backends rollcall writes to: postgres for jobs,
// members and reference data, clickhouse for the audit mirror and redis for
// the verification counter and progress fan-out. Each backend is optional
// here; the binaries decide which ones they require.
package store

import (
	"context"
	"errors"
	"fmt"

	"rollcall/internal/platform/logger"
	"rollcall/internal/platform/store/rds"

	"github.com/rs/zerolog"
)

// Row is one scanned result row
type Row interface {
	Scan(dest ...any) error
}

// Rows is a result set; Close must be called
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
	Columns() []string
}

// CommandTag reports what a write did
type CommandTag interface {
	String() string
	RowsAffected() int64
}

// RowQuerier is the sql surface repos are written against
type RowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) Row
}

// TxRunner is a RowQuerier that can also open transactions
type TxRunner interface {
	RowQuerier
	Tx(ctx context.Context, fn func(q RowQuerier) error) error
}

// Clickhouse is the columnar sink. Insert takes [][]any in column order.
type Clickhouse interface {
	Insert(ctx context.Context, table string, data any) error
	Query(ctx context.Context, sql string, args ...any) (Rows, error)
	Close() error
}

// Store holds whichever backends were opened; the others stay nil
type Store struct {
	Log logger.Logger
	PG  TxRunner
	CH  Clickhouse
	RDS *rds.Client
}

// Option configures Open
type Option func(*Store)

// WithLogger sets the logger handed to the backends
func WithLogger(l logger.Logger) Option { return func(s *Store) { s.Log = l } }

// Open connects every backend cfg enables. A failure closes whatever was
// already open.
func Open(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	s := &Store{Log: zerolog.Nop()}
	for _, o := range opts {
		o(s)
	}

	if cfg.PG.Enabled {
		c, err := openPG(ctx, cfg, s.Log)
		if err != nil {
			return nil, fmt.Errorf("store: postgres: %w", err)
		}
		s.PG = c
	}
	if cfg.CH.Enabled {
		c, err := openCH(ctx, cfg)
		if err != nil {
			_ = s.Close(ctx)
			return nil, fmt.Errorf("store: clickhouse: %w", err)
		}
		s.CH = c
	}
	if cfg.RDS.Enabled {
		r, err := rds.Open(ctx, rds.Config{URL: cfg.RDS.URL, PoolSize: cfg.RDS.PoolSize})
		if err != nil {
			_ = s.Close(ctx)
			return nil, fmt.Errorf("store: redis: %w", err)
		}
		s.RDS = r
	}

	s.Log.Info().
		Bool("pg", s.PG != nil).
		Bool("ch", s.CH != nil).
		Bool("redis", s.RDS != nil).
		Msg("store open")
	return s, nil
}

// Close releases every open backend and joins their errors
func (s *Store) Close(_ context.Context) error {
	if s == nil {
		return nil
	}
	var errs []error
	if s.RDS != nil {
		errs = append(errs, s.RDS.Close())
	}
	if s.CH != nil {
		errs = append(errs, s.CH.Close())
	}
	if c, ok := s.PG.(interface{ Close() error }); ok {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
