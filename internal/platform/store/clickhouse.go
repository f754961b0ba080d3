package store

import (
	"context"
	"fmt"

	"rollcall/internal/platform/store/ch"
)

// chStore adapts *ch.CH to Clickhouse
type chStore struct{ c *ch.CH }

func openCH(ctx context.Context, cfg Config) (*chStore, error) {
	c, err := ch.Open(ctx, ch.Config{URL: cfg.CH.URL, Role: cfg.CH.Role, Tag: cfg.AppName})
	if err != nil {
		return nil, err
	}
	return &chStore{c: c}, nil
}

func (s *chStore) Insert(ctx context.Context, table string, data any) error {
	rows, ok := data.([][]any)
	if !ok {
		return fmt.Errorf("store: clickhouse insert into %s wants [][]any, got %T", table, data)
	}
	return s.c.Insert(ctx, table, rows)
}

func (s *chStore) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	r, err := s.c.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return chRows{r}, nil
}

func (s *chStore) Ping(ctx context.Context) error { return s.c.Ping(ctx) }

func (s *chStore) Close() error { return s.c.Close() }

// chRows drops the Close error, which clickhouse only reports for a
// connection that is already broken
type chRows struct{ ch.Rows }

func (r chRows) Close() { _ = r.Rows.Close() }
