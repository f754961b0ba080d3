package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	perr "rollcall/internal/platform/errors"
	"rollcall/internal/platform/logger"
	"rollcall/internal/platform/store/pg"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// pgxDB is what a pgx pool and a pgx transaction have in common
type pgxDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// pgQuerier runs statements on a pool or a transaction and reports each one
// to the tracer
type pgQuerier struct {
	db     pgxDB
	tracer pg.QueryTracer
	slow   time.Duration
}

func (q pgQuerier) on(db pgxDB) pgQuerier { return pgQuerier{db: db, tracer: q.tracer, slow: q.slow} }

func (q pgQuerier) trace(ctx context.Context, sql string, args []any, start time.Time, err error) {
	if q.tracer == nil {
		return
	}
	d := time.Since(start)
	q.tracer.OnQuery(ctx, pg.QueryEvent{
		SQL:     sql,
		Args:    args,
		Elapsed: d,
		Err:     err,
		Slow:    q.slow > 0 && d >= q.slow,
	})
}

func (q pgQuerier) Exec(ctx context.Context, sql string, args ...any) (CommandTag, error) {
	start := time.Now()
	ct, err := q.db.Exec(ctx, sql, args...)
	q.trace(ctx, sql, args, start, err)
	return ct, err
}

func (q pgQuerier) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	start := time.Now()
	rs, err := q.db.Query(ctx, sql, args...)
	q.trace(ctx, sql, args, start, err)
	if err != nil {
		return nil, err
	}
	return pgRows{rs}, nil
}

// QueryRow is traced when the row is scanned, since pgx defers the error
// until then
func (q pgQuerier) QueryRow(ctx context.Context, sql string, args ...any) Row {
	start := time.Now()
	return pgRow{r: q.db.QueryRow(ctx, sql, args...), done: func(err error) { q.trace(ctx, sql, args, start, err) }}
}

// Savepoint isolates fn inside the current transaction. pgx issues a nested
// Begin on a Tx as SAVEPOINT, so a failed fn rolls back only its own work.
// On the pool there is no transaction to protect and fn runs directly.
func (q pgQuerier) Savepoint(ctx context.Context, fn func(RowQuerier) error) error {
	tx, ok := q.db.(pgx.Tx)
	if !ok {
		return fn(q)
	}
	sp, err := tx.Begin(ctx)
	if err != nil {
		return &SavepointError{Op: "begin", Err: perr.FromPostgres(err, "savepoint")}
	}
	if ferr := fn(q.on(sp)); ferr != nil {
		rerr := sp.Rollback(ctx)
		if rerr != nil && !perr.IsMissingSavepoint(rerr) && !errors.Is(rerr, pgx.ErrTxClosed) {
			return errors.Join(ferr, &SavepointError{Op: "rollback", Err: perr.FromPostgres(rerr, "rollback to savepoint")})
		}
		return ferr
	}
	if err := sp.Commit(ctx); err != nil && !perr.IsMissingSavepoint(err) {
		return &SavepointError{Op: "release", Err: perr.FromPostgres(err, "release savepoint")}
	}
	return nil
}

type pgRow struct {
	r    pgx.Row
	done func(error)
}

func (r pgRow) Scan(dst ...any) error {
	err := r.r.Scan(dst...)
	r.done(err)
	return err
}

type pgRows struct{ pgx.Rows }

func (r pgRows) Columns() []string {
	fds := r.FieldDescriptions()
	out := make([]string, len(fds))
	for i, fd := range fds {
		out[i] = fd.Name
	}
	return out
}

// pgClient is the pool level TxRunner
type pgClient struct {
	pgQuerier
	p *pg.PG
}

// Tx runs fn in a transaction, committing when fn returns nil
func (c *pgClient) Tx(ctx context.Context, fn func(RowQuerier) error) error {
	return pgx.BeginFunc(ctx, c.p.Pool, func(tx pgx.Tx) error { return fn(c.on(tx)) })
}

// Ping checks the pool without going through the tracer
func (c *pgClient) Ping(ctx context.Context) error { return c.p.Pool.Ping(ctx) }

// Close closes the pool
func (c *pgClient) Close() error {
	c.p.Close()
	return nil
}

func openPG(ctx context.Context, cfg Config, log logger.Logger) (*pgClient, error) {
	var tracer pg.QueryTracer
	if cfg.PG.LogSQL {
		tracer = pg.Tracer(log)
	}
	p, err := pg.Open(ctx, pg.Config{URL: cfg.PG.URL, MaxConns: cfg.PG.MaxConns, AppName: cfg.AppName})
	if err != nil {
		return nil, err
	}
	if err := awaitPing(ctx, cfg.PG.ConnectRetries, cfg.PG.PingTimeout, p.Pool.Ping); err != nil {
		p.Close()
		return nil, err
	}
	slow := time.Duration(cfg.PG.SlowQueryMs) * time.Millisecond
	return &pgClient{pgQuerier: pgQuerier{db: p.Pool, tracer: tracer, slow: slow}, p: p}, nil
}

// awaitPing retries ping with doubling backoff capped at 2s, for databases
// that start alongside the service
func awaitPing(ctx context.Context, attempts int, timeout time.Duration, ping func(context.Context) error) error {
	if attempts <= 0 {
		attempts = 20
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	wait := 150 * time.Millisecond
	var err error
	for i := range attempts {
		pctx, cancel := context.WithTimeout(ctx, timeout)
		err = ping(pctx)
		cancel()
		if err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		wait = min(wait*2, 2*time.Second)
	}
	return fmt.Errorf("no answer after %d attempts: %w", attempts, err)
}
