// Package migrate applies the embedded postgres schema in file name order
package migrate

import (
	"context"
	"embed"
	"io/fs"
	"sort"
	"strings"

	perr "rollcall/internal/platform/errors"
	"rollcall/internal/platform/logger"
	"rollcall/internal/platform/store"
)

//go:embed sql/*.sql
var files embed.FS

// lockKey serializes concurrent appliers across processes
const lockKey = 0x726f6c6c

// Versions lists the embedded migrations in apply order
func Versions() ([]string, error) {
	names, err := fs.Glob(files, "sql/*.sql")
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(names))
	for _, n := range names {
		out = append(out, strings.TrimSuffix(strings.TrimPrefix(n, "sql/"), ".sql"))
	}
	sort.Strings(out)
	return out, nil
}

// Apply runs each migration not yet recorded in schema_migrations, one
// transaction per file, and returns the versions it applied
func Apply(ctx context.Context, db store.TxRunner) ([]string, error) {
	log := logger.Named("migrate")
	const ensure = `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    text PRIMARY KEY,
			applied_at timestamptz NOT NULL DEFAULT now()
		)
	`
	if _, err := db.Exec(ctx, ensure); err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeDB, "migrate: create schema_migrations")
	}

	versions, err := Versions()
	if err != nil {
		return nil, err
	}
	var applied []string
	for _, v := range versions {
		body, err := files.ReadFile("sql/" + v + ".sql")
		if err != nil {
			return applied, err
		}
		done := false
		err = db.Tx(ctx, func(q store.RowQuerier) error {
			if _, err := q.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(lockKey)); err != nil {
				return err
			}
			var exists bool
			if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)`, v).Scan(&exists); err != nil {
				return err
			}
			if exists {
				return nil
			}
			if _, err := q.Exec(ctx, string(body)); err != nil {
				return err
			}
			if _, err := q.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, v); err != nil {
				return err
			}
			done = true
			return nil
		})
		if err != nil {
			return applied, perr.Wrapf(err, perr.ErrorCodeDB, "migrate: %s", v)
		}
		if done {
			log.Info().Str("version", v).Msg("migration applied")
			applied = append(applied, v)
		}
	}
	return applied, nil
}
