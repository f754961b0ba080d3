// Package repo stores audit events in Postgres with an optional ClickHouse mirror
package repo

import (
	"context"
	"encoding/json"
	"time"

	"rollcall/internal/modkit/repokit"
	"rollcall/internal/platform/store"
	"rollcall/internal/services/audit/domain"
)

// Repo is the audit_log surface
type Repo interface {
	Insert(ctx context.Context, e domain.Event) error
	ForJob(ctx context.Context, jobID string) ([]domain.Event, error)
}

type (
	// PG is the Postgres implementation
	PG      struct{}
	queries struct{ q repokit.Queryer }
)

// NewPG returns a binder for the Postgres implementation
func NewPG() repokit.Binder[Repo] { return PG{} }

// Bind attaches a Queryer
func (PG) Bind(q repokit.Queryer) Repo { return &queries{q: q} }

func (r *queries) Insert(ctx context.Context, e domain.Event) error {
	const sql = `
		INSERT INTO audit_log (job_id, event, metadata, created_at)
		VALUES (NULLIF($1, '')::uuid, $2, $3::jsonb, $4)
	`
	meta, err := metadata(e)
	if err != nil {
		return err
	}
	_, err = r.q.Exec(ctx, sql, e.JobID, string(e.Type), meta, e.At)
	return err
}

func (r *queries) ForJob(ctx context.Context, jobID string) ([]domain.Event, error) {
	const sql = `
		SELECT COALESCE(job_id::text, ''), event, metadata::text, created_at
		FROM audit_log
		WHERE job_id = $1::uuid
		ORDER BY created_at, id
	`
	return store.Many(ctx, r.q, func(row store.Row) (domain.Event, error) {
		var e domain.Event
		var typ, meta string
		if err := row.Scan(&e.JobID, &typ, &meta, &e.At); err != nil {
			return e, err
		}
		e.Type = domain.EventType(typ)
		if meta != "" && meta != "null" {
			if err := json.Unmarshal([]byte(meta), &e.Metadata); err != nil {
				return e, err
			}
		}
		return e, nil
	}, sql, jobID)
}

// Sink adapts the repo to domain.Sink
type Sink struct{ Repo Repo }

// Write stores e
func (s Sink) Write(ctx context.Context, e domain.Event) error { return s.Repo.Insert(ctx, e) }

// CHTable is the ClickHouse mirror table
const CHTable = "rollcall_audit"

// CHSink mirrors events into ClickHouse; columns are job_id, event, metadata, created_at
type CHSink struct{ CH store.Clickhouse }

// Write appends one row
func (s CHSink) Write(ctx context.Context, e domain.Event) error {
	meta, err := metadata(e)
	if err != nil {
		return err
	}
	return s.CH.Insert(ctx, CHTable, [][]any{{e.JobID, string(e.Type), meta, e.At.UTC().Truncate(time.Millisecond)}})
}

func metadata(e domain.Event) (string, error) {
	if len(e.Metadata) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(e.Metadata)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
