// Package repo stores file_uploads tracking rows
package repo

import (
	"context"

	"rollcall/internal/modkit/repokit"
	perr "rollcall/internal/platform/errors"
	"rollcall/internal/services/intake/domain"
)

type (
	// PG is the Postgres implementation
	PG      struct{}
	queries struct{ q repokit.Queryer }
)

// NewPG returns a binder for the Postgres implementation
func NewPG() repokit.Binder[domain.Tracker] { return PG{} }

// Bind attaches a Queryer
func (PG) Bind(q repokit.Queryer) domain.Tracker { return &queries{q: q} }

func (r *queries) Track(ctx context.Context, u domain.Upload) error {
	const sql = `
		INSERT INTO file_uploads (job_id, file_name, file_path, size_bytes, status, detail)
		VALUES ($1::uuid, $2, $3, $4, $5, NULLIF($6, ''))
	`
	_, err := r.q.Exec(ctx, sql, u.JobID, u.FileName, u.FilePath, u.SizeBytes, string(u.Status), u.Detail)
	return perr.WrapIf(err, perr.ErrorCodeDB, "file_uploads: insert")
}

func (r *queries) SetStatus(ctx context.Context, jobID string, s domain.Status, detail string) error {
	const sql = `
		UPDATE file_uploads
		   SET status = $2, detail = NULLIF($3, ''), updated_at = now()
		 WHERE job_id = $1::uuid
	`
	tag, err := r.q.Exec(ctx, sql, jobID, string(s), detail)
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeDB, "file_uploads: set status")
	}
	if tag.RowsAffected() == 0 {
		return perr.NotFoundf("file_uploads: no row for job %s", jobID)
	}
	return nil
}
