// Package repo is the Postgres lease queue behind upload jobs
package repo

import (
	"context"
	"encoding/json"
	"time"

	"rollcall/internal/modkit/repokit"
	"rollcall/internal/platform/store"
	"rollcall/internal/services/jobs/domain"
)

// Repo is the raw queue storage. Every lease guarded write reports whether it
// matched, so callers can tell a lost lease from an error.
type Repo interface {
	Insert(ctx context.Context, nj domain.NewJob) (bool, error)
	Get(ctx context.Context, jobID string) (domain.Job, error)
	CancelQueued(ctx context.Context, jobID string) (bool, error)
	RetryFailed(ctx context.Context, jobID string) (bool, error)

	Lease(ctx context.Context, worker string, limit int) ([]domain.Job, error)
	Heartbeat(ctx context.Context, jobID, worker string) (bool, error)
	Progress(ctx context.Context, jobID, worker, stage string, pct int, message string) (bool, error)
	Complete(ctx context.Context, jobID, worker string, result json.RawMessage, message string) (bool, error)
	Requeue(ctx context.Context, jobID, worker, reason string, next time.Time) (bool, error)
	MarkFailed(ctx context.Context, jobID, worker, reason string) (domain.Job, bool, error)

	ReapStalled(ctx context.Context, stallAfter, timeout time.Duration, maxStalls int) ([]domain.Job, error)
	Sweep(ctx context.Context, keepCompleted, keepFailed int, maxAge time.Duration) (int64, error)
	RecentByFileName(ctx context.Context, name string, since time.Time) ([]domain.Job, error)
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

const jobCols = `
	job_id::text, file_path, file_name, submitter, COALESCE(role, ''), priority, source, state,
	attempts, max_attempts, stall_count,
	COALESCE(stage, ''), COALESCE(last_completed_stage, ''), progress, COALESCE(message, ''), COALESCE(failure_reason, ''),
	next_attempt_at, COALESCE(leased_by, ''), heartbeat_at, started_at, finished_at, created_at, updated_at,
	result
`

func scanJob(r store.Row) (domain.Job, error) {
	var j domain.Job
	var source, state string
	var result []byte
	err := r.Scan(
		&j.JobID, &j.FilePath, &j.FileName, &j.Submitter, &j.Role, &j.Priority, &source, &state,
		&j.Attempts, &j.MaxAttempts, &j.StallCount,
		&j.Stage, &j.LastCompletedStage, &j.Progress, &j.Message, &j.FailureReason,
		&j.NextAttemptAt, &j.LeasedBy, &j.HeartbeatAt, &j.StartedAt, &j.FinishedAt, &j.CreatedAt, &j.UpdatedAt,
		&result,
	)
	if err != nil {
		return domain.Job{}, err
	}
	j.Source, j.State = domain.Source(source), domain.State(state)
	if len(result) > 0 {
		j.Result = json.RawMessage(result)
	}
	return j, nil
}

func affected(tag store.CommandTag, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Insert adds a queued job; a repeated job id is a no-op reported as false
func (r *queries) Insert(ctx context.Context, nj domain.NewJob) (bool, error) {
	const sql = `
		INSERT INTO upload_jobs (job_id, file_path, file_name, submitter, role, priority, source, max_attempts)
		VALUES ($1::uuid, $2, $3, $4, NULLIF($5, ''), $6, $7, $8)
		ON CONFLICT (job_id) DO NOTHING
	`
	return affected(r.q.Exec(ctx, sql, nj.JobID, nj.FilePath, nj.FileName, nj.Submitter, nj.Role, nj.Priority, string(nj.Source), nj.MaxAttempts))
}

func (r *queries) Get(ctx context.Context, jobID string) (domain.Job, error) {
	sql := `SELECT ` + jobCols + ` FROM upload_jobs WHERE job_id = $1::uuid`
	return store.One(ctx, r.q, scanJob, sql, jobID)
}

func (r *queries) CancelQueued(ctx context.Context, jobID string) (bool, error) {
	const sql = `
		UPDATE upload_jobs
		   SET state = 'cancelled', finished_at = now(), message = 'cancelled', updated_at = now()
		 WHERE job_id = $1::uuid AND state = 'queued'
	`
	return affected(r.q.Exec(ctx, sql, jobID))
}

func (r *queries) RetryFailed(ctx context.Context, jobID string) (bool, error) {
	const sql = `
		UPDATE upload_jobs
		   SET state = 'queued', attempts = 0, stall_count = 0, next_attempt_at = now(),
		       failure_reason = NULL, finished_at = NULL, leased_by = NULL, heartbeat_at = NULL,
		       progress = 0, message = 'retry requested', updated_at = now()
		 WHERE job_id = $1::uuid AND state = 'failed'
	`
	return affected(r.q.Exec(ctx, sql, jobID))
}

// Lease claims ready jobs, most urgent first and oldest first within a priority
func (r *queries) Lease(ctx context.Context, worker string, limit int) ([]domain.Job, error) {
	sql := `
		WITH ready AS (
			SELECT job_id
			  FROM upload_jobs
			 WHERE state = 'queued'
			   AND next_attempt_at <= now()
			 ORDER BY priority ASC, created_at ASC
			 LIMIT $1
			 FOR UPDATE SKIP LOCKED
		)
		UPDATE upload_jobs j
		   SET state = 'active',
		       attempts = j.attempts + 1,
		       leased_by = $2,
		       heartbeat_at = now(),
		       started_at = now(),
		       stage = 'initializing',
		       progress = 0,
		       updated_at = now()
		  FROM ready
		 WHERE j.job_id = ready.job_id
		RETURNING ` + jobCols
	jobs, err := store.Many(ctx, r.q, scanJob, sql, limit, worker)
	if err != nil {
		return nil, err
	}
	sortByPriority(jobs)
	return jobs, nil
}

func (r *queries) Heartbeat(ctx context.Context, jobID, worker string) (bool, error) {
	const sql = `
		UPDATE upload_jobs SET heartbeat_at = now(), updated_at = now()
		 WHERE job_id = $1::uuid AND leased_by = $2 AND state = 'active'
	`
	return affected(r.q.Exec(ctx, sql, jobID, worker))
}

// Progress moves a job to stage. Leaving a stage marks it as the last completed one.
func (r *queries) Progress(ctx context.Context, jobID, worker, stage string, pct int, message string) (bool, error) {
	const sql = `
		UPDATE upload_jobs
		   SET last_completed_stage = CASE WHEN stage IS DISTINCT FROM $3 AND stage IS NOT NULL AND $3 <> 'error'
		                                   THEN stage ELSE last_completed_stage END,
		       stage = $3,
		       progress = GREATEST(progress, $4),
		       message = NULLIF($5, ''),
		       heartbeat_at = now(),
		       updated_at = now()
		 WHERE job_id = $1::uuid AND leased_by = $2 AND state = 'active'
	`
	return affected(r.q.Exec(ctx, sql, jobID, worker, stage, pct, message))
}

func (r *queries) Complete(ctx context.Context, jobID, worker string, result json.RawMessage, message string) (bool, error) {
	const sql = `
		UPDATE upload_jobs
		   SET state = 'completed',
		       last_completed_stage = 'completed',
		       stage = 'completed',
		       progress = 100,
		       message = NULLIF($4, ''),
		       result = $3::jsonb,
		       leased_by = NULL,
		       finished_at = now(),
		       updated_at = now()
		 WHERE job_id = $1::uuid AND leased_by = $2 AND state = 'active'
	`
	var body any
	if len(result) > 0 {
		body = string(result)
	}
	return affected(r.q.Exec(ctx, sql, jobID, worker, body, message))
}

func (r *queries) Requeue(ctx context.Context, jobID, worker, reason string, next time.Time) (bool, error) {
	const sql = `
		UPDATE upload_jobs
		   SET state = 'queued',
		       next_attempt_at = $4,
		       message = NULLIF($3, ''),
		       leased_by = NULL,
		       heartbeat_at = NULL,
		       updated_at = now()
		 WHERE job_id = $1::uuid AND leased_by = $2 AND state = 'active'
	`
	return affected(r.q.Exec(ctx, sql, jobID, worker, reason, next))
}

func (r *queries) MarkFailed(ctx context.Context, jobID, worker, reason string) (domain.Job, bool, error) {
	sql := `
		UPDATE upload_jobs
		   SET state = 'failed',
		       stage = 'error',
		       failure_reason = $3,
		       leased_by = NULL,
		       finished_at = now(),
		       updated_at = now()
		 WHERE job_id = $1::uuid AND leased_by = $2 AND state = 'active'
		RETURNING ` + jobCols
	j, err := store.One(ctx, r.q, scanJob, sql, jobID, worker, reason)
	if err != nil {
		if isNotFound(err) {
			return domain.Job{}, false, nil
		}
		return domain.Job{}, false, err
	}
	return j, true, nil
}

// ReapStalled releases active jobs whose worker went quiet or overran. Jobs
// past maxStalls fail instead of going back to the queue.
func (r *queries) ReapStalled(ctx context.Context, stallAfter, timeout time.Duration, maxStalls int) ([]domain.Job, error) {
	sql := `
		WITH stalled AS (
			SELECT job_id
			  FROM upload_jobs
			 WHERE state = 'active'
			   AND (heartbeat_at < now() - $1 * interval '1 second'
			        OR started_at < now() - $2 * interval '1 second')
			 FOR UPDATE SKIP LOCKED
		)
		UPDATE upload_jobs j
		   SET stall_count = j.stall_count + 1,
		       state = CASE WHEN j.stall_count + 1 > $3 THEN 'failed' ELSE 'queued' END,
		       stage = CASE WHEN j.stall_count + 1 > $3 THEN 'error' ELSE j.stage END,
		       failure_reason = CASE WHEN j.stall_count + 1 > $3
		                             THEN 'stalled ' || (j.stall_count + 1) || ' times' ELSE j.failure_reason END,
		       finished_at = CASE WHEN j.stall_count + 1 > $3 THEN now() ELSE NULL END,
		       message = 'stalled on ' || COALESCE(j.leased_by, 'unknown worker'),
		       next_attempt_at = now(),
		       leased_by = NULL,
		       heartbeat_at = NULL,
		       updated_at = now()
		  FROM stalled
		 WHERE j.job_id = stalled.job_id
		RETURNING ` + jobCols
	return store.Many(ctx, r.q, scanJob, sql, stallAfter.Seconds(), timeout.Seconds(), maxStalls)
}

// Sweep keeps the newest completed and failed jobs and drops anything terminal past maxAge
func (r *queries) Sweep(ctx context.Context, keepCompleted, keepFailed int, maxAge time.Duration) (int64, error) {
	const sql = `
		DELETE FROM upload_jobs
		 WHERE job_id IN (
			SELECT job_id FROM (
				SELECT job_id, state, COALESCE(finished_at, updated_at) AS done_at,
				       row_number() OVER (PARTITION BY state ORDER BY COALESCE(finished_at, updated_at) DESC) AS rn
				  FROM upload_jobs
				 WHERE state IN ('completed', 'failed', 'cancelled')
			) t
			 WHERE (t.state = 'completed' AND t.rn > $1)
			    OR (t.state = 'failed' AND t.rn > $2)
			    OR t.done_at < now() - $3 * interval '1 second'
		 )
	`
	tag, err := r.q.Exec(ctx, sql, keepCompleted, keepFailed, maxAge.Seconds())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *queries) RecentByFileName(ctx context.Context, name string, since time.Time) ([]domain.Job, error) {
	sql := `
		SELECT ` + jobCols + `
		  FROM upload_jobs
		 WHERE file_name = $1
		   AND state IN ('queued', 'active', 'completed')
		   AND created_at >= $2
		 ORDER BY created_at DESC
	`
	return store.Many(ctx, r.q, scanJob, sql, name, since)
}
