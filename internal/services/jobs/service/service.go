// Package service implements the upload job queue on top of the lease repo
package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"rollcall/internal/modkit/repokit"
	perr "rollcall/internal/platform/errors"
	"rollcall/internal/platform/logger"
	"rollcall/internal/platform/metrics"
	"rollcall/internal/services/jobs/domain"
	"rollcall/internal/services/jobs/repo"

	"github.com/google/uuid"
)

// Config is the queue policy
type Config struct {
	MaxAttempts   int
	RetryBase     time.Duration
	RetryMax      time.Duration
	StallAfter    time.Duration
	Timeout       time.Duration
	MaxStalls     int
	KeepCompleted int
	KeepFailed    int
	RetentionAge  time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.RetryBase <= 0 {
		c.RetryBase = 30 * time.Second
	}
	if c.RetryMax <= 0 {
		c.RetryMax = 15 * time.Minute
	}
	if c.StallAfter <= 0 {
		c.StallAfter = 2 * time.Minute
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Minute
	}
	if c.MaxStalls <= 0 {
		c.MaxStalls = 2
	}
	if c.KeepCompleted <= 0 {
		c.KeepCompleted = 100
	}
	if c.KeepFailed <= 0 {
		c.KeepFailed = 500
	}
	if c.RetentionAge <= 0 {
		c.RetentionAge = 7 * 24 * time.Hour
	}
	return c
}

// Svc is the queue
type Svc struct {
	repo     repo.Repo
	cfg      Config
	notifier domain.Notifier
	now      func() time.Time
}

// New constructs the queue. A nil notifier drops failure notifications.
func New(r repo.Repo, cfg Config, n domain.Notifier) *Svc {
	return &Svc{repo: r, cfg: cfg.withDefaults(), notifier: n, now: time.Now}
}

// NewPG binds the Postgres repo to q
func NewPG(q repokit.Queryer, cfg Config, n domain.Notifier) *Svc {
	return New(repokit.MustBind(repo.NewPG(), q), cfg, n)
}

var _ domain.Queue = (*Svc)(nil)

// Enqueue adds a job. Re-adding an existing job id changes nothing.
func (s *Svc) Enqueue(ctx context.Context, nj domain.NewJob) (string, bool, error) {
	if strings.TrimSpace(nj.FilePath) == "" {
		return "", false, perr.New(perr.ErrorCodeInvalidArgument, "jobs: file path is required")
	}
	if nj.JobID == "" {
		nj.JobID = uuid.NewString()
	} else if _, err := uuid.Parse(nj.JobID); err != nil {
		return "", false, perr.Wrap(err, perr.ErrorCodeInvalidArgument, "jobs: job id is not a uuid")
	}
	if nj.MaxAttempts <= 0 {
		nj.MaxAttempts = s.cfg.MaxAttempts
	}
	if nj.Source == "" {
		nj.Source = domain.SourceInteractive
	}
	if nj.Priority <= 0 {
		nj.Priority = domain.PriorityInteractive
		if nj.Source == domain.SourceWatcher {
			nj.Priority = domain.PriorityWatcher
		}
	}

	created, err := s.repo.Insert(ctx, nj)
	if err != nil {
		return "", false, perr.FromPostgres(err, "jobs: enqueue")
	}
	if created {
		metrics.JobTransitions.WithLabelValues(string(domain.StateQueued)).Inc()
		logger.C(ctx).Info().
			Str("job_id", nj.JobID).
			Str("file", nj.FileName).
			Int("priority", nj.Priority).
			Str("source", string(nj.Source)).
			Msg("job queued")
	}
	return nj.JobID, created, nil
}

// Status returns the job or NotFound
func (s *Svc) Status(ctx context.Context, jobID string) (domain.Job, error) {
	if _, err := uuid.Parse(jobID); err != nil {
		return domain.Job{}, perr.NotFoundf("job %s not found", jobID)
	}
	j, err := s.repo.Get(ctx, jobID)
	if err != nil {
		if perr.IsCode(err, perr.ErrorCodeNotFound) {
			return domain.Job{}, perr.NotFoundf("job %s not found", jobID)
		}
		return domain.Job{}, perr.FromPostgres(err, "jobs: status")
	}
	return j, nil
}

// Cancel stops a job that has not started. Active jobs run to completion.
func (s *Svc) Cancel(ctx context.Context, jobID string) error {
	return s.transition(ctx, jobID, domain.StateQueued, domain.StateCancelled, s.repo.CancelQueued)
}

// Retry puts a failed job back in the queue with fresh attempt counters
func (s *Svc) Retry(ctx context.Context, jobID string) error {
	return s.transition(ctx, jobID, domain.StateFailed, domain.StateQueued, s.repo.RetryFailed)
}

func (s *Svc) transition(ctx context.Context, jobID string, from, to domain.State, fn func(context.Context, string) (bool, error)) error {
	cur, err := s.Status(ctx, jobID)
	if err != nil {
		return err
	}
	ok, err := fn(ctx, jobID)
	if err != nil {
		return perr.FromPostgres(err, "jobs: transition")
	}
	if !ok {
		if again, err := s.Status(ctx, jobID); err == nil {
			cur = again
		}
		return perr.Conflictf("job %s is %s, only %s jobs can move to %s", jobID, cur.State, from, to)
	}
	metrics.JobTransitions.WithLabelValues(string(to)).Inc()
	logger.C(ctx).Info().Str("job_id", jobID).Str("from", string(from)).Str("to", string(to)).Msg("job transition")
	return nil
}

// Lease claims up to limit ready jobs for worker
func (s *Svc) Lease(ctx context.Context, worker string, limit int) ([]domain.Job, error) {
	if limit <= 0 {
		return nil, nil
	}
	jobs, err := s.repo.Lease(ctx, worker, limit)
	if err != nil {
		return nil, perr.FromPostgres(err, "jobs: lease")
	}
	if n := len(jobs); n > 0 {
		metrics.JobTransitions.WithLabelValues(string(domain.StateActive)).Add(float64(n))
	}
	return jobs, nil
}

// Heartbeat keeps a lease alive
func (s *Svc) Heartbeat(ctx context.Context, jobID, worker string) error {
	ok, err := s.repo.Heartbeat(ctx, jobID, worker)
	if err != nil {
		return perr.FromPostgres(err, "jobs: heartbeat")
	}
	if !ok {
		return errLeaseLost(jobID, worker)
	}
	return nil
}

// Progress records the current stage and percentage
func (s *Svc) Progress(ctx context.Context, jobID, worker, stage string, pct int, message string) error {
	ok, err := s.repo.Progress(ctx, jobID, worker, stage, clampPct(pct), message)
	if err != nil {
		return perr.FromPostgres(err, "jobs: progress")
	}
	if !ok {
		return errLeaseLost(jobID, worker)
	}
	return nil
}

// Complete stores the result. A lost lease is logged and ignored.
func (s *Svc) Complete(ctx context.Context, jobID, worker string, result json.RawMessage, message string) error {
	ok, err := s.repo.Complete(ctx, jobID, worker, result, message)
	if err != nil {
		return perr.FromPostgres(err, "jobs: complete")
	}
	if !ok {
		logger.C(ctx).Warn().Str("job_id", jobID).Str("worker", worker).Msg("complete ignored, lease lost")
		return nil
	}
	metrics.JobTransitions.WithLabelValues(string(domain.StateCompleted)).Inc()
	return nil
}

// Fail requeues a retryable failure with backoff while attempts remain.
// Otherwise the job fails for good and the notifier hears about it.
func (s *Svc) Fail(ctx context.Context, jobID, worker, reason string, retryable bool) error {
	log := logger.C(ctx).With().Str("job_id", jobID).Str("worker", worker).Logger()

	cur, err := s.Status(ctx, jobID)
	if err != nil {
		return err
	}
	if cur.State != domain.StateActive || cur.LeasedBy != worker {
		log.Warn().Str("state", string(cur.State)).Msg("fail ignored, lease lost")
		return nil
	}

	if retryable && cur.Attempts < cur.MaxAttempts {
		next := s.now().Add(Backoff(cur.Attempts, s.cfg.RetryBase, s.cfg.RetryMax))
		ok, err := s.repo.Requeue(ctx, jobID, worker, reason, next)
		if err != nil {
			return perr.FromPostgres(err, "jobs: requeue")
		}
		if ok {
			metrics.JobTransitions.WithLabelValues(string(domain.StateQueued)).Inc()
			log.Warn().Str("reason", reason).Int("attempt", cur.Attempts).Time("next_attempt_at", next).Msg("job requeued")
		}
		return nil
	}

	j, ok, err := s.repo.MarkFailed(ctx, jobID, worker, reason)
	if err != nil {
		return perr.FromPostgres(err, "jobs: fail")
	}
	if !ok {
		log.Warn().Msg("fail ignored, lease lost")
		return nil
	}
	metrics.JobTransitions.WithLabelValues(string(domain.StateFailed)).Inc()
	log.Error().Str("reason", reason).Int("attempts", j.Attempts).Bool("retryable", retryable).Msg("job failed permanently")
	s.notify(ctx, j)
	return nil
}

// ReapStalled requeues or fails active jobs that stopped heartbeating or ran too long
func (s *Svc) ReapStalled(ctx context.Context) (domain.ReapReport, error) {
	jobs, err := s.repo.ReapStalled(ctx, s.cfg.StallAfter, s.cfg.Timeout, s.cfg.MaxStalls)
	if err != nil {
		return domain.ReapReport{}, perr.FromPostgres(err, "jobs: reap")
	}
	var rep domain.ReapReport
	log := logger.Named("jobs")
	for _, j := range jobs {
		switch j.State {
		case domain.StateFailed:
			rep.Failed = append(rep.Failed, j.JobID)
			metrics.JobTransitions.WithLabelValues(string(domain.StateFailed)).Inc()
			log.Error().Str("job_id", j.JobID).Int("stalls", j.StallCount).Msg("stalled job failed")
			s.notify(ctx, j)
		default:
			rep.Requeued = append(rep.Requeued, j.JobID)
			metrics.JobTransitions.WithLabelValues(string(domain.StateQueued)).Inc()
			log.Warn().Str("job_id", j.JobID).Int("stalls", j.StallCount).Msg("stalled job requeued")
		}
	}
	return rep, nil
}

// Sweep applies retention
func (s *Svc) Sweep(ctx context.Context) (int64, error) {
	n, err := s.repo.Sweep(ctx, s.cfg.KeepCompleted, s.cfg.KeepFailed, s.cfg.RetentionAge)
	if err != nil {
		return 0, perr.FromPostgres(err, "jobs: sweep")
	}
	if n > 0 {
		logger.Named("jobs").Info().Int64("deleted", n).Msg("job retention sweep")
	}
	return n, nil
}

// RecentByFileName lists live or completed jobs for name created within window
func (s *Svc) RecentByFileName(ctx context.Context, name string, window time.Duration) ([]domain.Job, error) {
	jobs, err := s.repo.RecentByFileName(ctx, name, s.now().Add(-window))
	if err != nil {
		return nil, perr.FromPostgres(err, "jobs: recent by file name")
	}
	return jobs, nil
}

func (s *Svc) notify(ctx context.Context, j domain.Job) {
	if s.notifier == nil {
		return
	}
	s.notifier.JobFailed(ctx, j)
}

// Backoff is base doubled per attempt already made, capped at max
func Backoff(attempts int, base, max time.Duration) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	d := base
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}

func clampPct(p int) int {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}

func errLeaseLost(jobID, worker string) error {
	return perr.Conflictf("job %s is no longer leased by %s", jobID, worker)
}
