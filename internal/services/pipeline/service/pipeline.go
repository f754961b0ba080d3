// Package service runs upload jobs through the pipeline and hosts the worker loop
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"rollcall/internal/adapters/ingest/sheet"
	perr "rollcall/internal/platform/errors"
	"rollcall/internal/platform/logger"
	"rollcall/internal/platform/metrics"
	audit "rollcall/internal/services/audit/domain"
	jobs "rollcall/internal/services/jobs/domain"
	lookup "rollcall/internal/services/lookup/domain"
	members "rollcall/internal/services/members/domain"
	membersvc "rollcall/internal/services/members/service"
	"rollcall/internal/services/pipeline/domain"
	"rollcall/internal/services/pipeline/report"
	"rollcall/internal/services/pipeline/validate"
	verify "rollcall/internal/services/verify/domain"
)

// samples caps the rows listed in audit metadata
const samples = 10

// Reader loads the records of one spreadsheet
type Reader func(ctx context.Context, path string) ([]sheet.Record, error)

// Config holds pipeline knobs
type Config struct {
	ReportDir string
}

// Pipeline runs one job end to end
type Pipeline struct {
	read     Reader
	queue    jobs.Queue
	lookups  lookup.Loader
	verifier verify.Verifier
	writer   membersvc.Writer
	sink     audit.ProgressSink
	cfg      Config
	now      func() time.Time
}

// New constructs the pipeline over the spreadsheet reader
func New(q jobs.Queue, lk lookup.Loader, v verify.Verifier, w membersvc.Writer, sink audit.ProgressSink, cfg Config) *Pipeline {
	if cfg.ReportDir == "" {
		cfg.ReportDir = "reports"
	}
	return &Pipeline{
		read:     sheet.ReadFile,
		queue:    q,
		lookups:  lk,
		verifier: v,
		writer:   w,
		sink:     sink,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Process runs every stage for a job leased by worker. Rate limiting degrades
// the result with an advisory; anything fatal returns a *perr.Error after the
// error stage has been reported.
func (p *Pipeline) Process(ctx context.Context, job jobs.Job, worker string) (domain.Result, error) {
	ctx = logger.WithJob(ctx, job.JobID)
	r := &run{
		p:      p,
		job:    job,
		worker: worker,
		res: domain.Result{
			JobID:      job.JobID,
			FileName:   job.FileName,
			StartedAt:  p.now().UTC(),
			DurationMS: map[domain.Stage]int64{},
		},
	}

	p.sink.Record(ctx, audit.Event{Type: audit.ProcessingStarted, Metadata: map[string]any{
		"file_name": job.FileName,
		"attempt":   job.Attempts,
		"worker":    worker,
	}})

	if err := r.execute(ctx); err != nil {
		r.fail(ctx, err)
		return r.res, err
	}
	return r.res, nil
}

type run struct {
	p      *Pipeline
	job    jobs.Job
	worker string
	res    domain.Result

	stage domain.Stage
	began time.Time
}

func (r *run) execute(ctx context.Context) error {
	p := r.p
	r.enter(ctx, domain.StageInitializing, "starting")

	sctx := r.enter(ctx, domain.StageReading, "reading "+r.job.FileName)
	recs, err := p.read(sctx, r.job.FilePath)
	if err != nil {
		return err
	}

	sctx = r.enter(ctx, domain.StageValidating, fmt.Sprintf("validating %d rows", len(recs)))
	cat, err := p.lookups.Load(sctx)
	if err != nil {
		return coded(err, perr.ErrorCodeUnavailable, "load lookup tables")
	}
	batch, err := validate.Run(sctx, recs, p.writer)
	if err != nil {
		return err
	}
	r.res.Batch = domain.Summarize(batch)
	r.auditBatch(sctx, batch)

	ids := make([]string, len(batch.Unique))
	for i, u := range batch.Unique {
		ids[i] = u.IDNumber()
	}
	sctx = r.enter(ctx, domain.StageVerifying, fmt.Sprintf("verifying %d identity numbers", len(ids)))
	vr := p.verifier.Verify(sctx, ids, func(done, total int) {
		r.report(sctx, domain.VerifyPercent(done, total), fmt.Sprintf("verified %d of %d", done, total))
	})
	r.res.Verification = summarizeVerification(vr, ids)
	if vr.RateLimitHit {
		r.rateLimited(sctx, vr)
	}

	sctx = r.enter(ctx, domain.StagePersisting, fmt.Sprintf("saving %d members", len(batch.New)+len(batch.Existing)))
	outs, err := p.writer.Persist(sctx, membersvc.Input{
		JobID:    r.job.JobID,
		New:      batch.New,
		Existing: batch.Existing,
		Results:  vr.Results,
		Lookups:  cat,
	})
	if err != nil {
		return err
	}
	r.res.Persist = domain.PersistSummary{Counts: members.Tally(outs), Outcomes: outs}

	sctx = r.enter(ctx, domain.StageReporting, "writing report")
	r.res.LookupFallbacks = cat.Fallbacks()
	r.res.FinishedAt = p.now().UTC()
	path, err := report.Build(p.cfg.ReportDir, report.Input{Result: r.res, Batch: batch, Results: vr.Results})
	if err != nil {
		// members are already committed, so a missing report only degrades the result
		logger.C(sctx).Warn().Err(err).Msg("report not written")
		r.advise("report could not be written: " + err.Error())
	} else {
		r.res.ReportPath = path
	}

	r.close()
	r.stage = domain.StageCompleted
	r.res.FinishedAt = p.now().UTC()
	c := r.res.Persist.Counts
	r.report(ctx, domain.StageCompleted.Percent(), fmt.Sprintf("%d inserted, %d updated, %d failed", c.Inserted, c.Updated, c.Failed))

	p.sink.Record(ctx, audit.Event{Type: audit.ProcessingCompleted, Metadata: r.summary()})
	p.sink.Final(ctx, audit.Final{JobID: r.job.JobID, Success: true, Summary: r.summary(), At: p.now().UTC()})
	logger.C(ctx).Info().
		Int("rows", r.res.Batch.Stats.Total).
		Int("inserted", c.Inserted).
		Int("updated", c.Updated).
		Int("failed", c.Failed).
		Bool("rate_limited", r.res.Verification.RateLimitHit).
		Msg("job processed")
	return nil
}

// enter closes the running stage and reports the next one
func (r *run) enter(ctx context.Context, s domain.Stage, msg string) context.Context {
	r.close()
	r.stage, r.began = s, r.p.now()
	r.report(ctx, s.Percent(), msg)
	return logger.WithStage(ctx, string(s))
}

func (r *run) close() {
	if r.stage == "" || r.began.IsZero() {
		return
	}
	d := r.p.now().Sub(r.began)
	r.res.DurationMS[r.stage] = d.Milliseconds()
	metrics.ObserveStage(string(r.stage), d)
	r.began = time.Time{}
}

// report updates the job row and broadcasts. A lost lease is logged only;
// the late Complete or Fail is ignored by the queue.
func (r *run) report(ctx context.Context, pct int, msg string) {
	if err := r.p.queue.Progress(ctx, r.job.JobID, r.worker, string(r.stage), pct, msg); err != nil {
		logger.C(ctx).Warn().Err(err).Str("stage", string(r.stage)).Msg("job progress not saved")
	}
	r.p.sink.Progress(ctx, audit.Progress{
		JobID:      r.job.JobID,
		Stage:      string(r.stage),
		Percentage: pct,
		Message:    msg,
		At:         r.p.now().UTC(),
	})
}

func (r *run) fail(ctx context.Context, err error) {
	failed := r.stage
	r.close()
	r.stage = domain.StageError
	r.res.FinishedAt = r.p.now().UTC()
	r.report(ctx, 0, err.Error())

	meta := map[string]any{
		"stage":     string(failed),
		"error":     err.Error(),
		"code":      perr.CodeOf(err).String(),
		"retryable": perr.Retryable(err),
		"attempt":   r.job.Attempts,
	}
	r.p.sink.Record(ctx, audit.Event{Type: audit.ProcessingFailed, Metadata: meta})
	r.p.sink.Final(ctx, audit.Final{JobID: r.job.JobID, Success: false, Summary: meta, At: r.p.now().UTC()})
	logger.C(ctx).Error().Err(err).Str("stage", string(failed)).Msg("job failed")
}

func (r *run) rateLimited(ctx context.Context, vr verify.BatchResult) {
	meta := map[string]any{"rows_processed_before_limit": vr.RowsProcessedBeforeLimit}
	msg := fmt.Sprintf("verification rate limit reached after %d of %d identity numbers; %d members saved unverified",
		vr.RowsProcessedBeforeLimit, vr.Requested, len(r.res.Verification.Unverified))
	if vr.ResetAt != nil {
		meta["reset_at"] = vr.ResetAt.UTC()
		msg += ", quota resets at " + vr.ResetAt.UTC().Format(time.RFC3339)
	}
	r.p.sink.Record(ctx, audit.Event{Type: audit.RateLimitReached, Metadata: meta})
	r.advise(msg)
	logger.C(ctx).Warn().Int("processed", vr.RowsProcessedBeforeLimit).Msg("verification stopped at rate limit")
}

func (r *run) auditBatch(ctx context.Context, b validate.Batch) {
	if n := len(r.res.Batch.Duplicates); n > 0 {
		r.p.sink.Record(ctx, audit.Event{Type: audit.DuplicateDetected, Metadata: map[string]any{
			"groups":  b.Stats.DuplicateGroups,
			"rows":    b.Stats.DuplicateRows,
			"samples": r.res.Batch.Duplicates[:min(n, samples)],
		}})
	}
	if n := len(r.res.Batch.Invalid); n > 0 {
		r.p.sink.Record(ctx, audit.Event{Type: audit.ValidationFailed, Metadata: map[string]any{
			"invalid":          b.Stats.Invalid,
			"missing_identity": b.Stats.MissingIdentity,
			"format_errors":    b.Stats.FormatErrors,
			"checksum_errors":  b.Stats.ChecksumErrors,
			"samples":          r.res.Batch.Invalid[:min(n, samples)],
		}})
	}
}

func (r *run) advise(msg string) {
	if r.res.Advisory == "" {
		r.res.Advisory = msg
		return
	}
	r.res.Advisory = strings.Join([]string{r.res.Advisory, msg}, "; ")
}

func (r *run) summary() map[string]any {
	s := r.res.Batch.Stats
	c := r.res.Persist.Counts
	out := map[string]any{
		"total":        s.Total,
		"valid":        s.Valid,
		"invalid":      s.Invalid,
		"duplicates":   s.DuplicateRows,
		"new":          s.New,
		"existing":     s.Existing,
		"verified":     r.res.Verification.Verified,
		"inserted":     c.Inserted,
		"updated":      c.Updated,
		"failed":       c.Failed,
		"rate_limited": r.res.Verification.RateLimitHit,
	}
	if r.res.Advisory != "" {
		out["advisory"] = r.res.Advisory
	}
	if r.res.ReportPath != "" {
		out["report_path"] = r.res.ReportPath
	}
	return out
}

func summarizeVerification(vr verify.BatchResult, ids []string) domain.VerificationSummary {
	s := domain.VerificationSummary{
		Requested:                vr.Requested,
		Attempted:                vr.Attempted,
		Errors:                   vr.Errors,
		RateLimitHit:             vr.RateLimitHit,
		RowsProcessedBeforeLimit: vr.RowsProcessedBeforeLimit,
		ResetAt:                  vr.ResetAt,
		Unverified:               vr.Unverified(ids),
	}
	for _, res := range vr.Results {
		if res.Verified() {
			s.Verified++
		}
	}
	return s
}

// coded keeps an existing perr code and wraps anything else with code
func coded(err error, code perr.ErrorCode, msg string) error {
	if _, ok := perr.As(err); ok {
		return err
	}
	return perr.Wrap(err, code, msg)
}
