package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	perr "rollcall/internal/platform/errors"
	"rollcall/internal/platform/logger"
	jobs "rollcall/internal/services/jobs/domain"
	"rollcall/internal/services/pipeline/domain"

	"github.com/google/uuid"
)

// Processor runs one leased job
type Processor interface {
	Process(ctx context.Context, job jobs.Job, worker string) (domain.Result, error)
}

// WorkerConfig sets the loop cadence
type WorkerConfig struct {
	ID             string
	Concurrency    int
	PollEvery      time.Duration
	HeartbeatEvery time.Duration
	ReapEvery      time.Duration
	// Settle bounds the final Complete or Fail write once ctx is done
	Settle time.Duration
}

func (c WorkerConfig) withDefaults() WorkerConfig {
	if c.ID == "" {
		c.ID = "worker-" + uuid.NewString()
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 2
	}
	if c.PollEvery <= 0 {
		c.PollEvery = time.Second
	}
	if c.HeartbeatEvery <= 0 {
		c.HeartbeatEvery = 15 * time.Second
	}
	if c.ReapEvery <= 0 {
		c.ReapEvery = 30 * time.Second
	}
	if c.Settle <= 0 {
		c.Settle = 10 * time.Second
	}
	return c
}

// Worker leases jobs and runs them, plus the stall reaper and retention sweep
type Worker struct {
	queue jobs.Queue
	proc  Processor
	cfg   WorkerConfig
}

// NewWorker constructs a worker
func NewWorker(q jobs.Queue, proc Processor, cfg WorkerConfig) *Worker {
	return &Worker{queue: q, proc: proc, cfg: cfg.withDefaults()}
}

// ID is the lease owner name
func (w *Worker) ID() string { return w.cfg.ID }

// Run starts the worker loop and returns once ctx is done and in flight jobs settle
func (w *Worker) Run(ctx context.Context) error {
	log := logger.Named("pipeline-worker").With().Str("worker", w.cfg.ID).Logger()
	sem := make(chan struct{}, w.cfg.Concurrency)
	ticker := time.NewTicker(w.cfg.PollEvery)
	defer ticker.Stop()
	reap := time.NewTicker(w.cfg.ReapEvery)
	defer reap.Stop()

	var wg sync.WaitGroup
	log.Info().Int("concurrency", w.cfg.Concurrency).Msg("worker started")

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			log.Info().Msg("worker stopped")
			return ctx.Err()
		case <-reap.C:
			w.Maintain(ctx)
		case <-ticker.C:
			free := cap(sem) - len(sem)
			if free == 0 {
				continue
			}
			// lease only what the semaphore can take right now
			leased, err := w.queue.Lease(ctx, w.cfg.ID, free)
			if err != nil {
				log.Error().Err(err).Msg("lease jobs failed")
				continue
			}
			for i := range leased {
				sem <- struct{}{}
				j := leased[i]
				wg.Add(1)
				go func() {
					defer wg.Done()
					defer func() { <-sem }()
					w.handle(ctx, j)
				}()
			}
		}
	}
}

// RunOnce leases and runs at most limit jobs synchronously
func (w *Worker) RunOnce(ctx context.Context, limit int) (int, error) {
	leased, err := w.queue.Lease(ctx, w.cfg.ID, limit)
	if err != nil {
		return 0, err
	}
	for _, j := range leased {
		w.handle(ctx, j)
	}
	return len(leased), nil
}

func (w *Worker) handle(ctx context.Context, j jobs.Job) {
	ctx = logger.WithJob(ctx, j.JobID)
	hbCtx, stop := context.WithCancel(ctx)
	var hb sync.WaitGroup
	hb.Add(1)
	go func() {
		defer hb.Done()
		w.heartbeat(hbCtx, j.JobID)
	}()

	res, err := w.process(ctx, j)
	stop()
	hb.Wait()

	// settle even when shutting down so the row does not wait for the reaper
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.cfg.Settle)
	defer cancel()

	if err != nil {
		retryable := perr.Retryable(err)
		if ctx.Err() != nil {
			retryable = true
		}
		if ferr := w.queue.Fail(sctx, j.JobID, w.cfg.ID, err.Error(), retryable); ferr != nil {
			logger.C(ctx).Error().Err(ferr).Msg("record job failure")
		}
		return
	}

	body, merr := json.Marshal(res)
	if merr != nil {
		_ = w.queue.Fail(sctx, j.JobID, w.cfg.ID, "encode result: "+merr.Error(), false)
		return
	}
	msg := "completed"
	if res.Advisory != "" {
		msg = res.Advisory
	}
	if cerr := w.queue.Complete(sctx, j.JobID, w.cfg.ID, body, msg); cerr != nil {
		logger.C(ctx).Error().Err(cerr).Msg("record job completion")
	}
}

// process runs the job and turns a panic into a non retryable failure
func (w *Worker) process(ctx context.Context, j jobs.Job) (res domain.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = perr.PanicErrf("pipeline panic: %v", r)
		}
	}()
	return w.proc.Process(ctx, j, w.cfg.ID)
}

func (w *Worker) heartbeat(ctx context.Context, jobID string) {
	t := time.NewTicker(w.cfg.HeartbeatEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := w.queue.Heartbeat(ctx, jobID, w.cfg.ID); err != nil && ctx.Err() == nil {
				logger.C(ctx).Warn().Err(err).Msg("heartbeat failed")
			}
		}
	}
}

// Maintain requeues or fails stalled jobs and applies retention
func (w *Worker) Maintain(ctx context.Context) {
	log := logger.Named("pipeline-worker")
	rep, err := w.queue.ReapStalled(ctx)
	if err != nil {
		log.Error().Err(err).Msg("reap stalled jobs failed")
	} else if n := len(rep.Requeued) + len(rep.Failed); n > 0 {
		log.Warn().Strs("requeued", rep.Requeued).Strs("failed", rep.Failed).Msg("stalled jobs reaped")
	}

	n, err := w.queue.Sweep(ctx)
	if err != nil {
		log.Error().Err(err).Msg("retention sweep failed")
		return
	}
	if n > 0 {
		log.Info().Int64("removed", n).Msg("old jobs swept")
	}
}
