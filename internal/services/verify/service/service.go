// Package service runs batched identity verification against the provider quota
package service

import (
	"context"
	"fmt"
	"time"

	"rollcall/internal/platform/logger"
	"rollcall/internal/platform/metrics"
	"rollcall/internal/services/verify/domain"

	"golang.org/x/sync/errgroup"
)

// Config controls batching
type Config struct {
	BatchSize   int
	BatchDelay  time.Duration
	Concurrency int
}

// Svc implements domain.Verifier
type Svc struct {
	provider domain.Provider
	counter  domain.Counter
	cfg      Config

	now  func() time.Time
	wait func(ctx context.Context, d time.Duration) error
}

var _ domain.Verifier = (*Svc)(nil)

// New constructs the verifier
func New(p domain.Provider, c domain.Counter, cfg Config) *Svc {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.BatchDelay < 0 {
		cfg.BatchDelay = 0
	}
	if cfg.Concurrency <= 0 || cfg.Concurrency > cfg.BatchSize {
		cfg.Concurrency = cfg.BatchSize
	}
	return &Svc{
		provider: p,
		counter:  c,
		cfg:      cfg,
		now:      time.Now,
		wait:     sleepCtx,
	}
}

// Status exposes the shared quota for pre flight checks
func (s *Svc) Status(ctx context.Context) (domain.RateLimitState, error) {
	st, err := s.counter.Peek(ctx)
	if err == nil {
		metrics.VerifyRemaining.Set(float64(st.Remaining))
	}
	return st, err
}

// Verify checks ids in sequential batches with concurrent items inside each
// batch. Once any item is rate limited the current batch is reconciled and no
// further batch starts. Duplicate ids are checked once.
func (s *Svc) Verify(ctx context.Context, ids []string, progress domain.Progress) domain.BatchResult {
	uniq := dedupe(ids)
	out := domain.BatchResult{Results: make(map[string]domain.Result, len(uniq)), Requested: len(uniq)}
	log := logger.C(ctx).With().Str("component", "verifier").Logger()

	for start := 0; start < len(uniq); start += s.cfg.BatchSize {
		if start > 0 && s.cfg.BatchDelay > 0 {
			if err := s.wait(ctx, s.cfg.BatchDelay); err != nil {
				log.Warn().Err(err).Int("done", start).Msg("verification interrupted")
				break
			}
		}
		end := min(start+s.cfg.BatchSize, len(uniq))
		batch := uniq[start:end]
		outs := make([]domain.Outcome, len(batch))

		var g errgroup.Group
		g.SetLimit(s.cfg.Concurrency)
		for i, id := range batch {
			g.Go(func() error {
				outs[i] = s.one(ctx, id)
				return nil
			})
		}
		_ = g.Wait()

		var reset time.Time
		limited := false
		for i, o := range outs {
			if o.IsRateLimited() {
				limited = true
				if o.ResetAt.After(reset) {
					reset = o.ResetAt
				}
				continue
			}
			out.Results[batch[i]] = o.Result
			out.Attempted++
			if !o.Result.Verified() {
				out.Errors++
			}
		}
		if progress != nil {
			progress(end, len(uniq))
		}
		if limited {
			out.RateLimitHit = true
			out.RowsProcessedBeforeLimit = len(out.Results)
			out.ResetAt = &reset
			log.Warn().
				Int("processed", out.RowsProcessedBeforeLimit).
				Int("remaining_ids", len(uniq)-out.RowsProcessedBeforeLimit).
				Time("reset_at", reset).
				Msg("verification quota reached, stopping")
			break
		}
	}

	if !out.RateLimitHit {
		out.RowsProcessedBeforeLimit = len(out.Results)
	}
	log.Info().
		Int("requested", out.Requested).
		Int("attempted", out.Attempted).
		Int("errors", out.Errors).
		Bool("rate_limit_hit", out.RateLimitHit).
		Msg("verification finished")
	return out
}

// one never panics and never returns an error; failures become Result.Err
func (s *Svc) one(ctx context.Context, id string) (o domain.Outcome) {
	defer func() {
		if p := recover(); p != nil {
			metrics.VerifyCalls.WithLabelValues("error").Inc()
			o = domain.Failed(id, fmt.Errorf("verification panicked: %v", p), s.now())
		}
	}()

	st, ok, err := s.counter.Take(ctx)
	if err != nil {
		metrics.VerifyCalls.WithLabelValues("error").Inc()
		return domain.Failed(id, fmt.Errorf("rate counter unavailable: %w", err), s.now())
	}
	metrics.VerifyRemaining.Set(float64(st.Remaining))
	if !ok {
		metrics.VerifyCalls.WithLabelValues("rate_limited").Inc()
		return domain.RateLimited(st.ResetAt)
	}

	o = s.provider.Check(ctx, id)
	switch {
	case o.IsRateLimited():
		metrics.VerifyCalls.WithLabelValues("rate_limited").Inc()
	case !o.Result.Verified():
		metrics.VerifyCalls.WithLabelValues("error").Inc()
	case !o.Result.Registered:
		metrics.VerifyCalls.WithLabelValues("not_registered").Inc()
	default:
		metrics.VerifyCalls.WithLabelValues("ok").Inc()
	}
	if o.Kind == domain.OutcomeOK {
		o.Result.IDNumber = id
		if o.Result.VerifiedAt.IsZero() {
			o.Result.VerifiedAt = s.now()
		}
	}
	return o
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
