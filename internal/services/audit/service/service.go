// Package service records audit events and broadcasts progress. Nothing here
// returns an error to the caller; a lost audit row must not fail an upload.
package service

import (
	"context"
	"encoding/json"
	"time"

	"rollcall/internal/platform/logger"
	"rollcall/internal/services/audit/domain"
	jobs "rollcall/internal/services/jobs/domain"

	"github.com/redis/go-redis/v9"
)

// Channel is the shared progress channel; per job channels append ":<job_id>"
const Channel = "rollcall:progress"

// JobChannel is the progress channel for one job
func JobChannel(jobID string) string { return Channel + ":" + jobID }

// Publisher broadcasts a payload on a channel
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// RedisPublisher publishes through go-redis pub/sub
type RedisPublisher struct{ RDB redis.UniversalClient }

// Publish sends payload on channel
func (p RedisPublisher) Publish(ctx context.Context, channel string, payload []byte) error {
	return p.RDB.Publish(ctx, channel, payload).Err()
}

// Svc fans events out to every configured sink and publisher
type Svc struct {
	sinks []domain.Sink
	pub   Publisher
	now   func() time.Time
}

// New constructs the publisher. Nil sinks are skipped and pub may be nil.
func New(pub Publisher, sinks ...domain.Sink) *Svc {
	s := &Svc{pub: pub, now: time.Now}
	for _, k := range sinks {
		if k != nil {
			s.sinks = append(s.sinks, k)
		}
	}
	return s
}

var (
	_ domain.ProgressSink = (*Svc)(nil)
	_ jobs.Notifier       = (*Svc)(nil)
)

// Record writes e to every sink
func (s *Svc) Record(ctx context.Context, e domain.Event) {
	if e.At.IsZero() {
		e.At = s.now()
	}
	if e.JobID == "" {
		e.JobID = logger.JobID(ctx)
	}
	for _, k := range s.sinks {
		if err := k.Write(ctx, e); err != nil {
			logger.C(ctx).Warn().Err(err).Str("event", string(e.Type)).Msg("audit write failed")
		}
	}
	if e.Type == domain.RateLimitReached && e.JobID != "" {
		s.broadcast(ctx, e.JobID, e)
	}
}

// Progress broadcasts p and records a processing_stage event
func (s *Svc) Progress(ctx context.Context, p domain.Progress) {
	if p.At.IsZero() {
		p.At = s.now()
	}
	s.broadcast(ctx, p.JobID, p)
	s.Record(ctx, domain.Event{
		JobID: p.JobID,
		Type:  domain.ProcessingStage,
		At:    p.At,
		Metadata: map[string]any{
			"stage":      p.Stage,
			"percentage": p.Percentage,
			"message":    p.Message,
		},
	})
}

// Final broadcasts the end of a job and records completion or failure
func (s *Svc) Final(ctx context.Context, f domain.Final) {
	if f.At.IsZero() {
		f.At = s.now()
	}
	s.broadcast(ctx, f.JobID, f)
	typ := domain.ProcessingCompleted
	if !f.Success {
		typ = domain.ProcessingFailed
	}
	s.Record(ctx, domain.Event{JobID: f.JobID, Type: typ, At: f.At, Metadata: f.Summary})
}

// JobFailed is the queue notifier: the job ran out of attempts or stalls
func (s *Svc) JobFailed(ctx context.Context, j jobs.Job) {
	logger.C(ctx).Error().
		Str("job_id", j.JobID).
		Str("file", j.FileName).
		Str("reason", j.FailureReason).
		Int("attempts", j.Attempts).
		Msg("job failed permanently")
	meta := map[string]any{
		"file_name":      j.FileName,
		"submitter":      j.Submitter,
		"attempts":       j.Attempts,
		"stall_count":    j.StallCount,
		"failure_reason": j.FailureReason,
	}
	s.Record(ctx, domain.Event{JobID: j.JobID, Type: domain.JobFailedPermanently, Metadata: meta})
	s.broadcast(ctx, j.JobID, domain.Final{JobID: j.JobID, Success: false, Summary: meta, At: s.now()})
}

func (s *Svc) broadcast(ctx context.Context, jobID string, v any) {
	if s.pub == nil {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		logger.C(ctx).Warn().Err(err).Msg("progress encode failed")
		return
	}
	for _, ch := range []string{Channel, JobChannel(jobID)} {
		if err := s.pub.Publish(ctx, ch, b); err != nil {
			logger.C(ctx).Warn().Err(err).Str("channel", ch).Msg("progress publish failed")
			return
		}
	}
}
