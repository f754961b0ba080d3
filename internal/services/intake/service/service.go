// Package service watches a drop directory, admits finished spreadsheets and
// enqueues them as upload jobs
package service

import (
	"context"
	"encoding/json"
	stderrs "errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"rollcall/internal/platform/logger"
	"rollcall/internal/platform/metrics"
	audit "rollcall/internal/services/audit/domain"
	"rollcall/internal/services/intake/domain"
	jobs "rollcall/internal/services/jobs/domain"

	"github.com/google/uuid"
)

// Config is the watcher policy
type Config struct {
	Dir           string   `json:"dir" validate:"required"`
	AcceptedDir   string   `json:"accepted_dir" validate:"required,nefield=Dir"`
	QuarantineDir string   `json:"quarantine_dir" validate:"required,nefield=Dir,nefield=AcceptedDir"`
	AllowedExts   []string `json:"allowed_exts" validate:"min=1,dive,startswith=."`

	MinBytes int64 `json:"min_bytes" validate:"gte=0"`
	MaxBytes int64 `json:"max_bytes" validate:"gtfield=MinBytes"`

	StabilityPoll    time.Duration `json:"stability_poll" validate:"gt=0"`
	StabilityChecks  int           `json:"stability_checks" validate:"gte=1"`
	StabilityMaxWait time.Duration `json:"stability_max_wait" validate:"gtfield=StabilityPoll"`
	Debounce         time.Duration `json:"debounce" validate:"gte=0"`

	DuplicateWindow time.Duration `json:"duplicate_window" validate:"gte=0"`
	Priority        int           `json:"priority" validate:"gte=1"`
	Submitter       string        `json:"submitter" validate:"required"`
}

// Svc admits files into the job queue
type Svc struct {
	cfg     Config
	queue   jobs.Queue
	tracker domain.Tracker
	audit   audit.Recorder
	now     func() time.Time
	newID   func() string

	mu       sync.Mutex
	inflight map[string]struct{}
	timers   map[string]*time.Timer
	wg       sync.WaitGroup
}

// New constructs the intake service
func New(cfg Config, q jobs.Queue, tracker domain.Tracker, rec audit.Recorder) *Svc {
	return &Svc{
		cfg:      cfg,
		queue:    q,
		tracker:  tracker,
		audit:    rec,
		now:      time.Now,
		newID:    uuid.NewString,
		inflight: map[string]struct{}{},
		timers:   map[string]*time.Timer{},
	}
}

// errVanished means the file went away before it could be admitted
var errVanished = stderrs.New("intake: file vanished")

// Handle admits or rejects one file and returns the job id when a job was
// enqueued. Rejections are returned as domain.Rejection after the file has
// been quarantined.
func (s *Svc) Handle(ctx context.Context, path string) (string, error) {
	name := filepath.Base(path)
	log := logger.C(ctx).With().Str("component", "intake").Str("file", name).Logger()

	// rename events also fire for files we just moved out
	if _, err := os.Lstat(path); stderrs.Is(err, fs.ErrNotExist) {
		return "", errVanished
	}
	if !s.allowed(name) {
		return "", s.reject(ctx, path, domain.ReasonExtension, filepath.Ext(name))
	}

	fi, err := s.stable(ctx, path)
	switch {
	case stderrs.Is(err, fs.ErrNotExist):
		log.Debug().Msg("file gone before it settled")
		return "", errVanished
	case err != nil:
		var rej domain.Rejection
		if stderrs.As(err, &rej) {
			return "", s.reject(ctx, path, rej.Reason, rej.Detail)
		}
		if ctx.Err() != nil {
			return "", err
		}
		return "", s.reject(ctx, path, domain.ReasonUnreadable, err.Error())
	}

	switch size := fi.Size(); {
	case size < s.cfg.MinBytes:
		return "", s.reject(ctx, path, domain.ReasonTooSmall, fmt.Sprintf("%d bytes, minimum %d", size, s.cfg.MinBytes))
	case size > s.cfg.MaxBytes:
		return "", s.reject(ctx, path, domain.ReasonTooLarge, fmt.Sprintf("%d bytes, maximum %d", size, s.cfg.MaxBytes))
	}

	if s.cfg.DuplicateWindow > 0 {
		recent, err := s.queue.RecentByFileName(ctx, name, s.cfg.DuplicateWindow)
		if err != nil {
			// left in place; the next scan tries again
			log.Error().Err(err).Msg("duplicate check failed")
			return "", err
		}
		if len(recent) > 0 {
			return "", s.reject(ctx, path, domain.ReasonDuplicate,
				fmt.Sprintf("job %s (%s) already has this file", recent[0].JobID, recent[0].State))
		}
	}

	return s.accept(ctx, path, fi.Size())
}

func (s *Svc) accept(ctx context.Context, path string, size int64) (string, error) {
	name := filepath.Base(path)
	log := logger.C(ctx).With().Str("component", "intake").Str("file", name).Logger()

	dst := filepath.Join(s.cfg.AcceptedDir, s.stamp()+"_"+name)
	if err := move(path, dst); err != nil {
		log.Error().Err(err).Msg("move to accepted failed")
		return "", err
	}

	jobID := s.newID()
	ctx = logger.WithJob(ctx, jobID)
	up := domain.Upload{JobID: jobID, FileName: name, FilePath: dst, SizeBytes: size, Status: domain.StatusPending}
	if err := s.tracker.Track(ctx, up); err != nil {
		log.Error().Err(err).Str("job_id", jobID).Msg("track upload failed")
	}

	_, _, err := s.queue.Enqueue(ctx, jobs.NewJob{
		JobID:     jobID,
		FilePath:  dst,
		FileName:  name,
		Submitter: s.cfg.Submitter,
		Priority:  s.cfg.Priority,
		Source:    jobs.SourceWatcher,
	})
	if err != nil {
		metrics.IntakeFiles.WithLabelValues(string(domain.StatusEnqueueFailed)).Inc()
		s.setStatus(ctx, jobID, domain.StatusEnqueueFailed, err.Error())
		log.Error().Err(err).Str("job_id", jobID).Msg("enqueue failed")
		return jobID, err
	}
	s.setStatus(ctx, jobID, domain.StatusQueued, "")

	metrics.IntakeFiles.WithLabelValues("accepted").Inc()
	s.audit.Record(ctx, audit.Event{JobID: jobID, Type: audit.FileDetected, Metadata: map[string]any{
		"file_name":  name,
		"file_path":  dst,
		"size_bytes": size,
		"priority":   s.cfg.Priority,
	}})
	log.Info().Str("job_id", jobID).Int64("bytes", size).Msg("file queued")
	return jobID, nil
}

func (s *Svc) setStatus(ctx context.Context, jobID string, st domain.Status, detail string) {
	if err := s.tracker.SetStatus(ctx, jobID, st, detail); err != nil {
		logger.C(ctx).Error().Err(err).Str("status", string(st)).Msg("update upload status failed")
	}
}

// reject quarantines path with a sibling .error.json. Failures along the way
// are logged; the returned error is always the rejection itself.
func (s *Svc) reject(ctx context.Context, path string, reason domain.Reason, detail string) error {
	name := filepath.Base(path)
	log := logger.C(ctx).With().Str("component", "intake").Str("file", name).Logger()
	rej := domain.Rejection{File: name, Reason: reason, Detail: detail, RejectedAt: s.now().UTC()}

	dst := filepath.Join(s.cfg.QuarantineDir, s.stamp()+"_"+name)
	if err := move(path, dst); err != nil {
		log.Error().Err(err).Msg("move to quarantine failed")
	}
	if body, err := json.MarshalIndent(rej, "", "  "); err == nil {
		if err := os.WriteFile(dst+".error.json", body, 0o644); err != nil {
			log.Error().Err(err).Msg("write rejection note failed")
		}
	}

	metrics.IntakeFiles.WithLabelValues(string(reason)).Inc()
	s.audit.Record(ctx, audit.Event{Type: audit.FileRejected, Metadata: map[string]any{
		"file_name": name,
		"reason":    string(reason),
		"detail":    detail,
	}})
	log.Warn().Str("reason", string(reason)).Str("detail", detail).Msg("file rejected")
	return rej
}

func (s *Svc) allowed(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return slices.Contains(s.cfg.AllowedExts, ext)
}

func (s *Svc) stamp() string { return s.now().UTC().Format("20060102T150405.000Z") }

// ignored are editor lock files and our own rejection notes
func ignored(name string) bool {
	return strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~$") || strings.HasSuffix(name, ".error.json")
}

// move renames src to dst, copying when they sit on different devices
func move(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}
