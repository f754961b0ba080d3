// Package service backs the uploads API with the job queue and verifier status
package service

import (
	"context"
	"encoding/json"
	stderrs "errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	perr "rollcall/internal/platform/errors"
	"rollcall/internal/services/api/uploads/domain"
	jobs "rollcall/internal/services/jobs/domain"
	verify "rollcall/internal/services/verify/domain"
)

// Service is the uploads API surface
type Service interface {
	Submit(ctx context.Context, in domain.SubmitInput) (domain.SubmitOutput, error)
	Status(ctx context.Context, jobID string) (domain.StatusOutput, error)
	Cancel(ctx context.Context, jobID string) (domain.StatusOutput, error)
	Retry(ctx context.Context, jobID string) (domain.StatusOutput, error)
	Result(ctx context.Context, jobID string) (json.RawMessage, error)
	ReportPath(ctx context.Context, jobID string) (string, error)
	RateLimit(ctx context.Context) (domain.RateLimitOutput, error)
}

// Options configures the service
type Options struct {
	AllowedExts []string
}

type svc struct {
	queue    jobs.Queue
	verifier verify.Verifier
	exts     []string
}

// New constructs the service
func New(q jobs.Queue, v verify.Verifier, opts Options) Service {
	if len(opts.AllowedExts) == 0 {
		opts.AllowedExts = []string{".xlsx", ".xls"}
	}
	return &svc{queue: q, verifier: v, exts: opts.AllowedExts}
}

func (s *svc) Submit(ctx context.Context, in domain.SubmitInput) (domain.SubmitOutput, error) {
	ext := strings.ToLower(filepath.Ext(in.FilePath))
	if !slices.Contains(s.exts, ext) {
		return domain.SubmitOutput{}, perr.WithField(perr.InvalidArgf("unsupported file type %q", ext), "file_path")
	}
	fi, err := os.Stat(in.FilePath)
	switch {
	case stderrs.Is(err, fs.ErrNotExist):
		return domain.SubmitOutput{}, perr.WithField(perr.NotFoundf("file %s not found", in.FilePath), "file_path")
	case err != nil:
		return domain.SubmitOutput{}, perr.Wrap(err, perr.ErrorCodeInvalidArgument, "file is not readable")
	case !fi.Mode().IsRegular():
		return domain.SubmitOutput{}, perr.WithField(perr.InvalidArgf("%s is not a file", in.FilePath), "file_path")
	}

	id, _, err := s.queue.Enqueue(ctx, jobs.NewJob{
		FilePath:  in.FilePath,
		FileName:  filepath.Base(in.FilePath),
		Submitter: in.Submitter,
		Role:      in.Role,
		Priority:  jobs.PriorityInteractive,
		Source:    jobs.SourceInteractive,
	})
	if err != nil {
		return domain.SubmitOutput{}, err
	}
	return domain.SubmitOutput{JobID: id}, nil
}

func (s *svc) Status(ctx context.Context, jobID string) (domain.StatusOutput, error) {
	j, err := s.queue.Status(ctx, jobID)
	if err != nil {
		return domain.StatusOutput{}, err
	}
	return toStatus(j), nil
}

func (s *svc) Cancel(ctx context.Context, jobID string) (domain.StatusOutput, error) {
	if err := s.queue.Cancel(ctx, jobID); err != nil {
		return domain.StatusOutput{}, err
	}
	return s.Status(ctx, jobID)
}

func (s *svc) Retry(ctx context.Context, jobID string) (domain.StatusOutput, error) {
	if err := s.queue.Retry(ctx, jobID); err != nil {
		return domain.StatusOutput{}, err
	}
	return s.Status(ctx, jobID)
}

func (s *svc) Result(ctx context.Context, jobID string) (json.RawMessage, error) {
	j, err := s.queue.Status(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if j.State != jobs.StateCompleted || len(j.Result) == 0 {
		return nil, perr.Conflictf("job %s is %s, no result yet", jobID, j.State)
	}
	return j.Result, nil
}

func (s *svc) ReportPath(ctx context.Context, jobID string) (string, error) {
	raw, err := s.Result(ctx, jobID)
	if err != nil {
		return "", err
	}
	var res struct {
		ReportPath string `json:"report_path"`
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		return "", perr.Wrap(err, perr.ErrorCodeJSON, "decode stored result")
	}
	if res.ReportPath == "" {
		return "", perr.NotFoundf("job %s has no report", jobID)
	}
	if _, err := os.Stat(res.ReportPath); err != nil {
		return "", perr.NotFoundf("report for job %s is no longer on disk", jobID)
	}
	return res.ReportPath, nil
}

func (s *svc) RateLimit(ctx context.Context) (domain.RateLimitOutput, error) {
	st, err := s.verifier.Status(ctx)
	if err != nil {
		return domain.RateLimitOutput{}, perr.Wrap(err, perr.ErrorCodeUnavailable, "read verification quota")
	}
	return domain.RateLimitOutput{Count: st.Count, Ceiling: st.Ceiling, Remaining: st.Remaining, ResetAt: st.ResetAt}, nil
}

func toStatus(j jobs.Job) domain.StatusOutput {
	out := domain.StatusOutput{
		JobID:              j.JobID,
		FileName:           j.FileName,
		State:              string(j.State),
		Stage:              j.Stage,
		LastCompletedStage: j.LastCompletedStage,
		Progress:           j.Progress,
		Message:            j.Message,
		FailureReason:      j.FailureReason,
		Attempts:           j.Attempts,
		MaxAttempts:        j.MaxAttempts,
		CreatedAt:          j.CreatedAt,
		StartedAt:          j.StartedAt,
		FinishedAt:         j.FinishedAt,
	}
	if len(j.Result) > 0 {
		var res struct {
			Advisory string `json:"advisory"`
		}
		if json.Unmarshal(j.Result, &res) == nil {
			out.Advisory = res.Advisory
		}
	}
	return out
}
