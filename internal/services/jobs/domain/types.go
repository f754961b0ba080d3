// Package domain defines upload jobs, their lifecycle states and the queue ports
package domain

import (
	"context"
	"encoding/json"
	"time"
)

// State is where a job is in its lifecycle
type State string

// Job states. completed, failed and cancelled are terminal.
const (
	StateQueued    State = "queued"
	StateActive    State = "active"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// Terminal reports whether no further transition is possible without a retry
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// Source says who submitted a job
type Source string

// Submission sources
const (
	SourceInteractive Source = "interactive"
	SourceWatcher     Source = "watcher"
)

// Default priorities; lower runs first
const (
	PriorityInteractive = 1
	PriorityWatcher     = 5
)

// Job is one upload_jobs row
type Job struct {
	JobID     string `json:"job_id"`
	FilePath  string `json:"file_path"`
	FileName  string `json:"file_name"`
	Submitter string `json:"submitter"`
	Role      string `json:"role,omitempty"`
	Priority  int    `json:"priority"`
	Source    Source `json:"source"`
	State     State  `json:"state"`

	Attempts    int `json:"attempts"`
	MaxAttempts int `json:"max_attempts"`
	StallCount  int `json:"stall_count"`

	Stage              string `json:"stage,omitempty"`
	LastCompletedStage string `json:"last_completed_stage,omitempty"`
	Progress           int    `json:"progress"`
	Message            string `json:"message,omitempty"`
	FailureReason      string `json:"failure_reason,omitempty"`

	NextAttemptAt time.Time  `json:"next_attempt_at"`
	LeasedBy      string     `json:"leased_by,omitempty"`
	HeartbeatAt   *time.Time `json:"heartbeat_at,omitempty"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`

	Result json.RawMessage `json:"result,omitempty"`
}

// NewJob is what a submitter supplies. Zero Priority and MaxAttempts take the
// queue defaults; an empty JobID gets a fresh uuid.
type NewJob struct {
	JobID       string
	FilePath    string
	FileName    string
	Submitter   string
	Role        string
	Priority    int
	Source      Source
	MaxAttempts int
}

// ReapReport lists what a stall sweep did
type ReapReport struct {
	Requeued []string
	Failed   []string
}

// Notifier hears about jobs that will not run again
type Notifier interface {
	JobFailed(ctx context.Context, j Job)
}

// Queue is the durable job queue. Workers own a job between Lease and
// Complete or Fail; both are ignored when the lease has moved on.
type Queue interface {
	Enqueue(ctx context.Context, nj NewJob) (jobID string, created bool, err error)
	Status(ctx context.Context, jobID string) (Job, error)
	Cancel(ctx context.Context, jobID string) error
	Retry(ctx context.Context, jobID string) error

	Lease(ctx context.Context, worker string, limit int) ([]Job, error)
	Heartbeat(ctx context.Context, jobID, worker string) error
	Progress(ctx context.Context, jobID, worker, stage string, pct int, message string) error
	Complete(ctx context.Context, jobID, worker string, result json.RawMessage, message string) error
	Fail(ctx context.Context, jobID, worker, reason string, retryable bool) error

	ReapStalled(ctx context.Context) (ReapReport, error)
	Sweep(ctx context.Context) (int64, error)
	RecentByFileName(ctx context.Context, name string, window time.Duration) ([]Job, error)
}
