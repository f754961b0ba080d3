// Package domain holds request and response shapes for the uploads API
package domain

import "time"

// SubmitInput is the POST /uploads body
type SubmitInput struct {
	FilePath  string `json:"file_path" validate:"required,abspath"`
	Submitter string `json:"submitter" validate:"required,max=128"`
	Role      string `json:"role" validate:"omitempty,max=64"`
}

// SubmitOutput is returned on a new submission
type SubmitOutput struct {
	JobID string `json:"job_id"`
}

// StatusOutput is the job as seen by a client
type StatusOutput struct {
	JobID              string     `json:"job_id"`
	FileName           string     `json:"file_name"`
	State              string     `json:"state"`
	Stage              string     `json:"stage,omitempty"`
	LastCompletedStage string     `json:"last_completed_stage,omitempty"`
	Progress           int        `json:"progress"`
	Message            string     `json:"message,omitempty"`
	FailureReason      string     `json:"failure_reason,omitempty"`
	Advisory           string     `json:"advisory,omitempty"`
	Attempts           int        `json:"attempts"`
	MaxAttempts        int        `json:"max_attempts"`
	CreatedAt          time.Time  `json:"created_at"`
	StartedAt          *time.Time `json:"started_at,omitempty"`
	FinishedAt         *time.Time `json:"finished_at,omitempty"`
}

// RateLimitOutput is GET /verify/rate-limit
type RateLimitOutput struct {
	Count     int       `json:"count"`
	Ceiling   int       `json:"ceiling"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}
