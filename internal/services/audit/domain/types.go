// Package domain defines audit events, progress messages and the sinks that carry them
package domain

import (
	"context"
	"time"
)

// EventType names an audited occurrence
type EventType string

// Audited events
const (
	FileDetected         EventType = "file_detected"
	FileRejected         EventType = "file_rejected"
	ProcessingStarted    EventType = "processing_started"
	ProcessingStage      EventType = "processing_stage"
	ProcessingCompleted  EventType = "processing_completed"
	ProcessingFailed     EventType = "processing_failed"
	DuplicateDetected    EventType = "duplicate_detected"
	ValidationFailed     EventType = "validation_failed"
	RateLimitReached     EventType = "rate_limit_reached"
	JobFailedPermanently EventType = "job_failed_permanently"
)

// Event is one audit_log row. JobID is empty for file events that never became a job.
type Event struct {
	JobID    string         `json:"job_id,omitempty"`
	Type     EventType      `json:"event"`
	Metadata map[string]any `json:"metadata,omitempty"`
	At       time.Time      `json:"at"`
}

// Progress is broadcast on every stage change
type Progress struct {
	JobID      string    `json:"job_id"`
	Stage      string    `json:"stage"`
	Percentage int       `json:"percentage"`
	Message    string    `json:"message,omitempty"`
	At         time.Time `json:"at"`
}

// Final is broadcast once when a job ends
type Final struct {
	JobID   string         `json:"job_id"`
	Success bool           `json:"success"`
	Summary map[string]any `json:"summary,omitempty"`
	At      time.Time      `json:"at"`
}

// Sink stores audit events durably
type Sink interface {
	Write(ctx context.Context, e Event) error
}

// Recorder records audit events. It never fails the caller.
type Recorder interface {
	Record(ctx context.Context, e Event)
}

// ProgressSink receives pipeline progress
type ProgressSink interface {
	Recorder
	Progress(ctx context.Context, p Progress)
	Final(ctx context.Context, f Final)
}
