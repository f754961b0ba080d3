// Package domain defines intake rejections and the file_uploads tracking record
package domain

import (
	"context"
	"time"
)

// Reason names why a file was turned away
type Reason string

// Rejection reasons
const (
	ReasonExtension  Reason = "unsupported_extension"
	ReasonTooSmall   Reason = "too_small"
	ReasonTooLarge   Reason = "too_large"
	ReasonUnstable   Reason = "unstable"
	ReasonDuplicate  Reason = "duplicate"
	ReasonUnreadable Reason = "unreadable"
)

// Rejection is written next to a quarantined file as <name>.error.json
type Rejection struct {
	File       string    `json:"file"`
	Reason     Reason    `json:"reason"`
	Detail     string    `json:"detail,omitempty"`
	RejectedAt time.Time `json:"rejected_at"`
}

func (r Rejection) Error() string {
	if r.Detail == "" {
		return string(r.Reason)
	}
	return string(r.Reason) + ": " + r.Detail
}

// Status is the file_uploads lifecycle
type Status string

// Upload statuses
const (
	StatusPending       Status = "pending"
	StatusQueued        Status = "queued"
	StatusEnqueueFailed Status = "enqueue_failed"
)

// Upload is one file_uploads row
type Upload struct {
	JobID     string
	FileName  string
	FilePath  string
	SizeBytes int64
	Status    Status
	Detail    string
	CreatedAt time.Time
}

// Tracker stores upload tracking rows
type Tracker interface {
	Track(ctx context.Context, u Upload) error
	SetStatus(ctx context.Context, jobID string, s Status, detail string) error
}
