package module

import (
	"time"

	"rollcall/internal/platform/config"
)

// Options is the queue policy plus worker cadence read by the pipeline worker
type Options struct {
	MaxAttempts   int
	RetryBase     time.Duration
	RetryMax      time.Duration
	StallAfter    time.Duration
	Timeout       time.Duration
	MaxStalls     int
	KeepCompleted int
	KeepFailed    int
	RetentionAge  time.Duration

	HeartbeatEvery time.Duration
	ReapEvery      time.Duration
}

// FromConfig reads JOBS_*
func FromConfig(cfg config.Conf) Options {
	c := cfg.Prefix("JOBS_")
	return Options{
		MaxAttempts:    c.MayInt("MAX_ATTEMPTS", 3),
		RetryBase:      c.MayDuration("RETRY_BASE", 30*time.Second),
		RetryMax:       c.MayDuration("RETRY_MAX", 15*time.Minute),
		StallAfter:     c.MayDuration("STALL_AFTER", 2*time.Minute),
		Timeout:        c.MayDuration("TIMEOUT", 30*time.Minute),
		MaxStalls:      c.MayInt("MAX_STALLS", 2),
		KeepCompleted:  c.MayInt("KEEP_COMPLETED", 100),
		KeepFailed:     c.MayInt("KEEP_FAILED", 500),
		RetentionAge:   c.MayDuration("RETENTION_AGE", 7*24*time.Hour),
		HeartbeatEvery: c.MayDuration("HEARTBEAT_EVERY", 15*time.Second),
		ReapEvery:      c.MayDuration("REAP_EVERY", 30*time.Second),
	}
}
