package module

import (
	"time"

	"rollcall/internal/platform/config"
)

// Options configures the worker and report output
type Options struct {
	Concurrency int
	PollEvery   time.Duration
	MetricsAddr string
	WorkerID    string
	ReportDir   string
}

// FromConfig reads PIPELINE_* and REPORT_*
func FromConfig(cfg config.Conf) Options {
	c := cfg.Prefix("PIPELINE_")
	return Options{
		Concurrency: c.MayInt("CONCURRENCY", 2),
		PollEvery:   c.MayDuration("POLL_EVERY", time.Second),
		MetricsAddr: c.MayString("METRICS_ADDR", ""),
		WorkerID:    c.MayString("WORKER_ID", ""),
		ReportDir:   cfg.Prefix("REPORT_").MayString("DIR", "reports"),
	}
}
