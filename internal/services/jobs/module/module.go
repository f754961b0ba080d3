// Package module wires the upload job queue
package module

import (
	"rollcall/internal/modkit"
	"rollcall/internal/modkit/httpkit"
	"rollcall/internal/services/jobs/domain"
	"rollcall/internal/services/jobs/service"
)

// Ports exposed by the jobs module
type Ports struct {
	Queue   domain.Queue
	Options Options
}

// Module is the jobs module
type Module struct {
	ports Ports
}

// New constructs the queue. notifier may be nil.
func New(deps modkit.Deps, overrides Options, notifier domain.Notifier) *Module {
	opts := FromConfig(deps.Cfg)
	if overrides.MaxAttempts != 0 {
		opts.MaxAttempts = overrides.MaxAttempts
	}
	if overrides.Timeout != 0 {
		opts.Timeout = overrides.Timeout
	}
	if overrides.StallAfter != 0 {
		opts.StallAfter = overrides.StallAfter
	}
	if overrides.HeartbeatEvery != 0 {
		opts.HeartbeatEvery = overrides.HeartbeatEvery
	}
	if overrides.ReapEvery != 0 {
		opts.ReapEvery = overrides.ReapEvery
	}

	q := service.NewPG(deps.PG, service.Config{
		MaxAttempts:   opts.MaxAttempts,
		RetryBase:     opts.RetryBase,
		RetryMax:      opts.RetryMax,
		StallAfter:    opts.StallAfter,
		Timeout:       opts.Timeout,
		MaxStalls:     opts.MaxStalls,
		KeepCompleted: opts.KeepCompleted,
		KeepFailed:    opts.KeepFailed,
		RetentionAge:  opts.RetentionAge,
	}, notifier)
	return &Module{ports: Ports{Queue: q, Options: opts}}
}

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// Name returns the module name
func (m *Module) Name() string { return "jobs" }

// MountRoutes mounts nothing; the uploads API fronts the queue
func (m *Module) MountRoutes(_ httpkit.Router) {}
