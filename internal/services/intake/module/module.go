// Package module wires the intake watcher to the job queue, upload tracking and audit
package module

import (
	"rollcall/internal/modkit"
	"rollcall/internal/modkit/httpkit"
	"rollcall/internal/modkit/module"
	"rollcall/internal/modkit/repokit"
	pstrings "rollcall/internal/platform/strings"

	auditmod "rollcall/internal/services/audit/module"
	"rollcall/internal/services/intake/repo"
	"rollcall/internal/services/intake/service"
	jobsmod "rollcall/internal/services/jobs/module"
)

// Ports exposed by the intake module
type Ports struct {
	Watcher *service.Svc
	Options Options
}

// Module is the intake module
type Module struct {
	ports Ports
}

// New validates the merged options and wires the watcher
func New(deps modkit.Deps, overrides Options) (*Module, error) {
	opts := merge(FromConfig(deps.Cfg), overrides)
	if err := Validate(opts); err != nil {
		return nil, err
	}

	audit := module.MustPortsOf[auditmod.Ports](auditmod.New(deps)).Audit
	queue := module.MustPortsOf[jobsmod.Ports](jobsmod.New(deps, jobsmod.Options{}, audit)).Queue
	tracker := repokit.MustBind(repo.NewPG(), deps.PG)

	return &Module{ports: Ports{Watcher: service.New(opts, queue, tracker, audit), Options: opts}}, nil
}

func merge(o, over Options) Options {
	if over.Dir != "" {
		o.Dir = over.Dir
	}
	if over.AcceptedDir != "" {
		o.AcceptedDir = over.AcceptedDir
	}
	if over.QuarantineDir != "" {
		o.QuarantineDir = over.QuarantineDir
	}
	if len(over.AllowedExts) > 0 {
		o.AllowedExts = pstrings.Exts(over.AllowedExts)
	}
	if over.MinBytes != 0 {
		o.MinBytes = over.MinBytes
	}
	if over.MaxBytes != 0 {
		o.MaxBytes = over.MaxBytes
	}
	if over.StabilityPoll != 0 {
		o.StabilityPoll = over.StabilityPoll
	}
	if over.StabilityChecks != 0 {
		o.StabilityChecks = over.StabilityChecks
	}
	if over.StabilityMaxWait != 0 {
		o.StabilityMaxWait = over.StabilityMaxWait
	}
	if over.DuplicateWindow != 0 {
		o.DuplicateWindow = over.DuplicateWindow
	}
	if over.Priority != 0 {
		o.Priority = over.Priority
	}
	return o
}

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// Name returns the module name
func (m *Module) Name() string { return "intake" }

// MountRoutes mounts nothing
func (m *Module) MountRoutes(_ httpkit.Router) {}
