// Package module wires the pipeline and its worker over the modules it drives
package module

import (
	"rollcall/internal/modkit"
	"rollcall/internal/modkit/httpkit"
	"rollcall/internal/modkit/module"

	auditmod "rollcall/internal/services/audit/module"
	jobsdom "rollcall/internal/services/jobs/domain"
	jobsmod "rollcall/internal/services/jobs/module"
	lookupmod "rollcall/internal/services/lookup/module"
	membersmod "rollcall/internal/services/members/module"
	"rollcall/internal/services/pipeline/service"
	verifymod "rollcall/internal/services/verify/module"
)

// Ports exposed by the pipeline module
type Ports struct {
	Pipeline *service.Pipeline
	Worker   *service.Worker
	Queue    jobsdom.Queue
	Options  Options
}

// Module is the pipeline module
type Module struct {
	ports Ports
}

// New builds audit, jobs, lookup, verify and members from deps and wires
// them into a pipeline and worker
func New(deps modkit.Deps, overrides Options) *Module {
	opts := FromConfig(deps.Cfg)
	if overrides.Concurrency != 0 {
		opts.Concurrency = overrides.Concurrency
	}
	if overrides.PollEvery != 0 {
		opts.PollEvery = overrides.PollEvery
	}
	if overrides.MetricsAddr != "" {
		opts.MetricsAddr = overrides.MetricsAddr
	}
	if overrides.WorkerID != "" {
		opts.WorkerID = overrides.WorkerID
	}
	if overrides.ReportDir != "" {
		opts.ReportDir = overrides.ReportDir
	}

	au := auditmod.New(deps)
	audit := module.MustPortsOf[auditmod.Ports](au).Audit
	jm := jobsmod.New(deps, jobsmod.Options{}, audit)
	jp := module.MustPortsOf[jobsmod.Ports](jm)
	lk := module.MustPortsOf[lookupmod.Ports](lookupmod.New(deps))
	vf := module.MustPortsOf[verifymod.Ports](verifymod.New(deps, verifymod.Options{}))
	mb := module.MustPortsOf[membersmod.Ports](membersmod.New(deps))

	p := service.New(jp.Queue, lk.Loader, vf.Verifier, mb.Writer, audit, service.Config{ReportDir: opts.ReportDir})
	w := service.NewWorker(jp.Queue, p, service.WorkerConfig{
		ID:             opts.WorkerID,
		Concurrency:    opts.Concurrency,
		PollEvery:      opts.PollEvery,
		HeartbeatEvery: jp.Options.HeartbeatEvery,
		ReapEvery:      jp.Options.ReapEvery,
	})
	return &Module{ports: Ports{Pipeline: p, Worker: w, Queue: jp.Queue, Options: opts}}
}

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// Name returns the module name
func (m *Module) Name() string { return "pipeline" }

// MountRoutes mounts nothing; the worker has no HTTP surface
func (m *Module) MountRoutes(_ httpkit.Router) {}
