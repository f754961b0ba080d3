// Package module wires the uploads API onto the job queue and the verifier
package module

import (
	"rollcall/internal/modkit"
	"rollcall/internal/modkit/httpkit"
	uhttp "rollcall/internal/services/api/uploads/http"
	usvc "rollcall/internal/services/api/uploads/service"
	jobs "rollcall/internal/services/jobs/domain"
	verify "rollcall/internal/services/verify/domain"
)

// Ports are injected with modkit.WithPorts; both are required
type Ports struct {
	Queue    jobs.Queue
	Verifier verify.Verifier
}

// Module serves /uploads and /verify
type Module struct {
	built modkit.Built
	ports Ports
	svc   usvc.Service
}

// New builds the module. It panics when Ports are missing.
func New(deps modkit.Deps, opts ...modkit.Option) *Module {
	b := modkit.Build(append([]modkit.Option{
		modkit.WithName("uploads"),
		modkit.WithPrefix("/uploads"),
	}, opts...)...)
	p, _ := b.Ports.(Ports)
	if p.Queue == nil || p.Verifier == nil {
		panic("uploads: Queue and Verifier ports are required")
	}
	cfg := FromConfig(deps.Cfg)
	return &Module{
		built: b,
		ports: p,
		svc:   usvc.New(p.Queue, p.Verifier, usvc.Options{AllowedExts: cfg.AllowedExts}),
	}
}

// MountRoutes mounts the job routes under the module prefix and the quota
// route under /verify with the same middleware
func (m *Module) MountRoutes(r httpkit.Router) {
	m.built.Mount(r, func(rr httpkit.Router) { uhttp.Register(rr, m.svc) })
	httpkit.MountUnder(r, "/verify", m.built.Mw, func(rr httpkit.Router) { uhttp.RegisterVerify(rr, m.svc) })
}

// Name returns the module name
func (m *Module) Name() string { return m.built.Name }

// Ports returns the injected ports
func (m *Module) Ports() any { return m.ports }
