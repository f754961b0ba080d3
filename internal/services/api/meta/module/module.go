// Package module mounts the meta endpoints
package module

import (
	"context"
	"time"

	"rollcall/internal/core/version"
	"rollcall/internal/modkit"
	"rollcall/internal/modkit/httpkit"
	metahttp "rollcall/internal/services/api/meta/http"
)

// Module serves /meta
type Module struct {
	built modkit.Built
	deps  metahttp.Deps
}

// New builds the meta module over whichever stores deps carries
func New(deps modkit.Deps, opts ...modkit.Option) *Module {
	b := modkit.Build(append([]modkit.Option{
		modkit.WithName("meta"),
		modkit.WithPrefix("/meta"),
	}, opts...)...)
	d := metahttp.Deps{ServiceName: version.Service, StartedAt: time.Now()}
	if deps.PG != nil {
		d.PG = deps.PG
	}
	if deps.CH != nil {
		d.CH = deps.CH
	}
	if rds := deps.RDS; rds != nil {
		d.RDS = metahttp.PingFunc(func(ctx context.Context) error { return rds.Ping(ctx).Err() })
	}
	return &Module{built: b, deps: d}
}

// MountRoutes mounts health, readiness and version under the prefix
func (m *Module) MountRoutes(r httpkit.Router) {
	m.built.Mount(r, func(rr httpkit.Router) { metahttp.Register(rr, m.deps) })
}

// Name returns the module name
func (m *Module) Name() string { return m.built.Name }

// Ports exposes nothing
func (m *Module) Ports() any { return nil }
