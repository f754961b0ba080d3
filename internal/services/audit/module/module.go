// Package module wires audit sinks and the progress publisher
package module

import (
	"rollcall/internal/modkit"
	"rollcall/internal/modkit/httpkit"
	"rollcall/internal/modkit/repokit"
	"rollcall/internal/services/audit/domain"
	"rollcall/internal/services/audit/repo"
	"rollcall/internal/services/audit/service"
)

// Ports exposed by the audit module
type Ports struct {
	Audit *service.Svc
}

// Module is the audit module
type Module struct {
	ports Ports
}

// New wires Postgres, the ClickHouse mirror and redis pub/sub for whichever
// of them the store opened
func New(deps modkit.Deps) *Module {
	var sinks []domain.Sink
	if deps.PG != nil {
		sinks = append(sinks, repo.Sink{Repo: repokit.MustBind(repo.NewPG(), deps.PG)})
	}
	if deps.CH != nil {
		sinks = append(sinks, repo.CHSink{CH: deps.CH})
	}
	var pub service.Publisher
	if deps.RDS != nil {
		pub = service.RedisPublisher{RDB: deps.RDS}
	}
	return &Module{ports: Ports{Audit: service.New(pub, sinks...)}}
}

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// Name returns the module name
func (m *Module) Name() string { return "audit" }

// MountRoutes mounts nothing
func (m *Module) MountRoutes(_ httpkit.Router) {}
