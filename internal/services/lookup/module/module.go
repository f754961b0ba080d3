// Package module wires the reference data lookup service
package module

import (
	"rollcall/internal/modkit"
	"rollcall/internal/modkit/httpkit"
	"rollcall/internal/services/lookup/domain"
	"rollcall/internal/services/lookup/service"
)

// Ports exposed by the lookup module
type Ports struct {
	Loader domain.Loader
}

// Module is the lookup module
type Module struct {
	ports Ports
}

// New constructs the module; it has no options
func New(deps modkit.Deps) *Module {
	return &Module{ports: Ports{Loader: service.New(deps)}}
}

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// Name returns the module name
func (m *Module) Name() string { return "lookup" }

// MountRoutes mounts nothing
func (m *Module) MountRoutes(_ httpkit.Router) {}
