// Package module wires the member writer
package module

import (
	"rollcall/internal/modkit"
	"rollcall/internal/modkit/httpkit"
	"rollcall/internal/services/members/repo"
	"rollcall/internal/services/members/service"
)

// Ports exposed by the members module
type Ports struct {
	Writer service.Writer
}

// Module is the members module
type Module struct {
	ports Ports
}

// New constructs the module; it has no options
func New(deps modkit.Deps) *Module {
	return &Module{ports: Ports{Writer: service.New(deps.PG, repo.NewPG())}}
}

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// Name returns the module name
func (m *Module) Name() string { return "members" }

// MountRoutes mounts nothing
func (m *Module) MountRoutes(_ httpkit.Router) {}
