package modkit

import (
	"net/http"

	"rollcall/internal/modkit/httpkit"
	pstrings "rollcall/internal/platform/strings"
)

// Option tweaks how an API module is built
type Option func(*Built)

// Built is the resolved module shape after options are applied
type Built struct {
	Name   string
	Prefix string
	Mw     []func(http.Handler) http.Handler
	Ports  any
}

// WithName overrides the module name
func WithName(name string) Option { return func(b *Built) { b.Name = name } }

// WithPrefix overrides the route prefix
func WithPrefix(prefix string) Option { return func(b *Built) { b.Prefix = prefix } }

// WithMiddlewares appends module scoped middleware
func WithMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(b *Built) { b.Mw = append(b.Mw, mw...) }
}

// WithPorts injects the ports a module serves from
func WithPorts[T any](p T) Option { return func(b *Built) { b.Ports = p } }

// Build applies opts in order. The prefix is normalized and Mw is a fresh slice.
func Build(opts ...Option) Built {
	var b Built
	for _, o := range opts {
		o(&b)
	}
	b.Prefix = pstrings.Prefix(b.Prefix)
	b.Mw = append([]func(http.Handler) http.Handler(nil), b.Mw...)
	return b
}

// Mount registers routes under the built prefix with the module middleware
func (b Built) Mount(r httpkit.Router, register func(httpkit.Router)) {
	if b.Prefix == "" {
		panic("modkit: module " + b.Name + " has no route prefix")
	}
	httpkit.MountUnder(r, b.Prefix, b.Mw, register)
}
