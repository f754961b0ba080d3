package http

import (
	stdhttp "net/http"

	"github.com/go-chi/chi/v5"
)

// Handler is the handler shape routes are registered with
type Handler = func(stdhttp.ResponseWriter, *stdhttp.Request)

// Router is the routing surface modules mount against
type Router interface {
	Get(path string, h Handler)
	Post(path string, h Handler)
	Handle(path string, h stdhttp.Handler)
	Use(mw ...func(stdhttp.Handler) stdhttp.Handler)
	Route(pattern string, fn func(Router))

	// Mux is the handler to serve
	Mux() stdhttp.Handler
}

type chiRouter struct{ r chi.Router }

// AdaptChi wraps a chi router
func AdaptChi(r chi.Router) Router { return chiRouter{r: r} }

func (c chiRouter) Get(p string, h Handler) {
	c.r.Method(stdhttp.MethodGet, p, stdhttp.HandlerFunc(h))
}

func (c chiRouter) Post(p string, h Handler) {
	c.r.Method(stdhttp.MethodPost, p, stdhttp.HandlerFunc(h))
}

func (c chiRouter) Handle(p string, h stdhttp.Handler)              { c.r.Handle(p, h) }
func (c chiRouter) Use(mw ...func(stdhttp.Handler) stdhttp.Handler) { c.r.Use(mw...) }
func (c chiRouter) Mux() stdhttp.Handler                            { return c.r }

func (c chiRouter) Route(pattern string, fn func(Router)) {
	c.r.Route(pattern, func(sub chi.Router) { fn(chiRouter{r: sub}) })
}
