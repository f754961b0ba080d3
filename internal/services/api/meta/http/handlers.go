// Package http serves liveness, readiness and build info
package http

import (
	"context"
	"net/http"
	"time"

	"rollcall/internal/core/version"
	"rollcall/internal/modkit/httpkit"

	"golang.org/x/sync/errgroup"
)

// readyTimeout bounds the whole readiness probe
const readyTimeout = 2 * time.Second

// Pinger is a store that can be probed
type Pinger interface {
	Ping(context.Context) error
}

// PingFunc adapts a function to Pinger
type PingFunc func(context.Context) error

// Ping calls f
func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Deps carries the stores to probe. A nil store is reported as skipped, a
// store without Ping as unknown.
type Deps struct {
	ServiceName string
	StartedAt   time.Time
	PG          any
	CH          any
	RDS         any
}

// Register mounts the meta routes
func Register(r httpkit.Router, d Deps) {
	h := &handlers{deps: d, now: time.Now}
	httpkit.Get(r, "/health", h.health)
	httpkit.Get(r, "/ready", h.ready)
	httpkit.Get(r, "/version", h.version)
}

type handlers struct {
	deps Deps
	now  func() time.Time
}

// HealthResponse is the liveness payload
type HealthResponse struct {
	OK      bool   `json:"ok"      example:"true"`
	Service string `json:"service" example:"rollcall-api"`
	Started string `json:"started" example:"2026-03-02T08:00:00Z"`
	Uptime  int64  `json:"uptime_seconds" example:"300"`
}

// ReadyCheck is one store probe: ok, fail, skipped or unknown
type ReadyCheck struct {
	Name   string `json:"name"   example:"pg"`
	Status string `json:"status" example:"ok"`
	Error  string `json:"error,omitempty"`
}

// ReadyResponse is ok when every store answers, degraded when only an
// optional store is down and fail when postgres is down
type ReadyResponse struct {
	Status string       `json:"status" example:"ok"`
	Checks []ReadyCheck `json:"checks"`
}

// @Summary Liveness
// @Tags meta
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /meta/health [get]
func (h *handlers) health(_ *http.Request) (any, error) {
	return HealthResponse{
		OK:      true,
		Service: h.deps.ServiceName,
		Started: h.deps.StartedAt.UTC().Format(time.RFC3339),
		Uptime:  int64(h.now().Sub(h.deps.StartedAt) / time.Second),
	}, nil
}

// @Summary Readiness with store checks
// @Tags meta
// @Produce json
// @Success 200 {object} ReadyResponse
// @Router /meta/ready [get]
func (h *handlers) ready(r *http.Request) (any, error) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	stores := []struct {
		name string
		c    any
	}{{"pg", h.deps.PG}, {"ch", h.deps.CH}, {"redis", h.deps.RDS}}

	checks := make([]ReadyCheck, len(stores))
	var g errgroup.Group
	for i, s := range stores {
		g.Go(func() error {
			checks[i] = probe(ctx, s.name, s.c)
			return nil
		})
	}
	_ = g.Wait()

	return ReadyResponse{Status: overall(checks), Checks: checks}, nil
}

func probe(ctx context.Context, name string, c any) ReadyCheck {
	if c == nil {
		return ReadyCheck{Name: name, Status: "skipped"}
	}
	p, ok := c.(Pinger)
	if !ok {
		return ReadyCheck{Name: name, Status: "unknown"}
	}
	if err := p.Ping(ctx); err != nil {
		return ReadyCheck{Name: name, Status: "fail", Error: err.Error()}
	}
	return ReadyCheck{Name: name, Status: "ok"}
}

// overall expects pg first
func overall(checks []ReadyCheck) string {
	if checks[0].Status == "fail" || checks[0].Status == "skipped" {
		return "fail"
	}
	for _, c := range checks[1:] {
		if c.Status == "fail" {
			return "degraded"
		}
	}
	return "ok"
}

// @Summary Build info
// @Tags meta
// @Produce json
// @Success 200 {object} version.BuildInfo
// @Router /meta/version [get]
func (h *handlers) version(_ *http.Request) (any, error) {
	return version.Info(), nil
}
