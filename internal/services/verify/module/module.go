// Package module wires the verifier with its provider client and shared counter
package module

import (
	"rollcall/internal/adapters/provider/voterroll"
	"rollcall/internal/modkit"
	"rollcall/internal/modkit/httpkit"
	"rollcall/internal/services/verify/domain"
	"rollcall/internal/services/verify/ratelimit"
	"rollcall/internal/services/verify/service"
)

// Ports exposed by the verify module
type Ports struct {
	Verifier domain.Verifier
}

// Module is the verify module
type Module struct {
	deps  modkit.Deps
	ports Ports
}

// New constructs the module. The counter is shared through redis when the
// store has one, otherwise it is per process.
func New(deps modkit.Deps, overrides Options) *Module {
	opts := FromConfig(deps.Cfg)
	if overrides.ProviderURL != "" {
		opts.ProviderURL = overrides.ProviderURL
	}
	if overrides.ProviderToken != "" {
		opts.ProviderToken = overrides.ProviderToken
	}
	if overrides.HourlyLimit != 0 {
		opts.HourlyLimit = overrides.HourlyLimit
	}
	if overrides.BatchSize != 0 {
		opts.BatchSize = overrides.BatchSize
	}
	if overrides.BatchDelay != 0 {
		opts.BatchDelay = overrides.BatchDelay
	}
	if overrides.Concurrency != 0 {
		opts.Concurrency = overrides.Concurrency
	}

	if overrides.Counter != "" {
		opts.Counter = overrides.Counter
	}

	rl := ratelimit.Config{Ceiling: opts.HourlyLimit, Window: opts.Window, Key: opts.RateKey}
	var counter domain.Counter
	switch {
	case opts.Counter == "memory":
		counter = ratelimit.NewMemory(rl)
	case deps.RDS != nil:
		counter = ratelimit.NewRedis(deps.RDS, rl)
	case opts.Counter == "redis":
		panic("verify: VERIFY_COUNTER=redis but no redis is configured")
	default:
		deps.Log.Warn().Msg("verify: no redis configured, quota is counted per process")
		counter = ratelimit.NewMemory(rl)
	}

	client := voterroll.NewClient(voterroll.Options{
		BaseURL:    opts.ProviderURL,
		Token:      opts.ProviderToken,
		Timeout:    opts.Timeout,
		MaxRetries: opts.MaxRetries,
	})
	svc := service.New(service.NewRoll(client), counter, service.Config{
		BatchSize:   opts.BatchSize,
		BatchDelay:  opts.BatchDelay,
		Concurrency: opts.Concurrency,
	})
	return &Module{deps: deps, ports: Ports{Verifier: svc}}
}

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// Name returns the module name
func (m *Module) Name() string { return "verify" }

// MountRoutes mounts nothing; the status route lives with the uploads API
func (m *Module) MountRoutes(_ httpkit.Router) {}
