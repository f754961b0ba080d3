// Package api provides the HTTP API for the application
package api

import (
	"rollcall/internal/platform/config"
	"rollcall/internal/platform/logger"
	"rollcall/internal/platform/metrics"
	phttp "rollcall/internal/platform/net/http"
	"rollcall/internal/platform/store"

	"rollcall/internal/modkit"
	"rollcall/internal/modkit/httpkit"
	"rollcall/internal/modkit/module"
	"rollcall/internal/modkit/swaggerkit"

	metamod "rollcall/internal/services/api/meta/module"
	uploadsmod "rollcall/internal/services/api/uploads/module"
	auditmod "rollcall/internal/services/audit/module"
	jobsmod "rollcall/internal/services/jobs/module"
	verifymod "rollcall/internal/services/verify/module"
)

// Options are the API options
type Options struct {
	Config         config.Conf
	Store          *store.Store
	Logger         *logger.Logger
	EnableSwagger  bool
	EnableProfiler bool
}

// Mount mounts the API service onto the given router
func Mount(r phttp.Router, opt Options) {
	log := logger.Get()
	if opt.Logger != nil {
		log = opt.Logger
	}
	deps := modkit.FromStore(*log, opt.Config, opt.Store)

	// backing modules own the queue and the verifier; the uploads API is
	// handed their ports
	audit := auditmod.New(deps)
	jobs := jobsmod.New(deps, jobsmod.Options{}, module.MustPortsOf[auditmod.Ports](audit).Audit)
	verify := verifymod.New(deps, verifymod.Options{})

	uploads := uploadsmod.New(
		deps,
		modkit.WithPorts(uploadsmod.Ports{
			Queue:    module.MustPortsOf[jobsmod.Ports](jobs).Queue,
			Verifier: module.MustPortsOf[verifymod.Ports](verify).Verifier,
		}),
	)

	mods := []module.Module{
		audit,
		jobs,
		verify,
		metamod.New(deps),
		uploads,
	}

	r.Handle("/metrics", metrics.Handler())
	swaggerkit.Mount(r, opt.EnableSwagger)
	phttp.MountProfiler(r, "/debug", opt.EnableProfiler)

	httpkit.MountAPIV1(r, httpkit.CommonStack(), func(api httpkit.Router) {
		for _, m := range mods {
			m.MountRoutes(api)
		}
	})
}
