package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"rollcall/internal/core/version"
	"rollcall/internal/modkit"
	"rollcall/internal/modkit/module"
	"rollcall/internal/platform/config"
	"rollcall/internal/platform/logger"
	"rollcall/internal/platform/metrics"
	"rollcall/internal/platform/store"
	"rollcall/internal/platform/store/migrate"

	pipemod "rollcall/internal/services/pipeline/module"
)

func mustSetEnv(key, val string) {
	if val != "" {
		_ = os.Setenv(key, val)
	}
}

func main() {
	version.Service = "rollcall-worker"

	var (
		fMode    = flag.String("mode", "worker", "worker | once | maintain | migrate")
		fMigrate = flag.Bool("migrate", false, "apply pending schema migrations before starting")
		fConc    = flag.Int("concurrency", 0, "jobs processed at once (0 = PIPELINE_CONCURRENCY)")
		fID      = flag.String("id", "", "worker id recorded on leased jobs")
		fMetrics = flag.String("metrics-addr", "", "serve /metrics on this address")
		fReports = flag.String("report-dir", "", "directory for outcome workbooks")
	)
	flag.Parse()

	// flags win over the environment
	if *fConc > 0 {
		mustSetEnv("PIPELINE_CONCURRENCY", fmt.Sprintf("%d", *fConc))
	}
	mustSetEnv("PIPELINE_WORKER_ID", *fID)
	mustSetEnv("PIPELINE_METRICS_ADDR", *fMetrics)
	mustSetEnv("PIPELINE_REPORT_DIR", *fReports)

	root := config.New()
	l := logger.Get()

	st, err := store.Open(context.Background(), store.FromConfig(root, version.Service, "worker", 8), store.WithLogger(*l))
	if err != nil {
		l.Panic().Err(err).Msg("store.Open failed")
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()

	if *fMigrate || *fMode == "migrate" {
		applied, err := migrate.Apply(context.Background(), st.PG)
		if err != nil {
			l.Fatal().Err(err).Msg("migrations failed")
		}
		l.Info().Strs("applied", applied).Msg("schema up to date")
		if *fMode == "migrate" {
			return
		}
	}

	pm := pipemod.New(modkit.FromStore(*l, root, st), pipemod.Options{})
	ports := module.MustPortsOf[pipemod.Ports](pm)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch *fMode {
	case "worker":
		go func() {
			if err := metrics.Serve(ctx, ports.Options.MetricsAddr); err != nil {
				l.Error().Err(err).Msg("metrics server stopped")
			}
		}()
		l.Info().Str("worker", ports.Worker.ID()).Int("concurrency", ports.Options.Concurrency).Msg("worker starting")
		if err := ports.Worker.Run(ctx); err != nil && ctx.Err() == nil {
			l.Fatal().Err(err).Msg("worker failed")
		}
		l.Info().Msg("worker stopped")

	case "once":
		// drain one lease worth of jobs and exit
		n, err := ports.Worker.RunOnce(ctx, ports.Options.Concurrency)
		if err != nil {
			l.Fatal().Err(err).Msg("worker run failed")
		}
		l.Info().Int("jobs", n).Msg("worker run done")

	case "maintain":
		ports.Worker.Maintain(ctx)

	default:
		l.Panic().Str("mode", *fMode).Msg("unknown -mode (expected: worker | once | maintain | migrate)")
	}
}
