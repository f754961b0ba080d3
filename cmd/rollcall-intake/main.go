package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"rollcall/internal/core/version"
	"rollcall/internal/modkit"
	"rollcall/internal/modkit/module"
	"rollcall/internal/platform/config"
	"rollcall/internal/platform/logger"
	"rollcall/internal/platform/store"

	intakemod "rollcall/internal/services/intake/module"
)

func mustSetEnv(key, val string) {
	if val != "" {
		_ = os.Setenv(key, val)
	}
}

func main() {
	version.Service = "rollcall-intake"

	var (
		fDir      = flag.String("dir", "", "directory to watch (INTAKE_DIR)")
		fScan     = flag.Bool("scan", false, "admit files already present and exit")
		fDebounce = flag.String("debounce", "", "event debounce, e.g. 500ms (INTAKE_DEBOUNCE)")
	)
	flag.Parse()

	mustSetEnv("INTAKE_DIR", *fDir)
	mustSetEnv("INTAKE_DEBOUNCE", *fDebounce)

	root := config.New()
	l := logger.Get()

	st, err := store.Open(context.Background(), store.FromConfig(root, version.Service, "intake", 2), store.WithLogger(*l))
	if err != nil {
		l.Panic().Err(err).Msg("store.Open failed")
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()

	im, err := intakemod.New(modkit.FromStore(*l, root, st), intakemod.Options{})
	if err != nil {
		l.Fatal().Err(err).Msg("intake config invalid")
	}
	ports := module.MustPortsOf[intakemod.Ports](im)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *fScan {
		n, err := ports.Watcher.Drain(ctx)
		if err != nil {
			l.Fatal().Err(err).Msg("intake scan failed")
		}
		l.Info().Int("files", n).Msg("intake scan done")
		return
	}
	if err := ports.Watcher.Watch(ctx); err != nil {
		l.Fatal().Err(err).Msg("intake watcher failed")
	}
}
