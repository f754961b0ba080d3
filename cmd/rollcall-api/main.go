// @title         Rollcall API
// @version       0.1.0
// @description   Submit membership spreadsheets and follow their processing
// @BasePath      /api/v1

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"rollcall/internal/core/version"
	"rollcall/internal/platform/config"
	"rollcall/internal/platform/logger"
	phttp "rollcall/internal/platform/net/http"
	"rollcall/internal/platform/store"
	"rollcall/internal/services/api"
)

func main() {
	version.Service = "rollcall-api"

	root := config.New()
	apiCfg := root.Prefix("CORE_API_")
	l := logger.Get()

	st, err := store.Open(context.Background(), store.FromConfig(root, version.Service, "api", 4), store.WithLogger(*l))
	if err != nil {
		l.Fatal().Err(err).Msg("store open failed")
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("store close failed")
		}
	}()

	srv := phttp.NewServer(apiCfg)
	api.Mount(srv.Router(), api.Options{
		Config:         root,
		Store:          st,
		Logger:         l,
		EnableSwagger:  apiCfg.MayBool("SWAGGER", true),
		EnableProfiler: apiCfg.MayBool("PROFILER", false),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	l.Info().Str("version", version.Info().Version).Msg("api starting")
	if err := srv.Run(ctx); err != nil {
		l.Error().Err(err).Msg("http server stopped")
	}
}
