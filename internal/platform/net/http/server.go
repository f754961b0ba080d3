package http

import (
	"context"
	stderrs "errors"
	stdhttp "net/http"
	"time"

	"rollcall/internal/platform/config"
	"rollcall/internal/platform/logger"

	"github.com/go-chi/chi/v5"
)

// Server owns the root mux and the listener
type Server struct {
	mux     *chi.Mux
	srv     *stdhttp.Server
	drainIn time.Duration
}

// NewServer reads PORT and SHUTDOWN_GRACE from cfg
func NewServer(cfg config.Conf) *Server {
	m := chi.NewRouter()
	return &Server{
		mux:     m,
		drainIn: cfg.MayDuration("SHUTDOWN_GRACE", 15*time.Second),
		srv: &stdhttp.Server{
			Addr:              cfg.MayString("PORT", ":4000"),
			Handler:           m,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Router returns the root router
func (s *Server) Router() Router { return AdaptChi(s.mux) }

// Run serves until ctx is done, then drains in flight requests
func (s *Server) Run(ctx context.Context) error {
	log := logger.Named("http")
	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.srv.Addr).Msg("http listening")
		errc <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if stderrs.Is(err, stdhttp.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shCtx, cancel := context.WithTimeout(context.Background(), s.drainIn)
	defer cancel()
	log.Info().Dur("grace", s.drainIn).Msg("http draining")
	return s.srv.Shutdown(shCtx)
}
