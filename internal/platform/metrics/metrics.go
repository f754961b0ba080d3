// Package metrics holds the process wide prometheus collectors and the scrape handler
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collectors are registered once on the default registry at init.
var (
	VerifyCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rollcall_verify_calls_total",
		Help: "Voter roll verification attempts by outcome (ok, not_registered, error, rate_limited)",
	}, []string{"outcome"})

	PersistOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rollcall_persist_outcomes_total",
		Help: "Member rows written per operation and result",
	}, []string{"op", "result"})

	LookupFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rollcall_lookup_fallbacks_total",
		Help: "Reference lookups that fell back to the caller default",
	}, []string{"table"})

	JobTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rollcall_job_transitions_total",
		Help: "Upload job state transitions",
	}, []string{"to"})

	IntakeFiles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rollcall_intake_files_total",
		Help: "Files seen by the intake watcher by result",
	}, []string{"result"})

	StageSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rollcall_pipeline_stage_seconds",
		Help:    "Wall time per pipeline stage",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 14),
	}, []string{"stage"})

	HTTPRequests = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rollcall_http_request_seconds",
		Help:    "API request latency by route and status class",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "code"})

	VerifyRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rollcall_verify_quota_remaining",
		Help: "Remaining verification calls in the current hourly window, as last observed",
	})
)

// Handler returns the scrape handler for the default registry
func Handler() http.Handler { return promhttp.Handler() }

// ObserveStage records how long a pipeline stage took
func ObserveStage(stage string, d time.Duration) {
	StageSeconds.WithLabelValues(stage).Observe(d.Seconds())
}

// ObserveHTTP records one API request; code is bucketed to 2xx, 4xx and so on
func ObserveHTTP(method, route string, status int, d time.Duration) {
	HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status/100)+"xx").Observe(d.Seconds())
}

// Serve exposes /metrics on addr until ctx is done; an empty addr is a no-op
func Serve(ctx context.Context, addr string) error {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
