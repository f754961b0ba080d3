package metrics

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestCollectors_Scrape(t *testing.T) {
	VerifyCalls.WithLabelValues("ok").Inc()
	ObserveStage("reading", 120*time.Millisecond)
	LookupFallbacks.WithLabelValues("gender").Inc()
	ObserveHTTP("GET", "/api/v1/uploads/{id}", 404, 3*time.Millisecond)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	for _, want := range []string{
		`rollcall_verify_calls_total{outcome="ok"}`,
		`rollcall_pipeline_stage_seconds_count{stage="reading"}`,
		`rollcall_lookup_fallbacks_total{table="gender"}`,
		`rollcall_http_request_seconds_count{code="4xx",method="GET",route="/api/v1/uploads/{id}"}`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("scrape missing %q", want)
		}
	}
}

func TestServe_EmptyAddrIsNoop(t *testing.T) {
	t.Parallel()
	if err := Serve(context.Background(), ""); err != nil {
		t.Fatalf("Serve(\"\") = %v", err)
	}
}
