package voterroll

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	perr "rollcall/internal/platform/errors"
)

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *[]time.Duration) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c := NewClient(Options{BaseURL: srv.URL + "/", Token: "secret", MaxRetries: 2, RetryBase: 10 * time.Millisecond})
	var slept []time.Duration
	c.sleep = func(_ context.Context, d time.Duration) error { slept = append(slept, d); return nil }
	c.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return c, &slept
}

func TestLookup_Found(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/voters/8001015009087" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("auth header = %q", got)
		}
		_, _ = w.Write([]byte(`{"id_number":"8001015009087","status":"Registered","registered":true,"ward":"79800056","voting_district":"97090101"}`))
	})

	rep, err := c.Lookup(context.Background(), "8001015009087")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if rep.Kind != Found || !rep.Voter.Registered || rep.Voter.Ward != "79800056" || rep.Voter.VotingDistrict != "97090101" {
		t.Fatalf("unexpected reply %+v", rep)
	}
}

func TestLookup_NotFound(t *testing.T) {
	t.Parallel()

	for name, h := range map[string]http.HandlerFunc{
		"404": func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNotFound) },
		"body status": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"id_number":"1","status":"not found","registered":false}`))
		},
	} {
		c, _ := newTestClient(t, h)
		rep, err := c.Lookup(context.Background(), "1")
		if err != nil {
			t.Fatalf("%s: unexpected error %v", name, err)
		}
		if rep.Kind != NotFound || rep.Voter.Status != StatusNotFound || rep.Voter.Registered {
			t.Fatalf("%s: reply %+v", name, rep)
		}
	}
}

func TestLookup_RateLimitedResetSources(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	reset := now.Add(40 * time.Minute)
	tests := []struct {
		name    string
		headers map[string]string
		want    time.Time
	}{
		{"reset header", map[string]string{"X-RateLimit-Reset": strconv.FormatInt(reset.Unix(), 10)}, reset},
		{"retry after seconds", map[string]string{"Retry-After": "90"}, now.Add(90 * time.Second)},
		{"retry after date", map[string]string{"Retry-After": reset.Format(http.TimeFormat)}, reset},
		{"no headers", nil, now.Add(time.Hour)},
	}
	for _, tt := range tests {
		var calls atomic.Int32
		c, slept := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			for k, v := range tt.headers {
				w.Header().Set(k, v)
			}
			w.WriteHeader(http.StatusTooManyRequests)
		})
		rep, err := c.Lookup(context.Background(), "8001015009087")
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if rep.Kind != RateLimited || !rep.ResetAt.Equal(tt.want) {
			t.Fatalf("%s: reply %+v, want reset %v", tt.name, rep, tt.want)
		}
		if calls.Load() != 1 || len(*slept) != 0 {
			t.Fatalf("%s: rate limit must not be retried", tt.name)
		}
	}
}

func TestLookup_RetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	c, slept := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"status":"Registered","registered":true}`))
	})

	rep, err := c.Lookup(context.Background(), "8001015009087")
	if err != nil || rep.Kind != Found {
		t.Fatalf("reply %+v err %v", rep, err)
	}
	if len(*slept) != 2 || (*slept)[0] != 10*time.Millisecond || (*slept)[1] != 20*time.Millisecond {
		t.Fatalf("backoff = %v", *slept)
	}
}

func TestLookup_GivesUpAfterRetries(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	_, err := c.Lookup(context.Background(), "8001015009087")
	if !perr.IsCode(err, perr.ErrorCodeUnavailable) {
		t.Fatalf("err = %v", err)
	}
}

func TestLookup_CancelDuringBackoff(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	c := NewClient(Options{BaseURL: srv.URL, MaxRetries: 5, RetryBase: time.Minute})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.Lookup(ctx, "8001015009087")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
	if waited := time.Since(start); waited > 5*time.Second {
		t.Fatalf("lookup waited %v after the deadline", waited)
	}
	if calls.Load() > 1 {
		t.Fatalf("calls = %d, want no retry after cancellation", calls.Load())
	}
}

func TestSleepCtx(t *testing.T) {
	t.Parallel()

	if err := sleepCtx(context.Background(), time.Millisecond); err != nil {
		t.Fatalf("sleep: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sleepCtx(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want canceled", err)
	}
}

func TestLookup_MalformedBody(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":`))
	})
	_, err := c.Lookup(context.Background(), "8001015009087")
	if !perr.IsCode(err, perr.ErrorCodeJSON) {
		t.Fatalf("err = %v", err)
	}
}

func TestLookup_UnexpectedStatus(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte("bad token"))
	})
	_, err := c.Lookup(context.Background(), "8001015009087")
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestLookup_NoBaseURL(t *testing.T) {
	t.Parallel()

	_, err := NewClient(Options{}).Lookup(context.Background(), "1")
	if !perr.IsCode(err, perr.ErrorCodeInvalidArgument) {
		t.Fatalf("err = %v", err)
	}
}

func TestBackoff_Caps(t *testing.T) {
	t.Parallel()

	c := NewClient(Options{RetryBase: time.Second})
	if got := c.backoff(2); got != 4*time.Second {
		t.Fatalf("backoff(2) = %v", got)
	}
	if got := c.backoff(10); got != maxBackoff {
		t.Fatalf("backoff(10) = %v", got)
	}
}
