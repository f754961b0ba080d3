package voterroll

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// resetFrom reads X-RateLimit-Reset (unix seconds) or Retry-After (seconds or
// an HTTP date), falling back to an hour from now
func resetFrom(h http.Header, now time.Time) time.Time {
	if s := atoi(h.Get("X-RateLimit-Reset")); s > 0 {
		return time.Unix(int64(s), 0).UTC()
	}
	if ra := strings.TrimSpace(h.Get("Retry-After")); ra != "" {
		if s := atoi(ra); s > 0 {
			return now.Add(time.Duration(s) * time.Second).UTC()
		}
		if t, err := http.ParseTime(ra); err == nil {
			return t.UTC()
		}
	}
	return now.Add(time.Hour).UTC()
}

func atoi(s string) int {
	if s == "" {
		return 0
	}
	i, _ := strconv.Atoi(strings.TrimSpace(s))
	return i
}

func drainAndClose(rc io.ReadCloser) error {
	_, _ = io.Copy(io.Discard, io.LimitReader(rc, 512))
	return rc.Close()
}

// sleepCtx waits d or until ctx is done, whichever comes first
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
