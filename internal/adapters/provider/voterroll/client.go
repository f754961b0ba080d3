// Package voterroll is the HTTP client for the voter registration provider
package voterroll

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	perr "rollcall/internal/platform/errors"
	"rollcall/internal/platform/logger"
)

const (
	defaultTimeout   = 10 * time.Second
	defaultUA        = "rollcall-verifier"
	defaultMaxRetry  = 2
	defaultRetryBase = 250 * time.Millisecond
	maxBackoff       = 30 * time.Second
)

// Options configures the Client
type Options struct {
	BaseURL   string
	Token     string
	UserAgent string
	Timeout   time.Duration

	// Retries apply to transport failures and 5xx only; 429 is never retried
	MaxRetries int
	RetryBase  time.Duration
}

// Client looks up voter registrations one identity number at a time
type Client struct {
	http  *http.Client
	opts  Options
	log   logger.Logger
	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// NewClient creates a Client with defaults filled in
func NewClient(o Options) *Client {
	o.BaseURL = strings.TrimRight(o.BaseURL, "/")
	if o.UserAgent == "" {
		o.UserAgent = defaultUA
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	} else if o.MaxRetries == 0 {
		o.MaxRetries = defaultMaxRetry
	}
	if o.RetryBase <= 0 {
		o.RetryBase = defaultRetryBase
	}
	return &Client{
		http:  &http.Client{Timeout: o.Timeout},
		opts:  o,
		log:   *logger.Named("voterroll"),
		now:   time.Now,
		sleep: sleepCtx,
	}
}

// Lookup asks the provider about one identity number. Errors are returned for
// transport failures, malformed bodies and unexpected statuses; not found and
// rate limited are replies, not errors.
func (c *Client) Lookup(ctx context.Context, idNumber string) (Reply, error) {
	if c.opts.BaseURL == "" {
		return Reply{}, perr.Newf(perr.ErrorCodeInvalidArgument, "voterroll base url not configured")
	}
	path := "/v1/voters/" + url.PathEscape(idNumber)
	attempts := 0
	for {
		if err := ctx.Err(); err != nil {
			return Reply{}, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.opts.BaseURL+path, nil)
		if err != nil {
			return Reply{}, perr.Wrapf(err, perr.ErrorCodeUnknown, "voterroll new request failed")
		}
		req.Header.Set("User-Agent", c.opts.UserAgent)
		req.Header.Set("Accept", "application/json")
		if c.opts.Token != "" {
			req.Header.Set("Authorization", "Bearer "+c.opts.Token)
		}

		start := c.now()
		resp, err := c.http.Do(req)
		lat := c.now().Sub(start)

		if err != nil {
			if ctx.Err() != nil || attempts >= c.opts.MaxRetries {
				return Reply{}, perr.Wrapf(err, perr.ErrorCodeUnavailable, "voterroll request failed")
			}
			back := c.backoff(attempts)
			c.log.Warn().Err(err).Dur("retry_in", back).Int("attempt", attempts).Msg("voterroll transport error retrying")
			if err := c.sleep(ctx, back); err != nil {
				return Reply{}, err
			}
			attempts++
			continue
		}

		c.log.Debug().
			Int("status", resp.StatusCode).
			Int("attempt", attempts).
			Dur("latency", lat).
			Msg("voterroll http response")

		switch {
		case resp.StatusCode == http.StatusOK:
			return c.decode(resp)
		case resp.StatusCode == http.StatusNotFound:
			_ = drainAndClose(resp.Body)
			return notFound(idNumber), nil
		case resp.StatusCode == http.StatusTooManyRequests:
			reset := resetFrom(resp.Header, c.now())
			_ = drainAndClose(resp.Body)
			c.log.Warn().Time("reset_at", reset).Msg("voterroll quota exhausted")
			return Reply{Kind: RateLimited, ResetAt: reset}, nil
		case resp.StatusCode >= 500:
			_ = drainAndClose(resp.Body)
			if attempts >= c.opts.MaxRetries {
				return Reply{}, perr.Newf(perr.ErrorCodeUnavailable, "voterroll server error %d", resp.StatusCode)
			}
			back := c.backoff(attempts)
			c.log.Warn().Int("status", resp.StatusCode).Dur("retry_in", back).Msg("voterroll transient error retrying")
			if err := c.sleep(ctx, back); err != nil {
				return Reply{}, err
			}
			attempts++
			continue
		default:
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
			_ = resp.Body.Close()
			return Reply{}, perr.Newf(perr.ErrorCodeUnknown, "voterroll unexpected status %d body %s", resp.StatusCode, string(body))
		}
	}
}

func (c *Client) decode(resp *http.Response) (Reply, error) {
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.log.Error().Err(cerr).Msg("voterroll close body failed")
		}
	}()
	var v Voter
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&v); err != nil {
		return Reply{}, perr.Wrap(err, perr.ErrorCodeJSON, "voterroll malformed response")
	}
	if strings.EqualFold(strings.TrimSpace(v.Status), StatusNotFound) {
		return notFound(v.IDNumber), nil
	}
	return Reply{Kind: Found, Voter: v}, nil
}

func notFound(id string) Reply {
	return Reply{Kind: NotFound, Voter: Voter{IDNumber: id, Status: StatusNotFound}}
}

func (c *Client) backoff(attempt int) time.Duration {
	d := c.opts.RetryBase << uint(attempt)
	if d <= 0 || d > maxBackoff {
		return maxBackoff
	}
	return d
}
