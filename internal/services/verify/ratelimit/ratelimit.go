// Package ratelimit counts provider calls against an hourly ceiling shared by every worker
package ratelimit

import (
	"context"
	stderrs "errors"
	"sync"
	"time"

	perr "rollcall/internal/platform/errors"
	"rollcall/internal/services/verify/domain"

	"github.com/redis/go-redis/v9"
)

// DefaultKey is the redis key holding the current window's count
const DefaultKey = "rollcall:verify:calls"

// Config sets the ceiling and window length
type Config struct {
	Ceiling int
	Window  time.Duration
	Key     string
}

func (c Config) withDefaults() Config {
	if c.Ceiling <= 0 {
		c.Ceiling = 1000
	}
	if c.Window <= 0 {
		c.Window = time.Hour
	}
	if c.Key == "" {
		c.Key = DefaultKey
	}
	return c
}

func state(cfg Config, count int, resetAt time.Time) domain.RateLimitState {
	return domain.RateLimitState{
		Count:     count,
		Ceiling:   cfg.Ceiling,
		Remaining: max(0, cfg.Ceiling-count),
		ResetAt:   resetAt,
		Window:    cfg.Window,
	}
}

// takeScript increments and starts the window on the first hit. The PTTL
// repair covers a key that lost its expiry.
var takeScript = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {n, ttl}
`)

// Redis is a Counter shared across processes
type Redis struct {
	rdb redis.UniversalClient
	cfg Config
	now func() time.Time
}

var _ domain.Counter = (*Redis)(nil)

// NewRedis builds a redis backed counter
func NewRedis(rdb redis.UniversalClient, cfg Config) *Redis {
	return &Redis{rdb: rdb, cfg: cfg.withDefaults(), now: time.Now}
}

// Take atomically counts one call
func (r *Redis) Take(ctx context.Context) (domain.RateLimitState, bool, error) {
	vals, err := takeScript.Run(ctx, r.rdb, []string{r.cfg.Key}, r.cfg.Window.Milliseconds()).Int64Slice()
	if err != nil {
		return domain.RateLimitState{}, false, perr.Wrap(err, perr.ErrorCodeUnavailable, "ratelimit: take")
	}
	if len(vals) != 2 {
		return domain.RateLimitState{}, false, perr.Newf(perr.ErrorCodeUnavailable, "ratelimit: unexpected script reply %v", vals)
	}
	n := int(vals[0])
	st := state(r.cfg, n, r.now().Add(time.Duration(vals[1])*time.Millisecond))
	return st, n <= r.cfg.Ceiling, nil
}

// Peek reads the count and remaining window without counting
func (r *Redis) Peek(ctx context.Context) (domain.RateLimitState, error) {
	n, err := r.rdb.Get(ctx, r.cfg.Key).Int()
	if err != nil && !stderrs.Is(err, redis.Nil) {
		return domain.RateLimitState{}, perr.Wrap(err, perr.ErrorCodeUnavailable, "ratelimit: peek")
	}
	ttl, err := r.rdb.PTTL(ctx, r.cfg.Key).Result()
	if err != nil {
		return domain.RateLimitState{}, perr.Wrap(err, perr.ErrorCodeUnavailable, "ratelimit: peek ttl")
	}
	now := r.now()
	reset := now.Add(r.cfg.Window)
	if ttl > 0 {
		reset = now.Add(ttl)
	} else {
		n = 0
	}
	return state(r.cfg, n, reset), nil
}

// Memory is a Counter for a single process
type Memory struct {
	mu      sync.Mutex
	cfg     Config
	count   int
	resetAt time.Time
	now     func() time.Time
}

var _ domain.Counter = (*Memory)(nil)

// NewMemory builds an in process counter
func NewMemory(cfg Config) *Memory {
	return &Memory{cfg: cfg.withDefaults(), now: time.Now}
}

func (m *Memory) roll(now time.Time) {
	if m.resetAt.IsZero() || !now.Before(m.resetAt) {
		m.count = 0
		m.resetAt = time.Time{}
	}
}

// Take counts one call; the window starts at the first call
func (m *Memory) Take(_ context.Context) (domain.RateLimitState, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	m.roll(now)
	if m.count == 0 {
		m.resetAt = now.Add(m.cfg.Window)
	}
	m.count++
	return state(m.cfg, m.count, m.resetAt), m.count <= m.cfg.Ceiling, nil
}

// Peek reads the state without counting
func (m *Memory) Peek(_ context.Context) (domain.RateLimitState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	m.roll(now)
	reset := m.resetAt
	if reset.IsZero() {
		reset = now.Add(m.cfg.Window)
	}
	return state(m.cfg, m.count, reset), nil
}
