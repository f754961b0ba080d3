package module

import (
	"time"

	"rollcall/internal/platform/config"
	"rollcall/internal/services/verify/ratelimit"
)

// Options controls the verifier and its provider client
type Options struct {
	ProviderURL   string
	ProviderToken string
	Timeout       time.Duration
	MaxRetries    int

	HourlyLimit int
	Window      time.Duration
	RateKey     string
	// Counter is auto, redis or memory; auto uses redis when the store has it
	Counter string

	BatchSize   int
	BatchDelay  time.Duration
	Concurrency int
}

// FromConfig reads VERIFY_*
func FromConfig(cfg config.Conf) Options {
	c := cfg.Prefix("VERIFY_")
	return Options{
		ProviderURL:   c.MayString("PROVIDER_URL", ""),
		ProviderToken: c.MayString("PROVIDER_TOKEN", ""),
		Timeout:       c.MayDuration("TIMEOUT", 10*time.Second),
		MaxRetries:    c.MayInt("MAX_RETRIES", 2),
		HourlyLimit:   c.MayInt("HOURLY_LIMIT", 1000),
		Window:        c.MayDuration("WINDOW", time.Hour),
		RateKey:       c.MayString("RATE_KEY", ratelimit.DefaultKey),
		Counter:       c.MayEnum("COUNTER", "auto", "auto", "redis", "memory"),
		BatchSize:     c.MayInt("BATCH_SIZE", 10),
		BatchDelay:    c.MayDuration("BATCH_DELAY", time.Second),
		Concurrency:   c.MayInt("CONCURRENCY", 10),
	}
}
