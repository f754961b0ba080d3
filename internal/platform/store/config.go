package store

import (
	"time"

	"rollcall/internal/platform/config"
)

// Config selects and configures the backends Open connects
type Config struct {
	AppName string

	PG  PGConfig
	CH  CHConfig
	RDS RedisConfig
}

// PGConfig configures the postgres pool. Zero retry and timeout values use
// the defaults in openPG.
type PGConfig struct {
	Enabled        bool
	URL            string
	MaxConns       int32
	LogSQL         bool
	SlowQueryMs    int
	ConnectRetries int
	PingTimeout    time.Duration
}

// CHConfig configures the clickhouse audit mirror
type CHConfig struct {
	Enabled bool
	URL     string
	Role    string
}

// RedisConfig configures redis
type RedisConfig struct {
	Enabled  bool
	URL      string
	PoolSize int
}

// FromConfig reads SERVICE_PGSQL_*, SERVICE_CLICKHOUSE_* and SERVICE_REDIS_*.
// Postgres is always enabled and DBURL is required; clickhouse and redis are
// enabled by setting their URL. role names the binary in clickhouse client info.
func FromConfig(cfg config.Conf, appName, role string, maxConns int) Config {
	pg := cfg.Prefix("SERVICE_PGSQL_")
	ch := cfg.Prefix("SERVICE_CLICKHOUSE_")
	rd := cfg.Prefix("SERVICE_REDIS_")

	chURL := ch.MayString("DBURL", "")
	rdURL := rd.MayString("URL", "")
	return Config{
		AppName: appName,
		PG: PGConfig{
			Enabled:        true,
			URL:            pg.MustString("DBURL"),
			MaxConns:       int32(pg.MayInt("MAX_CONNS", maxConns)),
			LogSQL:         pg.MayBool("LOG_SQL", false),
			SlowQueryMs:    pg.MayInt("SLOW_MS", 500),
			ConnectRetries: pg.MayInt("CONNECT_RETRIES", 20),
			PingTimeout:    pg.MayDuration("PING_TIMEOUT", 3*time.Second),
		},
		CH:  CHConfig{Enabled: chURL != "", URL: chURL, Role: role},
		RDS: RedisConfig{Enabled: rdURL != "", URL: rdURL, PoolSize: rd.MayInt("POOL_SIZE", 0)},
	}
}
