package pg

import (
	"context"
	"strings"
	"time"

	"rollcall/internal/platform/logger"

	"github.com/rs/zerolog"
)

// QueryEvent is one finished statement
type QueryEvent struct {
	SQL     string
	Args    []any
	Elapsed time.Duration
	Err     error
	Slow    bool
}

// QueryTracer is told about every statement the store runs
type QueryTracer interface {
	OnQuery(ctx context.Context, ev QueryEvent)
}

// Tracer logs statements at info, slow ones at warn and failures at error.
// It logs at debug and above whatever the root level is, since turning on
// SERVICE_PGSQL_LOG_SQL is the request to see them.
func Tracer(root logger.Logger) QueryTracer {
	return logTracer{log: root.Level(zerolog.DebugLevel).With().Str("component", "pg").Logger()}
}

type logTracer struct{ log logger.Logger }

func (t logTracer) OnQuery(ctx context.Context, ev QueryEvent) {
	var e *zerolog.Event
	switch {
	case ev.Err != nil:
		e = t.log.Error().Err(ev.Err)
	case ev.Slow:
		e = t.log.Warn()
	default:
		e = t.log.Info()
	}
	if id := logger.JobID(ctx); id != "" {
		e = e.Str("job_id", id)
	}
	if id := logger.RequestID(ctx); id != "" {
		e = e.Str("request_id", id)
	}
	e.Dur("elapsed", ev.Elapsed).
		Bool("slow", ev.Slow).
		Str("sql", oneLine(ev.SQL)).
		Int("args", len(ev.Args)).
		Msg("pg query")
}

// oneLine collapses the whitespace of a multi-line statement
func oneLine(sql string) string { return strings.Join(strings.Fields(sql), " ") }
