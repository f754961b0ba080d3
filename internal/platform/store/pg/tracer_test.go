package pg

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"rollcall/internal/platform/logger"

	"github.com/rs/zerolog"
)

func TestOneLine(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"select 1":                      "select 1",
		"\n  SELECT *\n\tFROM jobs\r\n": "SELECT * FROM jobs",
		"":                              "",
	}
	for in, want := range cases {
		if got := oneLine(in); got != want {
			t.Fatalf("oneLine(%q) = %q, want %q", in, got, want)
		}
	}
}

type line struct {
	Level     string  `json:"level"`
	Component string  `json:"component"`
	SQL       string  `json:"sql"`
	Args      int     `json:"args"`
	Slow      bool    `json:"slow"`
	Elapsed   float64 `json:"elapsed"`
	Error     string  `json:"error"`
	JobID     string  `json:"job_id"`
}

func TestTracer_Levels(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		ev    QueryEvent
		level string
	}{
		{"fast", QueryEvent{SQL: "SELECT 1", Elapsed: time.Millisecond}, "info"},
		{"slow", QueryEvent{SQL: "SELECT pg_sleep(1)", Elapsed: time.Second, Slow: true}, "warn"},
		{"failed", QueryEvent{SQL: "SELEC", Err: errors.New("syntax error")}, "error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			// a root at error level still lets the tracer through
			Tracer(zerolog.New(&buf).Level(zerolog.ErrorLevel)).OnQuery(context.Background(), tc.ev)

			var got line
			if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
				t.Fatalf("decode %q: %v", buf.String(), err)
			}
			if got.Level != tc.level || got.Component != "pg" || got.SQL != tc.ev.SQL {
				t.Fatalf("line = %+v", got)
			}
			if tc.ev.Err != nil && got.Error != tc.ev.Err.Error() {
				t.Fatalf("error = %q", got.Error)
			}
		})
	}
}

func TestTracer_CarriesJobID(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	ctx := logger.WithJob(context.Background(), "job-7")
	Tracer(zerolog.New(&buf)).OnQuery(ctx, QueryEvent{
		SQL:  "UPDATE upload_jobs\n   SET progress = $2\n WHERE job_id = $1",
		Args: []any{"job-7", 40},
	})

	var got line
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.JobID != "job-7" || got.Args != 2 || got.SQL != "UPDATE upload_jobs SET progress = $2 WHERE job_id = $1" {
		t.Fatalf("line = %+v", got)
	}
}
