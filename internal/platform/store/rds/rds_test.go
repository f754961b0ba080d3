package rds

import (
	"context"
	"testing"
	"time"
)

func TestOptions(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		cfg     Config
		wantErr bool
		addr    string
		db      int
		pool    int
	}{
		{name: "empty", cfg: Config{}, wantErr: true},
		{name: "bad scheme", cfg: Config{URL: "http://localhost:6379"}, wantErr: true},
		{name: "plain", cfg: Config{URL: "redis://localhost:6379/2"}, addr: "localhost:6379", db: 2},
		{name: "pool override", cfg: Config{URL: "redis://cache:6380/0", PoolSize: 7, ReadTimeout: time.Second}, addr: "cache:6380", pool: 7},
	}
	for _, c := range cases {
		opts, err := Options(c.cfg)
		if c.wantErr {
			if err == nil {
				t.Fatalf("%s: expected error", c.name)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s: %v", c.name, err)
		}
		if opts.Addr != c.addr || opts.DB != c.db {
			t.Fatalf("%s: addr=%q db=%d", c.name, opts.Addr, opts.DB)
		}
		if c.pool > 0 && opts.PoolSize != c.pool {
			t.Fatalf("%s: pool=%d want %d", c.name, opts.PoolSize, c.pool)
		}
	}
}

func TestOpen_Unreachable(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	// port 1 is closed everywhere
	if _, err := Open(ctx, Config{URL: "redis://127.0.0.1:1/0", DialTimeout: 200 * time.Millisecond}); err == nil {
		t.Fatalf("expected ping failure against a closed port")
	}
}
