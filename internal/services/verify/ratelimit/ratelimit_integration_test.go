//go:build integration_redis
// +build integration_redis

package ratelimit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("start redis: %v", err)
	}
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	host, _ := c.Host(ctx)
	port, _ := c.MappedPort(ctx, "6379/tcp")
	rdb := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestRedis_Integration_SharedCeiling(t *testing.T) {
	rdb := startRedis(t)
	ctx := context.Background()

	a := NewRedis(rdb, Config{Ceiling: 5, Window: time.Minute, Key: "test:calls"})
	b := NewRedis(rdb, Config{Ceiling: 5, Window: time.Minute, Key: "test:calls"})

	admitted := 0
	for i := 0; i < 4; i++ {
		for _, c := range []*Redis{a, b} {
			if _, ok, err := c.Take(ctx); err != nil {
				t.Fatalf("take: %v", err)
			} else if ok {
				admitted++
			}
		}
	}
	if admitted != 5 {
		t.Fatalf("admitted = %d across two counters, want 5", admitted)
	}

	st, err := a.Peek(ctx)
	if err != nil {
		t.Fatalf("peek: %v", err)
	}
	if st.Count != 8 || st.Remaining != 0 {
		t.Fatalf("peek state %+v", st)
	}
	if d := time.Until(st.ResetAt); d <= 0 || d > time.Minute {
		t.Fatalf("reset in %v", d)
	}
}
