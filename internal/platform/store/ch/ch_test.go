package ch

import (
	"context"
	"testing"
)

func TestOpen_EmptyURL(t *testing.T) {
	t.Parallel()

	if _, err := Open(context.Background(), Config{}); err == nil {
		t.Fatalf("Open with empty url should fail")
	}
}

func TestOpen_BadDSN(t *testing.T) {
	t.Parallel()

	if _, err := Open(context.Background(), Config{URL: "://nope"}); err == nil {
		t.Fatalf("Open with malformed dsn should fail")
	}
}

func TestNilClient_IsSafe(t *testing.T) {
	t.Parallel()

	var c *CH
	if err := c.Close(); err != nil {
		t.Fatalf("Close on nil client returned %v", err)
	}
	if err := c.Insert(context.Background(), "rollcall_audit", [][]any{{1}}); err == nil {
		t.Fatalf("Insert on nil client should fail")
	}
	if _, err := c.Query(context.Background(), "SELECT 1"); err == nil {
		t.Fatalf("Query on nil client should fail")
	}
	if err := c.Ping(context.Background()); err == nil {
		t.Fatalf("Ping on nil client should fail")
	}
}

func TestBuildClientInfo_Products(t *testing.T) {
	t.Parallel()

	ci := BuildClientInfo(" worker ", "v1.2.3")
	if len(ci.Products) != 5 {
		t.Fatalf("products = %d, want 5", len(ci.Products))
	}
	if ci.Products[0].Name != "rollcall" || ci.Products[0].Version != "v1.2.3" {
		t.Fatalf("first product = %+v", ci.Products[0])
	}
	if ci.Products[1].Version != "worker" {
		t.Fatalf("role not trimmed: %q", ci.Products[1].Version)
	}
}
