package redis

import (
	"context"
	"net"
	"os"
	"strconv"
	"testing"
	"time"

	"pyqportal/internal/config"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set TEST_REDIS_ADDR to run redis-backed tests")
	}
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("split host port: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("atoi port: %v", err)
	}
	client, err := NewRedisClient(&config.Config{Redis: config.RedisConfig{Host: host, Port: port}})
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Raw().FlushDB(ctx).Err(); err != nil {
		t.Fatalf("flush db: %v", err)
	}
	return client
}

func TestNilClientIsSafe(t *testing.T) {
	var c *Client
	ctx := context.Background()
	if _, err := c.Get(ctx, "k"); err == nil {
		t.Fatalf("expected error from nil client")
	}
	if err := c.Publish(ctx, "ch", []byte("x")); err == nil {
		t.Fatalf("expected error from nil client publish")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close nil client: %v", err)
	}
	if c.Raw() != nil {
		t.Fatalf("nil client should expose nil raw client")
	}
}

func TestSetGetIncrDel(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	if err := c.Set(ctx, "pyq:test", "value", time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := c.Get(ctx, "pyq:test")
	if err != nil || got != "value" {
		t.Fatalf("get: %q %v", got, err)
	}
	n, err := c.Incr(ctx, "pyq:gen")
	if err != nil || n != 1 {
		t.Fatalf("incr: %d %v", n, err)
	}
	if err := c.Del(ctx, "pyq:test"); err != nil {
		t.Fatalf("del: %v", err)
	}
	if _, err := c.Get(ctx, "pyq:test"); err != ErrCacheMiss {
		t.Fatalf("expected cache miss, got %v", err)
	}
}

func TestPublishSubscribe(t *testing.T) {
	c := newTestClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan string, 1)
	if err := c.Subscribe(ctx, "pyq:test:channel", func(b []byte) { got <- string(b) }); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := c.Publish(ctx, "pyq:test:channel", []byte("hello")); err != nil {
		t.Fatalf("publish: %v", err)
	}
	select {
	case msg := <-got:
		if msg != "hello" {
			t.Fatalf("unexpected payload %q", msg)
		}
	case <-time.After(time.Second):
		t.Fatalf("did not receive pubsub message")
	}
}
