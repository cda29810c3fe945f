package redisx

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func getRedisClient(t *testing.T) *redis.Client {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	client := New(addr)
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestJSONRoundTrip(t *testing.T) {
	client := getRedisClient(t)
	ctx := context.Background()
	key := fmt.Sprintf(KeyOrder, "redisx-test")
	client.Del(ctx, key)

	type payload struct {
		Status string `json:"status"`
	}
	if err := SetJSON(ctx, client, key, payload{Status: "pending"}, TTLOrderCache); err != nil {
		t.Fatalf("SetJSON: %v", err)
	}
	var got payload
	if err := GetJSON(ctx, client, key, &got); err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
	if got.Status != "pending" {
		t.Errorf("expected pending, got %q", got.Status)
	}

	ok, err := Exists(ctx, client, key)
	if err != nil || !ok {
		t.Errorf("expected key to exist, ok=%v err=%v", ok, err)
	}
	client.Del(ctx, key)
	if err := GetJSON(ctx, client, key, &got); !errors.Is(err, redis.Nil) {
		t.Errorf("expected redis.Nil after delete, got %v", err)
	}
}

func TestOrderCacheIsShortLived(t *testing.T) {
	if TTLOrderCache > time.Minute {
		t.Errorf("order cache TTL %v bounds how long a cascaded delete stays visible; keep it under a minute", TTLOrderCache)
	}
	if TTLOrderCache <= 0 {
		t.Error("order cache TTL must be positive")
	}
}
