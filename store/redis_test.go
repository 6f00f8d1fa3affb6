package store

import (
	"context"
	"os"
	"testing"

	"github.com/redis/go-redis/v9"
)

// Integration test; requires a running Redis. Run with:
//
//	REDIS_ADDR=localhost:6379 go test ./store/ -run TestRedisStore
func TestRedisStore(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set, skipping Redis integration test")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	s := NewRedis(client, "admin-test:")
	t.Cleanup(func() {
		_ = s.Clear(context.Background())
		_ = s.ClearCooldown(context.Background(), "forgot_password")
		_ = client.Close()
	})

	testStore(t, s)
}
