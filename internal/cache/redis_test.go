package cache

import (
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/JonMunkholm/importcheck/internal/core"
)

// unreachable returns a client whose every command fails fast.
func unreachable(t *testing.T) *redis.Client {
	t.Helper()
	c := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { c.Close() })
	return c
}

func TestNew_Defaults(t *testing.T) {
	c := New(unreachable(t), "", 0)
	if c.prefix != DefaultKeyPrefix {
		t.Errorf("prefix = %q, want %q", c.prefix, DefaultKeyPrefix)
	}
	if c.ttl != DefaultTTL {
		t.Errorf("ttl = %v, want %v", c.ttl, DefaultTTL)
	}

	c = New(unreachable(t), "app:", time.Minute)
	if got := c.key("records_a_1"); got != "app:records_a_1" {
		t.Errorf("key() = %q, want app:records_a_1", got)
	}
	if got := c.genKey("records_a_1"); got != "app:gen:records_a_1" {
		t.Errorf("genKey() = %q, want app:gen:records_a_1", got)
	}
}

func TestRedisSnapshotCache_Unreachable(t *testing.T) {
	c := New(unreachable(t), "", 0)
	ctx := t.Context()

	if _, ok, err := c.Load(ctx, "x"); err == nil || ok {
		t.Errorf("Load() = ok %v, err %v; want error", ok, err)
	}
	if _, err := c.Generation(ctx, "x"); err == nil {
		t.Error("Generation() error = nil, want error")
	}
	if stored, err := c.Store(ctx, "x", 0, core.AggregateSnapshot{}); err == nil || stored {
		t.Errorf("Store() = %v, %v; want false, error", stored, err)
	}
	if err := c.Invalidate(ctx, "x"); err == nil {
		t.Error("Invalidate() error = nil, want error")
	}
}
