// Package cache stores aggregate snapshots in Redis so repeated status and
// aggregate requests skip the collection scan until the next write.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/JonMunkholm/importcheck/internal/core"
)

const (
	DefaultKeyPrefix = "importcheck:snapshot:"
	DefaultTTL       = 10 * time.Minute
)

// Config configures the Redis connection and key layout.
type Config struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	TTL       time.Duration
}

// RedisSnapshotCache implements core.SnapshotCache.
type RedisSnapshotCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ core.SnapshotCache = (*RedisSnapshotCache)(nil)

// Connect dials Redis and verifies the connection with PING.
func Connect(ctx context.Context, cfg Config) (*RedisSnapshotCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", cfg.Addr, err)
	}
	return New(client, cfg.KeyPrefix, cfg.TTL), nil
}

// New wraps an existing client. Empty prefix and non-positive ttl fall back
// to the defaults.
func New(client *redis.Client, prefix string, ttl time.Duration) *RedisSnapshotCache {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisSnapshotCache{client: client, prefix: prefix, ttl: ttl}
}

func (c *RedisSnapshotCache) key(collection string) string {
	return c.prefix + collection
}

// genKey holds the collection's write generation. It has no TTL so the
// counter never restarts while snapshots may still be in flight.
func (c *RedisSnapshotCache) genKey(collection string) string {
	return c.prefix + "gen:" + collection
}

// storeIfCurrent sets KEYS[2] only when the generation at KEYS[1] (missing
// counts as 0) equals ARGV[1].
var storeIfCurrent = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if not cur then cur = '0' end
if cur ~= ARGV[1] then return 0 end
redis.call('SET', KEYS[2], ARGV[2], 'PX', ARGV[3])
return 1
`)

func (c *RedisSnapshotCache) Load(ctx context.Context, collection string) (core.AggregateSnapshot, bool, error) {
	data, err := c.client.Get(ctx, c.key(collection)).Bytes()
	if errors.Is(err, redis.Nil) {
		return core.AggregateSnapshot{}, false, nil
	}
	if err != nil {
		return core.AggregateSnapshot{}, false, fmt.Errorf("get snapshot %s: %w", collection, err)
	}

	var snap core.AggregateSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		// A corrupt entry is a miss; the next Store overwrites it.
		return core.AggregateSnapshot{}, false, nil
	}
	if snap.ErrorCountByColumn == nil {
		snap.ErrorCountByColumn = map[string]int64{}
	}
	return snap, true, nil
}

func (c *RedisSnapshotCache) Generation(ctx context.Context, collection string) (uint64, error) {
	gen, err := c.client.Get(ctx, c.genKey(collection)).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get generation %s: %w", collection, err)
	}
	return gen, nil
}

func (c *RedisSnapshotCache) Store(ctx context.Context, collection string, gen uint64, snap core.AggregateSnapshot) (bool, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return false, fmt.Errorf("encode snapshot: %w", err)
	}

	keys := []string{c.genKey(collection), c.key(collection)}
	n, err := storeIfCurrent.Run(ctx, c.client, keys,
		strconv.FormatUint(gen, 10), data, c.ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("set snapshot %s: %w", collection, err)
	}
	return n == 1, nil
}

// Invalidate advances the generation and drops the snapshot in one
// transaction.
func (c *RedisSnapshotCache) Invalidate(ctx context.Context, collection string) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, c.genKey(collection))
		pipe.Del(ctx, c.key(collection))
		return nil
	})
	if err != nil {
		return fmt.Errorf("invalidate snapshot %s: %w", collection, err)
	}
	return nil
}

// Ping reports whether Redis is reachable.
func (c *RedisSnapshotCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (c *RedisSnapshotCache) Close() error {
	return c.client.Close()
}
