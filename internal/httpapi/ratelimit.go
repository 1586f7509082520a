package httpapi

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"

	"dragon-mcp/internal/tools"
)

// RateWindow is the length of one quota period.
const RateWindow = time.Hour

// Counter tracks per-role request quotas. Allow reads the current count and
// increments it when below limit; concurrent callers may overshoot slightly.
type Counter interface {
	Allow(ctx context.Context, role tools.Role, limit int) (bool, error)
}

func windowKey(prefix string, role tools.Role, now time.Time) string {
	return fmt.Sprintf("%s%s:%s", prefix, role, now.UTC().Format("2006010215"))
}

// MemoryCounter keeps quotas in process.
type MemoryCounter struct {
	mu    sync.Mutex
	cache *cache.Cache
	now   func() time.Time
}

// NewMemoryCounter builds an in-process counter. Entries expire after one window.
func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{cache: cache.New(RateWindow, 10*time.Minute), now: time.Now}
}

func (m *MemoryCounter) Allow(_ context.Context, role tools.Role, limit int) (bool, error) {
	key := windowKey("", role, m.now())

	m.mu.Lock()
	defer m.mu.Unlock()

	current := 0
	if v, found := m.cache.Get(key); found {
		current = v.(int)
	}
	if current >= limit {
		return false, nil
	}
	m.cache.Set(key, current+1, RateWindow)
	return true, nil
}

// RedisCounter shares quotas between replicas.
type RedisCounter struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedisCounter connects to url.
func NewRedisCounter(url, prefix string) (*RedisCounter, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &RedisCounter{client: redis.NewClient(opts), prefix: prefix, now: time.Now}, nil
}

// Ping checks connectivity.
func (c *RedisCounter) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the connection pool.
func (c *RedisCounter) Close() error {
	return c.client.Close()
}

func (c *RedisCounter) Allow(ctx context.Context, role tools.Role, limit int) (bool, error) {
	key := windowKey(c.prefix, role, c.now())

	current, err := c.client.Get(ctx, key).Int()
	if err != nil && err != redis.Nil {
		return false, fmt.Errorf("read rate counter: %w", err)
	}
	if current >= limit {
		return false, nil
	}

	pipe := c.client.TxPipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, RateWindow)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("increment rate counter: %w", err)
	}
	return true, nil
}

var (
	_ Counter = (*MemoryCounter)(nil)
	_ Counter = (*RedisCounter)(nil)
)
