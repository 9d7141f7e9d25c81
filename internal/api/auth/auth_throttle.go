package auth

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/patrickmn/go-cache"

	"github.com/FACorreiaa/go-auth-service/internal/types"
)

const (
	DefaultThrottleWindow = 15 * time.Minute
	DefaultThrottleQuota  = 10
	throttleKeyPrefix     = "throttle:register:"
)

// CounterStore counts hits per key inside a fixed window that starts at the first hit.
// Increment returns the count after this hit and the time left in the window.
type CounterStore interface {
	Increment(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// RegistrationThrottle bounds registration attempts per client inside a fixed window.
type RegistrationThrottle struct {
	logger *slog.Logger
	store  CounterStore
	window time.Duration
	quota  int64
}

func NewRegistrationThrottle(store CounterStore, window time.Duration, quota int, logger *slog.Logger) *RegistrationThrottle {
	if window <= 0 {
		window = DefaultThrottleWindow
	}
	if quota <= 0 {
		quota = DefaultThrottleQuota
	}
	return &RegistrationThrottle{logger: logger, store: store, window: window, quota: int64(quota)}
}

// Allow records one attempt for clientKey and returns a *types.RateLimitError once the quota is spent.
// A failing counter store lets the attempt through.
func (t *RegistrationThrottle) Allow(ctx context.Context, clientKey string) error {
	count, ttl, err := t.store.Increment(ctx, throttleKeyPrefix+clientKey, t.window)
	if err != nil {
		t.logger.WarnContext(ctx, "Throttle counter unavailable, allowing attempt",
			slog.String("client", clientKey), slog.Any("error", err))
		return nil
	}
	if count > t.quota {
		if ttl <= 0 {
			ttl = t.window
		}
		return &types.RateLimitError{RetryAfter: ttl}
	}
	return nil
}

var _ CounterStore = (*CacheCounterStore)(nil)

// CacheCounterStore keeps counters in process memory. Counters do not survive restarts
// and are not shared between instances.
type CacheCounterStore struct {
	mu    sync.Mutex
	cache *cache.Cache
}

func NewCacheCounterStore(cleanupInterval time.Duration) *CacheCounterStore {
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}
	return &CacheCounterStore{cache: cache.New(cache.NoExpiration, cleanupInterval)}
}

func (s *CacheCounterStore) Increment(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.cache.Add(key, int64(1), window); err == nil {
		return 1, window, nil
	}
	n, err := s.cache.IncrementInt64(key, 1)
	if err != nil {
		// expired between Add and IncrementInt64
		s.cache.Set(key, int64(1), window)
		return 1, window, nil
	}
	_, expiresAt, found := s.cache.GetWithExpiration(key)
	if !found {
		return n, window, nil
	}
	return n, time.Until(expiresAt), nil
}

var _ CounterStore = (*RedisCounterStore)(nil)

// RedisCounterStore shares counters between instances through Redis.
type RedisCounterStore struct {
	client redis.Cmdable
}

func NewRedisCounterStore(client redis.Cmdable) *RedisCounterStore {
	return &RedisCounterStore{client: client}
}

func (s *RedisCounterStore) Increment(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	n, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("redis incr: %w", err)
	}
	if n == 1 {
		if err := s.client.PExpire(ctx, key, window).Err(); err != nil {
			return n, window, fmt.Errorf("redis pexpire: %w", err)
		}
		return n, window, nil
	}
	ttl, err := s.client.PTTL(ctx, key).Result()
	if err != nil {
		return n, window, fmt.Errorf("redis pttl: %w", err)
	}
	if ttl < 0 {
		// key lost its expiry; start a new window rather than blocking forever
		if err := s.client.PExpire(ctx, key, window).Err(); err != nil {
			return n, window, fmt.Errorf("redis pexpire: %w", err)
		}
		ttl = window
	}
	return n, ttl, nil
}
