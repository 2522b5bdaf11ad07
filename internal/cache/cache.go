// Package cache defines the key-value port shared by the identity cache
// and the rating debounce flag.  Both are best-effort: a missing or
// expired entry only costs an extra database read or an extra
// recomputation, never incorrect behavior.  Handlers receive the Store
// interface so tests can substitute an in-memory fake and so the server
// keeps working when Redis is unreachable.
package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store is a get/set-with-expiry key-value interface.
type Store interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set stores value under key with the given time-to-live.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// SetNX stores value only when key is absent and reports whether the
	// write happened.  Used for the debounce flag so that concurrent
	// submitters race on a single atomic operation.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
}

// redisStore backs Store with a Redis client.
type redisStore struct{ rdb *redis.Client }

// NewRedis wraps rdb in a Store.  When rdb is nil (Redis unreachable at
// startup) a no-op store is returned and callers degrade to
// database-only reads and per-vote recomputation.
func NewRedis(rdb *redis.Client) Store {
	if rdb == nil {
		return noopStore{}
	}
	return redisStore{rdb: rdb}
}

func (s redisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s redisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.rdb.Set(ctx, key, value, ttl).Err()
}

func (s redisStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return s.rdb.SetNX(ctx, key, value, ttl).Result()
}

// noopStore never holds anything.  Every Get is a miss and every SetNX
// "succeeds" so the debounce degrades to one job per rating.
type noopStore struct{}

func (noopStore) Get(context.Context, string) (string, bool, error) { return "", false, nil }
func (noopStore) Set(context.Context, string, string, time.Duration) error {
	return nil
}
func (noopStore) SetNX(context.Context, string, string, time.Duration) (bool, error) {
	return true, nil
}
