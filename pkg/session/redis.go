package session

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a Redis-backed session store.
// Expiry is delegated to Redis key TTLs, so expired documents are evicted by
// the server without a sweep. Suitable for multi-instance deployments.
type RedisStore struct {
	client      redis.UniversalClient
	prefix      string
	closeClient bool
	closed      atomic.Bool
}

// RedisStoreOption configures RedisStore behavior.
type RedisStoreOption func(*redisStoreConfig)

type redisStoreConfig struct {
	prefix      string
	closeClient bool
}

// WithRedisPrefix sets the key prefix for session keys.
// Default: "cvmaker:sess:".
func WithRedisPrefix(prefix string) RedisStoreOption {
	return func(c *redisStoreConfig) {
		c.prefix = prefix
	}
}

// WithRedisOwnership makes Close also close the client.
func WithRedisOwnership() RedisStoreOption {
	return func(c *redisStoreConfig) {
		c.closeClient = true
	}
}

// NewRedisStore creates a new Redis-backed session store.
func NewRedisStore(client redis.UniversalClient, opts ...RedisStoreOption) *RedisStore {
	cfg := &redisStoreConfig{
		prefix: "cvmaker:sess:",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return &RedisStore{
		client:      client,
		prefix:      cfg.prefix,
		closeClient: cfg.closeClient,
	}
}

func (r *RedisStore) key(sessionID string) string {
	return r.prefix + sessionID
}

// Save stores session data with an expiration time.
func (r *RedisStore) Save(ctx context.Context, sessionID string, data []byte, expiresAt time.Time) error {
	if r.closed.Load() {
		return ErrStoreClosed
	}

	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return r.Delete(ctx, sessionID)
	}

	return r.client.Set(ctx, r.key(sessionID), data, ttl).Err()
}

// Load retrieves session data if it exists.
func (r *RedisStore) Load(ctx context.Context, sessionID string) ([]byte, error) {
	if r.closed.Load() {
		return nil, ErrStoreClosed
	}

	data, err := r.client.Get(ctx, r.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}

// Delete removes a session from Redis.
func (r *RedisStore) Delete(ctx context.Context, sessionID string) error {
	if r.closed.Load() {
		return ErrStoreClosed
	}
	return r.client.Del(ctx, r.key(sessionID)).Err()
}

// Ping checks connectivity with the Redis server.
func (r *RedisStore) Ping(ctx context.Context) error {
	if r.closed.Load() {
		return ErrStoreClosed
	}
	return r.client.Ping(ctx).Err()
}

// Close marks the store as closed. The client is closed only when the store
// owns it.
func (r *RedisStore) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	if r.closeClient {
		return r.client.Close()
	}
	return nil
}

// Prefix returns the current key prefix.
func (r *RedisStore) Prefix() string {
	return r.prefix
}
