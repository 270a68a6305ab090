package blob

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements blob storage using Redis.
type RedisStore struct {
	client   *redis.Client
	prefix   string
	maxBytes int
}

// NewRedisStore connects to redisURL and verifies the connection.
func NewRedisStore(redisURL string, maxBytes int) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisStoreWithClient(client, maxBytes), nil
}

// NewRedisStoreWithClient creates a store from an existing Redis client.
func NewRedisStoreWithClient(client *redis.Client, maxBytes int) *RedisStore {
	return &RedisStore{
		client:   client,
		prefix:   "blob:",
		maxBytes: maxBytes,
	}
}

func (s *RedisStore) key(name string) string {
	return s.prefix + name
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get blob %s: %w", key, err)
	}
	return value, nil
}

// Set stores value without expiry. Values over the configured limit, and
// writes rejected by a redis maxmemory policy, report ErrQuotaExceeded.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	if s.maxBytes > 0 && len(value) > s.maxBytes {
		return ErrQuotaExceeded
	}
	if err := s.client.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		if isOOM(err) {
			return fmt.Errorf("set blob %s: %w", key, ErrQuotaExceeded)
		}
		return fmt.Errorf("set blob %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("delete blob %s: %w", key, err)
	}
	return nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks if Redis is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func isOOM(err error) bool {
	var redisErr redis.Error
	if errors.As(err, &redisErr) {
		msg := redisErr.Error()
		return len(msg) >= 3 && msg[:3] == "OOM"
	}
	return false
}
