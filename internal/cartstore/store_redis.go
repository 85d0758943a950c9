package cartstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const redisField = "blob"

// RedisStore keeps each key as a hash with a single field, mirroring how the
// cart service lays out carts in Redis.
type RedisStore struct {
	client    *redis.Client
	namespace string
}

func NewRedisStore(addr, namespace string) (*RedisStore, error) {
	opts, err := redis.ParseURL(addr)
	if err != nil {
		opts = &redis.Options{
			Addr:         addr,
			MinIdleConns: 1,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			PoolSize:     4,
		}
	}
	if opts.Addr == "" {
		return nil, errors.New("redis address required")
	}
	return &RedisStore{client: redis.NewClient(opts), namespace: namespace}, nil
}

func (s *RedisStore) key(k string) string {
	if s.namespace == "" {
		return k
	}
	return s.namespace + ":" + k
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return withTimeout(ctx, pingTimeout, func(ctx context.Context) error {
		return s.client.Ping(ctx).Err()
	})
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var val []byte
	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		b, err := s.client.HGet(ctx, s.key(key), redisField).Bytes()
		val = b
		return err
	})
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis HGet: %w", err)
	}
	return val, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, val []byte) error {
	return withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		if err := s.client.HSet(ctx, s.key(key), redisField, val).Err(); err != nil {
			return fmt.Errorf("redis HSet: %w", err)
		}
		return nil
	})
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		return s.client.Del(ctx, s.key(key)).Err()
	})
}

func (s *RedisStore) Close() error { return s.client.Close() }
