package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisStore struct {
	client    *redis.Client
	namespace string
}

// NewRedis constructs a redis-backed store. Keys are prefixed with the
// configured namespace so multiple deployments can share one instance.
func NewRedis(cfg Config) (Store, error) {
	if cfg.Redis == nil {
		return nil, fmt.Errorf("redis configuration missing")
	}
	if cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis address required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	timeout := cfg.Redis.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	namespace := cfg.Namespace
	if namespace == "" {
		namespace = "session:"
	}
	if !strings.HasSuffix(namespace, ":") {
		namespace += ":"
	}

	return &redisStore{client: client, namespace: namespace}, nil
}

func (s *redisStore) key(key string) string {
	return s.namespace + key
}

func (s *redisStore) Get(ctx context.Context, key string) (string, error) {
	value, err := s.client.Get(ctx, s.key(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", &Error{Op: "get", Key: key, Err: ErrKeyNotFound}
		}
		return "", &Error{Op: "get", Key: key, Err: err}
	}
	return value, nil
}

func (s *redisStore) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		return &Error{Op: "set", Key: key, Err: err}
	}
	return nil
}

func (s *redisStore) Remove(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return &Error{Op: "remove", Key: key, Err: err}
	}
	return nil
}

func (s *redisStore) Keys(ctx context.Context) ([]string, error) {
	var (
		cursor uint64
		keys   []string
	)
	for {
		batch, next, err := s.client.Scan(ctx, cursor, s.namespace+"*", 100).Result()
		if err != nil {
			return nil, &Error{Op: "keys", Err: err}
		}
		for _, key := range batch {
			keys = append(keys, strings.TrimPrefix(key, s.namespace))
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return keys, nil
}

func (s *redisStore) Close(_ context.Context) error {
	return s.client.Close()
}
