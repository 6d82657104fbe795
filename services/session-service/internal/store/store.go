package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Store is the local persistent key-value store shared by the session
// subsystem. It is selected once at boot and injected; callers never
// re-derive the backing driver.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
	Close(ctx context.Context) error
}

// ErrKeyNotFound is returned by Get when the key is absent.
var ErrKeyNotFound = errors.New("key not found")

// Error wraps a local store read/write/delete failure with the operation
// and key that produced it.
type Error struct {
	Op  string
	Key string
	Err error
}

func (e *Error) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("store: %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Driver identifiers supported by the factory.
const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
)

// Config describes the store selection parameters.
type Config struct {
	Driver    string
	Namespace string
	Redis     *RedisConfig
}

// RedisConfig captures connection options for the redis driver.
type RedisConfig struct {
	Addr     string
	Username string
	Password string
	DB       int
	Timeout  time.Duration
}

// New creates a store based on the provided configuration.
func New(cfg Config) (Store, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DriverMemory
	}

	switch driver {
	case DriverMemory:
		return NewMemory(), nil
	case DriverRedis:
		return NewRedis(cfg)
	default:
		return nil, fmt.Errorf("unsupported store driver: %s", driver)
	}
}
