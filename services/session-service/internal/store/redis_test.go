package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

func newTestRedis(t *testing.T) Store {
	t.Helper()

	mr := miniredis.RunT(t)
	s, err := NewRedis(Config{
		Driver:    DriverRedis,
		Namespace: "healthmate",
		Redis:     &RedisConfig{Addr: mr.Addr()},
	})
	if err != nil {
		t.Fatalf("NewRedis returned error: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(context.Background()); err != nil {
			t.Errorf("Close returned error: %v", err)
		}
	})

	return s
}

func TestRedisRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestRedis(t)

	if err := s.Set(ctx, "user_email", "user@example.com"); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}

	value, err := s.Get(ctx, "user_email")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if value != "user@example.com" {
		t.Fatalf("Get = %q, want user@example.com", value)
	}

	if err := s.Remove(ctx, "user_email"); err != nil {
		t.Fatalf("Remove returned error: %v", err)
	}
	if _, err := s.Get(ctx, "user_email"); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound after remove, got %v", err)
	}
}

func TestRedisGetMissingKey(t *testing.T) {
	s := newTestRedis(t)

	_, err := s.Get(context.Background(), "absent")
	if !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestRedisKeysStripNamespace(t *testing.T) {
	ctx := context.Background()

	mr := miniredis.RunT(t)
	s, err := NewRedis(Config{
		Namespace: "healthmate",
		Redis:     &RedisConfig{Addr: mr.Addr()},
	})
	if err != nil {
		t.Fatalf("NewRedis returned error: %v", err)
	}
	defer s.Close(ctx)

	if err := s.Set(ctx, "auth_user_id", "user-1"); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}

	// The namespace prefix is a storage concern only.
	if !mr.Exists("healthmate:auth_user_id") {
		t.Fatal("expected raw key to carry the namespace prefix")
	}

	keys, err := s.Keys(ctx)
	if err != nil {
		t.Fatalf("Keys returned error: %v", err)
	}
	if len(keys) != 1 || keys[0] != "auth_user_id" {
		t.Fatalf("Keys = %v, want [auth_user_id]", keys)
	}
}

func TestRedisKeysPaginates(t *testing.T) {
	ctx := context.Background()
	s := newTestRedis(t)

	// More entries than a single SCAN batch returns.
	want := make([]string, 0, 250)
	for i := 0; i < 250; i++ {
		key := fmt.Sprintf("verification_email_user-%03d", i)
		want = append(want, key)
		if err := s.Set(ctx, key, "{}"); err != nil {
			t.Fatalf("Set %q returned error: %v", key, err)
		}
	}

	keys, err := s.Keys(ctx)
	if err != nil {
		t.Fatalf("Keys returned error: %v", err)
	}
	sort.Strings(keys)
	if len(keys) != len(want) {
		t.Fatalf("got %d keys, want %d", len(keys), len(want))
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("keys[%d] = %q, want %q", i, keys[i], want[i])
		}
	}
}

func TestNewRedisRequiresAddress(t *testing.T) {
	if _, err := NewRedis(Config{Redis: &RedisConfig{}}); err == nil {
		t.Fatal("expected error for missing address")
	}
	if _, err := NewRedis(Config{}); err == nil {
		t.Fatal("expected error for missing redis configuration")
	}
}
