package gateway

import (
	"context"
	"errors"

	"github.com/patcharinz/healthmate-api/services/session-service/internal/store"
)

// SessionStorage persists the gateway's session blob between restarts.
type SessionStorage interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, value string) error
	Clear(ctx context.Context) error
}

type storeSessionStorage struct {
	store store.Store
}

// NewStoreSessionStorage persists the session blob in the local store
// under the subsystem's registered gateway key, so the logout purge sweeps
// it together with the auth flags.
func NewStoreSessionStorage(s store.Store) SessionStorage {
	return &storeSessionStorage{store: s}
}

func (s *storeSessionStorage) Load(ctx context.Context) (string, error) {
	value, err := s.store.Get(ctx, store.KeyGatewaySession)
	if err != nil {
		if errors.Is(err, store.ErrKeyNotFound) {
			return "", nil
		}
		return "", err
	}
	return value, nil
}

func (s *storeSessionStorage) Save(ctx context.Context, value string) error {
	return s.store.Set(ctx, store.KeyGatewaySession, value)
}

func (s *storeSessionStorage) Clear(ctx context.Context) error {
	return s.store.Remove(ctx, store.KeyGatewaySession)
}
