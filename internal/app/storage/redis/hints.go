// Package redis implements the hint cache on Redis so multiple instances can
// share generated hints. Expiry is delegated to Redis TTLs.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"github.com/firstfix/starterkit/internal/app/domain/hints"
	"github.com/firstfix/starterkit/internal/app/storage"
)

const keyPrefix = "firstfix:hints:"

// HintStore is a Redis-backed storage.HintStore.
type HintStore struct {
	client *goredis.Client
}

var _ storage.HintStore = (*HintStore)(nil)

// NewHintStore creates a HintStore talking to the Redis instance at addr.
func NewHintStore(addr string) *HintStore {
	return &HintStore{client: goredis.NewClient(&goredis.Options{Addr: addr})}
}

// Ping verifies connectivity.
func (s *HintStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *HintStore) Close() error { return s.client.Close() }

func (s *HintStore) GetHints(ctx context.Context, key string) (hints.Bundle, bool, error) {
	raw, err := s.client.Get(ctx, keyPrefix+key).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return hints.Bundle{}, false, nil
		}
		return hints.Bundle{}, false, fmt.Errorf("redis get: %w", err)
	}

	var bundle hints.Bundle
	if err := json.Unmarshal([]byte(raw), &bundle); err != nil {
		return hints.Bundle{}, false, fmt.Errorf("decode cached hints: %w", err)
	}
	return bundle, true, nil
}

func (s *HintStore) PutHints(ctx context.Context, key string, bundle hints.Bundle, ttl time.Duration) error {
	raw, err := json.Marshal(bundle)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, keyPrefix+key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// PurgeExpiredHints is a no-op; Redis expires keys natively.
func (s *HintStore) PurgeExpiredHints(context.Context) (int, error) {
	return 0, nil
}
