package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/faqbot/internal/db"
	"github.com/kailas-cloud/faqbot/internal/domain"
	"github.com/kailas-cloud/faqbot/internal/domain/conversation"
)

var keyPrefix = domain.KeyPrefix + "state:"

// kvStore is the consumer interface for the remote state store (ISP).
type kvStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Ping(ctx context.Context) error
}

// RedisStore keeps JSON-encoded conversation state in Redis with a per-key TTL.
type RedisStore struct {
	kv        kvStore
	opTimeout time.Duration
}

// NewRedisStore creates a Redis-backed state store. A non-positive opTimeout disables the per-call deadline.
func NewRedisStore(kv kvStore, opTimeout time.Duration) *RedisStore {
	return &RedisStore{kv: kv, opTimeout: opTimeout}
}

// Put stores st for userID, replacing any existing state.
func (s *RedisStore) Put(ctx context.Context, userID string, st *conversation.State, ttl time.Duration) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.kv.SetWithTTL(ctx, key(userID), data, ttl); err != nil {
		return domain.NewStateStoreError("put", err)
	}
	return nil
}

// Get returns the state for userID or domain.ErrNotFound.
func (s *RedisStore) Get(ctx context.Context, userID string) (*conversation.State, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	data, err := s.kv.Get(ctx, key(userID))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.NewStateStoreError("get", err)
	}

	var st conversation.State
	if err := json.Unmarshal(data, &st); err != nil {
		// Unreadable state is treated as absent so the user is not stuck in a dialog.
		return nil, domain.ErrNotFound
	}
	return &st, nil
}

// Delete removes the state for userID. Deleting absent state is not an error.
func (s *RedisStore) Delete(ctx context.Context, userID string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.kv.Del(ctx, key(userID)); err != nil {
		return domain.NewStateStoreError("delete", err)
	}
	return nil
}

// Update reads, mutates and writes back the state. It is not atomic.
func (s *RedisStore) Update(ctx context.Context, userID string, fn func(*conversation.State), ttl time.Duration) error {
	st, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}
	fn(st)
	return s.Put(ctx, userID, st, ttl)
}

// Ping checks connectivity to Redis.
func (s *RedisStore) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.kv.Ping(ctx); err != nil {
		return domain.NewStateStoreError("ping", err)
	}
	return nil
}

func (s *RedisStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.opTimeout)
}

func key(userID string) string {
	return keyPrefix + userID
}
