package state

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/kailas-cloud/faqbot/internal/domain"
	"github.com/kailas-cloud/faqbot/internal/domain/conversation"
)

// MemoryStore keeps conversation state in process memory. State does not
// survive a restart.
type MemoryStore struct {
	cache *cache.Cache
}

// NewMemoryStore creates an in-process store that purges expired entries every cleanup interval.
func NewMemoryStore(cleanup time.Duration) *MemoryStore {
	return &MemoryStore{cache: cache.New(cache.NoExpiration, cleanup)}
}

// Put stores a copy of st for userID.
func (s *MemoryStore) Put(_ context.Context, userID string, st *conversation.State, ttl time.Duration) error {
	s.cache.Set(userID, st.Clone(), expiration(ttl))
	return nil
}

// Get returns a copy of the state for userID or domain.ErrNotFound.
func (s *MemoryStore) Get(_ context.Context, userID string) (*conversation.State, error) {
	x, found := s.cache.Get(userID)
	if !found {
		return nil, domain.ErrNotFound
	}
	return x.(*conversation.State).Clone(), nil
}

// Delete removes the state for userID.
func (s *MemoryStore) Delete(_ context.Context, userID string) error {
	s.cache.Delete(userID)
	return nil
}

// Update reads, mutates and writes back the state.
func (s *MemoryStore) Update(ctx context.Context, userID string, fn func(*conversation.State), ttl time.Duration) error {
	st, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}
	fn(st)
	return s.Put(ctx, userID, st, ttl)
}

// Ping always succeeds.
func (s *MemoryStore) Ping(context.Context) error { return nil }

// Len reports the number of unexpired entries.
func (s *MemoryStore) Len() int { return s.cache.ItemCount() }

func (s *MemoryStore) has(userID string) bool {
	_, found := s.cache.Get(userID)
	return found
}

type drained struct {
	userID string
	state  *conversation.State
	ttl    time.Duration
}

// drain removes and returns every unexpired entry with its remaining TTL.
func (s *MemoryStore) drain() []drained {
	items := s.cache.Items()
	out := make([]drained, 0, len(items))
	now := time.Now().UnixNano()
	for userID, item := range items {
		ttl := time.Duration(0)
		if item.Expiration > 0 {
			ttl = time.Duration(item.Expiration - now)
			if ttl <= 0 {
				continue
			}
		}
		out = append(out, drained{userID: userID, state: item.Object.(*conversation.State), ttl: ttl})
	}
	s.cache.Flush()
	return out
}

func expiration(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return cache.NoExpiration
	}
	return ttl
}
