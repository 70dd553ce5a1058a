package state

import (
	"context"
	"sync"
	"time"

	"github.com/kailas-cloud/faqbot/internal/db"
)

// mockKV is an in-memory kvStore with injectable failures.
type mockKV struct {
	mu      sync.Mutex
	data    map[string][]byte
	ttls    map[string]time.Duration
	failErr error
	pingErr error
}

func newMockKV() *mockKV {
	return &mockKV{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *mockKV) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return nil, m.failErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (m *mockKV) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	m.data[key] = value
	m.ttls[key] = ttl
	return nil
}

func (m *mockKV) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *mockKV) Ping(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pingErr
}

func (m *mockKV) setDown(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failErr = err
	m.pingErr = err
}
