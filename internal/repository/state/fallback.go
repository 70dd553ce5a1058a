package state

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/faqbot/internal/domain"
	"github.com/kailas-cloud/faqbot/internal/domain/conversation"
)

// backend is the contract shared by the remote and in-process stores.
type backend interface {
	Put(ctx context.Context, userID string, st *conversation.State, ttl time.Duration) error
	Get(ctx context.Context, userID string) (*conversation.State, error)
	Delete(ctx context.Context, userID string) error
	Ping(ctx context.Context) error
}

// FallbackStore serves state from a remote store and switches to process
// memory once the remote store fails. The write that trips the switch still
// returns its error so the caller can ask the user to retry. Degraded mode is
// sticky until Probe reaches the remote store again.
type FallbackStore struct {
	remote   backend
	local    *MemoryStore
	degraded atomic.Bool
	gauge    prometheus.Gauge
	logger   *zap.Logger

	mu      sync.Mutex
	touched map[string]struct{} // users served from memory while degraded
}

// NewFallbackStore wraps remote with an in-process fallback. gauge may be nil.
func NewFallbackStore(remote backend, local *MemoryStore, gauge prometheus.Gauge, logger *zap.Logger) *FallbackStore {
	return &FallbackStore{
		remote:  remote,
		local:   local,
		gauge:   gauge,
		logger:  logger,
		touched: map[string]struct{}{},
	}
}

// Degraded reports whether state is currently kept in process memory.
func (s *FallbackStore) Degraded() bool { return s.degraded.Load() }

// Put stores st for userID.
func (s *FallbackStore) Put(ctx context.Context, userID string, st *conversation.State, ttl time.Duration) error {
	if s.Degraded() {
		s.touch(userID)
		return s.local.Put(ctx, userID, st, ttl)
	}
	if err := s.remote.Put(ctx, userID, st, ttl); err != nil {
		s.degrade("put", err)
		return err
	}
	return nil
}

// Get returns the state for userID or domain.ErrNotFound. A remote read
// failure degrades the store and answers from memory.
func (s *FallbackStore) Get(ctx context.Context, userID string) (*conversation.State, error) {
	if s.Degraded() {
		s.touch(userID)
		return s.local.Get(ctx, userID)
	}
	st, err := s.remote.Get(ctx, userID)
	if err == nil || errors.Is(err, domain.ErrNotFound) {
		return st, err
	}
	s.degrade("get", err)
	if s.Degraded() {
		s.touch(userID)
	}
	return s.local.Get(ctx, userID)
}

// Delete removes the state for userID.
func (s *FallbackStore) Delete(ctx context.Context, userID string) error {
	if s.Degraded() {
		s.touch(userID)
		return s.local.Delete(ctx, userID)
	}
	if err := s.remote.Delete(ctx, userID); err != nil {
		s.degrade("delete", err)
		return err
	}
	return nil
}

// Update reads, mutates and writes back the state. It is not atomic.
func (s *FallbackStore) Update(ctx context.Context, userID string, fn func(*conversation.State), ttl time.Duration) error {
	st, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}
	fn(st)
	return s.Put(ctx, userID, st, ttl)
}

// Ping reports the remote store's health.
func (s *FallbackStore) Ping(ctx context.Context) error {
	return s.remote.Ping(ctx)
}

// Probe pings the remote store while degraded and, on success, reconciles it
// with memory and leaves degraded mode. Remote state of users served from
// memory who no longer have a dialog is deleted; in-memory dialogs are copied
// back. The store stays degraded if the ping or a stale-state delete fails.
func (s *FallbackStore) Probe(ctx context.Context) error {
	if !s.Degraded() {
		return nil
	}
	if err := s.remote.Ping(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cleared := 0
	for userID := range s.touched {
		if s.local.has(userID) {
			continue
		}
		if err := s.remote.Delete(ctx, userID); err != nil {
			return err
		}
		delete(s.touched, userID)
		cleared++
	}

	moved := 0
	for _, d := range s.local.drain() {
		if err := s.remote.Put(ctx, d.userID, d.state, d.ttl); err != nil {
			s.logger.Warn("Failed to restore state to remote store",
				zap.String("user_id", d.userID), zap.Error(err))
			continue
		}
		moved++
	}

	clear(s.touched)
	s.degraded.Store(false)
	s.setGauge(0)
	s.logger.Info("State store recovered, leaving in-memory mode",
		zap.Int("restored", moved), zap.Int("cleared", cleared))
	return nil
}

func (s *FallbackStore) touch(userID string) {
	s.mu.Lock()
	s.touched[userID] = struct{}{}
	s.mu.Unlock()
}

func (s *FallbackStore) degrade(op string, err error) {
	if !errors.Is(err, domain.ErrStateStore) {
		return
	}
	if s.degraded.CompareAndSwap(false, true) {
		s.setGauge(1)
		s.logger.Warn("Remote state store unavailable, falling back to process memory; dialogs will not survive a restart",
			zap.String("op", op), zap.Error(err))
	}
}

func (s *FallbackStore) setGauge(v float64) {
	if s.gauge != nil {
		s.gauge.Set(v)
	}
}
