package state

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/faqbot/internal/domain"
	"github.com/kailas-cloud/faqbot/internal/domain/conversation"
)

var errConnRefused = errors.New("dial tcp: connection refused")

func newState(userID string) *conversation.State {
	return conversation.New(userID, "billing", 1, time.Unix(1700000000, 0).UTC())
}

// --- RedisStore ---

func TestRedisStore_PutGet(t *testing.T) {
	kv := newMockKV()
	s := NewRedisStore(kv, time.Second)
	ctx := context.Background()

	st := newState("u1")
	st.Record(1, "A")
	if err := s.Put(ctx, "u1", st, 30*time.Minute); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if kv.ttls["faqbot:state:u1"] != 30*time.Minute {
		t.Errorf("ttl = %v", kv.ttls["faqbot:state:u1"])
	}

	got, err := s.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Trigger != "billing" || got.Context["1"] != "A" {
		t.Errorf("unexpected state: %+v", got)
	}
}

func TestRedisStore_GetMissing(t *testing.T) {
	s := NewRedisStore(newMockKV(), 0)
	if _, err := s.Get(context.Background(), "nobody"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRedisStore_CorruptStateReadsAsAbsent(t *testing.T) {
	kv := newMockKV()
	kv.data["faqbot:state:u1"] = []byte("{not json")
	s := NewRedisStore(kv, 0)
	if _, err := s.Get(context.Background(), "u1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRedisStore_ErrorsAreStateStoreErrors(t *testing.T) {
	kv := newMockKV()
	kv.setDown(errConnRefused)
	s := NewRedisStore(kv, 0)
	ctx := context.Background()

	checks := map[string]error{
		"put":    s.Put(ctx, "u1", newState("u1"), time.Minute),
		"delete": s.Delete(ctx, "u1"),
		"ping":   s.Ping(ctx),
	}
	_, checks["get"] = s.Get(ctx, "u1")

	for op, err := range checks {
		if !errors.Is(err, domain.ErrStateStore) {
			t.Errorf("%s: expected ErrStateStore, got %v", op, err)
		}
		if !errors.Is(err, errConnRefused) {
			t.Errorf("%s: cause not preserved: %v", op, err)
		}
	}
}

func TestRedisStore_Update(t *testing.T) {
	s := NewRedisStore(newMockKV(), 0)
	ctx := context.Background()

	if err := s.Update(ctx, "u1", func(*conversation.State) {}, time.Minute); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("update of absent state: expected ErrNotFound, got %v", err)
	}

	_ = s.Put(ctx, "u1", newState("u1"), time.Minute)
	err := s.Update(ctx, "u1", func(st *conversation.State) { st.Advance(3, time.Now()) }, time.Minute)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, _ := s.Get(ctx, "u1")
	if got.CurrentStep != 3 {
		t.Errorf("CurrentStep = %d, want 3", got.CurrentStep)
	}
}

// --- MemoryStore ---

func TestMemoryStore_CopiesState(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	ctx := context.Background()

	st := newState("u1")
	_ = s.Put(ctx, "u1", st, time.Minute)
	st.Record(1, "mutated after put")

	got, _ := s.Get(ctx, "u1")
	if _, ok := got.Context["1"]; ok {
		t.Error("store shares state with caller")
	}
}

func TestMemoryStore_TTLExpiry(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	ctx := context.Background()

	_ = s.Put(ctx, "u1", newState("u1"), 20*time.Millisecond)
	if _, err := s.Get(ctx, "u1"); err != nil {
		t.Fatalf("fresh entry missing: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	if _, err := s.Get(ctx, "u1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expired entry still present: %v", err)
	}
}

func TestMemoryStore_DeleteAbsentIsNoop(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	if err := s.Delete(context.Background(), "nobody"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

// --- FallbackStore ---

func newFallback(kv *mockKV) (*FallbackStore, *MemoryStore) {
	local := NewMemoryStore(time.Minute)
	return NewFallbackStore(NewRedisStore(kv, 0), local, nil, zap.NewNop()), local
}

func TestFallbackStore_HealthyUsesRemote(t *testing.T) {
	kv := newMockKV()
	s, local := newFallback(kv)
	ctx := context.Background()

	if err := s.Put(ctx, "u1", newState("u1"), time.Minute); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, ok := kv.data["faqbot:state:u1"]; !ok {
		t.Error("state not written to remote")
	}
	if local.Len() != 0 {
		t.Error("state written to memory while healthy")
	}
	if s.Degraded() {
		t.Error("should not be degraded")
	}
}

func TestFallbackStore_WriteFailureSurfacesThenDegrades(t *testing.T) {
	kv := newMockKV()
	kv.setDown(errConnRefused)
	s, _ := newFallback(kv)
	ctx := context.Background()

	err := s.Put(ctx, "u1", newState("u1"), time.Minute)
	if !errors.Is(err, domain.ErrStateStore) {
		t.Fatalf("first failed write must surface ErrStateStore, got %v", err)
	}
	if !s.Degraded() {
		t.Fatal("expected degraded mode after remote failure")
	}

	if err := s.Put(ctx, "u1", newState("u1"), time.Minute); err != nil {
		t.Fatalf("degraded write should succeed in memory: %v", err)
	}
	if _, err := s.Get(ctx, "u1"); err != nil {
		t.Fatalf("degraded read: %v", err)
	}
}

func TestFallbackStore_ReadFailureDegrades(t *testing.T) {
	kv := newMockKV()
	kv.setDown(errConnRefused)
	s, _ := newFallback(kv)

	if _, err := s.Get(context.Background(), "u1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("degraded read of unknown user: expected ErrNotFound, got %v", err)
	}
	if !s.Degraded() {
		t.Error("expected degraded mode after read failure")
	}
}

func TestFallbackStore_ProbeRestoresRemote(t *testing.T) {
	kv := newMockKV()
	kv.setDown(errConnRefused)
	s, local := newFallback(kv)
	ctx := context.Background()

	_ = s.Put(ctx, "u1", newState("u1"), time.Minute) // trips degraded mode
	_ = s.Put(ctx, "u1", newState("u1"), time.Minute) // lands in memory

	if err := s.Probe(ctx); err == nil {
		t.Fatal("probe should fail while remote is down")
	}
	if !s.Degraded() {
		t.Fatal("degraded mode must be sticky until a successful probe")
	}

	kv.setDown(nil)
	if err := s.Probe(ctx); err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if s.Degraded() {
		t.Fatal("expected healthy mode after successful probe")
	}
	if local.Len() != 0 {
		t.Error("memory entries should be drained after recovery")
	}
	if _, ok := kv.data["faqbot:state:u1"]; !ok {
		t.Error("in-memory dialog not restored to remote")
	}
}

func TestFallbackStore_ProbeClearsDialogsEndedWhileDegraded(t *testing.T) {
	kv := newMockKV()
	s, _ := newFallback(kv)
	ctx := context.Background()

	st := newState("u1")
	st.Advance(2, time.Unix(1700000060, 0).UTC())
	if err := s.Put(ctx, "u1", st, time.Minute); err != nil {
		t.Fatalf("Put: %v", err)
	}

	kv.setDown(errConnRefused)
	if _, err := s.Get(ctx, "u1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("degraded read: expected ErrNotFound, got %v", err)
	}
	if err := s.Delete(ctx, "u1"); err != nil {
		t.Fatalf("degraded delete: %v", err)
	}

	kv.setDown(nil)
	if err := s.Probe(ctx); err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if got, err := s.Get(ctx, "u1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("dialog ended while degraded came back after recovery: %+v, err = %v", got, err)
	}
}

func TestFallbackStore_ProbeStaysDegradedWhenClearFails(t *testing.T) {
	kv := newMockKV()
	kv.setDown(errConnRefused)
	s, _ := newFallback(kv)
	ctx := context.Background()

	_ = s.Delete(ctx, "u1") // trips degraded mode
	_ = s.Delete(ctx, "u1") // served from memory

	kv.mu.Lock()
	kv.pingErr = nil
	kv.mu.Unlock()

	if err := s.Probe(ctx); !errors.Is(err, errConnRefused) {
		t.Fatalf("expected the delete error, got %v", err)
	}
	if !s.Degraded() {
		t.Error("store left degraded mode with stale remote state")
	}
}

func TestFallbackStore_ProbeWhenHealthyIsNoop(t *testing.T) {
	s, _ := newFallback(newMockKV())
	if err := s.Probe(context.Background()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
