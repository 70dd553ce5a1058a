package catalog

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
)

func TestDialogCatalog_Reload(t *testing.T) {
	src := newFakeSource()
	src.set("dialog",
		stepRow("billing", "1", "Which option?", "A|B", "2|3"),
		stepRow("billing", "2", "You chose A", "", ""),
		stepRow("billing", "x", "broken", "", ""),
		stepRow("refund", "2", "orphan", "", ""),
	)
	c := NewDialogCatalog(src, "dialog", zap.NewNop())

	if err := c.Reload(context.Background()); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	if c.Len() != 3 {
		t.Errorf("Len() = %d, want 3", c.Len())
	}
	s, ok := c.Lookup("Billing", 1)
	if !ok || s.Prompt() != "Which option?" {
		t.Fatalf("Lookup(billing,1) = %v %v", s, ok)
	}
	triggers := c.EntryPointTriggers()
	if len(triggers) != 1 || triggers[0] != "billing" {
		t.Errorf("EntryPointTriggers() = %v", triggers)
	}
}

func TestDialogCatalog_EmptyBeforeFirstReload(t *testing.T) {
	c := NewDialogCatalog(newFakeSource(), "dialog", zap.NewNop())

	if _, ok := c.Lookup("billing", 1); ok {
		t.Error("expected miss on empty catalog")
	}
	if c.Len() != 0 || len(c.EntryPoints()) != 0 {
		t.Error("expected empty catalog")
	}
}

func TestDialogCatalog_SourceErrorKeepsPreviousTable(t *testing.T) {
	src := newFakeSource()
	src.set("dialog", stepRow("billing", "1", "Which option?", "", ""))
	c := NewDialogCatalog(src, "dialog", zap.NewNop())
	if err := c.Reload(context.Background()); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	src.fail(errSourceDown)
	if err := c.Reload(context.Background()); !errors.Is(err, errSourceDown) {
		t.Fatalf("expected source error, got %v", err)
	}

	if _, ok := c.Lookup("billing", 1); !ok {
		t.Error("previous table should stay in service")
	}
}

func TestDialogCatalog_OnReloadFiresOnlyOnSuccess(t *testing.T) {
	src := newFakeSource()
	c := NewDialogCatalog(src, "dialog", zap.NewNop())
	calls := 0
	c.OnReload(func() { calls++ })

	_ = c.Reload(context.Background())
	src.fail(errSourceDown)
	_ = c.Reload(context.Background())

	if calls != 1 {
		t.Errorf("OnReload calls = %d, want 1", calls)
	}
}

func TestKnowledgeCatalog_Reload(t *testing.T) {
	src := newFakeSource()
	src.set("knowledge",
		entryRow("k1", "how to reset password", "active"),
		entryRow("k2", "old question", "inactive"),
		entryRow("k1", "duplicate id", "active"),
		entryRow("", "missing id", "active"),
		entryRow("k3", "bad status", "archived"),
	)
	c := NewKnowledgeCatalog(src, "knowledge", zap.NewNop())

	if c.Version() != 0 {
		t.Fatalf("Version() before load = %d", c.Version())
	}
	if err := c.Reload(context.Background()); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	active := c.Active()
	if len(active) != 1 || active[0].ID() != "k1" {
		t.Fatalf("Active() = %v", active)
	}
	if e, ok := c.ByID("k1"); !ok || e.Question() != "how to reset password" {
		t.Errorf("first row must win for duplicate id, got %v", e.Question())
	}
	if _, ok := c.ByID("k2"); !ok {
		t.Error("inactive entries are still addressable by id")
	}
	if c.Version() != 1 {
		t.Errorf("Version() = %d, want 1", c.Version())
	}
	if entries, version := c.Snapshot(); len(entries) != 1 || version != 1 {
		t.Errorf("Snapshot() = %d entries, version %d", len(entries), version)
	}
}

func TestKnowledgeCatalog_VersionAndHooks(t *testing.T) {
	src := newFakeSource()
	src.set("knowledge", entryRow("k1", "q", "active"))
	c := NewKnowledgeCatalog(src, "knowledge", zap.NewNop())
	invalidated := 0
	c.OnReload(func() { invalidated++ })

	_ = c.Reload(context.Background())
	_ = c.Reload(context.Background())
	src.fail(errSourceDown)
	_ = c.Reload(context.Background())

	if c.Version() != 2 {
		t.Errorf("Version() = %d, want 2", c.Version())
	}
	if invalidated != 2 {
		t.Errorf("hook calls = %d, want 2", invalidated)
	}
	if len(c.Active()) != 1 {
		t.Error("failed reload must keep entries")
	}
}
