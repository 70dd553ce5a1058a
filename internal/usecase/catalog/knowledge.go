package catalog

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/kailas-cloud/faqbot/internal/domain/knowledge"
	"github.com/kailas-cloud/faqbot/internal/metrics"
)

const knowledgeName = "knowledge"

type knowledgeSnapshot struct {
	active  []knowledge.Entry
	byID    map[string]knowledge.Entry
	version uint64
}

// KnowledgeCatalog is the read model of curated answers.
type KnowledgeCatalog struct {
	source Source
	table  string
	snap   atomic.Pointer[knowledgeSnapshot]
	hooks  hooks
	logger *zap.Logger
}

// NewKnowledgeCatalog creates an empty catalog backed by the given table.
func NewKnowledgeCatalog(source Source, table string, logger *zap.Logger) *KnowledgeCatalog {
	return &KnowledgeCatalog{source: source, table: table, logger: logger}
}

// Name identifies the catalog in logs and metrics.
func (c *KnowledgeCatalog) Name() string { return knowledgeName }

// Table returns the content-source table name.
func (c *KnowledgeCatalog) Table() string { return c.table }

// Reload replaces the entries from the content source. Malformed rows and
// duplicate ids are skipped; a source failure keeps the previous entries.
func (c *KnowledgeCatalog) Reload(ctx context.Context) error {
	rows, err := c.source.ReadTable(ctx, c.table)
	if err != nil {
		metrics.CatalogReloadTotal.WithLabelValues(knowledgeName, "error").Inc()
		c.logger.Error("Knowledge catalog reload failed, keeping previous entries",
			zap.String("table", c.table), zap.Error(err))
		return fmt.Errorf("reload knowledge catalog: %w", err)
	}

	next := &knowledgeSnapshot{byID: make(map[string]knowledge.Entry, len(rows))}
	if prev := c.snap.Load(); prev != nil {
		next.version = prev.version
	}
	next.version++

	skipped := 0
	for i, row := range rows {
		e, err := knowledge.ParseRow(i+1, row)
		if err != nil {
			skipped++
			metrics.CatalogRowsSkippedTotal.WithLabelValues(knowledgeName).Inc()
			c.logger.Warn("Skipping knowledge row", zap.String("table", c.table), zap.Error(err))
			continue
		}
		if _, dup := next.byID[e.ID()]; dup {
			skipped++
			metrics.CatalogRowsSkippedTotal.WithLabelValues(knowledgeName).Inc()
			c.logger.Warn("Skipping duplicate knowledge id",
				zap.String("table", c.table), zap.Int("row", i+1), zap.String("id", e.ID()))
			continue
		}
		next.byID[e.ID()] = e
		if e.Active() {
			next.active = append(next.active, e)
		}
	}

	c.snap.Store(next)
	metrics.CatalogRows.WithLabelValues(knowledgeName).Set(float64(len(next.byID)))
	metrics.CatalogReloadTotal.WithLabelValues(knowledgeName, "success").Inc()
	c.logger.Info("Knowledge catalog reloaded",
		zap.Int("entries", len(next.byID)),
		zap.Int("active", len(next.active)),
		zap.Int("skipped", skipped),
		zap.Uint64("version", next.version),
	)

	c.hooks.fire()
	return nil
}

// OnReload registers fn to run after every successful reload.
func (c *KnowledgeCatalog) OnReload(fn func()) { c.hooks.add(fn) }

// Active returns the entries that participate in matching, in catalog order.
// The slice is shared and must not be modified.
func (c *KnowledgeCatalog) Active() []knowledge.Entry {
	if s := c.snap.Load(); s != nil {
		return s.active
	}
	return nil
}

// Snapshot returns the active entries together with their version, read from
// one snapshot.
func (c *KnowledgeCatalog) Snapshot() ([]knowledge.Entry, uint64) {
	if s := c.snap.Load(); s != nil {
		return s.active, s.version
	}
	return nil, 0
}

// ByID returns an entry regardless of status.
func (c *KnowledgeCatalog) ByID(id string) (knowledge.Entry, bool) {
	if s := c.snap.Load(); s != nil {
		e, ok := s.byID[id]
		return e, ok
	}
	return knowledge.Entry{}, false
}

// Version increases on every successful reload; zero means never loaded.
func (c *KnowledgeCatalog) Version() uint64 {
	if s := c.snap.Load(); s != nil {
		return s.version
	}
	return 0
}
