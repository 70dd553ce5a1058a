package catalog

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/kailas-cloud/faqbot/internal/domain/flow"
	"github.com/kailas-cloud/faqbot/internal/metrics"
)

const dialogName = "dialog"

// DialogCatalog is the read model of flow steps. Reload swaps the whole table,
// so readers see either the previous table or the new one.
type DialogCatalog struct {
	source Source
	table  string
	snap   atomic.Pointer[flow.Table]
	hooks  hooks
	logger *zap.Logger
}

// NewDialogCatalog creates an empty catalog backed by the given table.
func NewDialogCatalog(source Source, table string, logger *zap.Logger) *DialogCatalog {
	return &DialogCatalog{source: source, table: table, logger: logger}
}

// Name identifies the catalog in logs and metrics.
func (c *DialogCatalog) Name() string { return dialogName }

// Table returns the content-source table name.
func (c *DialogCatalog) Table() string { return c.table }

// Reload replaces the table from the content source. Malformed rows are skipped;
// a source failure keeps the previous table and is returned.
func (c *DialogCatalog) Reload(ctx context.Context) error {
	rows, err := c.source.ReadTable(ctx, c.table)
	if err != nil {
		metrics.CatalogReloadTotal.WithLabelValues(dialogName, "error").Inc()
		c.logger.Error("Dialog catalog reload failed, keeping previous table",
			zap.String("table", c.table), zap.Error(err))
		return fmt.Errorf("reload dialog catalog: %w", err)
	}

	steps := make([]flow.Step, 0, len(rows))
	for i, row := range rows {
		s, err := flow.ParseRow(i+1, row)
		if err != nil {
			metrics.CatalogRowsSkippedTotal.WithLabelValues(dialogName).Inc()
			c.logger.Warn("Skipping dialog row", zap.String("table", c.table), zap.Error(err))
			continue
		}
		steps = append(steps, s)
	}

	table, problems := flow.NewTable(steps)
	for _, p := range problems {
		c.logger.Warn("Dialog table problem", zap.String("table", c.table), zap.Error(p))
	}

	c.snap.Store(table)
	metrics.CatalogRows.WithLabelValues(dialogName).Set(float64(table.Len()))
	metrics.CatalogReloadTotal.WithLabelValues(dialogName, "success").Inc()
	c.logger.Info("Dialog catalog reloaded",
		zap.Int("steps", table.Len()),
		zap.Int("flows", len(table.EntryPoints())),
		zap.Int("skipped", len(rows)-len(steps)),
	)

	c.hooks.fire()
	return nil
}

// OnReload registers fn to run after every successful reload.
func (c *DialogCatalog) OnReload(fn func()) { c.hooks.add(fn) }

// Lookup returns the step of a flow.
func (c *DialogCatalog) Lookup(trigger string, step int) (flow.Step, bool) {
	return c.snap.Load().Lookup(trigger, step)
}

// EntryPoints returns the step-1 step of every flow.
func (c *DialogCatalog) EntryPoints() []flow.Step {
	return c.snap.Load().EntryPoints()
}

// EntryPointTriggers returns the triggers that have a step 1.
func (c *DialogCatalog) EntryPointTriggers() []string {
	return c.snap.Load().Triggers()
}

// Len returns the number of loaded steps.
func (c *DialogCatalog) Len() int {
	return c.snap.Load().Len()
}
