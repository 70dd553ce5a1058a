package catalog

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultSchedule reloads every catalog every five minutes.
const DefaultSchedule = "@every 5m"

// Scheduler reloads catalogs on a cron schedule and on content changes.
// Reloads never overlap.
type Scheduler struct {
	cron      *cron.Cron
	schedule  string
	timeout   time.Duration
	reloaders []Reloader
	mu        sync.Mutex
	logger    *zap.Logger
}

// NewScheduler creates a scheduler. An empty schedule uses DefaultSchedule;
// timeout bounds each reload round.
func NewScheduler(schedule string, timeout time.Duration, logger *zap.Logger, reloaders ...Reloader) *Scheduler {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	return &Scheduler{
		cron:      cron.New(cron.WithLogger(cronLogger{logger.Sugar()})),
		schedule:  schedule,
		timeout:   timeout,
		reloaders: reloaders,
		logger:    logger,
	}
}

// Start registers the reload job and starts the cron runner.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, func() {
		_ = s.ReloadAll(context.Background())
	}); err != nil {
		return fmt.Errorf("schedule catalog reload %q: %w", s.schedule, err)
	}
	s.cron.Start()
	s.logger.Info("Catalog reload scheduled", zap.String("schedule", s.schedule))
	return nil
}

// Stop stops the runner and waits for a running reload to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

// ReloadAll reloads every catalog. Each failure is independent; the joined error
// is returned.
func (s *Scheduler) ReloadAll(ctx context.Context) error {
	return s.reload(ctx, s.reloaders)
}

// OnTablesChanged reloads the catalogs reading any of the changed tables.
// Its signature matches the content watcher callback.
func (s *Scheduler) OnTablesChanged(tables []string) {
	var due []Reloader
	for _, r := range s.reloaders {
		if slices.Contains(tables, r.Table()) {
			due = append(due, r)
		}
	}
	if len(due) == 0 {
		return
	}
	s.logger.Info("Content changed, reloading catalogs", zap.Strings("tables", tables))
	_ = s.reload(context.Background(), due)
}

func (s *Scheduler) reload(ctx context.Context, reloaders []Reloader) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	var errs []error
	for _, r := range reloaders {
		if err := r.Reload(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Name(), err))
		}
	}
	return errors.Join(errs...)
}

type cronLogger struct {
	l *zap.SugaredLogger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Errorw(msg, append(keysAndValues, "error", err)...)
}
