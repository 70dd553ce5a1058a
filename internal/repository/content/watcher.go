package content

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 500 * time.Millisecond

// Watcher reports edits to table files in a directory. Bursts of events
// (editors often write, rename and chmod in quick succession) are collapsed
// into one notification per debounce window.
type Watcher struct {
	dir      string
	debounce time.Duration
	onChange func(tables []string)
	logger   *zap.Logger

	mu      sync.Mutex
	pending map[string]struct{}
	timer   *time.Timer
}

// NewWatcher creates a watcher for dir. onChange receives the sorted names of
// the tables whose files changed.
func NewWatcher(dir string, debounce time.Duration, onChange func(tables []string), logger *zap.Logger) *Watcher {
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	return &Watcher{
		dir:      dir,
		debounce: debounce,
		onChange: onChange,
		logger:   logger,
		pending:  make(map[string]struct{}),
	}
}

// Run watches until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	w.logger.Info("Content watcher started", zap.String("dir", w.dir), zap.Duration("debounce", w.debounce))

	for {
		select {
		case <-ctx.Done():
			w.stopTimer()
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("Content watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) && !ev.Has(fsnotify.Remove) {
		return
	}
	table, ok := tableName(ev.Name)
	if !ok {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending[table] = struct{}{}
	if w.timer == nil {
		w.timer = time.AfterFunc(w.debounce, w.flush)
	} else {
		w.timer.Reset(w.debounce)
	}
}

func (w *Watcher) flush() {
	w.mu.Lock()
	tables := make([]string, 0, len(w.pending))
	for t := range w.pending {
		tables = append(tables, t)
	}
	clear(w.pending)
	w.timer = nil
	w.mu.Unlock()

	if len(tables) == 0 {
		return
	}
	slices.Sort(tables)
	w.logger.Debug("Content changed", zap.Strings("tables", tables))
	w.onChange(tables)
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}

// tableName maps a file path to its table name when the extension is a table format.
func tableName(path string) (string, bool) {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	if !slices.Contains(tableExtensions, ext) || strings.HasPrefix(base, ".") {
		return "", false
	}
	return strings.TrimSuffix(base, ext), true
}
