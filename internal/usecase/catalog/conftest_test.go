package catalog

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/kailas-cloud/faqbot/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.RegisterResolutionMetrics()
	os.Exit(m.Run())
}

var errSourceDown = errors.New("source down")

type fakeSource struct {
	mu     sync.Mutex
	tables map[string][]map[string]string
	err    error
	reads  map[string]int
}

func newFakeSource() *fakeSource {
	return &fakeSource{tables: map[string][]map[string]string{}, reads: map[string]int{}}
}

func (f *fakeSource) set(table string, rows ...map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tables[table] = rows
}

func (f *fakeSource) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeSource) ReadTable(_ context.Context, table string) ([]map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads[table]++
	if f.err != nil {
		return nil, f.err
	}
	return f.tables[table], nil
}

func (f *fakeSource) readCount(table string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads[table]
}

func stepRow(trigger, step, prompt, options, next string) map[string]string {
	return map[string]string{
		"trigger":    trigger,
		"step":       step,
		"prompt":     prompt,
		"options":    options,
		"next_steps": next,
	}
}

func entryRow(id, question, status string) map[string]string {
	return map[string]string{
		"id":       id,
		"question": question,
		"answer":   "answer " + id,
		"status":   status,
	}
}
