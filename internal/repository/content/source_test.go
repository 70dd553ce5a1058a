package content

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kailas-cloud/faqbot/internal/domain"
)

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestReadTable_CSV(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "flows.csv", "\xef\xbb\xbfid,trigger,step,prompt,options,next_steps\n"+
		"1,billing,1,Which option?,\"A|B\",\"2|3\"\n"+
		",,,,,\n"+
		"2,billing,2,Done A,,\n")

	rows, err := NewFileSource(dir, zap.NewNop()).ReadTable(context.Background(), "flows")
	if err != nil {
		t.Fatalf("ReadTable: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows (blank row dropped), got %d", len(rows))
	}
	if rows[0]["id"] != "1" {
		t.Errorf("BOM not stripped from header: %v", rows[0])
	}
	if rows[0]["options"] != "A|B" || rows[1]["prompt"] != "Done A" {
		t.Errorf("unexpected rows: %v", rows)
	}
}

func TestReadTable_CSVSkipsMalformedRecord(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "flows.csv", "id,trigger,step,prompt\n"+
		"1,billing,1,Which plan?\n"+
		"2,billing,2,He said \"hi\" then left\n"+
		"3,billing,3,Done\n")

	core, logs := observer.New(zap.WarnLevel)
	rows, err := NewFileSource(dir, zap.New(core)).ReadTable(context.Background(), "flows")
	if err != nil {
		t.Fatalf("ReadTable: %v", err)
	}
	if len(rows) != 2 || rows[0]["id"] != "1" || rows[1]["id"] != "3" {
		t.Fatalf("expected rows 1 and 3 around the skipped record, got %v", rows)
	}
	skipped := logs.FilterMessage("Skipping malformed CSV record").All()
	if len(skipped) != 1 {
		t.Fatalf("expected one skipped-record warning, got %d", len(skipped))
	}
	if skipped[0].ContextMap()["table"] != "flows" {
		t.Errorf("warning fields = %v", skipped[0].ContextMap())
	}
}

func TestReadTable_CSVBrokenHeaderFails(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "t.csv", "id,\"prompt\n1,x\n")

	if _, err := NewFileSource(dir, zap.NewNop()).ReadTable(context.Background(), "t"); !errors.Is(err, domain.ErrContentSource) {
		t.Errorf("expected ErrContentSource, got %v", err)
	}
}

func TestReadTable_YAML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "knowledge.yaml", `
- id: k1
  question: how to reset password
  keywords: [reset, password]
  priority: 2
  status: active
- {}
`)

	rows, err := NewFileSource(dir, zap.NewNop()).ReadTable(context.Background(), "knowledge")
	if err != nil {
		t.Fatalf("ReadTable: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	r := rows[0]
	if r["keywords"] != "reset\npassword" || r["priority"] != "2" {
		t.Errorf("unexpected row: %v", r)
	}
}

func TestReadTable_PrefersCSV(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "t.csv", "k\ncsv\n")
	writeFile(t, dir, "t.yaml", "- k: yaml\n")

	rows, err := NewFileSource(dir, zap.NewNop()).ReadTable(context.Background(), "t")
	if err != nil {
		t.Fatalf("ReadTable: %v", err)
	}
	if rows[0]["k"] != "csv" {
		t.Errorf("expected csv table, got %v", rows)
	}
}

func TestReadTable_Errors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "broken.yaml", "- [unclosed")
	s := NewFileSource(dir, zap.NewNop())

	for _, name := range []string{"missing", "broken", "../escape", ""} {
		if _, err := s.ReadTable(context.Background(), name); !errors.Is(err, domain.ErrContentSource) {
			t.Errorf("%q: expected ErrContentSource, got %v", name, err)
		}
	}
}

func TestReadTable_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewFileSource(t.TempDir(), zap.NewNop()).ReadTable(ctx, "t"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
