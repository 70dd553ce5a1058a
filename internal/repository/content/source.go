// Package content reads catalog tables from a directory of CSV or YAML files
// and watches that directory for edits.
package content

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/faqbot/internal/domain"
)

// Extensions tried, in order, when resolving a table name to a file.
var tableExtensions = []string{".csv", ".yaml", ".yml"}

// FileSource serves tables from files named <dir>/<table>.<ext>.
type FileSource struct {
	dir    string
	logger *zap.Logger
}

// NewFileSource creates a source rooted at dir.
func NewFileSource(dir string, logger *zap.Logger) *FileSource {
	return &FileSource{dir: dir, logger: logger}
}

// Dir returns the directory tables are read from.
func (s *FileSource) Dir() string { return s.dir }

// ReadTable returns the rows of table in file order. Each row maps a column
// name to its cell text. Fully blank rows are dropped. A malformed CSV record
// is logged and skipped; the rest of the table is still returned.
func (s *FileSource) ReadTable(ctx context.Context, table string) ([]map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := s.resolve(table)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", domain.ErrContentSource, path, err)
	}

	var rows []map[string]string
	if filepath.Ext(path) == ".csv" {
		var skipped []error
		rows, skipped, err = parseCSV(data)
		for _, e := range skipped {
			s.logger.Warn("Skipping malformed CSV record", zap.String("table", table), zap.Error(e))
		}
	} else {
		rows, err = parseYAML(data)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: parse %s: %w", domain.ErrContentSource, path, err)
	}
	return rows, nil
}

func (s *FileSource) resolve(table string) (string, error) {
	if table == "" || strings.ContainsAny(table, `/\`) {
		return "", fmt.Errorf("%w: invalid table name %q", domain.ErrContentSource, table)
	}
	for _, ext := range tableExtensions {
		p := filepath.Join(s.dir, table+ext)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: stat %s: %w", domain.ErrContentSource, p, err)
		}
	}
	return "", fmt.Errorf("%w: table %q not found in %s", domain.ErrContentSource, table, s.dir)
}

// parseCSV returns the rows of a header-first CSV table. Records the reader
// rejects are returned as skipped; only a broken header fails the table.
func parseCSV(data []byte) ([]map[string]string, []error, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var (
		rows    []map[string]string
		skipped []error
	)
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			skipped = append(skipped, perr)
			continue
		}
		if err != nil {
			return nil, skipped, err
		}
		row := make(map[string]string, len(header))
		blank := true
		for i, col := range header {
			if col == "" || i >= len(rec) {
				continue
			}
			row[col] = rec[i]
			if strings.TrimSpace(rec[i]) != "" {
				blank = false
			}
		}
		if !blank {
			rows = append(rows, row)
		}
	}
	return rows, skipped, nil
}

func parseYAML(data []byte) ([]map[string]string, error) {
	var raw []map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	rows := make([]map[string]string, 0, len(raw))
	for _, r := range raw {
		if len(r) == 0 {
			continue
		}
		row := make(map[string]string, len(r))
		for k, v := range r {
			row[k] = cell(v)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// cell renders a YAML value the way a spreadsheet cell would hold it.
// Lists become newline separated text.
func cell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case []any:
		parts := make([]string, 0, len(x))
		for _, item := range x {
			parts = append(parts, cell(item))
		}
		return strings.Join(parts, "\n")
	default:
		return fmt.Sprint(x)
	}
}
