package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/faqbot/internal/db"
)

// scanPageSize is the COUNT hint for prefix scans.
const scanPageSize = 200

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

// HSetMulti writes every hash in one DoMulti round-trip. The first failing
// key is reported.
func (s *Store) HSetMulti(ctx context.Context, items []db.HashSetItem) error {
	if len(items) == 0 {
		return nil
	}

	cmds := make([]rueidis.Completed, 0, len(items))
	for _, item := range items {
		cmd := s.b().Hset().Key(item.Key).FieldValue()
		for k, v := range item.Fields {
			cmd = cmd.FieldValue(k, v)
		}
		cmds = append(cmds, cmd.Build())
	}

	for i, res := range s.client.DoMulti(ctx, cmds...) {
		if err := res.Error(); err != nil {
			return &db.Error{Op: db.OpHSet, Err: fmt.Errorf("key %s: %w", items[i].Key, err)}
		}
	}
	return nil
}

// DeletePrefix unlinks every key starting with prefix and returns how many
// were removed. Keys are unlinked page by page as the scan proceeds, so a
// failure part way leaves the earlier pages deleted.
func (s *Store) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	if prefix == "" {
		return 0, &db.Error{Op: db.OpScan, Err: errors.New("empty prefix")}
	}
	pattern := globEscaper.Replace(prefix) + "*"

	var removed int
	var cursor uint64
	for {
		cmd := s.b().Scan().Cursor(cursor).Match(pattern).Count(scanPageSize).Build()
		page, err := s.do(ctx, cmd).AsScanEntry()
		if err != nil {
			return removed, &db.Error{Op: db.OpScan, Err: err}
		}
		if len(page.Elements) > 0 {
			n, err := s.do(ctx, s.b().Unlink().Key(page.Elements...).Build()).AsInt64()
			if err != nil {
				return removed, &db.Error{Op: db.OpUnlink, Err: err}
			}
			removed += int(n)
		}
		cursor = page.Cursor
		if cursor == 0 {
			return removed, nil
		}
	}
}
