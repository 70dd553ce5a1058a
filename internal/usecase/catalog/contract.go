package catalog

import "context"

// Source reads one named table of rows from the content source.
type Source interface {
	ReadTable(ctx context.Context, table string) ([]map[string]string, error)
}

// Reloader is a catalog that can be refreshed wholesale from its table.
type Reloader interface {
	Name() string
	Table() string
	Reload(ctx context.Context) error
}
