package knowledge

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kailas-cloud/faqbot/internal/domain"
	"github.com/kailas-cloud/faqbot/internal/domain/flow"
)

// ParseError describes a content-source row that could not become an Entry.
type ParseError struct {
	Row   int
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("row %d: %v", e.Row, e.Err)
	}
	return fmt.Sprintf("row %d: field %q: %v", e.Row, e.Field, e.Err)
}

func (e *ParseError) Unwrap() []error { return []error{domain.ErrInvalidRow, e.Err} }

// ParseRow strictly converts one content-source row into an Entry.
func ParseRow(row int, fields map[string]string) (Entry, error) {
	get := func(name string) string { return strings.TrimSpace(fields[name]) }

	priority := 0
	if p := get("priority"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			return Entry{}, &ParseError{Row: row, Field: "priority", Err: err}
		}
		priority = n
	}

	e, err := New(
		get("id"), get("question"),
		flow.SplitList(get("keywords")), flow.SplitList(get("synonyms")), flow.SplitList(get("tags")),
		get("answer"), priority, Status(strings.ToLower(get("status"))),
	)
	if err != nil {
		return Entry{}, &ParseError{Row: row, Err: err}
	}
	return e, nil
}
