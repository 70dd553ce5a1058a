package flow

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kailas-cloud/faqbot/internal/domain"
)

// ParseError describes a content-source row that could not become a Step.
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

// ParseRow strictly converts one content-source row into a Step.
// Missing fallback_step defaults to the step itself, so an unmatched reply re-asks.
func ParseRow(row int, fields map[string]string) (Step, error) {
	get := func(names ...string) string {
		for _, n := range names {
			if v, ok := fields[n]; ok {
				return strings.TrimSpace(v)
			}
		}
		return ""
	}

	id, err := parseOptionalInt(get("id"), 0)
	if err != nil {
		return Step{}, &ParseError{Row: row, Field: "id", Err: err}
	}
	stepNo, err := strconv.Atoi(get("step"))
	if err != nil {
		return Step{}, &ParseError{Row: row, Field: "step", Err: err}
	}
	nextSteps, err := parseIntList(get("next_steps", "nextSteps", "next_step"))
	if err != nil {
		return Step{}, &ParseError{Row: row, Field: "next_steps", Err: err}
	}
	terminal, err := parseBool(get("is_terminal", "isTerminal", "terminal"))
	if err != nil {
		return Step{}, &ParseError{Row: row, Field: "is_terminal", Err: err}
	}
	fallback, err := parseOptionalInt(get("fallback_step", "fallbackStep"), stepNo)
	if err != nil {
		return Step{}, &ParseError{Row: row, Field: "fallback_step", Err: err}
	}

	s, err := New(
		id, get("trigger"), stepNo, get("prompt", "message"),
		SplitList(get("options")), nextSteps, terminal, fallback,
	)
	if err != nil {
		return Step{}, &ParseError{Row: row, Err: err}
	}
	return s, nil
}

// SplitList splits a cell holding a list. Newlines and "|" take precedence over commas,
// so option labels may contain commas when another separator is used.
func SplitList(cell string) []string {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return nil
	}
	var parts []string
	switch {
	case strings.Contains(cell, "\n"):
		parts = strings.Split(cell, "\n")
	case strings.Contains(cell, "|"):
		parts = strings.Split(cell, "|")
	default:
		parts = strings.Split(cell, ",")
	}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseIntList(cell string) ([]int, error) {
	items := SplitList(cell)
	if len(items) == 0 {
		return nil, nil
	}
	out := make([]int, len(items))
	for i, it := range items {
		n, err := strconv.Atoi(it)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i+1, err)
		}
		out[i] = n
	}
	return out, nil
}

func parseOptionalInt(cell string, def int) (int, error) {
	if cell == "" {
		return def, nil
	}
	n, err := strconv.Atoi(cell)
	if err != nil {
		return 0, err //nolint:wrapcheck // wrapped by ParseError
	}
	return n, nil
}

func parseBool(cell string) (bool, error) {
	switch strings.ToLower(cell) {
	case "", "false", "0", "no", "n":
		return false, nil
	case "true", "1", "yes", "y":
		return true, nil
	default:
		return false, fmt.Errorf("invalid boolean %q", cell)
	}
}
