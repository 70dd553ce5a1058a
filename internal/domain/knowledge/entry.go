package knowledge

import (
	"fmt"
	"strings"
)

// Status is the publication state of an entry.
type Status string

// Entry status constants.
const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Entry is one curated answer (immutable value object).
type Entry struct {
	id       string
	question string
	keywords []string
	synonyms []string
	tags     []string
	answer   string
	priority int
	status   Status
}

// New validates and creates an Entry. Unknown status values are rejected.
func New(
	id, question string, keywords, synonyms, tags []string,
	answer string, priority int, status Status,
) (Entry, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Entry{}, fmt.Errorf("id is required")
	}
	if strings.TrimSpace(question) == "" {
		return Entry{}, fmt.Errorf("question is required")
	}
	if strings.TrimSpace(answer) == "" {
		return Entry{}, fmt.Errorf("answer is required")
	}
	switch status {
	case StatusActive, StatusInactive:
	case "":
		status = StatusActive
	default:
		return Entry{}, fmt.Errorf("invalid status %q", status)
	}
	return Entry{
		id:       id,
		question: strings.TrimSpace(question),
		keywords: clone(keywords),
		synonyms: clone(synonyms),
		tags:     clone(tags),
		answer:   answer,
		priority: priority,
		status:   status,
	}, nil
}

// ID returns the entry identifier.
func (e Entry) ID() string { return e.id }

// Question returns the canonical phrasing.
func (e Entry) Question() string { return e.question }

// Keywords returns a copy of the keywords.
func (e Entry) Keywords() []string { return clone(e.keywords) }

// Synonyms returns a copy of the synonyms.
func (e Entry) Synonyms() []string { return clone(e.synonyms) }

// Tags returns a copy of the tags.
func (e Entry) Tags() []string { return clone(e.tags) }

// Answer returns the answer text.
func (e Entry) Answer() string { return e.answer }

// Priority returns the score boost factor.
func (e Entry) Priority() int { return e.priority }

// Status returns the publication state.
func (e Entry) Status() Status { return e.status }

// Active reports whether the entry participates in matching.
func (e Entry) Active() bool { return e.status == StatusActive }

// SearchTexts returns every text the entry can be matched by: the question,
// then keywords, synonyms and tags in declared order.
func (e Entry) SearchTexts() []string {
	out := make([]string, 0, 1+len(e.keywords)+len(e.synonyms)+len(e.tags))
	out = append(out, e.question)
	out = append(out, e.keywords...)
	out = append(out, e.synonyms...)
	out = append(out, e.tags...)
	return out
}

func clone(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}
