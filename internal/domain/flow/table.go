package flow

import (
	"fmt"
	"sort"
	"strings"
)

type key struct {
	trigger string
	step    int
}

// Table is an immutable index of steps by (trigger, step).
type Table struct {
	steps   map[key]Step
	entries []Step
}

// NewTable indexes steps. Duplicate (trigger, step) pairs keep the first row and
// are reported; flows without a step 1 are reported and have no entry point.
func NewTable(steps []Step) (*Table, []error) {
	t := &Table{steps: make(map[key]Step, len(steps))}
	var problems []error

	hasEntry := make(map[string]bool)
	for _, s := range steps {
		k := key{trigger: normalizeTrigger(s.Trigger()), step: s.Number()}
		if prev, dup := t.steps[k]; dup {
			problems = append(problems, fmt.Errorf(
				"duplicate step %d for trigger %q (ids %d and %d)", s.Number(), s.Trigger(), prev.ID(), s.ID()))
			continue
		}
		t.steps[k] = s
		if s.IsEntry() {
			t.entries = append(t.entries, s)
			hasEntry[k.trigger] = true
		}
	}

	reported := make(map[string]bool)
	for _, s := range steps {
		name := normalizeTrigger(s.Trigger())
		if hasEntry[name] || reported[name] {
			continue
		}
		reported[name] = true
		problems = append(problems, fmt.Errorf("trigger %q has no step %d", s.Trigger(), EntryStep))
	}
	sort.SliceStable(t.entries, func(i, j int) bool { return t.entries[i].ID() < t.entries[j].ID() })

	return t, problems
}

// Lookup returns the step of a flow. Trigger comparison ignores case and surrounding space.
func (t *Table) Lookup(trigger string, step int) (Step, bool) {
	if t == nil {
		return Step{}, false
	}
	s, ok := t.steps[key{trigger: normalizeTrigger(trigger), step: step}]
	return s, ok
}

// EntryPoints returns the step-1 steps of every flow.
func (t *Table) EntryPoints() []Step {
	if t == nil {
		return nil
	}
	return append([]Step(nil), t.entries...)
}

// Triggers returns the names of flows that can be started.
func (t *Table) Triggers() []string {
	if t == nil {
		return nil
	}
	out := make([]string, len(t.entries))
	for i, e := range t.entries {
		out[i] = e.Trigger()
	}
	return out
}

// Len returns the number of indexed steps.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.steps)
}

func normalizeTrigger(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
