package flow

import (
	"fmt"
	"strings"
)

// EntryStep is the step number every flow starts at.
const EntryStep = 1

// Step is one node of a branching dialog (immutable value object).
// Options and NextSteps are positionally aligned.
type Step struct {
	id           int
	trigger      string
	step         int
	prompt       string
	options      []string
	nextSteps    []int
	isTerminal   bool
	fallbackStep int
}

// New validates and creates a Step.
func New(
	id int, trigger string, step int, prompt string,
	options []string, nextSteps []int, isTerminal bool, fallbackStep int,
) (Step, error) {
	trigger = strings.TrimSpace(trigger)
	if trigger == "" {
		return Step{}, fmt.Errorf("trigger is required")
	}
	if step <= 0 {
		return Step{}, fmt.Errorf("step must be positive, got %d", step)
	}
	if strings.TrimSpace(prompt) == "" {
		return Step{}, fmt.Errorf("prompt is required")
	}
	if len(options) != len(nextSteps) {
		return Step{}, fmt.Errorf("options (%d) and next steps (%d) must align", len(options), len(nextSteps))
	}
	for i, o := range options {
		if strings.TrimSpace(o) == "" {
			return Step{}, fmt.Errorf("option %d is empty", i+1)
		}
	}
	if fallbackStep < 0 {
		return Step{}, fmt.Errorf("fallback step must not be negative, got %d", fallbackStep)
	}

	return Step{
		id:           id,
		trigger:      trigger,
		step:         step,
		prompt:       prompt,
		options:      append([]string(nil), options...),
		nextSteps:    append([]int(nil), nextSteps...),
		isTerminal:   isTerminal,
		fallbackStep: fallbackStep,
	}, nil
}

// ID returns the content-source row identifier.
func (s Step) ID() int { return s.id }

// Trigger returns the name of the flow this step belongs to.
func (s Step) Trigger() string { return s.trigger }

// Number returns the step number within the flow.
func (s Step) Number() int { return s.step }

// Prompt returns the text shown to the user.
func (s Step) Prompt() string { return s.prompt }

// Options returns a copy of the selectable option labels.
func (s Step) Options() []string { return append([]string(nil), s.options...) }

// NextSteps returns a copy of the step numbers aligned with Options.
func (s Step) NextSteps() []int { return append([]int(nil), s.nextSteps...) }

// IsTerminal reports whether reaching this step ends the flow.
func (s Step) IsTerminal() bool { return s.isTerminal }

// FallbackStep returns the step taken when no option matches.
func (s Step) FallbackStep() int { return s.fallbackStep }

// IsEntry reports whether this is the first step of its flow.
func (s Step) IsEntry() bool { return s.step == EntryStep }

// MatchOption finds the option selected by text: case-insensitive substring in
// either direction, first declared option wins. Blank text matches nothing.
func (s Step) MatchOption(text string) (int, bool) {
	needle := strings.ToLower(strings.TrimSpace(text))
	if needle == "" {
		return -1, false
	}
	for i, o := range s.options {
		label := strings.ToLower(strings.TrimSpace(o))
		if strings.Contains(needle, label) || strings.Contains(label, needle) {
			return i, true
		}
	}
	return -1, false
}

// Transition is the outcome of answering a step.
type Transition struct {
	Next     int
	Option   string
	Selected bool
}

// Answer resolves the step to move to after the user replied with text.
func (s Step) Answer(text string) Transition {
	if i, ok := s.MatchOption(text); ok {
		return Transition{Next: s.nextSteps[i], Option: s.options[i], Selected: true}
	}
	return Transition{Next: s.fallbackStep}
}
