package conversation

import (
	"slices"
	"strconv"
	"time"
)

// State is a user's progress through one active dialog. Its presence in the
// state store is what puts the user "in a dialog".
type State struct {
	UserID        string            `json:"user_id"`
	Trigger       string            `json:"trigger"`
	CurrentStep   int               `json:"current_step"`
	Context       map[string]string `json:"context,omitempty"`
	StartedAt     time.Time         `json:"started_at"`
	LastUpdatedAt time.Time         `json:"last_updated_at"`
}

// New starts a dialog for userID at step.
func New(userID, trigger string, step int, now time.Time) *State {
	return &State{
		UserID:        userID,
		Trigger:       trigger,
		CurrentStep:   step,
		Context:       make(map[string]string),
		StartedAt:     now,
		LastUpdatedAt: now,
	}
}

// Record stores the option chosen at step. A step already answered keeps its first answer.
func (s *State) Record(step int, option string) bool {
	if s.Context == nil {
		s.Context = make(map[string]string)
	}
	k := strconv.Itoa(step)
	if _, ok := s.Context[k]; ok {
		return false
	}
	s.Context[k] = option
	return true
}

// Advance moves the dialog to step.
func (s *State) Advance(step int, now time.Time) {
	s.CurrentStep = step
	s.LastUpdatedAt = now
}

// Answers returns the recorded options ordered by step number.
func (s *State) Answers() []string {
	if len(s.Context) == 0 {
		return nil
	}
	steps := make([]int, 0, len(s.Context))
	for k := range s.Context {
		if n, err := strconv.Atoi(k); err == nil {
			steps = append(steps, n)
		}
	}
	slices.Sort(steps)
	out := make([]string, 0, len(steps))
	for _, n := range steps {
		out = append(out, s.Context[strconv.Itoa(n)])
	}
	return out
}

// Clone returns a deep copy.
func (s *State) Clone() *State {
	c := *s
	if s.Context != nil {
		c.Context = make(map[string]string, len(s.Context))
		for k, v := range s.Context {
			c.Context[k] = v
		}
	}
	return &c
}
