package intent

import (
	"errors"
	"testing"
)

func TestConstructors(t *testing.T) {
	cause := errors.New("timeout")

	tests := []struct {
		name     string
		in       Intent
		kind     Kind
		wantName string
		wantErr  error
	}{
		{"matched", Matched("billing"), KindMatched, "billing", nil},
		{"no match", NoMatch(), KindNoMatch, "", nil},
		{"unavailable", Unavailable(cause), KindUnavailable, "", cause},
		{"zero value", Intent{}, KindNoMatch, "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.in.Kind() != tt.kind {
				t.Errorf("Kind() = %v, want %v", tt.in.Kind(), tt.kind)
			}
			if tt.in.Name() != tt.wantName {
				t.Errorf("Name() = %q, want %q", tt.in.Name(), tt.wantName)
			}
			if !errors.Is(tt.in.Err(), tt.wantErr) {
				t.Errorf("Err() = %v, want %v", tt.in.Err(), tt.wantErr)
			}
			if tt.in.IsMatched() != (tt.kind == KindMatched) {
				t.Error("IsMatched disagrees with Kind")
			}
		})
	}
}

func TestKindString(t *testing.T) {
	if KindUnavailable.String() != "unavailable" || Kind(42).String() != "unknown" {
		t.Error("unexpected Kind strings")
	}
}
