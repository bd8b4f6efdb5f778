package core

import (
	"errors"
	"testing"
	"time"
)

func validPattern(id string) *Pattern {
	return &Pattern{
		ID:           id,
		Name:         "test " + id,
		TypeSequence: []EventType{SensorReading},
		Window:       time.Minute,
	}
}

func TestPattern_Validate(t *testing.T) {
	tests := []struct {
		name    string
		pattern *Pattern
		wantErr error
	}{
		{"valid", validPattern("ok"), nil},
		{"empty id", &Pattern{TypeSequence: []EventType{Alert}, Window: time.Minute}, ErrEmptyPatternID},
		{"empty sequence", &Pattern{ID: "x", Window: time.Minute}, ErrEmptyTypeSequence},
		{"zero window", &Pattern{ID: "x", TypeSequence: []EventType{Alert}}, ErrNonPositiveWindow},
		{"negative window", &Pattern{ID: "x", TypeSequence: []EventType{Alert}, Window: -time.Second}, ErrNonPositiveWindow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.pattern.Validate()
			if tt.wantErr == nil && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestPatternRegistry_RejectsNil(t *testing.T) {
	r := NewPatternRegistry()
	if err := r.Register(nil); !errors.Is(err, ErrNilPattern) {
		t.Fatalf("expected ErrNilPattern, got %v", err)
	}
	if r.Count() != 0 {
		t.Fatalf("expected empty registry, got %d", r.Count())
	}
}

func TestPatternRegistry_IdempotentReplace(t *testing.T) {
	r := NewPatternRegistry()

	first := validPattern("p1")
	first.Name = "first"
	if err := r.Register(first); err != nil {
		t.Fatalf("register: %v", err)
	}

	second := validPattern("p1")
	second.Name = "second"
	if err := r.Register(second); err != nil {
		t.Fatalf("re-register: %v", err)
	}

	if r.Count() != 1 {
		t.Fatalf("expected exactly 1 pattern after re-registration, got %d", r.Count())
	}
	got, ok := r.Get("p1")
	if !ok || got.Name != "second" {
		t.Errorf("expected latest definition to win, got %+v", got)
	}
}

func TestPatternRegistry_AllIteratesOnce(t *testing.T) {
	r := NewPatternRegistry()
	for _, id := range []string{"a", "b", "c"} {
		if err := r.Register(validPattern(id)); err != nil {
			t.Fatalf("register %s: %v", id, err)
		}
	}

	seen := make(map[string]int)
	for _, p := range r.All() {
		seen[p.ID]++
	}
	for id, n := range seen {
		if n != 1 {
			t.Errorf("pattern %q iterated %d times", id, n)
		}
	}
	if len(seen) != 3 {
		t.Errorf("expected 3 patterns, got %d", len(seen))
	}
}

func TestPredicateActionAdapters(t *testing.T) {
	called := false
	p := PredicateFunc(func(events []*Event) bool { return len(events) > 0 })
	a := ActionFunc(func(events []*Event) error { called = true; return nil })

	if !p.Evaluate([]*Event{{}}) {
		t.Error("predicate adapter failed")
	}
	if err := a.Execute(nil); err != nil || !called {
		t.Error("action adapter failed")
	}
}
