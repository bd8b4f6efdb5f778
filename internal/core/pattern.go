package core

import (
	"errors"
	"fmt"
	"time"
)

// Configuration errors returned by PatternRegistry.Register.
var (
	ErrNilPattern        = errors.New("pattern must not be nil")
	ErrEmptyPatternID    = errors.New("pattern id must not be empty")
	ErrEmptyTypeSequence = errors.New("pattern type sequence must not be empty")
	ErrNonPositiveWindow = errors.New("pattern window must be positive")
)

// Predicate decides whether a candidate trailing slice of events satisfies
// a pattern's semantic condition beyond the structural type sequence.
// Implementations are user-supplied and untrusted: the engine wraps every
// call in a recover, so a panicking predicate is isolated, not fatal.
type Predicate interface {
	Evaluate(events []*Event) bool
}

// Action is the side effect invoked for matched events. Like Predicate, it
// runs untrusted code and is isolated at the engine boundary.
type Action interface {
	Execute(events []*Event) error
}

// PredicateFunc adapts a plain function to the Predicate interface.
type PredicateFunc func(events []*Event) bool

func (f PredicateFunc) Evaluate(events []*Event) bool { return f(events) }

// ActionFunc adapts a plain function to the Action interface.
type ActionFunc func(events []*Event) error

func (f ActionFunc) Execute(events []*Event) error { return f(events) }

// Pattern declares a temporal sequence to detect: an ordered run of event
// types that must appear as the most recent events inside a time window,
// plus a predicate over the matched slice. Immutable after registration;
// re-registering the same ID replaces the definition.
type Pattern struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	TypeSequence []EventType   `json:"type_sequence"`
	Window       time.Duration `json:"window"`
	Predicate    Predicate     `json:"-"`
	Action       Action        `json:"-"`
	Description  string        `json:"description,omitempty"`
}

// Validate checks the structural configuration of the pattern.
func (p *Pattern) Validate() error {
	if p.ID == "" {
		return ErrEmptyPatternID
	}
	if len(p.TypeSequence) == 0 {
		return fmt.Errorf("pattern %q: %w", p.ID, ErrEmptyTypeSequence)
	}
	if p.Window <= 0 {
		return fmt.Errorf("pattern %q: %w", p.ID, ErrNonPositiveWindow)
	}
	return nil
}

// PatternRegistry holds the registered patterns, keyed by ID. The engine
// iterates every registered pattern exactly once per evaluation pass, in
// registration order.
//
// Like the other core components it is guarded by the engine's lock.
type PatternRegistry struct {
	patterns map[string]*Pattern
	order    []string
}

// NewPatternRegistry creates an empty registry.
func NewPatternRegistry() *PatternRegistry {
	return &PatternRegistry{
		patterns: make(map[string]*Pattern),
	}
}

// Register adds a pattern, replacing any previous definition with the same
// ID. Invalid patterns are rejected synchronously.
func (r *PatternRegistry) Register(pattern *Pattern) error {
	if pattern == nil {
		return ErrNilPattern
	}
	if err := pattern.Validate(); err != nil {
		return err
	}
	if _, exists := r.patterns[pattern.ID]; !exists {
		r.order = append(r.order, pattern.ID)
	}
	r.patterns[pattern.ID] = pattern
	return nil
}

// Get returns a pattern by ID.
func (r *PatternRegistry) Get(id string) (*Pattern, bool) {
	p, ok := r.patterns[id]
	return p, ok
}

// All returns every registered pattern in registration order.
func (r *PatternRegistry) All() []*Pattern {
	result := make([]*Pattern, 0, len(r.order))
	for _, id := range r.order {
		result = append(result, r.patterns[id])
	}
	return result
}

// Count returns the number of registered patterns.
func (r *PatternRegistry) Count() int {
	return len(r.patterns)
}
