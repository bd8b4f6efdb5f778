package core

import (
	"time"
)

// EventFilter narrows buffer queries. Nil fields mean pass-through.
type EventFilter struct {
	Type     *EventType
	Priority *Priority
}

// EventBuffer is a fixed-capacity ring holding the most recent events in
// insertion order. Eviction is strictly FIFO by insertion; the event
// timestamp plays no role in eviction, only in window queries.
//
// The buffer is not safe for concurrent use on its own. The engine owns it
// and serializes Append with statistics updates and pattern evaluation under
// one lock so a detection can never reference an already-evicted event.
type EventBuffer struct {
	events   []*Event
	capacity int
	pos      int
	full     bool
}

// NewEventBuffer creates a buffer holding up to capacity events.
func NewEventBuffer(capacity int) *EventBuffer {
	if capacity <= 0 {
		capacity = 1000
	}
	return &EventBuffer{
		events:   make([]*Event, capacity),
		capacity: capacity,
	}
}

// Append adds an event to the tail. If the buffer is at capacity the
// oldest-inserted event is evicted and returned; otherwise nil.
func (b *EventBuffer) Append(event *Event) *Event {
	var evicted *Event
	if b.full {
		evicted = b.events[b.pos]
	}
	b.events[b.pos] = event
	b.pos = (b.pos + 1) % b.capacity
	if b.pos == 0 {
		b.full = true
	}
	return evicted
}

// Len returns the number of buffered events.
func (b *EventBuffer) Len() int {
	if b.full {
		return b.capacity
	}
	return b.pos
}

// Capacity returns the configured maximum size.
func (b *EventBuffer) Capacity() int {
	return b.capacity
}

// all returns the buffered events oldest-first.
func (b *EventBuffer) all() []*Event {
	total := b.Len()
	result := make([]*Event, 0, total)
	start := 0
	if b.full {
		start = b.pos
	}
	for i := 0; i < total; i++ {
		result = append(result, b.events[(start+i)%b.capacity])
	}
	return result
}

// Snapshot returns the most recent limit events matching the filter, in
// insertion order. A zero-value filter passes everything through.
func (b *EventBuffer) Snapshot(filter EventFilter, limit int) []*Event {
	matched := make([]*Event, 0, b.Len())
	for _, e := range b.all() {
		if filter.Type != nil && e.Type != *filter.Type {
			continue
		}
		if filter.Priority != nil && e.Priority != *filter.Priority {
			continue
		}
		matched = append(matched, e)
	}
	if limit > 0 && len(matched) > limit {
		matched = matched[len(matched)-limit:]
	}
	return matched
}

// RecentWithin returns, in insertion order, all buffered events whose
// timestamp is at or after now minus window. Position in the buffer does
// not matter: an out-of-order producer timestamp is filtered on its value.
func (b *EventBuffer) RecentWithin(window time.Duration, now time.Time) []*Event {
	cutoff := now.Add(-window)
	result := make([]*Event, 0, b.Len())
	for _, e := range b.all() {
		if !e.Timestamp.Before(cutoff) {
			result = append(result, e)
		}
	}
	return result
}

// Clear discards all buffered events. Lifetime statistics are untouched.
func (b *EventBuffer) Clear() {
	for i := range b.events {
		b.events[i] = nil
	}
	b.pos = 0
	b.full = false
}
