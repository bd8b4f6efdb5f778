package core

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType classifies an event. The set is closed: every counter and
// pattern sequence is keyed by one of these five variants.
type EventType int

const (
	SensorReading EventType = iota
	Alert
	StatusChange
	ThresholdBreach
	SystemEvent

	numEventTypes = 5
)

func (t EventType) String() string {
	switch t {
	case SensorReading:
		return "SensorReading"
	case Alert:
		return "Alert"
	case StatusChange:
		return "StatusChange"
	case ThresholdBreach:
		return "ThresholdBreach"
	case SystemEvent:
		return "SystemEvent"
	default:
		return "Unknown"
	}
}

// ParseEventType converts a wire string to an EventType. Unknown values are
// an explicit invalid-argument error, never silently mapped.
func ParseEventType(s string) (EventType, error) {
	switch s {
	case "SensorReading":
		return SensorReading, nil
	case "Alert":
		return Alert, nil
	case "StatusChange":
		return StatusChange, nil
	case "ThresholdBreach":
		return ThresholdBreach, nil
	case "SystemEvent":
		return SystemEvent, nil
	default:
		return 0, fmt.Errorf("unknown event type %q", s)
	}
}

// EventTypes returns all known types in declaration order.
func EventTypes() []EventType {
	return []EventType{SensorReading, Alert, StatusChange, ThresholdBreach, SystemEvent}
}

func (t EventType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *EventType) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	parsed, err := ParseEventType(str)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Priority orders events from Low to Critical.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
	PriorityCritical

	numPriorities = 4
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "Low"
	case PriorityMedium:
		return "Medium"
	case PriorityHigh:
		return "High"
	case PriorityCritical:
		return "Critical"
	default:
		return "Unknown"
	}
}

// ParsePriority converts a wire string to a Priority. Unknown values are an
// explicit invalid-argument error.
func ParsePriority(s string) (Priority, error) {
	switch s {
	case "Low":
		return PriorityLow, nil
	case "Medium":
		return PriorityMedium, nil
	case "High":
		return PriorityHigh, nil
	case "Critical":
		return PriorityCritical, nil
	default:
		return 0, fmt.Errorf("unknown priority %q", s)
	}
}

// Priorities returns all known priorities in ascending order.
func Priorities() []Priority {
	return []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}
}

func (p Priority) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p *Priority) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	parsed, err := ParsePriority(str)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Event is a single timestamped occurrence flowing through the engine.
// All fields are immutable after construction except Processed, which is
// owned by the matching engine and set at most once.
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	Priority  Priority               `json:"priority"`
	Processed bool                   `json:"processed"`
}

// NewEvent creates an Event with a generated ID and the current timestamp.
func NewEvent(eventType EventType, source string, priority Priority) *Event {
	return &Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Source:    source,
		Priority:  priority,
		Payload:   make(map[string]interface{}),
	}
}

// Marshal serializes the event to JSON.
func (e *Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// UnmarshalEvent deserializes an Event from JSON.
func UnmarshalEvent(data []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

// Float returns a numeric payload field. Payloads decoded from JSON carry
// numbers as float64; events built in-process may use any numeric type.
func (e *Event) Float(key string) (float64, bool) {
	v, ok := e.Payload[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
