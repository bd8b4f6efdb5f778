package core

import (
	"time"

	"github.com/rs/zerolog"
)

// ---------------------------------------------------------------------------
// Built-in pattern presets, registered by `cepflow up` and usable as
// templates for site-specific patterns.
// ---------------------------------------------------------------------------

// TemperatureSpikePattern fires when two consecutive sensor readings within
// five minutes differ by more than 10 degrees.
func TemperatureSpikePattern(logger zerolog.Logger) *Pattern {
	return &Pattern{
		ID:           "temp_spike_01",
		Name:         "Temperature Spike",
		TypeSequence: []EventType{SensorReading, SensorReading},
		Window:       5 * time.Minute,
		Description:  "Detects rapid temperature changes",
		Predicate: PredicateFunc(func(events []*Event) bool {
			if len(events) < 2 {
				return false
			}
			min, max := 0.0, 0.0
			first := true
			for _, e := range events {
				v, ok := e.Float("temperature")
				if !ok {
					continue
				}
				if first {
					min, max = v, v
					first = false
					continue
				}
				if v < min {
					min = v
				}
				if v > max {
					max = v
				}
			}
			return !first && max-min > 10
		}),
		Action: ActionFunc(func(events []*Event) error {
			logger.Warn().Int("events", len(events)).Msg("temperature spike detected")
			return nil
		}),
	}
}

// CriticalSequencePattern fires when an Alert is followed by a
// ThresholdBreach within two minutes and any matched event carries
// Critical priority.
func CriticalSequencePattern(logger zerolog.Logger) *Pattern {
	return &Pattern{
		ID:           "critical_seq_01",
		Name:         "Critical Event Sequence",
		TypeSequence: []EventType{Alert, ThresholdBreach},
		Window:       2 * time.Minute,
		Description:  "Detects critical alert sequences",
		Predicate: PredicateFunc(func(events []*Event) bool {
			for _, e := range events {
				if e.Priority == PriorityCritical {
					return true
				}
			}
			return false
		}),
		Action: ActionFunc(func(events []*Event) error {
			logger.Error().Int("events", len(events)).Msg("critical sequence detected — immediate attention required")
			return nil
		}),
	}
}

// PresetPatterns returns all built-in patterns.
func PresetPatterns(logger zerolog.Logger) []*Pattern {
	return []*Pattern{
		TemperatureSpikePattern(logger),
		CriticalSequencePattern(logger),
	}
}
