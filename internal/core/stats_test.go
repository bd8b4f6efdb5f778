package core

import (
	"testing"
	"time"
)

func TestStatsAggregator_Counters(t *testing.T) {
	s := NewStatsAggregator()
	ts := time.Now()

	s.RecordEvent(bufEvent("e1", SensorReading, PriorityLow, ts))
	s.RecordEvent(bufEvent("e2", SensorReading, PriorityCritical, ts))
	s.RecordEvent(bufEvent("e3", Alert, PriorityCritical, ts))
	s.RecordDetection()

	snap := s.Snapshot()
	if snap.TotalEvents != 3 {
		t.Errorf("expected total_events=3, got %d", snap.TotalEvents)
	}
	if snap.EventsByType["SensorReading"] != 2 {
		t.Errorf("expected 2 sensor readings, got %d", snap.EventsByType["SensorReading"])
	}
	if snap.EventsByType["Alert"] != 1 {
		t.Errorf("expected 1 alert, got %d", snap.EventsByType["Alert"])
	}
	if snap.EventsByPriority["Critical"] != 2 {
		t.Errorf("expected 2 critical, got %d", snap.EventsByPriority["Critical"])
	}
	if snap.PatternsDetected != 1 {
		t.Errorf("expected patterns_detected=1, got %d", snap.PatternsDetected)
	}
}

func TestStatsAggregator_SnapshotHasAllVariants(t *testing.T) {
	snap := NewStatsAggregator().Snapshot()

	if len(snap.EventsByType) != numEventTypes {
		t.Errorf("expected all %d type keys present at zero, got %d", numEventTypes, len(snap.EventsByType))
	}
	if len(snap.EventsByPriority) != numPriorities {
		t.Errorf("expected all %d priority keys present at zero, got %d", numPriorities, len(snap.EventsByPriority))
	}
}

func TestStatsAggregator_SnapshotIsCopy(t *testing.T) {
	s := NewStatsAggregator()
	s.RecordEvent(bufEvent("e1", Alert, PriorityHigh, time.Now()))

	snap := s.Snapshot()
	snap.EventsByType["Alert"] = 999
	snap.TotalEvents = 999

	fresh := s.Snapshot()
	if fresh.EventsByType["Alert"] != 1 || fresh.TotalEvents != 1 {
		t.Error("mutating a snapshot must not affect aggregator state")
	}
}
