package core

import (
	"testing"
	"time"
)

func TestPresetPatterns_Valid(t *testing.T) {
	for _, p := range PresetPatterns(testLogger()) {
		if err := p.Validate(); err != nil {
			t.Errorf("preset %q invalid: %v", p.ID, err)
		}
	}
}

func TestTemperatureSpikePattern_FiresOnSpike(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	e := newTestEngine(100, base)
	if err := e.Register(TemperatureSpikePattern(testLogger())); err != nil {
		t.Fatalf("register: %v", err)
	}

	_ = e.Ingest(sensorEvent("e1", 20, base))
	e.now = func() time.Time { return base.Add(time.Minute) }
	_ = e.Ingest(sensorEvent("e2", 32, base.Add(time.Minute)))

	if got := len(e.Detections(0)); got != 1 {
		t.Errorf("expected spike detection, got %d", got)
	}
}

func TestTemperatureSpikePattern_IgnoresSmallChange(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	e := newTestEngine(100, base)
	_ = e.Register(TemperatureSpikePattern(testLogger()))

	_ = e.Ingest(sensorEvent("e1", 20, base))
	_ = e.Ingest(sensorEvent("e2", 22, base.Add(time.Second)))

	if got := len(e.Detections(0)); got != 0 {
		t.Errorf("expected no detection for 2 degree change, got %d", got)
	}
}

func TestCriticalSequencePattern(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	e := newTestEngine(100, base)
	_ = e.Register(CriticalSequencePattern(testLogger()))

	// Alert then ThresholdBreach without any critical event: no fire.
	_ = e.Ingest(eventAt("e1", Alert, PriorityMedium, base))
	_ = e.Ingest(eventAt("e2", ThresholdBreach, PriorityHigh, base.Add(time.Second)))
	if got := len(e.Detections(0)); got != 0 {
		t.Fatalf("expected no detection without a critical event, got %d", got)
	}

	// Same sequence carrying a critical event fires.
	_ = e.Ingest(eventAt("e3", Alert, PriorityCritical, base.Add(2*time.Second)))
	_ = e.Ingest(eventAt("e4", ThresholdBreach, PriorityHigh, base.Add(3*time.Second)))
	if got := len(e.Detections(0)); got != 1 {
		t.Errorf("expected critical sequence detection, got %d", got)
	}
}
