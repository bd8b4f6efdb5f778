package core

// Statistics is a point-in-time copy of the engine's lifetime counters.
// Counters only ever grow: eviction and Clear never decrement them.
type Statistics struct {
	TotalEvents      int64            `json:"total_events"`
	EventsByType     map[string]int64 `json:"events_by_type"`
	EventsByPriority map[string]int64 `json:"events_by_priority"`
	PatternsDetected int64            `json:"patterns_detected"`
}

// StatsAggregator accumulates counters incrementally on every ingestion and
// detection. Both enums are closed, so the per-variant counters live in
// fixed arrays indexed by the enum value.
//
// Mutation happens only from the engine's ingestion critical section; the
// engine's lock covers it, so the aggregator carries no lock of its own.
type StatsAggregator struct {
	totalEvents      int64
	eventsByType     [numEventTypes]int64
	eventsByPriority [numPriorities]int64
	patternsDetected int64
}

// NewStatsAggregator creates an aggregator with all counters at zero.
func NewStatsAggregator() *StatsAggregator {
	return &StatsAggregator{}
}

// RecordEvent counts one ingested event.
func (s *StatsAggregator) RecordEvent(event *Event) {
	s.totalEvents++
	if event.Type >= 0 && int(event.Type) < numEventTypes {
		s.eventsByType[event.Type]++
	}
	if event.Priority >= 0 && int(event.Priority) < numPriorities {
		s.eventsByPriority[event.Priority]++
	}
}

// RecordDetection counts one successful pattern match.
func (s *StatsAggregator) RecordDetection() {
	s.patternsDetected++
}

// Snapshot returns a copy of the current totals. Callers get fresh maps and
// cannot mutate aggregator state through the result.
func (s *StatsAggregator) Snapshot() Statistics {
	byType := make(map[string]int64, numEventTypes)
	for _, t := range EventTypes() {
		byType[t.String()] = s.eventsByType[t]
	}
	byPriority := make(map[string]int64, numPriorities)
	for _, p := range Priorities() {
		byPriority[p.String()] = s.eventsByPriority[p]
	}
	return Statistics{
		TotalEvents:      s.totalEvents,
		EventsByType:     byType,
		EventsByPriority: byPriority,
		PatternsDetected: s.patternsDetected,
	}
}
