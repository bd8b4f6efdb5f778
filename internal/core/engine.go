package core

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrNilEvent is returned by Ingest when handed a nil event.
var ErrNilEvent = errors.New("event must not be nil")

// Engine is the complex event processing core: it owns the ingestion
// buffer, the pattern registry, the statistics aggregator, and the
// detection log, and re-evaluates every registered pattern on each
// ingested event.
//
// One mutex guards buffer append, statistics update, and the evaluation
// pass as a single critical section, so concurrent producers are serialized
// and a detection record can never reference an evicted event.
type Engine struct {
	Config *Config
	Logger zerolog.Logger

	mu         sync.Mutex
	buffer     *EventBuffer
	registry   *PatternRegistry
	stats      *StatsAggregator
	detections *DetectionLog

	bus   *EventBus
	sinks []DetectionSink

	// now is swappable for deterministic window tests.
	now func() time.Time
}

// DetectionSink receives detection records after the evaluation pass
// completes. Sinks run outside the engine's critical section.
type DetectionSink interface {
	Notify(record *DetectionRecord)
}

// NewEngine creates an engine from config, wiring the logger the same way
// for every component.
func NewEngine(cfg *Config) *Engine {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	var logger zerolog.Logger
	if cfg.Logging.Format == "json" {
		logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger()
	}

	switch cfg.LogLevel() {
	case "debug":
		logger = logger.Level(zerolog.DebugLevel)
	case "warn":
		logger = logger.Level(zerolog.WarnLevel)
	case "error":
		logger = logger.Level(zerolog.ErrorLevel)
	default:
		logger = logger.Level(zerolog.InfoLevel)
	}

	return &Engine{
		Config:     cfg,
		Logger:     logger.With().Str("component", "engine").Logger(),
		buffer:     NewEventBuffer(cfg.Buffer.Capacity),
		registry:   NewPatternRegistry(),
		stats:      NewStatsAggregator(),
		detections: NewDetectionLog(cfg.Detections.MaxStore),
		now:        time.Now,
	}
}

// AttachBus connects an event bus. Every subsequently ingested event and
// every detection record is published to it, best-effort: publish failures
// are logged and never affect engine state.
func (e *Engine) AttachBus(bus *EventBus) {
	e.mu.Lock()
	e.bus = bus
	e.mu.Unlock()
}

// AttachSink adds a detection sink. Sinks are invoked after each ingestion
// with any records produced by the evaluation pass, in attach order.
func (e *Engine) AttachSink(sink DetectionSink) {
	e.mu.Lock()
	e.sinks = append(e.sinks, sink)
	e.mu.Unlock()
}

// Register adds or replaces a pattern. Invalid patterns are rejected
// synchronously; registration is allowed at any time, including after
// ingestion has begun.
func (e *Engine) Register(pattern *Pattern) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.registry.Register(pattern); err != nil {
		return fmt.Errorf("registering pattern: %w", err)
	}
	e.Logger.Info().
		Str("pattern_id", pattern.ID).
		Str("name", pattern.Name).
		Int("sequence_len", len(pattern.TypeSequence)).
		Dur("window", pattern.Window).
		Msg("pattern registered")
	return nil
}

// Ingest appends an event to the buffer, updates statistics, and runs one
// evaluation pass over all registered patterns. Pattern failures are
// isolated per pattern and never surface to the caller; only a nil event
// is an error.
func (e *Engine) Ingest(event *Event) error {
	if event == nil {
		return ErrNilEvent
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = e.nowUTC()
	}

	e.mu.Lock()
	evicted := e.buffer.Append(event)
	e.stats.RecordEvent(event)
	records := e.evaluateLocked()
	bus := e.bus
	sinks := e.sinks
	var published *Event
	if bus != nil {
		// Copy under the lock: a later evaluation pass may still flip the
		// live event's Processed flag while the publish is in flight.
		c := *event
		published = &c
	}
	e.mu.Unlock()

	if evicted != nil {
		e.Logger.Debug().Str("event_id", evicted.ID).Msg("event evicted from buffer")
	}
	e.Logger.Debug().
		Str("event_id", event.ID).
		Str("type", event.Type.String()).
		Str("priority", event.Priority.String()).
		Int("detections", len(records)).
		Msg("event ingested")

	// Bus publishing stays outside the critical section: transport latency
	// must not stall producers, and publish failures never touch state.
	if bus != nil {
		if err := bus.PublishEvent(published); err != nil {
			e.Logger.Error().Err(err).Str("event_id", published.ID).Msg("failed to publish event to bus")
		}
		for _, rec := range records {
			if err := bus.PublishDetection(rec); err != nil {
				e.Logger.Error().Err(err).Str("pattern_id", rec.PatternID).Msg("failed to publish detection to bus")
			}
		}
	}
	for _, sink := range sinks {
		for _, rec := range records {
			sink.Notify(rec)
		}
	}

	return nil
}

// evaluateLocked runs one evaluation pass: every registered pattern is
// checked independently against the current buffer, so a single event can
// trigger several distinct detections. Caller holds e.mu.
func (e *Engine) evaluateLocked() []*DetectionRecord {
	now := e.nowUTC()
	var records []*DetectionRecord
	for _, pattern := range e.registry.All() {
		rec := e.matchPattern(pattern, now)
		if rec != nil {
			records = append(records, rec)
		}
	}
	return records
}

// matchPattern applies one pattern to the current buffer. The match
// considers only the trailing run of len(TypeSequence) events within the
// time-filtered candidates, so a pattern fires at most once per pass.
// No suppression window is applied across passes: overlapping windows may
// re-fire, and deduplication is the action's decision, not the engine's.
func (e *Engine) matchPattern(pattern *Pattern, now time.Time) *DetectionRecord {
	candidates := e.buffer.RecentWithin(pattern.Window, now)
	if len(candidates) < len(pattern.TypeSequence) {
		return nil
	}

	// RecentWithin only bounds recency against now. With sparse or
	// out-of-order timestamps the first-to-last span of the candidates can
	// still exceed the window, so it is rechecked here independently.
	span := candidates[len(candidates)-1].Timestamp.Sub(candidates[0].Timestamp)
	if span > pattern.Window {
		return nil
	}

	trailing := candidates[len(candidates)-len(pattern.TypeSequence):]
	for i, want := range pattern.TypeSequence {
		if trailing[i].Type != want {
			return nil
		}
	}

	if !e.safeEvaluate(pattern, trailing) {
		return nil
	}

	ids := make([]string, len(trailing))
	for i, ev := range trailing {
		ids[i] = ev.ID
		if !ev.Processed {
			ev.Processed = true
		}
	}

	record := &DetectionRecord{
		PatternID:       pattern.ID,
		PatternName:     pattern.Name,
		DetectedAt:      now,
		MatchedEventIDs: ids,
		Description:     pattern.Description,
	}

	// The record is committed before the action runs: an action failure is
	// reported but does not roll back the detection.
	e.detections.Append(record)
	e.stats.RecordDetection()

	e.Logger.Info().
		Str("pattern_id", pattern.ID).
		Str("pattern", pattern.Name).
		Int("events", len(trailing)).
		Msg("pattern detected")

	e.safeExecute(pattern, trailing)
	return record
}

// safeEvaluate runs the user-supplied predicate inside a recover so a
// panicking predicate cannot abort the evaluation pass. A panic counts as
// a non-match.
func (e *Engine) safeEvaluate(pattern *Pattern, events []*Event) (matched bool) {
	defer func() {
		if rec := recover(); rec != nil {
			e.Logger.Error().
				Str("pattern_id", pattern.ID).
				Interface("panic", rec).
				Msg("pattern predicate panicked — treated as non-match")
			matched = false
		}
	}()
	if pattern.Predicate == nil {
		return true
	}
	return pattern.Predicate.Evaluate(events)
}

// safeExecute runs the pattern action inside a recover. Errors and panics
// are logged with the pattern id and isolated.
func (e *Engine) safeExecute(pattern *Pattern, events []*Event) {
	defer func() {
		if rec := recover(); rec != nil {
			e.Logger.Error().
				Str("pattern_id", pattern.ID).
				Interface("panic", rec).
				Msg("pattern action panicked — recovered")
		}
	}()
	if pattern.Action == nil {
		return
	}
	if err := pattern.Action.Execute(events); err != nil {
		e.Logger.Error().Err(err).
			Str("pattern_id", pattern.ID).
			Msg("pattern action failed")
	}
}

// copyEvents detaches events from the buffer: later evaluation passes
// mutate the live Processed flags under the engine lock, so reads leaving
// the lock get value copies.
func copyEvents(events []*Event) []*Event {
	out := make([]*Event, len(events))
	for i, ev := range events {
		c := *ev
		out[i] = &c
	}
	return out
}

// Snapshot returns the most recent limit buffered events matching the
// filter, in insertion order. The returned events are copies; mutating
// them does not touch engine state.
func (e *Engine) Snapshot(filter EventFilter, limit int) []*Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	return copyEvents(e.buffer.Snapshot(filter, limit))
}

// RecentWithin returns copies of all buffered events with timestamps
// inside the window relative to now, in insertion order.
func (e *Engine) RecentWithin(window time.Duration, now time.Time) []*Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	return copyEvents(e.buffer.RecentWithin(window, now))
}

// Statistics returns a copy of the lifetime counters.
func (e *Engine) Statistics() Statistics {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats.Snapshot()
}

// Detections returns the most recent limit detection records in
// chronological order.
func (e *Engine) Detections(limit int) []*DetectionRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.detections.Recent(limit)
}

// Patterns returns every registered pattern in registration order.
func (e *Engine) Patterns() []*Pattern {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registry.All()
}

// ClearBuffer discards all buffered events without touching lifetime
// statistics or the detection log.
func (e *Engine) ClearBuffer() {
	e.mu.Lock()
	e.buffer.Clear()
	e.mu.Unlock()
	e.Logger.Info().Msg("event buffer cleared")
}

// BufferLen returns the number of currently buffered events.
func (e *Engine) BufferLen() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.buffer.Len()
}

// BufferCapacity returns the configured buffer capacity.
func (e *Engine) BufferCapacity() int {
	return e.buffer.Capacity()
}

// PatternCount returns the number of registered patterns.
func (e *Engine) PatternCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registry.Count()
}

func (e *Engine) nowUTC() time.Time {
	return e.now().UTC()
}
