package core

import (
	"encoding/json"
	"time"
)

// DetectionRecord is the append-only record of one successful pattern
// match. Records are never mutated after creation.
type DetectionRecord struct {
	PatternID       string    `json:"pattern_id"`
	PatternName     string    `json:"pattern_name"`
	DetectedAt      time.Time `json:"detected_at"`
	MatchedEventIDs []string  `json:"matched_event_ids"`
	Description     string    `json:"description,omitempty"`
}

// Marshal serializes the record to JSON.
func (d *DetectionRecord) Marshal() ([]byte, error) {
	return json.Marshal(d)
}

// DetectionLog stores detection records in arrival order. maxStore caps
// memory: when exceeded, the oldest records are dropped. Records
// themselves are never modified.
type DetectionLog struct {
	records  []*DetectionRecord
	maxStore int
	total    int64
}

// NewDetectionLog creates a log holding up to maxStore records.
func NewDetectionLog(maxStore int) *DetectionLog {
	if maxStore <= 0 {
		maxStore = 10000
	}
	return &DetectionLog{
		records:  make([]*DetectionRecord, 0, 64),
		maxStore: maxStore,
	}
}

// Append adds a record to the log.
func (l *DetectionLog) Append(record *DetectionRecord) {
	l.records = append(l.records, record)
	l.total++
	if len(l.records) > l.maxStore {
		overflow := len(l.records) - l.maxStore
		l.records = append(l.records[:0], l.records[overflow:]...)
	}
}

// Recent returns the most recent limit records in chronological order
// (oldest of the returned window first). limit <= 0 returns everything.
func (l *DetectionLog) Recent(limit int) []*DetectionRecord {
	n := len(l.records)
	if limit > 0 && limit < n {
		n = limit
	}
	result := make([]*DetectionRecord, n)
	copy(result, l.records[len(l.records)-n:])
	return result
}

// Count returns the number of currently stored records.
func (l *DetectionLog) Count() int {
	return len(l.records)
}

// Total returns the lifetime number of appended records, including any
// dropped by the maxStore cap.
func (l *DetectionLog) Total() int64 {
	return l.total
}
