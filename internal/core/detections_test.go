package core

import (
	"fmt"
	"testing"
	"time"
)

func detRecord(i int, ts time.Time) *DetectionRecord {
	return &DetectionRecord{
		PatternID:       fmt.Sprintf("p%d", i),
		PatternName:     "pattern",
		DetectedAt:      ts,
		MatchedEventIDs: []string{fmt.Sprintf("e%d", i)},
	}
}

func TestDetectionLog_RecentChronological(t *testing.T) {
	l := NewDetectionLog(100)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		l.Append(detRecord(i, base.Add(time.Duration(i)*time.Second)))
	}

	recs := l.Recent(3)
	if len(recs) != 3 {
		t.Fatalf("expected 3 records, got %d", len(recs))
	}
	if recs[0].PatternID != "p2" || recs[2].PatternID != "p4" {
		t.Errorf("expected most recent window [p2..p4] oldest first, got %s..%s",
			recs[0].PatternID, recs[2].PatternID)
	}

	all := l.Recent(0)
	if len(all) != 5 {
		t.Errorf("limit<=0 should return everything, got %d", len(all))
	}
}

func TestDetectionLog_MaxStoreCap(t *testing.T) {
	l := NewDetectionLog(3)
	base := time.Now()

	for i := 0; i < 10; i++ {
		l.Append(detRecord(i, base))
	}

	if l.Count() != 3 {
		t.Errorf("expected store capped at 3, got %d", l.Count())
	}
	if l.Total() != 10 {
		t.Errorf("expected lifetime total 10, got %d", l.Total())
	}
	recs := l.Recent(0)
	if recs[0].PatternID != "p7" {
		t.Errorf("expected oldest retained record p7, got %s", recs[0].PatternID)
	}
}
