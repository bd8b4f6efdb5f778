package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cepflow/cepflow/internal/core"
	"github.com/rs/zerolog"
)

func testServer(t *testing.T, cfg *core.Config) (*Server, *core.Engine) {
	t.Helper()
	if cfg == nil {
		cfg = core.DefaultConfig()
	}
	engine := core.NewEngine(cfg)
	engine.Logger = zerolog.Nop()
	monitor := core.NewMonitor(zerolog.Nop(), 10*time.Millisecond)
	t.Cleanup(monitor.Stop)
	return NewServer(engine, monitor), engine
}

func doRequest(s *Server, method, path string, body []byte) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestServer_Health(t *testing.T) {
	s, _ := testServer(t, nil)
	rec := doRequest(s, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestServer_IngestAndSnapshot(t *testing.T) {
	s, _ := testServer(t, nil)

	event := map[string]interface{}{
		"id":       "e1",
		"type":     "SensorReading",
		"source":   "sensor_1",
		"priority": "High",
		"payload":  map[string]interface{}{"temperature": 21.0},
	}
	body, _ := json.Marshal(event)

	rec := doRequest(s, http.MethodPost, "/api/v1/events", body)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(s, http.MethodGet, "/api/v1/events?limit=10", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Events []core.Event `json:"events"`
		Total  int          `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 1 || resp.Events[0].ID != "e1" {
		t.Errorf("expected ingested event in snapshot, got %+v", resp)
	}
}

func TestServer_IngestDefaults(t *testing.T) {
	s, engine := testServer(t, nil)

	body := []byte(`{"type":"Alert","priority":"Low"}`)
	rec := doRequest(s, http.MethodPost, "/api/v1/events", body)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}

	events := engine.Snapshot(core.EventFilter{}, 10)
	if len(events) != 1 {
		t.Fatalf("expected 1 buffered event, got %d", len(events))
	}
	if events[0].ID == "" || events[0].Timestamp.IsZero() || events[0].Source != "external" {
		t.Errorf("expected id/timestamp/source defaults, got %+v", events[0])
	}
}

func TestServer_SnapshotFilters(t *testing.T) {
	s, engine := testServer(t, nil)

	e1 := core.NewEvent(core.SensorReading, "s", core.PriorityLow)
	e2 := core.NewEvent(core.Alert, "s", core.PriorityCritical)
	_ = engine.Ingest(e1)
	_ = engine.Ingest(e2)

	rec := doRequest(s, http.MethodGet, "/api/v1/events?type=Alert", nil)
	var resp struct {
		Total int `json:"total"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Total != 1 {
		t.Errorf("expected 1 Alert, got %d", resp.Total)
	}

	rec = doRequest(s, http.MethodGet, "/api/v1/events?priority=Critical", nil)
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Total != 1 {
		t.Errorf("expected 1 Critical, got %d", resp.Total)
	}
}

func TestServer_SnapshotUnknownFilter(t *testing.T) {
	s, _ := testServer(t, nil)

	rec := doRequest(s, http.MethodGet, "/api/v1/events?type=bogus", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown type filter must be rejected with 400, got %d", rec.Code)
	}

	rec = doRequest(s, http.MethodGet, "/api/v1/events?priority=URGENT", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown priority filter must be rejected with 400, got %d", rec.Code)
	}
}

func TestServer_IngestInvalidJSON(t *testing.T) {
	s, _ := testServer(t, nil)
	rec := doRequest(s, http.MethodPost, "/api/v1/events", []byte(`{"type":"NotAType"}`))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown enum in body must be rejected with 400, got %d", rec.Code)
	}
}

func TestServer_DetectionsAndStatistics(t *testing.T) {
	s, engine := testServer(t, nil)

	pattern := &core.Pattern{
		ID:           "p1",
		Name:         "any reading",
		TypeSequence: []core.EventType{core.SensorReading},
		Window:       time.Minute,
	}
	if err := engine.Register(pattern); err != nil {
		t.Fatalf("register: %v", err)
	}
	_ = engine.Ingest(core.NewEvent(core.SensorReading, "s", core.PriorityLow))

	rec := doRequest(s, http.MethodGet, "/api/v1/detections", nil)
	var detResp struct {
		Detections []core.DetectionRecord `json:"detections"`
		Total      int                    `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &detResp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if detResp.Total != 1 || detResp.Detections[0].PatternID != "p1" {
		t.Errorf("expected 1 detection for p1, got %+v", detResp)
	}

	rec = doRequest(s, http.MethodGet, "/api/v1/statistics", nil)
	var stats core.Statistics
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.TotalEvents != 1 || stats.PatternsDetected != 1 {
		t.Errorf("unexpected statistics: %+v", stats)
	}
}

func TestServer_BufferClearKeepsStatistics(t *testing.T) {
	s, engine := testServer(t, nil)
	_ = engine.Ingest(core.NewEvent(core.Alert, "s", core.PriorityLow))

	rec := doRequest(s, http.MethodPost, "/api/v1/buffer/clear", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	if engine.BufferLen() != 0 {
		t.Error("expected empty buffer after clear")
	}
	if engine.Statistics().TotalEvents != 1 {
		t.Error("clear must not reset lifetime statistics")
	}
}

func TestServer_MonitorStartStop(t *testing.T) {
	s, _ := testServer(t, nil)

	rec := doRequest(s, http.MethodPost, "/api/v1/monitor/start", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("start: expected 200, got %d", rec.Code)
	}

	rec = doRequest(s, http.MethodGet, "/api/v1/monitor", nil)
	var status struct {
		Running bool `json:"running"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &status)
	if !status.Running {
		t.Error("expected monitor running after start")
	}

	rec = doRequest(s, http.MethodPost, "/api/v1/monitor/stop", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("stop: expected 200, got %d", rec.Code)
	}

	rec = doRequest(s, http.MethodGet, "/api/v1/monitor", nil)
	_ = json.Unmarshal(rec.Body.Bytes(), &status)
	if status.Running {
		t.Error("expected monitor stopped after stop")
	}
}

func TestServer_Auth(t *testing.T) {
	cfg := core.DefaultConfig()
	cfg.Server.APIKeys = []string{"test-key"}
	s, _ := testServer(t, cfg)

	// Missing key
	rec := doRequest(s, http.MethodGet, "/api/v1/status", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without key, got %d", rec.Code)
	}

	// Wrong key
	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403 with wrong key, got %d", w.Code)
	}

	// Correct key via Bearer
	req = httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	req.Header.Set("Authorization", "Bearer test-key")
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200 with valid key, got %d", w.Code)
	}

	// Correct key via X-API-Key
	req = httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	req.Header.Set("X-API-Key", "test-key")
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200 with X-API-Key, got %d", w.Code)
	}

	// Health bypasses auth
	rec = doRequest(s, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("health must bypass auth, got %d", rec.Code)
	}
}

func TestServer_MethodNotAllowed(t *testing.T) {
	s, _ := testServer(t, nil)

	for _, tc := range []struct{ method, path string }{
		{http.MethodDelete, "/api/v1/events"},
		{http.MethodPost, "/api/v1/detections"},
		{http.MethodGet, "/api/v1/buffer/clear"},
		{http.MethodGet, "/api/v1/monitor/start"},
	} {
		rec := doRequest(s, tc.method, tc.path, nil)
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s %s: expected 405, got %d", tc.method, tc.path, rec.Code)
		}
	}
}
