package core

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testBus(t *testing.T) *EventBus {
	t.Helper()
	cfg := &BusConfig{
		Enabled:  true,
		Embedded: true,
		DataDir:  t.TempDir(),
		Port:     -1, // random free port
	}
	bus, err := NewEventBus(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("starting embedded bus: %v", err)
	}
	t.Cleanup(func() { _ = bus.Close() })
	return bus
}

func TestEventBus_RemoteIngestFeedsEngine(t *testing.T) {
	bus := testBus(t)

	base := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	engine := newTestEngine(16, base)
	engine.AttachBus(bus)

	err := bus.SubscribeToEvents(func(ev *Event) {
		if err := engine.Ingest(ev); err != nil {
			t.Errorf("ingesting remote event: %v", err)
		}
	})
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}

	remote := eventAt("remote-1", SensorReading, PriorityHigh, base)
	if err := bus.PublishIngest(remote); err != nil {
		t.Fatalf("publishing remote event: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for engine.BufferLen() == 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if engine.BufferLen() != 1 {
		t.Fatalf("expected 1 buffered event from remote producer, got %d", engine.BufferLen())
	}

	got := engine.Snapshot(EventFilter{}, 0)
	if got[0].ID != "remote-1" {
		t.Fatalf("expected remote-1, got %s", got[0].ID)
	}

	// The engine republished remote-1 to cep.events.SensorReading. The
	// durable ingest consumer only covers cep.ingest, so that republish
	// must not loop back into the buffer.
	time.Sleep(500 * time.Millisecond)
	if engine.BufferLen() != 1 {
		t.Fatalf("engine consumed its own republished event: buffer len %d", engine.BufferLen())
	}
}

func TestEventBus_SubscribeNaksMalformedPayload(t *testing.T) {
	bus := testBus(t)

	received := make(chan *Event, 4)
	if err := bus.SubscribeToEvents(func(ev *Event) { received <- ev }); err != nil {
		t.Fatalf("subscribing: %v", err)
	}

	if _, err := bus.js.Publish("cep.ingest", []byte("{not json")); err != nil {
		t.Fatalf("publishing malformed payload: %v", err)
	}
	good := eventAt("good-1", StatusChange, PriorityLow, time.Now().UTC())
	if err := bus.PublishIngest(good); err != nil {
		t.Fatalf("publishing good event: %v", err)
	}

	select {
	case ev := <-received:
		if ev.ID != "good-1" {
			t.Fatalf("expected good-1, got %s", ev.ID)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the well-formed event")
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		m := bus.GetMetrics()
		if m["messages_naked"] >= 1 && m["messages_acked"] >= 1 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	m := bus.GetMetrics()
	t.Fatalf("expected naked>=1 and acked>=1, got %v", m)
}
