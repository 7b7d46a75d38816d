package sinks

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/jerry-samek/tick-frame-space-sub008/logging"
)

func TestConsoleSinkFormatsEvent(t *testing.T) {
	var buf bytes.Buffer
	sink := NewConsoleSink(&buf, logging.ConsoleConfig{})
	err := sink.Write(logging.Event{
		Type:     "simulation.collision_resolved",
		Tick:     42,
		Actor:    logging.EntityRef{ID: "17", Kind: logging.EntityKindEntity},
		Severity: logging.SeverityDebug,
		Cell:     "3,-1",
		Payload:  map[string]any{"outcome": "merge"},
	})
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	line := buf.String()
	for _, want := range []string{"simulation.collision_resolved", "tick=42", "entity:17", "cell=(3,-1)", "merge"} {
		if !strings.Contains(line, want) {
			t.Fatalf("console line missing %q: %s", want, line)
		}
	}
}

func TestJSONSinkEmitsOneObjectPerEvent(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSON(&buf, 0)
	if err := sink.Write(logging.Event{Type: "lifecycle.engine_started", Tick: 1}); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if err := sink.Close(context.Background()); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("not valid JSON: %v", err)
	}
	if decoded["type"] != "lifecycle.engine_started" {
		t.Fatalf("unexpected wire object %v", decoded)
	}
}

func TestMemorySinkCopiesEvents(t *testing.T) {
	sink := NewMemorySink()
	extra := map[string]any{"hint": "a"}
	if err := sink.Write(logging.Event{Type: "simulation.entity_removed", Extra: extra}); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	extra["hint"] = "mutated"
	events := sink.Events()
	if len(events) != 1 {
		t.Fatalf("expected one stored event, got %d", len(events))
	}
	if events[0].Extra["hint"] != "a" {
		t.Fatalf("stored event shares caller state: %+v", events[0].Extra)
	}
	sink.Reset()
	if len(sink.Events()) != 0 {
		t.Fatalf("reset did not clear events")
	}
}
