package telemetry

import (
	"bytes"
	"log"
	"testing"
)

func TestWrapLogger(t *testing.T) {
	t.Run("nil logger", func(t *testing.T) {
		logger := WrapLogger(nil)
		logger.Printf("ignored %d", 42)
	})

	t.Run("forwards to logger", func(t *testing.T) {
		var buf bytes.Buffer
		base := log.New(&buf, "", 0)
		logger := WrapLogger(base)
		logger.Printf("hello %s", "world")
		if got := buf.String(); got != "hello world\n" {
			t.Fatalf("unexpected log output: %q", got)
		}
	})
}

func TestWrapMetrics(t *testing.T) {
	counters := Counters{}
	adapter := WrapMetrics(&counters)

	adapter.Add("tick_total", 2)
	adapter.Store("tick_total", 5)
	adapter.Add("tick_total", 3)

	snapshot := counters.Snapshot()
	if got := snapshot["tick_total"]; got != 8 {
		t.Fatalf("unexpected metric value: %d", got)
	}

	// Ensure nil metrics do not panic.
	var nilAdapter Metrics = WrapMetrics(nil)
	nilAdapter.Add("ignored", 1)
	nilAdapter.Store("ignored", 1)
}

func TestCountersZeroValue(t *testing.T) {
	var c Counters
	c.Add("entities_live", 4)
	if got := c.Load("entities_live"); got != 4 {
		t.Fatalf("expected 4, got %d", got)
	}
	c.Store("entities_live", 1)
	if got := c.Load("entities_live"); got != 1 {
		t.Fatalf("expected 1, got %d", got)
	}
	var nilCounters *Counters
	nilCounters.Add("ignored", 1)
	if nilCounters.Load("ignored") != 0 {
		t.Fatalf("nil counters should read zero")
	}
}
