package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestRunStopsOnContextCancel(t *testing.T) {
	dir := t.TempDir()
	eventsPath := filepath.Join(dir, "events.ndjson")
	configPath := filepath.Join(dir, "engine.yaml")
	body := `
dimensions: 2
tick_delay_millis: 1
logging:
  sinks: [json]
  json_path: ` + eventsPath + `
seed:
  - pos: [0, 0]
    dir: [1, 0]
    energy: "5"
    cost: "1"
`
	if err := os.WriteFile(configPath, []byte(body), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, Config{ConfigPath: configPath})
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Run did not return after cancel")
	}

	data, err := os.ReadFile(eventsPath)
	if err != nil {
		t.Fatalf("reading event log: %v", err)
	}
	if !strings.Contains(string(data), "lifecycle.engine_started") {
		t.Fatalf("event log missing engine start:\n%s", data)
	}
	if !strings.Contains(string(data), "lifecycle.engine_stopped") {
		t.Fatalf("event log missing engine stop:\n%s", data)
	}
}

func TestRunRejectsBrokenConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "engine.yaml")
	if err := os.WriteFile(configPath, []byte("snapshot:\n  every_ticks: 5\n"), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	if err := Run(context.Background(), Config{ConfigPath: configPath}); err == nil {
		t.Fatalf("expected a config error")
	}
}
