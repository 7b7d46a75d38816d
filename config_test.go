package tickframe

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jerry-samek/tick-frame-space-sub008/grid"
	"github.com/jerry-samek/tick-frame-space-sub008/logging"
	"github.com/jerry-samek/tick-frame-space-sub008/scalar"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "engine.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	normalized := cfg.normalized()
	if normalized.Dimensions != cfg.Dimensions || normalized.Workers != cfg.Workers ||
		normalized.TickDelayMillis != cfg.TickDelayMillis {
		t.Fatalf("defaults changed by normalization: %+v vs %+v", normalized, cfg)
	}
	if cfg.TickDelay() != 125*time.Millisecond {
		t.Fatalf("default tick delay = %s", cfg.TickDelay())
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
dimensions: 5
tick_delay_millis: 40
workers: 2
bounce_damping: 8
snapshot:
  every_ticks: 10
  path: /tmp/world.db
  keep: 3
logging:
  severity: debug
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Dimensions != 5 || cfg.TickDelayMillis != 40 || cfg.Workers != 2 {
		t.Fatalf("overrides lost: %+v", cfg)
	}
	if cfg.BounceDamping != 8 {
		t.Fatalf("bounce damping = %d, want 8", cfg.BounceDamping)
	}
	if cfg.Snapshot.EveryTicks != 10 || cfg.Snapshot.Keep != 3 {
		t.Fatalf("snapshot config lost: %+v", cfg.Snapshot)
	}
	// Untouched fields keep their defaults.
	if cfg.SpawnQueueCapacity != 256 || cfg.MergeCostIncrement != 1 {
		t.Fatalf("defaults lost: %+v", cfg)
	}
	if got := cfg.LoggingConfig().MinimumSeverity; got != logging.SeverityDebug {
		t.Fatalf("severity = %v, want debug", got)
	}
}

func TestLoadRejectsBadConfig(t *testing.T) {
	for _, tc := range []struct {
		name string
		body string
		want string
	}{
		{
			name: "snapshot without path",
			body: "snapshot:\n  every_ticks: 5\n",
			want: "snapshot.path",
		},
		{
			name: "unknown sink",
			body: "logging:\n  sinks: [pigeon]\n",
			want: "unknown logging sink",
		},
		{
			name: "json sink without path",
			body: "logging:\n  sinks: [json]\n",
			want: "json_path",
		},
		{
			name: "unknown severity",
			body: "logging:\n  severity: shout\n",
			want: "unknown severity",
		},
		{
			name: "seed dimension mismatch",
			body: "dimensions: 2\nseed:\n  - pos: [1]\n",
			want: "seed 0 position",
		},
		{
			name: "seed energy not a number",
			body: "dimensions: 2\nseed:\n  - pos: [1, 2]\n    energy: ten\n",
			want: "seed 0 energy",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, tc.body)
			_, err := Load(path)
			if err == nil {
				t.Fatalf("expected an error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestLoadParsesSeedList(t *testing.T) {
	path := writeConfig(t, `
dimensions: 2
seed:
  - pos: [0, 0]
    dir: [1, 0]
    energy: "10"
    cost: "1"
  - pos: [4, 4]
    energy: "340282366920938463463374607431768211456"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	reqs := cfg.SpawnRequests()
	if len(reqs) != 2 {
		t.Fatalf("got %d spawn requests, want 2", len(reqs))
	}
	if !reqs[0].Pos.Equal(grid.Ints(0, 0)) || !reqs[0].Momentum.Dir.Equal(grid.Ints(1, 0)) {
		t.Fatalf("first seed mangled: %+v", reqs[0])
	}
	if !reqs[0].Energy.Equal(scalar.FromInt64(10)) || !reqs[0].Momentum.Cost.Equal(scalar.One()) {
		t.Fatalf("first seed scalars mangled: %+v", reqs[0])
	}
	if !reqs[1].Energy.Equal(scalar.MustParse("340282366920938463463374607431768211456")) {
		t.Fatalf("second seed energy mangled: %s", reqs[1].Energy)
	}
	// Omitted direction stays empty; the store zero-fills it on spawn.
	if reqs[1].Momentum.Dir.Dim() != 0 {
		t.Fatalf("second seed grew a direction: %+v", reqs[1])
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected an error for a missing file")
	}
}

func TestNormalizedFillsZeroes(t *testing.T) {
	cfg := Config{}.normalized()
	if cfg.Dimensions != 3 || cfg.TickDelayMillis != 125 || cfg.Workers != 4 {
		t.Fatalf("zero config not defaulted: %+v", cfg)
	}
	if cfg.BounceDamping != 4 || cfg.MergeCostIncrement != 1 {
		t.Fatalf("resolver constants not defaulted: %+v", cfg)
	}
	if cfg.Logging.Severity != "info" || len(cfg.Logging.Sinks) != 1 {
		t.Fatalf("logging not defaulted: %+v", cfg.Logging)
	}
}
