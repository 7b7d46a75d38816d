package tickframe

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jerry-samek/tick-frame-space-sub008/grid"
	"github.com/jerry-samek/tick-frame-space-sub008/internal/resolve"
	"github.com/jerry-samek/tick-frame-space-sub008/logging"
	"github.com/jerry-samek/tick-frame-space-sub008/scalar"
)

// Config captures every engine tunable. Zero values mean "use the default";
// normalized() fills them in, so a partially specified YAML file works.
type Config struct {
	// Dimensions is the lattice dimension count shared by every entity.
	Dimensions int `yaml:"dimensions"`
	// TickDelayMillis is the rest interval between ticks. The cadence is
	// fixed delay: a slow tick postpones the next one.
	TickDelayMillis int64 `yaml:"tick_delay_millis"`
	// Workers sizes the per-tick action pool.
	Workers int `yaml:"workers"`
	// SpawnQueueCapacity bounds requests waiting for the next tick boundary.
	SpawnQueueCapacity int `yaml:"spawn_queue_capacity"`
	// BounceDamping divides relative momentum when charging bounce energy.
	BounceDamping int64 `yaml:"bounce_damping"`
	// MergeCostIncrement is added to momentum cost on every merge.
	MergeCostIncrement int64 `yaml:"merge_cost_increment"`

	Snapshot SnapshotConfig `yaml:"snapshot"`
	Feed     FeedConfig     `yaml:"feed"`
	Logging  LogConfig      `yaml:"logging"`

	// Seed lists entities spawned into a fresh world. A run restored from
	// the archive ignores it.
	Seed []SeedEntity `yaml:"seed"`
}

// SeedEntity is one configured entity. Energy and cost are decimal strings
// so seeds are not capped at int64.
type SeedEntity struct {
	Pos    []int64 `yaml:"pos"`
	Dir    []int64 `yaml:"dir"`
	Energy string  `yaml:"energy"`
	Cost   string  `yaml:"cost"`
}

// SnapshotConfig controls the periodic archive.
type SnapshotConfig struct {
	// Compress gzips snapshot payloads.
	Compress bool `yaml:"compress"`
	// EveryTicks archives a snapshot each time the tick count is a
	// multiple of it. Zero disables archiving.
	EveryTicks uint64 `yaml:"every_ticks"`
	// Path is the SQLite database file. Required when EveryTicks is set.
	Path string `yaml:"path"`
	// Keep prunes the archive down to the newest Keep snapshots after
	// each write. Zero keeps everything.
	Keep int64 `yaml:"keep"`
}

// FeedConfig controls the websocket observer feed.
type FeedConfig struct {
	Enabled bool `yaml:"enabled"`
	// Addr is the listen address of the HTTP server that mounts the feed.
	Addr string `yaml:"addr"`
}

// LogConfig mirrors the logging router knobs in file-friendly form.
type LogConfig struct {
	Sinks      []string `yaml:"sinks"`
	Severity   string   `yaml:"severity"`
	BufferSize int      `yaml:"buffer_size"`
	// JSONPath receives NDJSON events when the json sink is enabled.
	JSONPath string `yaml:"json_path"`
	Color    bool   `yaml:"color"`
}

// DefaultConfig returns the reference tuning.
func DefaultConfig() Config {
	return Config{
		Dimensions:         3,
		TickDelayMillis:    125,
		Workers:            4,
		SpawnQueueCapacity: 256,
		BounceDamping:      4,
		MergeCostIncrement: 1,
		Snapshot: SnapshotConfig{
			Compress: true,
		},
		Feed: FeedConfig{
			Addr: ":4000",
		},
		Logging: LogConfig{
			Sinks:      []string{"console"},
			Severity:   "info",
			BufferSize: 512,
		},
	}
}

// Load reads a YAML config file over the defaults and validates the result.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	cfg = cfg.normalized()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// normalized returns a config with defaults applied.
func (c Config) normalized() Config {
	normalized := c
	if normalized.Dimensions < 1 {
		normalized.Dimensions = 3
	}
	if normalized.TickDelayMillis <= 0 {
		normalized.TickDelayMillis = 125
	}
	if normalized.Workers < 1 {
		normalized.Workers = 4
	}
	if normalized.SpawnQueueCapacity < 1 {
		normalized.SpawnQueueCapacity = 256
	}
	if normalized.BounceDamping < 1 {
		normalized.BounceDamping = 4
	}
	if normalized.MergeCostIncrement < 1 {
		normalized.MergeCostIncrement = 1
	}
	if normalized.Snapshot.Keep < 0 {
		normalized.Snapshot.Keep = 0
	}
	if len(normalized.Logging.Sinks) == 0 {
		normalized.Logging.Sinks = []string{"console"}
	}
	if normalized.Logging.Severity == "" {
		normalized.Logging.Severity = "info"
	}
	if normalized.Logging.BufferSize <= 0 {
		normalized.Logging.BufferSize = 512
	}
	if normalized.Feed.Addr == "" {
		normalized.Feed.Addr = ":4000"
	}
	return normalized
}

// Validate checks the cross-field constraints a normalized config can still
// get wrong.
func (c Config) Validate() error {
	if c.Snapshot.EveryTicks > 0 && c.Snapshot.Path == "" {
		return fmt.Errorf("config: snapshot.every_ticks is set but snapshot.path is empty")
	}
	if _, err := parseSeverity(c.Logging.Severity); err != nil {
		return err
	}
	for _, sink := range c.Logging.Sinks {
		switch sink {
		case "console", "json":
		default:
			return fmt.Errorf("config: unknown logging sink %q (valid: console, json)", sink)
		}
	}
	if c.Logging.JSONPath == "" {
		for _, sink := range c.Logging.Sinks {
			if sink == "json" {
				return fmt.Errorf("config: json sink enabled but logging.json_path is empty")
			}
		}
	}
	for i, seed := range c.Seed {
		if len(seed.Pos) != c.Dimensions {
			return fmt.Errorf("config: seed %d position has %d components, want %d", i, len(seed.Pos), c.Dimensions)
		}
		if len(seed.Dir) != 0 && len(seed.Dir) != c.Dimensions {
			return fmt.Errorf("config: seed %d direction has %d components, want %d", i, len(seed.Dir), c.Dimensions)
		}
		if seed.Energy != "" {
			if _, err := scalar.Parse(seed.Energy); err != nil {
				return fmt.Errorf("config: seed %d energy: %w", i, err)
			}
		}
		if seed.Cost != "" {
			if _, err := scalar.Parse(seed.Cost); err != nil {
				return fmt.Errorf("config: seed %d cost: %w", i, err)
			}
		}
	}
	return nil
}

// SpawnRequests converts the configured seed list. It assumes a validated
// config; unparseable scalars become zero.
func (c Config) SpawnRequests() []SpawnRequest {
	if len(c.Seed) == 0 {
		return nil
	}
	reqs := make([]SpawnRequest, 0, len(c.Seed))
	for _, seed := range c.Seed {
		req := SpawnRequest{
			Pos:    grid.Ints(seed.Pos...),
			Energy: parseScalar(seed.Energy),
			Momentum: Momentum{
				Cost: parseScalar(seed.Cost),
			},
		}
		if len(seed.Dir) > 0 {
			req.Momentum.Dir = grid.Ints(seed.Dir...)
		}
		reqs = append(reqs, req)
	}
	return reqs
}

func parseScalar(s string) scalar.Scalar {
	if s == "" {
		return scalar.Zero()
	}
	v, err := scalar.Parse(s)
	if err != nil {
		return scalar.Zero()
	}
	return v
}

// TickDelay returns the configured delay as a duration.
func (c Config) TickDelay() time.Duration {
	return time.Duration(c.TickDelayMillis) * time.Millisecond
}

// resolverConfig bridges the plain-integer tunables to the resolver.
func (c Config) resolverConfig() resolve.Config {
	return resolve.Config{
		BounceDamping:      scalar.FromInt64(c.BounceDamping),
		MergeCostIncrement: scalar.FromInt64(c.MergeCostIncrement),
	}
}

// LoggingConfig bridges the file-friendly knobs to the router config.
func (c Config) LoggingConfig() logging.Config {
	severity, err := parseSeverity(c.Logging.Severity)
	if err != nil {
		severity = logging.SeverityInfo
	}
	cfg := logging.DefaultConfig()
	cfg.EnabledSinks = append([]string(nil), c.Logging.Sinks...)
	cfg.BufferSize = c.Logging.BufferSize
	cfg.MinimumSeverity = severity
	cfg.JSON.FilePath = c.Logging.JSONPath
	cfg.Console.UseColor = c.Logging.Color
	return cfg
}

func parseSeverity(s string) (logging.Severity, error) {
	switch s {
	case "debug":
		return logging.SeverityDebug, nil
	case "", "info":
		return logging.SeverityInfo, nil
	case "warn":
		return logging.SeverityWarn, nil
	case "error":
		return logging.SeverityError, nil
	default:
		return logging.SeverityInfo, fmt.Errorf("config: unknown severity %q (valid: debug, info, warn, error)", s)
	}
}
