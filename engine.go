// Package tickframe runs discrete-tick simulations of energy-bearing
// entities on an unbounded N-dimensional lattice. Entities propose moves
// under a pluggable law, contested cells resolve to merge, bounce, or
// disappear outcomes, and every tick commits atomically: observers never
// see half a tick.
package tickframe

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/jerry-samek/tick-frame-space-sub008/grid"
	"github.com/jerry-samek/tick-frame-space-sub008/internal/archive"
	"github.com/jerry-samek/tick-frame-space-sub008/internal/feed"
	"github.com/jerry-samek/tick-frame-space-sub008/internal/sim"
	"github.com/jerry-samek/tick-frame-space-sub008/internal/snapshot"
	"github.com/jerry-samek/tick-frame-space-sub008/internal/telemetry"
	"github.com/jerry-samek/tick-frame-space-sub008/internal/world"
	"github.com/jerry-samek/tick-frame-space-sub008/logging"
	"github.com/jerry-samek/tick-frame-space-sub008/logging/lifecycle"
	"github.com/jerry-samek/tick-frame-space-sub008/logging/simulation"
	"github.com/jerry-samek/tick-frame-space-sub008/logging/storage"
)

// EngineDeps injects the engine's collaborators. Every field may be nil:
// events go to the nop publisher, metrics land in the engine's own counter
// set, and movement falls back to InertialLaw.
type EngineDeps struct {
	Logger    telemetry.Logger
	Metrics   telemetry.Metrics
	Publisher logging.Publisher
	Clock     logging.Clock
	Law       Law
}

// Engine composes the store, resolver, scheduler, and the optional archive
// and feed into one runnable simulation.
type Engine struct {
	cfg      Config
	logger   telemetry.Logger
	metrics  telemetry.Metrics
	pub      logging.Publisher
	clock    logging.Clock
	counters *telemetry.Counters

	store     *world.Store
	substrate *world.Substrate
	sched     *sim.Scheduler
	arch      *archive.Archive
	feed      *feed.Feed

	mu        sync.Mutex
	started   bool
	closed    bool
	lastTick  uint64
	lastStats CommitStats

	stopOnce  sync.Once
	closeOnce sync.Once
	closeErr  error
}

// NewEngine builds an engine from the config. The archive is opened when
// snapshot.every_ticks is set and the feed is built when feed.enabled is;
// neither has any cost otherwise.
func NewEngine(cfg Config, deps EngineDeps) (*Engine, error) {
	cfg = cfg.normalized()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Publisher == nil {
		deps.Publisher = logging.NopPublisher()
	}
	if deps.Clock == nil {
		deps.Clock = logging.SystemClock{}
	}
	law := deps.Law
	if law == nil {
		law = InertialLaw()
	}

	e := &Engine{
		cfg:      cfg,
		logger:   deps.Logger,
		pub:      deps.Publisher,
		clock:    deps.Clock,
		counters: &telemetry.Counters{},
	}
	e.metrics = deps.Metrics
	if e.metrics == nil {
		e.metrics = telemetry.WrapMetrics(e.counters)
	}

	simDeps := sim.Deps{
		Logger:    e.logger,
		Metrics:   e.metrics,
		Publisher: e.pub,
		Clock:     e.clock,
	}
	e.sched = sim.NewScheduler(sim.SchedulerConfig{
		TickDelay: cfg.TickDelay(),
		Workers:   cfg.Workers,
	}, simDeps, sim.Hooks{AfterTick: e.afterTick})

	store, err := world.NewStore(world.Config{
		Dimensions:         cfg.Dimensions,
		SpawnQueueCapacity: cfg.SpawnQueueCapacity,
		Resolver:           cfg.resolverConfig(),
	}, world.Deps{
		Publisher: e.pub,
		Clock:     e.clock,
		Metrics:   e.metrics,
		Law:       law,
		Submitter: e.sched.Pool(),
	})
	if err != nil {
		e.sched.Pool().Close()
		return nil, err
	}
	e.store = store
	e.substrate = world.NewSubstrate(store)
	e.sched.Register(store)
	e.sched.Register(e.substrate)

	if cfg.Snapshot.EveryTicks > 0 {
		arch, err := archive.Open(cfg.Snapshot.Path, archive.Options{Compress: cfg.Snapshot.Compress})
		if err != nil {
			e.sched.Pool().Close()
			return nil, err
		}
		e.arch = arch
	}
	if cfg.Feed.Enabled {
		e.feed = feed.New(feed.Deps{
			Logger:    e.logger,
			Metrics:   e.metrics,
			Publisher: e.pub,
		})
	}
	return e, nil
}

// Seed spawns entities directly into the committed world. It only works
// while the run loop is not live; during a run use QueueSpawn, which lands
// the entities at the next tick boundary.
func (e *Engine) Seed(reqs ...SpawnRequest) ([]EntityState, error) {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return nil, fmt.Errorf("engine: seed while running: %w", ErrAlreadyRunning)
	}
	e.mu.Unlock()

	out := make([]EntityState, 0, len(reqs))
	for _, req := range reqs {
		st, err := e.store.Spawn(req)
		if err != nil {
			return out, err
		}
		out = append(out, st)
	}
	e.substrate.Observe()
	return out, nil
}

// QueueSpawn buffers a spawn request for the next tick boundary.
func (e *Engine) QueueSpawn(req SpawnRequest) error {
	return e.store.QueueSpawn(req)
}

// Restore replaces the world with a snapshot's population and moves the
// clock so the next tick is snap.Tick+1. It must run before any tick.
func (e *Engine) Restore(snap Snapshot) error {
	return e.restore(snap, "snapshot")
}

// RestoreLatest loads the newest archived snapshot and restores it. The
// returned tick is the snapshot's tick.
func (e *Engine) RestoreLatest(ctx context.Context) (uint64, error) {
	if e.arch == nil {
		return 0, fmt.Errorf("engine: no archive configured: %w", archive.ErrNotFound)
	}
	snap, err := e.arch.Latest(ctx)
	if err != nil {
		return 0, err
	}
	if err := e.restore(snap, "archive"); err != nil {
		return 0, err
	}
	return snap.Tick, nil
}

func (e *Engine) restore(snap Snapshot, source string) error {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return fmt.Errorf("engine: restore while running: %w", ErrAlreadyRunning)
	}
	e.mu.Unlock()
	if e.sched.Tick() != 0 {
		return fmt.Errorf("engine: restore after tick %d has run", e.sched.Tick())
	}
	if snap.Dim != e.store.Dim() {
		return fmt.Errorf("engine: snapshot is %d-dimensional, world is %d-dimensional: %w",
			snap.Dim, e.store.Dim(), grid.ErrDimensionMismatch)
	}
	if err := e.store.Restore(snap.Entities); err != nil {
		return err
	}
	e.sched.SetBaseTick(snap.Tick)
	e.substrate.Reset()
	e.substrate.Observe()

	e.mu.Lock()
	e.lastTick = snap.Tick
	e.lastStats = CommitStats{Entities: len(snap.Entities)}
	e.mu.Unlock()

	lifecycle.WorldRestored(context.Background(), e.pub, snap.Tick, lifecycle.WorldRestoredPayload{
		Entities:  len(snap.Entities),
		Dimension: snap.Dim,
		Source:    source,
	}, nil)
	return nil
}

// Start launches the timed run loop.
func (e *Engine) Start() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return fmt.Errorf("engine: start after close")
	}
	if e.started {
		e.mu.Unlock()
		return ErrAlreadyRunning
	}
	e.started = true
	e.mu.Unlock()

	if err := e.sched.Start(); err != nil {
		return err
	}
	lifecycle.EngineStarted(context.Background(), e.pub, e.sched.Tick(), lifecycle.EngineStartedPayload{
		Dimension:       e.cfg.Dimensions,
		Entities:        e.store.Count(),
		TickDelayMillis: e.cfg.TickDelayMillis,
		Workers:         e.cfg.Workers,
	}, nil)
	return nil
}

// Step advances exactly one tick synchronously, including its commit and
// flip. It is how tests and the profiling harness drive the engine without
// the timer, and it cannot be mixed with Start.
func (e *Engine) Step() (TickResult, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return TickResult{}, fmt.Errorf("engine: step after close")
	}
	e.mu.Unlock()
	return e.sched.Advance()
}

// Stop halts the run loop and waits for the in-flight tick to finish. It is
// idempotent and also settles the bookkeeping when the loop halted itself
// on a fatal error.
func (e *Engine) Stop() {
	e.mu.Lock()
	started := e.started
	e.mu.Unlock()

	e.sched.Stop()
	if started {
		<-e.sched.Done()
		e.stopOnce.Do(func() {
			reason := "stop"
			if err := e.sched.Err(); err != nil {
				reason = err.Error()
			}
			lifecycle.EngineStopped(context.Background(), e.pub, e.Tick(), lifecycle.EngineStoppedPayload{
				Reason: reason,
			}, nil)
		})
	}
}

// Close stops the run, disconnects observers, and releases the archive.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		e.Stop()
		e.mu.Lock()
		e.closed = true
		e.mu.Unlock()
		e.sched.Pool().Close()
		if e.feed != nil {
			e.feed.Close()
		}
		if e.arch != nil {
			e.closeErr = e.arch.Close()
		}
	})
	return e.closeErr
}

// afterTick is the scheduler's commit hook: it runs on the scheduler
// goroutine once every action of the tick has joined. A commit error is
// fatal and halts the run with the tick uncommitted.
func (e *Engine) afterTick(result TickResult) error {
	stats, err := e.store.Commit(result.Tick)
	if err != nil {
		return err
	}
	e.store.Flip()

	e.mu.Lock()
	e.lastTick = result.Tick
	e.lastStats = stats
	e.mu.Unlock()

	e.metrics.Store("engine_tick_duration_micros", uint64(result.Duration.Microseconds()))

	ctx := context.Background()
	simulation.TickCompleted(ctx, e.pub, result.Tick, simulation.TickCompletedPayload{
		DurationMicros: result.Duration.Microseconds(),
		Entities:       stats.Entities,
		Collisions:     stats.Collisions,
		Spawned:        stats.Spawned,
		Removed:        stats.Removed,
	}, nil)

	archiving := e.arch != nil && result.Tick%e.cfg.Snapshot.EveryTicks == 0
	if archiving || e.feed != nil {
		snap := snapshot.Capture(e.store, result.Tick)
		if archiving {
			e.archiveSnapshot(ctx, snap)
		}
		if e.feed != nil {
			e.broadcastSnapshot(snap)
		}
	}
	return nil
}

// archiveSnapshot persists one snapshot. Archive trouble is reported, not
// fatal: the simulation keeps running without history.
func (e *Engine) archiveSnapshot(ctx context.Context, snap Snapshot) {
	start := e.clock.Now()
	size, err := e.arch.Put(ctx, snap)
	if err != nil {
		if e.logger != nil {
			e.logger.Printf("[engine] archiving tick %d failed: %v", snap.Tick, err)
		}
		e.metrics.Add("engine_snapshot_failed_total", 1)
		storage.SnapshotFailed(ctx, e.pub, snap.Tick, storage.SnapshotFailedPayload{
			Error: err.Error(),
		}, nil)
		return
	}
	e.metrics.Add("engine_snapshot_total", 1)
	e.metrics.Add("engine_snapshot_bytes_total", uint64(size))
	storage.SnapshotSaved(ctx, e.pub, snap.Tick, storage.SnapshotSavedPayload{
		Entities:   len(snap.Entities),
		Bytes:      size,
		Compressed: e.cfg.Snapshot.Compress,
		ElapsedMs:  e.clock.Now().Sub(start).Milliseconds(),
	}, nil)

	if keep := e.cfg.Snapshot.Keep; keep > 0 {
		deleted, oldest, err := e.arch.Prune(ctx, keep)
		if err != nil {
			if e.logger != nil {
				e.logger.Printf("[engine] pruning archive failed: %v", err)
			}
			return
		}
		if deleted > 0 {
			storage.ArchivePruned(ctx, e.pub, snap.Tick, storage.ArchivePrunedPayload{
				Deleted: deleted,
				Keep:    keep,
				Oldest:  oldest,
			}, nil)
		}
	}
}

func (e *Engine) broadcastSnapshot(snap Snapshot) {
	var buf bytes.Buffer
	if err := snapshot.Encode(&buf, snap, e.cfg.Snapshot.Compress); err != nil {
		if e.logger != nil {
			e.logger.Printf("[engine] encoding feed frame for tick %d failed: %v", snap.Tick, err)
		}
		return
	}
	e.feed.Broadcast(snap.Tick, buf.Bytes())
}

// CaptureSnapshot copies the committed world as of the last finished tick.
func (e *Engine) CaptureSnapshot() Snapshot {
	e.mu.Lock()
	tick := e.lastTick
	e.mu.Unlock()
	return snapshot.Capture(e.store, tick)
}

// Tick reports the last committed tick.
func (e *Engine) Tick() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastTick
}

// Stats reports the commit statistics of the last finished tick.
func (e *Engine) Stats() CommitStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastStats
}

// Bounds reports the substrate extent observed so far.
func (e *Engine) Bounds() (Bounds, bool) {
	return e.substrate.Bounds()
}

// Entities lists the committed population in ascending ID order.
func (e *Engine) Entities() []EntityState {
	return e.store.Entities()
}

// Count reports the committed population size.
func (e *Engine) Count() int {
	return e.store.Count()
}

// Dim reports the lattice dimension count.
func (e *Engine) Dim() int {
	return e.store.Dim()
}

// Telemetry exposes the engine's counter set. When EngineDeps carried a
// custom Metrics implementation these counters stay empty.
func (e *Engine) Telemetry() *telemetry.Counters {
	return e.counters
}

// FeedHandler returns the websocket feed endpoint, or nil when the feed is
// disabled.
func (e *Engine) FeedHandler() http.Handler {
	if e.feed == nil {
		return nil
	}
	return e.feed
}

// Running reports whether the timed loop is live.
func (e *Engine) Running() bool {
	return e.sched.Running()
}

// Done closes when the run loop exits, by Stop or by a fatal error.
func (e *Engine) Done() <-chan struct{} {
	return e.sched.Done()
}

// Err returns the fatal error that halted the run, or nil.
func (e *Engine) Err() error {
	return e.sched.Err()
}
