// Package world owns the entity lattice. State is double buffered: readers
// always see the last committed tick while actions stage the next one, and
// the flip between ticks is the only point where staged writes become
// visible.
package world

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/jerry-samek/tick-frame-space-sub008/grid"
	"github.com/jerry-samek/tick-frame-space-sub008/internal/resolve"
	"github.com/jerry-samek/tick-frame-space-sub008/internal/sim"
	"github.com/jerry-samek/tick-frame-space-sub008/internal/telemetry"
	"github.com/jerry-samek/tick-frame-space-sub008/logging"
	simlog "github.com/jerry-samek/tick-frame-space-sub008/logging/simulation"
)

var (
	// ErrNegativeEnergy reports a spawn request with energy below zero.
	ErrNegativeEnergy = errors.New("world: entity energy must be non-negative")
	// ErrNegativeCost reports a spawn request with a negative momentum cost.
	ErrNegativeCost = errors.New("world: momentum cost must be non-negative")
	// ErrSpawnQueueFull reports that the live spawn ring has no room left.
	ErrSpawnQueueFull = errors.New("world: spawn queue is full")
)

const (
	entitiesMetricKey   = "world_entities"
	collisionsMetricKey = "world_collisions_total"
	spawnedMetricKey    = "world_spawned_total"
	removedMetricKey    = "world_removed_total"
)

// Config sizes the store.
type Config struct {
	// Dimensions is the lattice dimension count shared by every entity.
	Dimensions int
	// SpawnQueueCapacity bounds how many live spawn requests may wait for
	// the next tick boundary.
	SpawnQueueCapacity int
	// Resolver carries the collision constants.
	Resolver resolve.Config
}

func (c Config) normalized() Config {
	if c.Dimensions < 1 {
		c.Dimensions = 3
	}
	if c.SpawnQueueCapacity < 1 {
		c.SpawnQueueCapacity = 256
	}
	return c
}

// Deps bundles the runtime dependencies of a store.
type Deps struct {
	Publisher logging.Publisher
	Clock     logging.Clock
	Metrics   telemetry.Metrics
	Law       sim.Law
	// Submitter, when set, fans contested-cell resolution out between the
	// tick barrier and the flip. Buckets never interact, so they resolve
	// in parallel without coordination.
	Submitter sim.Submitter
}

func (d Deps) normalized() Deps {
	if d.Publisher == nil {
		d.Publisher = logging.NopPublisher()
	}
	if d.Clock == nil {
		d.Clock = logging.SystemClock{}
	}
	if d.Law == nil {
		d.Law = stationaryLaw{}
	}
	if d.Submitter == nil {
		d.Submitter = sim.Serial{}
	}
	return d
}

// stationaryLaw stands in when no law is wired; every entity keeps its cell.
type stationaryLaw struct{}

func (stationaryLaw) ProposeMove(e sim.EntityState, _ []grid.Offset) grid.Vector {
	return e.Pos
}

// cell is one occupied lattice coordinate. Several entities may share a cell
// when a bounce leaves one at a position another moved into; co-located
// entities contend normally on later ticks.
type cell struct {
	pos       grid.Vector
	occupants []*sim.EntityState
}

// arena is one buffer of committed state: a spatial index and an identity
// index over the same entity records. Cell lookups route by spatial hash
// and settle hash collisions by exact coordinate equality.
type arena struct {
	cells    map[uint64][]*cell
	entities map[sim.EntityID]*sim.EntityState
}

func newArena() *arena {
	return &arena{
		cells:    make(map[uint64][]*cell),
		entities: make(map[sim.EntityID]*sim.EntityState),
	}
}

func (a *arena) reset() {
	clear(a.cells)
	clear(a.entities)
}

func (a *arena) place(st sim.EntityState) {
	record := &st
	a.entities[st.ID] = record
	hash := st.Pos.Hash64()
	for _, c := range a.cells[hash] {
		if c.pos.Equal(st.Pos) {
			c.occupants = append(c.occupants, record)
			return
		}
	}
	a.cells[hash] = append(a.cells[hash], &cell{pos: st.Pos, occupants: []*sim.EntityState{record}})
}

func (a *arena) at(pos grid.Vector) []*sim.EntityState {
	for _, c := range a.cells[pos.Hash64()] {
		if c.pos.Equal(pos) {
			return c.occupants
		}
	}
	return nil
}

// proposalBucket gathers every claimant of one destination cell.
type proposalBucket struct {
	dest      grid.Vector
	claimants []sim.EntityState
}

// Store is the double-buffered entity registry. During a tick, proposal
// actions stage destinations into a multimap keyed by destination cell;
// Commit resolves each contested bucket and writes the results into the
// staging arena; Flip swaps the arenas.
type Store struct {
	cfg     Config
	pub     logging.Publisher
	clock   logging.Clock
	metrics telemetry.Metrics
	law     sim.Law
	submit  sim.Submitter
	offsets []grid.Offset

	mu      sync.RWMutex
	arenas  [2]*arena
	current int

	nextID atomic.Uint64

	spawns *sim.SpawnBuffer

	propMu    sync.Mutex
	proposals map[uint64][]*proposalBucket
	births    []sim.EntityState
}

// NewStore builds an empty lattice of the configured dimension.
func NewStore(cfg Config, deps Deps) (*Store, error) {
	cfg = cfg.normalized()
	deps = deps.normalized()
	offsets, err := grid.Offsets(cfg.Dimensions)
	if err != nil {
		return nil, err
	}
	return &Store{
		cfg:       cfg,
		pub:       deps.Publisher,
		clock:     deps.Clock,
		metrics:   deps.Metrics,
		law:       deps.Law,
		submit:    deps.Submitter,
		offsets:   offsets,
		arenas:    [2]*arena{newArena(), newArena()},
		spawns:    sim.NewSpawnBuffer(cfg.SpawnQueueCapacity, deps.Metrics),
		proposals: make(map[uint64][]*proposalBucket),
	}, nil
}

// Dim returns the lattice dimension count.
func (s *Store) Dim() int {
	return s.cfg.Dimensions
}

// Count reports the number of entities in the committed arena.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.arenas[s.current].entities)
}

// Get returns the committed state of one entity.
func (s *Store) Get(id sim.EntityID) (sim.EntityState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if st, ok := s.arenas[s.current].entities[id]; ok {
		return *st, true
	}
	return sim.EntityState{}, false
}

// At returns the committed occupants of one cell, highest priority first.
func (s *Store) At(pos grid.Vector) []sim.EntityState {
	s.mu.RLock()
	occupants := s.arenas[s.current].at(pos)
	out := make([]sim.EntityState, len(occupants))
	for i, st := range occupants {
		out[i] = *st
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		return resolve.HigherPriority(out[i], out[j])
	})
	return out
}

// Entities returns every committed entity in ascending ID order, the order
// snapshots serialize in.
func (s *Store) Entities() []sim.EntityState {
	s.mu.RLock()
	cur := s.arenas[s.current]
	out := make([]sim.EntityState, 0, len(cur.entities))
	for _, st := range cur.entities {
		out = append(out, *st)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Spawn inserts an entity into the committed arena directly. It is the
// seeding path for building an initial world before the scheduler runs;
// once ticks are live, use QueueSpawn.
func (s *Store) Spawn(req sim.SpawnRequest) (sim.EntityState, error) {
	norm, err := s.validateRequest(req)
	if err != nil {
		return sim.EntityState{}, err
	}
	st := sim.EntityState{
		ID:       s.mintID(),
		Pos:      norm.Pos,
		Energy:   norm.Energy,
		Momentum: norm.Momentum,
	}
	s.mu.Lock()
	s.arenas[s.current].place(st)
	count := len(s.arenas[s.current].entities)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.Add(spawnedMetricKey, 1)
		s.metrics.Store(entitiesMetricKey, uint64(count))
	}
	s.publishSpawn(0, st)
	return st, nil
}

// QueueSpawn stages a spawn for the next tick boundary. Requests are
// validated here so the drain inside the tick cannot fail.
func (s *Store) QueueSpawn(req sim.SpawnRequest) error {
	norm, err := s.validateRequest(req)
	if err != nil {
		return err
	}
	if !s.spawns.Push(norm) {
		return ErrSpawnQueueFull
	}
	return nil
}

// Restore replaces the committed population with the given states, keeping
// their physical fields and minting fresh ascending IDs in record order.
// Pending spawns and proposals are discarded. Restore must not race a live
// tick; the engine only calls it while the scheduler is stopped.
func (s *Store) Restore(states []sim.EntityState) error {
	for _, st := range states {
		if st.Pos.Dim() != s.cfg.Dimensions || st.Momentum.Dir.Dim() != s.cfg.Dimensions {
			return fmt.Errorf("world: restored entity %d has %d-dimensional state in a %d-dimensional lattice: %w",
				st.ID, st.Pos.Dim(), s.cfg.Dimensions, grid.ErrDimensionMismatch)
		}
		if st.Energy.Sign() < 0 {
			return ErrNegativeEnergy
		}
		if st.Momentum.Cost.Sign() < 0 {
			return ErrNegativeCost
		}
	}

	s.spawns.Drain()
	s.propMu.Lock()
	clear(s.proposals)
	s.births = nil
	s.propMu.Unlock()

	s.mu.Lock()
	s.arenas[0].reset()
	s.arenas[1].reset()
	s.current = 0
	s.nextID.Store(0)
	for _, st := range states {
		st.ID = s.mintID()
		s.arenas[s.current].place(st)
	}
	count := len(s.arenas[s.current].entities)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.Store(entitiesMetricKey, uint64(count))
	}
	return nil
}

func (s *Store) validateRequest(req sim.SpawnRequest) (sim.SpawnRequest, error) {
	if req.Pos.Dim() != s.cfg.Dimensions {
		return sim.SpawnRequest{}, fmt.Errorf("world: spawn position has %d dimensions, want %d: %w",
			req.Pos.Dim(), s.cfg.Dimensions, grid.ErrDimensionMismatch)
	}
	if req.Energy.Sign() < 0 {
		return sim.SpawnRequest{}, ErrNegativeEnergy
	}
	if req.Momentum.Cost.Sign() < 0 {
		return sim.SpawnRequest{}, ErrNegativeCost
	}
	if req.Momentum.Dir.Dim() == 0 {
		req.Momentum.Dir = grid.Zero(s.cfg.Dimensions)
	} else if req.Momentum.Dir.Dim() != s.cfg.Dimensions {
		return sim.SpawnRequest{}, fmt.Errorf("world: momentum direction has %d dimensions, want %d: %w",
			req.Momentum.Dir.Dim(), s.cfg.Dimensions, grid.ErrDimensionMismatch)
	}
	return req, nil
}

func (s *Store) mintID() sim.EntityID {
	return sim.EntityID(s.nextID.Add(1))
}

func (s *Store) publishSpawn(tick uint64, st sim.EntityState) {
	simlog.EntitySpawned(context.Background(), s.pub, tick, st.Pos.String(), entityRef(st.ID), simlog.EntitySpawnedPayload{
		Energy:     st.Energy.String(),
		Generation: st.Generation.String(),
	}, nil)
}

func entityRef(id sim.EntityID) logging.EntityRef {
	return logging.EntityRef{
		ID:   strconv.FormatUint(uint64(id), 10),
		Kind: logging.EntityKindEntity,
	}
}
