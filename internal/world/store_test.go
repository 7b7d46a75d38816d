package world

import (
	"context"
	"errors"
	"testing"

	"github.com/jerry-samek/tick-frame-space-sub008/grid"
	"github.com/jerry-samek/tick-frame-space-sub008/internal/sim"
	"github.com/jerry-samek/tick-frame-space-sub008/logging"
	"github.com/jerry-samek/tick-frame-space-sub008/scalar"
)

// driftLaw steps one cell along the dominant momentum axis, staying put at
// zero momentum.
var driftLaw = sim.LawFunc(func(e sim.EntityState, _ []grid.Offset) grid.Vector {
	step := e.Momentum.Dir.NormalizeMaxComponent()
	dest, err := e.Pos.Add(step)
	if err != nil {
		return e.Pos
	}
	return dest
})

func newTestStore(t *testing.T, law sim.Law) *Store {
	t.Helper()
	s, err := NewStore(Config{Dimensions: 2, SpawnQueueCapacity: 4}, Deps{Law: law})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func seed(t *testing.T, s *Store, pos grid.Vector, energy int64, dir grid.Vector) sim.EntityState {
	t.Helper()
	st, err := s.Spawn(sim.SpawnRequest{
		Pos:      pos,
		Energy:   scalar.FromInt64(energy),
		Momentum: sim.Momentum{Dir: dir},
	})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	return st
}

func runTick(t *testing.T, s *Store, tick uint64) CommitStats {
	t.Helper()
	for _, action := range s.ActionsForTick(tick) {
		if err := action.Run(); err != nil {
			t.Fatalf("action: %v", err)
		}
	}
	stats, err := s.Commit(tick)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	s.Flip()
	return stats
}

func TestSeedAndReadBack(t *testing.T) {
	s := newTestStore(t, nil)

	st := seed(t, s, grid.Ints(2, -3), 10, grid.Ints(1, 0))
	if st.ID != 1 {
		t.Fatalf("first minted ID = %d, want 1", st.ID)
	}
	if got := s.Count(); got != 1 {
		t.Fatalf("Count = %d, want 1", got)
	}
	got, ok := s.Get(st.ID)
	if !ok || !got.Pos.Equal(grid.Ints(2, -3)) {
		t.Fatalf("Get(%d) = %+v ok=%v", st.ID, got, ok)
	}
	if occ := s.At(grid.Ints(2, -3)); len(occ) != 1 || occ[0].ID != st.ID {
		t.Fatalf("At = %+v, want the seeded entity", occ)
	}
}

func TestSpawnValidation(t *testing.T) {
	s := newTestStore(t, nil)

	_, err := s.Spawn(sim.SpawnRequest{Pos: grid.Ints(1, 2, 3), Energy: scalar.FromInt64(1)})
	if !errors.Is(err, grid.ErrDimensionMismatch) {
		t.Fatalf("3D position in 2D store: err = %v", err)
	}

	_, err = s.Spawn(sim.SpawnRequest{Pos: grid.Ints(0, 0), Energy: scalar.FromInt64(-1)})
	if !errors.Is(err, ErrNegativeEnergy) {
		t.Fatalf("negative energy: err = %v", err)
	}

	_, err = s.Spawn(sim.SpawnRequest{
		Pos:      grid.Ints(0, 0),
		Energy:   scalar.FromInt64(1),
		Momentum: sim.Momentum{Dir: grid.Ints(1)},
	})
	if !errors.Is(err, grid.ErrDimensionMismatch) {
		t.Fatalf("1D momentum in 2D store: err = %v", err)
	}

	st, err := s.Spawn(sim.SpawnRequest{Pos: grid.Ints(0, 0), Energy: scalar.FromInt64(1)})
	if err != nil {
		t.Fatalf("Spawn without momentum: %v", err)
	}
	if !st.Momentum.Dir.Equal(grid.Ints(0, 0)) {
		t.Fatalf("defaulted momentum dir = %s, want origin", st.Momentum.Dir)
	}
}

func TestTickWritesInvisibleUntilFlip(t *testing.T) {
	s := newTestStore(t, driftLaw)
	st := seed(t, s, grid.Ints(0, 0), 10, grid.Ints(1, 0))

	for _, action := range s.ActionsForTick(1) {
		if err := action.Run(); err != nil {
			t.Fatalf("action: %v", err)
		}
	}
	if occ := s.At(grid.Ints(0, 0)); len(occ) != 1 {
		t.Fatal("proposal staged during the tick must not move the entity")
	}

	if _, err := s.Commit(1); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if occ := s.At(grid.Ints(0, 0)); len(occ) != 1 {
		t.Fatal("committed but unflipped state leaked to readers")
	}
	if occ := s.At(grid.Ints(1, 0)); len(occ) != 0 {
		t.Fatal("destination occupied before the flip")
	}

	s.Flip()
	if occ := s.At(grid.Ints(0, 0)); len(occ) != 0 {
		t.Fatal("origin still occupied after the flip")
	}
	occ := s.At(grid.Ints(1, 0))
	if len(occ) != 1 || occ[0].ID != st.ID {
		t.Fatalf("destination after flip = %+v, want entity %d", occ, st.ID)
	}
}

func TestContestedCellMerges(t *testing.T) {
	// Both claimants aim at (1,0) with aligned momenta.
	s := newTestStore(t, sim.LawFunc(func(sim.EntityState, []grid.Offset) grid.Vector {
		return grid.Ints(1, 0)
	}))
	a := seed(t, s, grid.Ints(0, 0), 10, grid.Ints(1, 0))
	b := seed(t, s, grid.Ints(1, 1), 20, grid.Ints(2, 0))

	stats := runTick(t, s, 1)
	if stats.Collisions != 1 || stats.Removed != 1 || stats.Entities != 1 {
		t.Fatalf("stats = %+v, want 1 collision, 1 removed, 1 entity", stats)
	}
	if _, ok := s.Get(a.ID); ok {
		t.Fatal("absorbed claimant still present")
	}
	merged, ok := s.Get(b.ID)
	if !ok {
		t.Fatal("survivor missing")
	}
	if !merged.Pos.Equal(grid.Ints(1, 0)) {
		t.Fatalf("survivor position = %s, want the contested cell", merged.Pos)
	}
	if !merged.Energy.Equal(scalar.FromInt64(30)) {
		t.Fatalf("merged energy = %s, want 30", merged.Energy)
	}
	if !merged.Momentum.Dir.Equal(grid.Ints(3, 0)) {
		t.Fatalf("merged momentum = %s, want (3, 0)", merged.Momentum.Dir)
	}
	if !merged.Generation.Equal(scalar.FromInt64(1)) {
		t.Fatalf("merged generation = %s, want 1", merged.Generation)
	}
}

func TestContestedCellBounceKeepsOrigins(t *testing.T) {
	s := newTestStore(t, sim.LawFunc(func(sim.EntityState, []grid.Offset) grid.Vector {
		return grid.Ints(1, 0)
	}))
	a := seed(t, s, grid.Ints(0, 0), 50, grid.Ints(1, 0))
	b := seed(t, s, grid.Ints(2, 0), 50, grid.Ints(0, 1))

	stats := runTick(t, s, 1)
	if stats.Collisions != 1 || stats.Removed != 0 || stats.Entities != 2 {
		t.Fatalf("stats = %+v, want a lossless bounce", stats)
	}
	if occ := s.At(grid.Ints(1, 0)); len(occ) != 0 {
		t.Fatal("contested cell must stay empty after a bounce")
	}

	// Mean (0,0) with remainder (1,1); the top claimant (lower ID at the
	// energy tie) absorbs the doubled remainder.
	bouncedA, _ := s.Get(a.ID)
	bouncedB, _ := s.Get(b.ID)
	if !bouncedA.Pos.Equal(grid.Ints(0, 0)) || !bouncedB.Pos.Equal(grid.Ints(2, 0)) {
		t.Fatal("bounced claimants must keep their pre-collision cells")
	}
	if !bouncedA.Momentum.Dir.Equal(grid.Ints(1, 2)) {
		t.Fatalf("top reflected momentum = %s, want (1, 2)", bouncedA.Momentum.Dir)
	}
	if !bouncedB.Momentum.Dir.Equal(grid.Ints(0, -1)) {
		t.Fatalf("other reflected momentum = %s, want (0, -1)", bouncedB.Momentum.Dir)
	}
	if !bouncedA.Energy.Equal(scalar.FromInt64(49)) || !bouncedB.Energy.Equal(scalar.FromInt64(49)) {
		t.Fatalf("bounce energies = %s, %s, want 49 each", bouncedA.Energy, bouncedB.Energy)
	}
}

func TestLawBoundedToNeighborhood(t *testing.T) {
	s := newTestStore(t, sim.LawFunc(func(sim.EntityState, []grid.Offset) grid.Vector {
		return grid.Ints(5, 5)
	}))
	st := seed(t, s, grid.Ints(0, 0), 10, grid.Ints(1, 0))

	runTick(t, s, 1)
	got, ok := s.Get(st.ID)
	if !ok || !got.Pos.Equal(grid.Ints(0, 0)) {
		t.Fatalf("out-of-neighborhood proposal moved the entity to %s", got.Pos)
	}
}

func TestQueueSpawnEntersAtTickBoundary(t *testing.T) {
	s := newTestStore(t, nil)
	if err := s.QueueSpawn(sim.SpawnRequest{Pos: grid.Ints(5, 5), Energy: scalar.FromInt64(7)}); err != nil {
		t.Fatalf("QueueSpawn: %v", err)
	}
	if got := s.Count(); got != 0 {
		t.Fatalf("queued spawn visible before the tick, count = %d", got)
	}

	stats := runTick(t, s, 1)
	if stats.Spawned != 1 || stats.Entities != 1 {
		t.Fatalf("stats = %+v, want one spawned entity", stats)
	}
	occ := s.At(grid.Ints(5, 5))
	if len(occ) != 1 {
		t.Fatalf("spawn cell holds %d entities, want 1", len(occ))
	}
	if occ[0].BirthTick != 1 {
		t.Fatalf("birth tick = %d, want 1", occ[0].BirthTick)
	}
}

func TestQueueSpawnFull(t *testing.T) {
	s, err := NewStore(Config{Dimensions: 2, SpawnQueueCapacity: 1}, Deps{})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	req := sim.SpawnRequest{Pos: grid.Ints(0, 0), Energy: scalar.FromInt64(1)}
	if err := s.QueueSpawn(req); err != nil {
		t.Fatalf("first QueueSpawn: %v", err)
	}
	if err := s.QueueSpawn(req); !errors.Is(err, ErrSpawnQueueFull) {
		t.Fatalf("second QueueSpawn err = %v, want ErrSpawnQueueFull", err)
	}
}

func TestSpawnContendsOnFirstTick(t *testing.T) {
	s := newTestStore(t, sim.LawFunc(func(sim.EntityState, []grid.Offset) grid.Vector {
		return grid.Ints(1, 0)
	}))
	seed(t, s, grid.Ints(0, 0), 10, grid.Ints(1, 0))
	if err := s.QueueSpawn(sim.SpawnRequest{
		Pos:      grid.Ints(1, 0),
		Energy:   scalar.FromInt64(99),
		Momentum: sim.Momentum{Dir: grid.Ints(1, 0)},
	}); err != nil {
		t.Fatalf("QueueSpawn: %v", err)
	}

	stats := runTick(t, s, 1)
	if stats.Spawned != 1 || stats.Collisions != 1 || stats.Entities != 1 {
		t.Fatalf("stats = %+v, want the birth to merge immediately", stats)
	}
	occ := s.At(grid.Ints(1, 0))
	if len(occ) != 1 || !occ[0].Energy.Equal(scalar.FromInt64(109)) {
		t.Fatalf("merged newborn = %+v, want energy 109", occ)
	}
}

func TestEntitiesSortedByID(t *testing.T) {
	s := newTestStore(t, nil)
	seed(t, s, grid.Ints(3, 0), 1, grid.Ints(0, 0))
	seed(t, s, grid.Ints(1, 0), 2, grid.Ints(0, 0))
	seed(t, s, grid.Ints(2, 0), 3, grid.Ints(0, 0))

	states := s.Entities()
	if len(states) != 3 {
		t.Fatalf("Entities returned %d states", len(states))
	}
	for i, st := range states {
		if st.ID != sim.EntityID(i+1) {
			t.Fatalf("states[%d].ID = %d, want ascending IDs", i, st.ID)
		}
	}
}

func TestAtOrdersByPriority(t *testing.T) {
	s := newTestStore(t, nil)
	seed(t, s, grid.Ints(0, 0), 5, grid.Ints(0, 0))
	seed(t, s, grid.Ints(0, 0), 9, grid.Ints(0, 0))

	occ := s.At(grid.Ints(0, 0))
	if len(occ) != 2 {
		t.Fatalf("cell holds %d entities, want 2", len(occ))
	}
	if !occ[0].Energy.Equal(scalar.FromInt64(9)) {
		t.Fatalf("first occupant energy = %s, want the higher-priority 9", occ[0].Energy)
	}
}

func TestCommitPublishesLifecycleEvents(t *testing.T) {
	var events []logging.Event
	pub := logging.PublisherFunc(func(_ context.Context, e logging.Event) {
		events = append(events, e)
	})
	s, err := NewStore(Config{Dimensions: 2}, Deps{
		Publisher: pub,
		Law: sim.LawFunc(func(sim.EntityState, []grid.Offset) grid.Vector {
			return grid.Ints(1, 0)
		}),
	})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	seed(t, s, grid.Ints(0, 0), 10, grid.Ints(1, 0))
	seed(t, s, grid.Ints(1, 1), 20, grid.Ints(2, 0))
	events = events[:0]

	runTick(t, s, 1)

	byType := make(map[logging.EventType]int)
	for _, e := range events {
		byType[e.Type]++
	}
	if byType["simulation.collision_resolved"] != 1 {
		t.Fatalf("collision events = %d, want 1 (events %+v)", byType["simulation.collision_resolved"], byType)
	}
	if byType["simulation.entity_removed"] != 1 {
		t.Fatalf("removal events = %d, want 1", byType["simulation.entity_removed"])
	}
}

func equalStates(a, b []sim.EntityState) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID || a[i].BirthTick != b[i].BirthTick ||
			!a[i].Pos.Equal(b[i].Pos) ||
			!a[i].Energy.Equal(b[i].Energy) ||
			!a[i].Generation.Equal(b[i].Generation) ||
			!a[i].Momentum.Dir.Equal(b[i].Momentum.Dir) ||
			!a[i].Momentum.Cost.Equal(b[i].Momentum.Cost) {
			return false
		}
	}
	return true
}

func TestParallelResolutionMatchesSerial(t *testing.T) {
	// Nine entities aimed at the same center cell from a 3x3 square. The
	// outcome must be identical whether buckets resolve serially or on a
	// worker pool.
	build := func(submitter sim.Submitter) *Store {
		s, err := NewStore(Config{Dimensions: 2}, Deps{Law: driftLaw, Submitter: submitter})
		if err != nil {
			t.Fatalf("NewStore: %v", err)
		}
		id := int64(0)
		for x := int64(0); x <= 2; x++ {
			for y := int64(0); y <= 2; y++ {
				dir, err := grid.Ints(1, 1).Sub(grid.Ints(x, y))
				if err != nil {
					t.Fatalf("Sub: %v", err)
				}
				if _, err := s.Spawn(sim.SpawnRequest{
					Pos:      grid.Ints(x, y),
					Energy:   scalar.FromInt64(id),
					Momentum: sim.Momentum{Dir: dir},
				}); err != nil {
					t.Fatalf("Spawn: %v", err)
				}
				id++
			}
		}
		return s
	}

	serial := build(sim.Serial{})
	pool := sim.NewPool(4)
	defer pool.Close()
	parallel := build(pool)

	for tick := uint64(1); tick <= 3; tick++ {
		for _, action := range serial.ActionsForTick(tick) {
			if err := action.Run(); err != nil {
				t.Fatalf("serial action: %v", err)
			}
		}
		if err := pool.Do(parallel.ActionsForTick(tick)); err != nil {
			t.Fatalf("parallel actions: %v", err)
		}
		if _, err := serial.Commit(tick); err != nil {
			t.Fatalf("serial Commit: %v", err)
		}
		if _, err := parallel.Commit(tick); err != nil {
			t.Fatalf("parallel Commit: %v", err)
		}
		serial.Flip()
		parallel.Flip()
	}

	if !equalStates(serial.Entities(), parallel.Entities()) {
		t.Fatalf("parallel run diverged:\nserial   %+v\nparallel %+v",
			serial.Entities(), parallel.Entities())
	}
}
