package resolve

import (
	"errors"
	"testing"

	"github.com/jerry-samek/tick-frame-space-sub008/grid"
	"github.com/jerry-samek/tick-frame-space-sub008/internal/sim"
	"github.com/jerry-samek/tick-frame-space-sub008/scalar"
)

func claimant(id uint64, energy, generation int64, dir ...int64) sim.EntityState {
	return sim.EntityState{
		ID:         sim.EntityID(id),
		BirthTick:  0,
		Pos:        grid.Ints(int64(id), 0),
		Energy:     scalar.FromInt64(energy),
		Generation: scalar.FromInt64(generation),
		Momentum: sim.Momentum{
			Cost: scalar.One(),
			Dir:  grid.Ints(dir...),
		},
	}
}

func requireVector(t *testing.T, got grid.Vector, want ...int64) {
	t.Helper()
	if !got.Equal(grid.Ints(want...)) {
		t.Fatalf("vector = %s, want %s", got, grid.Ints(want...))
	}
}

func TestMergeAlignedClaimants(t *testing.T) {
	claimants := []sim.EntityState{
		claimant(1, 10, 0, 1, 0),
		claimant(2, 20, 0, 1, 0),
		claimant(3, 30, 0, 1, 0),
	}

	out, err := Resolve(claimants, DefaultConfig())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if out.Kind != KindMerge {
		t.Fatalf("kind = %q, want %q", out.Kind, KindMerge)
	}
	if out.Survivor == nil {
		t.Fatal("expected a survivor")
	}
	if out.Survivor.ID != 3 {
		t.Fatalf("survivor ID = %d, want highest-energy claimant 3", out.Survivor.ID)
	}
	if got := out.Survivor.Energy; !got.Equal(scalar.FromInt64(60)) {
		t.Fatalf("merged energy = %s, want 60", got)
	}
	requireVector(t, out.Survivor.Momentum.Dir, 3, 0)
	if got := out.Survivor.Generation; !got.Equal(scalar.FromInt64(1)) {
		t.Fatalf("merged generation = %s, want 1", got)
	}
	// |[3,0]| = 3, plus the merge increment.
	if got := out.Survivor.Momentum.Cost; !got.Equal(scalar.FromInt64(4)) {
		t.Fatalf("merged cost = %s, want 4", got)
	}
	if !out.Survivor.Pos.Equal(grid.Ints(3, 0)) {
		t.Fatalf("survivor position = %s, want the top claimant's", out.Survivor.Pos)
	}
	if len(out.Removed) != 2 {
		t.Fatalf("removed %d entities, want 2", len(out.Removed))
	}
	if out.Removed[0] != 2 || out.Removed[1] != 1 {
		t.Fatalf("removed = %v, want priority order [2 1]", out.Removed)
	}
}

func TestDisappearOpposedClaimants(t *testing.T) {
	strong := claimant(1, 50, 0, 1, 0)
	weak := claimant(2, 10, 0, -1, 0)

	out, err := Resolve([]sim.EntityState{weak, strong}, DefaultConfig())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if out.Kind != KindDisappear {
		t.Fatalf("kind = %q, want %q", out.Kind, KindDisappear)
	}
	if out.Survivor.ID != strong.ID {
		t.Fatalf("survivor ID = %d, want %d", out.Survivor.ID, strong.ID)
	}
	if !out.Survivor.Energy.Equal(strong.Energy) ||
		!out.Survivor.Generation.Equal(strong.Generation) ||
		!out.Survivor.Momentum.Dir.Equal(strong.Momentum.Dir) ||
		!out.Survivor.Momentum.Cost.Equal(strong.Momentum.Cost) ||
		!out.Survivor.Pos.Equal(strong.Pos) {
		t.Fatal("survivor state changed, want it untouched")
	}
	if len(out.Removed) != 1 || out.Removed[0] != weak.ID {
		t.Fatalf("removed = %v, want [%d]", out.Removed, weak.ID)
	}
}

func TestSingleClaimantIsTrivialMerge(t *testing.T) {
	only := claimant(7, 12, 3, 2, -1)

	out, err := Resolve([]sim.EntityState{only}, DefaultConfig())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if out.Kind != KindMerge {
		t.Fatalf("kind = %q, want %q", out.Kind, KindMerge)
	}
	if out.Survivor.ID != only.ID ||
		!out.Survivor.Energy.Equal(only.Energy) ||
		!out.Survivor.Generation.Equal(only.Generation) ||
		!out.Survivor.Momentum.Dir.Equal(only.Momentum.Dir) {
		t.Fatal("single claimant must come back unchanged")
	}
	if len(out.Removed) != 0 || len(out.Updated) != 0 {
		t.Fatalf("unexpected removals %v or updates %v", out.Removed, out.Updated)
	}
}

func TestBounceReflectsAndConservesMomentum(t *testing.T) {
	// Orthogonal directions make the alignment sum zero.
	top := claimant(1, 100, 0, 3, 0)
	second := claimant(2, 40, 0, 0, 1)
	third := claimant(3, 40, 0, 0, -2)

	out, err := Resolve([]sim.EntityState{second, third, top}, DefaultConfig())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if out.Kind != KindBounce {
		t.Fatalf("kind = %q, want %q", out.Kind, KindBounce)
	}
	if len(out.Updated) != 3 {
		t.Fatalf("updated %d claimants, want 3", len(out.Updated))
	}
	if out.Updated[0].ID != 1 || out.Updated[1].ID != 2 || out.Updated[2].ID != 3 {
		t.Fatalf("updated order = [%d %d %d], want priority order [1 2 3]",
			out.Updated[0].ID, out.Updated[1].ID, out.Updated[2].ID)
	}

	// Sum [3,-1], truncated mean [1,0], remainder [0,-1]. The top claimant
	// absorbs the doubled remainder on top of its reflection.
	requireVector(t, out.Updated[0].Momentum.Dir, -1, -2)
	requireVector(t, out.Updated[1].Momentum.Dir, 2, -1)
	requireVector(t, out.Updated[2].Momentum.Dir, 2, 2)

	sumBefore := grid.Ints(3, -1)
	sumAfter := out.Updated[0].Momentum.Dir
	for _, u := range out.Updated[1:] {
		sumAfter, err = sumAfter.Add(u.Momentum.Dir)
		if err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	if !sumAfter.Equal(sumBefore) {
		t.Fatalf("momentum sum = %s, want %s conserved", sumAfter, sumBefore)
	}

	// Relative magnitudes are all below the damping constant, so every
	// claimant loses the minimum one energy.
	for i, want := range []int64{99, 39, 39} {
		if got := out.Updated[i].Energy; !got.Equal(scalar.FromInt64(want)) {
			t.Fatalf("claimant %d energy = %s, want %d", out.Updated[i].ID, got, want)
		}
	}

	// Bounce never displaces claimants or reprices their momentum.
	for i, src := range []sim.EntityState{top, second, third} {
		if !out.Updated[i].Pos.Equal(src.Pos) {
			t.Fatalf("claimant %d moved to %s", src.ID, out.Updated[i].Pos)
		}
		if !out.Updated[i].Momentum.Cost.Equal(src.Momentum.Cost) {
			t.Fatalf("claimant %d cost changed to %s", src.ID, out.Updated[i].Momentum.Cost)
		}
	}
}

func TestBounceEnergyFlooredAtZero(t *testing.T) {
	a := claimant(1, 0, 0, 1, 0)
	b := claimant(2, 0, 0, 0, 1)

	out, err := Resolve([]sim.EntityState{a, b}, DefaultConfig())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if out.Kind != KindBounce {
		t.Fatalf("kind = %q, want %q", out.Kind, KindBounce)
	}
	for _, u := range out.Updated {
		if u.Energy.Sign() != 0 {
			t.Fatalf("claimant %d energy = %s, want floored at 0", u.ID, u.Energy)
		}
	}
}

func TestMergeSumsLargeEnergiesExactly(t *testing.T) {
	a := claimant(1, 0, 5, 1, 0)
	a.Energy = scalar.MustParse("9223372036854775807")
	b := claimant(2, 0, 7, 2, 0)
	b.Energy = scalar.MustParse("9223372036854775807")

	out, err := Resolve([]sim.EntityState{a, b}, DefaultConfig())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if out.Kind != KindMerge {
		t.Fatalf("kind = %q, want %q", out.Kind, KindMerge)
	}
	if got := out.Survivor.Energy; !got.Equal(scalar.MustParse("18446744073709551614")) {
		t.Fatalf("merged energy = %s, want 18446744073709551614", got)
	}
	if got := out.Survivor.Generation; !got.Equal(scalar.FromInt64(8)) {
		t.Fatalf("merged generation = %s, want 8", got)
	}
	requireVector(t, out.Survivor.Momentum.Dir, 3, 0)
}

func TestPriorityBreaksTiesByGenerationThenID(t *testing.T) {
	older := claimant(9, 50, 3, -1, 0)
	younger := claimant(1, 50, 2, 1, 0)

	out, err := Resolve([]sim.EntityState{younger, older}, DefaultConfig())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if out.Kind != KindDisappear {
		t.Fatalf("kind = %q, want %q", out.Kind, KindDisappear)
	}
	if out.Survivor.ID != older.ID {
		t.Fatalf("survivor ID = %d, want higher generation %d", out.Survivor.ID, older.ID)
	}

	low := claimant(2, 50, 3, -1, 0)
	high := claimant(4, 50, 3, 1, 0)
	out, err = Resolve([]sim.EntityState{high, low}, DefaultConfig())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if out.Survivor.ID != low.ID {
		t.Fatalf("survivor ID = %d, want lowest ID %d", out.Survivor.ID, low.ID)
	}
}

func TestResolveRejectsEmptyClaimants(t *testing.T) {
	if _, err := Resolve(nil, DefaultConfig()); !errors.Is(err, ErrNoClaimants) {
		t.Fatalf("err = %v, want ErrNoClaimants", err)
	}
}

func TestResolveDoesNotMutateInput(t *testing.T) {
	claimants := []sim.EntityState{
		claimant(1, 10, 0, 1, 0),
		claimant(2, 30, 0, 1, 0),
	}

	if _, err := Resolve(claimants, DefaultConfig()); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if claimants[0].ID != 1 || !claimants[0].Energy.Equal(scalar.FromInt64(10)) {
		t.Fatal("input slice was reordered or rewritten")
	}
}

func TestZeroConfigUsesDefaults(t *testing.T) {
	build := func() []sim.EntityState {
		return []sim.EntityState{
			claimant(1, 100, 0, 3, 0),
			claimant(2, 40, 0, 0, 1),
			claimant(3, 40, 0, 0, -2),
		}
	}

	got, err := Resolve(build(), Config{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want, err := Resolve(build(), DefaultConfig())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	for i := range want.Updated {
		if !got.Updated[i].Energy.Equal(want.Updated[i].Energy) {
			t.Fatalf("claimant %d energy %s, want default-config %s",
				want.Updated[i].ID, got.Updated[i].Energy, want.Updated[i].Energy)
		}
	}
}
