package sim

import "github.com/jerry-samek/tick-frame-space-sub008/grid"

// Law decides where an entity attempts to move on the tick being processed.
// Implementations must be pure functions of their arguments: ProposeMove is
// called concurrently for many entities against the same committed state.
//
// The neighborhood slice holds the candidate one-step offsets around the
// entity's position, each carrying its precomputed magnitude. The slice is
// shared between callers and must not be modified. The returned destination
// is expected to stay within the Moore neighborhood of the entity's
// position; the store keeps the entity in place when a law proposes anything
// farther.
type Law interface {
	ProposeMove(e EntityState, neighborhood []grid.Offset) grid.Vector
}

// LawFunc adapts a plain function to the Law interface.
type LawFunc func(e EntityState, neighborhood []grid.Offset) grid.Vector

func (f LawFunc) ProposeMove(e EntityState, neighborhood []grid.Offset) grid.Vector {
	return f(e, neighborhood)
}
