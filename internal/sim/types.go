package sim

import (
	"github.com/jerry-samek/tick-frame-space-sub008/grid"
	"github.com/jerry-samek/tick-frame-space-sub008/scalar"
)

// EntityID identifies one entity for its whole lifetime. IDs are minted in
// ascending order; zero is never a valid ID.
type EntityID uint64

// Momentum is an entity's persistent motion state: the accumulated cost of
// carrying it and the direction it pushes the entity along. The direction is
// an unnormalized lattice vector; laws derive per-tick displacement from it.
type Momentum struct {
	Cost scalar.Scalar
	Dir  grid.Vector
}

// EntityState is the complete per-entity record. Scalars and vectors are
// immutable values, so a struct copy is an independent state.
type EntityState struct {
	ID         EntityID
	BirthTick  uint64
	Pos        grid.Vector
	Energy     scalar.Scalar
	Generation scalar.Scalar
	Momentum   Momentum
}

// Clone returns a copy of the state. Because every field is an immutable
// value this is a plain struct copy; the method exists to make handoff
// points explicit.
func (e EntityState) Clone() EntityState {
	return e
}

// SpawnRequest stages a new entity for insertion at the next tick boundary.
type SpawnRequest struct {
	Pos      grid.Vector
	Energy   scalar.Scalar
	Momentum Momentum
}
