package tickframe

import "github.com/jerry-samek/tick-frame-space-sub008/grid"

// InertialLaw is the reference movement law: an entity drifts along its
// momentum direction, at most one cell per axis per tick, and an entity
// with no momentum stays where it is. The neighborhood argument is unused;
// it exists for laws that inspect adjacent cells before proposing.
func InertialLaw() Law {
	return LawFunc(func(e EntityState, _ []grid.Offset) grid.Vector {
		if e.Momentum.Dir.IsZero() {
			return e.Pos
		}
		step := e.Momentum.Dir.NormalizeMaxComponent()
		dest, err := e.Pos.Add(step)
		if err != nil {
			// A momentum vector of the wrong dimension cannot enter the
			// store, so this only fires on a hand-built state; staying
			// put is the safe proposal.
			return e.Pos
		}
		return dest
	})
}
