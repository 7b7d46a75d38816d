package world

import (
	"sync"

	"github.com/jerry-samek/tick-frame-space-sub008/grid"
	"github.com/jerry-samek/tick-frame-space-sub008/internal/sim"
	"github.com/jerry-samek/tick-frame-space-sub008/scalar"
)

// Bounds is the axis-aligned extent of every position the substrate has
// seen occupied.
type Bounds struct {
	Min grid.Vector
	Max grid.Vector
}

// Substrate watches committed state and records how far entities have
// spread. Its bounds only ever grow: a cell once reached stays inside the
// extent after every entity has left it.
type Substrate struct {
	store *Store

	mu   sync.RWMutex
	min  []scalar.Scalar
	max  []scalar.Scalar
	seen bool
}

// NewSubstrate wires a bounds tracker over the store.
func NewSubstrate(store *Store) *Substrate {
	return &Substrate{store: store}
}

// ActionsForTick returns one action observing the last committed tick.
func (s *Substrate) ActionsForTick(uint64) []sim.Action {
	return []sim.Action{sim.ActionFunc(func() error {
		s.Observe()
		return nil
	})}
}

// Observe folds the committed state into the bounds. The scheduler invokes
// it through ActionsForTick; callers may also invoke it directly after
// seeding so bounds are meaningful before the first tick.
func (s *Substrate) Observe() {
	states := s.store.Entities()
	if len(states) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range states {
		s.extendLocked(st.Pos)
	}
}

func (s *Substrate) extendLocked(pos grid.Vector) {
	if !s.seen {
		s.min = pos.Components()
		s.max = pos.Components()
		s.seen = true
		return
	}
	for i := range s.min {
		c := pos.Component(i)
		s.min[i] = s.min[i].Min(c)
		s.max[i] = s.max[i].Max(c)
	}
}

// Reset forgets everything observed so far. Used when a restore replaces
// the population wholesale.
func (s *Substrate) Reset() {
	s.mu.Lock()
	s.min = nil
	s.max = nil
	s.seen = false
	s.mu.Unlock()
}

// Bounds reports the extent seen so far. The second return is false until
// any entity has been observed.
func (s *Substrate) Bounds() (Bounds, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.seen {
		return Bounds{}, false
	}
	min, err := grid.New(s.min...)
	if err != nil {
		return Bounds{}, false
	}
	max, err := grid.New(s.max...)
	if err != nil {
		return Bounds{}, false
	}
	return Bounds{Min: min, Max: max}, true
}

var _ sim.Consumer = (*Substrate)(nil)
