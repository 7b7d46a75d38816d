// Package resolve arbitrates cells contested by multiple entities within one
// tick. The resolver is a pure function over the claimant list: it never
// touches shared state, so contested cells can be settled in parallel.
package resolve

import (
	"errors"
	"sort"

	"github.com/jerry-samek/tick-frame-space-sub008/grid"
	"github.com/jerry-samek/tick-frame-space-sub008/internal/sim"
	"github.com/jerry-samek/tick-frame-space-sub008/scalar"
)

// ErrNoClaimants reports a resolver call with an empty claimant list, which
// is a caller contract violation; contested cells always have at least one
// proposer.
var ErrNoClaimants = errors.New("resolve: empty claimant list")

// Kind names the three possible outcomes of a contested cell.
type Kind string

const (
	KindMerge     Kind = "merge"
	KindBounce    Kind = "bounce"
	KindDisappear Kind = "disappear"
)

// Config carries the tuned constants of the collision rules. Both values are
// heuristics preserved from the reference behavior, named here so they can
// be overridden rather than buried.
type Config struct {
	// BounceDamping divides the relative-momentum magnitude when computing
	// per-claimant bounce energy loss.
	BounceDamping scalar.Scalar
	// MergeCostIncrement is added to the merged momentum cost so cost
	// strictly increases on every merge.
	MergeCostIncrement scalar.Scalar
}

// DefaultConfig returns the reference constants.
func DefaultConfig() Config {
	return Config{
		BounceDamping:      scalar.FromInt64(4),
		MergeCostIncrement: scalar.One(),
	}
}

func (c Config) normalized() Config {
	if c.BounceDamping.Sign() <= 0 {
		c.BounceDamping = scalar.FromInt64(4)
	}
	if c.MergeCostIncrement.Sign() <= 0 {
		c.MergeCostIncrement = scalar.One()
	}
	return c
}

// Outcome is the resolver's verdict for one contested cell. Survivor is set
// for merge and disappear outcomes; Updated carries every claimant's new
// state for bounce outcomes; Removed lists entities that leave the lattice.
// The caller applies the outcome; in particular the resolver never assigns
// positions, so a merge survivor still carries its pre-collision position.
type Outcome struct {
	Kind     Kind
	Survivor *sim.EntityState
	Updated  []sim.EntityState
	Removed  []sim.EntityID
}

// Resolve settles one contested cell. The claimant slice is not modified.
//
// Priority (top claimant first) orders by descending energy, then descending
// generation, then ascending ID, so identical inputs always produce
// identical outcomes. Classification sums the dot products of the top
// claimant's momentum direction with every other claimant's: positive means
// aligned traffic that merges, negative means opposed traffic in which only
// the top claimant persists, and zero means orthogonal or mixed traffic
// that bounces.
func Resolve(claimants []sim.EntityState, cfg Config) (Outcome, error) {
	if len(claimants) == 0 {
		return Outcome{}, ErrNoClaimants
	}
	cfg = cfg.normalized()

	ordered := make([]sim.EntityState, len(claimants))
	copy(ordered, claimants)
	sort.Slice(ordered, func(i, j int) bool {
		return HigherPriority(ordered[i], ordered[j])
	})

	if len(ordered) == 1 {
		survivor := ordered[0].Clone()
		return Outcome{Kind: KindMerge, Survivor: &survivor}, nil
	}

	top := ordered[0]
	alignment := scalar.Zero()
	for _, other := range ordered[1:] {
		dot, err := top.Momentum.Dir.Dot(other.Momentum.Dir)
		if err != nil {
			return Outcome{}, err
		}
		alignment = alignment.Add(dot)
	}

	switch {
	case alignment.Sign() > 0:
		return merge(ordered, cfg)
	case alignment.Sign() < 0:
		return disappear(ordered), nil
	default:
		return bounce(ordered, cfg)
	}
}

// HigherPriority reports whether a outranks b: higher energy first, then
// higher generation, then lower ID. The order is total, so any two distinct
// entities compare deterministically.
func HigherPriority(a, b sim.EntityState) bool {
	if c := a.Energy.Cmp(b.Energy); c != 0 {
		return c > 0
	}
	if c := a.Generation.Cmp(b.Generation); c != 0 {
		return c > 0
	}
	return a.ID < b.ID
}

func merge(ordered []sim.EntityState, cfg Config) (Outcome, error) {
	top := ordered[0]
	energy := top.Energy
	generation := top.Generation
	dir := top.Momentum.Dir
	var err error
	for _, c := range ordered[1:] {
		energy = energy.Add(c.Energy)
		generation = generation.Max(c.Generation)
		dir, err = dir.Add(c.Momentum.Dir)
		if err != nil {
			return Outcome{}, err
		}
	}
	// The magnitude of a momentum sum is never negative, so Sqrt cannot
	// fail.
	cost, _ := dir.MagnitudeSquared().Sqrt()
	cost = cost.Add(cfg.MergeCostIncrement)

	survivor := top.Clone()
	survivor.Energy = energy
	survivor.Generation = generation.Add(scalar.One())
	survivor.Momentum = sim.Momentum{Cost: cost, Dir: dir}

	removed := make([]sim.EntityID, 0, len(ordered)-1)
	for _, c := range ordered[1:] {
		removed = append(removed, c.ID)
	}
	return Outcome{Kind: KindMerge, Survivor: &survivor, Removed: removed}, nil
}

func disappear(ordered []sim.EntityState) Outcome {
	survivor := ordered[0].Clone()
	removed := make([]sim.EntityID, 0, len(ordered)-1)
	for _, c := range ordered[1:] {
		removed = append(removed, c.ID)
	}
	return Outcome{Kind: KindDisappear, Survivor: &survivor, Removed: removed}
}

func bounce(ordered []sim.EntityState, cfg Config) (Outcome, error) {
	count := scalar.FromInt64(int64(len(ordered)))
	two := scalar.FromInt64(2)

	sum := ordered[0].Momentum.Dir
	var err error
	for _, c := range ordered[1:] {
		sum, err = sum.Add(c.Momentum.Dir)
		if err != nil {
			return Outcome{}, err
		}
	}

	// Truncated per-axis mean. The division identity sum = count*avg + rem
	// holds exactly per axis, which the remainder fold below relies on.
	dim := sum.Dim()
	avgComps := make([]scalar.Scalar, dim)
	remComps := make([]scalar.Scalar, dim)
	for i := 0; i < dim; i++ {
		// count is at least two here, so Div and Rem cannot fail.
		q, _ := sum.Component(i).Div(count)
		r, _ := sum.Component(i).Rem(count)
		avgComps[i] = q
		remComps[i] = r
	}
	avg, err := grid.New(avgComps...)
	if err != nil {
		return Outcome{}, err
	}
	rem, err := grid.New(remComps...)
	if err != nil {
		return Outcome{}, err
	}
	doubledAvg := avg.Scale(two)

	updated := make([]sim.EntityState, len(ordered))
	for idx, c := range ordered {
		reflected, err := doubledAvg.Sub(c.Momentum.Dir)
		if err != nil {
			return Outcome{}, err
		}
		if idx == 0 {
			// Reflecting through a truncated mean loses twice the
			// per-axis division remainder across the group. Folding
			// that shortfall into the top claimant keeps the momentum
			// sum exactly conserved.
			reflected, err = reflected.Add(rem.Scale(two))
			if err != nil {
				return Outcome{}, err
			}
		}

		rel, err := c.Momentum.Dir.Sub(avg)
		if err != nil {
			return Outcome{}, err
		}
		relMag, _ := rel.MagnitudeSquared().Sqrt()
		loss, _ := relMag.Div(cfg.BounceDamping)
		if loss.Cmp(scalar.One()) < 0 {
			loss = scalar.One()
		}
		energy := c.Energy.Sub(loss)
		if energy.Sign() < 0 {
			energy = scalar.Zero()
		}

		next := c.Clone()
		next.Energy = energy
		next.Momentum.Dir = reflected
		updated[idx] = next
	}
	return Outcome{Kind: KindBounce, Updated: updated}, nil
}
