package grid

import (
	"sync"

	"github.com/jerry-samek/tick-frame-space-sub008/scalar"
)

// maxOffsetDim bounds the Moore neighborhood enumeration; 3^40 no longer
// fits a signed 64-bit count.
const maxOffsetDim = 39

// Offset is one candidate single-step displacement together with its floor
// Euclidean magnitude. Offsets are matched against every entity every tick,
// so the magnitude is computed once at enumeration time and cached with the
// vector instead of being recomputed on the hot path.
type Offset struct {
	Vec       Vector
	Magnitude scalar.Scalar
}

var (
	offsetsMu    sync.RWMutex
	offsetsByDim = map[int][]Offset{}
)

// Offsets returns every non-zero offset of the Moore neighborhood in dim
// dimensions, 3^dim − 1 entries with components in {−1, 0, +1}. The order is
// deterministic: offsets enumerate as base-3 counters with axis 0 in the
// least significant position, so the first offset is (−1, −1, ..., −1).
//
// The slice is cached per dimension and shared between callers; it must not
// be modified.
func Offsets(dim int) ([]Offset, error) {
	if dim < 1 {
		return nil, ErrZeroDimension
	}
	if dim > maxOffsetDim {
		return nil, ErrDimensionTooLarge
	}

	offsetsMu.RLock()
	cached, ok := offsetsByDim[dim]
	offsetsMu.RUnlock()
	if ok {
		return cached, nil
	}

	total := int64(1)
	for i := 0; i < dim; i++ {
		total *= 3
	}
	out := make([]Offset, 0, total-1)
	for idx := int64(0); idx < total; idx++ {
		comps := make([]scalar.Scalar, dim)
		rem := idx
		zero := true
		for axis := 0; axis < dim; axis++ {
			trit := rem%3 - 1
			rem /= 3
			if trit != 0 {
				zero = false
			}
			comps[axis] = scalar.FromInt64(trit)
		}
		if zero {
			continue
		}
		vec := Vector{comps: comps}
		out = append(out, Offset{Vec: vec, Magnitude: vec.Magnitude()})
	}

	offsetsMu.Lock()
	offsetsByDim[dim] = out
	offsetsMu.Unlock()
	return out, nil
}

// Neighbors returns the cells adjacent to center, one per Moore offset, in
// the same deterministic order as Offsets.
func Neighbors(center Vector) ([]Vector, error) {
	offs, err := Offsets(center.Dim())
	if err != nil {
		return nil, err
	}
	out := make([]Vector, len(offs))
	for i, o := range offs {
		n, err := center.Add(o.Vec)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}
