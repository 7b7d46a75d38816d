// Package grid provides exact N-dimensional integer vectors and the Moore
// neighborhood enumeration used to address cells of the simulation lattice.
package grid

import (
	"errors"
	"strings"

	"github.com/jerry-samek/tick-frame-space-sub008/scalar"
)

var (
	// ErrZeroDimension reports a vector with no components.
	ErrZeroDimension = errors.New("grid: vector needs at least one dimension")
	// ErrDimensionMismatch reports an operation across unequal dimensions.
	ErrDimensionMismatch = errors.New("grid: dimension mismatch")
	// ErrDimensionTooLarge reports a neighborhood request whose size cannot
	// be enumerated.
	ErrDimensionTooLarge = errors.New("grid: dimension too large to enumerate")
)

// Vector is a point or direction on the integer lattice. Components are
// exact scalars, so coordinates never clip or wrap at any distance from the
// origin. Vectors are immutable; every operation returns a fresh value.
type Vector struct {
	comps []scalar.Scalar
}

// New builds a vector from the given components. The component slice is
// copied.
func New(components ...scalar.Scalar) (Vector, error) {
	if len(components) == 0 {
		return Vector{}, ErrZeroDimension
	}
	comps := make([]scalar.Scalar, len(components))
	copy(comps, components)
	return Vector{comps: comps}, nil
}

// Ints builds a vector from int64 literals. It is intended for statically
// shaped values and panics when called with no components.
func Ints(values ...int64) Vector {
	if len(values) == 0 {
		panic(ErrZeroDimension)
	}
	comps := make([]scalar.Scalar, len(values))
	for i, v := range values {
		comps[i] = scalar.FromInt64(v)
	}
	return Vector{comps: comps}
}

// Zero returns the origin of the given dimension. It panics when dim is not
// positive; use New for validated construction.
func Zero(dim int) Vector {
	if dim < 1 {
		panic(ErrZeroDimension)
	}
	return Vector{comps: make([]scalar.Scalar, dim)}
}

// Dim returns the number of components.
func (v Vector) Dim() int {
	return len(v.comps)
}

// Component returns the component on the given axis.
func (v Vector) Component(axis int) scalar.Scalar {
	return v.comps[axis]
}

// Components returns a copy of the component slice.
func (v Vector) Components() []scalar.Scalar {
	out := make([]scalar.Scalar, len(v.comps))
	copy(out, v.comps)
	return out
}

// IsZero reports whether every component is zero.
func (v Vector) IsZero() bool {
	for _, c := range v.comps {
		if c.Sign() != 0 {
			return false
		}
	}
	return true
}

func (v Vector) checkPair(o Vector) error {
	if len(v.comps) == 0 || len(o.comps) == 0 {
		return ErrZeroDimension
	}
	if len(v.comps) != len(o.comps) {
		return ErrDimensionMismatch
	}
	return nil
}

// Add returns v + o componentwise.
func (v Vector) Add(o Vector) (Vector, error) {
	if err := v.checkPair(o); err != nil {
		return Vector{}, err
	}
	out := make([]scalar.Scalar, len(v.comps))
	for i := range v.comps {
		out[i] = v.comps[i].Add(o.comps[i])
	}
	return Vector{comps: out}, nil
}

// Sub returns v − o componentwise.
func (v Vector) Sub(o Vector) (Vector, error) {
	if err := v.checkPair(o); err != nil {
		return Vector{}, err
	}
	out := make([]scalar.Scalar, len(v.comps))
	for i := range v.comps {
		out[i] = v.comps[i].Sub(o.comps[i])
	}
	return Vector{comps: out}, nil
}

// Neg returns −v.
func (v Vector) Neg() Vector {
	out := make([]scalar.Scalar, len(v.comps))
	for i := range v.comps {
		out[i] = v.comps[i].Neg()
	}
	return Vector{comps: out}
}

// Scale returns v with every component multiplied by k.
func (v Vector) Scale(k scalar.Scalar) Vector {
	out := make([]scalar.Scalar, len(v.comps))
	for i := range v.comps {
		out[i] = v.comps[i].Mul(k)
	}
	return Vector{comps: out}
}

// Dot returns the inner product of v and o.
func (v Vector) Dot(o Vector) (scalar.Scalar, error) {
	if err := v.checkPair(o); err != nil {
		return scalar.Scalar{}, err
	}
	sum := scalar.Zero()
	for i := range v.comps {
		sum = sum.Add(v.comps[i].Mul(o.comps[i]))
	}
	return sum, nil
}

// MagnitudeSquared returns the sum of squared components.
func (v Vector) MagnitudeSquared() scalar.Scalar {
	sum := scalar.Zero()
	for _, c := range v.comps {
		sum = sum.Add(c.Mul(c))
	}
	return sum
}

// Magnitude returns the floor of the Euclidean length.
func (v Vector) Magnitude() scalar.Scalar {
	// A sum of squares is never negative, so Sqrt cannot fail here.
	m, _ := v.MagnitudeSquared().Sqrt()
	return m
}

// MaxComponent returns the largest absolute component. The zero vector
// reports zero.
func (v Vector) MaxComponent() scalar.Scalar {
	peak := scalar.Zero()
	for _, c := range v.comps {
		peak = peak.Max(c.Abs())
	}
	return peak
}

// SumComponents returns the exact sum of all components.
func (v Vector) SumComponents() scalar.Scalar {
	sum := scalar.Zero()
	for _, c := range v.comps {
		sum = sum.Add(c)
	}
	return sum
}

// NormalizeMaxComponent divides every component by the largest absolute
// component, truncating toward zero, so the result's components lie in
// [-1, 1] with at least one at the boundary. The zero vector normalizes to
// itself.
func (v Vector) NormalizeMaxComponent() Vector {
	peak := v.MaxComponent()
	if peak.Sign() == 0 {
		return v
	}
	out := make([]scalar.Scalar, len(v.comps))
	for i, c := range v.comps {
		// peak is positive here, so Div cannot fail.
		q, _ := c.Div(peak)
		out[i] = q
	}
	return Vector{comps: out}
}

// Equal reports componentwise value equality. Vectors of different
// dimensions are never equal.
func (v Vector) Equal(o Vector) bool {
	if len(v.comps) != len(o.comps) {
		return false
	}
	for i := range v.comps {
		if !v.comps[i].Equal(o.comps[i]) {
			return false
		}
	}
	return true
}

// spatialPrimes are the classic spatial-hashing primes, assigned to axes
// cyclically so any dimension count reuses the same three multipliers.
var spatialPrimes = [3]uint64{73856093, 19349663, 83492791}

// Hash64 returns a stable spatial hash of the vector. Equal vectors hash
// identically regardless of how their components are represented. The hash
// is for bucket placement only; colliding cells are told apart by Key.
func (v Vector) Hash64() uint64 {
	h := uint64(len(v.comps))
	for i, c := range v.comps {
		h ^= c.Hash64() * spatialPrimes[i%3]
	}
	return fmix64(h)
}

// fmix64 is the murmur3 64-bit finalizer.
func fmix64(h uint64) uint64 {
	h ^= h >> 33
	h *= 0xff51afd7ed558ccd
	h ^= h >> 33
	h *= 0xc4ceb9fe1a85ec53
	h ^= h >> 33
	return h
}

// Key returns the canonical cell identity, the decimal components joined by
// commas. Two vectors share a Key exactly when Equal reports true.
func (v Vector) Key() string {
	var b strings.Builder
	for i, c := range v.comps {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(c.String())
	}
	return b.String()
}

// String renders the vector as "(x, y, ...)".
func (v Vector) String() string {
	var b strings.Builder
	b.WriteByte('(')
	for i, c := range v.comps {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(c.String())
	}
	b.WriteByte(')')
	return b.String()
}
