// Package scalar implements exact integer arithmetic at unbounded magnitude.
//
// A Scalar starts life as a machine word and is promoted to an
// arbitrary-precision representation the moment an operation would overflow.
// Promotion is one-directional: once large, a value stays large even when it
// would fit a machine word again, so representation churn never oscillates.
// Equality, ordering, and hashing are defined on the mathematical value and
// are independent of the representation holding it.
package scalar

import (
	"errors"
	"math"
	"math/big"
	"math/bits"
	"strconv"
)

var (
	// ErrDivideByZero reports a division or remainder with a zero divisor.
	ErrDivideByZero = errors.New("scalar: division by zero")
	// ErrNegativeShift reports a shift by a negative amount.
	ErrNegativeShift = errors.New("scalar: negative shift amount")
	// ErrNegativeSqrt reports a square root of a negative value.
	ErrNegativeSqrt = errors.New("scalar: square root of negative value")
)

// Scalar is one exact integer. The zero value is the number zero.
//
// Scalars must be compared with Equal or Cmp, never with ==: two equal values
// may be held by different representations.
type Scalar struct {
	small int64
	big   *big.Int
}

// FromInt64 returns a Scalar holding v in the fast representation.
func FromInt64(v int64) Scalar {
	return Scalar{small: v}
}

// FromBig returns a Scalar holding a copy of v in the large representation.
// A nil input is treated as zero (in the fast representation).
func FromBig(v *big.Int) Scalar {
	if v == nil {
		return Scalar{}
	}
	return Scalar{big: new(big.Int).Set(v)}
}

// Zero returns the Scalar zero.
func Zero() Scalar {
	return Scalar{}
}

// One returns the Scalar one.
func One() Scalar {
	return Scalar{small: 1}
}

// Parse reads a base-10 integer of any magnitude.
func Parse(s string) (Scalar, error) {
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Scalar{small: v}, nil
	}
	b, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Scalar{}, errors.New("scalar: invalid integer literal " + strconv.Quote(s))
	}
	return Scalar{big: b}, nil
}

// MustParse is Parse for literals known to be valid; it panics otherwise.
func MustParse(s string) Scalar {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// Large reports whether the value is held by the large representation.
func (s Scalar) Large() bool {
	return s.big != nil
}

// Int64 returns the value as an int64 when it fits.
func (s Scalar) Int64() (int64, bool) {
	if s.big == nil {
		return s.small, true
	}
	if s.big.IsInt64() {
		return s.big.Int64(), true
	}
	return 0, false
}

// Big returns a copy of the value as a big.Int regardless of representation.
func (s Scalar) Big() *big.Int {
	return new(big.Int).Set(s.ref())
}

// ref views the value as a *big.Int without copying. The result must never be
// mutated or escape the package.
func (s Scalar) ref() *big.Int {
	if s.big != nil {
		return s.big
	}
	return big.NewInt(s.small)
}

// Add returns s + o, promoting on int64 overflow.
func (s Scalar) Add(o Scalar) Scalar {
	if s.big == nil && o.big == nil {
		sum := s.small + o.small
		if ((s.small ^ sum) & (o.small ^ sum)) < 0 {
			return Scalar{big: new(big.Int).Add(big.NewInt(s.small), big.NewInt(o.small))}
		}
		return Scalar{small: sum}
	}
	return Scalar{big: new(big.Int).Add(s.ref(), o.ref())}
}

// Sub returns s − o, promoting on int64 overflow.
func (s Scalar) Sub(o Scalar) Scalar {
	if s.big == nil && o.big == nil {
		diff := s.small - o.small
		if ((s.small ^ o.small) & (s.small ^ diff)) < 0 {
			return Scalar{big: new(big.Int).Sub(big.NewInt(s.small), big.NewInt(o.small))}
		}
		return Scalar{small: diff}
	}
	return Scalar{big: new(big.Int).Sub(s.ref(), o.ref())}
}

// Mul returns s × o, promoting on int64 overflow.
func (s Scalar) Mul(o Scalar) Scalar {
	if s.big == nil && o.big == nil {
		a, b := s.small, o.small
		if a == 0 || b == 0 {
			return Scalar{}
		}
		// MinInt64 × −1 wraps back to MinInt64 and would slip past the
		// quotient check below.
		if (a == math.MinInt64 && b == -1) || (b == math.MinInt64 && a == -1) {
			return Scalar{big: new(big.Int).Mul(big.NewInt(a), big.NewInt(b))}
		}
		prod := a * b
		if prod/b != a {
			return Scalar{big: new(big.Int).Mul(big.NewInt(a), big.NewInt(b))}
		}
		return Scalar{small: prod}
	}
	return Scalar{big: new(big.Int).Mul(s.ref(), o.ref())}
}

// Div returns the quotient of s / o truncated toward zero.
func (s Scalar) Div(o Scalar) (Scalar, error) {
	if o.Sign() == 0 {
		return Scalar{}, ErrDivideByZero
	}
	if s.big == nil && o.big == nil {
		// MinInt64 / −1 exceeds the fast range.
		if s.small == math.MinInt64 && o.small == -1 {
			return Scalar{big: new(big.Int).Neg(big.NewInt(math.MinInt64))}, nil
		}
		return Scalar{small: s.small / o.small}, nil
	}
	return Scalar{big: new(big.Int).Quo(s.ref(), o.ref())}, nil
}

// Rem returns the remainder of s / o; the result takes the dividend's sign.
func (s Scalar) Rem(o Scalar) (Scalar, error) {
	if o.Sign() == 0 {
		return Scalar{}, ErrDivideByZero
	}
	if s.big == nil && o.big == nil {
		if s.small == math.MinInt64 && o.small == -1 {
			return Scalar{small: 0}, nil
		}
		return Scalar{small: s.small % o.small}, nil
	}
	return Scalar{big: new(big.Int).Rem(s.ref(), o.ref())}, nil
}

// Neg returns −s, promoting when s is the most negative fast value.
func (s Scalar) Neg() Scalar {
	if s.big == nil {
		if s.small == math.MinInt64 {
			return Scalar{big: new(big.Int).Neg(big.NewInt(math.MinInt64))}
		}
		return Scalar{small: -s.small}
	}
	return Scalar{big: new(big.Int).Neg(s.big)}
}

// Abs returns |s|, promoting when s is the most negative fast value.
func (s Scalar) Abs() Scalar {
	if s.big == nil {
		if s.small == math.MinInt64 {
			return Scalar{big: new(big.Int).Neg(big.NewInt(math.MinInt64))}
		}
		if s.small < 0 {
			return Scalar{small: -s.small}
		}
		return s
	}
	return Scalar{big: new(big.Int).Abs(s.big)}
}

// Min returns the smaller of s and o, keeping that operand's representation.
func (s Scalar) Min(o Scalar) Scalar {
	if s.Cmp(o) <= 0 {
		return s
	}
	return o
}

// Max returns the larger of s and o, keeping that operand's representation.
func (s Scalar) Max(o Scalar) Scalar {
	if s.Cmp(o) >= 0 {
		return s
	}
	return o
}

// Shl returns s × 2^n, promoting when the result leaves the fast range.
func (s Scalar) Shl(n int) (Scalar, error) {
	if n < 0 {
		return Scalar{}, ErrNegativeShift
	}
	if s.big == nil {
		if s.small == 0 {
			return Scalar{}, nil
		}
		if n < 64 {
			shifted := s.small << uint(n)
			if shifted>>uint(n) == s.small {
				return Scalar{small: shifted}, nil
			}
		}
		return Scalar{big: new(big.Int).Lsh(big.NewInt(s.small), uint(n))}, nil
	}
	return Scalar{big: new(big.Int).Lsh(s.big, uint(n))}, nil
}

// Shr returns s / 2^n rounded toward negative infinity (arithmetic shift).
func (s Scalar) Shr(n int) (Scalar, error) {
	if n < 0 {
		return Scalar{}, ErrNegativeShift
	}
	if s.big == nil {
		if n > 63 {
			n = 63
		}
		return Scalar{small: s.small >> uint(n)}, nil
	}
	return Scalar{big: new(big.Int).Rsh(s.big, uint(n))}, nil
}

// BitLen returns the length of |s| in bits; the bit length of zero is zero.
func (s Scalar) BitLen() int {
	if s.big == nil {
		if s.small == 0 {
			return 0
		}
		if s.small == math.MinInt64 {
			return 64
		}
		v := s.small
		if v < 0 {
			v = -v
		}
		return bits.Len64(uint64(v))
	}
	return s.big.BitLen()
}

// Sign returns −1, 0, or +1.
func (s Scalar) Sign() int {
	if s.big == nil {
		switch {
		case s.small > 0:
			return 1
		case s.small < 0:
			return -1
		default:
			return 0
		}
	}
	return s.big.Sign()
}

// Sqrt returns the floor square root of s, computed by integer binary search
// so the result is exact at any magnitude.
func (s Scalar) Sqrt() (Scalar, error) {
	if s.Sign() < 0 {
		return Scalar{}, ErrNegativeSqrt
	}
	if s.big == nil {
		return Scalar{small: isqrt64(s.small)}, nil
	}
	if s.big.Sign() == 0 {
		return Scalar{big: new(big.Int)}, nil
	}
	lo := new(big.Int)
	hi := new(big.Int).Lsh(big.NewInt(1), uint(s.big.BitLen()+1)/2+1)
	root := new(big.Int)
	mid := new(big.Int)
	sq := new(big.Int)
	for lo.Cmp(hi) <= 0 {
		mid.Add(lo, hi)
		mid.Rsh(mid, 1)
		sq.Mul(mid, mid)
		switch sq.Cmp(s.big) {
		case 0:
			return Scalar{big: new(big.Int).Set(mid)}, nil
		case -1:
			root.Set(mid)
			lo.Add(mid, big.NewInt(1))
		default:
			hi.Sub(mid, big.NewInt(1))
		}
	}
	return Scalar{big: root}, nil
}

// isqrt64 is the fast-path floor square root, also by binary search.
// 3037000499 is the floor square root of MaxInt64, so mid*mid below never
// overflows uint64.
func isqrt64(v int64) int64 {
	if v < 2 {
		return v
	}
	u := uint64(v)
	var root uint64
	lo, hi := uint64(1), uint64(3037000499)
	for lo <= hi {
		mid := lo + (hi-lo)/2
		if mid*mid <= u {
			root = mid
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	return int64(root)
}

// Cmp returns −1, 0, or +1 ordering s against o by mathematical value.
func (s Scalar) Cmp(o Scalar) int {
	if s.big == nil && o.big == nil {
		switch {
		case s.small < o.small:
			return -1
		case s.small > o.small:
			return 1
		default:
			return 0
		}
	}
	return s.ref().Cmp(o.ref())
}

// Equal reports whether s and o hold the same value, regardless of
// representation.
func (s Scalar) Equal(o Scalar) bool {
	return s.Cmp(o) == 0
}

// Hash64 returns a stable 64-bit hash of the value. Equal values hash
// identically even when one is held large and the other fast, and the hash
// does not depend on the platform word size.
func (s Scalar) Hash64() uint64 {
	if v, ok := s.Int64(); ok {
		return mix64(uint64(v))
	}
	h := uint64(0x9e3779b97f4a7c15)
	if s.big.Sign() < 0 {
		h = ^h
	}
	mag := s.big.Bytes()
	for len(mag) > 0 {
		var chunk uint64
		n := len(mag)
		if n > 8 {
			n = 8
		}
		for _, b := range mag[:n] {
			chunk = chunk<<8 | uint64(b)
		}
		h = mix64(h ^ chunk)
		mag = mag[n:]
	}
	return h
}

// mix64 is a splitmix64-style avalanche finalizer.
func mix64(v uint64) uint64 {
	v ^= v >> 30
	v *= 0xbf58476d1ce4e5b9
	v ^= v >> 27
	v *= 0x94d049bb133111eb
	v ^= v >> 31
	return v
}

// String renders the value in base 10.
func (s Scalar) String() string {
	if s.big == nil {
		return strconv.FormatInt(s.small, 10)
	}
	return s.big.String()
}
