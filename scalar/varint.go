package scalar

import (
	"io"
	"math/big"
	"math/bits"
)

// The wire form of a Scalar is a zigzag-mapped LEB128 varint: the value is
// folded to a non-negative integer (0, -1, 1, -2, ... becoming 0, 1, 2, 3,
// ...) and emitted in little-endian groups of seven bits, high bit set on
// every group but the last. Values of any magnitude round-trip exactly; a
// decoded value lands in the fast representation whenever it fits.

// AppendVarint appends the encoding of v to dst and returns the extended
// slice.
func AppendVarint(dst []byte, v Scalar) []byte {
	if n, ok := v.Int64(); ok {
		u := uint64(n)<<1 ^ uint64(n>>63)
		for u >= 0x80 {
			dst = append(dst, byte(u)|0x80)
			u >>= 7
		}
		return append(dst, byte(u))
	}
	u := zigzagBig(v.big)
	for {
		// Bits()[0] is the little-endian low word, so its low seven
		// bits are the next group on any platform.
		group := byte(u.Bits()[0]) & 0x7f
		u.Rsh(u, 7)
		if u.Sign() == 0 {
			return append(dst, group)
		}
		dst = append(dst, group|0x80)
	}
}

// VarintLen returns the exact number of bytes AppendVarint emits for v.
func VarintLen(v Scalar) int {
	if n, ok := v.Int64(); ok {
		u := uint64(n)<<1 ^ uint64(n>>63)
		return (bits.Len64(u|1) + 6) / 7
	}
	return (zigzagBig(v.big).BitLen() + 6) / 7
}

// ReadVarint decodes one value from r. It propagates the reader's error
// verbatim, so a truncated stream surfaces as io.EOF or
// io.ErrUnexpectedEOF from the caller's reader.
func ReadVarint(r io.ByteReader) (Scalar, error) {
	var groups []byte
	for {
		b, err := r.ReadByte()
		if err != nil {
			return Scalar{}, err
		}
		groups = append(groups, b&0x7f)
		if b&0x80 == 0 {
			break
		}
	}
	// Nine groups carry 63 bits and always fit the fast representation
	// after unfolding.
	if len(groups) < 10 {
		var u uint64
		for i := len(groups) - 1; i >= 0; i-- {
			u = u<<7 | uint64(groups[i])
		}
		return Scalar{small: int64(u>>1) ^ -int64(u&1)}, nil
	}
	u := new(big.Int)
	chunk := new(big.Int)
	for i := len(groups) - 1; i >= 0; i-- {
		u.Lsh(u, 7)
		chunk.SetInt64(int64(groups[i]))
		u.Or(u, chunk)
	}
	n := new(big.Int)
	if u.Bit(0) == 0 {
		n.Rsh(u, 1)
	} else {
		n.Add(u, oneBig)
		n.Rsh(n, 1)
		n.Neg(n)
	}
	if n.IsInt64() {
		return Scalar{small: n.Int64()}, nil
	}
	return Scalar{big: n}, nil
}

var oneBig = big.NewInt(1)

// zigzagBig folds v into the non-negative zigzag domain. The result is a
// fresh value the caller may mutate.
func zigzagBig(v *big.Int) *big.Int {
	u := new(big.Int).Lsh(v, 1)
	if v.Sign() < 0 {
		u.Neg(u)
		u.Sub(u, oneBig)
	}
	return u
}
