// Package fr provides field-element helpers shared by the native data
// model and the circuits: BoundedNum<L> and little-endian bit
// decomposition, mirrored bit-for-bit between native code and
// in-circuit gadgets.
package fr

import (
	"errors"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// ModulusBits is the bit length of the scalar field Fr used throughout
// the protocol (BN254's scalar field stands in for the spec's Fr).
const ModulusBits = fr.Bits

// Sizing constants fixed at deploy time (spec.md §3).
const (
	HeightBits          = 48
	OutPlusOneLog       = 7
	Out                 = (1 << OutPlusOneLog) - 1 // 127
	DiversifierSizeBits = 80
	BalanceSizeBits     = 64
	EnergySizeBits      = BalanceSizeBits + HeightBits // 112
	SaltSizeBits        = 80
	PoolIDSizeBits      = 24
)

// ErrOutOfRange is returned by BoundedNum constructors when the value
// does not fit the declared bit width.
var ErrOutOfRange = errors.New("fr: value does not fit declared bit width")

// ErrWidthTooLarge is returned when a BoundedNum width meets or
// exceeds the field modulus bit length — circuit synthesis would be
// unable to safely bit-decompose it.
var ErrWidthTooLarge = errors.New("fr: bit width must be < field modulus bits")

// BoundedNum is a field element certified to satisfy 0 <= n < 2^L.
// L must be strictly less than ModulusBits.
type BoundedNum struct {
	bits  int
	value fr.Element
}

// New constructs a BoundedNum, checking that n < 2^bits.
func New(bits int, n *big.Int) (BoundedNum, error) {
	if bits >= ModulusBits {
		return BoundedNum{}, ErrWidthTooLarge
	}
	if n.Sign() < 0 {
		return BoundedNum{}, ErrOutOfRange
	}
	limit := new(big.Int).Lsh(big.NewInt(1), uint(bits))
	if n.Cmp(limit) >= 0 {
		return BoundedNum{}, ErrOutOfRange
	}
	var e fr.Element
	e.SetBigInt(n)
	return BoundedNum{bits: bits, value: e}, nil
}

// NewUnchecked constructs a BoundedNum without validating the range.
// Callers must be certain the invariant already holds (e.g. values
// just emitted by a trusted decoder).
func NewUnchecked(bits int, n *big.Int) BoundedNum {
	var e fr.Element
	e.SetBigInt(n)
	return BoundedNum{bits: bits, value: e}
}

// NewTrimmed reduces n modulo 2^bits and returns the result. Unlike
// New it never fails on an out-of-range n; the in-circuit analogue
// performs a strict little-endian bit decomposition and recomposes
// the low `bits` bits (see circuits.NewTrimmedBoundedNum).
func NewTrimmed(bits int, n *big.Int) (BoundedNum, error) {
	if bits >= ModulusBits {
		return BoundedNum{}, ErrWidthTooLarge
	}
	mask := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), uint(bits)), big.NewInt(1))
	trimmed := new(big.Int).And(n, mask)
	var e fr.Element
	e.SetBigInt(trimmed)
	return BoundedNum{bits: bits, value: e}, nil
}

// Bits returns the declared bit width.
func (b BoundedNum) Bits() int { return b.bits }

// ToNum returns the underlying field element.
func (b BoundedNum) ToNum() fr.Element { return b.value }

// BigInt returns the value as a big.Int in [0, 2^bits).
func (b BoundedNum) BigInt() *big.Int {
	v := new(big.Int)
	b.value.BigInt(v)
	return v
}

// Uint64 returns the value truncated to 64 bits; callers must ensure
// Bits() <= 64 or accept truncation.
func (b BoundedNum) Uint64() uint64 {
	return b.value.Uint64()
}

// Equal reports whether two BoundedNum values carry the same field
// element (bit widths need not match for this comparison).
func (b BoundedNum) Equal(o BoundedNum) bool {
	return b.value.Equal(&o.value)
}

// IsZero reports whether the value is the additive identity.
func (b BoundedNum) IsZero() bool {
	return b.value.IsZero()
}

// BitsLE returns the little-endian bit decomposition of the value
// over the declared width, least-significant bit first. This is the
// native counterpart of the in-circuit bit-decomposition gadget and
// the two MUST agree bit-for-bit.
func (b BoundedNum) BitsLE() []bool {
	n := b.BigInt()
	out := make([]bool, b.bits)
	for i := 0; i < b.bits; i++ {
		out[i] = n.Bit(i) == 1
	}
	return out
}

// FromBitsLE recomposes a BoundedNum from a little-endian bit slice.
func FromBitsLE(bitsLE []bool) BoundedNum {
	n := new(big.Int)
	for i, set := range bitsLE {
		if set {
			n.SetBit(n, i, 1)
		}
	}
	return NewUnchecked(len(bitsLE), n)
}
