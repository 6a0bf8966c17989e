// Package circuits implements the three arithmetic circuits of the
// shielded pool — transfer, tree-append, delegated-deposit-batch —
// plus the in-circuit gadgets (bounded numbers, key derivation,
// nullifier, Poseidon-family hashing) that must agree bit-exactly
// with their native counterparts in pkg/fr, internal/keys and
// internal/nullifier (spec.md §2 layer 4, §9 central invariant).
package circuits

import (
	"errors"
	"math/big"

	"github.com/consensys/gnark/frontend"

	zfr "github.com/ccoin/core/pkg/fr"
)

// ErrWidthTooLarge mirrors pkg/fr.ErrWidthTooLarge: circuit synthesis
// must not attempt to bit-decompose a width that meets or exceeds the
// field modulus (spec.md §4.1).
var ErrWidthTooLarge = errors.New("circuits: bit width must be < field modulus bits")

// BoundedNum is the in-circuit counterpart of pkg/fr.BoundedNum: a
// signal certified to satisfy 0 <= n < 2^bits via little-endian bit
// decomposition (spec.md §4.1).
type BoundedNum struct {
	bits  int
	value frontend.Variable
}

// Value returns the underlying signal.
func (b BoundedNum) Value() frontend.Variable { return b.value }

// Bits returns the declared bit width.
func (b BoundedNum) Bits() int { return b.bits }

// NewBoundedNum allocates n as a BoundedNum<bits>, emitting bits
// little-endian bit constraints for a non-constant n (spec.md §4.1).
// For a constant n the range is checked natively instead of emitting
// constraints, mirroring the native New constructor's fast path.
func NewBoundedNum(api frontend.API, bits int, n frontend.Variable) (BoundedNum, error) {
	if bits >= zfr.ModulusBits {
		return BoundedNum{}, ErrWidthTooLarge
	}
	if c, ok := api.Compiler().ConstantValue(n); ok {
		maxVal := new(big.Int).Lsh(big.NewInt(1), uint(bits))
		if c.Sign() < 0 || c.Cmp(maxVal) >= 0 {
			return BoundedNum{}, ErrOutOfRange
		}
		return BoundedNum{bits: bits, value: n}, nil
	}
	api.ToBinary(n, bits)
	return BoundedNum{bits: bits, value: n}, nil
}

// NewBoundedNumUnchecked wraps n as a BoundedNum<bits> without
// emitting any constraint. Callers must already have established the
// range (e.g. a value produced by another gadget that already
// bit-decomposed it).
func NewBoundedNumUnchecked(bits int, n frontend.Variable) BoundedNum {
	return BoundedNum{bits: bits, value: n}
}

// NewTrimmedBoundedNum performs a strict little-endian bit
// decomposition of n and recomposes only the low `bits` bits,
// discarding the rest (spec.md §4.1 new_trimmed). For a constant n
// the trimmed constant is derived natively and asserted equal, so a
// constant input is never silently altered without a check.
func NewTrimmedBoundedNum(api frontend.API, bits int, n frontend.Variable) (BoundedNum, error) {
	if bits >= zfr.ModulusBits {
		return BoundedNum{}, ErrWidthTooLarge
	}
	full := api.ToBinary(n)
	low := full[:bits]
	trimmed := api.FromBinary(low...)
	if c, ok := api.Compiler().ConstantValue(n); ok {
		mask := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), uint(bits)), big.NewInt(1))
		want := new(big.Int).And(c, mask)
		api.AssertIsEqual(trimmed, want)
	}
	return BoundedNum{bits: bits, value: trimmed}, nil
}

// ErrOutOfRange mirrors pkg/fr.ErrOutOfRange for the constant fast
// path of NewBoundedNum.
var ErrOutOfRange = errors.New("circuits: constant value does not fit declared bit width")
