package nullifier

import (
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	zfr "github.com/ccoin/core/pkg/fr"
)

// Delta is the decoded form of the packed public delta value: a net
// value and energy change, the current tree index, and a pool id
// (spec.md §4.4).
type Delta struct {
	Value    *big.Int // signed, BALANCE_SIZE_BITS wide
	Energy   *big.Int // signed, ENERGY_SIZE_BITS wide
	CurIndex uint64   // unsigned, HEIGHT wide
	PoolID   uint64   // unsigned, POOLID_SIZE_BITS wide
}

// widths, in the fixed field order the wire format and the circuit
// gadget both use: value, energy, index, pool id (spec.md §4.4, §6).
const (
	valueBits  = zfr.BalanceSizeBits
	energyBits = zfr.EnergySizeBits
	indexBits  = zfr.HeightBits
	poolIDBits = zfr.PoolIDSizeBits
	totalBits  = valueBits + energyBits + indexBits + poolIDBits
)

// MakeDelta packs (value, energy, curIndex, poolID) into a single
// field element by little-endian bit concatenation in the order
// value, energy, curIndex, poolID, with value and energy encoded as
// two's complement over their declared widths (spec.md §4.4, §6).
func MakeDelta(value, energy *big.Int, curIndex, poolID uint64) fr.Element {
	bits := make([]bool, 0, totalBits)
	bits = append(bits, signedBitsLE(value, valueBits)...)
	bits = append(bits, signedBitsLE(energy, energyBits)...)
	bits = append(bits, unsignedBitsLE(new(big.Int).SetUint64(curIndex), indexBits)...)
	bits = append(bits, unsignedBitsLE(new(big.Int).SetUint64(poolID), poolIDBits)...)

	n := new(big.Int)
	for i, set := range bits {
		if set {
			n.SetBit(n, i, 1)
		}
	}
	var e fr.Element
	e.SetBigInt(n)
	return e
}

// ParseDelta inverts MakeDelta: slice the packed word into its four
// ranges, recompose each range, and subtract topBit*2^width from the
// two signed ranges (spec.md §4.4 step 2).
func ParseDelta(delta fr.Element) Delta {
	var raw big.Int
	delta.BigInt(&raw)

	off := 0
	value := signedFromBitsLE(&raw, off, valueBits)
	off += valueBits
	energy := signedFromBitsLE(&raw, off, energyBits)
	off += energyBits
	curIndex := unsignedFromBitsLE(&raw, off, indexBits)
	off += indexBits
	poolID := unsignedFromBitsLE(&raw, off, poolIDBits)

	return Delta{
		Value:    value,
		Energy:   energy,
		CurIndex: curIndex.Uint64(),
		PoolID:   poolID.Uint64(),
	}
}

// signedBitsLE encodes v (which may be negative) as width-bit two's
// complement, least-significant bit first.
func signedBitsLE(v *big.Int, width int) []bool {
	mod := new(big.Int).Lsh(big.NewInt(1), uint(width))
	u := new(big.Int).Mod(v, mod)
	out := make([]bool, width)
	for i := 0; i < width; i++ {
		out[i] = u.Bit(i) == 1
	}
	return out
}

// unsignedBitsLE encodes v as width-bit unsigned, least-significant
// bit first. v must already fit in width bits.
func unsignedBitsLE(v *big.Int, width int) []bool {
	out := make([]bool, width)
	for i := 0; i < width; i++ {
		out[i] = v.Bit(i) == 1
	}
	return out
}

// unsignedFromBitsLE recomposes an unsigned width-bit range starting
// at bit offset off within raw.
func unsignedFromBitsLE(raw *big.Int, off, width int) *big.Int {
	out := new(big.Int)
	for i := 0; i < width; i++ {
		if raw.Bit(off+i) == 1 {
			out.SetBit(out, i, 1)
		}
	}
	return out
}

// signedFromBitsLE recomposes a two's-complement width-bit range,
// subtracting 2^width when the top bit is set (spec.md §4.4 step 2).
func signedFromBitsLE(raw *big.Int, off, width int) *big.Int {
	out := unsignedFromBitsLE(raw, off, width)
	if raw.Bit(off+width-1) == 1 {
		out.Sub(out, new(big.Int).Lsh(big.NewInt(1), uint(width)))
	}
	return out
}
