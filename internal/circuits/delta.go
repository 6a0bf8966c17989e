package circuits

import (
	"math/big"

	"github.com/consensys/gnark/frontend"

	zfr "github.com/ccoin/core/pkg/fr"
)

// Delta is the in-circuit decoded form of the packed delta public
// input (spec.md §4.4).
type Delta struct {
	Value    frontend.Variable // signed, BALANCE_SIZE_BITS wide
	Energy   frontend.Variable // signed, ENERGY_SIZE_BITS wide
	CurIndex frontend.Variable // unsigned, HEIGHT wide
	PoolID   frontend.Variable // unsigned, POOLID_SIZE_BITS wide
}

const (
	deltaValueBits  = zfr.BalanceSizeBits
	deltaEnergyBits = zfr.EnergySizeBits
	deltaIndexBits  = zfr.HeightBits
	deltaPoolIDBits = zfr.PoolIDSizeBits
	deltaTotalBits  = deltaValueBits + deltaEnergyBits + deltaIndexBits + deltaPoolIDBits
)

// ParseDelta bit-decomposes delta to deltaTotalBits, slices the four
// ranges in the fixed order (value, energy, index, poolId), and
// recomposes each, subtracting topBit*2^width from the two signed
// ranges (spec.md §4.4 steps 1-2). Width totals stay under the field
// modulus so no extra overflow check is required (step 3).
func ParseDelta(api frontend.API, delta frontend.Variable) Delta {
	bits := api.ToBinary(delta, deltaTotalBits)

	off := 0
	value := recomposeSigned(api, bits[off:off+deltaValueBits])
	off += deltaValueBits
	energy := recomposeSigned(api, bits[off:off+deltaEnergyBits])
	off += deltaEnergyBits
	curIndex := api.FromBinary(bits[off : off+deltaIndexBits]...)
	off += deltaIndexBits
	poolID := api.FromBinary(bits[off : off+deltaPoolIDBits]...)

	return Delta{Value: value, Energy: energy, CurIndex: curIndex, PoolID: poolID}
}

// recomposeSigned recomposes a two's-complement bit range and
// subtracts 2^width when the top bit is set.
func recomposeSigned(api frontend.API, bitsLE []frontend.Variable) frontend.Variable {
	width := len(bitsLE)
	unsigned := api.FromBinary(bitsLE...)
	topBit := bitsLE[width-1]
	pow := new(big.Int).Lsh(big.NewInt(1), uint(width))
	return api.Sub(unsigned, api.Mul(topBit, pow))
}
