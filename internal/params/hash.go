package params

import (
	"errors"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/poseidon2"
)

// HashRole computes the spec's Poseidon_t(inputs, role) using
// gnark-crypto's BN254 Poseidon2 permutation, wrapped in a
// Merkle-Damgard hasher, as the concrete substrate for every named
// Poseidon family (see DESIGN.md "Poseidon parameter families").
// Domain separation across the seven roles comes from prepending the
// role's fixed DomainTag before the real inputs, so the same
// underlying permutation never collides across roles for the same
// input tuple.
func HashRole(role Role, inputs ...fr.Element) (fr.Element, error) {
	tag, err := DomainTag(role)
	if err != nil {
		return fr.Element{}, err
	}

	h := poseidon2.NewMerkleDamgardHasher()
	var tagElem fr.Element
	tagElem.SetUint64(tag)
	tagBytes := tagElem.Bytes()
	h.Write(tagBytes[:])
	for _, in := range inputs {
		b := in.Bytes()
		h.Write(b[:])
	}

	var out fr.Element
	out.SetBytes(h.Sum(nil))
	return out, nil
}

// Sponge absorbs an arbitrary-length slice of field elements under
// the given role, used for tx_hash (spec.md §4.3).
func Sponge(role Role, inputs ...fr.Element) (fr.Element, error) {
	return HashRole(role, inputs...)
}

// MerkleRoot computes the Poseidon Merkle root (compress role) of a
// slice of leaves whose length is a power of two (spec.md §4.3
// outCommitment, §4.7).
func MerkleRoot(leaves []fr.Element) (fr.Element, error) {
	if len(leaves) == 0 {
		return fr.Element{}, errEmptyLeaves
	}
	if len(leaves)&(len(leaves)-1) != 0 {
		return fr.Element{}, errNotPowerOfTwo
	}
	level := append([]fr.Element(nil), leaves...)
	for len(level) > 1 {
		next := make([]fr.Element, len(level)/2)
		for i := 0; i < len(next); i++ {
			h, err := HashRole(RoleCompress, level[2*i], level[2*i+1])
			if err != nil {
				return fr.Element{}, err
			}
			next[i] = h
		}
		level = next
	}
	return level[0], nil
}

// MerkleProofRoot reconstructs a Merkle root from a leaf, its
// siblings, and a little-endian path (false=left child, true=right
// child at that level), using the compress role.
func MerkleProofRoot(leaf fr.Element, siblings []fr.Element, pathBits []bool) (fr.Element, error) {
	if len(siblings) != len(pathBits) {
		return fr.Element{}, errPathLengthMismatch
	}
	cur := leaf
	for i, sibling := range siblings {
		var left, right fr.Element
		if pathBits[i] {
			left, right = sibling, cur
		} else {
			left, right = cur, sibling
		}
		h, err := HashRole(RoleCompress, left, right)
		if err != nil {
			return fr.Element{}, err
		}
		cur = h
	}
	return cur, nil
}

// DefaultSubtreeRoots returns h_0..h_depth where h_0 is the empty
// leaf (0) and h_k = Poseidon_2(h_{k-1}, h_{k-1}) (spec.md §3
// invariant 3).
func DefaultSubtreeRoots(depth int) ([]fr.Element, error) {
	out := make([]fr.Element, depth+1)
	out[0] = fr.Element{} // zero
	for k := 1; k <= depth; k++ {
		h, err := HashRole(RoleCompress, out[k-1], out[k-1])
		if err != nil {
			return nil, err
		}
		out[k] = h
	}
	return out, nil
}

// BigIntToElement reduces an arbitrary big.Int into Fr.
func BigIntToElement(n *big.Int) fr.Element {
	var e fr.Element
	e.SetBigInt(n)
	return e
}

var (
	errEmptyLeaves        = errors.New("params: leaves must be non-empty")
	errNotPowerOfTwo      = errors.New("params: leaves length must be a power of two")
	errPathLengthMismatch = errors.New("params: siblings/path length mismatch")
)
