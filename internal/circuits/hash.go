package circuits

import (
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash"
	"github.com/consensys/gnark/std/permutation/poseidon2"

	"github.com/ccoin/core/internal/params"
)

// HashRole computes the in-circuit counterpart of
// internal/params.HashRole: a Merkle-Damgard hash over a width-2,
// 6-full/50-partial-round Poseidon2 permutation (the same
// construction internal/params.HashRole's native Poseidon2 hasher
// uses, see DESIGN.md "Poseidon parameter families") of the domain
// tag for role followed by inputs. It MUST track
// internal/params.HashRole bit-for-bit.
func HashRole(api frontend.API, role params.Role, inputs ...frontend.Variable) (frontend.Variable, error) {
	tag, err := params.DomainTag(role)
	if err != nil {
		return nil, err
	}
	perm, err := poseidon2.NewPoseidon2FromParameters(api, 2, 6, 50)
	if err != nil {
		return nil, err
	}
	h := hash.NewMerkleDamgardHasher(api, perm, 0)
	h.Write(tag)
	h.Write(inputs...)
	return h.Sum(), nil
}

// MerkleRoot computes the Poseidon Merkle root (compress role) of a
// power-of-two-length slice of leaves, mirroring
// internal/params.MerkleRoot (spec.md §4.3, §4.7).
func MerkleRoot(api frontend.API, leaves []frontend.Variable) (frontend.Variable, error) {
	level := append([]frontend.Variable(nil), leaves...)
	for len(level) > 1 {
		next := make([]frontend.Variable, len(level)/2)
		for i := 0; i < len(next); i++ {
			h, err := HashRole(api, params.RoleCompress, level[2*i], level[2*i+1])
			if err != nil {
				return nil, err
			}
			next[i] = h
		}
		level = next
	}
	return level[0], nil
}

// MerkleProofRoot reconstructs a Merkle root from leaf, its siblings,
// and a little-endian path of boolean selector signals (1 = leaf is
// the right child at that level), mirroring
// internal/params.MerkleProofRoot (spec.md §4.5 point 9, §4.6).
func MerkleProofRoot(api frontend.API, leaf frontend.Variable, siblings []frontend.Variable, pathBits []frontend.Variable) (frontend.Variable, error) {
	cur := leaf
	for i, sibling := range siblings {
		api.AssertIsBoolean(pathBits[i])
		left := api.Select(pathBits[i], sibling, cur)
		right := api.Select(pathBits[i], cur, sibling)
		h, err := HashRole(api, params.RoleCompress, left, right)
		if err != nil {
			return nil, err
		}
		cur = h
	}
	return cur, nil
}

// BitsToField recomposes a little-endian bit vector into a single
// field signal, used to turn a Merkle path into the packed index
// spec.md §4.5 calls bits_to_field (points 8, 10).
func BitsToField(api frontend.API, bitsLE []frontend.Variable) frontend.Variable {
	return api.FromBinary(bitsLE...)
}
