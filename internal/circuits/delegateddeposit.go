package circuits

import (
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/sha3"
	"github.com/consensys/gnark/std/math/uints"

	zfr "github.com/ccoin/core/pkg/fr"
)

// Deposit is the in-circuit witness shape of a single delegated
// deposit: (d, p_d, b) (spec.md §3, §4.7).
type Deposit struct {
	D  frontend.Variable
	Pd frontend.Variable
	B  frontend.Variable
}

// toNote lifts a deposit to its zero-salt note form (spec.md §3
// DelegatedDeposit.to_note).
func (d Deposit) toNote() Note {
	return Note{D: d.D, Pd: d.Pd, B: d.B, T: 0}
}

// DelegatedDepositCircuit proves that a cheap public Keccak digest of
// a deposit batch matches the Poseidon commitment the pool will
// store (spec.md §4.7).
type DelegatedDepositCircuit struct {
	// Public input.
	KeccakSum frontend.Variable `gnark:",public"`

	// Secret witness.
	OutCommitmentHash frontend.Variable
	Deposits          [Out]Deposit // N <= OUT; unused slots MUST be the canonical zero deposit
}

// Define implements spec.md §4.7.
func (c *DelegatedDepositCircuit) Define(api frontend.API) error {
	hasher, err := sha3.NewLegacyKeccak256(api)
	if err != nil {
		return err
	}

	hasher.Write(fieldToBytesBE(api, c.OutCommitmentHash, fieldByteWidth))
	for i := range c.Deposits {
		hasher.Write(fieldToBytesBE(api, c.Deposits[i].D, fieldByteWidth))
		hasher.Write(fieldToBytesBE(api, c.Deposits[i].Pd, fieldByteWidth))
		hasher.Write(fieldToBytesBE(api, c.Deposits[i].B, fieldByteWidth))
	}

	digest := hasher.Sum()
	reduced := bytesToFieldLE(api, digest)
	api.AssertIsEqual(reduced, c.KeccakSum)

	// out_commitment_hash must equal the Poseidon Merkle root of
	// [zeroAccountHash] || deposit.to_note().hash()_i || pad(zeroNoteHash).
	zeroAccount := Account{D: 0, Pd: 0, I: 0, B: 0, E: 0}
	zeroAccountHash, err := zeroAccount.Hash(api)
	if err != nil {
		return err
	}
	zeroNoteHash, err := ZeroNoteHash(api)
	if err != nil {
		return err
	}

	leaves := make([]frontend.Variable, OutPlusOne)
	leaves[0] = zeroAccountHash
	for i, d := range c.Deposits {
		h, err := d.toNote().Hash(api)
		if err != nil {
			return err
		}
		leaves[i+1] = h
	}
	for i := len(c.Deposits) + 1; i < OutPlusOne; i++ {
		leaves[i] = zeroNoteHash
	}

	root, err := MerkleRoot(api, leaves)
	if err != nil {
		return err
	}
	api.AssertIsEqual(root, c.OutCommitmentHash)

	return nil
}

// fieldByteWidth is ceil(MODULUS_BITS/8), the wire width of a field
// element (spec.md §6 "Wire formats").
const fieldByteWidth = (zfr.ModulusBits + 7) / 8

// fieldToBytesBE decomposes v into nBytes big-endian bytes via bit
// decomposition, for consumption by the in-circuit Keccak gadget.
func fieldToBytesBE(api frontend.API, v frontend.Variable, nBytes int) []uints.U8 {
	bits := api.ToBinary(v, nBytes*8)
	out := make([]uints.U8, nBytes)
	for i := 0; i < nBytes; i++ {
		byteBits := bits[i*8 : i*8+8]
		byteVal := api.FromBinary(byteBits...)
		out[nBytes-1-i] = uints.U8{Val: byteVal}
	}
	return out
}

// bytesToFieldLE reduces a Keccak digest to Fr by little-endian byte
// reinterpretation (spec.md §4.7).
func bytesToFieldLE(api frontend.API, digest []uints.U8) frontend.Variable {
	acc := frontend.Variable(0)
	shift := frontend.Variable(1)
	for _, b := range digest {
		acc = api.Add(acc, api.Mul(b.Val, shift))
		shift = api.Mul(shift, 256)
	}
	return acc
}
