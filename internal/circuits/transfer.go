package circuits

import (
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/algebra/native/twistededwards"

	"github.com/ccoin/core/internal/params"
	zfr "github.com/ccoin/core/pkg/fr"
)

// Fixed sizing constants shared with the native layer (spec.md §3).
const (
	In         = 3 // parameterised per spec.md §3; 3 chosen as the default
	Out        = zfr.Out
	OutPlusOne = Out + 1
	Height     = zfr.HeightBits
)

// MerklePath is the in-circuit HEIGHT-sibling, HEIGHT-bit Merkle
// witness, mirroring pkg/types.MerkleProof (spec.md §3).
type MerklePath struct {
	Siblings [Height]frontend.Variable
	PathBits [Height]frontend.Variable // little-endian; 1 = leaf is the right child at that level
}

func (p MerklePath) pathSlice() []frontend.Variable    { return p.PathBits[:] }
func (p MerklePath) siblingSlice() []frontend.Variable { return p.Siblings[:] }

// TransferCircuit is the dominant circuit of the pool: it enforces
// balance conservation, ownership, Merkle inclusion, nullifier
// derivation, signature validity, energy accrual, and delta parsing
// (spec.md §4.5).
type TransferCircuit struct {
	// Public inputs, in the exact order spec.md §6 fixes.
	Root      frontend.Variable `gnark:",public"`
	Nullifier frontend.Variable `gnark:",public"`
	OutCommit frontend.Variable `gnark:",public"`
	Delta     frontend.Variable `gnark:",public"`
	Memo      frontend.Variable `gnark:",public"`

	// Secret witness: tx.input, tx.output (spec.md §4.5).
	InAccount  Account
	InNote     [In]Note
	OutAccount Account
	OutNote    [Out]Note

	// Secret witness: inProof (spec.md §4.5).
	AccountProof MerklePath
	NoteProof    [In]MerklePath

	// Secret witness: the EdDSA-Poseidon signature over tx_hash
	// (spec.md §4.5 point 12, §6). The gadget's contract needs full
	// curve points for R and the public key; eddsa_a/eddsa_r's
	// y-coordinates are carried alongside their x-coordinates for
	// that reason.
	EddsaS  frontend.Variable
	EddsaRX frontend.Variable
	EddsaRY frontend.Variable
	EddsaAX frontend.Variable
	EddsaAY frontend.Variable
}

// Define implements the transfer circuit's constraint list, ordered
// so that every value referenced is already constrained (spec.md
// §4.5).
func (c *TransferCircuit) Define(api frontend.API) error {
	// 1. Parse delta.
	delta := ParseDelta(api, c.Delta)

	// 2. Hash inputs.
	inAccountHash, err := c.InAccount.Hash(api)
	if err != nil {
		return err
	}
	inNoteHash := make([]frontend.Variable, In)
	inDummy := make([]frontend.Variable, In)
	for i := 0; i < In; i++ {
		h, err := c.InNote[i].Hash(api)
		if err != nil {
			return err
		}
		inNoteHash[i] = h
		inDummy[i] = c.InNote[i].IsDummy(api)
	}

	// 3. Input-note uniqueness: for all i<j, distinct index or one is
	// dummy. Index here is each note's own Merkle-proof position.
	inNoteIndex := make([]frontend.Variable, In)
	for i := 0; i < In; i++ {
		inNoteIndex[i] = BitsToField(api, c.NoteProof[i].pathSlice())
	}
	uniqueSum := frontend.Variable(0)
	for i := 0; i < In; i++ {
		for j := i + 1; j < In; j++ {
			indicesEqual := api.IsZero(api.Sub(inNoteIndex[i], inNoteIndex[j]))
			nonDummyBoth := api.Mul(api.Sub(1, inDummy[i]), api.Sub(1, inDummy[j]))
			uniqueSum = api.Add(uniqueSum, api.Mul(indicesEqual, nonDummyBoth))
		}
	}
	api.AssertIsEqual(uniqueSum, 0)

	// 4. Hash outputs; output-note uniqueness allowing zero-note
	// repeats (spec.md §4.5 point 4).
	outAccountHash, err := c.OutAccount.Hash(api)
	if err != nil {
		return err
	}
	outNoteHash := make([]frontend.Variable, Out)
	outIsZero := make([]frontend.Variable, Out)
	zeroNoteHash, err := ZeroNoteHash(api)
	if err != nil {
		return err
	}
	for k := 0; k < Out; k++ {
		h, err := c.OutNote[k].Hash(api)
		if err != nil {
			return err
		}
		outNoteHash[k] = h
		outIsZero[k] = api.IsZero(api.Sub(h, zeroNoteHash))
	}
	var equalPairs, zeroCount frontend.Variable = 0, 0
	for k := 0; k < Out; k++ {
		zeroCount = api.Add(zeroCount, outIsZero[k])
	}
	for i := 0; i < Out; i++ {
		for j := i + 1; j < Out; j++ {
			eq := api.IsZero(api.Sub(outNoteHash[i], outNoteHash[j]))
			equalPairs = api.Add(equalPairs, eq)
		}
	}
	// Every equal pair must be explained by the zero-note multiset:
	// C(zeroCount, 2) = zeroCount*(zeroCount-1)/2.
	zeroPairs := api.Div(api.Mul(zeroCount, api.Sub(zeroCount, 1)), 2)
	api.AssertIsEqual(api.Sub(equalPairs, zeroPairs), 0)

	// 5. Out commitment.
	leaves := make([]frontend.Variable, OutPlusOne)
	leaves[0] = outAccountHash
	copy(leaves[1:], outNoteHash)
	outCommitment, err := MerkleRoot(api, leaves)
	if err != nil {
		return err
	}
	api.AssertIsEqual(outCommitment, c.OutCommit)

	// 6. Key derivation in-circuit.
	eta, err := DeriveEta(api, c.EddsaAX)
	if err != nil {
		return err
	}

	curve, err := NewEdCurve(api)
	if err != nil {
		return err
	}

	// 7. Ownership.
	inPd, err := DerivePd(api, curve, c.InAccount.D, eta)
	if err != nil {
		return err
	}
	api.AssertIsEqual(inPd, c.InAccount.Pd)

	outPd, err := DerivePd(api, curve, c.OutAccount.D, eta)
	if err != nil {
		return err
	}
	api.AssertIsEqual(outPd, c.OutAccount.Pd)

	for i := 0; i < In; i++ {
		pd, err := DerivePd(api, curve, c.InNote[i].D, eta)
		if err != nil {
			return err
		}
		api.AssertIsEqual(pd, c.InNote[i].Pd)
	}

	// 8. Nullifier.
	inPosIndex := BitsToField(api, c.AccountProof.pathSlice())
	nullifier, err := Nullifier(api, inAccountHash, eta, inPosIndex)
	if err != nil {
		return err
	}
	api.AssertIsEqual(nullifier, c.Nullifier)

	// 9. Merkle inclusion.
	accountRoot, err := MerkleProofRoot(api, inAccountHash, c.AccountProof.siblingSlice(), c.AccountProof.pathSlice())
	if err != nil {
		return err
	}
	accountIsInitial := c.InAccount.IsInitial(api, delta.PoolID)
	accountRootOk := api.IsZero(api.Sub(accountRoot, c.Root))
	api.AssertIsEqual(api.Or(accountRootOk, accountIsInitial), 1)

	for i := 0; i < In; i++ {
		noteRoot, err := MerkleProofRoot(api, inNoteHash[i], c.NoteProof[i].siblingSlice(), c.NoteProof[i].pathSlice())
		if err != nil {
			return err
		}
		noteRootOk := api.IsZero(api.Sub(noteRoot, c.Root))
		api.AssertIsEqual(api.Or(noteRootOk, inDummy[i]), 1)
	}

	// 10. Index ordering.
	assertLE(api, c.InAccount.I, c.OutAccount.I)
	assertLE(api, c.OutAccount.I, delta.CurIndex)
	for i := 0; i < In; i++ {
		lowOk := isLE(api, c.InAccount.I, inNoteIndex[i])
		highOk := isLT(api, inNoteIndex[i], c.OutAccount.I)
		ordered := api.Mul(lowOk, highOk)
		api.AssertIsEqual(api.Or(ordered, inDummy[i]), 1)
	}

	// 11. Memo binding: memo+1 != 0, i.e. memo is wired in.
	api.AssertIsDifferent(api.Add(c.Memo, 1), 0)

	// 12. Signature over tx_hash. Verified by hand rather than via the
	// library eddsa gadget, since the challenge must go through the
	// same domain-tagged HashRole as internal/keys.challenge — the
	// plain MiMC the library gadget hashes with would diverge from the
	// native signer's challenge.
	txHash, err := TxHash(api, append([]frontend.Variable{inAccountHash}, inNoteHash...), outCommitment)
	if err != nil {
		return err
	}
	challenge, err := HashRole(api, params.RoleEDDSA, c.EddsaRX, c.EddsaRY, c.EddsaAX, txHash)
	if err != nil {
		return err
	}
	rPoint := twistededwards.Point{X: c.EddsaRX, Y: c.EddsaRY}
	aPoint := twistededwards.Point{X: c.EddsaAX, Y: c.EddsaAY}
	lhs := curve.ScalarMul(curve.Params().Base, c.EddsaS)
	rhs := curve.Add(rPoint, curve.ScalarMul(aPoint, challenge))
	api.AssertIsEqual(lhs.X, rhs.X)
	api.AssertIsEqual(lhs.Y, rhs.Y)

	// 13. Balance conservation.
	balance := api.Add(delta.Value, c.InAccount.B)
	balance = api.Sub(balance, c.OutAccount.B)
	for i := 0; i < In; i++ {
		balance = api.Add(balance, c.InNote[i].B)
	}
	for k := 0; k < Out; k++ {
		balance = api.Sub(balance, c.OutNote[k].B)
	}
	api.AssertIsEqual(balance, 0)

	// 14. Energy accrual.
	energy := delta.Energy
	energy = api.Add(energy, api.Mul(c.InAccount.B, api.Sub(delta.CurIndex, inPosIndex)))
	for i := 0; i < In; i++ {
		energy = api.Add(energy, api.Mul(c.InNote[i].B, api.Sub(delta.CurIndex, inNoteIndex[i])))
	}
	energy = api.Add(energy, api.Sub(c.InAccount.E, c.OutAccount.E))
	// Range-check the accrual total to MODULUS_BITS-2 to rule out
	// wrap-around false positives, then assert it is exactly zero.
	api.ToBinary(energy, zfr.ModulusBits-2)
	api.AssertIsEqual(energy, 0)

	return nil
}

// assertLE asserts a <= b.
func assertLE(api frontend.API, a, b frontend.Variable) {
	api.AssertIsLessOrEqual(a, b)
}

// isLT returns 1 if a < b, else 0. api.Cmp returns -1/0/1.
func isLT(api frontend.API, a, b frontend.Variable) frontend.Variable {
	return api.IsZero(api.Add(api.Cmp(a, b), 1))
}

// isLE returns 1 if a <= b, else 0.
func isLE(api frontend.API, a, b frontend.Variable) frontend.Variable {
	cmp := api.Cmp(a, b)
	isLess := api.IsZero(api.Add(cmp, 1))
	isEqual := api.IsZero(cmp)
	return api.Add(isLess, isEqual)
}
