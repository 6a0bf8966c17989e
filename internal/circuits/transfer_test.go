package circuits

import (
	"math/big"
	"testing"

	"github.com/consensys/gnark-crypto/ecc"
	bn254fr "github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/backend"
	"github.com/consensys/gnark/test"

	"github.com/ccoin/core/internal/keys"
	"github.com/ccoin/core/internal/nullifier"
	zfr "github.com/ccoin/core/pkg/fr"
	"github.com/ccoin/core/pkg/types"
)

func bigOf(e bn254fr.Element) *big.Int {
	var b big.Int
	e.BigInt(&b)
	return &b
}

// buildDepositWitness assembles a self-consistent TransferCircuit
// witness for the "deposit" scenario: an initial account receives
// value purely through delta, every note slot stays dummy, and the
// account proof sits at tree position zero (spec.md §8).
func buildDepositWitness(t *testing.T) TransferCircuit {
	t.Helper()

	sigma, err := keys.RandomSpendSeed()
	if err != nil {
		t.Fatalf("spend seed: %v", err)
	}
	a, aX, err := keys.DeriveKeyA(sigma)
	if err != nil {
		t.Fatalf("derive A: %v", err)
	}
	eta, err := keys.DeriveKeyEta(aX)
	if err != nil {
		t.Fatalf("derive eta: %v", err)
	}

	var pid bn254fr.Element
	pid.SetUint64(7)
	pd, err := keys.DeriveKeyPd(pid, eta)
	if err != nil {
		t.Fatalf("derive pd: %v", err)
	}

	inAccount := types.Account{
		D:  zfr.NewUnchecked(zfr.DiversifierSizeBits, big.NewInt(7)),
		Pd: pd,
		I:  zfr.NewUnchecked(zfr.HeightBits, big.NewInt(0)),
		B:  zfr.NewUnchecked(zfr.BalanceSizeBits, big.NewInt(0)),
		E:  zfr.NewUnchecked(zfr.EnergySizeBits, big.NewInt(0)),
	}
	outAccount := types.Account{
		D:  zfr.NewUnchecked(zfr.DiversifierSizeBits, big.NewInt(7)),
		Pd: pd,
		I:  zfr.NewUnchecked(zfr.HeightBits, big.NewInt(10)),
		B:  zfr.NewUnchecked(zfr.BalanceSizeBits, big.NewInt(500)),
		E:  zfr.NewUnchecked(zfr.EnergySizeBits, big.NewInt(0)),
	}

	zeroNote := types.ZeroNote()
	zeroNoteHash, err := zeroNote.Hash()
	if err != nil {
		t.Fatalf("zero note hash: %v", err)
	}

	inAccountHash, err := inAccount.Hash()
	if err != nil {
		t.Fatalf("in account hash: %v", err)
	}
	outAccountHash, err := outAccount.Hash()
	if err != nil {
		t.Fatalf("out account hash: %v", err)
	}

	// Dummy input notes (b = 0) still pass the ownership check, so each
	// carries p_d = DeriveKeyPd(0, η) rather than the all-zero note.
	dummyInNote := types.ZeroNote()
	dummyInNote.Pd, err = keys.DeriveKeyPd(bn254fr.Element{}, eta)
	if err != nil {
		t.Fatalf("derive dummy pd: %v", err)
	}
	dummyInNoteHash, err := dummyInNote.Hash()
	if err != nil {
		t.Fatalf("dummy note hash: %v", err)
	}

	inNoteHashes := []bn254fr.Element{dummyInNoteHash, dummyInNoteHash, dummyInNoteHash}
	outNoteHashes := make([]bn254fr.Element, Out)
	for i := range outNoteHashes {
		outNoteHashes[i] = zeroNoteHash
	}

	outCommitment, err := nullifier.OutCommitment(outAccountHash, outNoteHashes, zeroNoteHash, OutPlusOne)
	if err != nil {
		t.Fatalf("out commitment: %v", err)
	}

	var indexPath bn254fr.Element // tree position 0
	nf, err := nullifier.Derive(inAccountHash, eta, indexPath)
	if err != nil {
		t.Fatalf("nullifier: %v", err)
	}

	txHash, err := nullifier.TxHash(append([]bn254fr.Element{inAccountHash}, inNoteHashes...), outCommitment)
	if err != nil {
		t.Fatalf("tx hash: %v", err)
	}

	sig, err := keys.Sign(sigma, aX, txHash)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	delta := nullifier.MakeDelta(big.NewInt(500), big.NewInt(0), 10, 7)

	var w TransferCircuit
	w.Root = big.NewInt(0)
	w.Nullifier = bigOf(nf)
	w.OutCommit = bigOf(outCommitment)
	w.Delta = bigOf(delta)
	w.Memo = big.NewInt(42)

	w.InAccount = Account{
		D: bigOf(inAccount.D.ToNum()), Pd: bigOf(inAccount.Pd),
		I: bigOf(inAccount.I.ToNum()), B: bigOf(inAccount.B.ToNum()), E: bigOf(inAccount.E.ToNum()),
	}
	w.OutAccount = Account{
		D: bigOf(outAccount.D.ToNum()), Pd: bigOf(outAccount.Pd),
		I: bigOf(outAccount.I.ToNum()), B: bigOf(outAccount.B.ToNum()), E: bigOf(outAccount.E.ToNum()),
	}

	for i := 0; i < In; i++ {
		w.InNote[i] = Note{D: big.NewInt(0), Pd: bigOf(dummyInNote.Pd), B: big.NewInt(0), T: big.NewInt(0)}
		for l := 0; l < Height; l++ {
			w.NoteProof[i].Siblings[l] = big.NewInt(0)
			w.NoteProof[i].PathBits[l] = 0
		}
	}
	for k := 0; k < Out; k++ {
		w.OutNote[k] = Note{D: big.NewInt(0), Pd: big.NewInt(0), B: big.NewInt(0), T: big.NewInt(0)}
	}
	for l := 0; l < Height; l++ {
		w.AccountProof.Siblings[l] = big.NewInt(0)
		w.AccountProof.PathBits[l] = 0
	}

	w.EddsaRX = bigOf(sig.R.X)
	w.EddsaRY = bigOf(sig.R.Y)
	w.EddsaS = sig.S
	w.EddsaAX = bigOf(aX)
	w.EddsaAY = bigOf(a.Y)

	return w
}

func TestTransferCircuitDepositSatisfies(t *testing.T) {
	assignment := buildDepositWitness(t)

	var circuit TransferCircuit
	assert := test.NewAssert(t)
	assert.ProverSucceeded(&circuit, &assignment, test.WithCurves(ecc.BN254), test.WithBackends(backend.GROTH16))
}

func TestTransferCircuitRejectsTamperedDelta(t *testing.T) {
	assignment := buildDepositWitness(t)
	tampered := nullifier.MakeDelta(big.NewInt(501), big.NewInt(0), 10, 7)
	assignment.Delta = bigOf(tampered)

	var circuit TransferCircuit
	assert := test.NewAssert(t)
	assert.ProverFailed(&circuit, &assignment, test.WithCurves(ecc.BN254), test.WithBackends(backend.GROTH16))
}

func TestTransferCircuitRejectsForgedSignature(t *testing.T) {
	assignment := buildDepositWitness(t)
	assignment.EddsaS = big.NewInt(1)

	var circuit TransferCircuit
	assert := test.NewAssert(t)
	assert.ProverFailed(&circuit, &assignment, test.WithCurves(ecc.BN254), test.WithBackends(backend.GROTH16))
}

func TestTransferCircuitRejectsDoubleCountedOutputBalance(t *testing.T) {
	assignment := buildDepositWitness(t)
	// Inflate a dummy output note's balance without touching delta or
	// out_account.b: balance conservation must now fail.
	assignment.OutNote[0].B = big.NewInt(10)

	var circuit TransferCircuit
	assert := test.NewAssert(t)
	assert.ProverFailed(&circuit, &assignment, test.WithCurves(ecc.BN254), test.WithBackends(backend.GROTH16))
}
