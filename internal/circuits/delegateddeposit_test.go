package circuits

import (
	"math/big"
	"testing"

	"github.com/consensys/gnark-crypto/ecc"
	bn254fr "github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/backend"
	"github.com/consensys/gnark/test"
	"golang.org/x/crypto/sha3"

	"github.com/ccoin/core/internal/nullifier"
	zfr "github.com/ccoin/core/pkg/fr"
	"github.com/ccoin/core/pkg/types"
)

// keccakSumNative reduces out_commitment_hash and every deposit triple
// through Keccak-256 exactly as the in-circuit gadget does: big-endian
// field bytes in, little-endian digest reinterpretation out (spec.md
// §4.7).
func keccakSumNative(t *testing.T, outCommitmentHash bn254fr.Element, deposits []types.DelegatedDeposit) bn254fr.Element {
	t.Helper()

	h := sha3.NewLegacyKeccak256()
	ocBytes := outCommitmentHash.Bytes()
	h.Write(ocBytes[:])
	for _, d := range deposits {
		db := d.D.ToNum().Bytes()
		pb := d.Pd.Bytes()
		bb := d.B.ToNum().Bytes()
		h.Write(db[:])
		h.Write(pb[:])
		h.Write(bb[:])
	}
	// The circuit hashes all Out slots; unused ones are zero deposits.
	for i := len(deposits); i < Out; i++ {
		h.Write(make([]byte, 3*32))
	}
	digest := h.Sum(nil)

	acc := new(big.Int)
	shift := big.NewInt(1)
	for _, b := range digest {
		term := new(big.Int).Mul(big.NewInt(int64(b)), shift)
		acc.Add(acc, term)
		shift.Mul(shift, big.NewInt(256))
	}
	var out bn254fr.Element
	out.SetBigInt(acc)
	return out
}

func buildDelegatedDepositWitness(t *testing.T, deposits []types.DelegatedDeposit) DelegatedDepositCircuit {
	t.Helper()

	zeroAccount := types.Account{
		D:  zfr.NewUnchecked(zfr.DiversifierSizeBits, big.NewInt(0)),
		Pd: bn254fr.Element{},
		I:  zfr.NewUnchecked(zfr.HeightBits, big.NewInt(0)),
		B:  zfr.NewUnchecked(zfr.BalanceSizeBits, big.NewInt(0)),
		E:  zfr.NewUnchecked(zfr.EnergySizeBits, big.NewInt(0)),
	}
	zeroAccountHash, err := zeroAccount.Hash()
	if err != nil {
		t.Fatalf("zero account hash: %v", err)
	}
	zeroNoteHash, err := types.ZeroNote().Hash()
	if err != nil {
		t.Fatalf("zero note hash: %v", err)
	}

	depositNoteHashes := make([]bn254fr.Element, len(deposits))
	for i, d := range deposits {
		h, err := d.ToNote().Hash()
		if err != nil {
			t.Fatalf("deposit note hash: %v", err)
		}
		depositNoteHashes[i] = h
	}

	outCommitmentHash, err := nullifier.OutCommitment(zeroAccountHash, depositNoteHashes, zeroNoteHash, OutPlusOne)
	if err != nil {
		t.Fatalf("out commitment: %v", err)
	}

	keccakSum := keccakSumNative(t, outCommitmentHash, deposits)

	var w DelegatedDepositCircuit
	w.KeccakSum = bigOf(keccakSum)
	w.OutCommitmentHash = bigOf(outCommitmentHash)
	for i := 0; i < Out; i++ {
		if i < len(deposits) {
			w.Deposits[i] = Deposit{
				D:  bigOf(deposits[i].D.ToNum()),
				Pd: bigOf(deposits[i].Pd),
				B:  bigOf(deposits[i].B.ToNum()),
			}
		} else {
			w.Deposits[i] = Deposit{D: big.NewInt(0), Pd: big.NewInt(0), B: big.NewInt(0)}
		}
	}
	return w
}

func sampleDeposits(t *testing.T) []types.DelegatedDeposit {
	t.Helper()
	d, err := types.NewNote(big.NewInt(1), big.NewInt(250), big.NewInt(0), bn254fr.Element{})
	if err != nil {
		t.Fatalf("note: %v", err)
	}
	return []types.DelegatedDeposit{
		{D: d.D, Pd: d.Pd, B: d.B},
	}
}

func TestDelegatedDepositSatisfies(t *testing.T) {
	assignment := buildDelegatedDepositWitness(t, sampleDeposits(t))

	var circuit DelegatedDepositCircuit
	assert := test.NewAssert(t)
	assert.ProverSucceeded(&circuit, &assignment, test.WithCurves(ecc.BN254), test.WithBackends(backend.GROTH16))
}

func TestDelegatedDepositRejectsTamperedKeccakSum(t *testing.T) {
	assignment := buildDelegatedDepositWitness(t, sampleDeposits(t))
	assignment.KeccakSum = big.NewInt(1)

	var circuit DelegatedDepositCircuit
	assert := test.NewAssert(t)
	assert.ProverFailed(&circuit, &assignment, test.WithCurves(ecc.BN254), test.WithBackends(backend.GROTH16))
}

func TestDelegatedDepositRejectsMismatchedOutCommitment(t *testing.T) {
	assignment := buildDelegatedDepositWitness(t, sampleDeposits(t))
	assignment.Deposits[1].B = big.NewInt(999) // mutate an unused slot's balance

	var circuit DelegatedDepositCircuit
	assert := test.NewAssert(t)
	assert.ProverFailed(&circuit, &assignment, test.WithCurves(ecc.BN254), test.WithBackends(backend.GROTH16))
}
