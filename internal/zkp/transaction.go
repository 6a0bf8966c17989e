// Package zkp also assembles and applies shielded transactions:
// turning an input account/notes plus a desired output account/notes
// into a TransferCircuit witness, signing it, and applying an
// accepted transaction's effects to the commitment tree and nullifier
// set (spec.md §4.5).
package zkp

import (
	"context"
	"errors"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/ccoin/core/internal/circuits"
	"github.com/ccoin/core/internal/keys"
	"github.com/ccoin/core/internal/merkletree"
	"github.com/ccoin/core/internal/nullifier"
	"github.com/ccoin/core/internal/params"
	"github.com/ccoin/core/pkg/types"
)

// Transaction assembly/processing errors.
var (
	ErrNullifierSpent = errors.New("zkp: nullifier already spent")
	ErrInvalidAnchor  = errors.New("zkp: anchor does not match the current root")
	ErrProofInvalid   = errors.New("zkp: proof failed verification")
)

// Spend bundles one input account together with the up to In input
// notes it is merging (spec.md §4.5). Unused note slots must be dummy
// notes (b = 0) whose p_d is still DeriveKeyPd(d, Eta), since the
// transfer circuit checks ownership of every input note.
type Spend struct {
	Account      types.Account
	AccountProof types.MerkleProof
	Notes        [circuits.In]types.Note
	NoteProofs   [circuits.In]types.MerkleProof
}

// TransferPlan is everything needed to build and prove one transfer:
// the spend being consumed, the account/notes it produces, and the
// signer's key material (spec.md §4.5, §4.2). Both coordinates of the
// signing key are carried, not just the x-coordinate the native
// Account/Note model stores, for the same reason internal/memo widens
// its ephemeral key to a full point: a twisted-Edwards y-coordinate
// cannot be recovered from x alone.
type TransferPlan struct {
	Spend      Spend
	OutAccount types.Account
	OutNotes   [circuits.Out]types.Note

	Sigma    *big.Int   // spend-key seed
	A        fr.Element // DeriveKeyA(Sigma) public x-coordinate
	AY       fr.Element // matching y-coordinate
	Eta      fr.Element // DeriveKeyEta(A)
	CurIndex uint64     // tree size at the time of proving; delta.cur_index
	PoolID   uint64
}

// BuiltTransfer is an assembled, unproven transaction: its
// public fields plus the witness assignment to prove them with (kept around so ProcessTransaction callers can re-derive
// out-commitment leaves without re-hashing every note).
type BuiltTransfer struct {
	Root          fr.Element
	Nullifier     fr.Element
	OutCommitment fr.Element
	Delta         fr.Element
	OutLeaves     [circuits.OutPlusOne]fr.Element

	Witness circuits.TransferCircuit
}

// bigOf converts a field element to the *big.Int gnark witnesses
// expect for frontend.Variable assignment.
func bigOf(e fr.Element) *big.Int {
	var b big.Int
	e.BigInt(&b)
	return &b
}

func pathToCircuit(p types.MerkleProof) circuits.MerklePath {
	var out circuits.MerklePath
	for i := 0; i < circuits.Height; i++ {
		out.Siblings[i] = bigOf(p.Siblings[i])
		if p.PathLSBFirst[i] {
			out.PathBits[i] = big.NewInt(1)
		} else {
			out.PathBits[i] = big.NewInt(0)
		}
	}
	return out
}

func noteToCircuit(n types.Note) circuits.Note {
	return circuits.Note{
		D:  bigOf(n.D.ToNum()),
		Pd: bigOf(n.Pd),
		B:  bigOf(n.B.ToNum()),
		T:  bigOf(n.T.ToNum()),
	}
}

func accountToCircuit(a types.Account) circuits.Account {
	return circuits.Account{
		D:  bigOf(a.D.ToNum()),
		Pd: bigOf(a.Pd),
		I:  bigOf(a.I.ToNum()),
		B:  bigOf(a.B.ToNum()),
		E:  bigOf(a.E.ToNum()),
	}
}

// BuildTransfer assembles the native public fields and the full
// circuit witness for plan, signing tx_hash with the plan's
// spend-key seed (spec.md §4.5). It does not itself call the prover;
// pair it with CircuitManager.Prove.
func BuildTransfer(plan TransferPlan) (*BuiltTransfer, error) {
	inAccountHash, err := plan.Spend.Account.Hash()
	if err != nil {
		return nil, err
	}
	inNoteHashes := make([]fr.Element, circuits.In)
	for i := 0; i < circuits.In; i++ {
		h, err := plan.Spend.Notes[i].Hash()
		if err != nil {
			return nil, err
		}
		inNoteHashes[i] = h
	}

	outAccountHash, err := plan.OutAccount.Hash()
	if err != nil {
		return nil, err
	}
	outNoteHashes := make([]fr.Element, circuits.Out)
	for i := 0; i < circuits.Out; i++ {
		h, err := plan.OutNotes[i].Hash()
		if err != nil {
			return nil, err
		}
		outNoteHashes[i] = h
	}
	zeroNoteHash, err := types.ZeroNote().Hash()
	if err != nil {
		return nil, err
	}

	outCommitment, err := nullifier.OutCommitment(outAccountHash, outNoteHashes, zeroNoteHash, circuits.OutPlusOne)
	if err != nil {
		return nil, err
	}

	var accountIndex fr.Element
	accountIndex.SetUint64(plan.Spend.AccountProof.Index())

	nullifierVal, err := nullifier.Derive(inAccountHash, plan.Eta, accountIndex)
	if err != nil {
		return nil, err
	}

	root, err := params.MerkleProofRoot(inAccountHash, plan.Spend.AccountProof.Siblings, plan.Spend.AccountProof.PathLSBFirst)
	if err != nil {
		return nil, err
	}

	value, energy := plan.deltaComponents()
	delta := nullifier.MakeDelta(value, energy, plan.CurIndex, plan.PoolID)

	txHash, err := nullifier.TxHash(append([]fr.Element{inAccountHash}, inNoteHashes...), outCommitment)
	if err != nil {
		return nil, err
	}

	sig, err := keys.Sign(plan.Sigma, plan.A, txHash)
	if err != nil {
		return nil, err
	}

	var w circuits.TransferCircuit
	w.Root = bigOf(root)
	w.Nullifier = bigOf(nullifierVal)
	w.OutCommit = bigOf(outCommitment)
	w.Delta = bigOf(delta)
	w.Memo = big.NewInt(1) // nonzero: the memo ciphertext itself travels alongside the proof, not through this field

	w.InAccount = accountToCircuit(plan.Spend.Account)
	w.OutAccount = accountToCircuit(plan.OutAccount)
	w.AccountProof = pathToCircuit(plan.Spend.AccountProof)
	for i := 0; i < circuits.In; i++ {
		w.InNote[i] = noteToCircuit(plan.Spend.Notes[i])
		w.NoteProof[i] = pathToCircuit(plan.Spend.NoteProofs[i])
	}
	for i := 0; i < circuits.Out; i++ {
		w.OutNote[i] = noteToCircuit(plan.OutNotes[i])
	}
	w.EddsaS = sig.S
	w.EddsaRX = bigOf(sig.R.X)
	w.EddsaRY = bigOf(sig.R.Y)
	w.EddsaAX = bigOf(plan.A)
	w.EddsaAY = bigOf(plan.AY)

	var outLeaves [circuits.OutPlusOne]fr.Element
	outLeaves[0] = outAccountHash
	copy(outLeaves[1:], outNoteHashes)

	return &BuiltTransfer{
		Root:          root,
		Nullifier:     nullifierVal,
		OutCommitment: outCommitment,
		Delta:         delta,
		OutLeaves:     outLeaves,
		Witness:       w,
	}, nil
}

// deltaComponents computes the net value/energy change the circuit's
// balance-conservation and energy-accrual constraints (transfer.go
// Define, points 13-14) expect, mirroring them exactly so a correctly
// assembled plan always produces a satisfiable witness.
func (plan TransferPlan) deltaComponents() (*big.Int, *big.Int) {
	value := new(big.Int).Set(plan.OutAccount.B.BigInt())
	for i := 0; i < circuits.Out; i++ {
		value.Add(value, plan.OutNotes[i].B.BigInt())
	}
	value.Sub(value, plan.Spend.Account.B.BigInt())
	for i := 0; i < circuits.In; i++ {
		value.Sub(value, plan.Spend.Notes[i].B.BigInt())
	}

	energy := new(big.Int).Sub(plan.Spend.Account.E.BigInt(), plan.OutAccount.E.BigInt())

	accrual := new(big.Int).Mul(
		plan.Spend.Account.B.BigInt(),
		new(big.Int).Sub(new(big.Int).SetUint64(plan.CurIndex), new(big.Int).SetUint64(plan.Spend.AccountProof.Index())),
	)
	energy.Add(energy, accrual)

	for i := 0; i < circuits.In; i++ {
		noteAccrual := new(big.Int).Mul(
			plan.Spend.Notes[i].B.BigInt(),
			new(big.Int).Sub(new(big.Int).SetUint64(plan.CurIndex), new(big.Int).SetUint64(plan.Spend.NoteProofs[i].Index())),
		)
		energy.Add(energy, noteAccrual)
	}

	energy.Neg(energy)
	return value, energy
}

// ShieldedTransaction is the wire-level shape of an accepted transfer:
// its public circuit fields, the proof attesting them, and the
// account/note leaves it writes into the tree (spec.md §4.5, §6).
type ShieldedTransaction struct {
	Root          fr.Element
	Nullifier     fr.Element
	OutCommitment fr.Element
	Delta         fr.Element
	Proof         *Proof
	OutLeaves     [circuits.OutPlusOne]fr.Element
}

// ShieldedPool threads a commitment tree, a nullifier set, and a
// circuit manager into the single state machine that accepts or
// rejects transfers (spec.md §4.5, generalizing the teacher's
// ShieldedPool).
type ShieldedPool struct {
	tree       *merkletree.Tree
	nullifiers *nullifier.Set
	circuits   *CircuitManager
}

// NewShieldedPool constructs a pool over the given tree, nullifier
// set, and circuit manager (which must already have CircuitTransfer
// set up).
func NewShieldedPool(tree *merkletree.Tree, nullifiers *nullifier.Set, cm *CircuitManager) *ShieldedPool {
	return &ShieldedPool{tree: tree, nullifiers: nullifiers, circuits: cm}
}

// ProcessTransaction validates tx against the pool's current root and
// nullifier set, verifies its proof, then applies its effects: the
// nullifier is marked spent and the output block is appended to the
// tree (spec.md §4.5 invariants 8-9, §3 invariant 4).
//
// Only the current root is accepted as a valid anchor, not any
// historical root the tree has ever held — the same simplification
// the teacher's original ShieldedPool made. A production deployment
// would keep a bounded window of recent roots so a transaction built
// against a root that is still being confirmed doesn't get rejected
// by a race with another transaction's append.
func (sp *ShieldedPool) ProcessTransaction(ctx context.Context, tx *ShieldedTransaction) error {
	currentRoot := sp.tree.Root()
	if !tx.Root.Equal(&currentRoot) {
		return ErrInvalidAnchor
	}

	spent, err := sp.nullifiers.IsSpent(ctx, tx.Nullifier)
	if err != nil {
		return err
	}
	if spent {
		return ErrNullifierSpent
	}

	ok, err := sp.circuits.Verify(ctx, tx.Proof)
	if err != nil {
		return err
	}
	if !ok {
		return ErrProofInvalid
	}

	txHash, err := nullifier.TxHash([]fr.Element{tx.Nullifier}, tx.OutCommitment)
	if err != nil {
		return err
	}
	if err := sp.nullifiers.MarkSpent(ctx, tx.Nullifier, txHash, sp.tree.Size()); err != nil {
		return err
	}

	if _, err := sp.tree.AppendBlock(ctx, tx.OutLeaves[:]); err != nil {
		return err
	}

	return nil
}

// CurrentAnchor returns the pool's current commitment-tree root.
func (sp *ShieldedPool) CurrentAnchor() fr.Element {
	return sp.tree.Root()
}
