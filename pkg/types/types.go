// Package types defines the native data model shared by the shielded
// pool's circuits and its out-of-circuit (native) code: Account,
// Note, DelegatedDeposit and the Merkle-proof record spec.md §3
// describes. Native hashing here MUST agree bit-exactly with the
// circuit gadgets in internal/circuits — that agreement is the
// central invariant of the whole system (spec.md §2).
package types

import (
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/ccoin/core/internal/params"
	zfr "github.com/ccoin/core/pkg/fr"
)

// Note is a single-use value commitment (spec.md §3).
type Note struct {
	D   zfr.BoundedNum // diversifier, 80 bits
	Pd  fr.Element     // stealth-address public part
	B   zfr.BoundedNum // balance, 64 bits
	T   zfr.BoundedNum // salt, 80 bits
}

// NewNote validates widths and builds a Note.
func NewNote(d, b, t *big.Int, pd fr.Element) (Note, error) {
	dn, err := zfr.New(zfr.DiversifierSizeBits, d)
	if err != nil {
		return Note{}, err
	}
	bn, err := zfr.New(zfr.BalanceSizeBits, b)
	if err != nil {
		return Note{}, err
	}
	tn, err := zfr.New(zfr.SaltSizeBits, t)
	if err != nil {
		return Note{}, err
	}
	return Note{D: dn, Pd: pd, B: bn, T: tn}, nil
}

// ZeroNote is the distinguished constant note with every field zero.
func ZeroNote() Note {
	return Note{
		D:  zfr.NewUnchecked(zfr.DiversifierSizeBits, big.NewInt(0)),
		Pd: fr.Element{},
		B:  zfr.NewUnchecked(zfr.BalanceSizeBits, big.NewInt(0)),
		T:  zfr.NewUnchecked(zfr.SaltSizeBits, big.NewInt(0)),
	}
}

// Hash computes Poseidon4(d, p_d, b, t) under the "note" parameter
// family (spec.md §3).
func (n Note) Hash() (fr.Element, error) {
	d := n.D.ToNum()
	b := n.B.ToNum()
	t := n.T.ToNum()
	return params.HashRole(params.RoleNote, d, n.Pd, b, t)
}

// IsDummy reports whether this note is a dummy input that need not
// prove Merkle inclusion: balance alone, per spec.md §3 (the zero
// note is a separate, fully-zero constant — see ZeroNote/IsZero).
func (n Note) IsDummy() bool {
	return n.B.IsZero()
}

// IsZero reports whether this is exactly the distinguished zero note.
func (n Note) IsZero() bool {
	return n.D.IsZero() && n.Pd.IsZero() && n.B.IsZero() && n.T.IsZero()
}

// Account is the mutable per-user state commitment (spec.md §3).
type Account struct {
	D zfr.BoundedNum // diversifier, 80 bits
	Pd fr.Element    // stealth-address public part
	I zfr.BoundedNum // height marker, 48 bits
	B zfr.BoundedNum // balance, 64 bits
	E zfr.BoundedNum // accrued energy, 112 bits
}

// Hash computes Poseidon5(d, p_d, i, b, e) under the "account"
// parameter family (spec.md §3).
func (a Account) Hash() (fr.Element, error) {
	return params.HashRole(params.RoleAccount, a.D.ToNum(), a.Pd, a.I.ToNum(), a.B.ToNum(), a.E.ToNum())
}

// IsInitial reports whether this account is the initial account for
// pool id pid: i = b = e = 0 and d = pid (spec.md §3).
func (a Account) IsInitial(pid fr.Element) bool {
	d := a.D.ToNum()
	return a.I.IsZero() && a.B.IsZero() && a.E.IsZero() && d.Equal(&pid)
}

// DelegatedDeposit is a deposit awaiting inclusion via the
// delegated-deposit batch circuit (spec.md §4.7).
type DelegatedDeposit struct {
	D  zfr.BoundedNum
	Pd fr.Element
	B  zfr.BoundedNum
}

// ToNote lifts a delegated deposit to a zero-salt note (spec.md §3).
func (d DelegatedDeposit) ToNote() Note {
	return Note{
		D:  d.D,
		Pd: d.Pd,
		B:  d.B,
		T:  zfr.NewUnchecked(zfr.SaltSizeBits, big.NewInt(0)),
	}
}

// MerkleProof is an H-sibling, H-bit path Merkle witness (spec.md
// §3). PathLSBFirst[k] is false for "leaf is left child at level k",
// true for "leaf is right child at level k".
type MerkleProof struct {
	Siblings      []fr.Element
	PathLSBFirst  []bool
}

// Index reconstructs the little-endian leaf index encoded by the
// path bits.
func (p MerkleProof) Index() uint64 {
	var idx uint64
	for i, bit := range p.PathLSBFirst {
		if bit {
			idx |= 1 << uint(i)
		}
	}
	return idx
}
