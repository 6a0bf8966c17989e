// Package nullifier implements the path-bound nullifier derivation,
// the transaction hash, the out-commitment root, and a spent-nullifier
// tracker (spec.md §4.3). The native routines here MUST agree
// bit-exactly with the in-circuit gadgets in internal/circuits.
package nullifier

import (
	"context"
	"errors"
	"sync"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/ccoin/core/internal/params"
)

// Derive computes the path-bound nullifier:
//
//	intermediate = Poseidon3(accountHash, eta, indexPath)  // nullifier_intermediate params
//	nullifier    = Poseidon2(accountHash, intermediate)    // compress params
//
// This is the scheme spec.md §4.3 names as currently authoritative: it
// binds the tree position into the nullifier so that two accounts
// sharing (accountHash, eta) at different slots cannot collide. The
// simpler position-free scheme (Poseidon2(accountHash, eta)) is
// intentionally not offered here — see DESIGN.md.
func Derive(accountHash, eta, indexPath fr.Element) (fr.Element, error) {
	intermediate, err := params.HashRole(params.RoleNullifierIntermediate, accountHash, eta, indexPath)
	if err != nil {
		return fr.Element{}, err
	}
	return params.HashRole(params.RoleCompress, accountHash, intermediate)
}

// TxHash absorbs the input hashes and the out-commitment under the
// sponge parameters (spec.md §4.3).
func TxHash(inHashes []fr.Element, outCommitment fr.Element) (fr.Element, error) {
	inputs := make([]fr.Element, 0, len(inHashes)+1)
	inputs = append(inputs, inHashes...)
	inputs = append(inputs, outCommitment)
	return params.Sponge(params.RoleSponge, inputs...)
}

// OutCommitment computes the Poseidon Merkle root over exactly OUT+1
// leaves: the output account hash followed by output note hashes,
// padded with the canonical zero-note hash (spec.md §4.3).
func OutCommitment(outAccountHash fr.Element, outNoteHashes []fr.Element, zeroNoteHash fr.Element, outPlusOne int) (fr.Element, error) {
	if len(outNoteHashes) > outPlusOne-1 {
		return fr.Element{}, errTooManyOutputs
	}
	leaves := make([]fr.Element, 0, outPlusOne)
	leaves = append(leaves, outAccountHash)
	leaves = append(leaves, outNoteHashes...)
	for len(leaves) < outPlusOne {
		leaves = append(leaves, zeroNoteHash)
	}
	return params.MerkleRoot(leaves)
}

var errTooManyOutputs = errors.New("nullifier: more output notes than OUT allows")

// ErrAlreadySpent is returned by Set.MarkSpent when a nullifier has
// already been recorded.
var ErrAlreadySpent = errors.New("nullifier: already spent")

// Store is the persistence contract a Set delegates to once its
// in-memory cache misses (grounded on the teacher's NullifierStore;
// internal/storage provides the pgx-backed implementation).
type Store interface {
	HasNullifier(ctx context.Context, n fr.Element) (bool, error)
	AddNullifier(ctx context.Context, n fr.Element, txHash fr.Element, treeIndex uint64) error
}

// Set tracks spent nullifiers with a bounded in-memory cache in front
// of a persistent Store, mirroring the teacher's read-through /
// write-through nullifier set.
type Set struct {
	mu           sync.RWMutex
	cache        map[fr.Element]struct{}
	store        Store
	maxCacheSize int
}

// NewSet constructs a Set backed by store, capped at maxCacheSize
// cached entries.
func NewSet(store Store, maxCacheSize int) *Set {
	if maxCacheSize <= 0 {
		maxCacheSize = 100_000
	}
	return &Set{
		cache:        make(map[fr.Element]struct{}),
		store:        store,
		maxCacheSize: maxCacheSize,
	}
}

// IsSpent reports whether n has already been recorded, checking the
// cache before falling through to the store.
func (s *Set) IsSpent(ctx context.Context, n fr.Element) (bool, error) {
	s.mu.RLock()
	_, cached := s.cache[n]
	s.mu.RUnlock()
	if cached {
		return true, nil
	}
	return s.store.HasNullifier(ctx, n)
}

// MarkSpent records n as spent, returning ErrAlreadySpent if it was
// already present.
func (s *Set) MarkSpent(ctx context.Context, n fr.Element, txHash fr.Element, treeIndex uint64) error {
	spent, err := s.IsSpent(ctx, n)
	if err != nil {
		return err
	}
	if spent {
		return ErrAlreadySpent
	}

	if err := s.store.AddNullifier(ctx, n, txHash, treeIndex); err != nil {
		return err
	}

	s.mu.Lock()
	s.cache[n] = struct{}{}
	if len(s.cache) > s.maxCacheSize {
		for k := range s.cache {
			delete(s.cache, k)
			break
		}
	}
	s.mu.Unlock()
	return nil
}
