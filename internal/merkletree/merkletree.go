// Package merkletree provides a reference in-memory Merkle tree of
// fixed depth HEIGHT for building transfer-circuit witnesses, and the
// sub-tree append logic a transaction uses to write its OUT+1-leaf
// block in one shot (spec.md §3 invariants 3-4, §4.6).
package merkletree

import (
	"context"
	"errors"
	"sync"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/ccoin/core/internal/params"
	zfr "github.com/ccoin/core/pkg/fr"
	"github.com/ccoin/core/pkg/types"
)

// Depth is the fixed tree depth (spec.md §3, HEIGHT=48).
const Depth = zfr.HeightBits

// Tree errors.
var (
	ErrTreeFull        = errors.New("merkletree: tree is full")
	ErrLeafNotFound    = errors.New("merkletree: leaf not found")
	ErrInvalidPosition = errors.New("merkletree: invalid position")
)

// Store is the persistence contract a Tree delegates node storage to.
type Store interface {
	GetNode(ctx context.Context, level, index uint64) (fr.Element, error)
	SetNode(ctx context.Context, level, index uint64, value fr.Element) error
	GetRoot(ctx context.Context) (fr.Element, bool, error)
	SetRoot(ctx context.Context, root fr.Element) error
	GetSize(ctx context.Context) (uint64, error)
	SetSize(ctx context.Context, size uint64) error
}

// Tree is a fixed-depth Poseidon Merkle tree over leaf commitments.
type Tree struct {
	mu sync.RWMutex

	depth int
	size  uint64
	root  fr.Element

	store        Store
	defaultRoots []fr.Element // defaultRoots[k] is the default hash of an empty subtree of height k
}

// New constructs a Tree of the fixed Depth backed by store.
func New(store Store) (*Tree, error) {
	defaults, err := params.DefaultSubtreeRoots(Depth)
	if err != nil {
		return nil, err
	}
	return &Tree{
		depth:        Depth,
		store:        store,
		defaultRoots: defaults,
	}, nil
}

// Initialize loads persisted root/size, or starts from the canonical
// empty tree if the store has none yet.
func (t *Tree) Initialize(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	root, ok, err := t.store.GetRoot(ctx)
	if err != nil {
		return err
	}
	if !ok {
		t.root = t.defaultRoots[t.depth]
		t.size = 0
		return nil
	}
	t.root = root

	size, err := t.store.GetSize(ctx)
	if err != nil {
		return err
	}
	t.size = size
	return nil
}

// Append inserts a single leaf at the next free position and returns
// its index.
func (t *Tree) Append(ctx context.Context, leaf fr.Element) (uint64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	maxLeaves := uint64(1) << uint(t.depth)
	if t.size >= maxLeaves {
		return 0, ErrTreeFull
	}

	position := t.size
	if err := t.insertAt(ctx, position, leaf); err != nil {
		return 0, err
	}
	t.size++
	if err := t.store.SetSize(ctx, t.size); err != nil {
		return 0, err
	}
	return position, nil
}

// AppendBlock writes a full OUT+1-leaf sub-tree block starting at a
// block-aligned index: leaves[0] is the account hash, leaves[1:] are
// note hashes (spec.md §3 invariant 4). AppendBlock itself rounds the
// current size up to the next multiple of len(leaves) and writes the
// block there, returning that start index.
func (t *Tree) AppendBlock(ctx context.Context, leaves []fr.Element) (uint64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	blockSize := uint64(len(leaves))
	if blockSize == 0 || blockSize&(blockSize-1) != 0 {
		return 0, errors.New("merkletree: block size must be a power of two")
	}
	start := ((t.size + blockSize - 1) / blockSize) * blockSize
	maxLeaves := uint64(1) << uint(t.depth)
	if start+blockSize > maxLeaves {
		return 0, ErrTreeFull
	}

	for i, leaf := range leaves {
		if err := t.insertAt(ctx, start+uint64(i), leaf); err != nil {
			return 0, err
		}
	}
	t.size = start + blockSize
	if err := t.store.SetSize(ctx, t.size); err != nil {
		return 0, err
	}
	return start, nil
}

// insertAt writes leaf at position and recomputes the path to the
// root. Caller holds t.mu.
func (t *Tree) insertAt(ctx context.Context, position uint64, leaf fr.Element) error {
	if err := t.store.SetNode(ctx, 0, position, leaf); err != nil {
		return err
	}

	cur := leaf
	idx := position
	for level := 0; level < t.depth; level++ {
		siblingIdx := idx ^ 1
		sibling, err := t.store.GetNode(ctx, uint64(level), siblingIdx)
		if err != nil {
			sibling = t.defaultRoots[level]
		}

		var parent fr.Element
		var perr error
		if idx%2 == 0 {
			parent, perr = params.HashRole(params.RoleCompress, cur, sibling)
		} else {
			parent, perr = params.HashRole(params.RoleCompress, sibling, cur)
		}
		if perr != nil {
			return perr
		}

		idx /= 2
		cur = parent
		if err := t.store.SetNode(ctx, uint64(level+1), idx, cur); err != nil {
			return err
		}
	}

	t.root = cur
	return t.store.SetRoot(ctx, t.root)
}

// Root returns the current tree root.
func (t *Tree) Root() fr.Element {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.root
}

// Size returns the number of occupied leaf slots.
func (t *Tree) Size() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.size
}

// Proof returns the Merkle witness for the leaf at position.
func (t *Tree) Proof(ctx context.Context, position uint64) (types.MerkleProof, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	maxLeaves := uint64(1) << uint(t.depth)
	if position >= maxLeaves {
		return types.MerkleProof{}, ErrInvalidPosition
	}

	siblings := make([]fr.Element, t.depth)
	pathBits := make([]bool, t.depth)

	idx := position
	for level := 0; level < t.depth; level++ {
		siblingIdx := idx ^ 1
		sibling, err := t.store.GetNode(ctx, uint64(level), siblingIdx)
		if err != nil {
			sibling = t.defaultRoots[level]
		}
		siblings[level] = sibling
		pathBits[level] = idx%2 == 1
		idx /= 2
	}

	return types.MerkleProof{Siblings: siblings, PathLSBFirst: pathBits}, nil
}

// VerifyProof reports whether leaf reconstructs expectedRoot under
// proof.
func VerifyProof(leaf fr.Element, proof types.MerkleProof, expectedRoot fr.Element) (bool, error) {
	root, err := params.MerkleProofRoot(leaf, proof.Siblings, proof.PathLSBFirst)
	if err != nil {
		return false, err
	}
	return root.Equal(&expectedRoot), nil
}

// InMemoryStore is a map-backed Store for tests and standalone
// witness construction.
type InMemoryStore struct {
	mu       sync.RWMutex
	nodes    map[uint64]map[uint64]fr.Element
	root     fr.Element
	haveRoot bool
	size     uint64
}

// NewInMemoryStore constructs an empty InMemoryStore.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{nodes: make(map[uint64]map[uint64]fr.Element)}
}

func (s *InMemoryStore) GetNode(_ context.Context, level, index uint64) (fr.Element, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	levelMap, ok := s.nodes[level]
	if !ok {
		return fr.Element{}, ErrLeafNotFound
	}
	v, ok := levelMap[index]
	if !ok {
		return fr.Element{}, ErrLeafNotFound
	}
	return v, nil
}

func (s *InMemoryStore) SetNode(_ context.Context, level, index uint64, value fr.Element) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nodes[level] == nil {
		s.nodes[level] = make(map[uint64]fr.Element)
	}
	s.nodes[level][index] = value
	return nil
}

func (s *InMemoryStore) GetRoot(_ context.Context) (fr.Element, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.root, s.haveRoot, nil
}

func (s *InMemoryStore) SetRoot(_ context.Context, root fr.Element) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.root = root
	s.haveRoot = true
	return nil
}

func (s *InMemoryStore) GetSize(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.size, nil
}

func (s *InMemoryStore) SetSize(_ context.Context, size uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.size = size
	return nil
}
