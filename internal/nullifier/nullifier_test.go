package nullifier

import (
	"context"
	"math/big"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

func elem(v int64) fr.Element {
	var e fr.Element
	e.SetBigInt(big.NewInt(v))
	return e
}

func TestDeriveIsDeterministic(t *testing.T) {
	accountHash, eta, path := elem(1), elem(2), elem(3)

	n1, err := Derive(accountHash, eta, path)
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	n2, err := Derive(accountHash, eta, path)
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	if !n1.Equal(&n2) {
		t.Error("same inputs must produce the same nullifier")
	}
}

func TestDeriveDiffersByPath(t *testing.T) {
	accountHash, eta := elem(1), elem(2)

	n1, err := Derive(accountHash, eta, elem(3))
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	n2, err := Derive(accountHash, eta, elem(4))
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	if n1.Equal(&n2) {
		t.Error("distinct paths must (with overwhelming probability) produce distinct nullifiers")
	}
}

func TestOutCommitmentPadsWithZeroNote(t *testing.T) {
	zero := elem(0)
	short, err := OutCommitment(elem(10), []fr.Element{elem(11)}, zero, 4)
	if err != nil {
		t.Fatalf("OutCommitment: %v", err)
	}
	full, err := OutCommitment(elem(10), []fr.Element{elem(11), zero, zero}, zero, 4)
	if err != nil {
		t.Fatalf("OutCommitment: %v", err)
	}
	if !short.Equal(&full) {
		t.Error("padding with the zero-note hash must equal explicitly supplying it")
	}
}

func TestOutCommitmentRejectsOverflow(t *testing.T) {
	zero := elem(0)
	_, err := OutCommitment(elem(10), []fr.Element{elem(1), elem(2), elem(3)}, zero, 2)
	if err == nil {
		t.Error("expected error when output notes exceed OUT")
	}
}

type memStore struct {
	spent map[fr.Element]struct{}
}

func newMemStore() *memStore { return &memStore{spent: make(map[fr.Element]struct{})} }

func (m *memStore) HasNullifier(_ context.Context, n fr.Element) (bool, error) {
	_, ok := m.spent[n]
	return ok, nil
}

func (m *memStore) AddNullifier(_ context.Context, n fr.Element, _ fr.Element, _ uint64) error {
	m.spent[n] = struct{}{}
	return nil
}

func TestSetMarkSpentRejectsDoubleSpend(t *testing.T) {
	ctx := context.Background()
	s := NewSet(newMemStore(), 0)
	n := elem(42)

	if err := s.MarkSpent(ctx, n, elem(1), 0); err != nil {
		t.Fatalf("first MarkSpent: %v", err)
	}
	if err := s.MarkSpent(ctx, n, elem(1), 0); err != ErrAlreadySpent {
		t.Errorf("second MarkSpent: got %v, want ErrAlreadySpent", err)
	}
}

func TestSetIsSpentHitsCacheBeforeStore(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	s := NewSet(store, 0)
	n := elem(7)

	if err := s.MarkSpent(ctx, n, elem(1), 0); err != nil {
		t.Fatalf("MarkSpent: %v", err)
	}
	delete(store.spent, n) // only the cache can now report it
	spent, err := s.IsSpent(ctx, n)
	if err != nil {
		t.Fatalf("IsSpent: %v", err)
	}
	if !spent {
		t.Error("expected cached nullifier to report spent")
	}
}
