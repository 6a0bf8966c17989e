package storage

import (
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/ccoin/core/internal/merkletree"
	"github.com/ccoin/core/internal/nullifier"
)

// Compile-time checks that PostgresStore actually satisfies both
// interfaces it is built against; a signature drift in either package
// would otherwise only surface as a build failure somewhere else.
var (
	_ merkletree.Store = (*PostgresStore)(nil)
	_ nullifier.Store  = (*PostgresStore)(nil)
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Host == "" {
		t.Fatalf("expected a non-empty default host")
	}
	if cfg.Port != 5432 {
		t.Fatalf("expected the default postgres port, got %d", cfg.Port)
	}
	if cfg.MaxConns <= 0 {
		t.Fatalf("expected a positive default pool size, got %d", cfg.MaxConns)
	}
}

func TestElementFromBytesRoundTrip(t *testing.T) {
	var want fr.Element
	want.SetUint64(123456789)

	raw := want.Bytes()
	got := elementFromBytes(raw[:])

	if !got.Equal(&want) {
		t.Fatalf("round-trip mismatch: got %s want %s", got.String(), want.String())
	}
}
