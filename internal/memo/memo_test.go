package memo

import (
	"bytes"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/ccoin/core/internal/keys"
)

func TestSealOpenRoundTrip(t *testing.T) {
	sigma, err := keys.RandomSpendSeed()
	if err != nil {
		t.Fatalf("spend seed: %v", err)
	}
	a, _, err := keys.DeriveKeyA(sigma)
	if err != nil {
		t.Fatalf("derive A: %v", err)
	}

	accountPayload := []byte("account-plaintext")
	notePayloads := [][]byte{[]byte("note-0"), []byte("note-1")}

	env, err := Seal(a, fr.Element{}, nil, accountPayload, notePayloads)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}

	gotAccount, gotNotes, err := Open(env, sigma)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !bytes.Equal(gotAccount, accountPayload) {
		t.Fatalf("account payload mismatch: got %q want %q", gotAccount, accountPayload)
	}
	if len(gotNotes) != len(notePayloads) {
		t.Fatalf("note count mismatch: got %d want %d", len(gotNotes), len(notePayloads))
	}
	for i := range notePayloads {
		if !bytes.Equal(gotNotes[i], notePayloads[i]) {
			t.Fatalf("note %d mismatch: got %q want %q", i, gotNotes[i], notePayloads[i])
		}
	}
}

func TestOpenRejectsWrongKey(t *testing.T) {
	sigma, err := keys.RandomSpendSeed()
	if err != nil {
		t.Fatalf("spend seed: %v", err)
	}
	a, _, err := keys.DeriveKeyA(sigma)
	if err != nil {
		t.Fatalf("derive A: %v", err)
	}
	env, err := Seal(a, fr.Element{}, nil, []byte("secret"), nil)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}

	otherSigma, err := keys.RandomSpendSeed()
	if err != nil {
		t.Fatalf("spend seed: %v", err)
	}
	if _, _, err := Open(env, otherSigma); err != ErrNotForMe {
		t.Fatalf("expected ErrNotForMe, got %v", err)
	}
}

func TestEnvelopeEncodeDecodeRoundTrip(t *testing.T) {
	sigma, err := keys.RandomSpendSeed()
	if err != nil {
		t.Fatalf("spend seed: %v", err)
	}
	a, _, err := keys.DeriveKeyA(sigma)
	if err != nil {
		t.Fatalf("derive A: %v", err)
	}
	var noteHash fr.Element
	noteHash.SetUint64(7)

	env, err := Seal(a, fr.Element{}, []fr.Element{noteHash}, []byte("payload"), [][]byte{[]byte("n")})
	if err != nil {
		t.Fatalf("seal: %v", err)
	}

	wire := env.Encode()
	decoded, err := Decode(wire)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !decoded.AccountHash.Equal(&env.AccountHash) {
		t.Fatalf("account hash mismatch after round trip")
	}
	if len(decoded.NoteHashes) != 1 || !decoded.NoteHashes[0].Equal(&noteHash) {
		t.Fatalf("note hash mismatch after round trip")
	}
	if len(decoded.NoteCTs) != len(env.NoteCTs) {
		t.Fatalf("note ciphertext count mismatch: got %d want %d", len(decoded.NoteCTs), len(env.NoteCTs))
	}
}

func TestDecodeRejectsTruncatedInput(t *testing.T) {
	if _, err := Decode([]byte{0, 0, 0}); err != ErrMalformed {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}
