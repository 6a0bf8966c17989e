package keys

import (
	"math/big"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	sigma, err := RandomSpendSeed()
	if err != nil {
		t.Fatalf("spend seed: %v", err)
	}
	a, aX, err := DeriveKeyA(sigma)
	if err != nil {
		t.Fatalf("derive A: %v", err)
	}

	var msg fr.Element
	msg.SetUint64(42)

	sig, err := Sign(sigma, aX, msg)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if err := Verify(sig, a, msg); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestVerifyRejectsWrongMessage(t *testing.T) {
	sigma, err := RandomSpendSeed()
	if err != nil {
		t.Fatalf("spend seed: %v", err)
	}
	a, aX, err := DeriveKeyA(sigma)
	if err != nil {
		t.Fatalf("derive A: %v", err)
	}

	var msg, other fr.Element
	msg.SetUint64(1)
	other.SetUint64(2)

	sig, err := Sign(sigma, aX, msg)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if err := Verify(sig, a, other); err != ErrInvalidSignature {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	sigma, err := RandomSpendSeed()
	if err != nil {
		t.Fatalf("spend seed: %v", err)
	}
	_, aX, err := DeriveKeyA(sigma)
	if err != nil {
		t.Fatalf("derive A: %v", err)
	}

	otherSigma, err := RandomSpendSeed()
	if err != nil {
		t.Fatalf("other spend seed: %v", err)
	}
	otherA, _, err := DeriveKeyA(otherSigma)
	if err != nil {
		t.Fatalf("derive other A: %v", err)
	}

	var msg fr.Element
	msg.SetUint64(7)

	sig, err := Sign(sigma, aX, msg)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if err := Verify(sig, otherA, msg); err != ErrInvalidSignature {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestDeriveKeyAReturnsMatchingXCoordinate(t *testing.T) {
	sigma, err := RandomSpendSeed()
	if err != nil {
		t.Fatalf("spend seed: %v", err)
	}
	a, aX, err := DeriveKeyA(sigma)
	if err != nil {
		t.Fatalf("derive A: %v", err)
	}
	if !a.X.Equal(&aX) {
		t.Fatalf("returned x-coordinate does not match the point's own X")
	}
}

func TestDeriveKeyARejectsZeroSeed(t *testing.T) {
	if _, _, err := DeriveKeyA(nil); err != ErrInvalidSeed {
		t.Fatalf("expected ErrInvalidSeed for a nil seed, got %v", err)
	}
	if _, _, err := DeriveKeyA(big.NewInt(0)); err != ErrInvalidSeed {
		t.Fatalf("expected ErrInvalidSeed for a zero seed, got %v", err)
	}
}
