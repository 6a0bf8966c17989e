// Package keys implements native key derivation, diversified address
// generation, and EdDSA-Poseidon signing for the shielded pool
// (spec.md §4.2, §6). The in-circuit counterpart lives in
// internal/circuits and MUST derive bit-identical values for the
// same witnesses.
package keys

import (
	"crypto/rand"
	"errors"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	tedwards "github.com/consensys/gnark-crypto/ecc/bn254/twistededwards"

	"github.com/ccoin/core/internal/params"
)

// ErrInvalidSeed is returned when a spending-key seed is nil or zero.
var ErrInvalidSeed = errors.New("keys: invalid spending key seed")

// curve returns the twisted-Edwards group embedded in BN254's scalar
// field, the protocol's Jubjub (spec.md §6).
func curve() tedwards.CurveParams {
	return tedwards.GetEdwardsCurve()
}

// SubgroupOrder returns Fs, the scalar field of the embedded curve.
func SubgroupOrder() *big.Int {
	c := curve()
	return new(big.Int).Set(&c.Order)
}

// DeriveKeyA returns a = G·σ for a spend-key seed σ ∈ Fs, together
// with its x-coordinate A ∈ Fr (the EdDSA public key) — spec.md
// §4.2.
func DeriveKeyA(sigma *big.Int) (tedwards.PointAffine, fr.Element, error) {
	if sigma == nil || sigma.Sign() == 0 {
		return tedwards.PointAffine{}, fr.Element{}, ErrInvalidSeed
	}
	c := curve()
	var a tedwards.PointAffine
	a.ScalarMultiplication(&c.Base, sigma)
	return a, a.X, nil
}

// DeriveKeyEta computes η = Poseidon₁(A) under the "hash" parameter
// family (spec.md §4.2).
func DeriveKeyEta(a fr.Element) (fr.Element, error) {
	return params.HashRole(params.RoleHash, a)
}

// DeriveKeyPd computes p_d = (Poseidon₁(d)·G)·η, scalar-multiplying
// by η's integer value in [0, r), r the BN254 scalar-field modulus; it
// is not reduced into Fs first (spec.md §4.2). The address is (d, p_d).
func DeriveKeyPd(d fr.Element, eta fr.Element) (fr.Element, error) {
	h, err := params.HashRole(params.RoleHash, d)
	if err != nil {
		return fr.Element{}, err
	}
	c := curve()
	var hScalar big.Int
	h.BigInt(&hScalar)

	var q tedwards.PointAffine
	q.ScalarMultiplication(&c.Base, &hScalar)

	var etaScalar big.Int
	eta.BigInt(&etaScalar)

	var pd tedwards.PointAffine
	pd.ScalarMultiplication(&q, &etaScalar)
	return pd.X, nil
}

// Address is a diversified stealth address (d, p_d).
type Address struct {
	D  fr.Element
	Pd fr.Element
}

// DeriveAddress derives the address for diversifier d under view key
// eta.
func DeriveAddress(d, eta fr.Element) (Address, error) {
	pd, err := DeriveKeyPd(d, eta)
	if err != nil {
		return Address{}, err
	}
	return Address{D: d, Pd: pd}, nil
}

// RandomDiversifier draws a fresh DIVERSIFIER_SIZE_BITS diversifier.
func RandomDiversifier() (fr.Element, error) {
	max := new(big.Int).Lsh(big.NewInt(1), 80)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return fr.Element{}, err
	}
	var e fr.Element
	e.SetBigInt(n)
	return e, nil
}

// RandomSpendSeed draws a fresh spend-key seed σ ∈ Fs \ {0}.
func RandomSpendSeed() (*big.Int, error) {
	order := SubgroupOrder()
	for {
		n, err := rand.Int(rand.Reader, order)
		if err != nil {
			return nil, err
		}
		if n.Sign() != 0 {
			return n, nil
		}
	}
}
