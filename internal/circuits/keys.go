package circuits

import (
	tedwardscrypto "github.com/consensys/gnark-crypto/ecc/twistededwards"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/algebra/native/twistededwards"

	"github.com/ccoin/core/internal/params"
)

// NewEdCurve opens the embedded twisted-Edwards curve gadget (the
// protocol's Jubjub) for the current constraint system.
func NewEdCurve(api frontend.API) (twistededwards.Curve, error) {
	return twistededwards.NewEdCurve(api, tedwardscrypto.BN254)
}

// DeriveEta computes eta = Poseidon1(A) under the hash params,
// mirroring internal/keys.DeriveKeyEta (spec.md §4.2).
func DeriveEta(api frontend.API, a frontend.Variable) (frontend.Variable, error) {
	return HashRole(api, params.RoleHash, a)
}

// DerivePd computes p_d = (Poseidon1(d)*G)*eta, mirroring
// internal/keys.DeriveKeyPd (spec.md §4.2, §4.5 points 6-7). The
// curve gadget's ScalarMul performs its own bit decomposition of the
// scalar, the in-circuit analogue of treating eta as a little-endian
// bit string (spec.md §4.2).
func DerivePd(api frontend.API, curve twistededwards.Curve, d, eta frontend.Variable) (frontend.Variable, error) {
	hD, err := HashRole(api, params.RoleHash, d)
	if err != nil {
		return nil, err
	}
	q := curve.ScalarMul(curve.Params().Base, hD)
	pd := curve.ScalarMul(q, eta)
	return pd.X, nil
}
