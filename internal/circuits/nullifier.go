package circuits

import (
	"github.com/consensys/gnark/frontend"

	"github.com/ccoin/core/internal/params"
)

// Nullifier computes the in-circuit path-bound nullifier, mirroring
// internal/nullifier.Derive bit-for-bit (spec.md §4.3, §4.5 point 8).
func Nullifier(api frontend.API, accountHash, eta, indexPath frontend.Variable) (frontend.Variable, error) {
	intermediate, err := HashRole(api, params.RoleNullifierIntermediate, accountHash, eta, indexPath)
	if err != nil {
		return nil, err
	}
	return HashRole(api, params.RoleCompress, accountHash, intermediate)
}

// TxHash absorbs the input hashes and out-commitment under the sponge
// params, mirroring internal/nullifier.TxHash (spec.md §4.3, §4.5
// point 12).
func TxHash(api frontend.API, inHashes []frontend.Variable, outCommitment frontend.Variable) (frontend.Variable, error) {
	inputs := append(append([]frontend.Variable(nil), inHashes...), outCommitment)
	return HashRole(api, params.RoleSponge, inputs...)
}
