// Package params holds the process-wide, read-only cryptographic
// parameters shared by every native and in-circuit hashing call: the
// twisted-Edwards curve embedded in BN254's scalar field (the
// protocol's "Jubjub") and seven domain-separated hash-parameter
// families. The set is initialized once at startup and never mutated
// afterwards (spec.md §5, §9).
package params

import (
	"errors"

	tedwards "github.com/consensys/gnark-crypto/ecc/twistededwards"
)

// Role names the seven independent Poseidon-style parameter families
// spec.md §3 requires. The split is strict: every hashing callsite
// names exactly one Role and must not substitute another.
type Role uint8

const (
	RoleHash Role = iota
	RoleCompress
	RoleNote
	RoleAccount
	RoleEDDSA
	RoleSponge
	RoleNullifierIntermediate

	numRoles
)

func (r Role) String() string {
	switch r {
	case RoleHash:
		return "hash"
	case RoleCompress:
		return "compress"
	case RoleNote:
		return "note"
	case RoleAccount:
		return "account"
	case RoleEDDSA:
		return "eddsa"
	case RoleSponge:
		return "sponge"
	case RoleNullifierIntermediate:
		return "nullifier_intermediate"
	default:
		return "unknown"
	}
}

// ErrUnknownRole is returned when a domain tag outside the fixed set
// of seven named roles is requested.
var ErrUnknownRole = errors.New("params: unknown hash role")

// domainTags are distinct, fixed field elements mixed into every
// hash call for a given Role so that the same underlying Poseidon2
// permutation (see HashRole) cannot be confused across roles even
// though it has no native multi-parameter-set support.
// Values are arbitrary but fixed forever once deployed — changing one
// changes every commitment the protocol has ever produced.
var domainTags = [numRoles]uint64{
	RoleHash:                  0x506f7345_6c4e6861, // "PosElNha"
	RoleCompress:              0x506f7345_6c436d70, // "PosElCmp"
	RoleNote:                  0x506f7345_6c4e6f74, // "PosElNot"
	RoleAccount:               0x506f7345_6c416363, // "PosElAcc"
	RoleEDDSA:                 0x506f7345_6c456444, // "PosElEdD"
	RoleSponge:                0x506f7345_6c53706e, // "PosElSpn"
	RoleNullifierIntermediate: 0x506f7345_6c4e6c49, // "PosElNlI"
}

// DomainTag returns the fixed domain-separation constant for a role.
func DomainTag(r Role) (uint64, error) {
	if r >= numRoles {
		return 0, ErrUnknownRole
	}
	return domainTags[r], nil
}

// CurveID is the twisted-Edwards curve embedded in BN254's scalar
// field — the concrete stand-in for the spec's Jubjub.
const CurveID = tedwards.BN254

// Params bundles the process-wide, value-typed, read-only parameter
// record, obtained via Load; nothing here is ever mutated after Load
// returns (spec.md §9 "cyclic parameter references"). HashRole,
// Sponge and the other hashing/derivation functions do not take a
// *Params: they use CurveID and the fixed domain tags directly.
type Params struct {
	Curve tedwards.CurveID
}

// Load initializes the process-wide parameter set. It is safe to call
// repeatedly; the returned value is always identical since curve
// parameters are compiled constants, not generated.
func Load() *Params {
	return &Params{Curve: CurveID}
}
