package circuits

import (
	"github.com/consensys/gnark/frontend"

	"github.com/ccoin/core/internal/params"
)

// Note is the in-circuit witness shape of pkg/types.Note (spec.md
// §3). The fields are plain variables: neither this type nor the
// circuits that use it range-check d, b or t against their BoundedNum
// widths.
type Note struct {
	D  frontend.Variable
	Pd frontend.Variable
	B  frontend.Variable
	T  frontend.Variable
}

// Hash computes Poseidon4(d, p_d, b, t) under the note params,
// mirroring pkg/types.Note.Hash (spec.md §3).
func (n Note) Hash(api frontend.API) (frontend.Variable, error) {
	return HashRole(api, params.RoleNote, n.D, n.Pd, n.B, n.T)
}

// IsDummy reports, as a {0,1} signal, whether this note is dummy:
// balance alone, mirroring pkg/types.Note.IsDummy (spec.md §3).
func (n Note) IsDummy(api frontend.API) frontend.Variable {
	return api.IsZero(n.B)
}

// Account is the in-circuit witness shape of pkg/types.Account
// (spec.md §3).
type Account struct {
	D  frontend.Variable
	Pd frontend.Variable
	I  frontend.Variable
	B  frontend.Variable
	E  frontend.Variable
}

// Hash computes Poseidon5(d, p_d, i, b, e) under the account params,
// mirroring pkg/types.Account.Hash (spec.md §3).
func (a Account) Hash(api frontend.API) (frontend.Variable, error) {
	return HashRole(api, params.RoleAccount, a.D, a.Pd, a.I, a.B, a.E)
}

// IsInitial reports, as a {0,1} signal, whether this account is the
// initial account for pool id pid: i=b=e=0 and d=pid (spec.md §3,
// §4.5 point 9).
func (a Account) IsInitial(api frontend.API, pid frontend.Variable) frontend.Variable {
	iZero := api.IsZero(a.I)
	bZero := api.IsZero(a.B)
	eZero := api.IsZero(a.E)
	dMatch := api.IsZero(api.Sub(a.D, pid))
	return api.Mul(api.Mul(iZero, bZero), api.Mul(eZero, dMatch))
}

// ZeroNoteHash returns the commitment of the canonical zero note
// (d=p_d=b=t=0), used to pad out-commitment leaves (spec.md §4.3,
// §4.5 point 5, §4.7).
func ZeroNoteHash(api frontend.API) (frontend.Variable, error) {
	zero := Note{D: 0, Pd: 0, B: 0, T: 0}
	return zero.Hash(api)
}
