package circuits

import (
	"math/big"
	"testing"

	"github.com/consensys/gnark-crypto/ecc"
	bn254fr "github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/backend"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/test"

	"github.com/ccoin/core/internal/nullifier"
	"github.com/ccoin/core/internal/params"
)

// hashRoleCircuit pins the in-circuit HashRole gadget against
// internal/params.HashRole for the same role and inputs.
type hashRoleCircuit struct {
	A, B, Want frontend.Variable `gnark:",public"`
}

func (c *hashRoleCircuit) Define(api frontend.API) error {
	got, err := HashRole(api, params.RoleNote, c.A, c.B)
	if err != nil {
		return err
	}
	api.AssertIsEqual(got, c.Want)
	return nil
}

func TestHashRoleMatchesNative(t *testing.T) {
	var a, b bn254fr.Element
	a.SetUint64(11)
	b.SetUint64(22)
	want, err := params.HashRole(params.RoleNote, a, b)
	if err != nil {
		t.Fatalf("native hash: %v", err)
	}

	assignment := hashRoleCircuit{A: bigOf(a), B: bigOf(b), Want: bigOf(want)}
	var circuit hashRoleCircuit
	assert := test.NewAssert(t)
	assert.ProverSucceeded(&circuit, &assignment, test.WithCurves(ecc.BN254), test.WithBackends(backend.GROTH16))
}

func TestHashRoleRejectsWrongExpectation(t *testing.T) {
	var a, b bn254fr.Element
	a.SetUint64(11)
	b.SetUint64(22)

	assignment := hashRoleCircuit{A: bigOf(a), B: bigOf(b), Want: big.NewInt(1)}
	var circuit hashRoleCircuit
	assert := test.NewAssert(t)
	assert.ProverFailed(&circuit, &assignment, test.WithCurves(ecc.BN254), test.WithBackends(backend.GROTH16))
}

// nullifierParityCircuit pins the in-circuit Nullifier gadget against
// internal/nullifier.Derive.
type nullifierParityCircuit struct {
	AccountHash, Eta, IndexPath, Want frontend.Variable `gnark:",public"`
}

func (c *nullifierParityCircuit) Define(api frontend.API) error {
	got, err := Nullifier(api, c.AccountHash, c.Eta, c.IndexPath)
	if err != nil {
		return err
	}
	api.AssertIsEqual(got, c.Want)
	return nil
}

func TestNullifierMatchesNative(t *testing.T) {
	var accountHash, eta, indexPath bn254fr.Element
	accountHash.SetUint64(101)
	eta.SetUint64(202)
	indexPath.SetUint64(3)

	want, err := nullifier.Derive(accountHash, eta, indexPath)
	if err != nil {
		t.Fatalf("native derive: %v", err)
	}

	assignment := nullifierParityCircuit{
		AccountHash: bigOf(accountHash), Eta: bigOf(eta), IndexPath: bigOf(indexPath), Want: bigOf(want),
	}
	var circuit nullifierParityCircuit
	assert := test.NewAssert(t)
	assert.ProverSucceeded(&circuit, &assignment, test.WithCurves(ecc.BN254), test.WithBackends(backend.GROTH16))
}

// deltaParityCircuit pins ParseDelta against internal/nullifier's
// MakeDelta/ParseDelta round trip.
type deltaParityCircuit struct {
	Delta      frontend.Variable `gnark:",public"`
	WantValue  frontend.Variable `gnark:",public"`
	WantEnergy frontend.Variable `gnark:",public"`
	WantIndex  frontend.Variable `gnark:",public"`
	WantPool   frontend.Variable `gnark:",public"`
}

func (c *deltaParityCircuit) Define(api frontend.API) error {
	got := ParseDelta(api, c.Delta)
	api.AssertIsEqual(got.Value, c.WantValue)
	api.AssertIsEqual(got.Energy, c.WantEnergy)
	api.AssertIsEqual(got.CurIndex, c.WantIndex)
	api.AssertIsEqual(got.PoolID, c.WantPool)
	return nil
}

func TestParseDeltaMatchesNative(t *testing.T) {
	delta := nullifier.MakeDelta(big.NewInt(-17), big.NewInt(5), 9, 3)
	parsed := nullifier.ParseDelta(delta)

	assignment := deltaParityCircuit{
		Delta:      bigOf(delta),
		WantValue:  parsed.Value,
		WantEnergy: parsed.Energy,
		WantIndex:  new(big.Int).SetUint64(parsed.CurIndex),
		WantPool:   new(big.Int).SetUint64(parsed.PoolID),
	}
	var circuit deltaParityCircuit
	assert := test.NewAssert(t)
	assert.ProverSucceeded(&circuit, &assignment, test.WithCurves(ecc.BN254), test.WithBackends(backend.GROTH16))
}

func TestParseDeltaRejectsWrongValue(t *testing.T) {
	delta := nullifier.MakeDelta(big.NewInt(-17), big.NewInt(5), 9, 3)
	parsed := nullifier.ParseDelta(delta)

	assignment := deltaParityCircuit{
		Delta:      bigOf(delta),
		WantValue:  big.NewInt(0), // wrong: actual packed value is -17
		WantEnergy: parsed.Energy,
		WantIndex:  new(big.Int).SetUint64(parsed.CurIndex),
		WantPool:   new(big.Int).SetUint64(parsed.PoolID),
	}
	var circuit deltaParityCircuit
	assert := test.NewAssert(t)
	assert.ProverFailed(&circuit, &assignment, test.WithCurves(ecc.BN254), test.WithBackends(backend.GROTH16))
}
