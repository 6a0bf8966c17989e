// Package zkp drives compilation, setup, proving and verification of
// the shielded pool's three circuits through gnark's Groth16 backend
// (spec.md §4.5-§4.7, §9).
package zkp

import (
	"context"
	"errors"
	"sync"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"

	"github.com/ccoin/core/internal/circuits"
)

// Circuit errors.
var (
	ErrCircuitNotCompiled      = errors.New("zkp: circuit not compiled")
	ErrProofGenerationFailed   = errors.New("zkp: proof generation failed")
	ErrProofVerificationFailed = errors.New("zkp: proof verification failed")
)

// CircuitKind identifies one of the pool's three circuits.
type CircuitKind uint8

const (
	CircuitTransfer CircuitKind = iota
	CircuitTreeAppend
	CircuitDelegatedDeposit
)

func (k CircuitKind) newCircuit() frontend.Circuit {
	switch k {
	case CircuitTransfer:
		return &circuits.TransferCircuit{}
	case CircuitTreeAppend:
		return &circuits.TreeAppendCircuit{}
	case CircuitDelegatedDeposit:
		return &circuits.DelegatedDepositCircuit{}
	default:
		return nil
	}
}

// CompiledCircuit holds a compiled circuit plus its Groth16 keys.
type CompiledCircuit struct {
	CS constraint.ConstraintSystem
	PK groth16.ProvingKey
	VK groth16.VerifyingKey
}

// CircuitManager compiles the three circuits once and serves
// proving/verification against the cached keys, mirroring the
// teacher's CircuitManager shape generalized to the modern gnark API:
// frontend.Compile now returns a constraint.ConstraintSystem, not the
// retired frontend.CompiledConstraintSystem the teacher's original
// code targeted.
type CircuitManager struct {
	mu       sync.RWMutex
	compiled map[CircuitKind]*CompiledCircuit
}

// NewCircuitManager creates an empty circuit manager.
func NewCircuitManager() *CircuitManager {
	return &CircuitManager{
		compiled: make(map[CircuitKind]*CompiledCircuit),
	}
}

// Setup compiles kind's circuit and runs the Groth16 trusted setup,
// caching the resulting proving/verifying keys.
func (cm *CircuitManager) Setup(kind CircuitKind) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	circuit := kind.newCircuit()
	if circuit == nil {
		return ErrCircuitNotCompiled
	}

	cs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, circuit)
	if err != nil {
		return err
	}

	pk, vk, err := groth16.Setup(cs)
	if err != nil {
		return err
	}

	cm.compiled[kind] = &CompiledCircuit{CS: cs, PK: pk, VK: vk}
	return nil
}

// Proof is a serialized Groth16 proof plus its public witness, ready
// for wire transport (spec.md §6 proof bytes and public inputs).
type Proof struct {
	Kind         CircuitKind
	Bytes        []byte
	PublicInputs []byte
}

// Prove generates a proof for kind's circuit against the supplied
// witness assignment.
func (cm *CircuitManager) Prove(ctx context.Context, kind CircuitKind, assignment frontend.Circuit) (*Proof, error) {
	cm.mu.RLock()
	compiled, ok := cm.compiled[kind]
	cm.mu.RUnlock()
	if !ok {
		return nil, ErrCircuitNotCompiled
	}

	w, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	if err != nil {
		return nil, err
	}

	proof, err := groth16.Prove(compiled.CS, compiled.PK, w)
	if err != nil {
		return nil, ErrProofGenerationFailed
	}

	proofBytes := proof.MarshalBinary()

	publicWitness, err := w.Public()
	if err != nil {
		return nil, err
	}
	publicBytes, err := publicWitness.MarshalBinary()
	if err != nil {
		return nil, err
	}

	return &Proof{Kind: kind, Bytes: proofBytes, PublicInputs: publicBytes}, nil
}

// Verify checks a proof produced by Prove against the cached
// verifying key for its kind.
func (cm *CircuitManager) Verify(ctx context.Context, p *Proof) (bool, error) {
	cm.mu.RLock()
	compiled, ok := cm.compiled[p.Kind]
	cm.mu.RUnlock()
	if !ok {
		return false, ErrCircuitNotCompiled
	}

	proof := groth16.NewProof(ecc.BN254)
	if err := proof.UnmarshalBinary(p.Bytes); err != nil {
		return false, err
	}

	publicWitness, err := frontend.NewWitness(nil, ecc.BN254.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return false, err
	}
	if err := publicWitness.UnmarshalBinary(p.PublicInputs); err != nil {
		return false, err
	}

	if err := groth16.Verify(proof, compiled.VK, publicWitness); err != nil {
		return false, nil
	}
	return true, nil
}

// VerifyingKey exposes the cached verifying key for kind, for an
// on-chain verifier or another process to consume independently of
// this manager.
func (cm *CircuitManager) VerifyingKey(kind CircuitKind) (groth16.VerifyingKey, error) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	compiled, ok := cm.compiled[kind]
	if !ok {
		return nil, ErrCircuitNotCompiled
	}
	return compiled.VK, nil
}
