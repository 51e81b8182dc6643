package sapling

import (
	"bytes"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"

	"github.com/suffix-labs/sapling-tx/pkg/circuits"
)

// ProveSpend proves a fully assigned spend statement and returns the
// serialized proof.
func (p *Params) ProveSpend(assignment *circuits.SpendCircuit) ([]byte, error) {
	return prove(p.spendSystem, p.spendProvingKey, assignment)
}

// VerifySpend checks a serialized spend proof against its public inputs.
// Only the public fields of the assignment are consulted.
func (p *Params) VerifySpend(proof []byte, publicInputs *circuits.SpendCircuit) error {
	return verify(proof, p.spendVerifyingKey, publicInputs)
}

// ProveOutput proves a fully assigned output statement and returns the
// serialized proof.
func (p *Params) ProveOutput(assignment *circuits.OutputCircuit) ([]byte, error) {
	return prove(p.outputSystem, p.outputProvingKey, assignment)
}

// VerifyOutput checks a serialized output proof against its public inputs.
func (p *Params) VerifyOutput(proof []byte, publicInputs *circuits.OutputCircuit) error {
	return verify(proof, p.outputVerifyingKey, publicInputs)
}

func prove(cs constraint.ConstraintSystem, pk groth16.ProvingKey, assignment frontend.Circuit) ([]byte, error) {
	w, err := frontend.NewWitness(assignment, ecc.BLS12_381.ScalarField())
	if err != nil {
		return nil, fmt.Errorf("building witness: %w", err)
	}
	proof, err := groth16.Prove(cs, pk, w)
	if err != nil {
		return nil, fmt.Errorf("proving: %w", err)
	}
	var buf bytes.Buffer
	if _, err := proof.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("encoding proof: %w", err)
	}
	return buf.Bytes(), nil
}

func verify(proofBytes []byte, vk groth16.VerifyingKey, publicInputs frontend.Circuit) error {
	w, err := frontend.NewWitness(publicInputs, ecc.BLS12_381.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return fmt.Errorf("building public witness: %w", err)
	}
	proof := groth16.NewProof(ecc.BLS12_381)
	if _, err := proof.ReadFrom(bytes.NewReader(proofBytes)); err != nil {
		return fmt.Errorf("decoding proof: %w", err)
	}
	return groth16.Verify(proof, vk, w)
}
