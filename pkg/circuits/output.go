package circuits

import (
	"github.com/consensys/gnark/frontend"

	"github.com/suffix-labs/sapling-tx/pkg/redjubjub"
)

// OutputCircuit proves that a newly created note is well formed: the public
// note commitment really commits to a value paid to a valid curve point,
// and the public value commitment commits to that same value.
type OutputCircuit struct {
	Commitment       frontend.Variable `gnark:",public"`
	ValueCommitmentX frontend.Variable `gnark:",public"`
	ValueCommitmentY frontend.Variable `gnark:",public"`

	OwnerX               frontend.Variable
	OwnerY               frontend.Variable
	Value                frontend.Variable
	CommitmentRandomness frontend.Variable
	ValueRandomness      frontend.Variable
}

func (c *OutputCircuit) Define(api frontend.API) error {
	curve, err := newCurve(api)
	if err != nil {
		return err
	}
	h, err := newFieldHasher(api)
	if err != nil {
		return err
	}

	api.ToBinary(c.Value, 64)

	owner := point(c.OwnerX, c.OwnerY)
	curve.AssertIsOnCurve(owner)

	cm := h.hash(owner.X, owner.Y, c.Value, c.CommitmentRandomness)
	api.AssertIsEqual(cm, c.Commitment)

	cv := curve.Add(
		curve.ScalarMul(constPoint(redjubjub.ValueBase()), c.Value),
		curve.ScalarMul(constPoint(redjubjub.RandomnessBase()), c.ValueRandomness),
	)
	api.AssertIsEqual(cv.X, c.ValueCommitmentX)
	api.AssertIsEqual(cv.Y, c.ValueCommitmentY)
	return nil
}
