package circuits

import (
	"github.com/consensys/gnark/frontend"

	"github.com/suffix-labs/sapling-tx/pkg/merkle"
	"github.com/suffix-labs/sapling-tx/pkg/redjubjub"
)

// SpendCircuit proves authority to spend one committed note without
// revealing which. The public inputs are the tree anchor, the nullifier,
// and the affine coordinates of the value commitment and the randomized
// verification key. The constraints tie them to a single witness note:
//
//   - the prover knows the authorizing secrets behind the note owner's
//     address
//   - the note commitment sits in the tree under Anchor at Position
//   - Nullifier is exactly the tag derived from that commitment and
//     position
//   - RandomizedKey is the authorizing key blinded with Alpha
//   - ValueCommitment commits to the note value under ValueRandomness
//   - the value fits in 64 bits
type SpendCircuit struct {
	Anchor           frontend.Variable `gnark:",public"`
	Nullifier        frontend.Variable `gnark:",public"`
	ValueCommitmentX frontend.Variable `gnark:",public"`
	ValueCommitmentY frontend.Variable `gnark:",public"`
	RandomizedKeyX   frontend.Variable `gnark:",public"`
	RandomizedKeyY   frontend.Variable `gnark:",public"`

	Value                frontend.Variable
	CommitmentRandomness frontend.Variable
	SpendAuthorizingKey  frontend.Variable
	ProofAuthorizingKey  frontend.Variable
	Alpha                frontend.Variable
	ValueRandomness      frontend.Variable
	Position             frontend.Variable
	AuthPath             [merkle.TreeDepth]frontend.Variable
}

func (c *SpendCircuit) Define(api frontend.API) error {
	curve, err := newCurve(api)
	if err != nil {
		return err
	}
	h, err := newFieldHasher(api)
	if err != nil {
		return err
	}

	api.ToBinary(c.Value, 64)

	// Key chain: ak = [ask]G, nk = H(nsk), ivk = H(ak, nk), owner = [ivk]G.
	base := basePoint(curve)
	ak := curve.ScalarMul(base, c.SpendAuthorizingKey)
	nk := h.hash(c.ProofAuthorizingKey)
	ivk := h.hash(ak.X, ak.Y, nk)
	owner := curve.ScalarMul(base, ivk)

	cm := h.hash(owner.X, owner.Y, c.Value, c.CommitmentRandomness)

	// Fold the authentication path from the leaf up to the anchor.
	positionBits := api.ToBinary(c.Position, merkle.TreeDepth)
	node := cm
	for i := 0; i < merkle.TreeDepth; i++ {
		left := api.Select(positionBits[i], c.AuthPath[i], node)
		right := api.Select(positionBits[i], node, c.AuthPath[i])
		node = h.hash(left, right)
	}
	api.AssertIsEqual(node, c.Anchor)

	nf := h.hash(nk, cm, c.Position)
	api.AssertIsEqual(nf, c.Nullifier)

	rk := curve.Add(ak, curve.ScalarMul(base, c.Alpha))
	api.AssertIsEqual(rk.X, c.RandomizedKeyX)
	api.AssertIsEqual(rk.Y, c.RandomizedKeyY)

	cv := curve.Add(
		curve.ScalarMul(constPoint(redjubjub.ValueBase()), c.Value),
		curve.ScalarMul(constPoint(redjubjub.RandomnessBase()), c.ValueRandomness),
	)
	api.AssertIsEqual(cv.X, c.ValueCommitmentX)
	api.AssertIsEqual(cv.Y, c.ValueCommitmentY)
	return nil
}
