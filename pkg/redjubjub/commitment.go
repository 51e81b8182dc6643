package redjubjub

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/twistededwards"
)

// ValueCommitment is a Pedersen commitment to a clear value:
//
//	cv = [Value]V + [Randomness]R
//
// The commitments of a transaction sum homomorphically, which is what lets
// the binding signature prove the balance equation without revealing any
// individual value.
type ValueCommitment struct {
	Value      uint64
	Randomness fr.Element
}

// NewValueCommitment commits to value with fresh randomness.
func NewValueCommitment(value uint64) (*ValueCommitment, error) {
	var rcv fr.Element
	if _, err := rcv.SetRandom(); err != nil {
		return nil, fmt.Errorf("sampling commitment randomness: %w", err)
	}
	return &ValueCommitment{Value: value, Randomness: rcv}, nil
}

// Commitment computes the commitment point.
func (vc *ValueCommitment) Commitment() twistededwards.PointAffine {
	vBase := ValueBase()
	rBase := RandomnessBase()

	var pv, pr, cv twistededwards.PointAffine
	pv.ScalarMultiplication(&vBase, new(big.Int).SetUint64(vc.Value))
	pr.ScalarMultiplication(&rBase, vc.Randomness.BigInt(new(big.Int)))
	cv.Add(&pv, &pr)
	return cv
}

// BindingSecret folds per-descriptor commitment randomness into the binding
// signing key: the sum over spends minus the sum over outputs, modulo the
// subgroup order. Summation happens over the integers so it matches the
// group arithmetic of the commitment points.
func BindingSecret(spendRandomness, outputRandomness []fr.Element) *big.Int {
	sum := new(big.Int)
	var scratch big.Int
	for i := range spendRandomness {
		sum.Add(sum, spendRandomness[i].BigInt(&scratch))
	}
	for i := range outputRandomness {
		sum.Sub(sum, outputRandomness[i].BigInt(&scratch))
	}
	return sum.Mod(sum, Order())
}

// BindingVerificationKey recomputes the public image of the binding secret
// from public data only:
//
//	bvk = sum(spend cv) - sum(output cv) - [fee]V
//
// bvk equals [BindingSecret]R exactly when spends minus outputs equals the
// declared fee, so verifying the binding signature under bvk is the
// cryptographic balance check. A negative fee enters as its residue modulo
// the subgroup order.
func BindingVerificationKey(spendCommitments, outputCommitments []twistededwards.PointAffine, fee int64) twistededwards.PointAffine {
	bvk := identity()
	var neg twistededwards.PointAffine
	for i := range spendCommitments {
		bvk.Add(&bvk, &spendCommitments[i])
	}
	for i := range outputCommitments {
		neg.Neg(&outputCommitments[i])
		bvk.Add(&bvk, &neg)
	}

	feeScalar := new(big.Int).Mod(big.NewInt(fee), Order())
	vBase := ValueBase()
	var feePoint twistededwards.PointAffine
	feePoint.ScalarMultiplication(&vBase, feeScalar)
	neg.Neg(&feePoint)
	bvk.Add(&bvk, &neg)
	return bvk
}

// identity returns the group identity (0, 1).
func identity() twistededwards.PointAffine {
	var p twistededwards.PointAffine
	p.X.SetZero()
	p.Y.SetOne()
	return p
}
