// Package circuits defines the zero-knowledge circuits behind spend and
// output proofs.
//
// Both circuits work over the curve embedded in the proving field, use MiMC
// for every commitment and tree hash, and constrain note values to 64 bits.
// The in-circuit arithmetic mirrors pkg/keys, pkg/note, pkg/merkle and
// pkg/redjubjub exactly: a statement proven here is checkable against
// values computed there.
package circuits

import (
	"math/big"

	jubjub "github.com/consensys/gnark-crypto/ecc/bls12-381/twistededwards"
	tedwards "github.com/consensys/gnark-crypto/ecc/twistededwards"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/algebra/native/twistededwards"
	"github.com/consensys/gnark/std/hash/mimc"
)

// newCurve instantiates the embedded curve gadget.
func newCurve(api frontend.API) (twistededwards.Curve, error) {
	return twistededwards.NewEdCurve(api, tedwards.BLS12_381)
}

// basePoint returns G as a circuit constant.
func basePoint(curve twistededwards.Curve) twistededwards.Point {
	params := curve.Params()
	return twistededwards.Point{X: params.Base[0], Y: params.Base[1]}
}

// constPoint lifts a fixed curve point into circuit constants.
func constPoint(p jubjub.PointAffine) twistededwards.Point {
	return twistededwards.Point{
		X: p.X.BigInt(new(big.Int)),
		Y: p.Y.BigInt(new(big.Int)),
	}
}

// point assembles a circuit point from witness coordinates.
func point(x, y frontend.Variable) twistededwards.Point {
	return twistededwards.Point{X: x, Y: y}
}

// fieldHasher wraps the MiMC gadget with reset-per-call semantics so each
// hash starts from a clean state.
type fieldHasher struct {
	inner mimc.MiMC
}

func newFieldHasher(api frontend.API) (*fieldHasher, error) {
	h, err := mimc.NewMiMC(api)
	if err != nil {
		return nil, err
	}
	return &fieldHasher{inner: h}, nil
}

func (h *fieldHasher) hash(elems ...frontend.Variable) frontend.Variable {
	h.inner.Reset()
	h.inner.Write(elems...)
	return h.inner.Sum()
}
