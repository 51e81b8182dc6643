package redjubjub

import (
	"crypto/rand"
	"math/big"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/twistededwards"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// randomScalar samples a signing secret below the subgroup order.
func randomScalar(t *testing.T) *big.Int {
	t.Helper()
	x, err := rand.Int(rand.Reader, Order())
	require.NoError(t, err, "sampling scalar")
	return x
}

// randomElement samples a field element.
func randomElement(t *testing.T) fr.Element {
	t.Helper()
	var e fr.Element
	_, err := e.SetRandom()
	require.NoError(t, err, "sampling field element")
	return e
}

func TestSignVerifyRoundTrip(t *testing.T) {
	base := AuthorizingBase()
	secret := randomScalar(t)
	var pub twistededwards.PointAffine
	pub.ScalarMultiplication(&base, secret)

	message := []byte("a message worth signing")
	sig, err := Sign(secret, &base, message)
	require.NoError(t, err, "signing")

	assert.True(t, Verify(&pub, &base, message, sig), "signature should verify")
	assert.False(t, Verify(&pub, &base, []byte("a different message"), sig),
		"signature must not verify for another message")
}

func TestVerifyRejectsCorruptedSignature(t *testing.T) {
	base := AuthorizingBase()
	secret := randomScalar(t)
	var pub twistededwards.PointAffine
	pub.ScalarMultiplication(&base, secret)

	message := []byte("corruption target")
	sig, err := Sign(secret, &base, message)
	require.NoError(t, err, "signing")

	// Flip one bit in the response scalar half.
	corrupted := sig
	corrupted[40] ^= 0x01
	assert.False(t, Verify(&pub, &base, message, corrupted))

	// Flip one bit in the nonce point half.
	corrupted = sig
	corrupted[3] ^= 0x80
	assert.False(t, Verify(&pub, &base, message, corrupted))
}

func TestVerifyRejectsNonCanonicalResponse(t *testing.T) {
	base := AuthorizingBase()
	secret := randomScalar(t)
	var pub twistededwards.PointAffine
	pub.ScalarMultiplication(&base, secret)

	message := []byte("canonical encodings only")
	sig, err := Sign(secret, &base, message)
	require.NoError(t, err, "signing")

	// Add the subgroup order to s. The result names the same residue but is
	// not the canonical encoding, so verification must fail.
	s := new(big.Int).SetBytes(sig[32:])
	s.Add(s, Order())
	s.FillBytes(sig[32:])
	assert.False(t, Verify(&pub, &base, message, sig))
}

func TestRandomizedKeySignatures(t *testing.T) {
	base := AuthorizingBase()
	ask := randomElement(t)
	var ak twistededwards.PointAffine
	ak.ScalarMultiplication(&base, ask.BigInt(new(big.Int)))

	message := []byte("spend authorization")
	for i := 0; i < 4; i++ {
		alpha := randomElement(t)
		rk := RandomizePublicKey(&ak, alpha)
		rsk := RandomizeSecret(ask, alpha)

		sig, err := Sign(rsk, &base, message)
		require.NoError(t, err, "signing with randomized secret")
		assert.True(t, Verify(&rk, &base, message, sig),
			"randomized signature should verify under the randomized key")
		assert.False(t, Verify(&ak, &base, message, sig),
			"randomized signature must not verify under the bare authorizing key")
	}
}

func TestBindingSignatureProvesBalance(t *testing.T) {
	// One spend of 50, outputs of 20 and 25, fee 5. Balanced.
	spend, err := NewValueCommitment(50)
	require.NoError(t, err)
	out1, err := NewValueCommitment(20)
	require.NoError(t, err)
	out2, err := NewValueCommitment(25)
	require.NoError(t, err)

	spendCVs := []twistededwards.PointAffine{spend.Commitment()}
	outputCVs := []twistededwards.PointAffine{out1.Commitment(), out2.Commitment()}

	bsk := BindingSecret(
		[]fr.Element{spend.Randomness},
		[]fr.Element{out1.Randomness, out2.Randomness},
	)
	bvk := BindingVerificationKey(spendCVs, outputCVs, 5)

	rBase := RandomnessBase()
	message := []byte("binding")
	sig, err := Sign(bsk, &rBase, message)
	require.NoError(t, err, "binding signing")

	assert.True(t, Verify(&bvk, &rBase, message, sig),
		"binding signature should verify when the transaction balances")

	// Declaring a different fee shifts bvk off the signing key.
	wrongFee := BindingVerificationKey(spendCVs, outputCVs, 6)
	assert.False(t, Verify(&wrongFee, &rBase, message, sig),
		"binding signature must not verify for a different fee")
}

func TestBindingSignatureNegativeFee(t *testing.T) {
	// Miner reward shape: no spends, one output of 10, fee -10.
	out, err := NewValueCommitment(10)
	require.NoError(t, err)

	bsk := BindingSecret(nil, []fr.Element{out.Randomness})
	bvk := BindingVerificationKey(nil, []twistededwards.PointAffine{out.Commitment()}, -10)

	rBase := RandomnessBase()
	message := []byte("miner reward binding")
	sig, err := Sign(bsk, &rBase, message)
	require.NoError(t, err, "binding signing")

	assert.True(t, Verify(&bvk, &rBase, message, sig))
}

func TestGeneratorsAreIndependentSubgroupPoints(t *testing.T) {
	g := AuthorizingBase()
	v := ValueBase()
	r := RandomnessBase()

	points := map[string]twistededwards.PointAffine{"G": g, "V": v, "R": r}
	order := Order()
	for name, p := range points {
		p := p
		require.True(t, p.IsOnCurve(), "%s must be on the curve", name)
		require.False(t, isIdentity(&p), "%s must not be the identity", name)

		var q twistededwards.PointAffine
		q.ScalarMultiplication(&p, order)
		require.True(t, isIdentity(&q), "%s must have prime order", name)
	}

	assert.False(t, v.Equal(&g), "V must differ from G")
	assert.False(t, r.Equal(&g), "R must differ from G")
	assert.False(t, r.Equal(&v), "R must differ from V")
}

func TestValueCommitmentsAddHomomorphically(t *testing.T) {
	a, err := NewValueCommitment(5)
	require.NoError(t, err)
	b, err := NewValueCommitment(7)
	require.NoError(t, err)

	var sum twistededwards.PointAffine
	ca, cb := a.Commitment(), b.Commitment()
	sum.Add(&ca, &cb)

	// [5+7]V + [ra+rb]R computed directly over the integers.
	combined := new(big.Int).Add(
		a.Randomness.BigInt(new(big.Int)),
		b.Randomness.BigInt(new(big.Int)),
	)
	vBase, rBase := ValueBase(), RandomnessBase()
	var pv, pr, expect twistededwards.PointAffine
	pv.ScalarMultiplication(&vBase, big.NewInt(12))
	pr.ScalarMultiplication(&rBase, combined)
	expect.Add(&pv, &pr)

	assert.True(t, sum.Equal(&expect), "commitments should add homomorphically")
}

func TestSignatureFromBytesLengthCheck(t *testing.T) {
	_, err := SignatureFromBytes(make([]byte, 63))
	assert.ErrorIs(t, err, ErrInvalidSignature)

	_, err = SignatureFromBytes(make([]byte, SignatureSize))
	assert.NoError(t, err)
}
