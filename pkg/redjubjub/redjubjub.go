// Package redjubjub implements randomizable Schnorr signatures over the
// prime-order subgroup of the embedded Edwards curve, plus the Pedersen
// value commitments whose randomness those signatures aggregate.
//
// Two signature flavors share one algorithm and differ only in their base
// point and key provenance:
//
//   - Spend authorization: the signer randomizes its long-lived authorizing
//     key with a fresh scalar per spend, so signatures from the same account
//     are unlinkable. Base point G.
//   - Binding: the secret is the folded commitment randomness of an entire
//     transaction, and the matching public key can be recomputed by anyone
//     from the value commitments and the declared fee. Base point R.
//
// Signatures are 64 bytes: the compressed nonce point followed by the
// 32-byte big-endian scalar response.
package redjubjub

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/twistededwards"
	"github.com/minio/blake2b-simd"
)

// SignatureSize is the byte length of a serialized signature.
const SignatureSize = 64

// Personalizations are exactly 16 bytes.
const (
	challengePersonalization = "SaplingTxRedDSA_"
	groupHashPersonalization = "SaplingTxGrpHash"
)

// Group-hash inputs for the two value-commitment generators.
const (
	valueBaseTag      = "cv-value-base"
	randomnessBaseTag = "cv-randomness-base"
)

// ErrInvalidSignature reports a byte string that is not a well-formed
// signature encoding.
var ErrInvalidSignature = errors.New("invalid signature encoding")

// Signature is a Schnorr signature: nonce point R followed by response s.
type Signature [SignatureSize]byte

// SignatureFromBytes copies a 64-byte encoding into a Signature.
func SignatureFromBytes(b []byte) (Signature, error) {
	var sig Signature
	if len(b) != SignatureSize {
		return sig, fmt.Errorf("%w: %d bytes, want %d", ErrInvalidSignature, len(b), SignatureSize)
	}
	copy(sig[:], b)
	return sig, nil
}

// Bytes returns the signature as a slice.
func (s Signature) Bytes() []byte {
	out := make([]byte, SignatureSize)
	copy(out, s[:])
	return out
}

var (
	generatorOnce  sync.Once
	valueBase      twistededwards.PointAffine
	randomnessBase twistededwards.PointAffine
)

func initGenerators() {
	valueBase = groupHash(valueBaseTag)
	randomnessBase = groupHash(randomnessBaseTag)
}

// AuthorizingBase returns G, the base point for authorizing keys, public
// addresses and spend-authorization signatures.
func AuthorizingBase() twistededwards.PointAffine {
	return twistededwards.GetEdwardsCurve().Base
}

// ValueBase returns V, the generator binding clear values inside value
// commitments. No discrete-log relation between V, R and G is known.
func ValueBase() twistededwards.PointAffine {
	generatorOnce.Do(initGenerators)
	return valueBase
}

// RandomnessBase returns R, the generator binding commitment randomness.
// Binding signatures verify against this base.
func RandomnessBase() twistededwards.PointAffine {
	generatorOnce.Do(initGenerators)
	return randomnessBase
}

// Order returns the order of the prime subgroup.
func Order() *big.Int {
	curve := twistededwards.GetEdwardsCurve()
	return new(big.Int).Set(&curve.Order)
}

// Sign produces a signature over message for the key pair (secret,
// [secret]base). The secret is reduced modulo the subgroup order.
func Sign(secret *big.Int, base *twistededwards.PointAffine, message []byte) (Signature, error) {
	var sig Signature
	order := Order()

	x := new(big.Int).Mod(secret, order)
	nonce, err := rand.Int(rand.Reader, order)
	if err != nil {
		return sig, fmt.Errorf("sampling signature nonce: %w", err)
	}

	var noncePoint, public twistededwards.PointAffine
	noncePoint.ScalarMultiplication(base, nonce)
	public.ScalarMultiplication(base, x)

	rBytes := noncePoint.Bytes()
	aBytes := public.Bytes()
	c := challenge(rBytes, aBytes, message)

	// s = nonce + c*x mod order
	s := new(big.Int).Mul(c, x)
	s.Add(s, nonce)
	s.Mod(s, order)

	copy(sig[:32], rBytes[:])
	s.FillBytes(sig[32:])
	return sig, nil
}

// Verify checks sig over message against public key pub on the given base.
// It accepts only canonical encodings: a nonce point on the curve and a
// response scalar below the subgroup order.
func Verify(pub *twistededwards.PointAffine, base *twistededwards.PointAffine, message []byte, sig Signature) bool {
	var noncePoint twistededwards.PointAffine
	if _, err := noncePoint.SetBytes(sig[:32]); err != nil {
		return false
	}
	s := new(big.Int).SetBytes(sig[32:])
	order := Order()
	if s.Cmp(order) >= 0 {
		return false
	}

	rBytes := noncePoint.Bytes()
	aBytes := pub.Bytes()
	c := challenge(rBytes, aBytes, message)

	// [s]base == R + [c]pub
	var lhs, rhs twistededwards.PointAffine
	lhs.ScalarMultiplication(base, s)
	rhs.ScalarMultiplication(pub, c)
	rhs.Add(&rhs, &noncePoint)
	return lhs.Equal(&rhs)
}

// RandomizePublicKey returns ak + [alpha]G, the per-spend verification key.
func RandomizePublicKey(ak *twistededwards.PointAffine, alpha fr.Element) twistededwards.PointAffine {
	base := AuthorizingBase()
	var blind, rk twistededwards.PointAffine
	blind.ScalarMultiplication(&base, alpha.BigInt(new(big.Int)))
	rk.Add(ak, &blind)
	return rk
}

// RandomizeSecret returns ask + alpha reduced modulo the subgroup order,
// the signing secret matching RandomizePublicKey.
func RandomizeSecret(ask, alpha fr.Element) *big.Int {
	x := ask.BigInt(new(big.Int))
	x.Add(x, alpha.BigInt(new(big.Int)))
	return x.Mod(x, Order())
}

// challenge derives the Schnorr challenge scalar from the nonce point, the
// public key and the message.
func challenge(noncePoint, pub [32]byte, message []byte) *big.Int {
	h, _ := blake2b.New(&blake2b.Config{
		Size:   64,
		Person: []byte(challengePersonalization),
	})
	h.Write(noncePoint[:])
	h.Write(pub[:])
	h.Write(message)
	c := new(big.Int).SetBytes(h.Sum(nil))
	return c.Mod(c, Order())
}

// groupHash derives a generator of the prime subgroup from tag, by hashing
// to a y coordinate, solving the curve equation and clearing the cofactor.
// Counters make the rejection loop deterministic.
func groupHash(tag string) twistededwards.PointAffine {
	curve := twistededwards.GetEdwardsCurve()
	for counter := 0; counter < 256; counter++ {
		h, _ := blake2b.New(&blake2b.Config{
			Size:   64,
			Person: []byte(groupHashPersonalization),
		})
		h.Write([]byte(tag))
		h.Write([]byte{byte(counter)})

		var y fr.Element
		y.SetBigInt(new(big.Int).SetBytes(h.Sum(nil)))

		p, ok := pointFromY(y, &curve)
		if !ok {
			continue
		}
		// clear the cofactor of 8
		p.Double(&p)
		p.Double(&p)
		p.Double(&p)
		if isIdentity(&p) {
			continue
		}
		return p
	}
	panic("redjubjub: group hash exhausted counters for tag " + tag)
}

// pointFromY solves a*x^2 + y^2 = 1 + d*x^2*y^2 for x with a = -1, taking
// the lexicographically smaller root. Returns false when y is not on the
// curve.
func pointFromY(y fr.Element, curve *twistededwards.CurveParams) (twistededwards.PointAffine, bool) {
	var one, y2, num, den, x2, x fr.Element
	one.SetOne()
	y2.Square(&y)
	num.Sub(&y2, &one)
	den.Mul(&curve.D, &y2)
	den.Add(&den, &one)
	den.Inverse(&den)
	x2.Mul(&num, &den)

	if x.Sqrt(&x2) == nil {
		return twistededwards.PointAffine{}, false
	}
	if x.LexicographicallyLargest() {
		x.Neg(&x)
	}

	var p twistededwards.PointAffine
	p.X = x
	p.Y = y
	if !p.IsOnCurve() {
		return twistededwards.PointAffine{}, false
	}
	return p, true
}

// isIdentity reports whether p is the group identity (0, 1).
func isIdentity(p *twistededwards.PointAffine) bool {
	return p.X.IsZero() && p.Y.IsOne()
}
