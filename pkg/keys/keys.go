// Package keys implements the key hierarchy for shielded transactions.
//
// A SpendingKey is expanded from a 32-byte seed into three secrets: the
// spend authorizing key (proves spend authority inside the spend circuit
// and signs spend descriptions), the proof authorizing key (feeds the
// nullifier derivation), and the outgoing view key (lets the sender
// recover notes it created). The public side is derived on demand:
//
//	ak  = [ask]G            authorizing key (curve point)
//	nk  = MiMC(nsk)         nullifier deriving key
//	ivk = MiMC(ak.x, ak.y, nk)
//	pk  = [ivk]G            public address
//
// Keys and addresses cross process boundaries as lowercase hex strings.
package keys

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr/mimc"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/twistededwards"
	"github.com/minio/blake2b-simd"
)

// SeedSize is the byte length of a spending key seed.
const SeedSize = 32

// Personalization for the seed expansion PRF. Exactly 16 bytes.
const keyExpansionPersonalization = "SaplingTxKDFSeed"

// Domain separators for seed expansion.
const (
	domainSpendAuthorizingKey byte = 0
	domainProofAuthorizingKey byte = 1
	domainOutgoingViewKey     byte = 2
)

// ErrInvalidKey reports a malformed spending key encoding.
var ErrInvalidKey = errors.New("invalid spending key")

// OutgoingViewKey is the symmetric secret that seals the note encryption
// keys of every output a spender creates, so the spender can later recover
// the plaintext notes it sent.
type OutgoingViewKey [32]byte

// SpendingKey is the root secret of an account. The zero value is not a
// valid key; construct one with GenerateSpendingKey, SpendingKeyFromSeed or
// SpendingKeyFromHex.
type SpendingKey struct {
	seed [SeedSize]byte
	ask  fr.Element
	nsk  fr.Element
	ovk  OutgoingViewKey
}

// GenerateSpendingKey creates a spending key from a fresh random seed.
func GenerateSpendingKey() (*SpendingKey, error) {
	var seed [SeedSize]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return nil, fmt.Errorf("reading key seed: %w", err)
	}
	return SpendingKeyFromSeed(seed), nil
}

// SpendingKeyFromSeed expands seed into the full key hierarchy.
// The same seed always yields the same key.
func SpendingKeyFromSeed(seed [SeedSize]byte) *SpendingKey {
	k := &SpendingKey{seed: seed}
	k.ask = expandToField(seed, domainSpendAuthorizingKey)
	k.nsk = expandToField(seed, domainProofAuthorizingKey)
	ovk := expandSeed(seed, domainOutgoingViewKey)
	copy(k.ovk[:], ovk[:32])
	return k
}

// SpendingKeyFromHex decodes a 64-character hex seed and expands it.
//
// Parameters:
//   - s: lowercase or uppercase hex encoding of the 32-byte seed
//
// Returns ErrInvalidKey (wrapped) if the encoding is malformed.
func SpendingKeyFromHex(s string) (*SpendingKey, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if len(raw) != SeedSize {
		return nil, fmt.Errorf("%w: seed is %d bytes, want %d", ErrInvalidKey, len(raw), SeedSize)
	}
	var seed [SeedSize]byte
	copy(seed[:], raw)
	return SpendingKeyFromSeed(seed), nil
}

// Hex returns the hex encoding of the key seed.
func (k *SpendingKey) Hex() string {
	return hex.EncodeToString(k.seed[:])
}

// SpendAuthorizingKey returns ask, the scalar behind the authorizing key.
func (k *SpendingKey) SpendAuthorizingKey() fr.Element {
	return k.ask
}

// ProofAuthorizingKey returns nsk, the scalar behind the nullifier
// deriving key.
func (k *SpendingKey) ProofAuthorizingKey() fr.Element {
	return k.nsk
}

// OutgoingViewKey returns ovk.
func (k *SpendingKey) OutgoingViewKey() OutgoingViewKey {
	return k.ovk
}

// AuthorizingKey returns ak = [ask]G.
func (k *SpendingKey) AuthorizingKey() twistededwards.PointAffine {
	return scalarMulBase(k.ask)
}

// NullifierDerivingKey returns nk = MiMC(nsk).
func (k *SpendingKey) NullifierDerivingKey() fr.Element {
	return hashToField(k.nsk)
}

// IncomingViewKey returns ivk = MiMC(ak.x, ak.y, nk). Holders of ivk can
// detect and decrypt notes addressed to the key without being able to
// spend them.
func (k *SpendingKey) IncomingViewKey() fr.Element {
	ak := k.AuthorizingKey()
	return hashToField(ak.X, ak.Y, k.NullifierDerivingKey())
}

// PublicAddress returns the shielded payment address pk = [ivk]G.
func (k *SpendingKey) PublicAddress() *PublicAddress {
	point := scalarMulBase(k.IncomingViewKey())
	return &PublicAddress{point: point}
}

// AddressFromIncomingViewKey recomputes the payment address controlled by
// ivk. Used when decrypting received notes.
func AddressFromIncomingViewKey(ivk fr.Element) *PublicAddress {
	return &PublicAddress{point: scalarMulBase(ivk)}
}

// expandSeed is the PRF behind the key hierarchy: a personalized
// BLAKE2b-512 of seed and a one-byte domain tag.
func expandSeed(seed [SeedSize]byte, domain byte) [64]byte {
	h, _ := blake2b.New(&blake2b.Config{
		Size:   64,
		Person: []byte(keyExpansionPersonalization),
	})
	h.Write(seed[:])
	h.Write([]byte{domain})
	var out [64]byte
	copy(out[:], h.Sum(nil))
	return out
}

// expandToField maps a PRF expansion into the scalar field.
func expandToField(seed [SeedSize]byte, domain byte) fr.Element {
	raw := expandSeed(seed, domain)
	var e fr.Element
	e.SetBigInt(new(big.Int).SetBytes(raw[:]))
	return e
}

// hashToField hashes field elements with MiMC. Inputs are written in their
// canonical 32-byte form, which Write always accepts.
func hashToField(elems ...fr.Element) fr.Element {
	h := mimc.NewMiMC()
	for i := range elems {
		b := elems[i].Bytes()
		h.Write(b[:])
	}
	var out fr.Element
	out.SetBytes(h.Sum(nil))
	return out
}

// scalarMulBase multiplies the curve base point by the integer value of e.
func scalarMulBase(e fr.Element) twistededwards.PointAffine {
	curve := twistededwards.GetEdwardsCurve()
	var p twistededwards.PointAffine
	p.ScalarMultiplication(&curve.Base, e.BigInt(new(big.Int)))
	return p
}
