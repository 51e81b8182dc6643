package keys

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/twistededwards"
)

// AddressSize is the byte length of a serialized public address.
const AddressSize = 32

// ErrInvalidAddress reports a byte string that does not decode to a point
// in the prime-order subgroup.
var ErrInvalidAddress = errors.New("invalid public address")

// PublicAddress is a shielded payment address: the compressed curve point
// [ivk]G. Addresses compare equal when their serialized forms match.
type PublicAddress struct {
	point twistededwards.PointAffine
}

// PublicAddressFromBytes decodes a compressed address and checks that the
// point lies in the prime-order subgroup.
func PublicAddressFromBytes(b []byte) (*PublicAddress, error) {
	if len(b) != AddressSize {
		return nil, fmt.Errorf("%w: %d bytes, want %d", ErrInvalidAddress, len(b), AddressSize)
	}
	var p twistededwards.PointAffine
	if _, err := p.SetBytes(b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if !inPrimeSubgroup(&p) {
		return nil, fmt.Errorf("%w: point outside the prime-order subgroup", ErrInvalidAddress)
	}
	return &PublicAddress{point: p}, nil
}

// PublicAddressFromHex decodes a 64-character hex address.
func PublicAddressFromHex(s string) (*PublicAddress, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	return PublicAddressFromBytes(raw)
}

// Point returns the address as an affine curve point.
func (a *PublicAddress) Point() twistededwards.PointAffine {
	return a.point
}

// Bytes returns the compressed 32-byte encoding.
func (a *PublicAddress) Bytes() [AddressSize]byte {
	return a.point.Bytes()
}

// Hex returns the hex encoding of the compressed address.
func (a *PublicAddress) Hex() string {
	b := a.Bytes()
	return hex.EncodeToString(b[:])
}

// Equal reports whether two addresses encode the same point.
func (a *PublicAddress) Equal(b *PublicAddress) bool {
	if a == nil || b == nil {
		return a == b
	}
	ab, bb := a.Bytes(), b.Bytes()
	return bytes.Equal(ab[:], bb[:])
}

// inPrimeSubgroup reports whether p has prime order: multiplying by the
// subgroup order must land on the identity, and p itself must not be it.
func inPrimeSubgroup(p *twistededwards.PointAffine) bool {
	if isIdentity(p) {
		return false
	}
	curve := twistededwards.GetEdwardsCurve()
	var q twistededwards.PointAffine
	q.ScalarMultiplication(p, new(big.Int).Set(&curve.Order))
	return isIdentity(&q)
}

// isIdentity reports whether p is the group identity (0, 1).
func isIdentity(p *twistededwards.PointAffine) bool {
	return p.X.IsZero() && p.Y.IsOne()
}
