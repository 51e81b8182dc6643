// Package note models the private values moved by shielded transactions.
//
// A Note is the plaintext quadruple (owner, value, memo, commitment
// randomness). Publicly a note only ever appears as its MiMC commitment;
// spending one additionally reveals its nullifier, a deterministic tag that
// cannot be linked back to the commitment without the owner's keys. The
// MerkleNote type in this package is the encrypted form a posted
// transaction carries for the recipient and the sender.
package note

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr/mimc"

	"github.com/suffix-labs/sapling-tx/pkg/keys"
)

// MemoSize is the fixed byte length of a note memo.
const MemoSize = 32

// SerializedSize is the byte length of a plaintext note encoding:
// owner address, value, commitment randomness, memo.
const SerializedSize = keys.AddressSize + 8 + 32 + MemoSize

// ErrInvalidNote reports a malformed plaintext note encoding.
var ErrInvalidNote = errors.New("invalid note encoding")

// Memo is a fixed-width free-form note annotation. Shorter strings are
// zero-padded on the right.
type Memo [MemoSize]byte

// MemoFromString builds a memo from s, truncating past MemoSize bytes.
func MemoFromString(s string) Memo {
	var m Memo
	copy(m[:], s)
	return m
}

// String returns the memo with trailing zero padding removed.
func (m Memo) String() string {
	return string(bytes.TrimRight(m[:], "\x00"))
}

// Note is a spendable value record. Construct notes with New or FromParts;
// the zero value has no owner and cannot be committed.
type Note struct {
	owner *keys.PublicAddress
	value uint64
	memo  Memo
	rcm   fr.Element
}

// New creates a note paying value to owner with fresh commitment
// randomness.
func New(owner *keys.PublicAddress, value uint64, memo string) (*Note, error) {
	var rcm fr.Element
	if _, err := rcm.SetRandom(); err != nil {
		return nil, fmt.Errorf("sampling note randomness: %w", err)
	}
	return FromParts(owner, value, MemoFromString(memo), rcm), nil
}

// FromParts assembles a note from explicit components. Used when restoring
// decrypted notes.
func FromParts(owner *keys.PublicAddress, value uint64, memo Memo, rcm fr.Element) *Note {
	return &Note{owner: owner, value: value, memo: memo, rcm: rcm}
}

// Owner returns the address the note pays.
func (n *Note) Owner() *keys.PublicAddress {
	return n.owner
}

// Value returns the note value.
func (n *Note) Value() uint64 {
	return n.value
}

// Memo returns the note memo.
func (n *Note) Memo() Memo {
	return n.memo
}

// CommitmentRandomness returns rcm, the trapdoor of the note commitment.
func (n *Note) CommitmentRandomness() fr.Element {
	return n.rcm
}

// Commitment computes cm = MiMC(owner.x, owner.y, value, rcm), the leaf
// this note occupies in the note commitment tree.
func (n *Note) Commitment() fr.Element {
	point := n.owner.Point()
	var value fr.Element
	value.SetUint64(n.value)
	return hashToField(point.X, point.Y, value, n.rcm)
}

// CommitmentBytes returns the canonical encoding of the note commitment.
func (n *Note) CommitmentBytes() [32]byte {
	cm := n.Commitment()
	return cm.Bytes()
}

// Nullifier computes nf = MiMC(nk, cm, position) for the spend of this note
// at the given tree position. The same note at the same position always
// nullifies to the same tag, which is how double spends are caught.
func (n *Note) Nullifier(key *keys.SpendingKey, position uint64) fr.Element {
	var pos fr.Element
	pos.SetUint64(position)
	return hashToField(key.NullifierDerivingKey(), n.Commitment(), pos)
}

// Serialize encodes the plaintext note as
// owner ∥ value (LE) ∥ rcm ∥ memo.
func (n *Note) Serialize() []byte {
	out := make([]byte, 0, SerializedSize)
	owner := n.owner.Bytes()
	out = append(out, owner[:]...)
	out = binary.LittleEndian.AppendUint64(out, n.value)
	rcm := n.rcm.Bytes()
	out = append(out, rcm[:]...)
	out = append(out, n.memo[:]...)
	return out
}

// Deserialize decodes a plaintext note encoding.
func Deserialize(data []byte) (*Note, error) {
	if len(data) != SerializedSize {
		return nil, fmt.Errorf("%w: %d bytes, want %d", ErrInvalidNote, len(data), SerializedSize)
	}
	owner, err := keys.PublicAddressFromBytes(data[:keys.AddressSize])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidNote, err)
	}
	offset := keys.AddressSize
	value := binary.LittleEndian.Uint64(data[offset : offset+8])
	offset += 8
	var rcm fr.Element
	rcm.SetBytes(data[offset : offset+32])
	offset += 32
	var memo Memo
	copy(memo[:], data[offset:])
	return FromParts(owner, value, memo, rcm), nil
}

// hashToField hashes field elements with MiMC, writing each in its
// canonical 32-byte form.
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
