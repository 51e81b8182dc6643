package note

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/twistededwards"
	"github.com/minio/blake2b-simd"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/suffix-labs/sapling-tx/pkg/keys"
)

// Record layout sizes. MerkleNoteSize is a wire constant: value commitment,
// note commitment, ephemeral key, the sealed note and the sealed note
// encryption keys.
const (
	addressTagSize    = 11
	notePlaintextSize = addressTagSize + 8 + 32 + MemoSize
	keysPlaintextSize = 32 + keys.AddressSize

	// EncryptedNoteSize is the sealed note payload: owner tag, value,
	// commitment randomness and memo plus the AEAD tag.
	EncryptedNoteSize = notePlaintextSize + chacha20poly1305.Overhead

	// EncryptedKeysSize is the sealed (esk, owner) pair plus the AEAD tag.
	EncryptedKeysSize = keysPlaintextSize + chacha20poly1305.Overhead

	// MerkleNoteSize is the full public record: 275 bytes.
	MerkleNoteSize = 32 + 32 + 32 + EncryptedNoteSize + EncryptedKeysSize
)

// KDF personalizations. Exactly 16 bytes.
const (
	noteKeyPersonalization     = "SaplingTxNoteKDF"
	outgoingKeyPersonalization = "SaplingTxOutKDF_"
)

// ErrInvalidMerkleNote reports a byte string that is not a MerkleNote
// encoding.
var ErrInvalidMerkleNote = errors.New("invalid merkle note encoding")

// ErrDecryptionFailed reports that a MerkleNote could not be opened with
// the supplied key material.
var ErrDecryptionFailed = errors.New("note decryption failed")

// MerkleNote is the public form of an output: everything a posted
// transaction reveals about a created note. The owner recovers the
// plaintext through the ephemeral key agreement; the sender recovers it
// through the outgoing view key, which unseals the ephemeral secret.
type MerkleNote struct {
	// ValueCommitment is the Pedersen commitment to the note value.
	ValueCommitment [32]byte

	// NoteCommitment is the leaf added to the note commitment tree.
	NoteCommitment [32]byte

	// EphemeralKey is [esk]G for the per-note secret esk.
	EphemeralKey [32]byte

	// EncryptedNote seals the note plaintext to the owner.
	EncryptedNote [EncryptedNoteSize]byte

	// NoteEncryptionKeys seals esk and the owner address to the sender's
	// outgoing view key.
	NoteEncryptionKeys [EncryptedKeysSize]byte
}

// NewMerkleNote encrypts n into its public record.
//
// Parameters:
//   - n: the plaintext note being created
//   - valueCommitment: the compressed Pedersen commitment for the output
//   - ovk: the creator's outgoing view key, which seals the recovery path
func NewMerkleNote(n *Note, valueCommitment [32]byte, ovk keys.OutgoingViewKey) (*MerkleNote, error) {
	var esk fr.Element
	if _, err := esk.SetRandom(); err != nil {
		return nil, fmt.Errorf("sampling ephemeral secret: %w", err)
	}

	curve := twistededwards.GetEdwardsCurve()
	eskInt := esk.BigInt(new(big.Int))

	var epk twistededwards.PointAffine
	epk.ScalarMultiplication(&curve.Base, eskInt)
	epkBytes := epk.Bytes()

	owner := n.Owner().Point()
	var shared twistededwards.PointAffine
	shared.ScalarMultiplication(&owner, eskInt)
	sharedBytes := shared.Bytes()

	m := &MerkleNote{
		ValueCommitment: valueCommitment,
		NoteCommitment:  n.CommitmentBytes(),
		EphemeralKey:    epkBytes,
	}

	// Seal the note plaintext to the owner.
	encKey := deriveKey(noteKeyPersonalization, sharedBytes[:], epkBytes[:])
	sealed, err := seal(encKey, notePlaintext(n))
	if err != nil {
		return nil, err
	}
	copy(m.EncryptedNote[:], sealed)

	// Seal the recovery path to the sender.
	outKey := deriveKey(outgoingKeyPersonalization,
		ovk[:], m.ValueCommitment[:], m.NoteCommitment[:], epkBytes[:])
	eskBytes := esk.Bytes()
	ownerBytes := n.Owner().Bytes()
	keysPlain := make([]byte, 0, keysPlaintextSize)
	keysPlain = append(keysPlain, eskBytes[:]...)
	keysPlain = append(keysPlain, ownerBytes[:]...)
	sealed, err = seal(outKey, keysPlain)
	if err != nil {
		return nil, err
	}
	copy(m.NoteEncryptionKeys[:], sealed)

	return m, nil
}

// Serialize encodes the record in its fixed 275-byte layout.
func (m *MerkleNote) Serialize() []byte {
	out := make([]byte, 0, MerkleNoteSize)
	out = append(out, m.ValueCommitment[:]...)
	out = append(out, m.NoteCommitment[:]...)
	out = append(out, m.EphemeralKey[:]...)
	out = append(out, m.EncryptedNote[:]...)
	out = append(out, m.NoteEncryptionKeys[:]...)
	return out
}

// MerkleNoteFromBytes decodes a fixed-layout record.
func MerkleNoteFromBytes(data []byte) (*MerkleNote, error) {
	if len(data) != MerkleNoteSize {
		return nil, fmt.Errorf("%w: %d bytes, want %d", ErrInvalidMerkleNote, len(data), MerkleNoteSize)
	}
	m := &MerkleNote{}
	offset := 0
	copy(m.ValueCommitment[:], data[offset:offset+32])
	offset += 32
	copy(m.NoteCommitment[:], data[offset:offset+32])
	offset += 32
	copy(m.EphemeralKey[:], data[offset:offset+32])
	offset += 32
	copy(m.EncryptedNote[:], data[offset:offset+EncryptedNoteSize])
	offset += EncryptedNoteSize
	copy(m.NoteEncryptionKeys[:], data[offset:])
	return m, nil
}

// DecryptNoteForOwner opens the record with the owner's incoming view key.
func (m *MerkleNote) DecryptNoteForOwner(ivk fr.Element) (*Note, error) {
	var epk twistededwards.PointAffine
	if _, err := epk.SetBytes(m.EphemeralKey[:]); err != nil {
		return nil, fmt.Errorf("%w: bad ephemeral key", ErrDecryptionFailed)
	}

	var shared twistededwards.PointAffine
	shared.ScalarMultiplication(&epk, ivk.BigInt(new(big.Int)))
	sharedBytes := shared.Bytes()

	encKey := deriveKey(noteKeyPersonalization, sharedBytes[:], m.EphemeralKey[:])
	plain, err := open(encKey, m.EncryptedNote[:])
	if err != nil {
		return nil, ErrDecryptionFailed
	}

	owner := keys.AddressFromIncomingViewKey(ivk)
	return m.noteFromPlaintext(plain, owner)
}

// DecryptNoteForSpender opens the record with the creator's outgoing view
// key, recovering first the ephemeral secret and then the note itself.
func (m *MerkleNote) DecryptNoteForSpender(ovk keys.OutgoingViewKey) (*Note, error) {
	outKey := deriveKey(outgoingKeyPersonalization,
		ovk[:], m.ValueCommitment[:], m.NoteCommitment[:], m.EphemeralKey[:])
	keysPlain, err := open(outKey, m.NoteEncryptionKeys[:])
	if err != nil {
		return nil, ErrDecryptionFailed
	}

	var esk fr.Element
	esk.SetBytes(keysPlain[:32])
	owner, err := keys.PublicAddressFromBytes(keysPlain[32:])
	if err != nil {
		return nil, ErrDecryptionFailed
	}

	ownerPoint := owner.Point()
	var shared twistededwards.PointAffine
	shared.ScalarMultiplication(&ownerPoint, esk.BigInt(new(big.Int)))
	sharedBytes := shared.Bytes()

	encKey := deriveKey(noteKeyPersonalization, sharedBytes[:], m.EphemeralKey[:])
	plain, err := open(encKey, m.EncryptedNote[:])
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return m.noteFromPlaintext(plain, owner)
}

// noteFromPlaintext parses a sealed note payload and cross-checks it
// against the public parts of the record.
func (m *MerkleNote) noteFromPlaintext(plain []byte, owner *keys.PublicAddress) (*Note, error) {
	ownerBytes := owner.Bytes()
	if !bytes.Equal(plain[:addressTagSize], ownerBytes[:addressTagSize]) {
		return nil, ErrDecryptionFailed
	}

	offset := addressTagSize
	value := binary.LittleEndian.Uint64(plain[offset : offset+8])
	offset += 8
	var rcm fr.Element
	rcm.SetBytes(plain[offset : offset+32])
	offset += 32
	var memo Memo
	copy(memo[:], plain[offset:])

	n := FromParts(owner, value, memo, rcm)
	if n.CommitmentBytes() != m.NoteCommitment {
		return nil, ErrDecryptionFailed
	}
	return n, nil
}

// notePlaintext lays out the sealed note payload: an 11-byte owner address
// tag, the value, the commitment randomness and the memo.
func notePlaintext(n *Note) []byte {
	owner := n.Owner().Bytes()
	out := make([]byte, 0, notePlaintextSize)
	out = append(out, owner[:addressTagSize]...)
	out = binary.LittleEndian.AppendUint64(out, n.Value())
	rcm := n.CommitmentRandomness()
	rcmBytes := rcm.Bytes()
	out = append(out, rcmBytes[:]...)
	memo := n.Memo()
	out = append(out, memo[:]...)
	return out
}

// deriveKey is the record KDF: personalized BLAKE2b-256 over the
// concatenated parts.
func deriveKey(person string, parts ...[]byte) [32]byte {
	h, _ := blake2b.New(&blake2b.Config{
		Size:   32,
		Person: []byte(person),
	})
	for _, p := range parts {
		h.Write(p)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// seal encrypts plaintext under key. The key is unique per note, so the
// nonce is fixed at zero.
func seal(key [32]byte, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, fmt.Errorf("building note cipher: %w", err)
	}
	nonce := make([]byte, chacha20poly1305.NonceSize)
	return aead.Seal(nil, nonce, plaintext, nil), nil
}

// open reverses seal.
func open(key [32]byte, ciphertext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, fmt.Errorf("building note cipher: %w", err)
	}
	nonce := make([]byte, chacha20poly1305.NonceSize)
	return aead.Open(nil, nonce, ciphertext, nil)
}
