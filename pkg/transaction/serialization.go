package transaction

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/suffix-labs/sapling-tx/pkg/note"
)

// Wire format (versioned, stable for interop):
//
//	"STX1" (4 bytes) || version (u32le) || fee (i64le) ||
//	spend count (varint) || receipt count (varint) ||
//	spends || receipts || binding signature (64 bytes)
//
// Each spend: proof (varint length || bytes) || nullifier (32) ||
// randomized key (32) || value commitment (32) || root hash (32) ||
// tree size (u64le) || authorization signature (64).
//
// Each receipt: proof (varint length || bytes) || note record (275).
//
// Varints are LEB128. Any change to field order or width is a breaking
// protocol change and requires a new version.

const (
	// MagicBytes opens every serialized transaction.
	MagicBytes = "STX1"

	// TransactionVersion is the wire version this package reads and
	// writes.
	TransactionVersion = uint32(1)
)

// Serialize encodes the transaction in its canonical binary form.
// Re-serializing a deserialized transaction reproduces the input byte for
// byte.
func (t *Transaction) Serialize() ([]byte, error) {
	buf := new(bytes.Buffer)

	buf.WriteString(MagicBytes)
	binary.Write(buf, binary.LittleEndian, TransactionVersion)
	binary.Write(buf, binary.LittleEndian, t.fee)

	encodeVarInt(buf, uint64(len(t.spends)))
	encodeVarInt(buf, uint64(len(t.receipts)))

	for i := range t.spends {
		encodeSpendProof(buf, &t.spends[i])
	}
	for i := range t.receipts {
		encodeReceiptProof(buf, &t.receipts[i])
	}

	buf.Write(t.bindingSig[:])
	return buf.Bytes(), nil
}

// Deserialize decodes a transaction from its canonical binary form. All
// failures carry CodeIOError; proofs are kept opaque here and only
// interpreted by Verify.
func Deserialize(data []byte) (*Transaction, error) {
	r := bytes.NewReader(data)

	magic := make([]byte, len(MagicBytes))
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, wrapError(CodeIOError, err, "reading magic bytes")
	}
	if string(magic) != MagicBytes {
		return nil, newError(CodeIOError, "invalid magic bytes")
	}

	var version uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, wrapError(CodeIOError, err, "reading version")
	}
	if version != TransactionVersion {
		return nil, newError(CodeIOError, "unsupported version %d", version)
	}

	t := &Transaction{}
	if err := binary.Read(r, binary.LittleEndian, &t.fee); err != nil {
		return nil, wrapError(CodeIOError, err, "reading fee")
	}

	spendCount, err := decodeVarInt(r)
	if err != nil {
		return nil, wrapError(CodeIOError, err, "reading spend count")
	}
	receiptCount, err := decodeVarInt(r)
	if err != nil {
		return nil, wrapError(CodeIOError, err, "reading receipt count")
	}

	for i := uint64(0); i < spendCount; i++ {
		s, err := decodeSpendProof(r)
		if err != nil {
			return nil, wrapError(CodeIOError, err, "decoding spend %d", i)
		}
		t.spends = append(t.spends, *s)
	}
	for i := uint64(0); i < receiptCount; i++ {
		rp, err := decodeReceiptProof(r)
		if err != nil {
			return nil, wrapError(CodeIOError, err, "decoding receipt %d", i)
		}
		t.receipts = append(t.receipts, *rp)
	}

	if _, err := io.ReadFull(r, t.bindingSig[:]); err != nil {
		return nil, wrapError(CodeIOError, err, "reading binding signature")
	}
	if r.Len() != 0 {
		return nil, newError(CodeIOError, "%d trailing bytes after transaction", r.Len())
	}
	return t, nil
}

func encodeSpendProof(w *bytes.Buffer, s *SpendProof) {
	encodeBytes(w, s.Proof)
	w.Write(s.Nullifier[:])
	w.Write(s.RandomizedKey[:])
	w.Write(s.ValueCommitment[:])
	w.Write(s.RootHash[:])
	binary.Write(w, binary.LittleEndian, s.TreeSize)
	w.Write(s.AuthSignature[:])
}

func decodeSpendProof(r *bytes.Reader) (*SpendProof, error) {
	s := &SpendProof{}

	proof, err := decodeBytes(r)
	if err != nil {
		return nil, fmt.Errorf("reading proof: %w", err)
	}
	s.Proof = proof

	if _, err := io.ReadFull(r, s.Nullifier[:]); err != nil {
		return nil, fmt.Errorf("reading nullifier: %w", err)
	}
	if _, err := io.ReadFull(r, s.RandomizedKey[:]); err != nil {
		return nil, fmt.Errorf("reading randomized key: %w", err)
	}
	if _, err := io.ReadFull(r, s.ValueCommitment[:]); err != nil {
		return nil, fmt.Errorf("reading value commitment: %w", err)
	}
	if _, err := io.ReadFull(r, s.RootHash[:]); err != nil {
		return nil, fmt.Errorf("reading root hash: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &s.TreeSize); err != nil {
		return nil, fmt.Errorf("reading tree size: %w", err)
	}
	if _, err := io.ReadFull(r, s.AuthSignature[:]); err != nil {
		return nil, fmt.Errorf("reading authorization signature: %w", err)
	}
	return s, nil
}

func encodeReceiptProof(w *bytes.Buffer, rp *ReceiptProof) {
	encodeBytes(w, rp.Proof)
	w.Write(rp.MerkleNote.Serialize())
}

func decodeReceiptProof(r *bytes.Reader) (*ReceiptProof, error) {
	rp := &ReceiptProof{}

	proof, err := decodeBytes(r)
	if err != nil {
		return nil, fmt.Errorf("reading proof: %w", err)
	}
	rp.Proof = proof

	raw := make([]byte, note.MerkleNoteSize)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, fmt.Errorf("reading note record: %w", err)
	}
	m, err := note.MerkleNoteFromBytes(raw)
	if err != nil {
		return nil, err
	}
	rp.MerkleNote = *m
	return rp, nil
}

// encodeVarInt writes n in LEB128.
func encodeVarInt(w *bytes.Buffer, n uint64) {
	for {
		b := uint8(n & 0x7F)
		n >>= 7
		if n != 0 {
			b |= 0x80
		}
		w.WriteByte(b)
		if n == 0 {
			break
		}
	}
}

func decodeVarInt(r *bytes.Reader) (uint64, error) {
	var result uint64
	var shift uint

	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		result |= uint64(b&0x7F) << shift
		if b&0x80 == 0 {
			return result, nil
		}
		shift += 7
		if shift >= 64 {
			return 0, fmt.Errorf("varint overflows 64 bits")
		}
	}
}

func encodeBytes(w *bytes.Buffer, b []byte) {
	encodeVarInt(w, uint64(len(b)))
	w.Write(b)
}

// decodeBytes reads a varint-prefixed byte string. The length is checked
// against the remaining input before allocating.
func decodeBytes(r *bytes.Reader) ([]byte, error) {
	length, err := decodeVarInt(r)
	if err != nil {
		return nil, err
	}
	if length > uint64(r.Len()) {
		return nil, fmt.Errorf("length %d exceeds %d remaining bytes", length, r.Len())
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
