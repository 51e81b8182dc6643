package transaction

import (
	"encoding/binary"
	"hash"

	blake2b "github.com/minio/blake2b-simd"
)

// Signature hash computation.
//
// The digest that spend authorization signatures and the binding signature
// commit to is a tree of personalized BLAKE2b-256 hashes: a header digest
// over the scalar fields, a spends digest over the public spend fields and
// an outputs digest over the public note records, combined under a top
// personalization. Proofs and signatures are deliberately outside the
// digest: signatures cannot cover themselves, and proofs are already bound
// to the public fields they prove.

// Personalization strings for the digest tree (all 16 bytes).
const (
	topHashPersonalization     = "STxSigTopHash___"
	headerHashPersonalization  = "STxSigHeaderHash"
	spendsHashPersonalization  = "STxSigSpendsHash"
	outputsHashPersonalization = "STxSigOutputHash"
)

// blake2bNew256 creates a BLAKE2b-256 hash with the given personalization.
// The personalization is not a key; it makes each digest level a distinct
// hash function.
func blake2bNew256(personalization []byte) hash.Hash {
	h, _ := blake2b.New(&blake2b.Config{
		Size:   32,
		Person: personalization,
	})
	return h
}

// signatureHash computes the digest signed by every signature in a
// transaction with the given public fields.
func signatureHash(fee int64, spends []SpendProof, receipts []ReceiptProof) [32]byte {
	h := blake2bNew256([]byte(topHashPersonalization))

	header := headerDigest(fee, len(spends), len(receipts))
	h.Write(header[:])

	spendsDigest := computeSpendsDigest(spends)
	h.Write(spendsDigest[:])

	outputsDigest := computeOutputsDigest(receipts)
	h.Write(outputsDigest[:])

	var digest [32]byte
	copy(digest[:], h.Sum(nil))
	return digest
}

// headerDigest hashes the scalar fields:
// version (u32le) || fee (i64le) || spend count (u64le) || output count (u64le)
func headerDigest(fee int64, spendCount, outputCount int) [32]byte {
	h := blake2bNew256([]byte(headerHashPersonalization))

	binary.Write(h, binary.LittleEndian, TransactionVersion)
	binary.Write(h, binary.LittleEndian, fee)
	binary.Write(h, binary.LittleEndian, uint64(spendCount))
	binary.Write(h, binary.LittleEndian, uint64(outputCount))

	var digest [32]byte
	copy(digest[:], h.Sum(nil))
	return digest
}

// computeSpendsDigest hashes, per spend:
// nullifier || randomized key || value commitment || root || tree size (u64le)
func computeSpendsDigest(spends []SpendProof) [32]byte {
	h := blake2bNew256([]byte(spendsHashPersonalization))

	for i := range spends {
		s := &spends[i]
		h.Write(s.Nullifier[:])
		h.Write(s.RandomizedKey[:])
		h.Write(s.ValueCommitment[:])
		h.Write(s.RootHash[:])
		binary.Write(h, binary.LittleEndian, s.TreeSize)
	}

	var digest [32]byte
	copy(digest[:], h.Sum(nil))
	return digest
}

// computeOutputsDigest hashes the fixed public note record of each output.
func computeOutputsDigest(receipts []ReceiptProof) [32]byte {
	h := blake2bNew256([]byte(outputsHashPersonalization))

	for i := range receipts {
		h.Write(receipts[i].MerkleNote.Serialize())
	}

	var digest [32]byte
	copy(digest[:], h.Sum(nil))
	return digest
}
