package transaction

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/twistededwards"
	"golang.org/x/sync/errgroup"

	"github.com/suffix-labs/sapling-tx/pkg/circuits"
	"github.com/suffix-labs/sapling-tx/pkg/note"
	"github.com/suffix-labs/sapling-tx/pkg/redjubjub"
	"github.com/suffix-labs/sapling-tx/pkg/sapling"
)

// SpendProof is the public form of one spend: the zero-knowledge proof and
// the public inputs it was proven against, plus the authorization signature
// added at post time.
type SpendProof struct {
	// Proof is the serialized spend proof.
	Proof []byte

	// Nullifier is the spent note's unlinkable spend tag.
	Nullifier [32]byte

	// RandomizedKey is the blinded authorizing key the authorization
	// signature verifies under, in compressed form.
	RandomizedKey [32]byte

	// ValueCommitment is the compressed Pedersen commitment to the spent
	// value.
	ValueCommitment [32]byte

	// RootHash is the tree root the witness authenticated against.
	RootHash [32]byte

	// TreeSize is the tree size at the witnessed state.
	TreeSize uint64

	// AuthSignature authorizes the spend over the transaction digest.
	AuthSignature redjubjub.Signature
}

// ReceiptProof is the public form of one output: the zero-knowledge proof
// and the note record it was proven against.
type ReceiptProof struct {
	// Proof is the serialized output proof.
	Proof []byte

	// MerkleNote is the fixed-size public note record.
	MerkleNote note.MerkleNote
}

// Transaction is a posted, immutable transaction. Values are only
// constructed by the builders in this package and by Deserialize; they are
// safe for unlimited concurrent reads and verifications.
type Transaction struct {
	fee        int64
	spends     []SpendProof
	receipts   []ReceiptProof
	bindingSig redjubjub.Signature
}

// SpendsLength returns the number of spends.
func (t *Transaction) SpendsLength() int {
	return len(t.spends)
}

// ReceiptsLength returns the number of receipts.
func (t *Transaction) ReceiptsLength() int {
	return len(t.receipts)
}

// SpendAt returns the spend at index i. An out-of-range index is a caller
// bug and panics.
func (t *Transaction) SpendAt(i int) SpendProof {
	if i < 0 || i >= len(t.spends) {
		panic(fmt.Sprintf("transaction: spend index %d out of range with length %d", i, len(t.spends)))
	}
	return t.spends[i]
}

// ReceiptAt returns the public note record of the receipt at index i. An
// out-of-range index is a caller bug and panics.
func (t *Transaction) ReceiptAt(i int) note.MerkleNote {
	if i < 0 || i >= len(t.receipts) {
		panic(fmt.Sprintf("transaction: receipt index %d out of range with length %d", i, len(t.receipts)))
	}
	return t.receipts[i].MerkleNote
}

// Fee returns the declared fee. It is negative only for a miner's fee
// transaction, where it is the minted amount.
func (t *Transaction) Fee() int64 {
	return t.fee
}

// Signature returns the binding signature.
func (t *Transaction) Signature() redjubjub.Signature {
	return t.bindingSig
}

// Hash returns the digest every signature in the transaction signed.
// Callers use it to correlate a transaction with its signatures without
// re-serializing.
func (t *Transaction) Hash() [32]byte {
	return signatureHash(t.fee, t.spends, t.receipts)
}

// Verify re-checks every spend proof, every receipt proof, every spend
// authorization signature and the binding signature against the declared
// fee. It reports validity as a plain boolean: a structurally valid but
// cryptographically invalid transaction is false, never an error.
func (t *Transaction) Verify() bool {
	params, err := sapling.Load()
	if err != nil {
		return false
	}
	sighash := t.Hash()

	var g errgroup.Group
	for i := range t.spends {
		s := &t.spends[i]
		g.Go(func() error {
			return verifySpendProof(params, s, sighash)
		})
	}
	for i := range t.receipts {
		r := &t.receipts[i]
		g.Go(func() error {
			return verifyReceiptProof(params, r)
		})
	}
	if err := g.Wait(); err != nil {
		return false
	}

	return t.verifyBindingSignature(sighash)
}

func verifySpendProof(params *sapling.Params, s *SpendProof, sighash [32]byte) error {
	var rk, cv twistededwards.PointAffine
	if _, err := rk.SetBytes(s.RandomizedKey[:]); err != nil {
		return fmt.Errorf("decoding randomized key: %w", err)
	}
	if _, err := cv.SetBytes(s.ValueCommitment[:]); err != nil {
		return fmt.Errorf("decoding value commitment: %w", err)
	}

	authBase := redjubjub.AuthorizingBase()
	if !redjubjub.Verify(&rk, &authBase, sighash[:], s.AuthSignature) {
		return fmt.Errorf("spend authorization signature does not verify")
	}

	var anchor, nullifier fr.Element
	anchor.SetBytes(s.RootHash[:])
	nullifier.SetBytes(s.Nullifier[:])

	public := &circuits.SpendCircuit{
		Anchor:           anchor.BigInt(new(big.Int)),
		Nullifier:        nullifier.BigInt(new(big.Int)),
		ValueCommitmentX: cv.X.BigInt(new(big.Int)),
		ValueCommitmentY: cv.Y.BigInt(new(big.Int)),
		RandomizedKeyX:   rk.X.BigInt(new(big.Int)),
		RandomizedKeyY:   rk.Y.BigInt(new(big.Int)),
	}
	return params.VerifySpend(s.Proof, public)
}

func verifyReceiptProof(params *sapling.Params, r *ReceiptProof) error {
	var cv twistededwards.PointAffine
	if _, err := cv.SetBytes(r.MerkleNote.ValueCommitment[:]); err != nil {
		return fmt.Errorf("decoding value commitment: %w", err)
	}
	var cm fr.Element
	cm.SetBytes(r.MerkleNote.NoteCommitment[:])

	public := &circuits.OutputCircuit{
		Commitment:       cm.BigInt(new(big.Int)),
		ValueCommitmentX: cv.X.BigInt(new(big.Int)),
		ValueCommitmentY: cv.Y.BigInt(new(big.Int)),
	}
	return params.VerifyOutput(r.Proof, public)
}

// verifyBindingSignature checks that the value commitments and the
// declared fee balance: their homomorphic sum is a key the binding
// signature verifies under only when spends minus outputs equals the fee.
func (t *Transaction) verifyBindingSignature(sighash [32]byte) bool {
	spendCVs := make([]twistededwards.PointAffine, len(t.spends))
	for i := range t.spends {
		if _, err := spendCVs[i].SetBytes(t.spends[i].ValueCommitment[:]); err != nil {
			return false
		}
	}
	outputCVs := make([]twistededwards.PointAffine, len(t.receipts))
	for i := range t.receipts {
		if _, err := outputCVs[i].SetBytes(t.receipts[i].MerkleNote.ValueCommitment[:]); err != nil {
			return false
		}
	}

	bvk := redjubjub.BindingVerificationKey(spendCVs, outputCVs, t.fee)
	base := redjubjub.RandomnessBase()
	return redjubjub.Verify(&bvk, &base, sighash[:], t.bindingSig)
}
