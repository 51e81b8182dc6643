// Package transaction builds, posts, serializes and verifies shielded
// transactions.
//
// A ProposedTransaction accumulates spends and receipts, proving each
// descriptor eagerly as it is added, then posts into an immutable
// Transaction carrying the proofs, the per-spend authorization signatures
// and the aggregate binding signature. Every fallible operation either
// fully succeeds or leaves the builder exactly as it was.
//
// A builder is single-writer: Spend, Receive and the post operations must
// not run concurrently on the same value. A posted Transaction is immutable
// and safe for unlimited concurrent reads.
package transaction

import (
	"math"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"

	"github.com/suffix-labs/sapling-tx/pkg/circuits"
	"github.com/suffix-labs/sapling-tx/pkg/keys"
	"github.com/suffix-labs/sapling-tx/pkg/merkle"
	"github.com/suffix-labs/sapling-tx/pkg/note"
	"github.com/suffix-labs/sapling-tx/pkg/redjubjub"
	"github.com/suffix-labs/sapling-tx/pkg/sapling"
)

// spendDescriptor is a proven spend waiting for its authorization
// signature, plus the secrets that signature and the binding signature
// need at post time.
type spendDescriptor struct {
	proof SpendProof
	key   *keys.SpendingKey
	alpha fr.Element
	rcv   fr.Element
}

// receiptDescriptor is a proven output plus the value commitment
// randomness the binding signature needs at post time.
type receiptDescriptor struct {
	proof ReceiptProof
	rcv   fr.Element
}

// ProposedTransaction accumulates spend and receipt descriptors until one
// of the post operations seals them into a Transaction. After a successful
// post the builder is consumed: every further call fails with
// CodeAlreadyPosted.
type ProposedTransaction struct {
	params *sapling.Params

	spends   []spendDescriptor
	receipts []receiptDescriptor

	// balance is the running sum of spends minus receipts. The fee and
	// the change come out of it at post time.
	balance int64

	// anchor is the tree root every spend witness must share.
	anchor    [32]byte
	hasAnchor bool

	posted bool
}

// New creates an empty builder bound to the process-wide parameter set.
func New() (*ProposedTransaction, error) {
	params, err := sapling.Load()
	if err != nil {
		return nil, wrapError(CodeIOError, err, "loading proving parameters")
	}
	return &ProposedTransaction{params: params}, nil
}

// Spend adds a spend of n, which key must own and w must authenticate. The
// spend proof is generated and self-checked before the descriptor is
// accepted; on any error the builder is unchanged.
//
// All witnesses in one transaction must share a tree root. A differing
// root returns CodeInconsistentWitness without adding the spend; the
// caller should discard the builder, since the notes it meant to spend
// together do not live under one root.
func (t *ProposedTransaction) Spend(key *keys.SpendingKey, n *note.Note, w *merkle.Witness) error {
	if t.posted {
		return newError(CodeAlreadyPosted, "builder already produced a transaction")
	}
	if key == nil {
		return newError(CodeSaplingKeyError, "spending key is nil")
	}
	if !key.PublicAddress().Equal(n.Owner()) {
		return newError(CodeSaplingKeyError, "note is not owned by the spending key")
	}

	root := w.RootBytes()
	if t.hasAnchor && root != t.anchor {
		return newError(CodeInconsistentWitness, "witness root differs from the transaction anchor")
	}

	desc, err := t.buildSpend(key, n, w)
	if err != nil {
		return err
	}

	t.spends = append(t.spends, *desc)
	t.balance += int64(n.Value())
	t.anchor = root
	t.hasAnchor = true
	return nil
}

// Receive adds an output creating n. The key's outgoing view key seals the
// note record's recovery path; it does not need to own n. The output proof
// is generated and self-checked before the descriptor is accepted; on any
// error the builder is unchanged.
func (t *ProposedTransaction) Receive(key *keys.SpendingKey, n *note.Note) error {
	if t.posted {
		return newError(CodeAlreadyPosted, "builder already produced a transaction")
	}
	if key == nil {
		return newError(CodeSaplingKeyError, "receiving key is nil")
	}

	desc, err := t.buildReceipt(key, n)
	if err != nil {
		return err
	}

	t.receipts = append(t.receipts, *desc)
	t.balance -= int64(n.Value())
	return nil
}

// Post seals the builder into a transaction paying intendedFee. The
// surplus change = spends - receipts - intendedFee must not be negative;
// positive change is returned to changeAddress as an extra receipt sealed
// with key's outgoing view key. Positive change with a nil changeAddress
// is an error: value must never be destroyed silently.
//
// On success the builder is consumed and must not be used again.
func (t *ProposedTransaction) Post(key *keys.SpendingKey, changeAddress *keys.PublicAddress, intendedFee uint64) (*Transaction, error) {
	if t.posted {
		return nil, newError(CodeAlreadyPosted, "builder already produced a transaction")
	}
	if key == nil {
		return nil, newError(CodeSaplingKeyError, "posting key is nil")
	}
	if intendedFee > math.MaxInt64 {
		return nil, newError(CodeInvalidBalance, "intended fee %d overflows the fee field", intendedFee)
	}

	fee := int64(intendedFee)
	change := t.balance - fee
	if change < 0 {
		return nil, newError(CodeInvalidBalance, "intended fee %d exceeds the net spent value %d", intendedFee, t.balance)
	}

	receipts := make([]receiptDescriptor, len(t.receipts), len(t.receipts)+1)
	copy(receipts, t.receipts)
	if change > 0 {
		if changeAddress == nil {
			return nil, newError(CodeInvalidBalance, "change of %d has no change address to return to", change)
		}
		changeNote, err := note.New(changeAddress, uint64(change), "")
		if err != nil {
			return nil, wrapError(CodeIOError, err, "creating change note")
		}
		desc, err := t.buildReceipt(key, changeNote)
		if err != nil {
			return nil, err
		}
		receipts = append(receipts, *desc)
	}

	tx, err := t.seal(fee, t.spends, receipts)
	if err != nil {
		return nil, err
	}
	t.consume()
	return tx, nil
}

// PostMinersFee seals a builder holding only receipts into a minting
// transaction: the fee is the negated sum of the receipted values, so the
// transaction creates exactly what it pays out. A builder holding any
// spend must use Post instead.
//
// On success the builder is consumed and must not be used again.
func (t *ProposedTransaction) PostMinersFee() (*Transaction, error) {
	if t.posted {
		return nil, newError(CodeAlreadyPosted, "builder already produced a transaction")
	}
	if len(t.spends) > 0 {
		return nil, newError(CodeMinersFeeWithSpends, "builder holds %d spends", len(t.spends))
	}

	tx, err := t.seal(t.balance, nil, t.receipts)
	if err != nil {
		return nil, err
	}
	t.consume()
	return tx, nil
}

// buildSpend proves one spend and returns its descriptor without touching
// the builder's state.
func (t *ProposedTransaction) buildSpend(key *keys.SpendingKey, n *note.Note, w *merkle.Witness) (*spendDescriptor, error) {
	var alpha fr.Element
	if _, err := alpha.SetRandom(); err != nil {
		return nil, wrapError(CodeIOError, err, "sampling key blinding factor")
	}
	vc, err := redjubjub.NewValueCommitment(n.Value())
	if err != nil {
		return nil, wrapError(CodeIOError, err, "sampling value commitment randomness")
	}

	ak := key.AuthorizingKey()
	rk := redjubjub.RandomizePublicKey(&ak, alpha)
	cv := vc.Commitment()
	nf := n.Nullifier(key, w.Position)

	assignment := &circuits.SpendCircuit{
		Anchor:               w.Root.BigInt(new(big.Int)),
		Nullifier:            nf.BigInt(new(big.Int)),
		ValueCommitmentX:     cv.X.BigInt(new(big.Int)),
		ValueCommitmentY:     cv.Y.BigInt(new(big.Int)),
		RandomizedKeyX:       rk.X.BigInt(new(big.Int)),
		RandomizedKeyY:       rk.Y.BigInt(new(big.Int)),
		Value:                new(big.Int).SetUint64(n.Value()),
		CommitmentRandomness: frBig(n.CommitmentRandomness()),
		SpendAuthorizingKey:  frBig(key.SpendAuthorizingKey()),
		ProofAuthorizingKey:  frBig(key.ProofAuthorizingKey()),
		Alpha:                alpha.BigInt(new(big.Int)),
		ValueRandomness:      vc.Randomness.BigInt(new(big.Int)),
		Position:             new(big.Int).SetUint64(w.Position),
	}
	for i := range w.AuthPath {
		assignment.AuthPath[i] = w.AuthPath[i].BigInt(new(big.Int))
	}

	proofBytes, err := t.params.ProveSpend(assignment)
	if err != nil {
		return nil, wrapError(CodeSpendCircuitProofError, err, "proving spend of value %d", n.Value())
	}

	public := &circuits.SpendCircuit{
		Anchor:           w.Root.BigInt(new(big.Int)),
		Nullifier:        nf.BigInt(new(big.Int)),
		ValueCommitmentX: cv.X.BigInt(new(big.Int)),
		ValueCommitmentY: cv.Y.BigInt(new(big.Int)),
		RandomizedKeyX:   rk.X.BigInt(new(big.Int)),
		RandomizedKeyY:   rk.Y.BigInt(new(big.Int)),
	}
	if err := t.params.VerifySpend(proofBytes, public); err != nil {
		return nil, wrapError(CodeVerificationFailed, err, "spend proof failed its self-check")
	}

	return &spendDescriptor{
		proof: SpendProof{
			Proof:           proofBytes,
			Nullifier:       nf.Bytes(),
			RandomizedKey:   rk.Bytes(),
			ValueCommitment: cv.Bytes(),
			RootHash:        w.RootBytes(),
			TreeSize:        w.TreeSize,
		},
		key:   key,
		alpha: alpha,
		rcv:   vc.Randomness,
	}, nil
}

// buildReceipt proves one output and returns its descriptor without
// touching the builder's state.
func (t *ProposedTransaction) buildReceipt(key *keys.SpendingKey, n *note.Note) (*receiptDescriptor, error) {
	vc, err := redjubjub.NewValueCommitment(n.Value())
	if err != nil {
		return nil, wrapError(CodeIOError, err, "sampling value commitment randomness")
	}
	cv := vc.Commitment()

	record, err := note.NewMerkleNote(n, cv.Bytes(), key.OutgoingViewKey())
	if err != nil {
		return nil, wrapError(CodeIOError, err, "sealing note record")
	}

	owner := n.Owner().Point()
	cm := n.Commitment()
	assignment := &circuits.OutputCircuit{
		Commitment:           cm.BigInt(new(big.Int)),
		ValueCommitmentX:     cv.X.BigInt(new(big.Int)),
		ValueCommitmentY:     cv.Y.BigInt(new(big.Int)),
		OwnerX:               owner.X.BigInt(new(big.Int)),
		OwnerY:               owner.Y.BigInt(new(big.Int)),
		Value:                new(big.Int).SetUint64(n.Value()),
		CommitmentRandomness: frBig(n.CommitmentRandomness()),
		ValueRandomness:      vc.Randomness.BigInt(new(big.Int)),
	}

	proofBytes, err := t.params.ProveOutput(assignment)
	if err != nil {
		return nil, wrapError(CodeReceiptCircuitProofError, err, "proving output of value %d", n.Value())
	}

	public := &circuits.OutputCircuit{
		Commitment:       cm.BigInt(new(big.Int)),
		ValueCommitmentX: cv.X.BigInt(new(big.Int)),
		ValueCommitmentY: cv.Y.BigInt(new(big.Int)),
	}
	if err := t.params.VerifyOutput(proofBytes, public); err != nil {
		return nil, wrapError(CodeVerificationFailed, err, "output proof failed its self-check")
	}

	return &receiptDescriptor{
		proof: ReceiptProof{Proof: proofBytes, MerkleNote: *record},
		rcv:   vc.Randomness,
	}, nil
}

// seal signs the frozen descriptor sets into a Transaction and runs the
// final self-check before anything is returned to the caller.
func (t *ProposedTransaction) seal(fee int64, spends []spendDescriptor, receipts []receiptDescriptor) (*Transaction, error) {
	spendProofs := make([]SpendProof, len(spends))
	spendRandomness := make([]fr.Element, len(spends))
	for i := range spends {
		spendProofs[i] = spends[i].proof
		spendRandomness[i] = spends[i].rcv
	}

	receiptProofs := make([]ReceiptProof, len(receipts))
	outputRandomness := make([]fr.Element, len(receipts))
	for i := range receipts {
		receiptProofs[i] = receipts[i].proof
		outputRandomness[i] = receipts[i].rcv
	}

	sighash := signatureHash(fee, spendProofs, receiptProofs)

	authBase := redjubjub.AuthorizingBase()
	for i := range spends {
		rsk := redjubjub.RandomizeSecret(spends[i].key.SpendAuthorizingKey(), spends[i].alpha)
		sig, err := redjubjub.Sign(rsk, &authBase, sighash[:])
		if err != nil {
			return nil, wrapError(CodeSigningError, err, "signing spend %d", i)
		}
		spendProofs[i].AuthSignature = sig
	}

	bsk := redjubjub.BindingSecret(spendRandomness, outputRandomness)
	randomnessBase := redjubjub.RandomnessBase()
	bindingSig, err := redjubjub.Sign(bsk, &randomnessBase, sighash[:])
	if err != nil {
		return nil, wrapError(CodeSigningError, err, "signing the binding commitment")
	}

	tx := &Transaction{
		fee:        fee,
		spends:     spendProofs,
		receipts:   receiptProofs,
		bindingSig: bindingSig,
	}
	if !tx.Verify() {
		return nil, newError(CodeVerificationFailed, "posted transaction failed its self-check")
	}
	return tx, nil
}

// consume makes the builder unusable after a successful post and drops the
// descriptor secrets.
func (t *ProposedTransaction) consume() {
	t.posted = true
	t.spends = nil
	t.receipts = nil
	t.balance = 0
	t.anchor = [32]byte{}
	t.hasAnchor = false
}

func frBig(e fr.Element) *big.Int {
	return e.BigInt(new(big.Int))
}
