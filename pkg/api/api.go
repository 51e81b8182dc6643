// Package api is the foreign-call surface of the sapling-tx library.
//
// It is the entry point for hosts that treat the library as an opaque
// capability: keys and addresses cross this boundary as hex strings,
// posted transactions as raw bytes, and failures as stable string codes.
// The exported operations are:
//
//  1. GenerateKey / PublicAddressOf - Key management
//  2. CreateNote - Note construction
//  3. Builder - General transaction building and posting
//  4. SimpleBuilder - Single-spender building and posting
//  5. ParseTransaction / VerifyTransaction - Posted transaction checks
//  6. TransactionFee / TransactionHash / TransactionSignature - Accessors
//  7. ErrorCode - Failure class extraction for foreign callers
//
// Hosts embedding the library directly should use pkg/transaction instead;
// this package adds only boundary translation.
package api

import (
	"encoding/hex"

	"github.com/suffix-labs/sapling-tx/pkg/keys"
	"github.com/suffix-labs/sapling-tx/pkg/merkle"
	"github.com/suffix-labs/sapling-tx/pkg/note"
	"github.com/suffix-labs/sapling-tx/pkg/transaction"
)

// ============================================================================
// Key Management
// ============================================================================

// GenerateKey creates a fresh spending key.
//
// Returns:
//   - Hex encoding of the key seed
//   - Error if the platform's entropy source fails
func GenerateKey() (string, error) {
	key, err := keys.GenerateSpendingKey()
	if err != nil {
		return "", &transaction.Error{
			Code:    transaction.CodeSaplingKeyError,
			Message: "generating spending key",
			Cause:   err,
		}
	}
	return key.Hex(), nil
}

// PublicAddressOf derives the payment address controlled by a spending key.
//
// Parameters:
//   - spendingKeyHex: hex encoding of the key seed
//
// Returns:
//   - Hex encoding of the 32-byte payment address
//   - Error with code SaplingKeyError if the key is malformed
func PublicAddressOf(spendingKeyHex string) (string, error) {
	key, err := parseSpendingKey(spendingKeyHex)
	if err != nil {
		return "", err
	}
	return key.PublicAddress().Hex(), nil
}

// ============================================================================
// Note Construction
// ============================================================================

// CreateNote builds the plaintext note a builder spends or creates.
//
// Parameters:
//   - ownerAddressHex: hex encoding of the owner's payment address
//   - value: note value
//   - memo: free-form memo, truncated to 32 bytes
//
// Returns:
//   - The note
//   - Error with code SaplingKeyError if the address is malformed
func CreateNote(ownerAddressHex string, value uint64, memo string) (*note.Note, error) {
	owner, err := parseAddress(ownerAddressHex)
	if err != nil {
		return nil, err
	}
	n, err := note.New(owner, value, memo)
	if err != nil {
		return nil, &transaction.Error{
			Code:    transaction.CodeIOError,
			Message: "creating note",
			Cause:   err,
		}
	}
	return n, nil
}

// ============================================================================
// General Builder
// ============================================================================

// Builder wraps the general transaction builder with hex key handling.
type Builder struct {
	inner *transaction.ProposedTransaction
}

// NewBuilder creates an empty builder bound to the process-wide parameter
// set.
func NewBuilder() (*Builder, error) {
	inner, err := transaction.New()
	if err != nil {
		return nil, err
	}
	return &Builder{inner: inner}, nil
}

// Spend adds a spend of n, owned by the key and authenticated by w.
//
// Parameters:
//   - spenderKeyHex: hex encoding of the owner's key seed
//   - n: the note being spent
//   - w: authentication path for n against the transaction's tree root
func (b *Builder) Spend(spenderKeyHex string, n *note.Note, w *merkle.Witness) error {
	key, err := parseSpendingKey(spenderKeyHex)
	if err != nil {
		return err
	}
	return b.inner.Spend(key, n, w)
}

// Receive adds an output creating n, sealed with the key's outgoing view
// key.
func (b *Builder) Receive(ownerKeyHex string, n *note.Note) error {
	key, err := parseSpendingKey(ownerKeyHex)
	if err != nil {
		return err
	}
	return b.inner.Receive(key, n)
}

// Post seals the builder and returns the serialized transaction.
//
// Parameters:
//   - spenderKeyHex: hex encoding of the posting key's seed
//   - changeAddressHex: destination for surplus change; empty means none,
//     and posting fails if change would be left over
//   - intendedFee: the fee the transaction pays
func (b *Builder) Post(spenderKeyHex, changeAddressHex string, intendedFee uint64) ([]byte, error) {
	key, err := parseSpendingKey(spenderKeyHex)
	if err != nil {
		return nil, err
	}
	var changeAddress *keys.PublicAddress
	if changeAddressHex != "" {
		changeAddress, err = parseAddress(changeAddressHex)
		if err != nil {
			return nil, err
		}
	}
	tx, err := b.inner.Post(key, changeAddress, intendedFee)
	if err != nil {
		return nil, err
	}
	return tx.Serialize()
}

// PostMinersFee seals a builder holding only receipts into a serialized
// minting transaction.
func (b *Builder) PostMinersFee() ([]byte, error) {
	tx, err := b.inner.PostMinersFee()
	if err != nil {
		return nil, err
	}
	return tx.Serialize()
}

// ============================================================================
// Simple Builder
// ============================================================================

// SimpleBuilder wraps the single-spender builder with hex key handling.
type SimpleBuilder struct {
	inner *transaction.SimpleTransaction
}

// NewSimpleBuilder creates a builder bound to one spender and a fixed fee.
//
// Parameters:
//   - spenderKeyHex: hex encoding of the spender's key seed
//   - intendedFee: the fee paid when the transaction posts
func NewSimpleBuilder(spenderKeyHex string, intendedFee uint64) (*SimpleBuilder, error) {
	key, err := parseSpendingKey(spenderKeyHex)
	if err != nil {
		return nil, err
	}
	inner, err := transaction.NewSimple(key, intendedFee)
	if err != nil {
		return nil, err
	}
	return &SimpleBuilder{inner: inner}, nil
}

// Spend adds a spend of a note the bound key owns.
func (s *SimpleBuilder) Spend(n *note.Note, w *merkle.Witness) error {
	return s.inner.Spend(n, w)
}

// Receive adds an output creating n.
func (s *SimpleBuilder) Receive(n *note.Note) error {
	return s.inner.Receive(n)
}

// Post seals the builder, returning change to the bound key, and returns
// the serialized transaction.
func (s *SimpleBuilder) Post() ([]byte, error) {
	tx, err := s.inner.Post()
	if err != nil {
		return nil, err
	}
	return tx.Serialize()
}

// ============================================================================
// Posted Transactions
// ============================================================================

// ParseTransaction decodes a serialized transaction. The result exposes
// counts, indexed access, fee, signature, hash and Verify.
//
// Returns an error with code IOError for malformed bytes.
func ParseTransaction(raw []byte) (*transaction.Transaction, error) {
	return transaction.Deserialize(raw)
}

// VerifyTransaction decodes and fully re-checks a serialized transaction.
//
// Returns:
//   - Whether every proof and signature verifies
//   - Error with code IOError if the bytes do not parse at all
func VerifyTransaction(raw []byte) (bool, error) {
	tx, err := transaction.Deserialize(raw)
	if err != nil {
		return false, err
	}
	return tx.Verify(), nil
}

// TransactionFee reads the declared fee of a serialized transaction. It is
// negative only for a miner's fee transaction.
func TransactionFee(raw []byte) (int64, error) {
	tx, err := transaction.Deserialize(raw)
	if err != nil {
		return 0, err
	}
	return tx.Fee(), nil
}

// TransactionHash returns the hex digest every signature in a serialized
// transaction signed.
func TransactionHash(raw []byte) (string, error) {
	tx, err := transaction.Deserialize(raw)
	if err != nil {
		return "", err
	}
	hash := tx.Hash()
	return hex.EncodeToString(hash[:]), nil
}

// TransactionSignature returns the hex binding signature of a serialized
// transaction.
func TransactionSignature(raw []byte) (string, error) {
	tx, err := transaction.Deserialize(raw)
	if err != nil {
		return "", err
	}
	sig := tx.Signature()
	return hex.EncodeToString(sig[:]), nil
}

// ============================================================================
// Error Translation
// ============================================================================

// ErrorCode flattens a library error to its stable string identifier, the
// form foreign callers branch on. It returns the empty string for nil and
// for errors that did not originate in this library. The full human-
// readable form, including the proof provider's detail, is err.Error().
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	code, ok := transaction.CodeOf(err)
	if !ok {
		return ""
	}
	return string(code)
}

// ============================================================================
// Helper Functions
// ============================================================================

func parseSpendingKey(spendingKeyHex string) (*keys.SpendingKey, error) {
	key, err := keys.SpendingKeyFromHex(spendingKeyHex)
	if err != nil {
		return nil, &transaction.Error{
			Code:    transaction.CodeSaplingKeyError,
			Message: "decoding spending key",
			Cause:   err,
		}
	}
	return key, nil
}

func parseAddress(addressHex string) (*keys.PublicAddress, error) {
	address, err := keys.PublicAddressFromHex(addressHex)
	if err != nil {
		return nil, &transaction.Error{
			Code:    transaction.CodeSaplingKeyError,
			Message: "decoding public address",
			Cause:   err,
		}
	}
	return address, nil
}
