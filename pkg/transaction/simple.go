package transaction

import (
	"github.com/suffix-labs/sapling-tx/pkg/keys"
	"github.com/suffix-labs/sapling-tx/pkg/merkle"
	"github.com/suffix-labs/sapling-tx/pkg/note"
)

// SimpleTransaction is the restricted single-spender builder: one key
// spends its notes and seals every output, the fee is fixed up front, and
// posting always returns surplus change to the key's own address. It
// removes the per-call key and change address arguments of
// ProposedTransaction, and with them the mistakes those allow.
type SimpleTransaction struct {
	inner *ProposedTransaction
	key   *keys.SpendingKey
	fee   uint64
}

// NewSimple creates a builder bound to key that will pay intendedFee when
// posted.
func NewSimple(key *keys.SpendingKey, intendedFee uint64) (*SimpleTransaction, error) {
	if key == nil {
		return nil, newError(CodeSaplingKeyError, "spending key is nil")
	}
	inner, err := New()
	if err != nil {
		return nil, err
	}
	return &SimpleTransaction{inner: inner, key: key, fee: intendedFee}, nil
}

// Spend adds a spend of n, which the bound key must own. Same contract as
// ProposedTransaction.Spend.
func (s *SimpleTransaction) Spend(n *note.Note, w *merkle.Witness) error {
	return s.inner.Spend(s.key, n, w)
}

// Receive adds an output creating n, sealed with the bound key's outgoing
// view key. Same contract as ProposedTransaction.Receive.
func (s *SimpleTransaction) Receive(n *note.Note) error {
	return s.inner.Receive(s.key, n)
}

// Post seals the builder, returning any change to the bound key's own
// address. Same contract as ProposedTransaction.Post; the builder is
// consumed on success.
func (s *SimpleTransaction) Post() (*Transaction, error) {
	return s.inner.Post(s.key, s.key.PublicAddress(), s.fee)
}
