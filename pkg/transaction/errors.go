package transaction

import (
	"errors"
	"fmt"
)

// Code identifies a failure class with a stable name. Callers on the far
// side of a foreign boundary branch on these names, so they never change
// once released.
type Code string

// Failure classes surfaced by Spend, Receive and the post operations.
const (
	// CodeInconsistentWitness marks a spend whose witness authenticates
	// against a different tree root than the spends already added. The
	// offending spend is not added; the caller must discard the builder,
	// since the notes it meant to spend together do not share a root.
	CodeInconsistentWitness Code = "InconsistentWitness"

	// CodeIOError marks a failure to read or write transaction material:
	// a truncated or corrupt byte stream on deserialize, or a failed
	// environment read while preparing proof material.
	CodeIOError Code = "IOError"

	// CodeReceiptCircuitProofError marks a failed output proof.
	CodeReceiptCircuitProofError Code = "ReceiptCircuitProofError"

	// CodeSpendCircuitProofError marks a failed spend proof. The message
	// carries the prover's detail.
	CodeSpendCircuitProofError Code = "SpendCircuitProofError"

	// CodeSaplingKeyError marks malformed or mismatched key material,
	// such as spending a note the key does not own.
	CodeSaplingKeyError Code = "SaplingKeyError"

	// CodeSigningError marks a failure to produce a spend authorization
	// or binding signature.
	CodeSigningError Code = "SigningError"

	// CodeVerificationFailed marks a proof or transaction that failed its
	// own self-check before ever being returned to the caller.
	CodeVerificationFailed Code = "VerificationFailed"

	// CodeInvalidBalance marks a post whose values cannot balance: the
	// intended fee exceeds the net spent value, or positive change was
	// left with no change address to receive it.
	CodeInvalidBalance Code = "InvalidBalance"

	// CodeMinersFeeWithSpends marks a PostMinersFee call on a builder
	// that holds spends. Minting and spending never mix in one
	// transaction.
	CodeMinersFeeWithSpends Code = "MinersFeeWithSpends"

	// CodeAlreadyPosted marks any mutation of a builder that has already
	// produced a transaction.
	CodeAlreadyPosted Code = "AlreadyPosted"
)

// Error is the failure type for every fallible builder and transaction
// operation.
type Error struct {
	Code    Code   // Stable failure class
	Message string // Human-readable detail
	Cause   error  // Underlying error (if any)
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Cause != nil:
		return fmt.Sprintf("%s - %s: %v", e.Code, e.Message, e.Cause)
	case e.Message != "":
		return fmt.Sprintf("%s - %s", e.Code, e.Message)
	case e.Cause != nil:
		return fmt.Sprintf("%s - %v", e.Code, e.Cause)
	default:
		return string(e.Code)
	}
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// CodeOf extracts the failure class from err. The second return is false
// when err did not originate in this package.
func CodeOf(err error) (Code, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return "", false
}

func newError(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func wrapError(code Code, cause error, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}
