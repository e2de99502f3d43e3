package types

import "errors"

// Error taxonomy for the claim flow. All of these are terminal for the
// call that produced them: no partial state is committed on failure.
var (
	// ErrUnauthorized is returned when a non-owner account attempts a
	// privileged mutation such as root rotation.
	ErrUnauthorized = errors.New("unauthorized: caller is not the owner")

	// ErrAlreadyClaimed is returned when the claim ledger already contains
	// the caller. Claiming is at-most-once per account.
	ErrAlreadyClaimed = errors.New("account has already claimed")

	// ErrInvalidProof is returned when a structurally well-formed proof
	// fails verification against the active root. Wrong amount, wrong
	// account, a stale root and a forged proof are deliberately
	// indistinguishable through this error.
	ErrInvalidProof = errors.New("merkle proof verification failed")

	// ErrInvalidProofFormat is returned when proof data is structurally
	// malformed (bad hex, wrong digest length, unknown orientation) and
	// never reaches the verifier.
	ErrInvalidProofFormat = errors.New("malformed merkle proof")

	// ErrTransferFailed is returned when the claim was recorded but the
	// external token transfer reported failure. The claim stays marked and
	// the transfer is queued for retry.
	ErrTransferFailed = errors.New("token transfer failed")

	// ErrNoPendingTransfer is returned by the retry path when the account
	// has no failed transfer on record.
	ErrNoPendingTransfer = errors.New("no pending transfer for account")
)
