package persistence

import "github.com/driftlake/merkledrop-go/pkg/types"

// IDistributorStore defines the interface for persisting distributor state
// across restarts: the active merkle root, the claim ledger and the failed
// transfer queue. All implementations must be thread-safe.
//
// The claim ledger is monotonic by contract: nothing in this interface can
// remove a claimed account.
type IDistributorStore interface {
	// Root Commitment

	// SaveRoot persists the active merkle root, replacing any previous one.
	// Replacing the root never touches the claim ledger: claims settled
	// under an earlier root stay settled.
	SaveRoot(root [32]byte) error

	// LoadRoot retrieves the active merkle root.
	// The second return is false if no root has ever been saved.
	LoadRoot() ([32]byte, bool, error)

	// Claim Ledger

	// MarkClaimed records that an account has claimed. The check and the
	// write are atomic: returns true if the account was newly marked,
	// false if it was already present. Error only on storage failure.
	MarkClaimed(account types.AccountID) (bool, error)

	// HasClaimed reports whether an account is in the claim ledger.
	HasClaimed(account types.AccountID) (bool, error)

	// ListClaimed returns all claimed accounts sorted ascending.
	// Returns empty slice if none, error only on storage failure.
	ListClaimed() ([]types.AccountID, error)

	// Failed Transfer Queue

	// SavePendingTransfer records a failed transfer for later retry.
	// Overwrites any existing record for the same account.
	SavePendingTransfer(pending *types.PendingTransfer) error

	// LoadPendingTransfer retrieves the failed transfer record for an
	// account. Returns nil if none exists, error only on storage failure.
	LoadPendingTransfer(account types.AccountID) (*types.PendingTransfer, error)

	// DeletePendingTransfer removes a failed transfer record after a
	// successful retry. Idempotent.
	DeletePendingTransfer(account types.AccountID) error

	// ListPendingTransfers returns all failed transfer records sorted by
	// account. Returns empty slice if none, error only on storage failure.
	ListPendingTransfers() ([]*types.PendingTransfer, error)

	// Lifecycle

	// Close cleanly shuts down the store. Idempotent.
	// After Close(), all other operations return errors.
	Close() error

	// HealthCheck verifies the store is operational.
	// Called during startup to fail fast.
	HealthCheck() error
}
