package distributor

import (
	"context"
	"fmt"
	"time"

	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/driftlake/merkledrop-go/pkg/ledger"
	"github.com/driftlake/merkledrop-go/pkg/merkle"
	"github.com/driftlake/merkledrop-go/pkg/persistence"
	"github.com/driftlake/merkledrop-go/pkg/registry"
	"github.com/driftlake/merkledrop-go/pkg/token"
	"github.com/driftlake/merkledrop-go/pkg/types"
)

// Distributor is the claim orchestrator: it validates a submitted proof
// against the active root, enforces at-most-once claiming, and invokes the
// external token transfer as the final step.
type Distributor struct {
	registry   *registry.RootRegistry
	ledger     *ledger.ClaimLedger
	store      persistence.IDistributorStore
	transferor token.ITokenTransferor
	logger     *zap.Logger
}

// New creates a distributor over the given collaborators.
func New(
	rootRegistry *registry.RootRegistry,
	claimLedger *ledger.ClaimLedger,
	store persistence.IDistributorStore,
	transferor token.ITokenTransferor,
	logger *zap.Logger,
) *Distributor {
	return &Distributor{
		registry:   rootRegistry,
		ledger:     claimLedger,
		store:      store,
		transferor: transferor,
		logger:     logger,
	}
}

// Claim processes one airdrop claim. The gates run in a fixed order; each
// one is a security check that must precede the state-mutating transfer:
//
//  1. ledger check (fails cheaply on the common repeat-call case)
//  2. leaf construction from the caller's identity and amount
//  3. proof verification against the active root
//  4. ledger write — before the external call, so a reentrant or retried
//     call observes HasClaimed and is rejected
//  5. token transfer
//
// A transfer failure after step 4 does not roll the claim back: the claim
// stays marked and the transfer is parked in the pending queue for
// RetryTransfer. Every other failure leaves all state untouched.
func (d *Distributor) Claim(ctx context.Context, caller types.AccountID, amount *uint256.Int, proof []merkle.ProofStep) error {
	if caller == "" {
		return fmt.Errorf("%w: empty caller account", types.ErrInvalidProofFormat)
	}
	if amount == nil || amount.BitLen() > types.MaxAmountBits {
		return fmt.Errorf("%w: amount missing or wider than %d bits", types.ErrInvalidProofFormat, types.MaxAmountBits)
	}

	claimed, err := d.ledger.HasClaimed(caller)
	if err != nil {
		return fmt.Errorf("failed to check claim ledger: %w", err)
	}
	if claimed {
		return fmt.Errorf("%w: %s", types.ErrAlreadyClaimed, caller)
	}

	leaf := merkle.LeafDigest(caller, amount)
	root := d.registry.GetRoot()

	if !merkle.VerifyProof(leaf, proof, root) {
		d.logger.Sugar().Infow("Claim rejected: proof did not verify",
			"account", caller,
			"root", merkle.EncodeDigest(root),
		)
		return fmt.Errorf("%w: account %s", types.ErrInvalidProof, caller)
	}

	// State before call: the claim is durable before the transferor can
	// yield control to anything that might call back in.
	if err := d.ledger.MarkClaimed(caller); err != nil {
		return err
	}

	if err := d.transferor.Transfer(ctx, caller, amount); err != nil {
		return d.parkFailedTransfer(caller, amount, err)
	}

	d.logger.Sugar().Infow("Airdrop claimed",
		"account", caller,
		"amount", amount.Dec(),
	)

	return nil
}

// RetryTransfer re-attempts the parked transfer for an account whose claim
// succeeded but whose payout failed. The claim itself is never re-checked;
// only the transfer side of the flow is replayed.
func (d *Distributor) RetryTransfer(ctx context.Context, account types.AccountID) error {
	pending, err := d.store.LoadPendingTransfer(account)
	if err != nil {
		return fmt.Errorf("failed to load pending transfer: %w", err)
	}
	if pending == nil {
		return fmt.Errorf("%w: %s", types.ErrNoPendingTransfer, account)
	}

	amount, err := types.ParseAmount(pending.Amount)
	if err != nil {
		return fmt.Errorf("corrupt pending transfer for %s: %w", account, err)
	}

	if err := d.transferor.Transfer(ctx, account, amount); err != nil {
		pending.Attempts++
		pending.LastError = err.Error()
		if saveErr := d.store.SavePendingTransfer(pending); saveErr != nil {
			d.logger.Sugar().Errorw("Failed to update pending transfer",
				"account", account, "error", saveErr)
		}
		return fmt.Errorf("%w: retry for %s: %v", types.ErrTransferFailed, account, err)
	}

	if err := d.store.DeletePendingTransfer(account); err != nil {
		return fmt.Errorf("transfer succeeded but failed to clear pending record: %w", err)
	}

	d.logger.Sugar().Infow("Pending transfer settled",
		"account", account,
		"amount", pending.Amount,
		"attempts", pending.Attempts+1,
	)

	return nil
}

// parkFailedTransfer records a failed payout so the account can retry it.
func (d *Distributor) parkFailedTransfer(account types.AccountID, amount *uint256.Int, cause error) error {
	pending := &types.PendingTransfer{
		AccountID:     account,
		Amount:        amount.Dec(),
		Attempts:      1,
		LastError:     cause.Error(),
		FirstFailedAt: time.Now().Unix(),
	}

	if err := d.store.SavePendingTransfer(pending); err != nil {
		// The claim is marked but the failure is not queued. Surface both:
		// operators must reconcile this from logs.
		d.logger.Sugar().Errorw("Transfer failed and could not be queued for retry",
			"account", account,
			"transfer_error", cause,
			"queue_error", err,
		)
		return fmt.Errorf("%w: %s (retry queue unavailable: %v)", types.ErrTransferFailed, account, err)
	}

	d.logger.Sugar().Warnw("Transfer failed, queued for retry",
		"account", account,
		"amount", pending.Amount,
		"error", cause,
	)

	return fmt.Errorf("%w: %s: %v", types.ErrTransferFailed, account, cause)
}

// HasClaimed reports whether an account has claimed. Read-only.
func (d *Distributor) HasClaimed(account types.AccountID) (bool, error) {
	return d.ledger.HasClaimed(account)
}

// Root returns the currently active merkle root. Read-only.
func (d *Distributor) Root() [32]byte {
	return d.registry.GetRoot()
}

// SetRoot rotates the active root on behalf of caller.
func (d *Distributor) SetRoot(newRoot [32]byte, caller types.AccountID) error {
	return d.registry.SetRoot(newRoot, caller)
}

// PendingTransfer returns the parked transfer for an account, or nil.
func (d *Distributor) PendingTransfer(account types.AccountID) (*types.PendingTransfer, error) {
	return d.store.LoadPendingTransfer(account)
}

// PendingTransfers returns all parked transfers.
func (d *Distributor) PendingTransfers() ([]*types.PendingTransfer, error) {
	return d.store.ListPendingTransfers()
}

// HealthCheck verifies the distributor's store is operational.
func (d *Distributor) HealthCheck() error {
	return d.store.HealthCheck()
}
