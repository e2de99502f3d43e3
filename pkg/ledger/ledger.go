package ledger

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/driftlake/merkledrop-go/pkg/persistence"
	"github.com/driftlake/merkledrop-go/pkg/types"
)

// ClaimLedger is the durable record of accounts that have claimed.
// Membership is monotonic: once an account is marked, no claim-flow
// operation can remove it. The orchestrator checks HasClaimed before any
// transfer side effect and writes at most once per account.
type ClaimLedger struct {
	store  persistence.IDistributorStore
	logger *zap.Logger
}

// NewClaimLedger creates a claim ledger over the given store.
func NewClaimLedger(store persistence.IDistributorStore, logger *zap.Logger) *ClaimLedger {
	return &ClaimLedger{
		store:  store,
		logger: logger,
	}
}

// HasClaimed reports whether the account has already claimed.
func (l *ClaimLedger) HasClaimed(account types.AccountID) (bool, error) {
	return l.store.HasClaimed(account)
}

// MarkClaimed records a claim for the account. The orchestrator already
// guards against double claims, but the ledger enforces the contract
// itself: a second mark fails with ErrAlreadyClaimed instead of silently
// overwriting, so the ledger stays correct even if callers are added later.
func (l *ClaimLedger) MarkClaimed(account types.AccountID) error {
	newlyMarked, err := l.store.MarkClaimed(account)
	if err != nil {
		return fmt.Errorf("failed to mark claim: %w", err)
	}
	if !newlyMarked {
		return fmt.Errorf("%w: %s", types.ErrAlreadyClaimed, account)
	}

	l.logger.Sugar().Debugw("Claim recorded", "account", account)
	return nil
}

// ListClaimed returns all accounts that have claimed, sorted ascending.
func (l *ClaimLedger) ListClaimed() ([]types.AccountID, error) {
	return l.store.ListClaimed()
}
