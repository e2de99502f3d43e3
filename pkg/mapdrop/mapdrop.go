// Package mapdrop implements the mapping-based airdrop variant: instead of
// committing eligibility to a merkle root, the owner loads per-account
// allocations directly and users claim against the stored table. Suited to
// small drops where the full allocation list fits in memory and the owner
// wants to adjust amounts after loading.
package mapdrop

import (
	"context"
	"fmt"
	"sync"

	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/driftlake/merkledrop-go/pkg/token"
	"github.com/driftlake/merkledrop-go/pkg/types"
)

// ErrNotEligible indicates the account has no allocation to claim or update.
var ErrNotEligible = fmt.Errorf("account has no airdrop allocation")

// MapDistributor distributes tokens from an in-memory allocation table.
// A claim consumes the account's entry, so claiming is at-most-once by
// construction: the entry is removed before the transfer is attempted and
// reinstated only if the transfer fails.
type MapDistributor struct {
	owner      types.AccountID
	transferor token.ITokenTransferor
	logger     *zap.Logger

	mu       sync.Mutex
	airdrops map[types.AccountID]*uint256.Int
}

// New creates a map distributor owned by the given account.
func New(owner types.AccountID, transferor token.ITokenTransferor, logger *zap.Logger) (*MapDistributor, error) {
	if owner == "" {
		return nil, fmt.Errorf("owner account cannot be empty")
	}
	if transferor == nil {
		return nil, fmt.Errorf("token transferor cannot be nil")
	}

	return &MapDistributor{
		owner:      owner,
		transferor: transferor,
		logger:     logger,
		airdrops:   make(map[types.AccountID]*uint256.Int),
	}, nil
}

// Owner returns the account authorized to manage allocations.
func (m *MapDistributor) Owner() types.AccountID {
	return m.owner
}

// AddAirdrops batch-loads allocations. Only the owner may load. Accounts
// that already hold an allocation are skipped rather than overwritten, so
// re-submitting a batch cannot change amounts already loaded.
func (m *MapDistributor) AddAirdrops(caller types.AccountID, entries []*types.Eligibility) error {
	if caller != m.owner {
		return fmt.Errorf("%w: %s cannot add airdrops", types.ErrUnauthorized, caller)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, entry := range entries {
		if entry.AccountID == "" {
			return fmt.Errorf("airdrop entry has empty account ID")
		}
		if entry.Amount == nil || entry.Amount.BitLen() > types.MaxAmountBits {
			return fmt.Errorf("invalid amount for %s", entry.AccountID)
		}

		if _, exists := m.airdrops[entry.AccountID]; exists {
			m.logger.Sugar().Infow("Account already in airdrop list, skipping",
				"account", entry.AccountID,
			)
			continue
		}

		m.airdrops[entry.AccountID] = entry.Amount.Clone()
	}

	return nil
}

// UpdateAirdrop replaces the allocation for an account that is already
// loaded. Only the owner may update, and the account must exist.
func (m *MapDistributor) UpdateAirdrop(caller types.AccountID, account types.AccountID, amount *uint256.Int) error {
	if caller != m.owner {
		return fmt.Errorf("%w: %s cannot update airdrops", types.ErrUnauthorized, caller)
	}
	if amount == nil || amount.BitLen() > types.MaxAmountBits {
		return fmt.Errorf("invalid amount for %s", account)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.airdrops[account]; !exists {
		return fmt.Errorf("%w: %s", ErrNotEligible, account)
	}

	m.airdrops[account] = amount.Clone()
	m.logger.Sugar().Infow("Airdrop allocation updated",
		"account", account,
		"amount", amount.Dec(),
	)

	return nil
}

// CheckAirdrop returns the claimable amount for an account, or zero if the
// account holds no allocation.
func (m *MapDistributor) CheckAirdrop(account types.AccountID) *uint256.Int {
	m.mu.Lock()
	defer m.mu.Unlock()

	amount, exists := m.airdrops[account]
	if !exists {
		return uint256.NewInt(0)
	}
	return amount.Clone()
}

// Claim pays out the caller's allocation and consumes the entry.
// The entry is removed before the transfer so a reentrant claim finds
// nothing to take; if the transfer fails the entry is reinstated and the
// account can claim again later.
func (m *MapDistributor) Claim(ctx context.Context, account types.AccountID) (*uint256.Int, error) {
	m.mu.Lock()
	amount, exists := m.airdrops[account]
	if !exists || amount.IsZero() {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrNotEligible, account)
	}
	delete(m.airdrops, account)
	m.mu.Unlock()

	if err := m.transferor.Transfer(ctx, account, amount); err != nil {
		m.mu.Lock()
		m.airdrops[account] = amount
		m.mu.Unlock()

		m.logger.Sugar().Warnw("Airdrop transfer failed, allocation reinstated",
			"account", account,
			"amount", amount.Dec(),
			"error", err,
		)
		return nil, fmt.Errorf("%w: %v", types.ErrTransferFailed, err)
	}

	m.logger.Sugar().Infow("Airdrop claimed",
		"account", account,
		"amount", amount.Dec(),
	)

	return amount.Clone(), nil
}
