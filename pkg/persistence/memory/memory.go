package memory

import (
	"fmt"
	"sort"
	"sync"

	"github.com/driftlake/merkledrop-go/pkg/persistence"
	"github.com/driftlake/merkledrop-go/pkg/types"
)

// MemoryStore is an in-memory implementation of IDistributorStore.
// This implementation is intended for TESTING ONLY.
//
// All data is stored in memory and will be lost when the process exits.
// Thread-safe using sync.RWMutex for concurrent access.
// Deep copies data to prevent external mutation.
type MemoryStore struct {
	mu sync.RWMutex

	root    [32]byte
	hasRoot bool

	// Claim ledger: account -> presence
	claimed map[types.AccountID]struct{}

	// Failed transfer queue: account -> PendingTransfer
	pending map[types.AccountID]*types.PendingTransfer

	closed bool
}

// NewMemoryStore creates a new in-memory distributor store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		claimed: make(map[types.AccountID]struct{}),
		pending: make(map[types.AccountID]*types.PendingTransfer),
	}
}

// SaveRoot persists the active merkle root.
func (m *MemoryStore) SaveRoot(root [32]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("store is closed")
	}

	m.root = root
	m.hasRoot = true
	return nil
}

// LoadRoot retrieves the active merkle root.
func (m *MemoryStore) LoadRoot() ([32]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return [32]byte{}, false, fmt.Errorf("store is closed")
	}

	return m.root, m.hasRoot, nil
}

// MarkClaimed atomically records a claim for the account.
func (m *MemoryStore) MarkClaimed(account types.AccountID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return false, fmt.Errorf("store is closed")
	}

	if _, exists := m.claimed[account]; exists {
		return false, nil
	}

	m.claimed[account] = struct{}{}
	return true, nil
}

// HasClaimed reports whether the account has claimed.
func (m *MemoryStore) HasClaimed(account types.AccountID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return false, fmt.Errorf("store is closed")
	}

	_, exists := m.claimed[account]
	return exists, nil
}

// ListClaimed returns all claimed accounts sorted ascending.
func (m *MemoryStore) ListClaimed() ([]types.AccountID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("store is closed")
	}

	result := make([]types.AccountID, 0, len(m.claimed))
	for account := range m.claimed {
		result = append(result, account)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i] < result[j]
	})

	return result, nil
}

// SavePendingTransfer records a failed transfer for later retry.
func (m *MemoryStore) SavePendingTransfer(pending *types.PendingTransfer) error {
	if pending == nil {
		return fmt.Errorf("cannot save nil PendingTransfer")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("store is closed")
	}

	// Deep copy to prevent external mutation
	m.pending[pending.AccountID] = copyPendingTransfer(pending)
	return nil
}

// LoadPendingTransfer retrieves the failed transfer record for an account.
func (m *MemoryStore) LoadPendingTransfer(account types.AccountID) (*types.PendingTransfer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("store is closed")
	}

	pending, exists := m.pending[account]
	if !exists {
		return nil, nil // Not found is not an error
	}

	return copyPendingTransfer(pending), nil
}

// DeletePendingTransfer removes a failed transfer record.
func (m *MemoryStore) DeletePendingTransfer(account types.AccountID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("store is closed")
	}

	delete(m.pending, account)
	return nil
}

// ListPendingTransfers returns all failed transfer records sorted by account.
func (m *MemoryStore) ListPendingTransfers() ([]*types.PendingTransfer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("store is closed")
	}

	accounts := make([]types.AccountID, 0, len(m.pending))
	for account := range m.pending {
		accounts = append(accounts, account)
	}
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i] < accounts[j]
	})

	result := make([]*types.PendingTransfer, 0, len(accounts))
	for _, account := range accounts {
		result = append(result, copyPendingTransfer(m.pending[account]))
	}

	return result, nil
}

// Close shuts down the store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return nil
}

// HealthCheck verifies the store is operational.
func (m *MemoryStore) HealthCheck() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return fmt.Errorf("store is closed")
	}

	return nil
}

func copyPendingTransfer(p *types.PendingTransfer) *types.PendingTransfer {
	if p == nil {
		return nil
	}

	cp := *p
	return &cp
}

var _ persistence.IDistributorStore = (*MemoryStore)(nil)
