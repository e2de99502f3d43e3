package memory

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftlake/merkledrop-go/pkg/types"
)

func TestMemoryStore_RootRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	defer func() { _ = store.Close() }()

	_, found, err := store.LoadRoot()
	require.NoError(t, err)
	require.False(t, found)

	var root [32]byte
	root[0] = 0x42
	require.NoError(t, store.SaveRoot(root))

	loaded, found, err := store.LoadRoot()
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, root, loaded)
}

func TestMemoryStore_MarkClaimed(t *testing.T) {
	store := NewMemoryStore()
	defer func() { _ = store.Close() }()

	newly, err := store.MarkClaimed("alice.testnet")
	require.NoError(t, err)
	require.True(t, newly)

	newly, err = store.MarkClaimed("alice.testnet")
	require.NoError(t, err)
	require.False(t, newly)

	claimed, err := store.HasClaimed("alice.testnet")
	require.NoError(t, err)
	require.True(t, claimed)

	claimed, err = store.HasClaimed("bob.testnet")
	require.NoError(t, err)
	require.False(t, claimed)
}

func TestMemoryStore_MarkClaimedConcurrent(t *testing.T) {
	store := NewMemoryStore()
	defer func() { _ = store.Close() }()

	const goroutines = 32
	results := make([]bool, goroutines)

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			newly, err := store.MarkClaimed("alice.testnet")
			assert.NoError(t, err)
			results[i] = newly
		}(i)
	}
	wg.Wait()

	// Exactly one goroutine wins the mark
	wins := 0
	for _, newly := range results {
		if newly {
			wins++
		}
	}
	require.Equal(t, 1, wins)
}

func TestMemoryStore_ListClaimedSorted(t *testing.T) {
	store := NewMemoryStore()
	defer func() { _ = store.Close() }()

	for _, account := range []types.AccountID{"carol", "alice", "bob"} {
		_, err := store.MarkClaimed(account)
		require.NoError(t, err)
	}

	claimed, err := store.ListClaimed()
	require.NoError(t, err)
	require.Equal(t, []types.AccountID{"alice", "bob", "carol"}, claimed)
}

func TestMemoryStore_PendingTransferRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	defer func() { _ = store.Close() }()

	loaded, err := store.LoadPendingTransfer("alice.testnet")
	require.NoError(t, err)
	require.Nil(t, loaded)

	pending := &types.PendingTransfer{
		AccountID:     "alice.testnet",
		Amount:        "100",
		Attempts:      1,
		LastError:     "connection refused",
		FirstFailedAt: 1700000000,
	}
	require.NoError(t, store.SavePendingTransfer(pending))

	loaded, err = store.LoadPendingTransfer("alice.testnet")
	require.NoError(t, err)
	require.Equal(t, pending, loaded)

	// Deep copy: mutating the loaded record must not affect the store
	loaded.Attempts = 99
	again, err := store.LoadPendingTransfer("alice.testnet")
	require.NoError(t, err)
	require.Equal(t, 1, again.Attempts)

	require.NoError(t, store.DeletePendingTransfer("alice.testnet"))
	loaded, err = store.LoadPendingTransfer("alice.testnet")
	require.NoError(t, err)
	require.Nil(t, loaded)

	// Delete is idempotent
	require.NoError(t, store.DeletePendingTransfer("alice.testnet"))
}

func TestMemoryStore_ListPendingTransfersSorted(t *testing.T) {
	store := NewMemoryStore()
	defer func() { _ = store.Close() }()

	for _, account := range []types.AccountID{"carol", "alice", "bob"} {
		require.NoError(t, store.SavePendingTransfer(&types.PendingTransfer{
			AccountID: account,
			Amount:    "1",
		}))
	}

	pendings, err := store.ListPendingTransfers()
	require.NoError(t, err)
	require.Len(t, pendings, 3)
	require.Equal(t, types.AccountID("alice"), pendings[0].AccountID)
	require.Equal(t, types.AccountID("carol"), pendings[2].AccountID)
}

func TestMemoryStore_ClosedRejectsOperations(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.HealthCheck())
	require.NoError(t, store.Close())

	require.Error(t, store.HealthCheck())
	require.Error(t, store.SaveRoot([32]byte{}))
	_, _, err := store.LoadRoot()
	require.Error(t, err)
	_, err = store.MarkClaimed("alice")
	require.Error(t, err)
	_, err = store.HasClaimed("alice")
	require.Error(t, err)

	// Close is idempotent
	require.NoError(t, store.Close())
}
