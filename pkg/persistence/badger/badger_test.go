package badger

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/driftlake/merkledrop-go/pkg/logger"
	"github.com/driftlake/merkledrop-go/pkg/types"
)

func newTestStore(t *testing.T) *BadgerStore {
	t.Helper()

	store, err := NewBadgerStore(t.TempDir(), logger.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestBadgerStore_RootRoundTrip(t *testing.T) {
	store := newTestStore(t)

	_, found, err := store.LoadRoot()
	require.NoError(t, err)
	require.False(t, found)

	var root [32]byte
	root[31] = 0x07
	require.NoError(t, store.SaveRoot(root))

	loaded, found, err := store.LoadRoot()
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, root, loaded)

	// Replacing the root overwrites in place
	var newRoot [32]byte
	newRoot[0] = 0xff
	require.NoError(t, store.SaveRoot(newRoot))

	loaded, found, err = store.LoadRoot()
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, newRoot, loaded)
}

func TestBadgerStore_MarkClaimed(t *testing.T) {
	store := newTestStore(t)

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

func TestBadgerStore_ListClaimed(t *testing.T) {
	store := newTestStore(t)

	for _, account := range []types.AccountID{"carol", "alice", "bob"} {
		_, err := store.MarkClaimed(account)
		require.NoError(t, err)
	}

	claimed, err := store.ListClaimed()
	require.NoError(t, err)
	require.Equal(t, []types.AccountID{"alice", "bob", "carol"}, claimed)
}

func TestBadgerStore_PendingTransferRoundTrip(t *testing.T) {
	store := newTestStore(t)

	pending := &types.PendingTransfer{
		AccountID:     "alice.testnet",
		Amount:        "340282366920938463463374607431768211455", // 2^128 - 1
		Attempts:      3,
		LastError:     "status 503",
		FirstFailedAt: 1700000000,
	}
	require.NoError(t, store.SavePendingTransfer(pending))

	loaded, err := store.LoadPendingTransfer("alice.testnet")
	require.NoError(t, err)
	require.Equal(t, pending, loaded)

	pendings, err := store.ListPendingTransfers()
	require.NoError(t, err)
	require.Len(t, pendings, 1)

	require.NoError(t, store.DeletePendingTransfer("alice.testnet"))
	loaded, err = store.LoadPendingTransfer("alice.testnet")
	require.NoError(t, err)
	require.Nil(t, loaded)
}

func TestBadgerStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	testLogger := logger.NewNopLogger()

	store, err := NewBadgerStore(dir, testLogger)
	require.NoError(t, err)

	var root [32]byte
	root[0] = 0x11
	require.NoError(t, store.SaveRoot(root))
	_, err = store.MarkClaimed("alice.testnet")
	require.NoError(t, err)
	require.NoError(t, store.Close())

	// Claims and root survive a restart
	store, err = NewBadgerStore(dir, testLogger)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	loaded, found, err := store.LoadRoot()
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, root, loaded)

	claimed, err := store.HasClaimed("alice.testnet")
	require.NoError(t, err)
	require.True(t, claimed)
}

func TestBadgerStore_ClosedRejectsOperations(t *testing.T) {
	store, err := NewBadgerStore(t.TempDir(), logger.NewNopLogger())
	require.NoError(t, err)

	require.NoError(t, store.HealthCheck())
	require.NoError(t, store.Close())

	require.Error(t, store.HealthCheck())
	require.Error(t, store.SaveRoot([32]byte{}))
	_, err = store.MarkClaimed("alice")
	require.Error(t, err)

	// Close is idempotent
	require.NoError(t, store.Close())
}
