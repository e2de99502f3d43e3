package ledger

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/driftlake/merkledrop-go/pkg/logger"
	"github.com/driftlake/merkledrop-go/pkg/persistence/memory"
	"github.com/driftlake/merkledrop-go/pkg/types"
)

func newTestLedger(t *testing.T) *ClaimLedger {
	t.Helper()

	store := memory.NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })
	return NewClaimLedger(store, logger.NewNopLogger())
}

func TestMarkClaimed(t *testing.T) {
	l := newTestLedger(t)

	claimed, err := l.HasClaimed("alice.testnet")
	require.NoError(t, err)
	require.False(t, claimed)

	require.NoError(t, l.MarkClaimed("alice.testnet"))

	claimed, err = l.HasClaimed("alice.testnet")
	require.NoError(t, err)
	require.True(t, claimed)
}

// TestMarkClaimed_SecondMarkFails tests the ledger's own contract: a
// duplicate mark surfaces ErrAlreadyClaimed rather than overwriting
func TestMarkClaimed_SecondMarkFails(t *testing.T) {
	l := newTestLedger(t)

	require.NoError(t, l.MarkClaimed("alice.testnet"))

	err := l.MarkClaimed("alice.testnet")
	require.ErrorIs(t, err, types.ErrAlreadyClaimed)

	// The first mark survives unchanged
	claimed, err := l.HasClaimed("alice.testnet")
	require.NoError(t, err)
	require.True(t, claimed)
}

func TestListClaimed(t *testing.T) {
	l := newTestLedger(t)

	list, err := l.ListClaimed()
	require.NoError(t, err)
	require.Empty(t, list)

	for _, account := range []types.AccountID{"carol", "alice", "bob"} {
		require.NoError(t, l.MarkClaimed(account))
	}

	list, err = l.ListClaimed()
	require.NoError(t, err)
	require.Equal(t, []types.AccountID{"alice", "bob", "carol"}, list)
}
