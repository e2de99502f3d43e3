package distributor

import (
	"context"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/driftlake/merkledrop-go/pkg/ledger"
	"github.com/driftlake/merkledrop-go/pkg/logger"
	"github.com/driftlake/merkledrop-go/pkg/merkle"
	"github.com/driftlake/merkledrop-go/pkg/persistence/memory"
	"github.com/driftlake/merkledrop-go/pkg/registry"
	"github.com/driftlake/merkledrop-go/pkg/token"
	"github.com/driftlake/merkledrop-go/pkg/types"
)

const testOwner = types.AccountID("owner.testnet")

// testFixture bundles a distributor with its collaborators for assertions
type testFixture struct {
	distributor *Distributor
	registry    *registry.RootRegistry
	store       *memory.MemoryStore
	transferor  *token.StubTransferor
	tree        *merkle.AirdropTree
}

// newTestFixture builds a distributor over a tree committing to records
func newTestFixture(t *testing.T, records []*types.Eligibility) *testFixture {
	t.Helper()

	tree, err := merkle.BuildAirdropTree(records)
	require.NoError(t, err)

	testLogger := logger.NewNopLogger()
	store := memory.NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })

	rootRegistry, err := registry.NewRootRegistry(testOwner, tree.Root, store, testLogger)
	require.NoError(t, err)

	transferor := token.NewStubTransferor()
	d := New(rootRegistry, ledger.NewClaimLedger(store, testLogger), store, transferor, testLogger)

	return &testFixture{
		distributor: d,
		registry:    rootRegistry,
		store:       store,
		transferor:  transferor,
		tree:        tree,
	}
}

// aliceBobRecords is the canonical two-account eligibility set
func aliceBobRecords() []*types.Eligibility {
	return []*types.Eligibility{
		{AccountID: "alice.testnet", Amount: uint256.NewInt(100)},
		{AccountID: "bob.testnet", Amount: uint256.NewInt(200)},
	}
}

func proofFor(t *testing.T, tree *merkle.AirdropTree, account types.AccountID) []merkle.ProofStep {
	t.Helper()
	proof, err := tree.GenerateProof(account)
	require.NoError(t, err)
	return proof.Steps
}

// TestClaimSuccess tests the happy path: valid proof, ledger write, transfer
func TestClaimSuccess(t *testing.T) {
	f := newTestFixture(t, aliceBobRecords())

	err := f.distributor.Claim(context.Background(), "alice.testnet", uint256.NewInt(100), proofFor(t, f.tree, "alice.testnet"))
	require.NoError(t, err)

	claimed, err := f.distributor.HasClaimed("alice.testnet")
	require.NoError(t, err)
	require.True(t, claimed)

	transfers := f.transferor.Transfers()
	require.Len(t, transfers, 1)
	require.Equal(t, types.AccountID("alice.testnet"), transfers[0].Recipient)
	require.Equal(t, uint256.NewInt(100), transfers[0].Amount)
}

// TestClaimAtMostOnce tests that a second claim fails with AlreadyClaimed
// regardless of the proof submitted
func TestClaimAtMostOnce(t *testing.T) {
	f := newTestFixture(t, aliceBobRecords())
	aliceProof := proofFor(t, f.tree, "alice.testnet")

	err := f.distributor.Claim(context.Background(), "alice.testnet", uint256.NewInt(100), aliceProof)
	require.NoError(t, err)

	// Same valid proof again
	err = f.distributor.Claim(context.Background(), "alice.testnet", uint256.NewInt(100), aliceProof)
	require.ErrorIs(t, err, types.ErrAlreadyClaimed)

	// Different (bob's) proof: the ledger gate fires before verification
	err = f.distributor.Claim(context.Background(), "alice.testnet", uint256.NewInt(200), proofFor(t, f.tree, "bob.testnet"))
	require.ErrorIs(t, err, types.ErrAlreadyClaimed)

	require.Len(t, f.transferor.Transfers(), 1)
}

// TestClaimMismatchedProof tests that a proof for someone else's record
// fails verification: alice with bob's proof and her own amount
func TestClaimMismatchedProof(t *testing.T) {
	f := newTestFixture(t, aliceBobRecords())

	err := f.distributor.Claim(context.Background(), "alice.testnet", uint256.NewInt(100), proofFor(t, f.tree, "bob.testnet"))
	require.ErrorIs(t, err, types.ErrInvalidProof)

	// Failed attempt leaves alice unclaimed
	claimed, err := f.distributor.HasClaimed("alice.testnet")
	require.NoError(t, err)
	require.False(t, claimed)
	require.Empty(t, f.transferor.Transfers())
}

// TestClaimWrongAmount tests that claiming a different amount than the
// committed one fails verification
func TestClaimWrongAmount(t *testing.T) {
	f := newTestFixture(t, aliceBobRecords())

	err := f.distributor.Claim(context.Background(), "alice.testnet", uint256.NewInt(999), proofFor(t, f.tree, "alice.testnet"))
	require.ErrorIs(t, err, types.ErrInvalidProof)
}

// TestClaimAmountTooWide tests the structural amount gate
func TestClaimAmountTooWide(t *testing.T) {
	f := newTestFixture(t, aliceBobRecords())

	tooWide := new(uint256.Int).Lsh(uint256.NewInt(1), 129)
	err := f.distributor.Claim(context.Background(), "alice.testnet", tooWide, proofFor(t, f.tree, "alice.testnet"))
	require.ErrorIs(t, err, types.ErrInvalidProofFormat)
}

// TestRootRotationNonRetroactive tests that rotating the root preserves
// settled claims but invalidates unclaimed proofs from the old tree
func TestRootRotationNonRetroactive(t *testing.T) {
	f := newTestFixture(t, aliceBobRecords())
	bobProofOldTree := proofFor(t, f.tree, "bob.testnet")

	// Alice claims under R1
	err := f.distributor.Claim(context.Background(), "alice.testnet", uint256.NewInt(100), proofFor(t, f.tree, "alice.testnet"))
	require.NoError(t, err)

	// Owner rotates to R2 over a different set
	newTree, err := merkle.BuildAirdropTree([]*types.Eligibility{
		{AccountID: "carol.testnet", Amount: uint256.NewInt(300)},
		{AccountID: "dave.testnet", Amount: uint256.NewInt(400)},
	})
	require.NoError(t, err)
	require.NoError(t, f.distributor.SetRoot(newTree.Root, testOwner))

	// Alice's settled claim survives the rotation
	claimed, err := f.distributor.HasClaimed("alice.testnet")
	require.NoError(t, err)
	require.True(t, claimed)

	// Bob never claimed; his proof was valid only under R1
	err = f.distributor.Claim(context.Background(), "bob.testnet", uint256.NewInt(200), bobProofOldTree)
	require.ErrorIs(t, err, types.ErrInvalidProof)

	// Claims against the new tree verify
	carolProof, err := newTree.GenerateProof("carol.testnet")
	require.NoError(t, err)
	err = f.distributor.Claim(context.Background(), "carol.testnet", uint256.NewInt(300), carolProof.Steps)
	require.NoError(t, err)
}

// TestSetRootUnauthorized tests that non-owners cannot rotate the root
func TestSetRootUnauthorized(t *testing.T) {
	f := newTestFixture(t, aliceBobRecords())
	originalRoot := f.distributor.Root()

	var newRoot [32]byte
	newRoot[0] = 0xaa

	err := f.distributor.SetRoot(newRoot, "mallory.testnet")
	require.ErrorIs(t, err, types.ErrUnauthorized)
	require.Equal(t, originalRoot, f.distributor.Root())
}

// TestTransferFailureParksClaim tests strategy (b): on transfer failure the
// claim stays marked and the payout is queued for retry
func TestTransferFailureParksClaim(t *testing.T) {
	f := newTestFixture(t, aliceBobRecords())
	f.transferor.FailNext(1)

	err := f.distributor.Claim(context.Background(), "alice.testnet", uint256.NewInt(100), proofFor(t, f.tree, "alice.testnet"))
	require.ErrorIs(t, err, types.ErrTransferFailed)

	// The claim is marked despite the failed payout
	claimed, err := f.distributor.HasClaimed("alice.testnet")
	require.NoError(t, err)
	require.True(t, claimed)

	// A repeat claim cannot double-spend
	err = f.distributor.Claim(context.Background(), "alice.testnet", uint256.NewInt(100), proofFor(t, f.tree, "alice.testnet"))
	require.ErrorIs(t, err, types.ErrAlreadyClaimed)

	// The payout is parked with the failure recorded
	pending, err := f.distributor.PendingTransfer("alice.testnet")
	require.NoError(t, err)
	require.NotNil(t, pending)
	require.Equal(t, "100", pending.Amount)
	require.Equal(t, 1, pending.Attempts)
	require.NotEmpty(t, pending.LastError)

	// Retry settles the payout and clears the queue
	require.NoError(t, f.distributor.RetryTransfer(context.Background(), "alice.testnet"))

	pending, err = f.distributor.PendingTransfer("alice.testnet")
	require.NoError(t, err)
	require.Nil(t, pending)
	require.Len(t, f.transferor.Transfers(), 1)
}

// TestRetryTransferKeepsFailureRecord tests that an unsuccessful retry
// bumps the attempt counter instead of dropping the record
func TestRetryTransferKeepsFailureRecord(t *testing.T) {
	f := newTestFixture(t, aliceBobRecords())
	f.transferor.FailNext(2)

	err := f.distributor.Claim(context.Background(), "alice.testnet", uint256.NewInt(100), proofFor(t, f.tree, "alice.testnet"))
	require.ErrorIs(t, err, types.ErrTransferFailed)

	err = f.distributor.RetryTransfer(context.Background(), "alice.testnet")
	require.ErrorIs(t, err, types.ErrTransferFailed)

	pending, err := f.distributor.PendingTransfer("alice.testnet")
	require.NoError(t, err)
	require.NotNil(t, pending)
	require.Equal(t, 2, pending.Attempts)
}

// TestRetryTransferNoPending tests the retry path for an account with
// nothing parked
func TestRetryTransferNoPending(t *testing.T) {
	f := newTestFixture(t, aliceBobRecords())

	err := f.distributor.RetryTransfer(context.Background(), "alice.testnet")
	require.ErrorIs(t, err, types.ErrNoPendingTransfer)
}

// reentrantTransferor calls back into the distributor mid-transfer,
// simulating an external collaborator that yields control to the caller
type reentrantTransferor struct {
	distributor *Distributor
	tree        *merkle.AirdropTree
	innerErr    error
	transfers   int
}

func (r *reentrantTransferor) Transfer(ctx context.Context, recipient types.AccountID, amount *uint256.Int) error {
	r.transfers++
	if r.transfers == 1 {
		proof, _ := r.tree.GenerateProof(recipient)
		r.innerErr = r.distributor.Claim(ctx, recipient, amount, proof.Steps)
	}
	return nil
}

// TestReentrantClaimRejected tests the ordering invariant: because the
// ledger is written before the external call, a reentrant claim observes
// HasClaimed and cannot double-spend
func TestReentrantClaimRejected(t *testing.T) {
	records := aliceBobRecords()
	tree, err := merkle.BuildAirdropTree(records)
	require.NoError(t, err)

	testLogger := logger.NewNopLogger()
	store := memory.NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })

	rootRegistry, err := registry.NewRootRegistry(testOwner, tree.Root, store, testLogger)
	require.NoError(t, err)

	transferor := &reentrantTransferor{tree: tree}
	d := New(rootRegistry, ledger.NewClaimLedger(store, testLogger), store, transferor, testLogger)
	transferor.distributor = d

	err = d.Claim(context.Background(), "alice.testnet", uint256.NewInt(100), proofFor(t, tree, "alice.testnet"))
	require.NoError(t, err)

	require.ErrorIs(t, transferor.innerErr, types.ErrAlreadyClaimed)
	require.Equal(t, 1, transferor.transfers)
}
