package badger

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	badgerdb "github.com/dgraph-io/badger/v3"
	pkgerrors "github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/driftlake/merkledrop-go/pkg/persistence"
	"github.com/driftlake/merkledrop-go/pkg/types"
)

// Key prefixes for namespacing
const (
	keyActiveRoot        = "root:active"
	keyPrefixClaim       = "claim:"
	keyPrefixPending     = "pending:"
	keySchemaVersion     = "metadata:schema_version"
	currentSchemaVersion = "v1"
)

// BadgerStore is a production-ready distributor store backed by Badger.
// Provides durable, disk-based storage with ACID guarantees; a claim that
// was marked before a crash is still marked after restart.
type BadgerStore struct {
	db       *badgerdb.DB
	logger   *zap.Logger
	gcCancel context.CancelFunc
	gcWg     sync.WaitGroup
	mu       sync.RWMutex
	closed   bool
}

// NewBadgerStore creates a new Badger-backed distributor store.
// The database is opened at the specified path with SyncWrites enabled so
// that claim marks are fsynced before the external transfer is attempted.
// A background goroutine is started for garbage collection.
func NewBadgerStore(dataPath string, logger *zap.Logger) (*BadgerStore, error) {
	absPath, err := filepath.Abs(dataPath)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to resolve absolute path")
	}

	opts := badgerdb.DefaultOptions(absPath)
	opts.Logger = newStoreLogger(logger)
	opts.SyncWrites = true // claim marks must be durable before the transfer call
	opts.CompactL0OnClose = true
	opts.NumVersionsToKeep = 1

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to open badger database at %s", absPath)
	}

	bs := &BadgerStore{
		db:     db,
		logger: logger,
	}

	if err := bs.initSchema(); err != nil {
		_ = db.Close()
		return nil, pkgerrors.Wrap(err, "failed to initialize schema")
	}

	ctx, cancel := context.WithCancel(context.Background())
	bs.gcCancel = cancel
	bs.gcWg.Add(1)
	go bs.runGC(ctx)

	logger.Sugar().Infow("Badger store initialized", "path", absPath)

	return bs, nil
}

// initSchema initializes or validates the schema version
func (b *BadgerStore) initSchema() error {
	return b.db.Update(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(keySchemaVersion))
		if err == badgerdb.ErrKeyNotFound {
			return txn.Set([]byte(keySchemaVersion), []byte(currentSchemaVersion))
		}
		if err != nil {
			return fmt.Errorf("failed to read schema version: %w", err)
		}

		var existingVersion string
		err = item.Value(func(val []byte) error {
			existingVersion = string(val)
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to read schema version value: %w", err)
		}

		if existingVersion != currentSchemaVersion {
			return fmt.Errorf("unsupported schema version: %s (expected: %s)", existingVersion, currentSchemaVersion)
		}

		return nil
	})
}

// runGC runs periodic garbage collection in the background
func (b *BadgerStore) runGC(ctx context.Context) {
	defer b.gcWg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			err := b.db.RunValueLogGC(0.5)
			if err != nil && err != badgerdb.ErrNoRewrite {
				b.logger.Sugar().Warnw("Badger GC error", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

// SaveRoot persists the active merkle root.
func (b *BadgerStore) SaveRoot(root [32]byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("store is closed")
	}

	return b.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set([]byte(keyActiveRoot), root[:])
	})
}

// LoadRoot retrieves the active merkle root.
func (b *BadgerStore) LoadRoot() ([32]byte, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var root [32]byte

	if b.closed {
		return root, false, fmt.Errorf("store is closed")
	}

	found := false
	err := b.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(keyActiveRoot))
		if err == badgerdb.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			if len(val) != 32 {
				return fmt.Errorf("stored root has %d bytes, want 32", len(val))
			}
			copy(root[:], val)
			found = true
			return nil
		})
	})
	if err != nil {
		return [32]byte{}, false, pkgerrors.Wrap(err, "failed to load root")
	}

	return root, found, nil
}

// MarkClaimed atomically records a claim for the account.
// The existence check and the write happen in one transaction, so two
// racing claims for the same account cannot both be newly marked.
func (b *BadgerStore) MarkClaimed(account types.AccountID) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return false, fmt.Errorf("store is closed")
	}

	newlyMarked := false
	key := []byte(keyPrefixClaim + string(account))

	err := b.db.Update(func(txn *badgerdb.Txn) error {
		_, err := txn.Get(key)
		if err == nil {
			return nil // already claimed
		}
		if err != badgerdb.ErrKeyNotFound {
			return err
		}

		if err := txn.Set(key, []byte{1}); err != nil {
			return err
		}
		newlyMarked = true
		return nil
	})
	if err != nil {
		return false, pkgerrors.Wrapf(err, "failed to mark claim for %s", account)
	}

	return newlyMarked, nil
}

// HasClaimed reports whether the account has claimed.
func (b *BadgerStore) HasClaimed(account types.AccountID) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return false, fmt.Errorf("store is closed")
	}

	claimed := false
	err := b.db.View(func(txn *badgerdb.Txn) error {
		_, err := txn.Get([]byte(keyPrefixClaim + string(account)))
		if err == badgerdb.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		claimed = true
		return nil
	})
	if err != nil {
		return false, pkgerrors.Wrapf(err, "failed to check claim for %s", account)
	}

	return claimed, nil
}

// ListClaimed returns all claimed accounts sorted ascending.
func (b *BadgerStore) ListClaimed() ([]types.AccountID, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("store is closed")
	}

	result := make([]types.AccountID, 0)
	err := b.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(keyPrefixClaim)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().Key()
			result = append(result, types.AccountID(key[len(keyPrefixClaim):]))
		}
		return nil
	})
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to list claims")
	}

	// Badger iterates keys in byte order already, but don't depend on it
	sort.Slice(result, func(i, j int) bool {
		return result[i] < result[j]
	})

	return result, nil
}

// SavePendingTransfer records a failed transfer for later retry.
func (b *BadgerStore) SavePendingTransfer(pending *types.PendingTransfer) error {
	if pending == nil {
		return fmt.Errorf("cannot save nil PendingTransfer")
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("store is closed")
	}

	data, err := persistence.MarshalPendingTransfer(pending)
	if err != nil {
		return err
	}

	err = b.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set([]byte(keyPrefixPending+string(pending.AccountID)), data)
	})
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to save pending transfer for %s", pending.AccountID)
	}

	return nil
}

// LoadPendingTransfer retrieves the failed transfer record for an account.
func (b *BadgerStore) LoadPendingTransfer(account types.AccountID) (*types.PendingTransfer, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("store is closed")
	}

	var pending *types.PendingTransfer
	err := b.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(keyPrefixPending + string(account)))
		if err == badgerdb.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			pending, err = persistence.UnmarshalPendingTransfer(val)
			return err
		})
	})
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to load pending transfer for %s", account)
	}

	return pending, nil
}

// DeletePendingTransfer removes a failed transfer record. Idempotent.
func (b *BadgerStore) DeletePendingTransfer(account types.AccountID) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("store is closed")
	}

	err := b.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Delete([]byte(keyPrefixPending + string(account)))
	})
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to delete pending transfer for %s", account)
	}

	return nil
}

// ListPendingTransfers returns all failed transfer records sorted by account.
func (b *BadgerStore) ListPendingTransfers() ([]*types.PendingTransfer, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("store is closed")
	}

	result := make([]*types.PendingTransfer, 0)
	err := b.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefixPending)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				pending, err := persistence.UnmarshalPendingTransfer(val)
				if err != nil {
					return err
				}
				result = append(result, pending)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to list pending transfers")
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].AccountID < result[j].AccountID
	})

	return result, nil
}

// Close shuts down the store: stops GC and closes the database. Idempotent.
func (b *BadgerStore) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	b.gcCancel()
	b.gcWg.Wait()

	if err := b.db.Close(); err != nil {
		return pkgerrors.Wrap(err, "failed to close badger database")
	}

	b.logger.Sugar().Infow("Badger store closed")
	return nil
}

// HealthCheck verifies the store is operational.
func (b *BadgerStore) HealthCheck() error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("store is closed")
	}
	if b.db.IsClosed() {
		return fmt.Errorf("badger database is closed")
	}

	return nil
}

var _ persistence.IDistributorStore = (*BadgerStore)(nil)
