package registry

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/driftlake/merkledrop-go/pkg/merkle"
	"github.com/driftlake/merkledrop-go/pkg/persistence"
	"github.com/driftlake/merkledrop-go/pkg/types"
)

// RootRegistry holds the active merkle root and gates rotation behind the
// owner account. Rotation is non-retroactive: it only changes what future
// verifications check against, never what was already claimed.
type RootRegistry struct {
	owner  types.AccountID
	store  persistence.IDistributorStore
	logger *zap.Logger

	mu   sync.RWMutex
	root [32]byte
}

// NewRootRegistry creates a root registry owned by the given account.
// A previously persisted root takes precedence over initialRoot, so a
// restart does not silently rewind a rotation.
func NewRootRegistry(owner types.AccountID, initialRoot [32]byte, store persistence.IDistributorStore, logger *zap.Logger) (*RootRegistry, error) {
	if owner == "" {
		return nil, fmt.Errorf("owner account cannot be empty")
	}

	r := &RootRegistry{
		owner:  owner,
		store:  store,
		logger: logger,
	}

	persisted, found, err := store.LoadRoot()
	if err != nil {
		return nil, fmt.Errorf("failed to load persisted root: %w", err)
	}

	if found {
		r.root = persisted
		logger.Sugar().Infow("Loaded persisted merkle root", "root", merkle.EncodeDigest(persisted))
		return r, nil
	}

	if err := store.SaveRoot(initialRoot); err != nil {
		return nil, fmt.Errorf("failed to persist initial root: %w", err)
	}
	r.root = initialRoot
	logger.Sugar().Infow("Initialized merkle root", "root", merkle.EncodeDigest(initialRoot))

	return r, nil
}

// GetRoot returns the currently active merkle root.
func (r *RootRegistry) GetRoot() [32]byte {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.root
}

// Owner returns the account authorized to rotate the root.
func (r *RootRegistry) Owner() types.AccountID {
	return r.owner
}

// SetRoot replaces the active root. Only the owner may rotate; any other
// caller gets ErrUnauthorized and the root is left unchanged. The new root
// is not validated beyond authorization: the registry trusts the owner's
// off-system tree construction.
func (r *RootRegistry) SetRoot(newRoot [32]byte, caller types.AccountID) error {
	if caller != r.owner {
		return fmt.Errorf("%w: %s cannot rotate the root", types.ErrUnauthorized, caller)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.store.SaveRoot(newRoot); err != nil {
		return fmt.Errorf("failed to persist new root: %w", err)
	}

	previous := r.root
	r.root = newRoot

	r.logger.Sugar().Infow("Merkle root rotated",
		"previous", merkle.EncodeDigest(previous),
		"active", merkle.EncodeDigest(newRoot),
	)

	return nil
}
