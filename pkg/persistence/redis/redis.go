package redis

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/driftlake/merkledrop-go/pkg/persistence"
	"github.com/driftlake/merkledrop-go/pkg/types"
)

// Key prefixes for namespacing in Redis
const (
	keyActiveRoot        = "drop:root:active"
	keyPrefixClaim       = "drop:claim:"
	keyPrefixPending     = "drop:pending:"
	keySchemaVersion     = "drop:metadata:schema_version"
	currentSchemaVersion = "v1"

	// Index sets for listing operations (Redis doesn't support prefix iteration natively)
	keySetClaims   = "drop:claims:index"
	keySetPendings = "drop:pendings:index"
)

// RedisStore is a distributor store backed by Redis.
// Suitable for cloud-native deployments where multiple readers share the
// claim ledger and the distributor instance owns all writes.
type RedisStore struct {
	client    *redis.Client
	logger    *zap.Logger
	keyPrefix string // Custom prefix for all keys
	mu        sync.RWMutex
	closed    bool
}

// RedisConfig holds the configuration for connecting to Redis
type RedisConfig struct {
	// Address is the Redis server address (host:port)
	Address string
	// Password is the optional Redis password
	Password string
	// DB is the Redis database number (0-15)
	DB int
	// KeyPrefix is an optional custom prefix for all keys (for multi-tenant
	// setups). If set, keys look like "myapp:drop:claim:alice".
	KeyPrefix string
}

// NewRedisStore creates a new Redis-backed distributor store.
func NewRedisStore(cfg *RedisConfig, logger *zap.Logger) (*RedisStore, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address cannot be empty")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	rs := &RedisStore{
		client:    client,
		logger:    logger,
		keyPrefix: cfg.KeyPrefix,
	}

	if err := rs.initSchema(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Sugar().Infow("Redis store initialized", "address", cfg.Address, "db", cfg.DB)

	return rs, nil
}

// prefixKey adds the custom key prefix (if configured) to a key
func (r *RedisStore) prefixKey(key string) string {
	if r.keyPrefix == "" {
		return key
	}
	return r.keyPrefix + key
}

// initSchema initializes or validates the schema version
func (r *RedisStore) initSchema(ctx context.Context) error {
	schemaKey := r.prefixKey(keySchemaVersion)

	existingVersion, err := r.client.Get(ctx, schemaKey).Result()
	if err == redis.Nil {
		return r.client.Set(ctx, schemaKey, currentSchemaVersion, 0).Err()
	}
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	if existingVersion != currentSchemaVersion {
		return fmt.Errorf("unsupported schema version: %s (expected: %s)", existingVersion, currentSchemaVersion)
	}

	return nil
}

// SaveRoot persists the active merkle root.
func (r *RedisStore) SaveRoot(root [32]byte) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return fmt.Errorf("store is closed")
	}

	ctx := context.Background()
	if err := r.client.Set(ctx, r.prefixKey(keyActiveRoot), root[:], 0).Err(); err != nil {
		return fmt.Errorf("failed to save root: %w", err)
	}

	return nil
}

// LoadRoot retrieves the active merkle root.
func (r *RedisStore) LoadRoot() ([32]byte, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var root [32]byte

	if r.closed {
		return root, false, fmt.Errorf("store is closed")
	}

	ctx := context.Background()
	data, err := r.client.Get(ctx, r.prefixKey(keyActiveRoot)).Bytes()
	if err == redis.Nil {
		return root, false, nil
	}
	if err != nil {
		return root, false, fmt.Errorf("failed to load root: %w", err)
	}
	if len(data) != 32 {
		return root, false, fmt.Errorf("stored root has %d bytes, want 32", len(data))
	}

	copy(root[:], data)
	return root, true, nil
}

// MarkClaimed atomically records a claim for the account using SETNX,
// so two racing claims for the same account cannot both be newly marked.
func (r *RedisStore) MarkClaimed(account types.AccountID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return false, fmt.Errorf("store is closed")
	}

	ctx := context.Background()
	key := r.prefixKey(keyPrefixClaim + string(account))

	newlyMarked, err := r.client.SetNX(ctx, key, "1", 0).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark claim for %s: %w", account, err)
	}

	if newlyMarked {
		if err := r.client.SAdd(ctx, r.prefixKey(keySetClaims), string(account)).Err(); err != nil {
			return false, fmt.Errorf("failed to index claim for %s: %w", account, err)
		}
	}

	return newlyMarked, nil
}

// HasClaimed reports whether the account has claimed.
func (r *RedisStore) HasClaimed(account types.AccountID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return false, fmt.Errorf("store is closed")
	}

	ctx := context.Background()
	n, err := r.client.Exists(ctx, r.prefixKey(keyPrefixClaim+string(account))).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check claim for %s: %w", account, err)
	}

	return n > 0, nil
}

// ListClaimed returns all claimed accounts sorted ascending.
func (r *RedisStore) ListClaimed() ([]types.AccountID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, fmt.Errorf("store is closed")
	}

	ctx := context.Background()
	members, err := r.client.SMembers(ctx, r.prefixKey(keySetClaims)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list claims: %w", err)
	}

	sort.Strings(members)
	result := make([]types.AccountID, len(members))
	for i, m := range members {
		result[i] = types.AccountID(m)
	}

	return result, nil
}

// SavePendingTransfer records a failed transfer for later retry.
func (r *RedisStore) SavePendingTransfer(pending *types.PendingTransfer) error {
	if pending == nil {
		return fmt.Errorf("cannot save nil PendingTransfer")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return fmt.Errorf("store is closed")
	}

	data, err := persistence.MarshalPendingTransfer(pending)
	if err != nil {
		return err
	}

	ctx := context.Background()
	key := r.prefixKey(keyPrefixPending + string(pending.AccountID))
	indexKey := r.prefixKey(keySetPendings)

	pipe := r.client.Pipeline()
	pipe.Set(ctx, key, data, 0)
	pipe.SAdd(ctx, indexKey, string(pending.AccountID))

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save pending transfer for %s: %w", pending.AccountID, err)
	}

	return nil
}

// LoadPendingTransfer retrieves the failed transfer record for an account.
func (r *RedisStore) LoadPendingTransfer(account types.AccountID) (*types.PendingTransfer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, fmt.Errorf("store is closed")
	}

	ctx := context.Background()
	data, err := r.client.Get(ctx, r.prefixKey(keyPrefixPending+string(account))).Bytes()
	if err == redis.Nil {
		return nil, nil // Not found is not an error
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load pending transfer for %s: %w", account, err)
	}

	return persistence.UnmarshalPendingTransfer(data)
}

// DeletePendingTransfer removes a failed transfer record. Idempotent.
func (r *RedisStore) DeletePendingTransfer(account types.AccountID) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return fmt.Errorf("store is closed")
	}

	ctx := context.Background()
	key := r.prefixKey(keyPrefixPending + string(account))
	indexKey := r.prefixKey(keySetPendings)

	pipe := r.client.Pipeline()
	pipe.Del(ctx, key)
	pipe.SRem(ctx, indexKey, string(account))

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete pending transfer for %s: %w", account, err)
	}

	return nil
}

// ListPendingTransfers returns all failed transfer records sorted by account.
func (r *RedisStore) ListPendingTransfers() ([]*types.PendingTransfer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, fmt.Errorf("store is closed")
	}

	ctx := context.Background()
	members, err := r.client.SMembers(ctx, r.prefixKey(keySetPendings)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list pending transfers: %w", err)
	}
	sort.Strings(members)

	result := make([]*types.PendingTransfer, 0, len(members))
	for _, m := range members {
		pending, err := r.loadPendingTransferLocked(ctx, types.AccountID(m))
		if err != nil {
			return nil, err
		}
		if pending != nil {
			result = append(result, pending)
		}
	}

	return result, nil
}

// loadPendingTransferLocked reads a pending transfer without re-acquiring
// the store lock. Callers must hold at least a read lock.
func (r *RedisStore) loadPendingTransferLocked(ctx context.Context, account types.AccountID) (*types.PendingTransfer, error) {
	data, err := r.client.Get(ctx, r.prefixKey(keyPrefixPending+string(account))).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load pending transfer for %s: %w", account, err)
	}

	return persistence.UnmarshalPendingTransfer(data)
}

// Close shuts down the store. Idempotent.
func (r *RedisStore) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	if err := r.client.Close(); err != nil {
		return fmt.Errorf("failed to close redis client: %w", err)
	}

	r.logger.Sugar().Infow("Redis store closed")
	return nil
}

// HealthCheck verifies the store is operational.
func (r *RedisStore) HealthCheck() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return fmt.Errorf("store is closed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}

	return nil
}

var _ persistence.IDistributorStore = (*RedisStore)(nil)
