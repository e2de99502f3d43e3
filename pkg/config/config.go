package config

import (
	"fmt"

	"k8s.io/apimachinery/pkg/util/validation/field"

	"github.com/driftlake/merkledrop-go/pkg/merkle"
	"github.com/driftlake/merkledrop-go/pkg/types"
)

// Environment variable names for distributor server configuration
const (
	EnvDropOwner           = "MERKLEDROP_OWNER"
	EnvDropPort            = "MERKLEDROP_PORT"
	EnvDropRoot            = "MERKLEDROP_ROOT"
	EnvDropPersistence     = "MERKLEDROP_PERSISTENCE"
	EnvDropBadgerDir       = "MERKLEDROP_BADGER_DIR"
	EnvDropRedisAddress    = "MERKLEDROP_REDIS_ADDRESS"
	EnvDropRedisPassword   = "MERKLEDROP_REDIS_PASSWORD"
	EnvDropRedisDB         = "MERKLEDROP_REDIS_DB"
	EnvDropTokenServiceURL = "MERKLEDROP_TOKEN_SERVICE_URL"
	EnvDropVerbose         = "MERKLEDROP_VERBOSE"
)

type PersistenceType string

func (p PersistenceType) String() string {
	return string(p)
}

const (
	PersistenceTypeMemory PersistenceType = "memory"
	PersistenceTypeBadger PersistenceType = "badger"
	PersistenceTypeRedis  PersistenceType = "redis"
)

// GetSupportedPersistenceTypesString returns supported backends for CLI help
func GetSupportedPersistenceTypesString() string {
	return fmt.Sprintf("%s, %s, %s", PersistenceTypeMemory, PersistenceTypeBadger, PersistenceTypeRedis)
}

// RedisSettings holds the Redis backend connection settings
type RedisSettings struct {
	Address  string `json:"address"`
	Password string `json:"password,omitempty"`
	DB       int    `json:"db"`
}

func (rs *RedisSettings) Validate() error {
	var allErrors field.ErrorList
	if rs.Address == "" {
		allErrors = append(allErrors, field.Required(field.NewPath("address"), "redis address is required"))
	}
	if rs.DB < 0 || rs.DB > 15 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("db"), rs.DB, "redis DB must be between 0 and 15"))
	}
	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}

// ServerConfig represents the complete configuration for a distributor server
type ServerConfig struct {
	// Owner is the account authorized to rotate the merkle root
	Owner string `json:"owner"`
	Port  int    `json:"port"`

	// InitialRoot is the hex-encoded merkle root to install on first start.
	// A root already persisted by the store takes precedence.
	InitialRoot string `json:"initial_root"`

	// Persistence backend selection
	Persistence PersistenceType `json:"persistence"`
	BadgerDir   string          `json:"badger_dir,omitempty"`
	Redis       RedisSettings   `json:"redis,omitempty"`

	// TokenServiceURL is the base URL of the external token service
	TokenServiceURL string `json:"token_service_url"`

	// Operational settings
	Debug   bool `json:"debug"`
	Verbose bool `json:"verbose"`
}

// Validate validates the distributor server configuration
func (c *ServerConfig) Validate() error {
	if c.Owner == "" {
		return fmt.Errorf("owner account cannot be empty")
	}

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1-65535, got %d", c.Port)
	}

	if c.InitialRoot != "" {
		if _, err := merkle.DecodeDigest(c.InitialRoot); err != nil {
			return fmt.Errorf("invalid initial root: %w", err)
		}
	}

	switch c.Persistence {
	case PersistenceTypeMemory:
	case PersistenceTypeBadger:
		if c.BadgerDir == "" {
			return fmt.Errorf("badger persistence requires a data directory")
		}
	case PersistenceTypeRedis:
		if err := c.Redis.Validate(); err != nil {
			return fmt.Errorf("invalid redis settings: %w", err)
		}
	default:
		return fmt.Errorf("unsupported persistence type %q. Supported: %s",
			c.Persistence, GetSupportedPersistenceTypesString())
	}

	if c.TokenServiceURL == "" {
		return fmt.Errorf("token service URL cannot be empty")
	}

	return nil
}

// OwnerAccount returns the owner as a typed account ID
func (c *ServerConfig) OwnerAccount() types.AccountID {
	return types.AccountID(c.Owner)
}

// ParsedInitialRoot decodes the configured initial root, or returns the
// zero digest when none is configured.
func (c *ServerConfig) ParsedInitialRoot() ([32]byte, error) {
	if c.InitialRoot == "" {
		return [32]byte{}, nil
	}
	return merkle.DecodeDigest(c.InitialRoot)
}
