package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/driftlake/merkledrop-go/pkg/config"
	"github.com/driftlake/merkledrop-go/pkg/distributor"
	"github.com/driftlake/merkledrop-go/pkg/ledger"
	"github.com/driftlake/merkledrop-go/pkg/logger"
	"github.com/driftlake/merkledrop-go/pkg/persistence"
	"github.com/driftlake/merkledrop-go/pkg/persistence/badger"
	"github.com/driftlake/merkledrop-go/pkg/persistence/memory"
	"github.com/driftlake/merkledrop-go/pkg/persistence/redis"
	"github.com/driftlake/merkledrop-go/pkg/registry"
	"github.com/driftlake/merkledrop-go/pkg/token"
	"go.uber.org/zap"
)

func main() {
	app := &cli.App{
		Name:  "merkledrop-server",
		Usage: "Merkle airdrop distributor server",
		Description: `An airdrop claim server that verifies merkle proofs of eligibility.

This server implements:
- Proof-gated token claims with at-most-once settlement
- Owner-gated merkle root rotation for successive drop rounds
- A retry queue for claims whose token transfer failed
- Pluggable persistence (memory, badger, redis)`,
		Version: "1.0.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "owner",
				Usage:    "Account authorized to rotate the merkle root",
				EnvVars:  []string{config.EnvDropOwner},
				Required: true,
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Value:   8080,
				Usage:   "HTTP server port",
				EnvVars: []string{config.EnvDropPort},
			},
			&cli.StringFlag{
				Name:    "root",
				Usage:   "Hex-encoded initial merkle root (a persisted root takes precedence)",
				EnvVars: []string{config.EnvDropRoot},
			},
			&cli.StringFlag{
				Name:    "persistence",
				Value:   string(config.PersistenceTypeMemory),
				Usage:   "Persistence backend: " + config.GetSupportedPersistenceTypesString(),
				EnvVars: []string{config.EnvDropPersistence},
			},
			&cli.StringFlag{
				Name:    "badger-dir",
				Usage:   "Data directory for the badger backend",
				EnvVars: []string{config.EnvDropBadgerDir},
			},
			&cli.StringFlag{
				Name:    "redis-address",
				Usage:   "Redis server address (host:port) for the redis backend",
				EnvVars: []string{config.EnvDropRedisAddress},
			},
			&cli.StringFlag{
				Name:    "redis-password",
				Usage:   "Redis password",
				EnvVars: []string{config.EnvDropRedisPassword},
			},
			&cli.IntFlag{
				Name:    "redis-db",
				Usage:   "Redis database number (0-15)",
				EnvVars: []string{config.EnvDropRedisDB},
			},
			&cli.StringFlag{
				Name:     "token-service-url",
				Usage:    "Base URL of the external token service",
				EnvVars:  []string{config.EnvDropTokenServiceURL},
				Required: true,
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Usage:   "Enable verbose logging",
				EnvVars: []string{config.EnvDropVerbose},
			},
		},
		Action: runServer,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func runServer(c *cli.Context) error {
	cfg := parseConfig(c)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = l.Sync() }()

	store, err := buildStore(cfg, l)
	if err != nil {
		return fmt.Errorf("failed to initialize persistence: %w", err)
	}
	defer func() { _ = store.Close() }()

	initialRoot, err := cfg.ParsedInitialRoot()
	if err != nil {
		return err
	}

	rootRegistry, err := registry.NewRootRegistry(cfg.OwnerAccount(), initialRoot, store, l)
	if err != nil {
		return fmt.Errorf("failed to initialize root registry: %w", err)
	}

	d := distributor.New(
		rootRegistry,
		ledger.NewClaimLedger(store, l),
		store,
		token.NewClient(cfg.TokenServiceURL, l),
		l,
	)

	srv := distributor.NewServer(d, cfg.Port, l)
	if err := srv.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	if cfg.Verbose {
		fmt.Printf("Merkledrop Server Configuration:\n")
		fmt.Printf("  Owner: %s\n", cfg.Owner)
		fmt.Printf("  Port: %d\n", cfg.Port)
		fmt.Printf("  Persistence: %s\n", cfg.Persistence)
		fmt.Printf("  Token service: %s\n", cfg.TokenServiceURL)
		fmt.Printf("\n")
	}

	fmt.Printf("Merkledrop server running on port %d\n", cfg.Port)
	fmt.Printf("Endpoints:\n")
	fmt.Printf("  POST /claim   - Submit a proof-gated claim\n")
	fmt.Printf("  POST /retry   - Replay a failed transfer\n")
	fmt.Printf("  POST /root    - Rotate the merkle root (owner only)\n")
	fmt.Printf("  GET  /root    - Active merkle root\n")
	fmt.Printf("  GET  /claimed - Claim status for an account\n")
	fmt.Printf("  GET  /pending - Parked transfer for an account\n")
	fmt.Printf("  GET  /healthz - Store health\n")
	fmt.Printf("\nPress Ctrl+C to stop\n")

	waitForShutdown(srv, l)
	return nil
}

func parseConfig(c *cli.Context) *config.ServerConfig {
	return &config.ServerConfig{
		Owner:       c.String("owner"),
		Port:        c.Int("port"),
		InitialRoot: c.String("root"),
		Persistence: config.PersistenceType(c.String("persistence")),
		BadgerDir:   c.String("badger-dir"),
		Redis: config.RedisSettings{
			Address:  c.String("redis-address"),
			Password: c.String("redis-password"),
			DB:       c.Int("redis-db"),
		},
		TokenServiceURL: c.String("token-service-url"),
		Verbose:         c.Bool("verbose"),
		Debug:           c.Bool("verbose"),
	}
}

func buildStore(cfg *config.ServerConfig, l *zap.Logger) (persistence.IDistributorStore, error) {
	switch cfg.Persistence {
	case config.PersistenceTypeMemory:
		return memory.NewMemoryStore(), nil
	case config.PersistenceTypeBadger:
		return badger.NewBadgerStore(cfg.BadgerDir, l)
	case config.PersistenceTypeRedis:
		return redis.NewRedisStore(&redis.RedisConfig{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, l)
	default:
		return nil, fmt.Errorf("unsupported persistence type: %s", cfg.Persistence)
	}
}

func waitForShutdown(srv *distributor.Server, l *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	l.Sugar().Infow("Shutting down", "signal", sig.String())

	if err := srv.Stop(); err != nil {
		l.Sugar().Errorw("Error stopping server", "error", err)
	}
}
