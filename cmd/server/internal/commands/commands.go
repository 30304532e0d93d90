package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/tenantdesk/internal/auth"
	"github.com/wolfeidau/tenantdesk/internal/query"
	"github.com/wolfeidau/tenantdesk/internal/server"
	memorystore "github.com/wolfeidau/tenantdesk/internal/store/memory"
	postgresstore "github.com/wolfeidau/tenantdesk/internal/store/postgres"
)

type Globals struct {
	Debug   bool
	Version string
}

func configureHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       5 * time.Minute,
		MaxHeaderBytes:    8 * 1024, // 8KiB
	}
}

// StoreFlags selects and configures the storage backend.
type StoreFlags struct {
	StoreType     string             `help:"store type (memory or postgres)" default:"memory" env:"TENANTDESK_STORE_TYPE" enum:"memory,postgres"`
	PostgresStore PostgresStoreFlags `embed:"" prefix:"postgres-"`
}

type PostgresStoreFlags struct {
	// Connection Configuration
	ConnString string `help:"PostgreSQL connection string" env:"POSTGRES_CONNECTION_STRING"`

	// Connection Pool Configuration
	MaxConns        int32         `help:"maximum number of connections in pool" default:"20"`
	MinConns        int32         `help:"minimum number of connections in pool" default:"2"`
	MaxConnLifetime time.Duration `help:"maximum connection lifetime" default:"1h"`
	MaxConnIdleTime time.Duration `help:"maximum connection idle time" default:"30m"`
	StartupTimeout  time.Duration `help:"how long to keep retrying the first connection" default:"30s" env:"TENANTDESK_POSTGRES_STARTUP_TIMEOUT"`

	// Repository Configuration
	QueryTimeout  int32 `help:"maximum seconds one repository operation may run" default:"10"`
	DefaultLimit  int   `help:"default page size for list requests" default:"10"`
	MaxLimit      int   `help:"maximum page size for list requests" default:"100"`
	StrictBinding bool  `help:"fail operations whose principal binding cannot be verified" default:"false" env:"TENANTDESK_POSTGRES_STRICT_BINDING"`

	// Operations
	AutoMigrate     bool          `help:"run database migrations on startup" default:"false" env:"TENANTDESK_POSTGRES_AUTO_MIGRATE"`
	MonitorInterval time.Duration `help:"interval between pool statistics log lines (0 disables)" default:"1m"`
}

func (s *PostgresStoreFlags) Validate() error {
	if s.ConnString == "" {
		return errors.New("PostgreSQL connection string is required (--postgres-conn-string or POSTGRES_CONNECTION_STRING)")
	}
	return nil
}

func (s *PostgresStoreFlags) poolConfig() *postgresstore.PoolConfig {
	return &postgresstore.PoolConfig{
		ConnString:      s.ConnString,
		MaxConns:        s.MaxConns,
		MinConns:        s.MinConns,
		MaxConnLifetime: s.MaxConnLifetime,
		MaxConnIdleTime: s.MaxConnIdleTime,
		StartupTimeout:  s.StartupTimeout,
	}
}

func (s *PostgresStoreFlags) repositoryConfig() postgresstore.RepositoryConfig {
	return postgresstore.RepositoryConfig{
		DefaultLimit:        s.DefaultLimit,
		MaxLimit:            s.MaxLimit,
		QueryTimeoutSeconds: s.QueryTimeout,
		StrictBinding:       s.StrictBinding,
	}
}

// openPool connects to PostgreSQL and optionally runs the embedded migrations.
func (s *PostgresStoreFlags) openPool(ctx context.Context, migrate bool) (*pgxpool.Pool, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	pool, err := postgresstore.NewPool(ctx, s.poolConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if migrate {
		if err := postgresstore.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info().Msg("Database migrations completed")
	}

	return pool, nil
}

// backend is an opened set of stores. Close releases the pool, if any.
type backend struct {
	stores server.Stores
	query  query.Config
	pool   *pgxpool.Pool
}

func (b *backend) Close() {
	if b.pool != nil {
		b.pool.Close()
	}
}

func (f *StoreFlags) open(ctx context.Context) (*backend, error) {
	switch f.StoreType {
	case "postgres":
		pool, err := f.PostgresStore.openPool(ctx, f.PostgresStore.AutoMigrate)
		if err != nil {
			return nil, err
		}

		cfg := f.PostgresStore.repositoryConfig()
		tickets, err := postgresstore.NewTicketStore(pool, cfg)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to create ticket store: %w", err)
		}

		log.Info().Bool("strict_binding", cfg.StrictBinding).Msg("Using PostgreSQL stores with shared connection pool")

		return &backend{
			stores: server.Stores{
				Tickets:       tickets,
				Organizations: postgresstore.NewOrganizationStore(pool),
				Users:         postgresstore.NewUserStore(pool),
			},
			query: cfg.QueryConfig(),
			pool:  pool,
		}, nil

	default:
		db := memorystore.NewDatabase()
		qc := query.DefaultConfig()

		log.Info().Msg("Using in-memory stores")

		return &backend{
			stores: server.Stores{
				Tickets:       memorystore.NewTicketStore(db, qc),
				Organizations: memorystore.NewOrganizationStore(db),
				Users:         memorystore.NewUserStore(db),
			},
			query: qc,
		}, nil
	}
}

// TokenFlags configures access token signing.
type TokenFlags struct {
	SigningKey     string        `help:"PEM encoded P-256 private key used to sign access tokens" env:"TENANTDESK_TOKEN_SIGNING_KEY"`
	SigningKeyFile string        `help:"path to a PEM encoded P-256 private key" type:"existingfile" env:"TENANTDESK_TOKEN_SIGNING_KEY_FILE"`
	TTL            time.Duration `help:"access token lifetime" default:"24h" env:"TENANTDESK_TOKEN_TTL"`
	CacheSize      int64         `help:"verified tokens kept in memory, 0 disables the cache" default:"10000" env:"TENANTDESK_TOKEN_CACHE_SIZE"`
	CacheTTL       time.Duration `help:"longest time a verified token is trusted without checking its signature again" default:"5m"`
}

// issuer loads the signing key. With allowGenerated set a throwaway key is
// generated when none is configured; tokens then die with the process.
func (t *TokenFlags) issuer(allowGenerated bool) (*auth.TokenIssuer, error) {
	keyPEM := t.SigningKey
	if keyPEM == "" && t.SigningKeyFile != "" {
		data, err := os.ReadFile(t.SigningKeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read signing key: %w", err)
		}
		keyPEM = string(data)
	}

	if keyPEM == "" {
		if !allowGenerated {
			return nil, errors.New("token signing key is required (--token-signing-key or TENANTDESK_TOKEN_SIGNING_KEY)")
		}

		log.Warn().Msg("No token signing key configured, generating a temporary key")
		generated, err := auth.GenerateSigningKeyPEM()
		if err != nil {
			return nil, err
		}
		keyPEM = generated
	}

	return auth.NewTokenIssuer(keyPEM, t.TTL)
}

// verifier checks tokens from issuer, through the token cache when enabled.
// The returned close func releases the cache.
func (t *TokenFlags) verifier(issuer *auth.TokenIssuer) (auth.Verifier, func(), error) {
	base := auth.NewTokenVerifier(issuer.PublicKey())
	if t.CacheSize <= 0 {
		return base, func() {}, nil
	}

	cached, err := auth.NewCachingVerifier(base, t.CacheSize, t.CacheTTL)
	if err != nil {
		return nil, nil, err
	}
	return cached, cached.Close, nil
}
