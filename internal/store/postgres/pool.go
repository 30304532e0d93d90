package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// DefaultApplicationName is reported to the server as application_name so
// tenantdesk sessions are easy to find in pg_stat_activity.
const DefaultApplicationName = "tenantdesk"

// PoolConfig configures the connection pool shared by every store.
type PoolConfig struct {
	// ConnString is a PostgreSQL URL or keyword/value connection string.
	ConnString string

	// ApplicationName overrides application_name unless the connection
	// string already sets one.
	ApplicationName string

	// MaxConns bounds concurrent repository operations, since each scoped
	// operation holds one connection for its whole transaction.
	MaxConns int32
	MinConns int32

	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
	ConnectTimeout    time.Duration

	// StartupTimeout bounds how long NewPool retries the first ping.
	StartupTimeout time.Duration
}

// Validate checks that the pool configuration is usable.
func (c *PoolConfig) Validate() error {
	if c.ConnString == "" {
		return fmt.Errorf("connection string is required")
	}
	if c.MinConns > c.MaxConns {
		return fmt.Errorf("min conns (%d) must not exceed max conns (%d)", c.MinConns, c.MaxConns)
	}
	return nil
}

// ApplyDefaults fills zero fields.
func (c *PoolConfig) ApplyDefaults() {
	if c.ApplicationName == "" {
		c.ApplicationName = DefaultApplicationName
	}
	if c.MaxConns == 0 {
		c.MaxConns = 20
	}
	if c.MinConns == 0 {
		c.MinConns = 2
	}
	if c.MaxConnLifetime == 0 {
		c.MaxConnLifetime = time.Hour
	}
	if c.MaxConnIdleTime == 0 {
		c.MaxConnIdleTime = 30 * time.Minute
	}
	if c.HealthCheckPeriod == 0 {
		c.HealthCheckPeriod = time.Minute
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	if c.StartupTimeout == 0 {
		c.StartupTimeout = 30 * time.Second
	}
}

func (c *PoolConfig) pgxConfig() (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(c.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	pc.MaxConns = c.MaxConns
	pc.MinConns = c.MinConns
	pc.MaxConnLifetime = c.MaxConnLifetime
	pc.MaxConnIdleTime = c.MaxConnIdleTime
	pc.HealthCheckPeriod = c.HealthCheckPeriod
	pc.ConnConfig.ConnectTimeout = c.ConnectTimeout

	if _, ok := pc.ConnConfig.RuntimeParams["application_name"]; !ok {
		pc.ConnConfig.RuntimeParams["application_name"] = c.ApplicationName
	}

	return pc, nil
}

// NewPool creates the pool and pings it with exponential backoff until the
// database answers or StartupTimeout elapses, so the server can start
// alongside a database that is still booting.
func NewPool(ctx context.Context, cfg *PoolConfig) (*pgxpool.Pool, error) {
	if cfg == nil {
		return nil, fmt.Errorf("pool config is required")
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pool config: %w", err)
	}

	pc, err := cfg.pgxConfig()
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	ping := func() (struct{}, error) { return struct{}{}, pool.Ping(ctx) }
	if _, err := backoff.Retry(ctx, ping,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(cfg.StartupTimeout),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Warn().Err(err).Dur("retry_in", next).Msg("Database not ready, retrying")
		}),
	); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().
		Str("database", pc.ConnConfig.Database).
		Str("host", pc.ConnConfig.Host).
		Int32("max_conns", cfg.MaxConns).
		Msg("Connected to PostgreSQL")

	return pool, nil
}

// PoolStats is a point in time view of pool usage.
type PoolStats struct {
	Total           int32
	Idle            int32
	Acquired        int32
	AcquireCount    int64
	EmptyAcquires   int64
	AcquireDuration time.Duration
}

// Stats snapshots the pool counters.
func Stats(pool *pgxpool.Pool) PoolStats {
	s := pool.Stat()
	return PoolStats{
		Total:           s.TotalConns(),
		Idle:            s.IdleConns(),
		Acquired:        s.AcquiredConns(),
		AcquireCount:    s.AcquireCount(),
		EmptyAcquires:   s.EmptyAcquireCount(),
		AcquireDuration: s.AcquireDuration(),
	}
}

// MonitorPool logs pool statistics every interval until ctx is done. Empty
// acquires mean an operation waited for a connection; a steady rise says
// MaxConns is too low for the request rate.
func MonitorPool(ctx context.Context, pool *pgxpool.Pool, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastEmpty int64
	for {
		select {
		case <-ticker.C:
			s := Stats(pool)

			ev := log.Debug()
			if s.EmptyAcquires > lastEmpty && s.Idle == 0 {
				ev = log.Warn()
			}
			ev.Int32("total_conns", s.Total).
				Int32("idle_conns", s.Idle).
				Int32("acquired_conns", s.Acquired).
				Int64("acquire_count", s.AcquireCount).
				Int64("empty_acquires", s.EmptyAcquires).
				Dur("acquire_duration", s.AcquireDuration).
				Msg("Connection pool stats")

			lastEmpty = s.EmptyAcquires
		case <-ctx.Done():
			return
		}
	}
}
