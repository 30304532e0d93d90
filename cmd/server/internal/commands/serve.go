package commands

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	zlog "github.com/rs/zerolog/log"
	"github.com/wolfeidau/tenantdesk/internal/logger"
	"github.com/wolfeidau/tenantdesk/internal/login"
	"github.com/wolfeidau/tenantdesk/internal/server"
	postgresstore "github.com/wolfeidau/tenantdesk/internal/store/postgres"
	"github.com/wolfeidau/tenantdesk/internal/telemetry"
	"golang.org/x/net/netutil"
)

type ServeCmd struct {
	// Server configuration
	Listen string `help:"HTTP server listen address" default:"0.0.0.0:8080" env:"TENANTDESK_LISTEN"`
	Cert   string `help:"path to TLS cert file" default:"" env:"TENANTDESK_TLS_CERT"`
	Key    string `help:"path to TLS key file" default:"" env:"TENANTDESK_TLS_KEY"`

	MaxConnections int `help:"maximum simultaneous client connections, 0 for unlimited" default:"0" env:"TENANTDESK_MAX_CONNECTIONS"`

	// CORS configuration
	CORSOrigins []string `help:"allowed CORS origins for API requests" default:"http://localhost:3000" env:"TENANTDESK_CORS_ORIGINS"`

	// Development and operational modes
	Dev         bool    `help:"development mode, generates a signing key when none is configured" default:"false" env:"TENANTDESK_DEV"`
	Tracing     bool    `help:"enable tracing and metrics export" default:"false" env:"TENANTDESK_TRACING"`
	SampleRatio float64 `help:"fraction of traces sampled" default:"1" env:"TENANTDESK_TRACE_SAMPLE_RATIO"`
	SeedFile    string  `help:"YAML fixtures loaded on startup" type:"existingfile" env:"TENANTDESK_SEED_FILE"`

	Store StoreFlags `embed:""`
	Token TokenFlags `embed:"" prefix:"token-"`
}

func (c *ServeCmd) Run(ctx context.Context, globals *Globals) error {
	log := logger.Setup(globals.Debug || c.Dev)
	zlog.Logger = log

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().Str("version", globals.Version).Bool("debug", globals.Debug).Msg("Starting server")

	environment := "production"
	if c.Dev {
		environment = "development"
	}

	// Setup telemetry if enabled
	if c.Tracing {
		log.Info().Msg("Tracing is enabled")
		shutdown, err := telemetry.InitTelemetry(ctx, telemetry.Config{
			ServiceName: "tenantdesk-server",
			Version:     globals.Version,
			Environment: environment,
			SampleRatio: c.SampleRatio,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without metrics")
			shutdown = func(ctx context.Context) error { return nil }
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("Failed to shutdown telemetry")
			}
		}()
	}

	b, err := c.Store.open(ctx)
	if err != nil {
		return err
	}
	defer b.Close()

	if b.pool != nil && c.Store.PostgresStore.MonitorInterval > 0 {
		go postgresstore.MonitorPool(ctx, b.pool, c.Store.PostgresStore.MonitorInterval)
	}

	issuer, err := c.Token.issuer(c.Dev)
	if err != nil {
		return err
	}

	loginService, err := login.NewService(login.Stores{Users: b.stores.Users, Organizations: b.stores.Organizations}, issuer)
	if err != nil {
		return fmt.Errorf("failed to create login service: %w", err)
	}

	if c.SeedFile != "" {
		fixtures, err := readFixtures(c.SeedFile)
		if err != nil {
			return err
		}
		if err := fixtures.load(ctx, b.stores, loginService); err != nil {
			return fmt.Errorf("failed to seed %s: %w", c.SeedFile, err)
		}
	}

	verifier, closeVerifier, err := c.Token.verifier(issuer)
	if err != nil {
		return err
	}
	defer closeVerifier()

	srv := server.NewServer(b.stores, loginService, verifier, server.Config{
		CORSOrigins: c.CORSOrigins,
		Query:       b.query,
		Environment: environment,
	})

	httpServer := configureHTTPServer(c.Listen, srv.Handler(log))

	ln, err := net.Listen("tcp", c.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", c.Listen, err)
	}
	if c.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, c.MaxConnections)
	}

	errCh := make(chan error, 1)
	go func() {
		useTLS := c.Cert != "" && c.Key != ""
		log.Info().
			Str("addr", ln.Addr().String()).
			Bool("tls", useTLS).
			Int("max_connections", c.MaxConnections).
			Msg("Starting HTTP server")

		if useTLS {
			errCh <- httpServer.ServeTLS(ln, c.Cert, c.Key)
			return
		}
		errCh <- httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return httpServer.Shutdown(shutdownCtx)
}
