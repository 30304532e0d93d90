// Package server exposes the ticket, organisation, user and auth endpoints
// over JSON HTTP.
package server

import (
	"net/http"
	"time"

	"github.com/klauspost/compress/gzhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/tenantdesk/internal/auth"
	httpmiddleware "github.com/wolfeidau/tenantdesk/internal/http"
	"github.com/wolfeidau/tenantdesk/internal/logger"
	"github.com/wolfeidau/tenantdesk/internal/login"
	"github.com/wolfeidau/tenantdesk/internal/query"
	"github.com/wolfeidau/tenantdesk/internal/store"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Stores are the stores the handlers read and write.
type Stores struct {
	Tickets       store.TicketStore
	Organizations store.OrganizationStore
	Users         store.UserStore
}

// Config configures the HTTP surface.
type Config struct {
	CORSOrigins []string
	Query       query.Config
	Environment string
}

// Server wires the stores, the login service and the token verifier to routes.
type Server struct {
	stores   Stores
	login    *login.Service
	verifier auth.Verifier
	cfg      Config
}

// NewServer creates a new server with the given stores
func NewServer(stores Stores, loginService *login.Service, verifier auth.Verifier, cfg Config) *Server {
	cfg.Query.ApplyDefaults()
	if cfg.Environment == "" {
		cfg.Environment = "production"
	}

	return &Server{
		stores:   stores,
		login:    loginService,
		verifier: verifier,
		cfg:      cfg,
	}
}

// Handler returns the HTTP handler for the server
func (s *Server) Handler(log zerolog.Logger) http.Handler {
	mux := http.NewServeMux()
	authn := auth.Middleware(s.verifier)
	protected := func(h http.HandlerFunc) http.Handler { return authn(h) }

	// Health check endpoint for load balancer
	mux.HandleFunc("GET /ping", s.ping)

	mux.HandleFunc("POST /api/auth/register", s.register)
	mux.HandleFunc("POST /api/auth/login", s.loginUser)
	mux.Handle("GET /api/auth/profile", protected(s.profile))

	mux.Handle("GET /api/tickets", protected(s.listTickets))
	mux.Handle("POST /api/tickets", protected(s.createTicket))
	mux.Handle("GET /api/tickets/stats", protected(s.ticketStats))
	mux.Handle("GET /api/tickets/{id}", protected(s.getTicket))
	mux.Handle("PATCH /api/tickets/{id}", protected(s.updateTicket))
	mux.Handle("DELETE /api/tickets/{id}", protected(s.deleteTicket))

	mux.Handle("GET /api/organisations", protected(s.listOrganizations))
	mux.Handle("POST /api/organisations", protected(s.createOrganization))
	mux.Handle("GET /api/organisations/{id}", protected(s.getOrganization))
	mux.Handle("PATCH /api/organisations/{id}", protected(s.updateOrganization))
	mux.Handle("DELETE /api/organisations/{id}", protected(s.deleteOrganization))

	mux.Handle("GET /api/users", protected(s.listUsers))
	mux.Handle("POST /api/users", protected(s.createUser))
	mux.Handle("GET /api/users/{id}", protected(s.getUser))

	var handler http.Handler = mux
	handler = logger.RequestLogger(log)(handler)
	handler = httpmiddleware.ClientIPMiddleware()(handler)
	handler = httpmiddleware.RequestIDMiddleware()(handler)
	handler = withCORS(s.cfg.CORSOrigins, handler)
	handler = gzhttp.GzipHandler(handler)

	return otelhttp.NewHandler(handler, "tenantdesk")
}

func (s *Server) ping(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	writeRaw(w, r, map[string]any{
		"message":     "pong",
		"timestamp":   time.Now().UTC(),
		"environment": s.cfg.Environment,
	})
}

// withCORS allows browser clients on the configured origins to call the API
// with a bearer token.
func withCORS(allowedOrigins []string, h http.Handler) http.Handler {
	middleware := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{"Authorization", "Content-Type", httpmiddleware.RequestIDHeader},
		ExposedHeaders: []string{httpmiddleware.RequestIDHeader},
		MaxAge:         int((10 * time.Minute).Seconds()),
	})
	return middleware.Handler(h)
}
