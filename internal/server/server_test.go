package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/tenantdesk/internal/auth"
	httpmiddleware "github.com/wolfeidau/tenantdesk/internal/http"
	"github.com/wolfeidau/tenantdesk/internal/login"
	"github.com/wolfeidau/tenantdesk/internal/models"
	"github.com/wolfeidau/tenantdesk/internal/query"
	"github.com/wolfeidau/tenantdesk/internal/store/memory"
	"golang.org/x/crypto/bcrypt"
)

type testEnvelope struct {
	Success    bool               `json:"success"`
	Message    string             `json:"message"`
	Data       json.RawMessage    `json:"data"`
	Pagination *models.Pagination `json:"pagination"`
}

type testServer struct {
	handler http.Handler
	login   *login.Service
	acme    *models.Organization
	globex  *models.Organization
	alice   string // standard, acme
	bob     string // standard, globex
	root    string // admin, acme
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()

	db := memory.NewDatabase()
	stores := Stores{
		Tickets:       memory.NewTicketStore(db, query.DefaultConfig()),
		Organizations: memory.NewOrganizationStore(db),
		Users:         memory.NewUserStore(db),
	}

	keyPEM, err := auth.GenerateSigningKeyPEM()
	require.NoError(t, err)
	issuer, err := auth.NewTokenIssuer(keyPEM, time.Hour)
	require.NoError(t, err)

	loginService, err := login.NewService(login.Stores{Users: stores.Users, Organizations: stores.Organizations}, issuer, login.WithBcryptCost(bcrypt.MinCost))
	require.NoError(t, err)

	ts := &testServer{login: loginService}

	ts.acme, err = stores.Organizations.Create(ctx, "Acme")
	require.NoError(t, err)
	ts.globex, err = stores.Organizations.Create(ctx, "Globex")
	require.NoError(t, err)

	ts.alice = ts.createUser(t, "alice@acme.test", ts.acme.ID, models.RoleStandard)
	ts.bob = ts.createUser(t, "bob@globex.test", ts.globex.ID, models.RoleStandard)
	ts.root = ts.createUser(t, "root@acme.test", ts.acme.ID, models.RoleAdmin)

	verifier, err := auth.NewCachingVerifier(auth.NewTokenVerifier(issuer.PublicKey()), 100, time.Minute)
	require.NoError(t, err)
	t.Cleanup(verifier.Close)

	srv := NewServer(stores, loginService, verifier, Config{
		CORSOrigins: []string{"https://desk.example.test"},
		Environment: "test",
	})
	ts.handler = srv.Handler(zerolog.Nop())

	return ts
}

func (ts *testServer) createUser(t *testing.T, email string, tenantID int64, role models.Role) string {
	t.Helper()
	ctx := context.Background()

	_, err := ts.login.CreateUser(ctx, login.Registration{Name: email, Email: email, Password: "password123", TenantID: tenantID}, role)
	require.NoError(t, err)

	res, err := ts.login.Login(ctx, email, "password123")
	require.NoError(t, err)
	return res.Token
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, testEnvelope) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	r := httptest.NewRequest(method, path, &buf)
	r.Header.Set("Content-Type", "application/json")
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, r)

	var env testEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w, env
}

func decodeData[T any](t *testing.T, env testEnvelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

func TestPing(t *testing.T) {
	ts := newTestServer(t)

	w, env := ts.do(t, http.MethodGet, "/ping", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "pong", env.Message)
	require.NotEmpty(t, w.Header().Get(httpmiddleware.RequestIDHeader))
}

func TestTickets_requireToken(t *testing.T) {
	ts := newTestServer(t)

	w, env := ts.do(t, http.MethodGet, "/api/tickets", "", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.False(t, env.Success)

	w, _ = ts.do(t, http.MethodGet, "/api/tickets", "not-a-token", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTickets_lifecycle(t *testing.T) {
	ts := newTestServer(t)

	w, env := ts.do(t, http.MethodPost, "/api/tickets", ts.alice, map[string]any{
		"title":       "Printer on fire",
		"description": "Third floor",
	})
	require.Equal(t, http.StatusCreated, w.Code, env.Message)
	created := decodeData[models.Ticket](t, env)
	require.Equal(t, models.StatusOpen, created.Status)
	require.Equal(t, ts.acme.ID, created.TenantID)

	ticketPath := "/api/tickets/" + jsonID(created.ID)

	t.Run("owner tenant can read", func(t *testing.T) {
		w, env := ts.do(t, http.MethodGet, ticketPath, ts.alice, nil)
		require.Equal(t, http.StatusOK, w.Code)
		got := decodeData[models.Ticket](t, env)
		require.NotNil(t, got.Owner)
		require.Equal(t, "alice@acme.test", got.Owner.Email)
	})

	t.Run("other tenant sees not found", func(t *testing.T) {
		w, _ := ts.do(t, http.MethodGet, ticketPath, ts.bob, nil)
		require.Equal(t, http.StatusNotFound, w.Code)

		w, _ = ts.do(t, http.MethodPatch, ticketPath, ts.bob, map[string]any{"status": "closed"})
		require.Equal(t, http.StatusNotFound, w.Code)

		w, _ = ts.do(t, http.MethodDelete, ticketPath, ts.bob, nil)
		require.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("list is scoped", func(t *testing.T) {
		w, env := ts.do(t, http.MethodGet, "/api/tickets", ts.alice, nil)
		require.Equal(t, http.StatusOK, w.Code)
		require.Len(t, decodeData[[]models.Ticket](t, env), 1)
		require.NotNil(t, env.Pagination)
		require.EqualValues(t, 1, env.Pagination.Total)

		w, env = ts.do(t, http.MethodGet, "/api/tickets", ts.bob, nil)
		require.Equal(t, http.StatusOK, w.Code)
		require.Empty(t, decodeData[[]models.Ticket](t, env))
		require.EqualValues(t, 0, env.Pagination.Total)
	})

	t.Run("admin sees every tenant but cannot create", func(t *testing.T) {
		w, env := ts.do(t, http.MethodPost, "/api/tickets", ts.bob, map[string]any{"title": "VPN down"})
		require.Equal(t, http.StatusCreated, w.Code, env.Message)

		w, env = ts.do(t, http.MethodGet, "/api/tickets", ts.root, nil)
		require.Equal(t, http.StatusOK, w.Code)
		require.Len(t, decodeData[[]models.Ticket](t, env), 2)

		w, _ = ts.do(t, http.MethodPost, "/api/tickets", ts.root, map[string]any{"title": "Admin ticket"})
		require.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("patch ignores fields outside the whitelist", func(t *testing.T) {
		w, env := ts.do(t, http.MethodPatch, ticketPath, ts.alice, map[string]any{
			"status":         "in_progress",
			"organisationId": ts.globex.ID,
			"userId":         999,
		})
		require.Equal(t, http.StatusOK, w.Code, env.Message)
		got := decodeData[models.Ticket](t, env)
		require.Equal(t, models.StatusInProgress, got.Status)
		require.Equal(t, ts.acme.ID, got.TenantID)
		require.Equal(t, created.OwnerUserID, got.OwnerUserID)
	})

	t.Run("invalid status", func(t *testing.T) {
		w, env := ts.do(t, http.MethodPatch, ticketPath, ts.alice, map[string]any{"status": "archived"})
		require.Equal(t, http.StatusBadRequest, w.Code)
		require.False(t, env.Success)
	})

	t.Run("stats", func(t *testing.T) {
		w, env := ts.do(t, http.MethodGet, "/api/tickets/stats", ts.alice, nil)
		require.Equal(t, http.StatusOK, w.Code)
		stats := decodeData[models.TicketStats](t, env)
		require.EqualValues(t, 1, stats.Total)
		require.EqualValues(t, 1, stats.ByStatus[models.StatusInProgress])
	})

	t.Run("delete", func(t *testing.T) {
		w, _ := ts.do(t, http.MethodDelete, ticketPath, ts.alice, nil)
		require.Equal(t, http.StatusOK, w.Code)

		w, _ = ts.do(t, http.MethodGet, ticketPath, ts.alice, nil)
		require.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestTickets_badRequests(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
	}{
		{name: "limit above max", method: http.MethodGet, path: "/api/tickets?limit=500"},
		{name: "unknown status filter", method: http.MethodGet, path: "/api/tickets?status=bogus"},
		{name: "non numeric id", method: http.MethodGet, path: "/api/tickets/abc"},
		{name: "missing title", method: http.MethodPost, path: "/api/tickets", body: map[string]any{"description": "x"}},
		{name: "other tenant", method: http.MethodPost, path: "/api/tickets", body: map[string]any{"title": "x", "organisation_id": 999}},
		{name: "other tenant camelCase", method: http.MethodPost, path: "/api/tickets", body: map[string]any{"title": "x", "organisationId": 999}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := ts.do(t, tt.method, tt.path, ts.alice, tt.body)
			require.Equal(t, http.StatusBadRequest, w.Code, env.Message)
			require.False(t, env.Success)
		})
	}
}

func TestOrganizations_adminOnly(t *testing.T) {
	ts := newTestServer(t)

	w, _ := ts.do(t, http.MethodGet, "/api/organisations", ts.alice, nil)
	require.Equal(t, http.StatusForbidden, w.Code)

	w, env := ts.do(t, http.MethodPost, "/api/organisations", ts.root, map[string]any{"name": "Initech"})
	require.Equal(t, http.StatusCreated, w.Code, env.Message)
	org := decodeData[models.Organization](t, env)

	w, _ = ts.do(t, http.MethodPost, "/api/organisations", ts.root, map[string]any{"name": "initech"})
	require.Equal(t, http.StatusConflict, w.Code)

	w, env = ts.do(t, http.MethodGet, "/api/organisations", ts.root, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, decodeData[[]models.Organization](t, env), 3)

	orgPath := "/api/organisations/" + jsonID(org.ID)
	w, env = ts.do(t, http.MethodPatch, orgPath, ts.root, map[string]any{"name": "Initrode"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "Initrode", decodeData[models.Organization](t, env).Name)

	w, _ = ts.do(t, http.MethodDelete, "/api/organisations/"+jsonID(ts.acme.ID), ts.root, nil)
	require.Equal(t, http.StatusConflict, w.Code)

	w, _ = ts.do(t, http.MethodDelete, orgPath, ts.root, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = ts.do(t, http.MethodGet, orgPath, ts.root, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestAuth_registerLoginProfile(t *testing.T) {
	ts := newTestServer(t)

	w, env := ts.do(t, http.MethodPost, "/api/auth/register", "", map[string]any{
		"name":           "Carol",
		"email":          "carol@acme.test",
		"password":       "hunter2hunter2",
		"organisationId": ts.acme.ID,
	})
	require.Equal(t, http.StatusCreated, w.Code, env.Message)
	registered := decodeData[login.Result](t, env)
	require.NotEmpty(t, registered.Token)
	require.Equal(t, models.RoleStandard, registered.User.Role)

	w, _ = ts.do(t, http.MethodPost, "/api/auth/register", "", map[string]any{
		"name":           "Carol",
		"email":          "CAROL@acme.test",
		"password":       "hunter2hunter2",
		"organisationId": ts.acme.ID,
	})
	require.Equal(t, http.StatusConflict, w.Code)

	w, _ = ts.do(t, http.MethodPost, "/api/auth/login", "", map[string]any{"email": "carol@acme.test", "password": "wrong-password"})
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w, env = ts.do(t, http.MethodPost, "/api/auth/login", "", map[string]any{"email": "carol@acme.test", "password": "hunter2hunter2"})
	require.Equal(t, http.StatusOK, w.Code)
	token := decodeData[login.Result](t, env).Token

	w, env = ts.do(t, http.MethodGet, "/api/auth/profile", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	profile := decodeData[models.User](t, env)
	require.Equal(t, "carol@acme.test", profile.Email)
	require.NotContains(t, string(env.Data), "password")
}

func TestUsers(t *testing.T) {
	ts := newTestServer(t)

	w, _ := ts.do(t, http.MethodGet, "/api/users", ts.alice, nil)
	require.Equal(t, http.StatusForbidden, w.Code)

	w, env := ts.do(t, http.MethodGet, "/api/users?organisationId="+jsonID(ts.globex.ID), ts.root, nil)
	require.Equal(t, http.StatusOK, w.Code)
	users := decodeData[[]models.User](t, env)
	require.Len(t, users, 1)
	require.Equal(t, "bob@globex.test", users[0].Email)

	w, env = ts.do(t, http.MethodPost, "/api/users", ts.root, map[string]any{
		"name":           "Dave",
		"email":          "dave@globex.test",
		"password":       "password123",
		"organisationId": ts.globex.ID,
		"role":           "admin",
	})
	require.Equal(t, http.StatusCreated, w.Code, env.Message)
	dave := decodeData[models.User](t, env)
	require.Equal(t, models.RoleAdmin, dave.Role)

	w, _ = ts.do(t, http.MethodGet, "/api/users/"+jsonID(dave.ID), ts.root, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, env = ts.do(t, http.MethodPost, "/api/users", ts.root, map[string]any{
		"name":            "Frank",
		"email":           "frank@globex.test",
		"password":        "password123",
		"organisation_id": ts.globex.ID,
		"role":            "admin",
	})
	require.Equal(t, http.StatusCreated, w.Code, env.Message)
	frank := decodeData[models.User](t, env)
	require.Equal(t, ts.globex.ID, frank.TenantID)
	require.Equal(t, models.RoleAdmin, frank.Role)

	w, _ = ts.do(t, http.MethodPost, "/api/users", ts.root, map[string]any{
		"name":           "Eve",
		"email":          "eve@globex.test",
		"password":       "password123",
		"organisationId": ts.globex.ID,
		"role":           "superuser",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCORS_preflight(t *testing.T) {
	ts := newTestServer(t)

	r := httptest.NewRequest(http.MethodOptions, "/api/tickets", nil)
	r.Header.Set("Origin", "https://desk.example.test")
	r.Header.Set("Access-Control-Request-Method", http.MethodPatch)
	r.Header.Set("Access-Control-Request-Headers", "authorization")

	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, r)

	require.Equal(t, "https://desk.example.test", w.Header().Get("Access-Control-Allow-Origin"))
}

func jsonID(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}

func TestTickets_conditionalGet(t *testing.T) {
	ts := newTestServer(t)

	w, env := ts.do(t, http.MethodPost, "/api/tickets", ts.alice, map[string]any{"title": "Cache me"})
	require.Equal(t, http.StatusCreated, w.Code)
	ticketPath := "/api/tickets/" + jsonID(decodeData[models.Ticket](t, env).ID)

	w, _ = ts.do(t, http.MethodGet, ticketPath, ts.alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	etag := w.Header().Get("ETag")
	require.NotEmpty(t, etag)

	get := func(token string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodGet, ticketPath, nil)
		r.Header.Set("Authorization", "Bearer "+token)
		r.Header.Set("If-None-Match", etag)
		w := httptest.NewRecorder()
		ts.handler.ServeHTTP(w, r)
		return w
	}

	require.Equal(t, http.StatusNotModified, get(ts.alice).Code)
	require.Equal(t, http.StatusNotFound, get(ts.bob).Code)

	w, _ = ts.do(t, http.MethodPatch, ticketPath, ts.alice, map[string]any{"status": "pending"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, http.StatusOK, get(ts.alice).Code)
}
