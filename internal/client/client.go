// Package client is a typed HTTP client for the tenantdesk API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/tenantdesk/internal/login"
	"github.com/wolfeidau/tenantdesk/internal/models"
)

// Config holds common client configuration
type Config struct {
	ServerURL string
	Token     string
	Timeout   time.Duration
	Debug     bool

	// CacheDir persists cached responses between runs. Empty keeps them in memory.
	CacheDir string

	// Transport overrides the base round tripper, mostly for tests.
	Transport http.RoundTripper
}

// DefaultConfig returns a default client configuration
func DefaultConfig() Config {
	return Config{
		ServerURL: "http://localhost:8080",
		Timeout:   30 * time.Second,
	}
}

// APIError is a non 2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (HTTP %d)", e.Message, e.StatusCode)
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Client calls the API on behalf of one token.
type Client struct {
	baseURL string
	http    *http.Client
	debug   bool
}

// New creates a client for the given configuration
func New(config Config) (*Client, error) {
	u, err := url.Parse(config.ServerURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid server URL %q", config.ServerURL)
	}

	return &Client{
		baseURL: strings.TrimRight(config.ServerURL, "/"),
		http: &http.Client{
			Timeout:   config.Timeout,
			Transport: newTransport(config.Token, config.CacheDir, config.Transport),
		},
		debug: config.Debug,
	}, nil
}

type envelope struct {
	Success    bool               `json:"success"`
	Message    string             `json:"message"`
	Data       json.RawMessage    `json:"data"`
	Pagination *models.Pagination `json:"pagination"`
}

// TicketList is one page of tickets.
type TicketList struct {
	Tickets    []*models.Ticket
	Pagination models.Pagination
}

// Login exchanges credentials for an access token.
func (c *Client) Login(ctx context.Context, email, password string) (*login.Result, error) {
	var res login.Result
	body := map[string]string{"email": email, "password": password}
	if _, err := c.do(ctx, http.MethodPost, "/api/auth/login", body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Register creates a standard user and returns its access token.
func (c *Client) Register(ctx context.Context, r login.Registration) (*login.Result, error) {
	var res login.Result
	if _, err := c.do(ctx, http.MethodPost, "/api/auth/register", r, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Profile returns the authenticated user.
func (c *Client) Profile(ctx context.Context) (*models.User, error) {
	var user models.User
	if _, err := c.do(ctx, http.MethodGet, "/api/auth/profile", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ListTickets returns one page of the tickets visible to the caller. params
// uses the server's query parameter names (status, page, limit, q, ...).
func (c *Client) ListTickets(ctx context.Context, params url.Values) (*TicketList, error) {
	path := "/api/tickets"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var tickets []*models.Ticket
	env, err := c.do(ctx, http.MethodGet, path, nil, &tickets)
	if err != nil {
		return nil, err
	}

	list := &TicketList{Tickets: tickets}
	if env.Pagination != nil {
		list.Pagination = *env.Pagination
	}
	return list, nil
}

// GetTicket returns a single ticket.
func (c *Client) GetTicket(ctx context.Context, id int64) (*models.Ticket, error) {
	var t models.Ticket
	if _, err := c.do(ctx, http.MethodGet, ticketPath(id), nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateTicket creates a ticket owned by the caller.
func (c *Client) CreateTicket(ctx context.Context, in models.NewTicket) (*models.Ticket, error) {
	var t models.Ticket
	if _, err := c.do(ctx, http.MethodPost, "/api/tickets", in, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// UpdateTicket applies patch and returns the updated ticket.
func (c *Client) UpdateTicket(ctx context.Context, id int64, patch models.TicketPatch) (*models.Ticket, error) {
	var t models.Ticket
	if _, err := c.do(ctx, http.MethodPatch, ticketPath(id), patch, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// DeleteTicket deletes a ticket.
func (c *Client) DeleteTicket(ctx context.Context, id int64) error {
	_, err := c.do(ctx, http.MethodDelete, ticketPath(id), nil, nil)
	return err
}

// TicketStats returns per status counts of the visible tickets.
func (c *Client) TicketStats(ctx context.Context) (*models.TicketStats, error) {
	var stats models.TicketStats
	if _, err := c.do(ctx, http.MethodGet, "/api/tickets/stats", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func ticketPath(id int64) string {
	return "/api/tickets/" + strconv.FormatInt(id, 10)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) (*envelope, error) {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if c.debug {
		log.Debug().
			Str("method", method).
			Str("path", path).
			Int("status", resp.StatusCode).
			Bool("cached", FromCache(resp)).
			Msg("api call")
	}

	// read to EOF so the cache transport can store the body
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: failed to read response: %w", method, path, err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: "unreadable response"}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 || !env.Success {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: env.Message}
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return nil, fmt.Errorf("failed to decode response data: %w", err)
		}
	}

	return &env, nil
}
