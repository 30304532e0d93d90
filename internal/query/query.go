// Package query turns loosely typed ticket list parameters into a validated
// filter and compiles that filter into parameterized SQL predicates.
package query

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/wolfeidau/tenantdesk/internal/models"
)

// Sentinel errors for filter validation
var (
	ErrInvalidFilter     = errors.New("invalid filter")
	ErrInvalidPagination = errors.New("invalid pagination")
)

const dateOnly = "2006-01-02"

// Config holds the pagination bounds applied by Parse.
type Config struct {
	// DefaultLimit is used when no limit is supplied.
	// Default: 10
	DefaultLimit int

	// MaxLimit is the largest accepted limit; larger values are rejected.
	// Default: 100
	MaxLimit int
}

// ApplyDefaults applies default values to unset configuration fields.
func (c *Config) ApplyDefaults() {
	if c.DefaultLimit == 0 {
		c.DefaultLimit = 10
	}
	if c.MaxLimit == 0 {
		c.MaxLimit = 100
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.MaxLimit < 1 {
		return fmt.Errorf("max limit must be at least 1")
	}
	if c.DefaultLimit < 1 || c.DefaultLimit > c.MaxLimit {
		return fmt.Errorf("default limit must be between 1 and %d", c.MaxLimit)
	}
	return nil
}

// DefaultConfig returns the configuration with defaults applied.
func DefaultConfig() Config {
	var c Config
	c.ApplyDefaults()
	return c
}

// Params are the raw list parameters as received from a transport.
// Empty strings mean the parameter was not supplied.
type Params struct {
	Status        string
	OwnerUserID   string
	TenantID      string
	Search        string
	CreatedAfter  string
	CreatedBefore string
	Page          string
	Limit         string
}

// ParamsFromValues reads Params from URL query values. The snake_case names
// used by older clients are accepted when the camelCase ones are absent.
func ParamsFromValues(v url.Values) Params {
	first := func(keys ...string) string {
		for _, k := range keys {
			if s := v.Get(k); s != "" {
				return s
			}
		}
		return ""
	}

	return Params{
		Status:        first("status"),
		OwnerUserID:   first("ownerUserId", "userId", "user_id"),
		TenantID:      first("tenantId", "organisationId", "organisation_id"),
		Search:        first("search", "q"),
		CreatedAfter:  first("createdAfter", "created_after"),
		CreatedBefore: first("createdBefore", "created_before"),
		Page:          first("page"),
		Limit:         first("limit"),
	}
}

// Filter is a validated set of list parameters. Nil fields were absent and
// contribute no predicate.
type Filter struct {
	Status        *models.Status
	OwnerUserID   *int64
	TenantID      *int64
	Search        *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time

	Page  int
	Limit int
}

// Offset is the number of rows skipped before the current page.
func (f Filter) Offset() int {
	return (f.Page - 1) * f.Limit
}

// Parse validates raw params. Filter problems return ErrInvalidFilter and
// pagination problems return ErrInvalidPagination; nothing is clamped.
func Parse(p Params, cfg Config) (Filter, error) {
	cfg.ApplyDefaults()

	f := Filter{Page: 1, Limit: cfg.DefaultLimit}

	if s := strings.TrimSpace(p.Status); s != "" {
		st, err := models.ParseStatus(s)
		if err != nil {
			return Filter{}, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
		}
		f.Status = &st
	}

	var err error
	if f.OwnerUserID, err = parseID("ownerUserId", p.OwnerUserID); err != nil {
		return Filter{}, err
	}
	if f.TenantID, err = parseID("tenantId", p.TenantID); err != nil {
		return Filter{}, err
	}

	if s := strings.TrimSpace(p.Search); s != "" {
		f.Search = &s
	}

	if f.CreatedAfter, err = parseDate("createdAfter", p.CreatedAfter); err != nil {
		return Filter{}, err
	}
	if f.CreatedBefore, err = parseDate("createdBefore", p.CreatedBefore); err != nil {
		return Filter{}, err
	}
	if f.CreatedAfter != nil && f.CreatedBefore != nil && f.CreatedAfter.After(*f.CreatedBefore) {
		return Filter{}, fmt.Errorf("%w: createdAfter must not be later than createdBefore", ErrInvalidFilter)
	}

	if s := strings.TrimSpace(p.Page); s != "" {
		page, err := strconv.Atoi(s)
		if err != nil || page < 1 {
			return Filter{}, fmt.Errorf("%w: page must be a positive number", ErrInvalidPagination)
		}
		f.Page = page
	}

	if s := strings.TrimSpace(p.Limit); s != "" {
		limit, err := strconv.Atoi(s)
		if err != nil || limit < 1 || limit > cfg.MaxLimit {
			return Filter{}, fmt.Errorf("%w: limit must be between 1 and %d", ErrInvalidPagination, cfg.MaxLimit)
		}
		f.Limit = limit
	}

	if err := checkOffset(f.Page, f.Limit); err != nil {
		return Filter{}, err
	}

	return f, nil
}

// CheckPage rejects a filter whose pagination was not produced by Parse with cfg.
func (f Filter) CheckPage(cfg Config) error {
	cfg.ApplyDefaults()
	if f.Page < 1 {
		return fmt.Errorf("%w: page must be a positive number", ErrInvalidPagination)
	}
	if f.Limit < 1 || f.Limit > cfg.MaxLimit {
		return fmt.Errorf("%w: limit must be between 1 and %d", ErrInvalidPagination, cfg.MaxLimit)
	}
	return checkOffset(f.Page, f.Limit)
}

// checkOffset rejects pages whose offset does not fit in an int.
func checkOffset(page, limit int) error {
	if page-1 > math.MaxInt/limit {
		return fmt.Errorf("%w: page %d is out of range", ErrInvalidPagination, page)
	}
	return nil
}

func parseID(name, raw string) (*int64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, nil
	}

	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id < 1 {
		return nil, fmt.Errorf("%w: %s must be a positive integer", ErrInvalidFilter, name)
	}

	return &id, nil
}

func parseDate(name, raw string) (*time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, nil
	}

	for _, layout := range []string{time.RFC3339Nano, dateOnly} {
		if ts, err := time.Parse(layout, s); err == nil {
			ts = ts.UTC()
			return &ts, nil
		}
	}

	return nil, fmt.Errorf("%w: %s is not a valid date: %q", ErrInvalidFilter, name, s)
}
