package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidPrincipal is returned when decoded credential data cannot produce a principal.
var ErrInvalidPrincipal = errors.New("invalid principal")

// Role is the authorization role carried by a principal.
type Role string

const (
	RoleStandard Role = "standard" // Regular tenant member
	RoleAdmin    Role = "admin"    // Cross-tenant operator
)

// ParseRole converts a role claim into a Role. An empty value is a standard
// principal; "user" is accepted for tokens issued before roles were renamed.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "standard", "user":
		return RoleStandard, nil
	case "admin":
		return RoleAdmin, nil
	default:
		return "", fmt.Errorf("%w: unknown role %q", ErrInvalidPrincipal, s)
	}
}

// Principal is the authenticated caller for the duration of one operation.
// It is immutable once constructed.
type Principal struct {
	userID   int64
	tenantID int64
	role     Role
}

// NewPrincipal builds a principal from raw decoded credential data. The ids
// may be any integral number type, a json.Number or a numeric string.
func NewPrincipal(userID, tenantID any, role string) (Principal, error) {
	uid, err := toID(userID)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: user id: %v", ErrInvalidPrincipal, err)
	}

	tid, err := toID(tenantID)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: tenant id: %v", ErrInvalidPrincipal, err)
	}

	r, err := ParseRole(role)
	if err != nil {
		return Principal{}, err
	}

	return Principal{userID: uid, tenantID: tid, role: r}, nil
}

// MustPrincipal is NewPrincipal for tests and fixtures; it panics on invalid input.
func MustPrincipal(userID, tenantID int64, role Role) Principal {
	p, err := NewPrincipal(userID, tenantID, string(role))
	if err != nil {
		panic(err)
	}
	return p
}

func (p Principal) UserID() int64   { return p.userID }
func (p Principal) TenantID() int64 { return p.tenantID }
func (p Principal) Role() Role      { return p.role }

// IsZero reports whether p was never constructed.
func (p Principal) IsZero() bool {
	return p.userID == 0 && p.tenantID == 0
}

// String renders the principal for log fields.
func (p Principal) String() string {
	return fmt.Sprintf("user:%d/tenant:%d/%s", p.userID, p.tenantID, p.role)
}

func toID(v any) (int64, error) {
	var id int64

	switch n := v.(type) {
	case nil:
		return 0, errors.New("missing")
	case int:
		id = int64(n)
	case int32:
		id = int64(n)
	case int64:
		id = n
	case float64:
		// JSON numbers decode as float64
		if n != math.Trunc(n) || n > math.MaxInt64 || n < math.MinInt64 {
			return 0, fmt.Errorf("not an integer: %v", n)
		}
		id = int64(n)
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, fmt.Errorf("not numeric: %q", n.String())
		}
		id = i
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("not numeric: %q", n)
		}
		id = i
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}

	if id <= 0 {
		return 0, fmt.Errorf("must be positive: %d", id)
	}

	return id, nil
}
