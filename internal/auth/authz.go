package auth

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/wolfeidau/tenantdesk/internal/models"
)

// Sentinel errors for authorization checks
var (
	ErrUnauthenticated  = errors.New("unauthenticated")
	ErrPermissionDenied = errors.New("permission denied")
)

// Permission represents an authorized action
type Permission string

const (
	PermTicketsRead   Permission = "tickets:read"
	PermTicketsWrite  Permission = "tickets:write"
	PermTicketsCreate Permission = "tickets:create"
	PermTenantsManage Permission = "tenants:manage"
	PermUsersManage   Permission = "users:manage"
)

// RolePermissions maps roles to allowed permissions
var RolePermissions = map[models.Role][]Permission{
	models.RoleAdmin: {
		PermTicketsRead,
		PermTicketsWrite,
		PermTenantsManage,
		PermUsersManage,
	},
	models.RoleStandard: {
		PermTicketsRead,
		PermTicketsWrite,
		PermTicketsCreate,
	},
}

// HasPermission checks if a role has a specific permission
func HasPermission(role models.Role, perm Permission) bool {
	perms, ok := RolePermissions[role]
	if !ok {
		return false
	}
	return slices.Contains(perms, perm)
}

// RequirePermission checks authorization and returns an error if not authorized
func RequirePermission(ctx context.Context, perm Permission) error {
	p, ok := PrincipalFromContext(ctx)
	if !ok {
		return ErrUnauthenticated
	}

	if !HasPermission(p.Role(), perm) {
		return fmt.Errorf("%w: %s requires %s", ErrPermissionDenied, p.Role(), perm)
	}

	return nil
}
