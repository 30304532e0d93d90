package models

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewPrincipal(t *testing.T) {
	tests := []struct {
		name     string
		userID   any
		tenantID any
		role     string
		wantRole Role
		wantErr  bool
	}{
		{name: "int ids", userID: 1, tenantID: 2, role: "admin", wantRole: RoleAdmin},
		{name: "int64 ids", userID: int64(7), tenantID: int64(3), role: "standard", wantRole: RoleStandard},
		{name: "json float ids", userID: float64(5), tenantID: float64(9), role: "", wantRole: RoleStandard},
		{name: "json number ids", userID: json.Number("11"), tenantID: json.Number("12"), role: "user", wantRole: RoleStandard},
		{name: "numeric strings", userID: "42", tenantID: " 8 ", role: "ADMIN", wantRole: RoleAdmin},
		{name: "missing user id", userID: nil, tenantID: 1, wantErr: true},
		{name: "missing tenant id", userID: 1, tenantID: nil, wantErr: true},
		{name: "non numeric user id", userID: "abc", tenantID: 1, wantErr: true},
		{name: "fractional tenant id", userID: 1, tenantID: 1.5, wantErr: true},
		{name: "zero user id", userID: 0, tenantID: 1, wantErr: true},
		{name: "negative tenant id", userID: 1, tenantID: -4, wantErr: true},
		{name: "unsupported type", userID: true, tenantID: 1, wantErr: true},
		{name: "unknown role", userID: 1, tenantID: 1, role: "superuser", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewPrincipal(tt.userID, tt.tenantID, tt.role)
			if tt.wantErr {
				require.Error(t, err)
				require.True(t, errors.Is(err, ErrInvalidPrincipal))
				require.True(t, p.IsZero())
				return
			}

			require.NoError(t, err)
			require.Equal(t, tt.wantRole, p.Role())
			require.Positive(t, p.UserID())
			require.Positive(t, p.TenantID())
		})
	}
}

func TestMustPrincipal(t *testing.T) {
	p := MustPrincipal(3, 4, RoleAdmin)
	require.Equal(t, int64(3), p.UserID())
	require.Equal(t, int64(4), p.TenantID())
	require.Equal(t, "user:3/tenant:4/admin", p.String())

	require.Panics(t, func() { MustPrincipal(0, 4, RoleStandard) })
}
