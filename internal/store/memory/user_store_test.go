package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/tenantdesk/internal/models"
	"github.com/wolfeidau/tenantdesk/internal/store"
)

func TestUserStore(t *testing.T) {
	ctx := context.Background()
	db := NewDatabase()
	orgs := NewOrganizationStore(db)
	users := NewUserStore(db)

	acme, err := orgs.Create(ctx, "Acme")
	require.NoError(t, err)
	globex, err := orgs.Create(ctx, "Globex")
	require.NoError(t, err)

	t.Run("create defaults role to standard", func(t *testing.T) {
		u, err := users.Create(ctx, models.NewUser{Name: "Alice", Email: "Alice@Acme.test", PasswordHash: "hash", TenantID: acme.ID})
		require.NoError(t, err)
		require.Equal(t, models.RoleStandard, u.Role)
		require.Equal(t, "alice@acme.test", u.Email)
	})

	t.Run("duplicate email", func(t *testing.T) {
		_, err := users.Create(ctx, models.NewUser{Name: "Other", Email: "alice@acme.test", TenantID: globex.ID})
		require.True(t, errors.Is(err, store.ErrConflict))
	})

	t.Run("unknown organisation", func(t *testing.T) {
		_, err := users.Create(ctx, models.NewUser{Name: "Bob", Email: "bob@nowhere.test", TenantID: 99})
		require.True(t, errors.Is(err, store.ErrInvalidReference))
	})

	t.Run("get by email keeps the hash", func(t *testing.T) {
		u, err := users.GetByEmail(ctx, " ALICE@acme.test")
		require.NoError(t, err)
		require.Equal(t, "hash", u.PasswordHash)

		byID, err := users.Get(ctx, u.ID)
		require.NoError(t, err)
		require.Equal(t, u.Email, byID.Email)
	})

	t.Run("missing user", func(t *testing.T) {
		_, err := users.GetByEmail(ctx, "nobody@acme.test")
		require.True(t, errors.Is(err, store.ErrNotFound))

		_, err = users.Get(ctx, 404)
		require.True(t, errors.Is(err, store.ErrNotFound))
	})

	t.Run("list by tenant", func(t *testing.T) {
		_, err := users.Create(ctx, models.NewUser{Name: "Carol", Email: "carol@globex.test", TenantID: globex.ID})
		require.NoError(t, err)

		list, err := users.ListByTenant(ctx, acme.ID)
		require.NoError(t, err)
		require.Len(t, list, 1)
		require.Equal(t, "Alice", list[0].Name)
	})
}
