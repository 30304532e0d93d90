package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/tenantdesk/internal/models"
	"github.com/wolfeidau/tenantdesk/internal/store"
)

func TestOrganizationStore_Create(t *testing.T) {
	t.Run("create new organization", func(t *testing.T) {
		st := NewOrganizationStore(NewDatabase())

		org, err := st.Create(context.Background(), "  Acme ")
		require.NoError(t, err)
		require.Equal(t, int64(1), org.ID)
		require.Equal(t, "Acme", org.Name)
		require.False(t, org.CreatedAt.IsZero())
	})

	t.Run("duplicate name returns conflict", func(t *testing.T) {
		st := NewOrganizationStore(NewDatabase())

		_, err := st.Create(context.Background(), "Acme")
		require.NoError(t, err)

		_, err = st.Create(context.Background(), "acme")
		require.True(t, errors.Is(err, store.ErrConflict))
	})

	t.Run("blank name", func(t *testing.T) {
		st := NewOrganizationStore(NewDatabase())

		_, err := st.Create(context.Background(), " ")
		require.True(t, errors.Is(err, store.ErrInvalidInput))
	})
}

func TestOrganizationStore_GetListUpdate(t *testing.T) {
	ctx := context.Background()
	st := NewOrganizationStore(NewDatabase())

	globex, err := st.Create(ctx, "Globex")
	require.NoError(t, err)
	acme, err := st.Create(ctx, "Acme")
	require.NoError(t, err)

	got, err := st.Get(ctx, globex.ID)
	require.NoError(t, err)
	require.Equal(t, "Globex", got.Name)

	_, err = st.Get(ctx, 42)
	require.True(t, errors.Is(err, store.ErrNotFound))

	list, err := st.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "Acme", list[0].Name)

	renamed, err := st.Update(ctx, acme.ID, "Acme Corp")
	require.NoError(t, err)
	require.Equal(t, "Acme Corp", renamed.Name)

	_, err = st.Update(ctx, acme.ID, "Globex")
	require.True(t, errors.Is(err, store.ErrConflict))

	_, err = st.Update(ctx, 42, "Nope")
	require.True(t, errors.Is(err, store.ErrNotFound))
}

func TestOrganizationStore_Delete(t *testing.T) {
	ctx := context.Background()
	db := NewDatabase()
	orgs := NewOrganizationStore(db)
	users := NewUserStore(db)

	org, err := orgs.Create(ctx, "Acme")
	require.NoError(t, err)

	_, err = users.Create(ctx, models.NewUser{Name: "U1", Email: "u1@acme.test", TenantID: org.ID})
	require.NoError(t, err)

	err = orgs.Delete(ctx, org.ID)
	require.True(t, errors.Is(err, store.ErrConflict))

	empty, err := orgs.Create(ctx, "Empty")
	require.NoError(t, err)
	require.NoError(t, orgs.Delete(ctx, empty.ID))

	err = orgs.Delete(ctx, empty.ID)
	require.True(t, errors.Is(err, store.ErrNotFound))
}
