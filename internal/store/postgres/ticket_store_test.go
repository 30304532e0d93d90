package postgres

import (
	"context"
	"math"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/tenantdesk/internal/models"
	"github.com/wolfeidau/tenantdesk/internal/query"
	"github.com/wolfeidau/tenantdesk/internal/store"
)

func TestScope(t *testing.T) {
	standard := models.MustPrincipal(3, 7, models.RoleStandard)
	admin := models.MustPrincipal(1, 7, models.RoleAdmin)

	c := scope(standard, byID(42))
	require.Equal(t, "WHERE t.id = @id AND t.organisation_id = @scope_tenant_id", c.Where())
	require.Equal(t, pgx.NamedArgs{"id": int64(42), "scope_tenant_id": int64(7)}, c.Args())

	c = scope(admin, byID(42))
	require.Equal(t, "WHERE t.id = @id", c.Where())

	require.Equal(t, "", scope(admin, query.Compiled{}).Where())
	require.Equal(t, "WHERE t.organisation_id = @scope_tenant_id", scope(standard, query.Compiled{}).Where())
}

func TestPatchAssignments(t *testing.T) {
	title := "x"
	status := "closed"

	set, args := patchAssignments(models.TicketPatch{Title: &title, Status: &status})
	require.Equal(t, "title = @title, status = @status, updated_at = clock_timestamp()", set)
	require.Equal(t, pgx.NamedArgs{"title": "x", "status": "closed"}, args)

	desc := ""
	set, args = patchAssignments(models.TicketPatch{Description: &desc})
	require.Equal(t, "description = @description, updated_at = clock_timestamp()", set)
	require.Equal(t, pgx.NamedArgs{"description": ""}, args)
}

func TestTicketStore_List_rejectsOutOfRangePage(t *testing.T) {
	s, err := NewTicketStore(nil, RepositoryConfig{})
	require.NoError(t, err)

	_, err = s.List(context.Background(), models.MustPrincipal(3, 7, models.RoleStandard), query.Filter{Page: math.MaxInt, Limit: 20})
	require.ErrorIs(t, err, store.ErrInvalidPagination)
}

func TestIsoLevel(t *testing.T) {
	require.Equal(t, pgx.RepeatableRead, isoLevel("list"))
	for _, op := range []string{"get", "create", "update", "delete", "stats"} {
		require.Equal(t, pgx.ReadCommitted, isoLevel(op), op)
	}
}
