package postgres

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/tenantdesk/internal/auth"
	"github.com/wolfeidau/tenantdesk/internal/models"
	"github.com/wolfeidau/tenantdesk/internal/query"
	"github.com/wolfeidau/tenantdesk/internal/store"
)

const selectTicketSQL = `
	SELECT t.id, t.title, t.description, t.status, t.user_id, t.organisation_id,
	       t.created_at, t.updated_at,
	       u.id, u.name, u.email,
	       o.id, o.name
	FROM tickets t
	LEFT JOIN users u ON u.id = t.user_id
	LEFT JOIN organisations o ON o.id = t.organisation_id
`

// TicketStore implements store.TicketStore using PostgreSQL. Every operation
// runs in one transaction on a connection bound to the calling principal, so
// row level security applies alongside the explicit scope predicate.
type TicketStore struct {
	binder
	cfg RepositoryConfig
}

// NewTicketStore creates a new PostgreSQL-backed ticket store.
// It shares the connection pool with other stores.
func NewTicketStore(pool *pgxpool.Pool, cfg RepositoryConfig) (*TicketStore, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid repository config: %w", err)
	}

	return &TicketStore{
		binder: binder{
			pool:    pool,
			strict:  cfg.StrictBinding,
			timeout: cfg.queryTimeout(),
		},
		cfg: cfg,
	}, nil
}

// scope restricts c to the rows p may see. Unrestricted principals get c unchanged.
func scope(p models.Principal, c query.Compiled) query.Compiled {
	if auth.IsUnrestricted(p) {
		return c
	}
	return c.And(query.Predicate{
		SQL:  "t.organisation_id = @scope_tenant_id",
		Args: pgx.NamedArgs{"scope_tenant_id": p.TenantID()},
	})
}

func byID(id int64) query.Compiled {
	return query.Compiled{}.And(query.Predicate{
		SQL:  "t.id = @id",
		Args: pgx.NamedArgs{"id": id},
	})
}

// List returns one page of the tickets visible to p. The count and the page
// are read in the same transaction so they agree.
func (s *TicketStore) List(ctx context.Context, p models.Principal, f query.Filter) (*models.TicketPage, error) {
	if err := store.CheckPrincipal(p); err != nil {
		return nil, err
	}
	if err := f.CheckPage(s.cfg.QueryConfig()); err != nil {
		return nil, err
	}

	c := scope(p, f.Compile())

	var page models.TicketPage
	err := s.withBoundTx(ctx, "list", p, func(tx pgx.Tx) error {
		var total int64
		if err := tx.QueryRow(ctx, "SELECT count(*) FROM tickets t "+c.Where(), c.Args()).Scan(&total); err != nil {
			return fmt.Errorf("failed to count tickets: %w", mapPostgresError(err))
		}

		sql := selectTicketSQL + c.Where() + " ORDER BY " + c.OrderBy + " LIMIT @limit OFFSET @offset"
		rows, err := tx.Query(ctx, sql, c.PageArgs())
		if err != nil {
			return fmt.Errorf("failed to list tickets: %w", mapPostgresError(err))
		}

		items, err := pgx.CollectRows(rows, scanTicket)
		if err != nil {
			return fmt.Errorf("failed to scan tickets: %w", mapPostgresError(err))
		}

		page.Items = items
		page.Pagination = models.NewPagination(f.Page, f.Limit, total)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if page.Items == nil {
		page.Items = []*models.Ticket{}
	}

	log.Debug().
		Stringer("principal", p).
		Int("count", len(page.Items)).
		Int64("total", page.Pagination.Total).
		Msg("Listed tickets")

	return &page, nil
}

// Get retrieves a ticket visible to p.
func (s *TicketStore) Get(ctx context.Context, p models.Principal, id int64) (*models.Ticket, error) {
	var t *models.Ticket
	err := s.withBoundTx(ctx, "get", p, func(tx pgx.Tx) error {
		var err error
		t, err = getTicket(ctx, tx, p, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Create stores a new ticket owned by a user of p's organisation. The owner
// and organisation are checked inside the bound transaction before the insert.
func (s *TicketStore) Create(ctx context.Context, p models.Principal, in models.NewTicket) (*models.Ticket, error) {
	if err := store.CheckPrincipal(p); err != nil {
		return nil, err
	}
	if !auth.CanCreateTickets(p) {
		return nil, fmt.Errorf("%w: %s principals cannot create tickets", store.ErrForbiddenOperation, p.Role())
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	status := models.StatusOpen
	if in.Status != "" {
		status = models.Status(in.Status)
	}
	ownerID := cmp.Or(in.OwnerUserID, p.UserID())
	tenantID := cmp.Or(in.TenantID, p.TenantID())

	if tenantID != p.TenantID() {
		return nil, fmt.Errorf("%w: cannot create tickets for organisation %d", store.ErrInvalidReference, tenantID)
	}

	var t *models.Ticket
	err := s.withBoundTx(ctx, "create", p, func(tx pgx.Tx) error {
		var orgExists bool
		err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM organisations WHERE id = $1)`, tenantID).Scan(&orgExists)
		if err != nil {
			return fmt.Errorf("failed to look up organisation: %w", mapPostgresError(err))
		}
		if !orgExists {
			return fmt.Errorf("%w: organisation %d does not exist", store.ErrInvalidReference, tenantID)
		}

		var ownerTenantID int64
		err = tx.QueryRow(ctx, `SELECT organisation_id FROM users WHERE id = $1`, ownerID).Scan(&ownerTenantID)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: user %d does not exist", store.ErrInvalidReference, ownerID)
		}
		if err != nil {
			return fmt.Errorf("failed to look up owner: %w", mapPostgresError(err))
		}
		if ownerTenantID != tenantID {
			return fmt.Errorf("%w: user %d does not belong to organisation %d", store.ErrInvalidReference, ownerID, tenantID)
		}

		var id int64
		err = tx.QueryRow(ctx, `
			INSERT INTO tickets (title, description, status, user_id, organisation_id)
			VALUES (@title, @description, @status, @user_id, @organisation_id)
			RETURNING id
		`, pgx.NamedArgs{
			"title":           in.Title,
			"description":     in.Description,
			"status":          string(status),
			"user_id":         ownerID,
			"organisation_id": tenantID,
		}).Scan(&id)
		if err != nil {
			return fmt.Errorf("failed to create ticket: %w", mapPostgresError(err))
		}

		t, err = getTicket(ctx, tx, p, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Debug().Int64("ticket_id", t.ID).Stringer("principal", p).Msg("Created ticket")

	return t, nil
}

// Update applies the patch to a ticket visible to p.
func (s *TicketStore) Update(ctx context.Context, p models.Principal, id int64, patch models.TicketPatch) (*models.Ticket, error) {
	if err := store.CheckPrincipal(p); err != nil {
		return nil, err
	}
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	var t *models.Ticket
	err := s.withBoundTx(ctx, "update", p, func(tx pgx.Tx) error {
		if !patch.IsEmpty() {
			set, args := patchAssignments(patch)
			c := scope(p, byID(id))
			maps.Copy(args, c.Args())

			tag, err := tx.Exec(ctx, "UPDATE tickets AS t SET "+set+" "+c.Where(), args)
			if err != nil {
				return fmt.Errorf("failed to update ticket: %w", mapPostgresError(err))
			}
			if tag.RowsAffected() == 0 {
				return store.ErrNotFound
			}
		}

		var err error
		t, err = getTicket(ctx, tx, p, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Debug().Int64("ticket_id", id).Stringer("principal", p).Msg("Updated ticket")

	return t, nil
}

// Delete removes a ticket visible to p.
func (s *TicketStore) Delete(ctx context.Context, p models.Principal, id int64) error {
	err := s.withBoundTx(ctx, "delete", p, func(tx pgx.Tx) error {
		c := scope(p, byID(id))

		tag, err := tx.Exec(ctx, "DELETE FROM tickets AS t "+c.Where(), c.Args())
		if err != nil {
			return fmt.Errorf("failed to delete ticket: %w", mapPostgresError(err))
		}
		if tag.RowsAffected() == 0 {
			return store.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Debug().Int64("ticket_id", id).Stringer("principal", p).Msg("Deleted ticket")

	return nil
}

// Stats counts the tickets visible to p per status.
func (s *TicketStore) Stats(ctx context.Context, p models.Principal) (*models.TicketStats, error) {
	stats := models.NewTicketStats()

	err := s.withBoundTx(ctx, "stats", p, func(tx pgx.Tx) error {
		c := scope(p, query.Compiled{})

		rows, err := tx.Query(ctx, "SELECT t.status, count(*) FROM tickets t "+c.Where()+" GROUP BY t.status", c.Args())
		if err != nil {
			return fmt.Errorf("failed to count tickets: %w", mapPostgresError(err))
		}
		defer rows.Close()

		for rows.Next() {
			var status string
			var n int64
			if err := rows.Scan(&status, &n); err != nil {
				return fmt.Errorf("failed to scan ticket stats: %w", mapPostgresError(err))
			}
			stats.ByStatus[models.Status(status)] = n
			stats.Total += n
		}

		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	return stats, nil
}

func getTicket(ctx context.Context, tx pgx.Tx, p models.Principal, id int64) (*models.Ticket, error) {
	c := scope(p, byID(id))

	rows, err := tx.Query(ctx, selectTicketSQL+c.Where(), c.Args())
	if err != nil {
		return nil, fmt.Errorf("failed to get ticket: %w", mapPostgresError(err))
	}

	t, err := pgx.CollectOneRow(rows, scanTicket)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan ticket: %w", mapPostgresError(err))
	}

	return t, nil
}

// patchAssignments renders the SET list for the fields present in patch.
// Only title, description and status can ever be assigned.
func patchAssignments(patch models.TicketPatch) (string, pgx.NamedArgs) {
	var set []string
	args := pgx.NamedArgs{}

	if patch.Title != nil {
		set = append(set, "title = @title")
		args["title"] = *patch.Title
	}
	if patch.Description != nil {
		set = append(set, "description = @description")
		args["description"] = *patch.Description
	}
	if patch.Status != nil {
		set = append(set, "status = @status")
		args["status"] = *patch.Status
	}
	set = append(set, "updated_at = clock_timestamp()")

	return strings.Join(set, ", "), args
}

func scanTicket(row pgx.CollectableRow) (*models.Ticket, error) {
	var (
		t         models.Ticket
		status    string
		ownerID   *int64
		ownerName *string
		email     *string
		orgID     *int64
		orgName   *string
	)

	err := row.Scan(
		&t.ID,
		&t.Title,
		&t.Description,
		&status,
		&t.OwnerUserID,
		&t.TenantID,
		&t.CreatedAt,
		&t.UpdatedAt,
		&ownerID,
		&ownerName,
		&email,
		&orgID,
		&orgName,
	)
	if err != nil {
		return nil, err
	}

	t.Status = models.Status(status)
	if ownerID != nil {
		t.Owner = &models.TicketOwner{ID: *ownerID, Name: deref(ownerName), Email: deref(email)}
	}
	if orgID != nil {
		t.Organization = &models.TicketOrganization{ID: *orgID, Name: deref(orgName)}
	}

	return &t, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
