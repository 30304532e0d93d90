package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/tenantdesk/internal/models"
	"github.com/wolfeidau/tenantdesk/internal/store"
)

// OrganizationStore implements store.OrganizationStore using PostgreSQL.
// Organisations carry no row level security; access is an admin concern
// enforced by the caller.
type OrganizationStore struct {
	pool *pgxpool.Pool
}

// NewOrganizationStore creates a new PostgreSQL-backed organization store.
// It shares the connection pool with other stores.
func NewOrganizationStore(pool *pgxpool.Pool) *OrganizationStore {
	return &OrganizationStore{
		pool: pool,
	}
}

// Create creates a new organization in the database.
func (s *OrganizationStore) Create(ctx context.Context, name string) (*models.Organization, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: organisation name is required", store.ErrInvalidInput)
	}

	query := `
		INSERT INTO organisations (name)
		VALUES ($1)
		RETURNING id, name, created_at, updated_at
	`

	org, err := scanOrganization(s.pool.QueryRow(ctx, query, name))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: organisation %q", store.ErrConflict, name)
		}
		return nil, fmt.Errorf("failed to create organization: %w", mapPostgresError(err))
	}

	log.Debug().
		Int64("org_id", org.ID).
		Str("name", org.Name).
		Msg("Created organization")

	return org, nil
}

// Get retrieves an organization by ID.
func (s *OrganizationStore) Get(ctx context.Context, id int64) (*models.Organization, error) {
	query := `
		SELECT id, name, created_at, updated_at
		FROM organisations
		WHERE id = $1
	`

	org, err := scanOrganization(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get organization: %w", mapPostgresError(err))
	}

	return org, nil
}

// List returns all organizations ordered by name.
func (s *OrganizationStore) List(ctx context.Context) ([]*models.Organization, error) {
	query := `
		SELECT id, name, created_at, updated_at
		FROM organisations
		ORDER BY name, id
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", mapPostgresError(err))
	}
	defer rows.Close()

	orgs := []*models.Organization{}
	for rows.Next() {
		org, err := scanOrganization(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan organization: %w", err)
		}
		orgs = append(orgs, org)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating organizations: %w", mapPostgresError(err))
	}

	return orgs, nil
}

// Update renames an existing organization.
func (s *OrganizationStore) Update(ctx context.Context, id int64, name string) (*models.Organization, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: organisation name is required", store.ErrInvalidInput)
	}

	query := `
		UPDATE organisations SET
			name = $2,
			updated_at = now()
		WHERE id = $1
		RETURNING id, name, created_at, updated_at
	`

	org, err := scanOrganization(s.pool.QueryRow(ctx, query, id, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: organisation %q", store.ErrConflict, name)
		}
		return nil, fmt.Errorf("failed to update organization: %w", mapPostgresError(err))
	}

	log.Debug().
		Int64("org_id", org.ID).
		Msg("Updated organization")

	return org, nil
}

// Delete deletes an organization by ID. The foreign keys from users and
// tickets restrict the delete while either still references it.
func (s *OrganizationStore) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM organisations WHERE id = $1`

	result, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: organisation %d still has users", store.ErrConflict, id)
		}
		return fmt.Errorf("failed to delete organization: %w", mapPostgresError(err))
	}

	if result.RowsAffected() == 0 {
		return store.ErrNotFound
	}

	log.Info().
		Int64("org_id", id).
		Msg("Deleted organization")

	return nil
}

func scanOrganization(row pgx.Row) (*models.Organization, error) {
	var org models.Organization
	err := row.Scan(
		&org.ID,
		&org.Name,
		&org.CreatedAt,
		&org.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &org, nil
}
