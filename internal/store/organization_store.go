package store

import (
	"context"

	"github.com/wolfeidau/tenantdesk/internal/models"
)

// OrganizationStore defines the interface for organisation storage operations.
// Organisations are the tenants of the system; managing them is an admin concern
// and is not subject to tenant scoping.
type OrganizationStore interface {
	// Create creates a new organisation and returns it with its assigned ID.
	Create(ctx context.Context, name string) (*models.Organization, error)

	// Get retrieves an organisation by ID.
	// Returns ErrNotFound if the organisation doesn't exist.
	Get(ctx context.Context, id int64) (*models.Organization, error)

	// List returns all organisations ordered by name.
	List(ctx context.Context) ([]*models.Organization, error)

	// Update renames an existing organisation.
	// Returns ErrNotFound if the organisation doesn't exist.
	Update(ctx context.Context, id int64, name string) (*models.Organization, error)

	// Delete deletes an organisation by ID.
	// Returns ErrConflict while users still belong to it.
	Delete(ctx context.Context, id int64) error
}
