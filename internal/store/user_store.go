package store

import (
	"context"

	"github.com/wolfeidau/tenantdesk/internal/models"
)

// UserStore manages users
type UserStore interface {
	// Create creates a new user.
	// Returns ErrConflict for a duplicate email and ErrInvalidReference for an unknown organisation.
	Create(ctx context.Context, in models.NewUser) (*models.User, error)

	// Get retrieves a user by ID
	Get(ctx context.Context, id int64) (*models.User, error)

	// GetByEmail retrieves a user, including the password hash, by email
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	// ListByTenant returns the users of one organisation
	ListByTenant(ctx context.Context, tenantID int64) ([]*models.User, error)
}
