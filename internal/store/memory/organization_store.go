package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/tenantdesk/internal/models"
	"github.com/wolfeidau/tenantdesk/internal/store"
)

// OrganizationStore implements store.OrganizationStore using in-memory storage.
type OrganizationStore struct {
	db *Database
}

// NewOrganizationStore creates a new in-memory organization store.
func NewOrganizationStore(db *Database) *OrganizationStore {
	return &OrganizationStore{db: db}
}

// Create creates a new organization in memory.
func (s *OrganizationStore) Create(ctx context.Context, name string) (*models.Organization, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: organisation name is required", store.ErrInvalidInput)
	}

	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	for _, org := range s.db.organizations {
		if strings.EqualFold(org.Name, name) {
			return nil, fmt.Errorf("%w: organisation %q", store.ErrConflict, name)
		}
	}

	now := s.db.now()
	s.db.lastOrgID++
	org := &models.Organization{
		ID:        s.db.lastOrgID,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.db.organizations[org.ID] = org

	log.Debug().Int64("org_id", org.ID).Str("name", org.Name).Msg("Created organization")

	// Clone to avoid external modifications
	clone := *org
	return &clone, nil
}

// Get retrieves an organization by ID.
func (s *OrganizationStore) Get(ctx context.Context, id int64) (*models.Organization, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	org, exists := s.db.organizations[id]
	if !exists {
		return nil, store.ErrNotFound
	}

	clone := *org
	return &clone, nil
}

// List returns all organizations ordered by name.
func (s *OrganizationStore) List(ctx context.Context) ([]*models.Organization, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	result := make([]*models.Organization, 0, len(s.db.organizations))
	for _, org := range s.db.organizations {
		clone := *org
		result = append(result, &clone)
	}

	slices.SortFunc(result, func(a, b *models.Organization) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})

	return result, nil
}

// Update renames an existing organization.
func (s *OrganizationStore) Update(ctx context.Context, id int64, name string) (*models.Organization, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: organisation name is required", store.ErrInvalidInput)
	}

	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	org, exists := s.db.organizations[id]
	if !exists {
		return nil, store.ErrNotFound
	}

	for _, other := range s.db.organizations {
		if other.ID != id && strings.EqualFold(other.Name, name) {
			return nil, fmt.Errorf("%w: organisation %q", store.ErrConflict, name)
		}
	}

	org.Name = name
	org.UpdatedAt = s.db.now()

	clone := *org
	return &clone, nil
}

// Delete deletes an organization by ID. Organisations that still have users
// cannot be deleted.
func (s *OrganizationStore) Delete(ctx context.Context, id int64) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if _, exists := s.db.organizations[id]; !exists {
		return store.ErrNotFound
	}

	for _, u := range s.db.users {
		if u.TenantID == id {
			return fmt.Errorf("%w: organisation %d still has users", store.ErrConflict, id)
		}
	}

	delete(s.db.organizations, id)

	log.Debug().Int64("org_id", id).Msg("Deleted organization")

	return nil
}
