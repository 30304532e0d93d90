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

// UserStore implements store.UserStore using in-memory storage.
type UserStore struct {
	db *Database
}

// NewUserStore creates a new in-memory user store.
func NewUserStore(db *Database) *UserStore {
	return &UserStore{db: db}
}

// Create creates a new user. Emails are unique regardless of case.
func (s *UserStore) Create(ctx context.Context, in models.NewUser) (*models.User, error) {
	email := normalizeEmail(in.Email)
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", store.ErrInvalidInput)
	}

	role := in.Role
	if role == "" {
		role = models.RoleStandard
	}

	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if _, exists := s.db.usersByEmail[email]; exists {
		return nil, fmt.Errorf("%w: email %q", store.ErrConflict, email)
	}

	if _, exists := s.db.organizations[in.TenantID]; !exists {
		return nil, fmt.Errorf("%w: organisation %d does not exist", store.ErrInvalidReference, in.TenantID)
	}

	now := s.db.now()
	s.db.lastUserID++
	user := &models.User{
		ID:           s.db.lastUserID,
		Name:         strings.TrimSpace(in.Name),
		Email:        email,
		PasswordHash: in.PasswordHash,
		TenantID:     in.TenantID,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.db.users[user.ID] = user
	s.db.usersByEmail[email] = user.ID

	log.Debug().Int64("user_id", user.ID).Int64("tenant_id", user.TenantID).Msg("Created user")

	clone := *user
	return &clone, nil
}

// Get retrieves a user by ID.
func (s *UserStore) Get(ctx context.Context, id int64) (*models.User, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	user, exists := s.db.users[id]
	if !exists {
		return nil, store.ErrNotFound
	}

	clone := *user
	return &clone, nil
}

// GetByEmail retrieves a user by email.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	id, exists := s.db.usersByEmail[normalizeEmail(email)]
	if !exists {
		return nil, store.ErrNotFound
	}

	clone := *s.db.users[id]
	return &clone, nil
}

// ListByTenant returns the users of one organisation ordered by ID.
func (s *UserStore) ListByTenant(ctx context.Context, tenantID int64) ([]*models.User, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	var result []*models.User
	for _, u := range s.db.users {
		if u.TenantID == tenantID {
			clone := *u
			result = append(result, &clone)
		}
	}

	slices.SortFunc(result, func(a, b *models.User) int {
		return cmp.Compare(a.ID, b.ID)
	})

	return result, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
