// Package login registers users with a password and exchanges credentials
// for access tokens.
package login

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/tenantdesk/internal/auth"
	"github.com/wolfeidau/tenantdesk/internal/models"
	"github.com/wolfeidau/tenantdesk/internal/store"
	"github.com/wolfeidau/tenantdesk/internal/telemetry"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials covers both an unknown email and a wrong password.
var ErrInvalidCredentials = errors.New("invalid email or password")

const (
	// DefaultBcryptCost is the work factor used for new password hashes.
	DefaultBcryptCost = 12

	MinPasswordLength = 8
	MaxPasswordLength = 72 // bcrypt ignores anything longer
)

// Stores are the stores the login service reads and writes.
type Stores struct {
	Users         store.UserStore
	Organizations store.OrganizationStore
}

// Registration is the input to Register.
type Registration struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	TenantID int64  `json:"organisationId"`
}

// UnmarshalJSON also accepts organisation_id.
func (r *Registration) UnmarshalJSON(b []byte) error {
	type plain Registration
	var in struct {
		plain
		OrganisationID int64 `json:"organisation_id"`
	}
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}

	*r = Registration(in.plain)
	r.TenantID = cmp.Or(r.TenantID, in.OrganisationID)

	return nil
}

// Result is returned by a successful Register or Login.
type Result struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Option configures a Service.
type Option func(*Service)

// WithBcryptCost overrides the bcrypt work factor.
func WithBcryptCost(cost int) Option {
	return func(s *Service) {
		s.cost = cost
	}
}

// Service implements password registration and login.
type Service struct {
	stores Stores
	issuer *auth.TokenIssuer
	cost   int

	// compared against when the email is unknown so both failure paths cost the same
	dummyHash []byte
}

// NewService creates a login service.
func NewService(stores Stores, issuer *auth.TokenIssuer, opts ...Option) (*Service, error) {
	if stores.Users == nil || stores.Organizations == nil {
		return nil, fmt.Errorf("user and organization stores are required")
	}
	if issuer == nil {
		return nil, fmt.Errorf("token issuer is required")
	}

	s := &Service{stores: stores, issuer: issuer, cost: DefaultBcryptCost}
	for _, opt := range opts {
		opt(s)
	}

	if s.cost < bcrypt.MinCost || s.cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), s.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare password hashing: %w", err)
	}
	s.dummyHash = hash

	return s, nil
}

// HashPassword hashes password with the service's work factor.
func (s *Service) HashPassword(password string) (string, error) {
	if err := validatePassword(password); err != nil {
		return "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// Register creates a standard user in an existing organisation and returns
// a token for it.
func (s *Service) Register(ctx context.Context, r Registration) (*Result, error) {
	user, err := s.CreateUser(ctx, r, models.RoleStandard)
	if err != nil {
		return nil, err
	}

	log.Info().Int64("user_id", user.ID).Int64("tenant_id", user.TenantID).Msg("Registered user")

	return s.issue(user)
}

// CreateUser validates r, hashes the password and stores a user with role in
// an existing organisation. Admins provision users through it and seeding
// loads fixtures through it.
func (s *Service) CreateUser(ctx context.Context, r Registration, role models.Role) (*models.User, error) {
	name := strings.TrimSpace(r.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", store.ErrInvalidInput)
	}

	email := strings.TrimSpace(r.Email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: email is not valid", store.ErrInvalidInput)
	}

	if _, err := s.stores.Organizations.Get(ctx, r.TenantID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: organisation %d does not exist", store.ErrInvalidReference, r.TenantID)
		}
		return nil, err
	}

	hash, err := s.HashPassword(r.Password)
	if err != nil {
		return nil, err
	}

	return s.stores.Users.Create(ctx, models.NewUser{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		TenantID:     r.TenantID,
		Role:         role,
	})
}

// Login verifies the credentials and returns a token for the user.
func (s *Service) Login(ctx context.Context, email, password string) (*Result, error) {
	m := telemetry.GetMetrics()

	user, err := s.stores.Users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		m.RecordLogin(ctx, false)
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		log.Debug().Int64("user_id", user.ID).Msg("Password mismatch")
		m.RecordLogin(ctx, false)
		return nil, ErrInvalidCredentials
	}

	m.RecordLogin(ctx, true)

	return s.issue(user)
}

func (s *Service) issue(user *models.User) (*Result, error) {
	token, err := s.issuer.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}
	return &Result{Token: token, User: user}, nil
}

func validatePassword(password string) error {
	switch {
	case len(password) < MinPasswordLength:
		return fmt.Errorf("%w: password must be at least %d characters", store.ErrInvalidInput, MinPasswordLength)
	case len(password) > MaxPasswordLength:
		return fmt.Errorf("%w: password must be at most %d bytes", store.ErrInvalidInput, MaxPasswordLength)
	}
	return nil
}
