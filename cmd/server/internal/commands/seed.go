package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	zlog "github.com/rs/zerolog/log"
	"github.com/wolfeidau/tenantdesk/internal/logger"
	"github.com/wolfeidau/tenantdesk/internal/login"
	"github.com/wolfeidau/tenantdesk/internal/models"
	"github.com/wolfeidau/tenantdesk/internal/server"
	"github.com/wolfeidau/tenantdesk/internal/store"
	"gopkg.in/yaml.v3"
)

type SeedCmd struct {
	File string `help:"YAML fixtures to load" type:"existingfile" required:""`

	PostgresStore PostgresStoreFlags `embed:"" prefix:"postgres-"`
}

func (c *SeedCmd) Run(ctx context.Context, globals *Globals) error {
	zlog.Logger = logger.Setup(globals.Debug)

	fixtures, err := readFixtures(c.File)
	if err != nil {
		return err
	}

	flags := StoreFlags{StoreType: "postgres", PostgresStore: c.PostgresStore}
	b, err := flags.open(ctx)
	if err != nil {
		return err
	}
	defer b.Close()

	// Seeding never issues tokens, so a throwaway key is fine.
	issuer, err := (&TokenFlags{}).issuer(true)
	if err != nil {
		return err
	}

	loginService, err := login.NewService(login.Stores{Users: b.stores.Users, Organizations: b.stores.Organizations}, issuer)
	if err != nil {
		return err
	}

	return fixtures.load(ctx, b.stores, loginService)
}

// fixtures is the YAML seed format. Users refer to organisations by name and
// tickets refer to their owner by email.
type fixtures struct {
	Organisations []struct {
		Name string `yaml:"name"`
	} `yaml:"organisations"`

	Users []struct {
		Name         string `yaml:"name"`
		Email        string `yaml:"email"`
		Password     string `yaml:"password"`
		Organisation string `yaml:"organisation"`
		Role         string `yaml:"role"`
	} `yaml:"users"`

	Tickets []struct {
		Title       string  `yaml:"title"`
		Description *string `yaml:"description"`
		Status      string  `yaml:"status"`
		Owner       string  `yaml:"owner"`
	} `yaml:"tickets"`
}

func readFixtures(path string) (*fixtures, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixtures: %w", err)
	}
	return parseFixtures(data)
}

func parseFixtures(data []byte) (*fixtures, error) {
	var f fixtures
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse fixtures: %w", err)
	}
	return &f, nil
}

// load creates the organisations and users that do not exist yet, then
// creates every ticket as its owner so each insert passes through the same
// scoping as an API call.
func (f *fixtures) load(ctx context.Context, stores server.Stores, loginService *login.Service) error {
	existing, err := stores.Organizations.List(ctx)
	if err != nil {
		return err
	}

	orgs := make(map[string]*models.Organization, len(existing))
	for _, org := range existing {
		orgs[strings.ToLower(org.Name)] = org
	}

	for _, o := range f.Organisations {
		if _, ok := orgs[strings.ToLower(o.Name)]; ok {
			continue
		}
		org, err := stores.Organizations.Create(ctx, o.Name)
		if err != nil {
			return fmt.Errorf("organisation %q: %w", o.Name, err)
		}
		orgs[strings.ToLower(org.Name)] = org
	}

	users := make(map[string]*models.User, len(f.Users))
	for _, u := range f.Users {
		org, ok := orgs[strings.ToLower(u.Organisation)]
		if !ok {
			return fmt.Errorf("user %q: %w: unknown organisation %q", u.Email, store.ErrInvalidReference, u.Organisation)
		}

		role, err := models.ParseRole(u.Role)
		if err != nil {
			return fmt.Errorf("user %q: %w", u.Email, err)
		}

		user, err := loginService.CreateUser(ctx, login.Registration{
			Name:     u.Name,
			Email:    u.Email,
			Password: u.Password,
			TenantID: org.ID,
		}, role)
		if errors.Is(err, store.ErrConflict) {
			user, err = stores.Users.GetByEmail(ctx, u.Email)
		}
		if err != nil {
			return fmt.Errorf("user %q: %w", u.Email, err)
		}
		users[strings.ToLower(user.Email)] = user
	}

	for _, t := range f.Tickets {
		owner, ok := users[strings.ToLower(t.Owner)]
		if !ok {
			return fmt.Errorf("ticket %q: %w: unknown owner %q", t.Title, store.ErrInvalidReference, t.Owner)
		}

		p := models.MustPrincipal(owner.ID, owner.TenantID, owner.Role)
		if _, err := stores.Tickets.Create(ctx, p, models.NewTicket{
			Title:       t.Title,
			Description: t.Description,
			Status:      t.Status,
		}); err != nil {
			return fmt.Errorf("ticket %q: %w", t.Title, err)
		}
	}

	zlog.Info().
		Int("organisations", len(f.Organisations)).
		Int("users", len(f.Users)).
		Int("tickets", len(f.Tickets)).
		Msg("Loaded fixtures")

	return nil
}
