package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/tenantdesk/cmd/cli/internal/credentials"
	"github.com/wolfeidau/tenantdesk/internal/client"
)

// LoginCmd exchanges an email and password for a token and saves it.
type LoginCmd struct {
	Server   string `help:"server URL" default:"http://localhost:8080" env:"TENANTDESK_SERVER"`
	Email    string `help:"account email" required:""`
	Password string `help:"account password" required:"" env:"TENANTDESK_PASSWORD"`
	Name     string `help:"name to save the credential under" default:"default"`
	CredsDir string `help:"custom credentials directory" env:"TENANTDESK_CREDENTIALS_DIR"`
}

func (c *LoginCmd) Run(ctx context.Context, globals *Globals) error {
	store, err := credentials.NewStore(c.CredsDir)
	if err != nil {
		return fmt.Errorf("failed to initialize credential store: %w", err)
	}

	api, err := client.New(client.Config{ServerURL: c.Server, Timeout: 30 * time.Second, Debug: globals.Debug})
	if err != nil {
		return err
	}

	res, err := api.Login(ctx, c.Email, c.Password)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	expiresAt, err := credentials.TokenExpiry(res.Token)
	if err != nil {
		log.Warn().Err(err).Msg("Could not read token expiry")
	}

	cred, err := store.Save(credentials.Credential{
		Name:      c.Name,
		Server:    c.Server,
		Email:     res.User.Email,
		Token:     res.Token,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Logged in as %s (%s), credential %q saved", res.User.Email, res.User.Role, cred.Name)
	if !expiresAt.IsZero() {
		fmt.Printf(", expires %s", expiresAt.Local().Format(time.RFC1123))
	}
	fmt.Println()

	return nil
}

// LogoutCmd forgets a saved credential.
type LogoutCmd struct {
	Name     string `arg:"" optional:"" help:"credential to remove (defaults to the default credential)"`
	CredsDir string `help:"custom credentials directory" env:"TENANTDESK_CREDENTIALS_DIR"`
}

func (c *LogoutCmd) Run(ctx context.Context, globals *Globals) error {
	store, err := credentials.NewStore(c.CredsDir)
	if err != nil {
		return fmt.Errorf("failed to initialize credential store: %w", err)
	}

	cred, err := store.Resolve(c.Name)
	if err != nil {
		if errors.Is(err, credentials.ErrNoDefaultCredential) {
			fmt.Println("Not logged in.")
			return nil
		}
		return err
	}

	if err := store.Delete(cred.Name); err != nil {
		return err
	}

	fmt.Printf("Removed credential %q\n", cred.Name)
	return nil
}

// WhoamiCmd prints the user behind the current credential.
type WhoamiCmd struct {
	Auth AuthFlags `embed:""`
}

func (c *WhoamiCmd) Run(ctx context.Context, globals *Globals) error {
	api, err := c.Auth.client(globals)
	if err != nil {
		return err
	}

	user, err := api.Profile(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("%s <%s>\n", user.Name, user.Email)
	fmt.Printf("  id:           %d\n", user.ID)
	fmt.Printf("  organisation: %d\n", user.TenantID)
	fmt.Printf("  role:         %s\n", user.Role)
	return nil
}
