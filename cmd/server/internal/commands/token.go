package commands

import (
	"context"
	"errors"
	"fmt"

	zlog "github.com/rs/zerolog/log"
	"github.com/wolfeidau/tenantdesk/internal/logger"
)

// TokenCmd prints an access token for an existing user, for scripting
// against the API without a password.
type TokenCmd struct {
	Email string `arg:"" help:"email of the user to issue a token for"`

	Store StoreFlags `embed:""`
	Token TokenFlags `embed:"" prefix:"token-"`
}

func (c *TokenCmd) Run(ctx context.Context, globals *Globals) error {
	zlog.Logger = logger.Setup(globals.Debug)

	if c.Store.StoreType != "postgres" {
		return errors.New("token requires --store-type=postgres, in-memory users do not outlive the process")
	}

	issuer, err := c.Token.issuer(false)
	if err != nil {
		return err
	}

	b, err := c.Store.open(ctx)
	if err != nil {
		return err
	}
	defer b.Close()

	user, err := b.stores.Users.GetByEmail(ctx, c.Email)
	if err != nil {
		return fmt.Errorf("failed to find user %s: %w", c.Email, err)
	}

	token, err := issuer.Issue(user)
	if err != nil {
		return err
	}

	fmt.Println(token)
	return nil
}
