package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/wolfeidau/tenantdesk/cmd/cli/internal/credentials"
)

// CredentialsCmd manages local credentials.
type CredentialsCmd struct {
	List       CredentialsListCmd       `cmd:"" help:"List all credentials"`
	SetDefault CredentialsSetDefaultCmd `cmd:"" name:"set-default" help:"Set the default credential"`
}

// CredentialsListCmd lists all credentials.
type CredentialsListCmd struct {
	CredsDir string `help:"custom credentials directory" env:"TENANTDESK_CREDENTIALS_DIR"`
}

func (c *CredentialsListCmd) Run(ctx context.Context, globals *Globals) error {
	store, err := credentials.NewStore(c.CredsDir)
	if err != nil {
		return fmt.Errorf("failed to initialize credential store: %w", err)
	}

	creds, err := store.List()
	if err != nil {
		return fmt.Errorf("failed to list credentials: %w", err)
	}

	if len(creds) == 0 {
		fmt.Println("No credentials found.")
		fmt.Println()
		fmt.Println("To log in:")
		fmt.Println("  tenantdesk-cli login --server <URL> --email <EMAIL>")
		return nil
	}

	defaultName := ""
	if def, err := store.GetDefault(); err == nil {
		defaultName = def.Name
	}

	now := time.Now()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSERVER\tEMAIL\tSTATUS\tDEFAULT")

	for _, cred := range creds {
		status := "valid"
		if cred.Expired(now) {
			status = "expired"
		}

		isDefault := ""
		if cred.Name == defaultName {
			isDefault = "*"
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", cred.Name, cred.Server, cred.Email, status, isDefault)
	}

	return w.Flush()
}

// CredentialsSetDefaultCmd sets the default credential.
type CredentialsSetDefaultCmd struct {
	Name     string `arg:"" help:"credential name"`
	CredsDir string `help:"custom credentials directory" env:"TENANTDESK_CREDENTIALS_DIR"`
}

func (c *CredentialsSetDefaultCmd) Run(ctx context.Context, globals *Globals) error {
	store, err := credentials.NewStore(c.CredsDir)
	if err != nil {
		return fmt.Errorf("failed to initialize credential store: %w", err)
	}

	if err := store.SetDefault(c.Name); err != nil {
		return err
	}

	fmt.Printf("Default credential set to %q\n", c.Name)
	return nil
}
