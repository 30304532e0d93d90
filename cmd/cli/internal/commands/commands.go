package commands

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/wolfeidau/tenantdesk/cmd/cli/internal/credentials"
	"github.com/wolfeidau/tenantdesk/internal/client"
)

type Globals struct {
	Debug   bool
	Version string
}

// AuthFlags select the saved credential used for API calls.
type AuthFlags struct {
	Credential string        `help:"credential to use (defaults to the default credential)" env:"TENANTDESK_CREDENTIAL"`
	CredsDir   string        `help:"custom credentials directory" env:"TENANTDESK_CREDENTIALS_DIR"`
	Timeout    time.Duration `help:"request timeout" default:"30s"`
	NoCache    bool          `help:"do not keep cached responses on disk" env:"TENANTDESK_NO_CACHE"`
}

// client builds an API client from the selected credential.
func (a *AuthFlags) client(globals *Globals) (*client.Client, error) {
	store, err := credentials.NewStore(a.CredsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize credential store: %w", err)
	}

	cred, err := store.Resolve(a.Credential)
	if err != nil {
		if errors.Is(err, credentials.ErrNoDefaultCredential) {
			return nil, errors.New("not logged in\n\nRun:\n  tenantdesk-cli login --server <URL> --email <EMAIL>")
		}
		return nil, err
	}

	if cred.Expired(time.Now()) {
		fmt.Fprintf(os.Stderr, "warning: the token for %q expired at %s, run login again\n",
			cred.Name, cred.ExpiresAt.Local().Format(time.RFC1123))
	}

	cfg := client.Config{
		ServerURL: cred.Server,
		Token:     cred.Token,
		Timeout:   a.Timeout,
		Debug:     globals.Debug,
	}
	if !a.NoCache {
		cfg.CacheDir = store.CacheDir(cred.Name)
	}

	return client.New(cfg)
}
