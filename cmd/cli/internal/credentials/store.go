package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Sentinel errors
var (
	// ErrCredentialNotFound is returned when a credential doesn't exist.
	ErrCredentialNotFound = errors.New("credential not found")

	// ErrNoDefaultCredential is returned when no default is set.
	ErrNoDefaultCredential = errors.New("no default credential set")

	// ErrInvalidName is returned for a name that is empty or not usable as a directory name.
	ErrInvalidName = errors.New("invalid credential name")
)

const configVersion = 1

// Credential is an access token saved by `login`, together with the server
// that issued it.
type Credential struct {
	Name      string    `json:"name"`
	Server    string    `json:"server"`
	Email     string    `json:"email"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Expired reports whether the token has passed its expiry at now.
func (c *Credential) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// Config represents the credentials configuration file.
type Config struct {
	Version           int                   `json:"version"`
	DefaultCredential string                `json:"default_credential,omitempty"`
	Credentials       map[string]Credential `json:"credentials"`
}

// Store manages credential storage on the local filesystem.
type Store struct {
	baseDir string
	now     func() time.Time
}

// NewStore creates a new credential store.
// If baseDir is empty, uses ~/.tenantdesk/credentials/
func NewStore(baseDir string) (*Store, error) {
	if baseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		baseDir = filepath.Join(home, ".tenantdesk", "credentials")
	}

	// Tokens are bearer secrets, keep the directory private
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create credentials directory: %w", err)
	}

	store := &Store{baseDir: baseDir, now: time.Now}

	if err := store.ensureConfig(); err != nil {
		return nil, err
	}

	log.Debug().Str("baseDir", baseDir).Msg("credential store initialized")

	return store, nil
}

// Save stores cred, replacing any credential with the same name. The first
// credential saved becomes the default.
func (s *Store) Save(cred Credential) (*Credential, error) {
	if !validName(cred.Name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, cred.Name)
	}

	cfg, err := s.loadConfig()
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if existing, ok := cfg.Credentials[cred.Name]; ok {
		cred.CreatedAt = existing.CreatedAt
	} else {
		cred.CreatedAt = now
	}
	cred.UpdatedAt = now

	cfg.Credentials[cred.Name] = cred
	if cfg.DefaultCredential == "" {
		cfg.DefaultCredential = cred.Name
	}

	if err := s.saveConfig(cfg); err != nil {
		return nil, err
	}

	log.Debug().Str("name", cred.Name).Str("server", cred.Server).Msg("saved credential")

	return &cred, nil
}

// Get returns the named credential.
func (s *Store) Get(name string) (*Credential, error) {
	cfg, err := s.loadConfig()
	if err != nil {
		return nil, err
	}

	cred, ok := cfg.Credentials[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCredentialNotFound, name)
	}
	return &cred, nil
}

// GetDefault returns the default credential.
func (s *Store) GetDefault() (*Credential, error) {
	cfg, err := s.loadConfig()
	if err != nil {
		return nil, err
	}

	if cfg.DefaultCredential == "" {
		return nil, ErrNoDefaultCredential
	}

	cred, ok := cfg.Credentials[cfg.DefaultCredential]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCredentialNotFound, cfg.DefaultCredential)
	}
	return &cred, nil
}

// Resolve returns the named credential, or the default when name is empty.
func (s *Store) Resolve(name string) (*Credential, error) {
	if name == "" {
		return s.GetDefault()
	}
	return s.Get(name)
}

// SetDefault makes name the default credential.
func (s *Store) SetDefault(name string) error {
	cfg, err := s.loadConfig()
	if err != nil {
		return err
	}

	if _, ok := cfg.Credentials[name]; !ok {
		return fmt.Errorf("%w: %s", ErrCredentialNotFound, name)
	}

	cfg.DefaultCredential = name
	return s.saveConfig(cfg)
}

// Delete removes a credential. Deleting the default clears the default.
func (s *Store) Delete(name string) error {
	cfg, err := s.loadConfig()
	if err != nil {
		return err
	}

	if _, ok := cfg.Credentials[name]; !ok {
		return fmt.Errorf("%w: %s", ErrCredentialNotFound, name)
	}

	delete(cfg.Credentials, name)
	if cfg.DefaultCredential == name {
		cfg.DefaultCredential = ""
	}

	if err := s.saveConfig(cfg); err != nil {
		return err
	}

	// cached responses belong to the removed token
	if err := os.RemoveAll(s.CacheDir(name)); err != nil {
		log.Warn().Err(err).Str("name", name).Msg("failed to remove response cache")
	}

	return nil
}

func validName(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.ContainsAny(name, `/\`)
}

// CacheDir is where API responses fetched with the named credential are cached.
func (s *Store) CacheDir(name string) string {
	return filepath.Join(s.baseDir, "cache", name)
}

// List returns all credentials sorted by name.
func (s *Store) List() ([]Credential, error) {
	cfg, err := s.loadConfig()
	if err != nil {
		return nil, err
	}

	creds := make([]Credential, 0, len(cfg.Credentials))
	for _, c := range cfg.Credentials {
		creds = append(creds, c)
	}
	sort.Slice(creds, func(i, j int) bool { return creds[i].Name < creds[j].Name })

	return creds, nil
}

func (s *Store) configPath() string {
	return filepath.Join(s.baseDir, "config.json")
}

func (s *Store) ensureConfig() error {
	if _, err := os.Stat(s.configPath()); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to stat config: %w", err)
	}

	return s.saveConfig(&Config{Version: configVersion, Credentials: map[string]Credential{}})
}

func (s *Store) loadConfig() (*Config, error) {
	data, err := os.ReadFile(s.configPath())
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Credentials == nil {
		cfg.Credentials = map[string]Credential{}
	}

	return &cfg, nil
}

// saveConfig writes the config atomically via a temp file and rename.
func (s *Store) saveConfig(cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	tmp := s.configPath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	if err := os.Rename(tmp, s.configPath()); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to save config: %w", err)
	}

	return nil
}
