// Package keys stores provider API keys in the user config directory and
// resolves which key a run should use.
package keys

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/arjun/pinpoint/pkg/models"
)

var ErrEmptyKey = errors.New("key cannot be empty")

// Store is the on-disk key file, one entry per retouch provider.
type Store struct {
	dir string
}

func NewStore() (*Store, error) {
	dir, err := configDir()
	if err != nil {
		return nil, err
	}
	return &Store{dir: dir}, nil
}

// configDir resolves the pinpoint config directory. os.UserConfigDir already
// follows XDG on linux, Application Support on darwin and APPDATA on windows.
func configDir() (string, error) {
	if dir := os.Getenv("PINPOINT_CONFIG_DIR"); dir != "" {
		return dir, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "pinpoint"), nil
}

// Path returns the location of the key file.
func (s *Store) Path() string {
	return filepath.Join(s.dir, "keys.json")
}

func (s *Store) read() (map[models.ProviderType]string, error) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return map[models.ProviderType]string{}, nil
		}
		return nil, err
	}

	keys := map[models.ProviderType]string{}
	if err := json.Unmarshal(data, &keys); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", s.Path(), err)
	}
	return keys, nil
}

func (s *Store) write(keys map[models.ProviderType]string) error {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(keys, "", "  ")
	if err != nil {
		return err
	}
	// keys are credentials; owner read/write only
	if err := os.WriteFile(s.Path(), data, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", s.Path(), err)
	}
	return nil
}

// Set stores the key for a provider, replacing any previous one.
func (s *Store) Set(provider models.ProviderType, key string) error {
	if !provider.IsValid() {
		return fmt.Errorf("invalid provider %q: must be one of %v", provider, models.ValidProviders())
	}
	if strings.TrimSpace(key) == "" {
		return ErrEmptyKey
	}

	keys, err := s.read()
	if err != nil {
		return err
	}
	keys[provider] = key
	return s.write(keys)
}

// Get returns the stored key for a provider, or "" when none is stored.
func (s *Store) Get(provider models.ProviderType) (string, error) {
	keys, err := s.read()
	if err != nil {
		return "", err
	}
	return keys[provider], nil
}

// Delete removes the stored key for a provider.
func (s *Store) Delete(provider models.ProviderType) error {
	keys, err := s.read()
	if err != nil {
		return err
	}
	if _, ok := keys[provider]; !ok {
		return fmt.Errorf("no stored key for %s", provider)
	}
	delete(keys, provider)
	return s.write(keys)
}

// List returns the providers with stored keys, sorted for stable output.
func (s *Store) List() ([]models.ProviderType, error) {
	keys, err := s.read()
	if err != nil {
		return nil, err
	}
	providers := make([]models.ProviderType, 0, len(keys))
	for p := range keys {
		providers = append(providers, p)
	}
	sort.Slice(providers, func(i, j int) bool { return providers[i] < providers[j] })
	return providers, nil
}

// MaskKey returns a display form of a key that keeps only the first and last
// four characters.
func MaskKey(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}

// GetAPIKey resolves the key for a run: an explicit --api-key flag wins, then
// the stored key, then the provider's environment variable. The returned
// source string is shown to the user so they know which key is in play.
func GetAPIKey(explicit string, provider models.ProviderType, envVar string) (string, string, error) {
	if explicit != "" {
		return explicit, "command-line flag", nil
	}

	if store, err := NewStore(); err == nil {
		if stored, err := store.Get(provider); err == nil && stored != "" {
			return stored, fmt.Sprintf("stored key (%s)", store.Path()), nil
		}
	}

	if envKey := os.Getenv(envVar); envKey != "" {
		return envKey, fmt.Sprintf("environment variable (%s)", envVar), nil
	}

	return "", "", fmt.Errorf("API key required: run 'pinpoint keys set %s <key>' or set %s", provider, envVar)
}
