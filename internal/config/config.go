// Package config assembles runtime configuration from the environment and
// an optional limits file.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/arjun/pinpoint/internal/policy"
	"github.com/arjun/pinpoint/pkg/models"
)

// Config is everything the CLI and server need to wire up an engine.
type Config struct {
	Provider   models.ProviderType
	Model      string
	APIKey     string
	BaseURL    string
	UploadURL  string
	Addr       string
	TimeoutSec int
	Limits     policy.Limits
}

// Load reads configuration from the environment. A .env file in the working
// directory is merged in first, without overriding variables already set.
func Load() (*Config, error) {
	// missing .env is fine; explicit env always wins
	_ = godotenv.Load()

	cfg := &Config{
		Provider:   models.ProviderType(getEnv("PINPOINT_PROVIDER", string(models.ProviderOpenAI))),
		Model:      os.Getenv("PINPOINT_MODEL"),
		BaseURL:    os.Getenv("PINPOINT_BASE_URL"),
		UploadURL:  os.Getenv("PINPOINT_UPLOAD_URL"),
		Addr:       getEnv("PINPOINT_ADDR", ":8799"),
		TimeoutSec: getEnvInt("PINPOINT_TIMEOUT_SEC", 120),
		Limits:     policy.DefaultLimits(),
	}

	if !cfg.Provider.IsValid() {
		return nil, fmt.Errorf("invalid provider %q: must be one of %v", cfg.Provider, models.ValidProviders())
	}

	if path := os.Getenv("PINPOINT_LIMITS_FILE"); path != "" {
		limits, err := LoadLimits(path)
		if err != nil {
			return nil, err
		}
		cfg.Limits = limits
	}

	return cfg, nil
}

// KeyEnvVar returns the environment variable the provider's API key lives in.
func KeyEnvVar(p models.ProviderType) string {
	switch p {
	case models.ProviderGemini:
		return "GEMINI_API_KEY"
	default:
		return "OPENAI_API_KEY"
	}
}

// LoadLimits reads a limits override from a YAML file. Zero or negative
// values fall back to the defaults so a partial file stays usable.
func LoadLimits(path string) (policy.Limits, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return policy.Limits{}, fmt.Errorf("failed to read limits file: %w", err)
	}

	limits := policy.DefaultLimits()
	if err := yaml.Unmarshal(data, &limits); err != nil {
		return policy.Limits{}, fmt.Errorf("failed to parse limits file: %w", err)
	}

	defaults := policy.DefaultLimits()
	if limits.MaxEditsPerImage <= 0 {
		limits.MaxEditsPerImage = defaults.MaxEditsPerImage
	}
	if limits.MaxHotspotsPerSession <= 0 {
		limits.MaxHotspotsPerSession = defaults.MaxHotspotsPerSession
	}
	if limits.MaxTotalHotspotsPerSession <= 0 {
		limits.MaxTotalHotspotsPerSession = defaults.MaxTotalHotspotsPerSession
	}
	if limits.MaxSessions <= 0 {
		limits.MaxSessions = defaults.MaxSessions
	}
	return limits, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
