// Package retouch defines the interface to external AI retouching services.
// The engine hands a provider the current image plus the validated edit
// points and gets back the processed image.
package retouch

import (
	"context"
	"errors"
	"fmt"

	"github.com/arjun/pinpoint/pkg/models"
)

var (
	ErrProviderNotFound = errors.New("provider not found")
	ErrAPIKeyRequired   = errors.New("API key is required")
	ErrProcessFailed    = errors.New("retouch processing failed")
	ErrNoResult         = errors.New("provider returned no image")
)

type Provider interface {
	Name() models.ProviderType
	Process(ctx context.Context, req *models.ProcessRequest) (*models.ProcessResult, error)
}

type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	TimeoutSec int
}

// Builder constructs a provider from its config.
type Builder func(cfg *Config) (Provider, error)

// Factory maps provider types to their constructors, so a run builds only
// the provider it is configured for. Constructing the others would fail on
// their missing API keys.
type Factory struct {
	builders map[models.ProviderType]Builder
}

func NewFactory() *Factory {
	return &Factory{
		builders: make(map[models.ProviderType]Builder),
	}
}

func (f *Factory) Register(t models.ProviderType, b Builder) {
	f.builders[t] = b
}

// New builds the provider registered for the given type.
func (f *Factory) New(t models.ProviderType, cfg *Config) (Provider, error) {
	b, ok := f.builders[t]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, t)
	}
	return b(cfg)
}

func (f *Factory) List() []models.ProviderType {
	types := make([]models.ProviderType, 0, len(f.builders))
	for t := range f.builders {
		types = append(types, t)
	}
	return types
}
