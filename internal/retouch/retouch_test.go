package retouch

import (
	"context"
	"errors"
	"testing"

	"github.com/arjun/pinpoint/pkg/models"
)

type stubProvider struct {
	name models.ProviderType
	cfg  *Config
}

func (s *stubProvider) Name() models.ProviderType { return s.name }

func (s *stubProvider) Process(ctx context.Context, req *models.ProcessRequest) (*models.ProcessResult, error) {
	return &models.ProcessResult{ImageURL: "https://img.example.com/out.png"}, nil
}

func TestFactory(t *testing.T) {
	f := NewFactory()
	f.Register(models.ProviderOpenAI, func(cfg *Config) (Provider, error) {
		return &stubProvider{name: models.ProviderOpenAI, cfg: cfg}, nil
	})
	f.Register(models.ProviderGemini, func(cfg *Config) (Provider, error) {
		return &stubProvider{name: models.ProviderGemini, cfg: cfg}, nil
	})

	cfg := &Config{APIKey: "sk-test"}
	p, err := f.New(models.ProviderOpenAI, cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if p.Name() != models.ProviderOpenAI {
		t.Errorf("Name() = %v", p.Name())
	}
	if p.(*stubProvider).cfg != cfg {
		t.Error("builder did not receive the config")
	}

	if _, err := f.New(models.ProviderType("nope"), cfg); !errors.Is(err, ErrProviderNotFound) {
		t.Errorf("New(nope) error = %v, want ErrProviderNotFound", err)
	}

	if got := len(f.List()); got != 2 {
		t.Errorf("len(List()) = %d, want 2", got)
	}
}

func TestFactory_BuilderErrorPropagates(t *testing.T) {
	f := NewFactory()
	f.Register(models.ProviderOpenAI, func(cfg *Config) (Provider, error) {
		if cfg.APIKey == "" {
			return nil, ErrAPIKeyRequired
		}
		return &stubProvider{name: models.ProviderOpenAI}, nil
	})

	if _, err := f.New(models.ProviderOpenAI, &Config{}); !errors.Is(err, ErrAPIKeyRequired) {
		t.Errorf("New() error = %v, want ErrAPIKeyRequired", err)
	}
}
