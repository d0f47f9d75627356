// Package gemini implements the retouch provider on Google Gemini image
// models via the generative-ai-go SDK.
package gemini

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/arjun/pinpoint/internal/retouch"
	"github.com/arjun/pinpoint/pkg/models"
)

const defaultModel = "gemini-2.5-flash-image"

type Provider struct {
	apiKey string
	model  string
}

func New(cfg *retouch.Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, retouch.ErrAPIKeyRequired
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	return &Provider{apiKey: cfg.APIKey, model: model}, nil
}

func (p *Provider) Name() models.ProviderType {
	return models.ProviderGemini
}

func (p *Provider) Process(ctx context.Context, req *models.ProcessRequest) (*models.ProcessResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(p.apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	defer client.Close()

	modelName := req.Model
	if modelName == "" {
		modelName = p.model
	}
	model := client.GenerativeModel(modelName)

	resp, err := model.GenerateContent(ctx,
		genai.ImageData("png", req.Image),
		genai.Text(req.Instruction()),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", retouch.ErrProcessFailed, err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, retouch.ErrNoResult
	}

	for _, part := range resp.Candidates[0].Content.Parts {
		if blob, ok := part.(genai.Blob); ok && len(blob.Data) > 0 {
			return &models.ProcessResult{Data: blob.Data}, nil
		}
	}
	return nil, retouch.ErrNoResult
}
