// Package cost estimates what a retouch pass costs. Providers bill per
// output image, so a processed batch costs the same whether it carried one
// edit point or six.
package cost

import "github.com/arjun/pinpoint/pkg/models"

// Per-image edit pricing in USD.
// Sources: https://openai.com/api/pricing/ and https://ai.google.dev/pricing
type PricingKey struct {
	Provider models.ProviderType
	Model    string
}

var editPricing = map[PricingKey]float64{
	{Provider: models.ProviderOpenAI, Model: "gpt-image-1"}: 0.042,
	{Provider: models.ProviderOpenAI, Model: "dall-e-2"}:    0.020,

	{Provider: models.ProviderGemini, Model: "gemini-2.5-flash-image"}: 0.039,
}

// fallback prices when the exact model is unknown
var providerDefaults = map[models.ProviderType]float64{
	models.ProviderOpenAI: 0.042,
	models.ProviderGemini: 0.039,
}

func EditPrice(provider models.ProviderType, model string) (float64, bool) {
	price, ok := editPricing[PricingKey{Provider: provider, Model: model}]
	return price, ok
}
