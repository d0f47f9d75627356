package cost

import (
	"sync"

	"github.com/arjun/pinpoint/pkg/models"
)

const CurrencyUSD = "USD"

// Info is the estimated cost of one processed batch.
type Info struct {
	PerImage float64
	Total    float64
	Currency string
}

type Calculator struct{}

func NewCalculator() *Calculator {
	return &Calculator{}
}

// Estimate prices one retouch pass producing count output images.
func (c *Calculator) Estimate(provider models.ProviderType, model string, count int) *Info {
	perImage, ok := EditPrice(provider, model)
	if !ok {
		perImage = providerDefaults[provider]
	}
	return &Info{
		PerImage: perImage,
		Total:    perImage * float64(count),
		Currency: CurrencyUSD,
	}
}

// Tracker accumulates estimated spend across processed batches.
type Tracker struct {
	mu      sync.Mutex
	total   float64
	batches int
}

func NewTracker() *Tracker {
	return &Tracker{}
}

func (t *Tracker) Record(info *Info) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.total += info.Total
	t.batches++
}

// Summary returns the accumulated spend and how many batches produced it.
func (t *Tracker) Summary() (total float64, batches int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total, t.batches
}

func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.total = 0
	t.batches = 0
}
