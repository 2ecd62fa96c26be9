package countries

import (
	"math/rand"
	"sync"
	"time"

	"github.com/R3E-Network/country_service/internal/app/domain/country"
)

const (
	minMultiplier = 1000
	maxMultiplier = 2000
)

// Multiplier supplies the per-record GDP multiplier in [1000, 2000).
type Multiplier interface {
	Next() float64
}

// MultiplierFunc adapts a function to the Multiplier interface.
type MultiplierFunc func() float64

func (f MultiplierFunc) Next() float64 { return f() }

// RandomMultiplier draws multipliers uniformly. Safe for concurrent use.
type RandomMultiplier struct {
	mu   sync.Mutex
	rand *rand.Rand
}

func NewRandomMultiplier() *RandomMultiplier {
	return &RandomMultiplier{rand: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (m *RandomMultiplier) Next() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return minMultiplier + m.rand.Float64()*(maxMultiplier-minMultiplier)
}

// buildCountry merges a directory entry with the rate table. Exchange rate and
// estimated GDP are set together, only for a positive rate.
func buildCountry(entry DirectoryEntry, rates map[string]float64, m Multiplier, refreshedAt time.Time) country.Country {
	c := country.Country{
		Name:            entry.Name,
		Capital:         entry.Capital,
		Region:          entry.Region,
		Population:      entry.Population,
		FlagURL:         entry.FlagURL,
		CurrencyCode:    entry.CurrencyCode,
		LastRefreshedAt: refreshedAt,
	}
	if entry.CurrencyCode == nil {
		return c
	}
	rate, ok := rates[*entry.CurrencyCode]
	if !ok || rate <= 0 {
		return c
	}
	gdp := float64(entry.Population) * m.Next() / rate
	c.ExchangeRate = &rate
	c.EstimatedGDP = &gdp
	return c
}
