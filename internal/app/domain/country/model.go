package country

import "time"

// Country is the persisted, merged view of one upstream directory entry.
type Country struct {
	ID              int64     `json:"id" db:"id"`
	Name            string    `json:"name" db:"name"`
	Capital         *string   `json:"capital" db:"capital"`
	Region          *string   `json:"region" db:"region"`
	Population      int64     `json:"population" db:"population"`
	CurrencyCode    *string   `json:"currency_code" db:"currency_code"`
	ExchangeRate    *float64  `json:"exchange_rate" db:"exchange_rate"`
	EstimatedGDP    *float64  `json:"estimated_gdp" db:"estimated_gdp"`
	FlagURL         *string   `json:"flag_url" db:"flag_url"`
	LastRefreshedAt time.Time `json:"last_refreshed_at" db:"last_refreshed_at"`
}

// Sort is an allow-listed ordering for country listings.
type Sort string

const (
	SortNone           Sort = ""
	SortGDPAsc         Sort = "gdp_asc"
	SortGDPDesc        Sort = "gdp_desc"
	SortPopulationAsc  Sort = "population_asc"
	SortPopulationDesc Sort = "population_desc"
	SortNameAsc        Sort = "name_asc"
	SortNameDesc       Sort = "name_desc"
)

// Sorts lists every accepted sort key.
var Sorts = []Sort{SortGDPAsc, SortGDPDesc, SortPopulationAsc, SortPopulationDesc, SortNameAsc, SortNameDesc}

// Valid reports whether s is empty or one of Sorts.
func (s Sort) Valid() bool {
	if s == SortNone {
		return true
	}
	for _, known := range Sorts {
		if s == known {
			return true
		}
	}
	return false
}

// Query selects countries. Region and Currency are exact matches combined
// with AND. Limit 0 means no limit.
type Query struct {
	Region   string
	Currency string
	Sort     Sort
	Limit    int
}

// Status reports how many countries are stored and when they were refreshed.
type Status struct {
	TotalCountries  int       `json:"total_countries"`
	LastRefreshedAt time.Time `json:"last_refreshed_at"`
}

// RefreshResult is returned by a completed refresh.
type RefreshResult struct {
	Message            string `json:"message"`
	CountriesProcessed int    `json:"countries_processed"`
}

// HasEstimate reports whether the derived GDP pair is present.
func (c Country) HasEstimate() bool {
	return c.ExchangeRate != nil && c.EstimatedGDP != nil
}
