package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/R3E-Network/country_service/internal/app/domain/country"
	"github.com/R3E-Network/country_service/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local development.
type Store struct {
	mu        sync.RWMutex
	nextID    int64
	countries map[int64]country.Country
	byName    map[string]int64
}

var _ storage.CountryStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		nextID:    1,
		countries: make(map[int64]country.Country),
		byName:    make(map[string]int64),
	}
}

func (s *Store) nextIDLocked() int64 {
	id := s.nextID
	s.nextID++
	return id
}

// CountryStore implementation -------------------------------------------------

func (s *Store) UpsertCountries(_ context.Context, countries []country.Country) error {
	for i, c := range countries {
		if strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("country at index %d has no name", i)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range countries {
		if id, ok := s.byName[c.Name]; ok {
			c.ID = id
		} else {
			c.ID = s.nextIDLocked()
			s.byName[c.Name] = c.ID
		}
		c.LastRefreshedAt = c.LastRefreshedAt.UTC()
		s.countries[c.ID] = cloneCountry(c)
	}
	return nil
}

func (s *Store) GetCountryByName(_ context.Context, name string) (country.Country, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byName[name]
	if !ok {
		return country.Country{}, storage.ErrNotFound
	}
	return cloneCountry(s.countries[id]), nil
}

func (s *Store) ListCountries(_ context.Context, q country.Query) ([]country.Country, error) {
	s.mu.RLock()
	result := make([]country.Country, 0, len(s.countries))
	for _, c := range s.countries {
		if q.Region != "" && (c.Region == nil || *c.Region != q.Region) {
			continue
		}
		if q.Currency != "" && (c.CurrencyCode == nil || *c.CurrencyCode != q.Currency) {
			continue
		}
		result = append(result, cloneCountry(c))
	}
	s.mu.RUnlock()

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})
	if less := lessFunc(q.Sort); less != nil {
		sort.SliceStable(result, func(i, j int) bool {
			return less(result[i], result[j])
		})
	}
	if q.Limit > 0 && len(result) > q.Limit {
		result = result[:q.Limit]
	}
	return result, nil
}

func (s *Store) DeleteCountry(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.countries[id]
	if !ok {
		return storage.ErrNotFound
	}
	delete(s.countries, id)
	delete(s.byName, c.Name)
	return nil
}

func (s *Store) CountCountries(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.countries), nil
}

func (s *Store) LastRefreshedAt(_ context.Context) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		latest time.Time
		found  bool
	)
	for _, c := range s.countries {
		if !found || c.LastRefreshedAt.After(latest) {
			latest = c.LastRefreshedAt
			found = true
		}
	}
	return latest, found, nil
}

// lessFunc mirrors the postgres ordering: absent GDP sorts last both ways.
func lessFunc(s country.Sort) func(a, b country.Country) bool {
	switch s {
	case country.SortGDPAsc:
		return func(a, b country.Country) bool { return gdpLess(a, b, false) }
	case country.SortGDPDesc:
		return func(a, b country.Country) bool { return gdpLess(a, b, true) }
	case country.SortPopulationAsc:
		return func(a, b country.Country) bool { return a.Population < b.Population }
	case country.SortPopulationDesc:
		return func(a, b country.Country) bool { return a.Population > b.Population }
	case country.SortNameAsc:
		return func(a, b country.Country) bool { return a.Name < b.Name }
	case country.SortNameDesc:
		return func(a, b country.Country) bool { return a.Name > b.Name }
	default:
		return nil
	}
}

func gdpLess(a, b country.Country, desc bool) bool {
	switch {
	case a.EstimatedGDP == nil:
		return false
	case b.EstimatedGDP == nil:
		return true
	case desc:
		return *a.EstimatedGDP > *b.EstimatedGDP
	default:
		return *a.EstimatedGDP < *b.EstimatedGDP
	}
}

func cloneCountry(c country.Country) country.Country {
	c.Capital = cloneString(c.Capital)
	c.Region = cloneString(c.Region)
	c.CurrencyCode = cloneString(c.CurrencyCode)
	c.FlagURL = cloneString(c.FlagURL)
	c.ExchangeRate = cloneFloat(c.ExchangeRate)
	c.EstimatedGDP = cloneFloat(c.EstimatedGDP)
	return c
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}
