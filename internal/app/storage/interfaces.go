package storage

import (
	"context"
	"errors"
	"time"

	"github.com/R3E-Network/country_service/internal/app/domain/country"
)

// ErrNotFound is returned when a lookup or delete target does not exist.
var ErrNotFound = errors.New("record not found")

// CountryStore persists country records.
type CountryStore interface {
	// UpsertCountries inserts or fully replaces each record by exact name,
	// atomically. Existing ids are preserved.
	UpsertCountries(ctx context.Context, countries []country.Country) error
	GetCountryByName(ctx context.Context, name string) (country.Country, error)
	ListCountries(ctx context.Context, q country.Query) ([]country.Country, error)
	DeleteCountry(ctx context.Context, id int64) error
	CountCountries(ctx context.Context) (int, error)
	// LastRefreshedAt returns the newest last_refreshed_at, and false when empty.
	LastRefreshedAt(ctx context.Context) (time.Time, bool, error)
}
