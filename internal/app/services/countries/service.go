package countries

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/R3E-Network/country_service/internal/app/domain/country"
	"github.com/R3E-Network/country_service/internal/app/metrics"
	"github.com/R3E-Network/country_service/internal/app/refreshlock"
	"github.com/R3E-Network/country_service/internal/app/storage"
	"github.com/R3E-Network/country_service/internal/app/summary"
	svcerrors "github.com/R3E-Network/country_service/internal/errors"
	"github.com/R3E-Network/country_service/pkg/logger"
)

const (
	msgRefreshed        = "Countries refreshed successfully"
	msgDeleted          = "Country deleted successfully"
	msgCountryNotFound  = "Country not found"
	msgImageNotFound    = "Summary image not found"
	msgRefreshInProcess = "Refresh already in progress"
)

// Summary publishes and serves the summary image.
type Summary interface {
	Publish(ctx context.Context)
	Image() ([]byte, error)
}

// Service refreshes the country cache from upstream and serves reads over it.
type Service struct {
	store     storage.CountryStore
	directory Directory
	rates     RateTable
	log       *logger.Logger

	mu         sync.RWMutex
	multiplier Multiplier
	locker     refreshlock.Locker
	summary    Summary
	now        func() time.Time
}

// New constructs a countries service.
func New(store storage.CountryStore, directory Directory, rates RateTable, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("countries")
	}
	return &Service{
		store:      store,
		directory:  directory,
		rates:      rates,
		log:        log,
		multiplier: NewRandomMultiplier(),
		locker:     refreshlock.NewLocal(),
		now:        time.Now,
	}
}

// WithMultiplier replaces the GDP multiplier source.
func (s *Service) WithMultiplier(m Multiplier) {
	s.mu.Lock()
	s.multiplier = m
	s.mu.Unlock()
}

// WithLocker replaces the refresh lock.
func (s *Service) WithLocker(l refreshlock.Locker) {
	s.mu.Lock()
	s.locker = l
	s.mu.Unlock()
}

// WithSummary assigns the summary publisher run after each refresh.
func (s *Service) WithSummary(sum Summary) {
	s.mu.Lock()
	s.summary = sum
	s.mu.Unlock()
}

// WithClock overrides the time source.
func (s *Service) WithClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

func (s *Service) deps() (Multiplier, refreshlock.Locker, Summary, func() time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.multiplier, s.locker, s.summary, s.now
}

// Refresh fetches both upstream sources, upserts every directory entry and
// publishes a new summary image. Only one refresh runs at a time.
func (s *Service) Refresh(ctx context.Context) (country.RefreshResult, error) {
	start := time.Now()
	_, locker, _, _ := s.deps()

	unlock, ok, err := locker.TryLock(ctx)
	if err != nil {
		metrics.RecordRefresh("error", 0, time.Since(start))
		return country.RefreshResult{}, fmt.Errorf("acquire refresh lock: %w", err)
	}
	if !ok {
		metrics.RecordRefresh("conflict", 0, time.Since(start))
		s.log.Warn("refresh rejected: another refresh is running")
		return country.RefreshResult{}, svcerrors.Conflict(msgRefreshInProcess)
	}
	defer unlock()

	processed, err := s.refresh(ctx)
	metrics.RecordRefresh(refreshResultLabel(err), processed, time.Since(start))
	if err != nil {
		s.log.WithError(err).Warn("country refresh failed")
		return country.RefreshResult{}, err
	}

	s.log.WithField("countries_processed", processed).
		WithField("duration_ms", time.Since(start).Milliseconds()).
		Info("countries refreshed")
	return country.RefreshResult{Message: msgRefreshed, CountriesProcessed: processed}, nil
}

func (s *Service) refresh(ctx context.Context) (int, error) {
	multiplier, _, sum, now := s.deps()

	entries, err := s.directory.FetchCountries(ctx)
	if err != nil {
		return 0, asUpstream("country directory", err)
	}
	rates, err := s.rates.FetchRates(ctx)
	if err != nil {
		return 0, asUpstream("exchange rates", err)
	}

	refreshedAt := now().UTC()
	records := make([]country.Country, 0, len(entries))
	for i, entry := range entries {
		if strings.TrimSpace(entry.Name) == "" {
			return 0, fmt.Errorf("directory entry %d has no name", i)
		}
		records = append(records, buildCountry(entry, rates, multiplier, refreshedAt))
	}

	if err := s.store.UpsertCountries(ctx, records); err != nil {
		return 0, fmt.Errorf("persist countries: %w", err)
	}

	if sum != nil {
		sum.Publish(ctx)
	}
	return len(entries), nil
}

// asUpstream keeps classified fetch errors and marks anything else as an
// unavailable upstream.
func asUpstream(provider string, err error) error {
	if _, ok := svcerrors.As(err); ok {
		return err
	}
	return svcerrors.UpstreamUnavailable(provider, err)
}

func refreshResultLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case svcerrors.IsCode(err, svcerrors.CodeUpstreamUnavailable):
		return "upstream_error"
	default:
		return "error"
	}
}

// List returns countries matching q.
func (s *Service) List(ctx context.Context, q country.Query) ([]country.Country, error) {
	if !q.Sort.Valid() {
		return nil, svcerrors.Validation(map[string]string{"sort": sortHint()})
	}
	result, err := s.store.ListCountries(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list countries: %w", err)
	}
	return result, nil
}

func sortHint() string {
	keys := make([]string, len(country.Sorts))
	for i, k := range country.Sorts {
		keys[i] = string(k)
	}
	return "must be one of " + strings.Join(keys, ", ")
}

// Get returns the country with exactly this name.
func (s *Service) Get(ctx context.Context, name string) (country.Country, error) {
	c, err := s.store.GetCountryByName(ctx, name)
	if errors.Is(err, storage.ErrNotFound) {
		return country.Country{}, svcerrors.NotFound(msgCountryNotFound)
	}
	if err != nil {
		return country.Country{}, fmt.Errorf("get country: %w", err)
	}
	return c, nil
}

// Delete permanently removes the country with exactly this name.
func (s *Service) Delete(ctx context.Context, name string) (string, error) {
	c, err := s.Get(ctx, name)
	if err != nil {
		return "", err
	}
	err = s.store.DeleteCountry(ctx, c.ID)
	if errors.Is(err, storage.ErrNotFound) {
		return "", svcerrors.NotFound(msgCountryNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("delete country: %w", err)
	}
	s.log.WithField("country", name).Info("country deleted")
	return msgDeleted, nil
}

// Status reports the record count and latest refresh time. An empty store
// reports the current time.
func (s *Service) Status(ctx context.Context) (country.Status, error) {
	_, _, _, now := s.deps()

	total, err := s.store.CountCountries(ctx)
	if err != nil {
		return country.Status{}, fmt.Errorf("count countries: %w", err)
	}
	last, ok, err := s.store.LastRefreshedAt(ctx)
	if err != nil {
		return country.Status{}, fmt.Errorf("last refreshed: %w", err)
	}
	if !ok {
		last = now()
	}
	return country.Status{TotalCountries: total, LastRefreshedAt: last.UTC()}, nil
}

// SummaryImage returns the last published summary PNG.
func (s *Service) SummaryImage(ctx context.Context) ([]byte, error) {
	_, _, sum, _ := s.deps()
	if sum == nil {
		return nil, svcerrors.NotFound(msgImageNotFound)
	}
	data, err := sum.Image()
	if errors.Is(err, summary.ErrNoImage) {
		return nil, svcerrors.NotFound(msgImageNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("summary image: %w", err)
	}
	return data, nil
}
