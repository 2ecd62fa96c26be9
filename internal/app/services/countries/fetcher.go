package countries

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	svcerrors "github.com/R3E-Network/country_service/internal/errors"
	"github.com/R3E-Network/country_service/internal/httputil"
	"github.com/R3E-Network/country_service/pkg/logger"
)

// DirectoryEntry is one country as published by the directory provider.
type DirectoryEntry struct {
	Name         string
	Capital      *string
	Region       *string
	Population   int64
	FlagURL      *string
	CurrencyCode *string
}

// Directory retrieves the full country directory.
type Directory interface {
	FetchCountries(ctx context.Context) ([]DirectoryEntry, error)
}

// RateTable retrieves exchange rates against USD, keyed by currency code.
type RateTable interface {
	FetchRates(ctx context.Context) (map[string]float64, error)
}

// DirectoryFunc adapts a function to the Directory interface.
type DirectoryFunc func(ctx context.Context) ([]DirectoryEntry, error)

func (f DirectoryFunc) FetchCountries(ctx context.Context) ([]DirectoryEntry, error) {
	return f(ctx)
}

// RateTableFunc adapts a function to the RateTable interface.
type RateTableFunc func(ctx context.Context) (map[string]float64, error)

func (f RateTableFunc) FetchRates(ctx context.Context) (map[string]float64, error) {
	return f(ctx)
}

// HTTPDirectory reads a restcountries v2 style JSON array.
type HTTPDirectory struct {
	client *httputil.Client
	url    string
	log    *logger.Logger
}

// NewHTTPDirectory creates a directory client for url.
func NewHTTPDirectory(client *httputil.Client, url string, log *logger.Logger) (*HTTPDirectory, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errors.New("countries url is required")
	}
	if client == nil {
		client = httputil.NewClient(httputil.ClientConfig{})
	}
	if log == nil {
		log = logger.NewDefault("countries-directory")
	}
	return &HTTPDirectory{client: client, url: url, log: log}, nil
}

func (d *HTTPDirectory) FetchCountries(ctx context.Context) ([]DirectoryEntry, error) {
	body, err := d.client.GetBytes(ctx, d.url)
	if err != nil {
		return nil, d.unavailable(err)
	}
	entries, err := parseDirectory(body)
	if err != nil {
		return nil, d.unavailable(err)
	}
	d.log.WithField("count", len(entries)).Debug("country directory fetched")
	return entries, nil
}

func (d *HTTPDirectory) unavailable(err error) error {
	host := httputil.Host(d.url)
	d.log.WithError(err).WithField("host", host).Warn("country directory fetch failed")
	return svcerrors.UpstreamUnavailable(host, err)
}

func parseDirectory(body []byte) ([]DirectoryEntry, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.New("invalid json from country directory")
	}
	root := gjson.ParseBytes(body)
	if !root.IsArray() {
		return nil, errors.New("country directory response is not an array")
	}

	items := root.Array()
	entries := make([]DirectoryEntry, 0, len(items))
	for _, item := range items {
		entry := DirectoryEntry{
			Name:         item.Get("name").String(),
			Capital:      optionalString(item.Get("capital")),
			Region:       optionalString(item.Get("region")),
			Population:   item.Get("population").Int(),
			FlagURL:      optionalString(item.Get("flag")),
			CurrencyCode: optionalString(item.Get("currencies.0.code")),
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func optionalString(v gjson.Result) *string {
	if !v.Exists() || v.Type == gjson.Null {
		return nil
	}
	s := v.String()
	if s == "" {
		return nil
	}
	return &s
}

// HTTPRateTable reads an open.er-api.com style {"rates": {...}} document.
type HTTPRateTable struct {
	client *httputil.Client
	url    string
	log    *logger.Logger
}

// NewHTTPRateTable creates a rate table client for url.
func NewHTTPRateTable(client *httputil.Client, url string, log *logger.Logger) (*HTTPRateTable, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errors.New("exchange rate url is required")
	}
	if client == nil {
		client = httputil.NewClient(httputil.ClientConfig{})
	}
	if log == nil {
		log = logger.NewDefault("countries-rates")
	}
	return &HTTPRateTable{client: client, url: url, log: log}, nil
}

func (t *HTTPRateTable) FetchRates(ctx context.Context) (map[string]float64, error) {
	body, err := t.client.GetBytes(ctx, t.url)
	if err != nil {
		return nil, t.unavailable(err)
	}
	rates, err := parseRates(body)
	if err != nil {
		return nil, t.unavailable(err)
	}
	t.log.WithField("count", len(rates)).Debug("exchange rates fetched")
	return rates, nil
}

func (t *HTTPRateTable) unavailable(err error) error {
	host := httputil.Host(t.url)
	t.log.WithError(err).WithField("host", host).Warn("exchange rate fetch failed")
	return svcerrors.UpstreamUnavailable(host, err)
}

func parseRates(body []byte) (map[string]float64, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.New("invalid json from exchange rate provider")
	}
	rates := gjson.GetBytes(body, "rates")
	if !rates.IsObject() {
		return nil, fmt.Errorf("exchange rate response has no rates object")
	}

	out := make(map[string]float64)
	rates.ForEach(func(code, value gjson.Result) bool {
		if value.Type == gjson.Number {
			out[code.String()] = value.Float()
		}
		return true
	})
	return out, nil
}
