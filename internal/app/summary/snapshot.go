package summary

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/R3E-Network/country_service/internal/app/domain/country"
)

const (
	// TopN is how many countries the summary ranks by GDP.
	TopN = 5

	Width  = 800
	Height = 600

	neverRefreshed = "Never"
	missingGDP     = "N/A"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/summary.html.tmpl"))

// Store is the read side of the record store the summary needs.
type Store interface {
	CountCountries(ctx context.Context) (int, error)
	ListCountries(ctx context.Context, q country.Query) ([]country.Country, error)
	LastRefreshedAt(ctx context.Context) (time.Time, bool, error)
}

// Entry is one ranked line of the summary.
type Entry struct {
	Rank int
	Name string
	GDP  string
}

// Snapshot is the data shown on the summary image.
type Snapshot struct {
	Total         int
	Top           []Entry
	LastRefreshed string
}

// LoadSnapshot reads the count, the top countries by GDP and the latest
// refresh time from store.
func LoadSnapshot(ctx context.Context, store Store) (Snapshot, error) {
	total, err := store.CountCountries(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("count countries: %w", err)
	}

	top, err := store.ListCountries(ctx, country.Query{Sort: country.SortGDPDesc, Limit: TopN})
	if err != nil {
		return Snapshot{}, fmt.Errorf("list top countries: %w", err)
	}

	last, ok, err := store.LastRefreshedAt(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("last refreshed: %w", err)
	}

	snap := Snapshot{Total: total, LastRefreshed: neverRefreshed}
	if ok {
		snap.LastRefreshed = last.UTC().Format(time.RFC3339)
	}
	for i, c := range top {
		snap.Top = append(snap.Top, Entry{Rank: i + 1, Name: c.Name, GDP: FormatGDP(c.EstimatedGDP)})
	}
	return snap, nil
}

// FormatGDP renders a GDP estimate with thousands separators, or N/A.
func FormatGDP(gdp *float64) string {
	if gdp == nil {
		return missingGDP
	}
	p := message.NewPrinter(language.English)
	return p.Sprint(number.Decimal(*gdp, number.MaxFractionDigits(2)))
}

// RenderHTML produces the fixed-size summary page for snap.
func RenderHTML(snap Snapshot) (string, error) {
	var buf bytes.Buffer
	err := pageTemplate.Execute(&buf, struct {
		Snapshot Snapshot
		Width    int
		Height   int
		Limit    int
	}{snap, Width, Height, TopN})
	if err != nil {
		return "", fmt.Errorf("render summary template: %w", err)
	}
	return buf.String(), nil
}
