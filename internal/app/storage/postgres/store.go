package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/R3E-Network/country_service/internal/app/domain/country"
	"github.com/R3E-Network/country_service/internal/app/storage"
)

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sqlx.DB
}

var _ storage.CountryStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: sqlx.NewDb(db, "postgres")}
}

const countryColumns = `id, name, capital, region, population, currency_code, exchange_rate, estimated_gdp, flag_url, last_refreshed_at`

const upsertCountry = `
	INSERT INTO countries (name, capital, region, population, currency_code, exchange_rate, estimated_gdp, flag_url, last_refreshed_at)
	VALUES (:name, :capital, :region, :population, :currency_code, :exchange_rate, :estimated_gdp, :flag_url, :last_refreshed_at)
	ON CONFLICT (name) DO UPDATE SET
		capital = EXCLUDED.capital,
		region = EXCLUDED.region,
		population = EXCLUDED.population,
		currency_code = EXCLUDED.currency_code,
		exchange_rate = EXCLUDED.exchange_rate,
		estimated_gdp = EXCLUDED.estimated_gdp,
		flag_url = EXCLUDED.flag_url,
		last_refreshed_at = EXCLUDED.last_refreshed_at
`

var orderClauses = map[country.Sort]string{
	country.SortNone:           "id ASC",
	country.SortGDPAsc:         "estimated_gdp ASC NULLS LAST, id ASC",
	country.SortGDPDesc:        "estimated_gdp DESC NULLS LAST, id ASC",
	country.SortPopulationAsc:  "population ASC, id ASC",
	country.SortPopulationDesc: "population DESC, id ASC",
	country.SortNameAsc:        `name COLLATE "C" ASC, id ASC`,
	country.SortNameDesc:       `name COLLATE "C" DESC, id ASC`,
}

// --- CountryStore -----------------------------------------------------------

// UpsertCountries writes the batch in one transaction. Any failure rolls the
// whole batch back.
func (s *Store) UpsertCountries(ctx context.Context, countries []country.Country) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for i := range countries {
		c := countries[i]
		if strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("country at index %d has no name", i)
		}
		c.LastRefreshedAt = c.LastRefreshedAt.UTC()
		if _, err = tx.NamedExecContext(ctx, upsertCountry, c); err != nil {
			return fmt.Errorf("upsert %q: %w", c.Name, err)
		}
	}
	return tx.Commit()
}

func (s *Store) GetCountryByName(ctx context.Context, name string) (country.Country, error) {
	var c country.Country
	err := s.db.GetContext(ctx, &c, `SELECT `+countryColumns+` FROM countries WHERE name = $1`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return country.Country{}, storage.ErrNotFound
	}
	if err != nil {
		return country.Country{}, err
	}
	c.LastRefreshedAt = c.LastRefreshedAt.UTC()
	return c, nil
}

func (s *Store) ListCountries(ctx context.Context, q country.Query) ([]country.Country, error) {
	order, ok := orderClauses[q.Sort]
	if !ok {
		return nil, fmt.Errorf("unsupported sort %q", q.Sort)
	}

	var (
		where []string
		args  []any
	)
	if q.Region != "" {
		args = append(args, q.Region)
		where = append(where, fmt.Sprintf("region = $%d", len(args)))
	}
	if q.Currency != "" {
		args = append(args, q.Currency)
		where = append(where, fmt.Sprintf("currency_code = $%d", len(args)))
	}

	var b strings.Builder
	b.WriteString(`SELECT ` + countryColumns + ` FROM countries`)
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY " + order)
	if q.Limit > 0 {
		args = append(args, q.Limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}

	result := []country.Country{}
	if err := s.db.SelectContext(ctx, &result, b.String(), args...); err != nil {
		return nil, err
	}
	for i := range result {
		result[i].LastRefreshedAt = result[i].LastRefreshedAt.UTC()
	}
	return result, nil
}

func (s *Store) DeleteCountry(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM countries WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) CountCountries(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM countries`); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Store) LastRefreshedAt(ctx context.Context) (time.Time, bool, error) {
	var ts sql.NullTime
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(last_refreshed_at) FROM countries`).Scan(&ts); err != nil {
		return time.Time{}, false, err
	}
	if !ts.Valid {
		return time.Time{}, false, nil
	}
	return ts.Time.UTC(), true, nil
}
