package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	app "github.com/R3E-Network/country_service/internal/app"
	"github.com/R3E-Network/country_service/internal/app/services/countries"
	"github.com/R3E-Network/country_service/internal/app/summary"
	"github.com/R3E-Network/country_service/internal/config"
	"github.com/R3E-Network/country_service/pkg/logger"
)

const countriesBody = `[
  {"name":"Nigeria","capital":"Abuja","region":"Africa","population":206139589,"flag":"https://flagcdn.com/ng.svg","currencies":[{"code":"NGN"}]},
  {"name":"Ghana","capital":"Accra","region":"Africa","population":31072940,"flag":"https://flagcdn.com/gh.svg","currencies":[{"code":"GHS"}]},
  {"name":"Germany","capital":"Berlin","region":"Europe","population":83240525,"flag":"https://flagcdn.com/de.svg","currencies":[{"code":"EUR"}]},
  {"name":"Antarctica","region":"Polar","population":1000,"flag":"https://flagcdn.com/aq.svg"}
]`

const ratesBody = `{"result":"success","rates":{"USD":1,"NGN":1600.23,"GHS":15.34,"EUR":0.92}}`

var fakePNG = []byte("\x89PNG\r\n\x1a\nfake")

type testEnv struct {
	handler       http.Handler
	countriesDown atomic.Bool
	countriesURL  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{}

	countriesSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if env.countriesDown.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(countriesBody))
	}))
	t.Cleanup(countriesSrv.Close)
	ratesSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(ratesBody))
	}))
	t.Cleanup(ratesSrv.Close)
	env.countriesURL = countriesSrv.URL

	cfg := config.Default()
	cfg.Upstream.CountriesURL = countriesSrv.URL + "/v2/all"
	cfg.Upstream.ExchangeRateURL = ratesSrv.URL + "/v6/latest/USD"
	cfg.Summary.CacheDir = t.TempDir()

	log := logger.New(logger.LoggingConfig{Output: &bytes.Buffer{}})
	application, err := app.New(cfg, app.Stores{}, app.Dependencies{
		Rasterizer: summary.RasterizerFunc(func(context.Context, string) ([]byte, error) {
			return fakePNG, nil
		}),
		Multiplier: countries.MultiplierFunc(func() float64 { return 1000 }),
	}, log)
	if err != nil {
		t.Fatalf("new application: %v", err)
	}
	if err := application.Start(context.Background()); err != nil {
		t.Fatalf("start application: %v", err)
	}
	t.Cleanup(func() { _ = application.Stop(context.Background()) })

	env.handler = NewHandler(application, log, Options{AllowedOrigins: []string{"*"}})
	return env
}

func (e *testEnv) do(t *testing.T, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestHandlerLifecycle(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/countries/image")
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before refresh, got %d", resp.Code)
	}
	if body := decode[map[string]string](t, resp); body["error"] != "Summary image not found" {
		t.Fatalf("unexpected body %v", body)
	}

	resp = env.do(t, http.MethodPost, "/countries/refresh")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 refresh, got %d: %s", resp.Code, resp.Body.String())
	}
	refresh := decode[map[string]any](t, resp)
	if refresh["message"] != "Countries refreshed successfully" || refresh["countries_processed"] != float64(4) {
		t.Fatalf("unexpected refresh body %v", refresh)
	}

	resp = env.do(t, http.MethodGet, "/countries/Nigeria")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 get, got %d", resp.Code)
	}
	ng := decode[map[string]any](t, resp)
	if ng["currency_code"] != "NGN" || ng["exchange_rate"] != 1600.23 || ng["estimated_gdp"] == nil {
		t.Fatalf("unexpected country %v", ng)
	}

	resp = env.do(t, http.MethodGet, "/countries/Antarctica")
	aq := decode[map[string]any](t, resp)
	if aq["estimated_gdp"] != nil || aq["exchange_rate"] != nil || aq["currency_code"] != nil {
		t.Fatalf("expected null derived fields, got %v", aq)
	}

	resp = env.do(t, http.MethodGet, "/countries/image")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 image, got %d", resp.Code)
	}
	if ct := resp.Header().Get("Content-Type"); ct != "image/png" {
		t.Fatalf("content type = %s", ct)
	}
	if cl := resp.Header().Get("Content-Length"); cl != strconv.Itoa(len(fakePNG)) {
		t.Fatalf("content length = %s", cl)
	}
	if !bytes.Equal(resp.Body.Bytes(), fakePNG) {
		t.Fatal("image bytes mismatch")
	}

	resp = env.do(t, http.MethodGet, "/status")
	status := decode[map[string]any](t, resp)
	if status["total_countries"] != float64(4) || status["last_refreshed_at"] == "" {
		t.Fatalf("unexpected status %v", status)
	}

	resp = env.do(t, http.MethodDelete, "/countries/Nigeria")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 delete, got %d", resp.Code)
	}
	if body := decode[map[string]string](t, resp); body["message"] != "Country deleted successfully" {
		t.Fatalf("unexpected delete body %v", body)
	}

	for _, method := range []string{http.MethodGet, http.MethodDelete} {
		resp = env.do(t, method, "/countries/Nigeria")
		if resp.Code != http.StatusNotFound {
			t.Fatalf("%s after delete: expected 404, got %d", method, resp.Code)
		}
		if body := decode[map[string]string](t, resp); body["error"] != "Country not found" {
			t.Fatalf("unexpected body %v", body)
		}
	}
}

func TestListFiltersAndSorting(t *testing.T) {
	env := newTestEnv(t)
	if resp := env.do(t, http.MethodPost, "/countries/refresh"); resp.Code != http.StatusOK {
		t.Fatalf("refresh: %d", resp.Code)
	}

	resp := env.do(t, http.MethodGet, "/countries?region=Africa&sort=name_asc")
	list := decode[[]map[string]any](t, resp)
	if len(list) != 2 || list[0]["name"] != "Ghana" || list[1]["name"] != "Nigeria" {
		t.Fatalf("unexpected africa list %v", list)
	}

	resp = env.do(t, http.MethodGet, "/countries?currency=EUR")
	list = decode[[]map[string]any](t, resp)
	if len(list) != 1 || list[0]["name"] != "Germany" {
		t.Fatalf("unexpected currency list %v", list)
	}

	resp = env.do(t, http.MethodGet, "/countries?region=africa")
	list = decode[[]map[string]any](t, resp)
	if len(list) != 0 {
		t.Fatalf("region filter should be exact, got %v", list)
	}

	resp = env.do(t, http.MethodGet, "/countries?sort=population_desc")
	list = decode[[]map[string]any](t, resp)
	for i := 1; i < len(list); i++ {
		if list[i-1]["population"].(float64) < list[i]["population"].(float64) {
			t.Fatalf("population not descending: %v", list)
		}
	}

	resp = env.do(t, http.MethodGet, "/countries?sort=gdp_desc")
	list = decode[[]map[string]any](t, resp)
	if list[len(list)-1]["name"] != "Antarctica" {
		t.Fatalf("expected null gdp last, got %v", list)
	}

	resp = env.do(t, http.MethodGet, "/countries?sort=bogus")
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown sort, got %d", resp.Code)
	}
	body := decode[map[string]any](t, resp)
	if body["error"] != "Validation failed" {
		t.Fatalf("unexpected validation body %v", body)
	}
}

func TestNameLookupIsCaseSensitive(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/countries/refresh")

	if resp := env.do(t, http.MethodGet, "/countries/nigeria"); resp.Code != http.StatusNotFound {
		t.Fatalf("lookup should be case sensitive, got %d", resp.Code)
	}
	if resp := env.do(t, http.MethodGet, "/countries/Ghana"); resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
}

func TestRefreshUpstreamUnavailable(t *testing.T) {
	env := newTestEnv(t)
	env.countriesDown.Store(true)

	resp := env.do(t, http.MethodPost, "/countries/refresh")
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.Code)
	}
	body := decode[map[string]string](t, resp)
	host := strings.TrimPrefix(env.countriesURL, "http://")
	if body["error"] != "External data source unavailable" || body["details"] != "Could not fetch data from "+host {
		t.Fatalf("unexpected body %v", body)
	}

	status := decode[map[string]any](t, env.do(t, http.MethodGet, "/status"))
	if status["total_countries"] != float64(0) {
		t.Fatalf("failed refresh persisted records: %v", status)
	}
}

func TestOperationalEndpoints(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/health")
	health := decode[map[string]any](t, resp)
	if health["status"] != "ok" || health["service"] != app.ServiceName {
		t.Fatalf("unexpected health %v", health)
	}
	if resp.Header().Get("X-Trace-ID") == "" {
		t.Fatal("expected trace id header")
	}

	resp = env.do(t, http.MethodGet, "/info")
	if resp.Code != http.StatusOK {
		t.Fatalf("info: %d", resp.Code)
	}
	info := decode[map[string]any](t, resp)
	if _, ok := info["statistics"].(map[string]any); !ok {
		t.Fatalf("expected statistics in %v", info)
	}

	env.do(t, http.MethodGet, "/status")
	resp = env.do(t, http.MethodGet, "/metrics")
	if !strings.Contains(resp.Body.String(), "country_service_http_requests_total") {
		t.Fatal("metrics output missing request counter")
	}

	if resp = env.do(t, http.MethodPut, "/countries/Nigeria"); resp.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.Code)
	}
	if resp = env.do(t, http.MethodGet, "/nope"); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}
