package countries

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	svcerrors "github.com/R3E-Network/country_service/internal/errors"
	"github.com/R3E-Network/country_service/internal/httputil"
)

const directoryJSON = `[
  {"name":"Nigeria","capital":"Abuja","region":"Africa","population":206139589,"flag":"https://flagcdn.com/ng.svg","currencies":[{"code":"NGN","name":"Nigerian naira","symbol":"₦"}]},
  {"name":"Antarctica","region":"Polar","population":1000,"flag":"https://flagcdn.com/aq.svg"},
  {"name":"Zimbabwe","capital":"Harare","region":"Africa","population":14862924,"currencies":[{"code":"USD"},{"code":"ZWL"}]}
]`

const ratesJSON = `{"result":"success","base_code":"USD","rates":{"USD":1,"NGN":1600.23,"GHS":15.34,"BAD":"x"}}`

func TestHTTPDirectory(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(directoryJSON))
	}))
	defer server.Close()

	dir, err := NewHTTPDirectory(httputil.NewClient(httputil.ClientConfig{}), server.URL, quietLogger())
	require.NoError(t, err)

	entries, err := dir.FetchCountries(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 3)

	ng := entries[0]
	assert.Equal(t, "Nigeria", ng.Name)
	assert.Equal(t, "Abuja", *ng.Capital)
	assert.Equal(t, int64(206139589), ng.Population)
	assert.Equal(t, "NGN", *ng.CurrencyCode)

	aq := entries[1]
	assert.Nil(t, aq.Capital)
	assert.Nil(t, aq.CurrencyCode)

	assert.Equal(t, "USD", *entries[2].CurrencyCode, "first currency wins")
	assert.Nil(t, entries[2].FlagURL)
}

func TestHTTPDirectory_Failures(t *testing.T) {
	tests := map[string]http.HandlerFunc{
		"status": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		},
		"invalid json": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`[{"name":`))
		},
		"not an array": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"message":"rate limited"}`))
		},
	}
	for name, handler := range tests {
		t.Run(name, func(t *testing.T) {
			server := httptest.NewServer(handler)
			defer server.Close()

			dir, err := NewHTTPDirectory(nil, server.URL+"/v2/all", quietLogger())
			require.NoError(t, err)

			_, err = dir.FetchCountries(context.Background())
			svcErr, ok := svcerrors.As(err)
			require.True(t, ok, "expected service error, got %v", err)
			assert.Equal(t, svcerrors.CodeUpstreamUnavailable, svcErr.Code)
			assert.Equal(t, "Could not fetch data from "+strings.TrimPrefix(server.URL, "http://"), svcErr.Details)
		})
	}
}

func TestHTTPRateTable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(ratesJSON))
	}))
	defer server.Close()

	table, err := NewHTTPRateTable(nil, server.URL, quietLogger())
	require.NoError(t, err)

	rates, err := table.FetchRates(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1600.23, rates["NGN"])
	assert.Equal(t, 1.0, rates["USD"])
	_, ok := rates["BAD"]
	assert.False(t, ok, "non-numeric rates are skipped")
}

func TestHTTPRateTable_MissingRates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":"error","error-type":"unsupported-code"}`))
	}))
	defer server.Close()

	table, err := NewHTTPRateTable(nil, server.URL, quietLogger())
	require.NoError(t, err)

	_, err = table.FetchRates(context.Background())
	assert.True(t, svcerrors.IsCode(err, svcerrors.CodeUpstreamUnavailable))
}

func TestNewHTTPClients_RequireURL(t *testing.T) {
	_, err := NewHTTPDirectory(nil, " ", nil)
	assert.Error(t, err)
	_, err = NewHTTPRateTable(nil, "", nil)
	assert.Error(t, err)
}
