// Package testutil provides common testing utilities and mock implementations.
package testutil

import (
	"context"
	"sync"

	"github.com/R3E-Network/country_service/internal/app/services/countries"
	"github.com/R3E-Network/country_service/internal/app/summary"
)

// PNG is a minimal payload with a valid PNG signature.
var PNG = []byte("\x89PNG\r\n\x1a\nmock")

var (
	_ countries.Directory = (*MockDirectory)(nil)
	_ countries.RateTable = (*MockRateTable)(nil)
	_ summary.Rasterizer  = (*MockRasterizer)(nil)
)

// MockDirectory is a test implementation of countries.Directory.
type MockDirectory struct {
	mu      sync.Mutex
	entries []countries.DirectoryEntry
	err     error
	calls   int
}

// NewMockDirectory returns a directory serving the given entries.
func NewMockDirectory(entries ...countries.DirectoryEntry) *MockDirectory {
	return &MockDirectory{entries: entries}
}

// SetEntries replaces the served entries.
func (m *MockDirectory) SetEntries(entries ...countries.DirectoryEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = entries
}

// SetError makes subsequent fetches fail with err. Nil clears it.
func (m *MockDirectory) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns the number of fetches.
func (m *MockDirectory) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MockDirectory) FetchCountries(context.Context) ([]countries.DirectoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	out := make([]countries.DirectoryEntry, len(m.entries))
	copy(out, m.entries)
	return out, nil
}

// MockRateTable is a test implementation of countries.RateTable.
type MockRateTable struct {
	mu    sync.Mutex
	rates map[string]float64
	err   error
}

// NewMockRateTable returns a rate table serving rates.
func NewMockRateTable(rates map[string]float64) *MockRateTable {
	return &MockRateTable{rates: rates}
}

// SetError makes subsequent fetches fail with err. Nil clears it.
func (m *MockRateTable) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *MockRateTable) FetchRates(context.Context) (map[string]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := make(map[string]float64, len(m.rates))
	for k, v := range m.rates {
		out[k] = v
	}
	return out, nil
}

// MockRasterizer is a test implementation of summary.Rasterizer that returns
// PNG unless an error is set.
type MockRasterizer struct {
	mu       sync.Mutex
	err      error
	lastHTML string
	renders  int
}

// SetError makes subsequent renders fail with err. Nil clears it.
func (m *MockRasterizer) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// LastHTML returns the document passed to the latest render.
func (m *MockRasterizer) LastHTML() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastHTML
}

// Renders returns the number of render attempts.
func (m *MockRasterizer) Renders() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.renders
}

func (m *MockRasterizer) Rasterize(_ context.Context, html string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.renders++
	m.lastHTML = html
	if m.err != nil {
		return nil, m.err
	}
	return append([]byte(nil), PNG...), nil
}

// StrPtr returns a pointer to v.
func StrPtr(v string) *string { return &v }
