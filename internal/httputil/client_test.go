package httputil

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNewClient_Defaults(t *testing.T) {
	client := NewClient(ClientConfig{})

	if client.httpClient.Timeout != 30*time.Second {
		t.Errorf("default timeout = %s, want 30s", client.httpClient.Timeout)
	}
	if client.maxBody != DefaultMaxBody {
		t.Errorf("default maxBody = %d, want %d", client.maxBody, DefaultMaxBody)
	}
}

func TestClient_GetBytes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("Method = %s, want GET", r.Method)
		}
		if r.Header.Get("User-Agent") == "" {
			t.Error("User-Agent header not set")
		}
		w.Write([]byte(`[{"name":"Nigeria"}]`))
	}))
	defer server.Close()

	body, err := NewClient(ClientConfig{}).GetBytes(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("GetBytes() error = %v", err)
	}
	if string(body) != `[{"name":"Nigeria"}]` {
		t.Errorf("body = %s", body)
	}
}

func TestClient_GetBytes_StatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := NewClient(ClientConfig{}).GetBytes(context.Background(), server.URL)
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusBadGateway || !strings.Contains(statusErr.Body, "maintenance") {
		t.Errorf("unexpected status error: %+v", statusErr)
	}
}

func TestClient_GetBytes_BodyTooLarge(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("x", 64)))
	}))
	defer server.Close()

	_, err := NewClient(ClientConfig{MaxBody: 16}).GetBytes(context.Background(), server.URL)
	if !errors.Is(err, ErrBodyTooLarge) {
		t.Fatalf("expected ErrBodyTooLarge, got %v", err)
	}
}

func TestClient_GetBytes_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	if _, err := NewClient(ClientConfig{Timeout: 20 * time.Millisecond}).GetBytes(context.Background(), server.URL); err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestReadAllWithLimit(t *testing.T) {
	body, truncated, err := ReadAllWithLimit(strings.NewReader("abcdef"), 4)
	if err != nil || !truncated || string(body) != "abcd" {
		t.Fatalf("ReadAllWithLimit() = %q, %v, %v", body, truncated, err)
	}
	body, truncated, err = ReadAllWithLimit(strings.NewReader("ab"), 4)
	if err != nil || truncated || string(body) != "ab" {
		t.Fatalf("ReadAllWithLimit() = %q, %v, %v", body, truncated, err)
	}
}

func TestHost(t *testing.T) {
	tests := map[string]string{
		"https://restcountries.com/v2/all?fields=name": "restcountries.com",
		"http://127.0.0.1:8080/rates":                  "127.0.0.1:8080",
		"not a url":                                    "not a url",
	}
	for in, want := range tests {
		if got := Host(in); got != want {
			t.Errorf("Host(%q) = %q, want %q", in, got, want)
		}
	}
}
