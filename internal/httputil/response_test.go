package httputil

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	svcerrors "github.com/R3E-Network/country_service/internal/errors"
	"github.com/R3E-Network/country_service/pkg/logger"
)

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusCreated, map[string]string{"message": "ok"})

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content type = %s", ct)
	}
	if !strings.Contains(rec.Body.String(), `"message":"ok"`) {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestWriteError_ServiceError(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/countries/Atlantis", nil)
	WriteError(rec, req, nil, svcerrors.NotFound("Country not found"))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["error"] != "Country not found" {
		t.Fatalf("body = %v", body)
	}
	if _, ok := body["details"]; ok {
		t.Fatalf("unexpected details: %v", body)
	}
}

func TestWriteError_HidesInternalCause(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(logger.LoggingConfig{Format: "json", Output: &buf})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/countries", nil)
	WriteError(rec, req, log, errors.New("pq: connection refused"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "connection refused") {
		t.Fatalf("cause leaked to client: %s", rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), svcerrors.InternalMessage) {
		t.Fatalf("body = %s", rec.Body.String())
	}
	if !strings.Contains(buf.String(), "connection refused") {
		t.Fatalf("cause not logged: %s", buf.String())
	}
}
