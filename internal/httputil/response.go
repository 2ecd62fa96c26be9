package httputil

import (
	"encoding/json"
	"net/http"

	svcerrors "github.com/R3E-Network/country_service/internal/errors"
	"github.com/R3E-Network/country_service/pkg/logger"
)

// WriteJSON encodes payload as the response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

// WriteError classifies err and writes its client-facing body. Internal
// failures are logged with their cause and answered with a generic message.
func WriteError(w http.ResponseWriter, r *http.Request, log *logger.Logger, err error) {
	svcErr := svcerrors.Classify(err)
	if svcErr.HTTPStatus >= http.StatusInternalServerError && log != nil {
		entry := log.WithField("code", svcErr.Code).WithError(err)
		if traceID := logger.TraceIDFromContext(r.Context()); traceID != "" {
			entry = entry.WithField("trace_id", traceID)
		}
		entry.Error("request failed")
	}
	WriteJSON(w, svcErr.HTTPStatus, svcErr.Body())
}
