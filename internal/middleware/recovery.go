package middleware

import (
	"net/http"
	"runtime/debug"

	svcerrors "github.com/R3E-Network/country_service/internal/errors"
	"github.com/R3E-Network/country_service/internal/httputil"
	"github.com/R3E-Network/country_service/pkg/logger"
)

// RecoveryMiddleware turns handler panics into a generic 500 response.
func RecoveryMiddleware(log *logger.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = logger.NewDefault("http")
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				log.WithField("panic", rec).
					WithField("path", r.URL.Path).
					WithField("stack", string(debug.Stack())).
					Error("handler panicked")
				httputil.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": svcerrors.InternalMessage})
			}()
			next.ServeHTTP(w, r)
		})
	}
}
