package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	app "github.com/R3E-Network/country_service/internal/app"
	"github.com/R3E-Network/country_service/internal/app/domain/country"
	"github.com/R3E-Network/country_service/internal/app/metrics"
	"github.com/R3E-Network/country_service/internal/httputil"
	"github.com/R3E-Network/country_service/internal/middleware"
	"github.com/R3E-Network/country_service/pkg/logger"
)

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app *app.Application
	log *logger.Logger
}

// Options configures the middleware stack around the router.
type Options struct {
	AllowedOrigins []string
	RateLimitRPS   int
	RateLimitBurst int
	// Done stops background limiter cleanup when closed.
	Done <-chan struct{}
}

// NewRouter returns the gorilla/mux router exposing the REST API. Metrics are
// recorded per route template.
func NewRouter(application *app.Application, log *logger.Logger) *mux.Router {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	h := &handler{app: application, log: log}

	r := mux.NewRouter()
	r.Use(middleware.MetricsMiddleware())
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusNotFound, map[string]string{"error": "Not found"})
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "Method not allowed"})
	})

	r.HandleFunc("/countries/refresh", h.refresh).Methods(http.MethodPost)
	r.HandleFunc("/countries", h.list).Methods(http.MethodGet)
	// Registered before {name} so "image" is never treated as a country.
	r.HandleFunc("/countries/image", h.image).Methods(http.MethodGet)
	r.HandleFunc("/countries/{name}", h.get).Methods(http.MethodGet)
	r.HandleFunc("/countries/{name}", h.delete).Methods(http.MethodDelete)
	r.HandleFunc("/status", h.status).Methods(http.MethodGet)
	r.HandleFunc("/health", h.health).Methods(http.MethodGet)
	r.HandleFunc("/info", h.info).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	return r
}

// NewHandler wraps the router with recovery, tracing, CORS and rate limiting,
// outermost first.
func NewHandler(application *app.Application, log *logger.Logger, opts Options) http.Handler {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	var h http.Handler = NewRouter(application, log)
	if opts.RateLimitRPS > 0 {
		limiter := middleware.NewRateLimiter(opts.RateLimitRPS, opts.RateLimitBurst, log)
		if opts.Done != nil {
			limiter.StartCleanup(5*time.Minute, opts.Done)
		}
		h = limiter.Handler(h)
	}
	if len(opts.AllowedOrigins) > 0 {
		h = middleware.NewCORSMiddleware(opts.AllowedOrigins).Handler(h)
	}
	h = middleware.NewTracingMiddleware(log).Handler(h)
	return middleware.RecoveryMiddleware(log)(h)
}

func (h *handler) refresh(w http.ResponseWriter, r *http.Request) {
	result, err := h.app.Countries.Refresh(r.Context())
	if err != nil {
		httputil.WriteError(w, r, h.log, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	result, err := h.app.Countries.List(r.Context(), country.Query{
		Region:   q.Get("region"),
		Currency: q.Get("currency"),
		Sort:     country.Sort(strings.TrimSpace(q.Get("sort"))),
	})
	if err != nil {
		httputil.WriteError(w, r, h.log, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *handler) get(w http.ResponseWriter, r *http.Request) {
	c, err := h.app.Countries.Get(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		httputil.WriteError(w, r, h.log, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}

func (h *handler) delete(w http.ResponseWriter, r *http.Request) {
	msg, err := h.app.Countries.Delete(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		httputil.WriteError(w, r, h.log, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": msg})
}

func (h *handler) status(w http.ResponseWriter, r *http.Request) {
	status, err := h.app.Countries.Status(r.Context())
	if err != nil {
		httputil.WriteError(w, r, h.log, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, status)
}

func (h *handler) image(w http.ResponseWriter, r *http.Request) {
	data, err := h.app.Countries.SummaryImage(r.Context())
	if err != nil {
		httputil.WriteError(w, r, h.log, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"service":   app.ServiceName,
		"version":   app.Version,
		"timestamp": time.Now().UTC(),
	})
}
