package app

import (
	"context"
	"fmt"
	"time"

	"github.com/R3E-Network/country_service/internal/app/refreshlock"
	"github.com/R3E-Network/country_service/internal/app/services/countries"
	"github.com/R3E-Network/country_service/internal/app/storage"
	"github.com/R3E-Network/country_service/internal/app/storage/memory"
	"github.com/R3E-Network/country_service/internal/app/summary"
	"github.com/R3E-Network/country_service/internal/app/system"
	"github.com/R3E-Network/country_service/internal/config"
	"github.com/R3E-Network/country_service/internal/httputil"
	"github.com/R3E-Network/country_service/pkg/logger"
)

// Version is reported by /health and /info. Overridden at build time.
var Version = "dev"

// ServiceName identifies this process in health output.
const ServiceName = "country-service"

// Stores encapsulates persistence dependencies. A nil store defaults to the
// in-memory implementation.
type Stores struct {
	Countries storage.CountryStore
}

// Dependencies overrides external collaborators. Nil fields are built from
// configuration.
type Dependencies struct {
	Directory  countries.Directory
	Rates      countries.RateTable
	Rasterizer summary.Rasterizer
	Locker     refreshlock.Locker
	Multiplier countries.Multiplier
}

// Application ties domain services together and manages their lifecycle.
type Application struct {
	manager   *system.Manager
	log       *logger.Logger
	startedAt time.Time

	Countries *countries.Service
	Summary   *summary.Renderer
	Scheduler *countries.Scheduler
}

// New builds a fully initialised application.
func New(cfg *config.Config, stores Stores, deps Dependencies, log *logger.Logger) (*Application, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if log == nil {
		log = logger.NewDefault("app")
	}
	if stores.Countries == nil {
		stores.Countries = memory.New()
	}

	client := httputil.NewClient(httputil.ClientConfig{Timeout: cfg.Upstream.Timeout})
	if deps.Directory == nil {
		directory, err := countries.NewHTTPDirectory(client, cfg.Upstream.CountriesURL, log)
		if err != nil {
			return nil, fmt.Errorf("configure country directory: %w", err)
		}
		deps.Directory = directory
	}
	if deps.Rates == nil {
		rates, err := countries.NewHTTPRateTable(client, cfg.Upstream.ExchangeRateURL, log)
		if err != nil {
			return nil, fmt.Errorf("configure exchange rates: %w", err)
		}
		deps.Rates = rates
	}
	if deps.Rasterizer == nil {
		deps.Rasterizer = summary.NewChromeRasterizer(cfg.Summary.ChromePath, cfg.Summary.NoSandbox)
	}

	renderer := summary.NewRenderer(cfg.Summary.CacheDir, stores.Countries, deps.Rasterizer,
		summary.WithTimeout(cfg.Summary.RenderTimeout),
		summary.WithLogger(log),
	)

	countryService := countries.New(stores.Countries, deps.Directory, deps.Rates, log)
	countryService.WithSummary(renderer)
	if deps.Locker != nil {
		countryService.WithLocker(deps.Locker)
	}
	if deps.Multiplier != nil {
		countryService.WithMultiplier(deps.Multiplier)
	}

	scheduler, err := countries.NewScheduler(countryService, cfg.Refresh.Schedule, cfg.Refresh.OnStart, log)
	if err != nil {
		return nil, err
	}

	manager := system.NewManager(log)
	if err := manager.Register(scheduler); err != nil {
		return nil, fmt.Errorf("register %s: %w", scheduler.Name(), err)
	}

	return &Application{
		manager:   manager,
		log:       log,
		startedAt: time.Now().UTC(),
		Countries: countryService,
		Summary:   renderer,
		Scheduler: scheduler,
	}, nil
}

// StartedAt returns when the application was built.
func (a *Application) StartedAt() time.Time {
	return a.startedAt
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
