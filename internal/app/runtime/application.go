package runtime

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"

	app "github.com/R3E-Network/country_service/internal/app"
	"github.com/R3E-Network/country_service/internal/app/httpapi"
	"github.com/R3E-Network/country_service/internal/app/refreshlock"
	"github.com/R3E-Network/country_service/internal/app/storage"
	"github.com/R3E-Network/country_service/internal/app/storage/memory"
	"github.com/R3E-Network/country_service/internal/app/storage/postgres"
	"github.com/R3E-Network/country_service/internal/config"
	"github.com/R3E-Network/country_service/internal/platform/migrations"
	"github.com/R3E-Network/country_service/pkg/logger"
)

// Application wires core dependencies and manages the HTTP server lifecycle.
type Application struct {
	cfg        *config.Config
	log        *logger.Logger
	app        *app.Application
	httpServer *http.Server
	db         *sql.DB
	redis      *redis.Client

	done     chan struct{}
	stopOnce sync.Once
}

// NewApplication loads configuration from the environment and builds the
// application with default wiring.
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log := logger.New(logger.LoggingConfig{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Component: app.ServiceName,
	})
	return New(cfg, log)
}

// New builds the application from cfg. An empty database DSN selects the
// in-memory store and an empty Redis address selects the process-local lock.
func New(cfg *config.Config, log *logger.Logger) (*Application, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if log == nil {
		log = logger.NewDefault(app.ServiceName)
	}

	store, db, err := buildStore(cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("configure store: %w", err)
	}

	deps := app.Dependencies{}
	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient, err = openRedis(cfg.Redis)
		if err != nil {
			closeDB(db, log)
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		deps.Locker = refreshlock.NewRedis(redisClient, cfg.Redis.Namespace, cfg.Refresh.LockTTL, log)
		log.WithField("addr", cfg.Redis.Addr).Info("using redis refresh lock")
	}

	application, err := app.New(cfg, app.Stores{Countries: store}, deps, log)
	if err != nil {
		closeDB(db, log)
		if redisClient != nil {
			_ = redisClient.Close()
		}
		return nil, err
	}

	done := make(chan struct{})
	handler := httpapi.NewHandler(application, log, httpapi.Options{
		AllowedOrigins: cfg.AllowedOrigins(),
		RateLimitRPS:   cfg.RateLimit.RPS,
		RateLimitBurst: cfg.RateLimit.Burst,
		Done:           done,
	})

	return &Application{
		cfg: cfg,
		log: log,
		app: application,
		httpServer: &http.Server{
			Addr:         ":" + strconv.Itoa(cfg.Server.Port),
			Handler:      handler,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.HTTPWriteTimeout(),
			IdleTimeout:  cfg.Server.IdleTimeout,
		},
		db:    db,
		redis: redisClient,
		done:  done,
	}, nil
}

// Handler exposes the HTTP handler, mainly for tests.
func (a *Application) Handler() http.Handler {
	return a.httpServer.Handler
}

// Run listens on the configured port and blocks until ctx is cancelled or
// the server fails.
func (a *Application) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", a.httpServer.Addr, err)
	}
	return a.Serve(ctx, ln)
}

// Serve starts background services and serves HTTP on ln.
func (a *Application) Serve(ctx context.Context, ln net.Listener) error {
	if err := a.app.Start(ctx); err != nil {
		ln.Close()
		return fmt.Errorf("start services: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Infof("HTTP server listening on %s", ln.Addr())
		if err := a.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully stops the HTTP server and background services, then
// releases database and Redis connections.
func (a *Application) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var errs []error
	a.stopOnce.Do(func() {
		close(a.done)
		if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("http server: %w", err))
		}
		if err := a.app.Stop(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		closeDB(a.db, a.log)
		if a.redis != nil {
			if err := a.redis.Close(); err != nil {
				a.log.WithError(err).Warn("error closing redis connection")
			}
		}
	})
	return errors.Join(errs...)
}

func buildStore(cfg config.DatabaseConfig, log *logger.Logger) (storage.CountryStore, *sql.DB, error) {
	if cfg.DSN == "" {
		log.Warn("DATABASE_URL not set; using in-memory store")
		return memory.New(), nil, nil
	}

	db, err := openDatabase(cfg)
	if err != nil {
		return nil, nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := migrations.Apply(ctx, db); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("apply migrations: %w", err)
	}
	return postgres.New(db), db, nil
}

func openDatabase(cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func openRedis(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

func closeDB(db *sql.DB, log *logger.Logger) {
	if db == nil {
		return
	}
	if err := db.Close(); err != nil {
		log.WithError(err).Warn("error closing database connection")
	}
}
