// Package app composes the country service: record store, upstream clients,
// refresh pipeline, summary renderer and scheduler.
//
// # Package Structure
//
//	internal/app/
//	├── application.go      # Application struct, wiring and lifecycle
//	├── domain/country/     # Country record, queries and results
//	├── storage/            # CountryStore interface
//	│   ├── memory/         # In-memory implementation for tests and local runs
//	│   └── postgres/       # PostgreSQL implementation (sqlx)
//	├── services/countries/ # Refresh pipeline, reads, upstream clients, scheduler
//	├── summary/            # Summary image rendering (headless Chrome)
//	├── refreshlock/        # Local and Redis refresh locks
//	├── httpapi/            # gorilla/mux routes and handlers
//	├── metrics/            # Prometheus collectors
//	├── system/             # Service lifecycle manager
//	└── runtime/            # Process wiring: config, database, HTTP server
//
// A nil store in Stores falls back to the in-memory implementation, so
// tests and local runs need no database:
//
//	application, err := app.New(cfg, app.Stores{}, app.Dependencies{}, log)
//	if err != nil {
//		return err
//	}
//	if err := application.Start(ctx); err != nil {
//		return err
//	}
//	defer application.Stop(context.Background())
package app
