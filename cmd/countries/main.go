// Package main runs the country exchange service: the REST API, the optional
// refresh schedule and summary image rendering.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/R3E-Network/country_service/internal/app/runtime"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := runtime.NewApplication()
	if err != nil {
		log.Fatalf("Failed to initialise application: %v", err)
	}

	runErr := application.Run(ctx)
	if runErr != nil {
		log.Printf("Server error: %v", runErr)
	}

	log.Printf("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := application.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}

	if runErr != nil {
		cancel()
		os.Exit(1)
	}
}
