package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/i474232898/weather-records/internal/api/http"
	"github.com/i474232898/weather-records/internal/config"
	"github.com/i474232898/weather-records/internal/store"
	"github.com/i474232898/weather-records/internal/weather"
	"github.com/i474232898/weather-records/internal/weather/providers"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db, err := store.Open(cfg.Database)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	provider := providers.NewOpenWeatherProvider(httpClient, cfg.OpenWeatherAPIKey,
		providers.WithBaseURL(cfg.OpenWeatherBaseURL),
		providers.WithOneCallURL(cfg.OpenWeatherOneCallURL),
	)

	opts := []weather.Option{weather.WithDedupeWindow(cfg.DedupeWindow)}
	if cfg.GeocoderAPIKey != "" {
		opts = append(opts, weather.WithGeocoder(providers.NewGoogleGeocoder(cfg.GeocoderAPIKey)))
	} else {
		log.Printf("INFO: GEOCODER_API_KEY not set, cities are resolved through %s", provider.Name())
	}

	// Core service orchestrating the provider and the store.
	service := weather.NewService(store.New(db), provider, opts...)

	app := httpapi.NewApp(service, httpapi.Options{
		RequestTimeout:   cfg.RequestTimeout,
		CORSAllowOrigins: cfg.CORSAllowOrigins,
		AccessLog:        true,
	})

	go func() {
		log.Printf("INFO: listening on :%s (database: %s)", cfg.Port, cfg.Database.Driver)
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}
