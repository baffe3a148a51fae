package main

import (
	"context"
	"os/signal"
	"syscall"

	"electrichouse/crawler/internal/config"
	"electrichouse/crawler/internal/container"

	log "github.com/sirupsen/logrus"
)

func main() {
	log.Info("Starting Electric House crawler...")

	// Load configuration using viper
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	log.Infof("Configuration loaded successfully (store %s)", cfg.Store.StoreCode)

	// Initialize container with all dependencies
	app, err := container.New(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Run the crawl
	if err := app.Run(ctx); err != nil {
		app.Close()
		log.Fatalf("Crawl exited with error: %v", err)
	}

	app.Close()
	log.Info("Crawl finished successfully")
}
