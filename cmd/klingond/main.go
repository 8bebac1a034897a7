// Package main provides the klingond daemon: the real-time swap-ingestion
// monitor process described in the spec.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/klingon-exchange/swapwatch/internal/config"
	"github.com/klingon-exchange/swapwatch/internal/engine"
	"github.com/klingon-exchange/swapwatch/pkg/logging"
)

var (
	version = "0.1.0-dev"
	commit  = "unknown"
)

// shutdownDeadline bounds the entire ordered teardown from §4.9; if it is
// exceeded the process force-exits non-zero rather than hang.
const shutdownDeadline = 25 * time.Second

func main() {
	var (
		dataDir     = flag.String("data-dir", "~/.swapwatch", "Data directory for config and local state")
		logLevel    = flag.String("log-level", "", "Log level (debug, info, warn, error), overrides config")
		showVersion = flag.Bool("version", false, "Show version and exit")
	)
	flag.Parse()

	log := logging.New(&logging.Config{Level: "info", TimeFormat: time.TimeOnly})
	logging.SetDefault(log)

	if *showVersion {
		log.Infof("klingond %s (commit: %s)", version, commit)
		os.Exit(0)
	}

	cfg, err := config.LoadConfig(*dataDir)
	if err != nil {
		log.Fatal("failed to load config", "error", err)
	}

	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	log = logging.New(&logging.Config{Level: cfg.Logging.Level, TimeFormat: time.TimeOnly})
	logging.SetDefault(log)

	log.Info("config loaded", "data_dir", *dataDir)

	if cfg.Feed.WSSURL == "" {
		log.Fatal("feed.wss_url is not configured; set WSS_URL or edit the config file")
	}
	if cfg.Mongo.URI == "" {
		log.Fatal("mongo.uri is not configured; set MONGO_URI or edit the config file")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Info("starting swapwatch monitor...")
	eng, err := engine.New(ctx, cfg)
	if err != nil {
		log.Fatal("failed to build engine", "error", err)
	}

	eng.Start(ctx)
	printBanner(log, cfg)

	go func() {
		ticker := time.NewTicker(60 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				whale, kol := eng.QueueDepths(ctx)
				log.Info("status", "whale_queue_depth", whale, "kol_queue_depth", kol)
			}
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info("shutting down...")

	cancel()

	shutdownDone := make(chan error, 1)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownDeadline)
	defer shutdownCancel()
	go func() { shutdownDone <- eng.Shutdown(shutdownCtx) }()

	select {
	case err := <-shutdownDone:
		if err != nil {
			log.Error("error during shutdown", "error", err)
			os.Exit(1)
		}
	case <-time.After(shutdownDeadline):
		log.Error("shutdown deadline exceeded, forcing exit")
		os.Exit(1)
	}

	log.Info("goodbye!")
}

func printBanner(log *logging.Logger, cfg *config.Config) {
	log.Info("")
	log.Info("=================================================")
	log.Infof("  swapwatch monitor (%s)", version)
	log.Info("=================================================")
	log.Info("")
	log.Infof("  Whale workers: %d x%d concurrency", cfg.Whale.NumWorkers, cfg.Whale.WorkerConcurrency)
	log.Infof("  KOL workers:   %d x%d concurrency", cfg.KOL.NumWorkers, cfg.KOL.WorkerConcurrency)
	log.Infof("  Mongo db:      %s", cfg.Mongo.Database)
	log.Infof("  Min confidence: %s", cfg.Classifier.MinConfidence)
	log.Info("")
	log.Info("=================================================")
	log.Info("")
}
