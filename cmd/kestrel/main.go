// Kestrel - Identity verification that deploys in 60 seconds.
// Copyright (c) 2025 opensource.finance
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opensource-finance/kestrel/internal/api"
	"github.com/opensource-finance/kestrel/internal/bus"
	"github.com/opensource-finance/kestrel/internal/cache"
	"github.com/opensource-finance/kestrel/internal/clients"
	"github.com/opensource-finance/kestrel/internal/compliance"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/repository"
	"github.com/opensource-finance/kestrel/internal/verify"
	"github.com/opensource-finance/kestrel/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Initialize structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("KESTREL_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Log startup
	slog.Info("starting kestrel",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()

	// Check for Pro tier via environment
	if os.Getenv("KESTREL_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize external collaborators. Both are optional: without an
	// OCR endpoint every extraction reports failure, and without a
	// screening endpoint the watchlist check fails closed.
	var ocrClient domain.OCRClient
	if endpoint := os.Getenv("KESTREL_OCR_ENDPOINT"); endpoint != "" {
		ocrClient = clients.NewOCRClient(endpoint, 60*time.Second)
		slog.Info("ocr client initialized", "endpoint", endpoint)
	} else {
		slog.Warn("no OCR endpoint configured - document extraction disabled")
	}

	var watchlistClient domain.WatchlistClient
	if endpoint := os.Getenv("KESTREL_WATCHLIST_ENDPOINT"); endpoint != "" {
		watchlistClient = clients.NewWatchlistClient(endpoint, 15*time.Second)
		slog.Info("watchlist client initialized", "endpoint", endpoint)
	} else {
		slog.Warn("no watchlist endpoint configured - screening will fail closed")
	}

	// Initialize Compliance Runner
	checks, err := compliance.NewRunner(cfg.Verification, watchlistClient, logger)
	if err != nil {
		slog.Error("failed to initialize compliance runner", "error", err)
		os.Exit(1)
	}
	slog.Info("compliance runner initialized",
		"minimum_age", cfg.Verification.MinimumAge,
		"required_fields", len(cfg.Verification.RequiredFields),
	)

	// Initialize Verification Orchestrator
	orchestrator := verify.NewOrchestrator(repo, cacheImpl, busImpl, ocrClient, checks, cfg.Verification, logger)
	slog.Info("verification orchestrator initialized")

	// Initialize async Worker (Pro tier)
	var asyncWorker *worker.Worker
	if cfg.Tier == domain.TierPro || os.Getenv("KESTREL_ASYNC_WORKER") == "true" {
		asyncWorker = worker.NewWorker(busImpl, orchestrator, logger)
		if err := asyncWorker.Start(); err != nil {
			slog.Error("failed to start async worker", "error", err)
		} else {
			slog.Info("async worker started")
		}
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, repo, cacheImpl, busImpl, orchestrator, checks, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("kestrel is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop async worker first
	if asyncWorker != nil {
		if err := asyncWorker.Stop(); err != nil {
			slog.Error("failed to stop async worker", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("kestrel shutdown complete")
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║               🦅 KESTREL                  ║")
	fmt.Println("  ║       Identity Verification Engine        ║")
	fmt.Println("  ║       Every applicant, verified.          ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /requests                        - Submit a verification request")
	fmt.Println("    GET  /requests/{id}                   - Get request by ID")
	fmt.Println("    POST /requests/{id}/documents         - Attach a document")
	fmt.Println("    POST /requests/{id}/process           - Run the verification pipeline")
	fmt.Println("    POST /requests/{id}/reprocess         - Re-run a completed request")
	fmt.Println("    GET  /requests/{id}/results           - List audit results")
	fmt.Println("    GET  /requests/{id}/discrepancies     - List discrepancies")
	fmt.Println("    PUT  /discrepancies/{id}/resolution   - Resolve a discrepancy")
	fmt.Println("    GET  /rules                           - List compliance rules")
	fmt.Println("    POST /rules                           - Create a compliance rule")
	fmt.Println("    GET  /health                          - Health check")
	fmt.Println()
}
