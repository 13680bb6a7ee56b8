// Package main is the entry point for the ProofPress API server.
// It loads configuration, connects to services, sets up routing, and starts
// the HTTP server with graceful shutdown support.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"proofpress/internal/cache"
	"proofpress/internal/config"
	"proofpress/internal/database"
	"proofpress/internal/handlers"
	"proofpress/internal/ipfs"
	"proofpress/internal/ledger"
	"proofpress/internal/logging"
	"proofpress/internal/middleware"
	"proofpress/internal/publish"
	"proofpress/internal/router"
	"proofpress/internal/storage"
	"proofpress/internal/store"
)

func main() {
	// Load configuration from environment variables.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Structured logger: JSON in production, text in development.
	logger, err := logging.New(os.Stdout, cfg.LogLevel, logging.FormatFor(cfg.LogFormat, cfg.IsDev()))
	if err != nil {
		slog.Error("failed to configure logging", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	slog.Info("configuration loaded",
		"env", cfg.Env,
		"addr", cfg.Addr(),
		"signer", cfg.SignerMode(),
	)

	ctx := context.Background()

	// Connect to PostgreSQL.
	db, err := database.Connect(ctx, cfg.DSN())
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Run pending migrations.
	if err := database.Migrate(db); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Seed development data (no-op if data already exists).
	if cfg.IsDev() {
		if err := database.Seed(ctx, db); err != nil {
			slog.Error("failed to seed database", "error", err)
			os.Exit(1)
		}
	}

	// Connect to Valkey (document cache + publish locks).
	valkeyClient, err := cache.ConnectValkey(ctx, cfg.ValkeyAddr(), cfg.ValkeyPassword, cfg.ValkeyDB)
	if err != nil {
		slog.Error("failed to connect to valkey", "error", err)
		os.Exit(1)
	}
	defer valkeyClient.Close()

	// Content-addressed storage: Pinata for uploads, the gateway for reads,
	// Valkey as the shared cache and S3 as an optional mirror.
	ipfsOpts := []ipfs.Option{ipfs.WithDocumentCache(cache.NewDocumentCache(valkeyClient, cache.DefaultDocumentTTL))}
	archive, err := storage.New(cfg.S3Endpoint, cfg.S3Region, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket)
	if err != nil {
		slog.Error("failed to initialize S3 archive", "error", err)
		os.Exit(1)
	}
	if archive != nil {
		ipfsOpts = append(ipfsOpts, ipfs.WithArchive(archive))
		slog.Info("s3 metadata archive enabled", "endpoint", cfg.S3Endpoint, "bucket", archive.Bucket())
	} else {
		slog.Warn("s3 archive not configured, metadata documents are only pinned")
	}
	documents := ipfs.NewClient(
		ipfs.NewPinata(ipfs.PinataConfig{JWT: cfg.PinataJWT, BaseURL: cfg.PinataAPIURL, Timeout: cfg.UploadTimeout}),
		ipfs.NewGateway(cfg.IPFSGateway, cfg.UploadTimeout),
		ipfsOpts...,
	)

	// Ledger registrars. The user variant is always available; the service
	// variant needs a key and a reachable RPC endpoint.
	registry := ledger.NewRegistry(cfg.SignerMode())
	if cfg.SignerMode() == ledger.ModeService {
		reg, closeRPC, err := serviceRegistrar(ctx, cfg)
		if err != nil {
			slog.Error("failed to initialize service registrar", "error", err)
			os.Exit(1)
		}
		defer closeRPC()
		registry.Add(ledger.ModeService, reg)
	}
	slog.Info("ledger registrar ready", "mode", registry.Mode(), "chain_id", cfg.LedgerChainID)

	// Initialize data stores.
	articleStore := store.NewArticleStore(db)
	registrationStore := store.NewRegistrationStore(db)
	profileStore := store.NewProfileStore(db)

	orchestrator := publish.NewOrchestrator(articleStore, documents, registry,
		cache.NewLocker(valkeyClient, cfg.PublishLockTTL),
		publish.Options{
			UploadTimeout:   cfg.UploadTimeout,
			RegisterTimeout: cfg.RegisterTimeout,
			License:         cfg.License(),
			ChainID:         cfg.LedgerChainID,
		})
	service := publish.NewService(articleStore, registrationStore, orchestrator, cfg.LedgerChainID)

	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	defer limiter.Stop()

	health := handlers.NewHealth(map[string]handlers.Pinger{
		"database": db,
		"valkey": handlers.PingFunc(func(ctx context.Context) error {
			return valkeyClient.Ping(ctx).Err()
		}),
	})

	// Set up the Chi router with all middleware and routes.
	r := router.New(limiter, handlers.NewArticles(service), handlers.NewProfiles(profileStore), health)

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start the server in a goroutine so we can listen for shutdown signals.
	go func() {
		slog.Info("server starting", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown: wait for SIGINT or SIGTERM, then drain connections.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig)

	// Give active requests up to 30 seconds to complete.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	// Background publish runs get the rest of the budget. A run cut short
	// here is resumed by its author later.
	if err := orchestrator.Wait(shutdownCtx); err != nil {
		slog.Warn("publish workflows still running at shutdown", "error", err)
	}

	slog.Info("server stopped gracefully")
}

// serviceRegistrar builds the registrar that signs with the server's key.
// The returned function closes the RPC connection.
func serviceRegistrar(ctx context.Context, cfg *config.Config) (ledger.Registrar, func(), error) {
	sc, err := cfg.StoryConfig()
	if err != nil {
		return nil, nil, err
	}

	var signer ledger.Signer
	if cfg.LedgerPrivateKey != "" {
		signer, err = ledger.NewKeySigner(cfg.LedgerPrivateKey)
	} else {
		signer, err = ledger.LoadKeystoreSigner(cfg.LedgerKeystorePath, cfg.LedgerKeystorePassword)
	}
	if err != nil {
		return nil, nil, err
	}

	dialCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	backend, err := ledger.Dial(dialCtx, cfg.LedgerRPCURL)
	if err != nil {
		return nil, nil, err
	}
	reg, err := ledger.NewStoryRegistrar(dialCtx, string(ledger.ModeService), backend, signer, sc)
	if err != nil {
		backend.Close()
		return nil, nil, err
	}
	slog.Info("service signer loaded", "address", signer.Address().Hex())
	return reg, backend.Close, nil
}
