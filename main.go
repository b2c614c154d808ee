package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ekaya-inc/assembly-factory/pkg/audit"
	"github.com/ekaya-inc/assembly-factory/pkg/catalog"
	"github.com/ekaya-inc/assembly-factory/pkg/config"
	"github.com/ekaya-inc/assembly-factory/pkg/database"
	"github.com/ekaya-inc/assembly-factory/pkg/editor"
	"github.com/ekaya-inc/assembly-factory/pkg/handlers"
	"github.com/ekaya-inc/assembly-factory/pkg/logging"
	"github.com/ekaya-inc/assembly-factory/pkg/middleware"
	"github.com/ekaya-inc/assembly-factory/pkg/publish"
	"github.com/ekaya-inc/assembly-factory/pkg/render"
	"github.com/ekaya-inc/assembly-factory/pkg/repositories"
	"github.com/ekaya-inc/assembly-factory/pkg/retry"
	"github.com/ekaya-inc/assembly-factory/pkg/schema"
	"github.com/ekaya-inc/assembly-factory/pkg/services"
	"github.com/ekaya-inc/assembly-factory/pkg/session"
	"github.com/ekaya-inc/assembly-factory/pkg/staging"
	"github.com/ekaya-inc/assembly-factory/pkg/telemetry"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	connStr := cfg.Database.ConnectionString()
	logger.Info("Configuration loaded",
		zap.String("version", cfg.Version),
		zap.String("base_url", cfg.BaseURL),
		zap.String("database", logging.SanitizeConnectionString(connStr)),
		zap.String("redis", cfg.Redis.Host),
		zap.String("catalog_source", cfg.Catalog.Source),
		zap.String("manifests_path", cfg.Catalog.ManifestsPath),
		zap.Duration("delete_confirm_window", cfg.Delete.ConfirmWindow))

	// Database
	db, err := retry.DoWithResult(ctx, retry.DefaultConfig(), func() (*database.DB, error) {
		return database.NewConnection(ctx, database.ConfigFrom(&cfg.Database))
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.String("error", logging.SanitizeError(err)))
	}
	defer db.Close()

	if err := db.Migrate(logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	// Pending deletes live in Redis when configured so every replica sees
	// the same arm.
	redisClient, err := database.NewRedisClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	var confirmer services.DeleteConfirmer
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
		confirmer = services.NewRedisDeleteConfirmer(redisClient, cfg.Delete.ConfirmWindow)
		logger.Info("Pending deletes stored in Redis", zap.String("addr", cfg.Redis.Addr()))
	} else {
		confirmer = services.NewMemoryDeleteConfirmer(cfg.Delete.ConfirmWindow)
		logger.Info("Pending deletes stored in process memory")
	}

	// Catalog and props schemas
	registry := schema.NewRegistry()
	var bundle *schema.Bundle
	if _, statErr := os.Stat(cfg.Catalog.ManifestsPath); statErr == nil {
		bundle, err = schema.LoadManifests(ctx, cfg.Catalog.ManifestsPath)
		if err != nil {
			logger.Fatal("Failed to load part manifests", zap.Error(err))
		}
		if err := bundle.RegisterSchemas(registry); err != nil {
			logger.Fatal("Failed to register props schemas", zap.Error(err))
		}
		logger.Info("Loaded part manifests",
			zap.Int("files", len(bundle.Files())),
			zap.Int("schemas", len(bundle.Schemas())))
	} else if cfg.Catalog.Source == config.CatalogSourceManifests {
		logger.Fatal("Part manifests not found", zap.String("path", cfg.Catalog.ManifestsPath))
	}

	var source catalog.Source = repositories.NewPartRepository(db)
	if cfg.Catalog.Source == config.CatalogSourceManifests {
		source = bundle
	}
	parts := catalog.New(source, logger)

	auditor := audit.NewSecurityAuditor(logger)
	configEditor := editor.New(registry, auditor)
	metrics := telemetry.NewMetrics()

	resolver := render.NewResolver(parts, configEditor, logger, metrics)
	plugins, err := resolver.LoadPlugins(ctx, cfg.Renderers.PluginsPath)
	if err != nil {
		logger.Fatal("Failed to load renderer plugins", zap.Error(err))
	}
	defer func() {
		for _, p := range plugins {
			if err := p.Close(context.Background()); err != nil {
				logger.Warn("Failed to close renderer plugin", zap.String("part_code", p.Code()), zap.Error(err))
			}
		}
	}()

	publisher, err := publish.New(ctx, cfg.Publish, logger)
	if err != nil {
		logger.Fatal("Failed to configure deploy publishing", zap.Error(err))
	}

	assemblyService := services.NewAssemblyService(services.AssemblyServiceDeps{
		Repo:      repositories.NewAssemblyRepository(db),
		Parts:     parts,
		Editor:    configEditor,
		Renderer:  resolver,
		Confirmer: confirmer,
		Publisher: publisher,
		Auditor:   auditor,
		Metrics:   metrics,
	}, logger)

	stagingStore := staging.NewStore(configEditor)
	sessions := session.NewManager(cfg.Session.Secret, cfg.Session.CookieName, cfg.TLSCertPath != "", logger)

	mux := http.NewServeMux()
	withConn := handlers.ConnectionMiddleware(database.WithConnection(db, logger))

	// Register handlers
	handlers.NewHealthHandler(cfg, db, logger).RegisterRoutes(mux)
	handlers.NewPartsHandler(parts, configEditor, logger).RegisterRoutes(mux, withConn)
	handlers.NewAssembliesHandler(assemblyService, logger).RegisterRoutes(mux, withConn)
	handlers.NewStagingHandler(stagingStore, parts, assemblyService, resolver, confirmer, logger).
		RegisterRoutes(mux, withConn)
	mux.Handle("GET /metrics", promhttp.Handler())

	// The mux sets r.Pattern on the request it is handed, so route-aware
	// middleware wraps it directly.
	var handler http.Handler = middleware.Metrics(metrics)(mux)
	handler = middleware.RequestLogger(logger)(handler)
	handler = sessions.Middleware(handler)
	handler = middleware.ClientIP(handler)

	go sweepStaging(ctx, stagingStore, cfg.Session.IdleTimeout, logger)

	server := &http.Server{
		Addr:              cfg.BindAddr + ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown failed", zap.Error(err))
		}
	}()

	logger.Info("Starting assembly-factory",
		zap.String("addr", server.Addr),
		zap.Bool("tls", cfg.TLSCertPath != ""))

	if cfg.TLSCertPath != "" {
		err = server.ListenAndServeTLS(cfg.TLSCertPath, cfg.TLSKeyPath)
	} else {
		err = server.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("Server failed", zap.Error(err))
	}
	logger.Info("Server stopped")
}

// sweepStaging drops staging areas that have been idle longer than idle.
func sweepStaging(ctx context.Context, store *staging.Store, idle time.Duration, logger *zap.Logger) {
	if idle <= 0 {
		return
	}
	ticker := time.NewTicker(idle / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := store.Sweep(idle); n > 0 {
				logger.Debug("Dropped idle staging areas", zap.Int("count", n))
			}
		}
	}
}
