package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/surpluscoord/control-plane/internal/api"
	"github.com/surpluscoord/control-plane/internal/api/middleware"
	"github.com/surpluscoord/control-plane/internal/audit"
	"github.com/surpluscoord/control-plane/internal/commands"
	"github.com/surpluscoord/control-plane/internal/compliance"
	"github.com/surpluscoord/control-plane/internal/config"
	"github.com/surpluscoord/control-plane/internal/domain"
	"github.com/surpluscoord/control-plane/internal/eventbus"
	"github.com/surpluscoord/control-plane/internal/matching"
	"github.com/surpluscoord/control-plane/internal/orchestrator"
	"github.com/surpluscoord/control-plane/internal/providers"
	"github.com/surpluscoord/control-plane/internal/statemachine"
	"github.com/surpluscoord/control-plane/internal/store/sqlstore"
	"github.com/surpluscoord/control-plane/internal/store/storeset"
	"github.com/surpluscoord/control-plane/pkg/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.NewLogger(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		Filename:   cfg.Log.FilePath,
		MaxSize:    cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	})
	log.Info("starting control plane", "profile", cfg.Profile, "version", version)

	stores, db := buildStores(cfg, log)
	if db != nil {
		defer db.Close()
	}

	transitions, err := statemachine.Default()
	if err != nil {
		return fmt.Errorf("load state transition table: %w", err)
	}

	bus := eventbus.New(log)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus.Start(ctx)

	auditLog := audit.New(stores.Events, log)

	complianceEngine := compliance.New(compliance.Thresholds{
		MaxRefrigerationWindow: cfg.Compliance.MaxRefrigerationWindow,
		MinExpirationBuffer:    cfg.Compliance.MinExpirationBuffer,
		BlockedQualityKeywords: cfg.Compliance.BlockedKeywords,
		CapacityWarnThreshold:  0.20,
		MaxDistanceMiles:       cfg.Compliance.MaxDistanceMiles,
	})

	matchEngine := matching.New(matching.Config{
		MaxRadiusMiles: cfg.Matching.MaxRadiusMiles,
		Weights: matching.Weights{
			Distance:    cfg.Matching.Weights.Distance,
			Time:        cfg.Matching.Weights.Time,
			Category:    cfg.Matching.Weights.Category,
			Capacity:    cfg.Matching.Weights.Capacity,
			Reliability: cfg.Matching.Weights.Reliability,
		},
		TopN: cfg.Matching.TopRecommendations,
	})

	locationProvider := providers.NewHaversineLocationProvider(nil, log)
	enrichmentProvider := providers.NewHeuristicEnrichmentProvider(nil, log)
	notificationProvider := providers.NewStoreNotificationProvider(stores.Users, stores.Notifications, bus, log)

	orch := orchestrator.New(orchestrator.Config{
		Stores:               stores,
		Bus:                  bus,
		AuditLog:             auditLog,
		MatchEngine:          matchEngine,
		ComplianceEngine:     complianceEngine,
		LocationProvider:     locationProvider,
		EnrichmentProvider:   enrichmentProvider,
		NotificationProvider: notificationProvider,
		CandidateRadiusMiles: cfg.Matching.MaxRadiusMiles,
		Logger:               log,
	})

	service := commands.New(stores, transitions, auditLog, bus, complianceEngine, matchEngine, orch, log)

	routerCfg := api.DefaultRouterConfig()
	routerCfg.Service = service
	routerCfg.Stores = stores
	routerCfg.Bus = bus
	routerCfg.Logger = log
	routerCfg.EnableRateLimit = cfg.RateLimit.Enabled
	routerCfg.RateLimitPerMinute = cfg.RateLimit.PerMinute
	routerCfg.RateLimitBurst = cfg.RateLimit.Burst
	routerCfg.EnableMetrics = cfg.Metrics.Enabled
	routerCfg.AuthConfig = buildAuthConfig(cfg)
	router := api.NewRouter(routerCfg)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("http server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return fmt.Errorf("http server failed: %w", err)
	case sig := <-quit:
		log.Info("shutdown signal received", "signal", sig.String())
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}

	if err := bus.Stop(shutdownCtx); err != nil {
		log.Error("event bus did not drain cleanly", "error", err)
	}

	log.Info("server exited")
	return nil
}

// buildStores opens the configured storage backend. storeset.Build already
// degrades to an in-memory Set (with a logged warning) if the SQL backend
// can't be opened, pinged or migrated, so the lite profile's SQLite file
// and the standard profile's Postgres DSN share this one path.
func buildStores(cfg *config.Config, log *slog.Logger) (*storeset.Set, *sql.DB) {
	switch cfg.Storage.Backend {
	case config.StorageBackendFilesystem:
		return storeset.Build(log, sqlstore.DriverSQLite, cfg.Storage.FilesystemPath, 1, 1)
	case config.StorageBackendPostgres:
		return storeset.Build(log, sqlstore.DriverPostgres, cfg.GetDatabaseURL(), cfg.Database.MaxConnections, cfg.Database.MinConnections)
	default:
		log.Warn("unknown storage backend, using memory", "backend", cfg.Storage.Backend)
		return storeset.NewMemory(log), nil
	}
}

// buildAuthConfig loads the static API-key directory from configuration
// into the shape middleware.AuthMiddleware consumes.
func buildAuthConfig(cfg *config.Config) middleware.AuthConfig {
	keys := make(map[string]*middleware.AuthenticatedUser, len(cfg.Auth.APIKeys))
	for _, entry := range cfg.Auth.APIKeys {
		roles := make([]domain.Role, 0, len(entry.Roles))
		for _, r := range entry.Roles {
			roles = append(roles, domain.Role(r))
		}
		keys[entry.Key] = &middleware.AuthenticatedUser{
			ID:     entry.UserID,
			Email:  entry.Email,
			Roles:  roles,
			APIKey: entry.Key,
		}
	}
	return middleware.AuthConfig{
		APIKeys:      keys,
		EnableAPIKey: true,
		EnableJWT:    false,
	}
}
