package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	ingestapp "github.com/erp/profitledger/internal/application/ingest"
	ledgerapp "github.com/erp/profitledger/internal/application/ledger"
	reportapp "github.com/erp/profitledger/internal/application/report"
	"github.com/erp/profitledger/internal/domain/businessday"
	"github.com/erp/profitledger/internal/infrastructure/config"
	"github.com/erp/profitledger/internal/infrastructure/lock"
	"github.com/erp/profitledger/internal/infrastructure/logger"
	"github.com/erp/profitledger/internal/infrastructure/migration"
	"github.com/erp/profitledger/internal/infrastructure/persistence"
	"github.com/erp/profitledger/internal/infrastructure/telemetry"
	"github.com/erp/profitledger/internal/interfaces/http/handler"
	"github.com/erp/profitledger/internal/interfaces/http/middleware"
	"github.com/erp/profitledger/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const migrationsPath = "migrations"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting profit ledger",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("db_driver", cfg.Database.Driver),
	)

	ctx := context.Background()

	// Telemetry
	tp, err := telemetry.NewTracerProvider(ctx, telemetry.ConfigFrom(cfg.Telemetry), log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	mp, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	ledgerMetrics, err := telemetry.NewLedgerMetrics(mp.Meter("ledger"))
	if err != nil {
		log.Fatal("Failed to create ledger metrics", zap.Error(err))
	}

	// Database
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh))
	db, err := persistence.NewDatabase(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Failed to close database", zap.Error(err))
		}
	}()

	if cfg.Database.AutoMigrate {
		if err := migrate(db, log); err != nil {
			log.Fatal("Failed to migrate database", zap.Error(err))
		}
	}

	dbTracing := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfigFrom(cfg.Telemetry, db.Driver()), log)
	if err := dbTracing.RegisterOtelGorm(db.DB); err != nil {
		log.Warn("Database tracing disabled", zap.Error(err))
	}

	// Rebuild lock
	locker, closeLocker := lock.NewRangeLocker(cfg.Redis, log)
	defer func() {
		if err := closeLocker(); err != nil {
			log.Warn("Failed to close lock backend", zap.Error(err))
		}
	}()

	// Default business-day policy
	dayStart := cfg.BusinessDay.Start
	if !cfg.BusinessDay.Enabled {
		dayStart = "00:00"
	}
	policy, err := businessday.NewPolicy(cfg.BusinessDay.Timezone, dayStart)
	if err != nil {
		log.Fatal("Invalid business day configuration", zap.Error(err))
	}

	// Services
	store := persistence.NewLedgerStore(db.DB)
	ledgerService := ledgerapp.NewService(store, locker, ledgerMetrics, log)
	reportService := reportapp.NewService(store, policy, log,
		reportapp.WithConfiguredDayStart(cfg.BusinessDay.Start))
	ingestService := ingestapp.NewService(store, log)

	handlers := router.Handlers{
		System: handler.NewSystemHandler(cfg.App.Name, db),
		Ledger: handler.NewLedgerHandler(ledgerService),
		Report: handler.NewReportHandler(reportService, cfg.App.Currency),
		Ingest: handler.NewIngestHandler(ingestService),
	}

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     cfg.Telemetry.Enabled,
	}))
	engine.Use(middleware.SpanEnricher())
	engine.Use(middleware.Secure())

	corsConfig := middleware.DefaultCORSConfig()
	if len(cfg.HTTP.CORSAllowOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	}
	if len(cfg.HTTP.CORSAllowMethods) > 0 {
		corsConfig.AllowMethods = cfg.HTTP.CORSAllowMethods
	}
	if len(cfg.HTTP.CORSAllowHeaders) > 0 {
		corsConfig.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	}
	engine.Use(middleware.CORSWithConfig(corsConfig))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	router.RegisterLedgerAPI(r, handlers, cfg.App.APIKey)
	r.Setup()

	if cfg.App.APIKey == "" {
		log.Warn("No API key configured, mutating routes are open")
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := mp.Shutdown(shutdownCtx); err != nil {
		log.Error("Failed to flush metrics", zap.Error(err))
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Error("Failed to flush traces", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// migrate applies the SQL migrations on Postgres and AutoMigrate on SQLite.
func migrate(db *persistence.Database, log *zap.Logger) error {
	if db.Driver() != config.DriverPostgres {
		return db.AutoMigrate()
	}
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	m, err := migration.New(sqlDB, migrationsPath, log)
	if err != nil {
		return err
	}
	// Closing the migrator would close the shared *sql.DB.
	return m.Up()
}
