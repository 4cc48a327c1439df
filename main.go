package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tavolo-club/reservation-service/internal/catalog"
	"github.com/tavolo-club/reservation-service/internal/di"
	"github.com/tavolo-club/reservation-service/internal/domain"
	"github.com/tavolo-club/reservation-service/internal/handler"
	"github.com/tavolo-club/reservation-service/internal/ledger"
	"github.com/tavolo-club/reservation-service/internal/metrics"
	"github.com/tavolo-club/reservation-service/internal/migration"
	"github.com/tavolo-club/reservation-service/internal/repository"
	"github.com/tavolo-club/reservation-service/internal/service"
	"github.com/tavolo-club/reservation-service/pkg/config"
	"github.com/tavolo-club/reservation-service/pkg/database"
	"github.com/tavolo-club/reservation-service/pkg/logger"
	pkgredis "github.com/tavolo-club/reservation-service/pkg/redis"
	"github.com/tavolo-club/reservation-service/pkg/response"
	"github.com/tavolo-club/reservation-service/pkg/telemetry"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logCfg := &logger.Config{
		Level:       cfg.Log.Level,
		ServiceName: cfg.App.Name,
		Development: cfg.IsDevelopment(),
	}
	if err := logger.Init(logCfg); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	appLog := logger.Get()
	appLog.Info("Starting Reservation Service...")

	ctx := context.Background()

	// Initialize tracing (no-op when disabled)
	if _, err := telemetry.Init(ctx, &telemetry.Config{
		Enabled:        cfg.OTel.Enabled,
		ServiceName:    cfg.App.Name,
		ServiceVersion: cfg.App.Version,
		Environment:    cfg.App.Environment,
		CollectorAddr:  cfg.OTel.CollectorAddr,
	}); err != nil {
		appLog.Fatal(fmt.Sprintf("Telemetry initialization failed: %v", err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = telemetry.Shutdown(shutdownCtx)
	}()

	if err := metrics.Init(); err != nil {
		appLog.Warn(fmt.Sprintf("Metrics initialization failed: %v", err))
	}

	// Select the ledger store
	var db *database.PostgresDB
	var store repository.LedgerStore
	switch cfg.Storage.Driver {
	case "postgres":
		db, err = database.NewPostgres(ctx, &database.PostgresConfig{
			Host:           cfg.Database.Host,
			Port:           cfg.Database.Port,
			User:           cfg.Database.User,
			Password:       cfg.Database.Password,
			Database:       cfg.Database.DBName,
			SSLMode:        cfg.Database.SSLMode,
			MaxConns:       cfg.Database.MaxConns,
			MinConns:       cfg.Database.MinConns,
			ConnectTimeout: 5 * time.Second,
			MaxRetries:     3,
			RetryInterval:  time.Second,
			EnableTracing:  cfg.OTel.Enabled,
		})
		if err != nil {
			appLog.Fatal(fmt.Sprintf("Database connection failed: %v", err))
		}
		defer db.Close()
		store = repository.NewPostgresLedgerStore(db.Pool())
		appLog.Info("Using postgres ledger store")
	default:
		store, err = repository.NewFileLedgerStore(&repository.FileStoreConfig{
			Path:            cfg.Storage.FilePath,
			SizeBudgetBytes: cfg.Storage.SizeBudgetBytes,
		})
		if err != nil {
			appLog.Fatal(fmt.Sprintf("File store initialization failed: %v", err))
		}
		appLog.Info("Using file ledger store", zap.String("path", cfg.Storage.FilePath))
	}

	// Availability cache is optional
	var redisClient *pkgredis.Client
	var cache repository.AvailabilityCache = repository.NewNoopAvailabilityCache()
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.NewClient(ctx, &pkgredis.Config{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err != nil {
			appLog.Warn(fmt.Sprintf("Redis connection failed, availability cache disabled: %v", err))
		} else {
			defer redisClient.Close()
			cache = repository.NewRedisAvailabilityCache(redisClient)
			appLog.Info("Redis availability cache connected")
		}
	}

	// Event publishing is optional
	var eventPublisher service.EventPublisher = service.NewNoOpEventPublisher()
	if cfg.Kafka.Enabled {
		publisher, err := service.NewKafkaEventPublisher(ctx, &service.EventPublisherConfig{
			Brokers:     cfg.Kafka.Brokers,
			Topic:       cfg.Kafka.Topic,
			ServiceName: cfg.App.Name,
			ClientID:    cfg.Kafka.ClientID,
		})
		if err != nil {
			appLog.Warn(fmt.Sprintf("Kafka connection failed, using no-op publisher: %v", err))
		} else {
			eventPublisher = publisher
			appLog.Info("Kafka event publisher connected")
		}
	}
	defer eventPublisher.Close()

	// Seed the ledger: stored state wins, the catalog supplies anything
	// not yet persisted plus current display metadata.
	ldg, err := seedLedger(ctx, store, cfg)
	if err != nil {
		appLog.Fatal(fmt.Sprintf("Ledger seeding failed: %v", err))
	}
	appLog.Info("Ledger seeded", zap.Int("experiences", ldg.Len()))

	// Persist the normalized state so migrations are durable even if no
	// reservation ever commits
	if err := store.Save(ctx, ldg.List()); err != nil {
		appLog.Warn(fmt.Sprintf("Initial ledger save failed: %v", err))
	}

	// Build dependency injection container
	container := di.NewContainer(&di.ContainerConfig{
		DB:             db,
		Redis:          redisClient,
		Ledger:         ldg,
		Store:          store,
		Cache:          cache,
		EventPublisher: eventPublisher,
		ServiceConfig: &service.ReservationServiceConfig{
			SaveRetries: cfg.Storage.SaveRetries,
		},
	})

	// Setup Gin
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.OTel.Enabled {
		router.Use(telemetry.TracingMiddleware(cfg.App.Name))
	}

	// Health check endpoints
	router.GET("/health", container.HealthHandler.Health)
	router.GET("/ready", container.HealthHandler.Ready)

	// API routes
	v1 := router.Group("/api/v1")
	{
		v1.GET("/status", func(c *gin.Context) {
			response.Success(c, gin.H{
				"status":  "ok",
				"version": cfg.App.Version,
				"service": cfg.App.Name,
			})
		})

		experiences := v1.Group("/experiences")
		experiences.Use(handler.IdentityMiddleware(cfg.JWT.Secret))
		{
			experiences.GET("", container.ReservationHandler.ListExperiences)
			experiences.GET("/:id", container.ReservationHandler.GetExperience)
			experiences.GET("/:id/next-available", container.ReservationHandler.NextAvailable)
			experiences.POST("/:id/reservations", container.ReservationHandler.Reserve)
			experiences.DELETE("/:id/reservations", container.ReservationHandler.Cancel)
		}
	}

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		ReadHeaderTimeout: 2 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	// pprof side port, loopback only
	if cfg.IsDevelopment() {
		go func() {
			if err := http.ListenAndServe("localhost:6060", nil); err != nil {
				appLog.Warn(fmt.Sprintf("pprof server stopped: %v", err))
			}
		}()
	}

	// Start server in goroutine
	go func() {
		appLog.Info(fmt.Sprintf("Reservation Service listening on %s", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLog.Fatal(fmt.Sprintf("Failed to start server: %v", err))
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Fatal(fmt.Sprintf("Server forced to shutdown: %v", err))
	}

	appLog.Info("Server exited gracefully")
}

// seedLedger loads stored state, migrates it to the slotted schema, and
// merges it with the catalog. Stored reservations always win; the
// catalog contributes experiences that have never been persisted and
// refreshes display metadata on those that have.
func seedLedger(ctx context.Context, store repository.LedgerStore, cfg *config.Config) (*ledger.Ledger, error) {
	appLog := logger.Get()

	stored, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger: %w", err)
	}

	horizon := cfg.Inventory.Horizon
	normalized := migration.NormalizeAll(stored, horizon)

	byID := make(map[string]*domain.Experience, len(normalized))
	for _, exp := range normalized {
		byID[exp.ID] = exp
	}

	cat, err := catalog.Load(cfg.Inventory.CatalogPath)
	if err != nil {
		if len(normalized) == 0 {
			return nil, fmt.Errorf("no stored ledger and no catalog: %w", err)
		}
		appLog.Warn(fmt.Sprintf("Catalog unavailable, serving stored ledger only: %v", err))
		ldg := ledger.New()
		ldg.Seed(normalized)
		return ldg, nil
	}

	seed := make([]*domain.Experience, 0, cat.Len())
	seen := make(map[string]bool, cat.Len())
	for _, def := range cat.Definitions() {
		seen[def.ID] = true
		if exp, ok := byID[def.ID]; ok {
			applyCatalogMetadata(exp, &def)
			seed = append(seed, exp)
			continue
		}
		exp, err := def.NewExperience(horizon)
		if err != nil {
			return nil, fmt.Errorf("catalog entry %q: %w", def.ID, err)
		}
		seed = append(seed, exp)
	}

	// Stored experiences dropped from the catalog keep serving their
	// existing reservations
	for _, exp := range normalized {
		if !seen[exp.ID] {
			seed = append(seed, exp)
		}
	}

	ldg := ledger.New()
	ldg.Seed(seed)
	return ldg, nil
}

// applyCatalogMetadata refreshes display fields from the catalog without
// touching slots or reservations. Capacity is deliberately left alone: a
// catalog edit must not strand already-accepted reservations.
func applyCatalogMetadata(exp *domain.Experience, def *catalog.Definition) {
	exp.Name = def.Name
	exp.Description = def.Description
	exp.Host = def.Host
	exp.Location = def.Location
	exp.PriceLabel = def.PriceLabel
	exp.ImageURL = def.ImageURL
	if exp.MaxSeats == 0 {
		exp.MaxSeats = def.MaxSeats
	}
}
