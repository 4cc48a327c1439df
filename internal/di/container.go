package di

import (
	"github.com/tavolo-club/reservation-service/internal/handler"
	"github.com/tavolo-club/reservation-service/internal/ledger"
	"github.com/tavolo-club/reservation-service/internal/repository"
	"github.com/tavolo-club/reservation-service/internal/service"
	"github.com/tavolo-club/reservation-service/pkg/database"
	"github.com/tavolo-club/reservation-service/pkg/redis"
)

// Container holds all dependencies for the reservation service
type Container struct {
	// Infrastructure
	DB    *database.PostgresDB
	Redis *redis.Client

	// State
	Ledger *ledger.Ledger

	// Persistence
	Store repository.LedgerStore
	Cache repository.AvailabilityCache

	// Publishers
	EventPublisher service.EventPublisher

	// Services
	ReservationService service.ReservationService

	// Handlers
	HealthHandler      *handler.HealthHandler
	ReservationHandler *handler.ReservationHandler
}

// ContainerConfig contains configuration for building the container
type ContainerConfig struct {
	DB             *database.PostgresDB
	Redis          *redis.Client
	Ledger         *ledger.Ledger
	Store          repository.LedgerStore
	Cache          repository.AvailabilityCache
	EventPublisher service.EventPublisher
	ServiceConfig  *service.ReservationServiceConfig
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *ContainerConfig) *Container {
	c := &Container{
		DB:             cfg.DB,
		Redis:          cfg.Redis,
		Ledger:         cfg.Ledger,
		Store:          cfg.Store,
		Cache:          cfg.Cache,
		EventPublisher: cfg.EventPublisher,
	}

	c.ReservationService = service.NewReservationService(
		c.Ledger,
		c.Store,
		c.Cache,
		c.EventPublisher,
		cfg.ServiceConfig,
	)

	c.HealthHandler = handler.NewHealthHandler(c.Ledger, c.DB, c.Redis)
	c.ReservationHandler = handler.NewReservationHandler(c.ReservationService)

	return c
}
