package di

import (
	"github.com/parkwise/parking-service/internal/handler"
	"github.com/parkwise/parking-service/internal/repository"
	"github.com/parkwise/parking-service/internal/service"
	"github.com/parkwise/parking-service/internal/worker"
	"github.com/parkwise/parking-service/pkg/database"
	"github.com/parkwise/parking-service/pkg/logger"
	"github.com/parkwise/parking-service/pkg/redis"
)

// Container holds all dependencies for the parking service
type Container struct {
	// Infrastructure
	DB    *database.PostgresDB
	Redis *redis.Client

	// Storage
	Store repository.Store

	// Publishers
	EventPublisher service.EventPublisher

	// Services
	ParkingService service.ParkingService

	// Workers
	NoShowWorker      *worker.NoShowWorker
	OverstayWorker    *worker.OverstayWorker
	PendingHoldWorker *worker.PendingHoldWorker

	// Handlers
	HealthHandler  *handler.HealthHandler
	TicketHandler  *handler.TicketHandler
	SpaceHandler   *handler.SpaceHandler
	WebhookHandler *handler.WebhookHandler
}

// ContainerConfig contains configuration for building the container
type ContainerConfig struct {
	DB                *database.PostgresDB
	Redis             *redis.Client
	Store             repository.Store
	EventPublisher    service.EventPublisher
	Logger            *logger.Logger
	NoShowConfig      *worker.NoShowWorkerConfig
	OverstayConfig    *worker.OverstayWorkerConfig
	PendingHoldConfig *worker.PendingHoldWorkerConfig
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *ContainerConfig) *Container {
	c := &Container{
		DB:             cfg.DB,
		Redis:          cfg.Redis,
		Store:          cfg.Store,
		EventPublisher: cfg.EventPublisher,
	}

	if c.Store == nil && cfg.DB != nil {
		c.Store = repository.NewPostgresStore(cfg.DB.Pool())
	}

	// Services
	c.ParkingService = service.NewParkingService(c.Store, c.EventPublisher, cfg.Logger)

	// Workers
	c.NoShowWorker = worker.NewNoShowWorker(c.Store, c.ParkingService, cfg.NoShowConfig)
	c.OverstayWorker = worker.NewOverstayWorker(c.Store, c.ParkingService, cfg.OverstayConfig)
	c.PendingHoldWorker = worker.NewPendingHoldWorker(c.Store, c.ParkingService, cfg.PendingHoldConfig)

	// Handlers
	c.HealthHandler = handler.NewHealthHandler(c.DB, c.Redis)
	c.TicketHandler = handler.NewTicketHandler(c.ParkingService)
	c.SpaceHandler = handler.NewSpaceHandler(c.ParkingService)
	c.WebhookHandler = handler.NewWebhookHandler(c.ParkingService)

	return c
}
