package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/parkwise/parking-service/internal/metrics"
	"github.com/parkwise/parking-service/internal/repository"
	"github.com/parkwise/parking-service/internal/service"
	"github.com/parkwise/parking-service/internal/worker"
	"github.com/parkwise/parking-service/pkg/config"
	"github.com/parkwise/parking-service/pkg/database"
	"github.com/parkwise/parking-service/pkg/logger"
	"github.com/parkwise/parking-service/pkg/telemetry"
)

// Standalone reconciliation binary for deployments that run the sweeps
// separately from the API. It runs the same no-show, overstay and
// pending-hold workers as the main service, without the HTTP surface.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logCfg := &logger.Config{
		Level:       "info",
		ServiceName: "parking-reconciler",
		Development: cfg.IsDevelopment(),
	}
	if cfg.App.Debug {
		logCfg.Level = "debug"
	}
	if err := logger.Init(logCfg); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	appLog := logger.Get()
	appLog.Info("Starting Parking Reconciler...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err = telemetry.Init(ctx, &telemetry.Config{
		Enabled:        cfg.OTel.Enabled,
		ServiceName:    "parking-reconciler",
		ServiceVersion: cfg.App.Version,
		Environment:    cfg.App.Environment,
		CollectorAddr:  cfg.OTel.CollectorAddr,
		SampleRatio:    cfg.OTel.SampleRatio,
	})
	if err != nil {
		appLog.Warn(fmt.Sprintf("Telemetry init failed, continuing without tracing: %v", err))
	} else {
		defer telemetry.Shutdown(ctx)
	}

	if err := metrics.Init(); err != nil {
		appLog.Warn(fmt.Sprintf("Metrics init failed: %v", err))
	}

	db, err := database.NewPostgres(ctx, &database.PostgresConfig{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		MaxConns:        10,
		MinConns:        2,
		MaxConnLifetime: cfg.Database.ConnMaxLifetime,
		MaxConnIdleTime: cfg.Database.ConnMaxIdleTime,
		ConnectTimeout:  5 * time.Second,
		MaxRetries:      3,
		RetryInterval:   time.Second,
		EnableTracing:   cfg.OTel.Enabled,
	})
	if err != nil {
		appLog.Fatal(fmt.Sprintf("Database connection failed: %v", err))
	}
	defer db.Close()
	appLog.Info("Database connected")

	var eventPublisher service.EventPublisher
	if cfg.Kafka.Enabled {
		eventPublisher, err = service.NewKafkaEventPublisher(ctx, &service.EventPublisherConfig{
			Brokers:     cfg.Kafka.Brokers,
			Topic:       cfg.Kafka.Topic,
			ServiceName: "parking-reconciler",
			ClientID:    cfg.Kafka.ClientID + "-reconciler",
		})
		if err != nil {
			appLog.Warn(fmt.Sprintf("Kafka connection failed, using no-op publisher: %v", err))
			eventPublisher = service.NewNoOpEventPublisher()
		}
	} else {
		eventPublisher = service.NewNoOpEventPublisher()
	}
	defer eventPublisher.Close()

	store := repository.NewPostgresStore(db.Pool())
	parkingService := service.NewParkingService(store, eventPublisher, appLog)

	noShowWorker := worker.NewNoShowWorker(store, parkingService, &worker.NoShowWorkerConfig{
		ScanInterval: cfg.Parking.NoShowInterval,
		BatchSize:    cfg.Parking.SweepBatchSize,
	})
	overstayWorker := worker.NewOverstayWorker(store, parkingService, &worker.OverstayWorkerConfig{
		ScanInterval: cfg.Parking.OverstayInterval,
		GraceWindow:  cfg.Parking.GraceWindow,
		BatchSize:    cfg.Parking.SweepBatchSize,
	})
	pendingHoldWorker := worker.NewPendingHoldWorker(store, parkingService, &worker.PendingHoldWorkerConfig{
		ScanInterval: cfg.Parking.HoldSweepInterval,
		HoldTimeout:  cfg.Parking.HoldTimeout,
		BatchSize:    cfg.Parking.SweepBatchSize,
	})

	if err := noShowWorker.Start(ctx); err != nil {
		appLog.Fatal(fmt.Sprintf("Failed to start no-show worker: %v", err))
	}
	if err := overstayWorker.Start(ctx); err != nil {
		appLog.Fatal(fmt.Sprintf("Failed to start overstay worker: %v", err))
	}
	if err := pendingHoldWorker.Start(ctx); err != nil {
		appLog.Fatal(fmt.Sprintf("Failed to start pending-hold worker: %v", err))
	}

	appLog.Info("Parking Reconciler started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLog.Info("Shutting down reconciler...")
	noShowWorker.Stop()
	overstayWorker.Stop()
	pendingHoldWorker.Stop()
	cancel()

	appLog.Info("Reconciler exited gracefully")
}
