package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof" // Import pprof for profiling
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/parkwise/parking-service/internal/di"
	"github.com/parkwise/parking-service/internal/metrics"
	"github.com/parkwise/parking-service/internal/service"
	"github.com/parkwise/parking-service/internal/worker"
	"github.com/parkwise/parking-service/pkg/config"
	"github.com/parkwise/parking-service/pkg/database"
	"github.com/parkwise/parking-service/pkg/logger"
	"github.com/parkwise/parking-service/pkg/middleware"
	pkgredis "github.com/parkwise/parking-service/pkg/redis"
	"github.com/parkwise/parking-service/pkg/telemetry"
)

func main() {
	runtime.GOMAXPROCS(runtime.NumCPU())

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logCfg := &logger.Config{
		Level:       "info",
		ServiceName: cfg.App.Name,
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
	appLog.Info("Starting Parking Service...")

	ctx := context.Background()

	// Initialize tracing
	_, err = telemetry.Init(ctx, &telemetry.Config{
		Enabled:        cfg.OTel.Enabled,
		ServiceName:    cfg.OTel.ServiceName,
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

	// Initialize database connection
	db, err := database.NewPostgres(ctx, &database.PostgresConfig{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		MaxConns:        int32(cfg.Database.MaxOpenConns),
		MinConns:        int32(cfg.Database.MaxIdleConns),
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

	// Initialize Redis connection
	redisClient, err := pkgredis.NewClient(ctx, &pkgredis.Config{
		Host:          cfg.Redis.Host,
		Port:          cfg.Redis.Port,
		Password:      cfg.Redis.Password,
		DB:            cfg.Redis.DB,
		PoolSize:      cfg.Redis.PoolSize,
		MinIdleConns:  cfg.Redis.MinIdleConns,
		DialTimeout:   cfg.Redis.DialTimeout,
		ReadTimeout:   cfg.Redis.ReadTimeout,
		WriteTimeout:  cfg.Redis.WriteTimeout,
		MaxRetries:    3,
		RetryInterval: 100 * time.Millisecond,
	})
	if err != nil {
		appLog.Fatal(fmt.Sprintf("Redis connection failed: %v", err))
	}
	defer redisClient.Close()
	appLog.Info("Redis connected")

	// Initialize Kafka event publisher, falling back to no-op
	var eventPublisher service.EventPublisher
	if cfg.Kafka.Enabled {
		eventPublisher, err = service.NewKafkaEventPublisher(ctx, &service.EventPublisherConfig{
			Brokers:     cfg.Kafka.Brokers,
			Topic:       cfg.Kafka.Topic,
			ServiceName: cfg.App.Name,
			ClientID:    cfg.Kafka.ClientID,
		})
		if err != nil {
			appLog.Warn(fmt.Sprintf("Kafka connection failed, using no-op publisher: %v", err))
			eventPublisher = service.NewNoOpEventPublisher()
		} else {
			appLog.Info("Kafka event publisher connected")
		}
	} else {
		eventPublisher = service.NewNoOpEventPublisher()
	}
	defer eventPublisher.Close()

	// Build dependency injection container
	container := di.NewContainer(&di.ContainerConfig{
		DB:             db,
		Redis:          redisClient,
		EventPublisher: eventPublisher,
		Logger:         appLog,
		NoShowConfig: &worker.NoShowWorkerConfig{
			ScanInterval: cfg.Parking.NoShowInterval,
			BatchSize:    cfg.Parking.SweepBatchSize,
		},
		OverstayConfig: &worker.OverstayWorkerConfig{
			ScanInterval: cfg.Parking.OverstayInterval,
			GraceWindow:  cfg.Parking.GraceWindow,
			BatchSize:    cfg.Parking.SweepBatchSize,
		},
		PendingHoldConfig: &worker.PendingHoldWorkerConfig{
			ScanInterval: cfg.Parking.HoldSweepInterval,
			HoldTimeout:  cfg.Parking.HoldTimeout,
			BatchSize:    cfg.Parking.SweepBatchSize,
		},
	})

	// Start reconciliation workers
	workerCtx, workerCancel := context.WithCancel(ctx)
	defer workerCancel()
	if err := container.NoShowWorker.Start(workerCtx); err != nil {
		appLog.Fatal(fmt.Sprintf("Failed to start no-show worker: %v", err))
	}
	if err := container.OverstayWorker.Start(workerCtx); err != nil {
		appLog.Fatal(fmt.Sprintf("Failed to start overstay worker: %v", err))
	}
	if err := container.PendingHoldWorker.Start(workerCtx); err != nil {
		appLog.Fatal(fmt.Sprintf("Failed to start pending-hold worker: %v", err))
	}

	// Setup Gin
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
		gin.DisableConsoleColor()
	}

	router := gin.New()
	router.Use(gin.Recovery())

	// Health check endpoints
	router.GET("/health", container.HealthHandler.Health)
	router.GET("/ready", container.HealthHandler.Ready)

	// Metrics endpoint for monitoring
	router.GET("/metrics", func(c *gin.Context) {
		stats := db.Stats()
		c.JSON(http.StatusOK, gin.H{
			"db_pool": gin.H{
				"total_conns":    stats.TotalConns(),
				"acquired_conns": stats.AcquiredConns(),
				"idle_conns":     stats.IdleConns(),
				"max_conns":      stats.MaxConns(),
			},
			"workers": gin.H{
				"no_show":      container.NoShowWorker.GetStats(),
				"overstay":     container.OverstayWorker.GetStats(),
				"pending_hold": container.PendingHoldWorker.GetStats(),
			},
		})
	})

	idempotencyConfig := middleware.DefaultIdempotencyConfig(redisClient.Client())
	authConfig := &middleware.AuthConfig{
		Secret: cfg.JWT.Secret,
		Issuer: cfg.JWT.Issuer,
	}

	// API routes
	v1 := router.Group("/api/v1")
	{
		v1.GET("/status", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"status":  "ok",
				"version": cfg.App.Version,
				"service": cfg.App.Name,
			})
		})

		tickets := v1.Group("/tickets")
		tickets.Use(middleware.Auth(authConfig))
		{
			tickets.POST("/reserve", container.TicketHandler.Reserve)
			tickets.GET("/my", container.TicketHandler.ListMyTickets)
			tickets.GET("/:id", container.TicketHandler.GetTicket)
			tickets.POST("/:id/checkin", container.TicketHandler.CheckIn)
			tickets.POST("/:id/checkout", container.TicketHandler.CheckOut)
		}

		// Payment provider callbacks, deduped by idempotency key
		webhooks := v1.Group("/webhooks/payments")
		webhooks.Use(middleware.Idempotency(idempotencyConfig))
		{
			webhooks.POST("/:id/reservation", container.WebhookHandler.ConfirmReservationPayment)
			webhooks.POST("/:id/parking", container.WebhookHandler.ConfirmExitPayment)
		}

		// Ground sensor callbacks
		v1.POST("/sensors/spaces/:id/vacant", container.SpaceHandler.ConfirmVacant)

		v1.GET("/spaces", container.SpaceHandler.ListSpaces)
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

	// pprof server on a side port
	go func() {
		pprofAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port+1000)
		appLog.Info(fmt.Sprintf("pprof server listening on %s", pprofAddr))
		if err := http.ListenAndServe(pprofAddr, nil); err != nil {
			appLog.Error(fmt.Sprintf("pprof server error: %v", err))
		}
	}()

	go func() {
		appLog.Info(fmt.Sprintf("Parking Service listening on %s", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLog.Fatal(fmt.Sprintf("Failed to start server: %v", err))
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLog.Info("Shutting down server...")

	container.NoShowWorker.Stop()
	container.OverstayWorker.Stop()
	container.PendingHoldWorker.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Fatal(fmt.Sprintf("Server forced to shutdown: %v", err))
	}

	appLog.Info("Server exited gracefully")
}
