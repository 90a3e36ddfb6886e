package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/thairide/service-booking/internal/application"
	"github.com/thairide/service-booking/internal/config"
	bookingDomain "github.com/thairide/service-booking/internal/domain/booking"
	"github.com/thairide/service-booking/internal/domain/policy"
	bookingEvents "github.com/thairide/service-booking/internal/events"
	"github.com/thairide/service-booking/internal/handler"
	"github.com/thairide/service-booking/internal/platform/auth"
	"github.com/thairide/service-booking/internal/platform/database"
	"github.com/thairide/service-booking/internal/platform/health"
	"github.com/thairide/service-booking/internal/platform/kafka"
	"github.com/thairide/service-booking/internal/platform/logger"
	"github.com/thairide/service-booking/internal/platform/middleware"
	"github.com/thairide/service-booking/internal/repository"
	"github.com/thairide/service-booking/internal/repository/memory"
	"github.com/thairide/service-booking/internal/scheduler"
)

const serviceName = "service-booking"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewNamed(cfg.AppEnv, serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting service-booking",
		zap.String("port", cfg.Port),
		zap.String("store", cfg.StoreDriver),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize persistence
	var (
		db         *gorm.DB
		uow        application.UnitOfWork
		reader     application.Repositories
		policyRepo policy.Repository
	)
	switch cfg.StoreDriver {
	case config.StoreMemory:
		store := memory.NewStore()
		uow = store
		reader = store.Repositories()
		policyRepo = memory.NewPolicyRepository()
		log.Warn("using in-memory store; data is lost on restart")
	default:
		db = connectPostgres(cfg, log)
		uow = repository.NewGormUnitOfWork(db)
		reader = repository.NewRepositories(db)
		policyRepo = repository.NewGormPolicyRepository(db)
	}

	// Seed policy version 1 on first start
	policyService := application.NewPolicyService(policyRepo, log)
	if err := policyService.EnsureSeed(ctx, cfg.Policy); err != nil {
		log.Fatal("failed to seed policy", zap.Error(err))
	}

	// Initialize Redis (deadlines + idempotency keys)
	var (
		rdb       *redis.Client
		deadlines application.DeadlineStore
	)
	if cfg.RedisEnabled {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisConfig.Addr,
			Password: cfg.RedisConfig.Password,
			DB:       cfg.RedisConfig.DB,
		})
		defer func() { _ = rdb.Close() }()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn("redis unreachable at startup", zap.Error(err))
		}
		deadlines = scheduler.NewRedisDeadlineStore(rdb)
	} else {
		deadlines = scheduler.NewMemoryDeadlineStore()
	}

	// Initialize event publisher
	var publisher application.EventPublisher
	var kafkaProducer *kafka.Producer
	if cfg.KafkaEnabled && len(cfg.KafkaConfig.Brokers) > 0 {
		kafkaProducer = kafka.NewProducer(cfg.KafkaConfig.Brokers, log)
		defer func() { _ = kafkaProducer.Close() }()
		publisher = bookingEvents.NewKafkaPublisher(kafkaProducer)
	} else {
		publisher = bookingEvents.NewLogPublisher(log)
	}

	// Initialize application services
	coordinator := application.NewAssignmentCoordinator(deadlines, log)
	bookingService := application.NewBookingService(
		uow,
		reader,
		policyRepo,
		coordinator,
		bookingDomain.NewStandardPricingStrategy(),
		publisher,
		application.SystemClock{},
		log,
	)
	disputeService := application.NewDisputeService(uow, reader, policyRepo, publisher, application.SystemClock{}, log)
	driverService := application.NewDriverService(uow, reader, policyRepo, log)

	// Start the assignment timeout monitor
	monitor := application.NewTimeoutMonitor(
		bookingService,
		deadlines,
		reader.Bookings,
		policyRepo,
		application.SystemClock{},
		cfg.Monitor.Interval,
		cfg.Monitor.Batch,
		log,
	)
	go monitor.Run(ctx)

	// Initialize and start payment event consumer in a goroutine
	if kafkaProducer != nil {
		groupID := cfg.KafkaConfig.GroupPrefix + "booking-service"
		paymentConsumer := bookingEvents.NewPaymentEventConsumer(
			cfg.KafkaConfig.Brokers,
			groupID,
			bookingService,
			log,
		)
		defer func() { _ = paymentConsumer.Close() }()

		go func() {
			log.Info("starting payment event consumer")
			if err := paymentConsumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("payment event consumer error", zap.Error(err))
			}
		}()
	}

	// Initialize New Relic
	var nrApp *newrelic.Application
	if cfg.NewRelic.Enabled {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigEnabled(true),
		)
		if err != nil {
			log.Warn("new relic disabled", zap.Error(err))
			nrApp = nil
		}
	}

	// Initialize JWT manager
	jwtManager := auth.NewJWTManager(cfg.JWTConfig.Secret, 15*time.Minute)

	// Initialize HTTP handlers
	bookingHandler := handler.NewBookingHandler(bookingService)
	driverHandler := handler.NewDriverHandler(driverService)
	disputeHandler := handler.NewDisputeHandler(disputeService)
	adminHandler := handler.NewAdminHandler(bookingService, disputeService, driverService, policyService)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	// Apply global middleware
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.NewRelicMiddleware(nrApp))
	router.Use(middleware.LoggerMiddleware(log))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.SecurityHeadersMiddleware())

	// Register health check routes
	healthHandler := health.NewHandler(db, rdb, serviceName)
	healthHandler.RegisterRoutes(router)

	// Register routes
	api := router.Group("")
	api.Use(middleware.IdempotencyMiddleware(rdb, log))
	bookingHandler.RegisterRoutes(api, jwtManager)
	driverHandler.RegisterRoutes(api, jwtManager)
	disputeHandler.RegisterRoutes(api, jwtManager)
	adminHandler.RegisterRoutes(api, jwtManager)

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down service-booking...")

	// Stop the monitor and consumer
	cancel()

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server forced shutdown", zap.Error(err))
	}
	if nrApp != nil {
		nrApp.Shutdown(5 * time.Second)
	}

	log.Info("service-booking stopped")
}

func connectPostgres(cfg *config.ServiceConfig, log *zap.Logger) *gorm.DB {
	dbConfig := database.PostgresConfig{
		Host:     cfg.DBConfig.Host,
		Port:     cfg.DBConfig.Port,
		User:     cfg.DBConfig.User,
		Password: cfg.DBConfig.Password,
		DBName:   cfg.DBConfig.DBName,
		SSLMode:  cfg.DBConfig.SSLMode,
	}
	db, err := database.Connect(dbConfig, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	// Run database migrations
	if cfg.AppEnv == "development" {
		if err := db.AutoMigrate(repository.AllModels()...); err != nil {
			log.Fatal("failed to run auto-migration", zap.Error(err))
		}
		log.Info("database migration completed (dev auto-migrate)")
	} else {
		if err := database.RunMigrations(dbConfig.DatabaseURL(), "migrations", log); err != nil {
			log.Fatal("failed to run migrations", zap.Error(err))
		}
	}
	return db
}
