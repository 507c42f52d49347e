// Package main provides the main entry point for the billing messaging engine
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zapflow/billing-engine/app/handlers"
	"github.com/zapflow/billing-engine/app/middleware"
	"github.com/zapflow/billing-engine/app/queue"
	"github.com/zapflow/billing-engine/app/router"
	"github.com/zapflow/billing-engine/app/scheduler"
	"github.com/zapflow/billing-engine/app/services"
	businessflow "github.com/zapflow/billing-engine/business_flow"
	"github.com/zapflow/billing-engine/config"
	"github.com/zapflow/billing-engine/repository"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Application represents the main application structure
type Application struct {
	router    router.Router
	config    *config.ProductionConfig
	stopFuncs []func()
}

func main() {
	log.Println("Starting billing engine...")

	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	app, err := initializeApplication(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	app.router.SetupRoutes()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		if err := app.router.Start(address); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-sigChan
	log.Println("Shutting down gracefully...")

	// Stop background workers before closing the listener so in-flight
	// batches release their queues.
	for _, fn := range app.stopFuncs {
		fn()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.router.GetApp().ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Printf("Database connection established with %d max open connections, %d max idle connections",
		cfg.MaxOpenConns, cfg.MaxIdleConns)

	return db, nil
}

// initializeBroker initializes the Redis client backing the stream broker
func initializeBroker(cfg config.BrokerConfig) (*redis.Client, error) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opt.DB = cfg.RedisDB

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Printf("Redis connection established (db=%d)", cfg.RedisDB)
	return rc, nil
}

// initializeApplication initializes the main application components
func initializeApplication(cfg *config.ProductionConfig) (*Application, error) {
	var stopFuncs []func()

	db, err := initializeDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}

	rc, err := initializeBroker(cfg.Broker)
	if err != nil {
		return nil, err
	}

	// Initialize repositories
	tenantRepo := repository.NewTenantRepository(db)
	instanceRepo := repository.NewWhatsAppInstanceRepository(db)
	templateRepo := repository.NewBillingTemplateRepository(db)
	campaignRepo := repository.NewCampaignRepository(db)
	billingCampaignRepo := repository.NewBillingCampaignRepository(db)
	queueRepo := repository.NewBillingQueueRepository(db)
	contactRepo := repository.NewBillingContactRepository(db)
	cycleRepo := repository.NewBillingCycleRepository(db)
	hoursRepo := repository.NewBusinessHoursRepository(db)

	// Initialize services
	engine := services.NewTemplateEngine(true)
	hoursOracle := services.NewBusinessHoursOracle(hoursRepo)
	gateway := services.NewGatewayClient(cfg.Gateway)
	publisher := queue.NewRedisPublisher(rc)

	// Initialize flows
	campaignFlow := businessflow.NewBillingCampaignFlow(
		tenantRepo,
		instanceRepo,
		templateRepo,
		campaignRepo,
		billingCampaignRepo,
		queueRepo,
		contactRepo,
		engine,
		publisher,
		cfg.Gateway.CountryCode,
		db,
	)

	cycleFlow := businessflow.NewBillingCycleFlow(
		tenantRepo,
		templateRepo,
		cycleRepo,
		contactRepo,
		hoursOracle,
		cfg.Gateway.CountryCode,
		db,
	)

	// Start the broker consumers
	consumer := queue.NewConsumer(
		rc,
		cfg.Broker,
		tenantRepo,
		instanceRepo,
		billingCampaignRepo,
		queueRepo,
		contactRepo,
		hoursOracle,
		gateway,
		publisher,
	)
	stopFuncs = append(stopFuncs, consumer.Start(context.Background()))

	// Start the cycle scheduler
	if cfg.Scheduler.Enabled {
		cycleScheduler := scheduler.NewCycleScheduler(
			cfg.Scheduler,
			db,
			contactRepo,
			cycleRepo,
			templateRepo,
			tenantRepo,
			instanceRepo,
			cycleFlow,
			engine,
			hoursOracle,
			gateway,
		)
		stopFuncs = append(stopFuncs, cycleScheduler.Start(context.Background()))
	}

	// Initialize handlers and router
	campaignHandler := handlers.NewBillingCampaignHandler(campaignFlow)
	cycleHandler := handlers.NewBillingCycleHandler(cycleFlow)
	tenantMW := middleware.NewTenantMiddleware(tenantRepo)

	r := router.NewFiberRouter(campaignHandler, cycleHandler, tenantMW, db, rc)

	return &Application{
		router:    r,
		config:    cfg,
		stopFuncs: stopFuncs,
	}, nil
}
