// Package main is the entry point for the API server. It hosts the transfer
// orchestrator, the fraud gateway and the confirmation consumer alongside the
// HTTP surface; balance mutations are applied by the separate ledger worker.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/prometheus/client_golang/prometheus"

	"cora/internal/config"
	"cora/internal/events"
	"cora/internal/idempotency"
	"cora/internal/messaging"
	"cora/internal/metrics"
	"cora/internal/repositories"
	"cora/internal/repositories/cache"
	"cora/internal/routes"
	"cora/internal/services/account"
	"cora/internal/services/auth"
	"cora/internal/services/deposit"
	"cora/internal/services/fraud"
	"cora/internal/services/ledger"
	"cora/internal/services/transfer"
)

func main() {
	config.LoadEnv()

	if err := repositories.InitDB(); err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}
	defer repositories.CloseDB()

	redisClient := cache.NewRedisClient(&cache.RedisConfig{
		Host:     config.GetEnv("REDIS_HOST", "localhost"),
		Port:     config.GetEnv("REDIS_PORT", "6379"),
		Password: config.GetEnv("REDIS_PASSWORD", ""),
		DB:       config.GetIntEnv("REDIS_DB", 0),
	})
	defer redisClient.Close()

	registry := prometheus.NewRegistry()
	recorder := metrics.NewPrometheusRecorder(registry)

	channel := messaging.NewRedisChannel(redisClient, messaging.RedisChannelConfig{
		Group:    config.GetEnv("STREAM_GROUP", "orchestrator"),
		Consumer: config.GetEnv("STREAM_CONSUMER", hostname()),
	})
	publisher := events.NewPublisher(channel)

	accountRepo := repositories.NewAccountRepository(repositories.DB)
	transactionRepo := repositories.NewTransactionRepository(repositories.DB)
	userRepo := repositories.NewUserRepository(repositories.DB)

	accountCache := cache.NewAccountCache(redisClient, config.GetDurationEnv("ACCOUNT_CACHE_TTL", 5*time.Minute))

	authService := auth.NewService(userRepo)
	accountService := account.NewService(accountRepo, accountCache)

	fraudStore := idempotency.NewRedisStore(redisClient, "fraud:transfer")
	fraudService := fraud.NewService(fraud.Config{
		Policy:    fraud.NewThresholdPolicy(config.GetInt64Env("FRAUD_LIMIT_CENTS", fraud.DefaultThresholdCents)),
		Store:     fraudStore,
		Publisher: publisher,
		Metrics:   recorder,
		Probe: func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		},
	})

	transferService := transfer.NewService(
		transactionRepo,
		accountService,
		fraudService,
		channel,
		publisher,
		recorder,
		transfer.Config{
			OwnershipStrict: config.GetBoolEnv("OWNERSHIP_STRICT", true),
			DefaultCurrency: config.GetEnv("DEFAULT_CURRENCY", "USD"),
		},
	)

	ledgerService := ledger.NewService(accountRepo, accountCache, recorder)
	depositStore := idempotency.NewRedisStore(redisClient, "deposit")
	depositService := deposit.NewService(ledgerService, depositStore)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	consumer := transfer.NewConsumer(channel, transferService, recorder)
	go func() {
		if err := consumer.Run(ctx); err != nil && ctx.Err() == nil {
			log.Fatalf("confirmation consumer stopped: %v", err)
		}
	}()

	app := fiber.New()

	app.Use(cors.New(cors.Config{
		AllowOrigins:     config.GetEnv("CORS_ORIGINS", "http://localhost:5173"),
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Idempotency-Key",
		AllowMethods:     "GET,POST,HEAD,PUT,DELETE,PATCH",
		AllowCredentials: true,
	}))
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	routes.SetupRoutes(app, routes.Deps{
		Users:     userRepo,
		Auth:      authService,
		Accounts:  accountService,
		Transfers: transferService,
		Deposits:  depositService,
		Redis:     redisClient,
		Registry:  registry,
	})

	go func() {
		<-ctx.Done()
		log.Println("shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("shutdown error: %v", err)
		}
	}()

	if err := app.Listen(":" + config.GetEnv("PORT", "3000")); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil {
		return "orchestrator-1"
	}
	return name
}
