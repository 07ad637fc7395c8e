// Package main is the entry point for the ledger worker. It consumes balance
// mutation commands from the stream, applies them to accounts and publishes
// confirmations. A small HTTP listener exposes health and metrics.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cora/internal/config"
	"cora/internal/handlers"
	"cora/internal/messaging"
	"cora/internal/metrics"
	"cora/internal/repositories"
	"cora/internal/repositories/cache"
	"cora/internal/services/ledger"
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
		Group:    config.GetEnv("STREAM_GROUP", "ledger"),
		Consumer: config.GetEnv("STREAM_CONSUMER", hostname()),
	})

	accountRepo := repositories.NewAccountRepository(repositories.DB)
	accountCache := cache.NewAccountCache(redisClient, config.GetDurationEnv("ACCOUNT_CACHE_TTL", 5*time.Minute))
	ledgerService := ledger.NewService(accountRepo, accountCache, recorder)
	consumer := ledger.NewConsumer(channel, ledgerService, recorder)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := fiber.New()
	healthHandler := handlers.NewHealthHandler(redisClient)
	app.Get("/health", healthHandler.HealthCheck)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	go func() {
		if err := app.Listen(":" + config.GetEnv("LEDGER_PORT", "3001")); err != nil {
			log.Printf("http listener stopped: %v", err)
		}
	}()

	log.Println("ledger worker consuming balance commands")
	if err := consumer.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("command consumer stopped: %v", err)
	}

	if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil {
		return "ledger-1"
	}
	return name
}
