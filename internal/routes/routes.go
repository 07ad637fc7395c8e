// Package routes defines the API routing configuration. It wires handlers,
// middleware and authentication requirements onto the fiber app.
package routes

import (
	"time"

	"cora/internal/handlers"
	"cora/internal/middleware"
	"cora/internal/repositories"
	"cora/internal/services/account"
	"cora/internal/services/auth"
	"cora/internal/services/deposit"
	"cora/internal/services/transfer"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

// Deps carries the constructed service graph into the router.
type Deps struct {
	Users     repositories.UserRepository
	Auth      auth.Service
	Accounts  account.Service
	Transfers transfer.Service
	Deposits  *deposit.Service
	Redis     *redis.Client
	Registry  *prometheus.Registry
}

// SetupRoutes configures all application routes.
func SetupRoutes(app *fiber.App, deps Deps) {
	authHandler := handlers.NewAuthHandler(deps.Auth)
	accountHandler := handlers.NewAccountHandler(deps.Accounts, deps.Deposits)
	transferHandler := handlers.NewTransferHandler(deps.Transfers, deps.Accounts)
	healthHandler := handlers.NewHealthHandler(deps.Redis)

	app.Get("/health", healthHandler.HealthCheck)
	if deps.Registry != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{})))
	}

	api := app.Group("/api")

	api.Post("/register", authLimiter(), authHandler.RegisterUser)
	api.Post("/login", authLimiter(), authHandler.LoginUser)
	api.Post("/refresh", authHandler.RefreshToken)

	authMw := middleware.NewAuthMiddleware(deps.Users)
	authenticated := api.Group("/", authMw.Handler)

	authenticated.Post("/logout", authHandler.LogoutUser)
	authenticated.Post("/change-password", authHandler.ChangePassword)

	authenticated.Post("/accounts", accountHandler.CreateAccount)
	authenticated.Get("/accounts", accountHandler.ListAccounts)
	authenticated.Get("/accounts/:id/balance", accountHandler.GetBalance)
	authenticated.Post("/accounts/:id/deposit", accountHandler.DepositCard)

	authenticated.Post("/transfers", transferHandler.CreateTransfer)
	authenticated.Get("/transfers/:id", transferHandler.GetTransfer)

	admin := authenticated.Group("/admin", middleware.AdminOnly)
	admin.Put("/accounts/:id/status", accountHandler.SetAccountStatus)
}

func authLimiter() fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        5,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "too many requests, please try again later",
			})
		},
	})
}
