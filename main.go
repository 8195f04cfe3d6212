package main

import (
	"context"
	"log"
	"os"

	"github.com/getsentry/sentry-go"
	"github.com/gofiber/fiber/v2"

	"dealflow/config"
	"dealflow/middleware"
	"dealflow/routes"
	"dealflow/utils"
	"dealflow/worker"
)

func main() {
	// Initialize logger
	logger := log.New(os.Stdout, "DEALFLOW: ", log.Ldate|log.Ltime|log.Lshortfile)

	// Load configuration
	if err := config.LoadConfig(); err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Error reporting
	if config.AppConfig.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         config.AppConfig.SentryDSN,
			Environment: config.AppConfig.Environment,
		}); err != nil {
			logger.Printf("Sentry initialization failed: %v", err)
		}
	}

	// Initialize database connection
	if err := config.ConnectDB(); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	// Credential vault
	vault, err := utils.NewVault(config.AppConfig.EncryptionKey)
	if err != nil {
		logger.Fatalf("Failed to initialize vault: %v", err)
	}

	// Mail engine
	syncer := utils.NewInboxSyncer(config.DB, vault, log.New(os.Stdout, "SYNC: ", log.LstdFlags))
	mailer := utils.NewOutboundMailer(config.DB, vault, log.New(os.Stdout, "MAILER: ", log.LstdFlags))

	// Create Fiber app
	app := fiber.New()

	// Add CORS middleware
	app.Use(middleware.CORS())

	// Background workers
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	syncWorker := worker.NewSyncWorker(syncer, config.AppConfig.SyncInterval, log.New(os.Stdout, "SYNC: ", log.LstdFlags))
	go syncWorker.Start(ctx)

	planWorker := worker.NewPlanWorker(config.DB, log.New(os.Stdout, "PLANS: ", log.LstdFlags))
	go planWorker.Start(ctx)

	// Setup routes
	routes.SetupRoutes(app, config.DB, vault, syncer, mailer)

	// Health check endpoint
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "running",
			"version": "1.0.0",
		})
	})

	// Start server
	logger.Printf("🚀 Server starting on port %s", config.AppConfig.ServerPort)
	if err := app.Listen(":" + config.AppConfig.ServerPort); err != nil {
		logger.Fatalf("Failed to start server: %v", err)
	}
}
