package routes

import (
	"log"
	"os"

	controller "dealflow/controllers"
	"dealflow/middleware"
	"dealflow/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"gorm.io/gorm"
)

// SetupRoutes wires every route group onto the app.
func SetupRoutes(app *fiber.App, db *gorm.DB, vault *utils.Vault, syncer *utils.InboxSyncer, mailer *utils.OutboundMailer) {
	SetupAuthRoutes(app, db)
	SetupAPIRoutes(app, db, vault, syncer, mailer)
}

func SetupAuthRoutes(app *fiber.App, db *gorm.DB) {
	// Initialize logger
	authLogger := log.New(os.Stdout, "AUTH: ", log.Ldate|log.Ltime|log.Lshortfile)

	// Auth routes group with logging middleware
	auth := app.Group("/auth", logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	// Public auth endpoints (no authentication required)
	auth.Post("/register", controller.Register)
	auth.Post("/login", controller.Login)
	auth.Post("/refresh", controller.RefreshToken)

	// Protected auth endpoints (require valid JWT)
	protectedAuth := auth.Group("", middleware.Protected())
	protectedAuth.Post("/change-password", controller.ChangePassword)
	protectedAuth.Get("/me", controller.GetCurrentUser)

	authLogger.Println("Authentication routes initialized successfully")
}

func SetupAPIRoutes(app *fiber.App, db *gorm.DB, vault *utils.Vault, syncer *utils.InboxSyncer, mailer *utils.OutboundMailer) {
	// Initialize controllers with their respective loggers
	mailboxController := controller.NewMailboxController(db, log.New(os.Stdout, "MAILBOX: ", log.LstdFlags), vault, syncer)
	conversationController := controller.NewConversationController(db, log.New(os.Stdout, "CONVERSATION: ", log.LstdFlags), mailer)
	startupController := controller.NewStartupController(db, log.New(os.Stdout, "STARTUP: ", log.LstdFlags))
	activityController := controller.NewActivityController(db, log.New(os.Stdout, "ACTIVITY: ", log.LstdFlags))

	// API group with versioning and protection
	api := app.Group("/api/v1", middleware.Protected(), logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	// Mailbox configuration and sync
	mailbox := api.Group("/mailbox")
	mailbox.Get("/config", mailboxController.GetConfig)
	mailbox.Post("/config", mailboxController.SaveConfig)
	mailbox.Post("/test", middleware.MailboxTestRateLimiter(), mailboxController.TestConfig)
	mailbox.Get("/status", mailboxController.GetStatus)
	mailbox.Post("/sync", mailboxController.SyncNow)
	mailbox.Post("/sync-enabled", mailboxController.ToggleSync)

	// Provider defaults: listing is open to any signed-in user, writes are
	// admin only
	mailbox.Get("/providers", mailboxController.ListProviders)
	mailbox.Post("/providers", middleware.AdminOnly(), mailboxController.SaveProvider)

	// Conversations
	conversations := api.Group("/conversations")
	conversations.Get("/", conversationController.GetConversations)
	conversations.Get("/:id", conversationController.GetConversation)
	conversations.Post("/:id/reply", conversationController.Reply)
	conversations.Post("/:id/forward", conversationController.Forward)
	conversations.Post("/:id/read", conversationController.MarkRead)
	conversations.Post("/:id/unread", conversationController.MarkUnread)
	conversations.Post("/:id/archive", conversationController.Archive)
	conversations.Post("/:id/unarchive", conversationController.Unarchive)
	conversations.Get("/:id/attachments/:attachmentID", conversationController.DownloadAttachment)

	// Startups and contacts
	startups := api.Group("/startups")
	startups.Get("/", startupController.GetStartups)
	startups.Post("/", startupController.CreateStartup)
	startups.Get("/:id", startupController.GetStartup)
	startups.Put("/:id", startupController.UpdateStartup)
	startups.Post("/:id/contacts", startupController.CreateContact)
	startups.Put("/:id/contacts/:contactID", startupController.UpdateContact)
	startups.Delete("/:id/contacts/:contactID", startupController.DeleteContact)

	// Weekly activity plans
	activity := api.Group("/activity")
	activity.Get("/plan", activityController.GetPlan)
	activity.Put("/plan", activityController.UpsertPlan)
	activity.Post("/plan/:id/close", activityController.ClosePlan)
}
