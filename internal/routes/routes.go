package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/tavanofede-png/clases-de-frances/internal/config"
	"github.com/tavanofede-png/clases-de-frances/internal/handlers"
	"github.com/tavanofede-png/clases-de-frances/internal/middleware"
	"github.com/tavanofede-png/clases-de-frances/internal/queue"
	"github.com/tavanofede-png/clases-de-frances/internal/repository"
	"github.com/tavanofede-png/clases-de-frances/internal/services"
)

func RegisterRoutes(app *fiber.App, cfg *config.Config, db *pgxpool.Pool, enqueuer queue.Enqueuer, logger *zap.Logger) {
	tenantRepo := repository.NewTenantRepository(db)
	lessonRepo := repository.NewLessonRepository(db)
	lessonTypeRepo := repository.NewLessonTypeRepository(db)
	availabilityRepo := repository.NewAvailabilityRepository(db)
	leadRepo := repository.NewLeadRepository(db)
	userRepo := repository.NewUserRepository(db)
	studentRepo := repository.NewStudentRepository(db)

	creditService := services.NewCreditService()
	availabilityService := services.NewAvailabilityService(lessonTypeRepo, availabilityRepo, lessonRepo)
	bookingService := services.NewBookingService(db, creditService, enqueuer, cfg.WebBaseURL, cfg.WompiPublicKey, logger)
	webhookService := services.NewWebhookService(db, enqueuer, cfg.WompiEventsSecret, logger)

	availabilityHandler := handlers.NewAvailabilityHandler(availabilityService)
	bookingHandler := handlers.NewBookingHandler(bookingService)
	webhookHandler := handlers.NewWebhookHandler(webhookService)
	leadHandler := handlers.NewLeadHandler(leadRepo, enqueuer, logger)
	adminHandler := handlers.NewAdminHandler(bookingService, lessonRepo, availabilityRepo, tenantRepo)
	authHandler := handlers.NewAuthHandler(db, userRepo, studentRepo, cfg.JWTSecret)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"ok": true, "data": fiber.Map{"status": "up"}})
	})

	tenant := app.Group("/t/:slug", middleware.ResolveTenant(tenantRepo))

	// Public surface: slot discovery, provider callbacks, landing leads.
	tenant.Get("/slots", availabilityHandler.GetSlots)
	tenant.Post("/payments/webhook/wompi", webhookHandler.Wompi)
	tenant.Post("/leads", leadHandler.Create)
	tenant.Post("/auth/register", authHandler.Register)
	tenant.Post("/auth/login", authHandler.Login)

	// Student surface.
	student := tenant.Group("", middleware.AuthRequired(cfg.JWTSecret))
	student.Get("/me", authHandler.Me)
	student.Post("/bookings", bookingHandler.Create)
	student.Get("/me/lessons", bookingHandler.MyLessons)
	student.Get("/me/packs", bookingHandler.MyPacks)
	student.Post("/lessons/:id/reschedule", bookingHandler.Reschedule)
	student.Post("/lessons/:id/cancel", bookingHandler.Cancel)
	student.Post("/payments/checkout", bookingHandler.Checkout)
	student.Post("/packs/purchase", bookingHandler.PurchasePack)

	// Back office.
	admin := tenant.Group("/admin", middleware.AuthRequired(cfg.JWTSecret), middleware.AdminRequired())
	admin.Get("/lessons", adminHandler.ListLessons)
	admin.Get("/lessons/:id", adminHandler.GetLesson)
	admin.Patch("/lessons/:id", adminHandler.UpdateLesson)
	admin.Get("/availability/rules", adminHandler.ListRules)
	admin.Post("/availability/rules", adminHandler.CreateRule)
	admin.Delete("/availability/rules/:id", adminHandler.DeleteRule)
	admin.Get("/availability/blocked", adminHandler.ListBlockedTimes)
	admin.Post("/availability/blocked", adminHandler.CreateBlockedTime)
	admin.Delete("/availability/blocked/:id", adminHandler.DeleteBlockedTime)
	admin.Patch("/config", adminHandler.UpdateConfig)
}
