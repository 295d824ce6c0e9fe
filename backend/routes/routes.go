package routes

import (
	"learnplan/backend/config"
	"learnplan/backend/controllers"
	"learnplan/backend/middleware"
	"learnplan/backend/services"
	"learnplan/backend/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"gorm.io/gorm"
)

// Services groups what the HTTP layer is wired to.
type Services struct {
	DB        *gorm.DB
	Auth      *services.AuthService
	Plans     *services.PlanService
	Progress  *services.ProgressService
	Analytics *services.AnalyticsService
}

// NewApp creates the fiber app with the shared middleware. Paths match with or without
// a trailing slash.
func NewApp(cfg *config.Config, log *utils.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:       "learning-plans",
		StrictRouting: false,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return utils.Fail(c, log, err)
		},
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))
	app.Use(middleware.LoggingMiddleware(log))
	return app
}

func SetupRoutes(app *fiber.App, svc *Services, log *utils.Logger) {
	app.Get("/health", func(c *fiber.Ctx) error {
		sqlDB, err := svc.DB.DB()
		if err == nil {
			err = sqlDB.PingContext(c.UserContext())
		}
		if err != nil {
			log.Warn("health check failed", "error", err)
			return utils.Error(c, fiber.StatusServiceUnavailable, "unhealthy", "Database unavailable")
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Auth routes
	authController := controllers.NewAuthController(svc.Auth, log)
	app.Post("/register/", authController.Register)
	app.Post("/login/", authController.Login)

	// Middleware
	authMiddleware := middleware.AuthMiddleware(svc.Auth, log)

	// User routes
	userController := controllers.NewUserController(log)
	app.Get("/users/me", authMiddleware, userController.Me)

	// Plan routes
	planController := controllers.NewPlanController(svc.Plans, log)
	app.Post("/generate-plan/", authMiddleware, planController.Generate)
	plans := app.Group("/learning-plan", authMiddleware)
	plans.Get("/all", planController.List)
	plans.Get("/:id", planController.Get)

	// Activity routes
	activityController := controllers.NewActivityController(svc.Progress, log)
	app.Post("/activity/log", authMiddleware, activityController.LogActivity)

	// Analytics routes
	analyticsController := controllers.NewAnalyticsController(svc.Analytics, log)
	app.Get("/analytics/progress", authMiddleware, analyticsController.Progress)
}
