package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"learnplan/backend/config"
	"learnplan/backend/generator"
	"learnplan/backend/models"
	"learnplan/backend/routes"
	"learnplan/backend/scheduler"
	"learnplan/backend/services"
	"learnplan/backend/utils"

	goredis "github.com/redis/go-redis/v9"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	// Initialize logger
	logger, err := utils.InitLogger(cfg.LogMode)
	if err != nil {
		log.Fatalf("Error initializing logger: %v", err)
	}
	defer logger.Sync()
	for _, warning := range cfg.Warnings {
		logger.Warn(warning)
	}

	// Initialize database
	db, err := utils.InitDB(cfg)
	if err != nil {
		logger.Fatal("Error initializing database", "error", err)
	}

	// Locks are shared through Redis when configured
	var locker services.Locker = services.NewKeyedMutex()
	var rdb *goredis.Client
	if cfg.RedisAddr != "" {
		rdb = goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			logger.Fatal("Error connecting to redis", "addr", cfg.RedisAddr, "error", err)
		}
		locker = services.NewRedisLocker(rdb, cfg.LockTTL)
		logger.Info("using redis locks", "addr", cfg.RedisAddr)
	}

	// Plan generator
	var gen generator.PlanGenerator
	openAI, err := generator.NewOpenAI(generator.OpenAIConfig{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.OpenAIModel,
		Timeout: cfg.GenerationTimeout,
	}, logger)
	switch {
	case err == nil:
		gen = openAI
	case errors.Is(err, generator.ErrMissingAPIKey):
		logger.Warn("OPENAI_API_KEY is not set, plan generation will fail")
		gen = generator.Func(func(ctx context.Context, req generator.Request) (models.PlanContent, error) {
			return nil, generator.ErrMissingAPIKey
		})
	default:
		logger.Fatal("Error creating plan generator", "error", err)
	}

	// Services
	tasks := services.NewTaskRunner(logger, cfg.TaskTimeout)
	streaks := services.NewStreakService(db, locker, cfg.Location, logger)
	plans := services.NewPlanService(db, services.NewAdmission(db, locker, cfg.MaxUnfinishedPlans), gen, cfg.GenerationTimeout, logger)
	svc := &routes.Services{
		DB:        db,
		Auth:      services.NewAuthService(db, cfg, logger),
		Plans:     plans,
		Progress:  services.NewProgressService(db, locker, tasks, streaks, logger),
		Analytics: services.NewAnalyticsService(db, cfg.Location, logger),
	}

	// Sweeper for interrupted and expired failed generations
	sweeper := scheduler.New(plans, scheduler.Options{
		Interval:     cfg.CleanupInterval,
		PendingAfter: 2 * cfg.GenerationTimeout,
		Retention:    cfg.FailedPlanRetention,
	}, cfg.Location, logger)
	if err := sweeper.Start(); err != nil {
		logger.Fatal("Error starting scheduler", "error", err)
	}

	// Create Fiber app
	app := routes.NewApp(cfg, logger)
	routes.SetupRoutes(app, svc, logger)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Info("shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.Warn("server shutdown", "error", err)
		}
	}()

	// Start server
	logger.Info("server starting", "port", cfg.ServerPort)
	if err := app.Listen(":" + cfg.ServerPort); err != nil {
		logger.Error("server stopped", "error", err)
	}

	sweeper.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), cfg.TaskTimeout)
	defer cancel()
	if err := tasks.Close(ctx); err != nil {
		logger.Warn("background tasks did not finish", "error", err)
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
