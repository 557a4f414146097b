package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/tavanofede-png/clases-de-frances/internal/config"
	"github.com/tavanofede-png/clases-de-frances/internal/database"
	applogger "github.com/tavanofede-png/clases-de-frances/internal/logger"
	"github.com/tavanofede-png/clases-de-frances/internal/queue"
	"github.com/tavanofede-png/clases-de-frances/internal/repository"
	"github.com/tavanofede-png/clases-de-frances/internal/routes"
	"github.com/tavanofede-png/clases-de-frances/internal/scheduler"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zlog, err := applogger.New(cfg.AppEnv)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.DBUrl == "" {
		zlog.Fatal("DB_URL is required")
	}
	db, err := database.Connect(ctx, cfg.DBUrl)
	if err != nil {
		zlog.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			zlog.Fatal("Invalid REDIS_URL", zap.Error(err))
		}
		rdb = redis.NewClient(opts)
		defer func() { _ = rdb.Close() }()
	}

	publisher, err := queue.NewPublisher(cfg.AmqpURL, rdb, zlog)
	if err != nil {
		zlog.Fatal("Failed to connect to rabbitmq", zap.Error(err))
	}
	defer func() { _ = publisher.Close() }()

	sched := scheduler.New(
		repository.NewLessonRepository(db),
		repository.NewJobRunRepository(db),
		publisher,
		zlog,
		time.Duration(cfg.SchedulerTickMins)*time.Minute,
		cfg.SchedulerDailyHour,
	)
	sched.Start(ctx)
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		ReadTimeout: 30 * time.Second,
	})
	app.Use(cors.New())
	app.Use(requestid.New())
	app.Use(fiberlogger.New())
	app.Use(recover.New())

	routes.RegisterRoutes(app, cfg, db, publisher, zlog)

	go func() {
		<-ctx.Done()
		zlog.Info("shutting down http server")
		_ = app.ShutdownWithTimeout(10 * time.Second)
	}()

	zlog.Info("server starting", zap.String("port", cfg.Port))
	if err := app.Listen(":" + cfg.Port); err != nil {
		zlog.Fatal("Server failed", zap.Error(err))
	}
}
