package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/tavanofede-png/clases-de-frances/internal/calendar"
	"github.com/tavanofede-png/clases-de-frances/internal/config"
	"github.com/tavanofede-png/clases-de-frances/internal/database"
	"github.com/tavanofede-png/clases-de-frances/internal/email"
	applogger "github.com/tavanofede-png/clases-de-frances/internal/logger"
	"github.com/tavanofede-png/clases-de-frances/internal/queue"
	"github.com/tavanofede-png/clases-de-frances/internal/repository"
	"github.com/tavanofede-png/clases-de-frances/internal/worker"
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

	tenantRepo := repository.NewTenantRepository(db)
	lessonRepo := repository.NewLessonRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	lessonTypeRepo := repository.NewLessonTypeRepository(db)
	packRepo := repository.NewPackRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	jobRunRepo := repository.NewJobRunRepository(db)

	var calendarClient calendar.Client
	if cfg.CalendarAPIBase != "" && cfg.CalendarAPIKey != "" {
		calendarClient = calendar.NewHTTPClient(cfg.CalendarAPIBase, cfg.CalendarAPIKey)
	} else {
		calendarClient = calendar.NewPlaceholder(zlog)
	}

	var sender email.Sender
	if cfg.EmailAPIBase != "" && cfg.EmailAPIKey != "" {
		sender = email.NewHTTPSender(cfg.EmailAPIBase, cfg.EmailAPIKey, cfg.EmailFromAddress)
	} else {
		sender = email.NewLogSender(zlog)
	}

	calendarProcessor := worker.NewCalendarProcessor(tenantRepo, lessonRepo, studentRepo, lessonTypeRepo, calendarClient, zlog)
	emailProcessor := worker.NewEmailProcessor(tenantRepo, lessonRepo, studentRepo, lessonTypeRepo, packRepo, sender, cfg.WebBaseURL, zlog)
	chaseProcessor := worker.NewChaseProcessor(lessonRepo, paymentRepo, publisher, zlog)
	followUpProcessor := worker.NewFollowUpProcessor(lessonRepo, publisher)
	reminderProcessor := worker.NewReminderProcessor()

	w := worker.New(cfg.AmqpURL, publisher, jobRunRepo, zlog)
	w.Handle(queue.QueueCalendar, calendarProcessor.Handle)
	w.Handle(queue.QueueEmail, emailProcessor.Handle)
	w.Handle(queue.QueueReminder, reminderProcessor.Handle)
	w.Handle(queue.QueuePaymentChase, chaseProcessor.Handle)
	w.Handle(queue.QueueFollowUp, followUpProcessor.Handle)
	w.Handle(queue.QueueWelcome, emailProcessor.Handle)

	zlog.Info("worker starting")
	if err := w.Run(ctx); err != nil {
		zlog.Fatal("Worker failed", zap.Error(err))
	}
	zlog.Info("worker stopped")
}
