package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"books_importer/internal/config"
	"books_importer/internal/publisher"
	"books_importer/internal/scheduler"
	"books_importer/internal/service"
	"books_importer/internal/source/csvfile"
	"books_importer/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	noPublish := flag.Bool("no-publish", false, "skip publishing the import report")
	flag.Parse()

	logger := setupLogger("info")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = setupLogger(cfg.LogLevel)

	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to database")

	var reportPublisher service.Publisher
	if !*noPublish {
		rabbitMQ, err := publisher.NewRabbitMQ(publisher.Config{
			URL:        cfg.RabbitMQ.URL,
			Exchange:   cfg.RabbitMQ.Exchange,
			RoutingKey: cfg.RabbitMQ.RoutingKey,
			QueueName:  cfg.RabbitMQ.QueueName,
		}, logger)
		if err != nil {
			logger.Error("failed to connect to rabbitmq", "error", err)
			os.Exit(1)
		}
		defer rabbitMQ.Close()
		reportPublisher = rabbitMQ
	}

	sources := service.Sources{
		OpenBooks: func() (service.BookSource, error) {
			return csvfile.OpenBooks(cfg.Import.BooksCSV, logger)
		},
		OpenReviews: func() (service.ReviewSource, error) {
			return csvfile.OpenReviews(cfg.Import.ReviewsCSV, logger)
		},
	}

	importService := service.NewImportService(
		sources,
		postgres.NewBookStore(db),
		postgres.NewReviewStore(db),
		postgres.NewAggregateStore(db),
		postgres.NewTableCleaner(db),
		postgres.NewTransactionManager(db),
		reportPublisher,
		logger,
		cfg.Import,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	if cfg.Import.Interval > 0 {
		sched := scheduler.NewScheduler(importService, cfg.Import.Interval, logger)
		if err := sched.Start(ctx); err != nil && err != context.Canceled {
			logger.Error("scheduler error", "error", err)
			os.Exit(1)
		}
		return
	}

	if _, err := importService.Run(ctx); err != nil {
		os.Exit(1)
	}
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}
