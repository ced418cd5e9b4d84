package main

import (
	"context"
	"errors"

	"fitbook/internal/activity/handler"
	"fitbook/internal/activity/repository"
	"fitbook/pkg/app"
	"fitbook/pkg/clock"
	"fitbook/pkg/config"
	"fitbook/pkg/kafka"
	kafka_config "fitbook/pkg/kafka/config"
	kafka_middleware "fitbook/pkg/kafka/middleware"
)

const ServiceName = "activity"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()

	cfg.Log.Info("Starting Activity service", "topic", cfg.EventsTopic)
	repo := repository.NewMongoActivityRepository(cfg)

	kcfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Fatal("Failed to load Kafka configuration", "error", err)
	}
	kcfg.LogConfiguration(cfg.Log)

	events := handler.NewEventHandler(repo, clock.System(), cfg.Log)
	consumer, err := kafka.NewConsumer(kcfg, cfg.EventsTopic, cfg.EventsDLQ, events.Handle, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka consumer", "error", err)
	}
	if kcfg.EnableMiddleware {
		consumer.Use(kafka_middleware.LoggingConsumerMiddleware(cfg.Log))
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			cfg.Log.Error("Activity consumer stopped", "error", err)
		}
	}()

	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(handler.NewActivityHandler(repo, cfg.Log))
	serverApp.OnShutdown(func() {
		cancel()
		if err := consumer.Close(); err != nil {
			cfg.Log.Error("Failed to close Kafka consumer", "error", err)
		}
	})
	serverApp.OnShutdown(cfg.GracefulShutdown)
	serverApp.Run()
}
