package main

import (
	directory "fitbook/internal/directory/repository"
	"fitbook/internal/events"
	reservationsrepo "fitbook/internal/reservations/repository"
	"fitbook/internal/seatlock"
	lockrepo "fitbook/internal/seatlock/repository"
	"fitbook/internal/sessions/handler"
	"fitbook/internal/sessions/repository"
	"fitbook/internal/sessions/service"
	"fitbook/internal/sessions/validator"
	"fitbook/pkg/app"
	"fitbook/pkg/config"
)

const ServiceName = "sessions"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()

	cfg.Log.Info("Starting Sessions service")
	publisher, err := events.NewPublisher(cfg, ServiceName)
	if err != nil {
		cfg.Log.Fatal("Failed to create event publisher", "error", err)
	}

	sessionService := initServices(cfg, publisher)
	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(handler.NewSessionHandler(sessionService, cfg.Log))
	serverApp.OnShutdown(func() {
		if err := publisher.Close(); err != nil {
			cfg.Log.Error("Failed to close event publisher", "error", err)
		}
	})
	serverApp.OnShutdown(cfg.GracefulShutdown)
	serverApp.Run()
}

func initServices(cfg *config.Config, publisher events.Publisher) service.SessionService {
	sessionService := service.NewSessionService(service.Dependencies{
		Repo:         repository.NewMongoSessionRepository(cfg),
		Reservations: reservationsrepo.NewMongoReservationRepository(cfg),
		Directory:    directory.NewMongoDirectory(cfg),
		Locker:       seatlock.NewLocker(lockrepo.NewMongoLockRepository(cfg), cfg),
		Publisher:    publisher,
		Validator:    validator.NewSessionValidator(cfg.Log),
	}, cfg)

	cfg.Log.Info("Sessions service initialized", "database", cfg.MongoDatabaseName)
	return sessionService
}
