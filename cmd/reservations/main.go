package main

import (
	directory "fitbook/internal/directory/repository"
	"fitbook/internal/events"
	"fitbook/internal/reservations/handler"
	"fitbook/internal/reservations/repository"
	"fitbook/internal/reservations/service"
	"fitbook/internal/reservations/validator"
	"fitbook/internal/seatlock"
	lockrepo "fitbook/internal/seatlock/repository"
	sessionsrepo "fitbook/internal/sessions/repository"
	"fitbook/pkg/app"
	"fitbook/pkg/config"
)

const ServiceName = "reservations"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()

	cfg.Log.Info("Starting Reservations service", "booking_cutoff", cfg.BookingCutoff)
	publisher, err := events.NewPublisher(cfg, ServiceName)
	if err != nil {
		cfg.Log.Fatal("Failed to create event publisher", "error", err)
	}

	reservationService := initServices(cfg, publisher)
	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(handler.NewReservationHandler(reservationService, cfg.Log))
	serverApp.OnShutdown(func() {
		if err := publisher.Close(); err != nil {
			cfg.Log.Error("Failed to close event publisher", "error", err)
		}
	})
	serverApp.OnShutdown(cfg.GracefulShutdown)
	serverApp.Run()
}

func initServices(cfg *config.Config, publisher events.Publisher) service.ReservationService {
	reservationService := service.NewReservationService(service.Dependencies{
		Repo:      repository.NewMongoReservationRepository(cfg),
		Sessions:  sessionsrepo.NewMongoSessionRepository(cfg),
		Directory: directory.NewMongoDirectory(cfg),
		Locker:    seatlock.NewLocker(lockrepo.NewMongoLockRepository(cfg), cfg),
		Publisher: publisher,
		Validator: validator.NewReservationValidator(cfg.Log),
	}, cfg)

	cfg.Log.Info("Reservations service initialized", "database", cfg.MongoDatabaseName)
	return reservationService
}
