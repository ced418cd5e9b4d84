package main

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"fitbook/internal/seatrace"
	"fitbook/pkg/client"
	"fitbook/pkg/logger"
)

const ServiceName = "seatrace"

// seatrace creates a session, races every configured member for its seats
// and exits non-zero unless exactly min(members, capacity) were admitted.
func main() {
	log := logger.New(logger.Config{
		Level:   env("LOG_LEVEL", logger.INFO),
		Format:  logger.TEXT,
		Service: ServiceName,
	})

	sessions := client.NewSessionClient(env("SESSIONS_BASE_URL", "http://localhost:8080"))
	reservations := client.NewReservationClient(env("RESERVATIONS_BASE_URL", "http://localhost:8081"))

	in := seatrace.Input{
		InstructorID: os.Getenv("SEATRACE_INSTRUCTOR_ID"),
		CategoryID:   os.Getenv("SEATRACE_CATEGORY_ID"),
		MemberIDs:    splitIDs(os.Getenv("SEATRACE_MEMBER_IDS")),
		Capacity:     envInt("SEATRACE_CAPACITY", 5),
		Concurrency:  envInt("SEATRACE_CONCURRENCY", 40),
		StartsIn:     envDuration("SEATRACE_STARTS_IN", 24*time.Hour),
		Duration:     envDuration("SEATRACE_DURATION", time.Hour),
	}
	if err := in.Validate(); err != nil {
		log.Fatal("Invalid drill input", "error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	for _, c := range []*client.HttpClient{sessions.HTTP(), reservations.HTTP()} {
		if err := c.WaitForHealthy(ctx, 30*time.Second); err != nil {
			log.Fatal("Service not healthy", "base_url", c.BaseURL, "error", err)
		}
	}

	drill := seatrace.NewDrill(in, sessions, reservations, log)
	steps, cleanup := seatrace.Steps()
	if err := seatrace.NewEngine(log, steps, cleanup).Run(ctx, drill); err != nil {
		log.Fatal("Seat race failed", "error", err, "admitted", len(drill.Result.Admitted), "expected", drill.Expected())
	}

	log.Info("Seat race passed",
		"session_id", drill.Result.SessionID,
		"members", len(in.MemberIDs),
		"capacity", in.Capacity,
		"admitted", len(drill.Result.Admitted),
		"rejected_full", drill.Result.Full,
	)
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return d
}

func splitIDs(s string) []string {
	var ids []string
	for _, id := range strings.Split(s, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
