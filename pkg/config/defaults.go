package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "fitbook"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultPort     = "8080"
	DefaultLogLevel = "info"

	DefaultRateLimitRequests = 120
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultPaginationLimit = 100

	DefaultBookingCutoff        = 1 * time.Hour
	DefaultSeatLockTTL          = 20 * time.Second
	DefaultSeatLockWait         = 5 * time.Second
	DefaultAdmissionMaxAttempts = 2

	DefaultEventsEnabled = false
	DefaultEventsTopic   = "fitbook.events"
	DefaultEventsDLQ     = "fitbook.events.dlq"
)
