package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "slotbook"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultPort     = "8080"
	DefaultLogLevel = "info"

	DefaultKafkaBrokers        = "localhost:9092"
	DefaultTransitionsTopic    = "reservation.transitions"
	DefaultTransitionsDLQTopic = "reservation.transitions.dlq"
	DefaultPointsConsumerGroup = "points-ledger"
	DefaultPaymentServiceURL   = "http://localhost:8090"

	DefaultRateLimitRequests = 10
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	// Business policy. Observed as hardcoded constants in comparable
	// systems; surfaced as configuration because their provenance is
	// shop policy, not code.
	DefaultCancelMinNoticeHours = 0
	DefaultShortNoticeHours     = 2
	DefaultNoShowGraceMinutes   = 30
	DefaultMaxRescheduleCount   = 3
	DefaultSlotLockTTL          = 10 * time.Second

	DefaultRetryMaxAttempts   = 3
	DefaultRetryBaseDelay     = 50 * time.Millisecond
	DefaultRetryMaxDelay      = 1 * time.Second
	DefaultRetryDeadlockDelay = 120 * time.Millisecond

	DefaultAutoTransitionInterval = 1 * time.Minute
)
