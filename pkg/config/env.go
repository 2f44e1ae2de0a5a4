package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"

	EnvKafkaBrokers         = "KAFKA_BROKERS"
	EnvTransitionsTopic     = "TRANSITIONS_TOPIC"
	EnvTransitionsDLQTopic  = "TRANSITIONS_DLQ_TOPIC"
	EnvPointsConsumerGroup  = "POINTS_CONSUMER_GROUP"
	EnvPaymentServiceURL    = "PAYMENT_SERVICE_URL"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvCancelMinNoticeHours = "CANCEL_MIN_NOTICE_HOURS"
	EnvShortNoticeHours     = "SHORT_NOTICE_HOURS"
	EnvNoShowGraceMinutes   = "NO_SHOW_GRACE_MINUTES"
	EnvMaxRescheduleCount   = "MAX_RESCHEDULE_COUNT"
	EnvSlotLockTTL          = "SLOT_LOCK_TTL"

	EnvRetryMaxAttempts   = "RETRY_MAX_ATTEMPTS"
	EnvRetryBaseDelay     = "RETRY_BASE_DELAY"
	EnvRetryMaxDelay      = "RETRY_MAX_DELAY"
	EnvRetryDeadlockDelay = "RETRY_DEADLOCK_DELAY"

	EnvAutoTransitionInterval = "AUTO_TRANSITION_INTERVAL"
)
