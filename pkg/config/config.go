package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"slotbook/pkg/client"
	"slotbook/pkg/logger"
)

type Config struct {
	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration

	Port string

	KafkaBrokers        []string
	TransitionsTopic    string
	TransitionsDLQTopic string
	PointsConsumerGroup string
	PaymentServiceURL   string

	RateLimitRequests int
	RateLimitWindow   time.Duration

	RequestTimeout time.Duration
	IdempotencyTTL time.Duration
	MaxRequestSize int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	CancelMinNoticeHours int
	ShortNoticeHours     int
	NoShowGraceMinutes   int
	MaxRescheduleCount   int
	SlotLockTTL          time.Duration

	RetryMaxAttempts   int
	RetryBaseDelay     time.Duration
	RetryMaxDelay      time.Duration
	RetryDeadlockDelay time.Duration

	AutoTransitionInterval time.Duration

	Log    *logger.Logger
	Client *client.Client
}

func Load(serviceName string) *Config {
	cfg := &Config{
		MongoURI:          getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  getEnvDuration(EnvMongoConnTimeout, DefaultMongoConnTimeout),

		Port: getEnvStr(EnvPort, DefaultPort),

		KafkaBrokers:        getEnvStrSlice(EnvKafkaBrokers, DefaultKafkaBrokers),
		TransitionsTopic:    getEnvStr(EnvTransitionsTopic, DefaultTransitionsTopic),
		TransitionsDLQTopic: getEnvStr(EnvTransitionsDLQTopic, DefaultTransitionsDLQTopic),
		PointsConsumerGroup: getEnvStr(EnvPointsConsumerGroup, DefaultPointsConsumerGroup),
		PaymentServiceURL:   getEnvStr(EnvPaymentServiceURL, DefaultPaymentServiceURL),

		RateLimitRequests: getEnvNum(EnvRateLimitRequests, DefaultRateLimitRequests),
		RateLimitWindow:   getEnvDuration(EnvRateLimitWindow, DefaultRateLimitWindow),

		RequestTimeout: getEnvDuration(EnvRequestTimeout, DefaultRequestTimeout),
		IdempotencyTTL: getEnvDuration(EnvIdempotencyTTL, DefaultIdempotencyTTL),
		MaxRequestSize: getEnvNum(EnvMaxRequestSize, DefaultMaxRequestSize),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),

		CancelMinNoticeHours: getEnvNum(EnvCancelMinNoticeHours, DefaultCancelMinNoticeHours),
		ShortNoticeHours:     getEnvNum(EnvShortNoticeHours, DefaultShortNoticeHours),
		NoShowGraceMinutes:   getEnvNum(EnvNoShowGraceMinutes, DefaultNoShowGraceMinutes),
		MaxRescheduleCount:   getEnvNum(EnvMaxRescheduleCount, DefaultMaxRescheduleCount),
		SlotLockTTL:          getEnvDuration(EnvSlotLockTTL, DefaultSlotLockTTL),

		RetryMaxAttempts:   getEnvNum(EnvRetryMaxAttempts, DefaultRetryMaxAttempts),
		RetryBaseDelay:     getEnvDuration(EnvRetryBaseDelay, DefaultRetryBaseDelay),
		RetryMaxDelay:      getEnvDuration(EnvRetryMaxDelay, DefaultRetryMaxDelay),
		RetryDeadlockDelay: getEnvDuration(EnvRetryDeadlockDelay, DefaultRetryDeadlockDelay),

		AutoTransitionInterval: getEnvDuration(EnvAutoTransitionInterval, DefaultAutoTransitionInterval),

		Log: logger.New(logger.Config{
			Level:     getEnvStr(EnvLogLevel, DefaultLogLevel),
			Format:    logger.JSON,
			AddSource: true,
			Service:   serviceName,
		}),
		Client: client.NewClient(),
	}

	return cfg
}

func (cfg *Config) SetMongo() {
	cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
}

func (cfg *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	if cfg.MongoURI == "" {
		errors = append(errors, "MongoURI cannot be empty")
	} else if !regexp.MustCompile(`^mongodb(\+srv)?://`).MatchString(cfg.MongoURI) {
		errors = append(errors, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", cfg.MongoURI))
	}

	if cfg.MongoDatabaseName == "" {
		errors = append(errors, "MongoDatabaseName cannot be empty")
	}

	if len(cfg.KafkaBrokers) == 0 {
		errors = append(errors, "KafkaBrokers cannot be empty")
	}
	if cfg.TransitionsTopic == "" {
		errors = append(errors, "TransitionsTopic cannot be empty")
	}

	if cfg.MongoConnTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("MongoConnTimeout must be positive, got: %s", cfg.MongoConnTimeout))
	}
	if cfg.RateLimitWindow <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitWindow must be positive, got: %s", cfg.RateLimitWindow))
	}
	if cfg.RequestTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("RequestTimeout must be positive, got: %s", cfg.RequestTimeout))
	}
	if cfg.IdempotencyTTL <= 0 {
		errors = append(errors, fmt.Sprintf("IdempotencyTTL must be positive, got: %s", cfg.IdempotencyTTL))
	}
	if cfg.ReadTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ReadTimeout must be positive, got: %s", cfg.ReadTimeout))
	}
	if cfg.WriteTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("WriteTimeout must be positive, got: %s", cfg.WriteTimeout))
	}
	if cfg.IdleTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("IdleTimeout must be positive, got: %s", cfg.IdleTimeout))
	}
	if cfg.ShutdownTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ShutdownTimeout must be positive, got: %s", cfg.ShutdownTimeout))
	}

	if cfg.RateLimitRequests <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitRequests must be positive, got: %d", cfg.RateLimitRequests))
	}
	if cfg.MaxRequestSize <= 0 {
		errors = append(errors, fmt.Sprintf("MaxRequestSize must be positive, got: %d", cfg.MaxRequestSize))
	}

	if cfg.CancelMinNoticeHours < 0 {
		errors = append(errors, fmt.Sprintf("CancelMinNoticeHours cannot be negative, got: %d", cfg.CancelMinNoticeHours))
	}
	if cfg.ShortNoticeHours < cfg.CancelMinNoticeHours {
		errors = append(errors, fmt.Sprintf("ShortNoticeHours (%d) must be >= CancelMinNoticeHours (%d)", cfg.ShortNoticeHours, cfg.CancelMinNoticeHours))
	}
	if cfg.NoShowGraceMinutes < 0 {
		errors = append(errors, fmt.Sprintf("NoShowGraceMinutes cannot be negative, got: %d", cfg.NoShowGraceMinutes))
	}
	if cfg.MaxRescheduleCount < 0 {
		errors = append(errors, fmt.Sprintf("MaxRescheduleCount cannot be negative, got: %d", cfg.MaxRescheduleCount))
	}
	if cfg.SlotLockTTL <= 0 {
		errors = append(errors, fmt.Sprintf("SlotLockTTL must be positive, got: %s", cfg.SlotLockTTL))
	}

	if cfg.RetryMaxAttempts < 1 {
		errors = append(errors, fmt.Sprintf("RetryMaxAttempts must be at least 1, got: %d", cfg.RetryMaxAttempts))
	}
	if cfg.RetryBaseDelay <= 0 {
		errors = append(errors, fmt.Sprintf("RetryBaseDelay must be positive, got: %s", cfg.RetryBaseDelay))
	}
	if cfg.RetryMaxDelay < cfg.RetryBaseDelay {
		errors = append(errors, fmt.Sprintf("RetryMaxDelay (%s) must be >= RetryBaseDelay (%s)", cfg.RetryMaxDelay, cfg.RetryBaseDelay))
	}
	if cfg.RetryDeadlockDelay <= 0 {
		errors = append(errors, fmt.Sprintf("RetryDeadlockDelay must be positive, got: %s", cfg.RetryDeadlockDelay))
	}

	if cfg.AutoTransitionInterval <= 0 {
		errors = append(errors, fmt.Sprintf("AutoTransitionInterval must be positive, got: %s", cfg.AutoTransitionInterval))
	}

	if len(errors) > 0 {
		errMsg := "Configuration validation failed:\n"
		for i, err := range errors {
			errMsg += fmt.Sprintf("  %d. %s\n", i+1, err)
		}
		return fmt.Errorf("%s", errMsg)
	}

	return nil
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded successfully",
		"mongo_uri", redactMongoURI(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"mongo_conn_timeout", cfg.MongoConnTimeout,
		"port", cfg.Port,
		"kafka_brokers", strings.Join(cfg.KafkaBrokers, ","),
		"transitions_topic", cfg.TransitionsTopic,
		"payment_service_url", cfg.PaymentServiceURL,
		"rate_limit_requests", cfg.RateLimitRequests,
		"rate_limit_window", cfg.RateLimitWindow,
		"request_timeout", cfg.RequestTimeout,
		"cancel_min_notice_hours", cfg.CancelMinNoticeHours,
		"short_notice_hours", cfg.ShortNoticeHours,
		"no_show_grace_minutes", cfg.NoShowGraceMinutes,
		"max_reschedule_count", cfg.MaxRescheduleCount,
		"slot_lock_ttl", cfg.SlotLockTTL,
		"retry_max_attempts", cfg.RetryMaxAttempts,
		"retry_base_delay", cfg.RetryBaseDelay,
		"retry_max_delay", cfg.RetryMaxDelay,
		"retry_deadlock_delay", cfg.RetryDeadlockDelay,
		"auto_transition_interval", cfg.AutoTransitionInterval,
	)
}

// redactMongoURI hides credentials when the URI embeds user:pass.
func redactMongoURI(uri string) string {
	re := regexp.MustCompile(`(mongodb(?:\+srv)?://)[^@/]+@`)
	return re.ReplaceAllString(uri, "${1}***@")
}

func getEnvStr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvNum(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvStrSlice(key, fallback string) []string {
	raw := getEnvStr(key, fallback)
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
