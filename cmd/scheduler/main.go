package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"slotbook/internal/notifications"
	"slotbook/internal/payments"
	"slotbook/internal/reservations/repository"
	"slotbook/internal/reservations/service"
	"slotbook/pkg/config"
	"slotbook/pkg/kafka"
	kafka_config "slotbook/pkg/kafka/config"
	kafka_middleware "slotbook/pkg/kafka/middleware"
)

const ServiceName = "scheduler"

func main() {
	cfg := config.Load(ServiceName)

	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal("Invalid configuration", "error", err)
	}

	cfg.LogConfiguration()
	cfg.SetMongo()

	cfg.Log.Info("Starting automatic transition scheduler",
		"interval", cfg.AutoTransitionInterval,
		"no_show_grace_minutes", cfg.NoShowGraceMinutes,
	)

	stateMachine, dispatcher := initStateMachine(cfg)
	defer func() {
		if err := dispatcher.Close(); err != nil {
			cfg.Log.Error("Failed to close notification dispatcher", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(cfg.AutoTransitionInterval)
	defer ticker.Stop()

	runSweep(ctx, cfg, stateMachine)

	for {
		select {
		case <-ctx.Done():
			cfg.Log.Info("Scheduler shutting down")
			return
		case <-ticker.C:
			runSweep(ctx, cfg, stateMachine)
		}
	}
}

func runSweep(ctx context.Context, cfg *config.Config, stateMachine service.StateMachine) {
	sweepCtx, cancel := context.WithTimeout(ctx, cfg.AutoTransitionInterval)
	defer cancel()

	result, err := stateMachine.ProcessAutomaticTransitions(sweepCtx)
	if err != nil {
		cfg.Log.Error("Automatic transition sweep failed", "error", err)
		return
	}

	if len(result.Errors) > 0 {
		cfg.Log.Warn("Sweep finished with per-reservation errors",
			"processed", result.ProcessedCount,
			"errors", result.Errors,
		)
	}
}

func initStateMachine(cfg *config.Config) (service.StateMachine, *notifications.Dispatcher) {
	kafkaCfg := kafka_config.Load()

	producer, err := kafka.NewProducer(kafkaCfg, cfg.TransitionsTopic, cfg.TransitionsDLQTopic)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
	}
	if kafkaCfg.EnableMiddleware {
		producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))
	}
	dispatcher := notifications.NewDispatcher(producer, ServiceName, cfg.Log)

	reservationRepo := repository.NewMongoReservationRepository(cfg)
	logRepo := repository.NewStateLogRepository(cfg)
	paymentClient := payments.NewClient(cfg.PaymentServiceURL, cfg.Log)

	return service.NewStateMachine(
		reservationRepo,
		logRepo,
		paymentClient,
		dispatcher,
		service.DefaultTransitionTable(cfg),
		cfg,
	), dispatcher
}
