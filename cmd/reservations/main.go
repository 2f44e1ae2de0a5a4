package main

import (
	"slotbook/internal/availability"
	"slotbook/internal/notifications"
	"slotbook/internal/payments"
	"slotbook/internal/points"
	"slotbook/internal/reservations/handler"
	"slotbook/internal/reservations/repository"
	"slotbook/internal/reservations/service"
	"slotbook/internal/reservations/validator"
	"slotbook/pkg/app"
	"slotbook/pkg/config"
	"slotbook/pkg/contracts"
	"slotbook/pkg/kafka"
	kafka_config "slotbook/pkg/kafka/config"
	kafka_middleware "slotbook/pkg/kafka/middleware"
)

const ServiceName = "reservations"

func main() {
	cfg := config.Load(ServiceName)

	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal("Invalid configuration", "error", err)
	}

	cfg.LogConfiguration()
	cfg.SetMongo()

	cfg.Log.Info("Starting Reservations service")
	reservationService, stateMachine, dispatcher := initServices(cfg)
	defer func() {
		if err := dispatcher.Close(); err != nil {
			cfg.Log.Error("Failed to close notification dispatcher", "error", err)
		}
	}()

	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(contracts.Handlers{
		handler.NewReservationHandler(reservationService, stateMachine, cfg.Log),
		points.NewHandler(points.NewLedgerRepository(cfg), cfg.Log),
	})
	serverApp.Run()
}

func initServices(cfg *config.Config) (service.ReservationService, service.StateMachine, *notifications.Dispatcher) {
	kafkaCfg := kafka_config.Load()
	kafkaCfg.LogConfiguration(cfg.Log.Info)

	producer, err := kafka.NewProducer(kafkaCfg, cfg.TransitionsTopic, cfg.TransitionsDLQTopic)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
	}
	if kafkaCfg.EnableMiddleware {
		producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))
	}
	dispatcher := notifications.NewDispatcher(producer, ServiceName, cfg.Log)

	reservationRepo := repository.NewMongoReservationRepository(cfg)
	lockRepo := repository.NewSlotLockRepository(cfg)
	logRepo := repository.NewStateLogRepository(cfg)

	gate := availability.NewGate(reservationRepo, cfg.Log)
	paymentClient := payments.NewClient(cfg.PaymentServiceURL, cfg.Log)
	reservationValidator := validator.NewReservationValidator(cfg.Log)

	reservationService := service.NewReservationService(
		reservationRepo,
		lockRepo,
		logRepo,
		gate,
		dispatcher,
		reservationValidator,
		cfg,
	)

	stateMachine := service.NewStateMachine(
		reservationRepo,
		logRepo,
		paymentClient,
		dispatcher,
		service.DefaultTransitionTable(cfg),
		cfg,
	)

	cfg.Log.Info("Reservation services initialized", "database", cfg.MongoDatabaseName)
	return reservationService, stateMachine, dispatcher
}
