package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yugal82/sports-screening-server/config"
	"github.com/yugal82/sports-screening-server/internal/api"
	"github.com/yugal82/sports-screening-server/internal/auth"
	"github.com/yugal82/sports-screening-server/internal/broker"
	"github.com/yugal82/sports-screening-server/internal/cache"
	"github.com/yugal82/sports-screening-server/internal/etcdclient"
	"github.com/yugal82/sports-screening-server/internal/live"
	"github.com/yugal82/sports-screening-server/internal/models"
	"github.com/yugal82/sports-screening-server/internal/notify"
	"github.com/yugal82/sports-screening-server/internal/payment"
	"github.com/yugal82/sports-screening-server/internal/ratelimit"
	"github.com/yugal82/sports-screening-server/internal/reconcile"
	"github.com/yugal82/sports-screening-server/internal/redisclient"
	"github.com/yugal82/sports-screening-server/internal/service"
	"github.com/yugal82/sports-screening-server/internal/store"
	"github.com/yugal82/sports-screening-server/internal/util"
	"github.com/yugal82/sports-screening-server/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env, cfg.Observ.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting screening server")

	tp, err := util.InitTracer(cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	migrateCtx, migrateCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.Migrate(migrateCtx); err != nil {
		migrateCancel()
		log.Fatalf("Failed to migrate database: %v", err)
	}
	migrateCancel()
	logger.Info("Database connected")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	logger.Info("Redis connected")

	journal, err := reconcile.Open(cfg.Reconcile.JournalPath)
	if err != nil {
		log.Fatalf("Failed to open reconciliation journal: %v", err)
	}
	defer journal.Close()

	bookingProducer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicBooking)
	defer bookingProducer.Close()
	paymentProducer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicPayment)
	defer paymentProducer.Close()
	logger.Info("Kafka producers initialized")

	eventPublisher := broker.NewEventPublisher(bookingProducer, paymentProducer)

	var notifier service.Notifier
	if notifications, err := notify.Dial(cfg.RabbitMQ.URL, cfg.RabbitMQ.NotificationQueue); err != nil {
		logger.Warn("Notifications disabled", zap.Bool("degraded", true), zap.Error(err))
	} else {
		defer notifications.Close()
		notifier = notifications
	}

	checks := map[string]func(context.Context) error{
		"postgres": db.Ping,
		"redis":    redisClient.Ping,
	}

	var (
		seatStore service.SeatStore = db
		seeder    service.SeatSeeder
	)
	switch cfg.Ledger.Backend {
	case "postgres":
	case "etcd":
		etcdClient, err := etcdclient.NewClient(cfg.Etcd.Endpoints, cfg.Etcd.DialTimeout)
		if err != nil {
			log.Fatalf("Failed to connect to etcd: %v", err)
		}
		defer etcdClient.Close()

		etcdSeats := etcdclient.NewSeatStore(etcdClient)
		seatStore = etcdSeats
		seeder = etcdSeats
		checks["etcd"] = etcdClient.Ping
		logger.Info("Using etcd seat ledger", zap.Strings("endpoints", cfg.Etcd.Endpoints))
	default:
		log.Fatalf("Unknown ledger backend %q", cfg.Ledger.Backend)
	}

	var gateway payment.Gateway
	switch cfg.Payment.Provider {
	case "simulated":
		simulated := payment.NewSimulatedGateway(eventPublisher, cfg.Payment.SuccessRate)
		defer simulated.Close()
		gateway = simulated
	case "http":
		gateway = payment.NewHTTPGateway(cfg.Payment.BaseURL, cfg.Payment.APIKey, cfg.Payment.Timeout)
	default:
		log.Fatalf("Unknown payment provider %q", cfg.Payment.Provider)
	}

	ledger := service.NewInventoryLedger(seatStore, live.NewBroadcaster(redisClient))
	reservations := service.NewReservationService(db, ledger, gateway, eventPublisher, notifier, journal)
	events := service.NewEventService(db, ledger, seeder)
	profiles := service.NewProfileService(db, cache.New[models.User](redisClient, "profile", cfg.Cache.MinTTL))
	reconciliations := service.NewReconciliationService(journal, ledger)

	governor := ratelimit.NewGovernor(redisClient, map[ratelimit.ActionClass]ratelimit.Policy{
		ratelimit.ActionAuth:          {Limit: cfg.RateLimit.AuthLimit, Window: cfg.RateLimit.AuthWindow},
		ratelimit.ActionBookingCreate: {Limit: cfg.RateLimit.BookingLimit, Window: cfg.RateLimit.BookingWindow},
		ratelimit.ActionEventCreate:   {Limit: cfg.RateLimit.EventCreateLimit, Window: cfg.RateLimit.EventCreateWindow},
	}, cfg.RateLimit.CounterStoreTimeout)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	paymentConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicPayment, cfg.Kafka.ConsumerGroup)
	paymentWorker := worker.NewPaymentCallbackWorker(paymentConsumer, db, reservations)
	go func() {
		if err := paymentWorker.Start(workerCtx); err != nil {
			logger.Error("Payment callback worker error", zap.Error(err))
		}
	}()

	// drift is measured against the Postgres counter only
	var auditWorker *worker.SeatAuditWorker
	if cfg.Ledger.Backend == "postgres" {
		auditWorker = worker.NewSeatAuditWorker(db, cfg.Ledger.AuditInterval)
		go func() {
			if err := auditWorker.Start(workerCtx); err != nil {
				logger.Error("Seat audit worker error", zap.Error(err))
			}
		}()
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(api.Dependencies{
		Bookings:        reservations,
		Events:          events,
		Profiles:        profiles,
		Reconciliations: reconciliations,
		Limiter:         governor,
		Auth:            auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL),
		Seats:           live.NewStreamer(redisClient),
		WebhookSecret:   cfg.Auth.WebhookSecret,
		Checks:          checks,
	})
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	if err := paymentWorker.Stop(); err != nil {
		logger.Warn("Payment worker stop", zap.Error(err))
	}
	if auditWorker != nil {
		_ = auditWorker.Stop()
	}

	logger.Info("Server exited")
}
