package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	gorillaHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"nomadHubAPI/handlers"
	"nomadHubAPI/internal/audit"
	"nomadHubAPI/internal/config"
	"nomadHubAPI/internal/db"
	"nomadHubAPI/internal/scheduler"
	"nomadHubAPI/internal/yookassa"
	"nomadHubAPI/middleware"
	"nomadHubAPI/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := newLogger(cfg.Env)
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	dbPool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		cancel()
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	applied, err := db.ApplyMigrations(ctx, dbPool)
	cancel()
	if err != nil {
		logger.Fatal("failed to apply migrations", zap.Error(err))
	}
	logger.Info("database ready", zap.Strings("migrations_applied", applied))
	defer func() {
		logger.Info("closing database connection pool")
		dbPool.Close()
	}()

	recorder, closeRecorder := newAuditRecorder(cfg.Kafka, logger)
	defer closeRecorder()

	middleware.InitPrometheus()
	services.RegisterMetrics()

	var gateway services.PaymentGateway
	if cfg.YooKassa.Configured() {
		gateway = yookassa.NewClient(cfg.YooKassa.ShopID, cfg.YooKassa.SecretKey, yookassa.WithBaseURL(cfg.YooKassa.APIURL))
	} else {
		logger.Warn("YooKassa credentials not set, payment creation disabled")
	}

	adminService := services.NewAdminService(dbPool)
	subscriberService := services.NewSubscriberService(dbPool)
	partnerService := services.NewPartnerService(cfg.Airtable, logger)
	emailService := services.NewEmailService(cfg.SendGrid)
	paymentService := services.NewPaymentService(dbPool, gateway, emailService, recorder, services.PaymentServiceConfig{
		TelegramChatLink: cfg.TelegramChatLink,
		SuccessURL:       cfg.SuccessURL,
	}, logger)

	sweeper := scheduler.NewScheduler(subscriberService, recorder, cfg.Expiry.Grace, logger)
	if err := sweeper.Start(cfg.Expiry.Schedule); err != nil {
		logger.Fatal("failed to start scheduler", zap.Error(err))
	}

	adminHandler := handlers.NewAdminHandler(adminService, logger)
	partnerHandler := handlers.NewPartnerHandler(partnerService, subscriberService, logger)
	paymentHandler := handlers.NewPaymentHandler(paymentService, logger)

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	cleanupCtx, stopCleanup := context.WithCancel(context.Background())
	defer stopCleanup()
	go rateLimiter.Cleanup(cleanupCtx)

	r := mux.NewRouter()
	r.Use(rateLimiter.Middleware)
	r.Use(middleware.MonitorMiddleware)
	r.MethodNotAllowedHandler = http.HandlerFunc(handlers.MethodNotAllowed)

	r.Handle("/metrics", middleware.BasicAuthMiddleware(cfg.MetricsUser, cfg.MetricsPass)(promhttp.Handler())).Methods("GET")
	r.HandleFunc("/health", healthHandler(dbPool)).Methods("GET")

	// Method dispatch happens inside the handlers so that preflight and
	// credential checks run for every method.
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Handle("/add-partner", chain(http.HandlerFunc(partnerHandler.AddPartner),
		middleware.Preflight(middleware.AddPartnerCORS),
		middleware.RequireAdminPassword(cfg.AdminPassword),
	))
	api.Handle("/admin", chain(http.HandlerFunc(adminHandler.Dashboard),
		middleware.Preflight(middleware.AdminCORS),
		middleware.RequireAdminBearer(cfg.AdminPassword),
	))
	api.Handle("/partners", chain(http.HandlerFunc(partnerHandler.Partners),
		middleware.Preflight(middleware.PartnersCORS),
	))
	api.Handle("/payment", chain(http.HandlerFunc(paymentHandler.Payment),
		middleware.Preflight(middleware.PaymentCORS),
	))

	handler := gorillaHandlers.ProxyHeaders(r)
	handler = gorillaHandlers.RecoveryHandler(
		gorillaHandlers.RecoveryLogger(zap.NewStdLog(logger)),
		gorillaHandlers.PrintRecoveryStack(true),
	)(handler)

	server := http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 20 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("starting server", zap.String("port", cfg.Port), zap.String("env", cfg.Env))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("error starting server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	sig := <-sigChan
	logger.Info("got signal", zap.String("signal", sig.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	sweeper.Stop()
	paymentService.Wait()

	logger.Info("server shutdown complete")
}

// chain applies mws so that the first one runs first.
func chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

func newLogger(env string) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if env == "development" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		panic(err)
	}
	return logger.With(zap.String("service", "nomad-hub-api"))
}

// newAuditRecorder publishes to Kafka when brokers are configured and falls
// back to the log otherwise.
func newAuditRecorder(cfg config.Kafka, logger *zap.Logger) (audit.Recorder, func()) {
	logRecorder := audit.NewLogRecorder(logger)
	if !cfg.Enabled() {
		return logRecorder, func() {}
	}

	producer, err := sarama.NewSyncProducer(cfg.Brokers, audit.NewProducerConfig())
	if err != nil {
		logger.Error("kafka unavailable, audit events go to the log", zap.Strings("brokers", cfg.Brokers), zap.Error(err))
		return logRecorder, func() {}
	}

	recorder := audit.NewKafkaRecorder(producer, cfg.AuditTopic, logger)
	return recorder, func() {
		if err := recorder.Close(); err != nil {
			logger.Error("failed to close kafka producer", zap.Error(err))
		}
	}
}

func healthHandler(dbPool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")
		if err := dbPool.Ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status": "unhealthy", "error": "database connection failed"}`))
			return
		}

		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy", "service": "nomad-hub-api"}`))
	}
}
