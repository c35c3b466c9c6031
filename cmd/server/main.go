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

	"github.com/MohamedElsayed002/frontend-carwash/config"
	"github.com/MohamedElsayed002/frontend-carwash/internal/api"
	"github.com/MohamedElsayed002/frontend-carwash/internal/backend"
	"github.com/MohamedElsayed002/frontend-carwash/internal/broker"
	"github.com/MohamedElsayed002/frontend-carwash/internal/drafts"
	"github.com/MohamedElsayed002/frontend-carwash/internal/redisclient"
	"github.com/MohamedElsayed002/frontend-carwash/internal/service"
	"github.com/MohamedElsayed002/frontend-carwash/internal/session"
	"github.com/MohamedElsayed002/frontend-carwash/internal/store"
	"github.com/MohamedElsayed002/frontend-carwash/internal/util"
	"github.com/MohamedElsayed002/frontend-carwash/internal/worker"

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
	logger.Info("Starting carwash checkout", zap.String("backend", cfg.Backend.BaseURL))

	tp, err := util.InitTracer("carwash-checkout", cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Error("Error shutting down tracer", zap.Error(err))
		}
	}()

	var kv redisclient.KV
	if cfg.Redis.Addr != "" {
		redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		kv = redisClient
		logger.Info("Redis connected", zap.String("addr", cfg.Redis.Addr))
	} else {
		kv = redisclient.NewMemory()
		logger.Warn("REDIS_ADDR not set, keeping sessions in memory")
	}
	defer kv.Close()

	var publisher service.EventPublisher = broker.Discard{}
	if len(cfg.Kafka.Brokers) > 0 {
		producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicCheckout)
		defer producer.Close()
		publisher = broker.NewEventPublisher(producer)
		logger.Info("Kafka producer initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
	}

	client := backend.NewClient(cfg.Backend.BaseURL, cfg.Backend.Timeout)
	sessions := session.NewStore(kv, cfg.Checkout.DraftTTL)
	draftStore := drafts.NewStore(kv, cfg.Checkout.DraftTTL)
	gate := service.NewEntitlementGate(client, sessions)
	handoff := service.NewHandoff(client, gate, draftStore)
	claims := service.NewClaimStore(kv, cfg.Checkout.MountTTL)
	reconciler := service.NewReconciler(client, gate, handoff, claims, publisher, cfg.Checkout)
	mounts := service.NewMountRegistry(reconciler, cfg.Checkout.MountTTL)
	methods := service.NewPaymentMethods(client, cfg.ApplePay)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	go mounts.Run(workerCtx, time.Minute)

	probes := map[string]api.Probe{
		"kv":      kv.Ping,
		"backend": client.Health,
	}

	var ledgerWorker *worker.LedgerWorker
	if cfg.Database.URL != "" {
		db, err := store.NewStore(workerCtx, cfg.Database.URL)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
		probes["database"] = db.Ping
		logger.Info("Database connected")

		if len(cfg.Kafka.Brokers) > 0 {
			consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicCheckout, cfg.Kafka.ConsumerGroup)
			ledgerWorker = worker.NewLedgerWorker(consumer, service.NewLedgerProjector(db))
			go func() {
				if err := ledgerWorker.Start(workerCtx); err != nil && workerCtx.Err() == nil {
					logger.Error("Ledger worker error", zap.Error(err))
				}
			}()
		}
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(api.Services{
		Sessions: service.NewSessionService(sessions, draftStore, gate, mounts),
		Checkout: service.NewCheckoutService(client, gate, draftStore, methods, publisher, cfg.Checkout),
		Mounts:   mounts,
		Handoff:  handoff,
		Feedback: service.NewFeedbackService(client, gate, draftStore),
		Methods:  methods,
	}, cfg, probes)
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
	if ledgerWorker != nil {
		ledgerWorker.Stop()
	}

	logger.Info("Server exited")
}
