package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"pos-promotion-services/internal/config"
	"pos-promotion-services/internal/db"
	httpapi "pos-promotion-services/internal/http"
	"pos-promotion-services/internal/logger"
	"pos-promotion-services/internal/promotion"
	"pos-promotion-services/internal/queue"
	"pos-promotion-services/internal/service"
	"pos-promotion-services/internal/store"
	"pos-promotion-services/internal/ws"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("database connection failed", zap.Error(err))
	}
	defer pool.Close()

	queueClient := connectQueue(cfg, log)
	if queueClient != nil {
		defer queueClient.Close()
	}

	var publisher service.Publisher
	exchange := ""
	if queueClient != nil {
		publisher = queueClient
		exchange = queue.EventsExchange
	}

	evaluator := service.New(store.New(pool), publisher, log, service.Options{
		Zone:     promotion.NewStoreZone(cfg.StoreTZOffsetMinutes),
		CacheTTL: cfg.SnapshotCacheTTL,
		Exchange: exchange,
	})

	if queueClient != nil && cfg.RabbitMQWorkerMode == "daemon" {
		log.Info("promotion usage consumer enabled", zap.String("queue", queue.UsageQueue))
		go func() {
			err := queueClient.ConsumeWithRetry(ctx, queue.UsageQueue, queue.UsageHandler(evaluator, log), cfg.UsageConsumerRetries, cfg.UsageConsumerRetryGap)
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Error("consumer stopped", zap.Error(err))
			}
		}()
	} else {
		log.Info("promotion usage consumer disabled", zap.String("mode", cfg.RabbitMQWorkerMode))
	}

	wsServer := ws.New(pool, evaluator, log, cfg)
	go wsServer.Run(ctx)

	apiServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      httpapi.NewRouter(evaluator, log, cfg, wsServer),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("promotion api ready", zap.String("base", "/api"))
		log.Info("promotion ws ready", zap.String("base", "/ws"))
		log.Info("promotion service listening",
			zap.String("addr", cfg.HTTPAddr),
			zap.String("storeZone", promotion.NewStoreZone(cfg.StoreTZOffsetMinutes).Location().String()),
		)
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctxShutdown); err != nil {
		log.Error("http server shutdown failed", zap.Error(err))
	}
}

// connectQueue returns nil when RabbitMQ is not configured or, outside
// production, unreachable.
func connectQueue(cfg config.Config, log *zap.Logger) *queue.Client {
	if cfg.RabbitMQURL == "" {
		log.Info("rabbitmq disabled (RABBITMQ_URL is empty)")
		return nil
	}

	qc, err := queue.New(cfg.RabbitMQURL)
	if err == nil {
		err = qc.EnsureUsageTopology()
		if err != nil {
			_ = qc.Close()
		}
	}
	if err != nil {
		if cfg.Env == "production" {
			log.Fatal("rabbitmq setup failed", zap.Error(err))
		}
		log.Warn("rabbitmq setup failed; continuing without events", zap.Error(err))
		return nil
	}
	log.Info("rabbitmq enabled", zap.String("exchange", queue.EventsExchange), zap.String("queue", queue.UsageQueue))
	return qc
}
