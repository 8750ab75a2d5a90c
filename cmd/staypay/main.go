package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"staypay/internal/app/outbox"
	"staypay/internal/app/services/calculation"
	"staypay/internal/infra/broker/kafka"
	"staypay/internal/infra/config"
	grpcserver "staypay/internal/infra/grpc"
	ginserver "staypay/internal/infra/http/gin"
	"staypay/internal/infra/obs"
	infraoutbox "staypay/internal/infra/outbox"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		obs.NewLogger("prod", "error").Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := obs.NewLogger(cfg.Env, cfg.LogLevel)
	slog.SetDefault(logger)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("staypay stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("staypay stopped")
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	store, err := openPersistence(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.close(context.Background(), logger)
	locker := openLocker(cfg, store)

	if err := seedRates(ctx, cfg, store, logger); err != nil {
		logger.Warn("rate fixtures load failed", "error", err)
	}

	wake := infraoutbox.NewSignal()
	svc := calculation.New(calculation.Deps{
		UoWFactory:     store.factory,
		Idempotency:    store.idempotency,
		IdempotencyTTL: cfg.IdempotencyTTL,
		Locker:         locker,
		LockTTL:        cfg.LockTTL,
		Notifier:       wake,
		Timeout:        cfg.PersistenceTimeout,
		Encoder:        outbox.JSONEventEncoder{},
		Logger:         logger,
	})

	var producer infraoutbox.Producer = infraoutbox.LogProducer{Logger: logger}
	var consumer *kafka.Consumer
	if cfg.KafkaEnabled() {
		p, err := kafka.NewProducer(cfg.KafkaBrokers, nil)
		if err != nil {
			return err
		}
		defer p.Close()
		producer = p
		consumer, err = kafka.NewConsumer(cfg.KafkaBrokers, cfg.PaymentsGroup, nil, &kafka.PaymentHandler{Payments: svc, Logger: logger}, logger)
		if err != nil {
			return err
		}
		defer consumer.Close()
	}

	var grpcLis net.Listener
	if cfg.GRPCAddr != "" {
		if grpcLis, err = net.Listen("tcp", cfg.GRPCAddr); err != nil {
			return err
		}
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker := &infraoutbox.Worker{
			Source:      store.outbox,
			Producer:    producer,
			Wake:        wake,
			Interval:    cfg.OutboxPollInterval,
			TopicPrefix: cfg.KafkaTopicPrefix,
			ID:          "relay-" + uuid.NewString(),
			Backoff:     cfg.RetryBackoff,
			Logger:      logger,
		}
		if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("outbox worker stopped", "error", err)
		}
	}()
	if consumer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Info("payments consumer starting", "topic", cfg.PaymentsTopic, "group", cfg.PaymentsGroup)
			if err := consumer.Run(ctx, []string{cfg.PaymentsTopic}); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("payments consumer stopped", "error", err)
			}
		}()
	}

	if grpcLis != nil {
		grpcSrv := grpcserver.NewServer(grpcserver.Server{Service: svc}, logger)
		go func() {
			<-ctx.Done()
			grpcSrv.GracefulStop()
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Info("gRPC server starting", "addr", cfg.GRPCAddr)
			if err := grpcSrv.Serve(grpcLis); err != nil {
				logger.Error("grpc server failed", "error", err)
			}
		}()
	}

	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, obs.HealthHandlers{Checks: store.checks}, ginserver.Handlers{
		Quote:    ginserver.QuoteHandler{Service: svc},
		Booking:  ginserver.BookingHandler{Service: svc},
		Payments: ginserver.PaymentHandler{Service: svc},
	})
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
	}()

	logger.Info("HTTP server starting", "addr", cfg.HTTPAddr, "driver", cfg.StoreDriver)
	err = server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}
	cancel()
	wg.Wait()
	return err
}
