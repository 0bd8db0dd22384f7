package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"artwink/internal/attendance"
	"artwink/internal/backend"
	"artwink/internal/config"
	"artwink/internal/logging"
	"artwink/internal/queue"
)

// Worker consumes counter repair messages and reapplies the adjustments.
func main() {
	cfg := config.Load()
	logger, err := logging.New(cfg.Production())
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutdown signal received")
		cancel()
	}()

	if cfg.QueueBackend != "redis" {
		logger.Warn("QUEUE_BACKEND is not redis; the api process drains its own queue")
	}
	if cfg.StoreBackend == "memory" {
		logger.Fatal("worker needs a shared store, STORE_BACKEND=memory is process local")
	}

	b, err := backend.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("backend open failed", zap.Error(err))
	}
	defer b.Close()

	messages, err := b.Queue.Consume(ctx)
	if err != nil {
		logger.Fatal("queue consume init failed", zap.Error(err))
	}
	rep := attendance.NewRepairer(b.Store, b.Queue, logger.Named("repair"))

	logger.Info("worker started, waiting for messages")
	for msg := range messages {
		if msg.Type != queue.TypeCounterAdjust {
			logger.Debug("skipping message", zap.String("type", msg.Type))
			continue
		}
		if err := rep.Handle(ctx, msg); err != nil {
			logger.Warn("repair message failed", zap.Error(err))
		}
	}
	logger.Info("worker stopped")
}
