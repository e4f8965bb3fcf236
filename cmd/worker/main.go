package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Domenick1991/parking/config"
	"github.com/Domenick1991/parking/internal/bootstrap"
	"github.com/Domenick1991/parking/internal/email"
	"github.com/Domenick1991/parking/internal/kafka"
	"github.com/Domenick1991/parking/internal/logging"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := logging.Setup(cfg.Log)
	for _, w := range cfg.Warnings() {
		logger.Warn("config", "warning", w)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.NewApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", logging.Err(err))
		os.Exit(1)
	}
	defer app.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return app.Sweeper.Run(gctx) })

	if cfg.Kafka.Enabled && cfg.Kafka.NotificationsTopic != "" {
		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.NotificationsTopic)
		defer consumer.Close()

		sender := email.NewSender(logger)
		g.Go(func() error {
			err := consumer.Consume(gctx, kafka.ReservationEvents(sender.Send))
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	logger.Info("worker started", "sweep_interval", cfg.Worker.SweepInterval, "kafka", cfg.Kafka.Enabled)
	if err := g.Wait(); err != nil {
		logger.Error("worker stopped", logging.Err(err))
		app.Close()
		os.Exit(1)
	}
	logger.Info("worker stopped")
}
