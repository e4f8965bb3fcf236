package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Domenick1991/parking/config"
	"github.com/Domenick1991/parking/internal/bootstrap"
	"github.com/Domenick1991/parking/internal/logging"
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

	if cfg.Cache.WarmOnStart {
		if err := app.WarmCache(ctx); err != nil {
			logger.Warn("cache warm-up failed", logging.Err(err))
		}
	}

	if err := bootstrap.Run(ctx, app); err != nil {
		logger.Error("server error", logging.Err(err))
		app.Close()
		os.Exit(1)
	}
}
