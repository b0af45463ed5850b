package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"zhangdan/internal/amqp"
	"zhangdan/internal/cli"
	"zhangdan/internal/core"
	apphttp "zhangdan/internal/http"
	"zhangdan/internal/log"
	"zhangdan/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	store, shardCache, cacheManager := cli.InitMonthStore(logger, cfg)
	classifier := cli.LoadClassifier(logger, cfg.CategoryRulesFile)

	probes := map[string]apphttp.Probe{}
	var publisher services.EventPublisher
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		var err error
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		publisher = amqpClient
		probes["amqp"] = amqpClient.Healthy
		logger.Info("Change events enabled", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Info("Change events disabled - no AMQP_URL provided")
	}

	svc := services.NewTransactionService(store, core.NewProcessor(classifier), publisher, logger)

	opts := apphttp.Options{
		Logger:             logger,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Probes:             probes,
	}
	if shardCache != nil {
		opts.CacheStats = shardCache.Stats
	}
	srv := apphttp.NewServer(":"+cfg.Port, svc, opts)

	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		cacheManager.Stop()
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("AMQP close error", log.FieldError, err)
			}
		}
	})

	logger.Info("Starting zhangdan server",
		"port", cfg.Port,
		"data_dir", cfg.DataDir,
		"categories", len(classifier.Categories()))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	<-done
	logger.Info("Server stopped gracefully")
}
